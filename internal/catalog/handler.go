package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/pricing"
)

type DiscountLister interface {
	ListDiscounted(ctx context.Context) ([]domain.CatalogItem, error)
}

type Handler struct {
	resolver   *Resolver
	promotions DiscountLister
	logger     *slog.Logger
}

func NewHandler(resolver *Resolver, promotions DiscountLister, logger *slog.Logger) *Handler {
	return &Handler{
		resolver:   resolver,
		promotions: promotions,
		logger:     logger,
	}
}

type itemResponse struct {
	Item  domain.CatalogItem `json:"item"`
	Quote pricing.Quote      `json:"quote"`
}

func (h *Handler) HandleGetItem(w http.ResponseWriter, r *http.Request) {
	kind := domain.ItemKind(r.PathValue("kind"))
	if !kind.Valid() {
		h.writeError(w, http.StatusNotFound, "item not found")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	ref := domain.ItemRef{Kind: kind, ID: id}
	item, err := h.resolver.Lookup(r.Context(), ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "item not found")
			return
		}
		h.logger.Error("failed to look up item", "error", err, "item", ref.Key())
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, itemResponse{Item: *item, Quote: pricing.QuoteItem(*item)})
}

func (h *Handler) HandleListPromotions(w http.ResponseWriter, r *http.Request) {
	items, err := h.promotions.ListDiscounted(r.Context())
	if err != nil {
		h.logger.Error("failed to list promotions", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]itemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, itemResponse{Item: item, Quote: pricing.QuoteItem(item)})
	}

	h.logger.Info("promotions listed", "count", len(resp))
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandlePromotionStats(w http.ResponseWriter, r *http.Request) {
	items, err := h.promotions.ListDiscounted(r.Context())
	if err != nil {
		h.logger.Error("failed to list promotions", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, pricing.Stats(items))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
