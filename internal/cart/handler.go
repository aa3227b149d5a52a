package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var quantityMessage = fmt.Sprintf("quantity must be between 1 and %d", domain.MaxLineQuantity)

type Handler struct {
	sessions   *SessionStore
	aggregator *Aggregator
	resolver   ItemResolver
	logger     *slog.Logger
}

func NewHandler(sessions *SessionStore, aggregator *Aggregator, resolver ItemResolver, logger *slog.Logger) *Handler {
	return &Handler{
		sessions:   sessions,
		aggregator: aggregator,
		resolver:   resolver,
		logger:     logger,
	}
}

func (h *Handler) load(r *http.Request) domain.Cart {
	c, err := h.sessions.Load(r)
	if err != nil {
		h.logger.Warn("discarding unreadable cart session", "error", err)
	}
	return c
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	c := h.load(r)
	h.writeJSON(w, http.StatusOK, h.aggregator.Aggregate(r.Context(), c))
}

type countResponse struct {
	ItemsCount int `json:"items_count"`
}

func (h *Handler) HandleCount(w http.ResponseWriter, r *http.Request) {
	c := h.load(r)
	h.writeJSON(w, http.StatusOK, countResponse{ItemsCount: c.ItemsCount()})
}

type addRequest struct {
	Kind     domain.ItemKind `json:"kind"`
	ID       int64           `json:"id"`
	Quantity *int            `json:"quantity"`
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Kind == "" {
		req.Kind = domain.KindStandard
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity < 1 || quantity > domain.MaxLineQuantity {
		h.writeError(w, http.StatusBadRequest, quantityMessage)
		return
	}

	ref := domain.ItemRef{Kind: req.Kind, ID: req.ID}
	item, ok := h.lookup(w, r, ref)
	if !ok {
		return
	}

	c := h.load(r)
	if err := c.Add(ref, quantity); err != nil {
		h.writeError(w, http.StatusBadRequest, quantityMessage)
		return
	}

	if !h.save(w, r, c) {
		return
	}

	h.logger.Info("item added to cart", "item", ref.Key(), "name", item.Name, "quantity", quantity)
	h.writeJSON(w, http.StatusOK, h.aggregator.Aggregate(r.Context(), c))
}

type updateRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	ref, err := domain.ParseItemKey(key)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid cart key")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity > domain.MaxLineQuantity {
		h.writeError(w, http.StatusBadRequest, quantityMessage)
		return
	}

	if _, ok := h.lookup(w, r, ref); !ok {
		return
	}

	c := h.load(r)
	c.Set(ref.Key(), req.Quantity)

	if !h.save(w, r, c) {
		return
	}

	h.logger.Info("cart item updated", "key", ref.Key(), "quantity", req.Quantity)
	h.writeJSON(w, http.StatusOK, h.aggregator.Aggregate(r.Context(), c))
}

// HandleRemove drops an entry without consulting the catalog, so stale keys can
// always be removed.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	c := h.load(r)
	if c.Remove(key) {
		if !h.save(w, r, c) {
			return
		}
		h.logger.Info("cart item removed", "key", key)
	}

	h.writeJSON(w, http.StatusOK, h.aggregator.Aggregate(r.Context(), c))
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, ref domain.ItemRef) (*domain.CatalogItem, bool) {
	item, err := h.resolver.Lookup(r.Context(), ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "item not found")
			return nil, false
		}
		h.logger.Error("failed to look up item", "error", err, "item", ref.Key())
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	return item, true
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, c domain.Cart) bool {
	if err := h.sessions.Save(w, r, c); err != nil {
		h.logger.Error("failed to save cart session", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return false
	}
	return true
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
