package crm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const dateLayout = "2006-01-02"

type Store interface {
	List(ctx context.Context, search string) ([]domain.Customer, error)
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)
	Create(ctx context.Context, c *domain.Customer) error
	Update(ctx context.Context, c *domain.Customer) error
	AdjustPoints(ctx context.Context, id int64, delta int) (int, error)
}

type Handler struct {
	repo   Store
	logger *slog.Logger
}

func NewHandler(repo Store, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

// customerRequest is the editable part of a customer. Dates use YYYY-MM-DD.
type customerRequest struct {
	FullName        string `json:"full_name"`
	Phone           string `json:"phone"`
	Birthday        string `json:"birthday"`
	SpouseName      string `json:"spouse_name"`
	SpousePhone     string `json:"spouse_phone"`
	SpouseBirthday  string `json:"spouse_birthday"`
	FavoriteFlowers string `json:"favorite_flowers"`
	Notes           string `json:"notes"`
	Points          int    `json:"points"`
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (req customerRequest) customer() (domain.Customer, error) {
	c := domain.Customer{
		FullName:        strings.TrimSpace(req.FullName),
		Phone:           strings.TrimSpace(req.Phone),
		SpouseName:      strings.TrimSpace(req.SpouseName),
		SpousePhone:     strings.TrimSpace(req.SpousePhone),
		FavoriteFlowers: strings.TrimSpace(req.FavoriteFlowers),
		Notes:           strings.TrimSpace(req.Notes),
		Points:          req.Points,
	}

	var fields []string
	if c.FullName == "" {
		fields = append(fields, "full_name")
	}
	if c.Phone == "" {
		fields = append(fields, "phone")
	}
	var err error
	if c.Birthday, err = parseDate(req.Birthday); err != nil {
		fields = append(fields, "birthday")
	}
	if c.SpouseBirthday, err = parseDate(req.SpouseBirthday); err != nil {
		fields = append(fields, "spouse_birthday")
	}
	if c.Points < 0 {
		fields = append(fields, "points")
	}

	if len(fields) > 0 {
		return c, &domain.ValidationError{Fields: fields}
	}
	return c, nil
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")

	customers, err := h.repo.List(r.Context(), search)
	if err != nil {
		h.logger.Error("failed to list customers", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("customers listed", "count", len(customers), "search", search)
	h.writeJSON(w, http.StatusOK, customers)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := req.customer()
	if err != nil {
		h.writeValidation(w, err)
		return
	}

	if err := h.repo.Create(r.Context(), &c); err != nil {
		h.logger.Error("failed to create customer", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("customer created", "customer_id", c.ID)
	h.writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	c, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.writeRepoError(w, err, "failed to get customer", id)
		return
	}

	h.writeJSON(w, http.StatusOK, c)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := req.customer()
	if err != nil {
		h.writeValidation(w, err)
		return
	}
	c.ID = id

	if err := h.repo.Update(r.Context(), &c); err != nil {
		h.writeRepoError(w, err, "failed to update customer", id)
		return
	}

	h.logger.Info("customer updated", "customer_id", c.ID)
	h.writeJSON(w, http.StatusOK, c)
}

type pointsRequest struct {
	Delta int `json:"delta"`
}

type pointsResponse struct {
	CustomerID int64 `json:"customer_id"`
	Points     int   `json:"points"`
}

func (h *Handler) HandleAdjustPoints(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req pointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	points, err := h.repo.AdjustPoints(r.Context(), id, req.Delta)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientPoints) {
			h.writeError(w, http.StatusConflict, "insufficient loyalty points")
			return
		}
		h.writeRepoError(w, err, "failed to adjust points", id)
		return
	}

	h.logger.Info("loyalty points adjusted", "customer_id", id, "delta", req.Delta, "points", points)
	h.writeJSON(w, http.StatusOK, pointsResponse{CustomerID: id, Points: points})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusNotFound, "customer not found")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeRepoError(w http.ResponseWriter, err error, msg string, id int64) {
	if errors.Is(err, domain.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "customer not found")
		return
	}
	h.logger.Error(msg, "error", err, "customer_id", id)
	h.writeError(w, http.StatusInternalServerError, "internal server error")
}

func (h *Handler) writeValidation(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "missing or invalid fields", "fields": verr.Fields})
		return
	}
	h.writeError(w, http.StatusBadRequest, err.Error())
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
