package checkout

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/domain"
)

// MaxReceiptSize bounds the multipart body accepted by HandleCheckout.
const MaxReceiptSize = 10 << 20

type Handler struct {
	service  *Service
	sessions *cart.SessionStore
	logger   *slog.Logger
}

func NewHandler(service *Service, sessions *cart.SessionStore, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		sessions: sessions,
		logger:   logger,
	}
}

type checkoutResponse struct {
	OrderID  string             `json:"order_id"`
	Status   domain.OrderStatus `json:"status"`
	Total    decimal.Decimal    `json:"total"`
	Notified bool               `json:"notified"`
}

type validationResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
}

// HandleCheckout accepts a JSON body or a multipart form with an optional
// "receipt" file. The session cart is cleared only after the order is stored,
// and before the response body is written.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	req, err := h.decode(w, r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Receipt != nil {
		if closer, ok := req.Receipt.Body.(io.Closer); ok {
			defer func() { _ = closer.Close() }()
		}
	}

	c, err := h.sessions.Load(r)
	if err != nil {
		h.logger.Warn("discarding unreadable cart session", "error", err)
	}

	result, err := h.service.Place(r.Context(), c, req)
	if err != nil {
		var verr *domain.ValidationError
		var perr *domain.PersistenceError
		switch {
		case errors.Is(err, ErrEmptyCart):
			h.writeError(w, http.StatusBadRequest, "cart is empty")
		case errors.As(err, &verr):
			h.writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Error: "missing or invalid fields", Fields: verr.Fields})
		case errors.As(err, &perr):
			h.logger.Error("failed to persist order", "error", err)
			h.writeError(w, http.StatusInternalServerError, "could not place order, please retry")
		default:
			h.logger.Error("checkout failed", "error", err)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	if err := h.sessions.Clear(w, r); err != nil {
		h.logger.Error("failed to clear cart after checkout", "error", err, "order_id", result.Order.ID)
	}

	h.writeJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:  result.Order.ID,
		Status:   result.Order.Status,
		Total:    result.Order.Total,
		Notified: result.Notified,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Request, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, MaxReceiptSize)
		if mediaType == "multipart/form-data" {
			if err := r.ParseMultipartForm(MaxReceiptSize); err != nil {
				return Request{}, err
			}
		} else if err := r.ParseForm(); err != nil {
			return Request{}, err
		}

		req := Request{
			Name:          r.FormValue("name"),
			Phone:         r.FormValue("phone"),
			Address:       r.FormValue("address"),
			DeliveryMode:  domain.DeliveryMode(r.FormValue("delivery_mode")),
			Comment:       r.FormValue("comment"),
			PaymentMethod: domain.PaymentMethod(r.FormValue("payment_method")),
		}

		if r.MultipartForm != nil {
			if files := r.MultipartForm.File["receipt"]; len(files) > 0 {
				f, err := files[0].Open()
				if err != nil {
					return Request{}, err
				}
				req.Receipt = &Receipt{Filename: files[0].Filename, Body: f}
			}
		}
		return req, nil

	default:
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return Request{}, err
		}
		return req, nil
	}
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
