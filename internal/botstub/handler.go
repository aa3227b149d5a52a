// Package botstub fakes the subset of the messaging bot API the notifier
// uses, so staff notifications can be exercised locally.
package botstub

import (
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"
)

// maxKept bounds the in-memory message log.
const maxKept = 100

type Received struct {
	Method     string    `json:"method"`
	ChatID     string    `json:"chat_id"`
	Text       string    `json:"text,omitempty"`
	ParseMode  string    `json:"parse_mode,omitempty"`
	Document   string    `json:"document,omitempty"`
	Size       int64     `json:"size,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

type Handler struct {
	token      string
	failChats  []string
	maxLatency time.Duration
	logger     *slog.Logger

	mu       sync.Mutex
	received []Received
}

// NewHandler accepts requests for token only. Chats listed in failChats are
// rejected the way the real API rejects a blocked bot.
func NewHandler(token string, failChats []string, maxLatency time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		token:      token,
		failChats:  failChats,
		maxLatency: maxLatency,
		logger:     logger,
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// HandleMethod serves POST /{bot}/{method} where bot is "bot" + token.
func (h *Handler) HandleMethod(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("bot") != "bot"+h.token {
		h.writeJSON(w, http.StatusUnauthorized, apiResponse{Description: "Unauthorized"})
		return
	}

	var (
		rec Received
		err error
	)
	switch method := r.PathValue("method"); method {
	case "sendMessage":
		rec, err = h.decodeMessage(r)
	case "sendDocument":
		rec, err = h.decodeDocument(r)
	default:
		h.writeJSON(w, http.StatusNotFound, apiResponse{Description: "Not Found: method " + method})
		return
	}
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, apiResponse{Description: "Bad Request: " + err.Error()})
		return
	}
	if rec.ChatID == "" {
		h.writeJSON(w, http.StatusBadRequest, apiResponse{Description: "Bad Request: chat_id is empty"})
		return
	}

	h.simulateLatency()

	if slices.Contains(h.failChats, rec.ChatID) {
		h.logger.Warn("bot request rejected", "method", rec.Method, "chat_id", rec.ChatID)
		h.writeJSON(w, http.StatusForbidden, apiResponse{Description: "Forbidden: bot was blocked by the user"})
		return
	}

	rec.ReceivedAt = time.Now().UTC()
	h.keep(rec)
	h.logger.Info("bot message received", "method", rec.Method, "chat_id", rec.ChatID, "text", rec.Text, "document", rec.Document)

	h.writeJSON(w, http.StatusOK, apiResponse{OK: true})
}

// HandleList returns the kept messages, oldest first.
func (h *Handler) HandleList(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Received())
}

func (h *Handler) Received() []Received {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.received)
}

func (h *Handler) decodeMessage(r *http.Request) (Received, error) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return Received{}, err
	}
	return Received{
		Method:    "sendMessage",
		ChatID:    strings.TrimSpace(req.ChatID),
		Text:      req.Text,
		ParseMode: req.ParseMode,
	}, nil
}

func (h *Handler) decodeDocument(r *http.Request) (Received, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return Received{}, err
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		return Received{}, err
	}
	defer func() { _ = file.Close() }()

	size, err := io.Copy(io.Discard, file)
	if err != nil {
		return Received{}, err
	}
	return Received{
		Method:   "sendDocument",
		ChatID:   strings.TrimSpace(r.FormValue("chat_id")),
		Document: header.Filename,
		Size:     size,
	}, nil
}

func (h *Handler) keep(rec Received) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, rec)
	if len(h.received) > maxKept {
		h.received = h.received[len(h.received)-maxKept:]
	}
}

func (h *Handler) simulateLatency() {
	if h.maxLatency <= 0 {
		return
	}
	time.Sleep(time.Duration(rand.Int63n(int64(h.maxLatency))))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
