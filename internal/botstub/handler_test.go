package botstub

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/joao-fontenele/storefront/internal/attachments"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

func newServer(t *testing.T, failChats ...string) (*Handler, *httptest.Server) {
	t.Helper()
	h := NewHandler("secret", failChats, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /{bot}/{method}", h.HandleMethod)
	mux.HandleFunc("GET /messages", h.HandleList)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return h, srv
}

func post(t *testing.T, url, body string) (int, apiResponse) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHandleMethod(t *testing.T) {
	h, srv := newServer(t, "666")

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{name: "accepted", path: "/botsecret/sendMessage", body: `{"chat_id":"1","text":"<b>hi</b>","parse_mode":"HTML"}`, status: http.StatusOK},
		{name: "wrong token", path: "/botother/sendMessage", body: `{"chat_id":"1","text":"x"}`, status: http.StatusUnauthorized},
		{name: "unknown method", path: "/botsecret/getMe", body: `{}`, status: http.StatusNotFound},
		{name: "missing chat", path: "/botsecret/sendMessage", body: `{"text":"x"}`, status: http.StatusBadRequest},
		{name: "malformed", path: "/botsecret/sendMessage", body: `{`, status: http.StatusBadRequest},
		{name: "blocked chat", path: "/botsecret/sendMessage", body: `{"chat_id":"666","text":"x"}`, status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := post(t, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.status == http.StatusOK, out.OK)
		})
	}

	received := h.Received()
	require.Len(t, received, 1)
	assert.Equal(t, "1", received[0].ChatID)
	assert.Equal(t, "HTML", received[0].ParseMode)
}

func TestBotClientAgainstStub(t *testing.T) {
	h, srv := newServer(t, "200")

	store, err := attachments.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ref, err := store.Save(context.Background(), "check.pdf", strings.NewReader("pdf-bytes"))
	require.NoError(t, err)

	metrics, err := telemetry.NewStoreMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	client := notify.NewBotClient(
		notify.BotConfig{APIURL: srv.URL, Token: "secret"},
		notify.StaticRecipients{"100", "200"},
		store,
		srv.Client(),
		metrics,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	require.NoError(t, client.Notify(context.Background(), notify.Message{Text: "new order", Attachment: ref}))

	received := h.Received()
	require.Len(t, received, 2)
	assert.Equal(t, "sendMessage", received[0].Method)
	assert.Equal(t, "new order", received[0].Text)
	assert.Equal(t, "sendDocument", received[1].Method)
	assert.Equal(t, "100", received[1].ChatID)
	assert.Equal(t, int64(len("pdf-bytes")), received[1].Size)

	err = notify.NewBotClient(
		notify.BotConfig{APIURL: srv.URL, Token: "secret"},
		notify.StaticRecipients{"200"},
		nil,
		srv.Client(),
		metrics,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	).Notify(context.Background(), notify.Message{Text: "x"})

	var derr *domain.NotificationDeliveryError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, 1, derr.Recipients)
}

func TestHandleList(t *testing.T) {
	_, srv := newServer(t)
	post(t, srv.URL+"/botsecret/sendMessage", `{"chat_id":"7","text":"one"}`)

	resp, err := http.Get(srv.URL + "/messages")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var got []Received
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0].Text)
}
