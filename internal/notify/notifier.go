package notify

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("storefront/notify")

var (
	ErrNotConfigured = errors.New("notification channel not configured")
	ErrNoRecipients  = errors.New("no active notification recipients")
)

// Message is one staff notification. Attachment is an optional attachment
// store reference sent as a document after the text.
type Message struct {
	Text       string
	Attachment string
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Unconfigured is used when no bot token is set; every call fails with
// ErrNotConfigured so callers log it like any other delivery failure.
type Unconfigured struct{}

func (Unconfigured) Notify(context.Context, Message) error {
	return ErrNotConfigured
}
