package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
)

// Worker delivers queued notifications. Failed deliveries are logged and the
// message is still committed; there is no retry.
type Worker struct {
	notifier Notifier
	logger   *slog.Logger
}

func NewWorker(notifier Notifier, logger *slog.Logger) *Worker {
	return &Worker{
		notifier: notifier,
		logger:   logger,
	}
}

func (w *Worker) Handle(ctx context.Context, d messaging.Delivery) error {
	if d.EventType != "" && d.EventType != domain.EventNotificationRequested {
		w.logger.Debug("ignoring event", "event_type", d.EventType, "key", d.Key)
		return nil
	}

	var event domain.NotificationRequested
	if err := json.Unmarshal(d.Payload, &event); err != nil {
		w.logger.Error("dropping malformed notification event", "error", err, "key", d.Key)
		return nil
	}

	w.logger.Info("processing notification", "notification_id", event.ID, "source", event.Source)

	if err := w.notifier.Notify(ctx, Message{Text: event.Text, Attachment: event.Attachment}); err != nil {
		w.logger.Error("failed to deliver notification", "error", err, "notification_id", event.ID)
		return nil
	}

	w.logger.Info("notification delivered", "notification_id", event.ID)
	return nil
}
