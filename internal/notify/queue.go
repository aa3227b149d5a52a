package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// QueueNotifier hands notifications to the notifier worker through Kafka. A nil
// return only means the event was queued.
type QueueNotifier struct {
	publisher Publisher
	source    string
	logger    *slog.Logger
	now       func() time.Time
}

func NewQueueNotifier(publisher Publisher, source string, logger *slog.Logger) *QueueNotifier {
	return &QueueNotifier{
		publisher: publisher,
		source:    source,
		logger:    logger,
		now:       time.Now,
	}
}

func (q *QueueNotifier) Notify(ctx context.Context, msg Message) error {
	event := domain.NotificationRequested{
		ID:         uuid.New().String(),
		Source:     q.source,
		Text:       msg.Text,
		Attachment: msg.Attachment,
		Timestamp:  q.now().UTC(),
	}

	if err := q.publisher.Publish(ctx, event.ID, event); err != nil {
		return fmt.Errorf("queue notification: %w", err)
	}

	q.logger.Info("notification queued", "notification_id", event.ID, "source", event.Source)
	return nil
}
