package domain

import "time"

const EventNotificationRequested = "notification.requested"

// NotificationRequested is queued when a staff notification should be delivered
// asynchronously by the notifier worker.
type NotificationRequested struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Text       string    `json:"text"`
	Attachment string    `json:"attachment,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func (NotificationRequested) EventType() string {
	return EventNotificationRequested
}
