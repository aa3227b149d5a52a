package notify

import (
	"context"
	"database/sql"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type RecipientSource interface {
	// Recipients returns the chats that should receive order and digest
	// notifications.
	Recipients(ctx context.Context) ([]domain.Recipient, error)
}

// StaticRecipients serves a fixed chat id list, typically from configuration.
type StaticRecipients []string

func (s StaticRecipients) Recipients(context.Context) ([]domain.Recipient, error) {
	out := make([]domain.Recipient, 0, len(s))
	for _, id := range s {
		if id == "" {
			continue
		}
		out = append(out, domain.Recipient{ChatID: id, Active: true, NotifyOrders: true})
	}
	return out, nil
}

// RecipientRepository reads staff chats registered in telegram_managers.
type RecipientRepository struct {
	db *sql.DB
}

func NewRecipientRepository(db *sql.DB) *RecipientRepository {
	return &RecipientRepository{db: db}
}

func (r *RecipientRepository) Recipients(ctx context.Context) ([]domain.Recipient, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT chat_id, name, is_active, notify_orders
		FROM telegram_managers
		WHERE is_active AND notify_orders
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var recipients []domain.Recipient
	for rows.Next() {
		var rc domain.Recipient
		if err := rows.Scan(&rc.ChatID, &rc.Name, &rc.Active, &rc.NotifyOrders); err != nil {
			return nil, err
		}
		recipients = append(recipients, rc)
	}

	return recipients, rows.Err()
}
