// internal/store/recipients.go
package store

import (
	"context"

	"intake-bot/internal/common/database"
	stderrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/models"
)

// RecipientStore reads the escalation roster.
type RecipientStore struct {
	db  *database.PostgresClient
	log logger.Logger
}

func NewRecipientStore(db *database.PostgresClient, log logger.Logger) *RecipientStore {
	return &RecipientStore{db: db, log: log}
}

// ListActive returns all recipients currently enrolled for escalations.
func (s *RecipientStore) ListActive(ctx context.Context) ([]models.Recipient, error) {
	query := `
		SELECT id, name, chat_id, COALESCE(email, ''), COALESCE(phone, ''), high_priority, active
		FROM recipients
		WHERE active = TRUE
		ORDER BY name ASC`

	rows, err := s.db.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("list recipients", err)
	}
	defer rows.Close()

	var recipients []models.Recipient
	for rows.Next() {
		var r models.Recipient
		if err := rows.Scan(&r.ID, &r.Name, &r.ChatID, &r.Email, &r.Phone, &r.HighPriority, &r.Active); err != nil {
			return nil, stderrors.NewQueryExecutionFailedError("scan recipient", err)
		}
		recipients = append(recipients, r)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("list recipients", err)
	}
	return recipients, nil
}

// RecordNotification stores a delivery attempt for auditing.
func (s *RecipientStore) RecordNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, recipient_id, type, channel, status, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.DB.ExecContext(ctx, query, n.ID, n.RecipientID, n.Type, n.Channel, n.Status, n.SentAt)
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("record notification", err)
	}
	return nil
}
