package notification

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gestionale/internal/disbursement"
	id "gestionale/pkg/domain"
)

// PostgresInbox is the in-app channel sink: payloads land in the
// notifications table the front end reads from.
type PostgresInbox struct {
	db *sql.DB
}

func NewPostgresInbox(db *sql.DB) *PostgresInbox {
	return &PostgresInbox{db: db}
}

func (s *PostgresInbox) Deliver(ctx context.Context, payload Payload) error {
	query := `
		INSERT INTO notifications (id, recipient_id, entity_type, entity_id, kind, title, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		uuid.UUID(payload.Recipient),
		string(payload.EntityType),
		uuid.UUID(payload.EntityID),
		payload.Kind,
		payload.Title,
		payload.Message,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListByRecipient returns a person's in-app notifications, newest first.
func (s *PostgresInbox) ListByRecipient(ctx context.Context, recipient id.PersonID, limit int) ([]Payload, error) {
	query := `
		SELECT recipient_id, entity_type, entity_id, kind, title, message
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(recipient), limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []Payload
	for rows.Next() {
		var (
			payload    Payload
			recipientU uuid.UUID
			entityType string
			entityU    uuid.UUID
		)
		if err := rows.Scan(&recipientU, &entityType, &entityU, &payload.Kind, &payload.Title, &payload.Message); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		payload.Recipient = id.PersonID(recipientU)
		payload.EntityType = disbursement.Kind(entityType)
		payload.EntityID = id.RequestID(entityU)
		out = append(out, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}
