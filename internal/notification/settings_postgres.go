package notification

import (
	"context"
	"database/sql"
	"fmt"

	id "gestionale/pkg/domain"
)

// PostgresSettings reads delivery settings from the delivery_settings table.
// Absence of a row means the channel is enabled; people only store opt-outs.
type PostgresSettings struct {
	db *sql.DB
}

func NewPostgresSettings(db *sql.DB) *PostgresSettings {
	return &PostgresSettings{db: db}
}

func (s *PostgresSettings) Enabled(ctx context.Context, eventKind string, role id.Role, channel Channel) (bool, error) {
	query := `
		SELECT enabled FROM delivery_settings
		WHERE event_kind = $1 AND role = $2 AND channel = $3
	`
	var enabled bool
	err := s.db.QueryRowContext(ctx, query, eventKind, string(role), string(channel)).Scan(&enabled)
	if err != nil {
		if err == sql.ErrNoRows {
			return true, nil
		}
		return false, fmt.Errorf("get delivery setting: %w", err)
	}
	return enabled, nil
}
