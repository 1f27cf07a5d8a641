package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"gestionale/internal/disbursement"
	id "gestionale/pkg/domain"
)

// PostgresStore appends history rows to the request_history table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const insertColumns = `id, request_id, entity_type, previous_state, new_state, changed_by, role_label, note, created_at`

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	query := fmt.Sprintf(`
		INSERT INTO request_history (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, insertColumns)

	_, err := s.db.ExecContext(ctx, query, entryArgs(entry)...)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// AppendBatch inserts all entries in a single multi-row statement so bulk
// operations do one round trip for their audit rows.
func (s *PostgresStore) AppendBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(entries))
	args := make([]any, 0, len(entries)*9)
	for i, entry := range entries {
		base := i * 9
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args, entryArgs(entry)...)
	}

	query := fmt.Sprintf(`INSERT INTO request_history (%s) VALUES %s`,
		insertColumns, strings.Join(placeholders, ", "))

	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert history batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByRequest(ctx context.Context, kind disbursement.Kind, reqID id.RequestID) ([]Entry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM request_history
		WHERE entity_type = $1 AND request_id = $2
		ORDER BY created_at ASC
	`, insertColumns)

	rows, err := s.db.QueryContext(ctx, query, string(kind), uuid.UUID(reqID))
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			entry     Entry
			requestID uuid.UUID
			kindRaw   string
			previous  *string
			newState  string
			changedBy uuid.UUID
		)
		err := rows.Scan(
			&entry.ID, &requestID, &kindRaw, &previous, &newState,
			&changedBy, &entry.RoleLabel, &entry.Note, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entry.RequestID = id.RequestID(requestID)
		entry.Kind = disbursement.Kind(kindRaw)
		entry.NewState = disbursement.State(newState)
		entry.ChangedBy = id.PersonID(changedBy)
		if previous != nil {
			prev := disbursement.State(*previous)
			entry.PreviousState = &prev
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

func entryArgs(entry Entry) []any {
	var previous *string
	if entry.PreviousState != nil {
		p := string(*entry.PreviousState)
		previous = &p
	}
	return []any{
		entry.ID,
		uuid.UUID(entry.RequestID),
		string(entry.Kind),
		previous,
		string(entry.NewState),
		uuid.UUID(entry.ChangedBy),
		entry.RoleLabel,
		entry.Note,
		entry.CreatedAt,
	}
}
