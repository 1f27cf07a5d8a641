package community

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "gestionale/pkg/domain"
)

// PostgresGrants reads community access grants from the
// community_access_grants table.
type PostgresGrants struct {
	db *sql.DB
}

func NewPostgresGrants(db *sql.DB) *PostgresGrants {
	return &PostgresGrants{db: db}
}

func (s *PostgresGrants) Communities(ctx context.Context, person id.PersonID) (map[id.CommunityID]bool, error) {
	query := `SELECT community_id FROM community_access_grants WHERE person_id = $1`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(person))
	if err != nil {
		return nil, fmt.Errorf("query community grants: %w", err)
	}
	defer rows.Close()

	out := make(map[id.CommunityID]bool)
	for rows.Next() {
		var community uuid.UUID
		if err := rows.Scan(&community); err != nil {
			return nil, fmt.Errorf("scan community grant: %w", err)
		}
		out[id.CommunityID(community)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate community grants: %w", err)
	}
	return out, nil
}
