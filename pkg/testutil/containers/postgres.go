//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema is the full engine schema, applied once per container. Kept inline
// so integration tests need no external migration tooling.
const schema = `
CREATE TABLE IF NOT EXISTS compensations (
	id                 UUID PRIMARY KEY,
	owner_id           UUID NOT NULL,
	community_id       UUID,
	gross_amount_cents BIGINT NOT NULL,
	net_amount_cents   BIGINT NOT NULL,
	category           TEXT NOT NULL DEFAULT '',
	description        TEXT NOT NULL DEFAULT '',
	state              TEXT NOT NULL,
	rejection_reason   TEXT,
	integration_note   TEXT,
	approved_by        UUID,
	approved_at        TIMESTAMPTZ,
	payment_reference  TEXT,
	paid_at            TIMESTAMPTZ,
	paid_by            UUID,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_compensations_owner ON compensations (owner_id);
CREATE INDEX IF NOT EXISTS idx_compensations_community_state ON compensations (community_id, state);

CREATE TABLE IF NOT EXISTS expense_reimbursements (
	id                 UUID PRIMARY KEY,
	owner_id           UUID NOT NULL,
	community_id       UUID,
	gross_amount_cents BIGINT NOT NULL,
	net_amount_cents   BIGINT NOT NULL,
	category           TEXT NOT NULL DEFAULT '',
	description        TEXT NOT NULL DEFAULT '',
	state              TEXT NOT NULL,
	rejection_reason   TEXT,
	integration_note   TEXT,
	approved_by        UUID,
	approved_at        TIMESTAMPTZ,
	payment_reference  TEXT,
	paid_at            TIMESTAMPTZ,
	paid_by            UUID,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_expense_reimbursements_owner ON expense_reimbursements (owner_id);

CREATE TABLE IF NOT EXISTS request_history (
	id             UUID PRIMARY KEY,
	request_id     UUID NOT NULL,
	entity_type    TEXT NOT NULL,
	previous_state TEXT,
	new_state      TEXT NOT NULL,
	changed_by     UUID NOT NULL,
	role_label     TEXT NOT NULL,
	note           TEXT,
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_request_history_request ON request_history (entity_type, request_id, created_at);

CREATE TABLE IF NOT EXISTS notifications (
	id           UUID PRIMARY KEY,
	recipient_id UUID NOT NULL,
	entity_type  TEXT NOT NULL,
	entity_id    UUID NOT NULL,
	kind         TEXT NOT NULL,
	title        TEXT NOT NULL,
	message      TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications (recipient_id, created_at DESC);

CREATE TABLE IF NOT EXISTS delivery_settings (
	event_kind TEXT NOT NULL,
	role       TEXT NOT NULL,
	channel    TEXT NOT NULL,
	enabled    BOOLEAN NOT NULL,
	PRIMARY KEY (event_kind, role, channel)
);

CREATE TABLE IF NOT EXISTS community_access_grants (
	person_id    UUID NOT NULL,
	community_id UUID NOT NULL,
	PRIMARY KEY (person_id, community_id)
);
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// engine schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new PostgreSQL container and applies the
// schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("gestionale_test"),
		tcpostgres.WithUsername("gestionale"),
		tcpostgres.WithPassword("gestionale"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	// Cleanup is handled by Ryuk; the container is shared across suites via
	// the singleton Manager.

	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// TruncateTables empties the given tables. Use between tests to ensure
// isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", strings.Join(tables, ", ")))
	return err
}
