package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"gestionale/internal/disbursement"
	id "gestionale/pkg/domain"
	"gestionale/pkg/platform/sentinel"
)

// PostgresStore persists disbursement requests in PostgreSQL. Requests of the
// two kinds live in separate tables with the same column set; every mutation
// is a conditional UPDATE filtered on the pre-read state so lost updates are
// impossible without row locks.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func tableFor(kind disbursement.Kind) string {
	if kind == disbursement.KindReimbursement {
		return "expense_reimbursements"
	}
	return "compensations"
}

const requestColumns = `
	id, owner_id, community_id, gross_amount_cents, net_amount_cents,
	category, description, state, rejection_reason, integration_note,
	approved_by, approved_at, payment_reference, paid_at, paid_by,
	created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, req *disbursement.Request) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, tableFor(req.Kind), requestColumns)

	var community *uuid.UUID
	if req.Community != nil {
		c := uuid.UUID(*req.Community)
		community = &c
	}
	var approvedBy, paidBy *uuid.UUID
	if req.ApprovedBy != nil {
		a := uuid.UUID(*req.ApprovedBy)
		approvedBy = &a
	}
	if req.PaidBy != nil {
		p := uuid.UUID(*req.PaidBy)
		paidBy = &p
	}

	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(req.ID), uuid.UUID(req.OwnerID), community,
		req.GrossAmountCents, req.NetAmountCents,
		req.Category, req.Description, string(req.State),
		req.RejectionReason, req.IntegrationNote,
		approvedBy, req.ApprovedAt, req.PaymentReference, req.PaidAt, paidBy,
		req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert %s: %w", tableFor(req.Kind), err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, kind disbursement.Kind, reqID id.RequestID) (*disbursement.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, requestColumns, tableFor(kind))
	req, err := scanRequest(s.db.QueryRowContext(ctx, query, uuid.UUID(reqID)), kind)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", tableFor(kind), err)
	}
	return req, nil
}

// Update writes the full row conditionally on the expected state. Zero rows
// affected means another transition won the race; callers treat it exactly
// like a guard rejection.
func (s *PostgresStore) Update(ctx context.Context, req *disbursement.Request, expected disbursement.State) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			state = $3, rejection_reason = $4, integration_note = $5,
			approved_by = $6, approved_at = $7,
			payment_reference = $8, paid_at = $9, paid_by = $10,
			updated_at = $11
		WHERE id = $1 AND state = $2
	`, tableFor(req.Kind))

	var approvedBy, paidBy *uuid.UUID
	if req.ApprovedBy != nil {
		a := uuid.UUID(*req.ApprovedBy)
		approvedBy = &a
	}
	if req.PaidBy != nil {
		p := uuid.UUID(*req.PaidBy)
		paidBy = &p
	}

	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(req.ID), string(expected),
		string(req.State), req.RejectionReason, req.IntegrationNote,
		approvedBy, req.ApprovedAt,
		req.PaymentReference, req.PaidAt, paidBy,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update %s: %w", tableFor(req.Kind), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s rows affected: %w", tableFor(req.Kind), err)
	}
	if affected == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, kind disbursement.Kind, filter ListFilter) ([]*disbursement.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE 1=1`, requestColumns, tableFor(kind))
	args := []any{}
	if !filter.Owner.IsNil() {
		args = append(args, uuid.UUID(filter.Owner))
		query += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}
	if !filter.Community.IsNil() {
		args = append(args, uuid.UUID(filter.Community))
		query += fmt.Sprintf(" AND community_id = $%d", len(args))
	}
	if filter.State != "" {
		args = append(args, string(filter.State))
		query += fmt.Sprintf(" AND state = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", tableFor(kind), err)
	}
	defer rows.Close()

	var out []*disbursement.Request
	for rows.Next() {
		req, err := scanRequest(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", tableFor(kind), err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", tableFor(kind), err)
	}
	return out, nil
}

// ApproveAllPending is a single conditional batch update; rows that left
// in_attesa between selection and update simply fall out of the filter.
func (s *PostgresStore) ApproveAllPending(ctx context.Context, community id.CommunityID, approver id.PersonID, now time.Time) ([]Updated, error) {
	query := `
		UPDATE compensations
		SET state = $3, approved_by = $4, approved_at = $2, updated_at = $2
		WHERE community_id = $1 AND state = $5
		RETURNING id, owner_id
	`
	rows, err := s.db.QueryContext(ctx, query,
		uuid.UUID(community), now,
		string(disbursement.StateApprovato), uuid.UUID(approver),
		string(disbursement.StateInAttesa),
	)
	if err != nil {
		return nil, fmt.Errorf("approve all pending: %w", err)
	}
	defer rows.Close()
	return collectUpdated(rows)
}

// MarkPaid updates only the requested ids still in approvato. The caller
// compares the returned rows against the request to detect partial
// application.
func (s *PostgresStore) MarkPaid(ctx context.Context, kind disbursement.Kind, ids []id.RequestID, paymentRef *string, payer id.PersonID, now time.Time) ([]Updated, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]uuid.UUID, len(ids))
	for i, reqID := range ids {
		raw[i] = uuid.UUID(reqID)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET state = $3, paid_at = $2, paid_by = $4, payment_reference = $5, updated_at = $2
		WHERE id = ANY($1) AND state = $6
		RETURNING id, owner_id
	`, tableFor(kind))

	rows, err := s.db.QueryContext(ctx, query,
		pq.Array(raw), now,
		string(disbursement.StateLiquidato), uuid.UUID(payer), paymentRef,
		string(disbursement.StateApprovato),
	)
	if err != nil {
		return nil, fmt.Errorf("mark paid: %w", err)
	}
	defer rows.Close()
	return collectUpdated(rows)
}

func collectUpdated(rows *sql.Rows) ([]Updated, error) {
	var out []Updated
	for rows.Next() {
		var rawID, rawOwner uuid.UUID
		if err := rows.Scan(&rawID, &rawOwner); err != nil {
			return nil, fmt.Errorf("scan updated row: %w", err)
		}
		out = append(out, Updated{ID: id.RequestID(rawID), Owner: id.PersonID(rawOwner)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate updated rows: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner, kind disbursement.Kind) (*disbursement.Request, error) {
	var (
		req        disbursement.Request
		rawID      uuid.UUID
		owner      uuid.UUID
		community  *uuid.UUID
		state      string
		approvedBy *uuid.UUID
		paidBy     *uuid.UUID
	)
	err := row.Scan(
		&rawID, &owner, &community,
		&req.GrossAmountCents, &req.NetAmountCents,
		&req.Category, &req.Description, &state,
		&req.RejectionReason, &req.IntegrationNote,
		&approvedBy, &req.ApprovedAt, &req.PaymentReference, &req.PaidAt, &paidBy,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.ID = id.RequestID(rawID)
	req.Kind = kind
	req.OwnerID = id.PersonID(owner)
	req.State = disbursement.State(state)
	if community != nil {
		c := id.CommunityID(*community)
		req.Community = &c
	}
	if approvedBy != nil {
		a := id.PersonID(*approvedBy)
		req.ApprovedBy = &a
	}
	if paidBy != nil {
		p := id.PersonID(*paidBy)
		req.PaidBy = &p
	}
	return &req, nil
}
