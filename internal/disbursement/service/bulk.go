package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gestionale/internal/disbursement"
	"gestionale/internal/disbursement/store"
	"gestionale/internal/history"
	"gestionale/internal/notification"
	id "gestionale/pkg/domain"
	dErrors "gestionale/pkg/domainerrors"
)

// BulkResult reports how many of the targeted rows were actually changed.
// A count lower than requested is expected under concurrency, not a fault.
type BulkResult struct {
	UpdatedCount int
}

// ApproveAll moves every pending compensation in the community to approvato
// in one conditional batch. Zero eligible rows is a valid outcome.
func (s *Service) ApproveAll(ctx context.Context, actor id.Actor, communityID id.CommunityID) (BulkResult, error) {
	if err := s.requireCommunityAuthority(ctx, actor, communityID); err != nil {
		return BulkResult{}, err
	}

	now := s.now()
	updated, err := s.store.ApproveAllPending(ctx, communityID, actor.ID, now)
	if err != nil {
		return BulkResult{}, dErrors.Wrap(dErrors.CodeUnavailable, "failed to approve pending requests", err)
	}

	s.recordBulk(ctx, disbursement.KindCompensation, updated,
		disbursement.StateInAttesa, disbursement.StateApprovato, actor, now)
	s.metrics.AddBulkUpdated("approve_all", len(updated))

	return BulkResult{UpdatedCount: len(updated)}, nil
}

// MarkPaid liquidates the subset of the requested ids still in approvato.
// Ids in any other state are silently excluded; the returned count lets the
// caller detect partial application.
func (s *Service) MarkPaid(ctx context.Context, actor id.Actor, kind disbursement.Kind, ids []id.RequestID, paymentRef *string) (BulkResult, error) {
	if !actor.Active || actor.Role != id.RoleAmministrazione {
		return BulkResult{}, dErrors.New(dErrors.CodeForbidden, "amministrazione role required")
	}
	paymentRef, err := normalizePaymentReference(paymentRef)
	if err != nil {
		return BulkResult{}, err
	}
	if len(ids) == 0 {
		return BulkResult{}, dErrors.New(dErrors.CodeValidationFailed, "no ids supplied")
	}

	now := s.now()
	updated, err := s.store.MarkPaid(ctx, kind, ids, paymentRef, actor.ID, now)
	if err != nil {
		return BulkResult{}, dErrors.Wrap(dErrors.CodeUnavailable, "failed to mark requests paid", err)
	}

	s.recordBulk(ctx, kind, updated,
		disbursement.StateApprovato, disbursement.StateLiquidato, actor, now)
	s.metrics.AddBulkUpdated("mark_paid", len(updated))

	for _, row := range updated {
		s.dispatcher.Dispatch(ctx, notification.Transition{
			Kind:      kind,
			Action:    disbursement.ActionMarkLiquidated,
			OwnerID:   row.Owner,
			RequestID: row.ID,
		})
	}

	return BulkResult{UpdatedCount: len(updated)}, nil
}

// recordBulk appends one history entry per row actually changed, in a single
// batched insert.
func (s *Service) recordBulk(ctx context.Context, kind disbursement.Kind, updated []store.Updated, from, to disbursement.State, actor id.Actor, now time.Time) {
	if len(updated) == 0 {
		return
	}
	entries := make([]history.Entry, 0, len(updated))
	for _, row := range updated {
		previous := from
		entries = append(entries, history.Entry{
			ID:            uuid.New(),
			RequestID:     row.ID,
			Kind:          kind,
			PreviousState: &previous,
			NewState:      to,
			ChangedBy:     actor.ID,
			RoleLabel:     actor.Role.Label(),
			CreatedAt:     now,
		})
	}
	s.history.RecordBatch(ctx, entries)
}
