package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gestionale/internal/disbursement"
	id "gestionale/pkg/domain"
	"gestionale/pkg/platform/sentinel"
)

func seedRequest(t *testing.T, s *MemoryStore, kind disbursement.Kind, state disbursement.State, comm *id.CommunityID) *disbursement.Request {
	t.Helper()
	now := time.Date(2026, time.March, 14, 10, 30, 0, 0, time.UTC)
	req := &disbursement.Request{
		ID:               id.NewRequestID(),
		Kind:             kind,
		OwnerID:          id.PersonID(uuid.New()),
		Community:        comm,
		GrossAmountCents: 5000,
		NetAmountCents:   4000,
		State:            state,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, s.Create(context.Background(), req))
	return req
}

func TestMemoryStore_ConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	req := seedRequest(t, s, disbursement.KindCompensation, disbursement.StateInAttesa, nil)

	t.Run("matching expected state commits", func(t *testing.T) {
		changed := *req
		changed.State = disbursement.StateApprovato
		require.NoError(t, s.Update(ctx, &changed, disbursement.StateInAttesa))

		got, err := s.Get(ctx, req.Kind, req.ID)
		require.NoError(t, err)
		assert.Equal(t, disbursement.StateApprovato, got.State)
	})

	t.Run("stale expected state is refused", func(t *testing.T) {
		changed := *req
		changed.State = disbursement.StateRifiutato
		err := s.Update(ctx, &changed, disbursement.StateInAttesa)
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)

		got, err := s.Get(ctx, req.Kind, req.ID)
		require.NoError(t, err)
		assert.Equal(t, disbursement.StateApprovato, got.State, "refused update leaves the row untouched")
	})

	t.Run("unknown id", func(t *testing.T) {
		missing := *req
		missing.ID = id.NewRequestID()
		err := s.Update(ctx, &missing, disbursement.StateInAttesa)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	req := seedRequest(t, s, disbursement.KindReimbursement, disbursement.StateBozza, nil)

	t.Run("duplicate id conflicts", func(t *testing.T) {
		assert.ErrorIs(t, s.Create(ctx, req), sentinel.ErrConflict)
	})

	t.Run("kinds are separate tables", func(t *testing.T) {
		_, err := s.Get(ctx, disbursement.KindCompensation, req.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("get returns a copy", func(t *testing.T) {
		got, err := s.Get(ctx, req.Kind, req.ID)
		require.NoError(t, err)
		got.State = disbursement.StateLiquidato

		again, err := s.Get(ctx, req.Kind, req.ID)
		require.NoError(t, err)
		assert.Equal(t, disbursement.StateBozza, again.State)
	})
}

func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	comm := id.CommunityID(uuid.New())
	inComm := seedRequest(t, s, disbursement.KindCompensation, disbursement.StateInAttesa, &comm)
	seedRequest(t, s, disbursement.KindCompensation, disbursement.StateApprovato, &comm)
	seedRequest(t, s, disbursement.KindCompensation, disbursement.StateInAttesa, nil)

	t.Run("by owner", func(t *testing.T) {
		out, err := s.List(ctx, disbursement.KindCompensation, ListFilter{Owner: inComm.OwnerID})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, inComm.ID, out[0].ID)
	})

	t.Run("by community and state", func(t *testing.T) {
		out, err := s.List(ctx, disbursement.KindCompensation, ListFilter{Community: comm, State: disbursement.StateInAttesa})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, inComm.ID, out[0].ID)
	})

	t.Run("no filter returns the kind", func(t *testing.T) {
		out, err := s.List(ctx, disbursement.KindCompensation, ListFilter{})
		require.NoError(t, err)
		assert.Len(t, out, 3)
	})
}

func TestMemoryStore_MarkPaidRequiresApprovato(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	approved := seedRequest(t, s, disbursement.KindCompensation, disbursement.StateApprovato, nil)
	pending := seedRequest(t, s, disbursement.KindCompensation, disbursement.StateInAttesa, nil)

	payer := id.PersonID(uuid.New())
	ref := "SEPA-42"
	now := time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)

	updated, err := s.MarkPaid(ctx, disbursement.KindCompensation,
		[]id.RequestID{approved.ID, pending.ID, id.NewRequestID()}, &ref, payer, now)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, approved.ID, updated[0].ID)
	assert.Equal(t, approved.OwnerID, updated[0].Owner)

	paid, err := s.Get(ctx, disbursement.KindCompensation, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, disbursement.StateLiquidato, paid.State)
	assert.Equal(t, now, *paid.PaidAt)
	assert.Equal(t, payer, *paid.PaidBy)
}
