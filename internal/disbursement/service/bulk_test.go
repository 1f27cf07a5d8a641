package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gestionale/internal/disbursement"
	id "gestionale/pkg/domain"
	dErrors "gestionale/pkg/domainerrors"
)

func TestApproveAll(t *testing.T) {
	ctx := context.Background()

	t.Run("only pending rows change", func(t *testing.T) {
		f := newFixture(t)
		comm := id.CommunityID(uuid.New())
		boss := admin()

		var pending []*disbursement.Request
		for range 3 {
			pending = append(pending, f.seed(t, disbursement.KindCompensation, collaborator().ID, disbursement.StateInAttesa, &comm))
		}
		already := f.seed(t, disbursement.KindCompensation, collaborator().ID, disbursement.StateApprovato, &comm)
		f.seed(t, disbursement.KindCompensation, collaborator().ID, disbursement.StateRifiutato, &comm)
		// A pending row in another community stays untouched.
		elsewhere := id.CommunityID(uuid.New())
		outside := f.seed(t, disbursement.KindCompensation, collaborator().ID, disbursement.StateInAttesa, &elsewhere)

		result, err := f.service.ApproveAll(ctx, boss, comm)
		require.NoError(t, err)
		assert.Equal(t, 3, result.UpdatedCount)

		for _, req := range pending {
			stored, err := f.requests.Get(ctx, req.Kind, req.ID)
			require.NoError(t, err)
			assert.Equal(t, disbursement.StateApprovato, stored.State)
			assert.Equal(t, boss.ID, *stored.ApprovedBy)
		}
		untouched, err := f.requests.Get(ctx, outside.Kind, outside.ID)
		require.NoError(t, err)
		assert.Equal(t, disbursement.StateInAttesa, untouched.State)

		entries := f.hist.All()
		require.Len(t, entries, 3)
		for _, entry := range entries {
			assert.Equal(t, disbursement.StateInAttesa, *entry.PreviousState)
			assert.Equal(t, disbursement.StateApprovato, entry.NewState)
		}
		// already-approved rows keep no second approval
		stored, err := f.requests.Get(ctx, already.Kind, already.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.ApprovedBy)
	})

	t.Run("zero eligible rows succeeds", func(t *testing.T) {
		f := newFixture(t)
		result, err := f.service.ApproveAll(ctx, admin(), id.CommunityID(uuid.New()))
		require.NoError(t, err)
		assert.Zero(t, result.UpdatedCount)
		assert.Empty(t, f.hist.All())
	})

	t.Run("responsabile needs the community grant", func(t *testing.T) {
		f := newFixture(t)
		comm := id.CommunityID(uuid.New())
		boss := manager()

		_, err := f.service.ApproveAll(ctx, boss, comm)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

		f.grants.Grant(boss.ID, comm)
		_, err = f.service.ApproveAll(ctx, boss, comm)
		require.NoError(t, err)
	})

	t.Run("collaborators are refused", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.ApproveAll(ctx, collaborator(), id.CommunityID(uuid.New()))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestMarkPaid(t *testing.T) {
	ctx := context.Background()

	t.Run("ineligible ids are skipped without error", func(t *testing.T) {
		f := newFixture(t)
		boss := admin()
		owner := collaborator()
		eligible := f.seed(t, disbursement.KindReimbursement, owner.ID, disbursement.StateApprovato, nil)
		pending := f.seed(t, disbursement.KindReimbursement, owner.ID, disbursement.StateInAttesa, nil)

		ref := "SEPA-2026-118"
		result, err := f.service.MarkPaid(ctx, boss, disbursement.KindReimbursement,
			[]id.RequestID{eligible.ID, pending.ID}, &ref)
		require.NoError(t, err)
		assert.Equal(t, 1, result.UpdatedCount)

		paid, err := f.requests.Get(ctx, eligible.Kind, eligible.ID)
		require.NoError(t, err)
		assert.Equal(t, disbursement.StateLiquidato, paid.State)
		assert.Equal(t, ref, *paid.PaymentReference)
		require.NotNil(t, paid.PaidAt)
		assert.Equal(t, boss.ID, *paid.PaidBy)

		skipped, err := f.requests.Get(ctx, pending.Kind, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, disbursement.StateInAttesa, skipped.State)
		assert.Nil(t, skipped.PaymentReference)

		entries := f.hist.All()
		require.Len(t, entries, 1)
		assert.Equal(t, eligible.ID, entries[0].RequestID)
		assert.Equal(t, disbursement.StateApprovato, *entries[0].PreviousState)
		assert.Equal(t, disbursement.StateLiquidato, entries[0].NewState)

		delivered := f.inApp.Delivered()
		require.Len(t, delivered, 1)
		assert.Equal(t, owner.ID, delivered[0].Recipient)
		assert.Equal(t, "reimbursement_liquidated", delivered[0].Kind)
	})

	t.Run("non-amministrazione is refused", func(t *testing.T) {
		f := newFixture(t)
		req := f.seed(t, disbursement.KindCompensation, collaborator().ID, disbursement.StateApprovato, nil)
		_, err := f.service.MarkPaid(ctx, manager(), req.Kind, []id.RequestID{req.ID}, nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("empty id list is a validation error", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.MarkPaid(ctx, admin(), disbursement.KindCompensation, nil, nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidationFailed))
	})

	t.Run("oversized payment reference is refused before any write", func(t *testing.T) {
		f := newFixture(t)
		req := f.seed(t, disbursement.KindCompensation, collaborator().ID, disbursement.StateApprovato, nil)
		ref := strings.Repeat("R", maxPaymentReferenceLen+1)
		_, err := f.service.MarkPaid(ctx, admin(), req.Kind, []id.RequestID{req.ID}, &ref)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidationFailed))

		stored, err := f.requests.Get(ctx, req.Kind, req.ID)
		require.NoError(t, err)
		assert.Equal(t, disbursement.StateApprovato, stored.State)
	})
}
