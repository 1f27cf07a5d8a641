// Package store persists disbursement requests. Implementations must express
// every state mutation as a conditional update keyed on (id, expected state)
// so concurrent transitions surface as sentinel.ErrInvalidState instead of
// silently overwriting each other.
package store

import (
	"context"
	"time"

	"gestionale/internal/disbursement"
	id "gestionale/pkg/domain"
)

// ListFilter narrows listing queries. Zero values mean "no filter".
type ListFilter struct {
	Owner     id.PersonID
	Community id.CommunityID
	State     disbursement.State
}

// Updated identifies one row changed by a bulk operation, with the owner
// reference the notification dispatcher needs.
type Updated struct {
	ID    id.RequestID
	Owner id.PersonID
}

type Store interface {
	Create(ctx context.Context, req *disbursement.Request) error

	// Get returns sentinel.ErrNotFound for unknown ids.
	Get(ctx context.Context, kind disbursement.Kind, reqID id.RequestID) (*disbursement.Request, error)

	// Update persists req only if the stored row is still in the expected
	// state. Zero rows affected is returned as sentinel.ErrInvalidState.
	Update(ctx context.Context, req *disbursement.Request, expected disbursement.State) error

	List(ctx context.Context, kind disbursement.Kind, filter ListFilter) ([]*disbursement.Request, error)

	// ApproveAllPending moves every pending compensation in the community to
	// approvato in one conditional batch and returns the ids actually changed.
	ApproveAllPending(ctx context.Context, community id.CommunityID, approver id.PersonID, now time.Time) ([]Updated, error)

	// MarkPaid updates the subset of ids currently in approvato, setting the
	// payment fields, and returns the rows actually changed. Ineligible ids
	// are excluded, never an error.
	MarkPaid(ctx context.Context, kind disbursement.Kind, ids []id.RequestID, paymentRef *string, payer id.PersonID, now time.Time) ([]Updated, error)
}
