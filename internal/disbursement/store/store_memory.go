package store

import (
	"context"
	"sync"
	"time"

	"gestionale/internal/disbursement"
	id "gestionale/pkg/domain"
	"gestionale/pkg/platform/sentinel"
)

// MemoryStore is the in-memory Store used by unit tests and local runs. It
// honors the same conditional-update contract as the postgres store.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[disbursement.Kind]map[id.RequestID]disbursement.Request
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: map[disbursement.Kind]map[id.RequestID]disbursement.Request{
			disbursement.KindCompensation:  {},
			disbursement.KindReimbursement: {},
		},
	}
}

func (s *MemoryStore) Create(_ context.Context, req *disbursement.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.Kind][req.ID]; exists {
		return sentinel.ErrConflict
	}
	s.requests[req.Kind][req.ID] = *req
	return nil
}

func (s *MemoryStore) Get(_ context.Context, kind disbursement.Kind, reqID id.RequestID) (*disbursement.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[kind][reqID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := req
	return &copied, nil
}

func (s *MemoryStore) Update(_ context.Context, req *disbursement.Request, expected disbursement.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.requests[req.Kind][req.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.State != expected {
		return sentinel.ErrInvalidState
	}
	s.requests[req.Kind][req.ID] = *req
	return nil
}

func (s *MemoryStore) List(_ context.Context, kind disbursement.Kind, filter ListFilter) ([]*disbursement.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*disbursement.Request
	for _, req := range s.requests[kind] {
		if !filter.Owner.IsNil() && req.OwnerID != filter.Owner {
			continue
		}
		if !filter.Community.IsNil() && (req.Community == nil || *req.Community != filter.Community) {
			continue
		}
		if filter.State != "" && req.State != filter.State {
			continue
		}
		copied := req
		out = append(out, &copied)
	}
	return out, nil
}

func (s *MemoryStore) ApproveAllPending(_ context.Context, community id.CommunityID, approver id.PersonID, now time.Time) ([]Updated, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updated []Updated
	for reqID, req := range s.requests[disbursement.KindCompensation] {
		if req.Community == nil || *req.Community != community || req.State != disbursement.StateInAttesa {
			continue
		}
		approvedBy := approver
		approvedAt := now
		req.State = disbursement.StateApprovato
		req.ApprovedBy = &approvedBy
		req.ApprovedAt = &approvedAt
		req.UpdatedAt = now
		s.requests[disbursement.KindCompensation][reqID] = req
		updated = append(updated, Updated{ID: reqID, Owner: req.OwnerID})
	}
	return updated, nil
}

func (s *MemoryStore) MarkPaid(_ context.Context, kind disbursement.Kind, ids []id.RequestID, paymentRef *string, payer id.PersonID, now time.Time) ([]Updated, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updated []Updated
	for _, reqID := range ids {
		req, ok := s.requests[kind][reqID]
		if !ok || req.State != disbursement.StateApprovato {
			continue
		}
		paidAt := now
		paidBy := payer
		req.State = disbursement.StateLiquidato
		req.PaidAt = &paidAt
		req.PaidBy = &paidBy
		req.PaymentReference = paymentRef
		req.UpdatedAt = now
		s.requests[kind][reqID] = req
		updated = append(updated, Updated{ID: reqID, Owner: req.OwnerID})
	}
	return updated, nil
}
