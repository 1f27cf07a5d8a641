// Package community exposes the externally owned mapping of manager-role
// people to the communities they may act on. The engine consumes it
// read-only to scope visibility and authority.
package community

import (
	"context"
	"sync"

	id "gestionale/pkg/domain"
)

// GrantStore looks up the communities granted to a person.
type GrantStore interface {
	Communities(ctx context.Context, person id.PersonID) (map[id.CommunityID]bool, error)
}

// MemoryGrants is the in-memory GrantStore for tests and local runs.
type MemoryGrants struct {
	mu     sync.RWMutex
	grants map[id.PersonID]map[id.CommunityID]bool
}

func NewMemoryGrants() *MemoryGrants {
	return &MemoryGrants{grants: make(map[id.PersonID]map[id.CommunityID]bool)}
}

func (s *MemoryGrants) Grant(person id.PersonID, communities ...id.CommunityID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grants[person] == nil {
		s.grants[person] = make(map[id.CommunityID]bool)
	}
	for _, c := range communities {
		s.grants[person][c] = true
	}
}

func (s *MemoryGrants) Communities(_ context.Context, person id.PersonID) (map[id.CommunityID]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.CommunityID]bool, len(s.grants[person]))
	for c := range s.grants[person] {
		out[c] = true
	}
	return out, nil
}
