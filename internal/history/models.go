// Package history is the append-only audit trail of the lifecycle engine.
// One entry is written per realized transition, including the initial
// creation (recorded with a null previous state). Entries are never updated
// or deleted.
package history

import (
	"time"

	"github.com/google/uuid"

	"gestionale/internal/disbursement"
	id "gestionale/pkg/domain"
)

// Entry is one immutable audit row.
type Entry struct {
	ID            uuid.UUID           `json:"id"`
	RequestID     id.RequestID        `json:"request_id"`
	Kind          disbursement.Kind   `json:"entity_type"`
	PreviousState *disbursement.State `json:"previous_state"`
	NewState      disbursement.State  `json:"new_state"`
	ChangedBy     id.PersonID         `json:"changed_by"`
	RoleLabel     string              `json:"role_label"`
	Note          *string             `json:"note"`
	CreatedAt     time.Time           `json:"created_at"`
}

// NewEntry builds an entry for a realized transition. previous is nil for the
// creation entry.
func NewEntry(req *disbursement.Request, previous *disbursement.State, actor id.Actor, note *string, now time.Time) Entry {
	return Entry{
		ID:            uuid.New(),
		RequestID:     req.ID,
		Kind:          req.Kind,
		PreviousState: previous,
		NewState:      req.State,
		ChangedBy:     actor.ID,
		RoleLabel:     actor.Role.Label(),
		Note:          note,
		CreatedAt:     now,
	}
}
