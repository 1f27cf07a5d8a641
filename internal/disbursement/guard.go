package disbursement

import (
	"strings"

	id "gestionale/pkg/domain"
)

// Guard rejection reasons. These are stable strings: callers and tests match
// on them, and the service maps them to error codes.
const (
	ReasonUnknownAction = "unknown action"
	ReasonInvalidState  = "invalid state for action"
	ReasonNotAuthorized = "not authorized"
	ReasonNoteRequired  = "note required"
	ReasonOutOfScope    = "out of scope"
)

// GuardInput is everything the guard needs to evaluate an action. The granted
// set comes from the external community grant store; it is only consulted for
// community-scoped manager roles.
type GuardInput struct {
	Actor        id.Actor
	Kind         Kind
	CurrentState State
	Action       Action
	Note         string
	OwnerID      id.PersonID
	Community    *id.CommunityID
	Granted      map[id.CommunityID]bool
}

// Decision is the guard outcome. Reason is set only when Allowed is false.
type Decision struct {
	Allowed bool
	Reason  string
}

func deny(reason string) Decision { return Decision{Reason: reason} }

// Evaluate checks a requested action against the transition table, the
// permission table, ownership and community scope. It is synchronous and
// side-effect-free so it can be unit-tested without any persistence layer.
//
// Check order matters: an unknown action is reported before a state mismatch,
// a state mismatch before an authorization failure, and data requirements
// before scope.
func Evaluate(in GuardInput) Decision {
	rule, ok := RuleFor(in.Kind, in.Action)
	if !ok {
		return deny(ReasonUnknownAction)
	}

	if in.CurrentState != rule.From {
		// Also hit by the second of two racing callers: the first commit
		// moved the state, so the pre-read state no longer matches.
		return deny(ReasonInvalidState)
	}

	if !in.Actor.Active || !roleAllowed(in.Actor.Role, in.Action) {
		return deny(ReasonNotAuthorized)
	}
	if ownerOnly[in.Action] && in.Actor.ID != in.OwnerID {
		return deny(ReasonNotAuthorized)
	}

	if rule.RequiresNote && strings.TrimSpace(in.Note) == "" {
		return deny(ReasonNoteRequired)
	}

	// Community-scoped managers may only act inside their granted set.
	// Amministrazione is unscoped; requests without a community (expense
	// reimbursements) need no scope check.
	if in.Actor.Role == id.RoleResponsabileCompensi && in.Community != nil {
		if !in.Granted[*in.Community] {
			return deny(ReasonOutOfScope)
		}
	}

	return Decision{Allowed: true}
}
