// Package disbursement holds the lifecycle model for payable claims: the
// request entity, the declarative transition table and the guard that
// authorizes transitions. Everything here is side-effect-free; persistence
// lives in the store subpackage and orchestration in service.
package disbursement

import (
	"time"

	id "gestionale/pkg/domain"
)

// Kind distinguishes the two request variants. They share the lifecycle shape
// but differ in which actions exist and which transitions notify the owner.
type Kind string

const (
	KindCompensation  Kind = "compensation"
	KindReimbursement Kind = "reimbursement"
)

// ParseTableSelector maps the wire-level table selector to a Kind.
func ParseTableSelector(selector string) (Kind, bool) {
	switch selector {
	case "compensations":
		return KindCompensation, true
	case "expenses":
		return KindReimbursement, true
	}
	return "", false
}

// State is a lifecycle state. Values are the persisted enum strings.
type State string

const (
	StateBozza     State = "bozza"
	StateInAttesa  State = "in_attesa"
	StateApprovato State = "approvato"
	StateRifiutato State = "rifiutato"
	StateLiquidato State = "liquidato"
)

// Valid reports whether s is one of the defined enum values.
func (s State) Valid() bool {
	switch s {
	case StateBozza, StateInAttesa, StateApprovato, StateRifiutato, StateLiquidato:
		return true
	}
	return false
}

// Action is a named lifecycle transition trigger.
type Action string

const (
	ActionSubmit         Action = "submit"
	ActionReopen         Action = "reopen"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionMarkLiquidated Action = "mark_liquidated"
)

// Request is one payable claim by a collaborator. Compensation requests carry
// gross/net amounts and an optional community; expense reimbursements carry a
// single amount and no community. Amounts are euro cents, currency is
// implicitly EUR.
type Request struct {
	ID        id.RequestID
	Kind      Kind
	OwnerID   id.PersonID
	Community *id.CommunityID

	GrossAmountCents int64
	NetAmountCents   int64
	Category         string
	Description      string

	State            State
	RejectionReason  *string
	IntegrationNote  *string
	ApprovedBy       *id.PersonID
	ApprovedAt       *time.Time
	PaymentReference *string
	PaidAt           *time.Time
	PaidBy           *id.PersonID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Extra carries optional action-specific data supplied by the caller.
type Extra struct {
	Note             string
	PaymentReference *string
}

// ApplyMutation returns a copy of req moved to the action's target state with
// action-specific fields populated. It must only be called after the guard
// allowed the action; unknown actions leave the request unchanged.
func ApplyMutation(req Request, action Action, actor id.PersonID, extra Extra, now time.Time) Request {
	rule, ok := RuleFor(req.Kind, action)
	if !ok {
		return req
	}
	req.State = rule.To
	req.UpdatedAt = now

	switch action {
	case ActionApprove:
		approvedBy := actor
		approvedAt := now
		req.ApprovedBy = &approvedBy
		req.ApprovedAt = &approvedAt
	case ActionReject:
		note := extra.Note
		req.RejectionReason = &note
		// A rejected request keeps no trace of a contradicted approval.
		req.ApprovedBy = nil
		req.ApprovedAt = nil
		if req.Kind == KindCompensation {
			req.IntegrationNote = nil
		}
	case ActionMarkLiquidated:
		paidAt := now
		paidBy := actor
		req.PaidAt = &paidAt
		req.PaidBy = &paidBy
		req.PaymentReference = extra.PaymentReference
	}
	return req
}
