// Package notification turns realized transitions into messages for the
// owning collaborator. Which transitions notify is a fixed per-kind
// allowlist; whether a built payload is actually delivered on a channel is
// decided by the external delivery-settings lookup.
package notification

import (
	"gestionale/internal/disbursement"
	id "gestionale/pkg/domain"
)

// Channel is a delivery channel for a payload.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
)

// Payload is the ephemeral output of the dispatcher. Once handed to a sink
// it is owned by the delivery side.
type Payload struct {
	Recipient  id.PersonID       `json:"recipient"`
	EntityType disbursement.Kind `json:"entity_type"`
	EntityID   id.RequestID      `json:"entity_id"`
	Kind       string            `json:"kind"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
}

// template fixes the event kind, title and fallback message for one
// (entity kind, action) pair.
type template struct {
	EventKind      string
	Title          string
	DefaultMessage string
}

// allowlist is the fixed set of transitions that notify the owner. Approval
// of a compensation is deliberately absent: collaborators only hear about
// compensations when something needs their attention or money moved.
// Reopen never notifies; the owner triggered it themselves.
var allowlist = map[disbursement.Kind]map[disbursement.Action]template{
	disbursement.KindCompensation: {
		disbursement.ActionReject: {
			EventKind:      "compensation_rejected",
			Title:          "Compenso rifiutato",
			DefaultMessage: "La tua richiesta di compenso è stata rifiutata.",
		},
		disbursement.ActionMarkLiquidated: {
			EventKind:      "compensation_liquidated",
			Title:          "Compenso liquidato",
			DefaultMessage: "Il tuo compenso è stato liquidato.",
		},
	},
	disbursement.KindReimbursement: {
		disbursement.ActionApprove: {
			EventKind:      "reimbursement_approved",
			Title:          "Rimborso approvato",
			DefaultMessage: "La tua richiesta di rimborso è stata approvata.",
		},
		disbursement.ActionReject: {
			EventKind:      "reimbursement_rejected",
			Title:          "Rimborso rifiutato",
			DefaultMessage: "La tua richiesta di rimborso è stata rifiutata.",
		},
		disbursement.ActionMarkLiquidated: {
			EventKind:      "reimbursement_liquidated",
			Title:          "Rimborso liquidato",
			DefaultMessage: "Il tuo rimborso è stato liquidato.",
		},
	},
}

// templateFor returns the template for a transition, if the transition is on
// the allowlist.
func templateFor(kind disbursement.Kind, action disbursement.Action) (template, bool) {
	tpl, ok := allowlist[kind][action]
	return tpl, ok
}
