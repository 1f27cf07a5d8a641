package disbursement

import id "gestionale/pkg/domain"

// Rule describes one edge of the lifecycle state machine: the state an action
// requires, the state it produces, and what data must accompany it. The table
// is pure data; it carries no side effects and no role knowledge.
type Rule struct {
	From             State
	To               State
	RequiresNote     bool
	AllowsPaymentRef bool
}

// rules is the full transition table per entity kind. Expense reimbursements
// define no reopen: rejection is terminal for that kind.
var rules = map[Kind]map[Action]Rule{
	KindCompensation: {
		ActionSubmit:         {From: StateBozza, To: StateInAttesa},
		ActionReopen:         {From: StateRifiutato, To: StateInAttesa},
		ActionApprove:        {From: StateInAttesa, To: StateApprovato},
		ActionReject:         {From: StateInAttesa, To: StateRifiutato, RequiresNote: true},
		ActionMarkLiquidated: {From: StateApprovato, To: StateLiquidato, AllowsPaymentRef: true},
	},
	KindReimbursement: {
		ActionSubmit:         {From: StateBozza, To: StateInAttesa},
		ActionApprove:        {From: StateInAttesa, To: StateApprovato},
		ActionReject:         {From: StateInAttesa, To: StateRifiutato, RequiresNote: true},
		ActionMarkLiquidated: {From: StateApprovato, To: StateLiquidato, AllowsPaymentRef: true},
	},
}

// RuleFor looks up the transition rule for an action on a given kind.
func RuleFor(kind Kind, action Action) (Rule, bool) {
	rule, ok := rules[kind][action]
	return rule, ok
}

// actionRoles is the permission table: which roles may trigger each action.
// Owner-only actions additionally require the actor to own the request; the
// guard enforces that.
var actionRoles = map[Action][]id.Role{
	ActionSubmit:         {id.RoleCollaboratore},
	ActionReopen:         {id.RoleCollaboratore},
	ActionApprove:        {id.RoleResponsabileCompensi, id.RoleAmministrazione},
	ActionReject:         {id.RoleResponsabileCompensi, id.RoleAmministrazione},
	ActionMarkLiquidated: {id.RoleAmministrazione},
}

// ownerOnly marks actions a collaborator may only perform on their own request.
var ownerOnly = map[Action]bool{
	ActionSubmit: true,
	ActionReopen: true,
}

// roleAllowed reports whether the role is in the action's permission list.
func roleAllowed(role id.Role, action Action) bool {
	for _, allowed := range actionRoles[action] {
		if role == allowed {
			return true
		}
	}
	return false
}
