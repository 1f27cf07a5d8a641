package domain

// Role is the caller's role as asserted by the external identity provider.
// The engine trusts the claim and only enforces what each role may do.
type Role string

const (
	// RoleCollaboratore is an occasional collaborator: owns requests, may
	// submit drafts and reopen their own rejected compensations.
	RoleCollaboratore Role = "collaboratore"

	// RoleResponsabileCompensi approves and rejects requests within the
	// communities granted to them.
	RoleResponsabileCompensi Role = "responsabile_compensi"

	// RoleAmministrazione approves, rejects and marks requests as paid,
	// without community scoping.
	RoleAmministrazione Role = "amministrazione"
)

// roleLabels are the human-readable labels recorded on history rows.
var roleLabels = map[Role]string{
	RoleCollaboratore:        "Collaboratore",
	RoleResponsabileCompensi: "Responsabile compensi",
	RoleAmministrazione:      "Amministrazione",
}

// Label returns the human-readable form of the role, falling back to the raw
// value for roles this service does not know about.
func (r Role) Label() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return string(r)
}

// IsManager reports whether the role reviews other people's requests.
func (r Role) IsManager() bool {
	return r == RoleResponsabileCompensi || r == RoleAmministrazione
}

// Actor is the authenticated caller of an engine operation.
type Actor struct {
	ID     PersonID
	Role   Role
	Active bool
}
