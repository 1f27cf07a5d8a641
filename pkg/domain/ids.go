package domain

import (
	"github.com/google/uuid"

	dErrors "gestionale/pkg/domainerrors"
)

// Typed identifiers keep request, person and community references from being
// mixed up at compile time. All of them wrap a UUID.
type (
	RequestID   uuid.UUID
	PersonID    uuid.UUID
	CommunityID uuid.UUID
)

func (id RequestID) String() string   { return uuid.UUID(id).String() }
func (id PersonID) String() string    { return uuid.UUID(id).String() }
func (id CommunityID) String() string { return uuid.UUID(id).String() }

func (id RequestID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id PersonID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CommunityID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Text marshalling keeps the canonical uuid string on the wire.

func (id RequestID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id PersonID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id CommunityID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *RequestID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *PersonID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *CommunityID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

// parseUUID enforces the shared invariant: IDs must be valid, non-nil UUIDs.
func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidationFailed, kind+" id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidationFailed, "invalid "+kind+" id")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidationFailed, kind+" id must not be nil")
	}
	return parsed, nil
}

func ParseRequestID(raw string) (RequestID, error) {
	parsed, err := parseUUID(raw, "request")
	return RequestID(parsed), err
}

func ParsePersonID(raw string) (PersonID, error) {
	parsed, err := parseUUID(raw, "person")
	return PersonID(parsed), err
}

func ParseCommunityID(raw string) (CommunityID, error) {
	parsed, err := parseUUID(raw, "community")
	return CommunityID(parsed), err
}

func NewRequestID() RequestID { return RequestID(uuid.New()) }
