package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "gestionale/pkg/domainerrors"
)

func TestParseRequestID(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		raw := uuid.NewString()
		parsed, err := ParseRequestID(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, parsed.String())
	})

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"malformed", "not-a-uuid"},
		{"nil uuid", uuid.Nil.String()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRequestID(tc.raw)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidationFailed))
		})
	}
}

func TestTypedIDs(t *testing.T) {
	t.Run("nil checks", func(t *testing.T) {
		assert.True(t, PersonID(uuid.Nil).IsNil())
		assert.False(t, PersonID(uuid.New()).IsNil())
		assert.False(t, NewRequestID().IsNil())
	})

	t.Run("person and community parse with their own messages", func(t *testing.T) {
		_, err := ParsePersonID("")
		assert.Contains(t, err.Error(), "person")
		_, err = ParseCommunityID("nope")
		assert.Contains(t, err.Error(), "community")
	})

	t.Run("json round trip as uuid strings", func(t *testing.T) {
		id := NewRequestID()
		raw, err := json.Marshal(id)
		require.NoError(t, err)
		assert.Equal(t, `"`+id.String()+`"`, string(raw))

		var decoded RequestID
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, id, decoded)
	})
}

func TestRoleLabels(t *testing.T) {
	assert.Equal(t, "Collaboratore", RoleCollaboratore.Label())
	assert.Equal(t, "Responsabile compensi", RoleResponsabileCompensi.Label())
	assert.Equal(t, "Amministrazione", RoleAmministrazione.Label())

	assert.False(t, RoleCollaboratore.IsManager())
	assert.True(t, RoleResponsabileCompensi.IsManager())
	assert.True(t, RoleAmministrazione.IsManager())
}
