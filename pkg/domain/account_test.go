package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseAccountID_Invariants validates the parsing invariant:
// account ids must be non-empty and bounded in length.
func TestParseAccountID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseAccountID("")
		require.Error(t, err)
	})

	t.Run("rejects oversized id", func(t *testing.T) {
		_, err := ParseAccountID(strings.Repeat("a", maxAccountIDLen+1))
		require.Error(t, err)
	})

	t.Run("accepts id at the length bound", func(t *testing.T) {
		raw := strings.Repeat("a", maxAccountIDLen)
		id, err := ParseAccountID(raw)
		require.NoError(t, err)
		assert.Equal(t, AccountID(raw), id)
	})

	t.Run("accepts ordinary id", func(t *testing.T) {
		id, err := ParseAccountID("alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", id.String())
		assert.False(t, id.IsNil())
	})
}

func TestAccountIDIsNil(t *testing.T) {
	assert.True(t, AccountID("").IsNil())
	assert.False(t, AccountID("custodian").IsNil())
}
