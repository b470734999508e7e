package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProfileID(t *testing.T) {
	t.Run("round-trips a valid uuid", func(t *testing.T) {
		raw := uuid.NewString()
		id, err := ParseProfileID(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, id.String())
		assert.False(t, id.IsNil())
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := ParseProfileID("")
		assert.Error(t, err)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		_, err := ParseProfileID("not-a-uuid")
		assert.Error(t, err)
	})

	t.Run("rejects the nil uuid", func(t *testing.T) {
		_, err := ParseProfileID(uuid.Nil.String())
		assert.Error(t, err)
	})
}

func TestParseConnectionID(t *testing.T) {
	raw := uuid.NewString()
	id, err := ParseConnectionID(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, id.String())

	_, err = ParseConnectionID("nope")
	assert.Error(t, err)
}
