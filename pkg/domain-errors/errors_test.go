package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct domain error", func(t *testing.T) {
		err := New(CodeNotFound, "project not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("sees through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("loading: %w", New(CodeForbidden, "denied"))
		assert.True(t, HasCode(err, CodeForbidden))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("keeps cause reachable", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := Wrap(cause, CodeUnavailable, "store unavailable")
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		de, ok := As(err)
		require.True(t, ok)
		assert.Equal(t, CodeUnavailable, de.Code)
		assert.Contains(t, err.Error(), "connection reset")
	})
}
