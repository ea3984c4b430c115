package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("direct code matches", func(t *testing.T) {
		err := New(CodeValidation, "level is required")
		assert.True(t, HasCode(err, CodeValidation))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("code is found through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("append: %w", New(CodeNotFound, "regulation not found"))
		assert.True(t, HasCode(err, CodeNotFound))
	})

	t.Run("nested domain errors expose inner code", func(t *testing.T) {
		inner := New(CodeInvalidState, "backward transition")
		err := Wrap(inner, CodeConflict, "update incident")
		assert.True(t, HasCode(err, CodeConflict))
		assert.True(t, HasCode(err, CodeInvalidState))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWrap(t *testing.T) {
	cause := errors.New("db down")
	err := Wrap(cause, CodeInternal, "failed to mirror record")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to mirror record: db down", err.Error())
	assert.Nil(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestIs_ComparesCodeAndMessage(t *testing.T) {
	err := New(CodeUnauthorized, "invalid token")
	require.ErrorIs(t, err, New(CodeUnauthorized, "invalid token"))
	assert.NotErrorIs(t, err, New(CodeUnauthorized, "token has expired"))
}
