package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_KindsMatchWithErrorsIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"validation", NewValidation("email is required"), ErrValidation},
		{"conflict", NewConflict("exists"), ErrorAlreadyExists},
		{"not found", NewNotFound("user does not exist"), ErrorNotFound},
		{"unauthorized", NewUnauthorized("invalid refresh token", ErrTokenMismatch), ErrorUnauthorized},
		{"dependency", NewDependency("avatar upload failed", errors.New("s3 down")), ErrDependency},
		{"internal", NewInternal(errors.New("boom")), ErrorInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.kind)
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.kind)
		})
	}
}

func TestError_CauseIsReachable(t *testing.T) {
	err := NewUnauthorized("refresh token is expired or used", ErrTokenMismatch)
	require.ErrorIs(t, err, ErrTokenMismatch)
	require.NotErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, "refresh token is expired or used: token does not match stored value", err.Error())
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "email is required", Message(NewValidation("email is required"), "x"))
	assert.Equal(t, "x", Message(errors.New("raw"), "x"))
	assert.Equal(t, "internal server error", Message(NewInternal(errors.New("db")), "x"))
}
