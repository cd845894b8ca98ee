// Package users is the credential store: persistence of user records and the
// single live refresh token each record carries.
package users

import (
	"context"

	"github.com/dmitrijs2005/userkeeper/internal/server/models"
)

// Repository is implemented by every user store backend.
//
// Absent records yield common.ErrorNotFound and unique violations on
// username or email yield common.ErrorAlreadyExists.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// FindByUserNameOrEmail matches case-insensitively on either value; an
	// empty argument never matches.
	FindByUserNameOrEmail(ctx context.Context, userName, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateFields(ctx context.Context, id string, f models.UserFields) (*models.User, error)
	// SetRefreshToken overwrites the stored token; "" clears it.
	SetRefreshToken(ctx context.Context, id, token string) error
	// RotateRefreshToken replaces expected with next atomically. It returns
	// common.ErrTokenMismatch and leaves the record unchanged when the stored
	// value differs from expected.
	RotateRefreshToken(ctx context.Context, id, expected, next string) error
}
