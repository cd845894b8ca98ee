// Package models defines the server-side data models persisted by the
// credential store.
package models

import "time"

// User is the stored identity record. PasswordHash and RefreshToken never
// leave the server; use Public to build the outward representation.
type User struct {
	ID           string
	UserName     string
	Email        string
	FullName     string
	Avatar       string
	CoverImage   string
	PasswordHash string
	// RefreshToken is the single live refresh token; "" means logged out.
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is User without credentials.
type PublicUser struct {
	ID         string    `json:"_id"`
	UserName   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullname"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:         u.ID,
		UserName:   u.UserName,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.Avatar,
		CoverImage: u.CoverImage,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// UserFields lists profile columns to change; nil fields are left as they are.
type UserFields struct {
	FullName     *string
	Email        *string
	Avatar       *string
	CoverImage   *string
	PasswordHash *string
}

// Empty reports whether no field is set.
func (f UserFields) Empty() bool {
	return f.FullName == nil && f.Email == nil && f.Avatar == nil && f.CoverImage == nil && f.PasswordHash == nil
}

// Apply copies the set fields onto u.
func (f UserFields) Apply(u *User) {
	if f.FullName != nil {
		u.FullName = *f.FullName
	}
	if f.Email != nil {
		u.Email = *f.Email
	}
	if f.Avatar != nil {
		u.Avatar = *f.Avatar
	}
	if f.CoverImage != nil {
		u.CoverImage = *f.CoverImage
	}
	if f.PasswordHash != nil {
		u.PasswordHash = *f.PasswordHash
	}
}
