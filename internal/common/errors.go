// Package common defines shared constants and sentinel errors used across
// the service, repository and transport layers. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level error kinds. Every error returned by the user service
	// matches exactly one of these (or ErrorInternal).
	ErrValidation     = errors.New("validation error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrDependency     = errors.New("dependency error")
	ErrorInternal     = errors.New("internal error")

	// Token lifecycle errors.
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenMismatch = errors.New("token does not match stored value")
)

// Error is a classified failure carrying a message that is safe to show to
// API clients. Kind is one of the sentinel kinds above; Err is an optional
// underlying cause that is only logged.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func NewValidation(msg string) error { return &Error{Kind: ErrValidation, Message: msg} }

func NewConflict(msg string) error { return &Error{Kind: ErrorAlreadyExists, Message: msg} }

func NewNotFound(msg string) error { return &Error{Kind: ErrorNotFound, Message: msg} }

func NewUnauthorized(msg string, cause error) error {
	return &Error{Kind: ErrorUnauthorized, Message: msg, Err: cause}
}

func NewDependency(msg string, cause error) error {
	return &Error{Kind: ErrDependency, Message: msg, Err: cause}
}

func NewInternal(cause error) error {
	return &Error{Kind: ErrorInternal, Message: "internal server error", Err: cause}
}

// Message returns the client-facing message of err, or fallback when err is
// not a classified *Error.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
