// Package common contains shared constants and sentinel errors used across
// the userkeeper server components.
package common

// Cookie names used to deliver credentials to browser clients.
const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)

// AuthorizationHeaderName carries "Bearer <access token>" for non-browser clients.
const AuthorizationHeaderName = "Authorization"
