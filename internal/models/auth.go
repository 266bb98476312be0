package models

import "github.com/golang-jwt/jwt/v5"

// AuthStatus tracks whether the identity check for a session has completed.
type AuthStatus string

const (
	AuthStatusIdle    AuthStatus = "idle"
	AuthStatusLoading AuthStatus = "loading"
	AuthStatusChecked AuthStatus = "checked"
)

// AuthSnapshot is the persisted view of the session's authentication state.
type AuthSnapshot struct {
	User            *Identity  `json:"user"`
	IsAuthenticated bool       `json:"is_authenticated"`
	Status          AuthStatus `json:"status"`
}

// JWTClaims is the access token payload issued by the identity provider.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the minimal identity carried by the claims.
func (c *JWTClaims) Identity() Identity {
	id := c.UserID
	if id == "" {
		id = c.Subject
	}
	identity := Identity{UserID: id}
	if c.Email != "" {
		email := c.Email
		identity.Email = &email
	}
	return identity
}
