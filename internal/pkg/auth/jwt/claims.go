package jwt

import "github.com/golang-jwt/jwt/v5"

// Payload defines the JWT claims for a linechat session token.
// A token identifies a registered account so a client can resume a session
// with `login {token}` instead of re-sending its password.
type Payload struct {
	jwt.RegisteredClaims

	// UserID is the account's unique identifier.
	UserID string `json:"user_id"`

	// Username is the account's display-cased username.
	Username string `json:"username"`
}
