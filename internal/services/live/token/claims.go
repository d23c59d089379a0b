// Package token mints and verifies live:join access tokens.
//
// Tokens are compact HS256 JWS values. The issuer performs no authorization:
// callers must only ask for a token after an access decision granted entry.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// ScopeLiveJoin is the only scope livegate issues.
	ScopeLiveJoin = "live:join"
	// Lifetime is the fixed validity window of every token.
	Lifetime = 600 * time.Second
	// SigningMethod is the JWS algorithm used for every token.
	SigningMethod = "HS256"
)

// Grant describes who a token is issued to.
type Grant struct {
	Owner   string
	Lock    string
	Manager bool
}

// Claims are the validated contents of a token.
type Claims struct {
	Subject   string
	Lock      string
	Scope     string
	Manager   bool
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// joinClaims is the wire form of the token payload.
type joinClaims struct {
	jwt.RegisteredClaims
	Lock    string `json:"lock"`
	Scope   string `json:"scope"`
	Manager bool   `json:"mgr"`
}
