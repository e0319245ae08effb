// ABOUTME: Local inspection of stored bearer tokens without signature verification
// ABOUTME: Extracts subject and expiry for display and logging only, never as proof

package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when the stored token is not a parseable JWT.
var ErrMalformedToken = errors.New("malformed token")

// TokenClaims holds the locally readable claims of a stored bearer token.
// The signature is NOT verified — only the server can vouch for a token, so
// these values are for display and logging, never for authorization.
type TokenClaims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Inspect parses the token without verifying its signature and returns its
// claims. A zero ExpiresAt means the token carries no expiry claim.
func Inspect(token string) (*TokenClaims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	tc := &TokenClaims{}
	if sub, err := parsed.Claims.GetSubject(); err == nil {
		tc.Subject = sub
	}
	if iat, err := parsed.Claims.GetIssuedAt(); err == nil && iat != nil {
		tc.IssuedAt = iat.Time
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		tc.ExpiresAt = exp.Time
	}
	return tc, nil
}

// Expired reports whether the token's expiry claim is in the past. Tokens
// without an expiry claim never report expired.
func (tc *TokenClaims) Expired() bool {
	return !tc.ExpiresAt.IsZero() && time.Now().After(tc.ExpiresAt)
}
