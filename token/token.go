// Package token decodes expiry information from primary access tokens
// without verifying signatures. Signature verification belongs to the remote
// identity provider; the coordinator only needs a cheap local pre-check to
// avoid a network round trip for tokens that are already dead.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned when the token cannot be decoded at all. A
// malformed token means the stored session blob is unusable, not that the
// network failed.
var ErrMalformed = errors.New("malformed access token")

var parser = jwt.NewParser()

// ExpiresAt returns the token's embedded expiry claim. ok is false when the
// token carries no exp claim, which callers must treat as unexpired.
func ExpiresAt(raw string) (expiry time.Time, ok bool, err error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false, nil
	}
	return claims.ExpiresAt.Time, true, nil
}

// Expired reports whether the token's exp claim has elapsed at now. Tokens
// without an exp claim never expire locally.
func Expired(raw string, now time.Time) (bool, error) {
	expiry, ok, err := ExpiresAt(raw)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return !expiry.After(now), nil
}
