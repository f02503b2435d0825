// Package token reads the expiry of a bearer token without contacting the
// backend. Tokens are compact JWTs; their signature is not verified because
// the console holds no key. The backend's verify endpoint stays authoritative.
package token

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var parser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode returns the claims segment of tok, or nil when tok is malformed.
// Only the second segment is read; the header is ignored.
func Decode(tok string) jwt.MapClaims {
	parts := strings.Split(tok, ".")
	if len(parts) < 2 {
		return nil
	}

	payload, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return nil
	}

	var claims jwt.MapClaims
	if err := json.Unmarshal(payload, &claims); err != nil || claims == nil {
		return nil
	}
	return claims
}

// Inspector computes remaining lifetimes against a clock.
// The zero value is not usable; use NewInspector.
type Inspector struct {
	now func() time.Time
}

// NewInspector returns an Inspector using now as its clock.
// A nil now uses time.Now.
func NewInspector(now func() time.Time) *Inspector {
	if now == nil {
		now = time.Now
	}
	return &Inspector{now: now}
}

// Default uses the wall clock.
var Default = NewInspector(time.Now)

// Now reports the inspector's current time.
func (i *Inspector) Now() time.Time {
	return i.now()
}

// ExpiresAt returns the exp claim of tok.
func (i *Inspector) ExpiresAt(tok string) (time.Time, bool) {
	claims := Decode(tok)
	if claims == nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// SecondsRemaining returns the whole seconds left before tok expires, never
// negative. ok is false when tok cannot be decoded or carries no exp claim.
func (i *Inspector) SecondsRemaining(tok string) (seconds int64, ok bool) {
	exp, ok := i.ExpiresAt(tok)
	if !ok {
		return 0, false
	}

	remaining := math.Floor(exp.Sub(i.now()).Seconds())
	if remaining <= 0 {
		return 0, true
	}
	return int64(remaining), true
}

// Expired reports whether tok has a known expiry that has passed.
// A token without expiry information is not considered expired.
func (i *Inspector) Expired(tok string) bool {
	seconds, ok := i.SecondsRemaining(tok)
	return ok && seconds <= 0
}

// SecondsRemaining is Default.SecondsRemaining.
func SecondsRemaining(tok string) (int64, bool) {
	return Default.SecondsRemaining(tok)
}
