// Package session owns the signed-in operator's session: it verifies the
// stored token on startup, counts down to the token's expiry, extends the
// session on request and logs out on expiry or rejection.
package session

import (
	"errors"

	"github.com/funpik/adminconsole/pkg/credential"
)

// ExtendThreshold is the remaining lifetime, in seconds, below which the
// session may be extended.
const ExtendThreshold = 1800

var (
	// ErrExtendNotAllowed is returned by ExtendSession outside the extend
	// window.
	ErrExtendNotAllowed = errors.New("session: extend not allowed")
	// ErrSessionChanged is returned when the session was logged out or
	// replaced while a call was in flight. The call's result was dropped.
	ErrSessionChanged = errors.New("session: session changed during request")
	// ErrMissingCredentials is returned by Login without a user or token.
	ErrMissingCredentials = errors.New("session: user and token are required")
)

// State is the controller's lifecycle state.
type State int

const (
	// Initializing is the state until startup verification completes.
	Initializing State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	State State
	User  *credential.User
	Token string
	// IsAuthenticated is true when a user and an unexpired token are held.
	IsAuthenticated bool
	// TimeLeftSeconds is valid only when TimeLeftKnown is true.
	TimeLeftSeconds int64
	TimeLeftKnown   bool
	// CanExtend is true when 0 < TimeLeftSeconds < ExtendThreshold.
	CanExtend bool
}

// canExtend applies the extend window to a known remaining lifetime.
func canExtend(seconds int64, known bool) bool {
	return known && seconds > 0 && seconds < ExtendThreshold
}
