// Package credential persists the signed-in operator's session between runs:
// the user record, the bearer token, an authenticated flag and the token's
// cached expiry instant.
//
// Storage failures never reach callers. A value that cannot be read or
// parsed is treated as absent and logged.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/funpik/adminconsole/pkg/shared/kvs"
	"github.com/funpik/adminconsole/pkg/shared/logging"
	"github.com/funpik/adminconsole/pkg/token"
)

// Storage keys. Nothing outside this package reads or writes them.
const (
	keyUser          = "user"
	keyAccessToken   = "access_token"
	keyAuthenticated = "authenticated"
	keyExpiresAt     = "token_expires_at"
)

var allKeys = []string{keyUser, keyAccessToken, keyAuthenticated, keyExpiresAt}

// Store is the credential store.
type Store struct {
	kvs       kvs.Store
	inspector *token.Inspector
	logger    logging.Logger
}

// NewStore creates a Store over kvsStore. inspector may be nil (wall clock).
func NewStore(kvsStore kvs.Store, inspector *token.Inspector, logger logging.Logger) *Store {
	if inspector == nil {
		inspector = token.Default
	}
	return &Store{
		kvs:       kvsStore,
		inspector: inspector,
		logger:    logger.WithModule("credential"),
	}
}

// Save writes the user record, the token and the authenticated flag, plus
// the absolute expiry when the token carries one.
func (s *Store) Save(ctx context.Context, user *User, tok string) {
	if user != nil {
		data, err := json.Marshal(user)
		if err != nil {
			s.logger.Error("Failed to serialize user record", "error", err)
		} else {
			s.set(ctx, keyUser, string(data))
		}
	}
	s.set(ctx, keyAuthenticated, "true")
	s.SaveToken(ctx, tok)
}

// SaveToken replaces the token and its cached expiry, leaving the user
// record untouched.
func (s *Store) SaveToken(ctx context.Context, tok string) {
	s.set(ctx, keyAccessToken, tok)

	if seconds, ok := s.inspector.SecondsRemaining(tok); ok && seconds > 0 {
		expiresAt := s.inspector.Now().Add(time.Duration(seconds) * time.Second)
		s.set(ctx, keyExpiresAt, strconv.FormatInt(expiresAt.UnixMilli(), 10))
	} else {
		s.delete(ctx, keyExpiresAt)
	}
}

// Load returns the saved user record, or nil if absent or corrupt.
func (s *Store) Load(ctx context.Context) *User {
	raw, ok := s.get(ctx, keyUser)
	if !ok {
		return nil
	}

	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.logger.Warn("Ignoring corrupt user record", "error", err)
		return nil
	}
	return &user
}

// Token returns the saved bearer token, or "" if absent.
func (s *Store) Token(ctx context.Context) string {
	tok, _ := s.get(ctx, keyAccessToken)
	return tok
}

// ExpiresAt returns the cached absolute expiry written by Save/SaveToken.
func (s *Store) ExpiresAt(ctx context.Context) (time.Time, bool) {
	raw, ok := s.get(ctx, keyExpiresAt)
	if !ok {
		return time.Time{}, false
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn("Ignoring corrupt expiry value", "value", raw)
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// Clear removes every credential key. Clearing an empty store is a no-op.
func (s *Store) Clear(ctx context.Context) {
	for _, key := range allKeys {
		s.delete(ctx, key)
	}
}

// HasValidAuthenticationFlag is a local, network-free check: the flag is
// set, a user record is present and, if a token is stored, it has not
// expired. A token whose expiry cannot be read counts as invalid.
func (s *Store) HasValidAuthenticationFlag(ctx context.Context) bool {
	flag, _ := s.get(ctx, keyAuthenticated)
	if flag != "true" || s.Load(ctx) == nil {
		return false
	}

	tok := s.Token(ctx)
	if tok == "" {
		return true
	}
	seconds, ok := s.inspector.SecondsRemaining(tok)
	return ok && seconds > 0
}

func (s *Store) get(ctx context.Context, key string) (string, bool) {
	value, err := s.kvs.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kvs.ErrNotFound) {
			s.logger.Warn("Credential storage read failed", "key", key, "error", err)
		}
		return "", false
	}
	return string(value), true
}

func (s *Store) set(ctx context.Context, key, value string) {
	if err := s.kvs.Set(ctx, key, []byte(value)); err != nil {
		s.logger.Warn("Credential storage write failed", "key", key, "error", err)
	}
}

func (s *Store) delete(ctx context.Context, key string) {
	if err := s.kvs.Delete(ctx, key); err != nil {
		s.logger.Warn("Credential storage delete failed", "key", key, "error", err)
	}
}
