package environment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/funpik/adminconsole/pkg/shared/kvs"
	"github.com/funpik/adminconsole/pkg/shared/logging"
)

// overrideKey holds the runtime selection in the selector's store.
const overrideKey = "api_environment"

// Resetter owns state derived from the current host. The session
// controller implements it.
type Resetter interface {
	// Teardown discards all session state, including persisted credentials.
	// It runs while no request URL can be resolved.
	Teardown(ctx context.Context)
	// Restart re-initializes from scratch against the new host.
	Restart(ctx context.Context)
}

// Info describes the effective selection.
type Info struct {
	Environment   Environment
	Host          string
	UseProduction bool
	Source        string // "override", "build", or "default"
}

// Selector resolves the current environment and builds request URLs.
//
// Resolution order: persisted override, build flag UseProduction, build
// flag APIEnv, Development. The first source that decides wins.
type Selector struct {
	store  kvs.Store
	flags  BuildFlags
	hosts  Hosts
	logger logging.Logger

	// switching is held exclusively while an environment change is
	// persisted and the session torn down; URL resolution holds it shared.
	switching sync.RWMutex

	// mu guards hosts, flags and resetter.
	mu       sync.Mutex
	resetter Resetter
}

// NewSelector creates a selector persisting its override in store.
func NewSelector(store kvs.Store, flags BuildFlags, hosts Hosts, logger logging.Logger) *Selector {
	return &Selector{
		store:  store,
		flags:  flags,
		hosts:  hosts,
		logger: logger.WithModule("environment"),
	}
}

// SetResetter registers the component torn down on every switch.
func (s *Selector) SetResetter(r Resetter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetter = r
}

// Current returns the effective environment.
func (s *Selector) Current(ctx context.Context) Environment {
	env, _ := s.resolve(ctx)
	return env
}

func (s *Selector) resolve(ctx context.Context) (Environment, string) {
	raw, err := s.store.Get(ctx, overrideKey)
	switch {
	case err == nil:
		if env, ok := Parse(string(raw)); ok {
			return env, "override"
		}
	case !errors.Is(err, kvs.ErrNotFound):
		// unreadable storage counts as no override
		s.logger.Debug("Environment override unreadable", "error", err)
	}

	_, flags := s.settings()
	if env, ok := flags.resolve(); ok {
		return env, "build"
	}
	return Development, "default"
}

// Host returns the base host of the current environment.
func (s *Selector) Host(ctx context.Context) string {
	hosts, _ := s.settings()
	return hosts.For(s.Current(ctx))
}

// Info reports the effective environment and where it came from.
func (s *Selector) Info(ctx context.Context) Info {
	env, source := s.resolve(ctx)
	hosts, _ := s.settings()
	return Info{
		Environment:   env,
		Host:          hosts.For(env),
		UseProduction: env == Production,
		Source:        source,
	}
}

// ResolveURL builds "<host>:<port><path>" against the current environment.
// It blocks while a switch is in progress.
func (s *Selector) ResolveURL(ctx context.Context, port ServicePort, path string) string {
	s.switching.RLock()
	defer s.switching.RUnlock()
	return BuildURL(s.Host(ctx), port, path)
}

// Set persists value as the runtime override, tears the session down and
// restarts it. Values other than "development" and "production" are ignored.
// Selecting the environment already in effect still resets the session.
func (s *Selector) Set(ctx context.Context, value string) error {
	env, ok := Parse(value)
	if !ok {
		s.logger.Debug("Ignoring invalid environment", "value", value)
		return nil
	}

	s.switching.Lock()
	if err := s.store.Set(ctx, overrideKey, []byte(env)); err != nil {
		s.switching.Unlock()
		return fmt.Errorf("environment: failed to persist override: %w", err)
	}
	hosts, _ := s.settings()
	s.logger.Info("Environment changed", "environment", env, "host", hosts.For(env))
	r := s.teardown(ctx)
	s.switching.Unlock()

	s.restart(ctx, r)
	return nil
}

// Clear removes the runtime override so build flags apply again, and resets
// the session when that changes the effective host.
func (s *Selector) Clear(ctx context.Context) error {
	s.switching.Lock()
	before := s.Host(ctx)
	if err := s.store.Delete(ctx, overrideKey); err != nil {
		s.switching.Unlock()
		return fmt.Errorf("environment: failed to clear override: %w", err)
	}
	if s.Host(ctx) == before {
		s.switching.Unlock()
		return nil
	}
	r := s.teardown(ctx)
	s.switching.Unlock()

	s.restart(ctx, r)
	return nil
}

// Reload replaces hosts and build flags, e.g. after the config file changed.
// When the effective host moved, the session is reset and true is returned.
func (s *Selector) Reload(ctx context.Context, hosts Hosts, flags BuildFlags) bool {
	s.switching.Lock()
	before := s.Host(ctx)
	s.mu.Lock()
	s.hosts = hosts
	s.flags = flags
	s.mu.Unlock()
	after := s.Host(ctx)
	if after == before {
		s.switching.Unlock()
		return false
	}
	s.logger.Info("Backend host changed", "from", before, "to", after)
	r := s.teardown(ctx)
	s.switching.Unlock()

	s.restart(ctx, r)
	return true
}

func (s *Selector) settings() (Hosts, BuildFlags) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hosts, s.flags
}

// teardown must be called with switching held exclusively.
func (s *Selector) teardown(ctx context.Context) Resetter {
	s.mu.Lock()
	r := s.resetter
	s.mu.Unlock()

	if r != nil {
		r.Teardown(ctx)
	}
	return r
}

// restart runs after switching is released: re-initialization resolves URLs.
func (s *Selector) restart(ctx context.Context, r Resetter) {
	if r != nil {
		r.Restart(ctx)
	}
}
