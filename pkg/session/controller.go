package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/funpik/adminconsole/pkg/api"
	"github.com/funpik/adminconsole/pkg/credential"
	"github.com/funpik/adminconsole/pkg/shared/logging"
	"github.com/funpik/adminconsole/pkg/token"
)

// Defaults applied to zero Options fields.
const (
	DefaultTickInterval  = time.Second
	DefaultVerifyTimeout = 10 * time.Second
)

// Backend is the part of the backend the controller calls.
// *api.Client implements it.
type Backend interface {
	Verify(ctx context.Context, token string) (*api.VerifyResult, error)
	Refresh(ctx context.Context, token string) (string, error)
}

// Notifier receives the outcome of ExtendSession.
type Notifier interface {
	ExtendSucceeded(timeLeftSeconds int64)
	ExtendFailed(err error)
}

// Options configures a Controller.
type Options struct {
	// VerifyTimeout bounds the startup verify call.
	VerifyTimeout time.Duration
	// FailClosed disables soft recovery: any verify failure logs out.
	FailClosed bool
	// TickInterval is the countdown period.
	TickInterval time.Duration
	// Inspector reads token expiry. Nil means the wall clock.
	Inspector *token.Inspector
	Notifier  Notifier
	// OnChange is called with a fresh snapshot after every state change and
	// every countdown tick. It may be called from the countdown goroutine.
	OnChange func(Snapshot)
}

// Controller is the session state machine. Construct one per process and
// pass it to every consumer.
type Controller struct {
	creds     *credential.Store
	backend   Backend
	inspector *token.Inspector
	opts      Options
	logger    logging.Logger

	mu       sync.Mutex
	state    State
	user     *credential.User
	token    string
	timeLeft int64
	known    bool
	// epoch changes whenever the session is replaced or dropped. Results of
	// calls started under an older epoch are discarded.
	epoch  uint64
	stop   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewController creates a controller in the Initializing state. Call Start
// to load the stored session.
func NewController(creds *credential.Store, backend Backend, opts Options, logger logging.Logger) *Controller {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = DefaultVerifyTimeout
	}
	inspector := opts.Inspector
	if inspector == nil {
		inspector = token.Default
	}
	return &Controller{
		creds:     creds,
		backend:   backend,
		inspector: inspector,
		opts:      opts,
		logger:    logger.WithModule("session"),
		state:     Initializing,
	}
}

// Snapshot returns the current session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:           c.state,
		User:            c.user,
		Token:           c.token,
		IsAuthenticated: c.state == Authenticated && c.user != nil && c.token != "" && !c.inspector.Expired(c.token),
		TimeLeftSeconds: c.timeLeft,
		TimeLeftKnown:   c.known,
		CanExtend:       c.state == Authenticated && canExtend(c.timeLeft, c.known),
	}
}

// Start loads the stored token and verifies it with the backend. It
// returns once the controller is Authenticated or Unauthenticated. Verify
// errors are handled here and never returned.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	c.stopCountdownLocked()
	c.state = Initializing
	c.user, c.token = nil, ""
	c.timeLeft, c.known = 0, false
	c.mu.Unlock()
	c.changed()

	tok := c.creds.Token(ctx)
	if tok == "" {
		c.logger.Debug("No stored token")
		c.finishStart(ctx, epoch, func() { c.dropLocked(ctx) })
		return
	}

	vctx, cancel := context.WithTimeout(ctx, c.opts.VerifyTimeout)
	result, err := c.backend.Verify(vctx, tok)
	cancel()

	switch {
	case err == nil && result != nil && result.Valid && result.User != nil:
		c.logger.Info("Session verified", "user", result.User.Username)
		c.finishStart(ctx, epoch, func() { c.adoptLocked(ctx, result.User, tok) })

	case ctx.Err() != nil:
		// abandoned by the caller; stored credentials stay for the next run
		c.logger.Debug("Session verification cancelled", "error", err)
		c.finishStart(ctx, epoch, c.resetLocked)

	case err == nil:
		c.logger.Info("Stored token rejected by backend")
		c.finishStart(ctx, epoch, func() { c.dropLocked(ctx) })

	case c.transient(err) && !c.opts.FailClosed:
		c.finishStart(ctx, epoch, func() {
			cached := c.creds.Load(ctx)
			secs, ok := c.inspector.SecondsRemaining(tok)
			if cached == nil || !ok || secs <= 0 {
				c.logger.Info("Backend unreachable and no usable cached session", "error", err)
				c.dropLocked(ctx)
				return
			}
			c.logger.Warn("Backend unreachable, restoring cached session", "user", cached.Username, "error", err)
			c.restoreLocked(cached, tok)
		})

	default:
		c.logger.Info("Session verification failed", "error", err)
		c.finishStart(ctx, epoch, func() { c.dropLocked(ctx) })
	}
}

// finishStart applies the verify outcome unless the session changed while
// verify was in flight.
func (c *Controller) finishStart(ctx context.Context, epoch uint64, apply func()) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		c.logger.Debug("Discarding stale verify result")
		return
	}
	apply()
	c.mu.Unlock()
	c.changed()
}

// transient reports whether err means the backend could not be reached,
// including the verify timeout expiring.
func (c *Controller) transient(err error) bool {
	return api.IsTransport(err) || errors.Is(err, context.DeadlineExceeded)
}

// Login adopts a session obtained by signing in.
func (c *Controller) Login(ctx context.Context, user *credential.User, tok string) error {
	if user == nil || tok == "" {
		return ErrMissingCredentials
	}

	c.mu.Lock()
	c.epoch++
	c.stopCountdownLocked()
	c.adoptLocked(ctx, user, tok)
	c.mu.Unlock()

	c.logger.Info("Logged in", "user", user.Username)
	c.changed()
	return nil
}

// Logout drops the session and clears stored credentials. It is safe to
// call at any time, any number of times.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	wasAuthenticated := c.state == Authenticated
	c.dropLocked(ctx)
	c.mu.Unlock()

	if wasAuthenticated {
		c.logger.Info("Logged out")
	}
	c.changed()
}

// ExtendSession exchanges the current token for a fresh one. It is only
// allowed while Snapshot().CanExtend is true. On failure the session is
// logged out.
func (c *Controller) ExtendSession(ctx context.Context) error {
	c.mu.Lock()
	if !c.snapshotLocked().CanExtend {
		c.mu.Unlock()
		return ErrExtendNotAllowed
	}
	epoch, tok := c.epoch, c.token
	c.mu.Unlock()

	newTok, err := c.backend.Refresh(ctx, tok)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		c.logger.Debug("Discarding stale refresh result")
		return ErrSessionChanged
	}
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("Session extension failed", "error", err)
		if c.opts.Notifier != nil {
			c.opts.Notifier.ExtendFailed(err)
		}
		c.mu.Lock()
		if epoch == c.epoch {
			c.dropLocked(ctx)
		}
		c.mu.Unlock()
		c.changed()
		return fmt.Errorf("session: extend failed: %w", err)
	}

	c.token = newTok
	c.creds.SaveToken(ctx, newTok)
	c.recomputeLocked()
	timeLeft := c.timeLeft
	c.mu.Unlock()

	c.logger.Info("Session extended", "seconds_left", timeLeft)
	c.changed()
	if c.opts.Notifier != nil {
		c.opts.Notifier.ExtendSucceeded(timeLeft)
	}
	return nil
}

// Teardown logs out. The environment selector calls it before switching
// hosts.
func (c *Controller) Teardown(ctx context.Context) {
	c.Logout(ctx)
}

// Restart re-runs startup against the current host.
func (c *Controller) Restart(ctx context.Context) {
	c.Start(ctx)
}

// Close stops the countdown and waits for it to exit. The controller must
// not be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.epoch++
	c.stopCountdownLocked()
	c.mu.Unlock()
	c.wg.Wait()
}

// adoptLocked installs user and tok, persists both and starts the
// countdown.
func (c *Controller) adoptLocked(ctx context.Context, user *credential.User, tok string) {
	c.creds.Save(ctx, user, tok)
	c.restoreLocked(user, tok)
}

// restoreLocked installs user and tok without persisting.
func (c *Controller) restoreLocked(user *credential.User, tok string) {
	c.state = Authenticated
	c.user = user
	c.token = tok
	c.recomputeLocked()
	c.startCountdownLocked()
}

// dropLocked clears the session and stored credentials.
func (c *Controller) dropLocked(ctx context.Context) {
	c.resetLocked()
	c.creds.Clear(ctx)
}

// resetLocked clears the in-memory session only.
func (c *Controller) resetLocked() {
	c.epoch++
	c.stopCountdownLocked()
	c.state = Unauthenticated
	c.user, c.token = nil, ""
	c.timeLeft, c.known = 0, false
}

// recomputeLocked refreshes the timer fields from the held token.
func (c *Controller) recomputeLocked() {
	c.timeLeft, c.known = c.inspector.SecondsRemaining(c.token)
}

func (c *Controller) startCountdownLocked() {
	c.stopCountdownLocked()
	if c.closed {
		return
	}

	stop := make(chan struct{})
	c.stop = stop
	epoch := c.epoch
	interval := c.opts.TickInterval

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.tick(epoch)
			}
		}
	}()
}

// stopCountdownLocked signals the countdown goroutine without waiting, so
// it may be called from the goroutine itself.
func (c *Controller) stopCountdownLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Controller) tick(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}

	secs, ok := c.inspector.SecondsRemaining(c.token)
	expired := false
	switch {
	case !ok:
		// no expiry information: unknown time left, not an expiry
		c.timeLeft, c.known = 0, false
	case secs <= 0:
		expired = true
		c.dropLocked(context.Background())
	default:
		c.timeLeft, c.known = secs, true
	}
	c.mu.Unlock()

	if expired {
		c.logger.Info("Session expired")
	}
	c.changed()
}

func (c *Controller) changed() {
	if c.opts.OnChange != nil {
		c.opts.OnChange(c.Snapshot())
	}
}
