package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funpik/adminconsole/pkg/api"
	"github.com/funpik/adminconsole/pkg/credential"
	"github.com/funpik/adminconsole/pkg/shared/kvs"
	"github.com/funpik/adminconsole/pkg/shared/logging"
	"github.com/funpik/adminconsole/pkg/token"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeBackend struct {
	mu           sync.Mutex
	verify       func(ctx context.Context, tok string) (*api.VerifyResult, error)
	refresh      func(ctx context.Context, tok string) (string, error)
	verifyCalls  int
	refreshCalls int
}

func (b *fakeBackend) Verify(ctx context.Context, tok string) (*api.VerifyResult, error) {
	b.mu.Lock()
	b.verifyCalls++
	fn := b.verify
	b.mu.Unlock()
	if fn == nil {
		return nil, errors.New("verify not expected")
	}
	return fn(ctx, tok)
}

func (b *fakeBackend) Refresh(ctx context.Context, tok string) (string, error) {
	b.mu.Lock()
	b.refreshCalls++
	fn := b.refresh
	b.mu.Unlock()
	if fn == nil {
		return "", errors.New("refresh not expected")
	}
	return fn(ctx, tok)
}

func (b *fakeBackend) calls() (verify, refresh int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.verifyCalls, b.refreshCalls
}

type recordingNotifier struct {
	mu        sync.Mutex
	succeeded []int64
	failed    []error
	onFailed  func()
}

func (n *recordingNotifier) ExtendSucceeded(timeLeft int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.succeeded = append(n.succeeded, timeLeft)
}

func (n *recordingNotifier) ExtendFailed(err error) {
	n.mu.Lock()
	n.failed = append(n.failed, err)
	n.mu.Unlock()
	if n.onFailed != nil {
		n.onFailed()
	}
}

type harness struct {
	ctrl     *Controller
	creds    *credential.Store
	clock    *clock
	backend  *fakeBackend
	notifier *recordingNotifier
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	inspector := token.NewInspector(clk.Now)
	store := kvs.NewMemoryStore("")
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		creds:    credential.NewStore(store, inspector, logging.NewTestLogger()),
		clock:    clk,
		backend:  &fakeBackend{},
		notifier: &recordingNotifier{},
	}
	if opts.TickInterval == 0 {
		// ticks are driven explicitly unless a test asks for them
		opts.TickInterval = time.Hour
	}
	opts.Inspector = inspector
	opts.Notifier = h.notifier
	h.ctrl = NewController(h.creds, h.backend, opts, logging.NewTestLogger())
	t.Cleanup(h.ctrl.Close)
	return h
}

// tokenIn returns a token expiring d after the harness clock.
func (h *harness) tokenIn(t *testing.T, d time.Duration) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"exp": h.clock.Now().Add(d).Unix(),
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return tok
}

// tickNow runs one countdown tick synchronously.
func (h *harness) tickNow() {
	h.ctrl.mu.Lock()
	epoch := h.ctrl.epoch
	h.ctrl.mu.Unlock()
	h.ctrl.tick(epoch)
}

func transportErr() error {
	return &api.TransportError{Op: "verify", Err: errors.New("connection refused")}
}

func TestNewController_Initializing(t *testing.T) {
	h := newHarness(t, Options{})

	snap := h.ctrl.Snapshot()
	assert.Equal(t, Initializing, snap.State)
	assert.False(t, snap.IsAuthenticated)
	assert.False(t, snap.CanExtend)
}

func TestStart_NoToken(t *testing.T) {
	h := newHarness(t, Options{})

	h.ctrl.Start(context.Background())

	assert.Equal(t, Unauthenticated, h.ctrl.Snapshot().State)
	verify, _ := h.backend.calls()
	assert.Zero(t, verify)
}

func TestStart_Verified(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	tok := h.tokenIn(t, time.Hour)
	h.creds.Save(ctx, credential.NewUser("stale"), tok)

	h.backend.verify = func(ctx context.Context, got string) (*api.VerifyResult, error) {
		assert.Equal(t, tok, got)
		return &api.VerifyResult{Valid: true, User: credential.NewUser("alice")}, nil
	}

	h.ctrl.Start(ctx)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, Authenticated, snap.State)
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "alice", snap.User.Username)
	assert.True(t, snap.TimeLeftKnown)
	assert.Equal(t, int64(3600), snap.TimeLeftSeconds)
	assert.Equal(t, "alice", h.creds.Load(ctx).Username)
	assert.Equal(t, tok, h.creds.Token(ctx))
}

func TestStart_Failures(t *testing.T) {
	tests := []struct {
		name       string
		failClosed bool
		expiresIn  time.Duration
		cacheUser  bool
		verify     func(ctx context.Context, tok string) (*api.VerifyResult, error)
		want       State
	}{
		{
			name:      "soft recovery on network error",
			expiresIn: 10 * time.Minute,
			cacheUser: true,
			verify: func(ctx context.Context, tok string) (*api.VerifyResult, error) {
				return nil, transportErr()
			},
			want: Authenticated,
		},
		{
			name:      "soft recovery on gateway error",
			expiresIn: 10 * time.Minute,
			cacheUser: true,
			verify: func(ctx context.Context, tok string) (*api.VerifyResult, error) {
				return nil, &api.Error{StatusCode: http.StatusServiceUnavailable, Message: "unavailable"}
			},
			want: Authenticated,
		},
		{
			name:      "network error with expired token",
			expiresIn: -5 * time.Second,
			cacheUser: true,
			verify: func(ctx context.Context, tok string) (*api.VerifyResult, error) {
				return nil, transportErr()
			},
			want: Unauthenticated,
		},
		{
			name:      "network error without cached user",
			expiresIn: 10 * time.Minute,
			verify: func(ctx context.Context, tok string) (*api.VerifyResult, error) {
				return nil, transportErr()
			},
			want: Unauthenticated,
		},
		{
			name:       "network error with fail closed",
			failClosed: true,
			expiresIn:  10 * time.Minute,
			cacheUser:  true,
			verify: func(ctx context.Context, tok string) (*api.VerifyResult, error) {
				return nil, transportErr()
			},
			want: Unauthenticated,
		},
		{
			name:      "backend says invalid",
			expiresIn: 10 * time.Minute,
			cacheUser: true,
			verify: func(ctx context.Context, tok string) (*api.VerifyResult, error) {
				return &api.VerifyResult{Valid: false}, nil
			},
			want: Unauthenticated,
		},
		{
			name:      "valid without user",
			expiresIn: 10 * time.Minute,
			cacheUser: true,
			verify: func(ctx context.Context, tok string) (*api.VerifyResult, error) {
				return &api.VerifyResult{Valid: true}, nil
			},
			want: Unauthenticated,
		},
		{
			name:      "backend rejects with error status",
			expiresIn: 10 * time.Minute,
			cacheUser: true,
			verify: func(ctx context.Context, tok string) (*api.VerifyResult, error) {
				return nil, &api.Error{StatusCode: http.StatusUnauthorized, Message: "Token revoked"}
			},
			want: Unauthenticated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, Options{FailClosed: tt.failClosed})
			tok := h.tokenIn(t, tt.expiresIn)
			if tt.cacheUser {
				h.creds.Save(ctx, credential.NewUser("cached"), tok)
			} else {
				h.creds.SaveToken(ctx, tok)
			}
			h.backend.verify = tt.verify

			h.ctrl.Start(ctx)

			snap := h.ctrl.Snapshot()
			assert.Equal(t, tt.want, snap.State)
			verify, refresh := h.backend.calls()
			assert.Equal(t, 1, verify)
			assert.Zero(t, refresh)

			if tt.want == Authenticated {
				assert.True(t, snap.IsAuthenticated)
				assert.Equal(t, "cached", snap.User.Username)
				assert.Equal(t, tok, h.creds.Token(ctx))
				return
			}
			assert.Nil(t, snap.User)
			assert.Empty(t, h.creds.Token(ctx))
			assert.Nil(t, h.creds.Load(ctx))
		})
	}
}

func TestStart_VerifyTimeoutRecovers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{VerifyTimeout: 20 * time.Millisecond})
	tok := h.tokenIn(t, 10*time.Minute)
	h.creds.Save(ctx, credential.NewUser("cached"), tok)

	h.backend.verify = func(ctx context.Context, tok string) (*api.VerifyResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	h.ctrl.Start(ctx)

	assert.Equal(t, Authenticated, h.ctrl.Snapshot().State)
}

func TestStart_CallerCancelKeepsCredentials(t *testing.T) {
	h := newHarness(t, Options{})
	tok := h.tokenIn(t, 10*time.Minute)
	h.creds.Save(context.Background(), credential.NewUser("cached"), tok)

	ctx, cancel := context.WithCancel(context.Background())
	h.backend.verify = func(vctx context.Context, tok string) (*api.VerifyResult, error) {
		cancel()
		return nil, vctx.Err()
	}

	h.ctrl.Start(ctx)

	assert.Equal(t, Unauthenticated, h.ctrl.Snapshot().State)
	assert.Equal(t, tok, h.creds.Token(context.Background()))
}

func TestStart_StaleVerifyDiscarded(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	h.creds.Save(ctx, credential.NewUser("old"), h.tokenIn(t, time.Hour))

	entered := make(chan struct{})
	release := make(chan struct{})
	h.backend.verify = func(ctx context.Context, tok string) (*api.VerifyResult, error) {
		close(entered)
		<-release
		return &api.VerifyResult{Valid: false}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ctrl.Start(ctx)
	}()
	<-entered

	fresh := h.tokenIn(t, 2*time.Hour)
	require.NoError(t, h.ctrl.Login(ctx, credential.NewUser("bob"), fresh))
	close(release)
	<-done

	snap := h.ctrl.Snapshot()
	assert.Equal(t, Authenticated, snap.State)
	assert.Equal(t, "bob", snap.User.Username)
	assert.Equal(t, fresh, h.creds.Token(ctx))
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})

	require.NoError(t, h.ctrl.Login(ctx, credential.NewUser("alice"), "T1"))

	snap := h.ctrl.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "alice", snap.User.Username)
	assert.Equal(t, "T1", h.creds.Token(ctx))
	// "T1" carries no expiry
	assert.False(t, snap.TimeLeftKnown)
	assert.False(t, snap.CanExtend)
}

func TestLogin_MissingCredentials(t *testing.T) {
	h := newHarness(t, Options{})

	assert.ErrorIs(t, h.ctrl.Login(context.Background(), nil, "T1"), ErrMissingCredentials)
	assert.ErrorIs(t, h.ctrl.Login(context.Background(), credential.NewUser("a"), ""), ErrMissingCredentials)
	assert.Equal(t, Initializing, h.ctrl.Snapshot().State)
}

func TestTick_ExpiryLogsOut(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{TickInterval: 5 * time.Millisecond})
	require.NoError(t, h.ctrl.Login(ctx, credential.NewUser("alice"), h.tokenIn(t, time.Minute)))

	h.clock.Advance(time.Minute + 5*time.Second)

	require.Eventually(t, func() bool {
		return h.ctrl.Snapshot().State == Unauthenticated
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, h.creds.Token(ctx))
	assert.Nil(t, h.creds.Load(ctx))
	assert.False(t, h.creds.HasValidAuthenticationFlag(ctx))
}

func TestTick_CountsDown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	require.NoError(t, h.ctrl.Login(ctx, credential.NewUser("alice"), h.tokenIn(t, 2000*time.Second)))

	snap := h.ctrl.Snapshot()
	assert.Equal(t, int64(2000), snap.TimeLeftSeconds)
	assert.False(t, snap.CanExtend)

	h.clock.Advance(201 * time.Second)
	h.tickNow()

	snap = h.ctrl.Snapshot()
	assert.Equal(t, int64(1799), snap.TimeLeftSeconds)
	assert.True(t, snap.CanExtend)
}

func TestTick_UndecodableTokenKeepsSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	require.NoError(t, h.ctrl.Login(ctx, credential.NewUser("alice"), "opaque"))

	h.tickNow()

	snap := h.ctrl.Snapshot()
	assert.Equal(t, Authenticated, snap.State)
	assert.False(t, snap.TimeLeftKnown)
	assert.Zero(t, snap.TimeLeftSeconds)
	assert.Equal(t, "opaque", h.creds.Token(ctx))
}

func TestCanExtend_Boundaries(t *testing.T) {
	tests := []struct {
		left time.Duration
		want bool
	}{
		{1800 * time.Second, false},
		{1799 * time.Second, true},
		{time.Second, true},
		{0, false},
	}

	for _, tt := range tests {
		t.Run(tt.left.String(), func(t *testing.T) {
			h := newHarness(t, Options{})
			require.NoError(t, h.ctrl.Login(context.Background(), credential.NewUser("alice"), h.tokenIn(t, tt.left)))

			assert.Equal(t, tt.want, h.ctrl.Snapshot().CanExtend)
		})
	}
}

func TestExtendSession_Success(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	t1 := h.tokenIn(t, 10*time.Minute)
	t2 := h.tokenIn(t, time.Hour)
	require.NoError(t, h.ctrl.Login(ctx, credential.NewUser("alice"), t1))

	h.backend.refresh = func(ctx context.Context, tok string) (string, error) {
		assert.Equal(t, t1, tok)
		return t2, nil
	}

	require.NoError(t, h.ctrl.ExtendSession(ctx))

	snap := h.ctrl.Snapshot()
	assert.Equal(t, t2, h.creds.Token(ctx))
	assert.Equal(t, int64(3600), snap.TimeLeftSeconds)
	assert.False(t, snap.CanExtend)
	assert.Equal(t, "alice", snap.User.Username)
	assert.Equal(t, "alice", h.creds.Load(ctx).Username)
	assert.Equal(t, []int64{3600}, h.notifier.succeeded)
}

func TestExtendSession_NotAllowed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})

	assert.ErrorIs(t, h.ctrl.ExtendSession(ctx), ErrExtendNotAllowed)

	require.NoError(t, h.ctrl.Login(ctx, credential.NewUser("alice"), h.tokenIn(t, time.Hour)))
	assert.ErrorIs(t, h.ctrl.ExtendSession(ctx), ErrExtendNotAllowed)

	_, refresh := h.backend.calls()
	assert.Zero(t, refresh)
}

func TestExtendSession_FailureLogsOut(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	require.NoError(t, h.ctrl.Login(ctx, credential.NewUser("alice"), h.tokenIn(t, 10*time.Minute)))

	rejected := &api.Error{StatusCode: http.StatusUnauthorized, Message: "refresh rejected"}
	h.backend.refresh = func(ctx context.Context, tok string) (string, error) {
		return "", rejected
	}
	var stateAtNotify State
	h.notifier.onFailed = func() { stateAtNotify = h.ctrl.Snapshot().State }

	err := h.ctrl.ExtendSession(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, rejected)

	assert.Equal(t, Authenticated, stateAtNotify)
	assert.Len(t, h.notifier.failed, 1)
	assert.Equal(t, Unauthenticated, h.ctrl.Snapshot().State)
	assert.Empty(t, h.creds.Token(ctx))
}

func TestExtendSession_LogoutDuringRefresh(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	require.NoError(t, h.ctrl.Login(ctx, credential.NewUser("alice"), h.tokenIn(t, 10*time.Minute)))

	fresh := h.tokenIn(t, time.Hour)
	h.backend.refresh = func(rctx context.Context, tok string) (string, error) {
		h.ctrl.Logout(ctx)
		return fresh, nil
	}

	assert.ErrorIs(t, h.ctrl.ExtendSession(ctx), ErrSessionChanged)
	assert.Equal(t, Unauthenticated, h.ctrl.Snapshot().State)
	assert.Empty(t, h.creds.Token(ctx))
}

func TestLogout_Idempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	require.NoError(t, h.ctrl.Login(ctx, credential.NewUser("alice"), h.tokenIn(t, time.Hour)))

	h.ctrl.Logout(ctx)
	first := h.ctrl.Snapshot()
	h.ctrl.Logout(ctx)

	assert.Equal(t, first, h.ctrl.Snapshot())
	assert.Equal(t, Unauthenticated, first.State)
	assert.False(t, first.IsAuthenticated)
	assert.Empty(t, h.creds.Token(ctx))
}

func TestOnChange(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var states []State

	h := newHarness(t, Options{OnChange: func(s Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	}})

	h.ctrl.Start(ctx)
	require.NoError(t, h.ctrl.Login(ctx, credential.NewUser("alice"), "T1"))
	h.ctrl.Logout(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{Initializing, Unauthenticated, Authenticated, Unauthenticated}, states)
}

func TestClose_StopsCountdown(t *testing.T) {
	h := newHarness(t, Options{TickInterval: time.Millisecond})
	require.NoError(t, h.ctrl.Login(context.Background(), credential.NewUser("alice"), "T1"))

	h.ctrl.Close()

	// no countdown is started after Close
	require.NoError(t, h.ctrl.Login(context.Background(), credential.NewUser("alice"), "T1"))
	h.ctrl.mu.Lock()
	assert.Nil(t, h.ctrl.stop)
	h.ctrl.mu.Unlock()
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "initializing", Initializing.String())
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "unauthenticated", Unauthenticated.String())
	assert.Equal(t, "unknown", State(42).String())
}
