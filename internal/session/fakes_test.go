package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"

	"github.com/domteam/dom-session/internal/api"
)

var testEpoch = time.Unix(1_700_000_000, 0)

// The client never checks signatures, any key will do
func signToken(t *testing.T, sub, profile string, exp time.Time) string {
	t.Helper()

	claims := jwt.MapClaims{"sub": sub, "exp": exp.Unix()}
	if profile != "" {
		claims["profile"] = profile
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{c: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves time forward and fires every live ticker once
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	tickers := append([]*fakeTicker(nil), c.tickers...)
	c.mu.Unlock()

	for _, t := range tickers {
		if t.stopped.Load() {
			continue
		}
		select {
		case t.c <- now:
		default:
		}
	}
}

func (c *fakeClock) TickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

func (c *fakeClock) LiveTickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.stopped.Load() {
			n++
		}
	}
	return n
}

type fakeTicker struct {
	c       chan time.Time
	stopped atomic.Bool
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.c
}

func (t *fakeTicker) Stop() {
	t.stopped.Store(true)
}

type fakeBackend struct {
	mu        sync.Mutex
	loginRes  *api.LoginResponse
	loginErr  error
	logoutErr error
	refreshFn func(ctx context.Context, token string) (*api.RefreshResponse, error)

	refreshCalls atomic.Int32
	logouts      []string
}

var _ Backend = (*fakeBackend)(nil)

func (b *fakeBackend) Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loginErr != nil {
		return nil, b.loginErr
	}
	res := *b.loginRes
	return &res, nil
}

func (b *fakeBackend) Refresh(ctx context.Context, token string) (*api.RefreshResponse, error) {
	b.refreshCalls.Add(1)
	b.mu.Lock()
	fn := b.refreshFn
	b.mu.Unlock()
	return fn(ctx, token)
}

func (b *fakeBackend) Logout(ctx context.Context, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logouts = append(b.logouts, token)
	return b.logoutErr
}

func (b *fakeBackend) Logouts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.logouts...)
}

func (b *fakeBackend) setRefresh(fn func(ctx context.Context, token string) (*api.RefreshResponse, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshFn = fn
}
