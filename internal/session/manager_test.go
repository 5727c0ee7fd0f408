package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domteam/dom-session/internal/accesscontrol"
	"github.com/domteam/dom-session/internal/api"
	"github.com/domteam/dom-session/internal/config"
	"github.com/domteam/dom-session/internal/storage"
)

type testRig struct {
	manager *Manager
	backend *fakeBackend
	clock   *fakeClock
	kv      *storage.MemoryKV
}

func newRig(t *testing.T, mutate ...func(*Options)) *testRig {
	t.Helper()

	r := &testRig{
		backend: &fakeBackend{},
		clock:   newFakeClock(),
		kv:      storage.NewMemoryKV(),
	}

	opts := DefaultOptions()
	opts.Clock = r.clock
	for _, fn := range mutate {
		fn(&opts)
	}

	perms := accesscontrol.NewEvaluator(config.DefaultRoutes())
	r.manager = NewManager(r.backend, NewTokenStore(r.kv, NewCodec()), perms, opts)
	t.Cleanup(func() { r.manager.Logout(context.Background()) })
	return r
}

func (r *testRig) seedStorage(t *testing.T, token string) {
	require.NoError(t, r.kv.Set(storage.KeyUserToken, token))
	require.NoError(t, r.kv.Set(storage.KeyUserData, `{"id":"42","displayName":"Maria","role":"empregador"}`))
	require.NoError(t, r.kv.Set(storage.KeyActiveContext, `{"groupId":"g1","role":"empregador"}`))
}

func (r *testRig) assertStorageEmpty(t *testing.T) {
	t.Helper()
	for _, k := range storage.SessionKeys {
		_, err := r.kv.Get(k)
		assert.ErrorIs(t, err, storage.ErrNotFound, k)
	}
}

func (r *testRig) login(t *testing.T, token string) *Principal {
	t.Helper()
	r.backend.loginRes = &api.LoginResponse{
		AccessToken: token,
		Profile:     "empregador",
		User:        api.UserInfo{ID: "42", Name: "Maria", Email: "maria@example.com"},
	}
	p, err := r.manager.Login(context.Background(), api.LoginRequest{CPF: "303.617.927-51", Password: "123456"})
	require.NoError(t, err)
	return p
}

func TestInitialize_NothingStored(t *testing.T) {
	r := newRig(t)
	assert.True(t, r.manager.IsLoading())

	r.manager.Initialize()

	assert.Equal(t, StatusUnauthenticated, r.manager.Status())
	assert.False(t, r.manager.IsLoading())
	assert.Nil(t, r.manager.Principal())
	assert.Zero(t, r.clock.TickerCount())
}

func TestInitialize_RestoresValidSession(t *testing.T) {
	r := newRig(t)
	token := signToken(t, "42", "empregador", testEpoch.Add(time.Hour))
	r.seedStorage(t, token)

	r.manager.Initialize()

	assert.True(t, r.manager.IsAuthenticated())
	assert.Equal(t, "Maria", r.manager.Principal().DisplayName)
	assert.Equal(t, token, r.manager.Snapshot().Credential.Raw)
	assert.Equal(t, 1, r.clock.LiveTickers())
}

func TestInitialize_IsIdempotent(t *testing.T) {
	r := newRig(t)
	r.seedStorage(t, signToken(t, "42", "empregador", testEpoch.Add(time.Hour)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.manager.Initialize()
		}()
	}
	wg.Wait()
	r.manager.Initialize()

	assert.True(t, r.manager.IsAuthenticated())
	assert.Equal(t, 1, r.clock.TickerCount())
}

func TestInitialize_ExpiredTokenClearsEverything(t *testing.T) {
	r := newRig(t)
	r.seedStorage(t, signToken(t, "42", "empregador", testEpoch.Add(-time.Minute)))

	r.manager.Initialize()

	assert.Equal(t, StatusUnauthenticated, r.manager.Status())
	assert.Nil(t, r.manager.Principal())
	r.assertStorageEmpty(t)
	assert.Zero(t, r.clock.TickerCount())
}

func TestInitialize_CorruptStorage(t *testing.T) {
	r := newRig(t)
	r.seedStorage(t, "garbage")

	r.manager.Initialize()

	assert.Equal(t, StatusUnauthenticated, r.manager.Status())
	r.assertStorageEmpty(t)
}

func TestLogin(t *testing.T) {
	r := newRig(t)
	r.manager.Initialize()

	token := signToken(t, "42", "empregador", testEpoch.Add(time.Hour))
	p := r.login(t, token)

	assert.Equal(t, &Principal{
		ID:          "42",
		DisplayName: "Maria",
		Role:        "empregador",
		ContactInfo: ContactInfo{Email: "maria@example.com"},
	}, p)
	assert.True(t, r.manager.IsAuthenticated())
	assert.True(t, r.manager.HasPermission("/people"))
	assert.True(t, r.manager.HasPermission("/groups/123"))
	assert.Equal(t, "Bearer "+token, r.manager.AuthHeaders().Get("Authorization"))
	assert.Equal(t, "application/json", r.manager.AuthHeaders().Get("Content-Type"))
	assert.Equal(t, 1, r.clock.LiveTickers())

	stored, err := r.kv.Get(storage.KeyUserToken)
	require.NoError(t, err)
	assert.Equal(t, token, stored)
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		token string
		isErr error
	}{
		{
			name:  "rejected credentials",
			err:   &api.StatusError{StatusCode: 401, Message: "CPF ou senha inválidos"},
			isErr: ErrInvalidCredentials,
		},
		{
			name:  "backend error",
			err:   &api.StatusError{StatusCode: 500},
			isErr: ErrServerError,
		},
		{
			name:  "unreachable",
			err:   &api.TransportError{Op: "POST /auth/login", Err: errors.New("connection refused")},
			isErr: ErrNetworkError,
		},
		{
			name:  "malformed token",
			token: "not-a-jwt",
			isErr: ErrTokenMalformed,
		},
		{
			name:  "expired token",
			token: "expired",
			isErr: ErrTokenExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			r.manager.Initialize()

			token := tt.token
			if token == "expired" {
				token = signToken(t, "42", "empregador", testEpoch)
			}
			r.backend.loginErr = tt.err
			r.backend.loginRes = &api.LoginResponse{AccessToken: token, User: api.UserInfo{ID: "42"}}

			p, err := r.manager.Login(context.Background(), api.LoginRequest{CPF: "1", Password: "x"})
			assert.ErrorIs(t, err, tt.isErr)
			assert.Nil(t, p)

			snap := r.manager.Snapshot()
			assert.Equal(t, StatusUnauthenticated, snap.Status)
			assert.ErrorIs(t, snap.LastError, tt.isErr)
			r.assertStorageEmpty(t)
		})
	}
}

func TestLogin_OtherPrincipalDropsActiveContext(t *testing.T) {
	r := newRig(t)
	r.seedStorage(t, signToken(t, "42", "empregador", testEpoch.Add(time.Hour)))
	r.manager.Initialize()

	r.backend.loginRes = &api.LoginResponse{
		AccessToken: signToken(t, "77", "empregado", testEpoch.Add(time.Hour)),
		Profile:     "empregado",
		User:        api.UserInfo{ID: "77", Name: "João"},
	}
	_, err := r.manager.Login(context.Background(), api.LoginRequest{CPF: "2", Password: "x"})
	require.NoError(t, err)

	_, err = r.kv.Get(storage.KeyActiveContext)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.False(t, r.manager.HasPermission("/people"))
	assert.Equal(t, 1, r.clock.LiveTickers())
}

func TestLogout(t *testing.T) {
	r := newRig(t)
	r.manager.Initialize()
	token := signToken(t, "42", "empregador", testEpoch.Add(time.Hour))
	r.login(t, token)
	require.NoError(t, r.kv.Set(storage.KeyActiveContext, `{"groupId":"g1"}`))
	r.backend.logoutErr = errors.New("backend down")

	r.manager.Logout(context.Background())

	assert.Equal(t, StatusUnauthenticated, r.manager.Status())
	assert.Nil(t, r.manager.Principal())
	assert.False(t, r.manager.HasPermission("/dashboard"))
	assert.Equal(t, []string{token}, r.backend.Logouts())
	assert.Equal(t, "Bearer null", r.manager.AuthHeaders().Get("Authorization"))
	require.Eventually(t, func() bool { return r.clock.LiveTickers() == 0 }, time.Second, time.Millisecond)
	r.assertStorageEmpty(t)
}

func TestAuthHeaders_WithoutNullBearer(t *testing.T) {
	r := newRig(t, func(o *Options) { o.PreserveNullBearer = false })
	r.manager.Initialize()

	h := r.manager.AuthHeaders()
	assert.Empty(t, h.Values("Authorization"))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
}

func TestRefresh_Deduplicates(t *testing.T) {
	r := newRig(t)
	r.manager.Initialize()
	r.login(t, signToken(t, "42", "empregador", testEpoch.Add(2*time.Minute)))

	fresh := signToken(t, "42", "empregador", testEpoch.Add(time.Hour))
	release := make(chan struct{})
	r.backend.setRefresh(func(ctx context.Context, token string) (*api.RefreshResponse, error) {
		<-release
		return &api.RefreshResponse{AccessToken: fresh}, nil
	})

	const callers = 5
	results := make([]*Credential, callers)
	errs := make([]error, callers)

	var started, done sync.WaitGroup
	for i := 0; i < callers; i++ {
		started.Add(1)
		done.Add(1)
		go func(i int) {
			defer done.Done()
			started.Done()
			results[i], errs[i] = r.manager.Refresh(context.Background())
		}(i)
	}
	started.Wait()
	require.Eventually(t, func() bool { return r.backend.refreshCalls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()

	assert.EqualValues(t, 1, r.backend.refreshCalls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, fresh, results[i].Raw)
	}
	assert.Equal(t, StatusAuthenticated, r.manager.Status())

	stored, err := r.kv.Get(storage.KeyUserToken)
	require.NoError(t, err)
	assert.Equal(t, fresh, stored)
}

func TestRefresh_WithoutSession(t *testing.T) {
	r := newRig(t)
	r.manager.Initialize()

	_, err := r.manager.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrTokenMissing)
	assert.Zero(t, r.backend.refreshCalls.Load())
}

func TestRefresh_FailureEndsSession(t *testing.T) {
	tests := []struct {
		name string
		fn   func(ctx context.Context, token string) (*api.RefreshResponse, error)
	}{
		{"rejected", func(ctx context.Context, token string) (*api.RefreshResponse, error) {
			return nil, &api.StatusError{StatusCode: 401}
		}},
		{"malformed replacement", func(ctx context.Context, token string) (*api.RefreshResponse, error) {
			return &api.RefreshResponse{AccessToken: "junk"}, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			r.manager.Initialize()
			r.login(t, signToken(t, "42", "empregador", testEpoch.Add(time.Hour)))
			r.backend.setRefresh(tt.fn)

			cred, err := r.manager.Refresh(context.Background())
			assert.ErrorIs(t, err, ErrRefreshFailed)
			assert.Nil(t, cred)

			snap := r.manager.Snapshot()
			assert.Equal(t, StatusUnauthenticated, snap.Status)
			assert.ErrorIs(t, snap.LastError, ErrRefreshFailed)
			r.assertStorageEmpty(t)
		})
	}
}

func TestRefresh_LogoutWhileInFlight(t *testing.T) {
	r := newRig(t)
	r.manager.Initialize()
	r.login(t, signToken(t, "42", "empregador", testEpoch.Add(time.Hour)))

	fresh := signToken(t, "42", "empregador", testEpoch.Add(2*time.Hour))
	release := make(chan struct{})
	r.backend.setRefresh(func(ctx context.Context, token string) (*api.RefreshResponse, error) {
		<-release
		return &api.RefreshResponse{AccessToken: fresh}, nil
	})

	task := r.manager.RefreshAsync()
	require.Eventually(t, func() bool { return r.backend.refreshCalls.Load() == 1 }, time.Second, time.Millisecond)

	r.manager.Logout(context.Background())
	close(release)

	_, err := task.Wait(context.Background())
	assert.ErrorIs(t, err, ErrStaleRefresh)
	assert.Equal(t, StatusUnauthenticated, r.manager.Status())
	assert.Nil(t, r.manager.Principal())
	r.assertStorageEmpty(t)
}

func TestRefresh_NewSessionDoesNotJoinStaleFlight(t *testing.T) {
	r := newRig(t)
	r.manager.Initialize()
	first := signToken(t, "42", "empregador", testEpoch.Add(time.Hour))
	r.login(t, first)

	staleFresh := signToken(t, "42", "empregador", testEpoch.Add(2*time.Hour))
	second := signToken(t, "42", "empregador", testEpoch.Add(3*time.Hour))
	secondFresh := signToken(t, "42", "empregador", testEpoch.Add(4*time.Hour))
	release := make(chan struct{})
	r.backend.setRefresh(func(ctx context.Context, token string) (*api.RefreshResponse, error) {
		if token == first {
			<-release
			return &api.RefreshResponse{AccessToken: staleFresh}, nil
		}
		return &api.RefreshResponse{AccessToken: secondFresh}, nil
	})

	stale := r.manager.RefreshAsync()
	require.Eventually(t, func() bool { return r.backend.refreshCalls.Load() == 1 }, time.Second, time.Millisecond)

	r.manager.Logout(context.Background())
	r.login(t, second)

	cred, err := r.manager.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, secondFresh, cred.Raw)
	assert.EqualValues(t, 2, r.backend.refreshCalls.Load())

	close(release)
	_, err = stale.Wait(context.Background())
	assert.ErrorIs(t, err, ErrStaleRefresh)

	assert.Equal(t, StatusAuthenticated, r.manager.Status())
	assert.Equal(t, secondFresh, r.manager.Snapshot().Credential.Raw)
	data, err := r.kv.Get(storage.KeyUserToken)
	require.NoError(t, err)
	assert.Equal(t, secondFresh, data)
}

func TestRefresh_CallerContextDoesNotCancelFlight(t *testing.T) {
	r := newRig(t)
	r.manager.Initialize()
	r.login(t, signToken(t, "42", "empregador", testEpoch.Add(time.Hour)))

	fresh := signToken(t, "42", "empregador", testEpoch.Add(2*time.Hour))
	release := make(chan struct{})
	r.backend.setRefresh(func(ctx context.Context, token string) (*api.RefreshResponse, error) {
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &api.RefreshResponse{AccessToken: fresh}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := r.manager.Refresh(ctx)
		errc <- err
	}()
	require.Eventually(t, func() bool { return r.backend.refreshCalls.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		snap := r.manager.Snapshot()
		return snap.Credential != nil && snap.Credential.Raw == fresh
	}, time.Second, time.Millisecond)
}

func TestIsTokenValid(t *testing.T) {
	r := newRig(t)
	r.manager.Initialize()

	assert.False(t, r.manager.IsTokenValid(""))
	assert.False(t, r.manager.IsTokenValid("garbage"))
	assert.False(t, r.manager.IsTokenValid(signToken(t, "42", "", testEpoch)))
	assert.True(t, r.manager.IsTokenValid(signToken(t, "42", "", testEpoch.Add(time.Second))))

	// Not held by the manager, so nothing to refresh
	assert.Zero(t, r.backend.refreshCalls.Load())
}

func TestIsTokenValid_NearExpiryRefreshesInBackground(t *testing.T) {
	r := newRig(t)
	r.manager.Initialize()
	held := signToken(t, "42", "empregador", testEpoch.Add(4*time.Minute))
	r.login(t, held)

	fresh := signToken(t, "42", "empregador", testEpoch.Add(time.Hour))
	r.backend.setRefresh(func(ctx context.Context, token string) (*api.RefreshResponse, error) {
		assert.Equal(t, held, token)
		return &api.RefreshResponse{AccessToken: fresh}, nil
	})

	assert.True(t, r.manager.IsTokenValid(held))

	require.Eventually(t, func() bool {
		snap := r.manager.Snapshot()
		return snap.Credential != nil && snap.Credential.Raw == fresh
	}, time.Second, time.Millisecond)
	assert.True(t, r.manager.IsAuthenticated())
}

func TestIsTokenValid_AutoRefreshDisabled(t *testing.T) {
	r := newRig(t, func(o *Options) { o.AutoRefresh = false })
	r.manager.Initialize()
	held := signToken(t, "42", "empregador", testEpoch.Add(time.Minute))
	r.login(t, held)

	assert.True(t, r.manager.IsTokenValid(held))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, r.backend.refreshCalls.Load())
}

func TestToken(t *testing.T) {
	r := newRig(t, func(o *Options) { o.AutoRefresh = false })
	r.manager.Initialize()

	_, err := r.manager.Token()
	assert.ErrorIs(t, err, ErrTokenMissing)

	exp := testEpoch.Add(time.Hour)
	raw := signToken(t, "42", "empregador", exp)
	r.login(t, raw)

	tok, err := r.manager.Token()
	require.NoError(t, err)
	assert.Equal(t, raw, tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.True(t, exp.Equal(tok.Expiry))

	r.clock.mu.Lock()
	r.clock.now = exp
	r.clock.mu.Unlock()
	_, err = r.manager.Token()
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestExpiryCheck_LogsOutWithoutRefreshing(t *testing.T) {
	r := newRig(t)
	r.manager.Initialize()
	token := signToken(t, "42", "empregador", testEpoch.Add(90*time.Second))
	r.login(t, token)

	r.clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, r.manager.IsAuthenticated())

	r.clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return r.manager.Status() == StatusUnauthenticated }, time.Second, time.Millisecond)

	assert.ErrorIs(t, r.manager.Snapshot().LastError, ErrTokenExpired)
	assert.Zero(t, r.backend.refreshCalls.Load())
	assert.Equal(t, []string{token}, r.backend.Logouts())
	require.Eventually(t, func() bool { return r.clock.LiveTickers() == 0 }, time.Second, time.Millisecond)
	r.assertStorageEmpty(t)
}

func TestExpiryCheck_IgnoresReplacedToken(t *testing.T) {
	r := newRig(t)
	r.manager.Initialize()
	r.login(t, signToken(t, "42", "empregador", testEpoch.Add(90*time.Second)))

	fresh := signToken(t, "42", "empregador", testEpoch.Add(time.Hour))
	r.backend.setRefresh(func(ctx context.Context, token string) (*api.RefreshResponse, error) {
		return &api.RefreshResponse{AccessToken: fresh}, nil
	})
	_, err := r.manager.Refresh(context.Background())
	require.NoError(t, err)

	r.clock.Advance(2 * time.Minute)
	r.manager.checkExpiry()

	assert.True(t, r.manager.IsAuthenticated())
	assert.Empty(t, r.backend.Logouts())
}

func TestUpdatePrincipal(t *testing.T) {
	r := newRig(t)
	r.manager.Initialize()

	assert.ErrorIs(t, r.manager.UpdatePrincipal(&Principal{ID: "42"}, nil), ErrNotAuthenticated)

	r.login(t, signToken(t, "42", "empregador", testEpoch.Add(time.Hour)))
	require.NoError(t, r.manager.UpdatePrincipal(&Principal{ID: "42", DisplayName: "Maria", Role: "admin"}, nil))

	assert.Equal(t, "admin", r.manager.Principal().Role)
	data, err := r.kv.Get(storage.KeyUserData)
	require.NoError(t, err)
	assert.Contains(t, data, `"role":"admin"`)
}

func TestUpdatePrincipal_PersistFailureKeepsPrincipal(t *testing.T) {
	r := newRig(t)
	r.manager.Initialize()
	r.login(t, signToken(t, "42", "empregador", testEpoch.Add(time.Hour)))

	boom := errors.New("disk full")
	err := r.manager.UpdatePrincipal(&Principal{ID: "42", Role: "admin"}, func() error { return boom })
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, "empregador", r.manager.Principal().Role)
	data, err := r.kv.Get(storage.KeyUserData)
	require.NoError(t, err)
	assert.Contains(t, data, `"role":"empregador"`)
}

func TestUpdatePrincipal_PersistSkippedAfterLogout(t *testing.T) {
	r := newRig(t)
	r.manager.Initialize()
	r.login(t, signToken(t, "42", "empregador", testEpoch.Add(time.Hour)))
	r.manager.Logout(context.Background())

	persisted := false
	err := r.manager.UpdatePrincipal(&Principal{ID: "42", Role: "admin"}, func() error {
		persisted = true
		return r.kv.Set(storage.KeyActiveContext, `{"groupId":"g1","role":"admin"}`)
	})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.False(t, persisted)
	r.assertStorageEmpty(t)
}

func TestSubscribe(t *testing.T) {
	r := newRig(t)

	var mu sync.Mutex
	var seen []Status
	unsubscribe := r.manager.Subscribe(func(s Status) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})

	r.manager.Initialize()
	r.login(t, signToken(t, "42", "empregador", testEpoch.Add(time.Hour)))
	r.manager.Logout(context.Background())
	unsubscribe()
	r.login(t, signToken(t, "42", "empregador", testEpoch.Add(time.Hour)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{
		StatusRestoring,
		StatusUnauthenticated,
		StatusAuthenticated,
		StatusLoggingOut,
		StatusUnauthenticated,
	}, seen)
}

func TestManager_AgainstHTTPBackend(t *testing.T) {
	token := signToken(t, "42", "empregador", time.Now().Add(time.Hour))

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"access_token":"` + token + `","profile":"empregador","user":{"id":42,"name":"Maria","cpf":"303.617.927-51"}}`))
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		w.Write([]byte(`{"success":true}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conf := config.Default()
	opts := DefaultOptions()
	m := NewManager(
		NewAPIBackend(api.NewClient(srv.URL)),
		NewTokenStore(storage.NewMemoryKV(), NewCodec()),
		accesscontrol.FromConfig(conf),
		opts,
	)
	m.Initialize()

	p, err := m.Login(context.Background(), api.LoginRequest{CPF: "303.617.927-51", Password: "123456"})
	require.NoError(t, err)
	assert.Equal(t, "42", p.ID)
	assert.Equal(t, "303.617.927-51", p.ContactInfo.CPF)

	assert.True(t, m.IsAuthenticated())
	assert.True(t, m.HasPermission("/people"))
	assert.Equal(t, "Bearer "+token, m.AuthHeaders().Get("Authorization"))

	m.Logout(context.Background())
	assert.False(t, m.IsAuthenticated())
}
