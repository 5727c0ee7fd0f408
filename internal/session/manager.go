package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/domteam/dom-session/internal/api"
	"github.com/domteam/dom-session/internal/config"
)

type PermissionChecker interface {
	Allows(path string, role string) bool
}

type Options struct {
	// Refresh tokens that are read for a request once they are within RefreshThreshold of expiry
	AutoRefresh      bool
	RefreshThreshold time.Duration

	// How often the expiry of the held token is checked while signed in
	CheckInterval time.Duration

	// Upper bound for a refresh started in the background
	RefreshTimeout time.Duration

	// Render "Bearer null" from AuthHeaders when no token is held
	PreserveNullBearer bool

	Clock  Clock
	Logger echo.Logger
}

func DefaultOptions() Options {
	return Options{
		AutoRefresh:        true,
		RefreshThreshold:   5 * time.Minute,
		CheckInterval:      time.Minute,
		RefreshTimeout:     10 * time.Second,
		PreserveNullBearer: true,
	}
}

func OptionsFromConfig(conf *config.Config) Options {
	return Options{
		AutoRefresh:        conf.Session.AutoRefresh,
		RefreshThreshold:   conf.RefreshThreshold(),
		CheckInterval:      conf.CheckInterval(),
		RefreshTimeout:     conf.RequestTimeout(),
		PreserveNullBearer: conf.Session.PreserveNullBearer,
	}
}

// Manager owns the signed-in session: the in-memory credential and principal, their durable
// mirror, refreshes and the periodic expiry check. It is safe for concurrent use.
type Manager struct {
	backend Backend
	store   *TokenStore
	codec   *Codec
	perms   PermissionChecker
	opts    Options
	clock   Clock
	logger  echo.Logger

	initOnce sync.Once

	mu         sync.Mutex
	status     Status
	principal  *Principal
	credential *Credential
	lastError  error
	// Bumped by every login and logout; refresh results from an older generation are dropped
	generation uint64
	stopCheck  chan struct{}

	refreshes singleflight.Group

	subMu       sync.Mutex
	subscribers map[int]func(Status)
	nextSubID   int
}

var _ oauth2.TokenSource = (*Manager)(nil)

func NewManager(backend Backend, store *TokenStore, perms PermissionChecker, opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New("session")
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = time.Minute
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 10 * time.Second
	}

	return &Manager{
		backend:     backend,
		store:       store,
		codec:       store.codec,
		perms:       perms,
		opts:        opts,
		clock:       opts.Clock,
		logger:      opts.Logger,
		status:      StatusUninitialized,
		subscribers: map[int]func(Status){},
	}
}

// Initialize restores the session from storage. Only the first call does anything.
func (m *Manager) Initialize() {
	m.initOnce.Do(m.restore)
}

func (m *Manager) restore() {
	m.setStatus(StatusRestoring)

	cred, principal, err := m.store.Load()
	if err != nil {
		m.logger.Warnf("Discarding stored session: %v", err)
	}

	if cred != nil && cred.Claims.IsExpired(m.clock.Now()) {
		m.logger.Infof("Stored session for %s expired at %s, discarding", cred.Claims.Subject, cred.ExpiresAt().Format(time.RFC3339))
		cred = nil
	}

	m.mu.Lock()
	if cred == nil {
		// Leftovers such as a lone active context must not outlive the credential
		if err := m.store.Clear(); err != nil {
			m.logger.Errorf("Couldn't clear session storage: %v", err)
		}
		m.status = StatusUnauthenticated
		m.mu.Unlock()
		m.notify(StatusUnauthenticated)
		return
	}

	m.credential = cred
	m.principal = principal
	m.status = StatusAuthenticated
	m.armLocked()
	m.mu.Unlock()

	m.logger.Infof("Restored session for %s", cred.Claims.Subject)
	m.notify(StatusAuthenticated)
}

// Login authenticates against the backend. It does not pick an operating context.
func (m *Manager) Login(ctx context.Context, req api.LoginRequest) (*Principal, error) {
	res, err := m.backend.Login(ctx, req)
	if err != nil {
		return nil, m.loginFailed(classifyLoginError(err))
	}

	claims, err := m.codec.Decode(res.AccessToken)
	if err != nil {
		return nil, m.loginFailed(err)
	}
	if claims.IsExpired(m.clock.Now()) {
		return nil, m.loginFailed(fmt.Errorf("%w: backend issued a token that is already expired", ErrTokenExpired))
	}

	role := res.Profile
	if role == "" {
		role = claims.Role
	}
	principal := PrincipalFromUser(res.User, role)
	if principal.ID == "" {
		principal.ID = claims.Subject
	}
	cred := &Credential{Raw: res.AccessToken, Claims: claims}

	m.mu.Lock()
	if m.principal != nil && m.principal.ID != principal.ID {
		if err := m.store.Clear(); err != nil {
			m.logger.Errorf("Couldn't clear previous principal's storage: %v", err)
		}
	}
	if err := m.store.Save(cred, principal); err != nil {
		m.mu.Unlock()
		return nil, m.loginFailed(err)
	}
	m.generation++
	m.credential = cred
	m.principal = principal
	m.lastError = nil
	m.status = StatusAuthenticated
	m.armLocked()
	m.mu.Unlock()

	m.logger.Infof("Signed in %s as %s", claims.Subject, principal.Role)
	m.notify(StatusAuthenticated)

	return copyPrincipal(principal), nil
}

func (m *Manager) loginFailed(err error) error {
	m.mu.Lock()
	m.lastError = err
	m.mu.Unlock()
	m.logger.Warnf("Login failed: %v", err)
	return err
}

// Logout always succeeds locally. The backend is told on a best-effort basis.
func (m *Manager) Logout(ctx context.Context) {
	m.logout(ctx, nil)
}

func (m *Manager) logout(ctx context.Context, cause error) {
	m.mu.Lock()
	gen, token := m.endLocked(cause)
	m.mu.Unlock()
	m.finishLogout(ctx, gen, token)
}

// endLocked drops the in-memory session and returns what finishLogout needs. Callers hold m.mu.
func (m *Manager) endLocked(cause error) (uint64, string) {
	m.generation++
	token := ""
	if m.credential != nil {
		token = m.credential.Raw
	}
	m.credential = nil
	m.principal = nil
	m.lastError = cause
	m.disarmLocked()
	m.status = StatusLoggingOut
	return m.generation, token
}

func (m *Manager) finishLogout(ctx context.Context, gen uint64, token string) {
	m.notify(StatusLoggingOut)

	if token != "" {
		if err := m.backend.Logout(ctx, token); err != nil {
			m.logger.Debugf("Backend logout failed, ignoring: %v", err)
		}
	}

	m.mu.Lock()
	if m.generation != gen {
		// A newer login or logout owns the state now
		m.mu.Unlock()
		return
	}
	if err := m.store.Clear(); err != nil {
		m.logger.Errorf("Couldn't clear session storage: %v", err)
	}
	m.status = StatusUnauthenticated
	m.mu.Unlock()

	m.notify(StatusUnauthenticated)
}

// Refresh swaps the held token for a new one. Concurrent callers share a single request.
// Any failure ends the session.
func (m *Manager) Refresh(ctx context.Context) (*Credential, error) {
	m.mu.Lock()
	held := m.credential != nil
	gen := m.generation
	m.mu.Unlock()
	if !held {
		return nil, ErrTokenMissing
	}

	// Flights are per session: a caller of a newer session never joins one that is about to be dropped
	key := fmt.Sprintf("refresh-%d", gen)
	ch := m.refreshes.DoChan(key, func() (any, error) {
		// Callers sharing this flight may give up; the request itself must not be cut short
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.RefreshTimeout)
		defer cancel()
		return m.doRefresh(rctx, gen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Credential), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) doRefresh(ctx context.Context, gen uint64) (*Credential, error) {
	m.mu.Lock()
	cred := m.credential
	if m.generation != gen {
		m.mu.Unlock()
		return nil, ErrStaleRefresh
	}
	if cred == nil {
		m.mu.Unlock()
		return nil, ErrTokenMissing
	}
	m.status = StatusRefreshing
	m.mu.Unlock()
	m.notify(StatusRefreshing)

	next, err := m.requestRefresh(ctx, cred)

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		m.logger.Debugf("Dropping refresh result from a finished session")
		return nil, ErrStaleRefresh
	}

	if err == nil {
		err = m.store.SaveToken(next)
	}

	if err != nil {
		err = fmt.Errorf("%w: %w", ErrRefreshFailed, err)
		ended, token := m.endLocked(err)
		m.mu.Unlock()
		m.logger.Warnf("Ending session: %v", err)
		m.finishLogout(ctx, ended, token)
		return nil, err
	}

	m.credential = next
	m.status = StatusAuthenticated
	m.armLocked()
	m.mu.Unlock()

	m.logger.Debugf("Refreshed token for %s, now valid until %s", next.Claims.Subject, next.ExpiresAt().Format(time.RFC3339))
	m.notify(StatusAuthenticated)
	return next, nil
}

func (m *Manager) requestRefresh(ctx context.Context, cred *Credential) (*Credential, error) {
	res, err := m.backend.Refresh(ctx, cred.Raw)
	if err != nil {
		return nil, err
	}

	claims, err := m.codec.Decode(res.AccessToken)
	if err != nil {
		return nil, err
	}
	if claims.IsExpired(m.clock.Now()) {
		return nil, ErrTokenExpired
	}

	return &Credential{Raw: res.AccessToken, Claims: claims}, nil
}

// RefreshTask is the handle of a refresh running in the background
type RefreshTask struct {
	done chan struct{}
	cred *Credential
	err  error
}

func (t *RefreshTask) Done() <-chan struct{} {
	return t.done
}

func (t *RefreshTask) Wait(ctx context.Context) (*Credential, error) {
	select {
	case <-t.done:
		return t.cred, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RefreshAsync starts a refresh without waiting for it
func (m *Manager) RefreshAsync() *RefreshTask {
	task := &RefreshTask{done: make(chan struct{})}
	go func() {
		defer close(task.done)
		task.cred, task.err = m.Refresh(context.Background())
		if task.err != nil && !errors.Is(task.err, ErrStaleRefresh) {
			m.logger.Warnf("Background refresh failed: %v", task.err)
		}
	}()
	return task
}

// IsTokenValid is false for malformed or expired tokens. A held token close to expiry
// kicks off a background refresh and is still reported valid, as it stays usable until it expires.
func (m *Manager) IsTokenValid(token string) bool {
	claims, err := m.codec.Decode(token)
	if err != nil {
		return false
	}

	now := m.clock.Now()
	if claims.IsExpired(now) {
		return false
	}

	if m.opts.AutoRefresh && claims.IsNearExpiry(now, m.opts.RefreshThreshold) {
		m.mu.Lock()
		held := m.credential != nil && m.credential.Raw == token
		m.mu.Unlock()
		if held {
			m.RefreshAsync()
		}
	}

	return true
}

// Token makes the manager an oauth2.TokenSource for outgoing backend requests
func (m *Manager) Token() (*oauth2.Token, error) {
	m.mu.Lock()
	cred := m.credential
	m.mu.Unlock()

	if cred == nil {
		return nil, ErrTokenMissing
	}
	if !m.IsTokenValid(cred.Raw) {
		return nil, ErrTokenExpired
	}

	return &oauth2.Token{
		AccessToken: cred.Raw,
		TokenType:   "Bearer",
		Expiry:      cred.ExpiresAt(),
	}, nil
}

func (m *Manager) HasPermission(route string) bool {
	m.mu.Lock()
	principal := m.principal
	m.mu.Unlock()

	if principal == nil || m.perms == nil {
		return false
	}
	return m.perms.Allows(route, principal.Role)
}

// AuthHeaders always carries an Authorization header when PreserveNullBearer is set,
// even without a token ("Bearer null"). Header presence says nothing about being signed in.
func (m *Manager) AuthHeaders() http.Header {
	m.mu.Lock()
	cred := m.credential
	m.mu.Unlock()

	h := http.Header{}
	h.Set("Content-Type", "application/json")

	switch {
	case cred != nil:
		h.Set("Authorization", "Bearer "+cred.Raw)
	case m.opts.PreserveNullBearer:
		h.Set("Authorization", "Bearer null")
	}
	return h
}

// UpdatePrincipal replaces the principal wholesale, e.g. with a view scoped to a new context.
// persist, when given, runs under the same lock as logout's storage purge, so whatever it writes
// is either purged with the session or never written. Its failure leaves the old principal in place.
func (m *Manager) UpdatePrincipal(p *Principal, persist func() error) error {
	m.mu.Lock()
	if !m.status.Authenticated() {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	if err := m.store.SavePrincipal(p); err != nil {
		m.mu.Unlock()
		return err
	}
	if persist != nil {
		if err := persist(); err != nil {
			if m.principal != nil {
				if rerr := m.store.SavePrincipal(m.principal); rerr != nil {
					m.logger.Errorf("Couldn't restore previous principal: %v", rerr)
				}
			}
			m.mu.Unlock()
			return err
		}
	}
	m.principal = copyPrincipal(p)
	status := m.status
	m.mu.Unlock()

	m.notify(status)
	return nil
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) IsAuthenticated() bool {
	return m.Status().Authenticated()
}

func (m *Manager) IsLoading() bool {
	return !m.Status().Settled()
}

func (m *Manager) Principal() *Principal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyPrincipal(m.principal)
}

func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := State{
		Status:    m.status,
		Principal: copyPrincipal(m.principal),
		LastError: m.lastError,
	}
	if m.credential != nil {
		c := *m.credential
		s.Credential = &c
	}
	return s
}

// Subscribe registers fn for every status change. The returned func unregisters it.
func (m *Manager) Subscribe(fn func(Status)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subscribers, id)
	}
}

func (m *Manager) notify(status Status) {
	m.subMu.Lock()
	fns := make([]func(Status), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(status)
	}
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	m.notify(s)
}

// armLocked starts the expiry check unless it is already running. Callers hold m.mu.
func (m *Manager) armLocked() {
	if m.stopCheck != nil {
		return
	}
	stop := make(chan struct{})
	m.stopCheck = stop
	go m.checkLoop(m.clock.NewTicker(m.opts.CheckInterval), stop)
}

func (m *Manager) disarmLocked() {
	if m.stopCheck == nil {
		return
	}
	close(m.stopCheck)
	m.stopCheck = nil
}

func (m *Manager) checkLoop(t Ticker, stop chan struct{}) {
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			m.checkExpiry()
		}
	}
}

// The check never refreshes: only a token that is about to be used is worth refreshing
func (m *Manager) checkExpiry() {
	m.mu.Lock()
	cred := m.credential
	if cred == nil || !cred.Claims.IsExpired(m.clock.Now()) {
		m.mu.Unlock()
		return
	}
	gen, token := m.endLocked(ErrTokenExpired)
	m.mu.Unlock()

	m.logger.Infof("Session token for %s expired, signing out", cred.Claims.Subject)
	m.finishLogout(context.Background(), gen, token)
}

func copyPrincipal(p *Principal) *Principal {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
