// Package activecontext picks the operating context (group + role) a signed-in principal acts under.
package activecontext

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/domteam/dom-session/internal/api"
	"github.com/domteam/dom-session/internal/session"
	"github.com/domteam/dom-session/internal/storage"
)

var ErrNotCandidate = errors.New("context is not available to this principal")

type Context struct {
	GroupID   string `json:"groupId"`
	GroupName string `json:"groupName"`
	Role      string `json:"role"`
	Profile   string `json:"profile"`
}

// Same reports whether c and o name the same group under the same role
func (c Context) Same(o Context) bool {
	return c.GroupID == o.GroupID && c.Role == o.Role
}

func fromInfo(i api.ContextInfo) Context {
	return Context{GroupID: i.GroupID, GroupName: i.GroupName, Role: i.Role, Profile: i.Profile}
}

// Backend is satisfied by *api.Authorized
type Backend interface {
	Contexts(ctx context.Context) ([]api.ContextInfo, error)
	SessionContext(ctx context.Context) (*api.SessionContextResponse, error)
	SelectContext(ctx context.Context, groupID, role string) (*api.SessionContextResponse, error)
	Me(ctx context.Context) (*api.UserInfo, error)
}

type PrincipalUpdater interface {
	UpdatePrincipal(p *session.Principal, persist func() error) error
}

type OutcomeKind int

const (
	// The principal keeps the role from its session-level record
	NoContexts OutcomeKind = iota
	Activated
	Retained
	SelectionRequired
)

func (k OutcomeKind) String() string {
	switch k {
	case NoContexts:
		return "no_contexts"
	case Activated:
		return "activated"
	case Retained:
		return "retained"
	case SelectionRequired:
		return "selection_required"
	}
	return "unknown"
}

type Outcome struct {
	Kind       OutcomeKind
	Active     *Context
	Candidates []Context
}

// Change is published to subscribers after every activation
type Change struct {
	Active  Context
	Counter uint64
}

type Resolver struct {
	backend    Backend
	kv         storage.KV
	principals PrincipalUpdater
	logger     echo.Logger

	mu          sync.Mutex
	cachedFor   string
	candidates  []Context
	counter     uint64
	subscribers map[int]func(Change)
	nextSubID   int
}

func NewResolver(backend Backend, kv storage.KV, principals PrincipalUpdater, logger echo.Logger) *Resolver {
	if logger == nil {
		logger = log.New("activecontext")
	}
	return &Resolver{
		backend:     backend,
		kv:          kv,
		principals:  principals,
		logger:      logger,
		subscribers: map[int]func(Change){},
	}
}

// Candidates fetches the contexts available to principalID, once per principal until Invalidate
func (r *Resolver) Candidates(ctx context.Context, principalID string) ([]Context, error) {
	r.mu.Lock()
	if r.candidates != nil && r.cachedFor == principalID {
		out := append([]Context(nil), r.candidates...)
		r.mu.Unlock()
		return out, nil
	}
	r.mu.Unlock()

	infos, err := r.backend.Contexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contexts: %w", err)
	}

	candidates := make([]Context, 0, len(infos))
	for _, i := range infos {
		candidates = append(candidates, fromInfo(i))
	}

	r.mu.Lock()
	r.cachedFor = principalID
	r.candidates = candidates
	r.mu.Unlock()

	return append([]Context(nil), candidates...), nil
}

// Resolve decides which context principalID operates under. It only activates when there is a
// single candidate; several candidates without a still-valid persisted choice need a selection.
func (r *Resolver) Resolve(ctx context.Context, principalID string) (Outcome, error) {
	candidates, err := r.Candidates(ctx, principalID)
	if err != nil {
		return Outcome{}, err
	}

	switch len(candidates) {
	case 0:
		return Outcome{Kind: NoContexts}, nil
	case 1:
		c := candidates[0]
		if err := r.Activate(ctx, c); err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: Activated, Active: &c, Candidates: candidates}, nil
	}

	if active, ok := r.Active(); ok {
		for _, c := range candidates {
			if c.Same(active) {
				return Outcome{Kind: Retained, Active: &active, Candidates: candidates}, nil
			}
		}
		r.logger.Infof("Persisted context %s/%s is no longer available to %s", active.GroupID, active.Role, principalID)
	}

	return Outcome{Kind: SelectionRequired, Candidates: candidates}, nil
}

// Select activates the candidate matching groupID and role
func (r *Resolver) Select(ctx context.Context, principalID, groupID, role string) (Context, error) {
	candidates, err := r.Candidates(ctx, principalID)
	if err != nil {
		return Context{}, err
	}

	want := Context{GroupID: groupID, Role: role}
	for _, c := range candidates {
		if c.Same(want) {
			return c, r.Activate(ctx, c)
		}
	}
	return Context{}, fmt.Errorf("%w: %s/%s", ErrNotCandidate, groupID, role)
}

// Activate switches the backend session to c, replaces the principal with the view scoped to c,
// persists c and bumps the refresh counter
func (r *Resolver) Activate(ctx context.Context, c Context) error {
	if _, err := r.backend.SelectContext(ctx, c.GroupID, c.Role); err != nil {
		return fmt.Errorf("failed to select context %s: %w", c.GroupID, err)
	}

	me, err := r.backend.Me(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch principal for context %s: %w", c.GroupID, err)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	// The context is written together with the principal so a concurrent logout purges both or neither
	err = r.principals.UpdatePrincipal(session.PrincipalFromUser(*me, c.Role), func() error {
		if err := r.kv.Set(storage.KeyActiveContext, string(data)); err != nil {
			return fmt.Errorf("failed to persist active context: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.counter++
	change := Change{Active: c, Counter: r.counter}
	r.mu.Unlock()

	r.logger.Infof("Active context is now %s (%s)", c.GroupID, c.Role)
	r.notify(change)
	return nil
}

// Active reads the persisted context. Unreadable entries are dropped.
func (r *Resolver) Active() (Context, bool) {
	data, err := r.kv.Get(storage.KeyActiveContext)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warnf("Couldn't read active context: %v", err)
		}
		return Context{}, false
	}

	var c Context
	if err := json.Unmarshal([]byte(data), &c); err != nil || c.GroupID == "" {
		r.logger.Warnf("Dropping unreadable active context")
		if err := r.kv.Delete(storage.KeyActiveContext); err != nil {
			r.logger.Errorf("Couldn't delete active context: %v", err)
		}
		return Context{}, false
	}
	return c, true
}

// ServerActive asks the backend which context it holds for the session
func (r *Resolver) ServerActive(ctx context.Context) (*api.SessionContextResponse, error) {
	return r.backend.SessionContext(ctx)
}

func (r *Resolver) RefreshCounter() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counter
}

// TriggerRefresh tells dependents to re-fetch context-scoped data without switching context
func (r *Resolver) TriggerRefresh() {
	active, _ := r.Active()

	r.mu.Lock()
	r.counter++
	change := Change{Active: active, Counter: r.counter}
	r.mu.Unlock()

	r.notify(change)
}

func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cachedFor = ""
	r.candidates = nil
}

// OnSessionStatus drops cached candidates once nobody is signed in. Pass it to session.Manager.Subscribe.
func (r *Resolver) OnSessionStatus(s session.Status) {
	if s == session.StatusUnauthenticated {
		r.Invalidate()
	}
}

func (r *Resolver) Subscribe(fn func(Change)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subscribers, id)
	}
}

func (r *Resolver) notify(c Change) {
	r.mu.Lock()
	fns := make([]func(Change), 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
