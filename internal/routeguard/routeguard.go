// Package routeguard decides, per navigation, whether protected content renders.
package routeguard

import (
	"net/url"

	"github.com/domteam/dom-session/internal/session"
	"github.com/domteam/dom-session/internal/utils"
)

const LoginPath = "/login"

type State int

const (
	Loading State = iota
	Redirecting
	AccessDenied
	Rendering
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Redirecting:
		return "redirecting"
	case AccessDenied:
		return "access_denied"
	case Rendering:
		return "rendering"
	}
	return "unknown"
}

type Route struct {
	Path        string
	RequireAuth bool
	// Empty means any signed-in principal may render the route
	AllowedRoles []string
}

type RoleLister interface {
	AllowedRoles(path string) []string
}

// RouteFor builds the guarded route for path from the permission table
func RouteFor(path string, perms RoleLister) Route {
	return Route{Path: path, RequireAuth: true, AllowedRoles: perms.AllowedRoles(path)}
}

type Session interface {
	Status() session.Status
	Principal() *session.Principal
}

type Decision struct {
	State State
	// Set for AccessDenied
	Role         string
	AllowedRoles []string
	// Set for Redirecting
	RedirectTo string
}

func Evaluate(s Session, route Route) Decision {
	status := s.Status()
	if !status.Settled() {
		return Decision{State: Loading}
	}

	if !route.RequireAuth {
		return Decision{State: Rendering}
	}

	principal := s.Principal()
	if !status.Authenticated() || principal == nil {
		return Decision{State: Redirecting, RedirectTo: LoginRedirect(route.Path)}
	}

	if len(route.AllowedRoles) > 0 && !utils.Contains(route.AllowedRoles, principal.Role) {
		return Decision{
			State:        AccessDenied,
			Role:         principal.Role,
			AllowedRoles: append([]string(nil), route.AllowedRoles...),
		}
	}

	return Decision{State: Rendering}
}

func LoginRedirect(path string) string {
	return LoginPath + "?" + url.Values{"redirect": {path}}.Encode()
}
