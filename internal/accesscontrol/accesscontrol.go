package accesscontrol

import (
	"strings"

	"github.com/domteam/dom-session/internal/config"
	"github.com/domteam/dom-session/internal/utils"
)

// Evaluator is the static route prefix => roles table. It never changes after construction,
// so it is safe to share between goroutines.
type Evaluator struct {
	routes []config.RouteRule
}

func NewEvaluator(routes []config.RouteRule) *Evaluator {
	copied := make([]config.RouteRule, len(routes))
	for i, r := range routes {
		copied[i] = config.RouteRule{
			Prefix: r.Prefix,
			Roles:  append([]string(nil), r.Roles...),
		}
	}
	return &Evaluator{routes: copied}
}

func FromConfig(conf *config.Config) *Evaluator {
	return NewEvaluator(conf.AccessControl.Routes)
}

// Match returns the first rule, in declaration order, whose prefix starts the path
func (e *Evaluator) Match(path string) (config.RouteRule, bool) {
	for _, r := range e.routes {
		if strings.HasPrefix(path, r.Prefix) {
			return r, true
		}
	}
	return config.RouteRule{}, false
}

// Allows reports whether role may access path. Paths outside the table are denied.
func (e *Evaluator) Allows(path string, role string) bool {
	if role == "" {
		return false
	}
	rule, ok := e.Match(path)
	if !ok {
		return false
	}
	return utils.Contains(rule.Roles, role)
}

// AllowedRoles returns the roles declared for the rule matching path, or nil
func (e *Evaluator) AllowedRoles(path string) []string {
	rule, ok := e.Match(path)
	if !ok {
		return nil
	}
	return append([]string(nil), rule.Roles...)
}

// PathMatcher decides which request paths the gateway guard looks at.
type PathMatcher struct {
	publicPaths      []string
	excludedPrefixes []string
}

func NewPathMatcher(conf *config.Config) *PathMatcher {
	return &PathMatcher{
		publicPaths:      conf.AccessControl.PublicPaths,
		excludedPrefixes: conf.AccessControl.ExcludedPrefixes,
	}
}

// Guarded is false for excluded prefixes (api, static assets) and for the public allow list
func (m *PathMatcher) Guarded(path string) bool {
	trimmed := strings.TrimPrefix(path, "/")
	for _, p := range m.excludedPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return false
		}
	}
	return !m.IsPublic(path)
}

func (m *PathMatcher) IsPublic(path string) bool {
	return utils.SliceHasMatch(m.publicPaths, path)
}
