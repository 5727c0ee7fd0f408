package webserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/domteam/dom-session/internal/activecontext"
	"github.com/domteam/dom-session/internal/api"
	"github.com/domteam/dom-session/internal/routeguard"
	"github.com/domteam/dom-session/internal/session"
)

type errorResponse struct {
	Error string `json:"error"`
}

type contextResolution struct {
	Outcome    string                  `json:"outcome"`
	Active     *activecontext.Context  `json:"active,omitempty"`
	Candidates []activecontext.Context `json:"candidates,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

type loginRes struct {
	Principal *session.Principal `json:"principal"`
	Context   contextResolution  `json:"context"`
}

type sessionRes struct {
	Status         string                 `json:"status"`
	Principal      *session.Principal     `json:"principal,omitempty"`
	ActiveContext  *activecontext.Context `json:"activeContext,omitempty"`
	RefreshCounter uint64                 `json:"refreshCounter"`
	ExpiresAt      *time.Time             `json:"expiresAt,omitempty"`
}

type selectContextReq struct {
	GroupID string `json:"groupId"`
	Role    string `json:"role"`
}

type pageRes struct {
	Path          string                 `json:"path"`
	Public        bool                   `json:"public,omitempty"`
	Role          string                 `json:"role,omitempty"`
	ActiveContext *activecontext.Context `json:"activeContext,omitempty"`
}

type accessDeniedRes struct {
	Error        string   `json:"error"`
	Role         string   `json:"role"`
	AllowedRoles []string `json:"allowedRoles"`
}

func (w *Webserver) pingRouteHandler(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

func (w *Webserver) loginRouteHandler(c echo.Context) error {
	logger := c.Echo().Logger
	ctx := c.Request().Context()

	var req api.LoginRequest
	if err := c.Bind(&req); err != nil || req.CPF == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "cpf and password are required"})
	}

	principal, err := w.sessions.Login(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidCredentials):
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Invalid credentials"})
		default:
			logger.Errorf("Login failed: %v", err)
			return c.JSON(http.StatusBadGateway, errorResponse{Error: "Couldn't sign you in right now"})
		}
	}

	res := loginRes{Principal: principal}

	outcome, err := w.contexts.Resolve(ctx, principal.ID)
	if err != nil {
		// The session itself is fine, the context can still be picked through /contexts
		logger.Warnf("Couldn't resolve a context for %s: %v", principal.ID, err)
		res.Context = contextResolution{Outcome: "unresolved", Error: err.Error()}
	} else {
		res.Context = contextResolution{
			Outcome:    outcome.Kind.String(),
			Active:     outcome.Active,
			Candidates: outcome.Candidates,
		}
		if outcome.Kind == activecontext.Activated {
			res.Principal = w.sessions.Principal()
		}
	}

	return c.JSON(http.StatusOK, res)
}

func (w *Webserver) logoutRouteHandler(c echo.Context) error {
	w.sessions.Logout(c.Request().Context())
	return c.String(http.StatusOK, "")
}

func (w *Webserver) sessionRouteHandler(c echo.Context) error {
	snap := w.sessions.Snapshot()

	res := sessionRes{
		Status:         snap.Status.String(),
		Principal:      snap.Principal,
		RefreshCounter: w.contexts.RefreshCounter(),
	}
	if snap.Credential != nil {
		exp := snap.Credential.ExpiresAt()
		res.ExpiresAt = &exp
	}
	if active, ok := w.contexts.Active(); ok {
		res.ActiveContext = &active
	}

	return c.JSON(http.StatusOK, res)
}

func (w *Webserver) contextsRouteHandler(c echo.Context) error {
	principal := w.sessions.Principal()
	if principal == nil {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
	}

	candidates, err := w.contexts.Candidates(c.Request().Context(), principal.ID)
	if err != nil {
		c.Echo().Logger.Errorf("Couldn't list contexts for %s: %v", principal.ID, err)
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "Couldn't list contexts"})
	}

	return c.JSON(http.StatusOK, candidates)
}

func (w *Webserver) selectContextRouteHandler(c echo.Context) error {
	principal := w.sessions.Principal()
	if principal == nil {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
	}

	var req selectContextReq
	if err := c.Bind(&req); err != nil || req.GroupID == "" || req.Role == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "groupId and role are required"})
	}

	active, err := w.contexts.Select(c.Request().Context(), principal.ID, req.GroupID, req.Role)
	if err != nil {
		if errors.Is(err, activecontext.ErrNotCandidate) {
			return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		}
		c.Echo().Logger.Errorf("Couldn't switch %s to context %s: %v", principal.ID, req.GroupID, err)
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "Couldn't switch context"})
	}

	return c.JSON(http.StatusOK, sessionRes{
		Status:         w.sessions.Status().String(),
		Principal:      w.sessions.Principal(),
		ActiveContext:  &active,
		RefreshCounter: w.contexts.RefreshCounter(),
	})
}

func (w *Webserver) pageRouteHandler(c echo.Context) error {
	path := c.Request().URL.Path

	if !w.paths.Guarded(path) {
		return c.JSON(http.StatusOK, pageRes{Path: path, Public: true})
	}

	decision := routeguard.Evaluate(w.sessions, routeguard.RouteFor(path, w.perms))

	switch decision.State {
	case routeguard.Loading:
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "Session is still loading"})
	case routeguard.Redirecting:
		return c.Redirect(http.StatusFound, decision.RedirectTo)
	case routeguard.AccessDenied:
		c.Echo().Logger.Infof("Role %s may not access %s", decision.Role, path)
		return c.JSON(http.StatusForbidden, accessDeniedRes{
			Error:        "Access denied",
			Role:         decision.Role,
			AllowedRoles: decision.AllowedRoles,
		})
	}

	res := pageRes{Path: path}
	if p := w.sessions.Principal(); p != nil {
		res.Role = p.Role
	}
	if active, ok := w.contexts.Active(); ok {
		res.ActiveContext = &active
	}
	return c.JSON(http.StatusOK, res)
}
