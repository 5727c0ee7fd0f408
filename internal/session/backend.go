package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/domteam/dom-session/internal/api"
)

// Backend is the part of the auth API the session lifecycle talks to
type Backend interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
	Refresh(ctx context.Context, token string) (*api.RefreshResponse, error)
	Logout(ctx context.Context, token string) error
}

type apiBackend struct {
	client *api.Client
}

func NewAPIBackend(client *api.Client) Backend {
	return &apiBackend{client: client}
}

func (b *apiBackend) Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
	return b.client.Login(ctx, req)
}

func (b *apiBackend) Refresh(ctx context.Context, token string) (*api.RefreshResponse, error) {
	return b.client.WithBearer(token).Refresh(ctx)
}

func (b *apiBackend) Logout(ctx context.Context, token string) error {
	return b.client.WithBearer(token).Logout(ctx)
}

// Maps api failures onto the session error taxonomy, keeping the cause in the chain
func classifyLoginError(err error) error {
	var statusErr *api.StatusError
	var transportErr *api.TransportError

	switch {
	case errors.As(err, &statusErr) && statusErr.StatusCode == 401:
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	case errors.As(err, &statusErr):
		return fmt.Errorf("%w: %w", ErrServerError, err)
	case errors.As(err, &transportErr):
		return fmt.Errorf("%w: %w", ErrNetworkError, err)
	case errors.Is(err, api.ErrSchema):
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrNetworkError, err)
	}
	return err
}

// PrincipalFromUser narrows a backend user payload. role wins over the payload's own profile.
func PrincipalFromUser(u api.UserInfo, role string) *Principal {
	p := &Principal{
		ID:          string(u.ID),
		DisplayName: u.Name,
		Role:        role,
		ContactInfo: ContactInfo{
			Email:    u.Email,
			Phone:    u.Phone(),
			CPF:      u.CPF,
			Nickname: u.Nickname,
		},
		AvatarRef: u.UserPhoto,
	}
	if p.ID == "" {
		p.ID = u.CPF
	}
	if p.DisplayName == "" {
		p.DisplayName = u.Nickname
	}
	if p.Role == "" {
		p.Role = u.Profile
	}
	return p
}
