package session

import "errors"

var (
	ErrTokenMissing       = errors.New("no session token is held")
	ErrTokenMalformed     = errors.New("session token is malformed")
	ErrTokenExpired       = errors.New("session token has expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRefreshFailed      = errors.New("session token refresh failed")
	ErrNetworkError       = errors.New("could not reach the auth backend")
	ErrServerError        = errors.New("auth backend returned an error")
	ErrNotAuthenticated   = errors.New("no authenticated session")

	// Returned to refresh callers whose result arrived after a logout and was thrown away
	ErrStaleRefresh = errors.New("refresh result discarded: session ended while it was in flight")
)
