package session

import "time"

type ContactInfo struct {
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	CPF      string `json:"cpf,omitempty"`
	Nickname string `json:"nickname,omitempty"`
}

// Principal is the signed-in user as the backend last described them
type Principal struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"displayName"`
	Role        string      `json:"role"`
	ContactInfo ContactInfo `json:"contactInfo"`
	AvatarRef   string      `json:"avatarRef,omitempty"`
}

// Credential is the raw bearer token plus the claims read from it
type Credential struct {
	Raw    string
	Claims Claims
}

func (c *Credential) ExpiresAt() time.Time {
	return time.Unix(c.Claims.ExpiresAtEpochSeconds, 0)
}

type Status int

const (
	StatusUninitialized Status = iota
	StatusRestoring
	StatusAuthenticated
	StatusUnauthenticated
	StatusRefreshing
	StatusLoggingOut
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusRestoring:
		return "restoring"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusRefreshing:
		return "refreshing"
	case StatusLoggingOut:
		return "logging_out"
	}
	return "unknown"
}

// Authenticated is true while a usable credential is held, including during a refresh
func (s Status) Authenticated() bool {
	return s == StatusAuthenticated || s == StatusRefreshing
}

// Settled is false until restoration has finished
func (s Status) Settled() bool {
	return s != StatusUninitialized && s != StatusRestoring
}

// State is a point-in-time copy of the manager's state
type State struct {
	Status     Status
	Principal  *Principal
	Credential *Credential
	LastError  error
}
