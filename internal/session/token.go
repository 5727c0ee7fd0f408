package session

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
)

// Aliasing it so we can use it in the struct literal for composition
type jwtRegisteredClaims = jwt.RegisteredClaims

type jwtClaims struct {
	Profile string `json:"profile"`
	Role    string `json:"role"`
	jwtRegisteredClaims
}

// Claims are the parts of the token payload the client cares about
type Claims struct {
	Subject               string
	Role                  string
	ExpiresAtEpochSeconds int64
}

func (c Claims) IsExpired(now time.Time) bool {
	return c.ExpiresAtEpochSeconds <= now.Unix()
}

// IsNearExpiry only signals that a refresh is due: the token stays usable until IsExpired
func (c Claims) IsNearExpiry(now time.Time, threshold time.Duration) bool {
	return c.ExpiresAtEpochSeconds-now.Unix() <= int64(threshold/time.Second)
}

// Codec reads JWT payloads without checking signatures. The client holds no key material:
// the backend stays authoritative on whether a token is genuine.
type Codec struct {
	parser *jwt.Parser
}

func NewCodec() *Codec {
	return &Codec{parser: jwt.NewParser()}
}

func (c *Codec) Decode(raw string) (Claims, error) {
	if raw == "" {
		return Claims{}, ErrTokenMissing
	}

	claims := new(jwtClaims)
	_, _, err := c.parser.ParseUnverified(raw, claims)
	if err != nil {
		// An unknown alg only matters to signature checks, which we never do
		var vErr *jwt.ValidationError
		if !errors.As(err, &vErr) || vErr.Errors != jwt.ValidationErrorUnverifiable {
			return Claims{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
	}

	if claims.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: no exp claim", ErrTokenMalformed)
	}

	role := claims.Profile
	if role == "" {
		role = claims.Role
	}

	return Claims{
		Subject:               claims.Subject,
		Role:                  role,
		ExpiresAtEpochSeconds: claims.ExpiresAt.Unix(),
	}, nil
}
