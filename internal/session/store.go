package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/domteam/dom-session/internal/storage"
)

// TokenStore mirrors the credential and the principal snapshot into durable storage
type TokenStore struct {
	kv    storage.KV
	codec *Codec
}

func NewTokenStore(kv storage.KV, codec *Codec) *TokenStore {
	return &TokenStore{kv: kv, codec: codec}
}

// Load returns nil when nothing usable is stored. A partial or corrupt entry is purged.
// The token's expiry is not checked here.
func (s *TokenStore) Load() (*Credential, *Principal, error) {
	raw, tokenErr := s.kv.Get(storage.KeyUserToken)
	data, userErr := s.kv.Get(storage.KeyUserData)

	if errors.Is(tokenErr, storage.ErrNotFound) && errors.Is(userErr, storage.ErrNotFound) {
		return nil, nil, nil
	}
	if tokenErr != nil || userErr != nil {
		return nil, nil, s.purge(fmt.Errorf("%w: incomplete stored session", ErrTokenMalformed))
	}

	claims, err := s.codec.Decode(raw)
	if err != nil {
		return nil, nil, s.purge(err)
	}

	principal := new(Principal)
	if err := json.Unmarshal([]byte(data), principal); err != nil {
		return nil, nil, s.purge(fmt.Errorf("%w: stored principal is not valid JSON: %v", ErrTokenMalformed, err))
	}

	return &Credential{Raw: raw, Claims: claims}, principal, nil
}

func (s *TokenStore) purge(cause error) error {
	if err := s.Clear(); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (s *TokenStore) Save(cred *Credential, principal *Principal) error {
	if err := s.SaveToken(cred); err != nil {
		return err
	}
	return s.SavePrincipal(principal)
}

func (s *TokenStore) SaveToken(cred *Credential) error {
	if err := s.kv.Set(storage.KeyUserToken, cred.Raw); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	return nil
}

func (s *TokenStore) SavePrincipal(principal *Principal) error {
	data, err := json.Marshal(principal)
	if err != nil {
		return fmt.Errorf("failed to marshal principal: %w", err)
	}
	if err := s.kv.Set(storage.KeyUserData, string(data)); err != nil {
		return fmt.Errorf("failed to persist principal: %w", err)
	}
	return nil
}

// Clear drops the token, the principal and the active context together: a context
// chosen by one principal must never survive into another principal's session
func (s *TokenStore) Clear() error {
	return s.kv.Delete(storage.SessionKeys...)
}
