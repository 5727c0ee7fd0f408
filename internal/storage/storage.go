// Package storage is the durable key space shared by the session and the active context.
// Writers are last-write-wins; there is no transactional guarantee across keys.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	KeyUserToken     = "userToken"
	KeyUserData      = "userData"
	KeyActiveContext = "activeContext"
)

// SessionKeys must always be purged together
var SessionKeys = []string{KeyUserToken, KeyUserData, KeyActiveContext}

var ErrNotFound = errors.New("key not found")

type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(keys ...string) error
}

// FileKV keeps every key in a single JSON object on disk, readable only by the owner
type FileKV struct {
	path string
	mu   sync.Mutex
}

var _ KV = (*FileKV)(nil)

func NewFileKV(path string) (*FileKV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileKV{path: path}, nil
}

func (s *FileKV) Path() string {
	return s.path
}

func (s *FileKV) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return "", err
	}
	v, ok := entries[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *FileKV) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		// A corrupt file is overwritten rather than blocking every future write
		entries = map[string]string{}
	}
	entries[key] = value
	return s.write(entries)
}

func (s *FileKV) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return os.Remove(s.path)
	}

	changed := false
	for _, k := range keys {
		if _, ok := entries[k]; ok {
			delete(entries, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if len(entries) == 0 {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return s.write(entries)
}

func (s *FileKV) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read storage file: %w", err)
	}

	entries := map[string]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal storage file: %w", err)
	}
	return entries, nil
}

func (s *FileKV) write(entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal storage: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// MemoryKV is a process-local KV, used when nothing has to survive a restart
type MemoryKV struct {
	entries sync.Map
}

var _ KV = (*MemoryKV)(nil)

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{}
}

func (s *MemoryKV) Get(key string) (string, error) {
	v, ok := s.entries.Load(key)
	if !ok {
		return "", ErrNotFound
	}
	return v.(string), nil
}

func (s *MemoryKV) Set(key, value string) error {
	s.entries.Store(key, value)
	return nil
}

func (s *MemoryKV) Delete(keys ...string) error {
	for _, k := range keys {
		s.entries.Delete(k)
	}
	return nil
}
