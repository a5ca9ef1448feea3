package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fsEntry mirrors PGStore's sandbox_install_state row shape so the two
// backends agree on what's tracked even though FSStore keeps every
// session's entry in one combined file instead of PGStore's one row
// per session.
type fsEntry struct {
	BundleHash string    `json:"bundleHash"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// FSStore is the default development backend: one combined JSON file
// (install-state.json) under dir, read fully into memory when the store
// is opened and written back on every change. It is not meant for concurrent multi-process use.
type FSStore struct {
	mu   sync.Mutex
	path string
	data map[string]fsEntry
}

func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create install-state dir: %w", err)
	}
	s := &FSStore{path: filepath.Join(dir, "install-state.json"), data: map[string]fsEntry{}}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FSStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read install-state file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &s.data)
}

func (s *FSStore) persist() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode install-state: %w", err)
	}
	return os.WriteFile(s.path, data, 0o644)
}

func (s *FSStore) GetInstalledHash(_ context.Context, sessionKey string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.data[sessionKey]
	return entry.BundleHash, ok, nil
}

func (s *FSStore) SetInstalledHash(_ context.Context, sessionKey, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionKey] = fsEntry{BundleHash: hash, UpdatedAt: time.Now()}
	return s.persist()
}
