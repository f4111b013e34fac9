// Package seqstore provides implementations of smpp.SequenceStore: a place
// to persist the last sequence number issued, so a restarted client doesn't
// hand the SMSC a sequence number it has already seen on this connection's
// predecessor.
package seqstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// MemoryStore keeps the sequence number in a process-local variable. It
// exists mainly so callers can exercise PersistentSequenceGenerator without
// touching the filesystem, and as the default a caller falls back to.
type MemoryStore struct {
	mu  sync.Mutex
	cur uint32
}

// NewMemoryStore returns a MemoryStore starting from 0 (meaning "no saved
// sequence yet").
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur, nil
}

func (s *MemoryStore) Save(seq uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = seq
	return nil
}

type fileStoreState struct {
	Sequence uint32 `json:"sequence"`
}

// FileStore persists the sequence number to a small JSON file: every Load
// reads the file and every Save rewrites it whole, both under a mutex.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a FileStore backed by path, creating its parent
// directory if necessary. The file itself is created lazily on first Save.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("seqstore: create directory %s: %w", dir, err)
		}
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Load() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("seqstore: read %s: %w", s.path, err)
	}
	var state fileStoreState
	if err := json.Unmarshal(data, &state); err != nil {
		return 0, fmt.Errorf("seqstore: decode %s: %w", s.path, err)
	}
	return state.Sequence, nil
}

func (s *FileStore) Save(seq uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(fileStoreState{Sequence: seq})
	if err != nil {
		return fmt.Errorf("seqstore: encode: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("seqstore: write %s: %w", s.path, err)
	}
	return nil
}
