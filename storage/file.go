package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// FileStore persists key-value pairs as a single JSON document on disk.
// The whole document is rewritten on every Set; the session record this
// store carries is a handful of strings, so the simplicity wins.
type FileStore struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// NewFileStore loads (or creates) the store backed by the given file.
// The file is written with 0600 permissions since it may hold tokens.
func NewFileStore(path string) (*FileStore, error) {
	store := &FileStore{
		path:   path,
		values: make(map[string]string),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, errors.Wrapf(err, "[NewFileStore] read %s", path)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &store.values); err != nil {
			return nil, errors.Wrapf(err, "[NewFileStore] decode %s", path)
		}
	}
	return store, nil
}

// Get returns the value for key and whether it was present.
func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok
}

// Set stores value under key and flushes the document to disk.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	encoded, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[Set] encode store")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrapf(err, "[Set] create directory for %s", s.path)
	}
	if err := os.WriteFile(s.path, encoded, 0o600); err != nil {
		return errors.Wrapf(err, "[Set] write %s", s.path)
	}
	return nil
}
