package localstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"karaoke-client/pkg/apperrors"
)

// FileStore keeps all keys in a single JSON file. The file is read once at
// open and rewritten in full on every mutation, via a temp file rename so a
// crash mid-write never leaves a truncated file behind.
type FileStore struct {
	path string

	mu   sync.Mutex
	data map[string]string
}

// NewFileStore opens (or creates) the store backed by the given file. An
// unreadable or unparsable file is treated as empty rather than an error:
// local history is best-effort and must never block startup.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, apperrors.NewStorageError("empty store file path", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperrors.NewStorageError("failed to create store directory", err)
	}

	s := &FileStore{
		path: path,
		data: make(map[string]string),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		s.data = make(map[string]string)
	}
	return s, nil
}

// Get returns the stored value for key and whether it exists
func (s *FileStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	val, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(val), true, nil
}

// Set stores value under key and rewrites the backing file
func (s *FileStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = string(value)
	return s.flushLocked()
}

// Delete removes key and rewrites the backing file
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.flushLocked()
}

func (s *FileStore) flushLocked() error {
	raw, err := json.Marshal(s.data)
	if err != nil {
		return apperrors.NewStorageError("failed to encode store", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return apperrors.NewStorageError("failed to write store file", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return apperrors.NewStorageError("failed to replace store file", err)
	}
	return nil
}
