package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend keeps keys in a JSON document on disk so a session survives
// process restarts. Every mutation rewrites the file via a temp file and
// rename, so a crash never leaves a truncated document behind.
type FileBackend struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
	closed bool
}

// NewFileBackend opens the document at path, creating its directory if
// needed. A missing file is an empty store.
func NewFileBackend(path string) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	values := make(map[string]string)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read store file: %w", err)
	case len(data) > 0:
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("parse store file %s: %w", path, err)
		}
	}

	return &FileBackend{path: path, values: values}, nil
}

// Path returns the document path.
func (f *FileBackend) Path() string {
	return f.path
}

// Get returns the value for key.
func (f *FileBackend) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return "", false, ErrStoreClosed{}
	}
	v, ok := f.values[key]
	return v, ok, nil
}

// Set writes all pairs and flushes the document.
func (f *FileBackend) Set(ctx context.Context, values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed{}
	}
	next := maps.Clone(f.values)
	maps.Copy(next, values)
	return f.flush(next)
}

// Delete removes keys and flushes the document.
func (f *FileBackend) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed{}
	}
	next := maps.Clone(f.values)
	for _, k := range keys {
		delete(next, k)
	}
	return f.flush(next)
}

// Close marks the backend closed. The document stays on disk.
func (f *FileBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// flush writes next to disk and, on success, makes it the in-memory view.
// Caller must hold f.mu.
func (f *FileBackend) flush(next map[string]string) error {
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".authgate-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}

	f.values = next
	return nil
}
