// Package filestore persists cached query payloads in a single TOML file.
// It suits small deployments where a SQLite database is unwanted; the file
// is rewritten atomically on every change.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/skiff/internal/storage"
)

const defaultPath = "~/.local/share/skiff/cache.toml"

type item struct {
	Payload   string    `toml:"payload"`
	UpdatedAt time.Time `toml:"updated_at"`
}

type document struct {
	Items map[string]item `toml:"items"`
}

// Store is a storage.Adapter backed by a TOML file.
type Store struct {
	path string

	mu     sync.Mutex
	loaded bool
	items  map[string]item
}

// DefaultPath returns the default cache file path.
func DefaultPath() string {
	return defaultPath
}

// Open returns a Store for the file at path. An empty path uses the default
// location. The file is created on first write.
func Open(path string) (*Store, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	s := &Store{path: resolved}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the resolved file path.
func (s *Store) Path() string {
	return s.path
}

// Get implements storage.Adapter.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, false, err
	}
	it, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(it.Payload), true, nil
}

// Set implements storage.Adapter.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("storage key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	s.items[key] = item{Payload: string(value), UpdatedAt: time.Now().UTC().Truncate(time.Millisecond)}
	return s.saveLocked()
}

// Remove implements storage.Adapter.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	if _, ok := s.items[key]; !ok {
		return nil
	}
	delete(s.items, key)
	return s.saveLocked()
}

func (s *Store) loadLocked() error {
	if s.loaded {
		return nil
	}
	s.items = make(map[string]item)

	bytes, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.loaded = true
			return nil
		}
		return fmt.Errorf("read cache file: %w", err)
	}

	var doc document
	if err := toml.Unmarshal(bytes, &doc); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}
	for k, v := range doc.Items {
		s.items[k] = v
	}
	s.loaded = true
	return nil
}

func (s *Store) saveLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	bytes, err := toml.Marshal(document{Items: s.items})
	if err != nil {
		return fmt.Errorf("marshal cache file: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cache-*.toml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(bytes); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

var _ storage.Adapter = (*Store)(nil)
