package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/five82/skiff/internal/storage"
	"github.com/five82/skiff/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store is a storage.Adapter backed by a SQLite database file.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens (creating if needed) and migrates the cache database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get implements storage.Adapter.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	key, err := s.checkKey(key)
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	row := s.sqlDB.QueryRowContext(ctx, `SELECT payload FROM storage_items WHERE storage_key = ?`, key)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get storage item: %w", err)
	}
	return payload, true, nil
}

// Set implements storage.Adapter.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	key, err := s.checkKey(key)
	if err != nil {
		return err
	}
	if len(value) == 0 {
		return fmt.Errorf("storage payload is required")
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO storage_items (storage_key, payload, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(storage_key) DO UPDATE SET
		    payload = excluded.payload,
		    updated_at = excluded.updated_at`,
		key,
		value,
		s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put storage item: %w", err)
	}
	return nil
}

// Remove implements storage.Adapter.
func (s *Store) Remove(ctx context.Context, key string) error {
	key, err := s.checkKey(key)
	if err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM storage_items WHERE storage_key = ?`, key); err != nil {
		return fmt.Errorf("delete storage item: %w", err)
	}
	return nil
}

// Prune deletes items last written before cutoff and reports how many were
// removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM storage_items WHERE updated_at < ?`, cutoff.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune storage items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune storage items: %w", err)
	}
	return n, nil
}

func (s *Store) checkKey(key string) (string, error) {
	if s == nil || s.sqlDB == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("storage key is required")
	}
	return key, nil
}

var _ storage.Adapter = (*Store)(nil)
