package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	})
	return store, path
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenRunsMigrations(t *testing.T) {
	_, path := openTestStore(t)

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = sqlDB.Close() }()

	var name string
	row := sqlDB.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'storage_items'`)
	if err := row.Scan(&name); err != nil {
		t.Fatalf("storage_items table missing: %v", err)
	}

	var applied int
	if err := sqlDB.QueryRow(`SELECT COUNT(1) FROM schema_migrations`).Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != 2 {
		t.Fatalf("applied migrations = %d, want 2", applied)
	}
}

func TestOpenTwiceIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	for i := 0; i < 2; i++ {
		store, err := Open(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("close #%d: %v", i+1, err)
		}
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "q1"); err != nil || ok {
		t.Fatalf("Get missing = ok %v err %v", ok, err)
	}

	if err := store.Set(ctx, "q1", []byte(`{"count":1}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "q1", []byte(`{"count":2}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, ok, err := store.Get(ctx, "q1")
	if err != nil || !ok {
		t.Fatalf("get = ok %v err %v", ok, err)
	}
	if string(got) != `{"count":2}` {
		t.Fatalf("payload = %s, want count 2", got)
	}

	if err := store.Remove(ctx, "q1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "q1"); ok {
		t.Fatal("item still present after remove")
	}
}

func TestStoreRejectsInvalidInput(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "", []byte("x")); err == nil {
		t.Fatal("expected error for empty key")
	}
	if err := store.Set(ctx, "k", nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if _, _, err := store.Get(ctx, " "); err == nil {
		t.Fatal("expected error for blank key")
	}

	var nilStore *Store
	if err := nilStore.Remove(ctx, "k"); err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestStorePrune(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	if err := store.Set(ctx, "old", []byte("1")); err != nil {
		t.Fatalf("set old: %v", err)
	}
	store.now = func() time.Time { return base.Add(time.Hour) }
	if err := store.Set(ctx, "new", []byte("2")); err != nil {
		t.Fatalf("set new: %v", err)
	}

	n, err := store.Prune(ctx, base.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned = %d, want 1", n)
	}
	if _, ok, _ := store.Get(ctx, "old"); ok {
		t.Fatal("old item survived prune")
	}
	if _, ok, _ := store.Get(ctx, "new"); !ok {
		t.Fatal("new item was pruned")
	}
}

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id INTEGER);\n-- +migrate Down\nDROP TABLE a;\n"
	got := extractUpMigration(content)
	if got != "\nCREATE TABLE a (id INTEGER);\n" {
		t.Fatalf("extractUpMigration = %q", got)
	}
	if got := extractUpMigration("SELECT 1;"); got != "SELECT 1;" {
		t.Fatalf("no markers = %q", got)
	}
}
