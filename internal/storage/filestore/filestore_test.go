package filestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_DefaultPathUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s, err := Open("")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if !strings.HasPrefix(s.Path(), home) {
		t.Fatalf("Path = %q, want it under HOME %q", s.Path(), home)
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Fatalf("Open should not create the file, stat err = %v", err)
	}
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.toml")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	key := `["v1/auth/me","GET"]`
	if err := s.Set(ctx, key, []byte(`{"id":"u1","email":"a@b.c"}`)); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := s.Set(ctx, "other", []byte(`[1,2,3]`)); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	got, ok, err := reopened.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get = ok %v err %v, want hit", ok, err)
	}
	if string(got) != `{"id":"u1","email":"a@b.c"}` {
		t.Fatalf("Get = %s", got)
	}

	if err := reopened.Remove(ctx, key); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	third, err := Open(path)
	if err != nil {
		t.Fatalf("third open returned error: %v", err)
	}
	if _, ok, _ := third.Get(ctx, key); ok {
		t.Fatal("removed key still present after reopen")
	}
	if _, ok, _ := third.Get(ctx, "other"); !ok {
		t.Fatal("unrelated key lost after remove")
	}
}

func TestOpen_CorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.toml")
	if err := os.WriteFile(path, []byte("items = [not toml"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStore_RemoveMissingIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.toml")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if err := s.Remove(context.Background(), "missing"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("Remove of missing key should not write the file, stat err = %v", err)
	}
}
