package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIBind != defaultAPIBind {
		t.Fatalf("APIBind = %q, want %q", cfg.APIBind, defaultAPIBind)
	}
	if cfg.Storage != StorageSQLite {
		t.Fatalf("Storage = %q, want sqlite", cfg.Storage)
	}
	if cfg.CachePath != filepath.Join(home, ".local/share/skiff/cache.db") {
		t.Fatalf("CachePath = %q", cfg.CachePath)
	}
	if cfg.RefreshDelay != defaultRefreshDelay || cfg.Theme != defaultTheme {
		t.Fatalf("RefreshDelay = %v Theme = %q", cfg.RefreshDelay, cfg.Theme)
	}
	if cfg.CacheMaxAge != 0 || len(cfg.Watches) != 0 {
		t.Fatalf("unexpected extras: %+v", cfg)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, `
api_bind = "  10.0.0.5:9999  "
storage = " FILE "
cache_path = "  ~/skiff/cache.toml "
cache_max_age_hours = 24
refresh_delay_ms = 120
theme = "Slate"

[[watch]]
path = "/v1/users/[id]"
query_key = ["user", 7]
params = { id = 7 }
request = { expand = "teams" }
every_seconds = 5

[[watch]]
name = "health"
method = "get"
path = "/v1/health"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIBind != "10.0.0.5:9999" {
		t.Fatalf("APIBind = %q", cfg.APIBind)
	}
	if cfg.Storage != StorageFile || cfg.CachePath != filepath.Join(home, "skiff/cache.toml") {
		t.Fatalf("Storage = %q CachePath = %q", cfg.Storage, cfg.CachePath)
	}
	if cfg.CacheMaxAge != 24*time.Hour || cfg.RefreshDelay != 120*time.Millisecond || cfg.Theme != "Slate" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.Watches) != 2 {
		t.Fatalf("Watches = %+v", cfg.Watches)
	}

	user := cfg.Watches[0]
	if user.Name != "/v1/users/[id]" || user.Method != "GET" || user.Every != 5*time.Second {
		t.Fatalf("watch[0] = %+v", user)
	}
	if len(user.QueryKey) != 2 || user.QueryKey[0] != "user" {
		t.Fatalf("watch[0].QueryKey = %#v", user.QueryKey)
	}
	if user.Params["id"] != int64(7) || user.Request["expand"] != "teams" {
		t.Fatalf("watch[0] params=%#v request=%#v", user.Params, user.Request)
	}

	health := cfg.Watches[1]
	if health.Name != "health" || health.Method != "GET" || health.Every != defaultWatchEvery {
		t.Fatalf("watch[1] = %+v", health)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SKIFF_API_BIND", "api.internal:80")
	t.Setenv("SKIFF_STORAGE", "memory")
	t.Setenv("SKIFF_REFRESH_DELAY", "75ms")
	t.Setenv("SKIFF_THEME", "Carbon")

	path := writeConfig(t, `
api_bind = "10.0.0.5:9999"
storage = "sqlite"
refresh_delay_ms = 120
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIBind != "api.internal:80" || cfg.Storage != StorageMemory {
		t.Fatalf("APIBind = %q Storage = %q", cfg.APIBind, cfg.Storage)
	}
	if cfg.CachePath != "" {
		t.Fatalf("memory storage has CachePath %q", cfg.CachePath)
	}
	if cfg.RefreshDelay != 75*time.Millisecond || cfg.Theme != "Carbon" {
		t.Fatalf("RefreshDelay = %v Theme = %q", cfg.RefreshDelay, cfg.Theme)
	}
}

func TestLoad_EnvCachePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SKIFF_CACHE_PATH", "~/elsewhere.db")

	cfg, err := Load(filepath.Join(home, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.CachePath != filepath.Join(home, "elsewhere.db") {
		t.Fatalf("CachePath = %q", cfg.CachePath)
	}
}

func TestLoadWith_FlagsOverrideEnvAndFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SKIFF_STORAGE", "memory")
	path := writeConfig(t, `storage = "sqlite"`)

	cfg, err := LoadWith(path, Overrides{Storage: "File", CachePath: "~/flag-cache.toml"})
	if err != nil {
		t.Fatalf("LoadWith returned error: %v", err)
	}
	if cfg.Storage != StorageFile || cfg.CachePath != filepath.Join(home, "flag-cache.toml") {
		t.Fatalf("Storage = %q CachePath = %q", cfg.Storage, cfg.CachePath)
	}

	cfg, err = LoadWith(path, Overrides{})
	if err != nil {
		t.Fatalf("LoadWith returned error: %v", err)
	}
	if cfg.Storage != StorageMemory {
		t.Fatalf("empty flags Storage = %q, want env value", cfg.Storage)
	}

	if _, err := LoadWith(path, Overrides{Storage: "redis"}); err == nil || !strings.Contains(err.Error(), "unknown storage") {
		t.Fatalf("LoadWith(redis) error = %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid toml", `api_bind = [`, "parse config"},
		{"unknown storage", `storage = "redis"`, "unknown storage"},
		{"watch without path", "[[watch]]\nname = \"x\"\n", "watch 1: path is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load returned nil error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %q, want it to mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestLoad_BadEnvDuration(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SKIFF_REFRESH_DELAY", "soon")

	if _, err := Load(filepath.Join(home, "missing.toml")); err == nil || !strings.Contains(err.Error(), "parse env") {
		t.Fatalf("Load error = %v, want parse env", err)
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	if want := filepath.Join(home, "a/b"); got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
