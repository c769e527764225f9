package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	toml "github.com/pelletier/go-toml/v2"
)

// Storage backends for the persistent query cache.
const (
	StorageSQLite = "sqlite"
	StorageFile   = "file"
	StorageMemory = "memory"
)

// Config is skiff's runtime configuration.
type Config struct {
	APIBind      string
	Storage      string
	CachePath    string
	CacheMaxAge  time.Duration
	RefreshDelay time.Duration
	Theme        string
	Watches      []Watch
}

// Watch is a query the watcher runs on a fixed interval.
type Watch struct {
	Name     string
	Method   string
	Path     string
	QueryKey []any
	Params   map[string]any
	Request  map[string]any
	Every    time.Duration
}

const (
	defaultConfigPath   = "~/.config/skiff/config.toml"
	defaultDataDir      = "~/.local/share/skiff"
	defaultAPIBind      = "127.0.0.1:7487"
	defaultRefreshDelay = 50 * time.Millisecond
	defaultWatchEvery   = 30 * time.Second
	defaultTheme        = "Nightfox"
)

type fileConfig struct {
	APIBind          string      `toml:"api_bind"`
	Storage          string      `toml:"storage"`
	CachePath        string      `toml:"cache_path"`
	CacheMaxAgeHours int         `toml:"cache_max_age_hours"`
	RefreshDelayMS   int         `toml:"refresh_delay_ms"`
	Theme            string      `toml:"theme"`
	Watches          []fileWatch `toml:"watch"`
}

type fileWatch struct {
	Name         string         `toml:"name"`
	Method       string         `toml:"method"`
	Path         string         `toml:"path"`
	QueryKey     []any          `toml:"query_key"`
	Params       map[string]any `toml:"params"`
	Request      map[string]any `toml:"request"`
	EverySeconds int            `toml:"every_seconds"`
}

type envConfig struct {
	APIBind      string        `env:"SKIFF_API_BIND"`
	Storage      string        `env:"SKIFF_STORAGE"`
	CachePath    string        `env:"SKIFF_CACHE_PATH"`
	RefreshDelay time.Duration `env:"SKIFF_REFRESH_DELAY"`
	Theme        string        `env:"SKIFF_THEME"`
}

// Overrides are command-line settings. They take precedence over both the
// environment and the config file.
type Overrides struct {
	Storage   string
	CachePath string
}

// Load reads the config file at path (or the default location), applies
// SKIFF_* environment overrides and fills defaults. A missing file is not an
// error.
func Load(path string) (Config, error) {
	return LoadWith(path, Overrides{})
}

// LoadWith is Load with flags applied on top of the environment.
func LoadWith(path string, flags Overrides) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	var raw fileConfig
	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	var overrides envConfig
	if err := env.Parse(&overrides); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		APIBind:      firstNonEmpty(overrides.APIBind, raw.APIBind, defaultAPIBind),
		Storage:      strings.ToLower(firstNonEmpty(flags.Storage, overrides.Storage, raw.Storage, StorageSQLite)),
		Theme:        firstNonEmpty(overrides.Theme, raw.Theme, defaultTheme),
		RefreshDelay: defaultRefreshDelay,
	}
	if raw.RefreshDelayMS > 0 {
		cfg.RefreshDelay = time.Duration(raw.RefreshDelayMS) * time.Millisecond
	}
	if overrides.RefreshDelay > 0 {
		cfg.RefreshDelay = overrides.RefreshDelay
	}
	if raw.CacheMaxAgeHours > 0 {
		cfg.CacheMaxAge = time.Duration(raw.CacheMaxAgeHours) * time.Hour
	}

	switch cfg.Storage {
	case StorageSQLite, StorageFile:
		cachePath := firstNonEmpty(flags.CachePath, overrides.CachePath, raw.CachePath, defaultCachePath(cfg.Storage))
		cfg.CachePath, err = expandPath(cachePath)
		if err != nil {
			return Config{}, fmt.Errorf("cache_path: %w", err)
		}
	case StorageMemory:
	default:
		return Config{}, fmt.Errorf("unknown storage %q (want sqlite, file or memory)", cfg.Storage)
	}

	for i, w := range raw.Watches {
		watch, err := w.resolve()
		if err != nil {
			return Config{}, fmt.Errorf("watch %d: %w", i+1, err)
		}
		cfg.Watches = append(cfg.Watches, watch)
	}
	return cfg, nil
}

func (w fileWatch) resolve() (Watch, error) {
	watch := Watch{
		Name:     strings.TrimSpace(w.Name),
		Method:   strings.ToUpper(firstNonEmpty(w.Method, "GET")),
		Path:     strings.TrimSpace(w.Path),
		QueryKey: w.QueryKey,
		Params:   w.Params,
		Request:  w.Request,
		Every:    defaultWatchEvery,
	}
	if watch.Path == "" {
		return Watch{}, errors.New("path is required")
	}
	if watch.Name == "" {
		watch.Name = watch.Path
	}
	if w.EverySeconds > 0 {
		watch.Every = time.Duration(w.EverySeconds) * time.Second
	}
	return watch, nil
}

func defaultCachePath(storage string) string {
	if storage == StorageFile {
		return defaultDataDir + "/cache.toml"
	}
	return defaultDataDir + "/cache.db"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
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
