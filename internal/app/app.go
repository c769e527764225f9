package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/five82/skiff/internal/apistore"
	"github.com/five82/skiff/internal/config"
	"github.com/five82/skiff/internal/logtail"
	"github.com/five82/skiff/internal/prefs"
	"github.com/five82/skiff/internal/storage"
	"github.com/five82/skiff/internal/storage/filestore"
	"github.com/five82/skiff/internal/storage/sqlite"
	"github.com/five82/skiff/internal/transport"
	"github.com/five82/skiff/internal/ui"
)

const invalidationBuffer = 64

// Options configure the skiff application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses ~/.config/skiff/prefs.toml
	PollEvery  int    // seconds; overrides every watch interval when positive
	Storage    config.Overrides
}

// Run boots the inspector until the context is cancelled or the user quits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.LoadWith(opts.ConfigPath, opts.Storage)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logs := logtail.NewBuffer(0)
	prevOutput, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(logs)
	log.SetFlags(log.Ltime)
	defer func() {
		log.SetOutput(prevOutput)
		log.SetFlags(prevFlags)
	}()

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		log.Printf("ignoring saved preferences: %v", err)
	}

	adapter, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	httpClient, err := transport.NewClient(cfg.APIBind)
	if err != nil {
		return fmt.Errorf("init transport: %w", err)
	}

	invalidated := make(chan apistore.QueryKey, invalidationBuffer)
	store, err := apistore.New(apistore.Options{
		Transport:      httpClient,
		Storage:        adapter,
		RefreshDelay:   cfg.RefreshDelay,
		SecondaryCache: notifyInvalidated(invalidated),
	})
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()

	watches := cfg.Watches
	if opts.PollEvery > 0 {
		every := time.Duration(opts.PollEvery) * time.Second
		watches = make([]config.Watch, len(cfg.Watches))
		for i, w := range cfg.Watches {
			w.Every = every
			watches[i] = w
		}
	}
	watcher, err := NewWatcher(apistore.NewClient(store), watches)
	if err != nil {
		return err
	}

	// Populate the store before the UI starts; failures show up as query errors.
	_ = watcher.RefreshAll(ctx)

	watchCtx, stopWatching := context.WithCancel(ctx)
	var g errgroup.Group
	g.Go(func() error {
		return watcher.Run(watchCtx)
	})

	uiErr := ui.Run(ctx, ui.Options{
		Context:     ctx,
		Store:       store,
		Logs:        logs,
		Health:      watcher.Health(),
		Refresh:     watcher.RefreshKey,
		Invalidated: invalidated,
		PollTick:    time.Second,
		ThemeName:   cfg.Theme,
		Prefs:       userPrefs,
		SavePrefs: func(p prefs.Prefs) error {
			return prefs.Save(opts.PrefsPath, p)
		},
	})
	stopWatching()
	_ = g.Wait()
	return uiErr
}

// notifyInvalidated forwards invalidated keys to ch, dropping them when the
// consumer falls behind.
func notifyInvalidated(ch chan<- apistore.QueryKey) apistore.SecondaryCache {
	return apistore.SecondaryCacheFunc(func(key apistore.QueryKey) {
		select {
		case ch <- key:
		default:
		}
	})
}

func openStorage(ctx context.Context, cfg config.Config) (storage.Adapter, func(), error) {
	switch cfg.Storage {
	case config.StorageSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.CachePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create cache dir: %w", err)
		}
		db, err := sqlite.Open(cfg.CachePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open cache: %w", err)
		}
		if cfg.CacheMaxAge > 0 {
			pruned, err := db.Prune(ctx, time.Now().Add(-cfg.CacheMaxAge))
			if err != nil {
				log.Printf("prune cache: %v", err)
			} else if pruned > 0 {
				log.Printf("pruned %d cached queries older than %s", pruned, cfg.CacheMaxAge)
			}
		}
		return db, func() {
			if err := db.Close(); err != nil {
				log.Printf("close cache: %v", err)
			}
		}, nil
	case config.StorageFile:
		fs, err := filestore.Open(cfg.CachePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open cache: %w", err)
		}
		return fs, func() {}, nil
	default:
		return storage.NewMemory(), func() {}, nil
	}
}
