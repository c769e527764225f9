package app

import (
	"context"
	"fmt"
	"log"
	"time"

	errs "github.com/jmgilman/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/five82/skiff/internal/apistore"
	"github.com/five82/skiff/internal/config"
	"github.com/five82/skiff/internal/endpoint"
	"github.com/five82/skiff/internal/state"
)

const (
	defaultWatchEvery = 30 * time.Second
	maxBackoff        = 5 * time.Minute
)

// target is one configured watch bound to its endpoint definition.
type target struct {
	watch    config.Watch
	endpoint *endpoint.Definition
	key      apistore.QueryKey
	cacheKey string
}

// Watcher keeps configured queries warm by fetching them through the facade
// on their own intervals.
type Watcher struct {
	client  *apistore.Client
	health  *state.Store
	targets []*target
	byKey   map[string]*target
}

// NewWatcher binds every watch to an endpoint definition. Two watches may not
// share a query key.
func NewWatcher(client *apistore.Client, watches []config.Watch) (*Watcher, error) {
	w := &Watcher{client: client, health: &state.Store{}, byKey: make(map[string]*target, len(watches))}
	for _, watch := range watches {
		if watch.Every <= 0 {
			watch.Every = defaultWatchEvery
		}
		def, err := endpoint.New(endpoint.Config{
			Method:      watch.Method,
			Path:        watch.Path,
			QueryKey:    apistore.QueryKey(watch.QueryKey),
			Description: watch.Name,
		})
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", watch.Name, err)
		}
		if def.Method() != "GET" {
			return nil, fmt.Errorf("watch %s: only GET endpoints can be watched", watch.Name)
		}
		t := &target{watch: watch, endpoint: def, key: def.QueryKey()}
		t.cacheKey = apistore.CacheKey(t.key)
		if prev, ok := w.byKey[t.cacheKey]; ok {
			return nil, fmt.Errorf("watch %s: query key %s already used by %s", watch.Name, t.cacheKey, prev.watch.Name)
		}
		w.targets = append(w.targets, t)
		w.byKey[t.cacheKey] = t
		w.health.Register(watch.Name, t.cacheKey)
	}
	return w, nil
}

// Health returns the per-watch poll record.
func (w *Watcher) Health() *state.Store {
	return w.health
}

// Targets returns the cache keys of every watched query in config order.
func (w *Watcher) Targets() []string {
	keys := make([]string, 0, len(w.targets))
	for _, t := range w.targets {
		keys = append(keys, t.cacheKey)
	}
	return keys
}

// RefreshAll fetches every watch once, serving cached data where available.
// Failures are logged; the first one is returned after all fetches finish.
func (w *Watcher) RefreshAll(ctx context.Context) error {
	var g errgroup.Group
	for _, t := range w.targets {
		g.Go(func() error {
			return w.fetch(ctx, t, false)
		})
	}
	return g.Wait()
}

// RefreshKey refetches the watch behind cacheKey from the network.
func (w *Watcher) RefreshKey(ctx context.Context, cacheKey string) error {
	t, ok := w.byKey[cacheKey]
	if !ok {
		return errs.New(errs.CodeNotFound, cacheKey+" is not a watched query")
	}
	return w.fetch(ctx, t, true)
}

// Run polls every watch until ctx is cancelled. Consecutive failures back a
// watch off exponentially up to maxBackoff.
func (w *Watcher) Run(ctx context.Context) error {
	var g errgroup.Group
	for _, t := range w.targets {
		g.Go(func() error {
			w.loop(ctx, t)
			return nil
		})
	}
	return g.Wait()
}

func (w *Watcher) loop(ctx context.Context, t *target) {
	failures := 0
	timer := time.NewTimer(t.watch.Every)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := w.fetch(ctx, t, false); err != nil {
			failures++
		} else {
			failures = 0
		}
		timer.Reset(calculateBackoff(failures, t.watch.Every))
	}
}

func (w *Watcher) fetch(ctx context.Context, t *target, fresh bool) error {
	_, err := w.client.Fetch(ctx, t.endpoint, t.watch.Request, t.watch.Params, apistore.QueryOptions{
		QueryKey:          t.key,
		DisableLocalCache: fresh,
	})
	if ctx.Err() != nil {
		return err
	}
	w.health.Record(t.cacheKey, err)
	if err != nil {
		log.Printf("watch %s failed: %v", t.watch.Name, err)
	}
	return err
}

// calculateBackoff doubles base for each consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
