package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	errs "github.com/jmgilman/go/errors"

	"github.com/five82/skiff/internal/apistore"
	"github.com/five82/skiff/internal/config"
	"github.com/five82/skiff/internal/transport"
)

type hitCounter struct {
	mu   sync.Mutex
	hits map[string]int
}

func (h *hitCounter) count(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[path]
}

func newTestAPI(t *testing.T) (*apistore.Client, *hitCounter) {
	t.Helper()
	counter := &hitCounter{hits: map[string]int{}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counter.mu.Lock()
		counter.hits[r.URL.Path]++
		counter.mu.Unlock()

		if r.URL.Path == "/v1/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"path": r.URL.Path, "query": r.URL.RawQuery},
		})
	}))
	t.Cleanup(server.Close)

	httpClient, err := transport.NewClient(server.URL)
	if err != nil {
		t.Fatalf("transport.NewClient: %v", err)
	}
	store, err := apistore.New(apistore.Options{
		Transport:    httpClient,
		RefreshDelay: time.Millisecond,
		Logger:       func(string, error) {},
	})
	if err != nil {
		t.Fatalf("apistore.New: %v", err)
	}
	t.Cleanup(store.Close)
	return apistore.NewClient(store), counter
}

func TestCalculateBackoff(t *testing.T) {
	base := 30 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 30 * time.Second},
		{"negative failures", -1, 30 * time.Second},
		{"one failure", 1, time.Minute},
		{"two failures", 2, 2 * time.Minute},
		{"three failures", 3, 4 * time.Minute},
		{"four failures capped", 4, maxBackoff},
		{"many failures capped", 40, maxBackoff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calculateBackoff(tt.failures, base); got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, base, got, tt.want)
			}
		})
	}
}

func TestNewWatcher_Rejects(t *testing.T) {
	client, _ := newTestAPI(t)

	tests := []struct {
		name    string
		watches []config.Watch
	}{
		{"bad path", []config.Watch{{Name: "x", Method: "GET", Path: "v1/items"}}},
		{"not a query", []config.Watch{{Name: "x", Method: "POST", Path: "/v1/items"}}},
		{"duplicate key", []config.Watch{
			{Name: "a", Method: "GET", Path: "/v1/items"},
			{Name: "b", Method: "GET", Path: "/v1/other", QueryKey: []any{"v1/items", "GET"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewWatcher(client, tt.watches); err == nil {
				t.Fatal("NewWatcher returned nil error")
			}
		})
	}
}

func TestWatcher_RefreshAllAndRefreshKey(t *testing.T) {
	client, counter := newTestAPI(t)
	w, err := NewWatcher(client, []config.Watch{
		{Name: "items", Method: "GET", Path: "/v1/items", Request: map[string]any{"page": 2}},
		{Name: "user", Method: "GET", Path: "/v1/users/[id]", Params: map[string]any{"id": "7"}, QueryKey: []any{"user", "7"}},
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	targets := w.Targets()
	if len(targets) != 2 || targets[1] != `["user","7"]` {
		t.Fatalf("Targets() = %v", targets)
	}

	ctx := context.Background()
	if err := w.RefreshAll(ctx); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	items, ok := client.GetQueryState(apistore.QueryKey{"v1/items", "GET"})
	if !ok || !items.IsSuccess || string(items.Data) != `{"path":"/v1/items","query":"page=2"}` {
		t.Fatalf("items state = %+v data=%s", items, items.Data)
	}

	if err := w.RefreshKey(ctx, targets[1]); err != nil {
		t.Fatalf("RefreshKey: %v", err)
	}
	if got := counter.count("/v1/users/7"); got != 2 {
		t.Fatalf("user hits = %d, want 2", got)
	}

	err = w.RefreshKey(ctx, `["nope"]`)
	if errs.GetCode(err) != errs.CodeNotFound {
		t.Fatalf("RefreshKey(unknown) = %v, want NOT_FOUND", err)
	}
}

func TestWatcher_RefreshAllReportsFailure(t *testing.T) {
	client, _ := newTestAPI(t)
	w, err := NewWatcher(client, []config.Watch{
		{Name: "ok", Method: "GET", Path: "/v1/items"},
		{Name: "broken", Method: "GET", Path: "/v1/broken"},
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	if err := w.RefreshAll(context.Background()); err == nil {
		t.Fatal("RefreshAll returned nil error")
	}
	if st, _ := client.GetQueryState(apistore.QueryKey{"v1/items", "GET"}); !st.IsSuccess {
		t.Fatalf("healthy watch state = %+v", st)
	}
	if st, _ := client.GetQueryState(apistore.QueryKey{"v1/broken", "GET"}); !st.IsError {
		t.Fatalf("broken watch state = %+v", st)
	}

	broken, ok := w.Health().Watch(`["v1/broken","GET"]`)
	if !ok || broken.ConsecutiveFailures != 1 || broken.LastError == nil || !broken.LastSuccess.IsZero() {
		t.Fatalf("broken health = %+v", broken)
	}
	healthy, _ := w.Health().Watch(`["v1/items","GET"]`)
	if healthy.ConsecutiveFailures != 0 || healthy.LastSuccess.IsZero() {
		t.Fatalf("healthy health = %+v", healthy)
	}
}

func TestWatcher_RunPollsUntilCancelled(t *testing.T) {
	client, counter := newTestAPI(t)
	w, err := NewWatcher(client, []config.Watch{
		{Name: "items", Method: "GET", Path: "/v1/items", Every: 5 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for counter.count("/v1/items") < 3 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("hits = %d, want >= 3", counter.count("/v1/items"))
		}
		time.Sleep(2 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
