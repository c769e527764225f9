package apistore

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/skiff/internal/storage"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type testEndpoint struct {
	method string
	path   []string
	reject string
}

func (e testEndpoint) Method() string { return e.method }
func (e testEndpoint) Path() []string { return e.path }

func (e testEndpoint) RequestData(requestData, _ any) RequestData {
	if e.reject != "" {
		return RequestData{Message: e.reject}
	}
	body, _ := json.Marshal(requestData)
	return RequestData{
		EndpointURL: "/" + strings.Join(e.path, "/"),
		PostBody:    body,
		Success:     true,
	}
}

var (
	itemsEndpoint   = testEndpoint{method: "GET", path: []string{"v1", "items"}}
	counterEndpoint = testEndpoint{method: "GET", path: []string{"v1", "counter"}}
	bumpEndpoint    = testEndpoint{method: "POST", path: []string{"v1", "counter", "bump"}}
)

type fakeTransport struct {
	calls   atomic.Int32
	respond func(n int, url string) (Response, error)
}

func (f *fakeTransport) Call(_ context.Context, _ Endpoint, url string, _ []byte) (Response, error) {
	n := int(f.calls.Add(1))
	return f.respond(n, url)
}

func (f *fakeTransport) count() int {
	return int(f.calls.Load())
}

func respondWith(data string) func(int, string) (Response, error) {
	return func(int, string) (Response, error) {
		return Response{Success: true, Data: json.RawMessage(data)}, nil
	}
}

type logRecorder struct {
	mu       sync.Mutex
	messages []string
}

func (l *logRecorder) log(message string, _ error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, message)
}

func (l *logRecorder) count(prefix string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.messages {
		if strings.HasPrefix(m, prefix) {
			n++
		}
	}
	return n
}

type testStore struct {
	*Store
	transport *fakeTransport
	storage   *storage.Memory
	logs      *logRecorder
}

func newTestStore(t *testing.T, respond func(int, string) (Response, error)) testStore {
	t.Helper()
	mem := storage.NewMemory()
	ts := newTestStoreWith(t, respond, mem)
	ts.storage = mem
	return ts
}

// newTestStoreWith builds a store over adapter. The storage field is left nil
// unless the caller sets it.
func newTestStoreWith(t *testing.T, respond func(int, string) (Response, error), adapter storage.Adapter) testStore {
	t.Helper()
	transport := &fakeTransport{respond: respond}
	logs := &logRecorder{}
	s, err := New(Options{
		Transport: transport,
		Storage:   adapter,
		Logger:    logs.log,
		Now:       func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return testStore{Store: s, transport: transport, logs: logs}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func stored(t *testing.T, mem *storage.Memory, key QueryKey) (string, bool) {
	t.Helper()
	raw, ok, err := mem.Get(context.Background(), CacheKey(key))
	if err != nil {
		t.Fatalf("storage Get: %v", err)
	}
	return string(raw), ok
}

func seed(t *testing.T, mem *storage.Memory, key QueryKey, value string) {
	t.Helper()
	if err := mem.Set(context.Background(), CacheKey(key), []byte(value)); err != nil {
		t.Fatalf("storage Set: %v", err)
	}
}

// failingStorage rejects every operation.
type failingStorage struct {
	err error
}

func (f failingStorage) Get(context.Context, string) ([]byte, bool, error) { return nil, false, f.err }
func (f failingStorage) Set(context.Context, string, []byte) error         { return f.err }
func (f failingStorage) Remove(context.Context, string) error              { return f.err }

// hookedStorage wraps a Memory adapter and runs beforeSet ahead of the next
// Set once it is armed.
type hookedStorage struct {
	*storage.Memory
	mu        sync.Mutex
	beforeSet func()
}

func (h *hookedStorage) arm(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.beforeSet = fn
}

func (h *hookedStorage) Set(ctx context.Context, key string, value []byte) error {
	h.mu.Lock()
	hook := h.beforeSet
	h.beforeSet = nil
	h.mu.Unlock()
	if hook != nil {
		hook()
	}
	return h.Memory.Set(ctx, key, value)
}
