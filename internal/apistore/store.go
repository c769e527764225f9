package apistore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/five82/skiff/internal/apierr"
	"github.com/five82/skiff/internal/inflight"
	"github.com/five82/skiff/internal/storage"
)

// DefaultRefreshDelay is the wait between serving a cached value and
// refreshing it from the API.
const DefaultRefreshDelay = 50 * time.Millisecond

// ErrNoTransport is returned by New when Options.Transport is nil.
var ErrNoTransport = errors.New("apistore: transport is required")

// Options configure a Store.
type Options struct {
	Transport Transport
	// Storage persists query results; defaults to an in-memory adapter.
	Storage storage.Adapter
	// Logger receives failures that are handled without being returned.
	Logger apierr.ErrorLogger
	// RefreshDelay overrides DefaultRefreshDelay.
	RefreshDelay   time.Duration
	SecondaryCache SecondaryCache
	Now            func() time.Time
}

// Store holds query, mutation and form state for one API surface.
type Store struct {
	transport    Transport
	storage      storage.Adapter
	logError     apierr.ErrorLogger
	refreshDelay time.Duration
	secondary    SecondaryCache
	now          func() time.Time

	queryMu  sync.RWMutex
	queries  map[string]*QueryState
	versions map[string]uint64
	fetches  map[string]int

	mutationMu sync.RWMutex
	mutations  map[string]*MutationState

	formMu sync.RWMutex
	forms  map[string]*FormState

	inflight inflight.Registry[json.RawMessage]

	background sync.WaitGroup
	closeOnce  sync.Once
	closed     chan struct{}
}

// New builds a Store from opts.
func New(opts Options) (*Store, error) {
	if opts.Transport == nil {
		return nil, ErrNoTransport
	}
	s := &Store{
		transport:    opts.Transport,
		storage:      opts.Storage,
		logError:     opts.Logger,
		refreshDelay: opts.RefreshDelay,
		secondary:    opts.SecondaryCache,
		now:          opts.Now,
		queries:      make(map[string]*QueryState),
		versions:     make(map[string]uint64),
		fetches:      make(map[string]int),
		mutations:    make(map[string]*MutationState),
		forms:        make(map[string]*FormState),
		closed:       make(chan struct{}),
	}
	if s.storage == nil {
		s.storage = storage.NewMemory()
	}
	if s.logError == nil {
		s.logError = apierr.LogError
	}
	if s.refreshDelay <= 0 {
		s.refreshDelay = DefaultRefreshDelay
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Wait blocks until every in-flight request and scheduled refresh has
// finished.
func (s *Store) Wait() {
	s.background.Wait()
}

// Close cancels refreshes that have not started yet and waits for running
// work to finish. The store stays usable; queries served from cache after
// Close are not refreshed.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
	s.background.Wait()
}

func (s *Store) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// QueryState returns the state stored for key.
func (s *Store) QueryState(key QueryKey) (QueryState, bool) {
	return s.queryState(CacheKey(key))
}

func (s *Store) queryState(cacheKey string) (QueryState, bool) {
	s.queryMu.RLock()
	defer s.queryMu.RUnlock()
	st, ok := s.queries[cacheKey]
	if !ok {
		return QueryState{}, false
	}
	return st.clone(), true
}

// MutationState returns the state of the latest call to endpoint.
func (s *Store) MutationState(endpoint Endpoint) (MutationState, bool) {
	s.mutationMu.RLock()
	defer s.mutationMu.RUnlock()
	st, ok := s.mutations[MutationID(endpoint)]
	if !ok {
		return MutationState{}, false
	}
	return st.clone(), true
}

// Queries lists every query state ordered by cache key.
func (s *Store) Queries() []QueryEntry {
	s.queryMu.RLock()
	entries := make([]QueryEntry, 0, len(s.queries))
	for key, st := range s.queries {
		entries = append(entries, QueryEntry{CacheKey: key, State: st.clone()})
	}
	s.queryMu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].CacheKey < entries[j].CacheKey })
	return entries
}

// Mutations lists every mutation state ordered by id.
func (s *Store) Mutations() []MutationEntry {
	s.mutationMu.RLock()
	entries := make([]MutationEntry, 0, len(s.mutations))
	for id, st := range s.mutations {
		entries = append(entries, MutationEntry{ID: id, State: st.clone()})
	}
	s.mutationMu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// Forms lists every form state ordered by id.
func (s *Store) Forms() []FormEntry {
	s.formMu.RLock()
	entries := make([]FormEntry, 0, len(s.forms))
	for id, st := range s.forms {
		entries = append(entries, FormEntry{ID: id, State: *st})
	}
	s.formMu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// updateQuery applies fn to the state for cacheKey under the query lock,
// creating the entry if needed.
func (s *Store) updateQuery(cacheKey string, fn func(st *QueryState)) {
	s.queryMu.Lock()
	defer s.queryMu.Unlock()
	fn(s.lockedQuery(cacheKey))
}

func (s *Store) lockedQuery(cacheKey string) *QueryState {
	st, ok := s.queries[cacheKey]
	if !ok {
		st = &QueryState{}
		s.queries[cacheKey] = st
	}
	return st
}

func (s *Store) version(cacheKey string) uint64 {
	s.queryMu.RLock()
	defer s.queryMu.RUnlock()
	return s.versions[cacheKey]
}

func (s *Store) setMutation(id string, st MutationState) {
	s.mutationMu.Lock()
	defer s.mutationMu.Unlock()
	s.mutations[id] = &st
}

// safeCall runs a caller-supplied hook, logging a panic instead of
// propagating it.
func (s *Store) safeCall(label string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logError(label+" panicked", panicError{value: r})
		}
	}()
	fn()
}

type panicError struct {
	value any
}

func (p panicError) Error() string {
	return fmt.Sprint(p.value)
}

func errorMessage(err error) string {
	return apierr.Message(err)
}

func transportFailure(resp Response, err error) error {
	if err != nil {
		return apierr.Transport(err)
	}
	if !resp.Success {
		return apierr.TransportMessage(resp.Message)
	}
	return nil
}
