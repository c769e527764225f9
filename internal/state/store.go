package state

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

const offlineThreshold = 2

// WatchHealth is the polling record of one watched query.
type WatchHealth struct {
	Name                string
	CacheKey            string
	LastAttempt         time.Time
	LastSuccess         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsOffline reports whether the watch has failed on multiple polls in a row.
func (w WatchHealth) IsOffline() bool {
	return w.ConsecutiveFailures >= offlineThreshold
}

// Store records watch outcomes for the UI. The zero value is ready to use.
type Store struct {
	mu      sync.RWMutex
	watches map[string]*WatchHealth
	Now     func() time.Time
}

// Register adds a watch with no recorded attempts. Registering an existing
// cache key renames it and keeps its history.
func (s *Store) Register(name, cacheKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.watches[cacheKey]; ok {
		w.Name = name
		return
	}
	if s.watches == nil {
		s.watches = make(map[string]*WatchHealth)
	}
	s.watches[cacheKey] = &WatchHealth{Name: name, CacheKey: cacheKey}
}

// Record stores the outcome of one poll. When err is non-nil the last success
// time is kept and the failure streak grows; a success resets it. Unknown
// keys are ignored.
func (s *Store) Record(cacheKey string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.watches[cacheKey]
	if !ok {
		return
	}
	now := s.now()
	w.LastAttempt = now
	if err != nil {
		w.LastError = err
		w.ConsecutiveFailures++
		return
	}
	w.LastError = nil
	w.LastSuccess = now
	w.ConsecutiveFailures = 0
}

// Watch returns a copy of the record for cacheKey.
func (s *Store) Watch(cacheKey string) (WatchHealth, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.watches[cacheKey]
	if !ok {
		return WatchHealth{}, false
	}
	return w.clone(), true
}

// Snapshot returns copies of every record ordered by cache key.
func (s *Store) Snapshot() []WatchHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]WatchHealth, 0, len(s.watches))
	for _, w := range s.watches {
		out = append(out, w.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CacheKey < out[j].CacheKey })
	return out
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (w *WatchHealth) clone() WatchHealth {
	dup := *w
	if w.LastError != nil {
		dup.LastError = fmt.Errorf("%w", w.LastError)
	}
	return dup
}
