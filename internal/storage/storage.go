// Package storage declares the persistent key/value contract used to serve
// cached query results across restarts.
//
// Everything written through an Adapter is derived data: it can be discarded
// at any time and rebuilt from the API. Adapters are expected to be slower
// than memory and may fail; callers treat failures as cache misses.
package storage

import (
	"context"
	"sync"
)

// Adapter is a durable key/value store for cached payloads.
type Adapter interface {
	// Get returns the payload stored under key. ok is false when nothing is
	// stored.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key, replacing any previous payload.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Memory is an in-process Adapter. The zero value is ready to use.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemory returns an empty Memory adapter.
func NewMemory() *Memory {
	return &Memory{}
}

// Get implements Adapter.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(value), true, nil
}

// Set implements Adapter.
func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string][]byte)
	}
	m.items[key] = cloneBytes(value)
	return nil
}

// Remove implements Adapter.
func (m *Memory) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Len reports how many keys are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	dup := make([]byte, len(b))
	copy(dup, b)
	return dup
}

var _ Adapter = (*Memory)(nil)
