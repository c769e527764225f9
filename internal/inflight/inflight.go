package inflight

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Call is one in-flight request whose result may be shared.
type Call[T any] struct {
	done    chan struct{}
	val     T
	err     error
	waiters atomic.Int32
}

func newCall[T any]() *Call[T] {
	return &Call[T]{done: make(chan struct{})}
}

func (c *Call[T]) resolve(val T, err error) {
	c.val = val
	c.err = err
	close(c.done)
}

// await publishes the singleflight result to every waiter.
func (c *Call[T]) await(results <-chan singleflight.Result) {
	res := <-results
	val, _ := res.Val.(T)
	c.resolve(val, res.Err)
}

// Wait blocks until the call resolves or ctx is done.
func (c *Call[T]) Wait(ctx context.Context) (T, error) {
	c.waiters.Add(1)
	defer c.waiters.Add(-1)
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the call has resolved.
func (c *Call[T]) Done() <-chan struct{} {
	return c.done
}

// Waiters reports how many callers are currently blocked in Wait.
func (c *Call[T]) Waiters() int {
	return int(c.waiters.Load())
}

// Go runs fn without registering it under any signature.
func Go[T any](fn func() (T, error)) *Call[T] {
	call := newCall[T]()
	go func() {
		val, err := fn()
		call.resolve(val, err)
	}()
	return call
}

// Registry shares in-flight work by request signature. The zero value is
// ready to use.
type Registry[T any] struct {
	group singleflight.Group

	mu    sync.Mutex
	calls map[string]*Call[T]
}

// Lookup returns the call running under signature, or nil.
func (r *Registry[T]) Lookup(signature string) *Call[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[signature]
}

// Do starts fn under signature and reports owner=true. When a call is already
// running under signature, that call is returned instead and fn is not run.
// The signature is released as soon as fn returns, before any waiter sees the
// result, so a later Do starts fresh work.
func (r *Registry[T]) Do(signature string, fn func() (T, error)) (call *Call[T], owner bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.calls[signature]; ok {
		return existing, false
	}
	if r.calls == nil {
		r.calls = make(map[string]*Call[T])
	}
	call = newCall[T]()
	r.calls[signature] = call
	results := r.group.DoChan(signature, func() (any, error) {
		defer r.release(signature, call)
		return fn()
	})
	go call.await(results)
	return call, true
}

func (r *Registry[T]) release(signature string, call *Call[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls[signature] == call {
		delete(r.calls, signature)
		r.group.Forget(signature)
	}
}

// Len reports the number of running signatures.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
