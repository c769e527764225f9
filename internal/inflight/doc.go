// Package inflight tracks requests that are currently on the wire so that
// identical requests can share one result.
//
// A Registry runs work through a singleflight.Group keyed by request
// signature and keeps an index of the running signatures, so callers can ask
// whether a request is in flight before deciding to start one. The caller
// whose Do starts the work is its owner; every other caller with the same
// signature gets the owner's Call and waits on it. The signature is released
// (and forgotten by the group) when the work returns, whether it succeeded or
// failed.
//
// Waiting honours the waiter's context, but cancelling a waiter never aborts
// the work itself: once started, a Call runs to completion.
package inflight
