// Package apistore is the client-side data-access layer: every read (query)
// and write (mutation) issued against the API goes through a Store.
//
// # Overview
//
// A Store owns three maps of observable state and one registry of in-flight
// requests:
//
//	queries    cache key       → QueryState
//	mutations  endpoint id     → MutationState
//	forms      form id         → FormState
//	inflight   request signature → shared pending result
//
// Collaborators are injected through Options: a Transport that performs the
// network call, a storage.Adapter that persists query results across
// restarts, and an apierr.ErrorLogger for failures that are handled locally.
// Endpoints describe themselves through the Endpoint interface and resolve
// request data and path parameters into a URL and body.
//
// # Keys
//
// A QueryKey is an ordered list of values naming "what data this is". It is
// normalised through JSON into a cache key, so logically identical keys
// (a struct and a map with the same fields, for example) share a cache slot.
// The request signature appends the serialised request data and path
// parameters to the cache key; it is used only to share in-flight requests.
//
// # Queries: stale-while-revalidate
//
// ExecuteQuery marks the key as loading, then:
//
//  1. joins an identical in-flight request if one exists
//  2. otherwise serves a persisted value immediately, flagged IsCachedData,
//     and schedules a background refresh after RefreshDelay (50ms default)
//  3. otherwise resolves the endpoint and calls the transport
//
// A failed shared request is logged and the caller retries once on its own.
// Transport failures evict the persisted entry. Background refreshes carry
// the key's version from when they were scheduled and are dropped if any
// invalidation or newer write happened in between.
//
// # Mutations
//
// ExecuteMutation resets the endpoint's MutationState, performs the call and,
// on success, applies UpdateQueries to cached values that already exist
// (never fabricating a base value), invalidates InvalidateQueries and runs
// OnSuccess. Updates are applied after the API confirms the mutation; there
// is no rollback because nothing is applied before confirmation.
//
// # Invalidation
//
// InvalidateQueries removes the persisted entry and flags the in-memory
// state IsCachedData without clearing its data, so consumers keep rendering
// the last value until they query again. It never refetches on its own.
//
// # Concurrency
//
// Each state map has its own lock; state is copied out on read. In-flight
// requests run to completion even when every waiter has gone away:
// cancelling a context abandons the caller's wait, not the shared request.
// Callbacks are invoked after the outcome is recorded and cannot change it.
//
// # Client
//
// Client is the facade for code outside any reactive layer, and FetchAs,
// MutateAs and UpdateWith add typed decoding on top of the raw JSON the
// store keeps.
package apistore
