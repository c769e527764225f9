package apistore

import (
	"context"
	"encoding/json"
	"time"
)

// Endpoint describes one API operation.
type Endpoint interface {
	// Method is the HTTP method, e.g. "GET".
	Method() string
	// Path is the endpoint path as segments, e.g. ["v1", "auth", "me"].
	Path() []string
	// RequestData resolves request data and path parameters into a call.
	// It must not perform I/O.
	RequestData(requestData, pathParams any) RequestData
}

// RequestData is the outcome of resolving an endpoint call.
type RequestData struct {
	EndpointURL string
	PostBody    []byte
	Success     bool
	Message     string
}

// Response is the envelope every API call returns.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Transport performs the network call for a resolved endpoint. A returned
// error and a Response with Success false are both treated as transport
// failures.
type Transport interface {
	Call(ctx context.Context, endpoint Endpoint, url string, body []byte) (Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, endpoint Endpoint, url string, body []byte) (Response, error)

// Call implements Transport.
func (f TransportFunc) Call(ctx context.Context, endpoint Endpoint, url string, body []byte) (Response, error) {
	return f(ctx, endpoint, url, body)
}

// SecondaryCache is notified whenever a query key is invalidated, so another
// cache layered over the store can drop its copy.
type SecondaryCache interface {
	Invalidate(key QueryKey)
}

// SecondaryCacheFunc adapts a function to SecondaryCache.
type SecondaryCacheFunc func(key QueryKey)

// Invalidate implements SecondaryCache.
func (f SecondaryCacheFunc) Invalidate(key QueryKey) {
	f(key)
}

// QueryOptions tune a single ExecuteQuery call.
type QueryOptions struct {
	// QueryKey names the data; defaults to [path joined by "/", method].
	QueryKey QueryKey
	// DisableLocalCache skips reading and writing the persistent cache.
	DisableLocalCache bool
	// RefreshDelay is the wait before the background refresh that follows a
	// cache hit. Zero uses the store default.
	RefreshDelay time.Duration
	// DisableDeduplication makes the call ignore identical in-flight requests.
	DisableDeduplication bool
	// OnSuccess runs after a successful network response is recorded.
	OnSuccess func(data json.RawMessage)
	// OnError runs after a failure is recorded.
	OnError func(err error)
}

// Updater derives a cached query's next value from its current value and a
// mutation result.
type Updater func(prev, result json.RawMessage) (json.RawMessage, error)

// QueryUpdate pairs a query key with the updater applied to its cached value.
type QueryUpdate struct {
	QueryKey QueryKey
	Updater  Updater
}

// MutationOptions tune a single ExecuteMutation call.
type MutationOptions struct {
	// UpdateQueries rewrite cached query values after the mutation succeeds.
	// Keys without a cached value are skipped.
	UpdateQueries []QueryUpdate
	// InvalidateQueries are invalidated after the updates are applied.
	InvalidateQueries []QueryKey
	// OnSuccess runs last on success. Its error is logged, not returned.
	OnSuccess func(ctx context.Context, data json.RawMessage, request any) error
	// OnError runs after a failure is recorded. Its error is logged.
	OnError func(ctx context.Context, err error, request any) error
}
