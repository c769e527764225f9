package apistore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Client exposes a Store to code that is not bound to any rendering layer,
// such as background pollers, command handlers and tests.
type Client struct {
	store *Store
}

// NewClient wraps store.
func NewClient(store *Store) *Client {
	return &Client{store: store}
}

// Store returns the underlying store.
func (c *Client) Store() *Store {
	return c.store
}

// Fetch runs a query.
func (c *Client) Fetch(ctx context.Context, endpoint Endpoint, requestData, pathParams any, opts QueryOptions) (json.RawMessage, error) {
	return c.store.ExecuteQuery(ctx, endpoint, requestData, pathParams, opts)
}

// Mutate runs a mutation.
func (c *Client) Mutate(ctx context.Context, endpoint Endpoint, data, pathParams any, opts MutationOptions) (json.RawMessage, error) {
	return c.store.ExecuteMutation(ctx, endpoint, data, pathParams, opts)
}

// InvalidateQueries marks keys stale.
func (c *Client) InvalidateQueries(ctx context.Context, keys ...QueryKey) error {
	return c.store.InvalidateQueries(ctx, keys...)
}

// GetQueryState returns the state for key. ok is false when key has never
// been queried.
func (c *Client) GetQueryState(key QueryKey) (QueryState, bool) {
	return c.store.QueryState(key)
}

// GetMutationState returns the state of the latest call to endpoint. ok is
// false when endpoint has never been called.
func (c *Client) GetMutationState(endpoint Endpoint) (MutationState, bool) {
	return c.store.MutationState(endpoint)
}

// Decode unmarshals raw into a T.
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// FetchAs runs a query and decodes its data into T.
func FetchAs[T any](ctx context.Context, c *Client, endpoint Endpoint, requestData, pathParams any, opts QueryOptions) (T, error) {
	raw, err := c.Fetch(ctx, endpoint, requestData, pathParams, opts)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](raw)
}

// MutateAs runs a mutation and decodes its data into T.
func MutateAs[T any](ctx context.Context, c *Client, endpoint Endpoint, data, pathParams any, opts MutationOptions) (T, error) {
	raw, err := c.Mutate(ctx, endpoint, data, pathParams, opts)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](raw)
}

// UpdateWith adapts a typed function into an Updater. prev is the cached
// query value and result the mutation's data.
func UpdateWith[T, R any](fn func(prev T, result R) T) Updater {
	return func(prevRaw, resultRaw json.RawMessage) (json.RawMessage, error) {
		prev, err := Decode[T](prevRaw)
		if err != nil {
			return nil, err
		}
		result, err := Decode[R](resultRaw)
		if err != nil {
			return nil, err
		}
		next, err := json.Marshal(fn(prev, result))
		if err != nil {
			return nil, fmt.Errorf("encode updated query: %w", err)
		}
		return next, nil
	}
}
