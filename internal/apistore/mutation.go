package apistore

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/five82/skiff/internal/apierr"
)

// ExecuteMutation performs a write against endpoint and propagates its result
// into cached queries.
func (s *Store) ExecuteMutation(ctx context.Context, endpoint Endpoint, data, pathParams any, opts MutationOptions) (json.RawMessage, error) {
	id := MutationID(endpoint)
	s.setMutation(id, MutationState{IsPending: true})

	result, err := s.fetch(ctx, endpoint, data, pathParams)
	if err != nil {
		normalized := apierr.Normalize(err)
		s.setMutation(id, MutationState{IsError: true, Error: normalized})
		s.logError("Mutation "+strings.Join(endpoint.Path(), "/"), normalized)
		if opts.OnError != nil {
			s.safeCall("Mutation error callback", func() {
				if cbErr := opts.OnError(ctx, normalized, data); cbErr != nil {
					s.logError("Mutation error callback failed", cbErr)
				}
			})
		}
		return nil, normalized
	}

	s.setMutation(id, MutationState{IsSuccess: true, Data: cloneRaw(result)})

	for _, update := range opts.UpdateQueries {
		s.applyUpdate(ctx, update, result)
	}
	if len(opts.InvalidateQueries) > 0 {
		if err := s.InvalidateQueries(ctx, opts.InvalidateQueries...); err != nil {
			s.logError("Failed to invalidate queries", err)
		}
	}
	if opts.OnSuccess != nil {
		s.safeCall("Mutation success callback", func() {
			if cbErr := opts.OnSuccess(ctx, cloneRaw(result), data); cbErr != nil {
				s.logError("Mutation success callback failed", cbErr)
			}
		})
	}
	return cloneRaw(result), nil
}

// applyUpdate rewrites the cached value of update.QueryKey. Keys with no
// visible value are left alone so that updaters never have to invent a base.
func (s *Store) applyUpdate(ctx context.Context, update QueryUpdate, result json.RawMessage) {
	if update.Updater == nil {
		return
	}
	cacheKey := CacheKey(update.QueryKey)
	current, ok := s.queryState(cacheKey)
	if !ok || !current.HasData() {
		return
	}

	var next json.RawMessage
	var err error
	s.safeCall("Query updater", func() {
		next, err = update.Updater(current.Data, cloneRaw(result))
	})
	if err != nil {
		s.logError("Failed to update query "+cacheKey, err)
		return
	}
	if next == nil || !json.Valid(next) {
		s.logError("Failed to update query "+cacheKey, apierr.Resolution("updater returned invalid JSON"))
		return
	}

	s.updateQuery(cacheKey, func(st *QueryState) {
		st.Data = cloneRaw(next)
		st.IsSuccess = true
		st.IsError = false
		st.Error = nil
		st.LastFetchTime = s.now()
		if !st.IsFetching {
			st.StatusMessage = settledStatus(st)
		}
		s.versions[cacheKey]++
	})
	if err := s.storage.Set(ctx, cacheKey, next); err != nil {
		s.logError("Failed to persist query "+cacheKey, err)
	}
}
