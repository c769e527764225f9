package apistore

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"
)

// InvalidateQueries marks each key stale: the persisted value is removed and
// an existing in-memory state keeps its data but is flagged IsCachedData.
// Keys that were never queried get no state. Nothing is
// refetched. Storage failures are logged; the returned error is non-nil only
// when ctx ends first.
func (s *Store) InvalidateQueries(ctx context.Context, keys ...QueryKey) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s.invalidate(gctx, key)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Store) invalidate(ctx context.Context, key QueryKey) {
	cacheKey := CacheKey(key)
	if err := s.storage.Remove(ctx, cacheKey); err != nil {
		s.logError("Failed to remove cached query "+cacheKey, err)
	}
	s.queryMu.Lock()
	s.versions[cacheKey]++
	if st, ok := s.queries[cacheKey]; ok {
		st.IsCachedData = true
		if !st.IsFetching {
			st.StatusMessage = settledStatus(st)
		}
	}
	s.queryMu.Unlock()
	if s.secondary != nil {
		s.safeCall("Secondary cache", func() { s.secondary.Invalidate(key) })
	}
}

// RefetchQuery invalidates key and returns its last known value. Request
// parameters are not retained per key, so the value is not fetched again;
// the next ExecuteQuery for key goes to the network.
func (s *Store) RefetchQuery(ctx context.Context, key QueryKey) (json.RawMessage, bool, error) {
	if err := s.InvalidateQueries(ctx, key); err != nil {
		return nil, false, err
	}
	st, ok := s.QueryState(key)
	if !ok || !st.HasData() {
		return nil, false, nil
	}
	return st.Data, true, nil
}
