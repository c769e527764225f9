package apistore

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/five82/skiff/internal/apierr"
	"github.com/five82/skiff/internal/inflight"
)

// queryRun carries what differs between a caller's query and the background
// refresh that follows a cache hit.
type queryRun struct {
	refresh bool
	version uint64
}

// ExecuteQuery returns the data for endpoint, serving it from the persistent
// cache when possible and refreshing it in the background.
//
// The background refresh reuses opts, so unless DisableLocalCache is set its
// result is also written back to the persistent cache. A refresh that lands
// after the key was invalidated or updated is discarded.
//
// Cancelling ctx abandons the wait; a request already sent runs to
// completion and still updates the store.
func (s *Store) ExecuteQuery(ctx context.Context, endpoint Endpoint, requestData, pathParams any, opts QueryOptions) (json.RawMessage, error) {
	return s.executeQuery(ctx, endpoint, requestData, pathParams, opts, queryRun{})
}

func (s *Store) executeQuery(ctx context.Context, endpoint Endpoint, requestData, pathParams any, opts QueryOptions, run queryRun) (json.RawMessage, error) {
	key := opts.QueryKey
	if key == nil {
		key = DefaultQueryKey(endpoint)
	}
	cacheKey := CacheKey(key)
	signature := requestSignature(cacheKey, requestData, pathParams)

	// Every run holds one fetch ticket on cacheKey until its outcome is
	// written. A refresh inherits the ticket of the run that scheduled it.
	if !run.refresh {
		s.beginFetch(cacheKey)
	}

	joinable := !opts.DisableDeduplication
	if joinable {
		if call := s.inflight.Lookup(signature); call != nil {
			data, ok, err := s.join(ctx, call, cacheKey)
			if ok {
				return data, err
			}
			joinable = false
		}
	}

	if !opts.DisableLocalCache && !run.refresh {
		if cached, ok := s.readCache(ctx, cacheKey); ok {
			version := s.showCached(cacheKey, cached)
			s.scheduleRefresh(endpoint, requestData, pathParams, opts, version, cacheKey)
			return cloneRaw(cached), nil
		}
	}

	detached := context.WithoutCancel(ctx)
	work := func() (json.RawMessage, error) {
		defer s.background.Done()
		return s.runQuery(detached, endpoint, requestData, pathParams, cacheKey, opts, run)
	}

	s.background.Add(1)
	var call *inflight.Call[json.RawMessage]
	if joinable {
		var owner bool
		call, owner = s.inflight.Do(signature, work)
		if !owner {
			s.background.Done()
			data, ok, err := s.join(ctx, call, cacheKey)
			if ok {
				return data, err
			}
			s.background.Add(1)
			call = inflight.Go(work)
		}
	} else {
		call = inflight.Go(work)
	}

	data, err := call.Wait(ctx)
	if err != nil {
		return nil, apierr.Normalize(err)
	}
	return cloneRaw(data), nil
}

// join waits on a request started by someone else. ok is false when the
// shared request failed and the caller should make its own attempt.
func (s *Store) join(ctx context.Context, call *inflight.Call[json.RawMessage], cacheKey string) (json.RawMessage, bool, error) {
	data, err := call.Wait(ctx)
	if err == nil {
		s.endFetch(cacheKey, nil)
		return cloneRaw(data), true, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.endFetch(cacheKey, nil)
		return nil, true, apierr.Normalize(ctxErr)
	}
	s.logError("Shared request failed, retrying", err)
	return nil, false, nil
}

// superseded reports whether a refresh captured at run.version has been
// overtaken. Callers hold queryMu.
func (s *Store) superseded(cacheKey string, run queryRun) bool {
	return run.refresh && s.versions[cacheKey] != run.version
}

func (s *Store) runQuery(ctx context.Context, endpoint Endpoint, requestData, pathParams any, cacheKey string, opts QueryOptions, run queryRun) (json.RawMessage, error) {
	data, err := s.fetch(ctx, endpoint, requestData, pathParams)

	if run.refresh && s.version(cacheKey) != run.version {
		s.endFetch(cacheKey, nil)
		if err != nil {
			return nil, apierr.Normalize(err)
		}
		return data, nil
	}

	if err != nil {
		if !errorsFromResolution(err) {
			if removeErr := s.storage.Remove(ctx, cacheKey); removeErr != nil {
				s.logError("Failed to evict cached query", removeErr)
			}
		}
		normalized := apierr.Normalize(err)
		applied := s.endFetch(cacheKey, func(st *QueryState) bool {
			if s.superseded(cacheKey, run) {
				return false
			}
			st.Error = normalized
			st.IsError = true
			st.IsSuccess = false
			st.StatusMessage = statusError + normalized.Message()
			st.LastFetchTime = s.now()
			return true
		})
		s.logError("Query "+strings.Join(endpoint.Path(), "/"), normalized)
		if applied && opts.OnError != nil {
			s.safeCall("Query error callback", func() { opts.OnError(normalized) })
		}
		return nil, normalized
	}

	persist := !opts.DisableLocalCache
	if persist {
		if setErr := s.storage.Set(ctx, cacheKey, data); setErr != nil {
			s.logError("Failed to persist query", setErr)
		}
	}
	applied := s.endFetch(cacheKey, func(st *QueryState) bool {
		if s.superseded(cacheKey, run) {
			return false
		}
		st.Data = cloneRaw(data)
		st.Error = nil
		st.IsError = false
		st.IsSuccess = true
		st.IsCachedData = false
		st.StatusMessage = statusReady
		st.LastFetchTime = s.now()
		s.versions[cacheKey]++
		return true
	})
	if !applied {
		// An invalidation or newer write landed while the value was being
		// persisted; the stored copy must not outlive it.
		if persist {
			if removeErr := s.storage.Remove(ctx, cacheKey); removeErr != nil {
				s.logError("Failed to evict cached query", removeErr)
			}
		}
		return data, nil
	}
	if opts.OnSuccess != nil {
		s.safeCall("Query success callback", func() { opts.OnSuccess(cloneRaw(data)) })
	}
	return data, nil
}

// fetch resolves endpoint and performs the network call.
func (s *Store) fetch(ctx context.Context, endpoint Endpoint, requestData, pathParams any) (json.RawMessage, error) {
	resolved := endpoint.RequestData(requestData, pathParams)
	if !resolved.Success {
		return nil, resolutionError{apierr.Resolution(resolved.Message)}
	}
	resp, err := s.transport.Call(ctx, endpoint, resolved.EndpointURL, resolved.PostBody)
	if failure := transportFailure(resp, err); failure != nil {
		return nil, failure
	}
	if resp.Data == nil {
		return json.RawMessage("null"), nil
	}
	return resp.Data, nil
}

// resolutionError marks failures that happened before any network call.
type resolutionError struct {
	error
}

func (r resolutionError) Unwrap() error {
	return r.error
}

func errorsFromResolution(err error) bool {
	_, ok := err.(resolutionError)
	return ok
}

// readCache treats storage failures and empty payloads as misses.
func (s *Store) readCache(ctx context.Context, cacheKey string) (json.RawMessage, bool) {
	raw, ok, err := s.storage.Get(ctx, cacheKey)
	if err != nil {
		s.logError("Failed to read cached query", err)
		return nil, false
	}
	if !ok || len(raw) == 0 || string(raw) == "null" || !json.Valid(raw) {
		return nil, false
	}
	return json.RawMessage(raw), true
}

func (s *Store) showCached(cacheKey string, data json.RawMessage) uint64 {
	s.queryMu.Lock()
	defer s.queryMu.Unlock()
	st := s.lockedQuery(cacheKey)
	st.Data = cloneRaw(data)
	st.Error = nil
	st.IsLoading = false
	st.IsLoadingFresh = false
	st.IsError = false
	st.IsSuccess = true
	st.IsCachedData = true
	st.StatusMessage = statusCached
	return s.versions[cacheKey]
}

func (s *Store) scheduleRefresh(endpoint Endpoint, requestData, pathParams any, opts QueryOptions, version uint64, cacheKey string) {
	if s.isClosed() {
		s.endFetch(cacheKey, nil)
		return
	}
	delay := opts.RefreshDelay
	if delay <= 0 {
		delay = s.refreshDelay
	}
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.closed:
			s.endFetch(cacheKey, nil)
			return
		}
		run := queryRun{refresh: true, version: version}
		if _, err := s.executeQuery(context.Background(), endpoint, requestData, pathParams, opts, run); err != nil {
			s.logError("Background refresh failed", err)
		}
	}()
}

// beginFetch marks cacheKey as fetching. Keys that never produced data are
// also marked loading.
func (s *Store) beginFetch(cacheKey string) {
	s.queryMu.Lock()
	defer s.queryMu.Unlock()
	s.fetches[cacheKey]++
	st := s.lockedQuery(cacheKey)
	fresh := !st.HasData()
	st.IsFetching = true
	st.IsLoading = fresh
	st.IsLoadingFresh = fresh
	st.StatusMessage = statusLoading
}

// endFetch returns one fetch ticket for cacheKey. commit, when non-nil, runs
// first under the same lock and reports whether it wrote an outcome; the
// result is returned.
func (s *Store) endFetch(cacheKey string, commit func(st *QueryState) bool) bool {
	s.queryMu.Lock()
	defer s.queryMu.Unlock()
	st := s.lockedQuery(cacheKey)
	applied := commit != nil && commit(st)
	if s.fetches[cacheKey] > 0 {
		s.fetches[cacheKey]--
	}
	if s.fetches[cacheKey] > 0 {
		fresh := !st.HasData()
		st.IsFetching = true
		st.IsLoading = fresh
		st.IsLoadingFresh = fresh
		return applied
	}
	delete(s.fetches, cacheKey)
	st.IsFetching = false
	st.IsLoading = false
	st.IsLoadingFresh = false
	if st.StatusMessage == statusLoading || !applied {
		st.StatusMessage = settledStatus(st)
	}
	return applied
}
