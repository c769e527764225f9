package apistore

import (
	"encoding/json"
	"time"
)

const (
	statusLoading = "Loading data..."
	statusCached  = "Showing cached data"
	statusReady   = "Ready"
	statusError   = "Error: "
)

// QueryState is the observable state of one cache key.
type QueryState struct {
	Data  json.RawMessage
	Error error

	IsLoading      bool
	IsFetching     bool
	IsError        bool
	IsSuccess      bool
	IsLoadingFresh bool
	IsCachedData   bool

	StatusMessage string
	// LastFetchTime is set on success or error; zero until then.
	LastFetchTime time.Time
}

// HasData reports whether a value is visible.
func (q QueryState) HasData() bool {
	return hasValue(q.Data)
}

func (q QueryState) clone() QueryState {
	q.Data = cloneRaw(q.Data)
	return q
}

// MutationState is the observable state of the latest call to an endpoint.
type MutationState struct {
	IsPending bool
	IsError   bool
	Error     error
	IsSuccess bool
	Data      json.RawMessage
}

func (m MutationState) clone() MutationState {
	m.Data = cloneRaw(m.Data)
	return m
}

// FormState is the error/submitting pair kept per form.
type FormState struct {
	FormError    error
	IsSubmitting bool
}

// QueryEntry pairs a cache key with its state.
type QueryEntry struct {
	CacheKey string
	State    QueryState
}

// MutationEntry pairs a mutation id with its state.
type MutationEntry struct {
	ID    string
	State MutationState
}

// FormEntry pairs a form id with its state.
type FormEntry struct {
	ID    string
	State FormState
}

func hasValue(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	s := string(raw)
	return s != "null" && s != `""` && s != "false" && s != "0"
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	dup := make(json.RawMessage, len(raw))
	copy(dup, raw)
	return dup
}

func settledStatus(st *QueryState) string {
	switch {
	case st.IsError && st.Error != nil:
		return statusError + errorMessage(st.Error)
	case st.IsCachedData:
		return statusCached
	case st.IsSuccess:
		return statusReady
	default:
		return st.StatusMessage
	}
}
