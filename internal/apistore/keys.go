package apistore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// QueryKey identifies a logical query. Elements may be any JSON-encodable
// value.
type QueryKey []any

// CacheKey normalises key into the string used for state and storage.
// Values are round-tripped through JSON so that equivalent structs, maps and
// numbers produce identical keys. Numbers keep their literal digits, so
// integers beyond 2^53 stay distinct.
func CacheKey(key QueryKey) string {
	if key == nil {
		key = QueryKey{}
	}
	return canonicalJSON([]any(key))
}

// ParseCacheKey recovers a QueryKey from its cache key. CacheKey of the
// result equals cacheKey.
func ParseCacheKey(cacheKey string) (QueryKey, error) {
	var key []any
	if err := decodeExact([]byte(cacheKey), &key); err != nil {
		return nil, fmt.Errorf("parse cache key %q: %w", cacheKey, err)
	}
	return QueryKey(key), nil
}

// DefaultQueryKey is the key used when a query supplies none.
func DefaultQueryKey(endpoint Endpoint) QueryKey {
	return QueryKey{strings.Join(endpoint.Path(), "/"), endpoint.Method()}
}

// MutationID is the identity under which an endpoint's MutationState is kept.
func MutationID(endpoint Endpoint) string {
	return fmt.Sprintf("mutation-%s-%s", strings.Join(endpoint.Path(), "-"), endpoint.Method())
}

// FormID is the conventional form identity for forms submitting to endpoint.
func FormID(endpoint Endpoint) string {
	return fmt.Sprintf("form-%s-%s", strings.Join(endpoint.Path(), "-"), endpoint.Method())
}

func requestSignature(cacheKey string, requestData, pathParams any) string {
	return cacheKey + "|" + canonicalJSON(requestData) + "|" + canonicalJSON(pathParams)
}

func canonicalJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	var generic any
	if err := decodeExact(raw, &generic); err != nil {
		return string(raw)
	}
	normalised, err := json.Marshal(generic)
	if err != nil {
		return string(raw)
	}
	return string(normalised)
}

// decodeExact unmarshals raw keeping numbers as json.Number.
func decodeExact(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}
