package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/five82/skiff/internal/apierr"
	"github.com/five82/skiff/internal/apistore"
	"github.com/five82/skiff/internal/state"
)

const (
	statusIdle     = "idle"
	statusLoading  = "loading"
	statusFetching = "fetching"
	statusCached   = "cached"
	statusReady    = "ready"
	statusError    = "error"
	statusPending  = "pending"
	statusSuccess  = "success"
)

// snapshot is everything the inspector renders, copied out of the store.
type snapshot struct {
	queries   []apistore.QueryEntry
	mutations []apistore.MutationEntry
	forms     []apistore.FormEntry
	watches   map[string]state.WatchHealth
	logs      []string
	taken     time.Time
}

func takeSnapshot(store *apistore.Store, health *state.Store, logs logSource, logLimit int, now time.Time) snapshot {
	snap := snapshot{taken: now}
	if store != nil {
		snap.queries = store.Queries()
		snap.mutations = store.Mutations()
		snap.forms = store.Forms()
	}
	if health != nil {
		watches := health.Snapshot()
		snap.watches = make(map[string]state.WatchHealth, len(watches))
		for _, w := range watches {
			snap.watches[w.CacheKey] = w
		}
	}
	if logs != nil {
		snap.logs = logs.Lines(logLimit)
	}
	return snap
}

// queryStatus reduces a QueryState to one badge label.
func queryStatus(st apistore.QueryState) string {
	switch {
	case st.IsLoading:
		return statusLoading
	case st.IsError:
		return statusError
	case st.IsFetching:
		return statusFetching
	case st.IsCachedData && st.HasData():
		return statusCached
	case st.IsSuccess:
		return statusReady
	default:
		return statusIdle
	}
}

// offlineWatches counts watches that have failed repeatedly.
func (s snapshot) offlineWatches() int {
	n := 0
	for _, w := range s.watches {
		if w.IsOffline() {
			n++
		}
	}
	return n
}

func mutationStatus(st apistore.MutationState) string {
	switch {
	case st.IsPending:
		return statusPending
	case st.IsError:
		return statusError
	case st.IsSuccess:
		return statusSuccess
	default:
		return statusIdle
	}
}

// queryFlags renders the boolean flags as a compact fixed-width string.
func queryFlags(st apistore.QueryState) string {
	flags := []struct {
		on    bool
		label string
	}{
		{st.IsLoading, "L"},
		{st.IsFetching, "F"},
		{st.IsLoadingFresh, "N"},
		{st.IsCachedData, "C"},
		{st.IsSuccess, "S"},
		{st.IsError, "E"},
	}
	var b strings.Builder
	for _, f := range flags {
		if f.on {
			b.WriteString(f.label)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

func relativeTime(now, t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	since := now.Sub(t)
	switch {
	case since < time.Second:
		return "now"
	case since < time.Minute:
		return fmt.Sprintf("%ds ago", int(since.Seconds()))
	case since < time.Hour:
		return fmt.Sprintf("%dm ago", int(since.Minutes()))
	case since < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(since.Hours()))
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func prettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "(no data)"
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("[%s] %s", apierr.Code(err), apierr.Message(err))
}

// truncate shortens s to max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}
