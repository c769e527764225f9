package ui

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/skiff/internal/apistore"
	"github.com/five82/skiff/internal/prefs"
)

type staticLogs []string

func (s staticLogs) Lines(int) []string { return s }

type listEndpoint struct{}

func (listEndpoint) Method() string { return "GET" }
func (listEndpoint) Path() []string { return []string{"v1", "items"} }
func (listEndpoint) RequestData(any, any) apistore.RequestData {
	return apistore.RequestData{EndpointURL: "/v1/items", Success: true}
}

func newTestModel(t *testing.T) (Model, *apistore.Store) {
	t.Helper()
	store, err := apistore.New(apistore.Options{
		Transport: apistore.TransportFunc(func(context.Context, apistore.Endpoint, string, []byte) (apistore.Response, error) {
			return apistore.Response{Success: true, Data: json.RawMessage(`{"n":1}`)}, nil
		}),
		Logger: func(string, error) {},
	})
	if err != nil {
		t.Fatalf("apistore.New: %v", err)
	}
	t.Cleanup(store.Close)
	for _, key := range []apistore.QueryKey{{"a"}, {"b"}, {"c"}} {
		if _, err := store.ExecuteQuery(context.Background(), listEndpoint{}, nil, nil, apistore.QueryOptions{QueryKey: key}); err != nil {
			t.Fatalf("ExecuteQuery: %v", err)
		}
	}

	m := New(Options{Store: store, Logs: staticLogs{"hello"}, ThemeName: "Slate"})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	next, _ = m.Update(snapshotMsg(takeSnapshot(store, m.health, m.logs, logLimit, time.Now())))
	return next.(Model), store
}

func press(t *testing.T, m Model, keys string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch keys {
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+c":
		msg = tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestModel_NavigationClampsSelection(t *testing.T) {
	m, _ := newTestModel(t)
	if len(m.snapshot.queries) != 3 {
		t.Fatalf("queries = %d, want 3", len(m.snapshot.queries))
	}

	m, _ = press(t, m, "k")
	if m.selectedRow != 0 {
		t.Fatalf("selectedRow = %d after k at top", m.selectedRow)
	}
	m, _ = press(t, m, "j")
	m, _ = press(t, m, "j")
	m, _ = press(t, m, "j")
	if m.selectedRow != 2 {
		t.Fatalf("selectedRow = %d, want 2", m.selectedRow)
	}
	m, _ = press(t, m, "g")
	if m.selectedRow != 0 {
		t.Fatalf("selectedRow after g = %d", m.selectedRow)
	}
	m, _ = press(t, m, "G")
	if m.selectedRow != 2 {
		t.Fatalf("selectedRow after G = %d", m.selectedRow)
	}
}

func TestModel_ThemeHelpAndTabs(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(t, m, "T")
	if m.theme.Name != "Nightfox" {
		t.Fatalf("theme after T = %q, want Nightfox", m.theme.Name)
	}

	m, _ = press(t, m, "?")
	if !m.showHelp || !strings.Contains(m.View(), "Invalidate") {
		t.Fatal("help overlay not shown")
	}
	m, _ = press(t, m, "x")
	if m.showHelp {
		t.Fatal("any key should close help")
	}

	m, _ = press(t, m, "tab")
	if m.currentView != ViewLogs || !strings.Contains(m.View(), "hello") {
		t.Fatalf("tab did not switch to logs: view=%v", m.currentView)
	}
	m, _ = press(t, m, "tab")
	if m.currentView != ViewQueries {
		t.Fatal("tab did not switch back")
	}
}

func TestModel_InvalidateSelected(t *testing.T) {
	m, store := newTestModel(t)
	m, _ = press(t, m, "j")

	m, cmd := press(t, m, "i")
	if cmd == nil {
		t.Fatal("invalidate produced no command")
	}
	msg := cmd()
	done, ok := msg.(actionDoneMsg)
	if !ok || done.err != nil {
		t.Fatalf("invalidate result = %#v", msg)
	}
	st, _ := store.QueryState(apistore.QueryKey{"b"})
	if !st.IsCachedData {
		t.Fatal("selected query not invalidated")
	}
	next, _ := m.Update(done)
	if got := next.(Model).flash; got != "invalidate done" {
		t.Fatalf("flash = %q", got)
	}
}

func TestModel_RefreshUsesCallback(t *testing.T) {
	m, _ := newTestModel(t)
	var gotKey string
	m.refresh = func(_ context.Context, cacheKey string) error {
		gotKey = cacheKey
		return errors.New("not watched")
	}

	m, cmd := press(t, m, "r")
	if cmd == nil {
		t.Fatal("refresh produced no command")
	}
	next, _ := m.Update(cmd())
	m = next.(Model)
	if gotKey != apistore.CacheKey(apistore.QueryKey{"a"}) {
		t.Fatalf("refresh key = %q", gotKey)
	}
	if !m.flashErr || !strings.Contains(m.flash, "not watched") {
		t.Fatalf("flash = %q err=%v", m.flash, m.flashErr)
	}
}

func TestModel_InvalidatedMessageFlashes(t *testing.T) {
	m, _ := newTestModel(t)
	ch := make(chan apistore.QueryKey, 1)
	m.invalidated = ch

	next, cmd := m.Update(invalidatedMsg{key: apistore.QueryKey{"a"}})
	m = next.(Model)
	if !strings.Contains(m.flash, `["a"]`) {
		t.Fatalf("flash = %q", m.flash)
	}
	if cmd == nil {
		t.Fatal("listener not re-armed")
	}
}

func TestModel_QuitKeys(t *testing.T) {
	m, _ := newTestModel(t)
	for _, k := range []string{"e", "ctrl+c"} {
		_, cmd := press(t, m, k)
		if cmd == nil {
			t.Fatalf("%s produced no command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("%s did not quit", k)
		}
	}
}

func TestModel_PrefsRestoreAndSave(t *testing.T) {
	var saved []prefs.Prefs
	m := New(Options{
		ThemeName: "Nightfox",
		Prefs:     prefs.Prefs{Theme: "Kanagawa", View: prefs.ViewLogs},
		SavePrefs: func(p prefs.Prefs) error {
			saved = append(saved, p)
			return nil
		},
	})
	if m.theme.Name != "Kanagawa" || m.currentView != ViewLogs {
		t.Fatalf("restored theme=%q view=%v", m.theme.Name, m.currentView)
	}

	m, cmd := press(t, m, "T")
	if cmd == nil {
		t.Fatal("theme change did not save prefs")
	}
	cmd()
	m, cmd = press(t, m, "tab")
	cmd()

	want := []prefs.Prefs{
		{Theme: "Slate", View: prefs.ViewLogs},
		{Theme: "Slate", View: prefs.ViewQueries},
	}
	if len(saved) != len(want) || saved[0] != want[0] || saved[1] != want[1] {
		t.Fatalf("saved = %+v, want %+v", saved, want)
	}

	next, _ := m.Update(prefsSavedMsg{err: errors.New("disk full")})
	if m = next.(Model); !m.flashErr {
		t.Fatal("save failure not flashed")
	}
}
