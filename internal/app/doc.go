// Package app is skiff's composition root.
//
// Run loads configuration, opens the persistent query cache (SQLite, a TOML
// file or memory), builds the HTTP transport and the apistore.Store, then
// starts the Watcher and the inspector UI:
//
//	config.LoadWith()       read ~/.config/skiff/config.toml + SKIFF_* env + flags
//	prefs.Load()            theme and pane from the last run
//	openStorage()           sqlite.Open + Prune | filestore.Open | memory
//	transport.NewClient()   HTTP envelope client for api_bind
//	apistore.New()          query/mutation/form store
//	Watcher.RefreshAll()    initial pass, cache first
//	Watcher.Run()           per-watch polling (background)
//	ui.Run()                inspector (blocks)
//
// While the UI runs, the standard logger writes into a logtail.Buffer that the
// inspector shows in its log pane. Store invalidations are forwarded to the
// UI through a buffered channel; notifications are dropped rather than
// blocking the store when the UI falls behind.
//
// Saved preferences take precedence over the configured theme; the UI writes
// them back whenever the theme or pane changes.
//
// Each watch polls on its own interval and records every outcome in a
// state.Store, which the inspector uses to flag offline watches.
// Consecutive failures back that watch off exponentially (see
// calculateBackoff) up to five minutes; one success resets it.
package app
