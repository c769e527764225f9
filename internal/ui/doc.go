// Package ui is the Bubble Tea inspector for a running apistore.Store.
//
// The inspector polls the store on a tick and renders three things:
//
//   - every query with a status badge, its flags and the time of its last
//     terminal fetch
//   - the selected query's data, pretty-printed in a scrollable viewport,
//     followed by the latest mutation and form states
//   - recent log lines (tab switches panes)
//
// r refreshes the selected query through Options.Refresh, skipping the
// persistent cache; i invalidates it. Invalidations made anywhere in the
// store arrive on Options.Invalidated and flash in the header.
package ui
