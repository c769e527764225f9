// Package state tracks the health of watched queries.
//
// The watcher records every poll outcome in a Store; the inspector reads
// copies through Snapshot and Watch. Query data itself lives in apistore;
// this package only answers "when did this watch last succeed, and is it
// failing right now".
//
// A watch counts as offline once ConsecutiveFailures reaches two. One
// successful poll resets the streak and clears LastError while LastSuccess
// keeps the time of the most recent good poll.
//
// Snapshot and Watch return copies; LastError is re-wrapped so callers never
// share the stored error value.
package state
