// Package logtail keeps the most recent log lines in memory.
//
// The inspector owns the terminal, so the standard logger is pointed at a
// Buffer and the UI renders Buffer.Lines in its log pane. Writes are split on
// newlines; a trailing partial line is held until its newline arrives.
// Once the buffer is full the oldest line is dropped for each new one.
package logtail
