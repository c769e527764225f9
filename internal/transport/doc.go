// Package transport sends resolved endpoint calls to the API over HTTP.
//
// Every response is expected to be the JSON envelope
//
//	{"success": true, "data": ...}
//	{"success": false, "message": "..."}
//
// Client implements apistore.Transport. Failures reported through the
// envelope come back as a Response with Success false; failures below the
// envelope (connection errors, non-JSON bodies, HTTP errors without an
// envelope) come back as errors carrying a jmgilman/go/errors code so the
// store can classify them.
package transport
