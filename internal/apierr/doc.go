// Package apierr normalizes failures raised while talking to the API and
// reports the ones that are handled locally.
//
// Every error that leaves the store passes through Normalize exactly once.
// The result is a PlatformError from github.com/jmgilman/go/errors that
// carries an error code and a single human-readable message. The original
// error value is deliberately not attached: callers see the message and the
// code, nothing else.
//
// # Codes
//
//   - CodeInvalidInput: request data or path parameters could not be turned
//     into a call (see Resolution)
//   - CodeNetwork: the transport failed or the API answered with a failure
//     envelope (see Transport)
//   - CodeTimeout / CodeUnavailable: the caller's context expired or was
//     cancelled
//   - CodeUnknown: anything else
//
// # Logging
//
// ErrorLogger is the hook used for failures that are swallowed rather than
// returned: storage errors, failed shared requests, background refreshes and
// callback errors. LogError is the default and writes through the standard
// log package.
package apierr
