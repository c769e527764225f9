package apierr

import (
	"context"
	"errors"
	"log"
	"strings"

	errs "github.com/jmgilman/go/errors"
)

const unknownMessage = "unknown error"

// ErrorLogger reports an error that was handled without being returned.
type ErrorLogger func(message string, err error)

// LogError is the default ErrorLogger.
func LogError(message string, err error) {
	message = strings.TrimSuffix(strings.TrimSpace(message), ":")
	if err == nil {
		log.Print(message)
		return
	}
	log.Printf("%s: %s", message, Message(err))
}

// Discard is an ErrorLogger that drops everything.
func Discard(string, error) {}

// Resolution builds the error for a descriptor that could not resolve a call.
func Resolution(message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "invalid request data"
	}
	return errs.New(errs.CodeInvalidInput, message)
}

// Transport builds the error for a failed API call. Codes already attached by
// the transport are kept.
func Transport(err error) error {
	if err == nil {
		return nil
	}
	if errs.GetCode(err) != errs.CodeUnknown {
		return err
	}
	return errs.New(errs.CodeNetwork, Message(err))
}

// TransportMessage builds the error for a failure envelope returned by the API.
func TransportMessage(message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "request failed"
	}
	return errs.New(errs.CodeNetwork, message)
}

// Normalize collapses err into a PlatformError holding a code and a single
// message. It returns nil for a nil error.
func Normalize(err error) errs.PlatformError {
	if err == nil {
		return nil
	}
	code := errs.GetCode(err)
	if code == errs.CodeUnknown {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			code = errs.CodeTimeout
		case errors.Is(err, context.Canceled):
			code = errs.CodeUnavailable
		}
	}
	return errs.New(code, Message(err))
}

// Message extracts the human-readable message from err without the code
// prefix PlatformError adds to Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var platformErr errs.PlatformError
	if errors.As(err, &platformErr) {
		if msg := strings.TrimSpace(platformErr.Message()); msg != "" {
			if cause := platformErr.Unwrap(); cause != nil {
				return msg + ": " + Message(cause)
			}
			return msg
		}
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return unknownMessage
}

// Code reports the error code attached to err.
func Code(err error) errs.ErrorCode {
	return errs.GetCode(err)
}
