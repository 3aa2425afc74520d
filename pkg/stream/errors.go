package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrClientClosed is returned when subscribing on a closed Client.
	ErrClientClosed = errors.New("stream client closed")

	// ErrStreamEnded is the failure recorded when the transport ends cleanly
	// before the terminal sentinel arrives.
	ErrStreamEnded = errors.New("stream ended before done sentinel")

	// ErrUnexpectedStatus is the sentinel wrapped by StatusError.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrEmptySessionID is returned when subscribing without a session id.
	ErrEmptySessionID = errors.New("session id is required")
)

// MaxRetriesCode is the error code reported to the OnError handler when the
// retry ceiling is exceeded.
const MaxRetriesCode = "MAX_RETRIES"

const maxRetriesMessage = "Maximum reconnection attempts reached"

// StatusError is returned for a non-2xx response from the stream endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("stream endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("stream endpoint returned status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}
