// Package sse provides the client-side decoding pipeline for the agent event
// stream. It frames an arbitrary byte stream into complete lines, and parses
// "data: <json>" lines into messages.
//
// This package intentionally supports only the subset of Server-Sent Events
// used by the agent backend: one "data:" line per event, blank lines as
// separators, and a literal "data: [DONE]" terminal sentinel. Other SSE
// fields ("event:", "id:", "retry:") and comments are ignored.
package sse

import "errors"

var (
	// ErrMalformedEvent is returned when a "data:" line does not hold a
	// well-formed event envelope.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrLineTooLong is returned when the carry-over buffer grows beyond the
	// configured maximum line size without seeing a newline.
	ErrLineTooLong = errors.New("sse line too long")
)

// Message is a single parsed event envelope.
//
// A Message with Done set is the terminal sentinel and carries no kind or
// payload.
type Message struct {
	// Kind is the "type" field of the JSON envelope.
	Kind string

	// Payload is the "data" object of the JSON envelope. It is never nil for
	// a non-sentinel message.
	Payload map[string]any

	// Done marks the "[DONE]" terminal sentinel.
	Done bool
}
