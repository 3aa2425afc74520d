package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	dataPrefix = "data: "

	// DoneSentinel is the literal payload that ends a logical stream.
	DoneSentinel = "[DONE]"
)

// envelope is the JSON shape carried by every "data:" line.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseLine parses a single trimmed, non-empty line.
//
// It returns ok=false for lines that do not start with "data: "; those are
// ignored by policy and are not an error. "data: [DONE]" yields the terminal
// sentinel. Any other data line must hold a JSON object of the form
// {"type": string, "data": object}; anything else is ErrMalformedEvent.
func ParseLine(line string) (Message, bool, error) {
	rest, found := strings.CutPrefix(line, dataPrefix)
	if !found {
		return Message{}, false, nil
	}

	rest = strings.TrimSpace(rest)
	if rest == DoneSentinel {
		return Message{Done: true}, true, nil
	}

	var env envelope
	if err := json.Unmarshal([]byte(rest), &env); err != nil {
		return Message{}, false, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	payload := map[string]any{}
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return Message{}, false, fmt.Errorf("%w: data for %q is not an object: %w", ErrMalformedEvent, env.Type, err)
		}
	}

	return Message{Kind: env.Type, Payload: payload}, true, nil
}
