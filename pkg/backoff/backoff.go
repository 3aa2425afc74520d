// Package backoff computes reconnect delays for the stream client.
package backoff

import (
	"errors"
	"time"
)

const (
	defaultBaseDelay   = time.Second
	defaultMaxAttempts = 5

	// maxShift caps the exponent so the delay cannot overflow time.Duration.
	maxShift = 30
)

// ErrExhausted is returned once the retry ceiling has been passed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy is an exponential backoff policy with a retry ceiling.
type Policy struct {
	// BaseDelay is the delay before the first retry. Each further consecutive
	// retry doubles it.
	BaseDelay time.Duration

	// MaxAttempts is the number of retries allowed after consecutive
	// failures. The total number of attempts is MaxAttempts + 1.
	MaxAttempts int
}

// DefaultPolicy returns a 1s base delay with 5 retries.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   defaultBaseDelay,
		MaxAttempts: defaultMaxAttempts,
	}
}

// Delay returns BaseDelay × 2^attempt for a 0-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxShift {
		attempt = maxShift
	}
	return p.BaseDelay * time.Duration(1<<attempt)
}

// State is the mutable retry counter for a single session.
type State struct {
	Attempt int
}

// Next records one more failure and returns the delay to wait before the
// next attempt. It returns ErrExhausted once Attempt exceeds MaxAttempts.
func (s *State) Next(p Policy) (time.Duration, error) {
	delay := p.Delay(s.Attempt)
	s.Attempt++
	if s.Attempt > p.MaxAttempts {
		return 0, ErrExhausted
	}
	return delay, nil
}

// Reset clears the counter after a healthy connection.
func (s *State) Reset() {
	s.Attempt = 0
}
