package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/agentstream/pkg/backoff"
	"github.com/papercomputeco/agentstream/pkg/dispatch"
	"github.com/papercomputeco/agentstream/pkg/event"
	"github.com/papercomputeco/agentstream/pkg/header"
	"github.com/papercomputeco/agentstream/pkg/sse"
)

// maxErrorBody bounds how much of a non-2xx response body is kept for logs.
const maxErrorBody = 512

// Session identifies one logical subscription to an agent run. It outlives
// any single transport attempt.
type Session struct {
	// ID is the opaque backend session id.
	ID string

	// User is the resolved identity attached to requests, possibly empty.
	User string

	// SubscriptionID is a client-generated id used to correlate logs across
	// transport attempts.
	SubscriptionID string
}

// Subscription is one running session stream. All retry state, the current
// response body and the state machine are owned by its goroutine; the only
// state touched from outside is the cancellation token.
type Subscription struct {
	client   *Client
	session  Session
	handlers dispatch.Handlers
	observer StateObserver
	tee      io.Writer
	logger   *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
	once      sync.Once

	state  State
	retry  backoff.State
	reason CloseReason
	done   chan struct{}
}

func newSubscription(parent context.Context, c *Client, session Session, h dispatch.Handlers, o *subscribeOptions) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	return &Subscription{
		client:   c,
		session:  session,
		handlers: h,
		observer: o.observer,
		tee:      o.tee,
		logger: c.logger.With(
			"session_id", session.ID,
			"subscription_id", session.SubscriptionID,
		),
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
		done:   make(chan struct{}),
	}
}

// Cancel is the subscription disposer. It aborts any in-flight request and
// stops a pending reconnect timer. Cancel never blocks, so it is safe to call
// from inside a handler, more than once, or after the subscription has
// finished.
//
// Called from a handler, Cancel guarantees no further handler runs. Called
// from another goroutine, it may race with at most one event whose delivery
// was already underway, and that handler can still run after Cancel returns.
// Callers that need a hard boundary wait on Done, after which no handler
// runs.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.cancelled.Store(true)
		s.cancel()
	})
}

// Done is closed once the subscription goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the subscription has exited and returns why it closed.
func (s *Subscription) Wait() CloseReason {
	<-s.done
	return s.reason
}

// Reason returns why the subscription closed, or ReasonNone while it is
// still running.
func (s *Subscription) Reason() CloseReason {
	select {
	case <-s.done:
		return s.reason
	default:
		return ReasonNone
	}
}

// Session returns the session this subscription streams.
func (s *Subscription) Session() Session {
	return s.session
}

func (s *Subscription) isCancelled() bool {
	return s.cancelled.Load() || s.ctx.Err() != nil
}

// run drives the state machine until a terminal state is reached.
func (s *Subscription) run() {
	defer close(s.done)
	defer s.cancel()

	policy := s.client.config.Policy

	for {
		s.transition(Transition{To: StateConnecting})

		err := s.attempt()
		if err == nil {
			s.finish(ReasonDone, nil)
			return
		}

		if s.isCancelled() {
			s.finish(ReasonCancelled, nil)
			return
		}

		delay, berr := s.retry.Next(policy)
		if berr != nil {
			s.logger.Error("giving up on stream",
				"attempt", s.retry.Attempt,
				"max_attempts", policy.MaxAttempts,
				"error", err,
			)
			s.transition(Transition{To: StateReconnecting, Err: err, Final: true})
			if !s.isCancelled() {
				dispatch.Dispatch(event.Error{Code: MaxRetriesCode, Message: maxRetriesMessage}, s.handlers)
			}
			s.finish(ReasonFatal, fmt.Errorf("%w: %w", berr, err))
			return
		}

		s.logger.Warn("stream attempt failed, reconnecting",
			"attempt", s.retry.Attempt,
			"delay", delay,
			"error", err,
		)
		s.transition(Transition{To: StateReconnecting, Delay: delay, Err: err})

		if !s.sleep(delay) {
			s.finish(ReasonCancelled, nil)
			return
		}
	}
}

// attempt performs one transport attempt. It returns nil only when the
// terminal sentinel was dispatched; every other exit is an error, including
// cancellation.
func (s *Subscription) attempt() error {
	if s.isCancelled() {
		return context.Canceled
	}

	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, s.client.streamURL(s.session.ID), nil)
	if err != nil {
		return fmt.Errorf("creating stream request: %w", err)
	}
	header.SetStreamRequestHeaders(req, s.session.User)

	s.logger.Debug("opening stream", "url", req.URL.String(), "attempt", s.retry.Attempt)

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	live := &liveReader{src: resp.Body, onLive: s.onLive}

	opts := []sse.LineReaderOption{sse.WithMaxLineBytes(s.client.config.MaxLineBytes)}
	if s.tee != nil {
		opts = append(opts, sse.WithTee(s.tee))
	}
	dec := sse.NewDecoder(live, opts...)

	for {
		if s.isCancelled() {
			return context.Canceled
		}

		msg, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrStreamEnded
			}
			return fmt.Errorf("reading stream: %w", err)
		}

		ev, ok := event.FromMessage(msg)
		if !ok {
			s.logger.Debug("ignoring unknown event kind", "kind", msg.Kind)
			continue
		}

		// A handler may have cancelled while the read was blocked.
		if s.isCancelled() {
			return context.Canceled
		}

		dispatch.Dispatch(ev, s.handlers)

		if _, done := ev.(event.Done); done {
			return nil
		}
	}
}

// onLive runs once per attempt, on the first bytes read from the body.
func (s *Subscription) onLive() {
	s.retry.Reset()
	s.transition(Transition{To: StateStreaming})
	s.logger.Debug("stream live")
}

// sleep waits for d unless the subscription is cancelled first. It reports
// whether the wait completed.
func (s *Subscription) sleep(d time.Duration) bool {
	if s.isCancelled() {
		return false
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return !s.isCancelled()
	}
}

func (s *Subscription) finish(reason CloseReason, err error) {
	s.reason = reason
	s.transition(Transition{To: StateClosed, Reason: reason, Err: err})
	s.logger.Debug("stream closed", "reason", reason.String())
}

func (s *Subscription) transition(t Transition) {
	t.From = s.state
	t.Attempt = s.retry.Attempt
	s.state = t.To
	if s.observer != nil {
		s.observer(t)
	}
}

// liveReader calls onLive the first time a Read returns data.
type liveReader struct {
	src    io.Reader
	onLive func()
	seen   bool
}

func (r *liveReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if n > 0 && !r.seen {
		r.seen = true
		r.onLive()
	}
	return n, err
}
