package stream

import "time"

// State is a state of the per-session connection state machine.
//
//	Idle → Connecting → Streaming → Closed(Done) | Closed(Cancelled) | Reconnecting
//	Connecting → Closed(Cancelled) | Reconnecting
//	Reconnecting → Connecting | Closed(Fatal) | Closed(Cancelled)
//
// A failure with the retry ceiling already reached still passes through
// Reconnecting, with Final set, before Closed(Fatal).
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseReason says why a subscription reached StateClosed.
type CloseReason int

const (
	// ReasonNone is reported while the subscription is still running.
	ReasonNone CloseReason = iota

	// ReasonDone means the terminal sentinel was received.
	ReasonDone

	// ReasonCancelled means the disposer was called, the parent context was
	// cancelled, or the Client was closed.
	ReasonCancelled

	// ReasonFatal means the retry ceiling was exceeded.
	ReasonFatal
)

func (r CloseReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonDone:
		return "done"
	case ReasonCancelled:
		return "cancelled"
	case ReasonFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Transition describes one state change of a subscription.
type Transition struct {
	From State
	To   State

	// Attempt is the retry counter after the change.
	Attempt int

	// Delay is the wait scheduled before the next attempt. Set only when
	// entering StateReconnecting without Final.
	Delay time.Duration

	// Err is the failure that caused a move to StateReconnecting or
	// StateClosed with ReasonFatal.
	Err error

	// Final is set when entering StateReconnecting with no retries left. No
	// attempt is scheduled and StateClosed with ReasonFatal follows.
	Final bool

	// Reason is set when entering StateClosed.
	Reason CloseReason
}

// StateObserver receives every Transition of a subscription. It runs on the
// subscription goroutine and must not block.
type StateObserver func(Transition)
