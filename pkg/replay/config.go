package replay

import "time"

// Config is the replay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string

	// Dir holds one <session-id>.sse fixture per session. Each fixture is
	// sent verbatim, one line at a time.
	Dir string

	// LineDelay is the pause before each replayed line.
	LineDelay time.Duration

	// FailFirst makes the first FailFirst requests for each session fail with
	// 503 Service Unavailable.
	FailFirst int

	// CutAfter, when positive, drops the connection after CutAfter lines on
	// the first successful request for each session, without sending the
	// rest of the fixture.
	CutAfter int

	// Follow keeps a response open after the last fixture line and streams
	// lines appended to the fixture file, until a "data: [DONE]" line is
	// written. It lets a fixture be produced live, e.g. by tee-ing a real
	// backend into it.
	Follow bool

	// KeepAlive is how often a followed response that has nothing new to
	// send writes a ": ping" comment line. A failed ping is how a client
	// disconnect is noticed. Zero uses DefaultKeepAlive.
	KeepAlive time.Duration
}

// DefaultKeepAlive is the follow-mode ping interval when none is configured.
const DefaultKeepAlive = 15 * time.Second

func (c Config) keepAlive() time.Duration {
	if c.KeepAlive <= 0 {
		return DefaultKeepAlive
	}
	return c.KeepAlive
}
