// Package header holds the HTTP headers exchanged on the agent stream
// transport, for both legs:
//
//	stream client --GET /agent/stream/:id--> backend (or replay server)
//
// The client sets the request headers, the server side sets the streaming
// response headers.
package header

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

const (
	// CurrentUserHeader carries the identity of the subscribing user.
	CurrentUserHeader = "Sf-Context-Current-User"

	// EventStreamContentType is the media type of the stream body.
	EventStreamContentType = "text/event-stream"

	// DevelopmentUser is substituted for a missing identity outside
	// production.
	DevelopmentUser = "dev-user"

	// EnvProduction is the environment name in which no development identity
	// is substituted.
	EnvProduction = "production"
)

// streamResponse is the set of response headers written by a stream server.
var streamResponse = map[string]string{
	fiber.HeaderContentType:  EventStreamContentType,
	fiber.HeaderCacheControl: "no-cache",
	fiber.HeaderConnection:   "keep-alive",

	// Disables response buffering in nginx-style reverse proxies so every
	// line reaches the client as soon as it is written.
	"X-Accel-Buffering": "no",
}

// Identity resolves the user to attach to outgoing stream requests. An
// explicit user always wins; otherwise a fixed development identity is used
// in every environment except production.
func Identity(user, environment string) string {
	if user != "" {
		return user
	}
	if environment != EnvProduction {
		return DevelopmentUser
	}
	return ""
}

// SetStreamRequestHeaders sets the headers of an outgoing stream request.
// An empty user omits the identity header.
func SetStreamRequestHeaders(req *http.Request, user string) {
	req.Header.Set("Accept", EventStreamContentType)
	req.Header.Set("Cache-Control", "no-cache")
	if user != "" {
		req.Header.Set(CurrentUserHeader, user)
	}
}

// SetStreamResponseHeaders sets the headers of a streaming response on the
// Fiber context.
func SetStreamResponseHeaders(c *fiber.Ctx) {
	for k, v := range streamResponse {
		c.Set(k, v)
	}
}

// CurrentUser returns the identity header of an incoming stream request.
func CurrentUser(c *fiber.Ctx) string {
	return c.Get(CurrentUserHeader)
}
