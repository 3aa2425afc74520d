// Package stream is the agent stream client. It opens the per-session event
// stream, decodes it into typed events, dispatches them in order, and
// reconnects with bounded exponential backoff until the stream completes, the
// retry ceiling is hit, or the caller cancels.
//
// A Client is built once per process and shared; each Subscribe call starts
// one Subscription driven by its own goroutine:
//
//	c, err := stream.New(cfg, logger)
//	...
//	defer c.Close()
//
//	sub, err := c.Subscribe(ctx, sessionID, dispatch.Handlers{
//		OnToken: func(text string) { fmt.Print(text) },
//		OnDone:  func() { fmt.Println() },
//	})
//	...
//	defer sub.Cancel()
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/agentstream/pkg/backoff"
	"github.com/papercomputeco/agentstream/pkg/dispatch"
	"github.com/papercomputeco/agentstream/pkg/header"
)

const (
	streamPathPrefix = "/agent/stream/"

	defaultResponseHeaderTimeout = 30 * time.Second
)

// Config is the stream client configuration.
type Config struct {
	// BaseURL is the backend base URL (e.g., "http://localhost:8000/api").
	BaseURL string

	// User is the identity sent with every request. When empty, a
	// development identity is substituted unless Environment is
	// "production".
	User string

	// Environment is the deployment environment name.
	Environment string

	// Policy is the reconnect backoff policy.
	Policy backoff.Policy

	// MaxLineBytes bounds a single stream line. Zero uses the sse default.
	MaxLineBytes int

	// HTTPClient overrides the client used for stream requests. It must not
	// set a total Timeout, since streams are long-lived.
	HTTPClient *http.Client
}

// Client owns the shared transport and tracks every live Subscription so
// they can be torn down together.
type Client struct {
	config     Config
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
	wg     sync.WaitGroup
}

// New creates a new Client. It returns an error if BaseURL is not an absolute
// http(s) URL.
func New(config Config, logger *slog.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}

	u, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https, got %q", config.BaseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL has no host: %q", config.BaseURL)
	}

	if config.Policy.BaseDelay <= 0 {
		config.Policy.BaseDelay = backoff.DefaultPolicy().BaseDelay
	}
	if config.Policy.MaxAttempts < 0 {
		config.Policy.MaxAttempts = 0
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = defaultResponseHeaderTimeout
		httpClient = &http.Client{Transport: transport}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config:     config,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		subs:       make(map[*Subscription]struct{}),
	}, nil
}

// SubscribeOption configures a single Subscription.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	user     string
	observer StateObserver
	tee      io.Writer
}

// WithUser overrides the configured identity for one subscription.
func WithUser(user string) SubscribeOption {
	return func(o *subscribeOptions) {
		o.user = user
	}
}

// WithStateObserver registers a callback for every state transition.
func WithStateObserver(fn StateObserver) SubscribeOption {
	return func(o *subscribeOptions) {
		o.observer = fn
	}
}

// WithRawTee mirrors the raw bytes of every transport attempt to w.
func WithRawTee(w io.Writer) SubscribeOption {
	return func(o *subscribeOptions) {
		o.tee = w
	}
}

// Subscribe starts streaming the given session. Events are dispatched to h
// until the stream completes, the retry ceiling is hit, ctx is cancelled, or
// the returned Subscription is cancelled.
func (c *Client) Subscribe(ctx context.Context, sessionID string, h dispatch.Handlers, opts ...SubscribeOption) (*Subscription, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}

	o := &subscribeOptions{user: c.config.User}
	for _, opt := range opts {
		opt(o)
	}

	session := Session{
		ID:             sessionID,
		User:           header.Identity(o.user, c.config.Environment),
		SubscriptionID: uuid.NewString(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}

	sub := newSubscription(ctx, c, session, h, o)
	c.subs[sub] = struct{}{}
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		defer c.forget(sub)
		sub.run()
	}()

	return sub, nil
}

// Close cancels every live subscription and waits for their goroutines to
// exit. Close is idempotent. It must not be called from inside a handler.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	subs := make([]*Subscription, 0, len(c.subs))
	for sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	c.wg.Wait()

	return nil
}

// Active returns the number of subscriptions that have not yet closed.
func (c *Client) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Client) forget(sub *Subscription) {
	c.mu.Lock()
	delete(c.subs, sub)
	c.mu.Unlock()
}

// streamURL returns the stream endpoint of a session.
func (c *Client) streamURL(sessionID string) string {
	return c.baseURL + streamPathPrefix + url.PathEscape(sessionID)
}
