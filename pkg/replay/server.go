// Package replay is a development backend that speaks the agent stream wire
// format. It replays recorded sessions from fixture files, optionally pacing
// lines and injecting failures so clients can exercise their reconnect logic.
package replay

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/valyala/fasthttp"

	"github.com/papercomputeco/agentstream/pkg/header"
)

// errCut ends a response body mid-stream, which drops the connection without
// a terminating chunk.
var errCut = errors.New("replay: connection cut")

// ErrorResponse is the JSON body of a non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server replays fixture sessions over GET /agent/stream/:sessionId.
type Server struct {
	config Config
	logger *slog.Logger
	app    *fiber.App

	mu       sync.Mutex
	requests map[string]int

	following atomic.Int64

	done     chan struct{}
	doneOnce sync.Once
}

// NewServer creates a new replay Server.
func NewServer(config Config, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	s := &Server{
		config:   config,
		logger:   logger,
		app:      app,
		requests: make(map[string]int),
		done:     make(chan struct{}),
	}

	app.Get("/ping", s.handlePing)
	app.Get("/sessions", s.handleListSessions)
	app.Get("/agent/stream/:sessionId", s.handleStream)

	return s
}

// Run starts the replay server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting replay server",
		"listen", s.config.ListenAddr,
		"dir", s.config.Dir,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the replay server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting replay server",
		"listen", listener.Addr().String(),
		"dir", s.config.Dir,
	)
	return s.app.Listener(listener)
}

// Shutdown aborts every in-flight replay and shuts the server down.
func (s *Server) Shutdown() error {
	s.doneOnce.Do(func() { close(s.done) })
	return s.app.Shutdown()
}

// Requests returns how many stream requests a session has received.
func (s *Server) Requests(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[sessionID]
}

// Following returns how many responses are currently tailing a fixture.
func (s *Server) Following() int {
	return int(s.following.Load())
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.SendString("pong")
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	ids, err := ListFixtures(s.config.Dir)
	if err != nil {
		s.logger.Error("listing fixtures", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "could not list fixtures"})
	}
	return c.JSON(ids)
}

func (s *Server) handleStream(c *fiber.Ctx) error {
	id, err := sessionID(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	n := s.countRequest(id)
	log := s.logger.With(
		"session_id", id,
		"request", n,
		"user", header.CurrentUser(c),
	)

	if n <= s.config.FailFirst {
		log.Info("injecting failure", "status", fiber.StatusServiceUnavailable)
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "injected failure"})
	}

	job := replayJob{path: fixturePath(s.config.Dir, id), follow: s.config.Follow}
	if job.follow {
		job.lines, job.offset, err = loadCompleteLines(s.config.Dir, id)
	} else {
		job.lines, err = loadFixture(s.config.Dir, id)
	}
	if err != nil {
		if errors.Is(err, ErrFixtureNotFound) {
			log.Warn("no fixture for session")
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
		}
		log.Error("loading fixture", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "could not load fixture"})
	}

	if s.config.CutAfter > 0 && n == s.config.FailFirst+1 {
		job.cut = s.config.CutAfter
	}

	log.Info("replaying session", "lines", len(job.lines), "cut_after", job.cut, "follow", job.follow)

	header.SetStreamResponseHeaders(c)
	s.stream(c.Context(), job, log)

	return nil
}

// replayJob is one response body to produce.
type replayJob struct {
	lines [][]byte
	cut   int

	// follow tails path from offset once lines are sent, unless they already
	// ended the stream.
	follow bool
	path   string
	offset int64
}

// stream sets a pipe as the response body and feeds it from a goroutine.
// pw.Write blocks until fasthttp has consumed the previous line, so every
// line is flushed to the client as its own chunk.
func (s *Server) stream(rc *fasthttp.RequestCtx, job replayJob, log *slog.Logger) {
	pr, pw := io.Pipe()
	go s.writeLines(pw, job, log)

	// Unknown size (-1) selects chunked transfer encoding.
	rc.Response.SetBodyStream(pr, -1)
}

func (s *Server) writeLines(pw *io.PipeWriter, job replayJob, log *slog.Logger) {
	for i, line := range job.lines {
		if job.cut > 0 && i == job.cut {
			log.Info("cutting connection", "after_lines", job.cut)
			pw.CloseWithError(errCut)
			return
		}

		if !s.pause() {
			pw.CloseWithError(errCut)
			return
		}

		if _, err := pw.Write(append(line[:len(line):len(line)], '\n')); err != nil {
			log.Debug("client went away", "line", i, "error", err)
			return
		}
	}

	if job.follow && (len(job.lines) == 0 || !isDoneLine(job.lines[len(job.lines)-1])) {
		s.tail(pw, job.path, job.offset, log)
		return
	}

	pw.Close()
	log.Debug("replay complete")
}

// pause waits LineDelay. It returns false when the server is shutting down.
func (s *Server) pause() bool {
	if s.config.LineDelay <= 0 {
		select {
		case <-s.done:
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(s.config.LineDelay)
	defer timer.Stop()

	select {
	case <-s.done:
		return false
	case <-timer.C:
		return true
	}
}

func (s *Server) countRequest(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[id]++
	return s.requests[id]
}
