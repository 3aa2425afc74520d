package replay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// pingLine is an SSE comment; clients skip it.
var pingLine = []byte(": ping\n")

// tail streams lines appended to the fixture at path, starting at offset. It
// returns once a done sentinel has been written, the client goes away, the
// server shuts down, or the fixture can no longer be read. Only complete lines
// are sent; a partially written line waits for its newline.
func (s *Server) tail(pw *io.PipeWriter, path string, offset int64, log *slog.Logger) {
	s.following.Add(1)
	defer s.following.Add(-1)

	err := s.follow(pw, path, offset, log)
	switch {
	case err == nil:
		pw.Close()
		log.Debug("followed fixture to completion")
	case errors.Is(err, io.ErrClosedPipe):
		log.Debug("client went away while following")
	default:
		log.Warn("stopped following fixture", "error", err)
		pw.CloseWithError(err)
	}
}

func (s *Server) follow(pw *io.PipeWriter, path string, offset int64, log *slog.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening fixture: %w", err)
	}
	defer file.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fixture watcher: %w", err)
	}
	defer watcher.Close()

	// Watch before seeking so nothing appended in between is missed.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching fixture dir: %w", err)
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seeking fixture: %w", err)
	}

	log.Debug("following fixture", "path", path, "offset", offset)

	var carry []byte
	buf := make([]byte, 4096)

	// drain sends every complete line available and reports whether the
	// done sentinel was among them.
	drain := func() (bool, error) {
		for {
			n, err := file.Read(buf)
			if n > 0 {
				carry = append(carry, buf[:n]...)
				for {
					i := bytes.IndexByte(carry, '\n')
					if i < 0 {
						break
					}
					line := carry[:i+1]
					if !s.pause() {
						return false, errCut
					}
					if _, werr := pw.Write(line); werr != nil {
						return false, werr
					}
					carry = carry[i+1:]
					if isDoneLine(line) {
						return true, nil
					}
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return false, nil
				}
				return false, err
			}
		}
	}

	// Writes only happen when the fixture changes, so an idle follower pings
	// to find out the client has gone.
	ping := time.NewTicker(s.config.keepAlive())
	defer ping.Stop()

	for {
		done, err := drain()
		if err != nil || done {
			return err
		}

		select {
		case <-s.done:
			return errCut
		case <-ping.C:
			if _, err := pw.Write(pingLine); err != nil {
				return err
			}
		case ev, ok := <-watcher.Events:
			if !ok {
				return errCut
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errCut
			}
			return fmt.Errorf("fixture watcher: %w", err)
		}
	}
}
