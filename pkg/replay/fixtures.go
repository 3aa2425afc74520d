package replay

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/papercomputeco/agentstream/pkg/sse"
)

const fixtureExt = ".sse"

var (
	// ErrFixtureNotFound is returned when a session has no fixture file.
	ErrFixtureNotFound = errors.New("fixture not found")

	// ErrInvalidSessionID is returned for session ids that cannot name a
	// fixture file.
	ErrInvalidSessionID = errors.New("invalid session id")
)

// sessionID unescapes a raw path parameter and checks it names a single file
// inside the fixture directory.
func sessionID(raw string) (string, error) {
	id, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSessionID, err)
	}
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return id, nil
}

func fixturePath(dir, id string) string {
	return filepath.Join(dir, id+fixtureExt)
}

func readFixture(dir, id string) ([]byte, error) {
	data, err := os.ReadFile(fixturePath(dir, id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFixtureNotFound, id)
		}
		return nil, fmt.Errorf("reading fixture %s: %w", id, err)
	}
	return data, nil
}

// loadFixture reads the fixture of a session and splits it into lines. A
// trailing newline does not produce an extra empty line.
func loadFixture(dir, id string) ([][]byte, error) {
	data, err := readFixture(dir, id)
	if err != nil {
		return nil, err
	}

	data = bytes.TrimSuffix(data, []byte("\n"))
	if len(data) == 0 {
		return nil, nil
	}
	return bytes.Split(data, []byte("\n")), nil
}

// loadCompleteLines is loadFixture for a fixture that may still be growing:
// it returns only newline-terminated lines, plus the offset just past the
// last one, where tailing resumes.
func loadCompleteLines(dir, id string) ([][]byte, int64, error) {
	data, err := readFixture(dir, id)
	if err != nil {
		return nil, 0, err
	}

	end := bytes.LastIndexByte(data, '\n') + 1
	if end == 0 {
		return nil, 0, nil
	}
	return bytes.Split(data[:end-1], []byte("\n")), int64(end), nil
}

// isDoneLine reports whether a fixture line is the terminal sentinel.
func isDoneLine(line []byte) bool {
	return string(bytes.TrimSpace(line)) == "data: "+sse.DoneSentinel
}

// ListFixtures returns the session ids that have a fixture in dir, sorted.
func ListFixtures(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading fixture dir: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fixtureExt {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), fixtureExt))
	}
	sort.Strings(ids)

	return ids, nil
}
