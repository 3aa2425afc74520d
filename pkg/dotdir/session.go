package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

const sessionFile = "session.json"

// SessionState is the last session watched from this directory that has not
// completed yet.
type SessionState struct {
	// SessionID is the backend session id.
	SessionID string `json:"session_id"`

	// BaseURL is the backend the session was watched on.
	BaseURL string `json:"base_url"`

	// WatchedAt is when the watch started.
	WatchedAt time.Time `json:"watched_at"`
}

// LoadSessionState reads .agentstream/session.json. It returns nil, nil when
// no session is remembered.
func (m *Manager) LoadSessionState(overrideDir string) (*SessionState, error) {
	path, err := m.file(overrideDir, sessionFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session state: %w", err)
	}

	state := &SessionState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing session state: %w", err)
	}
	if state.SessionID == "" {
		return nil, errors.New("session state has no session id")
	}

	return state, nil
}

// SaveSessionState persists state to .agentstream/session.json.
func (m *Manager) SaveSessionState(state *SessionState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil session state")
	}

	path, err := m.file(overrideDir, sessionFile)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session state: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}

	return nil
}

// ClearSessionState forgets the remembered session, typically once it has
// completed. Clearing when nothing is remembered is not an error.
func (m *Manager) ClearSessionState(overrideDir string) error {
	path, err := m.file(overrideDir, sessionFile)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing session state: %w", err)
	}

	return nil
}
