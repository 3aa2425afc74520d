// Package dotdir manages the .agentstream/ and ~/.agentstream directories.
//
// Besides config.toml, the directory holds the last session that did not
// complete, so that "agentstream watch" can resume it without arguments.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const dirName = ".agentstream"

// Manager resolves the agentstream directory and the state files kept in it.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path of the .agentstream directory to use and
// creates it when missing. An override wins; otherwise ./.agentstream is used
// when it already exists, and ~/.agentstream when it does not.
func (m *Manager) Target(overrideDir string) (string, error) {
	dir, err := m.resolve(overrideDir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating agentstream directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

func (m *Manager) resolve(overrideDir string) (string, error) {
	if overrideDir != "" {
		return overrideDir, nil
	}

	if dir, ok := localDir(); ok {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// file returns the path of a named file inside the target directory.
func (m *Manager) file(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// localDir reports the ./.agentstream directory when it exists.
func localDir() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}

	dir := filepath.Join(cwd, dirName)
	info, err := os.Stat(dir)
	return dir, err == nil && info.IsDir()
}
