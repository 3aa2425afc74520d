// Package config loads, persists and layers agentstream configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/agentstream/pkg/backoff"
	"github.com/papercomputeco/agentstream/pkg/dotdir"
	"github.com/papercomputeco/agentstream/pkg/stream"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

// Configer reads and writes config.toml in a single .agentstream directory.
type Configer struct {
	path string
}

// NewConfiger resolves the .agentstream directory holding config.toml. An
// empty override follows dotdir.Manager.Target precedence.
func NewConfiger(override string) (*Configer, error) {
	dir, err := dotdir.NewManager().Target(override)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	return &Configer{path: filepath.Join(dir, configFile)}, nil
}

// ValidConfigKeys returns all supported configuration key names in TOML
// section order.
func ValidConfigKeys() []string {
	ordered := []string{
		"stream.base_url",
		"stream.user",
		"stream.environment",
		"stream.max_attempts",
		"stream.base_delay",
		"stream.max_line_bytes",
		"replay.listen",
		"replay.dir",
		"replay.line_delay",
		"log.json",
		"log.pretty",
		"log.file",
	}

	result := make([]string, 0, len(configKeys))
	seen := make(map[string]bool, len(configKeys))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
			seen[k] = true
		}
	}
	for k := range configKeys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

// GetTarget returns the path of config.toml when the file exists, and ""
// while only defaults are in effect.
func (c *Configer) GetTarget() string {
	if _, err := os.Stat(c.path); err != nil {
		return ""
	}
	return c.path
}

// LoadConfig loads config.toml from the target .agentstream/ directory.
// A missing file yields NewDefaultConfig(); fields left unset in the file are
// filled from the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}

	if cfg.Stream.BaseURL == "" {
		cfg.Stream.BaseURL = defaults.Stream.BaseURL
	}
	if cfg.Stream.Environment == "" {
		cfg.Stream.Environment = defaults.Stream.Environment
	}
	if cfg.Stream.MaxAttempts == 0 {
		cfg.Stream.MaxAttempts = defaults.Stream.MaxAttempts
	}
	if cfg.Stream.BaseDelay == "" {
		cfg.Stream.BaseDelay = defaults.Stream.BaseDelay
	}
	if cfg.Stream.MaxLineBytes == 0 {
		cfg.Stream.MaxLineBytes = defaults.Stream.MaxLineBytes
	}

	if cfg.Replay.Listen == "" {
		cfg.Replay.Listen = defaults.Replay.Listen
	}
	if cfg.Replay.Dir == "" {
		cfg.Replay.Dir = defaults.Replay.Dir
	}
	if cfg.Replay.LineDelay == "" {
		cfg.Replay.LineDelay = defaults.Replay.LineDelay
	}
}

// SaveConfig persists the configuration to config.toml in the target .agentstream/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}

// ClientConfig converts the stream section into a stream.Config.
func (s StreamConfig) ClientConfig() (stream.Config, error) {
	delay := backoff.DefaultPolicy().BaseDelay
	if s.BaseDelay != "" {
		d, err := time.ParseDuration(s.BaseDelay)
		if err != nil {
			return stream.Config{}, fmt.Errorf("parsing stream.base_delay: %w", err)
		}
		delay = d
	}

	return stream.Config{
		BaseURL:     s.BaseURL,
		User:        s.User,
		Environment: s.Environment,
		Policy: backoff.Policy{
			BaseDelay:   delay,
			MaxAttempts: s.MaxAttempts,
		},
		MaxLineBytes: s.MaxLineBytes,
	}, nil
}
