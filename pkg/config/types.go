package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cast"
)

// Config represents the persistent agentstream configuration stored as
// config.toml in the .agentstream/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version int          `toml:"version"`
	Stream  StreamConfig `toml:"stream"`
	Replay  ReplayConfig `toml:"replay"`
	Log     LogConfig    `toml:"log"`
}

// StreamConfig holds settings for the stream client used by "agentstream watch".
// Durations are Go duration strings (e.g. "1s", "250ms").
type StreamConfig struct {
	BaseURL      string `toml:"base_url,omitempty"`
	User         string `toml:"user,omitempty"`
	Environment  string `toml:"environment,omitempty"`
	MaxAttempts  int    `toml:"max_attempts,omitempty"`
	BaseDelay    string `toml:"base_delay,omitempty"`
	MaxLineBytes int    `toml:"max_line_bytes,omitempty"`
}

// ReplayConfig holds settings for the fixture replay server.
type ReplayConfig struct {
	Listen    string `toml:"listen,omitempty"`
	Dir       string `toml:"dir,omitempty"`
	LineDelay string `toml:"line_delay,omitempty"`
}

// LogConfig selects the console log handler. When neither JSON nor Pretty is
// set the CLI picks the pretty handler for a terminal and plain text
// otherwise. File, when set, receives a JSON copy of every record.
type LogConfig struct {
	JSON   bool   `toml:"json"`
	Pretty bool   `toml:"pretty"`
	File   string `toml:"file,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"stream.base_url": {
		get: func(c *Config) string { return c.Stream.BaseURL },
		set: func(c *Config, v string) error { c.Stream.BaseURL = v; return nil },
	},
	"stream.user": {
		get: func(c *Config) string { return c.Stream.User },
		set: func(c *Config, v string) error { c.Stream.User = v; return nil },
	},
	"stream.environment": {
		get: func(c *Config) string { return c.Stream.Environment },
		set: func(c *Config, v string) error { c.Stream.Environment = v; return nil },
	},
	"stream.max_attempts": {
		get: func(c *Config) string { return strconv.Itoa(c.Stream.MaxAttempts) },
		set: func(c *Config, v string) error {
			n, err := nonNegativeInt("stream.max_attempts", v)
			if err != nil {
				return err
			}
			c.Stream.MaxAttempts = n
			return nil
		},
	},
	"stream.base_delay": {
		get: func(c *Config) string { return c.Stream.BaseDelay },
		set: func(c *Config, v string) error {
			if err := validDuration("stream.base_delay", v); err != nil {
				return err
			}
			c.Stream.BaseDelay = v
			return nil
		},
	},
	"stream.max_line_bytes": {
		get: func(c *Config) string {
			if c.Stream.MaxLineBytes == 0 {
				return ""
			}
			return strconv.Itoa(c.Stream.MaxLineBytes)
		},
		set: func(c *Config, v string) error {
			n, err := nonNegativeInt("stream.max_line_bytes", v)
			if err != nil {
				return err
			}
			c.Stream.MaxLineBytes = n
			return nil
		},
	},
	"replay.listen": {
		get: func(c *Config) string { return c.Replay.Listen },
		set: func(c *Config, v string) error { c.Replay.Listen = v; return nil },
	},
	"replay.dir": {
		get: func(c *Config) string { return c.Replay.Dir },
		set: func(c *Config, v string) error { c.Replay.Dir = v; return nil },
	},
	"replay.line_delay": {
		get: func(c *Config) string { return c.Replay.LineDelay },
		set: func(c *Config, v string) error {
			if err := validDuration("replay.line_delay", v); err != nil {
				return err
			}
			c.Replay.LineDelay = v
			return nil
		},
	},
	"log.json": {
		get: func(c *Config) string { return strconv.FormatBool(c.Log.JSON) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for log.json: %w", err)
			}
			c.Log.JSON = b
			return nil
		},
	},
	"log.pretty": {
		get: func(c *Config) string { return strconv.FormatBool(c.Log.Pretty) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for log.pretty: %w", err)
			}
			c.Log.Pretty = b
			return nil
		},
	},
	"log.file": {
		get: func(c *Config) string { return c.Log.File },
		set: func(c *Config, v string) error { c.Log.File = v; return nil },
	},
}

func nonNegativeInt(key, v string) (int, error) {
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid value for %s: must not be negative", key)
	}
	return n, nil
}

func validDuration(key, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if d < 0 {
		return fmt.Errorf("invalid value for %s: must not be negative", key)
	}
	return nil
}
