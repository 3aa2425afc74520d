package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/agentstream/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "AGENTSTREAM"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the AGENTSTREAM_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (AGENTSTREAM_STREAM_BASE_URL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// EnvVar returns the environment variable that overrides a dotted config
// key, e.g. AGENTSTREAM_STREAM_BASE_URL for stream.base_url.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Explicit reports whether key was set in config.toml or the environment,
// as opposed to falling back to its default. Flags are checked by callers
// through cobra, since viper reports defaults as set.
func Explicit(v *viper.Viper, key string) bool {
	if v.InConfig(key) {
		return true
	}
	_, ok := os.LookupEnv(EnvVar(key))
	return ok
}

// StreamFromViper reads the resolved stream section out of v.
func StreamFromViper(v *viper.Viper) StreamConfig {
	return StreamConfig{
		BaseURL:      v.GetString("stream.base_url"),
		User:         v.GetString("stream.user"),
		Environment:  v.GetString("stream.environment"),
		MaxAttempts:  v.GetInt("stream.max_attempts"),
		BaseDelay:    v.GetDuration("stream.base_delay").String(),
		MaxLineBytes: v.GetInt("stream.max_line_bytes"),
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Stream
	v.SetDefault("stream.base_url", d.Stream.BaseURL)
	v.SetDefault("stream.user", d.Stream.User)
	v.SetDefault("stream.environment", d.Stream.Environment)
	v.SetDefault("stream.max_attempts", d.Stream.MaxAttempts)
	v.SetDefault("stream.base_delay", d.Stream.BaseDelay)
	v.SetDefault("stream.max_line_bytes", d.Stream.MaxLineBytes)

	// Replay
	v.SetDefault("replay.listen", d.Replay.Listen)
	v.SetDefault("replay.dir", d.Replay.Dir)
	v.SetDefault("replay.line_delay", d.Replay.LineDelay)

	// Log
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.pretty", d.Log.Pretty)
	v.SetDefault("log.file", d.Log.File)
}
