package config

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline.
type Flag struct {
	// Name is the long flag name (e.g. "base-url").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "stream.base_url").
	ViperKey string

	// Description is the help text shown in --help output, before the name
	// of the matching environment variable.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling the Add*Flag helpers and
// BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagBaseURL      = "base-url"
	FlagUser         = "user"
	FlagEnvironment  = "environment"
	FlagMaxAttempts  = "max-attempts"
	FlagBaseDelay    = "base-delay"
	FlagMaxLineBytes = "max-line-bytes"

	FlagReplayListen    = "replay-listen"
	FlagReplayDir       = "replay-dir"
	FlagReplayLineDelay = "replay-line-delay"
)

// Flags is the registry shared by every agentstream command.
var Flags = FlagSet{
	FlagBaseURL:      {Name: "base-url", Shorthand: "b", ViperKey: "stream.base_url", Description: "Backend base URL"},
	FlagUser:         {Name: "user", Shorthand: "u", ViperKey: "stream.user", Description: "Identity sent in the current-user header"},
	FlagEnvironment:  {Name: "environment", Shorthand: "e", ViperKey: "stream.environment", Description: "Deployment environment (\"production\" disables the development identity)"},
	FlagMaxAttempts:  {Name: "max-attempts", ViperKey: "stream.max_attempts", Description: "Reconnect attempts before giving up"},
	FlagBaseDelay:    {Name: "base-delay", ViperKey: "stream.base_delay", Description: "Delay before the first reconnect, doubled each retry"},
	FlagMaxLineBytes: {Name: "max-line-bytes", ViperKey: "stream.max_line_bytes", Description: "Longest accepted stream line"},

	FlagReplayListen:    {Name: "listen", Shorthand: "l", ViperKey: "replay.listen", Description: "Address for the replay server to listen on"},
	FlagReplayDir:       {Name: "dir", ViperKey: "replay.dir", Description: "Directory of <session-id>.sse fixtures"},
	FlagReplayLineDelay: {Name: "line-delay", ViperKey: "replay.line_delay", Description: "Pause between replayed lines"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// Name, shorthand, default and description all come from the FlagSet entry,
// so the same flag reads the same in every command.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	if def, ok := fs[key]; ok {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaults().GetString(def.ViperKey), def.usage())
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	if def, ok := fs[key]; ok {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaults().GetInt(def.ViperKey), def.usage())
	}
}

// AddDurationFlag registers a time.Duration flag on cmd from the given FlagSet.
func AddDurationFlag(cmd *cobra.Command, fs FlagSet, key string, target *time.Duration) {
	if def, ok := fs[key]; ok {
		cmd.Flags().DurationVarP(target, def.Name, def.Shorthand, defaults().GetDuration(def.ViperKey), def.usage())
	}
}

// usage is the flag help text, naming the environment variable that can
// stand in for the flag.
func (f Flag) usage() string {
	return fmt.Sprintf("%s (env %s)", f.Description, EnvVar(f.ViperKey))
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, keys []string) {
	for _, key := range keys {
		def, ok := fs[key]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaults returns a viper holding only NewDefaultConfig values.
func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
