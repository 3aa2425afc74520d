package config

const (
	defaultBaseURL      = "http://localhost:8000"
	defaultEnvironment  = "development"
	defaultMaxAttempts  = 5
	defaultBaseDelay    = "1s"
	defaultMaxLineBytes = 1 << 20

	defaultReplayListen    = ":8000"
	defaultReplayDir       = "sessions"
	defaultReplayLineDelay = "50ms"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Stream: StreamConfig{
			BaseURL:      defaultBaseURL,
			Environment:  defaultEnvironment,
			MaxAttempts:  defaultMaxAttempts,
			BaseDelay:    defaultBaseDelay,
			MaxLineBytes: defaultMaxLineBytes,
		},
		Replay: ReplayConfig{
			Listen:    defaultReplayListen,
			Dir:       defaultReplayDir,
			LineDelay: defaultReplayLineDelay,
		},
	}
}
