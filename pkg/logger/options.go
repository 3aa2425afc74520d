package logger

import (
	"io"
	"log/slog"
)

// Option configures New.
type Option func(*config)

// WithDebug lowers the level to Debug.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithPretty selects the colorized charmbracelet/log handler.
func WithPretty(pretty bool) Option {
	return func(c *config) { c.pretty = pretty }
}

// WithJSON selects slog's JSON handler. JSON wins over pretty.
func WithJSON(json bool) Option {
	return func(c *config) { c.json = json }
}

// WithWriter replaces the destination, os.Stderr by default.
func WithWriter(w io.Writer) Option {
	return WithWriters(w)
}

// WithWriters writes every record to each of ws.
func WithWriters(ws ...io.Writer) Option {
	return func(c *config) { c.writers = ws }
}

// WithSource adds the caller's file:line to each record.
func WithSource(source bool) Option {
	return func(c *config) { c.source = source }
}
