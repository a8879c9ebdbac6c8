package logger

import (
	"io"
	"log/slog"
)

// Option configures a logger built by New or OpenFile.
type Option func(*config)

// WithLevel sets the minimum level that reaches the handler.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithDebug is shorthand for the --debug flag: Debug when set, Info otherwise.
func WithDebug(debug bool) Option {
	if debug {
		return WithLevel(slog.LevelDebug)
	}
	return WithLevel(slog.LevelInfo)
}

// WithPretty selects the colorized charmbracelet/log handler used for
// interactive commands. It takes precedence over WithJSON.
func WithPretty(pretty bool) Option {
	return func(c *config) {
		c.pretty = pretty
	}
}

// WithJSON selects slog's JSON handler, one record per line.
func WithJSON(json bool) Option {
	return func(c *config) {
		c.json = json
	}
}

// WithWriter sends output to w instead of os.Stdout.
func WithWriter(w io.Writer) Option {
	return WithWriters(w)
}

// WithWriters sends output to every non-nil writer.
func WithWriters(ws ...io.Writer) Option {
	return func(c *config) {
		c.writers = c.writers[:0:0]
		for _, w := range ws {
			if w != nil {
				c.writers = append(c.writers, w)
			}
		}
	}
}

// WithSource adds the caller's file:line to each record.
func WithSource(source bool) Option {
	return func(c *config) {
		c.source = source
	}
}
