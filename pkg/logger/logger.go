// Package logger provides opinionated logging capabilities for the callctx system
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level   slog.Level
	pretty  bool
	json    bool
	source  bool
	writers []io.Writer
}

// New creates a *slog.Logger configured by the given options.
// Defaults to an Info level text handler writing to os.Stdout.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level:   slog.LevelInfo,
		writers: []io.Writer{os.Stdout},
	}
	for _, opt := range opts {
		opt(c)
	}

	var w io.Writer
	switch len(c.writers) {
	case 0:
		w = os.Stdout
	case 1:
		w = c.writers[0]
	default:
		w = io.MultiWriter(c.writers...)
	}

	switch {
	case c.pretty:
		l := charmlog.NewWithOptions(w, charmlog.Options{
			ReportTimestamp: true,
			ReportCaller:    c.source,
			Level:           charmLevel(c.level),
		})
		return slog.New(l)

	case c.json:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		}))

	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		}))
	}
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func charmLevel(l slog.Level) charmlog.Level {
	switch {
	case l <= slog.LevelDebug:
		return charmlog.DebugLevel
	case l <= slog.LevelInfo:
		return charmlog.InfoLevel
	case l <= slog.LevelWarn:
		return charmlog.WarnLevel
	default:
		return charmlog.ErrorLevel
	}
}
