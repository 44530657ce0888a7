// Package logger builds the *slog.Logger shared by the devlens gateway and
// CLI.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	debug     bool
	format    Format
	console   io.Writer
	file      io.Writer
	component string
}

// New builds a logger. Without options it writes text records at Info level
// to stdout.
func New(opts ...Option) *slog.Logger {
	c := &config{console: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}

	level := slog.LevelInfo
	if c.debug {
		level = slog.LevelDebug
	}

	h := consoleHandler(c, level)
	if c.file != nil {
		h = fanout{h, slog.NewJSONHandler(c.file, &slog.HandlerOptions{Level: level})}
	}

	l := slog.New(h)
	if c.component != "" {
		l = l.With("component", c.component)
	}
	return l
}

func consoleHandler(c *config, level slog.Level) slog.Handler {
	switch c.format {
	case FormatJSON:
		return slog.NewJSONHandler(c.console, &slog.HandlerOptions{Level: level})
	case FormatPretty:
		cl := charmlog.InfoLevel
		if c.debug {
			cl = charmlog.DebugLevel
		}
		return charmlog.NewWithOptions(c.console, charmlog.Options{
			Level:           cl,
			ReportTimestamp: true,
		})
	default:
		return slog.NewTextHandler(c.console, &slog.HandlerOptions{Level: level})
	}
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
