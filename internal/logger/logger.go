// Package logger holds the component loggers. Everything goes to stderr so
// stdout stays free for MCP stdio framing and CLI report output.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	Base      = newBase(os.Stderr, "console")
	Collector = component("collector")
	Tools     = component("tools")
	Server    = component("server")
)

// Setup configures level and output format ("console" or "json") for all
// component loggers. It must run before any logger is used concurrently.
func Setup(level, format string) error {
	return SetupWriter(os.Stderr, level, format)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level, format string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	switch format {
	case "", "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	zerolog.SetGlobalLevel(lvl)
	Base = newBase(w, format)
	Collector = component("collector")
	Tools = component("tools")
	Server = component("server")
	return nil
}

func newBase(w io.Writer, format string) zerolog.Logger {
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func component(name string) zerolog.Logger {
	return Base.With().Str("component", name).Logger()
}
