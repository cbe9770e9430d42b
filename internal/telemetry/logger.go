// Package telemetry constructs the process's two loggers: a structured
// log/slog JSON logger for the cache and routing layers, and a zerolog
// logger for the upstream client and HTTP access log, matching how each of
// those layers is grounded in this lineage and the wider example pack.
package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewSlogLogger builds the process's slog.Logger, writing JSON to w at the
// given level ("debug", "info", "warn", "error"; unknown values default to
// info).
func NewSlogLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel(level)}))
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewZerologLogger builds the process's zerolog.Logger, writing to w at the
// given level.
func NewZerologLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Stderr is the default writer for both loggers in this process — stdout is
// reserved for nothing in particular here, but stderr keeps log lines out of
// any future stdout-piped usage.
var Stderr io.Writer = os.Stderr
