// Package logger builds the shared structured logger used across the module.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Scope tags a log line with the component emitting it.
func Scope(scope string) slog.Attr {
	return slog.String("scope", scope)
}

// Error tags a log line with the error it reports.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// NewLogger builds a *slog.Logger from the environment: LOG_LEVEL selects the
// minimum level (default info, unrecognized values fall back to info) and
// GO_ENV=production selects JSON output over human-readable text.
func NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFromEnv()}

	var handler slog.Handler
	if os.Getenv("GO_ENV") == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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
