// Package logger builds the single structured logger used across the
// process. Unlike the teacher's package-level *slog.Logger global, New
// returns an owned instance: callers thread it through constructors so
// tests can inject a discard logger instead of reaching for a singleton.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// New builds a *slog.Logger writing to stdout, plus logFile when non-empty.
// level is one of "debug", "info", "warn", "error"; anything else defaults
// to debug, matching the teacher's permissive parsing.
func New(level string, logFile string) (*slog.Logger, error) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelDebug
	}

	writers := []io.Writer{os.Stdout}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		writers = append(writers, f)
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String("time", a.Value.Time().Format("15:04:05"))
			}
			return a
		},
	})

	return slog.New(handler), nil
}

// Discard returns a logger that drops everything, for tests that don't
// want log noise but still need to satisfy a *slog.Logger parameter.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
