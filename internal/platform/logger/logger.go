package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger; handlers and services attach their
// own attributes.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LIFELINE_DEBUG") == "true" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
