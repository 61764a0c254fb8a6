package log

import (
	"io"
	"log/slog"
	"os"
)

// New constructs a JSON slog.Logger for the named component at info
// level, writing to stderr
func New(component string) *slog.Logger {
	return NewWithLevel(component, slog.LevelInfo)
}

// NewWithLevel constructs a JSON slog.Logger at the provided level.
// Debug level surfaces the dispatcher's per-wake records
func NewWithLevel(component string, lvl slog.Level) *slog.Logger {
	return NewWithWriter(component, lvl, os.Stderr)
}

// NewWithWriter constructs a JSON slog.Logger on an arbitrary sink
func NewWithWriter(
	component string, lvl slog.Level, w io.Writer,
) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler).With(
		slog.String("component", component))
}
