package log

import (
	"fmt"
	"log/slog"

	"github.com/kode4food/timerq/pkg/timefmt"
)

// EventID identifies a scheduled event in log output
func EventID[T ~int64](id T) slog.Attr {
	return slog.Int64("event_id", int64(id))
}

// Handle identifies a clock timer handle in log output
func Handle[T ~int](h T) slog.Attr {
	return slog.Int("handle", int(h))
}

// Domain names the clock domain a timer is bound to
func Domain(d fmt.Stringer) slog.Attr {
	return slog.String("domain", d.String())
}

// Deadline records an absolute deadline in nanoseconds
func Deadline(ns int64) slog.Attr {
	return slog.Int64("deadline_ns", ns)
}

// WallTime renders a wall-clock nanosecond timestamp as HH:MM:SS.mmm
func WallTime(ns int64) slog.Attr {
	return slog.String("time", timefmt.Format(ns))
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
