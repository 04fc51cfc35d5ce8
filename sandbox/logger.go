package sandbox

import (
	"fmt"
	"log/slog"
)

// Logger is an optional interface for observability during run execution.
// Implementations can log capability calls, timing information, and other
// events.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging must be best-effort; Logf should not panic.
// - Ownership: format/args are read-only.
type Logger interface {
	// Logf logs a formatted message.
	Logf(format string, args ...any)
}

// SlogLogger adapts a *slog.Logger to the Logger interface, for hosts
// whose ambient logging is log/slog.
func SlogLogger(l *slog.Logger) Logger {
	return slogLogger{l: l}
}

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Logf(format string, args ...any) {
	s.l.Info(fmt.Sprintf(format, args...))
}

// logf logs through an optional logger, tolerating nil.
func logf(l Logger, format string, args ...any) {
	if l != nil {
		l.Logf(format, args...)
	}
}
