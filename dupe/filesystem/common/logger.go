package common

import (
	"github.com/rs/zerolog"
)

// Logger is the logging surface the scan pipeline depends on. Arguments after the
// message are alternating key/value pairs. *slog.Logger satisfies it directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger returns a Logger that discards everything
func NopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// OrNop returns l, or a discarding logger when l is nil
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger()
	}
	return l
}

// zerologLogger adapts a zerolog.Logger to Logger
type zerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger wraps zl so it can be handed to the scan pipeline
func NewZerologLogger(zl zerolog.Logger) Logger {
	return &zerologLogger{zl: zl}
}

func (z *zerologLogger) Debug(msg string, args ...any) { emit(z.zl.Debug(), msg, args) }
func (z *zerologLogger) Info(msg string, args ...any)  { emit(z.zl.Info(), msg, args) }
func (z *zerologLogger) Warn(msg string, args ...any)  { emit(z.zl.Warn(), msg, args) }
func (z *zerologLogger) Error(msg string, args ...any) { emit(z.zl.Error(), msg, args) }

// emit attaches key/value pairs; a nil event means the level is disabled
func emit(e *zerolog.Event, msg string, args []any) {
	if e == nil {
		return
	}
	if len(args) > 0 {
		e = e.Fields(args)
	}
	e.Msg(msg)
}
