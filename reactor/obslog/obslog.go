// Package obslog adapts the reactor's structured logging calls to
// logiface, the generic logging facade used throughout the corpus, backed
// by stumpy's zero-allocation JSON encoder.
package obslog

import (
	"io"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is a thin, reactor-shaped wrapper around a logiface logger: every
// call site passes a message plus alternating key/value pairs, matching the
// density the teacher's own call sites use (a handful of fields, never a
// struct).
type Logger struct {
	l *logiface.Logger[*stumpy.Event]
}

// New builds a Logger writing newline-delimited JSON to w.
func New(w io.Writer) *Logger {
	return &Logger{l: stumpy.L.New(
		stumpy.L.WithStumpy(),
		stumpy.L.WithWriter(w),
	)}
}

// NewNop builds a Logger that discards everything, the default when a Pool
// is constructed with no Logger configured.
func NewNop() *Logger {
	return New(io.Discard)
}

func fields(b *logiface.Builder[*stumpy.Event], kv []any) *logiface.Builder[*stumpy.Event] {
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		b = b.Any(key, kv[i+1])
	}
	return b
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, kv ...any) { fields(l.l.Debug(), kv).Log(msg) }

// Info logs at informational level.
func (l *Logger) Info(msg string, kv ...any) { fields(l.l.Info(), kv).Log(msg) }

// Warn logs at warning level.
func (l *Logger) Warn(msg string, kv ...any) { fields(l.l.Warning(), kv).Log(msg) }

// Error logs at error level.
func (l *Logger) Error(msg string, kv ...any) { fields(l.l.Err(), kv).Log(msg) }
