// Package logging is the structured logging sink used by every fire
// component. It never owns configuration of where logs go; callers build a
// Logger once (typically in cmd/fire) and pass it down explicitly.
package logging

import (
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Logger is the sink every fire component logs through.
type Logger = log.Logger

// New builds a logfmt logger writing to w with a timestamp and caller
// prepended, matching the shape grafana-tempo's pkg/util/log uses.
func New(w io.Writer) Logger {
	l := log.NewLogfmtLogger(log.NewSyncWriter(w))
	l = log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.Caller(5))
	return l
}

// NewNop returns a logger that discards everything; the default for tests
// and for components constructed without an explicit logger.
func NewNop() Logger {
	return log.NewNopLogger()
}

// Default is a convenience logfmt logger to stderr, used by cmd/fire.
func Default() Logger {
	return New(os.Stderr)
}

// With is re-exported so callers don't need a second import for the common
// case of attaching static key-values to a logger.
func With(l Logger, keyvals ...interface{}) Logger {
	return log.With(l, keyvals...)
}

func Debug(l Logger) log.Logger { return level.Debug(l) }
func Info(l Logger) log.Logger  { return level.Info(l) }
func Warn(l Logger) log.Logger  { return level.Warn(l) }
func Error(l Logger) log.Logger { return level.Error(l) }
