// Package rtlog is the logging facade used across wrun. It wraps logrus so that the stages that log
// (validate's warn mode, dispatch's trap reporting, the spectest host module) report diagnostics through one
// structured sink instead of ad-hoc fmt.Fprintln calls, while keeping the facade itself small enough to swap out.
package rtlog

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the subset of logrus used by wrun's internal packages. Kept as an interface so tests can supply a
// no-op or recording implementation without pulling in logrus.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithError(err error) Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New returns a Logger backed by logrus, writing to w at the given level.
func New(w io.Writer, level logrus.Level) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// Discard returns a Logger that drops everything, used as the default when an embedder configures none.
func Discard() Logger {
	return New(io.Discard, logrus.PanicLevel)
}

func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}

func (l *logrusLogger) WithError(err error) Logger {
	return &logrusLogger{entry: l.entry.WithError(err)}
}
