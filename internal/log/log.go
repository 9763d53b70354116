// Package log provides a thin wrapper around logrus that tags every line
// with the harness session (and, where applicable, route/handle) id, the
// way xk6-browser's common.Logger tags lines with a CDP session id.
package log

import (
	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.FieldLogger, carrying context that gets attached to
// every entry emitted through it.
type Logger struct {
	entry *logrus.Entry
}

// New creates a Logger rooted at l, tagged with the given session id.
func New(l logrus.FieldLogger, sessionID string) *Logger {
	fields := logrus.Fields{}
	if sessionID != "" {
		fields["session"] = sessionID
	}
	return &Logger{entry: l.WithFields(fields)}
}

// With returns a child Logger with additional fields merged in, e.g. a
// route or handle id for the duration of handling a single request.
func (log *Logger) With(fields logrus.Fields) *Logger {
	return &Logger{entry: log.entry.WithFields(fields)}
}

func (log *Logger) Debugf(tag, format string, args ...any) {
	log.entry.WithField("tag", tag).Debugf(format, args...)
}

func (log *Logger) Infof(tag, format string, args ...any) {
	log.entry.WithField("tag", tag).Infof(format, args...)
}

func (log *Logger) Warnf(tag, format string, args ...any) {
	log.entry.WithField("tag", tag).Warnf(format, args...)
}

func (log *Logger) Errorf(tag, format string, args ...any) {
	log.entry.WithField("tag", tag).Errorf(format, args...)
}
