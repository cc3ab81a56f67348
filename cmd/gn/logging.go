package main

import (
	"github.com/sirupsen/logrus"

	"github.com/torosent/gn/internal/logger"
	"github.com/torosent/gn/internal/transport"
)

// logFailureLogger reports each failed write as a structured warning.
type logFailureLogger struct {
	log logrus.FieldLogger
}

func newLogFailureLogger(log logrus.FieldLogger) *logFailureLogger {
	return &logFailureLogger{log: log}
}

func (l *logFailureLogger) LogFailure(target transport.Target, out transport.Outcome) {
	l.log.WithFields(logrus.Fields{
		logger.FieldTarget: target.String(),
		logger.FieldKind:   string(out.Kind),
		logger.FieldBytes:  out.BytesWritten,
		"latency":          out.Latency,
	}).WithError(out.Err).Warn("Write failed")
}
