package runner

import (
	"context"

	"github.com/torosent/gn/internal/transport"
)

// FailureLogger logs failed writes.
type FailureLogger interface {
	LogFailure(target transport.Target, outcome transport.Outcome)
}

// loggingWriter wraps a Writer with failure logging.
type loggingWriter struct {
	inner  transport.Writer
	logger FailureLogger
}

// WithLogging wraps a Writer to log failures.
func WithLogging(w transport.Writer, logger FailureLogger) transport.Writer {
	if logger == nil {
		return w
	}
	return &loggingWriter{
		inner:  w,
		logger: logger,
	}
}

func (l *loggingWriter) Write(ctx context.Context, target transport.Target, payload []byte) transport.Outcome {
	out := l.inner.Write(ctx, target, payload)
	if !out.Success {
		l.logger.LogFailure(target, out)
	}
	return out
}
