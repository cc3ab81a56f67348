// Package transport performs single payload writes over a fresh TCP stream
// or a single UDP datagram.
//
// Every call to Writer.Write acquires exactly one socket and releases it
// before returning, on success and on every error path. Nothing is pooled
// or reused between writes.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/torosent/gn/internal/clientmetrics"
)

// Outcome is the immutable result of one write attempt.
type Outcome struct {
	Success      bool
	BytesWritten int
	Err          error
	Kind         ErrorKind
	Latency      time.Duration
	Timestamp    time.Time
}

// Writer performs one write of payload against target.
// Implementations never retry; failures are reported in the Outcome.
type Writer interface {
	Write(ctx context.Context, target Target, payload []byte) Outcome
}

// Options configure the built-in writers.
type Options struct {
	// Timeout bounds connect plus write. Zero means no timeout; a hung peer
	// then only releases the worker when ctx is cancelled.
	Timeout time.Duration
	// Metrics receives socket and byte counters. Optional.
	Metrics *clientmetrics.ClientMetrics
}

// New returns the writer for protocol.
func New(protocol Protocol, opts Options) (Writer, error) {
	switch protocol {
	case ProtocolTCP:
		return NewTCPWriter(opts), nil
	case ProtocolUDP:
		return NewUDPWriter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported protocol %q", protocol)
	}
}

func newOutcome(ctx context.Context, start time.Time, written int, err error) Outcome {
	out := Outcome{
		Success:      err == nil,
		BytesWritten: written,
		Err:          err,
		Latency:      time.Since(start),
		Timestamp:    start,
	}
	if err != nil {
		out.Kind = Classify(err)
		// A deadline forced by cancellation surfaces as a timeout from the
		// net package; report what actually happened.
		if ctx.Err() != nil {
			out.Kind = KindCancelled
		}
	}
	return out
}
