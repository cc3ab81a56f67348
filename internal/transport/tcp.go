package transport

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/torosent/gn/internal/clientmetrics"
)

// TCPWriter dials a new stream per write, writes the whole payload and
// closes the stream.
type TCPWriter struct {
	dialer  net.Dialer
	timeout time.Duration
	metrics *clientmetrics.ClientMetrics
}

// NewTCPWriter creates a TCPWriter.
func NewTCPWriter(opts Options) *TCPWriter {
	return &TCPWriter{
		dialer:  net.Dialer{Timeout: opts.Timeout},
		timeout: opts.Timeout,
		metrics: opts.Metrics,
	}
}

func (w *TCPWriter) Write(ctx context.Context, target Target, payload []byte) Outcome {
	start := time.Now()

	conn, err := w.dialer.DialContext(ctx, "tcp", target.Addr)
	if err != nil {
		w.metrics.IncrementErrors()
		return newOutcome(ctx, start, 0, err)
	}
	w.metrics.MarkOpened()
	defer func() {
		conn.Close()
		w.metrics.MarkClosed()
	}()

	// Unblock a write stuck on a peer that stopped reading.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if w.timeout > 0 {
		_ = conn.SetWriteDeadline(start.Add(w.timeout))
	}

	written, err := writeFull(conn, payload)
	if err != nil {
		w.metrics.IncrementErrors()
		return newOutcome(ctx, start, written, err)
	}
	w.metrics.IncrementSent(int64(written))
	return newOutcome(ctx, start, written, nil)
}

func writeFull(conn net.Conn, payload []byte) (int, error) {
	total := 0
	for total < len(payload) {
		n, err := conn.Write(payload[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}
