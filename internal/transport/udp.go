package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/torosent/gn/internal/clientmetrics"
)

// UDPWriter sends each payload as a single datagram from a fresh,
// unconnected socket bound to an ephemeral port.
//
// Success only means the local send call did not fail. UDP offers no
// delivery confirmation, so a write to a port nobody listens on still
// succeeds. UDP successes measure sends, not receipts.
type UDPWriter struct {
	timeout time.Duration
	metrics *clientmetrics.ClientMetrics
	// localAddr is the bind address, port 0 lets the kernel pick one.
	localAddr string
}

// NewUDPWriter creates a UDPWriter.
func NewUDPWriter(opts Options) *UDPWriter {
	return &UDPWriter{
		timeout:   opts.Timeout,
		metrics:   opts.Metrics,
		localAddr: ":0",
	}
}

func (w *UDPWriter) Write(ctx context.Context, target Target, payload []byte) Outcome {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return newOutcome(ctx, start, 0, err)
	}

	dst, err := net.ResolveUDPAddr("udp", target.Addr)
	if err != nil {
		w.metrics.IncrementErrors()
		return newOutcome(ctx, start, 0, fmt.Errorf("resolve %s: %w", target.Addr, err))
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", w.localAddr)
	if err != nil {
		w.metrics.IncrementErrors()
		return newOutcome(ctx, start, 0, err)
	}
	w.metrics.MarkOpened()
	defer func() {
		conn.Close()
		w.metrics.MarkClosed()
	}()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if w.timeout > 0 {
		_ = conn.SetWriteDeadline(start.Add(w.timeout))
	}

	n, err := conn.WriteTo(payload, dst)
	if err == nil && n < len(payload) {
		err = io.ErrShortWrite
	}
	if err != nil {
		w.metrics.IncrementErrors()
		return newOutcome(ctx, start, n, err)
	}
	w.metrics.IncrementSent(int64(n))
	return newOutcome(ctx, start, n, nil)
}
