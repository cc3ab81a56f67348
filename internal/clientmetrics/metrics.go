package clientmetrics

import (
	"go.uber.org/atomic"
)

// ClientMetrics tracks socket lifecycle and send statistics for the
// transport writers. Every write opens exactly one socket and must close it,
// so Open() returning zero after a run proves nothing leaked.
type ClientMetrics struct {
	socketsOpened atomic.Int64
	socketsClosed atomic.Int64
	messagesSent  atomic.Int64
	bytesSent     atomic.Int64
	errors        atomic.Int64
}

// New creates a new ClientMetrics instance.
func New() *ClientMetrics {
	return &ClientMetrics{}
}

// MarkOpened records a socket acquisition.
func (m *ClientMetrics) MarkOpened() {
	if m == nil {
		return
	}
	m.socketsOpened.Inc()
}

// MarkClosed records a socket release.
func (m *ClientMetrics) MarkClosed() {
	if m == nil {
		return
	}
	m.socketsClosed.Inc()
}

// IncrementSent increments messages sent and bytes sent counters.
func (m *ClientMetrics) IncrementSent(bytes int64) {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
	m.bytesSent.Add(bytes)
}

// IncrementErrors increments the error counter.
func (m *ClientMetrics) IncrementErrors() {
	if m == nil {
		return
	}
	m.errors.Inc()
}

// Open returns the number of sockets currently held.
func (m *ClientMetrics) Open() int64 {
	if m == nil {
		return 0
	}
	return m.socketsOpened.Load() - m.socketsClosed.Load()
}

// Snapshot is a point in time copy of the counters.
type Snapshot struct {
	SocketsOpened int64
	SocketsClosed int64
	MessagesSent  int64
	BytesSent     int64
	Errors        int64
}

// Snapshot returns a copy of all counters.
func (m *ClientMetrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		SocketsOpened: m.socketsOpened.Load(),
		SocketsClosed: m.socketsClosed.Load(),
		MessagesSent:  m.messagesSent.Load(),
		BytesSent:     m.bytesSent.Load(),
		Errors:        m.errors.Load(),
	}
}
