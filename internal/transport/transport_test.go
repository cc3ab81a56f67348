package transport_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/torosent/gn/internal/clientmetrics"
	"github.com/torosent/gn/internal/transport"
)

func resolve(t *testing.T, addr string, protocol transport.Protocol) transport.Target {
	t.Helper()
	target, err := transport.ResolveTarget(context.Background(), addr, protocol)
	if err != nil {
		t.Fatalf("ResolveTarget(%q) error = %v", addr, err)
	}
	return target
}

// closedTCPAddr returns an address that nothing listens on.
func closedTCPAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestTCPWriterDeliversPayload(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	m := clientmetrics.New()
	w := transport.NewTCPWriter(transport.Options{Metrics: m})
	out := w.Write(context.Background(), resolve(t, ln.Addr().String(), transport.ProtocolTCP), []byte("hello"))

	if !out.Success {
		t.Fatalf("expected success, got %v (%s)", out.Err, out.Kind)
	}
	if out.BytesWritten != 5 {
		t.Fatalf("BytesWritten = %d, want 5", out.BytesWritten)
	}
	if out.Timestamp.IsZero() {
		t.Fatal("outcome timestamp not set")
	}

	select {
	case data := <-received:
		if !bytes.Equal(data, []byte("hello")) {
			t.Fatalf("server received %q, want %q", data, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the payload")
	}

	if m.Open() != 0 {
		t.Fatalf("socket leaked: %d still open", m.Open())
	}
	if snap := m.Snapshot(); snap.SocketsOpened != 1 || snap.BytesSent != 5 {
		t.Fatalf("unexpected metrics snapshot %+v", snap)
	}
}

func TestTCPWriterConnectionRefused(t *testing.T) {
	m := clientmetrics.New()
	w := transport.NewTCPWriter(transport.Options{Metrics: m})
	out := w.Write(context.Background(), resolve(t, closedTCPAddr(t), transport.ProtocolTCP), []byte("ping"))

	if out.Success {
		t.Fatal("expected failure writing to a closed port")
	}
	if out.Kind != transport.KindConnectionRefused {
		t.Fatalf("Kind = %q, want %q (err=%v)", out.Kind, transport.KindConnectionRefused, out.Err)
	}
	if out.BytesWritten != 0 {
		t.Fatalf("BytesWritten = %d, want 0", out.BytesWritten)
	}
	if m.Open() != 0 {
		t.Fatalf("socket leaked: %d still open", m.Open())
	}
}

func TestTCPWriterCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := transport.NewTCPWriter(transport.Options{})
	out := w.Write(ctx, resolve(t, closedTCPAddr(t), transport.ProtocolTCP), []byte("ping"))
	if out.Success {
		t.Fatal("expected failure with a cancelled context")
	}
	if out.Kind != transport.KindCancelled {
		t.Fatalf("Kind = %q, want %q", out.Kind, transport.KindCancelled)
	}
}

func TestTCPWriterCancellationUnblocksHungPeer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	hold := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			hold <- conn // never read
		}
	}()
	defer func() {
		select {
		case conn := <-hold:
			conn.Close()
		default:
		}
	}()

	m := clientmetrics.New()
	w := transport.NewTCPWriter(transport.Options{Metrics: m})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	payload := make([]byte, 64<<20)
	done := make(chan transport.Outcome, 1)
	go func() {
		done <- w.Write(ctx, resolve(t, ln.Addr().String(), transport.ProtocolTCP), payload)
	}()

	select {
	case out := <-done:
		if out.Success {
			t.Fatal("expected the blocked write to fail after cancellation")
		}
		if out.Kind != transport.KindCancelled {
			t.Fatalf("Kind = %q, want %q", out.Kind, transport.KindCancelled)
		}
		if out.BytesWritten >= len(payload) {
			t.Fatalf("expected a partial write, wrote %d", out.BytesWritten)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("write did not return after cancellation")
	}
	if m.Open() != 0 {
		t.Fatalf("socket leaked: %d still open", m.Open())
	}
}

func TestTCPWriterTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			time.Sleep(2 * time.Second)
			conn.Close()
		}
	}()

	w := transport.NewTCPWriter(transport.Options{Timeout: 100 * time.Millisecond})
	out := w.Write(context.Background(), resolve(t, ln.Addr().String(), transport.ProtocolTCP), make([]byte, 64<<20))
	if out.Success {
		t.Fatal("expected timeout failure")
	}
	if out.Kind != transport.KindTimeout {
		t.Fatalf("Kind = %q, want %q (err=%v)", out.Kind, transport.KindTimeout, out.Err)
	}
}

func TestUDPWriterDeliversDatagram(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer pc.Close()

	m := clientmetrics.New()
	w := transport.NewUDPWriter(transport.Options{Metrics: m})
	out := w.Write(context.Background(), resolve(t, pc.LocalAddr().String(), transport.ProtocolUDP), []byte("datagram"))
	if !out.Success {
		t.Fatalf("expected success, got %v", out.Err)
	}

	buf := make([]byte, 64)
	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read datagram: %v", err)
	}
	if string(buf[:n]) != "datagram" {
		t.Fatalf("received %q, want %q", buf[:n], "datagram")
	}
	if m.Open() != 0 {
		t.Fatalf("socket leaked: %d still open", m.Open())
	}
}

// UDP cannot observe delivery: a send to a port with no listener succeeds.
func TestUDPWriterSucceedsWithoutListener(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	addr := pc.LocalAddr().String()
	pc.Close()

	w := transport.NewUDPWriter(transport.Options{})
	target := resolve(t, addr, transport.ProtocolUDP)
	for i := 0; i < 3; i++ {
		out := w.Write(context.Background(), target, []byte("nobody"))
		if !out.Success {
			t.Fatalf("write %d: expected local send success, got %v", i, out.Err)
		}
		if out.BytesWritten != len("nobody") {
			t.Fatalf("BytesWritten = %d, want %d", out.BytesWritten, len("nobody"))
		}
	}

	// Rebinding the port shows none of the earlier datagrams were queued.
	again, err := net.ListenPacket("udp", addr)
	if err != nil {
		t.Skipf("could not rebind %s: %v", addr, err)
	}
	defer again.Close()
	_ = again.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if n, _, err := again.ReadFrom(make([]byte, 64)); err == nil {
		t.Fatalf("unexpectedly received %d bytes", n)
	}
}

func TestNewSelectsWriter(t *testing.T) {
	tcp, err := transport.New(transport.ProtocolTCP, transport.Options{})
	if err != nil {
		t.Fatalf("New(tcp) error = %v", err)
	}
	if _, ok := tcp.(*transport.TCPWriter); !ok {
		t.Fatalf("New(tcp) = %T", tcp)
	}
	udp, err := transport.New(transport.ProtocolUDP, transport.Options{})
	if err != nil {
		t.Fatalf("New(udp) error = %v", err)
	}
	if _, ok := udp.(*transport.UDPWriter); !ok {
		t.Fatalf("New(udp) = %T", udp)
	}
	if _, err := transport.New("sctp", transport.Options{}); err == nil {
		t.Fatal("expected error for unsupported protocol")
	}
}

func TestParseProtocol(t *testing.T) {
	tests := []struct {
		input   string
		want    transport.Protocol
		wantErr bool
	}{
		{"tcp", transport.ProtocolTCP, false},
		{"TCP", transport.ProtocolTCP, false},
		{"udp", transport.ProtocolUDP, false},
		{" UDP ", transport.ProtocolUDP, false},
		{"", transport.ProtocolTCP, false},
		{"quic", "", true},
	}
	for _, tt := range tests {
		got, err := transport.ParseProtocol(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseProtocol(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseProtocol(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestResolveTarget(t *testing.T) {
	target, err := transport.ResolveTarget(context.Background(), "localhost:5000", transport.ProtocolUDP)
	if err != nil {
		t.Fatalf("ResolveTarget error = %v", err)
	}
	if target.Host != "localhost" || target.Port != 5000 || target.Protocol != transport.ProtocolUDP {
		t.Fatalf("unexpected target %+v", target)
	}
	if target.Addr == "" {
		t.Fatal("resolved address is empty")
	}
	if got := target.String(); got != "udp://localhost:5000" {
		t.Fatalf("String() = %q", got)
	}

	for _, bad := range []string{"", "nohostport", "127.0.0.1:0", "127.0.0.1:99999", "127.0.0.1:abc"} {
		if _, err := transport.ResolveTarget(context.Background(), bad, transport.ProtocolTCP); err == nil {
			t.Errorf("ResolveTarget(%q) expected error", bad)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want transport.ErrorKind
	}{
		{"nil", nil, transport.KindNone},
		{"cancelled", context.Canceled, transport.KindCancelled},
		{"deadline", os.ErrDeadlineExceeded, transport.KindTimeout},
		{"refused", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, transport.KindConnectionRefused},
		{"reset", fmt.Errorf("write: %w", syscall.ECONNRESET), transport.KindConnectionReset},
		{"pipe", fmt.Errorf("write: %w", syscall.EPIPE), transport.KindBrokenPipe},
		{"host unreachable", syscall.EHOSTUNREACH, transport.KindHostUnreachable},
		{"network unreachable", syscall.ENETUNREACH, transport.KindNetworkUnreachable},
		{"short write", io.ErrShortWrite, transport.KindShortWrite},
		{"other", errors.New("boom"), transport.KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := transport.Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
