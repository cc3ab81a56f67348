package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/torosent/gn/internal/metrics"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runGN(t *testing.T, ctx context.Context, stdin string, args ...string) result {
	t.Helper()
	var out, errOut syncBuffer
	// An absent .env must never influence a test run.
	args = append([]string{"--env-file="}, args...)
	code := run(ctx, args, streams{in: strings.NewReader(stdin), out: &out, err: &errOut})
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

// tcpSink accepts connections and records the bytes read from each one.
type tcpSink struct {
	ln       net.Listener
	mu       sync.Mutex
	payloads []string
	wg       sync.WaitGroup
}

func newTCPSink(t *testing.T) *tcpSink {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	s := &tcpSink{ln: ln}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer conn.Close()
				data, _ := io.ReadAll(conn)
				s.mu.Lock()
				s.payloads = append(s.payloads, string(data))
				s.mu.Unlock()
			}()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		s.wg.Wait()
	})
	return s
}

func (s *tcpSink) addr() string { return s.ln.Addr().String() }

func (s *tcpSink) received(t *testing.T, want int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		n := len(s.payloads)
		s.mu.Unlock()
		if n >= want {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.payloads...)
}

func closedPort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestWriteCountOverTCP(t *testing.T) {
	sink := newTCPSink(t)

	res := runGN(t, context.Background(), "", "write", "--host", sink.addr(), "--count", "5", "--concurrency", "2", "hello")
	if res.code != exitOK {
		t.Fatalf("exit code = %d, stderr = %s", res.code, res.stderr)
	}

	got := sink.received(t, 5)
	if len(got) != 5 {
		t.Fatalf("received %d connections, want 5", len(got))
	}
	for _, p := range got {
		if p != "hello" {
			t.Errorf("received %q, want hello", p)
		}
	}
	for _, want := range []string{"Total Writes:      5", "Successful:        5", "Wrote 25 bytes"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, res.stdout)
		}
	}
}

func TestWriteDefaultsToOneWriteFromStdin(t *testing.T) {
	sink := newTCPSink(t)

	res := runGN(t, context.Background(), "from stdin", "write", "--host", sink.addr(), "--json-output")
	if res.code != exitOK {
		t.Fatalf("exit code = %d, stderr = %s", res.code, res.stderr)
	}

	var report metrics.Report
	if err := json.Unmarshal([]byte(res.stdout), &report); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\n%s", err, res.stdout)
	}
	if report.Attempts != 1 || report.Successes != 1 || report.BytesWritten != 10 {
		t.Errorf("report = %+v, want one 10 byte write", report)
	}
	if report.Protocol != "tcp" || report.RunID == "" {
		t.Errorf("report protocol = %q run id = %q", report.Protocol, report.RunID)
	}
	if got := sink.received(t, 1); len(got) != 1 || got[0] != "from stdin" {
		t.Errorf("received %v", got)
	}
}

func TestWriteConnectionRefusedStillExitsZero(t *testing.T) {
	res := runGN(t, context.Background(), "", "write", "--host", closedPort(t), "--count", "3", "--log-errors", "x")
	if res.code != exitOK {
		t.Fatalf("exit code = %d, want 0 on write failures; stderr = %s", res.code, res.stderr)
	}
	if !strings.Contains(res.stdout, "Failed:            3") {
		t.Errorf("stdout missing failure count:\n%s", res.stdout)
	}
	if !strings.Contains(res.stdout, "Connection refused (connection_refused): 3") {
		t.Errorf("stdout missing error breakdown:\n%s", res.stdout)
	}
	if !strings.Contains(res.stderr, "Write failed") {
		t.Errorf("--log-errors did not log failures:\n%s", res.stderr)
	}
}

func TestWriteConfigurationErrorsOpenNoSockets(t *testing.T) {
	sink := newTCPSink(t)
	cases := [][]string{
		{"write", "--host", sink.addr(), "--count", "2", "--duration", "1s", "x"},
		{"write", "--host", sink.addr(), "--concurrency", "0", "x"},
		{"write", "--host", sink.addr(), "--protocol", "sctp", "x"},
		{"write", "x"},
		{"write", "--host", sink.addr(), "--threshold", "nonsense", "x"},
		{"write", "--host", sink.addr(), "a", "b"},
	}
	for _, args := range cases {
		res := runGN(t, context.Background(), "", args...)
		if res.code != exitError {
			t.Errorf("%v: exit code = %d, want %d", args, res.code, exitError)
		}
		if !strings.Contains(res.stderr, "Error:") {
			t.Errorf("%v: stderr = %q, want an error", args, res.stderr)
		}
	}
	time.Sleep(50 * time.Millisecond)
	if got := sink.received(t, 0); len(got) != 0 {
		t.Errorf("configuration errors opened %d connections", len(got))
	}
}

func TestWriteDurationCancelledReportsPartialResults(t *testing.T) {
	sink := newTCPSink(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := runGN(t, ctx, "", "write", "--host", sink.addr(), "--duration", "30s", "--rate", "50", "--yaml-output", "tick")
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("write did not stop on cancellation, took %s", elapsed)
	}
	if res.code != exitOK {
		t.Fatalf("exit code = %d, stderr = %s", res.code, res.stderr)
	}
	if !strings.Contains(res.stdout, "cancelled: true") {
		t.Errorf("YAML report not marked cancelled:\n%s", res.stdout)
	}
}

func TestWriteDurationAgainstUnreachableHost(t *testing.T) {
	res := runGN(t, context.Background(), "", "write", "--host", closedPort(t), "--duration", "1s",
		"--concurrency", "3", "--rate", "200", "--json-output", "ping")
	if res.code != exitOK {
		t.Fatalf("exit code = %d, stderr = %s", res.code, res.stderr)
	}

	var report metrics.Report
	if err := json.Unmarshal([]byte(res.stdout), &report); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\n%s", err, res.stdout)
	}
	if report.Attempts == 0 || report.Successes != 0 || report.Failures != report.Attempts {
		t.Errorf("attempts = %d successes = %d failures = %d, want all failed", report.Attempts, report.Successes, report.Failures)
	}
	if report.ElapsedMs < 1000 || report.ElapsedMs > 3000 {
		t.Errorf("elapsed = %.0fms, want about 1s", report.ElapsedMs)
	}
	if report.Cancelled {
		t.Error("a completed duration run must not be marked cancelled")
	}
}

func TestWriteThresholdsControlExitCode(t *testing.T) {
	sink := newTCPSink(t)

	res := runGN(t, context.Background(), "", "write", "--host", sink.addr(), "--count", "2",
		"--color", "never", "--threshold", "writes:count == 2", "x")
	if res.code != exitOK {
		t.Fatalf("passing thresholds: exit code = %d, stderr = %s", res.code, res.stderr)
	}
	if !strings.Contains(res.stdout, "All 1 thresholds passed") {
		t.Errorf("stdout missing threshold summary:\n%s", res.stdout)
	}

	res = runGN(t, context.Background(), "", "write", "--host", closedPort(t), "--count", "2",
		"--color", "never", "--threshold", "write_failed:rate < 0.5", "x")
	if res.code != exitThresholdsFailed {
		t.Fatalf("failing thresholds: exit code = %d, want %d", res.code, exitThresholdsFailed)
	}
	if !strings.Contains(res.stderr, "1 of 1 thresholds failed") {
		t.Errorf("stderr = %q", res.stderr)
	}
}

func TestReportFileAndHistory(t *testing.T) {
	sink := newTCPSink(t)
	history := filepath.Join(t.TempDir(), "runs.jsonl")

	for i := 0; i < 2; i++ {
		res := runGN(t, context.Background(), "", "write", "--host", sink.addr(), "--count", "1", "--report-file", history, "--json-output", "x")
		if res.code != exitOK {
			t.Fatalf("exit code = %d, stderr = %s", res.code, res.stderr)
		}
	}

	res := runGN(t, context.Background(), "", "history", history)
	if res.code != exitOK {
		t.Fatalf("history exit code = %d, stderr = %s", res.code, res.stderr)
	}
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	if len(lines) != 3 {
		t.Fatalf("history printed %d lines, want header and 2 runs:\n%s", len(lines), res.stdout)
	}
	if !strings.HasPrefix(lines[0], "RUN ID") {
		t.Errorf("header = %q", lines[0])
	}
}

func TestServeReceivesWrites(t *testing.T) {
	for _, protocol := range []string{"tcp", "udp"} {
		t.Run(protocol, func(t *testing.T) {
			addr := freeAddr(t, protocol)
			ctx, cancel := context.WithCancel(context.Background())

			var serveOut, serveErr syncBuffer
			done := make(chan int, 1)
			go func() {
				done <- run(ctx, []string{"--env-file=", "serve", "--address", addr, "--protocol", strings.ToUpper(protocol)},
					streams{in: strings.NewReader(""), out: &serveOut, err: &serveErr})
			}()
			waitListening(t, &serveErr)

			res := runGN(t, context.Background(), "", "write", "--host", addr, "--protocol", protocol, "--count", "5", "ping")
			if res.code != exitOK {
				t.Fatalf("write exit code = %d, stderr = %s", res.code, res.stderr)
			}

			deadline := time.Now().Add(2 * time.Second)
			for time.Now().Before(deadline) && strings.Count(serveOut.String(), "ping\n") < 5 {
				time.Sleep(5 * time.Millisecond)
			}
			cancel()
			select {
			case code := <-done:
				if code != exitOK {
					t.Errorf("serve exit code = %d, stderr = %s", code, serveErr.String())
				}
			case <-time.After(2 * time.Second):
				t.Fatal("serve did not stop")
			}
			if got := strings.Count(serveOut.String(), "ping\n"); got != 5 {
				t.Errorf("serve printed %d payloads, want 5:\n%s", got, serveOut.String())
			}
		})
	}
}

func freeAddr(t *testing.T, protocol string) string {
	t.Helper()
	if protocol == "udp" {
		pc, err := net.ListenPacket("udp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("ListenPacket() error = %v", err)
		}
		defer pc.Close()
		return pc.LocalAddr().String()
	}
	return closedPort(t)
}

func waitListening(t *testing.T, stderr *syncBuffer) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(stderr.String(), "Listening on") {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("server did not start: %s", stderr.String())
}

func TestServeRejectsBadMode(t *testing.T) {
	res := runGN(t, context.Background(), "", "serve", "--mode", "store")
	if res.code != exitError || !strings.Contains(res.stderr, "mode") {
		t.Errorf("exit code = %d stderr = %q", res.code, res.stderr)
	}
}
