package runner_test

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/torosent/gn/internal/metrics"
	"github.com/torosent/gn/internal/runner"
	"github.com/torosent/gn/internal/transport"
)

var testTarget = transport.Target{
	Host:     "127.0.0.1",
	Port:     5000,
	Protocol: transport.ProtocolTCP,
	Addr:     "127.0.0.1:5000",
}

// fakeWriter simulates a write with fixed latency and tracks concurrency.
type fakeWriter struct {
	latency   time.Duration
	failEvery int64 // if >0, every n-th call fails with connection refused
	calls     atomic.Int64
	inFlight  atomic.Int64
	maxFlight atomic.Int64
}

func (f *fakeWriter) Write(ctx context.Context, _ transport.Target, payload []byte) transport.Outcome {
	start := time.Now()
	n := f.calls.Inc()
	cur := f.inFlight.Inc()
	defer f.inFlight.Dec()
	for {
		prev := f.maxFlight.Load()
		if cur <= prev || f.maxFlight.CompareAndSwap(prev, cur) {
			break
		}
	}

	if f.latency > 0 {
		select {
		case <-time.After(f.latency):
		case <-ctx.Done():
			return transport.Outcome{Err: ctx.Err(), Kind: transport.KindCancelled, Latency: time.Since(start), Timestamp: start}
		}
	}
	if f.failEvery > 0 && n%f.failEvery == 0 {
		err := syscall.ECONNREFUSED
		return transport.Outcome{Err: err, Kind: transport.Classify(err), Latency: time.Since(start), Timestamp: start}
	}
	return transport.Outcome{Success: true, BytesWritten: len(payload), Latency: time.Since(start), Timestamp: start}
}

func newRunner(t *testing.T, opts runner.Options) *runner.Runner {
	t.Helper()
	if opts.Target.Addr == "" {
		opts.Target = testTarget
	}
	r, err := runner.New(opts)
	if err != nil {
		t.Fatalf("runner.New() error = %v", err)
	}
	return r
}

func assertAccounting(t *testing.T, report metrics.Report) {
	t.Helper()
	if report.Successes+report.Failures != report.Attempts {
		t.Fatalf("successes %d + failures %d != attempts %d", report.Successes, report.Failures, report.Attempts)
	}
}

// TestRunnerRespectsCount ensures the count limit stops execution exactly.
func TestRunnerRespectsCount(t *testing.T) {
	w := &fakeWriter{latency: time.Millisecond}
	r := newRunner(t, runner.Options{
		Concurrency: 4,
		Policy:      runner.NewCountPolicy(25),
		Writer:      w,
		Payload:     []byte("ping"),
	})
	report := r.Run(context.Background())
	if report.Attempts != 25 {
		t.Fatalf("expected 25 attempts, got %d", report.Attempts)
	}
	if w.calls.Load() != 25 {
		t.Fatalf("expected writer called 25 times, got %d", w.calls.Load())
	}
	if report.BytesWritten != 100 {
		t.Fatalf("expected 100 bytes written, got %d", report.BytesWritten)
	}
	if report.Cancelled {
		t.Fatal("run should not be marked cancelled")
	}
	if report.Target != "tcp://127.0.0.1:5000" || report.Concurrency != 4 {
		t.Fatalf("unexpected report identity %q/%d", report.Target, report.Concurrency)
	}
	assertAccounting(t, report)
}

func TestRunnerCountNeverExceeded(t *testing.T) {
	for _, k := range []int{1, 3, 16, 64} {
		w := &fakeWriter{}
		r := newRunner(t, runner.Options{
			Concurrency: k,
			Policy:      runner.NewCountPolicy(10),
			Writer:      w,
		})
		report := r.Run(context.Background())
		if report.Attempts != 10 || w.calls.Load() != 10 {
			t.Fatalf("k=%d: attempts=%d calls=%d, want 10", k, report.Attempts, w.calls.Load())
		}
	}
}

func TestRunnerZeroCount(t *testing.T) {
	w := &fakeWriter{}
	r := newRunner(t, runner.Options{
		Concurrency: 8,
		Policy:      runner.NewCountPolicy(0),
		Writer:      w,
	})
	report := r.Run(context.Background())
	if report.Attempts != 0 || w.calls.Load() != 0 {
		t.Fatalf("expected no attempts, got %d (calls %d)", report.Attempts, w.calls.Load())
	}
}

// TestRunnerHonorsDuration ensures the deadline stops workers.
func TestRunnerHonorsDuration(t *testing.T) {
	w := &fakeWriter{latency: 5 * time.Millisecond}
	r := newRunner(t, runner.Options{
		Concurrency: 10,
		Policy:      runner.NewDeadlinePolicy(50 * time.Millisecond),
		Writer:      w,
	})
	start := time.Now()
	report := r.Run(context.Background())
	elapsed := time.Since(start)
	if elapsed < 50*time.Millisecond || elapsed > 250*time.Millisecond {
		// allow some scheduling fudge but not extremely off
		t.Fatalf("duration enforcement off: %s", elapsed)
	}
	if report.Elapsed <= 0 {
		t.Fatalf("report elapsed not recorded")
	}
	if report.Attempts <= 0 {
		t.Fatalf("expected some writes executed")
	}
	assertAccounting(t, report)
}

func TestRunnerBoundsInFlightWrites(t *testing.T) {
	w := &fakeWriter{latency: 10 * time.Millisecond}
	r := newRunner(t, runner.Options{
		Concurrency: 4,
		Policy:      runner.NewCountPolicy(40),
		Writer:      w,
	})
	r.Run(context.Background())
	if got := w.maxFlight.Load(); got > 4 {
		t.Fatalf("observed %d concurrent writes, limit is 4", got)
	}
	if got := w.maxFlight.Load(); got < 2 {
		t.Fatalf("expected workers to overlap, max in flight was %d", got)
	}
}

func TestRunnerAccountsFailuresByKind(t *testing.T) {
	w := &fakeWriter{failEvery: 3}
	r := newRunner(t, runner.Options{
		Concurrency: 3,
		Policy:      runner.NewCountPolicy(30),
		Writer:      w,
	})
	report := r.Run(context.Background())
	if report.Attempts != 30 || report.Failures != 10 || report.Successes != 20 {
		t.Fatalf("unexpected counts %+v", report)
	}
	if got := report.Errors[string(transport.KindConnectionRefused)]; got != 10 {
		t.Fatalf("expected 10 connection_refused, got %d (%v)", got, report.Errors)
	}
	assertAccounting(t, report)
}

// TestRunnerCancellationUnblocksWorkers ensures a cancelled run returns even
// when every worker is stuck in a write.
func TestRunnerCancellationUnblocksWorkers(t *testing.T) {
	w := &fakeWriter{latency: time.Hour}
	r := newRunner(t, runner.Options{
		Concurrency: 5,
		Policy:      runner.NewDeadlinePolicy(time.Hour),
		Writer:      w,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan metrics.Report, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case report := <-done:
		if !report.Cancelled {
			t.Fatal("expected report marked cancelled")
		}
		if report.Attempts != 5 {
			t.Fatalf("expected the 5 in-flight writes to be recorded, got %d", report.Attempts)
		}
		if got := report.Errors[string(transport.KindCancelled)]; got != 5 {
			t.Fatalf("expected 5 cancelled failures, got %d", got)
		}
		assertAccounting(t, report)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not return after cancellation")
	}
}

func TestRunnerCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &fakeWriter{}
	r := newRunner(t, runner.Options{
		Concurrency: 2,
		Policy:      runner.NewCountPolicy(100),
		Writer:      w,
	})
	report := r.Run(ctx)
	if report.Attempts != 0 || w.calls.Load() != 0 {
		t.Fatalf("expected no writes, got %d", report.Attempts)
	}
	if !report.Cancelled {
		t.Fatal("expected cancelled report")
	}
}

// TestRateLimiterCapsThroughput ensures the rate limiter restricts writes per second.
func TestRateLimiterCapsThroughput(t *testing.T) {
	w := &fakeWriter{}
	rateLimit := 100 // writes per second theoretical maximum
	duration := 100 * time.Millisecond
	r := newRunner(t, runner.Options{
		Concurrency:    20,
		Policy:         runner.NewDeadlinePolicy(duration),
		RatePerSecond:  rateLimit,
		Writer:         w,
		LimiterFactory: func(rps int) *rate.Limiter { return rate.NewLimiter(rate.Limit(rps), 1) },
	})
	report := r.Run(context.Background())
	// expected upper bound ~ rateLimit * (duration seconds)
	maxExpected := int(float64(rateLimit) * (float64(duration) / float64(time.Second)) * 1.20) // 20% slack
	if int(report.Attempts) > maxExpected {
		t.Fatalf("rate limiter exceeded: total=%d max=%d", report.Attempts, maxExpected)
	}
	if w.calls.Load() != report.Attempts {
		t.Fatalf("calls mismatch: %d vs %d", w.calls.Load(), report.Attempts)
	}
}

func TestPoissonArrivalPacesWrites(t *testing.T) {
	w := &fakeWriter{}
	r := newRunner(t, runner.Options{
		Concurrency:    4,
		Policy:         runner.NewCountPolicy(5),
		RatePerSecond:  100,
		ArrivalModel:   runner.ArrivalModelPoisson,
		PoissonSampler: func() float64 { return 1 },
		Writer:         w,
	})
	start := time.Now()
	report := r.Run(context.Background())
	if report.Attempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", report.Attempts)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("poisson pacing too fast: %s", elapsed)
	}
}

func TestNewRejectsInvalidConcurrency(t *testing.T) {
	for _, k := range []int{0, -1} {
		_, err := runner.New(runner.Options{
			Concurrency: k,
			Policy:      runner.NewCountPolicy(1),
			Writer:      &fakeWriter{},
			Target:      testTarget,
		})
		var cfgErr *runner.ConfigurationError
		if !errors.As(err, &cfgErr) || !errors.Is(err, runner.ErrInvalidConcurrency) {
			t.Fatalf("concurrency %d: expected ConfigurationError, got %v", k, err)
		}
	}
}

func TestRunnerUsesProvidedCollector(t *testing.T) {
	c := metrics.NewCollector()
	r := newRunner(t, runner.Options{
		Concurrency: 2,
		Policy:      runner.NewCountPolicy(6),
		Writer:      &fakeWriter{},
		Collector:   c,
	})
	if r.Collector() != c {
		t.Fatal("runner should record into the provided collector")
	}
	report := r.Run(context.Background())
	if report.RunID == "" || report.RunID != c.RunID() {
		t.Fatalf("report run id %q does not match collector %q", report.RunID, c.RunID())
	}
}
