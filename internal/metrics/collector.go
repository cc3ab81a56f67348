package metrics

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/oklog/ulid/v2"

	"github.com/torosent/gn/internal/transport"
)

// Collector records per-write outcomes in a thread-safe manner.
type Collector struct {
	mu           sync.Mutex
	hist         *hdrhistogram.Histogram
	successes    int64
	failures     int64
	bytes        int64
	minLatency   time.Duration
	maxLatency   time.Duration
	sumLatency   time.Duration
	errorsByKind map[transport.ErrorKind]int64
	start        time.Time
	runID        string
	history      []DataPoint
}

// DataPoint is one periodic sample used by live views.
type DataPoint struct {
	Timestamp    time.Time
	Attempts     int64
	Failures     int64
	BytesWritten int64
	WritesPerSec float64
	P99Latency   time.Duration
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		hist:         h,
		errorsByKind: make(map[transport.ErrorKind]int64),
		start:        time.Now(),
	}
}

// Start marks the beginning of the run for rate calculations and assigns
// the run ID if none was assigned yet.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
	if c.runID == "" {
		c.runID = ulid.MustNew(ulid.Timestamp(c.start), rand.Reader).String()
	}
}

// RunID returns the identifier assigned by Start.
func (c *Collector) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

// Elapsed returns the time since Start.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// Record folds one write outcome into the aggregate.
func (c *Collector) Record(out transport.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	latency := out.Latency
	if latency > 0 {
		us := latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}
	c.sumLatency += latency

	if c.minLatency == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}

	c.bytes += int64(out.BytesWritten)
	if out.Success {
		c.successes++
		return
	}
	c.failures++
	kind := out.Kind
	if kind == transport.KindNone {
		kind = transport.Classify(out.Err)
		if kind == transport.KindNone {
			kind = transport.KindOther
		}
	}
	c.errorsByKind[kind]++
}

// Report computes the aggregate over everything recorded so far.
func (c *Collector) Report(elapsed time.Duration) Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reportLocked(elapsed)
}

func (c *Collector) reportLocked(elapsed time.Duration) Report {
	total := c.successes + c.failures
	r := Report{
		RunID:        c.runID,
		Attempts:     total,
		Successes:    c.successes,
		Failures:     c.failures,
		BytesWritten: c.bytes,
		MinLatency:   c.minLatency,
		MaxLatency:   c.maxLatency,
	}

	if total > 0 {
		r.MeanLatency = time.Duration(int64(c.sumLatency) / total)
		r.SuccessRate = float64(c.successes) / float64(total) * 100
	}

	if c.hist.TotalCount() > 0 {
		r.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		r.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		r.P95Latency = time.Duration(c.hist.ValueAtQuantile(95)) * time.Microsecond
		r.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	r.Elapsed = elapsed
	if elapsed > 0 {
		r.WritesPerSec = float64(total) / elapsed.Seconds()
		r.BytesPerSec = float64(c.bytes) / elapsed.Seconds()
	}

	if len(c.errorsByKind) > 0 {
		r.Errors = make(map[string]int64, len(c.errorsByKind))
		for k, v := range c.errorsByKind {
			r.Errors[string(k)] = v
		}
	}

	r.fillMillis()
	return r
}

// Snapshot appends a sample of the current state to the history.
func (c *Collector) Snapshot() DataPoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.reportLocked(time.Since(c.start))
	dp := DataPoint{
		Timestamp:    time.Now(),
		Attempts:     r.Attempts,
		Failures:     r.Failures,
		BytesWritten: r.BytesWritten,
		WritesPerSec: r.WritesPerSec,
		P99Latency:   r.P99Latency,
	}
	c.history = append(c.history, dp)
	if len(c.history) > maxHistory {
		c.history = c.history[len(c.history)-maxHistory:]
	}
	return dp
}

// History returns a copy of the recorded samples, oldest first.
func (c *Collector) History() []DataPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DataPoint, len(c.history))
	copy(out, c.history)
	return out
}

const maxHistory = 600
