package metrics

import "time"

// Report is the aggregate of every write outcome of one run.
type Report struct {
	RunID       string `json:"run_id" yaml:"run_id"`
	Protocol    string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Target      string `json:"target,omitempty" yaml:"target,omitempty"`
	Concurrency int    `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	Cancelled   bool   `json:"cancelled" yaml:"cancelled"`

	Attempts     int64   `json:"attempts" yaml:"attempts"`
	Successes    int64   `json:"successes" yaml:"successes"`
	Failures     int64   `json:"failures" yaml:"failures"`
	BytesWritten int64   `json:"bytes_written" yaml:"bytes_written"`
	SuccessRate  float64 `json:"success_rate" yaml:"success_rate"` // percent
	WritesPerSec float64 `json:"writes_per_sec" yaml:"writes_per_sec"`
	BytesPerSec  float64 `json:"bytes_per_sec" yaml:"bytes_per_sec"`

	Elapsed     time.Duration `json:"-" yaml:"-"`
	MinLatency  time.Duration `json:"-" yaml:"-"`
	MaxLatency  time.Duration `json:"-" yaml:"-"`
	MeanLatency time.Duration `json:"-" yaml:"-"`
	P50Latency  time.Duration `json:"-" yaml:"-"`
	P90Latency  time.Duration `json:"-" yaml:"-"`
	P95Latency  time.Duration `json:"-" yaml:"-"`
	P99Latency  time.Duration `json:"-" yaml:"-"`

	// JSON-friendly millisecond fields.
	ElapsedMs     float64 `json:"elapsed_ms" yaml:"elapsed_ms"`
	MinLatencyMs  float64 `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs  float64 `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms" yaml:"p95_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms" yaml:"p99_latency_ms"`

	// Errors counts failures by error kind.
	Errors map[string]int64 `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func (r *Report) fillMillis() {
	r.ElapsedMs = millis(r.Elapsed)
	r.MinLatencyMs = millis(r.MinLatency)
	r.MaxLatencyMs = millis(r.MaxLatency)
	r.MeanLatencyMs = millis(r.MeanLatency)
	r.P50LatencyMs = millis(r.P50Latency)
	r.P90LatencyMs = millis(r.P90Latency)
	r.P95LatencyMs = millis(r.P95Latency)
	r.P99LatencyMs = millis(r.P99Latency)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
