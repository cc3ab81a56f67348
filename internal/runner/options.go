package runner

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/gn/internal/metrics"
	"github.com/torosent/gn/internal/transport"
)

// ArrivalModel selects how paced writes are spaced in time.
type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// Options configure the Runner.
type Options struct {
	Concurrency int              // number of worker goroutines, must be >= 1
	Policy      StoppingPolicy   // count or deadline (required)
	Writer      transport.Writer // performs each write (required)
	Target      transport.Target // resolved endpoint (required)
	Payload     []byte           // shared read-only by every worker

	// Collector receives every outcome. A fresh one is created when nil.
	Collector *metrics.Collector

	RatePerSecond  int                         // writes per second across all workers (0 means unpaced)
	ArrivalModel   ArrivalModel                // spacing of paced writes
	RandomSeed     int64                       // seed for the poisson sampler
	PoissonSampler func() float64              // optional injection for tests
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.ArrivalModel == "" {
		o.ArrivalModel = ArrivalModelUniform
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst of one keeps writes evenly spaced under concurrency.
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func (o *Options) validate() error {
	if o.Concurrency < 1 {
		return &ConfigurationError{Option: "concurrency", Err: ErrInvalidConcurrency}
	}
	if o.Policy == nil {
		return &ConfigurationError{Option: "policy", Err: ErrNoPolicy}
	}
	if o.Writer == nil {
		return &ConfigurationError{Option: "writer", Err: ErrNoWriter}
	}
	if o.Target.Addr == "" {
		return &ConfigurationError{Option: "target", Err: ErrNoTarget}
	}
	if o.RatePerSecond < 0 {
		return &ConfigurationError{Option: "rate", Err: ErrInvalidRate}
	}
	switch o.ArrivalModel {
	case ArrivalModelUniform, ArrivalModelPoisson:
	default:
		return &ConfigurationError{Option: "arrival model", Err: ErrUnknownArrival}
	}
	return nil
}
