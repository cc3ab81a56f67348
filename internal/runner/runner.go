package runner

import (
	"context"
	"sync"
	"time"

	"github.com/torosent/gn/internal/metrics"
)

// Runner drives a fixed set of workers that write the payload to the target
// until the stopping policy or the context ends the run.
type Runner struct {
	opt     Options
	arrival arrivalController
}

// New validates opt and returns a Runner. Invalid options yield a
// *ConfigurationError and no Runner; nothing has touched the network yet.
func New(opt Options) (*Runner, error) {
	opt.normalize()
	if err := opt.validate(); err != nil {
		return nil, err
	}
	if opt.Collector == nil {
		opt.Collector = metrics.NewCollector()
	}
	return &Runner{opt: opt, arrival: newArrivalController(opt)}, nil
}

// Collector returns the sink outcomes are recorded into.
func (r *Runner) Collector() *metrics.Collector {
	return r.opt.Collector
}

// Run blocks until every worker has stopped and returns the folded report.
// Cancelling ctx stops new writes and aborts in-flight ones; the report is
// still returned, marked Cancelled.
func (r *Runner) Run(ctx context.Context) metrics.Report {
	collector := r.opt.Collector
	collector.Start()
	start := time.Now()
	if s, ok := r.opt.Policy.(interface{ Start(time.Time) }); ok {
		s.Start(start)
	}

	// Pacing waits never outlive a deadline policy.
	paceCtx := ctx
	if d, ok := r.opt.Policy.(interface{ Deadline() time.Time }); ok && !d.Deadline().IsZero() {
		var cancel context.CancelFunc
		paceCtx, cancel = context.WithDeadline(ctx, d.Deadline())
		defer cancel()
	}

	var wg sync.WaitGroup
	wg.Add(r.opt.Concurrency)
	for i := 0; i < r.opt.Concurrency; i++ {
		go func() {
			defer wg.Done()
			r.work(ctx, paceCtx, collector)
		}()
	}
	wg.Wait()

	report := collector.Report(time.Since(start))
	report.Protocol = string(r.opt.Target.Protocol)
	report.Target = r.opt.Target.String()
	report.Concurrency = r.opt.Concurrency
	report.Cancelled = ctx.Err() != nil
	return report
}

func (r *Runner) work(ctx, paceCtx context.Context, collector *metrics.Collector) {
	for ctx.Err() == nil && !r.opt.Policy.Exhausted() {
		// Pace before reserving so a cancelled wait never costs a write.
		if r.arrival != nil {
			if err := r.arrival.Wait(paceCtx); err != nil {
				return
			}
		}
		if ctx.Err() != nil || !r.opt.Policy.Acquire() {
			return
		}
		outcome := r.opt.Writer.Write(ctx, r.opt.Target, r.opt.Payload)
		collector.Record(outcome)
	}
}
