// Package runner provides the write engine for gn.
//
// A [Runner] starts exactly Options.Concurrency workers. Each worker loops:
// optional pacing, then [StoppingPolicy.Acquire], then one
// transport.Writer.Write, then records the outcome in a metrics.Collector.
// Workers stop when the policy is exhausted or the context is cancelled, and
// Run folds everything recorded into a metrics.Report.
//
// # Basic Usage
//
//	policy, err := runner.NewPolicy(1000, true, 0)
//	if err != nil {
//		return err
//	}
//	r, err := runner.New(runner.Options{
//		Concurrency: 10,
//		Policy:      policy,
//		Writer:      writer,
//		Target:      target,
//		Payload:     []byte("ping"),
//	})
//	if err != nil {
//		return err
//	}
//	report := r.Run(ctx)
//
// # Stopping Policies
//
//   - [CountPolicy]: a fixed number of writes, reserved with compare-and-swap
//   - [DeadlinePolicy]: writes until a wall-clock deadline
//
// Exactly one of the two is active per run; [NewPolicy] rejects both and
// neither with a [ConfigurationError].
//
// # Rate Limiting & Arrival Models
//
// RatePerSecond caps writes across all workers:
//   - [ArrivalModelUniform]: writes at fixed intervals
//   - [ArrivalModelPoisson]: exponentially distributed gaps
//
// # Middleware
//
// [WithLogging] wraps a writer and reports failed writes to a [FailureLogger].
package runner
