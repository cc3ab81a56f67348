// Package metrics aggregates write outcomes into a run report.
//
// # Collector
//
// The central [Collector] type aggregates outcomes from all workers:
//
//	collector := metrics.NewCollector()
//	collector.Start() // assigns the run ID and marks the start time
//
//	collector.Record(outcome)
//
//	report := collector.Report(elapsed)
//
// # Report
//
// [Report] carries attempt, success and failure counts, bytes written,
// latency percentiles from an HDR histogram (P50, P90, P95, P99), writes and
// bytes per second, the success percentage and failures by error kind.
//
// # Time-Series Data
//
// [Collector.Snapshot] samples the current state for live views and
// [Collector.History] returns the samples.
//
// # Thread Safety
//
// A single mutex guards the collector. Record is safe to call from every
// worker concurrently.
package metrics
