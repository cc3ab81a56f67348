package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/torosent/gn/internal/metrics"
)

// thresholdPattern matches "metric:aggregate operator value".
var thresholdPattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  // e.g., "write_duration", "write_failed"
	Aggregate string  // e.g., "p95", "p99", "avg", "max", "rate"
	Operator  string  // e.g., "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Evaluator evaluates thresholds against collected metrics.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the provided report.
func (e *Evaluator) Evaluate(report metrics.Report) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		result := e.evaluateOne(t, report)
		results = append(results, result)
	}
	return results
}

func (e *Evaluator) evaluateOne(t Threshold, report metrics.Report) Result {
	actual, err := extractMetricValue(t, report)
	if err != nil {
		return Result{
			Threshold: t,
			Actual:    0,
			Pass:      false,
			Message:   fmt.Sprintf("error: %v", err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value)
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   message,
	}
}

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "write_duration:p95 < 50"     (latency percentile in ms)
// - "write_duration:avg < 20"     (average latency in ms)
// - "write_duration:max < 1000"   (max latency in ms)
// - "write_failed:rate < 0.01"    (failure rate as decimal)
// - "write_failed:count < 10"     (failure count)
// - "writes:rate > 100"           (writes per second)
// - "bytes:count >= 1048576"      (bytes written)
// - "bytes:rate > 1000000"        (bytes per second)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value, e.g., 'write_duration:p95 < 50')", s)
	}

	metric := matches[1]
	aggregate := matches[2]
	operator := matches[3]
	valueStr := matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	// Validate metric
	if !isValidMetric(metric) {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: write_duration, write_failed, writes, bytes)", metric)
	}

	// Validate aggregate
	if !isValidAggregate(aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate: %q (supported: p50, p90, p95, p99, avg, min, max, rate, count)", aggregate)
	}

	// Validate operator
	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

func isValidMetric(metric string) bool {
	valid := []string{"write_duration", "write_failed", "writes", "bytes"}
	for _, v := range valid {
		if metric == v {
			return true
		}
	}
	return false
}

func isValidAggregate(aggregate string) bool {
	valid := []string{"p50", "p90", "p95", "p99", "avg", "min", "max", "rate", "count"}
	for _, v := range valid {
		if aggregate == v {
			return true
		}
	}
	return false
}

func isValidOperator(operator string) bool {
	valid := []string{"<", "<=", ">", ">=", "=="}
	for _, v := range valid {
		if operator == v {
			return true
		}
	}
	return false
}

func extractMetricValue(t Threshold, report metrics.Report) (float64, error) {
	switch t.Metric {
	case "write_duration":
		return extractLatencyMetric(t.Aggregate, report)
	case "write_failed":
		return extractFailureMetric(t.Aggregate, report)
	case "writes":
		return extractWriteMetric(t.Aggregate, report)
	case "bytes":
		return extractBytesMetric(t.Aggregate, report)
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

func extractLatencyMetric(aggregate string, report metrics.Report) (float64, error) {
	switch aggregate {
	case "p50":
		return report.P50LatencyMs, nil
	case "p90":
		return report.P90LatencyMs, nil
	case "p95":
		return report.P95LatencyMs, nil
	case "p99":
		return report.P99LatencyMs, nil
	case "avg", "mean":
		return report.MeanLatencyMs, nil
	case "min":
		return report.MinLatencyMs, nil
	case "max":
		return report.MaxLatencyMs, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for write_duration", aggregate)
	}
}

func extractFailureMetric(aggregate string, report metrics.Report) (float64, error) {
	switch aggregate {
	case "count":
		return float64(report.Failures), nil
	case "rate":
		if report.Attempts == 0 {
			return 0, nil
		}
		return float64(report.Failures) / float64(report.Attempts), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for write_failed (use 'count' or 'rate')", aggregate)
	}
}

func extractWriteMetric(aggregate string, report metrics.Report) (float64, error) {
	switch aggregate {
	case "count":
		return float64(report.Attempts), nil
	case "rate":
		return report.WritesPerSec, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for writes (use 'count' or 'rate')", aggregate)
	}
}

func extractBytesMetric(aggregate string, report metrics.Report) (float64, error) {
	switch aggregate {
	case "count":
		return float64(report.BytesWritten), nil
	case "rate":
		return report.BytesPerSec, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for bytes (use 'count' or 'rate')", aggregate)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Pass {
			failed = append(failed, r)
		}
	}
	return failed
}
