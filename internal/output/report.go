package output

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/torosent/gn/internal/metrics"
)

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, report metrics.Report) {
	fmt.Fprintln(w, "\n--- Write Results ---")
	fmt.Fprintf(w, "Run ID:            %s\n", report.RunID)
	if report.Target != "" {
		fmt.Fprintf(w, "Target:            %s\n", report.Target)
	}
	if report.Concurrency > 0 {
		fmt.Fprintf(w, "Concurrency:       %d\n", report.Concurrency)
	}
	fmt.Fprintf(w, "Total Writes:      %d\n", report.Attempts)
	fmt.Fprintf(w, "Successful:        %d\n", report.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", report.Failures)
	fmt.Fprintf(w, "Success Rate:      %.2f%%\n", report.SuccessRate)
	fmt.Fprintf(w, "Duration:          %s\n", report.Elapsed)
	fmt.Fprintf(w, "Writes/sec:        %.2f\n", report.WritesPerSec)
	fmt.Fprintf(w, "Throughput:        %s/s\n", FormatBytes(report.BytesPerSec))
	if report.Cancelled {
		fmt.Fprintln(w, "Interrupted:       yes (partial results)")
	}
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", report.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", report.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", report.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", report.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", report.P90Latency)
	fmt.Fprintf(w, "  P95:             %s\n", report.P95Latency)
	fmt.Fprintf(w, "  P99:             %s\n", report.P99Latency)
	if len(report.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		writeErrorKinds(w, report.Errors, "  ")
	}
	fmt.Fprintf(w, "\nWrote %d bytes\n", report.BytesWritten)
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, report metrics.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, report metrics.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}

func writeErrorKinds(w io.Writer, errs map[string]int64, indent string) {
	for _, row := range metrics.FlattenErrorKinds(errs) {
		fmt.Fprintf(w, "%s%s (%s): %d\n", indent, row.Label, row.Kind, row.Count)
	}
}

// FormatBytes renders a byte count with binary units.
func FormatBytes(n float64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%.0f B", n)
	}
	div, exp := float64(unit), 0
	for v := n / unit; v >= unit && exp < 4; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", n/div, "KMGTP"[exp])
}
