package output

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/torosent/gn/internal/metrics"
)

const historyLockRetry = 50 * time.Millisecond

// AppendHistory appends report as one JSON line to path. Concurrent gn
// processes serialize on an advisory lock next to the file.
func AppendHistory(ctx context.Context, path string, report metrics.Report) error {
	line, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, historyLockRetry)
	if err != nil {
		return fmt.Errorf("lock history file: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock history file: %s is busy", path)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("append history: %w", err)
	}
	return f.Close()
}

// ReadHistory returns every report stored in path, oldest first. A missing
// file yields no reports.
func ReadHistory(ctx context.Context, path string) ([]metrics.Report, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryRLockContext(ctx, historyLockRetry)
	if err != nil {
		return nil, fmt.Errorf("lock history file: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("lock history file: %s is busy", path)
	}
	defer lock.Unlock()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	var reports []metrics.Report
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var r metrics.Report
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("history line %d: %w", lineNo, err)
		}
		reports = append(reports, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return reports, nil
}

// PrintHistory prints one summary line per stored run.
func PrintHistory(w io.Writer, reports []metrics.Report) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	fmt.Fprintf(w, "%-26s  %-28s  %8s  %8s  %8s  %10s  %12s\n",
		"RUN ID", "TARGET", "WRITES", "FAILED", "SUCCESS", "P99 (ms)", "BYTES")
	for _, r := range reports {
		fmt.Fprintf(w, "%-26s  %-28s  %8d  %8d  %7.2f%%  %10.2f  %12d\n",
			r.RunID, r.Target, r.Attempts, r.Failures, r.SuccessRate, r.P99LatencyMs, r.BytesWritten)
	}
}
