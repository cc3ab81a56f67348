// Package dashboard renders a live terminal view of a running write test.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/gn/internal/clientmetrics"
	"github.com/torosent/gn/internal/metrics"
	"github.com/torosent/gn/internal/output"
)

// TestConfig holds run parameters for display.
type TestConfig struct {
	Target       string        // proto://host:port
	Protocol     string        // tcp or udp
	Concurrency  int           // Number of concurrent writers
	Count        int64         // Total writes (when CountSet)
	CountSet     bool          // Count is the stopping condition
	Duration     time.Duration // Run duration (when Count is not set)
	Rate         int           // Writes per second (0 = unlimited)
	ArrivalModel string        // uniform or poisson
	Timeout      time.Duration // Per-write timeout
	PayloadSize  int           // Bytes per write
	ConfigFile   string        // Path to config file if used
}

const sparklineWidth = 100

// Dashboard renders a live terminal UI for write metrics.
type Dashboard struct {
	collector    *metrics.Collector
	sockets      *clientmetrics.ClientMetrics
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid             *ui.Grid
	throughputSpark  *widgets.SparklineGroup
	latencySpark     *widgets.SparklineGroup
	latencyPara      *widgets.Paragraph
	progressGauge    *widgets.Gauge
	errorList        *widgets.List
	summaryPara      *widgets.Paragraph
	metricsPara      *widgets.Paragraph
	socketPara       *widgets.Paragraph
	peakWritesPerSec float64
	testConfig       TestConfig
}

// New initializes the terminal and creates a Dashboard. sockets may be nil.
func New(collector *metrics.Collector, sockets *clientmetrics.ClientMetrics, cfg TestConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	d := newDashboard(collector, sockets, cfg, shutdownFunc)
	d.setupGrid()
	return d, nil
}

func newDashboard(collector *metrics.Collector, sockets *clientmetrics.ClientMetrics, cfg TestConfig, shutdownFunc func()) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		collector:    collector,
		sockets:      sockets,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		testConfig:   cfg,
	}
	d.initWidgets()
	return d
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	throughput := widgets.NewSparkline()
	throughput.Title = "writes/s"
	throughput.LineColor = ui.ColorBlue
	throughput.Data = []float64{0}
	d.throughputSpark = widgets.NewSparklineGroup(throughput)
	d.throughputSpark.Title = "Throughput"
	d.throughputSpark.BorderStyle.Fg = ui.ColorCyan

	latency := widgets.NewSparkline()
	latency.Title = "p99 (ms)"
	latency.LineColor = ui.ColorGreen
	latency.Data = []float64{0}
	d.latencySpark = widgets.NewSparklineGroup(latency)
	d.latencySpark.Title = "Real-time Latency"
	d.latencySpark.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Stats"
	d.latencyPara.Text = "Min: 0ms\nMean: 0ms\nP50: 0ms\nP90: 0ms\nP99: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Progress"
	d.progressGauge.Percent = 0
	d.progressGauge.BarColor = ui.ColorBlue
	d.progressGauge.BorderStyle.Fg = ui.ColorCyan
	d.progressGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.errorList = widgets.NewList()
	d.errorList.Title = "Errors"
	d.errorList.Rows = []string{"No failures"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Test Summary"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Metrics"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan

	d.socketPara = widgets.NewParagraph()
	d.socketPara.Title = "Sockets"
	d.socketPara.Text = "No socket data"
	d.socketPara.TextStyle = ui.NewStyle(ui.ColorGreen)
	d.socketPara.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.18,
			ui.NewCol(0.5, d.progressGauge),
			ui.NewCol(0.5, d.metricsPara),
		),
		ui.NewRow(0.24,
			ui.NewCol(0.65, d.throughputSpark),
			ui.NewCol(0.35, d.socketPara),
		),
		ui.NewRow(0.24,
			ui.NewCol(0.65, d.latencySpark),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.20,
			ui.NewCol(1.0, d.errorList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop() cancels the context once the runner has drained.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update samples the collector and refreshes widget data.
func (d *Dashboard) update() {
	d.collector.Snapshot()
	report := d.collector.Report(d.collector.Elapsed())
	history := d.collector.History()
	sockets := d.sockets.Snapshot()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.apply(report, history, sockets)
}

// apply copies one sample into the widgets. Callers hold d.mu.
func (d *Dashboard) apply(report metrics.Report, history []metrics.DataPoint, sockets clientmetrics.Snapshot) {
	if series := throughputSeries(history, sparklineWidth); len(series) > 0 {
		d.throughputSpark.Sparklines[0].Data = series
	}
	if series := latencySeries(history, sparklineWidth); len(series) > 0 {
		d.latencySpark.Sparklines[0].Data = series
		d.latencySpark.Title = fmt.Sprintf(
			"Real-time Latency | P99: %.2fms | Min: %.2fms | Max: %.2fms",
			report.P99LatencyMs,
			report.MinLatencyMs,
			report.MaxLatencyMs,
		)
	}
	if report.WritesPerSec > d.peakWritesPerSec {
		d.peakWritesPerSec = report.WritesPerSec
	}
	d.throughputSpark.Title = fmt.Sprintf("Throughput | %.1f writes/s | peak %.1f | %s/s",
		report.WritesPerSec, d.peakWritesPerSec, output.FormatBytes(report.BytesPerSec))

	percent := progressPercent(d.testConfig, report)
	d.progressGauge.Percent = percent
	d.progressGauge.Label = fmt.Sprintf("%d%% | %d writes", percent, report.Attempts)

	d.summaryPara.Text = fmt.Sprintf(
		"Target: %s\n%s\nElapsed: %s | Writes: %d | Success Rate: %.1f%%",
		d.testConfig.Target,
		formatTestParams(d.testConfig),
		report.Elapsed.Round(time.Second),
		report.Attempts,
		report.SuccessRate,
	)

	d.metricsPara.Text = fmt.Sprintf(
		"Total Writes:      %d\nSuccessful:        %d\nFailed:            %d\nWrites/s:          %.2f\nSuccess Rate:      %.1f%%\nBytes Written:     %s",
		report.Attempts,
		report.Successes,
		report.Failures,
		report.WritesPerSec,
		report.SuccessRate,
		output.FormatBytes(float64(report.BytesWritten)),
	)

	d.latencyPara.Text = fmt.Sprintf(
		"Min:  %.2fms\nMean: %.2fms\nP50:  %.2fms\nP90:  %.2fms\nP99:  %.2fms",
		report.MinLatencyMs,
		report.MeanLatencyMs,
		report.P50LatencyMs,
		report.P90LatencyMs,
		report.P99LatencyMs,
	)

	d.errorList.Rows = formatErrorRows(report.Errors)
	d.socketPara.Text = formatSocketText(sockets)
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func throughputSeries(history []metrics.DataPoint, limit int) []float64 {
	history = tail(history, limit)
	out := make([]float64, 0, len(history))
	for _, dp := range history {
		out = append(out, dp.WritesPerSec)
	}
	return out
}

func latencySeries(history []metrics.DataPoint, limit int) []float64 {
	history = tail(history, limit)
	out := make([]float64, 0, len(history))
	for _, dp := range history {
		out = append(out, float64(dp.P99Latency)/float64(time.Millisecond))
	}
	return out
}

func tail(history []metrics.DataPoint, limit int) []metrics.DataPoint {
	if limit > 0 && len(history) > limit {
		return history[len(history)-limit:]
	}
	return history
}

// progressPercent is attempts over count for count runs and elapsed over
// duration for timed runs.
func progressPercent(cfg TestConfig, report metrics.Report) int {
	var ratio float64
	switch {
	case cfg.CountSet:
		if cfg.Count <= 0 {
			return 100
		}
		ratio = float64(report.Attempts) / float64(cfg.Count)
	case cfg.Duration > 0:
		ratio = float64(report.Elapsed) / float64(cfg.Duration)
	default:
		return 0
	}
	percent := int(ratio * 100)
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}
	return percent
}

func formatErrorRows(errs map[string]int64) []string {
	rows := metrics.FlattenErrorKinds(errs)
	if len(rows) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	maxRows := len(rows)
	if maxRows > 10 {
		maxRows = 10
	}
	formatted := make([]string, 0, maxRows)
	for _, row := range rows[:maxRows] {
		formatted = append(formatted, fmt.Sprintf("[%s](fg:red) (%s) %d", row.Label, row.Kind, row.Count))
	}
	return formatted
}

func formatSocketText(s clientmetrics.Snapshot) string {
	if s == (clientmetrics.Snapshot{}) {
		return "[No socket data](fg:green)"
	}
	lines := []string{
		fmt.Sprintf("[Open:](fg:white) [%d](fg:yellow)", s.SocketsOpened-s.SocketsClosed),
		fmt.Sprintf("[Opened:](fg:white) [%d](fg:yellow)", s.SocketsOpened),
		fmt.Sprintf("[Sent:](fg:white) [%d msgs / %s](fg:yellow)", s.MessagesSent, output.FormatBytes(float64(s.BytesSent))),
		fmt.Sprintf("[Errors:](fg:white) [%d](fg:yellow)", s.Errors),
	}
	return strings.Join(lines, "\n")
}

// formatTestParams formats the run parameters for display.
func formatTestParams(cfg TestConfig) string {
	var parts []string

	if cfg.Protocol != "" {
		parts = append(parts, fmt.Sprintf("Protocol: %s", strings.ToUpper(cfg.Protocol)))
	}

	if cfg.Concurrency > 0 {
		parts = append(parts, fmt.Sprintf("Workers: %d", cfg.Concurrency))
	}

	if cfg.Rate > 0 {
		rate := fmt.Sprintf("Rate: %d/s", cfg.Rate)
		if cfg.ArrivalModel == "poisson" {
			rate += " (poisson)"
		}
		parts = append(parts, rate)
	} else {
		parts = append(parts, "Rate: unlimited")
	}

	if cfg.CountSet {
		parts = append(parts, fmt.Sprintf("Count: %d", cfg.Count))
	} else if cfg.Duration > 0 {
		parts = append(parts, fmt.Sprintf("Duration: %s", cfg.Duration))
	}

	if cfg.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", cfg.Timeout))
	}

	if cfg.PayloadSize > 0 {
		parts = append(parts, fmt.Sprintf("Payload: %s", output.FormatBytes(float64(cfg.PayloadSize))))
	}

	if cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", cfg.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
