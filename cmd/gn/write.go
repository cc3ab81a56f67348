package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/torosent/gn/internal/clientmetrics"
	"github.com/torosent/gn/internal/config"
	"github.com/torosent/gn/internal/dashboard"
	"github.com/torosent/gn/internal/logger"
	"github.com/torosent/gn/internal/metrics"
	"github.com/torosent/gn/internal/output"
	"github.com/torosent/gn/internal/payload"
	"github.com/torosent/gn/internal/runner"
	"github.com/torosent/gn/internal/threshold"
	"github.com/torosent/gn/internal/tracing"
	"github.com/torosent/gn/internal/transport"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func newWriteCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write --host <host:port> [flags] [payload|-]",
		Short: "Write a payload to a TCP or UDP endpoint",
		Long: `Write a payload to a TCP or UDP endpoint, once per fresh socket.

The payload is the positional argument. Without one, or with "-", it is
read from stdin. Stop after --count writes (default 1) or after --duration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader().LoadWrite(cmd.Flags(), args)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return a.runWrite(cmd.Context(), cfg)
		},
	}
	config.RegisterWriteFlags(cmd.Flags())
	return cmd
}

// writePlan is everything resolved before the first socket is opened.
type writePlan struct {
	protocol   transport.Protocol
	target     transport.Target
	policy     runner.StoppingPolicy
	payload    []byte
	thresholds []threshold.Threshold
}

func (a *app) plan(ctx context.Context, cfg *config.WriteConfig) (*writePlan, error) {
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return nil, err
	}
	protocol, err := transport.ParseProtocol(cfg.Protocol)
	if err != nil {
		return nil, err
	}
	policy, err := runner.NewPolicy(cfg.Count, cfg.CountSet, cfg.Duration)
	if err != nil {
		return nil, err
	}
	data, err := payload.Resolve(payload.Source{Literal: cfg.Payload, File: cfg.PayloadFile, Stdin: a.in})
	if err != nil {
		return nil, err
	}
	target, err := transport.ResolveTarget(ctx, cfg.Host, protocol)
	if err != nil {
		return nil, err
	}
	return &writePlan{
		protocol:   protocol,
		target:     target,
		policy:     policy,
		payload:    data,
		thresholds: thresholds,
	}, nil
}

func (a *app) runWrite(ctx context.Context, cfg *config.WriteConfig) error {
	p, err := a.plan(ctx, cfg)
	if err != nil {
		return err
	}

	sockets := clientmetrics.New()
	writer, err := transport.New(p.protocol, transport.Options{Timeout: cfg.Timeout, Metrics: sockets})
	if err != nil {
		return err
	}

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.GetLogger().WithError(err).Warn("Failed to flush trace spans")
		}
	}()
	if tp.Enabled() {
		writer = tracing.WrapWriter(writer, tp.Tracer())
	}
	if cfg.LogErrors {
		writer = runner.WithLogging(writer, newLogFailureLogger(logger.GetLogger()))
	}

	collector := metrics.NewCollector()
	r, err := runner.New(runner.Options{
		Concurrency:   cfg.Concurrency,
		Policy:        p.policy,
		Writer:        writer,
		Target:        p.target,
		Payload:       p.payload,
		Collector:     collector,
		RatePerSecond: cfg.Rate,
		ArrivalModel:  runner.ArrivalModel(cfg.ArrivalModel),
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, sockets, dashboardConfig(cfg, p), cancel)
		if err != nil {
			return err
		}
		dash.Start()
	}

	var progress *output.ProgressReporter
	if !cfg.JSONOutput && !cfg.YAMLOutput && !cfg.Dashboard {
		progress = output.NewProgressReporter(collector, progressInterval, a.err)
		progress.Start()
	}

	logger.GetLogger().WithFields(logrus.Fields{
		logger.FieldTarget: p.target.String(),
		logger.FieldBytes:  len(p.payload),
		"concurrency":      cfg.Concurrency,
	}).Debug("Starting writes")

	report := r.Run(runCtx)

	if dash != nil {
		dash.Stop()
	}
	if progress != nil {
		progress.Stop()
		fmt.Fprintln(a.err)
	}
	if report.Cancelled {
		logger.GetLogger().WithField(logger.FieldRunID, report.RunID).Warn("Interrupted, reporting partial results")
	}

	if err := a.printReport(cfg, report); err != nil {
		return err
	}

	if cfg.ReportFile != "" {
		if err := output.AppendHistory(context.WithoutCancel(ctx), cfg.ReportFile, report); err != nil {
			return err
		}
	}

	return a.checkThresholds(cfg, p.thresholds, report)
}

func (a *app) printReport(cfg *config.WriteConfig, report metrics.Report) error {
	switch {
	case cfg.JSONOutput:
		return output.PrintJSONReport(a.out, report)
	case cfg.YAMLOutput:
		return output.PrintYAMLReport(a.out, report)
	default:
		output.PrintReport(a.out, report)
		return nil
	}
}

// checkThresholds prints threshold results. Machine readable reports keep
// stdout to themselves, so results go to stderr then.
func (a *app) checkThresholds(cfg *config.WriteConfig, thresholds []threshold.Threshold, report metrics.Report) error {
	if len(thresholds) == 0 {
		return nil
	}
	results := threshold.NewEvaluator(thresholds).Evaluate(report)
	w := a.out
	if cfg.JSONOutput || cfg.YAMLOutput {
		w = a.err
	}
	output.PrintThresholdResults(w, results, output.NewColorer(a.colorMode()))
	if failed := threshold.Failed(results); len(failed) > 0 {
		return fmt.Errorf("%d of %d %w", len(failed), len(results), errThresholdsFailed)
	}
	return nil
}

func dashboardConfig(cfg *config.WriteConfig, p *writePlan) dashboard.TestConfig {
	return dashboard.TestConfig{
		Target:       p.target.String(),
		Protocol:     string(p.protocol),
		Concurrency:  cfg.Concurrency,
		Count:        cfg.Count,
		CountSet:     cfg.CountSet,
		Duration:     cfg.Duration,
		Rate:         cfg.Rate,
		ArrivalModel: cfg.ArrivalModel,
		Timeout:      cfg.Timeout,
		PayloadSize:  len(p.payload),
		ConfigFile:   cfg.ConfigFile,
	}
}
