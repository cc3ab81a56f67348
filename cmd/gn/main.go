package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/torosent/gn/internal/config"
	"github.com/torosent/gn/internal/logger"
	"github.com/torosent/gn/internal/output"
)

// Exit codes. Write failures never change the exit code; only bad
// configuration and opted-in thresholds do.
const (
	exitOK               = 0
	exitError            = 1
	exitThresholdsFailed = 2
)

var errThresholdsFailed = errors.New("thresholds failed")

type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

// app carries the global flag values into the subcommands.
type app struct {
	streams
	log config.LogConfig
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], streams{in: os.Stdin, out: os.Stdout, err: os.Stderr})
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, s streams) int {
	root := newRootCommand(&app{streams: s})
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(s.err, "Error: %v\n", err)
		if errors.Is(err, errThresholdsFailed) {
			return exitThresholdsFailed
		}
		return exitError
	}
	return exitOK
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "gn",
		Short:         "Generate TCP/UDP write load and receive it",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.err)
	config.RegisterGlobalFlags(root.PersistentFlags())

	root.AddCommand(
		newWriteCommand(a),
		newServeCommand(a),
		newHistoryCommand(a),
	)
	return root
}

// setup applies the global flags before any subcommand runs.
func (a *app) setup(cmd *cobra.Command) error {
	logCfg, err := config.LoadLog(cmd.Flags())
	if err != nil {
		return err
	}
	if err := logCfg.Validate(); err != nil {
		return err
	}
	a.log = logCfg

	logger.SetOutput(a.err)
	if err := logger.Setup(logCfg.Level, logCfg.Format); err != nil {
		return err
	}
	return config.LoadEnvFile(logCfg.EnvFile, cmd.Flags().Changed("env-file"))
}

func (a *app) colorMode() output.ColorMode {
	return output.ColorMode(a.log.Color)
}
