package main

import (
	"github.com/spf13/cobra"

	"github.com/torosent/gn/internal/config"
	"github.com/torosent/gn/internal/logger"
	"github.com/torosent/gn/internal/server"
	"github.com/torosent/gn/internal/transport"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [flags]",
		Short: "Receive TCP connections or UDP datagrams and print them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewLoader().LoadServe(cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			protocol, err := transport.ParseProtocol(cfg.Protocol)
			if err != nil {
				return err
			}

			srv, err := server.New(server.Options{
				Address:    cfg.Address,
				Protocol:   protocol,
				Mode:       server.Mode(cfg.Mode),
				BufferSize: cfg.BufferSize,
				Out:        a.out,
				Logger:     logger.GetLogger().WithField(logger.FieldMode, cfg.Mode),
			})
			if err != nil {
				return err
			}
			return srv.Serve(cmd.Context())
		},
	}
	config.RegisterServeFlags(cmd.Flags())
	return cmd
}
