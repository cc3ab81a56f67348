package main

import (
	"github.com/spf13/cobra"

	"github.com/torosent/gn/internal/output"
)

func newHistoryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history <report-file>",
		Short: "List runs recorded with write --report-file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := output.ReadHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			output.PrintHistory(a.out, reports)
			return nil
		},
	}
}
