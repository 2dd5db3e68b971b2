package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/healthmonitor/health"
)

func newCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the quick checks once and print ok or the first error",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mon := health.NewMonitor(health.NewStore(a.cfg.Phase()), a.cfg.Checks())
			if err := mon.QuickCheck(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "error: %v\n", err)
				return &exitError{code: 1}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
