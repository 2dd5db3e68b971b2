package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/healthmonitor/health"
)

func newStateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Get or set the health state",
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Print the health state and messages; exit 1 when unhealthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := a.client().Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status.String())
			if !status.Healthy() {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	var message string
	setCmd := &cobra.Command{
		Use:       "set <healthy|unhealthy>",
		Short:     "Set the health state",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"healthy", "unhealthy"},
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := health.ParseState(args[0])
			if err != nil {
				return err
			}
			status, err := a.client().SetHealth(cmd.Context(), state, message)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status.String())
			return nil
		},
	}
	setCmd.Flags().StringVarP(&message, "message", "m", "", "Message to append")

	cmd.AddCommand(getCmd, setCmd)
	return cmd
}

func newPhaseCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phase",
		Short: "Get or set the deployment phase",
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Print the deployment phase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := a.client().Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status.Phase.String())
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:       "set <deploying|online>",
		Short:     "Set the deployment phase",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"deploying", "online"},
		RunE: func(cmd *cobra.Command, args []string) error {
			phase, err := health.ParsePhase(args[0])
			if err != nil {
				return err
			}
			status, err := a.client().SetPhase(cmd.Context(), phase)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status.Phase.String())
			return nil
		},
	}

	cmd.AddCommand(getCmd, setCmd)
	return cmd
}
