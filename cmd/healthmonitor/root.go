package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/healthmonitor/client"
	"github.com/jonwraymond/healthmonitor/config"
	"github.com/jonwraymond/healthmonitor/health"
)

const appName = "healthmonitor"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

func appInfo() health.Info {
	return health.Info{Name: appName, Version: version}
}

// app holds state shared by every subcommand.
type app struct {
	configPath string
	envFile    string
	cfg        config.Config
}

func (a *app) client() *client.Client {
	return client.New(a.cfg.Server.URL(), client.WithTimeout(5*time.Second))
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           appName,
		Short:         "Report and aggregate the health of an application",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(a.envFile); err != nil {
				return err
			}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file (default $HEALTHMONITOR_CONFIG)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Path to a .env file loaded before the environment is read")

	root.AddCommand(
		newServerCommand(a),
		newStateCommand(a),
		newPhaseCommand(a),
		newCheckCommand(a),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version)
			return nil
		},
	}
}
