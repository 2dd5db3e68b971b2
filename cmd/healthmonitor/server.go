package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/healthmonitor/health"
	"github.com/jonwraymond/healthmonitor/observe"
	"github.com/jonwraymond/healthmonitor/server"
)

// errAlreadyRunning is returned by server start when our server already
// answers on the configured address.
var errAlreadyRunning = errors.New("server is already running")

func newServerCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Commands related to the web server",
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the web server and the health checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, a)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether the web server is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.client().IsRunning(cmd.Context(), appInfo()) {
				fmt.Fprintln(cmd.OutOrStdout(), "running")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "not running")
			return &exitError{code: 1}
		},
	}

	cmd.AddCommand(startCmd, statusCmd)
	return cmd
}

// runServer serves the status service and runs the monitor until ctx is
// cancelled.
func runServer(ctx context.Context, a *app) error {
	cfg := a.cfg
	info := appInfo()

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	running := a.client().IsRunning(probeCtx, info)
	cancel()
	if running {
		return fmt.Errorf("%w at %s", errAlreadyRunning, cfg.Server.URL())
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe(appName, version))
	if err != nil {
		return fmt.Errorf("failed to set up observability: %w", err)
	}
	logger := obs.Logger()
	defer shutdownObserver(ctx, obs, logger)

	store := health.NewStore(cfg.Phase())
	reg, err := health.RegisterStatusMetrics(obs.Meter(), store)
	if err != nil {
		return err
	}
	defer func() { _ = reg.Unregister() }()

	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return fmt.Errorf("failed to set up check middleware: %w", err)
	}
	mon := health.NewMonitor(store, cfg.Checks(),
		health.WithLogger(logger),
		health.WithMiddleware(mw),
	)

	srv, err := server.New(server.Config{Addr: cfg.Server.ListenAddr()}, store, info, obs)
	if err != nil {
		return err
	}
	ln, err := srv.Listen()
	if err != nil {
		return err
	}

	logger.Debug(ctx, "starting",
		observe.Field{Key: "addr", Value: ln.Addr().String()},
		observe.Field{Key: "phase", Value: cfg.Phase().String()},
		observe.Field{Key: "files", Value: cfg.FileCheck.Files},
		observe.Field{Key: "urls", Value: cfg.URLCheck.URLs},
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, ln)
	})
	g.Go(func() error {
		if err := mon.Start(gctx); err != nil {
			return err
		}
		mon.Wait()
		return nil
	})
	return g.Wait()
}

// shutdownObserver flushes the exporters and reports a failed flush as a
// warning; by then the server has already stopped.
func shutdownObserver(ctx context.Context, obs observe.Observer, logger observe.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := obs.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "observability shutdown failed", observe.Field{Key: "error", Value: err})
	}
}
