package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittolink/internal/logger"
	"github.com/spf13/cobra"
)

func newServeMetricsCmd(opts *sessionOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve-metrics [BATCH...]",
		Short: "Serve Prometheus metrics while running batches",
		Long: `Start the metrics endpoint (metrics.port), run each BATCH file in
order, then keep serving until interrupted. With gc.enabled set, orphaned
objects are collected every gc.interval while serving.

Metrics are enabled for this command regardless of metrics.enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sessionOpts := *opts
			sessionOpts.metrics = true
			return runSession(ctx, sessionOpts, func(ctx context.Context, s *session) error {
				if s.metrics.Server == nil {
					return errors.New("metrics server not configured")
				}

				if s.cfg.GC.Enabled {
					collector, err := s.newCollector(false)
					if err != nil {
						return err
					}
					collector.Start()
					defer func() {
						stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Metrics.ShutdownTimeout)
						defer cancel()
						if err := collector.Stop(stopCtx); err != nil {
							logger.Warn("garbage collector: %v", err)
						}
					}()
				}

				serverDone := make(chan error, 1)
				go func() { serverDone <- s.metrics.Server.Start(ctx) }()

				for _, path := range args {
					b, err := readBatch(cmd, path)
					if err != nil {
						return err
					}
					if err := applyBatch(ctx, s, b, cmd.OutOrStdout()); err != nil {
						logger.Warn("batch %s: %v", path, err)
					}
				}

				fmt.Fprintf(cmd.OutOrStdout(), "serving metrics on :%d, press Ctrl+C to stop\n", s.metrics.Server.Port())
				return <-serverDone
			})
		},
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
