package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eventflow/eventflow/pkg/lifecycle"
	"github.com/eventflow/eventflow/pkg/telemetry"
	"github.com/eventflow/eventflow/pkg/topology"
	"github.com/eventflow/eventflow/pkg/tui"
)

var drainTimeout time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a topology until interrupted or its sources are exhausted",
	Long: `Run a topology file. SIGINT and SIGTERM trigger a graceful drain:
in-flight batches get up to --drain-timeout to finish before the process
exits.

Examples:
  eventflow run -c topology.yaml
  eventflow run -c topology.yaml --drain-timeout 10s`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "Topology file path (required)")
	runCmd.Flags().DurationVar(&drainTimeout, "drain-timeout", 30*time.Second, "How long to drain in-flight batches on shutdown")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := topology.Load(configPath)
	if err != nil {
		return err
	}

	if !quiet {
		tui.PrintBanner(version)
		tui.PrintTopology(summarize(configPath, cfg))
	}

	start := time.Now()
	err = lifecycle.RunWithSignalHandling(logger, drainTimeout, func(ctx context.Context) error {
		if cfg.Telemetry != nil {
			exporter := telemetry.NewOTLPExporter(*cfg.Telemetry)
			shutdown, err := exporter.Init(ctx)
			if err != nil {
				return fmt.Errorf("initializing telemetry: %w", err)
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(flushCtx); err != nil {
					logger.Warn("telemetry shutdown failed", zap.Error(err))
				}
			}()
		}

		topo, err := topology.Build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer topo.Close()

		logger.Info("topology started",
			zap.String("config", configPath),
			zap.Int("sources", len(cfg.Sources)),
			zap.Int("transforms", len(cfg.Transforms)),
			zap.Int("sinks", len(cfg.Sinks)))

		return topo.Run(ctx)
	})

	if !quiet {
		tui.PrintRunReport(tui.RunReport{Duration: time.Since(start), Err: err})
	}
	return err
}
