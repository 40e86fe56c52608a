package main

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eventflow/eventflow/pkg/acks"
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/event"
	"github.com/eventflow/eventflow/pkg/sources"
	"github.com/eventflow/eventflow/pkg/topology"
	"github.com/eventflow/eventflow/pkg/transform"
	"github.com/eventflow/eventflow/pkg/tui"
)

// Bench flags
var (
	benchCount     int64
	benchBatchSize int
	benchVariant   string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure pipeline throughput with synthetic events",
	Long: `Run a synthetic source through a representative transform into a
counting sink and report throughput.

Examples:
  eventflow bench --count 1000000
  eventflow bench --count 500000 --variant metrics`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().Int64Var(&benchCount, "count", 1_000_000, "Number of events to push through")
	benchCmd.Flags().IntVar(&benchBatchSize, "batch-size", 256, "Events per batch")
	benchCmd.Flags().StringVar(&benchVariant, "variant", "logs", "Synthetic event variant (logs, metrics)")
}

// countingSink counts delivered events and drives a progress bar.
type countingSink struct {
	received atomic.Int64
	bar      *progressbar.ProgressBar
}

func (s *countingSink) Run(ctx context.Context, in <-chan event.Batch) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-in:
			if !ok {
				return nil
			}
			s.received.Add(int64(batch.Len()))
			if s.bar != nil {
				_ = s.bar.Add(batch.Len())
			}
			batch.Finalize(acks.StatusDelivered)
		}
	}
}

func runBench(cmd *cobra.Command, args []string) error {
	if !quiet {
		tui.PrintBanner(version)
	}

	srcCfg := &sources.DemoConfig{
		Variant:   benchVariant,
		Count:     benchCount,
		BatchSize: benchBatchSize,
	}
	src, err := srcCfg.Build(sources.NewContext())
	if err != nil {
		return err
	}

	enrich, err := (&transform.AddFieldsConfig{
		Fields: map[string]interface{}{"bench": true},
	}).Build(config.NewTransformContext())
	if err != nil {
		return err
	}
	sync, _ := enrich.IntoSync()

	sink := &countingSink{}
	if !quiet {
		sink.bar = tui.ShowProgress(benchCount, "pushing events")
	}

	topo := topology.New(zap.NewNop()).
		AddSource("bench", src).
		AddTransform("enrich", sync, nil, []string{"bench"}).
		AddSink("count", sink, []string{"enrich"})

	start := time.Now()
	if err := topo.Run(cmd.Context()); err != nil {
		return err
	}
	elapsed := time.Since(start)

	if !quiet {
		tui.ClearLine()
	}
	tui.PrintBenchReport(sink.received.Load(), elapsed)
	return nil
}
