// Eventflow - observability event pipeline.
// Moves logs, metrics, and traces from sources through transforms to sinks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eventflow/eventflow/pkg/codec"
	"github.com/eventflow/eventflow/pkg/sinks"
	"github.com/eventflow/eventflow/pkg/sources"
	"github.com/eventflow/eventflow/pkg/topology"
	"github.com/eventflow/eventflow/pkg/transform"
	"github.com/eventflow/eventflow/pkg/tui"

	_ "github.com/eventflow/eventflow/pkg/transform/pipelines"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// CLI flags
var (
	configPath string
	logLevel   string
	quiet      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "eventflow",
	Short: "Eventflow - route observability events from sources to sinks",
	Long: `Eventflow runs event topologies: sources produce logs, metrics, and
traces, transforms reshape and route them, sinks deliver them.

Topologies are yaml files. See 'eventflow validate' to check one and
'eventflow run' to execute it.`,
	Version: fmt.Sprintf("%s (%s)", version, commit),
}

var validateCmd = &cobra.Command{
	Use:   "validate [topology files]",
	Short: "Check topology files without running them",
	Long: `Parse, expand, and validate one or more topology files.

Exits non-zero on the first invalid file.

Examples:
  eventflow validate topology.yaml
  eventflow validate staging.yaml production.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered component types",
	RunE:  runList,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress banners and summaries")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(benchCmd)
}

// newLogger builds the process logger. Structured json output, level from
// the --log-level flag.
func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func runValidate(cmd *cobra.Command, args []string) error {
	for _, path := range args {
		cfg, err := topology.Load(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		tui.PrintValid(path)
		if !quiet {
			tui.PrintTopology(summarize(path, cfg))
		}
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	tui.PrintComponentList("SOURCES", sources.ConfigTypes())
	tui.PrintComponentList("TRANSFORMS", transform.ConfigTypes())
	tui.PrintComponentList("SINKS", sinks.ConfigTypes())
	tui.PrintComponentList("CODECS", codec.Names())
	return nil
}

// summarize flattens a parsed topology for display.
func summarize(path string, cfg *topology.Config) tui.TopologySummary {
	s := tui.TopologySummary{
		Path:       path,
		Sources:    make(map[string]string),
		Transforms: make(map[string][]string),
		Sinks:      make(map[string][]string),
	}
	for name, node := range cfg.Sources {
		s.Sources[name] = node.Config.ComponentName()
	}
	for name, node := range cfg.Transforms {
		s.Transforms[name] = node.Inputs
	}
	for name, node := range cfg.Sinks {
		s.Sinks[name] = node.Inputs
	}
	return s
}
