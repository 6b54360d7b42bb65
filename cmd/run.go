package cmd

import (
	"context"
	"fmt"

	"github.com/ethpandaops/hilbench/internal/clock"
	"github.com/ethpandaops/hilbench/internal/config"
	"github.com/ethpandaops/hilbench/internal/harness"
	"github.com/ethpandaops/hilbench/internal/report"
	"github.com/ethpandaops/hilbench/internal/scenario"
	"github.com/spf13/cobra"
)

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run [scenario...]",
	Short: "Run scenarios once and report pass/fail",
	Long: `Loads the model, arms protection and runs the named scenarios (all of them when
none are given) in suite order. Every scenario yields exactly one PASS/FAIL line.

The process exits 0 when every scenario passed and 1 otherwise.

Example:
  hilbench run --suite busbar.yaml
  hilbench run Internal_AG External_AG --csv`,
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		suite, err := loadSuite(Logger)
		if err != nil {
			return err
		}

		scenarios, err := selectScenarios(suite, args)
		if err != nil {
			return err
		}

		cfg, err := config.FromEnv()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		return runScenarios(ctx, cfg, suite, scenarios, runOpts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runOpts.csv, "csv", false, "Save a trace CSV per scenario")
	runCmd.Flags().StringVar(&runOpts.captureDir, "capture-dir", "", "Directory for trace CSV files")
	runCmd.Flags().StringVar(&runOpts.runID, "run-id", "", "Run identifier stamped on every outcome (random when empty)")
}

// runScenarios runs scenarios once with the reporter and sinks attached.
func runScenarios(
	ctx context.Context,
	cfg *config.AppConfig,
	suite *scenario.Suite,
	scenarios []scenario.Scenario,
	opts runOptions,
) error {
	clk := clock.Real{}
	runnerOpts := opts.apply(suite, cfg)

	collector := report.NewCollector(Logger, clk)
	if err := collector.Start(ctx); err != nil {
		return err
	}
	defer func() {
		_ = collector.Stop()
	}()

	sinks := startSinks(ctx, Logger, cfg)
	defer func() {
		if err := sinks.Stop(); err != nil {
			Logger.WithError(err).Warn("failed to stop sinks")
		}
	}()

	simulator, closeSim, err := openSimulator(ctx, Logger, cfg, suite, clk)
	if err != nil {
		return err
	}
	defer closeSim()

	formatter := newFormatter(collector, suite)
	runnerOpts.Observers = append([]harness.Observer{collector, sinks}, progressObservers(formatter)...)

	formatter.PrintPhase(fmt.Sprintf("Running %d scenario(s)", len(scenarios)))

	runErr := harness.WithSession(ctx, Logger, simulator, suite, clk, func(ctx context.Context, s *harness.Session) error {
		r := harness.NewRunner(Logger, s, runnerOpts)
		Logger.WithField("run_id", r.RunID()).Info("Starting run")

		_, err := r.RunAll(ctx, scenarios)

		return err
	})
	if runErr != nil {
		Logger.WithError(runErr).Debug("Run aborted")
		formatter.PrintError("Run aborted", runErr)
		collector.RecordFatal(runErr)
	}

	return finishReport(formatter, collector)
}
