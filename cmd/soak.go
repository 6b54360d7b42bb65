package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/ethpandaops/hilbench/internal/clock"
	"github.com/ethpandaops/hilbench/internal/config"
	"github.com/ethpandaops/hilbench/internal/harness"
	"github.com/ethpandaops/hilbench/internal/observability"
	"github.com/ethpandaops/hilbench/internal/report"
	"github.com/ethpandaops/hilbench/internal/scenario"
	"github.com/ethpandaops/hilbench/internal/sim"
	"github.com/ethpandaops/hilbench/internal/soak"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	soakOpts       runOptions
	soakDuration   time.Duration
	soakInterval   time.Duration
	soakIterations int
	soakMetrics    string
)

var soakCmd = &cobra.Command{
	Use:   "soak [scenario...]",
	Short: "Repeat the suite for a long period",
	Long: `Keeps one simulator session open and repeats the scenarios on a fixed cadence
until the duration elapses or the process is interrupted. Outcomes go to the report,
the configured sinks and the Prometheus endpoint.

Example:
  hilbench soak --duration 24h --interval 5m`,
	RunE: runSoak,
}

func init() {
	rootCmd.AddCommand(soakCmd)

	soakCmd.Flags().DurationVar(&soakDuration, "duration", 24*time.Hour, "How long to keep repeating the suite")
	soakCmd.Flags().DurationVar(&soakInterval, "interval", 5*time.Minute, "Minimum time between suite passes")
	soakCmd.Flags().IntVar(&soakIterations, "iterations", 0, "Stop after this many passes (0 = unlimited)")
	soakCmd.Flags().StringVar(&soakMetrics, "metrics-addr", "", "Prometheus listen address (defaults to HILBENCH_METRICS_ADDR)")
	soakCmd.Flags().BoolVar(&soakOpts.csv, "csv", false, "Save a trace CSV per scenario")
	soakCmd.Flags().StringVar(&soakOpts.captureDir, "capture-dir", "", "Directory for trace CSV files")
	soakCmd.Flags().StringVar(&soakOpts.runID, "run-id", "", "Run identifier stamped on every outcome (random when empty)")
}

func runSoak(_ *cobra.Command, args []string) error {
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

	addr := soakMetrics
	if addr == "" {
		addr = cfg.MetricsAddr
	}

	clk := clock.Real{}
	runnerOpts := soakOpts.apply(suite, cfg)

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

	metrics := observability.NewMetrics()
	formatter := newFormatter(collector, suite)
	runnerOpts.Observers = append([]harness.Observer{collector, sinks, metrics}, progressObservers(formatter)...)

	simulator, closeSim, err := openSimulator(ctx, Logger, cfg, suite, clk)
	if err != nil {
		return err
	}
	defer closeSim()

	formatter.PrintPhase(fmt.Sprintf("Soaking %d scenario(s) every %s for %s", len(scenarios), soakInterval, soakDuration))

	g, gctx := errgroup.WithContext(ctx)
	// The loop ending stops the metrics server.
	loopCtx, stopServer := context.WithCancel(gctx)

	g.Go(func() error {
		return observability.NewServer(Logger, addr, metrics).Run(loopCtx)
	})

	g.Go(func() error {
		defer stopServer()

		runErr := runSoakSession(loopCtx, simulator, suite, scenarios, runnerOpts, clk, metrics)
		if runErr != nil {
			Logger.WithError(runErr).Debug("Soak aborted")
			formatter.PrintError("Soak aborted", runErr)
			metrics.RunAborted()
			collector.RecordFatal(runErr)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	return finishReport(formatter, collector)
}

func runSoakSession(
	ctx context.Context,
	simulator sim.Simulator,
	suite *scenario.Suite,
	scenarios []scenario.Scenario,
	runnerOpts harness.RunnerOptions,
	clk clock.Clock,
	metrics *observability.Metrics,
) error {
	return harness.WithSession(ctx, Logger, simulator, suite, clk, func(ctx context.Context, s *harness.Session) error {
		r := harness.NewRunner(Logger, s, runnerOpts)
		Logger.WithField("run_id", r.RunID()).Info("Starting soak")

		loop := soak.NewLoop(Logger, r, clk, soak.Options{
			Duration:      soakDuration,
			Interval:      soakInterval,
			MaxIterations: soakIterations,
		}, metrics)

		_, err := loop.Run(ctx, scenarios)

		return err
	})
}
