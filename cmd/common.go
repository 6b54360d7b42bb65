package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethpandaops/hilbench/internal/clock"
	"github.com/ethpandaops/hilbench/internal/config"
	"github.com/ethpandaops/hilbench/internal/harness"
	"github.com/ethpandaops/hilbench/internal/report"
	"github.com/ethpandaops/hilbench/internal/scenario"
	"github.com/ethpandaops/hilbench/internal/sim"
	"github.com/ethpandaops/hilbench/internal/sim/bridge"
	"github.com/ethpandaops/hilbench/internal/sim/virtual"
	"github.com/ethpandaops/hilbench/internal/store"
	"github.com/sirupsen/logrus"
)

// signalContext is cancelled on SIGINT or SIGTERM. Teardown still runs.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func loadSuite(log logrus.FieldLogger) (*scenario.Suite, error) {
	suite, err := scenario.NewLoader(log).Load(suiteFile)
	if err != nil {
		return nil, fmt.Errorf("loading suite: %w", err)
	}

	return suite, nil
}

// openSimulator connects the configured backend. The returned close function
// releases the transport and is safe to call once.
func openSimulator(
	ctx context.Context,
	log logrus.FieldLogger,
	cfg *config.AppConfig,
	suite *scenario.Suite,
	clk clock.Clock,
) (sim.Simulator, func(), error) {
	switch cfg.Backend {
	case config.BackendBridge:
		client, err := bridge.Dial(ctx, log, cfg.BridgeURL, bridge.Options{
			Timeout:     cfg.BridgeTimeout,
			SafeDevices: cfg.SafeDevices,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to simulator bridge: %w", err)
		}

		return client, func() {
			if err := client.Close(); err != nil {
				log.WithError(err).Debug("error closing bridge")
			}
		}, nil
	default:
		log.Warn("Using the virtual plant; set HILBENCH_BACKEND=bridge to drive real hardware")
		return virtual.New(log, clk, suite), func() {}, nil
	}
}

// startSinks starts every configured sink. A sink that fails to start is
// logged and left out so results are never lost to the console.
func startSinks(ctx context.Context, log logrus.FieldLogger, cfg *config.AppConfig) *store.Multi {
	var sinks []store.Sink

	if cfg.ClickhouseEnabled() {
		s := store.NewClickhouseSink(log, store.ClickhouseConfigFromApp(cfg))
		if err := s.Start(ctx); err != nil {
			log.WithError(err).Warn("ClickHouse sink disabled")
		} else {
			sinks = append(sinks, s)
		}
	}

	if cfg.InfluxEnabled() {
		s := store.NewInfluxSink(log, store.InfluxConfigFromApp(cfg))
		if err := s.Start(ctx); err != nil {
			log.WithError(err).Warn("InfluxDB sink disabled")
		} else {
			sinks = append(sinks, s)
		}
	}

	return store.NewMulti(log, sinks...)
}

// selectScenarios returns the named scenarios in suite order, or all when names is empty.
func selectScenarios(suite *scenario.Suite, names []string) ([]scenario.Scenario, error) {
	if len(names) == 0 {
		return suite.Scenarios, nil
	}

	selected := make([]scenario.Scenario, 0, len(names))
	for _, name := range names {
		sc, ok := suite.Find(name)
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q (have: %v)", name, suite.Names())
		}
		selected = append(selected, sc)
	}

	return selected, nil
}

// runOptions are the settings shared by run, soak and interactive.
type runOptions struct {
	csv        bool
	captureDir string
	runID      string
}

func (o runOptions) apply(suite *scenario.Suite, cfg *config.AppConfig) harness.RunnerOptions {
	if o.csv {
		suite.Capture.CSV = true
	}

	dir := o.captureDir
	if dir == "" {
		dir = cfg.CaptureDir
	}

	return harness.RunnerOptions{
		RunID:      o.runID,
		CaptureDir: dir,
	}
}

// newFormatter prints to stdout; tables and per-scenario progress need --verbose.
func newFormatter(collector report.Collector, suite *scenario.Suite) report.Formatter {
	return report.NewFormatter(os.Stdout, verbose, collector, suite.Timing)
}

// progressObservers returns the observers that echo each finished scenario.
func progressObservers(f report.Formatter) []harness.Observer {
	if !verbose {
		return nil
	}

	return []harness.Observer{harness.ObserverFunc(func(_ context.Context, o harness.Outcome, _ *harness.Trace) {
		f.PrintProgress("Finished "+o.Scenario, o.Duration)
	})}
}

// finishReport prints the report and turns the collector verdict into an error.
func finishReport(formatter report.Formatter, collector report.Collector) error {
	if err := formatter.PrintReport(); err != nil {
		return err
	}

	if collector.ExitCode() != config.ExitSuccess {
		return errScenariosFailed
	}

	formatter.PrintSuccess("All scenarios passed")

	return nil
}
