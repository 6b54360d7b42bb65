package harness

import (
	"context"
	"testing"
	"time"

	"github.com/ethpandaops/hilbench/internal/clock"
	"github.com/ethpandaops/hilbench/internal/scenario"
	"github.com/ethpandaops/hilbench/internal/sim/virtual"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// busbarSuite mirrors a busbar differential bench: one in-zone fault, one
// through fault driven by a component, and a breaker reaction check.
func busbarSuite() *scenario.Suite {
	return &scenario.Suite{
		Name:   "busbar",
		Model:  scenario.Model{Path: "busbar.tse"},
		Timing: scenario.DefaultTiming(),
		IO: scenario.IO{
			ArmInput:     "Relay_Enable",
			TripOutput:   "Relay_Trip",
			PickupOutput: "Relay_Pickup",
		},
		Faults: map[string]scenario.FaultControl{
			"bus_ag": {Signal: "Fault_BUS_AG"},
			"ext_ag": {Component: &scenario.ComponentControl{
				Path:            "Feeder2/Fault",
				EnableParam:     "enabled",
				ResistanceParam: "R",
				ReactanceParam:  "X",
				Impedance:       scenario.Impedance{R: 0.01, X: 0.002},
			}},
			"cb_fault": {Signal: "Grid_Fault1"},
		},
		Capture: scenario.Capture{
			Signals: []string{"I_A", "V_A"},
			RateHz:  1000,
		},
		Scenarios: []scenario.Scenario{
			{Name: "Internal_AG", Kind: scenario.KindInternal, Fault: "bus_ag"},
			{Name: "External_AG", Kind: scenario.KindExternal, Fault: "ext_ag"},
			{
				Name:  "Breaker_Reaction",
				Kind:  scenario.KindReaction,
				Fault: "cb_fault",
				Reaction: &scenario.Reaction{
					FaultFeedback:   "Fault_FB",
					BreakerFeedback: "CB_FB",
					Level:           0.5,
					Window:          100 * time.Millisecond,
					MaxReaction:     40 * time.Millisecond,
				},
			},
		},
	}
}

type fixture struct {
	plant   *virtual.Plant
	clock   *clock.Fake
	session *Session
}

func startFixture(t *testing.T, suite *scenario.Suite) *fixture {
	t.Helper()

	clk := clock.NewFake(epoch)
	plant := virtual.New(quietLogger(), clk, suite)
	sess := NewSession(quietLogger(), plant, suite, clk)

	ctx := context.Background()
	require.NoError(t, sess.Start(ctx))
	t.Cleanup(func() { _ = sess.Stop(ctx) })

	return &fixture{plant: plant, clock: clk, session: sess}
}

func (f *fixture) runner(opts RunnerOptions) *Runner {
	if opts.RunID == "" {
		opts.RunID = "test-run"
	}
	return NewRunner(quietLogger(), f.session, opts)
}

func scenarioPulse(signal string) scenario.Action {
	return scenario.Action{Action: scenario.ActionPulse, Signal: signal}
}
