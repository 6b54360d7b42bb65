package soak

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethpandaops/hilbench/internal/clock"
	"github.com/ethpandaops/hilbench/internal/harness"
	"github.com/ethpandaops/hilbench/internal/scenario"
	"github.com/ethpandaops/hilbench/internal/sim/virtual"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// fakeRunner passes one outcome per scenario and advances the clock per pass.
type fakeRunner struct {
	clock   *clock.Fake
	perPass time.Duration
	calls   int
	failAt  int
	err     error
	cancel  context.CancelFunc
}

func (f *fakeRunner) RunAll(_ context.Context, scenarios []scenario.Scenario) ([]harness.Outcome, error) {
	f.calls++
	f.clock.Sleep(f.perPass)

	if f.cancel != nil && f.calls == f.failAt {
		f.cancel()
		return nil, context.Canceled
	}
	if f.err != nil && f.calls == f.failAt {
		return []harness.Outcome{{Scenario: scenarios[0].Name}}, f.err
	}

	out := make([]harness.Outcome, 0, len(scenarios))
	for i, sc := range scenarios {
		out = append(out, harness.Outcome{Scenario: sc.Name, Passed: i != 1})
	}
	return out, nil
}

type countingObserver struct {
	n int
}

func (c *countingObserver) IterationDone() { c.n++ }

func scenarios() []scenario.Scenario {
	return []scenario.Scenario{
		{Name: "a", Kind: scenario.KindInternal},
		{Name: "b", Kind: scenario.KindExternal},
	}
}

func TestLoop_WaitEndsWithDuration(t *testing.T) {
	clk := clock.NewFake(epoch)
	r := &fakeRunner{clock: clk, perPass: 10 * time.Millisecond}

	began := time.Now()
	res, err := NewLoop(quietLogger(), r, clk, Options{
		Duration: 100 * time.Millisecond,
		Interval: time.Hour,
	}).Run(context.Background(), scenarios())
	require.NoError(t, err)

	// The second pass would start an hour later, well past the end of the soak.
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 1, r.calls)
	assert.Less(t, time.Since(began), 5*time.Second)
}

func TestLoop_StopsAfterDuration(t *testing.T) {
	clk := clock.NewFake(epoch)
	r := &fakeRunner{clock: clk, perPass: 10 * time.Minute}
	obs := &countingObserver{}

	res, err := NewLoop(quietLogger(), r, clk, Options{Duration: time.Hour}, obs).Run(context.Background(), scenarios())
	require.NoError(t, err)

	assert.Equal(t, 6, res.Iterations)
	assert.Equal(t, 12, res.Outcomes)
	assert.Equal(t, 6, res.Failed)
	assert.Equal(t, time.Hour, res.Elapsed)
	assert.Equal(t, 6, obs.n)
}

func TestLoop_MaxIterations(t *testing.T) {
	clk := clock.NewFake(epoch)
	r := &fakeRunner{clock: clk, perPass: time.Second}

	res, err := NewLoop(quietLogger(), r, clk, Options{MaxIterations: 3}).Run(context.Background(), scenarios())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, 3, r.calls)
}

func TestLoop_FatalErrorStops(t *testing.T) {
	clk := clock.NewFake(epoch)
	boom := errors.New("link down")
	r := &fakeRunner{clock: clk, perPass: time.Second, failAt: 2, err: boom}
	obs := &countingObserver{}

	res, err := NewLoop(quietLogger(), r, clk, Options{Duration: time.Hour}, obs).Run(context.Background(), scenarios())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "iteration 2")

	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 3, res.Outcomes)
	assert.Equal(t, 1, obs.n)
}

func TestLoop_CancelEndsCleanly(t *testing.T) {
	clk := clock.NewFake(epoch)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeRunner{clock: clk, perPass: time.Second, failAt: 3, cancel: cancel}

	res, err := NewLoop(quietLogger(), r, clk, Options{}).Run(ctx, scenarios())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Iterations)
}

func TestLoop_CancelledBeforeStart(t *testing.T) {
	clk := clock.NewFake(epoch)
	r := &fakeRunner{clock: clk}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewLoop(quietLogger(), r, clk, Options{Interval: time.Hour}).Run(ctx, scenarios())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, 0, r.calls)
}

func TestLoop_NoScenarios(t *testing.T) {
	clk := clock.NewFake(epoch)

	_, err := NewLoop(quietLogger(), &fakeRunner{clock: clk}, clk, Options{}).Run(context.Background(), nil)
	require.ErrorIs(t, err, errNoScenarios)
}

func TestLoop_VirtualPlant(t *testing.T) {
	suite := &scenario.Suite{
		Name:   "soak",
		Model:  scenario.Model{Path: "bench.tse"},
		Timing: scenario.DefaultTiming(),
		IO: scenario.IO{
			ArmInput:     "Relay_Enable",
			TripOutput:   "Relay_Trip",
			PickupOutput: "Relay_Pickup",
		},
		Faults: map[string]scenario.FaultControl{
			"bus_ag": {Signal: "Fault_BUS_AG"},
			"ext_ag": {Signal: "Fault_EXT_AG"},
		},
		Capture: scenario.Capture{RateHz: 1000},
		Scenarios: []scenario.Scenario{
			{Name: "Internal_AG", Kind: scenario.KindInternal, Fault: "bus_ag"},
			{Name: "External_AG", Kind: scenario.KindExternal, Fault: "ext_ag"},
		},
	}

	clk := clock.NewFake(epoch)
	plant := virtual.New(quietLogger(), clk, suite)
	var outcomes []harness.Outcome

	err := harness.WithSession(context.Background(), quietLogger(), plant, suite, clk, func(ctx context.Context, s *harness.Session) error {
		r := harness.NewRunner(quietLogger(), s, harness.RunnerOptions{
			Observers: []harness.Observer{harness.ObserverFunc(func(_ context.Context, o harness.Outcome, _ *harness.Trace) {
				outcomes = append(outcomes, o)
			})},
		})

		res, err := NewLoop(quietLogger(), r, clk, Options{MaxIterations: 4, Interval: time.Millisecond}).Run(ctx, suite.Scenarios)
		if err != nil {
			return err
		}

		assert.Equal(t, 4, res.Iterations)
		assert.Equal(t, 0, res.Failed)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, outcomes, 8)
	for _, o := range outcomes {
		assert.True(t, o.Passed, "%s: %s", o.Scenario, o.Details)
	}
}
