package sim_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ethpandaops/hilbench/internal/clock"
	"github.com/ethpandaops/hilbench/internal/scenario"
	"github.com/ethpandaops/hilbench/internal/sim"
	"github.com/ethpandaops/hilbench/internal/sim/virtual"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe(t *testing.T) {
	cat := &sim.Catalog{
		Digital:    []string{"Arm", "Trip"},
		Model:      []string{"Fault", "I_A"},
		Components: map[string][]string{"F1": {"enabled", "R"}},
	}

	tests := []struct {
		name        string
		req         sim.ProbeRequest
		wantMissing string
	}{
		{
			name: "all resolved",
			req: sim.ProbeRequest{
				Required:   []string{"Arm", "Trip", "Fault", ""},
				Optional:   []string{"I_A", "V_A"},
				Components: []sim.ComponentRef{{Component: "F1", Param: "R"}},
			},
		},
		{
			name:        "missing required signal",
			req:         sim.ProbeRequest{Required: []string{"Arm", "Pickup"}},
			wantMissing: "Pickup",
		},
		{
			name:        "missing component parameter",
			req:         sim.ProbeRequest{Components: []sim.ComponentRef{{Component: "F1", Param: "X"}}},
			wantMissing: "F1.X",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := sim.Probe(cat, tt.req)
			if tt.wantMissing != "" {
				var notFound *sim.SignalNotFoundError
				require.ErrorAs(t, err, &notFound)
				assert.Equal(t, tt.wantMissing, notFound.Name)
				return
			}

			require.NoError(t, err)

			arm, ok := b.Lookup("Arm")
			require.True(t, ok)
			assert.Equal(t, sim.AccessDigital, arm.Kind)

			fault, _ := b.Lookup("Fault")
			assert.Equal(t, sim.AccessModel, fault.Kind)

			va, ok := b.Lookup("V_A")
			require.True(t, ok)
			assert.Equal(t, sim.AccessModel, va.Kind)
			assert.False(t, va.Resolved)

			assert.Len(t, b.All(), 5)
			assert.Equal(t, "Arm", b.All()[0].Name)
		})
	}
}

func TestBindings_ReadWrite(t *testing.T) {
	suite := &scenario.Suite{
		Model:     scenario.Model{Path: "m.tse"},
		IO:        scenario.IO{ArmInput: "Arm", TripOutput: "Trip"},
		Faults:    map[string]scenario.FaultControl{"f": {Signal: "Fault"}},
		Capture:   scenario.Capture{Signals: []string{"I_A"}},
		Scenarios: []scenario.Scenario{{Name: "s", Kind: scenario.KindInternal, Fault: "f"}},
	}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	plant := virtual.New(log, clock.NewFake(time.Now()), suite)

	ctx := context.Background()
	m, err := plant.LoadModel(ctx, "m.tse", false)
	require.NoError(t, err)
	require.NoError(t, plant.CompileModel(ctx, m))
	require.NoError(t, plant.StartSimulation(ctx))

	cat, err := plant.Catalog(ctx)
	require.NoError(t, err)

	b, err := sim.Probe(cat, sim.ProbeRequest{
		Required: []string{"Arm", "Trip", "Fault"},
		Optional: []string{"I_A"},
	})
	require.NoError(t, err)

	require.NoError(t, b.Write(ctx, plant, "Arm", 0.9))
	assert.Equal(t, 1, plant.Writes("Arm"))

	require.NoError(t, b.WriteBool(ctx, plant, "Fault", true))
	v, err := b.Read(ctx, plant, "Fault")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9)

	on, err := b.ReadBool(ctx, plant, "Fault")
	require.NoError(t, err)
	assert.True(t, on)

	plant.FailReads("I_A", errors.New("link down"))
	v, err = b.Read(ctx, plant, "I_A")
	require.Error(t, err)
	assert.True(t, math.IsNaN(v))

	_, err = b.Read(ctx, plant, "Unbound")
	var notFound *sim.SignalNotFoundError
	require.ErrorAs(t, err, &notFound)
}
