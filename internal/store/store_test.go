package store

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"testing"
	"time"

	"github.com/ethpandaops/hilbench/internal/config"
	"github.com/ethpandaops/hilbench/internal/harness"
	"github.com/ethpandaops/hilbench/internal/scenario"
	"github.com/ethpandaops/hilbench/internal/store/migrations"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var startedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func ptr(v float64) *float64 {
	return &v
}

func sampleOutcome() harness.Outcome {
	return harness.Outcome{
		RunID:     "run-1",
		Scenario:  "Internal_AG",
		Kind:      scenario.KindInternal,
		Passed:    true,
		Details:   "Pickup OK: 6.0 ms; Trip OK: 35.0 ms",
		PickupMS:  ptr(6),
		TripMS:    ptr(35),
		StartedAt: startedAt,
		Duration:  600 * time.Millisecond,
	}
}

func sampleTrace() *harness.Trace {
	tr := harness.NewTrace([]string{"I_A", "V_A"})
	tr.Append(harness.Sample{Label: harness.LabelStart, Values: map[string]float64{"I_A": 1, "V_A": 1}})
	tr.Append(harness.Sample{Elapsed: 200 * time.Millisecond, Label: harness.LabelPrefault, Values: map[string]float64{"I_A": 1, "V_A": math.NaN()}})
	tr.Append(harness.Sample{Elapsed: 235 * time.Millisecond, Label: harness.LabelFaultApplied, Values: map[string]float64{"I_A": math.NaN(), "V_A": math.Inf(1)}})
	return tr
}

type fakeSink struct {
	err      error
	started  int
	stopped  int
	outcomes []harness.Outcome
	traces   int
}

func (f *fakeSink) Start(context.Context) error { f.started++; return f.err }
func (f *fakeSink) Stop() error                 { f.stopped++; return f.err }

func (f *fakeSink) RecordOutcome(_ context.Context, o harness.Outcome) error {
	f.outcomes = append(f.outcomes, o)
	return f.err
}

func (f *fakeSink) RecordTrace(context.Context, harness.Outcome, *harness.Trace) error {
	f.traces++
	return f.err
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	failing := &fakeSink{err: boom}
	ok := &fakeSink{}
	m := NewMulti(quietLogger(), failing, ok)
	ctx := context.Background()

	require.ErrorIs(t, m.Start(ctx), boom)
	require.ErrorIs(t, m.RecordOutcome(ctx, sampleOutcome()), boom)
	require.ErrorIs(t, m.RecordTrace(ctx, sampleOutcome(), sampleTrace()), boom)
	require.ErrorIs(t, m.Stop(), boom)

	for _, s := range []*fakeSink{failing, ok} {
		assert.Equal(t, 1, s.started)
		assert.Equal(t, 1, s.stopped)
		assert.Len(t, s.outcomes, 1)
		assert.Equal(t, 1, s.traces)
	}
	assert.Equal(t, 2, m.Len())
}

func TestMulti_ObserveSwallowsErrors(t *testing.T) {
	failing := &fakeSink{err: errors.New("down")}
	ok := &fakeSink{}
	m := NewMulti(quietLogger(), failing, ok)

	m.Observe(context.Background(), sampleOutcome(), nil)

	assert.Len(t, ok.outcomes, 1)
	assert.Equal(t, 0, ok.traces, "nil trace is not forwarded")
}

type mockWriteAPI struct {
	err    error
	points []*write.Point
}

func (m *mockWriteAPI) WritePoint(_ context.Context, point ...*write.Point) error {
	m.points = append(m.points, point...)
	return m.err
}

func (m *mockWriteAPI) WriteRecord(context.Context, ...string) error { return nil }
func (m *mockWriteAPI) EnableBatching()                              {}
func (m *mockWriteAPI) Flush(context.Context) error                  { return nil }

func newInfluxSinkWithWriter(log logrus.FieldLogger, writer api.WriteAPIBlocking) *InfluxSink {
	return &InfluxSink{
		log:    log.WithField("component", "store.influx"),
		writer: writer,
	}
}

func tags(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func fields(p *write.Point) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func TestInfluxSink_RecordOutcome(t *testing.T) {
	w := &mockWriteAPI{}
	s := newInfluxSinkWithWriter(quietLogger(), w)

	require.NoError(t, s.RecordOutcome(context.Background(), sampleOutcome()))
	require.Len(t, w.points, 1)

	p := w.points[0]
	assert.Equal(t, config.OutcomeMeasurement, p.Name())
	assert.Equal(t, startedAt, p.Time())
	assert.Equal(t, map[string]string{"run_id": "run-1", "scenario": "Internal_AG", "kind": "internal"}, tags(p))

	f := fields(p)
	assert.Equal(t, true, f["passed"])
	assert.InDelta(t, 6.0, f["pickup_ms"], 1e-9)
	assert.InDelta(t, 35.0, f["trip_ms"], 1e-9)
	assert.InDelta(t, 600.0, f["duration_ms"], 1e-9)
	assert.NotContains(t, f, "reaction_ms")
}

func TestInfluxSink_RecordTrace(t *testing.T) {
	w := &mockWriteAPI{}
	s := newInfluxSinkWithWriter(quietLogger(), w)

	require.NoError(t, s.RecordTrace(context.Background(), sampleOutcome(), sampleTrace()))

	// The fault_applied checkpoint has no finite values and is dropped.
	require.Len(t, w.points, 2)

	assert.Equal(t, config.TraceMeasurement, w.points[0].Name())
	assert.Equal(t, harness.LabelStart, tags(w.points[0])["label"])
	assert.Len(t, fields(w.points[0]), 2)

	assert.Equal(t, startedAt.Add(200*time.Millisecond), w.points[1].Time())
	assert.Equal(t, map[string]interface{}{"I_A": 1.0}, fields(w.points[1]))
}

func TestInfluxSink_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("not started", func(t *testing.T) {
		s := NewInfluxSink(quietLogger(), InfluxConfig{})
		require.ErrorIs(t, s.RecordOutcome(ctx, sampleOutcome()), errNotStarted)
		require.ErrorIs(t, s.RecordTrace(ctx, sampleOutcome(), sampleTrace()), errNotStarted)
		require.NoError(t, s.Stop())
	})

	t.Run("write failure", func(t *testing.T) {
		boom := errors.New("write refused")
		s := newInfluxSinkWithWriter(quietLogger(), &mockWriteAPI{err: boom})
		require.ErrorIs(t, s.RecordOutcome(ctx, sampleOutcome()), boom)
	})
}

func TestClickhouse_InsertQuery(t *testing.T) {
	assert.Equal(t,
		"INSERT INTO scenario_outcomes (run_id, scenario, kind, passed, details, pickup_ms, trip_ms, reaction_ms, trace_path, started_at, duration_ms) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		insertOutcomeQuery())
}

func TestClickhouse_OutcomeRow(t *testing.T) {
	row := outcomeRow(sampleOutcome())
	require.Len(t, row, len(outcomeColumns))

	assert.Equal(t, "run-1", row[0])
	assert.Equal(t, "internal", row[2])
	assert.Equal(t, true, row[3])
	assert.Equal(t, 6.0, row[5])
	assert.Nil(t, row[7])
	assert.Equal(t, startedAt, row[9])
	assert.InDelta(t, 600.0, row[10], 1e-9)
}

func TestClickhouse_Options(t *testing.T) {
	cfg := ClickhouseConfigFromApp(&config.AppConfig{
		ClickhouseHost:     "ch.lab",
		ClickhousePort:     9000,
		ClickhouseDatabase: "hilbench",
		ClickhouseUsername: "bench",
		ClickhousePassword: "secret",
	})

	opts := cfg.Options("")
	assert.Equal(t, []string{"ch.lab:9000"}, opts.Addr)
	assert.Equal(t, "hilbench", opts.Auth.Database)
	assert.Equal(t, "bench", opts.Auth.Username)

	assert.Equal(t, "default", cfg.Options("default").Auth.Database)
}

func TestClickhouse_RecordBeforeStart(t *testing.T) {
	s := NewClickhouseSink(quietLogger(), ClickhouseConfig{})

	require.ErrorIs(t, s.RecordOutcome(context.Background(), sampleOutcome()), errNotStarted)
	require.NoError(t, s.RecordTrace(context.Background(), sampleOutcome(), sampleTrace()))
	require.NoError(t, s.Stop())
}

func TestMigrations_Embedded(t *testing.T) {
	names, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_scenario_outcomes.down.sql", "001_scenario_outcomes.up.sql"}, names)

	up, err := fs.ReadFile(migrations.FS, "001_scenario_outcomes.up.sql")
	require.NoError(t, err)
	for _, col := range outcomeColumns {
		assert.Contains(t, string(up), col)
	}
	assert.Contains(t, string(up), config.OutcomesTable)
}
