package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ethpandaops/hilbench/internal/clock"
	"github.com/ethpandaops/hilbench/internal/config"
	"github.com/ethpandaops/hilbench/internal/harness"
	"github.com/ethpandaops/hilbench/internal/scenario"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func ptr(v float64) *float64 {
	return &v
}

func outcomes() []harness.Outcome {
	return []harness.Outcome{
		{
			Scenario:  "Internal_AG",
			Kind:      scenario.KindInternal,
			Passed:    true,
			Details:   "Pickup OK: 6.0 ms; Trip OK: 35.0 ms",
			PickupMS:  ptr(6),
			TripMS:    ptr(35),
			TracePath: "test_artifacts/internal_ag_20240301_120000.csv",
			Duration:  600 * time.Millisecond,
		},
		{
			Scenario: "External_AG",
			Kind:     scenario.KindExternal,
			Passed:   false,
			Details:  "Relay tripped for external fault.",
			TripMS:   ptr(100),
			Duration: 650 * time.Millisecond,
		},
	}
}

func TestLine(t *testing.T) {
	tests := []struct {
		name    string
		outcome harness.Outcome
		want    string
	}{
		{
			name:    "internal with timings",
			outcome: outcomes()[0],
			want:    "PASS - Internal_AG: Pickup OK: 6.0 ms; Trip OK: 35.0 ms | pickup=6.0 ms | trip=35.0 ms",
		},
		{
			name:    "stability failure",
			outcome: outcomes()[1],
			want:    "FAIL - External_AG: Relay tripped for external fault. | trip=100.0 ms",
		},
		{
			name:    "stable without timings",
			outcome: harness.Outcome{Scenario: "External_AG", Passed: true, Details: "Stable (no trip)"},
			want:    "PASS - External_AG: Stable (no trip)",
		},
		{
			name:    "reaction",
			outcome: harness.Outcome{Scenario: "CB", Passed: true, Details: "Reaction OK: 37.5 ms", ReactionMS: ptr(37.5)},
			want:    "PASS - CB: Reaction OK: 37.5 ms | reaction=37.5 ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Line(tt.outcome))
		})
	}
}

func TestWriteLines(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLines(&buf, outcomes()))

	want := "\n" + bannerTitle + "\n" +
		"PASS - Internal_AG: Pickup OK: 6.0 ms; Trip OK: 35.0 ms | pickup=6.0 ms | trip=35.0 ms\n" +
		"  data: test_artifacts/internal_ag_20240301_120000.csv\n" +
		"FAIL - External_AG: Relay tripped for external fault. | trip=100.0 ms\n" +
		bannerEnd + "\n"
	assert.Equal(t, want, buf.String())
}

func TestCollector_ExitCode(t *testing.T) {
	all := outcomes()

	tests := []struct {
		name     string
		outcomes []harness.Outcome
		fatal    error
		want     int
	}{
		{name: "no outcomes", want: config.ExitSuccess},
		{name: "all passed", outcomes: all[:1], want: config.ExitSuccess},
		{name: "one failed", outcomes: all, want: config.ExitFailure},
		{name: "aborted run", outcomes: all[:1], fatal: errors.New("link down"), want: config.ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCollector(quietLogger(), clock.NewFake(time.Unix(0, 0)))
			for _, o := range tt.outcomes {
				c.Record(o)
			}
			c.RecordFatal(tt.fatal)

			assert.Equal(t, tt.want, c.ExitCode())
		})
	}
}

func TestCollector_Summary(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	c := NewCollector(quietLogger(), clk)
	require.NoError(t, c.Start(context.Background()))
	defer func() { require.NoError(t, c.Stop()) }()

	for _, o := range outcomes() {
		c.Observe(context.Background(), o, nil)
	}
	clk.Advance(2 * time.Second)

	s := c.Summary()
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, 1, s.Failed)
	assert.False(t, s.Aborted)
	assert.Equal(t, 1250*time.Millisecond, s.ScenarioTime)
	assert.Equal(t, 2*time.Second, s.Elapsed)
	assert.InDelta(t, 50.0, s.PassRate(), 1e-9)
}

func TestCollector_ConcurrentRecord(t *testing.T) {
	c := NewCollector(quietLogger(), clock.Real{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record(harness.Outcome{Passed: true})
		}()
	}
	wg.Wait()

	assert.Len(t, c.Outcomes(), 20)
	assert.Equal(t, config.ExitSuccess, c.ExitCode())
}

func TestCollector_OutcomesIsCopy(t *testing.T) {
	c := NewCollector(quietLogger(), clock.Real{})
	c.Record(harness.Outcome{Scenario: "a"})

	got := c.Outcomes()
	got[0].Scenario = "changed"

	assert.Equal(t, "a", c.Outcomes()[0].Scenario)
}

func TestColorHelper_FormatStatus(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	helper := NewColorHelper()
	assert.Equal(t, "✓ PASS", helper.FormatStatus(true))
	assert.Equal(t, "✗ FAIL", helper.FormatStatus(false))
}

func TestColorHelper_FormatLatency(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	helper := NewColorHelper()

	assert.Equal(t, "-", helper.FormatLatency(nil, 40))
	assert.Equal(t, "35.0 ms", helper.FormatLatency(ptr(35), 40))
	assert.Equal(t, "55.0 ms", helper.FormatLatency(ptr(55), 40))
	assert.False(t, helper.enabled)
}

func TestFormatter_PrintReport(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	c := NewCollector(quietLogger(), clock.NewFake(time.Unix(0, 0)))
	for _, o := range outcomes() {
		c.Record(o)
	}

	t.Run("lines only", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatter(&buf, false, c, scenario.DefaultTiming()).PrintReport())

		out := buf.String()
		assert.Contains(t, out, bannerTitle)
		assert.NotContains(t, out, "Scenario Results")
	})

	t.Run("verbose adds tables", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatter(&buf, true, c, scenario.DefaultTiming()).PrintReport())

		out := buf.String()
		assert.Contains(t, out, "▸ Scenario Results")
		assert.Contains(t, out, "▸ Summary")
		assert.Contains(t, out, "✗ FAIL")
		assert.Contains(t, out, "Internal_AG")
		assert.Contains(t, out, "100.0 ms")
		assert.True(t, strings.Index(out, bannerTitle) < strings.Index(out, "Scenario Results"))
	})
}

func TestFormatter_Messages(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	var buf bytes.Buffer
	f := NewFormatter(&buf, false, NewCollector(quietLogger(), clock.NewFake(time.Unix(0, 0))), scenario.DefaultTiming())

	f.PrintPhase("Running 2 scenario(s)")
	f.PrintProgress("Finished Internal_AG", 635*time.Millisecond)
	f.PrintProgress("Connecting", 0)
	f.PrintSuccess("All scenarios passed")
	f.PrintError("Run aborted", errors.New("link down"))
	f.PrintError("Stopped", nil)

	assert.Equal(t,
		"\n▸ Running 2 scenario(s)\n"+
			"Finished Internal_AG (635ms)\n"+
			"Connecting\n"+
			"All scenarios passed\n"+
			"Run aborted: link down\n"+
			"Stopped\n",
		buf.String())
}

func TestRenderToString_Options(t *testing.T) {
	headers := []string{"Name", "Value"}
	rows := [][]string{{"a", "1"}, {"b", "2"}, {"c", "3"}}

	lines := func(s string) int {
		return len(strings.Split(strings.TrimRight(s, "\n"), "\n"))
	}

	framed := RenderToString(headers, rows)
	assert.Contains(t, framed, "│")

	assert.Less(t, lines(RenderToString(headers, rows, WithBorder(false))), lines(framed))
	assert.Greater(t, lines(RenderToString(headers, rows, WithRowSeparator(true))), lines(framed))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{name: "short", in: "Stable (no trip)", width: 60, want: "Stable (no trip)"},
		{name: "exact", in: "abcdef", width: 6, want: "abcdef"},
		{name: "ascii", in: "abcdefgh", width: 6, want: "abc..."},
		{name: "multibyte", in: "Überstrom φφφφφ", width: 8, want: "Übers..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.width)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestDuration(t *testing.T) {
	tests := map[time.Duration]string{
		500 * time.Microsecond:  "500µs",
		35 * time.Millisecond:   "35ms",
		1500 * time.Millisecond: "1.5s",
		90 * time.Second:        "1.5m",
	}

	for in, want := range tests {
		assert.Equal(t, want, Duration(in))
	}
}
