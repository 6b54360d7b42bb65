package report

import (
	"fmt"
	"time"

	"github.com/ethpandaops/hilbench/internal/harness"
	"github.com/ethpandaops/hilbench/internal/scenario"
)

const maxDetailsWidth = 60

// ResultsFormatter formats scenario outcomes as a table.
type ResultsFormatter struct {
	timing scenario.Timing
	colors *ColorHelper
}

// NewResultsFormatter creates a results formatter colouring latencies against timing.
func NewResultsFormatter(timing scenario.Timing) *ResultsFormatter {
	return &ResultsFormatter{
		timing: timing,
		colors: NewColorHelper(),
	}
}

// Format converts outcomes into a table string.
func (f *ResultsFormatter) Format(outcomes []harness.Outcome) string {
	if len(outcomes) == 0 {
		return "No scenarios executed"
	}

	var (
		headers = []string{"Scenario", "Kind", "Status", "Pickup", "Trip", "Reaction", "Duration", "Details"}
		rows    = make([][]string, 0, len(outcomes))
	)

	for _, o := range outcomes {
		tripLimit := harness.Millis(f.timing.ExpectTrip)
		if o.Kind == scenario.KindExternal {
			// Any trip fails a stability check.
			tripLimit = -1
		}

		details := truncate(o.Details, maxDetailsWidth)
		if !o.Passed {
			details = f.colors.Muted(details)
		}

		rows = append(rows, []string{
			o.Scenario,
			string(o.Kind),
			f.colors.FormatStatus(o.Passed),
			f.colors.FormatLatency(o.PickupMS, harness.Millis(f.timing.ExpectPickup)),
			f.colors.FormatLatency(o.TripMS, tripLimit),
			f.colors.FormatLatency(o.ReactionMS, 0),
			Duration(o.Duration),
			details,
		})
	}

	return "\n" + f.colors.Header("▸ Scenario Results") + "\n\n" + RenderToString(headers, rows)
}

// SummaryFormatter formats summary statistics as a table.
type SummaryFormatter struct {
	colors *ColorHelper
}

// NewSummaryFormatter creates a new summary table formatter.
func NewSummaryFormatter() *SummaryFormatter {
	return &SummaryFormatter{colors: NewColorHelper()}
}

// Format converts a summary into a table string.
func (f *SummaryFormatter) Format(s Summary) string {
	passRate := s.PassRate()

	passedValue := fmt.Sprintf("%d (%s)", s.Passed, f.colors.FormatPercentage(passRate))
	if s.Passed == s.Total {
		passedValue = f.colors.Success(fmt.Sprintf("%d (%.1f%%)", s.Passed, passRate))
	}

	failedValue := f.colors.Success("0")
	if s.Failed > 0 {
		failedValue = f.colors.Failure(fmt.Sprintf("%d", s.Failed))
	}

	runValue := f.colors.Success("completed")
	if s.Aborted {
		runValue = f.colors.Failure("aborted")
	}

	var (
		headers = []string{"Metric", "Value"}
		rows    = [][]string{
			{"Total Scenarios", f.colors.Bold(fmt.Sprintf("%d", s.Total))},
			{"Passed", passedValue},
			{"Failed", failedValue},
			{"Run", runValue},
			{"Scenario Time", Duration(s.ScenarioTime)},
			{"Wall Time", Duration(s.Elapsed)},
		}
	)

	return "\n" + f.colors.Header("▸ Summary") + "\n\n" + RenderToString(headers, rows)
}

// truncate shortens s to at most width runes, ending in "..." when cut.
func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}

// Duration formats a duration for human-readable output.
func Duration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.0fµs", float64(d.Microseconds()))
	}
	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d.Milliseconds()))
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	return fmt.Sprintf("%.1fm", d.Minutes())
}
