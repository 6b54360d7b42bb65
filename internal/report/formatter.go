package report

import (
	"fmt"
	"io"
	"time"

	"github.com/ethpandaops/hilbench/internal/scenario"
	"github.com/fatih/color"
)

// Formatter prints run progress and the final report.
type Formatter interface {
	PrintPhase(phase string)
	PrintProgress(message string, duration time.Duration)
	PrintSuccess(message string)
	PrintError(message string, err error)
	PrintReport() error
}

type formatter struct {
	writer  io.Writer
	verbose bool

	collector Collector
	results   *ResultsFormatter
	summary   *SummaryFormatter

	green *color.Color
	red   *color.Color
	blue  *color.Color
	gray  *color.Color
}

// NewFormatter creates a new output formatter over the collector's outcomes.
// With verbose set the results and summary tables follow the summary lines.
func NewFormatter(writer io.Writer, verbose bool, collector Collector, timing scenario.Timing) Formatter {
	return &formatter{
		writer:    writer,
		verbose:   verbose,
		collector: collector,
		results:   NewResultsFormatter(timing),
		summary:   NewSummaryFormatter(),
		green:     color.New(color.FgGreen),
		red:       color.New(color.FgRed),
		blue:      color.New(color.FgBlue),
		gray:      color.New(color.FgHiBlack),
	}
}

func (f *formatter) PrintPhase(phase string) {
	f.blue.Fprintf(f.writer, "\n▸ %s\n", phase)
}

func (f *formatter) PrintProgress(message string, duration time.Duration) {
	if duration > 0 {
		f.gray.Fprintf(f.writer, "%s (%s)\n", message, Duration(duration))
	} else {
		fmt.Fprintf(f.writer, "%s\n", message)
	}
}

func (f *formatter) PrintSuccess(message string) {
	f.green.Fprintf(f.writer, "%s\n", message)
}

func (f *formatter) PrintError(message string, err error) {
	f.red.Fprintf(f.writer, "%s", message)
	if err != nil {
		f.red.Fprintf(f.writer, ": %v", err)
	}
	fmt.Fprintf(f.writer, "\n")
}

// PrintReport prints the summary lines, then the tables when verbose.
func (f *formatter) PrintReport() error {
	outcomes := f.collector.Outcomes()

	if err := WriteLines(f.writer, outcomes); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	if !f.verbose {
		return nil
	}

	fmt.Fprintln(f.writer, f.results.Format(outcomes))
	fmt.Fprintln(f.writer, f.summary.Format(f.collector.Summary()))

	return nil
}
