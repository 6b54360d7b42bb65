package harness

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Trace checkpoint labels.
const (
	LabelStart            = "start"
	LabelPrefault         = "prefault"
	LabelFaultApplied     = "fault_applied"
	LabelExternalDone     = "external_fault_window_done"
	LabelCaptureDone      = "capture_done"
	LabelFaultCleared     = "fault_cleared"
	LabelPostfault        = "postfault"
	traceTimestampLayout  = "20060102_150405"
	traceElapsedPrecision = 6
)

// Sample is one trace checkpoint.
type Sample struct {
	Elapsed time.Duration
	Label   string
	Values  map[string]float64
}

// Trace is an append-only list of samples over a fixed signal set.
type Trace struct {
	signals []string
	samples []Sample
}

// NewTrace creates a trace recording signals in the given column order.
func NewTrace(signals []string) *Trace {
	return &Trace{signals: append([]string(nil), signals...)}
}

// Signals returns the recorded signal names.
func (t *Trace) Signals() []string {
	return append([]string(nil), t.signals...)
}

// Samples returns a copy of the recorded samples.
func (t *Trace) Samples() []Sample {
	return append([]Sample(nil), t.samples...)
}

// Len returns the number of samples.
func (t *Trace) Len() int {
	return len(t.samples)
}

// Append adds a sample.
func (t *Trace) Append(s Sample) {
	t.samples = append(t.samples, s)
}

// Labels returns sample labels in order.
func (t *Trace) Labels() []string {
	out := make([]string, len(t.samples))
	for i, s := range t.samples {
		out[i] = s.Label
	}
	return out
}

// WriteCSV writes the header and one row per sample. Missing or failed reads are NaN.
func (t *Trace) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := append([]string{"t_since_start_s", "label"}, t.signals...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, s := range t.samples {
		row := make([]string, 0, len(header))
		row = append(row,
			strconv.FormatFloat(s.Elapsed.Seconds(), 'f', traceElapsedPrecision, 64),
			s.Label,
		)
		for _, name := range t.signals {
			v, ok := s.Values[name]
			if !ok {
				v = math.NaN()
			}
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// SaveCSV writes the trace to dir as <slug>_<YYYYmmdd_HHMMSS>.csv and returns the path.
func (t *Trace) SaveCSV(dir, name string, at time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating capture dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", Slug(name), at.Format(traceTimestampLayout)))

	f, err := os.Create(path) //nolint:gosec // G304: capture dir is operator supplied
	if err != nil {
		return "", fmt.Errorf("creating trace file: %w", err)
	}

	if err := t.WriteCSV(f); err != nil {
		_ = f.Close()
		return "", err
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing trace file: %w", err)
	}

	return path, nil
}

// Slug lowercases name and replaces runs of non alphanumerics with "_".
func Slug(name string) string {
	var b strings.Builder
	sep := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			sep = false
			b.WriteRune(r)
			continue
		}
		sep = true
	}
	if b.Len() == 0 {
		return "scenario"
	}
	return b.String()
}

// sampler reads the trace signals. Read failures become NaN and are logged once per checkpoint.
type sampler struct {
	session *Session
	start   time.Time
	trace   *Trace
}

func (s *sampler) record(ctx context.Context, label string) {
	values := make(map[string]float64, len(s.trace.signals))
	var failed []string

	for _, name := range s.trace.signals {
		v, err := s.session.Bindings().Read(ctx, s.session.Simulator(), name)
		if err != nil {
			failed = append(failed, name)
			v = math.NaN()
		}
		values[name] = v
	}

	if len(failed) > 0 {
		s.session.log.WithField("label", label).WithField("signals", failed).Debug("Trace read failed, recording NaN")
	}

	s.trace.Append(Sample{
		Elapsed: s.session.clock.Since(s.start),
		Label:   label,
		Values:  values,
	})
}
