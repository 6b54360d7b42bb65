package harness

import (
	"fmt"
	"time"

	"github.com/ethpandaops/hilbench/internal/scenario"
)

// Timing holds pickup and trip latencies. A nil field was not observed.
type Timing struct {
	Pickup *time.Duration
	Trip   *time.Duration
}

// Outcome is the result of one scenario execution.
type Outcome struct {
	RunID      string
	Scenario   string
	Kind       scenario.Kind
	Passed     bool
	Details    string
	PickupMS   *float64
	TripMS     *float64
	ReactionMS *float64
	TracePath  string
	StartedAt  time.Time
	Duration   time.Duration
}

// Status returns "PASS" or "FAIL".
func (o Outcome) Status() string {
	if o.Passed {
		return "PASS"
	}
	return "FAIL"
}

// Millis converts d to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func msPtr(d *time.Duration) *float64 {
	if d == nil {
		return nil
	}
	v := Millis(*d)
	return &v
}

func formatMS(d time.Duration) string {
	return fmt.Sprintf("%.1f ms", Millis(d))
}
