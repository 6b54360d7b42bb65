package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/ethpandaops/hilbench/internal/scenario"
	"github.com/ethpandaops/hilbench/internal/signals"
)

// Capture is a set of waveforms sampled together.
type Capture struct {
	Waveforms map[string]signals.Waveform
}

// captureSignals samples names at rateHz for window. The first sample is taken
// immediately. Read failures abort the capture.
func captureSignals(ctx context.Context, session *Session, names []string, rateHz int, window time.Duration) (*Capture, error) {
	if rateHz <= 0 {
		rateHz = 1000
	}
	step := time.Second / time.Duration(rateHz)
	n := int(window/step) + 1

	values := make(map[string][]float64, len(names))
	for _, name := range names {
		values[name] = make([]float64, 0, n)
	}

	clk := session.Clock()
	b := session.Bindings()
	s := session.Simulator()

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 {
			clk.Sleep(step)
		}
		for _, name := range names {
			v, err := b.Read(ctx, s, name)
			if err != nil {
				return nil, fmt.Errorf("capturing %s: %w", name, err)
			}
			values[name] = append(values[name], v)
		}
	}

	out := &Capture{Waveforms: make(map[string]signals.Waveform, len(names))}
	for name, v := range values {
		out.Waveforms[name] = signals.Waveform{Step: step, Values: v}
	}

	return out, nil
}

// reactionResult is the measured reaction of a breaker to a fault.
type reactionResult struct {
	faultAt   *time.Duration
	breakerAt *time.Duration
}

func (r reactionResult) reaction() (time.Duration, bool) {
	if r.faultAt == nil || r.breakerAt == nil {
		return 0, false
	}
	return *r.breakerAt - *r.faultAt, true
}

// measureReaction finds the fault feedback rising edge and the breaker feedback falling edge.
func measureReaction(c *Capture, cfg *scenario.Reaction) reactionResult {
	var res reactionResult

	if w, ok := c.Waveforms[cfg.FaultFeedback]; ok {
		if t, found := signals.Find(w, signals.Above, cfg.Level, signals.Below, signals.Window{}); found {
			res.faultAt = &t
		} else if len(w.Values) > 0 && w.Values[0] > cfg.Level {
			// Feedback already high at the first sample: the fault landed at capture start.
			zero := time.Duration(0)
			res.faultAt = &zero
		}
	}

	if w, ok := c.Waveforms[cfg.BreakerFeedback]; ok {
		if t, found := signals.Find(w, signals.Below, cfg.Level, signals.Above, signals.Window{}); found {
			res.breakerAt = &t
		}
	}

	return res
}
