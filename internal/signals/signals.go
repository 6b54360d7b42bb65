// Package signals analyses captured waveforms.
package signals

import (
	"math"
	"time"
)

// Side is a position relative to a threshold level.
type Side int

const (
	// Below means value < level.
	Below Side = iota
	// Above means value > level.
	Above
)

func (s Side) String() string {
	if s == Above {
		return "above"
	}
	return "below"
}

// Waveform is a uniformly sampled series starting at Start.
type Waveform struct {
	Start  time.Duration
	Step   time.Duration
	Values []float64
}

// At returns the timestamp of sample i.
func (w Waveform) At(i int) time.Duration {
	return w.Start + time.Duration(i)*w.Step
}

// End returns the timestamp of the last sample.
func (w Waveform) End() time.Duration {
	if len(w.Values) == 0 {
		return w.Start
	}
	return w.At(len(w.Values) - 1)
}

// Window bounds a search, inclusive at both ends. A zero To means the whole waveform.
type Window struct {
	From time.Duration
	To   time.Duration
}

// Find returns the first time in during at which w crosses level into side `to`,
// having previously been on side `from`. The crossing instant is linearly
// interpolated between the two samples that straddle level. NaN samples break
// the region so a crossing is only reported across two valid samples.
func Find(w Waveform, to Side, level float64, from Side, during Window) (time.Duration, bool) {
	if to == from || len(w.Values) < 2 || w.Step <= 0 {
		return 0, false
	}

	end := during.To
	if end == 0 || end > w.End() {
		end = w.End()
	}

	inFrom := false
	for i, v := range w.Values {
		t := w.At(i)
		if t < during.From {
			continue
		}
		if t > end {
			break
		}
		if math.IsNaN(v) {
			inFrom = false
			continue
		}

		if inFrom && side(v, level) == to {
			prev := w.Values[i-1]
			frac := (level - prev) / (v - prev)
			return w.At(i-1) + time.Duration(frac*float64(w.Step)), true
		}

		inFrom = side(v, level) == from
	}

	return 0, false
}

func side(v, level float64) Side {
	if v > level {
		return Above
	}
	return Below
}
