package signals

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFind(t *testing.T) {
	ms := time.Millisecond
	step := Waveform{Step: ms, Values: []float64{0, 0, 0, 1, 1, 1}}
	fall := Waveform{Step: ms, Values: []float64{1, 1, 1, 1, 0.2, 0}}

	tests := []struct {
		name   string
		w      Waveform
		to     Side
		from   Side
		level  float64
		during Window
		want   time.Duration
		found  bool
	}{
		{
			name:  "rising edge interpolated",
			w:     step,
			to:    Above,
			from:  Below,
			level: 0.5,
			want:  2*ms + 500*time.Microsecond,
			found: true,
		},
		{
			name:  "falling edge interpolated",
			w:     fall,
			to:    Below,
			from:  Above,
			level: 0.6,
			want:  3*ms + 500*time.Microsecond,
			found: true,
		},
		{
			name:  "already above at start is not a crossing",
			w:     Waveform{Step: ms, Values: []float64{1, 1, 1}},
			to:    Above,
			from:  Below,
			level: 0.5,
		},
		{
			name:   "window excludes the edge",
			w:      step,
			to:     Above,
			from:   Below,
			level:  0.5,
			during: Window{From: 0, To: 2 * ms},
		},
		{
			name:   "window starting mid waveform",
			w:      Waveform{Step: ms, Values: []float64{0, 1, 0, 0, 1}},
			to:     Above,
			from:   Below,
			level:  0.5,
			during: Window{From: 2 * ms},
			want:   3*ms + 500*time.Microsecond,
			found:  true,
		},
		{
			name:  "NaN breaks the region",
			w:     Waveform{Step: ms, Values: []float64{0, math.NaN(), 1, 0, 1}},
			to:    Above,
			from:  Below,
			level: 0.5,
			want:  3*ms + 500*time.Microsecond,
			found: true,
		},
		{
			name:  "same side requested",
			w:     step,
			to:    Above,
			from:  Above,
			level: 0.5,
		},
		{
			name:  "offset start",
			w:     Waveform{Start: 10 * ms, Step: 2 * ms, Values: []float64{0, 1}},
			to:    Above,
			from:  Below,
			level: 0.25,
			want:  10*ms + 500*time.Microsecond,
			found: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, found := Find(tt.w, tt.to, tt.level, tt.from, tt.during)
			assert.Equal(t, tt.found, found)
			if tt.found {
				assert.InDelta(t, float64(tt.want), float64(got), float64(time.Microsecond))
			}
		})
	}
}

func TestWaveform_End(t *testing.T) {
	w := Waveform{Start: time.Second, Step: time.Millisecond, Values: make([]float64, 11)}
	assert.Equal(t, time.Second+10*time.Millisecond, w.End())
	assert.Equal(t, time.Second, Waveform{Start: time.Second}.End())
}
