package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReal_SleepAndSince(t *testing.T) {
	c := Real{}
	start := c.Now()
	c.Sleep(5 * time.Millisecond)

	assert.GreaterOrEqual(t, c.Since(start), 5*time.Millisecond)
}

func TestFake_SleepAdvances(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	c.Sleep(3 * time.Millisecond)
	c.Sleep(0)
	c.Sleep(-time.Second)

	assert.Equal(t, 3*time.Millisecond, c.Since(start))
	assert.Equal(t, 3*time.Millisecond, c.Slept())
}

func TestFake_AdvanceIsNotSleep(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	c.Advance(time.Hour)

	assert.True(t, c.Now().Equal(start.Add(time.Hour)))
	assert.Zero(t, c.Slept())
}
