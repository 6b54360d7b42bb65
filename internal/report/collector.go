// Package report aggregates scenario outcomes into console summaries and an exit code.
package report

import (
	"context"
	"sync"
	"time"

	"github.com/ethpandaops/hilbench/internal/clock"
	"github.com/ethpandaops/hilbench/internal/config"
	"github.com/ethpandaops/hilbench/internal/harness"
	"github.com/sirupsen/logrus"
)

// Summary provides aggregate statistics across all recorded outcomes.
type Summary struct {
	Elapsed      time.Duration
	ScenarioTime time.Duration
	Total        int
	Passed       int
	Failed       int
	Aborted      bool
}

// PassRate returns the share of passed scenarios as a percentage.
func (s Summary) PassRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Passed) / float64(s.Total) * 100.0
}

// Collector records outcomes as the runner produces them.
type Collector interface {
	harness.Observer
	Start(ctx context.Context) error
	Stop() error
	Record(o harness.Outcome)
	RecordFatal(err error)
	Outcomes() []harness.Outcome
	Summary() Summary
	ExitCode() int
}

type collector struct {
	log       logrus.FieldLogger
	clock     clock.Clock
	mu        sync.RWMutex
	outcomes  []harness.Outcome
	fatal     error
	startTime time.Time
}

// NewCollector creates a new outcome collector.
func NewCollector(log logrus.FieldLogger, clk clock.Clock) Collector {
	return &collector{
		log:      log.WithField("component", "report.collector"),
		clock:    clk,
		outcomes: make([]harness.Outcome, 0, 16),
	}
}

func (c *collector) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = c.clock.Now()

	c.log.Debug("outcome collector started")

	return nil
}

func (c *collector) Stop() error {
	c.log.Debug("outcome collector stopped")

	return nil
}

// Observe records o; the trace is not kept.
func (c *collector) Observe(_ context.Context, o harness.Outcome, _ *harness.Trace) {
	c.Record(o)
}

func (c *collector) Record(o harness.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
}

// RecordFatal marks the run as aborted. Only the first error is kept.
func (c *collector) RecordFatal(err error) {
	if err == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fatal == nil {
		c.fatal = err
	}
}

func (c *collector) Outcomes() []harness.Outcome {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]harness.Outcome, len(c.outcomes))
	copy(result, c.outcomes)
	return result
}

func (c *collector) Summary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Summary{
		Total:   len(c.outcomes),
		Aborted: c.fatal != nil,
	}

	if !c.startTime.IsZero() {
		s.Elapsed = c.clock.Since(c.startTime)
	}

	for _, o := range c.outcomes {
		s.ScenarioTime += o.Duration
		if o.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
	}

	return s
}

func (c *collector) ExitCode() int {
	s := c.Summary()
	if s.Aborted || s.Failed > 0 {
		return config.ExitFailure
	}
	return config.ExitSuccess
}

// Compile-time interface compliance check
var _ Collector = (*collector)(nil)
