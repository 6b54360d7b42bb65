// Package soak repeats a suite on a fixed cadence for long-running stability checks.
package soak

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/hilbench/internal/clock"
	"github.com/ethpandaops/hilbench/internal/harness"
	"github.com/ethpandaops/hilbench/internal/scenario"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var errNoScenarios = errors.New("no scenarios to soak")

// Runner runs a list of scenarios once.
type Runner interface {
	RunAll(ctx context.Context, scenarios []scenario.Scenario) ([]harness.Outcome, error)
}

// IterationObserver is told about every completed pass.
type IterationObserver interface {
	IterationDone()
}

// Options controls how long and how often the suite is repeated.
type Options struct {
	// Duration bounds the soak; zero runs until the context ends or MaxIterations is hit.
	Duration time.Duration
	// Interval is the minimum spacing between pass starts; zero runs back to back.
	Interval time.Duration
	// MaxIterations stops after that many passes when positive.
	MaxIterations int
}

// Result summarises a soak.
type Result struct {
	Iterations int
	Outcomes   int
	Failed     int
	Elapsed    time.Duration
}

// Loop drives repeated passes over a suite.
type Loop struct {
	log       logrus.FieldLogger
	runner    Runner
	clock     clock.Clock
	opts      Options
	limiter   *rate.Limiter
	observers []IterationObserver
}

// NewLoop creates a soak loop over runner.
func NewLoop(log logrus.FieldLogger, runner Runner, clk clock.Clock, opts Options, observers ...IterationObserver) *Loop {
	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}

	return &Loop{
		log:       log.WithField("component", "soak"),
		runner:    runner,
		clock:     clk,
		opts:      opts,
		limiter:   rate.NewLimiter(limit, 1),
		observers: observers,
	}
}

// Run repeats scenarios until the duration elapses, the iteration cap is
// reached or ctx is cancelled. Cancellation ends the soak without error; a
// fatal scenario error stops it and is returned.
func (l *Loop) Run(ctx context.Context, scenarios []scenario.Scenario) (Result, error) {
	if len(scenarios) == 0 {
		return Result{}, errNoScenarios
	}

	var (
		res   Result
		start = l.clock.Now()
	)

	l.log.WithFields(logrus.Fields{
		"duration":  l.opts.Duration,
		"interval":  l.opts.Interval,
		"scenarios": len(scenarios),
	}).Info("Soak started")

	for !l.done(res, start) {
		if err := l.wait(ctx, start); err != nil {
			if ctx.Err() != nil {
				break
			}
			if l.opts.Duration > 0 {
				l.log.Debug("Next iteration would start after the soak ends")
				break
			}
			return l.finish(res, start), fmt.Errorf("waiting for next iteration: %w", err)
		}

		outcomes, err := l.runner.RunAll(ctx, scenarios)
		res.Outcomes += len(outcomes)
		for _, o := range outcomes {
			if !o.Passed {
				res.Failed++
			}
		}

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return l.finish(res, start), fmt.Errorf("iteration %d: %w", res.Iterations+1, err)
		}

		res.Iterations++
		for _, obs := range l.observers {
			obs.IterationDone()
		}

		l.log.WithFields(logrus.Fields{
			"iteration": res.Iterations,
			"outcomes":  res.Outcomes,
			"failed":    res.Failed,
		}).Info("Soak iteration complete")
	}

	return l.finish(res, start), nil
}

// wait blocks for the next limiter token, but never past the end of the soak.
func (l *Loop) wait(ctx context.Context, start time.Time) error {
	if l.opts.Duration <= 0 {
		return l.limiter.Wait(ctx)
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.opts.Duration-l.clock.Since(start))
	defer cancel()

	return l.limiter.Wait(waitCtx)
}

func (l *Loop) done(res Result, start time.Time) bool {
	if l.opts.MaxIterations > 0 && res.Iterations >= l.opts.MaxIterations {
		return true
	}
	return l.opts.Duration > 0 && l.clock.Since(start) >= l.opts.Duration
}

func (l *Loop) finish(res Result, start time.Time) Result {
	res.Elapsed = l.clock.Since(start)

	l.log.WithFields(logrus.Fields{
		"iterations": res.Iterations,
		"outcomes":   res.Outcomes,
		"failed":     res.Failed,
		"elapsed":    res.Elapsed,
	}).Info("Soak finished")

	return res
}
