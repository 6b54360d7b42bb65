// Package harness runs fault-injection scenarios against a simulator and
// evaluates protection timing.
package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethpandaops/hilbench/internal/clock"
	"github.com/ethpandaops/hilbench/internal/scenario"
	"github.com/ethpandaops/hilbench/internal/sim"
	"github.com/sirupsen/logrus"
)

// Session owns the simulator for the lifetime of a run.
type Session struct {
	log   logrus.FieldLogger
	sim   sim.Simulator
	suite *scenario.Suite
	clock clock.Clock

	model    sim.Model
	bindings *sim.Bindings
	started  bool
	stopped  bool
}

// NewSession creates a session over s. The suite is copied.
func NewSession(log logrus.FieldLogger, s sim.Simulator, suite *scenario.Suite, clk clock.Clock) *Session {
	return &Session{
		log:   log.WithField("component", "session"),
		sim:   s,
		suite: suite.Clone(),
		clock: clk,
	}
}

// Start loads, compiles when needed, starts the simulation and probes bindings.
// Any failure is fatal.
func (s *Session) Start(ctx context.Context) error {
	path := s.suite.Model.LoadPath()

	s.log.WithFields(logrus.Fields{
		"model": path,
		"vhil":  s.suite.Model.VHIL,
	}).Info("Loading model")

	model, err := s.sim.LoadModel(ctx, path, s.suite.Model.VHIL)
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}
	s.model = model

	if model.Schematic {
		s.log.Info("Compiling model")
		if err := s.sim.CompileModel(ctx, model); err != nil {
			return fmt.Errorf("compiling model: %w", err)
		}
	}

	if err := s.sim.StartSimulation(ctx); err != nil {
		return fmt.Errorf("starting simulation: %w", err)
	}
	s.started = true

	cat, err := s.sim.Catalog(ctx)
	if err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}

	bindings, err := sim.Probe(cat, ProbeRequest(s.suite))
	if err != nil {
		return fmt.Errorf("probing bindings: %w", err)
	}
	s.bindings = bindings

	s.log.WithField("bindings", len(bindings.All())).Info("Simulation started")

	return nil
}

// Stop stops the simulation and releases the hardware. Release always runs,
// its failures are logged. Calling Stop again is a no-op.
func (s *Session) Stop(ctx context.Context) error {
	if s.stopped {
		return nil
	}
	s.stopped = true

	// Teardown must run even when the run was cancelled.
	ctx = context.WithoutCancel(ctx)

	var stopErr error
	if s.started {
		if err := s.sim.StopSimulation(ctx); err != nil {
			stopErr = fmt.Errorf("stopping simulation: %w", err)
			s.log.WithError(err).Error("Failed to stop simulation")
		}
	}

	if err := s.sim.ReleaseHardware(ctx); err != nil {
		s.log.WithError(err).Warn("Failed to release hardware")
	}

	s.log.Info("Session stopped")

	return stopErr
}

// Arm sets the arming input and waits for the relay logic to settle.
func (s *Session) Arm(ctx context.Context) error {
	if s.bindings == nil {
		return errSessionNotReady
	}

	if err := s.bindings.WriteBool(ctx, s.sim, s.suite.IO.ArmInput, true); err != nil {
		return fmt.Errorf("arming protection: %w", err)
	}
	s.clock.Sleep(s.suite.Timing.ArmSettle)

	s.log.WithField("input", s.suite.IO.ArmInput).Debug("Protection armed")

	return nil
}

// Bindings returns the probed binding table. Nil before Start.
func (s *Session) Bindings() *sim.Bindings {
	return s.bindings
}

// Simulator returns the underlying simulator.
func (s *Session) Simulator() sim.Simulator {
	return s.sim
}

// Suite returns the session's copy of the suite.
func (s *Session) Suite() *scenario.Suite {
	return s.suite
}

// Clock returns the session clock.
func (s *Session) Clock() clock.Clock {
	return s.clock
}

// WithSession starts a session, runs fn and always stops the session.
func WithSession(
	ctx context.Context,
	log logrus.FieldLogger,
	s sim.Simulator,
	suite *scenario.Suite,
	clk clock.Clock,
	fn func(ctx context.Context, sess *Session) error,
) error {
	sess := NewSession(log, s, suite, clk)

	if err := sess.Start(ctx); err != nil {
		return errors.Join(err, sess.Stop(ctx))
	}

	runErr := fn(ctx, sess)

	return errors.Join(runErr, sess.Stop(ctx))
}

// ProbeRequest lists every name the suite reads or writes.
func ProbeRequest(suite *scenario.Suite) sim.ProbeRequest {
	req := sim.ProbeRequest{
		Required: []string{suite.IO.ArmInput, suite.IO.TripOutput, suite.IO.PickupOutput},
		Optional: append([]string(nil), suite.Capture.Signals...),
	}

	for _, fc := range suite.Faults {
		if fc.Signal != "" {
			req.Required = append(req.Required, fc.Signal)
		}
		if c := fc.Component; c != nil {
			for _, p := range []string{c.EnableParam, c.ResistanceParam, c.ReactanceParam} {
				if p != "" {
					req.Components = append(req.Components, sim.ComponentRef{Component: c.Path, Param: p})
				}
			}
		}
	}

	for _, sc := range suite.Scenarios {
		for _, a := range sc.Setup {
			if a.Signal != "" {
				req.Required = append(req.Required, a.Signal)
			}
		}
		if sc.Reaction != nil {
			req.Required = append(req.Required, sc.Reaction.FaultFeedback, sc.Reaction.BreakerFeedback)
		}
	}

	return req
}
