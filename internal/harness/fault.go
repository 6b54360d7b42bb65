package harness

import (
	"context"
	"fmt"

	"github.com/ethpandaops/hilbench/internal/scenario"
	"github.com/sirupsen/logrus"
)

// FaultDriver switches fault actuators through the session's bindings.
type FaultDriver struct {
	log     logrus.FieldLogger
	session *Session
	state   map[string]bool
}

// NewFaultDriver creates a driver for the session's configured faults.
func NewFaultDriver(log logrus.FieldLogger, session *Session) *FaultDriver {
	return &FaultDriver{
		log:     log.WithField("component", "fault_driver"),
		session: session,
		state:   make(map[string]bool),
	}
}

// Control returns the mechanism for id, or a ConfigurationError when there is none.
func (d *FaultDriver) Control(id string) (scenario.FaultControl, error) {
	fc, ok := d.session.Suite().Faults[id]
	if !ok {
		return scenario.FaultControl{}, &ConfigurationError{Fault: id, Err: errUnknownFault}
	}
	if fc.Signal == "" && fc.Component == nil {
		return scenario.FaultControl{}, &ConfigurationError{Fault: id, Err: errNoFaultControl}
	}
	return fc, nil
}

// Apply switches fault id on or off. Every call issues the write, so repeating
// a value is harmless.
func (d *FaultDriver) Apply(ctx context.Context, id string, on bool) error {
	fc, err := d.Control(id)
	if err != nil {
		return err
	}

	if d.session.Bindings() == nil {
		return errSessionNotReady
	}

	if fc.Signal != "" {
		if err := d.session.Bindings().WriteBool(ctx, d.session.Simulator(), fc.Signal, on); err != nil {
			return fmt.Errorf("switching fault %s: %w", id, err)
		}
	} else if err := d.applyComponent(ctx, fc.Component, on); err != nil {
		return fmt.Errorf("switching fault %s: %w", id, err)
	}

	d.state[id] = on

	d.log.WithFields(logrus.Fields{
		"fault": id,
		"on":    on,
	}).Debug("Fault switched")

	return nil
}

// applyComponent writes the impedance before enabling so the fault starts with it.
func (d *FaultDriver) applyComponent(ctx context.Context, c *scenario.ComponentControl, on bool) error {
	s := d.session.Simulator()

	if on {
		if c.ResistanceParam != "" {
			if err := s.SetParameter(ctx, c.Path, c.ResistanceParam, c.Impedance.R); err != nil {
				return err
			}
		}
		if c.ReactanceParam != "" {
			if err := s.SetParameter(ctx, c.Path, c.ReactanceParam, c.Impedance.X); err != nil {
				return err
			}
		}
		return s.SetParameter(ctx, c.Path, c.EnableParam, 1)
	}

	return s.SetParameter(ctx, c.Path, c.EnableParam, 0)
}

// State returns the last value applied to id.
func (d *FaultDriver) State(id string) bool {
	return d.state[id]
}
