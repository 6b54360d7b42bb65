// Package store persists scenario outcomes and traces to external databases.
package store

import (
	"context"
	"errors"

	"github.com/ethpandaops/hilbench/internal/harness"
	"github.com/sirupsen/logrus"
)

// Sink receives outcomes and their traces.
type Sink interface {
	Start(ctx context.Context) error
	Stop() error
	RecordOutcome(ctx context.Context, o harness.Outcome) error
	RecordTrace(ctx context.Context, o harness.Outcome, tr *harness.Trace) error
}

// Multi fans every call out to a set of sinks. It keeps going when one of
// them fails and joins the errors.
type Multi struct {
	log   logrus.FieldLogger
	sinks []Sink
}

// NewMulti creates a fan-out over sinks.
func NewMulti(log logrus.FieldLogger, sinks ...Sink) *Multi {
	return &Multi{
		log:   log.WithField("component", "store.multi"),
		sinks: sinks,
	}
}

// Len returns the number of sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

func (m *Multi) Start(ctx context.Context) error {
	var errs []error

	for _, s := range m.sinks {
		if err := s.Start(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m *Multi) Stop() error {
	var errs []error

	for _, s := range m.sinks {
		if err := s.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m *Multi) RecordOutcome(ctx context.Context, o harness.Outcome) error {
	var errs []error

	for _, s := range m.sinks {
		if err := s.RecordOutcome(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m *Multi) RecordTrace(ctx context.Context, o harness.Outcome, tr *harness.Trace) error {
	if tr == nil {
		return nil
	}

	var errs []error

	for _, s := range m.sinks {
		if err := s.RecordTrace(ctx, o, tr); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Observe records o and tr, logging failures. Sink errors never change an outcome.
func (m *Multi) Observe(ctx context.Context, o harness.Outcome, tr *harness.Trace) {
	log := m.log.WithFields(logrus.Fields{
		"scenario": o.Scenario,
		"run_id":   o.RunID,
	})

	if err := m.RecordOutcome(ctx, o); err != nil {
		log.WithError(err).Warn("failed to record outcome")
	}

	if err := m.RecordTrace(ctx, o, tr); err != nil {
		log.WithError(err).Warn("failed to record trace")
	}
}

// Compile-time interface compliance checks
var (
	_ Sink             = (*Multi)(nil)
	_ harness.Observer = (*Multi)(nil)
)
