// Package observability exposes scenario results as Prometheus metrics.
package observability

import (
	"context"

	"github.com/ethpandaops/hilbench/internal/harness"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hilbench"

var latencyBuckets = []float64{1, 2, 5, 10, 15, 20, 30, 40, 60, 100, 250}

// Metrics holds the harness collectors, registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	outcomes   *prometheus.CounterVec
	pickup     *prometheus.HistogramVec
	trip       *prometheus.HistogramVec
	reaction   *prometheus.HistogramVec
	duration   *prometheus.HistogramVec
	iterations prometheus.Counter
	aborts     prometheus.Counter
	lastPassed *prometheus.GaugeVec
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Labels: scenario, kind, status (pass, fail)
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "outcomes_total",
			Help:      "Scenario outcomes by status",
		}, []string{"scenario", "kind", "status"}),

		pickup: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "pickup_ms",
			Help:      "Measured relay pickup latency in milliseconds",
			Buckets:   latencyBuckets,
		}, []string{"scenario"}),

		trip: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "trip_ms",
			Help:      "Measured relay trip latency in milliseconds",
			Buckets:   latencyBuckets,
		}, []string{"scenario"}),

		reaction: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "reaction_ms",
			Help:      "Measured fault to breaker opening time in milliseconds",
			Buckets:   latencyBuckets,
		}, []string{"scenario"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "duration_seconds",
			Help:      "Wall time of one scenario execution",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scenario"}),

		iterations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "soak",
			Name:      "iterations_total",
			Help:      "Completed passes over the suite",
		}),

		aborts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_aborts_total",
			Help:      "Runs stopped by a fatal simulator error",
		}),

		lastPassed: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "last_passed",
			Help:      "1 if the latest execution of the scenario passed, 0 otherwise",
		}, []string{"scenario"}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records one outcome.
func (m *Metrics) Observe(_ context.Context, o harness.Outcome, _ *harness.Trace) {
	status := "fail"
	passed := 0.0
	if o.Passed {
		status = "pass"
		passed = 1
	}

	m.outcomes.WithLabelValues(o.Scenario, string(o.Kind), status).Inc()
	m.lastPassed.WithLabelValues(o.Scenario).Set(passed)
	m.duration.WithLabelValues(o.Scenario).Observe(o.Duration.Seconds())

	if o.PickupMS != nil {
		m.pickup.WithLabelValues(o.Scenario).Observe(*o.PickupMS)
	}
	if o.TripMS != nil {
		m.trip.WithLabelValues(o.Scenario).Observe(*o.TripMS)
	}
	if o.ReactionMS != nil {
		m.reaction.WithLabelValues(o.Scenario).Observe(*o.ReactionMS)
	}
}

// IterationDone counts one pass over the suite.
func (m *Metrics) IterationDone() {
	m.iterations.Inc()
}

// RunAborted counts a run stopped by a fatal error.
func (m *Metrics) RunAborted() {
	m.aborts.Inc()
}

// Compile-time interface compliance check
var _ harness.Observer = (*Metrics)(nil)
