package store

import (
	"context"
	"fmt"
	"math"

	"github.com/ethpandaops/hilbench/internal/config"
	"github.com/ethpandaops/hilbench/internal/harness"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
)

// InfluxConfig describes where outcome and trace points are written.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxConfigFromApp extracts the InfluxDB settings from the application config.
func InfluxConfigFromApp(cfg *config.AppConfig) InfluxConfig {
	return InfluxConfig{
		URL:    cfg.InfluxURL,
		Token:  cfg.InfluxToken,
		Org:    cfg.InfluxOrg,
		Bucket: cfg.InfluxBucket,
	}
}

// InfluxSink writes one point per outcome and one per trace checkpoint.
type InfluxSink struct {
	log    logrus.FieldLogger
	cfg    InfluxConfig
	client influxdb2.Client
	writer api.WriteAPIBlocking
}

// NewInfluxSink creates a sink; Start checks the server and opens the write API.
func NewInfluxSink(log logrus.FieldLogger, cfg InfluxConfig) *InfluxSink {
	return &InfluxSink{
		log: log.WithField("component", "store.influx"),
		cfg: cfg,
	}
}

func (s *InfluxSink) Start(ctx context.Context) error {
	client := influxdb2.NewClient(s.cfg.URL, s.cfg.Token)

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return fmt.Errorf("failed to reach InfluxDB at %s: %w", s.cfg.URL, err)
	}

	s.client = client
	s.writer = client.WriteAPIBlocking(s.cfg.Org, s.cfg.Bucket)

	s.log.WithFields(logrus.Fields{
		"url":    s.cfg.URL,
		"org":    s.cfg.Org,
		"bucket": s.cfg.Bucket,
		"status": health.Status,
	}).Info("influx sink started")

	return nil
}

func (s *InfluxSink) Stop() error {
	if s.client != nil {
		s.client.Close()
		s.client = nil
		s.log.Info("influx sink stopped")
	}
	s.writer = nil

	return nil
}

func (s *InfluxSink) RecordOutcome(ctx context.Context, o harness.Outcome) error {
	if s.writer == nil {
		return errNotStarted
	}

	if err := s.writer.WritePoint(ctx, OutcomePoint(o)); err != nil {
		return fmt.Errorf("failed to write outcome point: %w", err)
	}

	return nil
}

func (s *InfluxSink) RecordTrace(ctx context.Context, o harness.Outcome, tr *harness.Trace) error {
	if s.writer == nil {
		return errNotStarted
	}

	points := TracePoints(o, tr)
	if len(points) == 0 {
		return nil
	}

	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write %d trace points: %w", len(points), err)
	}

	return nil
}

func outcomeTags(o harness.Outcome) map[string]string {
	return map[string]string{
		"run_id":   o.RunID,
		"scenario": o.Scenario,
		"kind":     string(o.Kind),
	}
}

// OutcomePoint converts o into a point stamped at its start time.
func OutcomePoint(o harness.Outcome) *write.Point {
	fields := map[string]interface{}{
		"passed":      o.Passed,
		"details":     o.Details,
		"duration_ms": harness.Millis(o.Duration),
	}

	if o.PickupMS != nil {
		fields["pickup_ms"] = *o.PickupMS
	}
	if o.TripMS != nil {
		fields["trip_ms"] = *o.TripMS
	}
	if o.ReactionMS != nil {
		fields["reaction_ms"] = *o.ReactionMS
	}

	return influxdb2.NewPoint(config.OutcomeMeasurement, outcomeTags(o), fields, o.StartedAt)
}

// TracePoints converts each checkpoint into a point. NaN and infinite values
// are skipped and checkpoints left without fields are dropped.
func TracePoints(o harness.Outcome, tr *harness.Trace) []*write.Point {
	if tr == nil {
		return nil
	}

	points := make([]*write.Point, 0, tr.Len())

	for _, sample := range tr.Samples() {
		fields := make(map[string]interface{}, len(sample.Values))

		for _, name := range tr.Signals() {
			v, ok := sample.Values[name]
			if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			fields[name] = v
		}

		if len(fields) == 0 {
			continue
		}

		tags := outcomeTags(o)
		tags["label"] = sample.Label

		points = append(points, influxdb2.NewPoint(config.TraceMeasurement, tags, fields, o.StartedAt.Add(sample.Elapsed)))
	}

	return points
}

// Compile-time interface compliance check
var _ Sink = (*InfluxSink)(nil)
