package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethpandaops/hilbench/internal/config"
	"github.com/ethpandaops/hilbench/internal/scenario"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var errUnknownKind = errors.New("unknown scenario kind")

// Observer receives every outcome as soon as it is produced.
type Observer interface {
	Observe(ctx context.Context, o Outcome, tr *Trace)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, o Outcome, tr *Trace)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, o Outcome, tr *Trace) {
	f(ctx, o, tr)
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// RunID tags every outcome. A random id is used when empty.
	RunID string
	// CaptureDir overrides the suite's capture directory.
	CaptureDir string
	Observers  []Observer
}

// Runner sequences scenarios through their phases and evaluates them.
type Runner struct {
	log        logrus.FieldLogger
	session    *Session
	faults     *FaultDriver
	poller     *Poller
	runID      string
	captureDir string
	observers  []Observer
}

// NewRunner creates a runner over a started session.
func NewRunner(log logrus.FieldLogger, session *Session, opts RunnerOptions) *Runner {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	dir := opts.CaptureDir
	if dir == "" {
		dir = session.Suite().Capture.Dir
	}
	if dir == "" {
		dir = config.DefaultCaptureDir
	}

	return &Runner{
		log:        log.WithField("component", "runner"),
		session:    session,
		faults:     NewFaultDriver(log, session),
		poller:     NewPoller(log, session),
		runID:      runID,
		captureDir: dir,
		observers:  opts.Observers,
	}
}

// RunID returns the id stamped on outcomes.
func (r *Runner) RunID() string {
	return r.runID
}

// Faults returns the runner's fault driver.
func (r *Runner) Faults() *FaultDriver {
	return r.faults
}

// RunAll arms protection and runs scenarios in order. It stops at the first
// fatal error; outcomes produced so far are returned with it.
func (r *Runner) RunAll(ctx context.Context, scenarios []scenario.Scenario) ([]Outcome, error) {
	if err := r.session.Arm(ctx); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(scenarios))
	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		o, err := r.Run(ctx, sc)
		outcomes = append(outcomes, o)
		if err != nil {
			return outcomes, err
		}
	}

	return outcomes, nil
}

// Run executes one scenario and returns exactly one outcome. A non-nil error
// means the simulator failed and the run should stop; the outcome is still a FAIL.
func (r *Runner) Run(ctx context.Context, sc scenario.Scenario) (Outcome, error) {
	clk := r.session.Clock()
	suite := r.session.Suite()
	started := clk.Now()

	log := r.log.WithFields(logrus.Fields{
		"scenario": sc.Name,
		"kind":     sc.Kind,
	})

	out := Outcome{
		RunID:     r.runID,
		Scenario:  sc.Name,
		Kind:      sc.Kind,
		StartedAt: started,
	}
	tr := NewTrace(suite.Capture.Signals)
	smp := &sampler{session: r.session, start: started, trace: tr}

	finish := func(o Outcome) Outcome {
		o.Duration = clk.Since(started)
		for _, obs := range r.observers {
			obs.Observe(ctx, o, tr)
		}
		return o
	}

	if _, err := r.faults.Control(sc.Fault); err != nil {
		log.WithError(err).Warn("Scenario not runnable")
		out.Details = "Configuration error: " + err.Error()
		return finish(out), nil
	}

	log.Info("Running scenario")

	if err := runSetup(ctx, log, r.session, sc.Setup); err != nil {
		return r.abort(ctx, log, out, sc.Fault, false, err, finish)
	}

	smp.record(ctx, LabelStart)
	clk.Sleep(suite.Timing.Prefault)
	smp.record(ctx, LabelPrefault)

	if err := r.faults.Apply(ctx, sc.Fault, true); err != nil {
		return r.abort(ctx, log, out, sc.Fault, true, err, finish)
	}

	var (
		timing   Timing
		reaction reactionResult
		label    string
		err      error
	)

	switch sc.Kind {
	case scenario.KindInternal:
		timing, err = r.poller.WaitFor(ctx, suite.IO.PickupOutput, suite.IO.TripOutput, suite.Timing.TripWindow())
		label = LabelFaultApplied
	case scenario.KindExternal:
		timing, err = r.poller.WaitFor(ctx, "", suite.IO.TripOutput, suite.Timing.StabilityWindow)
		label = LabelExternalDone
	case scenario.KindReaction:
		var capture *Capture
		names := []string{sc.Reaction.FaultFeedback, sc.Reaction.BreakerFeedback}
		capture, err = captureSignals(ctx, r.session, names, suite.Capture.RateHz, sc.Reaction.Window)
		if err == nil {
			reaction = measureReaction(capture, sc.Reaction)
		}
		label = LabelCaptureDone
	default:
		err = fmt.Errorf("%w: %s", errUnknownKind, sc.Kind)
	}
	if err != nil {
		return r.abort(ctx, log, out, sc.Fault, true, err, finish)
	}
	smp.record(ctx, label)

	// The fault is held for the full fault duration after the observation.
	if sc.Kind != scenario.KindExternal {
		clk.Sleep(suite.Timing.FaultDuration)
	}

	if err := r.faults.Apply(ctx, sc.Fault, false); err != nil {
		return r.abort(ctx, log, out, sc.Fault, true, err, finish)
	}
	smp.record(ctx, LabelFaultCleared)

	clk.Sleep(suite.Timing.Postfault)
	smp.record(ctx, LabelPostfault)

	switch sc.Kind {
	case scenario.KindInternal:
		out.Passed, out.Details = evaluateInternal(timing, suite.Timing)
		out.PickupMS = msPtr(timing.Pickup)
		out.TripMS = msPtr(timing.Trip)
	case scenario.KindExternal:
		out.Passed, out.Details = evaluateExternal(timing)
		if !out.Passed {
			out.TripMS = msPtr(timing.Trip)
		}
	case scenario.KindReaction:
		out.Passed, out.Details = evaluateReaction(reaction, sc.Reaction.MaxReaction)
		if d, ok := reaction.reaction(); ok {
			out.ReactionMS = msPtr(&d)
		}
	}

	if suite.Capture.CSV {
		path, err := tr.SaveCSV(r.captureDir, sc.Name, started)
		if err != nil {
			log.WithError(err).Warn("Failed to save trace")
		} else {
			out.TracePath = path
		}
	}

	log.WithFields(logrus.Fields{
		"passed":  out.Passed,
		"details": out.Details,
	}).Info("Scenario finished")

	return finish(out), nil
}

// abort turns a fatal error into a FAIL outcome, clearing the fault first when it may be applied.
func (r *Runner) abort(
	ctx context.Context,
	log logrus.FieldLogger,
	out Outcome,
	fault string,
	clearFault bool,
	cause error,
	finish func(Outcome) Outcome,
) (Outcome, error) {
	if IsConfigurationError(cause) {
		out.Details = "Configuration error: " + cause.Error()
		return finish(out), nil
	}

	log.WithError(cause).Error("Scenario aborted")

	if clearFault {
		if err := r.faults.Apply(context.WithoutCancel(ctx), fault, false); err != nil {
			log.WithError(err).Warn("Failed to clear fault after abort")
		}
	}

	out.Passed = false
	out.Details = "Aborted: " + cause.Error()

	return finish(out), fmt.Errorf("scenario %s: %w", out.Scenario, cause)
}

func evaluateInternal(t Timing, th scenario.Timing) (bool, string) {
	passed := true
	var msgs []string

	switch {
	case t.Pickup == nil:
		passed = false
		msgs = append(msgs, "Pickup not detected.")
	case *t.Pickup > th.ExpectPickup:
		passed = false
		msgs = append(msgs, fmt.Sprintf("Pickup too slow: %s > %s", formatMS(*t.Pickup), formatMS(th.ExpectPickup)))
	default:
		msgs = append(msgs, "Pickup OK: "+formatMS(*t.Pickup))
	}

	switch {
	case t.Trip == nil:
		passed = false
		msgs = append(msgs, "Trip not detected.")
	case *t.Trip > th.ExpectTrip:
		passed = false
		msgs = append(msgs, fmt.Sprintf("Trip too slow: %s > %s", formatMS(*t.Trip), formatMS(th.ExpectTrip)))
	default:
		msgs = append(msgs, "Trip OK: "+formatMS(*t.Trip))
	}

	return passed, strings.Join(msgs, "; ")
}

func evaluateExternal(t Timing) (bool, string) {
	if t.Trip == nil {
		return true, "Stable (no trip)"
	}
	return false, "Relay tripped for external fault."
}

func evaluateReaction(r reactionResult, limit time.Duration) (bool, string) {
	if r.faultAt == nil {
		return false, "Fault feedback edge not detected."
	}
	if r.breakerAt == nil {
		return false, "Breaker opening not detected."
	}

	d, _ := r.reaction()
	if d > limit {
		return false, fmt.Sprintf("Reaction too slow: %s > %s", formatMS(d), formatMS(limit))
	}
	return true, "Reaction OK: " + formatMS(d)
}
