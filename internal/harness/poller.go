package harness

import (
	"context"
	"time"

	"github.com/ethpandaops/hilbench/internal/sim"
	"github.com/sirupsen/logrus"
)

// Poller watches boundary outputs for pickup and trip.
type Poller struct {
	log       logrus.FieldLogger
	session   *Session
	interval  time.Duration
	useEvents bool
}

// NewPoller creates a poller using the suite's poll interval. Backends that
// push edges are subscribed to instead of polled.
func NewPoller(log logrus.FieldLogger, session *Session) *Poller {
	_, notifier := session.Simulator().(sim.Notifier)

	return &Poller{
		log:       log.WithField("component", "poller"),
		session:   session,
		interval:  session.Suite().Timing.PollInterval,
		useEvents: notifier,
	}
}

// WaitFor waits up to timeout for trip. The first time pickup reads true is
// recorded without stopping. Either name may be empty to skip it. A timeout is
// not an error: unobserved events are nil in the returned Timing.
func (p *Poller) WaitFor(ctx context.Context, pickup, trip string, timeout time.Duration) (Timing, error) {
	start := p.session.Clock().Now()

	if p.useEvents {
		res, done, err := p.waitEvents(ctx, start, pickup, trip, timeout)
		if err != nil || done {
			return res, err
		}
		return p.poll(ctx, start, res, pickup, trip, timeout)
	}

	return p.poll(ctx, start, Timing{}, pickup, trip, timeout)
}

func (p *Poller) poll(ctx context.Context, start time.Time, res Timing, pickup, trip string, timeout time.Duration) (Timing, error) {
	clk := p.session.Clock()
	b := p.session.Bindings()
	s := p.session.Simulator()

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if clk.Since(start) >= timeout {
			return res, nil
		}

		if pickup != "" && res.Pickup == nil {
			on, err := b.ReadBool(ctx, s, pickup)
			if err != nil {
				return res, err
			}
			if on {
				d := clk.Since(start)
				res.Pickup = &d
			}
		}

		if trip != "" {
			on, err := b.ReadBool(ctx, s, trip)
			if err != nil {
				return res, err
			}
			if on {
				d := clk.Since(start)
				res.Trip = &d
				return res, nil
			}
		}

		clk.Sleep(p.interval)
	}
}

// waitEvents uses edge notifications. done is false when the subscription
// could not be made or was lost, in which case polling takes over.
func (p *Poller) waitEvents(ctx context.Context, start time.Time, pickup, trip string, timeout time.Duration) (Timing, bool, error) {
	var res Timing

	notifier, ok := p.session.Simulator().(sim.Notifier)
	if !ok {
		return res, false, nil
	}

	clk := p.session.Clock()
	b := p.session.Bindings()
	s := p.session.Simulator()

	subscribe := func(name string) (<-chan sim.Edge, func(), bool) {
		if name == "" {
			return nil, func() {}, true
		}
		ch, cancel, err := notifier.Subscribe(ctx, name)
		if err != nil {
			p.log.WithError(err).WithField("signal", name).Debug("Subscribe failed, polling instead")
			return nil, nil, false
		}
		return ch, cancel, true
	}

	pickupCh, cancelPickup, ok := subscribe(pickup)
	if !ok {
		return res, false, nil
	}
	defer cancelPickup()

	tripCh, cancelTrip, ok := subscribe(trip)
	if !ok {
		return res, false, nil
	}
	defer cancelTrip()

	// Edges that happened before the subscription are caught by one read.
	if pickup != "" {
		on, err := b.ReadBool(ctx, s, pickup)
		if err != nil {
			return res, true, err
		}
		if on {
			d := clk.Since(start)
			res.Pickup = &d
		}
	}
	if trip != "" {
		on, err := b.ReadBool(ctx, s, trip)
		if err != nil {
			return res, true, err
		}
		if on {
			d := clk.Since(start)
			res.Trip = &d
			return res, true, nil
		}
	}

	timer := time.NewTimer(timeout - clk.Since(start))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return res, true, ctx.Err()
		case <-timer.C:
			return res, true, nil
		case e, open := <-pickupCh:
			if !open {
				pickupCh = nil
				if trip == "" {
					return res, false, nil
				}
				continue
			}
			if e.Value && res.Pickup == nil {
				d := clk.Since(start)
				res.Pickup = &d
			}
		case e, open := <-tripCh:
			if !open {
				return res, false, nil
			}
			if e.Value {
				d := clk.Since(start)
				res.Trip = &d
				return res, true, nil
			}
		}
	}
}
