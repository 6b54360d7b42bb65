package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/ethpandaops/hilbench/internal/scenario"
	"github.com/sirupsen/logrus"
)

// DefaultPulseWidth is used for pulse actions without a width.
const DefaultPulseWidth = 100 * time.Millisecond

// runSetup executes a scenario's setup actions in order.
func runSetup(ctx context.Context, log logrus.FieldLogger, session *Session, actions []scenario.Action) error {
	b := session.Bindings()
	s := session.Simulator()
	clk := session.Clock()

	for i, a := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}

		log.WithFields(logrus.Fields{
			"step":   i,
			"action": a.Action,
			"signal": a.Signal,
		}).Debug("Running setup action")

		switch a.Action {
		case scenario.ActionSet:
			if err := b.Write(ctx, s, a.Signal, a.Value); err != nil {
				return fmt.Errorf("setup[%d] set: %w", i, err)
			}
		case scenario.ActionPulse:
			width := a.Width
			if width <= 0 {
				width = DefaultPulseWidth
			}
			if err := b.WriteBool(ctx, s, a.Signal, true); err != nil {
				return fmt.Errorf("setup[%d] pulse: %w", i, err)
			}
			clk.Sleep(width)
			if err := b.WriteBool(ctx, s, a.Signal, false); err != nil {
				return fmt.Errorf("setup[%d] pulse: %w", i, err)
			}
		case scenario.ActionWait:
			clk.Sleep(a.Duration)
		}
	}

	return nil
}
