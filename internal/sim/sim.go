// Package sim defines the narrow capability surface the harness needs from a
// HIL simulator, together with the simulator error taxonomy.
package sim

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotRunning is returned by signal accessors when no simulation is running.
var ErrNotRunning = errors.New("simulation not running")

// Model is a handle to a loaded model.
type Model struct {
	Path string
	VHIL bool
	// Schematic is true when the loaded file still needs compiling.
	Schematic bool
}

// Simulator is the call/response contract of a HIL simulator backend.
// Implementations may serialise calls; the harness never calls concurrently.
type Simulator interface {
	LoadModel(ctx context.Context, path string, vhil bool) (Model, error)
	CompileModel(ctx context.Context, m Model) error
	StartSimulation(ctx context.Context) error
	StopSimulation(ctx context.Context) error
	ReleaseHardware(ctx context.Context) error

	Catalog(ctx context.Context) (*Catalog, error)

	SetDigitalInput(ctx context.Context, name string, value int) error
	GetDigitalOutput(ctx context.Context, name string) (int, error)
	GetAnalogSignal(ctx context.Context, name string) (float64, error)
	SetModelSignal(ctx context.Context, name string, value float64) error
	SetParameter(ctx context.Context, component, param string, value float64) error
}

// Edge is a change notification for a boolean signal.
type Edge struct {
	Name  string
	Value bool
}

// Notifier is implemented by backends that can push signal changes instead of
// being polled. The returned cancel func releases the subscription.
type Notifier interface {
	Subscribe(ctx context.Context, name string) (<-chan Edge, func(), error)
}

// SignalNotFoundError reports a signal or component name the loaded model does not know.
type SignalNotFoundError struct {
	Name string
}

func (e *SignalNotFoundError) Error() string {
	return fmt.Sprintf("signal not found: %s", e.Name)
}

// ModelError reports a failure to load, compile or run a model.
type ModelError struct {
	Op   string
	Path string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("model %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("model %s %s failed: %v", e.Op, e.Path, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}
