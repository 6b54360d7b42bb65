// Package scenario provides suite definition loading and validation.
// A suite specifies what to test (model, I/O bindings, fault actuators, scenarios)
// as opposed to where to run it (see config.AppConfig).
package scenario

import "time"

// Kind enumerates the scenario variants the runner knows how to evaluate.
type Kind string

const (
	// KindInternal is an in-zone fault: pickup and trip must both happen in time.
	KindInternal Kind = "internal"
	// KindExternal is a through fault: the relay must stay stable for the window.
	KindExternal Kind = "external"
	// KindReaction measures breaker reaction from captured feedback waveforms.
	KindReaction Kind = "reaction"
)

// ActionKind enumerates setup actions run before the prefault phase.
type ActionKind string

const (
	// ActionSet writes a value to a signal.
	ActionSet ActionKind = "set"
	// ActionPulse writes 1, waits the pulse width, then writes 0.
	ActionPulse ActionKind = "pulse"
	// ActionWait sleeps for a duration.
	ActionWait ActionKind = "wait"
)

// Suite is a complete test definition for one simulation model.
type Suite struct {
	Name      string                     `yaml:"name"`
	Model     Model                      `yaml:"model"`
	Timing    Timing                     `yaml:"timing"`
	IO        IO                         `yaml:"io"`
	Faults    map[string]FaultControl    `yaml:"faults" validate:"dive"`
	Capture   Capture                    `yaml:"capture"`
	Scenarios []Scenario                 `yaml:"scenarios" validate:"required,min=1,dive"`
	Virtual   map[string]VirtualResponse `yaml:"virtual,omitempty" validate:"dive"`
}

// Model identifies the simulation model to load.
type Model struct {
	Path         string `yaml:"path" validate:"required"`
	CompiledPath string `yaml:"compiled_path"`
	VHIL         bool   `yaml:"vhil"`
}

// LoadPath returns the path handed to the simulator: the compiled model when given.
func (m Model) LoadPath() string {
	if m.CompiledPath != "" {
		return m.CompiledPath
	}
	return m.Path
}

// Timing holds phase durations and latency thresholds. Zero values take defaults.
type Timing struct {
	Prefault        time.Duration `yaml:"prefault" validate:"gte=0s"`
	FaultDuration   time.Duration `yaml:"fault_duration" validate:"gte=0s"`
	Postfault       time.Duration `yaml:"postfault" validate:"gte=0s"`
	ExpectPickup    time.Duration `yaml:"expect_pickup" validate:"gt=0s"`
	ExpectTrip      time.Duration `yaml:"expect_trip" validate:"gt=0s"`
	StabilityWindow time.Duration `yaml:"stability_window" validate:"gt=0s"`
	PollInterval    time.Duration `yaml:"poll_interval" validate:"gt=0s,lte=1ms"`
	MinPollWindow   time.Duration `yaml:"min_poll_window" validate:"gte=0s"`
	ArmSettle       time.Duration `yaml:"arm_settle" validate:"gte=0s"`
}

// DefaultTiming returns the timing used for any field left unset.
func DefaultTiming() Timing {
	return Timing{
		Prefault:        200 * time.Millisecond,
		FaultDuration:   200 * time.Millisecond,
		Postfault:       200 * time.Millisecond,
		ExpectPickup:    10 * time.Millisecond,
		ExpectTrip:      40 * time.Millisecond,
		StabilityWindow: 250 * time.Millisecond,
		PollInterval:    time.Millisecond,
		MinPollWindow:   500 * time.Millisecond,
		ArmSettle:       50 * time.Millisecond,
	}
}

// TripWindow is how long the poller waits for a trip after an internal fault.
// It is at least twice the trip threshold so the window dominates the assertion.
func (t Timing) TripWindow() time.Duration {
	window := 2 * t.ExpectTrip
	if window < t.MinPollWindow {
		window = t.MinPollWindow
	}
	return window
}

// IO binds the protection relay's boundary signals.
type IO struct {
	ArmInput     string `yaml:"arm_input" validate:"required"`
	TripOutput   string `yaml:"trip_output" validate:"required"`
	PickupOutput string `yaml:"pickup_output"`
}

// FaultControl selects how a fault is switched. Exactly one of Signal or Component is set.
type FaultControl struct {
	Signal    string            `yaml:"signal"`
	Component *ComponentControl `yaml:"component,omitempty"`
}

// ComponentControl drives a parameterized fault component.
type ComponentControl struct {
	Path            string    `yaml:"path" validate:"required"`
	EnableParam     string    `yaml:"enable_param"`
	ResistanceParam string    `yaml:"resistance_param"`
	ReactanceParam  string    `yaml:"reactance_param"`
	Impedance       Impedance `yaml:"impedance"`
}

// Impedance is the fault impedance written when a component fault is enabled.
type Impedance struct {
	R float64 `yaml:"r" validate:"gte=0"`
	X float64 `yaml:"x"`
}

// Capture controls trace recording.
type Capture struct {
	CSV     bool     `yaml:"csv"`
	Dir     string   `yaml:"dir"`
	Signals []string `yaml:"signals"`
	RateHz  int      `yaml:"rate_hz" validate:"gte=0,lte=100000"`
}

// Scenario is one fault-injection test.
type Scenario struct {
	Name     string    `yaml:"name" validate:"required"`
	Kind     Kind      `yaml:"kind" validate:"required,oneof=internal external reaction"`
	Fault    string    `yaml:"fault" validate:"required"`
	Setup    []Action  `yaml:"setup,omitempty" validate:"dive"`
	Reaction *Reaction `yaml:"reaction,omitempty"`
}

// Action is a setup step run before the prefault phase.
type Action struct {
	Action   ActionKind    `yaml:"action" validate:"required,oneof=set pulse wait"`
	Signal   string        `yaml:"signal"`
	Value    float64       `yaml:"value"`
	Width    time.Duration `yaml:"width" validate:"gte=0s"`
	Duration time.Duration `yaml:"duration" validate:"gte=0s"`
}

// Reaction configures a captured-waveform reaction time measurement.
type Reaction struct {
	FaultFeedback   string        `yaml:"fault_feedback" validate:"required"`
	BreakerFeedback string        `yaml:"breaker_feedback" validate:"required"`
	Level           float64       `yaml:"level"`
	Window          time.Duration `yaml:"window" validate:"gte=0s"`
	MaxReaction     time.Duration `yaml:"max_reaction" validate:"gte=0s"`
}

// VirtualResponse describes how the virtual plant's relay answers a fault.
// It is ignored by real backends.
type VirtualResponse struct {
	Pickup       time.Duration `yaml:"pickup" validate:"gte=0s"`
	Trip         time.Duration `yaml:"trip" validate:"gte=0s"`
	NoTrip       bool          `yaml:"no_trip"`
	SpuriousTrip time.Duration `yaml:"spurious_trip" validate:"gte=0s"`
}

// Find returns the scenario with the given name.
func (s *Suite) Find(name string) (Scenario, bool) {
	for _, sc := range s.Scenarios {
		if sc.Name == name {
			return sc, true
		}
	}
	return Scenario{}, false
}

// Names returns scenario names in definition order.
func (s *Suite) Names() []string {
	names := make([]string, 0, len(s.Scenarios))
	for _, sc := range s.Scenarios {
		names = append(names, sc.Name)
	}
	return names
}

// Clone returns a deep copy so callers cannot mutate a loaded suite.
func (s *Suite) Clone() *Suite {
	out := *s

	out.Faults = make(map[string]FaultControl, len(s.Faults))
	for id, fc := range s.Faults {
		if fc.Component != nil {
			comp := *fc.Component
			fc.Component = &comp
		}
		out.Faults[id] = fc
	}

	out.Capture.Signals = append([]string(nil), s.Capture.Signals...)

	out.Scenarios = make([]Scenario, len(s.Scenarios))
	for i, sc := range s.Scenarios {
		sc.Setup = append([]Action(nil), sc.Setup...)
		if sc.Reaction != nil {
			r := *sc.Reaction
			sc.Reaction = &r
		}
		out.Scenarios[i] = sc
	}

	if s.Virtual != nil {
		out.Virtual = make(map[string]VirtualResponse, len(s.Virtual))
		for id, v := range s.Virtual {
			out.Virtual[id] = v
		}
	}

	return &out
}
