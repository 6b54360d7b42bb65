package sim

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// AccessorKind selects which simulator API reads and writes a signal.
type AccessorKind string

const (
	// AccessDigital uses SetDigitalInput / GetDigitalOutput.
	AccessDigital AccessorKind = "digital"
	// AccessModel uses SetModelSignal / GetAnalogSignal; booleans are value > 0.5.
	AccessModel AccessorKind = "model"
)

const boolThreshold = 0.5

// Catalog lists the names a loaded model exposes, grouped by accessor kind.
type Catalog struct {
	Digital    []string            `json:"digital"`
	Model      []string            `json:"model"`
	Components map[string][]string `json:"components,omitempty"`
}

func (c *Catalog) kindOf(name string) (AccessorKind, bool) {
	for _, n := range c.Digital {
		if n == name {
			return AccessDigital, true
		}
	}
	for _, n := range c.Model {
		if n == name {
			return AccessModel, true
		}
	}
	return "", false
}

// HasParameter reports whether component exposes param.
func (c *Catalog) HasParameter(component, param string) bool {
	for _, p := range c.Components[component] {
		if p == param {
			return true
		}
	}
	return false
}

// Binding is a resolved signal accessor.
type Binding struct {
	Name     string
	Kind     AccessorKind
	Resolved bool
}

// Bindings is the table built once by the capability probe.
type Bindings struct {
	entries map[string]Binding
}

// ComponentRef names a component parameter that must exist before a run.
type ComponentRef struct {
	Component string
	Param     string
}

// ProbeRequest lists the names a suite needs.
type ProbeRequest struct {
	Required   []string
	Optional   []string
	Components []ComponentRef
}

// Probe resolves every requested name against the catalog. Unknown required
// names and component parameters fail with SignalNotFoundError. Unknown optional
// names are bound to the model accessor so reads can fail softly later.
func Probe(cat *Catalog, req ProbeRequest) (*Bindings, error) {
	b := &Bindings{entries: make(map[string]Binding, len(req.Required)+len(req.Optional))}

	for _, name := range req.Required {
		if name == "" {
			continue
		}
		kind, ok := cat.kindOf(name)
		if !ok {
			return nil, &SignalNotFoundError{Name: name}
		}
		b.entries[name] = Binding{Name: name, Kind: kind, Resolved: true}
	}

	for _, name := range req.Optional {
		if name == "" {
			continue
		}
		if _, done := b.entries[name]; done {
			continue
		}
		kind, ok := cat.kindOf(name)
		if !ok {
			kind = AccessModel
		}
		b.entries[name] = Binding{Name: name, Kind: kind, Resolved: ok}
	}

	// Backends that do not report components skip this check.
	for _, ref := range req.Components {
		if cat.Components == nil {
			break
		}
		if !cat.HasParameter(ref.Component, ref.Param) {
			return nil, &SignalNotFoundError{Name: ref.Component + "." + ref.Param}
		}
	}

	return b, nil
}

// Lookup returns the binding for name.
func (b *Bindings) Lookup(name string) (Binding, bool) {
	e, ok := b.entries[name]
	return e, ok
}

// All returns the bindings sorted by name.
func (b *Bindings) All() []Binding {
	out := make([]Binding, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (b *Bindings) get(name string) (Binding, error) {
	e, ok := b.entries[name]
	if !ok {
		return Binding{}, &SignalNotFoundError{Name: name}
	}
	return e, nil
}

// Read returns the numeric value of name through its accessor.
func (b *Bindings) Read(ctx context.Context, s Simulator, name string) (float64, error) {
	e, err := b.get(name)
	if err != nil {
		return math.NaN(), err
	}

	switch e.Kind {
	case AccessDigital:
		v, err := s.GetDigitalOutput(ctx, name)
		if err != nil {
			return math.NaN(), fmt.Errorf("reading digital %s: %w", name, err)
		}
		return float64(v), nil
	default:
		v, err := s.GetAnalogSignal(ctx, name)
		if err != nil {
			return math.NaN(), fmt.Errorf("reading model signal %s: %w", name, err)
		}
		return v, nil
	}
}

// ReadBool reads name and interprets it as a boolean.
func (b *Bindings) ReadBool(ctx context.Context, s Simulator, name string) (bool, error) {
	v, err := b.Read(ctx, s, name)
	if err != nil {
		return false, err
	}
	return v > boolThreshold, nil
}

// Write sets name through its accessor. Digital writes are coerced to 0 or 1.
func (b *Bindings) Write(ctx context.Context, s Simulator, name string, value float64) error {
	e, err := b.get(name)
	if err != nil {
		return err
	}

	switch e.Kind {
	case AccessDigital:
		bit := 0
		if value > boolThreshold {
			bit = 1
		}
		if err := s.SetDigitalInput(ctx, name, bit); err != nil {
			return fmt.Errorf("writing digital %s: %w", name, err)
		}
	default:
		if err := s.SetModelSignal(ctx, name, value); err != nil {
			return fmt.Errorf("writing model signal %s: %w", name, err)
		}
	}

	return nil
}

// WriteBool writes 1 or 0.
func (b *Bindings) WriteBool(ctx context.Context, s Simulator, name string, on bool) error {
	if on {
		return b.Write(ctx, s, name, 1)
	}
	return b.Write(ctx, s, name, 0)
}
