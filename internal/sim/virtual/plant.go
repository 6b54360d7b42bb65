// Package virtual implements an in-process protection plant that answers the
// simulator contract. It drives its relay from the harness clock so dry runs
// and tests are deterministic.
package virtual

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethpandaops/hilbench/internal/clock"
	"github.com/ethpandaops/hilbench/internal/scenario"
	"github.com/ethpandaops/hilbench/internal/sim"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultPickup is the relay pickup delay for faults without a profile.
	DefaultPickup = 6 * time.Millisecond
	// DefaultTrip is the relay trip delay for faults without a profile.
	DefaultTrip = 35 * time.Millisecond
	// BreakerOperate is the delay between the trip command and the breaker opening.
	BreakerOperate = 3 * time.Millisecond
)

var (
	errNoModel     = errors.New("no model loaded")
	errNotCompiled = errors.New("model not compiled")
)

// faultBinding maps one fault id to the mechanism the plant watches.
type faultBinding struct {
	id        string
	signal    string
	component string
	enable    string
}

type faultState struct {
	active bool
	since  time.Time
}

// Plant is the virtual simulator.
type Plant struct {
	mu    sync.Mutex
	log   logrus.FieldLogger
	clock clock.Clock

	io        scenario.IO
	faults    []faultBinding
	responses map[string]scenario.VirtualResponse
	breakers  map[string]string // breaker feedback -> fault id
	feedbacks map[string]string // fault feedback -> fault id
	catalog   sim.Catalog

	model    *sim.Model
	compiled bool
	running  bool

	digital    map[string]int
	signals    map[string]float64
	params     map[string]map[string]float64
	state      map[string]*faultState
	readErrors map[string]error
	writes     map[string]int
}

var _ sim.Simulator = (*Plant)(nil)

// New builds a plant whose catalog and relay behaviour are derived from suite.
func New(log logrus.FieldLogger, clk clock.Clock, suite *scenario.Suite) *Plant {
	p := &Plant{
		log:        log.WithField("component", "virtual_plant"),
		clock:      clk,
		io:         suite.IO,
		responses:  make(map[string]scenario.VirtualResponse),
		breakers:   make(map[string]string),
		feedbacks:  make(map[string]string),
		digital:    make(map[string]int),
		signals:    make(map[string]float64),
		params:     make(map[string]map[string]float64),
		state:      make(map[string]*faultState),
		readErrors: make(map[string]error),
		writes:     make(map[string]int),
	}

	p.buildCatalog(suite)
	p.buildResponses(suite)

	return p
}

func (p *Plant) buildCatalog(suite *scenario.Suite) {
	digital := []string{suite.IO.ArmInput, suite.IO.TripOutput}
	if suite.IO.PickupOutput != "" {
		digital = append(digital, suite.IO.PickupOutput)
	}

	seen := make(map[string]struct{})
	for _, d := range digital {
		seen[d] = struct{}{}
	}

	var model []string
	addModel := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		model = append(model, name)
	}

	components := make(map[string][]string)
	for id, fc := range suite.Faults {
		fb := faultBinding{id: id, signal: fc.Signal}
		if fc.Component != nil {
			fb.component = fc.Component.Path
			fb.enable = fc.Component.EnableParam
			params := []string{fc.Component.EnableParam}
			if fc.Component.ResistanceParam != "" {
				params = append(params, fc.Component.ResistanceParam)
			}
			if fc.Component.ReactanceParam != "" {
				params = append(params, fc.Component.ReactanceParam)
			}
			components[fc.Component.Path] = params
		}
		addModel(fc.Signal)
		p.faults = append(p.faults, fb)
		p.state[id] = &faultState{}
	}

	for _, sc := range suite.Scenarios {
		for _, a := range sc.Setup {
			addModel(a.Signal)
		}
		if sc.Reaction != nil {
			addModel(sc.Reaction.FaultFeedback)
			addModel(sc.Reaction.BreakerFeedback)
			p.feedbacks[sc.Reaction.FaultFeedback] = sc.Fault
			p.breakers[sc.Reaction.BreakerFeedback] = sc.Fault
		}
	}

	for _, s := range suite.Capture.Signals {
		addModel(s)
	}

	p.catalog = sim.Catalog{Digital: digital, Model: model, Components: components}
}

func (p *Plant) buildResponses(suite *scenario.Suite) {
	external := make(map[string]bool)
	for _, sc := range suite.Scenarios {
		if sc.Kind == scenario.KindExternal {
			external[sc.Fault] = true
		}
	}

	for id := range suite.Faults {
		if r, ok := suite.Virtual[id]; ok {
			p.responses[id] = r
			continue
		}
		if external[id] {
			p.responses[id] = scenario.VirtualResponse{NoTrip: true}
			continue
		}
		p.responses[id] = scenario.VirtualResponse{Pickup: DefaultPickup, Trip: DefaultTrip}
	}
}

// LoadModel records the model. An empty path is a model error.
func (p *Plant) LoadModel(_ context.Context, path string, vhil bool) (sim.Model, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if path == "" {
		return sim.Model{}, &sim.ModelError{Op: "load", Err: errNoModel}
	}

	m := sim.Model{
		Path:      path,
		VHIL:      vhil,
		Schematic: strings.HasSuffix(strings.ToLower(path), ".tse"),
	}
	p.model = &m
	p.compiled = !m.Schematic

	p.log.WithField("path", path).Debug("model loaded")

	return m, nil
}

func (p *Plant) CompileModel(_ context.Context, m sim.Model) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.model == nil || p.model.Path != m.Path {
		return &sim.ModelError{Op: "compile", Path: m.Path, Err: errNoModel}
	}
	p.compiled = true

	return nil
}

func (p *Plant) StartSimulation(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.model == nil {
		return &sim.ModelError{Op: "start", Err: errNoModel}
	}
	if !p.compiled {
		return &sim.ModelError{Op: "start", Path: p.model.Path, Err: errNotCompiled}
	}

	p.running = true
	p.digital = make(map[string]int)
	p.signals = make(map[string]float64)
	p.params = make(map[string]map[string]float64)
	for _, st := range p.state {
		st.active = false
	}

	return nil
}

// StopSimulation is idempotent.
func (p *Plant) StopSimulation(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.running = false

	return nil
}

func (p *Plant) ReleaseHardware(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.model = nil
	p.compiled = false

	return nil
}

func (p *Plant) Catalog(_ context.Context) (*sim.Catalog, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.model == nil {
		return nil, &sim.ModelError{Op: "catalog", Err: errNoModel}
	}

	c := p.catalog
	return &c, nil
}

func (p *Plant) SetDigitalInput(_ context.Context, name string, value int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkRunning(); err != nil {
		return err
	}
	if !contains(p.catalog.Digital, name) {
		return &sim.SignalNotFoundError{Name: name}
	}

	p.digital[name] = value
	p.writes[name]++
	p.refresh()

	return nil
}

func (p *Plant) GetDigitalOutput(_ context.Context, name string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkRead(name); err != nil {
		return 0, err
	}
	if !contains(p.catalog.Digital, name) {
		return 0, &sim.SignalNotFoundError{Name: name}
	}

	switch name {
	case p.io.TripOutput:
		return boolToInt(p.tripped()), nil
	case p.io.PickupOutput:
		return boolToInt(p.pickedUp()), nil
	default:
		return p.digital[name], nil
	}
}

func (p *Plant) GetAnalogSignal(_ context.Context, name string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkRead(name); err != nil {
		return 0, err
	}
	if !contains(p.catalog.Model, name) {
		return 0, &sim.SignalNotFoundError{Name: name}
	}

	if id, ok := p.feedbacks[name]; ok {
		return boolToFloat(p.state[id] != nil && p.state[id].active), nil
	}
	if id, ok := p.breakers[name]; ok {
		return boolToFloat(!p.breakerOpen(id)), nil
	}
	if v, ok := p.signals[name]; ok {
		return v, nil
	}

	return p.measurement(name), nil
}

func (p *Plant) SetModelSignal(_ context.Context, name string, value float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkRunning(); err != nil {
		return err
	}
	if !contains(p.catalog.Model, name) {
		return &sim.SignalNotFoundError{Name: name}
	}

	p.signals[name] = value
	p.writes[name]++
	p.refresh()

	return nil
}

func (p *Plant) SetParameter(_ context.Context, component, param string, value float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkRunning(); err != nil {
		return err
	}
	if !p.catalog.HasParameter(component, param) {
		return &sim.SignalNotFoundError{Name: component + "." + param}
	}

	if p.params[component] == nil {
		p.params[component] = make(map[string]float64)
	}
	p.params[component][param] = value
	p.writes[component+"."+param]++
	p.refresh()

	return nil
}

// FailReads makes every read of name return err until cleared with a nil err.
func (p *Plant) FailReads(name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err == nil {
		delete(p.readErrors, name)
		return
	}
	p.readErrors[name] = err
}

// Writes returns how many times name (or "component.param") was written.
func (p *Plant) Writes(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes[name]
}

// Parameter returns the last value written to a component parameter.
func (p *Plant) Parameter(component, param string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.params[component][param]
}

// Running reports whether the simulation is running.
func (p *Plant) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Plant) checkRunning() error {
	if !p.running {
		return sim.ErrNotRunning
	}
	return nil
}

func (p *Plant) checkRead(name string) error {
	if err := p.checkRunning(); err != nil {
		return err
	}
	if err, ok := p.readErrors[name]; ok {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	return nil
}

// refresh updates fault activation times after a write.
func (p *Plant) refresh() {
	now := p.clock.Now()

	for _, fb := range p.faults {
		on := false
		switch {
		case fb.signal != "":
			on = p.signals[fb.signal] > 0.5
		case fb.component != "":
			on = p.params[fb.component][fb.enable] > 0.5
		}

		st := p.state[fb.id]
		if on && !st.active {
			st.since = now
			p.log.WithField("fault", fb.id).Debug("fault applied")
		}
		st.active = on
	}
}

func (p *Plant) armed() bool {
	return p.digital[p.io.ArmInput] > 0
}

// activeFault returns the earliest applied fault still active.
func (p *Plant) activeFault() (string, time.Duration, bool) {
	var (
		id      string
		since   time.Time
		matched bool
	)

	for _, fb := range p.faults {
		st := p.state[fb.id]
		if !st.active {
			continue
		}
		if !matched || st.since.Before(since) {
			id, since, matched = fb.id, st.since, true
		}
	}

	if !matched {
		return "", 0, false
	}

	return id, p.clock.Since(since), true
}

func (p *Plant) pickedUp() bool {
	if !p.armed() {
		return false
	}
	id, elapsed, ok := p.activeFault()
	if !ok {
		return false
	}
	r := p.responses[id]
	if r.NoTrip {
		return r.SpuriousTrip > 0 && elapsed >= r.SpuriousTrip
	}
	return elapsed >= r.Pickup
}

func (p *Plant) tripped() bool {
	if !p.armed() {
		return false
	}
	id, elapsed, ok := p.activeFault()
	if !ok {
		return false
	}
	return p.tripsAfter(id, elapsed)
}

func (p *Plant) tripsAfter(id string, elapsed time.Duration) bool {
	r := p.responses[id]
	if r.NoTrip {
		return r.SpuriousTrip > 0 && elapsed >= r.SpuriousTrip
	}
	return elapsed >= r.Trip
}

func (p *Plant) tripDelay(id string) (time.Duration, bool) {
	r := p.responses[id]
	if r.NoTrip {
		return r.SpuriousTrip, r.SpuriousTrip > 0
	}
	return r.Trip, true
}

func (p *Plant) breakerOpen(id string) bool {
	st := p.state[id]
	if st == nil || !st.active || !p.armed() {
		return false
	}
	delay, trips := p.tripDelay(id)
	return trips && p.clock.Since(st.since) >= delay+BreakerOperate
}

// measurement synthesises per-unit currents and voltages: I* rise during a
// fault and drop to zero once tripped, V* sag during a fault and collapse on trip.
func (p *Plant) measurement(name string) float64 {
	id, elapsed, faulted := p.activeFault()
	tripped := faulted && p.armed() && p.tripsAfter(id, elapsed)
	upper := strings.ToUpper(name)

	switch {
	case strings.HasPrefix(upper, "I"):
		if tripped {
			return 0
		}
		if faulted {
			return 8
		}
		return 1
	case strings.HasPrefix(upper, "V"):
		if tripped {
			return 0
		}
		if faulted {
			return 0.3
		}
		return 1
	default:
		return 0
	}
}

func contains(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
