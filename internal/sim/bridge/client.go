// Package bridge implements the simulator contract over a websocket connection
// to an agent running next to the vendor HIL toolchain.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethpandaops/hilbench/internal/sim"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var (
	// ErrClosed is returned for calls made after the connection has gone away.
	ErrClosed = errors.New("bridge connection closed")
	// ErrTimeout is returned when the agent does not answer within the request timeout.
	ErrTimeout = errors.New("bridge request timed out")
)

const defaultTimeout = 30 * time.Second

// Options configures a Client.
type Options struct {
	Timeout     time.Duration
	SafeDevices []string
}

// Client is a sim.Simulator backed by a websocket agent.
type Client struct {
	log     logrus.FieldLogger
	conn    *websocket.Conn
	timeout time.Duration
	device  string

	callMu  sync.Mutex
	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[uint64]chan Message
	subs     map[string]map[uint64]chan sim.Edge
	closeErr error

	nextID atomic.Uint64
	done   chan struct{}
}

var (
	_ sim.Simulator = (*Client)(nil)
	_ sim.Notifier  = (*Client)(nil)
)

// Dial connects to the agent at url and checks the device against the whitelist.
func Dial(ctx context.Context, log logrus.FieldLogger, url string, opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	dialer := websocket.Dialer{HandshakeTimeout: opts.Timeout}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing bridge %s: %w", url, err)
	}

	c := &Client{
		log:     log.WithField("component", "bridge"),
		conn:    conn,
		timeout: opts.Timeout,
		pending: make(map[uint64]chan Message),
		subs:    make(map[string]map[uint64]chan sim.Edge),
		done:    make(chan struct{}),
	}

	go c.readLoop()

	var hello HelloResult
	if err := c.call(ctx, methodHello, nil, &hello); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("bridge handshake: %w", err)
	}

	if err := NewDeviceGuard(opts.SafeDevices, log).Check(hello.Device); err != nil {
		_ = c.Close()
		return nil, err
	}

	c.device = hello.Device
	c.log.WithFields(logrus.Fields{
		"url":     url,
		"device":  hello.Device,
		"version": hello.Version,
	}).Info("Connected to simulator bridge")

	return c, nil
}

// Device returns the device name reported by the agent.
func (c *Client) Device() string {
	return c.device
}

// Close shuts the connection down and fails outstanding calls.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()

	err := c.conn.Close()
	<-c.done

	return err
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.shutdown(err)
			return
		}

		if msg.Event != "" {
			c.dispatchEvent(msg)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		delete(c.pending, msg.ID)
		c.mu.Unlock()

		if !ok {
			c.log.WithField("id", msg.ID).Warn("Dropping response for unknown request")
			continue
		}
		ch <- msg
	}
}

func (c *Client) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.closeErr = ErrClosed
	} else {
		c.closeErr = fmt.Errorf("%w: %w", ErrClosed, err)
	}

	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	for name, set := range c.subs {
		for id, ch := range set {
			close(ch)
			delete(set, id)
		}
		delete(c.subs, name)
	}
}

func (c *Client) dispatchEvent(msg Message) {
	if msg.Event != eventEdge {
		c.log.WithField("event", msg.Event).Debug("Ignoring bridge event")
		return
	}

	var ev EdgeEvent
	if err := json.Unmarshal(msg.Params, &ev); err != nil {
		c.log.WithError(err).Warn("Malformed edge event")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ch := range c.subs[ev.Name] {
		select {
		case ch <- sim.Edge{Name: ev.Name, Value: ev.Value}:
		default:
			c.log.WithField("signal", ev.Name).Warn("Subscriber slow, dropping edge")
		}
	}
}

// call sends one request and waits for its response. Calls are serialised.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	id := c.nextID.Add(1)
	ch := make(chan Message, 1)

	c.mu.Lock()
	if c.closeErr != nil {
		err := c.closeErr
		c.mu.Unlock()
		return err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(Request{ID: id, Method: method, Params: params})
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return fmt.Errorf("sending %s: %w", method, err)
	}

	var timeout <-chan time.Time
	if c.timeout > 0 {
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			c.mu.Lock()
			err := c.closeErr
			c.mu.Unlock()
			return err
		}
		if msg.Error != nil {
			return msg.Error.toSimError(method)
		}
		if result != nil && len(msg.Result) > 0 {
			if err := json.Unmarshal(msg.Result, result); err != nil {
				return fmt.Errorf("decoding %s result: %w", method, err)
			}
		}
		return nil
	case <-timeout:
		c.forget(id)
		return fmt.Errorf("%s: %w", method, ErrTimeout)
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) LoadModel(ctx context.Context, path string, vhil bool) (sim.Model, error) {
	var res loadResult
	if err := c.call(ctx, methodLoadModel, loadParams{Path: path, VHIL: vhil}, &res); err != nil {
		return sim.Model{}, err
	}
	return sim.Model{Path: path, VHIL: vhil, Schematic: res.Schematic}, nil
}

func (c *Client) CompileModel(ctx context.Context, m sim.Model) error {
	return c.call(ctx, methodCompileModel, loadParams{Path: m.Path, VHIL: m.VHIL}, nil)
}

func (c *Client) StartSimulation(ctx context.Context) error {
	return c.call(ctx, methodStartSimulation, nil, nil)
}

func (c *Client) StopSimulation(ctx context.Context) error {
	return c.call(ctx, methodStopSimulation, nil, nil)
}

func (c *Client) ReleaseHardware(ctx context.Context) error {
	return c.call(ctx, methodReleaseHardware, nil, nil)
}

func (c *Client) Catalog(ctx context.Context) (*sim.Catalog, error) {
	var cat sim.Catalog
	if err := c.call(ctx, methodCatalog, nil, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Client) SetDigitalInput(ctx context.Context, name string, value int) error {
	return c.call(ctx, methodSetDigitalInput, signalParams{Name: name, Value: float64(value)}, nil)
}

func (c *Client) GetDigitalOutput(ctx context.Context, name string) (int, error) {
	var res valueResult
	if err := c.call(ctx, methodGetDigital, signalParams{Name: name}, &res); err != nil {
		return 0, err
	}
	if res.Value > 0.5 {
		return 1, nil
	}
	return 0, nil
}

func (c *Client) GetAnalogSignal(ctx context.Context, name string) (float64, error) {
	var res valueResult
	if err := c.call(ctx, methodGetAnalog, signalParams{Name: name}, &res); err != nil {
		return 0, err
	}
	return res.Value, nil
}

func (c *Client) SetModelSignal(ctx context.Context, name string, value float64) error {
	return c.call(ctx, methodSetModelSignal, signalParams{Name: name, Value: value}, nil)
}

func (c *Client) SetParameter(ctx context.Context, component, param string, value float64) error {
	return c.call(ctx, methodSetParameter, parameterParams{Component: component, Param: param, Value: value}, nil)
}

// Subscribe asks the agent to push edges for name. The channel is closed when
// the subscription is cancelled or the connection drops.
func (c *Client) Subscribe(ctx context.Context, name string) (<-chan sim.Edge, func(), error) {
	subID := c.nextID.Add(1)
	ch := make(chan sim.Edge, 16)

	// Register before asking so an edge sent right after the ack is not lost.
	c.mu.Lock()
	if c.subs[name] == nil {
		c.subs[name] = make(map[uint64]chan sim.Edge)
	}
	c.subs[name][subID] = ch
	c.mu.Unlock()

	var once sync.Once
	release := func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()

		if set, ok := c.subs[name]; ok {
			if sub, live := set[subID]; live {
				close(sub)
				delete(set, subID)
			}
			if len(set) == 0 {
				delete(c.subs, name)
			}
		}
		return len(c.subs[name]) == 0
	}

	if err := c.call(ctx, methodSubscribe, signalParams{Name: name}, nil); err != nil {
		once.Do(func() { release() })
		return nil, nil, fmt.Errorf("subscribing to %s: %w", name, err)
	}

	cancel := func() {
		once.Do(func() {
			if !release() {
				return
			}
			unsubCtx, done := context.WithTimeout(context.Background(), c.timeout)
			defer done()
			if err := c.call(unsubCtx, methodUnsubscribe, signalParams{Name: name}, nil); err != nil {
				c.log.WithError(err).WithField("signal", name).Debug("Unsubscribe failed")
			}
		})
	}

	return ch, cancel, nil
}
