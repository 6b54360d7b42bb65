package bridge

import (
	"encoding/json"

	"github.com/ethpandaops/hilbench/internal/sim"
)

// Methods understood by the simulator agent.
const (
	methodHello           = "hello"
	methodLoadModel       = "load_model"
	methodCompileModel    = "compile_model"
	methodStartSimulation = "start_simulation"
	methodStopSimulation  = "stop_simulation"
	methodReleaseHardware = "release_hardware"
	methodCatalog         = "catalog"
	methodSetDigitalInput = "set_digital_input"
	methodGetDigital      = "get_digital_output"
	methodGetAnalog       = "get_analog_signal"
	methodSetModelSignal  = "set_model_signal"
	methodSetParameter    = "set_parameter"
	methodSubscribe       = "subscribe"
	methodUnsubscribe     = "unsubscribe"

	eventEdge = "edge"
)

// Error codes returned by the agent.
const (
	codeSignalNotFound = "signal_not_found"
	codeModel          = "model_error"
	codeNotRunning     = "not_running"
)

// Request is a client to agent call.
type Request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Message is anything the agent sends: a response (ID set) or an event.
type Message struct {
	ID     uint64          `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RemoteError    `json:"error,omitempty"`
	Event  string          `json:"event,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// RemoteError is an error reported by the agent.
type RemoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Name    string `json:"name,omitempty"`
	Path    string `json:"path,omitempty"`
}

func (e *RemoteError) Error() string {
	return e.Code + ": " + e.Message
}

// toSimError maps agent error codes onto the simulator error taxonomy.
func (e *RemoteError) toSimError(op string) error {
	switch e.Code {
	case codeSignalNotFound:
		return &sim.SignalNotFoundError{Name: e.Name}
	case codeModel:
		return &sim.ModelError{Op: op, Path: e.Path, Err: e}
	case codeNotRunning:
		return sim.ErrNotRunning
	default:
		return e
	}
}

// HelloResult identifies the device behind the agent.
type HelloResult struct {
	Device  string `json:"device"`
	Version string `json:"version"`
}

type loadParams struct {
	Path string `json:"path"`
	VHIL bool   `json:"vhil"`
}

type loadResult struct {
	Schematic bool `json:"schematic"`
}

type signalParams struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type parameterParams struct {
	Component string  `json:"component"`
	Param     string  `json:"param"`
	Value     float64 `json:"value"`
}

type valueResult struct {
	Value float64 `json:"value"`
}

// EdgeEvent is the payload of an edge notification.
type EdgeEvent struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}
