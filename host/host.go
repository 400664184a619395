// Package host defines the contract of the audio runtime which renders
// the graph.
//
// The runtime owns the render thread. Every call on the interfaces of
// this package is a one-way instruction: implementations must not block
// the caller on the render thread and must not call back into the
// control plane from it.
package host

import (
	"github.com/go-audio/audio"

	"pipelined.dev/patchbay/message"
)

// Kind identifies the native node primitive.
type Kind string

// Native node primitives.
const (
	Gain       Kind = "gain"
	Delay      Kind = "delay"
	Biquad     Kind = "biquad"
	Compressor Kind = "compressor"
	Convolver  Kind = "convolver"
	Worklet    Kind = "worklet"
)

// Biquad filter types.
const (
	Highpass = "highpass"
	Lowpass  = "lowpass"
	Bandpass = "bandpass"
)

type (
	// NodeConfig describes a native node to create.
	NodeConfig struct {
		Kind Kind
		// Type is the filter type of biquad nodes.
		Type string
		// Processor is the name of worklet processor.
		Processor string
		// Params holds initial parameter values. For worklets it also
		// declares the keyed parameters.
		Params map[string]float64
	}

	// Clock is the shared audio clock.
	Clock interface {
		// Now returns current time in seconds.
		Now() float64
	}

	// Factory creates native nodes.
	Factory interface {
		CreateNode(NodeConfig) (Node, error)
	}

	// Context is the audio runtime.
	Context interface {
		Clock
		Factory
		Format() audio.Format
	}

	// Node is a native processing unit.
	Node interface {
		Connect(dst Node) error
		Disconnect(dst Node) error
	}

	// Param is a parameter with timestamped automation.
	Param interface {
		// Value returns the value at the current time.
		Value() float64
		SetValueAtTime(value, at float64)
		LinearRampToValueAtTime(value, end float64)
		// SetTargetAtTime exponentially approaches target starting at
		// start with provided time constant.
		SetTargetAtTime(target, start, timeConstant float64)
		CancelScheduledValues(at float64)
	}

	// Automated is implemented by params which can evaluate their
	// automation at any time from the control plane.
	Automated interface {
		ValueAt(t float64) float64
	}

	// ParamMap is implemented by worklet-style nodes whose parameters are
	// keyed by name.
	ParamMap interface {
		Parameter(name string) (Param, bool)
	}

	// PropertyNode is implemented by nodes which expose parameters as
	// named properties, e.g. gain of gain node.
	PropertyNode interface {
		Property(name string) (Param, bool)
	}

	// Port passes messages between control plane and a processor running
	// on the render thread.
	Port interface {
		PostMessage(message.Message)
		// OnMessage subscribes to replies of the processor. Replies are
		// delivered on the control plane.
		OnMessage(message.Handler) (cancel func())
	}

	// Messenger is implemented by nodes that have a port.
	Messenger interface {
		Port() Port
	}
)

// Nyquist returns the highest representable frequency of the format.
func Nyquist(f audio.Format) float64 {
	return float64(f.SampleRate) / 2
}

type (
	// Processor is control-rate logic of a worklet, executed by the host
	// on the render thread.
	Processor interface {
		// Receive handles a message posted through the node port.
		Receive(m message.Message)
		// Process is called once per render block starting at now.
		Process(now, duration float64, params ParamValues)
	}

	// ParamValues provides current values of node parameters.
	ParamValues interface {
		Value(name string) float64
	}

	// NewProcessorFunc creates a processor. Reply sends a message back to
	// the control plane, it never blocks.
	NewProcessorFunc func(reply func(message.Message)) Processor
)
