// Package node wraps native and custom processing units into adapters
// with a uniform connect, disconnect and parameter contract.
package node

import (
	"errors"
	"strings"

	"pipelined.dev/patchbay/host"
	"pipelined.dev/patchbay/registry"
)

var (
	// ErrNilNode is returned when adapter is created without native node.
	ErrNilNode = errors.New("nil native node")
	// ErrNilRegistry is returned when adapter is created without registry.
	ErrNilRegistry = errors.New("nil registry")
	// ErrNilContext is returned when adapter is created without context.
	ErrNilContext = errors.New("nil context")
	// ErrUnknownTarget is returned when connect target is not supported.
	ErrUnknownTarget = errors.New("unknown connection target")
	// ErrDisposed is returned when disposed adapter is connected.
	ErrDisposed = errors.New("node is disposed")
)

type (
	// Tap is implemented by components exposing an input tap.
	Tap interface {
		Input() host.Node
	}

	// Source is the origin of an edge.
	Source interface {
		ID() registry.NodeID
		Disconnect(dst ...interface{}) error
	}

	// Sink is a destination which keeps bookkeeping of incoming edges.
	Sink interface {
		Tap
		ID() registry.NodeID
		AddIncoming(src Source)
		RemoveIncoming(id registry.NodeID)
	}

	// Connector connects outputs to destinations. Destination is either
	// a Sink, a Tap or a bare host.Node.
	Connector interface {
		Connect(dst interface{}) error
		Disconnect(dst ...interface{}) error
	}

	// Parameterized exposes named parameters.
	Parameterized interface {
		SetParam(name string, value, at float64)
		Param(name string) host.Param
	}

	// Node is the capability set used to compose graphs.
	Node interface {
		Sink
		Connector
		Parameterized
		Output() host.Node
		Connections() Connections
		Dispose() error
	}

	// Connections lists ids of connected nodes in connection order.
	Connections struct {
		Outgoing []registry.NodeID
		Incoming []registry.NodeID
	}
)

// errs aggregates errors which occur during teardown.
type errs []error

func (e errs) Error() string {
	s := make([]string, 0, len(e))
	for _, err := range e {
		s = append(s, err.Error())
	}
	return strings.Join(s, ",")
}

// Is checks if any of errors match provided sentinel error.
func (e errs) Is(err error) bool {
	for _, se := range e {
		if errors.Is(se, err) {
			return true
		}
	}
	return false
}

// ret returns untyped nil if error list is empty.
func (e errs) ret() error {
	if len(e) > 0 {
		return e
	}
	return nil
}
