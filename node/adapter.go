package node

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"pipelined.dev/patchbay/host"
	"pipelined.dev/patchbay/log"
	"pipelined.dev/patchbay/message"
	"pipelined.dev/patchbay/metric"
	"pipelined.dev/patchbay/registry"
)

var defaultLogger = log.GetLogger()

type (
	// Adapter wraps a native node. It optionally inserts dedicated input
	// and output gain stages around it, so the taps visible to other
	// nodes don't depend on internal topology.
	Adapter struct {
		id       registry.NodeID
		ctx      host.Context
		reg      *registry.Registry
		native   host.Node
		input    host.Node
		output   host.Node
		staged   bool
		disposed bool

		outgoing []edge
		incoming []Source
		messages *message.Bus
		meter    *metric.Meter
		log      logrus.FieldLogger
	}

	// Option configures the adapter.
	Option func(*Adapter)

	// edge is an outgoing connection. Id is zero for targets which don't
	// keep bookkeeping.
	edge struct {
		id   registry.NodeID
		node host.Node
		sink Sink
	}
)

// WithStages inserts input and output gain stages.
func WithStages() Option {
	return func(a *Adapter) {
		a.staged = true
	}
}

// WithLogger sets the logger of adapter.
func WithLogger(l logrus.FieldLogger) Option {
	return func(a *Adapter) {
		a.log = l
	}
}

// New wraps native node into adapter and registers it. Native node, context
// and registry are mandatory.
func New(ctx host.Context, reg *registry.Registry, native host.Node, typeTag string, options ...Option) (*Adapter, error) {
	switch {
	case ctx == nil:
		return nil, ErrNilContext
	case reg == nil:
		return nil, ErrNilRegistry
	case native == nil:
		return nil, ErrNilNode
	}
	a := &Adapter{
		ctx:      ctx,
		reg:      reg,
		native:   native,
		input:    native,
		output:   native,
		messages: message.New(),
		meter:    metric.For(typeTag),
		log:      defaultLogger,
	}
	for _, option := range options {
		option(a)
	}
	if a.staged {
		if err := a.insertStages(); err != nil {
			return nil, fmt.Errorf("%s stages: %w", typeTag, err)
		}
	}
	a.id = reg.Register(typeTag, a)
	a.log = a.log.WithField("node", a.id.String())
	return a, nil
}

// Create creates native node with provided config and wraps it into
// adapter.
func Create(ctx host.Context, reg *registry.Registry, cfg host.NodeConfig, typeTag string, options ...Option) (*Adapter, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	native, err := ctx.CreateNode(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", typeTag, err)
	}
	return New(ctx, reg, native, typeTag, options...)
}

// insertStages wires input -> native -> output. On failure the edges
// made so far are removed, so native node is left as it was.
func (a *Adapter) insertStages() error {
	in, err := a.ctx.CreateNode(host.NodeConfig{Kind: host.Gain})
	if err != nil {
		return fmt.Errorf("input stage: %w", err)
	}
	out, err := a.ctx.CreateNode(host.NodeConfig{Kind: host.Gain})
	if err != nil {
		return fmt.Errorf("output stage: %w", err)
	}
	if err := in.Connect(a.native); err != nil {
		return fmt.Errorf("connect input stage: %w", err)
	}
	if err := a.native.Connect(out); err != nil {
		es := errs{fmt.Errorf("connect output stage: %w", err)}
		if err := in.Disconnect(a.native); err != nil {
			es = append(es, fmt.Errorf("disconnect input stage: %w", err))
		}
		return es
	}
	a.input, a.output = in, out
	return nil
}

// ID returns node id.
func (a *Adapter) ID() registry.NodeID {
	return a.id
}

// String returns node id.
func (a *Adapter) String() string {
	return a.id.String()
}

// Native returns the wrapped native node.
func (a *Adapter) Native() host.Node {
	return a.native
}

// Input returns the input tap.
func (a *Adapter) Input() host.Node {
	return a.input
}

// Output returns the output tap.
func (a *Adapter) Output() host.Node {
	return a.output
}

// Staged returns true if adapter has input and output stages.
func (a *Adapter) Staged() bool {
	return a.staged
}

// Context returns the host context of the adapter.
func (a *Adapter) Context() host.Context {
	return a.ctx
}

// Now returns current time of the audio clock.
func (a *Adapter) Now() float64 {
	return a.ctx.Now()
}

// Disposed returns true if adapter was disposed.
func (a *Adapter) Disposed() bool {
	return a.disposed
}

// Connect issues native connect to the destination and records the edge.
// Destination is a Sink, a Tap or a bare host.Node. Connecting already
// connected pair is a no-op.
func (a *Adapter) Connect(dst interface{}) error {
	if a.disposed {
		return ErrDisposed
	}
	e, err := target(dst)
	if err != nil {
		return err
	}
	if a.indexOf(e) >= 0 {
		a.log.WithField("target", e).Debug("already connected")
		return nil
	}
	if err := a.output.Connect(e.node); err != nil {
		return fmt.Errorf("connect %v to %v: %w", a.id, e, err)
	}
	a.meter.Connected()
	a.outgoing = append(a.outgoing, e)
	if e.sink != nil {
		e.sink.AddIncoming(a)
	}
	return nil
}

// Disconnect removes edges to provided destinations. If no destinations
// provided, all outgoing edges are removed. Bookkeeping is updated even
// if native disconnect fails.
func (a *Adapter) Disconnect(dst ...interface{}) error {
	if len(dst) == 0 {
		return a.disconnectAll()
	}
	var es errs
	for _, d := range dst {
		e, err := target(d)
		if err != nil {
			es = append(es, err)
			continue
		}
		if i := a.indexOf(e); i >= 0 {
			if err := a.disconnectEdge(i); err != nil {
				es = append(es, err)
			}
		}
	}
	return es.ret()
}

func (a *Adapter) disconnectAll() error {
	var es errs
	for i := len(a.outgoing) - 1; i >= 0; i-- {
		if err := a.disconnectEdge(i); err != nil {
			es = append(es, err)
		}
	}
	return es.ret()
}

func (a *Adapter) disconnectEdge(i int) error {
	e := a.outgoing[i]
	a.outgoing = append(a.outgoing[:i:i], a.outgoing[i+1:]...)
	if e.sink != nil {
		e.sink.RemoveIncoming(a.id)
	}
	a.meter.Disconnected()
	if err := a.output.Disconnect(e.node); err != nil {
		return fmt.Errorf("disconnect %v from %v: %w", a.id, e, err)
	}
	return nil
}

func (a *Adapter) indexOf(e edge) int {
	for i, o := range a.outgoing {
		if e.sink != nil {
			if o.sink != nil && o.id == e.id {
				return i
			}
			continue
		}
		if o.sink == nil && o.node == e.node {
			return i
		}
	}
	return -1
}

// AddIncoming records an incoming edge.
func (a *Adapter) AddIncoming(src Source) {
	id := src.ID()
	for _, s := range a.incoming {
		if s.ID() == id {
			return
		}
	}
	a.incoming = append(a.incoming, src)
}

// RemoveIncoming removes an incoming edge record.
func (a *Adapter) RemoveIncoming(id registry.NodeID) {
	for i, s := range a.incoming {
		if s.ID() == id {
			a.incoming = append(a.incoming[:i:i], a.incoming[i+1:]...)
			return
		}
	}
}

// Connections returns ids of connected nodes.
func (a *Adapter) Connections() Connections {
	c := Connections{
		Outgoing: make([]registry.NodeID, 0, len(a.outgoing)),
		Incoming: make([]registry.NodeID, 0, len(a.incoming)),
	}
	for _, e := range a.outgoing {
		if e.sink != nil {
			c.Outgoing = append(c.Outgoing, e.id)
		}
	}
	for _, s := range a.incoming {
		c.Incoming = append(c.Incoming, s.ID())
	}
	return c
}

// Param returns the parameter of the native node. Keyed worklet
// parameters take precedence over properties. Nil is returned if node has
// no such parameter.
func (a *Adapter) Param(name string) host.Param {
	if pm, ok := a.native.(host.ParamMap); ok {
		if p, ok := pm.Parameter(name); ok {
			return p
		}
	}
	if pn, ok := a.native.(host.PropertyNode); ok {
		if p, ok := pn.Property(name); ok {
			return p
		}
	}
	return nil
}

// SetParam schedules the value of the parameter at provided time. If at
// is not finite, the value is set now. Unknown parameters and non-finite
// values are logged and ignored.
func (a *Adapter) SetParam(name string, value, at float64) {
	l := a.log.WithFields(logrus.Fields{"param": name, "value": value})
	if a.disposed {
		l.Warn("set param of disposed node")
		return
	}
	if !IsFinite(value) {
		l.Warn("non-finite param value")
		return
	}
	p := a.Param(name)
	if p == nil {
		l.Warn("unknown param")
		return
	}
	if !IsFinite(at) {
		at = a.Now()
	}
	p.SetValueAtTime(value, at)
	a.meter.Scheduled()
}

// OnMessage subscribes to messages of the node.
func (a *Adapter) OnMessage(msgType string, h message.Handler) func() {
	return a.messages.OnMessage(msgType, h)
}

// SendMessage broadcasts message to node subscribers.
func (a *Adapter) SendMessage(msgType string, payload interface{}) {
	a.messages.SendMessage(msgType, payload)
}

// Dispose disconnects all edges, removes stages and unregisters the node.
// Teardown always completes, errors of native calls are aggregated. Calls
// after the first one are no-op.
func (a *Adapter) Dispose() error {
	if a.disposed {
		return nil
	}
	a.disposed = true
	var es errs
	if err := a.disconnectAll(); err != nil {
		es = append(es, err)
	}
	for len(a.incoming) > 0 {
		src := a.incoming[len(a.incoming)-1]
		if err := src.Disconnect(a); err != nil {
			es = append(es, err)
		}
		// source might not call back.
		a.RemoveIncoming(src.ID())
	}
	if a.staged {
		if err := a.input.Disconnect(a.native); err != nil {
			es = append(es, err)
		}
		if err := a.native.Disconnect(a.output); err != nil {
			es = append(es, err)
		}
	}
	a.reg.Unregister(a.id)
	a.messages.Close()
	a.log.Debug("disposed")
	return es.ret()
}

func target(dst interface{}) (edge, error) {
	switch d := dst.(type) {
	case Sink:
		return edge{id: d.ID(), node: d.Input(), sink: d}, nil
	case Tap:
		return edge{node: d.Input()}, nil
	case host.Node:
		return edge{node: d}, nil
	}
	return edge{}, fmt.Errorf("%w: %T", ErrUnknownTarget, dst)
}

// String returns the target description for logs.
func (e edge) String() string {
	if e.sink != nil {
		return e.id.String()
	}
	return fmt.Sprintf("%T", e.node)
}

// IsFinite returns true if v is neither NaN nor infinity.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
