package render

import (
	"math"
	"sync/atomic"

	"pipelined.dev/patchbay/host"
	"pipelined.dev/patchbay/message"
)

const replyType = "reply"

type (
	// Node is a native node of render context.
	Node struct {
		uid    string
		cfg    host.NodeConfig
		ctx    *Context
		params map[string]*Param
		port   *Port

		// render thread.
		outputs   []*Node
		processor host.Processor
	}

	// Param is a parameter of render node. Its automation is evaluated
	// on the render thread at the start of every block.
	Param struct {
		// value is float64 bits, accessed atomically.
		value    uint64
		ctx      *Context
		timeline *host.Timeline
	}

	// Port passes messages between control plane and node processor.
	Port struct {
		node     *Node
		handlers *message.Bus
	}
)

// UID returns unique id of the node.
func (n *Node) UID() string {
	return n.uid
}

// Config returns the config node was created with.
func (n *Node) Config() host.NodeConfig {
	return n.cfg
}

// Connect adds an edge to dst. Duplicate edges are ignored by renderer.
func (n *Node) Connect(dst host.Node) error {
	d, ok := dst.(*Node)
	if !ok || d.ctx != n.ctx {
		return ErrForeignNode
	}
	n.ctx.push(func() {
		for _, o := range n.outputs {
			if o == d {
				return
			}
		}
		n.outputs = append(n.outputs, d)
		n.ctx.dirty = true
	})
	return nil
}

// Disconnect removes the edge to dst.
func (n *Node) Disconnect(dst host.Node) error {
	d, ok := dst.(*Node)
	if !ok || d.ctx != n.ctx {
		return ErrForeignNode
	}
	n.ctx.push(func() {
		for i, o := range n.outputs {
			if o == d {
				n.outputs = append(n.outputs[:i], n.outputs[i+1:]...)
				n.ctx.dirty = true
				return
			}
		}
	})
	return nil
}

// Parameter returns keyed parameter of worklet nodes.
func (n *Node) Parameter(name string) (host.Param, bool) {
	if n.cfg.Kind != host.Worklet {
		return nil, false
	}
	return n.param(name)
}

// Property returns parameter property of native nodes.
func (n *Node) Property(name string) (host.Param, bool) {
	if n.cfg.Kind == host.Worklet {
		return nil, false
	}
	return n.param(name)
}

func (n *Node) param(name string) (host.Param, bool) {
	p, ok := n.params[name]
	if !ok {
		return nil, false
	}
	return p, true
}

// Port returns message port of worklet nodes.
func (n *Node) Port() host.Port {
	if n.port == nil {
		return nil
	}
	return n.port
}

// Value implements host.ParamValues.
func (n *Node) Value(name string) float64 {
	if p, ok := n.params[name]; ok {
		return p.Value()
	}
	return 0
}

// process renders a block of the node.
func (n *Node) process(now, duration float64) {
	for _, p := range n.params {
		p.store(p.timeline.ValueAt(now))
	}
	if n.processor != nil {
		n.processor.Process(now, duration, n)
	}
}

func newParam(c *Context, initial float64) *Param {
	return &Param{
		value:    math.Float64bits(initial),
		ctx:      c,
		timeline: host.NewTimeline(initial),
	}
}

// Value returns the value of the last rendered block.
func (p *Param) Value() float64 {
	return math.Float64frombits(atomic.LoadUint64(&p.value))
}

func (p *Param) store(v float64) {
	atomic.StoreUint64(&p.value, math.Float64bits(v))
}

// SetValueAtTime schedules value.
func (p *Param) SetValueAtTime(value, at float64) {
	p.insert(host.Event{Kind: host.SetValue, Value: value, Time: at})
}

// LinearRampToValueAtTime schedules linear ramp.
func (p *Param) LinearRampToValueAtTime(value, end float64) {
	p.insert(host.Event{Kind: host.LinearRamp, Value: value, Time: end})
}

// SetTargetAtTime schedules exponential approach.
func (p *Param) SetTargetAtTime(target, start, timeConstant float64) {
	p.insert(host.Event{Kind: host.SetTarget, Value: target, Time: start, TimeConstant: timeConstant})
}

// CancelScheduledValues cancels events scheduled at or after at.
func (p *Param) CancelScheduledValues(at float64) {
	p.ctx.push(func() {
		p.timeline.Cancel(at)
	})
}

func (p *Param) insert(e host.Event) {
	p.ctx.push(func() {
		p.timeline.Insert(e)
	})
}

// PostMessage sends the message to the node processor.
func (p *Port) PostMessage(m message.Message) {
	p.node.ctx.push(func() {
		if p.node.processor != nil {
			p.node.processor.Receive(m)
		}
	})
}

// OnMessage subscribes to processor replies. Replies are delivered by
// Context.Dispatch.
func (p *Port) OnMessage(h message.Handler) func() {
	return p.handlers.OnMessage(replyType, func(m message.Message) {
		h(m.Payload.(message.Message))
	})
}

// reply is called by processor on the render thread.
func (p *Port) reply(m message.Message) {
	select {
	case p.node.ctx.replies <- reply{port: p, Message: m}:
	default:
		atomic.AddInt64(&p.node.ctx.dropped, 1)
	}
}
