// Package mock provides a synchronous host runtime for tests.
//
// All instructions are applied immediately on the calling goroutine and
// recorded, so tests can inspect native topology, automation events and
// posted port messages.
package mock

import (
	"errors"

	"github.com/go-audio/audio"

	"pipelined.dev/patchbay/host"
	"pipelined.dev/patchbay/message"
)

const (
	// DefaultSampleRate of the mocked context.
	DefaultSampleRate = 48000
	// DefaultNumChannels of the mocked context.
	DefaultNumChannels = 2
)

// ErrNotConnected is returned when disconnecting nodes which are not
// connected.
var ErrNotConnected = errors.New("nodes are not connected")

// replyType is the internal message type of port replies.
const replyType = "reply"

type (
	// Context mocks host.Context. Time is the current time of the audio
	// clock and can be changed by tests at any moment.
	Context struct {
		Time          float64
		SampleRate    int
		NumChannels   int
		ErrorOnCreate error
		Nodes         []*Node
	}

	// Node mocks a native node.
	Node struct {
		host.NodeConfig
		ErrorOnConnect    error
		ErrorOnDisconnect error
		ConnectCalls      int
		DisconnectCalls   int

		ctx     *Context
		outputs []host.Node
		params  map[string]*Param
		port    *Port
	}

	// Param mocks a scheduled parameter.
	Param struct {
		*host.Timeline
		Writes int
		ctx    *Context
	}

	// Port mocks a worklet message port.
	Port struct {
		Posted  []message.Message
		replies *message.Bus
	}
)

// NewContext returns a context with default format.
func NewContext() *Context {
	return &Context{
		SampleRate:  DefaultSampleRate,
		NumChannels: DefaultNumChannels,
	}
}

// Now returns Time.
func (c *Context) Now() float64 {
	return c.Time
}

// Format returns the audio format of the context.
func (c *Context) Format() audio.Format {
	return audio.Format{
		NumChannels: c.NumChannels,
		SampleRate:  c.SampleRate,
	}
}

// CreateNode creates a new node.
func (c *Context) CreateNode(cfg host.NodeConfig) (host.Node, error) {
	if c.ErrorOnCreate != nil {
		return nil, c.ErrorOnCreate
	}
	return c.NewNode(cfg), nil
}

// NewNode returns a new mocked node. Unlike CreateNode it returns the
// concrete type.
func (c *Context) NewNode(cfg host.NodeConfig) *Node {
	n := &Node{
		NodeConfig: cfg,
		ctx:        c,
		params:     make(map[string]*Param),
	}
	for name, v := range host.DefaultParams(cfg) {
		n.params[name] = &Param{
			Timeline: host.NewTimeline(v),
			ctx:      c,
		}
	}
	if cfg.Kind == host.Worklet {
		n.port = &Port{replies: message.New()}
	}
	c.Nodes = append(c.Nodes, n)
	return n
}

// Connect appends dst to node outputs. Duplicates are recorded.
func (n *Node) Connect(dst host.Node) error {
	if n.ErrorOnConnect != nil {
		return n.ErrorOnConnect
	}
	n.ConnectCalls++
	n.outputs = append(n.outputs, dst)
	return nil
}

// Disconnect removes all edges to dst.
func (n *Node) Disconnect(dst host.Node) error {
	if n.ErrorOnDisconnect != nil {
		return n.ErrorOnDisconnect
	}
	n.DisconnectCalls++
	outputs := n.outputs[:0]
	for _, o := range n.outputs {
		if o != dst {
			outputs = append(outputs, o)
		}
	}
	if len(outputs) == len(n.outputs) {
		return ErrNotConnected
	}
	n.outputs = outputs
	return nil
}

// Outputs returns the nodes this node is connected to.
func (n *Node) Outputs() []host.Node {
	return append([]host.Node(nil), n.outputs...)
}

// ConnectedTo returns true if node has an edge to dst.
func (n *Node) ConnectedTo(dst host.Node) bool {
	for _, o := range n.outputs {
		if o == dst {
			return true
		}
	}
	return false
}

// Parameter returns keyed parameter of worklet nodes.
func (n *Node) Parameter(name string) (host.Param, bool) {
	if n.Kind != host.Worklet {
		return nil, false
	}
	return n.param(name)
}

// Property returns parameter property of native nodes.
func (n *Node) Property(name string) (host.Param, bool) {
	if n.Kind == host.Worklet {
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

// MockParam returns the mocked parameter or nil.
func (n *Node) MockParam(name string) *Param {
	return n.params[name]
}

// Port returns the message port. Only worklets have ports.
func (n *Node) Port() host.Port {
	if n.port == nil {
		return nil
	}
	return n.port
}

// MockPort returns the mocked port or nil.
func (n *Node) MockPort() *Port {
	return n.port
}

// Value returns the value at current context time.
func (p *Param) Value() float64 {
	return p.ValueAt(p.ctx.Time)
}

// SetValueAtTime schedules value.
func (p *Param) SetValueAtTime(value, at float64) {
	p.Writes++
	p.Insert(host.Event{Kind: host.SetValue, Value: value, Time: at})
}

// LinearRampToValueAtTime schedules linear ramp.
func (p *Param) LinearRampToValueAtTime(value, end float64) {
	p.Writes++
	p.Insert(host.Event{Kind: host.LinearRamp, Value: value, Time: end})
}

// SetTargetAtTime schedules exponential approach.
func (p *Param) SetTargetAtTime(target, start, timeConstant float64) {
	p.Writes++
	p.Insert(host.Event{Kind: host.SetTarget, Value: target, Time: start, TimeConstant: timeConstant})
}

// CancelScheduledValues cancels events scheduled at or after at.
func (p *Param) CancelScheduledValues(at float64) {
	p.Cancel(at)
}

// Last returns the last scheduled event.
func (p *Param) Last() (host.Event, bool) {
	events := p.Events()
	if len(events) == 0 {
		return host.Event{}, false
	}
	return events[len(events)-1], true
}

// PostMessage records the message.
func (p *Port) PostMessage(m message.Message) {
	p.Posted = append(p.Posted, m)
}

// OnMessage subscribes to replies.
func (p *Port) OnMessage(h message.Handler) func() {
	return p.replies.OnMessage(replyType, func(m message.Message) {
		h(m.Payload.(message.Message))
	})
}

// Reply delivers a message from the processor to subscribers.
func (p *Port) Reply(m message.Message) {
	p.replies.SendMessage(replyType, m)
}

// Types returns types of posted messages in posting order.
func (p *Port) Types() []string {
	types := make([]string, 0, len(p.Posted))
	for _, m := range p.Posted {
		types = append(types, m.Type)
	}
	return types
}
