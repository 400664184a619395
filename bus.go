package patchbay

import (
	"fmt"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"pipelined.dev/patchbay/config"
	"pipelined.dev/patchbay/host"
	"pipelined.dev/patchbay/log"
	"pipelined.dev/patchbay/message"
	"pipelined.dev/patchbay/node"
	"pipelined.dev/patchbay/registry"
)

// SendSuffix is appended to effect name to form the name of its send.
const SendSuffix = "_send"

// sendType is the registry type of send nodes.
const sendType = "send"

// Messages published on the bus.
const (
	// NodeAddedMessage payload is the node name.
	NodeAddedMessage = "nodeAdded"
	// NodeRemovedMessage payload is the node name.
	NodeRemovedMessage = "nodeRemoved"
	// RouteAddedMessage payload is Route.
	RouteAddedMessage = "routeAdded"
	// RouteRemovedMessage payload is Route.
	RouteRemovedMessage = "routeRemoved"
)

var defaultLogger = log.GetLogger()

type (
	// Bus is a named graph of nodes and effects. Nodes are addressed by
	// names and every edge between them is recorded in the routing table.
	// Bus is not safe for concurrent use.
	Bus struct {
		uid      string
		name     string
		ctx      host.Context
		reg      *registry.Registry
		cfg      config.Config
		log      logrus.FieldLogger
		messages *message.Bus
		disposed bool

		names  []string
		nodes  map[string]node.Node
		routes map[string][]string
		sends  map[string]node.Node
		levels map[string]float64

		// output compensation of clipping macro.
		outputGain float64
		clipping   float64
	}

	// Option configures the bus.
	Option func(*Bus)

	// Route is a named edge of the routing table.
	Route struct {
		From string
		To   string
	}
)

// WithName sets the name of the bus.
func WithName(name string) Option {
	return func(b *Bus) {
		b.name = name
	}
}

// WithLogger sets the logger of the bus.
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Bus) {
		b.log = l
	}
}

// WithConfig sets the config. Bus section holds the name and initial
// values of default topology.
func WithConfig(cfg config.Config) Option {
	return func(b *Bus) {
		b.cfg = cfg
		if cfg.Bus.Name != "" {
			b.name = cfg.Bus.Name
		}
	}
}

// New returns an empty bus. If registry is nil, the bus gets its own.
func New(ctx host.Context, reg *registry.Registry, options ...Option) (*Bus, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if reg == nil {
		reg = registry.New()
	}
	b := &Bus{
		uid:        xid.New().String(),
		name:       config.DefaultBusName,
		ctx:        ctx,
		reg:        reg,
		cfg:        config.Default(),
		log:        defaultLogger,
		messages:   message.New(),
		nodes:      make(map[string]node.Node),
		routes:     make(map[string][]string),
		sends:      make(map[string]node.Node),
		levels:     make(map[string]float64),
		outputGain: 1,
	}
	for _, option := range options {
		option(b)
	}
	b.log = b.log.WithField("bus", b.name)
	return b, nil
}

// String returns the bus name and uid.
func (b *Bus) String() string {
	return fmt.Sprintf("%s-%s", b.name, b.uid)
}

// Name returns the name of the bus.
func (b *Bus) Name() string {
	return b.name
}

// Registry returns the registry of bus nodes.
func (b *Bus) Registry() *registry.Registry {
	return b.reg
}

// Context returns the host context of the bus.
func (b *Bus) Context() host.Context {
	return b.ctx
}

// AddNode registers node under the name with an empty route list.
// Existing names are not replaced.
func (b *Bus) AddNode(name string, n node.Node) {
	l := b.log.WithField("node", name)
	switch {
	case b.disposed:
		l.Warn("add node to disposed bus")
		return
	case n == nil:
		l.Warn("add nil node")
		return
	}
	if _, ok := b.nodes[name]; ok {
		l.Warn("node already exists")
		return
	}
	b.names = append(b.names, name)
	b.nodes[name] = n
	b.routes[name] = []string{}
	b.messages.SendMessage(NodeAddedMessage, name)
}

// AddEffect registers effect and creates its send. The send level is
// zero, so effect is inert until the level is raised. If the send can't
// be created, effect stays registered without a send.
func (b *Bus) AddEffect(name string, fx node.Node) {
	if _, ok := b.nodes[name]; ok || fx == nil || b.disposed {
		b.AddNode(name, fx)
		return
	}
	b.AddNode(name, fx)
	l := b.log.WithField("node", name)
	sendName := name + SendSuffix
	if _, ok := b.nodes[sendName]; ok {
		l.WithField("send", sendName).Warn("send name is taken, effect has no send")
		return
	}
	send, err := node.Create(b.ctx, b.reg, host.NodeConfig{
		Kind:   host.Gain,
		Params: map[string]float64{"gain": 0},
	}, sendType, node.WithLogger(b.log))
	if err != nil {
		l.WithError(err).Warn("create send, effect has no send")
		return
	}
	b.AddNode(sendName, send)
	b.sends[name] = send
	b.levels[name] = 0
	b.ConnectFromTo(sendName, name)
}

// Node returns the node registered under the name or nil.
func (b *Bus) Node(name string) node.Node {
	return b.nodes[name]
}

// Send returns the send node of effect or nil.
func (b *Bus) Send(effect string) node.Node {
	return b.sends[effect]
}

// Names returns names of nodes in the order they were added.
func (b *Bus) Names() []string {
	return append([]string(nil), b.names...)
}

// Routes returns a copy of the routing table.
func (b *Bus) Routes() map[string][]string {
	routes := make(map[string][]string, len(b.routes))
	for from, to := range b.routes {
		routes[from] = append([]string{}, to...)
	}
	return routes
}

// Input returns the input tap of the bus.
func (b *Bus) Input() host.Node {
	if n, ok := b.nodes[Input]; ok {
		return n.Input()
	}
	return nil
}

// Connect connects the output node of bus to the destination.
func (b *Bus) Connect(dst interface{}) error {
	n, ok := b.nodes[Output]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoOutput, b)
	}
	return n.Connect(dst)
}

// ConnectFromTo connects two nodes and records the route. Connecting
// routed nodes is a no-op.
func (b *Bus) ConnectFromTo(from, to string) {
	src, dst := b.resolve(from), b.resolve(to)
	if src == nil || dst == nil {
		return
	}
	if indexOf(b.routes[from], to) >= 0 {
		return
	}
	if err := src.Connect(dst); err != nil {
		b.log.WithFields(logrus.Fields{"from": from, "to": to}).WithError(err).Warn("connect")
		return
	}
	b.routes[from] = append(b.routes[from], to)
	b.messages.SendMessage(RouteAddedMessage, Route{From: from, To: to})
}

// ConnectChain connects every consecutive pair of nodes.
func (b *Bus) ConnectChain(names ...string) {
	for i := 1; i < len(names); i++ {
		b.ConnectFromTo(names[i-1], names[i])
	}
}

// DisconnectFromTo removes routes from the node to provided nodes. If no
// destinations provided, all outgoing edges of the node are removed.
func (b *Bus) DisconnectFromTo(from string, to ...string) {
	src := b.resolve(from)
	if src == nil {
		return
	}
	if len(to) == 0 {
		if err := src.Disconnect(); err != nil {
			b.log.WithField("from", from).WithError(err).Warn("disconnect")
		}
		routed := b.routes[from]
		b.routes[from] = []string{}
		for _, name := range routed {
			b.messages.SendMessage(RouteRemovedMessage, Route{From: from, To: name})
		}
		return
	}
	for _, name := range to {
		dst := b.resolve(name)
		if dst == nil {
			continue
		}
		if err := src.Disconnect(dst); err != nil {
			b.log.WithFields(logrus.Fields{"from": from, "to": name}).WithError(err).Warn("disconnect")
		}
		if b.unroute(from, name) {
			b.messages.SendMessage(RouteRemovedMessage, Route{From: from, To: name})
		}
	}
}

// RemoveNode disposes the node and removes it from the routing table.
// Removing an effect also removes its send.
func (b *Bus) RemoveNode(name string) {
	n, ok := b.nodes[name]
	if !ok {
		b.log.WithField("node", name).Debug("remove unknown node")
		return
	}
	for _, from := range b.names {
		if b.unroute(from, name) {
			b.messages.SendMessage(RouteRemovedMessage, Route{From: from, To: name})
		}
	}
	for _, to := range b.routes[name] {
		b.messages.SendMessage(RouteRemovedMessage, Route{From: name, To: to})
	}
	if err := n.Dispose(); err != nil {
		b.log.WithField("node", name).WithError(err).Warn("dispose")
	}
	delete(b.routes, name)
	delete(b.nodes, name)
	b.names = remove(b.names, name)
	b.messages.SendMessage(NodeRemovedMessage, name)

	for effect, send := range b.sends {
		if send == n {
			delete(b.sends, effect)
			delete(b.levels, effect)
		}
	}
	if _, ok := b.sends[name]; ok {
		delete(b.sends, name)
		delete(b.levels, name)
		b.RemoveNode(name + SendSuffix)
	}
}

// SetSendAmount sets send level of effect clamped to [0, 1].
func (b *Bus) SetSendAmount(effect string, amount float64) {
	l := b.log.WithFields(logrus.Fields{"effect": effect, "value": amount})
	send, ok := b.sends[effect]
	if !ok {
		l.Warn("unknown send")
		return
	}
	if !node.IsFinite(amount) {
		l.Warn("non-finite send amount")
		return
	}
	amount = clamp(amount, 0, 1)
	send.SetParam("gain", amount, now)
	b.levels[effect] = amount
}

// SendAmount returns send level of effect. Zero is returned for unknown
// effects.
func (b *Bus) SendAmount(effect string) float64 {
	return b.levels[effect]
}

// OnMessage subscribes to bus messages.
func (b *Bus) OnMessage(msgType string, h message.Handler) func() {
	return b.messages.OnMessage(msgType, h)
}

// Dispose disposes all nodes in reverse order and clears the bus. Errors
// of nodes teardown are aggregated. Calls after the first one are no-op.
func (b *Bus) Dispose() error {
	if b.disposed {
		return nil
	}
	b.disposed = true
	var errs disposeErrors
	for i := len(b.names) - 1; i >= 0; i-- {
		if err := b.nodes[b.names[i]].Dispose(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.names[i], err))
		}
	}
	b.names = nil
	b.nodes = make(map[string]node.Node)
	b.routes = make(map[string][]string)
	b.sends = make(map[string]node.Node)
	b.levels = make(map[string]float64)
	b.messages.Close()
	b.log.Debug("disposed")
	return errs.ret()
}

// resolve returns the node or logs a warning.
func (b *Bus) resolve(name string) node.Node {
	n, ok := b.nodes[name]
	if !ok {
		b.log.WithField("node", name).Warn("unknown node")
		return nil
	}
	return n
}

// unroute removes the route and returns true if it existed.
func (b *Bus) unroute(from, to string) bool {
	routes := b.routes[from]
	i := indexOf(routes, to)
	if i < 0 {
		return false
	}
	b.routes[from] = append(routes[:i:i], routes[i+1:]...)
	return true
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func remove(names []string, name string) []string {
	if i := indexOf(names, name); i >= 0 {
		return append(names[:i:i], names[i+1:]...)
	}
	return names
}
