// Package render is a reference host runtime.
//
// Context implements host.Context. Nodes, edges, parameter automation and
// port messages created on the control plane are turned into mutations
// and pushed to the render thread, which applies them at block
// boundaries. The render thread is either a goroutine started with Run
// or the caller of Render for offline use.
//
// Render does not produce samples: it renders the control state of the
// graph, i.e. topology, parameter values and worklet processors.
package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"pipelined.dev/patchbay/host"
	"pipelined.dev/patchbay/log"
	"pipelined.dev/patchbay/message"
	"pipelined.dev/patchbay/mutable"
)

const (
	// DefaultBlockSize is the number of frames in a render block.
	DefaultBlockSize = 128
	// repliesSize is the capacity of replies queue.
	repliesSize = 256
)

var (
	// ErrForeignNode is returned when nodes of different contexts are
	// connected.
	ErrForeignNode = errors.New("node belongs to another context")
	// ErrInvalidFormat is returned when format has no sample rate.
	ErrInvalidFormat = errors.New("invalid format")
)

type (
	// Context is the render runtime.
	Context struct {
		// frames is accessed atomically, it's kept first for alignment.
		frames  int64
		dropped int64

		uid        string
		format     audio.Format
		blockSize  int
		processors map[string]host.NewProcessorFunc
		log        logrus.FieldLogger

		// control plane.
		mu      sync.Mutex
		mctx    mutable.Context
		pusher  mutable.Pusher
		dest    mutable.Destination
		replies chan reply

		// render thread.
		nodes []*Node
		dirty bool
		graph atomic.Value
	}

	// Option configures the context.
	Option func(*Context)

	// reply is a message sent by a processor to its port.
	reply struct {
		port *Port
		message.Message
	}
)

// WithBlockSize sets number of frames per block.
func WithBlockSize(size int) Option {
	return func(c *Context) {
		if size > 0 {
			c.blockSize = size
		}
	}
}

// WithLogger sets logger to the context.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Context) {
		c.log = l
	}
}

// WithProcessor registers a worklet processor under provided name.
func WithProcessor(name string, fn host.NewProcessorFunc) Option {
	return func(c *Context) {
		c.processors[name] = fn
	}
}

// New returns a new render context.
func New(format audio.Format, options ...Option) (*Context, error) {
	if format.SampleRate <= 0 || format.NumChannels <= 0 {
		return nil, fmt.Errorf("%w: %d Hz %d channels", ErrInvalidFormat, format.SampleRate, format.NumChannels)
	}
	c := &Context{
		uid:        xid.New().String(),
		format:     format,
		blockSize:  DefaultBlockSize,
		processors: make(map[string]host.NewProcessorFunc),
		log:        log.Discard(),
		mctx:       mutable.Mutable(),
		pusher:     mutable.NewPusher(),
		dest:       mutable.NewDestination(),
		replies:    make(chan reply, repliesSize),
	}
	for _, option := range options {
		option(c)
	}
	c.pusher.AddDestination(c.mctx, c.dest)
	c.graph.Store(map[string][]string{})
	return c, nil
}

// String returns the context uid.
func (c *Context) String() string {
	return c.uid
}

// Format returns the audio format of the context.
func (c *Context) Format() audio.Format {
	return c.format
}

// Now returns the time of the next block to render.
func (c *Context) Now() float64 {
	return float64(atomic.LoadInt64(&c.frames)) / float64(c.format.SampleRate)
}

// BlockDuration returns duration of a single block.
func (c *Context) BlockDuration() time.Duration {
	return time.Duration(c.blockSize) * time.Second / time.Duration(c.format.SampleRate)
}

// CreateNode creates a new node. The node is installed on the render
// thread with the next block.
func (c *Context) CreateNode(cfg host.NodeConfig) (host.Node, error) {
	n := &Node{
		uid:    xid.New().String(),
		cfg:    cfg,
		ctx:    c,
		params: make(map[string]*Param),
	}
	for name, v := range host.DefaultParams(cfg) {
		n.params[name] = newParam(c, v)
	}
	if cfg.Kind == host.Worklet {
		n.port = &Port{
			node:     n,
			handlers: message.New(),
		}
		if fn, ok := c.processors[cfg.Processor]; ok {
			n.processor = fn(n.port.reply)
		} else {
			c.log.WithField("processor", cfg.Processor).Debug("worklet without registered processor")
		}
	}
	c.push(func() {
		c.nodes = append(c.nodes, n)
		c.dirty = true
	})
	return n, nil
}

// push sends the mutator to the render thread.
func (c *Context) push(fn mutable.MutatorFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pusher.Put(c.mctx.Mutate(fn))
	c.pusher.Push()
}

// Render processes blocks on the calling goroutine. It must not be used
// while Run is active.
func (c *Context) Render(blocks int) {
	for i := 0; i < blocks; i++ {
		c.process()
	}
}

// Run starts the render thread. It renders a block every block duration
// until ctx is done. Returned channel is closed when the thread exits and
// receives an error if rendering failed.
func (c *Context) Run(ctx context.Context) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		defer func() {
			if r := recover(); r != nil {
				errc <- fmt.Errorf("render %v failed: %v", c, r)
			}
		}()
		ticker := time.NewTicker(c.BlockDuration())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.process()
			}
		}
	}()
	return errc
}

// process renders a single block.
func (c *Context) process() {
	select {
	case ms := <-c.dest:
		ms.ApplyTo(c.mctx)
	default:
	}
	now := c.Now()
	duration := float64(c.blockSize) / float64(c.format.SampleRate)
	for _, n := range c.nodes {
		n.process(now, duration)
	}
	if c.dirty {
		c.publishGraph()
		c.dirty = false
	}
	atomic.AddInt64(&c.frames, int64(c.blockSize))
}

func (c *Context) publishGraph() {
	graph := make(map[string][]string, len(c.nodes))
	for _, n := range c.nodes {
		outputs := make([]string, 0, len(n.outputs))
		for _, o := range n.outputs {
			outputs = append(outputs, o.uid)
		}
		graph[n.uid] = outputs
	}
	c.graph.Store(graph)
}

// Graph returns the topology of the last rendered block as node uids
// mapped to uids of their outputs.
func (c *Context) Graph() map[string][]string {
	return c.graph.Load().(map[string][]string)
}

// Dispatch delivers pending processor replies to port subscribers on the
// calling goroutine. It returns number of delivered messages.
func (c *Context) Dispatch() int {
	var delivered int
	for {
		select {
		case r := <-c.replies:
			r.port.handlers.SendMessage(replyType, r.Message)
			delivered++
		default:
			return delivered
		}
	}
}

// Dropped returns number of replies dropped because the queue was full.
func (c *Context) Dropped() int64 {
	return atomic.LoadInt64(&c.dropped)
}
