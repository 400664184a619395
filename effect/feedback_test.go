package effect_test

import (
	"math"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/patchbay/config"
	"pipelined.dev/patchbay/effect"
	"pipelined.dev/patchbay/host"
	"pipelined.dev/patchbay/message"
	"pipelined.dev/patchbay/mock"
	"pipelined.dev/patchbay/node"
	"pipelined.dev/patchbay/registry"
)

const delta = 1e-12

// Interface check.
var (
	_ node.Node      = &effect.HarmonicFeedback{}
	_ host.Automated = &mock.Param{}
)

type fixture struct {
	ctx  *mock.Context
	reg  *registry.Registry
	fx   *effect.HarmonicFeedback
	hook *test.Hook
}

func newFixture(t *testing.T, options ...effect.Option) fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	ctx, reg := mock.NewContext(), registry.New()
	fx, err := effect.NewHarmonicFeedback(ctx, reg, append([]effect.Option{effect.WithLogger(logger)}, options...)...)
	require.NoError(t, err)
	return fixture{ctx: ctx, reg: reg, fx: fx, hook: hook}
}

// native returns the worklet node of effect.
func (f fixture) native() *mock.Node {
	return f.ctx.Nodes[0]
}

func (f fixture) param(name string) *mock.Param {
	return f.native().MockParam(name)
}

func TestNewHarmonicFeedback(t *testing.T) {
	f := newFixture(t)
	require.Len(t, f.ctx.Nodes, 3)
	native := f.native()
	assert.Equal(t, host.Worklet, native.Kind)
	assert.Equal(t, effect.Processor, native.Processor)
	assert.True(t, f.fx.Staged())
	assert.Equal(t, f.ctx.Nodes[1], f.fx.Input())
	assert.Equal(t, f.ctx.Nodes[2], f.fx.Output())
	assert.Equal(t, effect.Idle, f.fx.State())
	assert.Equal(t, []registry.NodeID{f.fx.ID()}, f.reg.LookupByType(effect.TypeTag))

	assert.InDelta(t, 2.0/mock.DefaultSampleRate, f.fx.MinDelay(), delta)
	assert.Equal(t, config.DefaultMaxDelay, f.fx.MaxDelay())
	for _, name := range []string{effect.DelayTimeParam, effect.FeedbackParam, effect.DecayParam} {
		assert.NotNil(t, f.fx.Param(name), name)
	}

	_, err := effect.NewHarmonicFeedback(nil, registry.New())
	assert.Equal(t, node.ErrNilContext, err)
}

func TestSetPitch(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		note  float64
		cents float64
		delay float64
	}{
		{note: 69, delay: 1.0 / 440},
		{note: 81, delay: 1.0 / 880},
		{note: 57, delay: 1.0 / 220},
		{note: 69, cents: 1200, delay: 1.0 / 880},
		{note: 69, cents: -1200, delay: 1.0 / 220},
		// above the highest representable pitch.
		{note: 200, delay: 2.0 / mock.DefaultSampleRate},
	}
	for _, tt := range tests {
		f.fx.SetPitch(tt.note, tt.cents, math.NaN(), 0)
		assert.InDelta(t, tt.delay, f.fx.Delay(), delta)
		assert.InDelta(t, tt.delay, f.param(effect.DelayTimeParam).Value(), delta)
	}
	assert.Empty(t, f.hook.AllEntries())

	f.fx.SetPitch(math.NaN(), 0, 0, 0)
	assert.Len(t, f.hook.AllEntries(), 1)
	assert.InDelta(t, 2.0/mock.DefaultSampleRate, f.fx.Delay(), delta)
}

func TestSetDelay(t *testing.T) {
	f := newFixture(t)
	p := f.param(effect.DelayTimeParam)
	f.fx.SetDelay(0.01, 0, 0)
	assert.Equal(t, 0.01, p.Value())

	// linear glide from previous delay.
	f.fx.SetDelay(0.02, 1, 0.5)
	last, ok := p.Last()
	require.True(t, ok)
	assert.Equal(t, host.Event{Kind: host.LinearRamp, Value: 0.02, Time: 1.5}, last)
	f.ctx.Time = 1.25
	assert.InDelta(t, 0.015, p.Value(), delta)
	f.ctx.Time = 2
	assert.InDelta(t, 0.02, p.Value(), delta)

	// clamped to the longest delay.
	f.fx.SetDelay(5, math.NaN(), 0)
	assert.Equal(t, config.DefaultMaxDelay, f.fx.Delay())
	assert.Equal(t, config.DefaultMaxDelay, p.Value())

	writes := p.Writes
	f.fx.SetDelay(math.Inf(1), 0, 0)
	f.fx.SetDelay(-1, 0, 0)
	assert.Equal(t, writes, p.Writes)
	assert.Len(t, f.hook.AllEntries(), 2)
}

func TestRetargetGlide(t *testing.T) {
	f := newFixture(t)
	p := f.param(effect.DelayTimeParam)
	f.fx.SetDelay(0.002, 0, 0)
	f.fx.SetDelay(0.010, 0, 1)

	// retarget in the middle of the glide.
	f.ctx.Time = 0.5
	f.fx.SetDelay(0.004, 0.5, 1)
	assert.InDelta(t, 0.006, p.ValueAt(0.5-1e-9), 1e-9)
	assert.InDelta(t, 0.006, p.ValueAt(0.5), delta)
	assert.InDelta(t, 0.005, p.ValueAt(1), delta)
	assert.InDelta(t, 0.004, p.ValueAt(1.5), delta)

	// multiplier glide starts from the retargeted glide too.
	f.ctx.Time = 1
	f.fx.SetDelayMultiplier(2, 1, 0.3)
	assert.InDelta(t, 0.005, p.ValueAt(1), delta)
	assert.Greater(t, p.ValueAt(1.1), 0.005)
	assert.InDelta(t, 0.008, p.ValueAt(10), 1e-9)

	// glides scheduled ahead of the clock are retargeted the same way.
	f.fx.SetDelayMultiplier(1, 1, 0)
	f.fx.SetDelay(0.002, 0, 0)
	f.fx.SetDelay(0.010, 1, 1)
	f.fx.SetDelay(0.006, 1.5, 1)
	assert.InDelta(t, 0.004, p.ValueAt(1.25), delta)
	assert.InDelta(t, 0.006, p.ValueAt(1.5), delta)
	assert.InDelta(t, 0.006, p.ValueAt(3), delta)
}

func TestSetDelayMultiplier(t *testing.T) {
	f := newFixture(t)
	p := f.param(effect.DelayTimeParam)
	f.fx.SetDelay(0.01, 0, 0)

	f.fx.SetDelayMultiplier(2, 0.5, 0.3)
	assert.Equal(t, 2.0, f.fx.DelayMultiplier())
	assert.InDelta(t, 0.02, f.fx.Delay(), delta)
	last, ok := p.Last()
	require.True(t, ok)
	assert.Equal(t, host.SetTarget, last.Kind)
	assert.InDelta(t, 0.02, last.Value, delta)
	assert.Equal(t, 0.5, last.Time)
	assert.InDelta(t, 0.1, last.TimeConstant, delta)

	// base delay is kept.
	f.fx.SetDelayMultiplier(0.5, math.NaN(), 0)
	assert.InDelta(t, 0.005, f.fx.Delay(), delta)
	assert.InDelta(t, 0.005, p.Value(), delta)

	writes := p.Writes
	for _, v := range []float64{math.NaN(), math.Inf(-1), 0, -1} {
		f.fx.SetDelayMultiplier(v, 0, 0)
	}
	assert.Equal(t, writes, p.Writes)
	assert.Equal(t, 0.5, f.fx.DelayMultiplier())
	assert.InDelta(t, 0.005, f.fx.Delay(), delta)
	assert.Len(t, f.hook.AllEntries(), 4)
}

func TestSetFeedbackAmount(t *testing.T) {
	f := newFixture(t)
	p := f.param(effect.FeedbackParam)

	f.fx.SetFeedbackAmount(0)
	assert.InDelta(t, config.DefaultMinCoefficient, p.Value(), delta)
	f.fx.SetFeedbackAmount(1)
	assert.InDelta(t, config.DefaultMaxCoefficient, p.Value(), delta)

	prev := math.Inf(-1)
	for a := 0.0; a <= 1; a += 0.05 {
		f.fx.SetFeedbackAmount(a)
		assert.GreaterOrEqual(t, p.Value(), prev)
		prev = p.Value()
	}

	f.fx.SetFeedbackAmount(2)
	assert.Equal(t, 1.0, f.fx.FeedbackAmount())
	assert.InDelta(t, config.DefaultMaxCoefficient, p.Value(), delta)
	f.fx.SetFeedbackAmount(math.NaN())
	assert.Equal(t, 1.0, f.fx.FeedbackAmount())
	assert.Len(t, f.hook.AllEntries(), 1)
}

func TestFeedbackFloor(t *testing.T) {
	f := newFixture(t, effect.WithConfig(config.Feedback{MaxCoefficient: 0.9}))
	f.fx.SetFeedbackAmount(0)
	assert.Greater(t, f.fx.FeedbackCoefficient(), 0.0)
	f.fx.SetFeedbackAmount(1)
	assert.InDelta(t, 0.9, f.fx.FeedbackCoefficient(), delta)
}

func TestSetDecay(t *testing.T) {
	f := newFixture(t)
	p := f.param(effect.DecayParam)
	f.fx.SetDecay(0.3)
	assert.Equal(t, 0.3, p.Value())
	f.fx.SetDecay(3)
	assert.Equal(t, 1.0, p.Value())
	f.fx.SetDecay(-3)
	assert.Equal(t, 0.0, f.fx.Decay())
}

func TestTriggerDecay(t *testing.T) {
	f := newFixture(t)
	port := f.native().MockPort()
	var states []effect.DecayState
	f.fx.OnMessage(effect.DecayStateMessage, func(m message.Message) {
		states = append(states, m.Payload.(effect.DecayState))
	})

	f.fx.TriggerDecay()
	f.fx.TriggerDecay()
	assert.Equal(t, effect.Triggered, f.fx.State())
	assert.Equal(t, []effect.DecayState{effect.Triggered, effect.Idle, effect.Triggered}, states)
	assert.Equal(t, []string{effect.TriggerDecayMessage, effect.StopDecayMessage, effect.TriggerDecayMessage}, port.Types())
	assert.Equal(t, uint64(2), port.Posted[2].Payload)

	// completion of the first envelope is stale.
	port.Reply(message.Message{Type: effect.DecayCompleteMessage, Payload: uint64(1)})
	assert.Equal(t, effect.Triggered, f.fx.State())
	port.Reply(message.Message{Type: effect.DecayCompleteMessage, Payload: uint64(2)})
	assert.Equal(t, effect.Idle, f.fx.State())
	assert.Len(t, states, 4)

	// stop in idle state is no-op.
	f.fx.StopDecay()
	assert.Len(t, port.Posted, 3)
}

func TestStopDecay(t *testing.T) {
	f := newFixture(t)
	port := f.native().MockPort()
	f.fx.TriggerDecay()
	f.fx.StopDecay()
	assert.Equal(t, effect.Idle, f.fx.State())
	assert.Equal(t, []string{effect.TriggerDecayMessage, effect.StopDecayMessage}, port.Types())

	// late completion is ignored.
	port.Reply(message.Message{Type: effect.DecayCompleteMessage, Payload: uint64(1)})
	assert.Equal(t, effect.Idle, f.fx.State())
}

func TestConnect(t *testing.T) {
	f := newFixture(t)
	src, err := node.Create(f.ctx, f.reg, host.NodeConfig{Kind: host.Gain}, "gain")
	require.NoError(t, err)
	dst, err := node.Create(f.ctx, f.reg, host.NodeConfig{Kind: host.Gain}, "gain")
	require.NoError(t, err)

	require.NoError(t, src.Connect(f.fx))
	require.NoError(t, f.fx.Connect(dst))
	assert.True(t, src.Native().(*mock.Node).ConnectedTo(f.fx.Input()))
	assert.True(t, f.ctx.Nodes[2].ConnectedTo(dst.Input()))
	assert.Equal(t, []registry.NodeID{src.ID()}, f.fx.Connections().Incoming)
	assert.Equal(t, []registry.NodeID{dst.ID()}, f.fx.Connections().Outgoing)

	require.NoError(t, src.Disconnect(f.fx))
	assert.Empty(t, f.fx.Connections().Incoming)
}

func TestDispose(t *testing.T) {
	f := newFixture(t)
	port := f.native().MockPort()
	src, err := node.Create(f.ctx, f.reg, host.NodeConfig{Kind: host.Gain}, "gain")
	require.NoError(t, err)
	require.NoError(t, src.Connect(f.fx))
	f.fx.TriggerDecay()

	require.NoError(t, f.fx.Dispose())
	assert.Equal(t, effect.Idle, f.fx.State())
	assert.Equal(t, []string{effect.TriggerDecayMessage, effect.StopDecayMessage}, port.Types())
	assert.Empty(t, src.Connections().Outgoing)
	assert.Empty(t, f.reg.LookupByType(effect.TypeTag))

	assert.NoError(t, f.fx.Dispose())
	assert.Len(t, port.Posted, 2)
}
