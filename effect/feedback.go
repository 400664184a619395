// Package effect implements effects composed of adapted nodes.
package effect

import (
	"math"

	"github.com/sirupsen/logrus"

	"pipelined.dev/patchbay/config"
	"pipelined.dev/patchbay/host"
	"pipelined.dev/patchbay/log"
	"pipelined.dev/patchbay/message"
	"pipelined.dev/patchbay/node"
	"pipelined.dev/patchbay/registry"
)

const (
	// Processor is the worklet processor name of harmonic feedback.
	Processor = "harmonic-feedback"
	// TypeTag is the registry type of harmonic feedback nodes.
	TypeTag = "harmonic-feedback"
)

// Parameters of harmonic feedback processor.
const (
	DelayTimeParam = "delayTime"
	FeedbackParam  = "feedback"
	DecayParam     = "decay"
)

// Messages exchanged with harmonic feedback processor.
const (
	// TriggerDecayMessage starts the decay envelope. Payload is the
	// uint64 sequence of the trigger.
	TriggerDecayMessage = "triggerDecay"
	// StopDecayMessage stops the decay envelope.
	StopDecayMessage = "stopDecay"
	// DecayCompleteMessage is replied when envelope is over. Payload is
	// the sequence of completed trigger.
	DecayCompleteMessage = "decayComplete"
	// DecayStateMessage is published on the effect bus when decay state
	// changes. Payload is DecayState.
	DecayStateMessage = "decayState"
)

const (
	// DefaultFeedbackAmount is the initial feedback amount.
	DefaultFeedbackAmount = 0.5
	// DefaultDecay is the initial decay amount.
	DefaultDecay = 0.5
	// a4 is the frequency of MIDI note 69.
	a4 = 440.0
)

var defaultLogger = log.GetLogger()

type (
	// HarmonicFeedback is a pitched feedback delay line. Its pitch sets
	// the delay time, feedback coefficient sets the resonance and the
	// decay envelope tapers the resonance once triggered.
	HarmonicFeedback struct {
		*node.Adapter
		cfg config.Feedback
		log logrus.FieldLogger

		port          host.Port
		cancelReplies func()
		state         DecayState
		seq           uint64

		minDelay   float64
		baseDelay  float64
		multiplier float64
		delay      float64
		amount     float64
		decay      float64
	}

	// Option configures the effect.
	Option func(*HarmonicFeedback)
)

// WithConfig sets feedback config.
func WithConfig(cfg config.Feedback) Option {
	return func(h *HarmonicFeedback) {
		h.cfg = cfg
	}
}

// WithLogger sets the logger of effect.
func WithLogger(l logrus.FieldLogger) Option {
	return func(h *HarmonicFeedback) {
		h.log = l
	}
}

// NewHarmonicFeedback creates the worklet node of effect. Node is wrapped
// with input and output stages.
func NewHarmonicFeedback(ctx host.Context, reg *registry.Registry, options ...Option) (*HarmonicFeedback, error) {
	if ctx == nil {
		return nil, node.ErrNilContext
	}
	h := &HarmonicFeedback{
		cfg:        config.Default().Feedback,
		log:        defaultLogger,
		state:      Idle,
		multiplier: 1,
		baseDelay:  1 / a4,
		amount:     DefaultFeedbackAmount,
		decay:      DefaultDecay,
	}
	for _, option := range options {
		option(h)
	}
	h.sanitize(ctx)
	h.delay = h.scaledDelay()

	a, err := node.Create(ctx, reg, host.NodeConfig{
		Kind:      host.Worklet,
		Processor: Processor,
		Params: map[string]float64{
			DelayTimeParam: h.delay,
			FeedbackParam:  h.coefficient(h.amount),
			DecayParam:     h.decay,
		},
	}, TypeTag, node.WithStages(), node.WithLogger(h.log))
	if err != nil {
		return nil, err
	}
	h.Adapter = a
	h.log = h.log.WithField("node", a.ID().String())
	if m, ok := a.Native().(host.Messenger); ok {
		h.port = m.Port()
	}
	if h.port != nil {
		h.cancelReplies = h.port.OnMessage(h.receive)
	}
	return h, nil
}

// sanitize forces config values into working ranges.
func (h *HarmonicFeedback) sanitize(ctx host.Context) {
	def := config.Default().Feedback
	if !(h.cfg.MinCoefficient > 0) {
		h.cfg.MinCoefficient = def.MinCoefficient
	}
	if h.cfg.MaxCoefficient < h.cfg.MinCoefficient {
		h.cfg.MaxCoefficient = h.cfg.MinCoefficient
	}
	if h.cfg.MinDelayFrames <= 0 {
		h.cfg.MinDelayFrames = def.MinDelayFrames
	}
	if sr := ctx.Format().SampleRate; sr > 0 {
		h.minDelay = float64(h.cfg.MinDelayFrames) / float64(sr)
	} else {
		h.minDelay = float64(h.cfg.MinDelayFrames) / config.DefaultSampleRate
	}
	if !(h.cfg.MaxDelay > h.minDelay) {
		h.cfg.MaxDelay = math.Max(def.MaxDelay, h.minDelay)
	}
}

// receive handles processor replies.
func (h *HarmonicFeedback) receive(m message.Message) {
	switch m.Type {
	case DecayCompleteMessage:
		seq, _ := m.Payload.(uint64)
		h.setState(h.state.complete(h, seq))
	}
}

// State returns current decay state.
func (h *HarmonicFeedback) State() DecayState {
	return h.state
}

// MinDelay returns the shortest delay of the delay line.
func (h *HarmonicFeedback) MinDelay() float64 {
	return h.minDelay
}

// MaxDelay returns the longest delay of the delay line.
func (h *HarmonicFeedback) MaxDelay() float64 {
	return h.cfg.MaxDelay
}

// Delay returns the last scheduled delay time.
func (h *HarmonicFeedback) Delay() float64 {
	return h.delay
}

// DelayMultiplier returns the pitch scale of delay.
func (h *HarmonicFeedback) DelayMultiplier() float64 {
	return h.multiplier
}

// FeedbackAmount returns the last feedback amount.
func (h *HarmonicFeedback) FeedbackAmount() float64 {
	return h.amount
}

// Decay returns the last decay amount.
func (h *HarmonicFeedback) Decay() float64 {
	return h.decay
}

// SetPitch tunes delay line to MIDI note detuned by cents. Pitches above
// the highest representable one are clamped.
func (h *HarmonicFeedback) SetPitch(note, cents, at, glide float64) {
	if !node.IsFinite(note) || !node.IsFinite(cents) {
		h.log.WithFields(logrus.Fields{"note": note, "cents": cents}).Warn("non-finite pitch")
		return
	}
	f := a4 * math.Pow(2, (note-69)/12) * math.Pow(2, cents/1200)
	delay := 1 / f
	if delay < h.minDelay {
		delay = h.minDelay
	}
	h.SetDelay(delay, at, glide)
}

// SetDelay sets the unscaled delay in seconds. Delay is glided linearly
// from its value at the given time if glide is positive.
func (h *HarmonicFeedback) SetDelay(seconds, at, glide float64) {
	if !node.IsFinite(seconds) || seconds < 0 {
		h.log.WithField("value", seconds).Warn("invalid delay")
		return
	}
	h.baseDelay = seconds
	at = h.time(at)
	p := h.delayParam()
	if p == nil {
		return
	}
	h.delay = h.scaledDelay()
	hold(p, at)
	if !node.IsFinite(glide) || glide <= 0 {
		p.SetValueAtTime(h.delay, at)
		return
	}
	p.LinearRampToValueAtTime(h.delay, at+glide)
}

// SetDelayMultiplier scales the delay. The scaled delay is approached
// exponentially with glide/3 time constant.
func (h *HarmonicFeedback) SetDelayMultiplier(value, at, glide float64) {
	if !node.IsFinite(value) || value <= 0 {
		h.log.WithField("value", value).Warn("invalid delay multiplier")
		return
	}
	h.multiplier = value
	at = h.time(at)
	p := h.delayParam()
	if p == nil {
		return
	}
	h.delay = h.scaledDelay()
	hold(p, at)
	if !node.IsFinite(glide) || glide <= 0 {
		p.SetValueAtTime(h.delay, at)
		return
	}
	p.SetTargetAtTime(h.delay, at, glide/3)
}

// SetFeedbackAmount maps amount in [0, 1] to feedback coefficient.
func (h *HarmonicFeedback) SetFeedbackAmount(amount float64) {
	if !node.IsFinite(amount) {
		h.log.WithField("value", amount).Warn("non-finite feedback amount")
		return
	}
	h.amount = clamp(amount, 0, 1)
	h.SetParam(FeedbackParam, h.coefficient(h.amount), h.Now())
}

// FeedbackCoefficient returns the coefficient of the last amount.
func (h *HarmonicFeedback) FeedbackCoefficient() float64 {
	return h.coefficient(h.amount)
}

// SetDecay sets decay amount in [0, 1].
func (h *HarmonicFeedback) SetDecay(amount float64) {
	if !node.IsFinite(amount) {
		h.log.WithField("value", amount).Warn("non-finite decay")
		return
	}
	h.decay = clamp(amount, 0, 1)
	h.SetParam(DecayParam, h.decay, h.Now())
}

// TriggerDecay starts decay envelope. Running envelope is restarted.
func (h *HarmonicFeedback) TriggerDecay() {
	h.setState(h.state.trigger(h))
}

// StopDecay stops decay envelope.
func (h *HarmonicFeedback) StopDecay() {
	h.setState(h.state.stop(h))
}

// Dispose stops decay envelope and disposes the node.
func (h *HarmonicFeedback) Dispose() error {
	if h.Disposed() {
		return nil
	}
	h.StopDecay()
	if h.cancelReplies != nil {
		h.cancelReplies()
	}
	return h.Adapter.Dispose()
}

// coefficient maps amount with a curve concave towards the maximum.
func (h *HarmonicFeedback) coefficient(amount float64) float64 {
	curve := 1 - (1-amount)*(1-amount)
	return h.cfg.MinCoefficient + (h.cfg.MaxCoefficient-h.cfg.MinCoefficient)*curve
}

func (h *HarmonicFeedback) scaledDelay() float64 {
	return clamp(h.baseDelay*h.multiplier, h.minDelay, h.cfg.MaxDelay)
}

func (h *HarmonicFeedback) delayParam() host.Param {
	p := h.Param(DelayTimeParam)
	if p == nil {
		h.log.WithField("param", DelayTimeParam).Warn("unknown param")
	}
	return p
}

// hold cancels automation scheduled at or after at and keeps the value
// param has at that moment, so a running glide is retargeted from where it
// is instead of jumping.
func hold(p host.Param, at float64) {
	v := p.Value()
	if a, ok := p.(host.Automated); ok {
		v = a.ValueAt(at)
	}
	p.CancelScheduledValues(at)
	p.LinearRampToValueAtTime(v, at)
}

func (h *HarmonicFeedback) time(at float64) float64 {
	if !node.IsFinite(at) {
		return h.Now()
	}
	return at
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}
