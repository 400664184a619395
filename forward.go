package patchbay

import (
	"math"

	"github.com/sirupsen/logrus"

	"pipelined.dev/patchbay/effect"
	"pipelined.dev/patchbay/host"
	"pipelined.dev/patchbay/node"
)

// Ranges of forwarded parameters.
const (
	MinCutoff        = 20.0
	MaxCutoff        = 20000.0
	MaxGain          = 2.0
	MinLimiter       = -60.0
	MinPitchScale    = 0.125
	MaxPitchScale    = 8.0
	MaxNote          = 127.0
	MaxCents         = 1200.0
	clippingHeadroom = 12.0
)

// now schedules parameter writes at the current time of audio clock.
var now = math.NaN()

// Compression holds compressor parameters. Threshold and knee are in
// dB, attack and release in seconds.
type Compression struct {
	Threshold float64
	Knee      float64
	Ratio     float64
	Attack    float64
	Release   float64
}

// SetInputGain sets gain of input node clamped to [0, MaxGain].
func (b *Bus) SetInputGain(gain float64) {
	if b.finite("input gain", gain) {
		b.set(Input, "gain", clamp(gain, 0, MaxGain))
	}
}

// SetOutputGain sets gain of output node clamped to [0, MaxGain]. The
// compensation of clipping macro is applied on top.
func (b *Bus) SetOutputGain(gain float64) {
	if !b.finite("output gain", gain) {
		return
	}
	b.outputGain = clamp(gain, 0, MaxGain)
	b.set(Output, "gain", b.outputGain*compensation(b.clipping))
}

// SetHpfCutoff sets high-pass cutoff frequency in Hz.
func (b *Bus) SetHpfCutoff(hz float64) {
	if b.finite("hpf cutoff", hz) {
		b.set(Hpf, "frequency", b.cutoff(hz))
	}
}

// SetLpfCutoff sets low-pass cutoff frequency in Hz.
func (b *Bus) SetLpfCutoff(hz float64) {
	if b.finite("lpf cutoff", hz) {
		b.set(Lpf, "frequency", b.cutoff(hz))
	}
}

// SetCompressorParams sets compressor parameters. Non-finite fields are
// skipped.
func (b *Bus) SetCompressorParams(c Compression) {
	n := b.resolve(Compressor)
	if n == nil {
		return
	}
	params := []struct {
		name     string
		value    float64
		min, max float64
	}{
		{name: "threshold", value: c.Threshold, min: -100, max: 0},
		{name: "knee", value: c.Knee, min: 0, max: 40},
		{name: "ratio", value: c.Ratio, min: 1, max: 20},
		{name: "attack", value: c.Attack, min: 0, max: 1},
		{name: "release", value: c.Release, min: 0, max: 1},
	}
	for _, p := range params {
		if b.finite(p.name, p.value) {
			n.SetParam(p.name, clamp(p.value, p.min, p.max), now)
		}
	}
}

// SetLimiterThreshold sets limiter threshold in dB.
func (b *Bus) SetLimiterThreshold(db float64) {
	if b.finite("limiter threshold", db) {
		b.set(Limiter, "threshold", clamp(db, MinLimiter, 0))
	}
}

// SetDryWetMix crossfades dry and wet paths with equal power. Zero is
// fully dry.
func (b *Bus) SetDryWetMix(mix float64) {
	if !b.finite("dry/wet mix", mix) {
		return
	}
	angle := clamp(mix, 0, 1) * math.Pi / 2
	b.set(Dry, "gain", math.Cos(angle))
	b.set(Wet, "gain", math.Sin(angle))
}

// SetReverbAmount sets the reverb send level.
func (b *Bus) SetReverbAmount(amount float64) {
	b.SetSendAmount(Reverb, amount)
}

// SetDrive sets distortion drive in [0, 1].
func (b *Bus) SetDrive(drive float64) {
	if b.finite("drive", drive) {
		b.set(Distortion, DriveParam, clamp(drive, 0, 1))
	}
}

// SetClippingMacro sets drive and lowers output gain to compensate the
// level boost of distortion.
func (b *Bus) SetClippingMacro(amount float64) {
	if !b.finite("clipping", amount) {
		return
	}
	b.clipping = clamp(amount, 0, 1)
	b.SetDrive(b.clipping)
	b.set(Output, "gain", b.outputGain*compensation(b.clipping))
}

// SetFeedbackAmount sets the feedback amount of feedback effect.
func (b *Bus) SetFeedbackAmount(amount float64) {
	if fx := b.feedback(); fx != nil && b.finite("feedback amount", amount) {
		fx.SetFeedbackAmount(clamp(amount, 0, 1))
	}
}

// SetFeedbackDecay sets the decay of feedback effect.
func (b *Bus) SetFeedbackDecay(decay float64) {
	if fx := b.feedback(); fx != nil && b.finite("feedback decay", decay) {
		fx.SetDecay(clamp(decay, 0, 1))
	}
}

// SetFeedbackPitchScale scales the delay of feedback effect.
func (b *Bus) SetFeedbackPitchScale(scale, glide float64) {
	if fx := b.feedback(); fx != nil && b.finite("feedback pitch scale", scale) {
		fx.SetDelayMultiplier(clamp(scale, MinPitchScale, MaxPitchScale), now, glide)
	}
}

// SetFeedbackPitch tunes feedback effect to MIDI note.
func (b *Bus) SetFeedbackPitch(note, cents, glide float64) {
	if fx := b.feedback(); fx != nil && b.finite("feedback pitch", note) && b.finite("feedback cents", cents) {
		fx.SetPitch(clamp(note, 0, MaxNote), clamp(cents, -MaxCents, MaxCents), now, glide)
	}
}

// TriggerFeedbackDecay starts decay envelope of feedback effect.
func (b *Bus) TriggerFeedbackDecay() {
	if fx := b.feedback(); fx != nil {
		fx.TriggerDecay()
	}
}

// StopFeedbackDecay stops decay envelope of feedback effect.
func (b *Bus) StopFeedbackDecay() {
	if fx := b.feedback(); fx != nil {
		fx.StopDecay()
	}
}

func (b *Bus) set(name, param string, value float64) {
	if n := b.resolve(name); n != nil {
		n.SetParam(param, value, now)
	}
}

func (b *Bus) feedback() *effect.HarmonicFeedback {
	n := b.resolve(Feedback)
	if n == nil {
		return nil
	}
	fx, ok := n.(*effect.HarmonicFeedback)
	if !ok {
		b.log.WithField("node", Feedback).Warnf("%T is not a feedback effect", n)
		return nil
	}
	return fx
}

func (b *Bus) finite(name string, v float64) bool {
	if node.IsFinite(v) {
		return true
	}
	b.log.WithFields(logrus.Fields{"param": name, "value": v}).Warn("non-finite value")
	return false
}

// cutoff clamps frequency to the audible range below nyquist.
func (b *Bus) cutoff(hz float64) float64 {
	return clamp(hz, MinCutoff, math.Min(MaxCutoff, host.Nyquist(b.ctx.Format())))
}

// compensation returns the output gain of clipping amount.
func compensation(amount float64) float64 {
	return math.Pow(10, -amount*clippingHeadroom/20)
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}
