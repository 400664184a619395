package patchbay

import (
	"fmt"

	"pipelined.dev/patchbay/config"
	"pipelined.dev/patchbay/effect"
	"pipelined.dev/patchbay/host"
	"pipelined.dev/patchbay/node"
	"pipelined.dev/patchbay/registry"
)

// Node names of default topology.
const (
	Input      = "input"
	Hpf        = "hpf"
	Feedback   = "feedback"
	Dry        = "dry"
	Reverb     = "reverb"
	Wet        = "wet"
	Distortion = "distortion"
	Compressor = "compressor"
	Lpf        = "lpf"
	Limiter    = "limiter"
	Output     = "output"
)

const (
	// DistortionProcessor is the worklet processor name of distortion.
	DistortionProcessor = "distortion"
	// DriveParam is the drive parameter of distortion.
	DriveParam = "drive"
)

// Default returns bus with default topology:
//
//	input -> hpf -> feedback -> dry -> distortion
//	feedback -> reverb_send -> reverb -> wet -> distortion
//	distortion -> compressor -> lpf -> limiter -> output
//
// Reverb send is closed, so only the dry path is audible until reverb
// amount is raised. Initial values are taken from the bus config.
func Default(ctx host.Context, reg *registry.Registry, options ...Option) (*Bus, error) {
	b, err := New(ctx, reg, options...)
	if err != nil {
		return nil, err
	}
	if err := b.build(); err != nil {
		return nil, withDispose(fmt.Errorf("build %v: %w", b, err), b.Dispose())
	}
	return b, nil
}

func (b *Bus) build() error {
	cfg := b.cfg.Bus
	if err := b.create(Input, host.NodeConfig{Kind: host.Gain}); err != nil {
		return err
	}
	if err := b.create(Hpf, host.NodeConfig{
		Kind:   host.Biquad,
		Type:   host.Highpass,
		Params: map[string]float64{"frequency": b.cutoff(value(cfg.HpfCutoff, config.DefaultHpfCutoff))},
	}); err != nil {
		return err
	}
	fx, err := effect.NewHarmonicFeedback(b.ctx, b.reg,
		effect.WithConfig(b.cfg.Feedback),
		effect.WithLogger(b.log),
	)
	if err != nil {
		return err
	}
	b.AddNode(Feedback, fx)
	if err := b.create(Dry, host.NodeConfig{Kind: host.Gain}); err != nil {
		return err
	}
	reverb, err := node.Create(b.ctx, b.reg, host.NodeConfig{Kind: host.Convolver}, string(host.Convolver), node.WithStages(), node.WithLogger(b.log))
	if err != nil {
		return err
	}
	b.AddEffect(Reverb, reverb)
	if b.Node(Reverb) == nil {
		return withDispose(fmt.Errorf("add %s", Reverb), reverb.Dispose())
	}
	if b.Send(Reverb) == nil {
		return fmt.Errorf("no %s send", Reverb)
	}
	if err := b.create(Wet, host.NodeConfig{Kind: host.Gain}); err != nil {
		return err
	}
	if err := b.create(Distortion, host.NodeConfig{
		Kind:      host.Worklet,
		Processor: DistortionProcessor,
		Params:    map[string]float64{DriveParam: clamp(cfg.Drive, 0, 1)},
	}); err != nil {
		return err
	}
	if err := b.create(Compressor, host.NodeConfig{Kind: host.Compressor}); err != nil {
		return err
	}
	if err := b.create(Lpf, host.NodeConfig{
		Kind:   host.Biquad,
		Type:   host.Lowpass,
		Params: map[string]float64{"frequency": b.cutoff(value(cfg.LpfCutoff, config.DefaultLpfCutoff))},
	}); err != nil {
		return err
	}
	if err := b.create(Limiter, host.NodeConfig{
		Kind: host.Compressor,
		Params: map[string]float64{
			"threshold": clamp(pointer(cfg.LimiterThreshold, config.DefaultLimiter), -60, 0),
			"knee":      0,
			"ratio":     20,
			"attack":    0.001,
			"release":   0.05,
		},
	}); err != nil {
		return err
	}
	if err := b.create(Output, host.NodeConfig{Kind: host.Gain}); err != nil {
		return err
	}

	b.ConnectChain(Input, Hpf, Feedback, Dry, Distortion)
	b.ConnectChain(Feedback, Reverb+SendSuffix, Reverb, Wet, Distortion)
	b.ConnectChain(Distortion, Compressor, Lpf, Limiter, Output)

	b.SetInputGain(pointer(cfg.InputGain, 1))
	b.SetOutputGain(pointer(cfg.OutputGain, 1))
	b.SetDryWetMix(pointer(cfg.DryWet, config.DefaultDryWet))
	return nil
}

// create adds a native node wrapped into adapter.
func (b *Bus) create(name string, cfg host.NodeConfig) error {
	typeTag := string(cfg.Kind)
	if cfg.Kind == host.Worklet {
		typeTag = cfg.Processor
	}
	n, err := node.Create(b.ctx, b.reg, cfg, typeTag, node.WithLogger(b.log))
	if err != nil {
		return err
	}
	b.AddNode(name, n)
	return nil
}

// withDispose joins the error of cleanup dispose to err.
func withDispose(err, disposeErr error) error {
	if disposeErr == nil {
		return err
	}
	return fmt.Errorf("%w (dispose: %v)", err, disposeErr)
}

func value(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func pointer(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
