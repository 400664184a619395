package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"pipelined.dev/patchbay"
	"pipelined.dev/patchbay/effect"
	"pipelined.dev/patchbay/message"
)

type runCommand struct {
	config  string
	note    float64
	decay   float64
	timeout time.Duration
}

func (cmd *runCommand) Name() string {
	return "run"
}

func (cmd *runCommand) Help() string {
	return "Run default bus in real time until feedback decay is over"
}

func (cmd *runCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.config, "config", "", "path to YAML config")
	fs.Float64Var(&cmd.note, "note", 69, "MIDI note of feedback effect")
	fs.Float64Var(&cmd.decay, "decay", 0.9, "feedback decay in [0, 1]")
	fs.DurationVar(&cmd.timeout, "timeout", 10*time.Second, "time to wait for decay")
}

func (cmd *runCommand) Run(w io.Writer) error {
	cfg, err := loadConfig(cmd.config)
	if err != nil {
		return err
	}
	ctx, b, err := newBus(cfg)
	if err != nil {
		return err
	}
	defer b.Dispose()
	fx, ok := b.Node(patchbay.Feedback).(*effect.HarmonicFeedback)
	if !ok {
		return errors.New("bus has no feedback effect")
	}
	var finished bool
	unsubscribe := fx.OnMessage(effect.DecayStateMessage, func(m message.Message) {
		finished = m.Payload == effect.Idle
	})
	defer unsubscribe()

	runCtx, cancel := context.WithTimeout(context.Background(), cmd.timeout)
	defer cancel()
	errc := ctx.Run(runCtx)

	b.SetFeedbackPitch(cmd.note, 0, 0)
	b.SetFeedbackDecay(cmd.decay)
	b.TriggerFeedbackDecay()
	fmt.Fprintf(w, "Bus %v: decay of note %v triggered\n", b, cmd.note)

	ticker := time.NewTicker(ctx.BlockDuration())
	defer ticker.Stop()
	for !finished {
		select {
		case <-ticker.C:
			ctx.Dispatch()
		case <-runCtx.Done():
			return wait(errc, fmt.Errorf("decay is not over in %v", cmd.timeout))
		case err := <-errc:
			if err != nil {
				return err
			}
			return errors.New("render stopped")
		}
	}
	fmt.Fprintf(w, "Decay is over at %.3fs, delay %.6fs\n", ctx.Now(), fx.Delay())
	cancel()
	return wait(errc, nil)
}

// wait waits for render thread to exit. Render error takes precedence.
func wait(errc <-chan error, err error) error {
	for e := range errc {
		if e != nil {
			return e
		}
	}
	return err
}
