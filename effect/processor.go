package effect

import (
	"math"

	"pipelined.dev/patchbay/host"
	"pipelined.dev/patchbay/message"
)

const (
	// longestDecay is the envelope duration of zero decay.
	longestDecay = 8.0
	// shortestDecay is the envelope duration of full decay.
	shortestDecay = 0.05
)

// DecayDuration returns the envelope duration in seconds for decay
// amount in [0, 1].
func DecayDuration(decay float64) float64 {
	return longestDecay*(1-clamp(decay, 0, 1)) + shortestDecay
}

// DecayProcessor is the control-rate part of harmonic feedback processor.
// It runs at most one decay envelope and replies with completion when
// the envelope is over.
type DecayProcessor struct {
	reply    func(message.Message)
	seq      uint64
	active   bool
	start    float64
	duration float64
	level    float64
}

// NewDecayProcessor creates decay processor. It's registered in the host
// under Processor name.
func NewDecayProcessor(reply func(message.Message)) host.Processor {
	return &DecayProcessor{
		reply: reply,
		level: 1,
	}
}

// Receive handles trigger and stop messages. Trigger replaces the running
// envelope.
func (p *DecayProcessor) Receive(m message.Message) {
	switch m.Type {
	case TriggerDecayMessage:
		p.seq, _ = m.Payload.(uint64)
		p.active = true
		p.start = math.NaN()
		p.level = 1
	case StopDecayMessage:
		p.active = false
		p.level = 1
	}
}

// Process advances the envelope.
func (p *DecayProcessor) Process(now, duration float64, params host.ParamValues) {
	if !p.active {
		return
	}
	if math.IsNaN(p.start) {
		p.start = now
		p.duration = DecayDuration(params.Value(DecayParam))
	}
	end := now + duration
	elapsed := end - p.start
	if elapsed >= p.duration {
		p.active = false
		p.level = 0
		p.reply(message.Message{Type: DecayCompleteMessage, Payload: p.seq})
		return
	}
	p.level = 1 - elapsed/p.duration
}

// Active returns true if envelope is running.
func (p *DecayProcessor) Active() bool {
	return p.active
}

// Level returns envelope level of the last processed block. It scales
// the feedback coefficient.
func (p *DecayProcessor) Level() float64 {
	return p.level
}
