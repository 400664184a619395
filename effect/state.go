package effect

import "pipelined.dev/patchbay/message"

// DecayState is a state of the decay envelope.
type DecayState interface {
	String() string
	trigger(*HarmonicFeedback) DecayState
	stop(*HarmonicFeedback) DecayState
	complete(h *HarmonicFeedback, seq uint64) DecayState
}

// states
type (
	idleDecay      struct{}
	triggeredDecay struct{}
)

// states variables
var (
	// Idle means that no decay envelope is running.
	Idle DecayState = idleDecay{}
	// Triggered means that decay envelope was started and is not
	// completed yet.
	Triggered DecayState = triggeredDecay{}
)

func (idleDecay) String() string {
	return "idle"
}

func (idleDecay) trigger(h *HarmonicFeedback) DecayState {
	h.seq++
	h.post(TriggerDecayMessage, h.seq)
	return Triggered
}

func (idleDecay) stop(*HarmonicFeedback) DecayState {
	return Idle
}

func (idleDecay) complete(*HarmonicFeedback, uint64) DecayState {
	return Idle
}

func (triggeredDecay) String() string {
	return "triggered"
}

// trigger restarts the envelope. The running one is stopped first.
func (s triggeredDecay) trigger(h *HarmonicFeedback) DecayState {
	h.setState(s.stop(h))
	return Idle.trigger(h)
}

func (triggeredDecay) stop(h *HarmonicFeedback) DecayState {
	h.post(StopDecayMessage, h.seq)
	return Idle
}

// complete ignores completions of envelopes which were restarted.
func (triggeredDecay) complete(h *HarmonicFeedback, seq uint64) DecayState {
	if seq != h.seq {
		h.log.WithField("seq", seq).Debug("stale decay completion")
		return Triggered
	}
	return Idle
}

// setState publishes the state change on the effect message bus.
func (h *HarmonicFeedback) setState(s DecayState) {
	if s == h.state {
		return
	}
	h.log.Debugf("decay %v -> %v", h.state, s)
	h.state = s
	h.SendMessage(DecayStateMessage, s)
}

func (h *HarmonicFeedback) post(msgType string, seq uint64) {
	if h.port == nil {
		h.log.WithField("message", msgType).Warn("effect has no port")
		return
	}
	h.port.PostMessage(message.Message{Type: msgType, Payload: seq})
}
