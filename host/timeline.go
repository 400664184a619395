package host

import (
	"math"
	"sort"
)

// EventKind is a type of automation event.
type EventKind int

// Automation events.
const (
	SetValue EventKind = iota
	LinearRamp
	SetTarget
)

// Event is a single scheduled automation event. For ramps Time is the end
// of the ramp.
type Event struct {
	Kind         EventKind
	Value        float64
	Time         float64
	TimeConstant float64
}

// Timeline evaluates parameter automation. It's not safe for concurrent
// use, host implementations keep it on the thread which renders.
type Timeline struct {
	initial float64
	events  []Event
}

// NewTimeline returns timeline with initial value.
func NewTimeline(initial float64) *Timeline {
	return &Timeline{initial: initial}
}

// Events returns scheduled events ordered by time.
func (tl *Timeline) Events() []Event {
	return append([]Event(nil), tl.events...)
}

// Insert schedules the event. Events with equal time keep insertion order.
func (tl *Timeline) Insert(e Event) {
	i := sort.Search(len(tl.events), func(i int) bool {
		return tl.events[i].Time > e.Time
	})
	tl.events = append(tl.events, Event{})
	copy(tl.events[i+1:], tl.events[i:])
	tl.events[i] = e
}

// Cancel removes all events scheduled at or after t.
func (tl *Timeline) Cancel(t float64) {
	for i := range tl.events {
		if tl.events[i].Time >= t {
			tl.events = tl.events[:i]
			return
		}
	}
}

// ValueAt returns the parameter value at time t.
func (tl *Timeline) ValueAt(t float64) float64 {
	v, prev := tl.initial, 0.0
	for i, e := range tl.events {
		switch e.Kind {
		case LinearRamp:
			if t < e.Time {
				if t <= prev || e.Time <= prev {
					return v
				}
				return v + (e.Value-v)*(t-prev)/(e.Time-prev)
			}
			v, prev = e.Value, e.Time
		case SetTarget:
			if t < e.Time {
				return v
			}
			end := t
			if i+1 < len(tl.events) && tl.events[i+1].Time <= t {
				end = tl.events[i+1].Time
			}
			v = approach(v, e.Value, end-e.Time, e.TimeConstant)
			prev = end
			if end == t {
				return v
			}
		default:
			if t < e.Time {
				return v
			}
			v, prev = e.Value, e.Time
		}
	}
	return v
}

// approach returns the value of exponential approach from v to target
// after elapsed seconds.
func approach(v, target, elapsed, timeConstant float64) float64 {
	if timeConstant <= 0 {
		return target
	}
	return target + (v-target)*math.Exp(-elapsed/timeConstant)
}

// DefaultParams returns initial parameter values of native node.
func DefaultParams(cfg NodeConfig) map[string]float64 {
	params := make(map[string]float64)
	switch cfg.Kind {
	case Gain:
		params["gain"] = 1
	case Delay:
		params["delayTime"] = 0
	case Biquad:
		params["frequency"] = 350
		params["Q"] = 1
		params["gain"] = 0
		params["detune"] = 0
	case Compressor:
		params["threshold"] = -24
		params["knee"] = 30
		params["ratio"] = 12
		params["attack"] = 0.003
		params["release"] = 0.25
	}
	for name, v := range cfg.Params {
		params[name] = v
	}
	return params
}
