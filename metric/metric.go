// Package metric publishes expvar counters for graph nodes grouped by
// their type tag.
package metric

import (
	"expvar"
	"fmt"
	"sync"
)

const nodesLabel = "patchbay.nodes"

const (
	// NodeCounter counts nodes which are currently registered.
	NodeCounter = "Nodes"
	// CreatedCounter counts nodes registered since process start.
	CreatedCounter = "Created"
	// ConnectCounter counts issued connect instructions.
	ConnectCounter = "Connects"
	// DisconnectCounter counts issued disconnect instructions.
	DisconnectCounter = "Disconnects"
	// ParamCounter counts scheduled parameter writes.
	ParamCounter = "Params"
)

var (
	types = metrics{
		m: make(map[string]*Meter),
	}

	counters = []string{
		NodeCounter,
		CreatedCounter,
		ConnectCounter,
		DisconnectCounter,
		ParamCounter,
	}
)

// Meter holds the counters of a single node type. Meters are shared by
// all registries in the process since expvar names are global.
type Meter struct {
	nodes       *expvar.Int
	created     *expvar.Int
	connects    *expvar.Int
	disconnects *expvar.Int
	params      *expvar.Int
}

// Get metrics values for provided node type.
func Get(typeTag string) map[string]string {
	types.Lock()
	defer types.Unlock()
	if _, ok := types.m[typeTag]; !ok {
		return map[string]string{}
	}
	return getCounters(typeTag)
}

// GetAll returns counters for all measured node types.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	types.Lock()
	defer types.Unlock()
	for typeTag := range types.m {
		m[typeTag] = getCounters(typeTag)
	}
	return m
}

func getCounters(typeTag string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(typeTag, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// For returns the meter of provided node type.
func For(typeTag string) *Meter {
	return types.get(typeTag)
}

// Created captures registration of a new node.
func (m *Meter) Created() {
	if m == nil {
		return
	}
	m.nodes.Add(1)
	m.created.Add(1)
}

// Disposed captures removal of a node.
func (m *Meter) Disposed() {
	if m == nil {
		return
	}
	m.nodes.Add(-1)
}

// Connected captures a connect instruction.
func (m *Meter) Connected() {
	if m == nil {
		return
	}
	m.connects.Add(1)
}

// Disconnected captures a disconnect instruction.
func (m *Meter) Disconnected() {
	if m == nil {
		return
	}
	m.disconnects.Add(1)
}

// Scheduled captures a parameter write.
func (m *Meter) Scheduled() {
	if m == nil {
		return
	}
	m.params.Add(1)
}

type metrics struct {
	sync.Mutex
	m map[string]*Meter
}

func (m *metrics) get(typeTag string) *Meter {
	m.Lock()
	defer m.Unlock()
	if meter, ok := m.m[typeTag]; ok {
		// return existing meter if available
		return meter
	}
	meter := newMeter(typeTag)
	m.m[typeTag] = meter
	return meter
}

func newMeter(typeTag string) *Meter {
	return &Meter{
		nodes:       expvar.NewInt(key(typeTag, NodeCounter)),
		created:     expvar.NewInt(key(typeTag, CreatedCounter)),
		connects:    expvar.NewInt(key(typeTag, ConnectCounter)),
		disconnects: expvar.NewInt(key(typeTag, DisconnectCounter)),
		params:      expvar.NewInt(key(typeTag, ParamCounter)),
	}
}

func key(typeTag, counter string) string {
	return fmt.Sprintf("%s.%s.%s", nodesLabel, typeTag, counter)
}
