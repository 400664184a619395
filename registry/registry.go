// Package registry issues node identities and keeps node records of a
// single engine instance.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"pipelined.dev/patchbay/metric"
)

// NodeID identifies a node within a registry. Seq is strictly increasing
// in issuance order and is never reused.
type NodeID struct {
	Seq  uint64
	Type string
}

// String renders id as "<seq>-<type>".
func (id NodeID) String() string {
	return fmt.Sprintf("%d-%s", id.Seq, id.Type)
}

// IsZero returns true if id was never issued.
func (id NodeID) IsZero() bool {
	return id.Seq == 0
}

// Less reports whether id was issued before other.
func (id NodeID) Less(other NodeID) bool {
	return id.Seq < other.Seq
}

// Registry maps node ids to node records. The zero value is not usable,
// use New.
type Registry struct {
	mu    sync.Mutex
	seq   uint64
	nodes map[NodeID]interface{}
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		nodes: make(map[NodeID]interface{}),
	}
}

// Register issues a fresh id tagged with typeTag and associates node with
// it.
func (r *Registry) Register(typeTag string, node interface{}) NodeID {
	r.mu.Lock()
	r.seq++
	id := NodeID{Seq: r.seq, Type: typeTag}
	r.nodes[id] = node
	r.mu.Unlock()
	metric.For(typeTag).Created()
	return id
}

// Unregister removes the id. Unknown ids are ignored.
func (r *Registry) Unregister(id NodeID) {
	r.mu.Lock()
	_, ok := r.nodes[id]
	delete(r.nodes, id)
	r.mu.Unlock()
	if ok {
		metric.For(id.Type).Disposed()
	}
}

// Lookup returns the node record associated with id.
func (r *Registry) Lookup(id NodeID) (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	return n, ok
}

// LookupByType returns registered ids of provided type in issuance order.
func (r *Registry) LookupByType(typeTag string) []NodeID {
	r.mu.Lock()
	ids := make([]NodeID, 0)
	for id := range r.nodes {
		if id.Type == typeTag {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// Len returns the number of registered nodes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}
