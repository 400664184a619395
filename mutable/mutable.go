// Package mutable carries mutations from the control plane to the
// goroutine which owns the mutated state.
//
// The owner of the state is the render thread. The control plane never
// touches render state directly: it wraps every change into a mutation,
// puts it into a pusher and pushes it to the destination. The render
// thread receives batches of mutations and applies them in order at
// block boundaries.
package mutable

import (
	"crypto/rand"
)

// zero value for context is immutable.
var immutable = Context{}

type (
	// Context identifies the state mutations belong to.
	Context [16]byte

	// Mutation is mutator function associated with a certain mutable context.
	Mutation struct {
		Context
		mutator MutatorFunc
	}

	// Mutations is a set of mutations mapped to their contexts. Mutations
	// of the same context keep the order they were put in.
	Mutations map[Context][]MutatorFunc

	// MutatorFunc mutates the object.
	MutatorFunc func()
)

// Mutable returns new mutable context.
func Mutable() Context {
	var id [16]byte
	rand.Read(id[:])
	return id
}

// Immutable returns immutable context.
func Immutable() Context {
	return immutable
}

// Mutate associates provided mutator with context and returns mutation.
func (c Context) Mutate(m MutatorFunc) Mutation {
	if c == immutable {
		panic("mutate immutable")
	}
	return Mutation{
		Context: c,
		mutator: m,
	}
}

// IsMutable returns true if context is mutable.
func (c Context) IsMutable() bool {
	return c != immutable
}

// Apply mutator function.
func (m Mutation) Apply() {
	m.mutator()
}

// Put mutation to the set of Mutations.
func (ms Mutations) Put(m Mutation) Mutations {
	if m.Context == immutable {
		return ms
	}
	if ms == nil {
		return map[Context][]MutatorFunc{m.Context: {m.mutator}}
	}
	ms[m.Context] = append(ms[m.Context], m.mutator)
	return ms
}

// ApplyTo consumes mutations defined for provided context.
func (ms Mutations) ApplyTo(c Context) {
	if ms == nil || c == immutable {
		return
	}
	if fns, ok := ms[c]; ok {
		for _, fn := range fns {
			fn()
		}
		delete(ms, c)
	}
}

// Append source mutations after mutations of receiver.
func (ms Mutations) Append(source Mutations) Mutations {
	if ms == nil {
		ms = make(map[Context][]MutatorFunc)
	}
	for c, fns := range source {
		ms[c] = append(ms[c], fns...)
	}
	return ms
}

// Len returns total number of mutations.
func (ms Mutations) Len() int {
	var l int
	for _, fns := range ms {
		l += len(fns)
	}
	return l
}
