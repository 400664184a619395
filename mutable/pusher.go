package mutable

type (
	// Pusher allows to push mutations to mutable contexts. It must be
	// used by a single goroutine.
	Pusher struct {
		destinations map[Context]Destination
		mutations    map[Destination]Mutations
	}

	// Destination is a channel that used as source of mutations. The
	// owner of mutable state receives from it.
	Destination chan Mutations
)

// NewPusher creates new pusher.
func NewPusher() Pusher {
	return Pusher{
		destinations: make(map[Context]Destination),
		mutations:    make(map[Destination]Mutations),
	}
}

// NewDestination returns a destination which holds a single batch.
func NewDestination() Destination {
	return make(chan Mutations, 1)
}

// AddDestination adds new mapping of mutable context to destination.
func (p Pusher) AddDestination(c Context, d Destination) {
	p.destinations[c] = d
}

// Put mutations to the pusher. Function will panic if pusher contains
// unknown context.
func (p Pusher) Put(mutations ...Mutation) {
	for _, m := range mutations {
		if d, ok := p.destinations[m.Context]; ok {
			p.mutations[d] = p.mutations[d].Put(m)
			continue
		}
		panic("unknown mutable context")
	}
}

// Push mutations to the destinations. Push never blocks: if destination
// still holds a batch which wasn't received yet, that batch is taken back
// and merged with the new one. Pusher must be the only sender to its
// destinations.
func (p Pusher) Push() {
	for d, m := range p.mutations {
		if m == nil {
			continue
		}
		select {
		case d <- m:
		default:
			select {
			case pending := <-d:
				m = pending.Append(m)
			default:
			}
			// destination is empty now and pusher is the only sender.
			d <- m
		}
		p.mutations[d] = nil
	}
}
