// Package message provides a synchronous publish/subscribe channel.
//
// Bus is used by nodes and buses to notify interested components about
// state changes without polling. Messages are delivered synchronously to
// the subscribers present when SendMessage is called. There is no
// persistence and no replay.
package message

import (
	"sync"

	"github.com/rs/xid"
)

type (
	// Message is a type tag plus an arbitrary payload.
	Message struct {
		Type    string
		Payload interface{}
	}

	// Handler consumes messages.
	Handler func(Message)

	// Bus broadcasts messages to subscribers of the message type.
	Bus struct {
		mu     sync.Mutex
		closed bool
		subs   map[string][]subscription
	}

	subscription struct {
		id      xid.ID
		handler Handler
	}
)

// New returns a new bus.
func New() *Bus {
	return &Bus{
		subs: make(map[string][]subscription),
	}
}

// OnMessage subscribes handler to messages of provided type. Returned
// function removes the subscription. It's safe to call it any number of
// times, also after the bus is closed.
func (b *Bus) OnMessage(msgType string, handler Handler) func() {
	if handler == nil {
		return func() {}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	s := subscription{
		id:      xid.New(),
		handler: handler,
	}
	b.subs[msgType] = append(b.subs[msgType], s)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.unsubscribe(msgType, s.id)
		})
	}
}

func (b *Bus) unsubscribe(msgType string, id xid.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[msgType]
	for i := range subs {
		if subs[i].id == id {
			// copy to keep snapshots taken by SendMessage intact.
			rest := make([]subscription, 0, len(subs)-1)
			rest = append(rest, subs[:i]...)
			rest = append(rest, subs[i+1:]...)
			if len(rest) == 0 {
				delete(b.subs, msgType)
			} else {
				b.subs[msgType] = rest
			}
			return
		}
	}
}

// SendMessage broadcasts the message to current subscribers of its type.
// Handlers are called on the calling goroutine in subscription order.
func (b *Bus) SendMessage(msgType string, payload interface{}) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	subs := b.subs[msgType]
	b.mu.Unlock()

	m := Message{
		Type:    msgType,
		Payload: payload,
	}
	for _, s := range subs {
		s.handler(m)
	}
}

// Subscribers returns number of subscribers of provided type.
func (b *Bus) Subscribers(msgType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[msgType])
}

// Close removes all subscriptions. Closed bus drops all messages.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[string][]subscription)
}
