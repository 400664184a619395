package message_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/patchbay/message"
)

func TestSendMessage(t *testing.T) {
	b := message.New()
	var received []message.Message
	unsubscribe := b.OnMessage("loopPoints", func(m message.Message) {
		received = append(received, m)
	})
	b.OnMessage("other", func(m message.Message) {
		t.Fatalf("unexpected message: %v", m)
	})

	b.SendMessage("loopPoints", 10)
	b.SendMessage("loopPoints", 20)
	assert.Equal(t, []message.Message{
		{Type: "loopPoints", Payload: 10},
		{Type: "loopPoints", Payload: 20},
	}, received)

	unsubscribe()
	b.SendMessage("loopPoints", 30)
	assert.Len(t, received, 2)
	assert.Equal(t, 0, b.Subscribers("loopPoints"))
}

func TestFanOutOrder(t *testing.T) {
	b := message.New()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		b.OnMessage("tick", func(message.Message) {
			order = append(order, i)
		})
	}
	b.SendMessage("tick", nil)
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestUnsubscribeDuringDelivery(t *testing.T) {
	b := message.New()
	calls := 0
	var unsubscribe func()
	unsubscribe = b.OnMessage("tick", func(message.Message) {
		calls++
		unsubscribe()
	})
	second := 0
	b.OnMessage("tick", func(message.Message) {
		second++
	})

	b.SendMessage("tick", nil)
	b.SendMessage("tick", nil)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, second)
}

func TestUnsubscribeIdempotent(t *testing.T) {
	b := message.New()
	calls := 0
	unsubscribe := b.OnMessage("tick", func(message.Message) { calls++ })
	other := b.OnMessage("tick", func(message.Message) { calls++ })

	unsubscribe()
	unsubscribe()
	b.SendMessage("tick", nil)
	assert.Equal(t, 1, calls)

	b.Close()
	assert.NotPanics(t, other)
	assert.NotPanics(t, unsubscribe)
	b.SendMessage("tick", nil)
	assert.Equal(t, 1, calls)

	// subscriptions after close are dropped.
	late := b.OnMessage("tick", func(message.Message) { calls++ })
	b.SendMessage("tick", nil)
	assert.Equal(t, 1, calls)
	assert.NotPanics(t, late)
}
