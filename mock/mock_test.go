package mock_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/patchbay/host"
	"pipelined.dev/patchbay/message"
	"pipelined.dev/patchbay/mock"
)

// check interfaces.
var (
	_ host.Context      = (*mock.Context)(nil)
	_ host.ParamMap     = (*mock.Node)(nil)
	_ host.PropertyNode = (*mock.Node)(nil)
	_ host.Messenger    = (*mock.Node)(nil)
)

func TestConnect(t *testing.T) {
	ctx := mock.NewContext()
	a := ctx.NewNode(host.NodeConfig{Kind: host.Gain})
	b := ctx.NewNode(host.NodeConfig{Kind: host.Gain})

	require.NoError(t, a.Connect(b))
	assert.True(t, a.ConnectedTo(b))
	require.NoError(t, a.Disconnect(b))
	assert.False(t, a.ConnectedTo(b))
	assert.Equal(t, mock.ErrNotConnected, a.Disconnect(b))
	assert.Len(t, ctx.Nodes, 2)
}

func TestParams(t *testing.T) {
	ctx := mock.NewContext()
	gain := ctx.NewNode(host.NodeConfig{Kind: host.Gain})
	worklet := ctx.NewNode(host.NodeConfig{
		Kind:   host.Worklet,
		Params: map[string]float64{"drive": 0.5},
	})

	p, ok := gain.Property("gain")
	require.True(t, ok)
	assert.Equal(t, 1.0, p.Value())
	_, ok = gain.Parameter("gain")
	assert.False(t, ok)

	p.SetValueAtTime(0.5, 1)
	assert.Equal(t, 1.0, p.Value())
	ctx.Time = 1
	assert.Equal(t, 0.5, p.Value())

	p, ok = worklet.Parameter("drive")
	require.True(t, ok)
	assert.Equal(t, 0.5, p.Value())
	_, ok = worklet.Property("drive")
	assert.False(t, ok)
	assert.Nil(t, gain.Port())
}

func TestPort(t *testing.T) {
	ctx := mock.NewContext()
	worklet := ctx.NewNode(host.NodeConfig{Kind: host.Worklet})
	port := worklet.Port()
	require.NotNil(t, port)

	var replies []message.Message
	cancel := port.OnMessage(func(m message.Message) {
		replies = append(replies, m)
	})
	port.PostMessage(message.Message{Type: "trigger"})
	assert.Equal(t, []string{"trigger"}, worklet.MockPort().Types())

	worklet.MockPort().Reply(message.Message{Type: "done"})
	cancel()
	worklet.MockPort().Reply(message.Message{Type: "done"})
	assert.Equal(t, []message.Message{{Type: "done"}}, replies)
}
