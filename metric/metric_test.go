package metric_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/patchbay/metric"
)

func TestMeter(t *testing.T) {
	var tests = []struct {
		typeTag             string
		routines            int
		nodes               int
		disposed            int
		expectedNodes       string
		expectedCreated     string
		expectedConnects    string
		expectedDisconnects string
	}{
		{
			typeTag:             "metric-test-gain",
			routines:            2,
			nodes:               10,
			disposed:            4,
			expectedNodes:       "12",
			expectedCreated:     "20",
			expectedConnects:    "20",
			expectedDisconnects: "8",
		},
		{
			typeTag:             "metric-test-delay",
			routines:            3,
			nodes:               1,
			disposed:            1,
			expectedNodes:       "0",
			expectedCreated:     "3",
			expectedConnects:    "3",
			expectedDisconnects: "3",
		},
	}
	testFn := func(m *metric.Meter, wg *sync.WaitGroup, nodes, disposed int) {
		for i := 0; i < nodes; i++ {
			m.Created()
			m.Connected()
		}
		for i := 0; i < disposed; i++ {
			m.Disconnected()
			m.Disposed()
		}
		wg.Done()
	}

	for _, c := range tests {
		wg := &sync.WaitGroup{}
		wg.Add(c.routines)
		for i := 0; i < c.routines; i++ {
			// the same meter must be returned for the same type.
			go testFn(metric.For(c.typeTag), wg, c.nodes, c.disposed)
		}
		wg.Wait()
		values := metric.Get(c.typeTag)
		assert.Equal(t, c.expectedNodes, values[metric.NodeCounter])
		assert.Equal(t, c.expectedCreated, values[metric.CreatedCounter])
		assert.Equal(t, c.expectedConnects, values[metric.ConnectCounter])
		assert.Equal(t, c.expectedDisconnects, values[metric.DisconnectCounter])
		assert.Equal(t, "0", values[metric.ParamCounter])
		assert.Contains(t, metric.GetAll(), c.typeTag)
	}
}

func TestNilMeter(t *testing.T) {
	var m *metric.Meter
	assert.NotPanics(t, func() {
		m.Created()
		m.Connected()
		m.Disconnected()
		m.Scheduled()
		m.Disposed()
	})
}

func TestUnknownType(t *testing.T) {
	assert.Empty(t, metric.Get("metric-test-unknown"))
}
