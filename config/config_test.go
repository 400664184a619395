package config_test

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/patchbay/config"
)

func TestDefault(t *testing.T) {
	c := config.Default()
	assert.NoError(t, c.Validate())
	assert.Equal(t, config.DefaultSampleRate, c.Render.SampleRate)
	assert.Equal(t, config.DefaultMinCoefficient, c.Feedback.MinCoefficient)
	assert.Equal(t, config.DefaultMaxCoefficient, c.Feedback.MaxCoefficient)
	assert.Equal(t, config.DefaultBusName, c.Bus.Name)
	assert.Equal(t, 1.0, *c.Bus.InputGain)
	assert.Equal(t, config.DefaultDryWet, *c.Bus.DryWet)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		doc   string
		check func(*testing.T, config.Config)
		err   error
	}{
		{
			doc: "",
			check: func(t *testing.T, c config.Config) {
				assert.Equal(t, config.Default(), c)
			},
		},
		{
			doc: `
render:
  sample_rate: 44100
  block_size: 256
feedback:
  max_delay: 2
bus:
  name: strings
  dry_wet: 0
`,
			check: func(t *testing.T, c config.Config) {
				assert.Equal(t, 44100, c.Render.SampleRate)
				assert.Equal(t, 256, c.Render.BlockSize)
				assert.Equal(t, config.DefaultChannels, c.Render.Channels)
				assert.Equal(t, 2.0, c.Feedback.MaxDelay)
				assert.Equal(t, "strings", c.Bus.Name)
				assert.Equal(t, 0.0, *c.Bus.DryWet)
			},
		},
		{
			doc: "feedback:\n  min_coefficient: -1\n",
			err: config.ErrInvalid,
		},
		{
			doc: "feedback:\n  min_coefficient: 0.5\n  max_coefficient: 0.2\n",
			err: config.ErrInvalid,
		},
		{
			doc: "bus:\n  limiter_threshold: 3\n",
			err: config.ErrInvalid,
		},
		{
			doc: "bus:\n  lpf_cutoff: 5\n",
			err: config.ErrInvalid,
		},
	}
	for _, test := range tests {
		c, err := config.Load(strings.NewReader(test.doc))
		if test.err != nil {
			assert.True(t, errors.Is(err, test.err), "doc: %s err: %v", test.doc, err)
			continue
		}
		require.NoError(t, err)
		test.check(t, c)
	}
}

func TestLoadUnknownField(t *testing.T) {
	_, err := config.Load(strings.NewReader("render:\n  rate: 1\n"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "patchbay")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "patchbay.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte("render:\n  channels: 1\n"), 0644))
	c, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Render.Channels)

	_, err = config.LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFromEnv(t *testing.T) {
	env := map[string]string{
		"PATCHBAY_RENDER_SAMPLE_RATE":        "96000",
		"PATCHBAY_FEEDBACK_MIN_DELAY_FRAMES": "4",
		"PATCHBAY_BUS_NAME":                  "strings",
		"PATCHBAY_BUS_DRY_WET":               "0.2",
	}
	for k, v := range env {
		os.Setenv(k, v)
		defer os.Unsetenv(k)
	}
	def := config.Default()
	c, err := config.FromEnv(def)
	require.NoError(t, err)
	assert.Equal(t, 96000, c.Render.SampleRate)
	assert.Equal(t, config.DefaultChannels, c.Render.Channels)
	assert.Equal(t, 4, c.Feedback.MinDelayFrames)
	assert.Equal(t, "strings", c.Bus.Name)
	assert.Equal(t, 0.2, *c.Bus.DryWet)
	// source config is not changed.
	assert.Equal(t, config.DefaultDryWet, *def.Bus.DryWet)

	os.Setenv("PATCHBAY_BUS_DRIVE", "2")
	defer os.Unsetenv("PATCHBAY_BUS_DRIVE")
	_, err = config.FromEnv(def)
	assert.True(t, errors.Is(err, config.ErrInvalid))

	os.Setenv("PATCHBAY_RENDER_CHANNELS", "stereo")
	defer os.Unsetenv("PATCHBAY_RENDER_CHANNELS")
	_, err = config.FromEnv(def)
	assert.Error(t, err)
}
