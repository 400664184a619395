package main

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pipelined.dev/patchbay/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestInit(t *testing.T) {
	//check if commands are registered
	assert.Equal(t, len(commands()), 2)
}

func TestUsage(t *testing.T) {
	tests := []struct {
		args []string
		code int
	}{
		{args: []string{"patchbay"}, code: errorExitCode},
		{args: []string{"patchbay", "unknown"}, code: errorExitCode},
		{args: []string{"patchbay", "describe", "-unknown"}, code: errorExitCode},
		{args: []string{"patchbay", "describe", "-blocks", "-1"}, code: errorExitCode},
	}
	for _, test := range tests {
		var out bytes.Buffer
		c := cli{args: test.args, out: &out}
		assert.Equal(t, test.code, c.run(), "%v", test.args)
		assert.NotEmpty(t, out.String())
	}
}

func TestDescribe(t *testing.T) {
	dir, err := ioutil.TempDir("", "patchbay")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "patchbay.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte("render:\n  sample_rate: 44100\nbus:\n  name: voice\n"), 0644))

	var out bytes.Buffer
	c := cli{args: []string{"patchbay", "describe", "-config", path, "-blocks", "4"}, out: &out}
	require.Equal(t, successExitCode, c.run(), out.String())
	s := out.String()
	assert.Contains(t, s, "Bus voice-")
	assert.Contains(t, s, "44100 Hz")
	assert.Contains(t, s, "feedback -> [dry, reverb_send]")
	assert.Contains(t, s, "Rendered 4 blocks")
	assert.Contains(t, s, "harmonic-feedback: nodes=")

	out.Reset()
	c = cli{args: []string{"patchbay", "describe", "-config", filepath.Join(dir, "missing.yaml")}, out: &out}
	assert.Equal(t, errorExitCode, c.run())
}

func TestRun(t *testing.T) {
	var out bytes.Buffer
	c := cli{args: []string{"patchbay", "run", "-note", "60", "-decay", "1", "-timeout", "5s"}, out: &out}
	require.Equal(t, successExitCode, c.run(), out.String())
	assert.Contains(t, out.String(), "Decay is over")
}

func TestLoadEnv(t *testing.T) {
	dir, err := ioutil.TempDir("", "patchbay")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, ".env")
	require.NoError(t, ioutil.WriteFile(path, []byte(log.LevelEnv+"=info\n"), 0644))

	os.Unsetenv(log.LevelEnv)
	defer os.Unsetenv(log.LevelEnv)
	assert.NoError(t, loadEnv(filepath.Join(dir, "missing.env")))
	require.NoError(t, loadEnv(path))
	assert.Equal(t, logrus.InfoLevel, log.ParseLevel(os.Getenv(log.LevelEnv)))
}
