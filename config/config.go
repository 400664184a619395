// Package config loads patchbay configuration from YAML.
//
// Zero values of a loaded document fall back to defaults, so a partial
// document only overrides the fields it names.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes environment variables which override config values,
// e.g. PATCHBAY_RENDER_SAMPLE_RATE or PATCHBAY_BUS_DRY_WET.
const EnvPrefix = "patchbay"

// ErrInvalid is returned when configuration values are out of range.
var ErrInvalid = errors.New("invalid config")

// Defaults.
const (
	DefaultSampleRate     = 48000
	DefaultChannels       = 2
	DefaultBlockSize      = 128
	DefaultMinCoefficient = 0.001
	DefaultMaxCoefficient = 0.999
	DefaultMaxDelay       = 1.0
	DefaultMinDelayFrames = 2
	DefaultBusName        = "instrument"
	DefaultHpfCutoff      = 20.0
	DefaultLpfCutoff      = 20000.0
	DefaultDryWet         = 0.5
	DefaultLimiter        = -1.0
)

type (
	// Config is the root of configuration document.
	Config struct {
		Render   Render   `yaml:"render"`
		Feedback Feedback `yaml:"feedback"`
		Bus      Bus      `yaml:"bus"`
	}

	// Render configures the render runtime.
	Render struct {
		SampleRate int `yaml:"sample_rate" split_words:"true"`
		Channels   int `yaml:"channels"`
		BlockSize  int `yaml:"block_size" split_words:"true"`
	}

	// Feedback configures harmonic feedback effects.
	Feedback struct {
		// MinCoefficient is the feedback coefficient of zero amount. It's
		// always positive.
		MinCoefficient float64 `yaml:"min_coefficient" split_words:"true"`
		MaxCoefficient float64 `yaml:"max_coefficient" split_words:"true"`
		// MaxDelay is the longest delay in seconds.
		MaxDelay float64 `yaml:"max_delay" split_words:"true"`
		// MinDelayFrames is the shortest delay in frames.
		MinDelayFrames int `yaml:"min_delay_frames" split_words:"true"`
	}

	// Bus configures initial values of the default bus.
	Bus struct {
		Name             string   `yaml:"name"`
		InputGain        *float64 `yaml:"input_gain" split_words:"true"`
		OutputGain       *float64 `yaml:"output_gain" split_words:"true"`
		HpfCutoff        float64  `yaml:"hpf_cutoff" split_words:"true"`
		LpfCutoff        float64  `yaml:"lpf_cutoff" split_words:"true"`
		DryWet           *float64 `yaml:"dry_wet" split_words:"true"`
		Drive            float64  `yaml:"drive"`
		LimiterThreshold *float64 `yaml:"limiter_threshold" split_words:"true"`
	}
)

// Default returns default configuration.
func Default() Config {
	var c Config
	c.setDefaults()
	return c
}

// Load reads YAML document from r. Empty document results in defaults.
func Load(r io.Reader) (Config, error) {
	var c Config
	d := yaml.NewDecoder(r)
	d.SetStrict(true)
	if err := d.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadFile reads configuration from the file at path.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// FromEnv returns a copy of c with values overridden by environment
// variables.
func FromEnv(c Config) (Config, error) {
	c.Bus = c.Bus.clone()
	if err := envconfig.Process(EnvPrefix, &c); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (b Bus) clone() Bus {
	for _, p := range []**float64{&b.InputGain, &b.OutputGain, &b.DryWet, &b.LimiterThreshold} {
		if *p != nil {
			*p = float(**p)
		}
	}
	return b
}

func (c *Config) setDefaults() {
	if c.Render.SampleRate == 0 {
		c.Render.SampleRate = DefaultSampleRate
	}
	if c.Render.Channels == 0 {
		c.Render.Channels = DefaultChannels
	}
	if c.Render.BlockSize == 0 {
		c.Render.BlockSize = DefaultBlockSize
	}
	c.Feedback.setDefaults()
	if c.Bus.Name == "" {
		c.Bus.Name = DefaultBusName
	}
	if c.Bus.InputGain == nil {
		c.Bus.InputGain = float(1)
	}
	if c.Bus.OutputGain == nil {
		c.Bus.OutputGain = float(1)
	}
	if c.Bus.HpfCutoff == 0 {
		c.Bus.HpfCutoff = DefaultHpfCutoff
	}
	if c.Bus.LpfCutoff == 0 {
		c.Bus.LpfCutoff = DefaultLpfCutoff
	}
	if c.Bus.DryWet == nil {
		c.Bus.DryWet = float(DefaultDryWet)
	}
	if c.Bus.LimiterThreshold == nil {
		c.Bus.LimiterThreshold = float(DefaultLimiter)
	}
}

func (f *Feedback) setDefaults() {
	if f.MinCoefficient == 0 {
		f.MinCoefficient = DefaultMinCoefficient
	}
	if f.MaxCoefficient == 0 {
		f.MaxCoefficient = DefaultMaxCoefficient
	}
	if f.MaxDelay == 0 {
		f.MaxDelay = DefaultMaxDelay
	}
	if f.MinDelayFrames == 0 {
		f.MinDelayFrames = DefaultMinDelayFrames
	}
}

// Validate checks that all values are in range.
func (c Config) Validate() error {
	switch {
	case c.Render.SampleRate <= 0:
		return invalid("render.sample_rate", c.Render.SampleRate)
	case c.Render.Channels <= 0:
		return invalid("render.channels", c.Render.Channels)
	case c.Render.BlockSize <= 0:
		return invalid("render.block_size", c.Render.BlockSize)
	}
	if err := c.Feedback.Validate(); err != nil {
		return err
	}
	b := c.Bus
	switch {
	case b.InputGain != nil && *b.InputGain < 0:
		return invalid("bus.input_gain", *b.InputGain)
	case b.OutputGain != nil && *b.OutputGain < 0:
		return invalid("bus.output_gain", *b.OutputGain)
	case b.HpfCutoff < 20 || b.HpfCutoff > 20000:
		return invalid("bus.hpf_cutoff", b.HpfCutoff)
	case b.LpfCutoff < 20 || b.LpfCutoff > 20000:
		return invalid("bus.lpf_cutoff", b.LpfCutoff)
	case b.DryWet != nil && (*b.DryWet < 0 || *b.DryWet > 1):
		return invalid("bus.dry_wet", *b.DryWet)
	case b.Drive < 0 || b.Drive > 1:
		return invalid("bus.drive", b.Drive)
	case b.LimiterThreshold != nil && (*b.LimiterThreshold < -60 || *b.LimiterThreshold > 0):
		return invalid("bus.limiter_threshold", *b.LimiterThreshold)
	}
	return nil
}

// Validate checks feedback values.
func (f Feedback) Validate() error {
	switch {
	case f.MinCoefficient <= 0 || f.MinCoefficient >= 1:
		return invalid("feedback.min_coefficient", f.MinCoefficient)
	case f.MaxCoefficient < f.MinCoefficient || f.MaxCoefficient >= 1:
		return invalid("feedback.max_coefficient", f.MaxCoefficient)
	case f.MaxDelay <= 0:
		return invalid("feedback.max_delay", f.MaxDelay)
	case f.MinDelayFrames <= 0:
		return invalid("feedback.min_delay_frames", f.MinDelayFrames)
	}
	return nil
}

func invalid(field string, v interface{}) error {
	return fmt.Errorf("%w: %s = %v", ErrInvalid, field, v)
}

func float(v float64) *float64 {
	return &v
}
