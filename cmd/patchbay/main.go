package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/joho/godotenv"

	"pipelined.dev/patchbay"
	"pipelined.dev/patchbay/config"
	"pipelined.dev/patchbay/effect"
	"pipelined.dev/patchbay/log"
	"pipelined.dev/patchbay/registry"
	"pipelined.dev/patchbay/render"
)

type cli struct {
	args []string
	out  io.Writer
}

type command interface {
	Name() string
	Help() string
	Run(io.Writer) error
	Register(*flag.FlagSet)
}

func (c *cli) run() int {
	cmdName, args := parseArgs(c.args)
	if cmdName == "" {
		printUsage(c.out)
		return errorExitCode
	}

	for _, cmd := range commands() {
		if cmd.Name() != cmdName {
			continue
		}
		flags := flag.NewFlagSet(cmdName, flag.ContinueOnError)
		flags.SetOutput(c.out)
		cmd.Register(flags)
		if err := flags.Parse(args); err != nil {
			return errorExitCode
		}
		if err := cmd.Run(c.out); err != nil {
			fmt.Fprintf(c.out, "Command failed: %v\n", err)
			return errorExitCode
		}
		return successExitCode
	}
	fmt.Fprintf(c.out, "Unknown command: %s\n\n", cmdName)
	printUsage(c.out)
	return errorExitCode
}

var (
	successExitCode = 0
	errorExitCode   = 1
)

func commands() []command {
	return []command{&describeCommand{}, &runCommand{}}
}

func main() {
	if err := loadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Load .env: %v\n", err)
	}
	c := cli{
		args: os.Args,
		out:  os.Stdout,
	}
	os.Exit(c.run())
}

// loadEnv loads environment files, .env by default. Files may set
// PATCHBAY_LOG_LEVEL and PATCHBAY_DEBUG. Missing files are ignored and
// variables which are already set are kept.
func loadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func parseArgs(args []string) (string, []string) {
	if len(args) < 2 {
		return "", nil
	}
	return args[1], args[2:]
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Patchbay builds instrument bus on the reference render runtime")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: patchbay <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands() {
		fmt.Fprintf(w, "\t%s\t%s\n", cmd.Name(), cmd.Help())
	}
}

// loadConfig loads the file or defaults if path is empty. Environment
// variables override loaded values.
func loadConfig(path string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return config.Config{}, err
		}
	}
	return config.FromEnv(cfg)
}

// newBus creates the render runtime and default bus on it. Logger is
// created here, so the level from .env is applied.
func newBus(cfg config.Config) (*render.Context, *patchbay.Bus, error) {
	logger := log.GetLogger()
	ctx, err := render.New(
		audio.Format{
			SampleRate:  cfg.Render.SampleRate,
			NumChannels: cfg.Render.Channels,
		},
		render.WithBlockSize(cfg.Render.BlockSize),
		render.WithProcessor(effect.Processor, effect.NewDecayProcessor),
		render.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}
	b, err := patchbay.Default(ctx, registry.New(),
		patchbay.WithConfig(cfg),
		patchbay.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}
	return ctx, b, nil
}
