package main

import (
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"pipelined.dev/patchbay/metric"
)

type describeCommand struct {
	config string
	blocks int
}

func (cmd *describeCommand) Name() string {
	return "describe"
}

func (cmd *describeCommand) Help() string {
	return "Render default bus offline and print its routes, graph and metrics"
}

func (cmd *describeCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.config, "config", "", "path to YAML config")
	fs.IntVar(&cmd.blocks, "blocks", 1, "number of blocks to render")
}

func (cmd *describeCommand) Run(w io.Writer) error {
	if cmd.blocks < 0 {
		return fmt.Errorf("negative number of blocks: %d", cmd.blocks)
	}
	cfg, err := loadConfig(cmd.config)
	if err != nil {
		return err
	}
	ctx, b, err := newBus(cfg)
	if err != nil {
		return err
	}
	defer b.Dispose()
	ctx.Render(cmd.blocks)
	ctx.Dispatch()

	fmt.Fprintf(w, "Bus %v: %d Hz, %d channels\n", b, ctx.Format().SampleRate, ctx.Format().NumChannels)
	fmt.Fprintln(w, "Routes:")
	routes := b.Routes()
	for _, name := range b.Names() {
		fmt.Fprintf(w, "\t%s -> [%s]\n", name, strings.Join(routes[name], ", "))
	}

	var edges int
	graph := ctx.Graph()
	for _, outputs := range graph {
		edges += len(outputs)
	}
	fmt.Fprintf(w, "Rendered %d blocks, %.4fs\n", cmd.blocks, ctx.Now())
	fmt.Fprintf(w, "Graph: %d nodes, %d edges\n", len(graph), edges)

	fmt.Fprintln(w, "Metrics:")
	all := metric.GetAll()
	types := make([]string, 0, len(all))
	for typeTag := range all {
		types = append(types, typeTag)
	}
	sort.Strings(types)
	for _, typeTag := range types {
		counters := all[typeTag]
		fmt.Fprintf(w, "\t%s: nodes=%s created=%s connects=%s disconnects=%s params=%s\n",
			typeTag,
			counters[metric.NodeCounter],
			counters[metric.CreatedCounter],
			counters[metric.ConnectCounter],
			counters[metric.DisconnectCounter],
			counters[metric.ParamCounter],
		)
	}
	return nil
}
