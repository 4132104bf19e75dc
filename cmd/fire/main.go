// Command fire is the thin CLI wrapper of spec.md section 6: one
// positional configuration path plus opaque trailing arguments forwarded
// into the configuration tree, and a dump subcommand for inspecting an
// output file's products without running a pipeline.
//
// Grounded on grafana-tempo's cmd/tempo-cli's kong-based subcommand
// structure.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/fire-hep/fire/data"
	"github.com/fire-hep/fire/fireio"
	"github.com/fire-hep/fire/internal/logging"
	"github.com/fire-hep/fire/internal/params"
	"github.com/fire-hep/fire/process"
	"github.com/fire-hep/fire/registry"
)

// Exit codes, per spec.md section 6.
const (
	exitSuccess       = 0
	exitConfigError   = 1
	exitRuntimeError  = 2
	exitUncategorized = 127
)

type runCmd struct {
	Config string   `arg:"" type:"existingfile" help:"Path to the YAML configuration file."`
	Args   []string `arg:"" optional:"" help:"Opaque arguments forwarded to the configuration under the \"args\" key."`
}

type dumpCmd struct {
	File string `arg:"" type:"existingfile" help:"Fire output file whose products to list."`
}

type cli struct {
	Run  runCmd  `cmd:"" default:"withargs" help:"Run the pipeline described by CONFIG."`
	Dump dumpCmd `cmd:"" help:"List the products available in FILE."`
}

func main() {
	os.Exit(safeRun(os.Args[1:]))
}

// safeRun recovers any panic escaping the command so an internal bug maps
// to the uncategorized exit code rather than a bare stack trace and an
// unspecified status.
func safeRun(args []string) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, "fire: unexpected error:", r)
			code = exitUncategorized
		}
	}()
	return run(args)
}

func run(args []string) int {
	var c cli
	parser := kong.Must(&c, kong.Name("fire"), kong.Description("the fire event-processing driver"))

	ctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}

	switch {
	case strings.HasPrefix(ctx.Command(), "dump"):
		return dumpFile(c.Dump)
	default:
		return runPipeline(c.Run)
	}
}

// argsReader overrides GetStringSlice("args") to serve the CLI's trailing
// positional arguments, since params.Tree's viper backing is read-only
// from the file it loaded and has no way to have a key injected into it
// after the fact.
type argsReader struct {
	params.Reader
	args []string
}

func (a argsReader) GetStringSlice(key string) ([]string, bool) {
	if key == "args" {
		return a.args, true
	}
	return a.Reader.GetStringSlice(key)
}

func runPipeline(r runCmd) int {
	root, err := params.NewFromFile(r.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}
	p := argsReader{Reader: root, args: r.Args}

	reg := registry.New()
	cfg, sequence, declareConditions, err := buildConfig(p, reg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}

	d, err := process.New(cfg, logging.Default(), sequence, declareConditions)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}
	if err := d.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRuntimeError
	}
	return exitSuccess
}

func dumpFile(d dumpCmd) int {
	r, err := fireio.NewReader(d.File, data.DefaultConfig)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRuntimeError
	}
	defer r.Close()

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Pass", "Name", "Type", "Version"})
	for _, tag := range r.ListAvailableProducts() {
		tw.AppendRow(table.Row{tag.Pass, tag.Name, tag.Type, tag.Version})
	}
	tw.Render()
	return exitSuccess
}
