package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/shower.report/internal/analysis"
	"github.com/banshee-data/shower.report/internal/config"
	"github.com/banshee-data/shower.report/internal/corsika/l1records"
	"github.com/banshee-data/shower.report/internal/corsika/pipeline"
	"github.com/banshee-data/shower.report/internal/db"
	"github.com/banshee-data/shower.report/internal/fsutil"
	"github.com/banshee-data/shower.report/internal/longitudinal"
	"github.com/banshee-data/shower.report/internal/plotting"
	"github.com/banshee-data/shower.report/internal/version"
)

// env is what every command runs against.
type env struct {
	stdout io.Writer
	stderr io.Writer
	fsys   fsutil.FileSystem
}

type command struct {
	run     func(ctx context.Context, e *env, args []string) error
	summary string
}

var commands = map[string]command{
	"decode":   {cmdDecode, "Decode a binary particle file to text"},
	"long":     {cmdLong, "Split a .long file into OUT and PAR tables"},
	"ldf":      {cmdLDF, "Compare lateral distributions (PNG or HTML)"},
	"lateral":  {cmdLateral, "Plot the 2D ground distribution of one file"},
	"profiles": {cmdProfiles, "Plot mean profiles and Hillas histograms"},
	"xmax":     {cmdXmax, "Fit and plot X_max against energy"},
	"catalog":  {cmdCatalog, "Store PAR files in the catalog database"},
	"serve":    {cmdServe, "Serve the catalog and decoded files over HTTP"},
	"migrate":  {cmdMigrate, "Apply, roll back or report catalog schema migrations"},
}

var commandOrder = []string{"decode", "long", "ldf", "lateral", "profiles", "xmax", "catalog", "serve", "migrate"}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], &env{stdout: os.Stdout, stderr: os.Stderr, fsys: fsutil.OSFileSystem{}})
	stop()
	os.Exit(code)
}

// run dispatches one subcommand and returns the process exit status.
func run(ctx context.Context, args []string, e *env) int {
	if len(args) < 1 {
		printUsage(e.stderr)
		return 2
	}
	name, rest := args[0], args[1:]
	switch name {
	case "version":
		fmt.Fprintln(e.stdout, version.String("shower"))
		return 0
	case "help", "-h", "-help", "--help":
		printUsage(e.stdout)
		return 0
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(e.stderr, "Unknown command: %s\n\n", name)
		printUsage(e.stderr)
		return 2
	}
	if err := cmd.run(ctx, e, rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(e.stderr, "shower %s: %v\n", name, err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "shower - air shower particle file tools")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: shower <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(w, "  %-10s %s\n", "version", "Show version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'shower <command> -h' for the options of a command.")
}

// newFlagSet returns a flag set that reports errors instead of exiting, with
// the -v and -config flags every command shares.
func newFlagSet(e *env, name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	c := &commonFlags{}
	fs.BoolVar(&c.verbose, "v", false, "Log diagnostics to stderr")
	fs.StringVar(&c.configPath, "config", "", "JSON format/analysis config (optional)")
	return fs, c
}

type commonFlags struct {
	verbose    bool
	configPath string
}

// setup wires the log streams and loads the config.
func (c *commonFlags) setup(e *env) (*config.Config, error) {
	var diag io.Writer
	if c.verbose {
		diag = e.stderr
	}
	setLogWriters(e.stderr, diag)

	if c.configPath == "" {
		return &config.Config{}, nil
	}
	cfg, err := config.LoadConfig(e.fsys, c.configPath)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", c.configPath, err)
	}
	return cfg, nil
}

func setLogWriters(ops, diag io.Writer) {
	l1records.SetLogWriters(ops, diag, nil)
	pipeline.SetLogWriters(ops, diag, nil)
	longitudinal.SetLogWriters(ops, diag, nil)
	analysis.SetLogWriters(ops, diag, nil)
	plotting.SetLogWriters(ops, diag, nil)
	db.SetLogWriters(ops, diag, nil)
}
