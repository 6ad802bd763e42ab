package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/wudi/formkit"
	"github.com/wudi/formkit/config"
	"github.com/wudi/formkit/observability"
)

type globalOptions struct {
	configPath string
	verbose    bool
	repair     bool
}

const usage = `Usage: formkit [-config file] [-v] [-repair] <command> [flags] <pdf>

Commands:
  fields   list the form fields and their values
  fill     write field values and save the result
  render   rasterize a page to an image
`

func main() {
	g, args, err := parseGlobal(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "formkit: %v\n", err)
		os.Exit(2)
	}
	if err := run(context.Background(), g, args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "formkit: %v\n", err)
		if _, ok := err.(usageError); ok {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func parseGlobal(args []string) (globalOptions, []string, error) {
	var g globalOptions
	fs := flag.NewFlagSet("formkit", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&g.configPath, "config", "", "YAML file with limits and defaults")
	fs.BoolVar(&g.verbose, "v", false, "Log at debug level to stderr")
	fs.BoolVar(&g.repair, "repair", false, "Rebuild damaged cross-reference data instead of failing")
	if err := fs.Parse(args); err != nil {
		return g, nil, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return g, nil, fmt.Errorf("missing command")
	}
	return g, fs.Args(), nil
}

func run(ctx context.Context, g globalOptions, args []string, stdout io.Writer) error {
	cfg := config.Default()
	if g.configPath != "" {
		var err error
		if cfg, err = config.Load(g.configPath); err != nil {
			return err
		}
	}
	if g.repair {
		cfg.Repair = true
	}
	level := observability.ParseLevel(cfg.LogLevel)
	if g.verbose {
		level = slog.LevelDebug
	}
	logger := observability.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "fields":
		return runFields(ctx, cfg, logger, rest, stdout)
	case "fill":
		return runFill(ctx, cfg, logger, rest)
	case "render":
		return runRender(ctx, cfg, logger, rest)
	}
	return usageError{fmt.Sprintf("unknown command %q", cmd)}
}

// openFile reads and opens the single positional PDF argument of fs.
func openFile(ctx context.Context, fs *flag.FlagSet, cfg config.Options, logger observability.Logger) (*formkit.Document, error) {
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, usageError{"expected exactly one pdf path"}
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	doc, err := formkit.Open(ctx, data, formkit.WithConfig(cfg), formkit.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fs.Arg(0), err)
	}
	return doc, nil
}

func newFlagSet(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: formkit %s [flags] %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}
