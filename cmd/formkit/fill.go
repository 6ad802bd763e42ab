package main

import (
	"context"
	"fmt"
	"os"

	"github.com/wudi/formkit/config"
	"github.com/wudi/formkit/forms"
	"github.com/wudi/formkit/observability"
	"github.com/wudi/formkit/writer"
)

func runFill(ctx context.Context, cfg config.Options, logger observability.Logger, args []string) error {
	fs := newFlagSet("fill", "-values v.json -o out.pdf <pdf>")
	valuesPath := fs.String("values", "", "JSON file mapping field names to values")
	out := fs.String("o", "", "Output path")
	incremental := fs.Bool("incremental", cfg.Incremental, "Append an update instead of rewriting the file")
	strict := fs.Bool("strict", cfg.Strict, "Fail on the first value that cannot be applied")
	calculate := fs.Bool("calculate", cfg.RunCalculations, "Run calculation scripts after filling")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	if *valuesPath == "" || *out == "" {
		fs.Usage()
		return usageError{"-values and -o are required"}
	}
	cfg.Strict = *strict
	cfg.RunCalculations = *calculate

	valuesJSON, err := os.ReadFile(*valuesPath)
	if err != nil {
		return fmt.Errorf("read values: %w", err)
	}
	values, err := forms.ParseValues(valuesJSON)
	if err != nil {
		return err
	}
	doc, err := openFile(ctx, fs, cfg, logger)
	if err != nil {
		return err
	}
	filled, report, err := doc.Fill(ctx, values)
	if err != nil {
		return fmt.Errorf("fill: %w", err)
	}
	for _, name := range report.Ignored {
		logger.Warn("no such field", observability.String("field", name))
	}
	for _, w := range report.Warnings {
		fmt.Fprintf(os.Stderr, "formkit: warning: %s\n", w)
	}

	mode := writer.ModeFull
	if *incremental {
		mode = writer.ModeIncremental
	}
	data, err := filled.Save(ctx, mode)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	logger.Info("form saved",
		observability.String("path", *out),
		observability.String("mode", mode.String()),
		observability.Int("applied", len(report.Applied)))
	return nil
}
