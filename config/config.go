// Package config holds the tunables shared by the loader, the form mutator,
// the writer and the renderer, and reads them from YAML files.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Options is the file-level configuration of the engine.
type Options struct {
	Limits Limits `yaml:"limits"`

	// Strict turns recoverable problems into failures: tokenizer errors
	// abort loading and rejected field values abort Apply.
	Strict bool `yaml:"strict"`

	// Repair rebuilds unusable cross-reference data by scanning the file
	// and drops broken page tree nodes with a warning. Without it those
	// problems fail the load.
	Repair bool `yaml:"repair"`

	// Incremental selects append-only saving by default.
	Incremental bool `yaml:"incremental"`

	// Compress Flate-encodes unfiltered streams on full rewrite.
	Compress bool `yaml:"compress"`

	// NeedAppearances asks viewers to regenerate widget appearances
	// instead of generating them on Apply.
	NeedAppearances bool `yaml:"need_appearances"`

	// RunCalculations evaluates /CO calculation scripts after Apply.
	RunCalculations bool `yaml:"run_calculations"`

	// RenderScale is the default preview scale.
	RenderScale float64 `yaml:"render_scale"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the options used when no file is given.
func Default() Options {
	return Options{
		Limits:      DefaultLimits(),
		RenderScale: 1.0,
		LogLevel:    "info",
	}
}

// Parse decodes YAML on top of Default.
func Parse(data []byte) (Options, error) {
	opts := Default()
	if err := yaml.UnmarshalStrict(data, &opts); err != nil {
		return Options{}, fmt.Errorf("parse config: %w", err)
	}
	opts.Limits = opts.Limits.withDefaults()
	if opts.RenderScale <= 0 {
		opts.RenderScale = 1.0
	}
	switch opts.LogLevel {
	case "debug", "info", "warn", "error":
	case "":
		opts.LogLevel = "info"
	default:
		return Options{}, fmt.Errorf("parse config: unknown log_level %q", opts.LogLevel)
	}
	return opts, nil
}

// Load reads and parses the YAML file at path.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}
