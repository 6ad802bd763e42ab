package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseOverridesDefaults(t *testing.T) {
	data := []byte(`
strict: true
repair: true
render_scale: 2
limits:
  max_xref_depth: 5
  max_decode_time: 2s
`)
	opts, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !opts.Strict || !opts.Repair {
		t.Errorf("Strict/Repair not set: %+v", opts)
	}
	if opts.RenderScale != 2 {
		t.Errorf("RenderScale = %v", opts.RenderScale)
	}
	if opts.Limits.MaxXRefDepth != 5 {
		t.Errorf("MaxXRefDepth = %d", opts.Limits.MaxXRefDepth)
	}
	if opts.Limits.MaxDecodeTime != 2*time.Second {
		t.Errorf("MaxDecodeTime = %v", opts.Limits.MaxDecodeTime)
	}
	if opts.Limits.MaxDictSize != DefaultLimits().MaxDictSize {
		t.Errorf("unset limit not defaulted: %d", opts.Limits.MaxDictSize)
	}
	if opts.LogLevel != "info" {
		t.Errorf("LogLevel = %q", opts.LogLevel)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", "stirct: true\n"},
		{"bad level", "log_level: loud\n"},
		{"bad yaml", "limits: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formkit.yaml")
	if err := os.WriteFile(path, []byte("incremental: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	opts, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !opts.Incremental {
		t.Errorf("Incremental not set")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected error for missing file")
	}
}
