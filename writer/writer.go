// Package writer serializes a Document, either as a complete rewrite or as
// an incremental update appended to the original bytes.
package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/wudi/formkit/document"
	"github.com/wudi/formkit/observability"
)

type Mode int

const (
	// ModeFull rewrites every reachable object with contiguous numbers.
	ModeFull Mode = iota
	// ModeIncremental appends the modified objects to the original file.
	ModeIncremental
)

func (m Mode) String() string {
	if m == ModeIncremental {
		return "incremental"
	}
	return "full"
}

type Config struct {
	Mode Mode
	// Compress Flate-encodes streams that carry no filter.
	Compress bool
	Logger   observability.Logger
}

// Save serializes doc. It never modifies doc.
func Save(ctx context.Context, doc *document.Document, cfg Config) (out []byte, err error) {
	ctx, span := doc.Tracer().StartSpan(ctx, observability.SpanSave)
	span.SetTag("mode", cfg.Mode.String())
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()
	if cfg.Logger == nil {
		cfg.Logger = doc.Logger()
	}
	start := time.Now()

	switch cfg.Mode {
	case ModeFull:
		out, err = saveFull(ctx, doc, cfg)
	case ModeIncremental:
		if doc.StartXRef() <= 0 && len(doc.Modified()) > 0 {
			// A repaired file has no cross-reference section to chain to.
			cfg.Logger.Warn("no usable previous xref section, writing a full file")
			out, err = saveFull(ctx, doc, cfg)
		} else {
			out, err = saveIncremental(ctx, doc, cfg)
		}
	default:
		return nil, fmt.Errorf("writer: unknown mode %d", cfg.Mode)
	}
	if err != nil {
		return nil, err
	}
	cfg.Logger.Debug("document saved",
		observability.String("mode", cfg.Mode.String()),
		observability.Int("bytes", len(out)),
		observability.Int64("elapsed_us", time.Since(start).Microseconds()))
	return out, nil
}
