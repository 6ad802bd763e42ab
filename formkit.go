// Package formkit opens fillable PDF forms, reads and writes their field
// values, saves the result and renders page previews.
//
// A Document is immutable: Fill returns a new Document sharing every
// object it did not change, so the previous handle stays usable for
// comparison or rollback.
package formkit

import (
	"context"

	"github.com/wudi/formkit/config"
	"github.com/wudi/formkit/document"
	"github.com/wudi/formkit/forms"
	"github.com/wudi/formkit/observability"
	"github.com/wudi/formkit/render"
	"github.com/wudi/formkit/writer"
)

// Option configures Open.
type Option func(*settings)

type settings struct {
	cfg    config.Options
	logger observability.Logger
	tracer observability.Tracer
}

// WithConfig applies limits, strictness and fill/save defaults.
func WithConfig(o config.Options) Option {
	return func(s *settings) { s.cfg = o }
}

func WithLogger(l observability.Logger) Option {
	return func(s *settings) { s.logger = observability.OrNop(l) }
}

func WithTracer(t observability.Tracer) Option {
	return func(s *settings) {
		if t != nil {
			s.tracer = t
		}
	}
}

// Document is a loaded form together with its field catalog.
type Document struct {
	doc    *document.Document
	fields []forms.Field
	s      settings
}

// Open parses data. Structural problems, including duplicate field names,
// fail the whole open.
func Open(ctx context.Context, data []byte, opts ...Option) (*Document, error) {
	s := settings{cfg: config.Default(), logger: observability.NopLogger{}, tracer: observability.NopTracer()}
	for _, opt := range opts {
		opt(&s)
	}
	doc, err := document.Load(ctx, data,
		document.WithConfig(s.cfg),
		document.WithLogger(s.logger),
		document.WithTracer(s.tracer))
	if err != nil {
		return nil, err
	}
	return wrap(doc, s)
}

func wrap(doc *document.Document, s settings) (*Document, error) {
	fields, err := forms.ExtractFields(doc)
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc, fields: fields, s: s}, nil
}

// Fields returns the catalog in field-tree order. Unsupported fields are
// included with KindUnsupported.
func (d *Document) Fields() []forms.Field { return d.fields }

// Field looks up a field by its fully-qualified name.
func (d *Document) Field(name string) (forms.Field, bool) {
	return forms.Lookup(d.fields, name)
}

// Snapshot returns the current value of every editable field.
func (d *Document) Snapshot() forms.Values { return forms.Snapshot(d.fields) }

// Fill applies values and returns the edited document. Names with no
// matching field are reported, not rejected.
func (d *Document) Fill(ctx context.Context, values forms.Values) (*Document, forms.Report, error) {
	out, report, err := forms.Apply(ctx, d.doc, values, forms.ApplyOptions{
		Strict:          d.s.cfg.Strict,
		NeedAppearances: d.s.cfg.NeedAppearances,
		RunCalculations: d.s.cfg.RunCalculations,
		Logger:          d.s.logger,
	})
	if err != nil {
		return nil, report, err
	}
	if out == d.doc {
		return d, report, nil
	}
	next, err := wrap(out, d.s)
	if err != nil {
		return nil, report, err
	}
	return next, report, nil
}

// Save serializes the document. Incremental output starts with the bytes
// the document was opened from.
func (d *Document) Save(ctx context.Context, mode writer.Mode) ([]byte, error) {
	return writer.Save(ctx, d.doc, writer.Config{Mode: mode, Compress: d.s.cfg.Compress, Logger: d.s.logger})
}

// SaveDefault saves in the mode the configuration selects.
func (d *Document) SaveDefault(ctx context.Context) ([]byte, error) {
	mode := writer.ModeFull
	if d.s.cfg.Incremental {
		mode = writer.ModeIncremental
	}
	return d.Save(ctx, mode)
}

// Render rasterizes page (0-based) with widget appearances on top.
func (d *Document) Render(ctx context.Context, page int, scale float64) (*render.RenderedPage, error) {
	return render.New(d.doc, render.Options{Logger: d.s.logger}).Render(ctx, page, scale)
}

func (d *Document) NumPages() int { return d.doc.NumPages() }

// Raw exposes the underlying object graph.
func (d *Document) Raw() *document.Document { return d.doc }
