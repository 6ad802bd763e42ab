package document

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wudi/formkit/filters"
	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/observability"
	"github.com/wudi/formkit/parser"
	"github.com/wudi/formkit/pdferr"
	"github.com/wudi/formkit/recovery"
	"github.com/wudi/formkit/xref"
)

// Load parses data into a Document. Load errors are fatal: no partial
// document is returned.
func Load(ctx context.Context, data []byte, opts ...Option) (doc *Document, err error) {
	s := newSettings(opts)
	ctx, span := s.tracer.StartSpan(ctx, observability.SpanLoad)
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()
	start := time.Now()

	pipeline := filters.Default(filters.Limits{
		MaxDecompressedSize: s.limits.MaxDecompressedSize,
		MaxDecodeTime:       s.limits.MaxDecodeTime,
	})
	table, err := xref.NewResolver(xref.ResolverConfig{
		MaxXRefDepth: s.limits.MaxXRefDepth,
		Recovery:     s.recovery,
		Pipeline:     pipeline,
		Logger:       s.logger,
	}).Resolve(ctx, data)
	if err != nil {
		return nil, err
	}
	trailer := table.Trailer()
	if _, ok := trailer.Get("Encrypt"); ok {
		return nil, pdferr.New(pdferr.CorruptStructure, "load", "encrypted documents are not supported")
	}

	res := parser.NewResolver(data, table, parser.Config{
		Recovery: s.recovery,
		Limits:   s.limits,
		Pipeline: pipeline,
		Logger:   s.logger,
	})

	d := &Document{
		objects:   make(map[raw.ObjectRef]raw.Object, len(table.Objects())),
		trailer:   trailer,
		modified:  make(map[raw.ObjectRef]bool),
		original:  data,
		startXRef: table.StartXRef(),
		settings:  s,
		pipeline:  pipeline,
		decoded:   &sync.Map{},
	}
	for _, num := range table.Objects() {
		e, _ := table.Entry(num)
		ref := raw.ObjectRef{Num: num}
		if e.Kind == xref.EntryInUse {
			ref.Gen = e.Gen
		}
		obj, err := res.Resolve(ctx, ref)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !s.recovery.OnError(ctx, err, recovery.Location{ObjectNum: ref.Num, ObjectGen: ref.Gen, Component: "document"}).Continue() {
				return nil, err
			}
			d.warn(ref.String(), err)
			continue
		}
		d.objects[ref] = obj
		if num > d.maxNum {
			d.maxNum = num
		}
	}
	if size, ok := raw.AsInt(get(trailer, "Size")); ok && int(size)-1 > d.maxNum {
		d.maxNum = int(size) - 1
	}

	rootRef, ok := raw.AsRef(get(trailer, "Root"))
	if !ok {
		return nil, pdferr.New(pdferr.CorruptStructure, "load", "trailer /Root is not a reference")
	}
	if _, ok := d.objects[rootRef].(*raw.DictObj); !ok {
		return nil, pdferr.ForRef(pdferr.CorruptStructure, "load", rootRef, fmt.Errorf("document catalog is not a dictionary"))
	}
	d.root = rootRef

	if err := d.flattenPages(ctx); err != nil {
		return nil, err
	}
	d.version = parser.DetectVersion(data)
	if v, ok := d.Catalog().Name("Version"); ok && v > d.version {
		d.version = v
	}
	d.info = d.readInfo()
	d.fileID = readFileID(trailer)

	s.logger.Debug("document loaded",
		observability.Int("objects", len(d.objects)),
		observability.Int("pages", len(d.pages)),
		observability.String("xref", table.Type()),
		observability.Int("sections", table.Sections()),
		observability.Int("warnings", len(d.warnings)),
		observability.Int64("elapsed_us", time.Since(start).Microseconds()))
	return d, nil
}

func get(d *raw.DictObj, key string) raw.Object {
	v, _ := d.Get(key)
	return v
}

func (d *Document) warn(subject string, err error) {
	w := pdferr.WarningFrom(subject, err)
	d.warnings = append(d.warnings, w)
	d.settings.logger.Warn("skipped while loading", observability.String("subject", subject), observability.Error("error", err))
}

func readFileID(trailer *raw.DictObj) [][]byte {
	arr, ok := raw.AsArray(get(trailer, "ID"))
	if !ok || arr.Len() != 2 {
		return nil
	}
	var out [][]byte
	for _, it := range arr.Items {
		b, ok := raw.AsString(it)
		if !ok {
			return nil
		}
		out = append(out, b)
	}
	return out
}
