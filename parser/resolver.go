// Package parser resolves indirect references against a cross-reference
// table and decodes stream payloads.
package parser

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/wudi/formkit/config"
	"github.com/wudi/formkit/filters"
	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/observability"
	"github.com/wudi/formkit/pdferr"
	"github.com/wudi/formkit/recovery"
	"github.com/wudi/formkit/scanner"
	"github.com/wudi/formkit/xref"
)

// Config controls object loading.
type Config struct {
	Recovery recovery.Strategy
	Limits   config.Limits
	Pipeline *filters.Pipeline
	Logger   observability.Logger
}

// Resolver turns references into objects, exactly one hop at a time.
// Results are cached per Resolver; it is safe for concurrent use.
type Resolver struct {
	data  []byte
	table *xref.Table
	cfg   Config

	cache  sync.Map // raw.ObjectRef -> raw.Object
	objstm sync.Map // int -> map[int]raw.Object
}

func NewResolver(data []byte, table *xref.Table, cfg Config) *Resolver {
	if cfg.Limits == (config.Limits{}) {
		cfg.Limits = config.DefaultLimits()
	}
	if cfg.Pipeline == nil {
		cfg.Pipeline = filters.Default(filters.Limits{
			MaxDecompressedSize: cfg.Limits.MaxDecompressedSize,
			MaxDecodeTime:       cfg.Limits.MaxDecodeTime,
		})
	}
	cfg.Logger = observability.OrNop(cfg.Logger)
	return &Resolver{data: data, table: table, cfg: cfg}
}

func (r *Resolver) Table() *xref.Table { return r.table }

// Resolve returns the object ref points to. Missing, free or mismatched
// entries are BrokenReference errors.
func (r *Resolver) Resolve(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if obj, ok := r.cache.Load(ref); ok {
		return obj.(raw.Object), nil
	}
	obj, err := r.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	actual, _ := r.cache.LoadOrStore(ref, obj)
	return actual.(raw.Object), nil
}

// Deref follows obj if it is a reference and returns it unchanged
// otherwise.
func (r *Resolver) Deref(ctx context.Context, obj raw.Object) (raw.Object, error) {
	if ref, ok := obj.(raw.RefObj); ok {
		return r.Resolve(ctx, ref.R)
	}
	return obj, nil
}

func (r *Resolver) load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	e, ok := r.table.Entry(ref.Num)
	if !ok || e.Kind == xref.EntryFree {
		return nil, pdferr.ForRef(pdferr.BrokenReference, "resolve", ref, fmt.Errorf("no live cross-reference entry"))
	}
	switch e.Kind {
	case xref.EntryInUse:
		if e.Gen != ref.Gen {
			return nil, pdferr.ForRef(pdferr.BrokenReference, "resolve", ref, fmt.Errorf("entry has generation %d", e.Gen))
		}
		return r.loadAtOffset(ref, e.Offset, r.streamLength)
	case xref.EntryCompressed:
		if ref.Gen != 0 {
			return nil, pdferr.ForRef(pdferr.BrokenReference, "resolve", ref, fmt.Errorf("compressed objects have generation 0"))
		}
		objs, err := r.objectStream(ctx, e.Stream)
		if err != nil {
			return nil, err
		}
		obj, ok := objs[ref.Num]
		if !ok {
			return nil, pdferr.ForRef(pdferr.BrokenReference, "resolve", ref, fmt.Errorf("not found in object stream %d", e.Stream))
		}
		return obj, nil
	}
	return nil, pdferr.ForRef(pdferr.BrokenReference, "resolve", ref, fmt.Errorf("unknown entry kind %d", e.Kind))
}

func (r *Resolver) scannerConfig() scanner.Config {
	return scanner.Config{
		Recovery:        r.cfg.Recovery,
		MaxStringLength: r.cfg.Limits.MaxStringLength,
		MaxDepth:        r.cfg.Limits.MaxIndirectDepth,
		MaxStreamLength: r.cfg.Limits.MaxStreamLength,
	}
}

func (r *Resolver) readerConfig(lengths func(raw.ObjectRef) (int64, bool)) raw.ReaderConfig {
	return raw.ReaderConfig{
		MaxArraySize: r.cfg.Limits.MaxArraySize,
		MaxDictSize:  r.cfg.Limits.MaxDictSize,
		Recovery:     r.cfg.Recovery,
		StreamLength: lengths,
	}
}

// loadAtOffset parses the indirect object at offset with a fresh scanner so
// concurrent loads never share a cursor.
func (r *Resolver) loadAtOffset(ref raw.ObjectRef, offset int64, lengths func(raw.ObjectRef) (int64, bool)) (raw.Object, error) {
	s := scanner.New(r.data, r.scannerConfig())
	if err := s.SeekTo(offset); err != nil {
		return nil, pdferr.ForRef(pdferr.BrokenReference, "resolve", ref, err)
	}
	got, obj, err := raw.NewReader(s, r.readerConfig(lengths)).ReadIndirect()
	if err != nil {
		if pdferr.KindOf(err) == pdferr.MalformedSyntax && got == (raw.ObjectRef{}) {
			return nil, pdferr.ForRef(pdferr.BrokenReference, "resolve", ref, fmt.Errorf("no object header at offset %d: %w", offset, err))
		}
		return nil, fmt.Errorf("object %s: %w", ref, err)
	}
	if got != ref {
		return nil, pdferr.ForRef(pdferr.BrokenReference, "resolve", ref, fmt.Errorf("offset %d holds object %s", offset, got))
	}
	return obj, nil
}

// streamLength resolves an indirect /Length. The length object itself is
// read without following further lengths.
func (r *Resolver) streamLength(ref raw.ObjectRef) (int64, bool) {
	if obj, ok := r.cache.Load(ref); ok {
		return raw.AsInt(obj.(raw.Object))
	}
	off, gen, ok := r.table.Lookup(ref.Num)
	if !ok || gen != ref.Gen {
		return 0, false
	}
	obj, err := r.loadAtOffset(ref, off, nil)
	if err != nil {
		return 0, false
	}
	return raw.AsInt(obj)
}

func (r *Resolver) objectStream(ctx context.Context, num int) (map[int]raw.Object, error) {
	if objs, ok := r.objstm.Load(num); ok {
		return objs.(map[int]raw.Object), nil
	}
	_, gen, _ := r.table.Lookup(num)
	stmRef := raw.ObjectRef{Num: num, Gen: gen}
	obj, err := r.Resolve(ctx, stmRef)
	if err != nil {
		return nil, err
	}
	st, ok := raw.AsStream(obj)
	if !ok {
		return nil, pdferr.ForRef(pdferr.CorruptStructure, "objstm", stmRef, fmt.Errorf("object stream is a %s", obj.Type()))
	}
	data, err := r.DecodeStream(ctx, st)
	if err != nil {
		return nil, err
	}
	n, _ := intOf(st.Dict, "N")
	first, _ := intOf(st.Dict, "First")
	if n < 0 || first < 0 || int(first) > len(data) || n > int64(len(data)) {
		return nil, pdferr.ForRef(pdferr.CorruptStructure, "objstm", stmRef, fmt.Errorf("bad /N %d or /First %d", n, first))
	}

	header := raw.NewReader(scanner.New(data[:first], r.scannerConfig()), r.readerConfig(nil))
	objs := make(map[int]raw.Object, n)
	body := data[first:]
	for i := int64(0); i < n; i++ {
		numObj, err1 := header.ReadObject()
		offObj, err2 := header.ReadObject()
		objNum, ok1 := raw.AsInt(numObj)
		off, ok2 := raw.AsInt(offObj)
		if err1 != nil || err2 != nil || !ok1 || !ok2 || off < 0 || off > int64(len(body)) {
			return nil, pdferr.ForRef(pdferr.CorruptStructure, "objstm", stmRef, fmt.Errorf("bad header pair %d", i))
		}
		rd := raw.NewReader(scanner.New(body[off:], r.scannerConfig()), r.readerConfig(nil))
		o, err := rd.ReadObject()
		if err != nil {
			return nil, fmt.Errorf("object %d in stream %d: %w", objNum, num, err)
		}
		objs[int(objNum)] = o
	}
	actual, _ := r.objstm.LoadOrStore(num, objs)
	return actual.(map[int]raw.Object), nil
}

func intOf(d *raw.DictObj, key string) (int64, bool) {
	v, _ := d.Get(key)
	return raw.AsInt(v)
}

// DecodeStream applies the stream's filters. Indirect /Filter and
// /DecodeParms values are resolved first.
func (r *Resolver) DecodeStream(ctx context.Context, s *raw.StreamObj) ([]byte, error) {
	dict, err := r.directFilterDict(ctx, s.Dict)
	if err != nil {
		return nil, err
	}
	names, params := filters.ExtractFilters(dict)
	if len(names) == 0 {
		return s.Data, nil
	}
	return r.cfg.Pipeline.Decode(ctx, s.Data, names, params)
}

// DecodePartial is DecodeStream stopping before image codecs.
func (r *Resolver) DecodePartial(ctx context.Context, s *raw.StreamObj) ([]byte, []string, error) {
	dict, err := r.directFilterDict(ctx, s.Dict)
	if err != nil {
		return nil, nil, err
	}
	names, params := filters.ExtractFilters(dict)
	if len(names) == 0 {
		return s.Data, nil, nil
	}
	return r.cfg.Pipeline.DecodePartial(ctx, s.Data, names, params)
}

func (r *Resolver) directFilterDict(ctx context.Context, d *raw.DictObj) (*raw.DictObj, error) {
	if d == nil {
		return raw.Dict(), nil
	}
	out := d
	for _, key := range []string{"Filter", "DecodeParms"} {
		v, ok := d.Get(key)
		if !ok {
			continue
		}
		resolved, err := r.Deref(ctx, v)
		if err != nil {
			return nil, pdferr.Wrap(pdferr.DecodeError, "decode", err)
		}
		if arr, ok := resolved.(*raw.ArrayObj); ok {
			items := make([]raw.Object, len(arr.Items))
			for i, it := range arr.Items {
				if items[i], err = r.Deref(ctx, it); err != nil {
					return nil, pdferr.Wrap(pdferr.DecodeError, "decode", err)
				}
			}
			resolved = raw.NewArray(items...)
		}
		if out == d {
			out = &raw.DictObj{KV: make(map[string]raw.Object, len(d.KV))}
			for k, v := range d.KV {
				out.KV[k] = v
			}
		}
		out.Set(key, resolved)
	}
	return out, nil
}

// DetectVersion reads the version from the %PDF-x.y header, or "" when the
// header is missing.
func DetectVersion(data []byte) string {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	i := bytes.Index(head, []byte("%PDF-"))
	if i < 0 {
		return ""
	}
	rest := head[i+5:]
	end := 0
	for end < len(rest) && (rest[end] == '.' || (rest[end] >= '0' && rest[end] <= '9')) {
		end++
	}
	return string(rest[:end])
}
