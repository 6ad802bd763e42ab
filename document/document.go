// Package document loads a PDF file into an immutable arena of objects and
// exposes its catalog, page list and form dictionary.
package document

import (
	"context"
	"fmt"
	"sync"

	"github.com/wudi/formkit/config"
	"github.com/wudi/formkit/filters"
	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/observability"
	"github.com/wudi/formkit/pdferr"
)

// Document is a loaded file. It never changes after Load; edits go through
// an Editor and produce a new Document that shares unmodified objects.
type Document struct {
	objects  map[raw.ObjectRef]raw.Object
	trailer  *raw.DictObj
	root     raw.ObjectRef
	pages    []*Page
	pageRefs map[raw.ObjectRef]int
	maxNum   int
	modified map[raw.ObjectRef]bool

	original  []byte
	startXRef int64
	version   string
	info      Info
	fileID    [][]byte
	warnings  []pdferr.Warning

	settings settings
	pipeline *filters.Pipeline
	decoded  *sync.Map // *raw.StreamObj -> []byte
}

// Resolve returns the object ref names. A reference to an object missing
// from the arena is a BrokenReference error.
func (d *Document) Resolve(ref raw.ObjectRef) (raw.Object, error) {
	obj, ok := d.objects[ref]
	if !ok {
		return nil, pdferr.ForRef(pdferr.BrokenReference, "resolve", ref, fmt.Errorf("object not in document"))
	}
	return obj, nil
}

// Deref follows obj one hop if it is a reference.
func (d *Document) Deref(obj raw.Object) (raw.Object, error) {
	if r, ok := obj.(raw.RefObj); ok {
		return d.Resolve(r.R)
	}
	return obj, nil
}

// Dict dereferences obj and returns it as a dictionary. Broken references
// and other types yield nil, false.
func (d *Document) Dict(obj raw.Object) (*raw.DictObj, bool) {
	v, err := d.Deref(obj)
	if err != nil {
		return nil, false
	}
	return raw.AsDict(v)
}

func (d *Document) Array(obj raw.Object) (*raw.ArrayObj, bool) {
	v, err := d.Deref(obj)
	if err != nil {
		return nil, false
	}
	return raw.AsArray(v)
}

// Lookup dereferences key in dict.
func (d *Document) Lookup(dict *raw.DictObj, key string) (raw.Object, bool) {
	v, ok := dict.Get(key)
	if !ok {
		return nil, false
	}
	v, err := d.Deref(v)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Object returns the arena entry for ref without error wrapping.
func (d *Document) Object(ref raw.ObjectRef) (raw.Object, bool) {
	obj, ok := d.objects[ref]
	return obj, ok
}

// Refs lists every object in the arena in ascending order.
func (d *Document) Refs() []raw.ObjectRef {
	out := make([]raw.ObjectRef, 0, len(d.objects))
	for r := range d.objects {
		out = append(out, r)
	}
	raw.SortRefs(out)
	return out
}

func (d *Document) Len() int { return len(d.objects) }

// MaxObjectNumber is the highest object number in use or reserved by the
// source trailer's /Size.
func (d *Document) MaxObjectNumber() int { return d.maxNum }

// Trailer returns the trailer of the newest section. Callers must not
// modify it.
func (d *Document) Trailer() *raw.DictObj { return d.trailer }

func (d *Document) Root() raw.ObjectRef { return d.root }

func (d *Document) Catalog() *raw.DictObj {
	c, _ := raw.AsDict(d.objects[d.root])
	return c
}

// AcroForm returns the interactive form dictionary, if any.
func (d *Document) AcroForm() (*raw.DictObj, bool) {
	return d.LookupDict(d.Catalog(), "AcroForm")
}

// LookupDict is Lookup restricted to dictionaries.
func (d *Document) LookupDict(dict *raw.DictObj, key string) (*raw.DictObj, bool) {
	if dict == nil {
		return nil, false
	}
	v, ok := d.Lookup(dict, key)
	if !ok {
		return nil, false
	}
	return raw.AsDict(v)
}

func (d *Document) Pages() []*Page { return d.pages }
func (d *Document) NumPages() int  { return len(d.pages) }

// Page returns the page at a zero-based index.
func (d *Document) Page(i int) (*Page, error) {
	if i < 0 || i >= len(d.pages) {
		return nil, fmt.Errorf("page %d out of range [0,%d)", i, len(d.pages))
	}
	return d.pages[i], nil
}

// PageIndex maps a page object to its index.
func (d *Document) PageIndex(ref raw.ObjectRef) (int, bool) {
	i, ok := d.pageRefs[ref]
	return i, ok
}

// Original is the file the document was loaded from.
func (d *Document) Original() []byte { return d.original }

// StartXRef is the offset of the newest cross-reference section of Original.
func (d *Document) StartXRef() int64 { return d.startXRef }

func (d *Document) Version() string { return d.version }
func (d *Document) Info() Info      { return d.info }

// FileID returns the two /ID strings, or nil.
func (d *Document) FileID() [][]byte { return d.fileID }

// Warnings lists problems skipped while loading.
func (d *Document) Warnings() []pdferr.Warning { return d.warnings }

// Modified lists the objects changed or added since Load.
func (d *Document) Modified() []raw.ObjectRef {
	out := make([]raw.ObjectRef, 0, len(d.modified))
	for r := range d.modified {
		out = append(out, r)
	}
	raw.SortRefs(out)
	return out
}

func (d *Document) IsModified(ref raw.ObjectRef) bool { return d.modified[ref] }

func (d *Document) Limits() config.Limits        { return d.settings.limits }
func (d *Document) Logger() observability.Logger { return d.settings.logger }
func (d *Document) Tracer() observability.Tracer { return d.settings.tracer }
func (d *Document) Strict() bool                 { return d.settings.strict() }
func (d *Document) Pipeline() *filters.Pipeline  { return d.pipeline }

// DecodeStream returns the decoded payload of s. Results are cached per
// stream object and shared by every version of the document.
func (d *Document) DecodeStream(ctx context.Context, s *raw.StreamObj) ([]byte, error) {
	if v, ok := d.decoded.Load(s); ok {
		return v.([]byte), nil
	}
	out, rest, err := d.decode(ctx, s)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, pdferr.Wrap(pdferr.DecodeError, "decode", filters.UnsupportedError{Filter: rest[0]})
	}
	d.decoded.Store(s, out)
	return out, nil
}

// DecodeImage decodes s up to its image codec and returns the codec names
// still to apply.
func (d *Document) DecodeImage(ctx context.Context, s *raw.StreamObj) ([]byte, []string, error) {
	return d.decode(ctx, s)
}

func (d *Document) decode(ctx context.Context, s *raw.StreamObj) ([]byte, []string, error) {
	dict := s.Dict
	if dict == nil {
		return s.Data, nil, nil
	}
	if hasIndirectFilter(dict) {
		dict = raw.CloneDict(dict)
		for _, key := range []string{"Filter", "DecodeParms"} {
			v, ok := dict.Get(key)
			if !ok {
				continue
			}
			v, err := d.Deref(v)
			if err != nil {
				return nil, nil, pdferr.Wrap(pdferr.DecodeError, "decode", err)
			}
			if arr, ok := raw.AsArray(v); ok {
				items := make([]raw.Object, len(arr.Items))
				for i, it := range arr.Items {
					if items[i], err = d.Deref(it); err != nil {
						return nil, nil, pdferr.Wrap(pdferr.DecodeError, "decode", err)
					}
				}
				v = raw.NewArray(items...)
			}
			dict.Set(key, v)
		}
	}
	names, params := filters.ExtractFilters(dict)
	if len(names) == 0 {
		return s.Data, nil, nil
	}
	return d.pipeline.DecodePartial(ctx, s.Data, names, params)
}

func hasIndirectFilter(dict *raw.DictObj) bool {
	for _, key := range []string{"Filter", "DecodeParms"} {
		v, ok := dict.Get(key)
		if !ok {
			continue
		}
		if _, isRef := v.(raw.RefObj); isRef {
			return true
		}
		if arr, ok := raw.AsArray(v); ok {
			for _, it := range arr.Items {
				if _, isRef := it.(raw.RefObj); isRef {
					return true
				}
			}
		}
	}
	return false
}
