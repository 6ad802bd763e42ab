package writer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/wudi/formkit/document"
	"github.com/wudi/formkit/filters"
	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/observability"
)

// renumbering assigns contiguous object numbers, from 1, in breadth-first
// discovery order starting at the trailer's Root and Info.
type renumbering struct {
	doc   *document.Document
	order []raw.ObjectRef
	num   map[raw.ObjectRef]int
	lost  int
}

func (r *renumbering) add(ref raw.ObjectRef) {
	if _, ok := r.num[ref]; ok {
		return
	}
	if _, ok := r.doc.Object(ref); !ok {
		r.lost++
		return
	}
	r.order = append(r.order, ref)
	r.num[ref] = len(r.order)
}

func (r *renumbering) scan(obj raw.Object) {
	switch v := obj.(type) {
	case raw.RefObj:
		r.add(v.R)
	case *raw.ArrayObj:
		for _, it := range v.Items {
			r.scan(it)
		}
	case *raw.DictObj:
		for _, k := range v.Keys() {
			r.scan(v.KV[k])
		}
	case *raw.StreamObj:
		r.scan(v.Dict)
	}
}

// rewrite copies obj with every reference renumbered. References to
// objects outside the document become null.
func (r *renumbering) rewrite(obj raw.Object) raw.Object {
	switch v := obj.(type) {
	case raw.RefObj:
		n, ok := r.num[v.R]
		if !ok {
			return raw.NullObj{}
		}
		return raw.Ref(n, 0)
	case *raw.ArrayObj:
		out := &raw.ArrayObj{Items: make([]raw.Object, len(v.Items))}
		for i, it := range v.Items {
			out.Items[i] = r.rewrite(it)
		}
		return out
	case *raw.DictObj:
		out := raw.Dict()
		for k, val := range v.KV {
			out.Set(k, r.rewrite(val))
		}
		return out
	case *raw.StreamObj:
		return raw.NewStream(r.rewrite(v.Dict).(*raw.DictObj), v.Data)
	}
	return obj
}

func saveFull(ctx context.Context, doc *document.Document, cfg Config) ([]byte, error) {
	r := &renumbering{doc: doc, num: make(map[raw.ObjectRef]int)}
	r.add(doc.Root())
	info, hasInfo := raw.AsRef(get(doc.Trailer(), "Info"))
	if hasInfo {
		r.add(info)
	}
	for i := 0; i < len(r.order); i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		obj, _ := doc.Object(r.order[i])
		r.scan(obj)
	}
	if r.lost > 0 {
		cfg.Logger.Warn("dangling references written as null", observability.Int("count", r.lost))
	}

	var buf bytes.Buffer
	version := doc.Version()
	if version == "" {
		version = "1.7"
	}
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", version)

	offsets := make([]int, len(r.order)+1)
	for i, old := range r.order {
		obj, _ := doc.Object(old)
		out := r.rewrite(obj)
		if s, ok := out.(*raw.StreamObj); ok {
			var err error
			if out, err = prepareStream(s.Dict, s.Data, cfg.Compress); err != nil {
				return nil, fmt.Errorf("object %v: %w", old, err)
			}
		}
		offsets[i+1] = buf.Len()
		if err := writeIndirect(&buf, raw.ObjectRef{Num: i + 1}, out); err != nil {
			return nil, err
		}
	}

	xrefAt := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets))
	for _, off := range offsets[1:] {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}

	trailer := raw.Dict()
	trailer.Set("Size", raw.NumberInt(int64(len(offsets))))
	trailer.Set("Root", raw.Ref(r.num[doc.Root()], 0))
	if n, ok := r.num[info]; hasInfo && ok {
		trailer.Set("Info", raw.Ref(n, 0))
	}
	trailer.Set("ID", fileID(doc, buf.Bytes()))
	if err := writeTrailer(&buf, trailer, xrefAt); err != nil {
		return nil, err
	}
	cfg.Logger.Debug("full rewrite", observability.Int("objects", len(r.order)))
	return buf.Bytes(), nil
}

func get(d *raw.DictObj, key string) raw.Object {
	v, _ := d.Get(key)
	return v
}

// prepareStream sets /Length to the payload size, compressing unfiltered
// payloads first when asked. d must be a private copy.
func prepareStream(d *raw.DictObj, data []byte, compress bool) (*raw.StreamObj, error) {
	if _, filtered := d.Get("Filter"); compress && !filtered && len(data) > 0 {
		enc, err := filters.EncodeFlate(data)
		if err != nil {
			return nil, err
		}
		d.Set("Filter", raw.NameLiteral("FlateDecode"))
		d.Delete("DecodeParms")
		data = enc
	}
	d.Set("Length", raw.NumberInt(int64(len(data))))
	return raw.NewStream(d, data), nil
}

// fileID keeps the source identifier, or derives one from the body.
func fileID(doc *document.Document, body []byte) *raw.ArrayObj {
	if id := doc.FileID(); len(id) == 2 {
		return raw.NewArray(raw.StringObj{Bytes: id[0], Hex: true}, raw.StringObj{Bytes: id[1], Hex: true})
	}
	sum := sha256.Sum256(body)
	return raw.NewArray(raw.StringObj{Bytes: sum[:16], Hex: true}, raw.StringObj{Bytes: sum[:16], Hex: true})
}

func writeTrailer(buf *bytes.Buffer, trailer *raw.DictObj, xrefAt int) error {
	buf.WriteString("trailer\n")
	b, err := AppendObject(buf.AvailableBuffer(), trailer)
	if err != nil {
		return err
	}
	buf.Write(b)
	fmt.Fprintf(buf, "\nstartxref\n%d\n%%%%EOF\n", xrefAt)
	return nil
}
