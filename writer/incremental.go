package writer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wudi/formkit/document"
	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/observability"
)

// xrefStreamKeys are trailer entries that only make sense on an xref
// stream dictionary.
var xrefStreamKeys = []string{"Prev", "XRefStm", "Type", "W", "Index", "Length", "Filter", "DecodeParms", "DL"}

func saveIncremental(ctx context.Context, doc *document.Document, cfg Config) ([]byte, error) {
	orig := doc.Original()
	modified := doc.Modified()
	if len(modified) == 0 {
		return append([]byte(nil), orig...), nil
	}

	var buf bytes.Buffer
	buf.Grow(len(orig) + 1024*len(modified))
	buf.Write(orig)
	if len(orig) > 0 && orig[len(orig)-1] != '\n' && orig[len(orig)-1] != '\r' {
		buf.WriteByte('\n')
	}

	offsets := make(map[raw.ObjectRef]int, len(modified))
	for _, ref := range modified {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		obj, _ := doc.Object(ref)
		if s, ok := obj.(*raw.StreamObj); ok {
			var err error
			if obj, err = prepareStream(raw.CloneDict(s.Dict), s.Data, cfg.Compress); err != nil {
				return nil, fmt.Errorf("object %v: %w", ref, err)
			}
		}
		offsets[ref] = buf.Len()
		if err := writeIndirect(&buf, ref, obj); err != nil {
			return nil, err
		}
	}

	xrefAt := buf.Len()
	buf.WriteString("xref\n")
	for i := 0; i < len(modified); {
		j := i
		for j+1 < len(modified) && modified[j+1].Num == modified[j].Num+1 {
			j++
		}
		fmt.Fprintf(&buf, "%d %d\n", modified[i].Num, j-i+1)
		for _, ref := range modified[i : j+1] {
			fmt.Fprintf(&buf, "%010d %05d n \n", offsets[ref], ref.Gen)
		}
		i = j + 1
	}

	trailer := raw.CloneDict(doc.Trailer())
	for _, k := range xrefStreamKeys {
		trailer.Delete(k)
	}
	size := int64(doc.MaxObjectNumber() + 1)
	if prev, ok := raw.AsInt(get(doc.Trailer(), "Size")); ok && prev > size {
		size = prev
	}
	trailer.Set("Size", raw.NumberInt(size))
	trailer.Set("Root", raw.RefObj{R: doc.Root()})
	trailer.Set("Prev", raw.NumberInt(doc.StartXRef()))
	if err := writeTrailer(&buf, trailer, xrefAt); err != nil {
		return nil, err
	}
	cfg.Logger.Debug("incremental update", observability.Int("objects", len(modified)), observability.Int("appended", buf.Len()-len(orig)))
	return buf.Bytes(), nil
}
