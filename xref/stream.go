package xref

import (
	"context"
	"fmt"

	"github.com/wudi/formkit/filters"
	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/pdferr"
	"github.com/wudi/formkit/scanner"
)

// parseStreamSection decodes the xref stream object at off.
func (r *Resolver) parseStreamSection(ctx context.Context, data []byte, off int64) (*section, error) {
	s := scanner.New(data, scanner.Config{})
	if err := s.SeekTo(off); err != nil {
		return nil, err
	}
	rd := raw.NewReader(s, raw.ReaderConfig{})
	_, obj, err := rd.ReadIndirect()
	if err != nil {
		return nil, pdferr.AtOffset(pdferr.CorruptStructure, "xref", off, fmt.Errorf("xref stream: %w", err))
	}
	stm, ok := raw.AsStream(obj)
	if !ok {
		return nil, pdferr.AtOffset(pdferr.CorruptStructure, "xref", off, fmt.Errorf("object at offset is a %s, not an xref stream", obj.Type()))
	}
	if t, _ := stm.Dict.Name("Type"); t != "XRef" {
		return nil, pdferr.AtOffset(pdferr.CorruptStructure, "xref", off, fmt.Errorf("stream /Type is %q, want XRef", t))
	}

	names, params := filters.ExtractFilters(stm.Dict)
	payload, err := r.cfg.Pipeline.Decode(ctx, stm.Data, names, params)
	if err != nil {
		return nil, err
	}

	wObj, _ := stm.Dict.Get("W")
	ws, ok := raw.Floats(wObj)
	if !ok || len(ws) != 3 {
		return nil, pdferr.AtOffset(pdferr.CorruptStructure, "xref", off, fmt.Errorf("xref stream /W must hold three widths"))
	}
	w := [3]int{int(ws[0]), int(ws[1]), int(ws[2])}
	for _, v := range w {
		if v < 0 || v > 8 {
			return nil, pdferr.AtOffset(pdferr.CorruptStructure, "xref", off, fmt.Errorf("xref stream width %d out of range", v))
		}
	}
	rowLen := w[0] + w[1] + w[2]
	if rowLen == 0 {
		return nil, pdferr.AtOffset(pdferr.CorruptStructure, "xref", off, fmt.Errorf("xref stream with empty rows"))
	}

	size, _ := intEntry(stm.Dict, "Size")
	index := []int64{0, size}
	if idxObj, ok := stm.Dict.Get("Index"); ok {
		fs, ok := raw.Floats(idxObj)
		if !ok || len(fs)%2 != 0 {
			return nil, pdferr.AtOffset(pdferr.CorruptStructure, "xref", off, fmt.Errorf("malformed /Index"))
		}
		index = index[:0]
		for _, f := range fs {
			index = append(index, int64(f))
		}
	}

	sec := &section{entries: make(map[int]Entry), trailer: stm.Dict, kind: "stream"}
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, count := int(index[i]), int(index[i+1])
		for j := 0; j < count; j++ {
			if pos+rowLen > len(payload) {
				return nil, pdferr.AtOffset(pdferr.CorruptStructure, "xref", off, fmt.Errorf("xref stream truncated at entry %d", first+j))
			}
			row := payload[pos : pos+rowLen]
			pos += rowLen
			typ := int64(1)
			if w[0] > 0 {
				typ = field(row[:w[0]])
			}
			f2 := field(row[w[0] : w[0]+w[1]])
			f3 := field(row[w[0]+w[1]:])
			num := first + j
			switch typ {
			case 0:
				sec.entries[num] = Entry{Kind: EntryFree, Gen: int(f3)}
			case 1:
				sec.entries[num] = Entry{Kind: EntryInUse, Offset: f2, Gen: int(f3)}
			case 2:
				sec.entries[num] = Entry{Kind: EntryCompressed, Stream: int(f2), Index: int(f3)}
			default:
				// Unknown types are references to the null object.
			}
		}
	}
	return sec, nil
}

func field(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}
