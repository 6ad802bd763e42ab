package xref

import (
	"context"
	"errors"
	"io"

	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/observability"
	"github.com/wudi/formkit/pdferr"
	"github.com/wudi/formkit/recovery"
	"github.com/wudi/formkit/scanner"
)

// repair scans the entire file to reconstruct the xref table.
// It looks for "<num> <gen> obj" patterns and "trailer" dictionaries; later
// definitions of an object win, as they would in an incremental update.
func repair(ctx context.Context, data []byte, cfg ResolverConfig) (*Table, error) {
	s := scanner.New(data, scanner.Config{Recovery: recovery.NewLenientStrategy()})
	rd := raw.NewReader(s, raw.ReaderConfig{Recovery: recovery.NewLenientStrategy()})
	entries := make(map[int]Entry)
	var lastTrailer *raw.DictObj
	var window [2]scanner.Token
	seen := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := rd.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			continue
		}
		switch {
		case tok.Type == scanner.TokenKeyword && tok.Str == "obj" && seen >= 2 &&
			window[0].Type == scanner.TokenNumber && window[0].IsInt && window[0].Int > 0 &&
			window[1].Type == scanner.TokenNumber && window[1].IsInt && window[1].Int >= 0:
			entries[int(window[0].Int)] = Entry{Kind: EntryInUse, Offset: window[0].Pos, Gen: int(window[1].Int)}
		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			if obj, err := rd.ReadObject(); err == nil {
				if dict, ok := obj.(*raw.DictObj); ok {
					lastTrailer = dict
				}
			}
		}
		window[0], window[1] = window[1], tok
		seen++
	}

	if len(entries) == 0 {
		return nil, pdferr.New(pdferr.TrailerNotFound, "repair", "no objects found")
	}

	t := &Table{entries: entries, kind: "repaired", repaired: true, sections: 1}
	if lastTrailer == nil || !hasRoot(lastTrailer) {
		lastTrailer = synthesizeTrailer(data, entries)
	}
	if lastTrailer == nil {
		return nil, pdferr.New(pdferr.TrailerNotFound, "repair", "no trailer and no catalog found")
	}
	t.trailer = raw.CloneDict(lastTrailer)
	t.trailer.Delete("Prev")
	t.trailer.Delete("XRefStm")
	max := 0
	for n := range entries {
		if n > max {
			max = n
		}
	}
	t.trailer.Set("Size", raw.NumberInt(int64(max+1)))
	cfg.Logger.Info("cross-reference rebuilt by scanning", observability.Int("objects", len(entries)))
	return t, nil
}

func hasRoot(d *raw.DictObj) bool {
	_, ok := d.Get("Root")
	return ok
}

// synthesizeTrailer looks for an xref stream dictionary or a catalog among
// the recovered objects.
func synthesizeTrailer(data []byte, entries map[int]Entry) *raw.DictObj {
	var catalog *raw.ObjectRef
	var xrefDict *raw.DictObj
	nums := make([]int, 0, len(entries))
	for n := range entries {
		nums = append(nums, n)
	}
	for _, n := range nums {
		e := entries[n]
		s := scanner.New(data, scanner.Config{})
		if err := s.SeekTo(e.Offset); err != nil {
			continue
		}
		ref, obj, err := raw.NewReader(s, raw.ReaderConfig{Recovery: recovery.NewLenientStrategy()}).ReadIndirect()
		if err != nil {
			continue
		}
		d, ok := raw.AsDict(obj)
		if !ok {
			continue
		}
		switch t, _ := d.Name("Type"); t {
		case "Catalog":
			if catalog == nil || ref.Num > catalog.Num {
				r := ref
				catalog = &r
			}
		case "XRef":
			if hasRoot(d) {
				xrefDict = d
			}
		}
	}
	if xrefDict != nil {
		return xrefDict
	}
	if catalog == nil {
		return nil
	}
	d := raw.Dict()
	d.Set("Root", raw.RefObj{R: *catalog})
	return d
}
