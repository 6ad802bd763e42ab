// Package xref locates and merges the cross-reference sections of a PDF
// file: classic tables, xref streams, hybrid files and /Prev chains.
package xref

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/wudi/formkit/filters"
	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/observability"
	"github.com/wudi/formkit/pdferr"
	"github.com/wudi/formkit/recovery"
	"github.com/wudi/formkit/scanner"
)

type EntryKind int

const (
	EntryFree EntryKind = iota
	EntryInUse
	EntryCompressed
)

// Entry is one cross-reference row. Offset and Gen apply to in-use
// entries; Stream and Index to objects stored in an object stream.
type Entry struct {
	Kind   EntryKind
	Offset int64
	Gen    int
	Stream int
	Index  int
}

// Table is the merged view of every section, newest entries first.
type Table struct {
	entries   map[int]Entry
	trailer   *raw.DictObj
	startXRef int64
	sections  int
	kind      string
	repaired  bool
}

// Lookup returns the file offset of an in-use object.
func (t *Table) Lookup(objNum int) (offset int64, gen int, found bool) {
	e, ok := t.entries[objNum]
	if !ok || e.Kind != EntryInUse {
		return 0, 0, false
	}
	return e.Offset, e.Gen, true
}

func (t *Table) Entry(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	return e, ok
}

// Objects returns the numbers of all live objects in ascending order.
func (t *Table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k, e := range t.entries {
		if e.Kind != EntryFree {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

// Type is "table", "stream" or "repaired" after the newest section.
func (t *Table) Type() string { return t.kind }

func (t *Table) Trailer() *raw.DictObj { return t.trailer }

// StartXRef is the offset of the newest section, which an incremental
// update must reference through /Prev.
func (t *Table) StartXRef() int64 { return t.startXRef }

// Sections is the number of sections merged into the table.
func (t *Table) Sections() int { return t.sections }

func (t *Table) Repaired() bool { return t.repaired }

type ResolverConfig struct {
	MaxXRefDepth int
	Recovery     recovery.Strategy
	Pipeline     *filters.Pipeline
	Logger       observability.Logger
}

// Resolver builds a Table from a file buffer.
type Resolver struct {
	cfg ResolverConfig
}

func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 50
	}
	if cfg.Pipeline == nil {
		cfg.Pipeline = filters.Default(filters.Limits{})
	}
	cfg.Logger = observability.OrNop(cfg.Logger)
	return &Resolver{cfg: cfg}
}

var kwStartXRef = []byte("startxref")

// Resolve finds the newest section through the last startxref and merges it
// with every older section reachable through /Prev and /XRefStm.
func (r *Resolver) Resolve(ctx context.Context, data []byte) (*Table, error) {
	start, err := findStartXRef(data)
	if err == nil {
		var t *Table
		t, err = r.resolveChain(ctx, data, start)
		if err == nil {
			return t, nil
		}
		if pdferr.KindOf(err) == pdferr.KindUnknown {
			// Context cancellation and friends are not repairable.
			return nil, err
		}
	}
	if !r.lenient(ctx, err) {
		return nil, err
	}
	r.cfg.Logger.Warn("cross-reference data unusable, scanning for objects", observability.Error("error", err))
	return repair(ctx, data, r.cfg)
}

func (r *Resolver) lenient(ctx context.Context, err error) bool {
	if r.cfg.Recovery == nil {
		return false
	}
	return r.cfg.Recovery.OnError(ctx, err, recovery.Location{Component: "xref"}).Continue()
}

func findStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, kwStartXRef)
	if idx < 0 {
		return 0, pdferr.New(pdferr.TrailerNotFound, "xref", "startxref not found")
	}
	fields := bytes.Fields(data[idx+len(kwStartXRef):])
	if len(fields) == 0 {
		return 0, pdferr.AtOffset(pdferr.CorruptStructure, "xref", int64(idx), fmt.Errorf("startxref without offset"))
	}
	off, err := strconv.ParseInt(string(fields[0]), 10, 64)
	if err != nil || off < 0 || off >= int64(len(data)) {
		return 0, pdferr.AtOffset(pdferr.CorruptStructure, "xref", int64(idx), fmt.Errorf("startxref offset %q out of range", fields[0]))
	}
	return off, nil
}

type section struct {
	entries map[int]Entry
	trailer *raw.DictObj
	kind    string
}

func (r *Resolver) resolveChain(ctx context.Context, data []byte, start int64) (*Table, error) {
	t := &Table{entries: make(map[int]Entry), startXRef: start}
	visited := make(map[int64]bool)
	off := start
	for depth := 0; ; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if depth >= r.cfg.MaxXRefDepth {
			return nil, pdferr.Errorf(pdferr.CorruptStructure, "xref", "more than %d cross-reference sections", r.cfg.MaxXRefDepth)
		}
		if visited[off] {
			return nil, pdferr.AtOffset(pdferr.CorruptStructure, "xref", off, fmt.Errorf("/Prev chain loops"))
		}
		visited[off] = true

		sec, err := r.parseSection(ctx, data, off)
		if err != nil {
			return nil, err
		}
		// Hybrid files point at an xref stream holding the compressed
		// objects of the same revision.
		if stmOff, ok := intEntry(sec.trailer, "XRefStm"); ok && !visited[stmOff] {
			visited[stmOff] = true
			stm, err := r.parseStreamSection(ctx, data, stmOff)
			if err != nil {
				return nil, err
			}
			for num, e := range stm.entries {
				if cur, ok := sec.entries[num]; !ok || cur.Kind == EntryFree {
					sec.entries[num] = e
				}
			}
		}
		if t.sections == 0 {
			t.kind = sec.kind
			t.trailer = raw.CloneDict(sec.trailer)
		} else {
			for k, v := range sec.trailer.KV {
				if _, ok := t.trailer.KV[k]; !ok && k != "Prev" && k != "XRefStm" {
					t.trailer.Set(k, v)
				}
			}
		}
		t.sections++
		// Older sections only fill gaps.
		for num, e := range sec.entries {
			if _, ok := t.entries[num]; !ok {
				t.entries[num] = e
			}
		}

		prev, ok := intEntry(sec.trailer, "Prev")
		if !ok {
			break
		}
		if prev < 0 || prev >= int64(len(data)) {
			return nil, pdferr.AtOffset(pdferr.CorruptStructure, "xref", off, fmt.Errorf("/Prev %d out of range", prev))
		}
		off = prev
	}
	// The object 0 head of the free list is never live.
	delete(t.entries, 0)
	r.cfg.Logger.Debug("cross-reference resolved", observability.Int("sections", t.sections), observability.Int("entries", len(t.entries)))
	return t, nil
}

func intEntry(d *raw.DictObj, key string) (int64, bool) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	return raw.AsInt(v)
}

// parseSection dispatches on what sits at off: the xref keyword or an
// indirect xref stream object.
func (r *Resolver) parseSection(ctx context.Context, data []byte, off int64) (*section, error) {
	s := scanner.New(data, scanner.Config{})
	if err := s.SeekTo(off); err != nil {
		return nil, err
	}
	tok, err := s.Next()
	if err != nil {
		return nil, pdferr.AtOffset(pdferr.CorruptStructure, "xref", off, fmt.Errorf("no cross-reference section: %w", err))
	}
	if tok.Type == scanner.TokenKeyword && tok.Str == "xref" {
		return r.parseClassic(s, off)
	}
	if tok.Type == scanner.TokenNumber {
		return r.parseStreamSection(ctx, data, off)
	}
	return nil, pdferr.AtOffset(pdferr.CorruptStructure, "xref", off, fmt.Errorf("expected xref or object, found %s %q", tok.Type, tok.Str))
}
