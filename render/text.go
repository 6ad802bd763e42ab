package render

import (
	"context"

	"golang.org/x/image/font/sfnt"

	"github.com/wudi/formkit/contentstream"
	"github.com/wudi/formkit/coords"
	"github.com/wudi/formkit/document"
	"github.com/wudi/formkit/fonts"
	"github.com/wudi/formkit/ir/raw"
)

// pdfFont is a font resource prepared for drawing.
type pdfFont struct {
	face     *fonts.Face
	enc      *fonts.Encoding
	symbolic bool

	firstChar int
	widths    []float64
	missing   float64

	// Type0 fonts use two-byte codes equal to CIDs.
	composite bool
	embedded  bool
	dw        float64
	cidWidths map[int]float64
	cidToGID  []uint16
}

const symbolicFlag = 1 << 2

func loadFont(ctx context.Context, doc *document.Document, fd *raw.DictObj) *pdfFont {
	base, _ := fd.Name("BaseFont")
	f := &pdfFont{face: fonts.Standard(base), enc: fonts.WinAnsi()}
	if sub, _ := fd.Name("Subtype"); sub == "Type0" {
		return loadType0(ctx, doc, fd, f)
	}

	if desc, ok := doc.LookupDict(fd, "FontDescriptor"); ok {
		if face := embeddedFace(ctx, doc, desc, base); face != nil {
			f.face = face
			f.embedded = true
		}
		if flags, ok := lookupInt(doc, desc, "Flags"); ok && flags&symbolicFlag != 0 && f.embedded {
			f.symbolic = true
		}
		if mw, ok := lookupFloat(doc, desc, "MissingWidth"); ok {
			f.missing = mw
		}
	}
	if enc, ok := doc.Lookup(fd, "Encoding"); ok {
		switch e := enc.(type) {
		case raw.NameObj:
			f.enc = fonts.Named(e.Val)
			f.symbolic = false
		case *raw.DictObj:
			baseEnc, _ := e.Name("BaseEncoding")
			f.enc = fonts.Named(baseEnc)
			if v, ok := doc.Lookup(e, "Differences"); ok {
				if diffs, ok := raw.AsArray(v); ok {
					f.enc = f.enc.WithDifferences(diffs)
				}
			}
			f.symbolic = false
		}
	}
	if fc, ok := lookupInt(doc, fd, "FirstChar"); ok {
		f.firstChar = int(fc)
		if v, ok := doc.Lookup(fd, "Widths"); ok {
			if arr, ok := doc.Array(v); ok {
				f.widths = make([]float64, arr.Len())
				for i, it := range arr.Items {
					if o, err := doc.Deref(it); err == nil {
						f.widths[i], _ = raw.AsFloat(o)
					}
				}
			}
		}
	}
	return f
}

func loadType0(ctx context.Context, doc *document.Document, fd *raw.DictObj, f *pdfFont) *pdfFont {
	f.composite = true
	f.dw = 1000
	v, ok := doc.Lookup(fd, "DescendantFonts")
	if !ok {
		return f
	}
	arr, ok := doc.Array(v)
	if !ok || arr.Len() == 0 {
		return f
	}
	cid, ok := doc.Dict(arr.Items[0])
	if !ok {
		return f
	}
	base, _ := cid.Name("BaseFont")
	if desc, ok := doc.LookupDict(cid, "FontDescriptor"); ok {
		if face := embeddedFace(ctx, doc, desc, base); face != nil {
			f.face = face
			f.embedded = true
		}
	}
	if dw, ok := lookupFloat(doc, cid, "DW"); ok {
		f.dw = dw
	}
	if w, ok := doc.Lookup(cid, "W"); ok {
		if warr, ok := doc.Array(w); ok {
			f.cidWidths = cidWidths(doc, warr)
		}
	}
	if m, ok := doc.Lookup(cid, "CIDToGIDMap"); ok {
		if s, ok := raw.AsStream(m); ok {
			if data, err := doc.DecodeStream(ctx, s); err == nil {
				f.cidToGID = make([]uint16, len(data)/2)
				for i := range f.cidToGID {
					f.cidToGID[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
				}
			}
		}
	}
	return f
}

// cidWidths reads a /W array: "c [w1 w2 ...]" and "cfirst clast w" runs.
func cidWidths(doc *document.Document, arr *raw.ArrayObj) map[int]float64 {
	out := make(map[int]float64)
	items := arr.Items
	for i := 0; i+1 < len(items); {
		first, ok := raw.AsInt(items[i])
		if !ok {
			return out
		}
		next, _ := doc.Deref(items[i+1])
		if ws, ok := raw.AsArray(next); ok {
			for j, w := range ws.Items {
				out[int(first)+j], _ = raw.AsFloat(w)
			}
			i += 2
			continue
		}
		if i+2 >= len(items) {
			return out
		}
		last, ok1 := raw.AsInt(next)
		w, ok2 := raw.AsFloat(items[i+2])
		if !ok1 || !ok2 || last-first > 0xffff {
			return out
		}
		for c := first; c <= last; c++ {
			out[int(c)] = w
		}
		i += 3
	}
	return out
}

func embeddedFace(ctx context.Context, doc *document.Document, desc *raw.DictObj, name string) *fonts.Face {
	for _, key := range []string{"FontFile2", "FontFile3"} {
		v, ok := doc.Lookup(desc, key)
		if !ok {
			continue
		}
		s, ok := raw.AsStream(v)
		if !ok {
			continue
		}
		if key == "FontFile3" {
			if sub, _ := s.Dict.Name("Subtype"); sub != "OpenType" {
				continue
			}
		}
		data, err := doc.DecodeStream(ctx, s)
		if err != nil {
			continue
		}
		if face, err := fonts.LoadTrueType(name, data); err == nil {
			return face
		}
	}
	return nil
}

// codes splits a shown string into character codes.
func (f *pdfFont) codes(s []byte) []int {
	if !f.composite {
		out := make([]int, len(s))
		for i, b := range s {
			out[i] = int(b)
		}
		return out
	}
	out := make([]int, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		out = append(out, int(s[i])<<8|int(s[i+1]))
	}
	return out
}

// width returns the advance of code in 1/1000 text space units.
func (f *pdfFont) width(code int) float64 {
	if f.composite {
		if w, ok := f.cidWidths[code]; ok {
			return w
		}
		return f.dw
	}
	if i := code - f.firstChar; i >= 0 && i < len(f.widths) && f.widths[i] > 0 {
		return f.widths[i]
	}
	if f.missing > 0 {
		return f.missing
	}
	return f.face.Width(f.rune(code))
}

func (f *pdfFont) rune(code int) rune {
	if f.symbolic || f.composite {
		return rune(code)
	}
	if r := f.enc.Rune(byte(code)); r != 0 {
		return r
	}
	return rune(code)
}

func (f *pdfFont) glyphIndex(code int) (sfnt.GlyphIndex, bool) {
	if f.composite && f.embedded {
		gid := code
		if f.cidToGID != nil {
			if code >= len(f.cidToGID) {
				return 0, false
			}
			gid = int(f.cidToGID[code])
		}
		return sfnt.GlyphIndex(gid), gid != 0
	}
	return f.face.GlyphIndex(f.rune(code))
}

// glyphPath appends the outline of code, mapped through trm from glyph
// space (1 unit = 1 em), to p.
func (f *pdfFont) glyphPath(code int, trm coords.Matrix, p *contentstream.Path) {
	if f.face.Dingbats() {
		polys, _ := fonts.DingbatOutline(byte(code))
		for _, poly := range polys {
			for i, pt := range poly {
				d := trm.Transform(coords.Point{X: pt.X / 1000, Y: pt.Y / 1000})
				if i == 0 {
					p.MoveTo(d.X, d.Y)
				} else {
					p.LineTo(d.X, d.Y)
				}
			}
			p.Close()
		}
		return
	}
	idx, ok := f.glyphIndex(code)
	if !ok {
		return
	}
	segs, err := f.face.Outline(idx)
	if err != nil {
		return
	}
	upem := f.face.UnitsPerEm()
	pt := func(x, y int32) coords.Point {
		return trm.Transform(coords.Point{X: float64(x) / 64 / upem, Y: -float64(y) / 64 / upem})
	}
	var cur coords.Point
	for _, s := range segs {
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			p.Close()
			cur = pt(int32(s.Args[0].X), int32(s.Args[0].Y))
			p.MoveTo(cur.X, cur.Y)
		case sfnt.SegmentOpLineTo:
			cur = pt(int32(s.Args[0].X), int32(s.Args[0].Y))
			p.LineTo(cur.X, cur.Y)
		case sfnt.SegmentOpQuadTo:
			q := pt(int32(s.Args[0].X), int32(s.Args[0].Y))
			end := pt(int32(s.Args[1].X), int32(s.Args[1].Y))
			c1 := lerp(cur, q, 2.0/3)
			c2 := lerp(end, q, 2.0/3)
			p.CurveTo(c1.X, c1.Y, c2.X, c2.Y, end.X, end.Y)
			cur = end
		case sfnt.SegmentOpCubeTo:
			c1 := pt(int32(s.Args[0].X), int32(s.Args[0].Y))
			c2 := pt(int32(s.Args[1].X), int32(s.Args[1].Y))
			cur = pt(int32(s.Args[2].X), int32(s.Args[2].Y))
			p.CurveTo(c1.X, c1.Y, c2.X, c2.Y, cur.X, cur.Y)
		}
	}
	p.Close()
}

// showText draws s with the current text state and advances the text
// matrix.
func (it *interp) showText(s []byte) {
	ts := &it.gs.text
	f := ts.font
	if f == nil {
		it.warnOnce(textWithoutFont)
		f = it.defaultFont()
	}
	var path contentstream.Path
	for _, code := range f.codes(s) {
		if ts.mode != contentstream.TextInvisible {
			trm := coords.Matrix{ts.size * ts.hscale, 0, 0, ts.size, 0, ts.rise}.Multiply(it.tm).Multiply(it.gs.ctm)
			f.glyphPath(code, trm, &path)
		}
		tx := f.width(code)/1000*ts.size + ts.charSp
		if code == ' ' && !f.composite {
			tx += ts.wordSp
		}
		it.tm = coords.Translate(tx*ts.hscale, 0).Multiply(it.tm)
	}
	if path.Empty() {
		return
	}
	if ts.mode.Fills() {
		it.fillPath(&path)
	}
	if ts.mode.Strokes() {
		it.strokePath(&path)
	}
}

// adjust applies a TJ number, given in thousandths of text space.
func (it *interp) adjust(n float64) {
	ts := &it.gs.text
	it.tm = coords.Translate(-n/1000*ts.size*ts.hscale, 0).Multiply(it.tm)
}

func (it *interp) defaultFont() *pdfFont {
	if it.fallback == nil {
		it.fallback = &pdfFont{face: fonts.Standard("Helvetica"), enc: fonts.WinAnsi()}
	}
	return it.fallback
}

func lookupInt(doc *document.Document, d *raw.DictObj, key string) (int64, bool) {
	v, ok := doc.Lookup(d, key)
	if !ok {
		return 0, false
	}
	return raw.AsInt(v)
}

func lookupFloat(doc *document.Document, d *raw.DictObj, key string) (float64, bool) {
	v, ok := doc.Lookup(d, key)
	if !ok {
		return 0, false
	}
	return raw.AsFloat(v)
}
