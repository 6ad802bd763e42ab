package forms

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/wudi/formkit/coords"
	"github.com/wudi/formkit/document"
	"github.com/wudi/formkit/fonts"
	"github.com/wudi/formkit/ir/raw"
)

const (
	padding     = 2.0
	minAutoSize = 4.0
	maxAutoSize = 12.0
	lineSpacing = 1.15
	capHeight   = 0.7
)

type fontInfo struct {
	face *fonts.Face
	enc  *fonts.Encoding
	res  raw.Object // entry for the appearance's /Font resources
}

// appearanceGen builds /AP /N form XObjects for text and choice widgets
// from the widget's default appearance string.
type appearanceGen struct {
	doc   *document.Document
	dr    *raw.DictObj // AcroForm /DR /Font
	fonts map[string]*fontInfo
}

func newAppearanceGen(doc *document.Document) *appearanceGen {
	g := &appearanceGen{doc: doc, fonts: make(map[string]*fontInfo)}
	if form, ok := doc.AcroForm(); ok {
		if dr, ok := doc.LookupDict(form, "DR"); ok {
			g.dr, _ = doc.LookupDict(dr, "Font")
		}
	}
	return g
}

func (g *appearanceGen) font(name string) *fontInfo {
	if fi, ok := g.fonts[name]; ok {
		return fi
	}
	fi := &fontInfo{enc: fonts.WinAnsi()}
	res, hasRes := g.dr.Get(name)
	fd, isDict := g.doc.Dict(res)
	if !hasRes || !isDict {
		fi.face = fonts.Standard("Helvetica")
		fd = raw.Dict()
		fd.Set("Type", raw.NameLiteral("Font"))
		fd.Set("Subtype", raw.NameLiteral("Type1"))
		fd.Set("BaseFont", raw.NameLiteral("Helvetica"))
		fd.Set("Encoding", raw.NameLiteral("WinAnsiEncoding"))
		fi.res = fd
		g.fonts[name] = fi
		return fi
	}
	fi.res = res
	base, _ := fd.Name("BaseFont")
	fi.face = fonts.Standard(base)
	if desc, ok := g.doc.LookupDict(fd, "FontDescriptor"); ok {
		if v, ok := g.doc.Lookup(desc, "FontFile2"); ok {
			if s, ok := raw.AsStream(v); ok {
				if data, err := g.doc.DecodeStream(context.Background(), s); err == nil {
					if face, err := fonts.LoadTrueType(base, data); err == nil {
						fi.face = face
					}
				}
			}
		}
	}
	if enc, ok := g.doc.Lookup(fd, "Encoding"); ok {
		switch e := enc.(type) {
		case raw.NameObj:
			fi.enc = fonts.Named(e.Val)
		case *raw.DictObj:
			baseEnc, _ := e.Name("BaseEncoding")
			fi.enc = fonts.Named(baseEnc)
			if diffs, ok := g.doc.Array(get(e, "Differences")); ok {
				fi.enc = fi.enc.WithDifferences(diffs)
			}
		}
	}
	g.fonts[name] = fi
	return fi
}

// layout is the shared geometry of a widget appearance.
type layout struct {
	w, h     float64
	da       defaultAppearance
	font     *fontInfo
	quadding int
	matrix   *coords.Matrix
	bg, bc   []float64
}

func (g *appearanceGen) layout(f Field, wd *raw.DictObj) layout {
	rectObj, _ := g.doc.Lookup(wd, "Rect")
	rect, _ := coords.RectFrom(rectObj)
	l := layout{w: rect.Width(), h: rect.Height(), quadding: f.Quadding}
	daStr := f.DA
	if v, ok := g.doc.Lookup(wd, "DA"); ok {
		if s, ok := raw.AsString(v); ok {
			daStr = string(s)
		}
	}
	l.da = parseDA(daStr)
	if l.da.font == "" {
		l.da.font = "Helv"
	}
	l.font = g.font(l.da.font)
	if v, ok := g.doc.Lookup(wd, "Q"); ok {
		if n, ok := raw.AsInt(v); ok {
			l.quadding = int(n)
		}
	}
	if mk, ok := g.doc.LookupDict(wd, "MK"); ok {
		l.bg, _ = raw.Floats(get(mk, "BG"))
		l.bc, _ = raw.Floats(get(mk, "BC"))
		if r, ok := raw.AsInt(get(mk, "R")); ok {
			var m coords.Matrix
			switch ((r % 360) + 360) % 360 {
			case 90:
				m = coords.Matrix{0, 1, -1, 0, l.h, 0}
			case 180:
				m = coords.Matrix{-1, 0, 0, -1, l.w, l.h}
			case 270:
				m = coords.Matrix{0, -1, 1, 0, 0, l.w}
			}
			if m != (coords.Matrix{}) {
				l.matrix = &m
				if r%180 != 0 {
					l.w, l.h = l.h, l.w
				}
			}
		}
	}
	return l
}

func (l layout) frame(buf *bytes.Buffer) {
	if len(l.bg) > 0 {
		writeColor(buf, l.bg, false)
		fmt.Fprintf(buf, "0 0 %s %s re f\n", fmtNum(l.w), fmtNum(l.h))
	}
	if len(l.bc) > 0 {
		writeColor(buf, l.bc, true)
		fmt.Fprintf(buf, "1 w 0.5 0.5 %s %s re S\n", fmtNum(l.w-1), fmtNum(l.h-1))
	}
}

func (l layout) lineX(width float64) float64 {
	switch l.quadding {
	case 1:
		return (l.w - width) / 2
	case 2:
		return l.w - padding - width
	}
	return padding
}

// text builds the appearance of a text field showing value.
func (g *appearanceGen) text(f Field, wd *raw.DictObj, value string) *raw.StreamObj {
	l := g.layout(f, wd)
	if f.Flags&FlagPassword != 0 {
		value = strings.Repeat("*", len([]rune(value)))
	}
	var body bytes.Buffer
	switch {
	case f.Flags&FlagMultiline != 0:
		size := l.da.size
		if size <= 0 {
			size = maxAutoSize
		}
		g.lines(&body, l, size, wrap(l.font.face, value, size, l.w-2*padding), -1)
	case f.Flags&FlagComb != 0 && maxLen(f) > 0:
		g.comb(&body, l, value, maxLen(f))
	default:
		size := l.da.size
		if size <= 0 {
			size = autoSize(l, value)
		}
		y := (l.h - capHeight*size) / 2
		x := l.lineX(l.font.face.Measure(value, size))
		g.show(&body, l, size, []run{{x, y, value}})
	}
	return g.stream(l, body.Bytes())
}

// choice builds a combo box (selected text) or list box (every option,
// the selection highlighted) appearance.
func (g *appearanceGen) choice(f Field, st ChoiceState, wd *raw.DictObj, selected string) *raw.StreamObj {
	l := g.layout(f, wd)
	idx := -1
	for i, o := range st.Options {
		if o == selected {
			idx = i
		}
	}
	var body bytes.Buffer
	if st.Combo {
		shown := selected
		if idx >= 0 && idx < len(st.Display) {
			shown = st.Display[idx]
		}
		size := l.da.size
		if size <= 0 {
			size = autoSize(l, shown)
		}
		y := (l.h - capHeight*size) / 2
		g.show(&body, l, size, []run{{l.lineX(l.font.face.Measure(shown, size)), y, shown}})
	} else {
		size := l.da.size
		if size <= 0 {
			size = maxAutoSize
		}
		g.lines(&body, l, size, st.Display, idx)
	}
	return g.stream(l, body.Bytes())
}

func maxLen(f Field) int {
	if st, ok := f.State.(TextState); ok {
		return st.MaxLen
	}
	return 0
}

func autoSize(l layout, text string) float64 {
	size := (l.h - 2*padding) / lineSpacing
	if size > maxAutoSize {
		size = maxAutoSize
	}
	if w := l.font.face.Measure(text, 1); w > 0 && w*size > l.w-2*padding {
		size = (l.w - 2*padding) / w
	}
	if size < minAutoSize {
		size = minAutoSize
	}
	return size
}

// lines lays out top-down lines; highlight marks one line as selected.
func (g *appearanceGen) lines(buf *bytes.Buffer, l layout, size float64, lines []string, highlight int) {
	lead := size * lineSpacing
	top := l.h - padding
	if highlight >= 0 && highlight < len(lines) {
		fmt.Fprintf(buf, "0.6 0.75 0.87 rg\n1 %s %s %s re f\n",
			fmtNum(top-lead*float64(highlight+1)), fmtNum(l.w-2), fmtNum(lead))
	}
	runs := make([]run, 0, len(lines))
	for i, line := range lines {
		y := top - lead*float64(i) - size*0.9
		if y < 0 {
			break
		}
		runs = append(runs, run{l.lineX(l.font.face.Measure(line, size)), y, line})
	}
	g.show(buf, l, size, runs)
}

func (g *appearanceGen) comb(buf *bytes.Buffer, l layout, value string, cells int) {
	size := l.da.size
	if size <= 0 {
		size = autoSize(l, "W")
	}
	cell := l.w / float64(cells)
	y := (l.h - capHeight*size) / 2
	var runs []run
	for i, r := range []rune(value) {
		if i >= cells {
			break
		}
		ch := string(r)
		x := float64(i)*cell + (cell-l.font.face.Measure(ch, size))/2
		runs = append(runs, run{x, y, ch})
	}
	g.show(buf, l, size, runs)
}

// run is one positioned piece of text, in appearance space.
type run struct {
	x, y float64
	text string
}

// show writes runs in one text object.
func (g *appearanceGen) show(buf *bytes.Buffer, l layout, size float64, runs []run) {
	buf.WriteString("BT\n")
	fmt.Fprintf(buf, "/%s %s Tf\n", l.da.font, fmtNum(size))
	if len(l.da.color) > 0 {
		writeColor(buf, l.da.color, false)
	} else {
		buf.WriteString("0 g\n")
	}
	for _, r := range runs {
		enc, _ := l.font.enc.Encode(r.text)
		fmt.Fprintf(buf, "1 0 0 1 %s %s Tm\n%s Tj\n", fmtNum(r.x), fmtNum(r.y), literal(enc))
	}
	buf.WriteString("ET\n")
}

func (g *appearanceGen) stream(l layout, body []byte) *raw.StreamObj {
	var buf bytes.Buffer
	buf.WriteString("/Tx BMC\nq\n")
	l.frame(&buf)
	fmt.Fprintf(&buf, "1 1 %s %s re W n\n", fmtNum(l.w-2), fmtNum(l.h-2))
	buf.Write(body)
	buf.WriteString("Q\nEMC\n")

	fontRes := raw.Dict()
	fontRes.Set(l.da.font, l.font.res)
	res := raw.Dict()
	res.Set("Font", fontRes)

	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("XObject"))
	d.Set("Subtype", raw.NameLiteral("Form"))
	d.Set("BBox", coords.Rect{URX: l.w, URY: l.h}.Array())
	d.Set("Resources", res)
	if l.matrix != nil {
		m := *l.matrix
		d.Set("Matrix", raw.NewArray(raw.NumberFloat(m[0]), raw.NumberFloat(m[1]), raw.NumberFloat(m[2]), raw.NumberFloat(m[3]), raw.NumberFloat(m[4]), raw.NumberFloat(m[5])))
	}
	d.Set("Length", raw.NumberInt(int64(buf.Len())))
	return raw.NewStream(d, buf.Bytes())
}

// wrap breaks text into lines no wider than width, honouring explicit
// line breaks.
func wrap(face *fonts.Face, text string, size, width float64) []string {
	var out []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if face.Measure(line+" "+w, size) > width {
				out = append(out, line)
				line = w
				continue
			}
			line += " " + w
		}
		out = append(out, line)
	}
	return out
}
