package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/wudi/formkit/contentstream"
	"github.com/wudi/formkit/coords"
	"github.com/wudi/formkit/document"
	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/observability"
	"github.com/wudi/formkit/pdferr"
	"github.com/wudi/formkit/recovery"
)

// interp executes content streams against one canvas.
type interp struct {
	r   *Renderer
	doc *document.Document
	img *image.RGBA

	gs          gstate
	stack       []gstate
	path        contentstream.Path
	pendingClip bool
	tm, tlm     coords.Matrix

	fonts    map[*raw.DictObj]*pdfFont
	fallback *pdfFont
	forms    map[*raw.StreamObj]bool
	warnings []pdferr.Warning
	seen     map[pdferr.Warning]bool
}

var textWithoutFont = pdferr.Warning{Kind: pdferr.MalformedSyntax, Subject: "Tj", Message: "text shown before a font was selected"}

func newInterp(r *Renderer, img *image.RGBA) *interp {
	return &interp{
		r:     r,
		doc:   r.doc,
		img:   img,
		tm:    coords.Identity(),
		tlm:   coords.Identity(),
		fonts: make(map[*raw.DictObj]*pdfFont),
		forms: make(map[*raw.StreamObj]bool),
		seen:  make(map[pdferr.Warning]bool),
	}
}

func (it *interp) warn(w pdferr.Warning) {
	if it.seen[w] {
		return
	}
	it.seen[w] = true
	it.warnings = append(it.warnings, w)
	it.r.log.Warn("render", observability.String("kind", w.Kind.String()), observability.String("subject", w.Subject), observability.String("message", w.Message))
}

func (it *interp) warnOnce(w pdferr.Warning) { it.warn(w) }

func (it *interp) unsupported(op string) {
	it.warn(pdferr.Warning{Kind: pdferr.UnsupportedOperator, Subject: op, Message: "operator skipped"})
}

func (it *interp) badOperands(op contentstream.Operation) {
	it.warn(pdferr.Warning{Kind: pdferr.MalformedSyntax, Subject: op.Operator, Message: fmt.Sprintf("%d unusable operands", len(op.Operands))})
}

// run executes data with the current graphics state. Only context errors
// are returned; everything else becomes a warning.
func (it *interp) run(ctx context.Context, data []byte, res *raw.DictObj, ctm coords.Matrix, depth int) error {
	if depth == 0 {
		it.gs = newState(ctm, it.img.Bounds())
		it.stack = it.stack[:0]
	}
	p := contentstream.NewParser(data, contentstream.Config{
		Recovery:     recovery.NewLenientStrategy(),
		MaxArraySize: it.doc.Limits().MaxArraySize,
	})
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		op, err := p.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			it.warn(pdferr.WarningFrom("content", err))
			return nil
		}
		if err := it.exec(ctx, op, res, depth); err != nil {
			return err
		}
	}
}

func (it *interp) exec(ctx context.Context, op contentstream.Operation, res *raw.DictObj, depth int) error {
	g := &it.gs
	nums := func(n int) ([]float64, bool) {
		f, ok := contentstream.Floats(op.Operands, n)
		if !ok {
			it.badOperands(op)
		}
		return f, ok
	}
	switch op.Operator {
	case "q":
		it.stack = append(it.stack, g.clone())
	case "Q":
		if n := len(it.stack); n > 0 {
			it.gs = it.stack[n-1]
			it.stack = it.stack[:n-1]
		}
	case "cm":
		if f, ok := nums(6); ok {
			g.ctm = coords.Matrix{f[0], f[1], f[2], f[3], f[4], f[5]}.Multiply(g.ctm)
		}
	case "w":
		if f, ok := nums(1); ok {
			g.lineWidth = f[0]
		}
	case "J":
		if f, ok := nums(1); ok {
			g.cap = contentstream.LineCap(f[0])
		}
	case "j":
		if f, ok := nums(1); ok {
			g.join = contentstream.LineJoin(f[0])
		}
	case "M":
		if f, ok := nums(1); ok {
			g.miterLimit = f[0]
		}
	case "d":
		if len(op.Operands) != 2 {
			it.badOperands(op)
			break
		}
		it.setDash(op.Operands[0], op.Operands[1])
	case "ri", "i":
	case "gs":
		it.extGState(res, op)

	case "m", "l":
		if f, ok := nums(2); ok {
			p := g.ctm.Transform(coords.Point{X: f[0], Y: f[1]})
			if op.Operator == "m" {
				it.path.MoveTo(p.X, p.Y)
			} else {
				it.path.LineTo(p.X, p.Y)
			}
		}
	case "c":
		if f, ok := nums(6); ok {
			it.curve(g.ctm.Transform(coords.Point{X: f[0], Y: f[1]}), g.ctm.Transform(coords.Point{X: f[2], Y: f[3]}), g.ctm.Transform(coords.Point{X: f[4], Y: f[5]}))
		}
	case "v":
		if f, ok := nums(4); ok {
			x, y, _ := it.path.Current()
			it.curve(coords.Point{X: x, Y: y}, g.ctm.Transform(coords.Point{X: f[0], Y: f[1]}), g.ctm.Transform(coords.Point{X: f[2], Y: f[3]}))
		}
	case "y":
		if f, ok := nums(4); ok {
			end := g.ctm.Transform(coords.Point{X: f[2], Y: f[3]})
			it.curve(g.ctm.Transform(coords.Point{X: f[0], Y: f[1]}), end, end)
		}
	case "h":
		it.path.Close()
	case "re":
		if f, ok := nums(4); ok {
			pts := [4]coords.Point{
				g.ctm.Transform(coords.Point{X: f[0], Y: f[1]}),
				g.ctm.Transform(coords.Point{X: f[0] + f[2], Y: f[1]}),
				g.ctm.Transform(coords.Point{X: f[0] + f[2], Y: f[1] + f[3]}),
				g.ctm.Transform(coords.Point{X: f[0], Y: f[1] + f[3]}),
			}
			it.path.MoveTo(pts[0].X, pts[0].Y)
			for _, p := range pts[1:] {
				it.path.LineTo(p.X, p.Y)
			}
			it.path.Close()
		}

	case "S":
		it.strokePath(&it.path)
		it.endPath()
	case "s":
		it.path.Close()
		it.strokePath(&it.path)
		it.endPath()
	case "f", "F", "f*":
		it.fillPath(&it.path)
		it.endPath()
	case "B", "B*":
		it.fillPath(&it.path)
		it.strokePath(&it.path)
		it.endPath()
	case "b", "b*":
		it.path.Close()
		it.fillPath(&it.path)
		it.strokePath(&it.path)
		it.endPath()
	case "n":
		it.endPath()
	case "W", "W*":
		it.pendingClip = true

	case "g", "rg", "k":
		if f, ok := nums(map[string]int{"g": 1, "rg": 3, "k": 4}[op.Operator]); ok {
			g.fill, _ = colorFrom(f)
			g.fillN = len(f)
		}
	case "G", "RG", "K":
		if f, ok := nums(map[string]int{"G": 1, "RG": 3, "K": 4}[op.Operator]); ok {
			g.stroke, _ = colorFrom(f)
			g.strokeN = len(f)
		}
	case "cs", "CS":
		name, ok := operandName(op.Operands)
		if !ok {
			it.badOperands(op)
			break
		}
		n := it.colorSpaceComponents(res, name)
		if op.Operator == "cs" {
			g.fillN, g.fill = n, initialColor(n)
		} else {
			g.strokeN, g.stroke = n, initialColor(n)
		}
	case "sc", "scn", "SC", "SCN":
		stroke := op.Operator[0] == 'S'
		n := g.fillN
		if stroke {
			n = g.strokeN
		}
		c, ok := it.componentColor(op.Operands, n)
		if !ok {
			it.unsupported(op.Operator + " pattern")
			break
		}
		if stroke {
			g.stroke = c
		} else {
			g.fill = c
		}

	case "BT":
		it.tm, it.tlm = coords.Identity(), coords.Identity()
	case "ET":
	case "Tf":
		if len(op.Operands) != 2 {
			it.badOperands(op)
			break
		}
		name, _ := raw.AsName(op.Operands[0])
		size, ok := raw.AsFloat(op.Operands[1])
		if !ok {
			it.badOperands(op)
			break
		}
		g.text.size = size
		g.text.fontName = name
		g.text.font = it.font(ctx, res, name)
	case "Td", "TD":
		if f, ok := nums(2); ok {
			if op.Operator == "TD" {
				g.text.leading = -f[1]
			}
			it.tlm = coords.Translate(f[0], f[1]).Multiply(it.tlm)
			it.tm = it.tlm
		}
	case "Tm":
		if f, ok := nums(6); ok {
			it.tlm = coords.Matrix{f[0], f[1], f[2], f[3], f[4], f[5]}
			it.tm = it.tlm
		}
	case "T*":
		it.nextLine()
	case "Tc", "Tw", "Tz", "TL", "Ts", "Tr":
		f, ok := nums(1)
		if !ok {
			break
		}
		switch op.Operator {
		case "Tc":
			g.text.charSp = f[0]
		case "Tw":
			g.text.wordSp = f[0]
		case "Tz":
			g.text.hscale = f[0] / 100
		case "TL":
			g.text.leading = f[0]
		case "Ts":
			g.text.rise = f[0]
		case "Tr":
			g.text.mode = contentstream.TextRenderMode(f[0])
		}
	case "Tj", "'", "\"":
		if op.Operator == "\"" && len(op.Operands) == 3 {
			g.text.wordSp, _ = raw.AsFloat(op.Operands[0])
			g.text.charSp, _ = raw.AsFloat(op.Operands[1])
			op.Operands = op.Operands[2:]
		}
		if len(op.Operands) != 1 {
			it.badOperands(op)
			break
		}
		s, ok := raw.AsString(op.Operands[0])
		if !ok {
			it.badOperands(op)
			break
		}
		if op.Operator != "Tj" {
			it.nextLine()
		}
		it.showText(s)
	case "TJ":
		arr, ok := raw.AsArray(firstOperand(op.Operands))
		if !ok {
			it.badOperands(op)
			break
		}
		for _, item := range arr.Items {
			if s, ok := raw.AsString(item); ok {
				it.showText(s)
			} else if n, ok := raw.AsFloat(item); ok {
				it.adjust(n)
			}
		}

	case "Do":
		name, ok := operandName(op.Operands)
		if !ok {
			it.badOperands(op)
			break
		}
		return it.xobject(ctx, res, name, depth)
	case "BI":
		if op.Image != nil {
			it.inlineImage(ctx, res, op.Image)
		}

	case "BMC", "BDC", "EMC", "MP", "DP", "BX", "EX":
	default:
		it.unsupported(op.Operator)
	}
	return nil
}

func (it *interp) curve(c1, c2, end coords.Point) {
	it.path.CurveTo(c1.X, c1.Y, c2.X, c2.Y, end.X, end.Y)
}

// endPath applies a pending W/W* and starts a new path. Clipping uses the
// path's bounding box.
func (it *interp) endPath() {
	if it.pendingClip {
		if !it.path.Empty() {
			it.gs.clip = it.gs.clip.Intersect(rectBounds(&it.path))
		}
		it.pendingClip = false
	}
	it.path.Reset()
}

func (it *interp) nextLine() {
	it.tlm = coords.Translate(0, -it.gs.text.leading).Multiply(it.tlm)
	it.tm = it.tlm
}

func (it *interp) setDash(arrObj, phaseObj raw.Object) {
	arr, ok := raw.AsArray(arrObj)
	phase, ok2 := raw.AsFloat(phaseObj)
	if !ok || !ok2 {
		return
	}
	it.gs.dash = it.gs.dash[:0]
	for _, item := range arr.Items {
		if v, ok := raw.AsFloat(item); ok {
			it.gs.dash = append(it.gs.dash, v)
		}
	}
	it.gs.dashPhase = phase
}

func (it *interp) extGState(res *raw.DictObj, op contentstream.Operation) {
	name, ok := operandName(op.Operands)
	if !ok {
		it.badOperands(op)
		return
	}
	gsd, ok := it.resource(res, "ExtGState", name)
	if !ok {
		it.warn(pdferr.Warning{Kind: pdferr.BrokenReference, Subject: "gs", Message: "missing ExtGState " + name})
		return
	}
	g := &it.gs
	for _, key := range gsd.Keys() {
		v, _ := it.doc.Lookup(gsd, key)
		switch key {
		case "LW":
			g.lineWidth, _ = raw.AsFloat(v)
		case "LC":
			lc, _ := raw.AsInt(v)
			g.cap = contentstream.LineCap(lc)
		case "LJ":
			lj, _ := raw.AsInt(v)
			g.join = contentstream.LineJoin(lj)
		case "ML":
			g.miterLimit, _ = raw.AsFloat(v)
		case "D":
			if arr, ok := it.doc.Array(v); ok && arr.Len() == 2 {
				it.setDash(arr.Items[0], arr.Items[1])
			}
		case "CA":
			g.strokeAlpha, _ = raw.AsFloat(v)
		case "ca":
			g.fillAlpha, _ = raw.AsFloat(v)
		}
	}
}

// colorSpaceComponents returns the component count of a colour space
// name. Separation and DeviceN report -1: their single tint darkens
// towards black.
func (it *interp) colorSpaceComponents(res *raw.DictObj, name string) int {
	switch name {
	case "DeviceGray", "CalGray", "G":
		return 1
	case "DeviceRGB", "CalRGB", "Lab", "RGB":
		return 3
	case "DeviceCMYK", "CMYK":
		return 4
	case "Pattern":
		return 0
	}
	v, ok := it.resourceObject(res, "ColorSpace", name)
	if !ok {
		it.warn(pdferr.Warning{Kind: pdferr.BrokenReference, Subject: "cs", Message: "missing colour space " + name})
		return 1
	}
	return it.spaceComponents(res, v)
}

func (it *interp) spaceComponents(res *raw.DictObj, v raw.Object) int {
	if name, ok := raw.AsName(v); ok {
		return it.colorSpaceComponents(res, name)
	}
	arr, ok := it.doc.Array(v)
	if !ok || arr.Len() == 0 {
		return 1
	}
	family, _ := raw.AsName(arr.Items[0])
	switch family {
	case "ICCBased":
		if arr.Len() > 1 {
			if o, err := it.doc.Deref(arr.Items[1]); err == nil {
				if s, ok := raw.AsStream(o); ok {
					if n, ok := lookupInt(it.doc, s.Dict, "N"); ok {
						return int(n)
					}
				}
			}
		}
		return 3
	case "Separation", "DeviceN":
		return -1
	case "Pattern":
		return 0
	case "Indexed", "I":
		return 1
	}
	return it.colorSpaceComponents(res, family)
}

// componentColor converts sc/scn operands for a space with n components.
func (it *interp) componentColor(operands []raw.Object, n int) (color.NRGBA, bool) {
	var comps []float64
	for _, o := range operands {
		if f, ok := raw.AsFloat(o); ok {
			comps = append(comps, f)
		}
	}
	if n < 0 && len(comps) > 0 {
		t := 1 - comps[0]
		return colorFrom([]float64{t})
	}
	if len(comps) == 0 {
		return color.NRGBA{}, false
	}
	return colorFrom(comps)
}

func (it *interp) font(ctx context.Context, res *raw.DictObj, name string) *pdfFont {
	fd, ok := it.resource(res, "Font", name)
	if !ok {
		it.warn(pdferr.Warning{Kind: pdferr.BrokenReference, Subject: "Tf", Message: "missing font " + name})
		return it.defaultFont()
	}
	if f, ok := it.fonts[fd]; ok {
		return f
	}
	f := loadFont(ctx, it.doc, fd)
	it.fonts[fd] = f
	return f
}

func (it *interp) resourceObject(res *raw.DictObj, category, name string) (raw.Object, bool) {
	if res == nil {
		return nil, false
	}
	cat, ok := it.doc.LookupDict(res, category)
	if !ok {
		return nil, false
	}
	return it.doc.Lookup(cat, name)
}

func (it *interp) resource(res *raw.DictObj, category, name string) (*raw.DictObj, bool) {
	v, ok := it.resourceObject(res, category, name)
	if !ok {
		return nil, false
	}
	return raw.AsDict(v)
}

func operandName(ops []raw.Object) (string, bool) {
	if len(ops) == 0 {
		return "", false
	}
	return raw.AsName(ops[len(ops)-1])
}

func firstOperand(ops []raw.Object) raw.Object {
	if len(ops) == 0 {
		return nil
	}
	return ops[0]
}
