package render

import (
	"image"
	"image/color"

	"github.com/wudi/formkit/contentstream"
	"github.com/wudi/formkit/coords"
)

// gstate is the part of the graphics state saved by q and restored by Q.
type gstate struct {
	ctm         coords.Matrix
	fill        color.NRGBA
	stroke      color.NRGBA
	fillAlpha   float64
	strokeAlpha float64
	fillN       int // components of the fill colour space
	strokeN     int
	lineWidth   float64
	miterLimit  float64
	cap         contentstream.LineCap
	join        contentstream.LineJoin
	dash        []float64
	dashPhase   float64
	clip        image.Rectangle
	text        textState
}

type textState struct {
	font     *pdfFont
	size     float64
	charSp   float64
	wordSp   float64
	hscale   float64
	leading  float64
	rise     float64
	mode     contentstream.TextRenderMode
	fontName string
}

func newState(ctm coords.Matrix, clip image.Rectangle) gstate {
	return gstate{
		ctm:         ctm,
		fill:        color.NRGBA{A: 255},
		stroke:      color.NRGBA{A: 255},
		fillAlpha:   1,
		strokeAlpha: 1,
		fillN:       1,
		strokeN:     1,
		lineWidth:   1,
		miterLimit:  10,
		clip:        clip,
		text:        textState{hscale: 1},
	}
}

func (g gstate) clone() gstate {
	g.dash = append([]float64(nil), g.dash...)
	return g
}

func (g *gstate) fillColor() color.NRGBA   { return withAlpha(g.fill, g.fillAlpha) }
func (g *gstate) strokeColor() color.NRGBA { return withAlpha(g.stroke, g.strokeAlpha) }

func withAlpha(c color.NRGBA, a float64) color.NRGBA {
	c.A = uint8(clamp01(a)*255 + 0.5)
	return c
}

// colorFrom converts operands of g, rg, k, sc or scn. The number of
// components picks the device space; other counts yield ok=false.
func colorFrom(comps []float64) (color.NRGBA, bool) {
	switch len(comps) {
	case 1:
		v := byte255(comps[0])
		return color.NRGBA{R: v, G: v, B: v, A: 255}, true
	case 3:
		return color.NRGBA{R: byte255(comps[0]), G: byte255(comps[1]), B: byte255(comps[2]), A: 255}, true
	case 4:
		r, g, b := color.CMYKToRGB(byte255(comps[0]), byte255(comps[1]), byte255(comps[2]), byte255(comps[3]))
		return color.NRGBA{R: r, G: g, B: b, A: 255}, true
	}
	return color.NRGBA{}, false
}

// initialColor is the colour cs and CS select: black in every device space.
func initialColor(n int) color.NRGBA {
	if n == 4 {
		c, _ := colorFrom([]float64{0, 0, 0, 1})
		return c
	}
	return color.NRGBA{A: 255}
}

func byte255(v float64) uint8 { return uint8(clamp01(v)*255 + 0.5) }

func clamp01(v float64) float64 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 1:
		return 1
	}
	return v
}
