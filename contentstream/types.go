package contentstream

import "math"

// TextRenderMode is the Tr operand.
type TextRenderMode int

const (
	TextFill TextRenderMode = iota
	TextStroke
	TextFillStroke
	TextInvisible
	TextFillClip
	TextStrokeClip
	TextFillStrokeClip
	TextClip
)

// Fills reports whether glyphs are painted with the fill colour.
func (m TextRenderMode) Fills() bool {
	return m == TextFill || m == TextFillStroke || m == TextFillClip || m == TextFillStrokeClip
}

func (m TextRenderMode) Strokes() bool {
	return m == TextStroke || m == TextFillStroke || m == TextStrokeClip || m == TextFillStrokeClip
}

// LineCap is the J operand.
type LineCap int

const (
	LineCapButt LineCap = iota
	LineCapRound
	LineCapSquare
)

// LineJoin is the j operand.
type LineJoin int

const (
	LineJoinMiter LineJoin = iota
	LineJoinRound
	LineJoinBevel
)

// Path is the current path of a content stream, in whatever space the
// caller chooses to build it.
type Path struct {
	Subpaths []Subpath
}

type Subpath struct {
	Points []PathPoint
	Closed bool
}

// PathPoint is one segment end. Control points apply to PathCurveTo.
type PathPoint struct {
	X, Y                 float64
	Type                 PathPointType
	Control1X, Control1Y float64
	Control2X, Control2Y float64
}

type PathPointType int

const (
	PathMoveTo PathPointType = iota
	PathLineTo
	PathCurveTo
	PathClose
)

func (p *Path) MoveTo(x, y float64) {
	p.Subpaths = append(p.Subpaths, Subpath{Points: []PathPoint{{X: x, Y: y, Type: PathMoveTo}}})
}

// LineTo extends the open subpath. Without a current point it starts one.
func (p *Path) LineTo(x, y float64) {
	if !p.hasCurrent() {
		p.MoveTo(x, y)
		return
	}
	sp := &p.Subpaths[len(p.Subpaths)-1]
	sp.Points = append(sp.Points, PathPoint{X: x, Y: y, Type: PathLineTo})
}

func (p *Path) CurveTo(x1, y1, x2, y2, x3, y3 float64) {
	if !p.hasCurrent() {
		p.MoveTo(x1, y1)
	}
	sp := &p.Subpaths[len(p.Subpaths)-1]
	sp.Points = append(sp.Points, PathPoint{
		X: x3, Y: y3, Type: PathCurveTo,
		Control1X: x1, Control1Y: y1,
		Control2X: x2, Control2Y: y2,
	})
}

// Current returns the current point.
func (p *Path) Current() (x, y float64, ok bool) {
	if !p.hasCurrent() {
		return 0, 0, false
	}
	sp := p.Subpaths[len(p.Subpaths)-1]
	if sp.Closed {
		return sp.Points[0].X, sp.Points[0].Y, true
	}
	last := sp.Points[len(sp.Points)-1]
	return last.X, last.Y, true
}

func (p *Path) Close() {
	if !p.hasCurrent() {
		return
	}
	p.Subpaths[len(p.Subpaths)-1].Closed = true
}

// Rect appends the closed rectangle of the re operator.
func (p *Path) Rect(x, y, w, h float64) {
	p.MoveTo(x, y)
	p.LineTo(x+w, y)
	p.LineTo(x+w, y+h)
	p.LineTo(x, y+h)
	p.Close()
}

func (p *Path) Empty() bool { return len(p.Subpaths) == 0 }

func (p *Path) Reset() { p.Subpaths = p.Subpaths[:0] }

// Bounds returns the box of all points, control points included.
func (p *Path) Bounds() (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	add := func(x, y float64) {
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	for _, sp := range p.Subpaths {
		for _, pt := range sp.Points {
			add(pt.X, pt.Y)
			if pt.Type == PathCurveTo {
				add(pt.Control1X, pt.Control1Y)
				add(pt.Control2X, pt.Control2Y)
			}
		}
	}
	if minX > maxX {
		return 0, 0, 0, 0
	}
	return
}

func (p *Path) hasCurrent() bool {
	return len(p.Subpaths) > 0 && len(p.Subpaths[len(p.Subpaths)-1].Points) > 0
}
