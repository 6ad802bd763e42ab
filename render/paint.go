package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/wudi/formkit/contentstream"
	"github.com/wudi/formkit/coords"
)

// polyline is a flattened subpath in device space.
type polyline struct {
	pts    []coords.Point
	closed bool
}

// flatten turns a device-space path into polylines, subdividing curves.
func flatten(p *contentstream.Path) []polyline {
	out := make([]polyline, 0, len(p.Subpaths))
	for _, sp := range p.Subpaths {
		if len(sp.Points) == 0 {
			continue
		}
		pl := polyline{closed: sp.Closed}
		cur := coords.Point{X: sp.Points[0].X, Y: sp.Points[0].Y}
		pl.pts = append(pl.pts, cur)
		for _, pt := range sp.Points[1:] {
			end := coords.Point{X: pt.X, Y: pt.Y}
			switch pt.Type {
			case contentstream.PathCurveTo:
				c1 := coords.Point{X: pt.Control1X, Y: pt.Control1Y}
				c2 := coords.Point{X: pt.Control2X, Y: pt.Control2Y}
				n := curveSteps(cur, c1, c2, end)
				for i := 1; i <= n; i++ {
					pl.pts = append(pl.pts, cubic(cur, c1, c2, end, float64(i)/float64(n)))
				}
			case contentstream.PathClose:
				pl.closed = true
				continue
			default:
				pl.pts = append(pl.pts, end)
			}
			cur = end
		}
		out = append(out, pl)
	}
	return out
}

func curveSteps(p0, p1, p2, p3 coords.Point) int {
	l := dist(p0, p1) + dist(p1, p2) + dist(p2, p3)
	n := int(math.Ceil(math.Sqrt(l) * 1.5))
	switch {
	case n < 2:
		return 2
	case n > 100:
		return 100
	}
	return n
}

func cubic(p0, p1, p2, p3 coords.Point, t float64) coords.Point {
	u := 1 - t
	a, b, c, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
	return coords.Point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}

func dist(a, b coords.Point) float64 { return math.Hypot(b.X-a.X, b.Y-a.Y) }

// fillPolygons paints closed polygons with c inside the clip rectangle.
// Overlaps follow the nonzero winding rule.
func (it *interp) fillPolygons(polys [][]coords.Point, c color.NRGBA) {
	if c.A == 0 || len(polys) == 0 {
		return
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, poly := range polys {
		for _, p := range poly {
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
	}
	if minX > maxX || math.IsNaN(minX+maxX+minY+maxY) {
		return
	}
	bounds := image.Rect(floorInt(minX), floorInt(minY), ceilInt(maxX), ceilInt(maxY)).Intersect(it.gs.clip)
	if bounds.Empty() {
		return
	}

	z := vector.NewRasterizer(bounds.Dx(), bounds.Dy())
	ox, oy := float64(bounds.Min.X), float64(bounds.Min.Y)
	drawn := false
	for _, poly := range polys {
		poly = clipPolygon(poly, bounds)
		if len(poly) < 3 {
			continue
		}
		z.MoveTo(float32(poly[0].X-ox), float32(poly[0].Y-oy))
		for _, p := range poly[1:] {
			z.LineTo(float32(p.X-ox), float32(p.Y-oy))
		}
		z.ClosePath()
		drawn = true
	}
	if !drawn {
		return
	}
	mask := image.NewAlpha(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	draw.DrawMask(it.img, bounds, image.NewUniform(c), image.Point{}, mask, image.Point{}, draw.Over)
}

func (it *interp) fillPath(p *contentstream.Path) {
	lines := flatten(p)
	polys := make([][]coords.Point, 0, len(lines))
	for _, l := range lines {
		polys = append(polys, l.pts)
	}
	it.fillPolygons(polys, it.gs.fillColor())
}

// strokePath expands the path outline into polygons of the current line
// width and fills them with the stroke colour.
func (it *interp) strokePath(p *contentstream.Path) {
	g := &it.gs
	scale := g.ctm.Expansion()
	half := g.lineWidth * scale / 2
	if half < 0.5 {
		half = 0.5
	}
	lines := flatten(p)
	if len(g.dash) > 0 {
		dash := make([]float64, len(g.dash))
		for i, d := range g.dash {
			dash[i] = d * scale
		}
		lines = dashLines(lines, dash, g.dashPhase*scale)
	}
	var polys [][]coords.Point
	for _, l := range lines {
		polys = append(polys, strokeLine(l, half, g.cap, g.join, g.miterLimit)...)
	}
	for _, poly := range polys {
		if signedArea(poly) < 0 {
			reverse(poly)
		}
	}
	it.fillPolygons(polys, g.strokeColor())
}

func strokeLine(l polyline, half float64, lc contentstream.LineCap, lj contentstream.LineJoin, miterLimit float64) [][]coords.Point {
	pts := dedupe(l.pts)
	if l.closed && len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	if len(pts) == 1 {
		switch lc {
		case contentstream.LineCapRound:
			return [][]coords.Point{disc(pts[0], half)}
		case contentstream.LineCapSquare:
			p := pts[0]
			return [][]coords.Point{{{X: p.X - half, Y: p.Y - half}, {X: p.X + half, Y: p.Y - half}, {X: p.X + half, Y: p.Y + half}, {X: p.X - half, Y: p.Y + half}}}
		}
		return nil
	}

	closed := l.closed && len(pts) > 2
	nseg := len(pts) - 1
	if closed {
		nseg = len(pts)
	}
	var out [][]coords.Point
	for i := 0; i < nseg; i++ {
		a, b := pts[i], pts[(i+1)%len(pts)]
		d := unit(a, b)
		if !closed && lc == contentstream.LineCapSquare {
			if i == 0 {
				a = coords.Point{X: a.X - d.X*half, Y: a.Y - d.Y*half}
			}
			if i == nseg-1 {
				b = coords.Point{X: b.X + d.X*half, Y: b.Y + d.Y*half}
			}
		}
		n := coords.Point{X: -d.Y * half, Y: d.X * half}
		out = append(out, []coords.Point{
			{X: a.X + n.X, Y: a.Y + n.Y},
			{X: b.X + n.X, Y: b.Y + n.Y},
			{X: b.X - n.X, Y: b.Y - n.Y},
			{X: a.X - n.X, Y: a.Y - n.Y},
		})
	}

	for i := 0; i < len(pts); i++ {
		if !closed && (i == 0 || i == len(pts)-1) {
			continue
		}
		prev := pts[(i-1+len(pts))%len(pts)]
		next := pts[(i+1)%len(pts)]
		if j := joinPolygon(prev, pts[i], next, half, lj, miterLimit); j != nil {
			out = append(out, j)
		}
	}
	if !closed && lc == contentstream.LineCapRound {
		out = append(out, disc(pts[0], half), disc(pts[len(pts)-1], half))
	}
	return out
}

func joinPolygon(prev, v, next coords.Point, half float64, lj contentstream.LineJoin, miterLimit float64) []coords.Point {
	d1, d2 := unit(prev, v), unit(v, next)
	cross := d1.X*d2.Y - d1.Y*d2.X
	if math.Abs(cross) < 1e-9 && d1.X*d2.X+d1.Y*d2.Y > 0 {
		return nil
	}
	if lj == contentstream.LineJoinRound {
		return disc(v, half)
	}
	// Outer normals of both segments.
	sign := 1.0
	if cross > 0 {
		sign = -1
	}
	n1 := coords.Point{X: -d1.Y * sign, Y: d1.X * sign}
	n2 := coords.Point{X: -d2.Y * sign, Y: d2.X * sign}
	o1 := coords.Point{X: v.X + n1.X*half, Y: v.Y + n1.Y*half}
	o2 := coords.Point{X: v.X + n2.X*half, Y: v.Y + n2.Y*half}
	if lj == contentstream.LineJoinMiter {
		cosHalf := math.Sqrt(math.Max(0, (1+n1.X*n2.X+n1.Y*n2.Y)/2))
		if cosHalf > 1e-9 && 1/cosHalf <= miterLimit {
			mx, my := n1.X+n2.X, n1.Y+n2.Y
			ml := math.Hypot(mx, my)
			m := coords.Point{X: v.X + mx/ml*half/cosHalf, Y: v.Y + my/ml*half/cosHalf}
			return []coords.Point{v, o1, m, o2}
		}
	}
	return []coords.Point{v, o1, o2}
}

// dashLines cuts polylines into the "on" pieces of a dash pattern given in
// device units.
func dashLines(lines []polyline, dash []float64, phase float64) []polyline {
	total := 0.0
	for _, d := range dash {
		if d < 0 {
			return lines
		}
		total += d
	}
	if total <= 0 {
		return lines
	}
	var out []polyline
	for _, l := range lines {
		pts := l.pts
		if l.closed && len(pts) > 1 {
			pts = append(append([]coords.Point(nil), pts...), pts[0])
		}
		idx, left := 0, 0.0
		pos := math.Mod(phase, total)
		for left = dash[0]; pos >= left; {
			pos -= left
			idx = (idx + 1) % len(dash)
			left = dash[idx]
		}
		left -= pos
		var cur []coords.Point
		on := idx%2 == 0
		if on {
			cur = []coords.Point{pts[0]}
		}
		for i := 1; i < len(pts); i++ {
			a, b := pts[i-1], pts[i]
			seg := dist(a, b)
			t := 0.0
			for seg-t > left {
				t += left
				p := lerp(a, b, t/seg)
				if on {
					out = append(out, polyline{pts: append(cur, p)})
					cur = nil
				} else {
					cur = []coords.Point{p}
				}
				on = !on
				idx = (idx + 1) % len(dash)
				left = dash[idx]
			}
			left -= seg - t
			if on {
				cur = append(cur, b)
			}
		}
		if on && len(cur) > 1 {
			out = append(out, polyline{pts: cur})
		}
	}
	return out
}

// clipPolygon clips a closed polygon against r (Sutherland-Hodgman).
func clipPolygon(poly []coords.Point, r image.Rectangle) []coords.Point {
	type edge struct {
		inside func(coords.Point) bool
		cut    func(a, b coords.Point) coords.Point
	}
	x0, y0, x1, y1 := float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y)
	atX := func(x float64) func(a, b coords.Point) coords.Point {
		return func(a, b coords.Point) coords.Point { return lerp(a, b, (x-a.X)/(b.X-a.X)) }
	}
	atY := func(y float64) func(a, b coords.Point) coords.Point {
		return func(a, b coords.Point) coords.Point { return lerp(a, b, (y-a.Y)/(b.Y-a.Y)) }
	}
	edges := [4]edge{
		{func(p coords.Point) bool { return p.X >= x0 }, atX(x0)},
		{func(p coords.Point) bool { return p.X <= x1 }, atX(x1)},
		{func(p coords.Point) bool { return p.Y >= y0 }, atY(y0)},
		{func(p coords.Point) bool { return p.Y <= y1 }, atY(y1)},
	}
	out := poly
	for _, e := range edges {
		if len(out) == 0 {
			return nil
		}
		in := out
		out = make([]coords.Point, 0, len(in)+4)
		prev := in[len(in)-1]
		for _, p := range in {
			switch {
			case e.inside(p) && e.inside(prev):
				out = append(out, p)
			case e.inside(p):
				out = append(out, e.cut(prev, p), p)
			case e.inside(prev):
				out = append(out, e.cut(prev, p))
			}
			prev = p
		}
	}
	return out
}

func disc(c coords.Point, r float64) []coords.Point {
	n := int(math.Ceil(r * 2))
	if n < 8 {
		n = 8
	} else if n > 64 {
		n = 64
	}
	pts := make([]coords.Point, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = coords.Point{X: c.X + r*math.Cos(a), Y: c.Y + r*math.Sin(a)}
	}
	return pts
}

func signedArea(poly []coords.Point) float64 {
	var a float64
	for i := range poly {
		p, q := poly[i], poly[(i+1)%len(poly)]
		a += p.X*q.Y - q.X*p.Y
	}
	return a / 2
}

func reverse(poly []coords.Point) {
	for i, j := 0, len(poly)-1; i < j; i, j = i+1, j-1 {
		poly[i], poly[j] = poly[j], poly[i]
	}
}

func dedupe(pts []coords.Point) []coords.Point {
	out := make([]coords.Point, 0, len(pts))
	for _, p := range pts {
		if len(out) > 0 && dist(out[len(out)-1], p) < 1e-9 {
			continue
		}
		out = append(out, p)
	}
	return out
}

func unit(a, b coords.Point) coords.Point {
	l := dist(a, b)
	if l == 0 {
		return coords.Point{X: 1}
	}
	return coords.Point{X: (b.X - a.X) / l, Y: (b.Y - a.Y) / l}
}

func lerp(a, b coords.Point, t float64) coords.Point {
	return coords.Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

// rectBounds is the pixel rectangle covering a device-space path, rounded
// to the nearest pixel edges.
func rectBounds(p *contentstream.Path) image.Rectangle {
	minX, minY, maxX, maxY := p.Bounds()
	return image.Rect(int(math.Round(minX)), int(math.Round(minY)), int(math.Round(maxX)), int(math.Round(maxY)))
}

func floorInt(v float64) int { return int(math.Max(math.Floor(v), -1<<30)) }
func ceilInt(v float64) int  { return int(math.Min(math.Ceil(v), 1<<30)) }
