// Package coords holds the affine matrices and rectangles shared by the
// appearance generator and the renderer.
package coords

import (
	"errors"
	"math"

	"github.com/wudi/formkit/ir/raw"
)

// Matrix is a PDF transformation [a b c d e f]. Points are row vectors, so
// m.Multiply(o) applies m first and o second.
type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

type Point struct{ X, Y float64 }

func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

// TransformVector ignores the translation part.
func (m Matrix) TransformVector(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y, Y: m[1]*p.X + m[3]*p.Y}
}

func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, errors.New("matrix singular")
	}
	return Matrix{
		m[3] / det, -m[1] / det,
		-m[2] / det, m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det, (m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

// Expansion is the mean scale factor, used for line widths.
func (m Matrix) Expansion() float64 {
	return math.Sqrt(math.Abs(m[0]*m[3] - m[1]*m[2]))
}

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }
func Scale(sx, sy float64) Matrix     { return Matrix{sx, 0, 0, sy, 0, 0} }

// Rotate builds a counter-clockwise rotation by angle radians.
func Rotate(angle float64) Matrix {
	c, s := math.Cos(angle), math.Sin(angle)
	return Matrix{c, s, -s, c, 0, 0}
}

// MatrixFrom reads a six-number array; ok is false for anything else.
func MatrixFrom(o raw.Object) (Matrix, bool) {
	fs, ok := raw.Floats(o)
	if !ok || len(fs) != 6 {
		return Identity(), false
	}
	return Matrix{fs[0], fs[1], fs[2], fs[3], fs[4], fs[5]}, true
}

// Rect is a normalised rectangle with LLX <= URX and LLY <= URY.
type Rect struct {
	LLX, LLY, URX, URY float64
}

func NewRect(x1, y1, x2, y2 float64) Rect {
	return Rect{math.Min(x1, x2), math.Min(y1, y2), math.Max(x1, x2), math.Max(y1, y2)}
}

// RectFrom reads a four-number array such as /MediaBox or /Rect.
func RectFrom(o raw.Object) (Rect, bool) {
	fs, ok := raw.Floats(o)
	if !ok || len(fs) != 4 {
		return Rect{}, false
	}
	return NewRect(fs[0], fs[1], fs[2], fs[3]), true
}

func (r Rect) Width() float64  { return r.URX - r.LLX }
func (r Rect) Height() float64 { return r.URY - r.LLY }
func (r Rect) Empty() bool     { return r.Width() <= 0 || r.Height() <= 0 }

func (r Rect) Intersect(o Rect) Rect {
	out := Rect{math.Max(r.LLX, o.LLX), math.Max(r.LLY, o.LLY), math.Min(r.URX, o.URX), math.Min(r.URY, o.URY)}
	if out.Empty() {
		return Rect{}
	}
	return out
}

// Transform returns the bounding box of the transformed corners.
func (r Rect) Transform(m Matrix) Rect {
	pts := [4]Point{
		m.Transform(Point{r.LLX, r.LLY}),
		m.Transform(Point{r.URX, r.LLY}),
		m.Transform(Point{r.URX, r.URY}),
		m.Transform(Point{r.LLX, r.URY}),
	}
	out := Rect{pts[0].X, pts[0].Y, pts[0].X, pts[0].Y}
	for _, p := range pts[1:] {
		out.LLX = math.Min(out.LLX, p.X)
		out.LLY = math.Min(out.LLY, p.Y)
		out.URX = math.Max(out.URX, p.X)
		out.URY = math.Max(out.URY, p.Y)
	}
	return out
}

// Array encodes the rectangle as a PDF array.
func (r Rect) Array() *raw.ArrayObj {
	return raw.NewArray(num(r.LLX), num(r.LLY), num(r.URX), num(r.URY))
}

func num(f float64) raw.NumberObj {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return raw.NumberInt(int64(f))
	}
	return raw.NumberFloat(f)
}
