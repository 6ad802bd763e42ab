package render

import (
	"image"
	"math"
	"testing"

	"github.com/wudi/formkit/contentstream"
	"github.com/wudi/formkit/coords"
)

func TestClipPolygon(t *testing.T) {
	square := []coords.Point{{X: -10, Y: -10}, {X: 10, Y: -10}, {X: 10, Y: 10}, {X: -10, Y: 10}}
	got := clipPolygon(square, image.Rect(0, 0, 5, 5))
	if a := math.Abs(signedArea(got)); math.Abs(a-25) > 1e-9 {
		t.Errorf("clipped area = %v, want 25", a)
	}
	if out := clipPolygon(square, image.Rect(20, 20, 30, 30)); len(out) != 0 {
		t.Errorf("disjoint clip = %v", out)
	}
}

func TestDashLines(t *testing.T) {
	line := []polyline{{pts: []coords.Point{{X: 0}, {X: 35}}}}
	tests := []struct {
		name   string
		dash   []float64
		phase  float64
		starts []float64
	}{
		{"plain", []float64{10, 5}, 0, []float64{0, 15, 30}},
		{"phase", []float64{10, 5}, 5, []float64{0, 10, 25}},
		{"zero pattern", []float64{0, 0}, 0, []float64{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dashLines(line, tt.dash, tt.phase)
			if len(got) != len(tt.starts) {
				t.Fatalf("got %d dashes: %+v", len(got), got)
			}
			for i, d := range got {
				if math.Abs(d.pts[0].X-tt.starts[i]) > 1e-9 {
					t.Errorf("dash %d starts at %v, want %v", i, d.pts[0].X, tt.starts[i])
				}
			}
		})
	}
}

func TestStrokeLineJoins(t *testing.T) {
	l := polyline{pts: []coords.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}}
	tests := []struct {
		join contentstream.LineJoin
		cap  contentstream.LineCap
		n    int
	}{
		{contentstream.LineJoinMiter, contentstream.LineCapButt, 3},
		{contentstream.LineJoinBevel, contentstream.LineCapButt, 3},
		{contentstream.LineJoinRound, contentstream.LineCapRound, 5},
	}
	for _, tt := range tests {
		if got := strokeLine(l, 1, tt.cap, tt.join, 10); len(got) != tt.n {
			t.Errorf("join %d cap %d: %d polygons, want %d", tt.join, tt.cap, len(got), tt.n)
		}
	}
	miter := strokeLine(l, 1, contentstream.LineCapButt, contentstream.LineJoinMiter, 10)[2]
	if len(miter) != 4 {
		t.Fatalf("miter join = %v", miter)
	}
	// The outer corner of a right angle sits at (11, -1).
	if p := miter[2]; math.Abs(p.X-11) > 1e-9 || math.Abs(p.Y+1) > 1e-9 {
		t.Errorf("miter point = %v", p)
	}
}

func TestFlattenCurve(t *testing.T) {
	var p contentstream.Path
	p.MoveTo(0, 0)
	p.CurveTo(0, 10, 10, 10, 10, 0)
	lines := flatten(&p)
	if len(lines) != 1 || len(lines[0].pts) < 3 {
		t.Fatalf("flatten = %+v", lines)
	}
	last := lines[0].pts[len(lines[0].pts)-1]
	if last.X != 10 || last.Y != 0 {
		t.Errorf("curve ends at %v", last)
	}
}
