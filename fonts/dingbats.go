package fonts

import (
	"math"

	"github.com/wudi/formkit/coords"
)

// DingbatOutline returns a ZapfDingbats glyph as closed polygons in 1/1000
// em with y up, plus its advance. Only the symbols form widgets use are
// drawn faithfully; other codes render as a filled square.
func DingbatOutline(code byte) ([][]coords.Point, float64) {
	switch code {
	case '4', '3': // check marks
		return [][]coords.Point{{
			{X: 40, Y: 360}, {X: 140, Y: 460}, {X: 330, Y: 250},
			{X: 740, Y: 720}, {X: 820, Y: 640}, {X: 330, Y: 90},
		}}, 846
	case '8', '7': // crosses
		return [][]coords.Point{
			{{X: 80, Y: 160}, {X: 160, Y: 80}, {X: 680, Y: 600}, {X: 600, Y: 680}},
			{{X: 80, Y: 600}, {X: 600, Y: 80}, {X: 680, Y: 160}, {X: 160, Y: 680}},
		}, 757
	case 'l': // circle
		return [][]coords.Point{circle(395, 350, 340, 32)}, 791
	case 'u': // diamond
		return [][]coords.Point{{
			{X: 380, Y: 0}, {X: 740, Y: 360}, {X: 380, Y: 720}, {X: 20, Y: 360},
		}}, 759
	case 'H': // star
		return [][]coords.Point{star(408, 340, 380, 150)}, 816
	case ' ':
		return nil, 278
	}
	return [][]coords.Point{{
		{X: 40, Y: 0}, {X: 722, Y: 0}, {X: 722, Y: 682}, {X: 40, Y: 682},
	}}, 762
}

func circle(cx, cy, r float64, n int) []coords.Point {
	pts := make([]coords.Point, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = coords.Point{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)}
	}
	return pts
}

func star(cx, cy, outer, inner float64) []coords.Point {
	pts := make([]coords.Point, 10)
	for i := range pts {
		r := outer
		if i%2 == 1 {
			r = inner
		}
		a := math.Pi/2 + math.Pi*float64(i)/5
		pts[i] = coords.Point{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)}
	}
	return pts
}
