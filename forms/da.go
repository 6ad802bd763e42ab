package forms

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// defaultAppearance is a parsed /DA string.
type defaultAppearance struct {
	font  string
	size  float64
	color []float64
}

// parseDA reads the font, size and fill colour operators of a /DA string.
// Later operators win, as they would when the string is executed.
func parseDA(da string) defaultAppearance {
	var out defaultAppearance
	parts := strings.Fields(da)
	num := func(i int) float64 {
		if i < 0 || i >= len(parts) {
			return 0
		}
		f, _ := strconv.ParseFloat(parts[i], 64)
		return f
	}
	for i, p := range parts {
		switch p {
		case "Tf":
			if i >= 2 && strings.HasPrefix(parts[i-2], "/") {
				out.font = parts[i-2][1:]
				out.size = num(i - 1)
			}
		case "g":
			out.color = []float64{num(i - 1)}
		case "rg":
			out.color = []float64{num(i - 3), num(i - 2), num(i - 1)}
		case "k":
			out.color = []float64{num(i - 4), num(i - 3), num(i - 2), num(i - 1)}
		}
	}
	return out
}

func writeColor(buf *bytes.Buffer, color []float64, stroke bool) {
	ops := [5]string{"", "g", "", "rg", "k"}
	if stroke {
		ops = [5]string{"", "G", "", "RG", "K"}
	}
	if len(color) >= len(ops) || ops[len(color)] == "" {
		return
	}
	for _, c := range color {
		buf.WriteString(fmtNum(c))
		buf.WriteByte(' ')
	}
	buf.WriteString(ops[len(color)])
	buf.WriteByte('\n')
}

func fmtNum(f float64) string {
	f = math.Round(f*1000) / 1000
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// literal encodes bytes as a PDF literal string.
func literal(b []byte) string {
	var buf strings.Builder
	buf.WriteByte('(')
	for _, c := range b {
		switch {
		case c == '(' || c == ')' || c == '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case c < 32 || c > 126:
			fmt.Fprintf(&buf, "\\%03o", c)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(')')
	return buf.String()
}
