// Package fonts maps PDF fonts onto outlines and metrics: the standard 14
// fonts are substituted with the Go fonts and embedded TrueType programs are
// parsed directly.
package fonts

import (
	"fmt"
	"strings"
	"sync"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Face is a parsed font program with its metrics. It is safe for
// concurrent use.
type Face struct {
	Name   string
	Bold   bool
	Italic bool
	Mono   bool

	dingbats bool
	afm      *[95]int16 // widths of codes 32..126 in 1/1000 em

	sf    *sfnt.Font
	upem  float64
	shape func([]rune) float64

	mu  sync.Mutex
	buf sfnt.Buffer
}

// LoadTrueType parses an embedded TrueType or OpenType program.
func LoadTrueType(name string, data []byte) (*Face, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("truetype font data is empty")
	}
	sf, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse truetype: %w", err)
	}
	if sf.UnitsPerEm() == 0 {
		return nil, fmt.Errorf("invalid unitsPerEm")
	}
	f := &Face{Name: StripSubset(name), sf: sf, upem: float64(sf.UnitsPerEm()), shape: newShaper(data)}
	var buf sfnt.Buffer
	if ps, _ := sf.Name(&buf, sfnt.NameIDPostScript); ps != "" && f.Name == "" {
		f.Name = ps
	}
	return f, nil
}

var standardCache sync.Map // normalised name -> *Face

// Standard returns the substitute face for a base font name. Unknown names
// get the sans-serif face, matching what viewers do for missing fonts.
func Standard(baseFont string) *Face {
	name := StripSubset(baseFont)
	key := strings.ToLower(name)
	if f, ok := standardCache.Load(key); ok {
		return f.(*Face)
	}
	f := newStandard(name)
	actual, _ := standardCache.LoadOrStore(key, f)
	return actual.(*Face)
}

func newStandard(name string) *Face {
	lower := strings.ToLower(name)
	f := &Face{Name: name}
	if strings.Contains(lower, "dingbat") {
		f.dingbats = true
		return f
	}
	f.Bold = strings.Contains(lower, "bold") || strings.Contains(lower, "black") || strings.Contains(lower, "heavy")
	f.Italic = strings.Contains(lower, "italic") || strings.Contains(lower, "oblique")
	f.Mono = strings.Contains(lower, "courier") || strings.Contains(lower, "mono")

	var ttf []byte
	switch {
	case f.Mono && f.Bold && f.Italic:
		ttf = gomonobolditalic.TTF
	case f.Mono && f.Bold:
		ttf = gomonobold.TTF
	case f.Mono && f.Italic:
		ttf = gomonoitalic.TTF
	case f.Mono:
		ttf = gomono.TTF
	case f.Bold && f.Italic:
		ttf = gobolditalic.TTF
	case f.Bold:
		ttf = gobold.TTF
	case f.Italic:
		ttf = goitalic.TTF
	default:
		ttf = goregular.TTF
	}
	switch {
	case f.Mono:
		f.afm = &courierWidths
	case !f.Bold && !isSerif(lower) && !strings.Contains(lower, "symbol"):
		f.afm = &helveticaWidths
	}
	// The Go fonts are bundled, so parsing cannot fail.
	sf, err := sfnt.Parse(ttf)
	if err == nil {
		f.sf = sf
		f.upem = float64(sf.UnitsPerEm())
	}
	f.shape = newShaper(ttf)
	return f
}

func isSerif(lower string) bool {
	return strings.Contains(lower, "times") || strings.Contains(lower, "serif") && !strings.Contains(lower, "sans")
}

// StripSubset removes a "ABCDEF+" subset tag.
func StripSubset(name string) string {
	if len(name) > 7 && name[6] == '+' {
		for i := 0; i < 6; i++ {
			if name[i] < 'A' || name[i] > 'Z' {
				return name
			}
		}
		return name[7:]
	}
	return name
}

// Dingbats reports whether glyphs come from DingbatOutline instead of an
// outline font.
func (f *Face) Dingbats() bool { return f.dingbats }

// HasOutlines reports whether the face carries glyph outlines.
func (f *Face) HasOutlines() bool { return f.sf != nil }

func (f *Face) UnitsPerEm() float64 { return f.upem }

// Width returns the advance of r in 1/1000 em.
func (f *Face) Width(r rune) float64 {
	if f.afm != nil && r >= 32 && r <= 126 {
		return float64(f.afm[r-32])
	}
	if f.dingbats {
		_, adv := DingbatOutline(byte(r))
		return adv
	}
	if idx, ok := f.GlyphIndex(r); ok {
		if w, ok := f.GlyphAdvance(idx); ok {
			return w
		}
	}
	return 500
}

// Measure returns the width of s at size points.
func (f *Face) Measure(s string, size float64) float64 {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0
	}
	covered := f.afm != nil
	for _, r := range runes {
		if r < 32 || r > 126 {
			covered = false
			break
		}
	}
	var units float64
	switch {
	case covered || f.dingbats || f.shape == nil:
		for _, r := range runes {
			units += f.Width(r)
		}
	default:
		units = f.shape(runes)
	}
	return units * size / 1000
}

// GlyphIndex maps a character to a glyph. Symbolic TrueType fonts map codes
// through the 0xF000 private use range.
func (f *Face) GlyphIndex(r rune) (sfnt.GlyphIndex, bool) {
	if f.sf == nil {
		return 0, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, err := f.sf.GlyphIndex(&f.buf, r)
	if (err != nil || idx == 0) && r < 0x100 {
		idx, err = f.sf.GlyphIndex(&f.buf, 0xF000+r)
	}
	if err != nil || idx == 0 {
		return 0, false
	}
	return idx, true
}

// GlyphAdvance returns the advance of a glyph in 1/1000 em.
func (f *Face) GlyphAdvance(idx sfnt.GlyphIndex) (float64, bool) {
	if f.sf == nil {
		return 0, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	adv, err := f.sf.GlyphAdvance(&f.buf, idx, fixed.Int26_6(f.upem*64), xfont.HintingNone)
	if err != nil {
		return 0, false
	}
	return float64(adv) / 64 * 1000 / f.upem, true
}

// Outline returns the glyph contours in font units with y pointing down, as
// sfnt reports them. The result is a copy owned by the caller.
func (f *Face) Outline(idx sfnt.GlyphIndex) (sfnt.Segments, error) {
	if f.sf == nil {
		return nil, fmt.Errorf("font %q has no outlines", f.Name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	segs, err := f.sf.LoadGlyph(&f.buf, idx, fixed.Int26_6(f.upem*64), nil)
	if err != nil {
		return nil, err
	}
	return append(sfnt.Segments(nil), segs...), nil
}
