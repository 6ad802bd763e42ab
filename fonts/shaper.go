package fonts

import (
	"bytes"
	"sync"
	"unicode"

	"github.com/go-text/typesetting/di"
	gotext "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// newShaper returns a function measuring runes in 1/1000 em with HarfBuzz
// shaping, so kerning and ligatures count. It returns nil when the font
// cannot be parsed by the shaper.
func newShaper(data []byte) func([]rune) float64 {
	face, err := gotext.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	var mu sync.Mutex
	shaper := &shaping.HarfbuzzShaper{}
	return func(runes []rune) float64 {
		script := DetectScript(runes)
		mu.Lock()
		defer mu.Unlock()
		out := shaper.Shape(shaping.Input{
			Text:      runes,
			RunStart:  0,
			RunEnd:    len(runes),
			Direction: scriptDirection(script),
			Face:      face,
			Size:      fixed.I(1000),
			Script:    script,
			Language:  language.DefaultLanguage(),
		})
		var adv fixed.Int26_6
		for _, g := range out.Glyphs {
			adv += g.XAdvance
		}
		return float64(adv) / 64
	}
}

func scriptDirection(script language.Script) di.Direction {
	if script == language.Arabic || script == language.Hebrew {
		return di.DirectionRTL
	}
	return di.DirectionLTR
}

var scriptTables = []struct {
	table  *unicode.RangeTable
	script language.Script
}{
	{unicode.Latin, language.Latin},
	{unicode.Arabic, language.Arabic},
	{unicode.Hebrew, language.Hebrew},
	{unicode.Cyrillic, language.Cyrillic},
	{unicode.Greek, language.Greek},
	{unicode.Thai, language.Thai},
	{unicode.Devanagari, language.Devanagari},
	{unicode.Han, language.Han},
	{unicode.Hiragana, language.Hiragana},
	{unicode.Katakana, language.Katakana},
	{unicode.Hangul, language.Hangul},
}

// DetectScript returns the script most runes belong to, Latin when none is
// recognised. Ties go to the script seen first.
func DetectScript(runes []rune) language.Script {
	var counts [16]int
	best, bestCount := -1, 0
	for _, r := range runes {
		for i, st := range scriptTables {
			if !unicode.Is(st.table, r) {
				continue
			}
			counts[i]++
			if counts[i] > bestCount {
				best, bestCount = i, counts[i]
			}
			break
		}
	}
	if best < 0 {
		return language.Latin
	}
	return scriptTables[best].script
}
