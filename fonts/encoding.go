package fonts

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/wudi/formkit/ir/raw"
)

// Encoding maps single-byte codes of a simple font to characters.
type Encoding struct {
	runes [256]rune
}

func fromCharmap(cm *charmap.Charmap) *Encoding {
	e := &Encoding{}
	for i := 0; i < 256; i++ {
		r := cm.DecodeByte(byte(i))
		if r == '\ufffd' {
			r = 0
		}
		e.runes[i] = r
	}
	return e
}

var (
	winAnsi  = fromCharmap(charmap.Windows1252)
	macRoman = fromCharmap(charmap.Macintosh)
	standard = func() *Encoding {
		e := *winAnsi
		e.runes['\''] = '’'
		e.runes['`'] = '‘'
		return &e
	}()
)

func WinAnsi() *Encoding { return winAnsi }

// Named returns the base encoding for an /Encoding name, WinAnsi for
// anything unknown.
func Named(name string) *Encoding {
	switch name {
	case "MacRomanEncoding":
		return macRoman
	case "StandardEncoding":
		return standard
	}
	return winAnsi
}

// Rune returns the character for code, or 0.
func (e *Encoding) Rune(code byte) rune { return e.runes[code] }

// Encode converts s to codes. Characters the encoding cannot represent
// become '?' and ok is false.
func (e *Encoding) Encode(s string) (out []byte, ok bool) {
	ok = true
	for _, r := range s {
		b, found := e.code(r)
		if !found {
			b, ok = '?', false
		}
		out = append(out, b)
	}
	return out, ok
}

func (e *Encoding) code(r rune) (byte, bool) {
	if r == 0 {
		return 0, false
	}
	if r < 128 && e.runes[r] == r {
		return byte(r), true
	}
	for i, c := range e.runes {
		if c == r {
			return byte(i), true
		}
	}
	return 0, false
}

// WithDifferences applies a /Differences array to a copy of e.
func (e *Encoding) WithDifferences(diffs *raw.ArrayObj) *Encoding {
	out := *e
	code := 0
	for _, it := range diffs.Items {
		if n, ok := raw.AsInt(it); ok {
			code = int(n)
			continue
		}
		name, ok := raw.AsName(it)
		if !ok {
			continue
		}
		if code >= 0 && code < 256 {
			if r, ok := GlyphRune(name); ok {
				out.runes[code] = r
			}
		}
		code++
	}
	return &out
}

var glyphNames = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#', "dollar": '$',
	"percent": '%', "ampersand": '&', "quotesingle": '\'', "quoteright": '’',
	"parenleft": '(', "parenright": ')', "asterisk": '*', "plus": '+', "comma": ',',
	"hyphen": '-', "minus": '−', "period": '.', "slash": '/',
	"zero": '0', "one": '1', "two": '2', "three": '3', "four": '4',
	"five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',
	"colon": ':', "semicolon": ';', "less": '<', "equal": '=', "greater": '>',
	"question": '?', "at": '@', "bracketleft": '[', "backslash": '\\',
	"bracketright": ']', "asciicircum": '^', "underscore": '_', "grave": '`',
	"quoteleft": '‘', "braceleft": '{', "bar": '|', "braceright": '}',
	"asciitilde": '~', "bullet": '•', "endash": '–', "emdash": '—',
	"quotedblleft": '“', "quotedblright": '”', "ellipsis": '…',
	"degree": '°', "copyright": '©', "registered": '®',
	"trademark": '™', "section": '§', "paragraph": '¶',
	"eacute": 'é', "egrave": 'è', "agrave": 'à', "ccedilla": 'ç',
	"udieresis": 'ü', "odieresis": 'ö', "adieresis": 'ä',
	"germandbls": 'ß', "Euro": '€', "fi": 'ﬁ', "fl": 'ﬂ',
	"check": '✓', "checkmark": '✓', "cross": '✗',
}

// GlyphRune maps a glyph name to its character: single letters, the common
// Latin names and the uniXXXX and uXXXX forms.
func GlyphRune(name string) (rune, bool) {
	if len(name) == 1 {
		c := name[0]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			return rune(c), true
		}
	}
	if r, ok := glyphNames[name]; ok {
		return r, true
	}
	for _, prefix := range []string{"uni", "u"} {
		if hex := strings.TrimPrefix(name, prefix); hex != name && len(hex) >= 4 && len(hex) <= 6 {
			if v, err := strconv.ParseUint(hex, 16, 32); err == nil {
				return rune(v), true
			}
		}
	}
	return 0, false
}
