package fonts

import (
	"testing"

	"github.com/go-text/typesetting/language"
)

func TestDetectScript(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect language.Script
	}{
		{"Latin", "Hello World", language.Latin},
		{"Arabic", "مرحبا بالعالم", language.Arabic},
		{"Hebrew", "שלום עולם", language.Hebrew},
		{"Cyrillic", "Привет мир", language.Cyrillic},
		{"Greek", "Γειά σου Κόσμε", language.Greek},
		{"Latin dominant", "Hello World مرحبا", language.Latin},
		{"Arabic dominant", "مرحبا بالعالم Hello", language.Arabic},
		{"Han", "你好世界", language.Han},
		{"Hangul", "안녕하세요", language.Hangul},
		{"digits only", "12345", language.Latin},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectScript([]rune(tc.input)); got != tc.expect {
				t.Errorf("got %v, want %v", got, tc.expect)
			}
		})
	}
}

func TestMeasureShapedText(t *testing.T) {
	f := Standard("Times-Roman")
	w := f.Measure("Hello", 10)
	if w <= 0 || w > 50 {
		t.Fatalf("Measure = %v", w)
	}
	if double := f.Measure("HelloHello", 10); double < 1.9*w || double > 2.1*w {
		t.Fatalf("width not additive: %v vs %v", double, w)
	}
}
