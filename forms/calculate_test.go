package forms

import (
	"testing"
)

func calcForm(script string) []byte {
	return singlePage("[5 0 R 6 0 R 7 0 R]", map[int]string{
		5: "<< /FT /Tx /T (a) /V (1) >>",
		6: "<< /FT /Tx /T (b) >>",
		7: "<< /FT /Tx /T (total) /AA << /C 8 0 R >> >>",
		8: "<< /S /JavaScript /JS (" + script + ") >>",
		3: "<< /Fields [5 0 R 6 0 R 7 0 R] /CO [7 0 R] >>",
	})
}

func TestApplyCalculations(t *testing.T) {
	tests := []struct {
		name   string
		script string
		values Values
		want   string
	}{
		{"sum", `AFSimple_Calculate\("SUM", ["a", "b"]\);`, Values{"b": Text("2.5")}, "3.5"},
		{"product", `AFSimple_Calculate\("PRD", "a, b"\);`, Values{"a": Text("4"), "b": Text("3")}, "12"},
		{"plain script", `event.value = getField\("a"\).value * 10;`, Values{"a": Text("7")}, "70"},
		{"rejected", `event.rc = false; event.value = 99;`, Values{"a": Text("7")}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := load(t, calcForm(tt.script))
			out, report := apply(t, doc, tt.values, ApplyOptions{RunCalculations: true})
			if len(report.Warnings) != 0 {
				t.Fatalf("warnings = %v", report.Warnings)
			}
			if got := fieldState(t, out, "total").(TextState).Value; got != tt.want {
				t.Errorf("total = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyCalculationsDisabled(t *testing.T) {
	doc := load(t, calcForm(`event.value = 1;`))
	out, _ := apply(t, doc, Values{"a": Text("5")}, ApplyOptions{})
	if got := fieldState(t, out, "total").(TextState).Value; got != "" {
		t.Errorf("total = %q without RunCalculations", got)
	}
}

func TestApplyCalculationError(t *testing.T) {
	doc := load(t, calcForm(`throw new Error\("boom"\);`))
	out, report := apply(t, doc, Values{"a": Text("5")}, ApplyOptions{RunCalculations: true})
	if len(report.Warnings) != 1 || report.Warnings[0].Subject != "total" {
		t.Fatalf("warnings = %v", report.Warnings)
	}
	if got := fieldState(t, out, "a").(TextState).Value; got != "5" {
		t.Errorf("a = %q; a failing script must not block other values", got)
	}
}

func TestFormatResult(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{float64(1.5), "1.5"},
		{int64(3), "3"},
		{true, "true"},
	}
	for _, tt := range tests {
		if got := formatResult(tt.in); got != tt.want {
			t.Errorf("formatResult(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
