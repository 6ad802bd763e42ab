package contentstream

import (
	"errors"
	"io"
	"testing"

	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/pdferr"
	"github.com/wudi/formkit/recovery"
)

func TestParse(t *testing.T) {
	ops, err := Parse([]byte("q 1 0 0 1 10 20 cm\nBT /Helv 12 Tf (Hi) Tj [(A) -120 (B)] TJ ET\n0.5 g 0 0 10 10 re f Q"), Config{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []struct {
		op string
		n  int
	}{
		{"q", 0}, {"cm", 6}, {"BT", 0}, {"Tf", 2}, {"Tj", 1}, {"TJ", 1}, {"ET", 0},
		{"g", 1}, {"re", 4}, {"f", 0}, {"Q", 0},
	}
	if len(ops) != len(want) {
		t.Fatalf("got %d operations, want %d: %+v", len(ops), len(want), ops)
	}
	for i, w := range want {
		if ops[i].Operator != w.op || len(ops[i].Operands) != w.n {
			t.Errorf("op %d = %s/%d, want %s/%d", i, ops[i].Operator, len(ops[i].Operands), w.op, w.n)
		}
	}
	if name, _ := raw.AsName(ops[3].Operands[0]); name != "Helv" {
		t.Errorf("Tf font = %q", name)
	}
	arr, ok := raw.AsArray(ops[5].Operands[0])
	if !ok || arr.Len() != 3 {
		t.Errorf("TJ operand = %#v", ops[5].Operands[0])
	}
	if f, ok := Floats(ops[1].Operands, 6); !ok || f[4] != 10 || f[5] != 20 {
		t.Errorf("cm operands = %v", f)
	}
}

func TestParseInlineImage(t *testing.T) {
	ops, err := Parse([]byte("q BI /W 2 /H 1 /BPC 8 /CS /G /F [/AHx] ID \x00\xff EI Q"), Config{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ops) != 3 || ops[1].Operator != "BI" || ops[2].Operator != "Q" {
		t.Fatalf("operations = %+v", ops)
	}
	img := ops[1].Image
	if img == nil {
		t.Fatal("BI without image")
	}
	wObj, _ := img.Dict.Get("Width")
	if w, _ := raw.AsInt(wObj); w != 2 {
		t.Errorf("Width = %d", w)
	}
	if cs, _ := img.Dict.Name("ColorSpace"); cs != "DeviceGray" {
		t.Errorf("ColorSpace = %q", cs)
	}
	fObj, _ := img.Dict.Get("Filter")
	filters, ok := raw.AsArray(fObj)
	if !ok || filters.Len() != 1 {
		t.Fatalf("Filter = %#v", fObj)
	}
	if name, _ := raw.AsName(filters.Items[0]); name != "ASCIIHexDecode" {
		t.Errorf("Filter = %v", filters.Items)
	}
	if len(img.Data) < 2 || img.Data[0] != 0x00 || img.Data[1] != 0xff {
		t.Errorf("Data = %x", img.Data)
	}
}

func TestParseMalformed(t *testing.T) {
	data := []byte("1 0 0 RG <</A 1 q 0 0 m")
	if _, err := Parse(data, Config{}); pdferr.KindOf(err) != pdferr.MalformedSyntax {
		t.Fatalf("strict error = %v, want MalformedSyntax", err)
	}

	p := NewParser([]byte("1 2 ] 3 g"), Config{Recovery: recovery.NewLenientStrategy()})
	op, err := p.Next()
	if err != nil {
		t.Fatalf("lenient Next: %v", err)
	}
	if op.Operator != "g" || len(op.Operands) != 1 {
		t.Errorf("recovered op = %s %v", op.Operator, op.Operands)
	}
	if _, err := p.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("final Next = %v, want EOF", err)
	}
}

func TestPath(t *testing.T) {
	var p Path
	if _, _, ok := p.Current(); ok {
		t.Fatal("empty path has a current point")
	}
	p.Rect(10, 20, 30, 40)
	p.MoveTo(0, 0)
	p.CurveTo(-5, 1, 2, 3, 4, 90)
	if len(p.Subpaths) != 2 || !p.Subpaths[0].Closed {
		t.Fatalf("subpaths = %+v", p.Subpaths)
	}
	if x, y, _ := p.Current(); x != 4 || y != 90 {
		t.Errorf("current = %v,%v", x, y)
	}
	minX, minY, maxX, maxY := p.Bounds()
	if minX != -5 || minY != 0 || maxX != 40 || maxY != 90 {
		t.Errorf("bounds = %v %v %v %v", minX, minY, maxX, maxY)
	}
	p.Reset()
	if !p.Empty() {
		t.Error("Reset left subpaths")
	}
}

func TestTextRenderMode(t *testing.T) {
	if !TextFill.Fills() || TextFill.Strokes() || !TextFillStroke.Strokes() || TextInvisible.Fills() {
		t.Error("render mode predicates")
	}
}
