package render

import (
	"context"
	"errors"
	"image/color"
	"testing"

	"github.com/wudi/formkit/config"
	"github.com/wudi/formkit/document"
	"github.com/wudi/formkit/internal/testpdf"
	"github.com/wudi/formkit/pdferr"
)

func load(t *testing.T, data []byte, opts ...document.Option) *document.Document {
	t.Helper()
	doc, err := document.Load(context.Background(), data, opts...)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return doc
}

// onePage builds a 100x100 page drawing content. extra is appended to the
// page dictionary; objects and streams are numbered from 5.
func onePage(content, extra string, objs map[int]string, streams map[int][2]string) []byte {
	return onePageRes(content, "", extra, objs, streams)
}

func onePageRes(content, res, extra string, objs map[int]string, streams map[int][2]string) []byte {
	b := testpdf.New()
	b.Add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.Add(2, "<< /Type /Pages /Kids [4 0 R] /Count 1 >>")
	b.AddStream(3, "", []byte(content))
	b.Add(4, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 100 100] /Contents 3 0 R "+
		"/Resources << /Font << /F1 << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> >> "+res+" >> "+extra+" >>")
	for n, body := range objs {
		b.Add(n, body)
	}
	for n, s := range streams {
		b.AddStream(n, s[0], []byte(s[1]))
	}
	return b.Build(1, "")
}

func render(t *testing.T, doc *document.Document, opts Options, scale float64) *RenderedPage {
	t.Helper()
	out, err := New(doc, opts).Render(context.Background(), 0, scale)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return out
}

func rgb(p *RenderedPage, x, y int) color.RGBA {
	return p.Image.RGBAAt(x, y)
}

var (
	white = color.RGBA{255, 255, 255, 255}
	black = color.RGBA{0, 0, 0, 255}
)

func TestRenderSize(t *testing.T) {
	doc := load(t, testpdf.FormPDF())
	one := render(t, doc, Options{}, 1)
	if one.Width != 612 || one.Height != 792 {
		t.Fatalf("scale 1 size = %dx%d", one.Width, one.Height)
	}
	two := render(t, doc, Options{}, 2)
	if two.Width != 1224 || two.Height != 1584 || two.Image.Bounds().Dx() != 1224 {
		t.Fatalf("scale 2 size = %dx%d", two.Width, two.Height)
	}
	// The blue banner spans y 700..740 in user space.
	if got := rgb(one, 100, 70); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("banner pixel = %v", got)
	}
	if got := rgb(two, 200, 140); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("banner pixel at scale 2 = %v", got)
	}
	if got := rgb(one, 5, 5); got != white {
		t.Errorf("background = %v", got)
	}
	if len(one.Warnings) != 0 {
		t.Errorf("warnings = %v", one.Warnings)
	}
}

func TestRenderSecondPage(t *testing.T) {
	doc := load(t, testpdf.FormPDF())
	out, err := New(doc, Options{}).Render(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := rgb(out, 100, 692); got != (color.RGBA{128, 128, 128, 255}) {
		t.Errorf("gray square pixel = %v", got)
	}
}

func TestRenderRotation(t *testing.T) {
	doc := load(t, onePage("1 0 0 rg 0 0 10 10 re f", "/Rotate 90 /CropBox [0 0 100 50]", nil, nil))
	out := render(t, doc, Options{}, 1)
	if out.Width != 50 || out.Height != 100 {
		t.Fatalf("size = %dx%d, want 50x100", out.Width, out.Height)
	}
	// Rotated clockwise, the bottom-left corner ends up top-left.
	if got := rgb(out, 5, 5); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("corner pixel = %v", got)
	}
}

func TestRenderErrors(t *testing.T) {
	doc := load(t, testpdf.FormPDF())
	for _, scale := range []float64{0, -1} {
		if _, err := New(doc, Options{}).Render(context.Background(), 0, scale); !errors.Is(err, pdferr.ErrInvalidOption) {
			t.Errorf("scale %v: err = %v, want InvalidOption", scale, err)
		}
	}
	if _, err := New(doc, Options{}).Render(context.Background(), 5, 1); err == nil {
		t.Error("page out of range rendered")
	}

	limits := config.DefaultLimits()
	limits.MaxRenderPixels = 1000
	small := load(t, testpdf.FormPDF(), document.WithLimits(limits))
	if _, err := New(small, Options{}).Render(context.Background(), 0, 1); !errors.Is(err, pdferr.ErrInvalidOption) {
		t.Errorf("pixel limit: err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(doc, Options{}).Render(ctx, 0, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled: err = %v", err)
	}
}

func TestRenderPaths(t *testing.T) {
	tests := []struct {
		name    string
		content string
		on, off [2]int
	}{
		{"fill", "0 g 10 10 20 20 re f", [2]int{15, 85}, [2]int{35, 85}},
		{"stroke", "4 w 10 50 m 90 50 l S", [2]int{50, 50}, [2]int{50, 40}},
		{"clip", "10 10 20 20 re W n 0 g 0 0 100 100 re f", [2]int{15, 85}, [2]int{50, 50}},
		{"restore clip", "q 10 10 20 20 re W n Q 0 g 0 0 100 100 re f", [2]int{50, 50}, [2]int{-1, -1}},
		{"cmyk", "0 0 0 1 k 10 10 20 20 re f", [2]int{15, 85}, [2]int{35, 85}},
		{"curve", "0 g 10 10 m 10 60 60 60 60 10 c f", [2]int{35, 70}, [2]int{5, 20}},
		{"dash", "4 w [10 10] 0 d 0 50 m 100 50 l S", [2]int{5, 50}, [2]int{15, 50}},
		{"closed stroke", "2 w 20 20 60 60 re s", [2]int{20, 50}, [2]int{50, 50}},
		{"transform", "1 0 0 1 50 50 cm 0 g 0 0 10 10 re f", [2]int{55, 45}, [2]int{45, 55}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := render(t, load(t, onePage(tt.content, "", nil, nil)), Options{}, 1)
			if got := rgb(out, tt.on[0], tt.on[1]); got != black {
				t.Errorf("pixel %v = %v, want black", tt.on, got)
			}
			if tt.off[0] >= 0 {
				if got := rgb(out, tt.off[0], tt.off[1]); got != white {
					t.Errorf("pixel %v = %v, want white", tt.off, got)
				}
			}
		})
	}
}

func TestRenderText(t *testing.T) {
	out := render(t, load(t, onePage("BT /F1 60 Tf 10 20 Td (H) Tj ET", "", nil, nil)), Options{}, 1)
	dark := 0
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if rgb(out, x, y).R < 128 {
				dark++
			}
		}
	}
	if dark < 50 {
		t.Fatalf("glyph covered %d pixels", dark)
	}
	// Nothing above the cap height.
	if got := rgb(out, 30, 5); got != white {
		t.Errorf("pixel above glyph = %v", got)
	}
}

func TestRenderInlineImage(t *testing.T) {
	content := "q 20 0 0 20 40 40 cm BI /W 2 /H 1 /BPC 8 /CS /RGB ID \xff\x00\x00\x00\x00\xff EI Q"
	out := render(t, load(t, onePage(content, "", nil, nil)), Options{}, 1)
	if got := rgb(out, 42, 50); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("left pixel = %v", got)
	}
	if got := rgb(out, 58, 50); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("right pixel = %v", got)
	}
	if got := rgb(out, 30, 50); got != white {
		t.Errorf("outside pixel = %v", got)
	}
}

func TestRenderFormXObject(t *testing.T) {
	doc := load(t, onePageRes("/X1 Do", "/XObject << /X1 5 0 R >>", "", nil, map[int][2]string{
		5: {"/Type /XObject /Subtype /Form /BBox [0 0 10 10] /Matrix [1 0 0 1 20 20]", "0 g 0 0 50 50 re f"},
	}))
	out := render(t, doc, Options{}, 1)
	if got := rgb(out, 25, 75); got != black {
		t.Errorf("inside bbox = %v", got)
	}
	if got := rgb(out, 40, 60); got != white {
		t.Errorf("outside bbox = %v", got)
	}
}

func TestRenderAnnotations(t *testing.T) {
	data := onePage("", "/Annots [5 0 R 6 0 R]", map[int]string{
		5: "<< /Type /Annot /Subtype /Widget /Rect [10 10 30 30] /AS /Yes /AP << /N << /Yes 7 0 R >> >> >>",
		6: "<< /Type /Annot /Subtype /Widget /F 2 /Rect [60 60 90 90] /AP << /N 8 0 R >> >>",
	}, map[int][2]string{
		7: {"/Type /XObject /Subtype /Form /BBox [0 0 15 15]", "0 g 0 0 15 15 re f"},
		8: {"/Type /XObject /Subtype /Form /BBox [0 0 15 15]", "0 g 0 0 15 15 re f"},
	})
	doc := load(t, data)
	out := render(t, doc, Options{}, 1)
	if got := rgb(out, 20, 80); got != black {
		t.Errorf("widget pixel = %v", got)
	}
	if got := rgb(out, 75, 25); got != white {
		t.Errorf("hidden widget drawn: %v", got)
	}
	skipped := render(t, doc, Options{SkipAnnotations: true}, 1)
	if got := rgb(skipped, 20, 80); got != white {
		t.Errorf("SkipAnnotations pixel = %v", got)
	}
}

func TestRenderFormWidgets(t *testing.T) {
	doc := load(t, testpdf.FormPDF())
	out := render(t, doc, Options{}, 1)
	// is_insured is Off and its Off appearance is empty.
	if got := rgb(out, 107, 225); got != white {
		t.Errorf("unchecked box = %v", got)
	}
}

func TestRenderUnsupportedOperator(t *testing.T) {
	out := render(t, load(t, onePage("/Sh1 sh /Sh1 sh 0 g 0 0 10 10 re f", "", nil, nil)), Options{}, 1)
	if len(out.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one", out.Warnings)
	}
	if w := out.Warnings[0]; w.Kind != pdferr.UnsupportedOperator || w.Subject != "sh" {
		t.Errorf("warning = %v", w)
	}
	if got := rgb(out, 5, 95); got != black {
		t.Errorf("drawing after skipped operator = %v", got)
	}
}
