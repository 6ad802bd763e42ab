package writer

import (
	"bytes"
	"context"
	"reflect"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/wudi/formkit/document"
	"github.com/wudi/formkit/forms"
	"github.com/wudi/formkit/internal/testpdf"
	"github.com/wudi/formkit/ir/raw"
)

func load(t *testing.T, data []byte) *document.Document {
	t.Helper()
	doc, err := document.Load(context.Background(), data, document.WithStrict(true))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return doc
}

func save(t *testing.T, doc *document.Document, cfg Config) []byte {
	t.Helper()
	out, err := Save(context.Background(), doc, cfg)
	if err != nil {
		t.Fatalf("Save(%v): %v", cfg.Mode, err)
	}
	return out
}

// crossCheck parses out with pdfcpu, an independent reader.
func crossCheck(t *testing.T, out []byte) {
	t.Helper()
	ctx, err := api.ReadContext(bytes.NewReader(out), model.NewDefaultConfiguration())
	if err != nil {
		t.Fatalf("pdfcpu ReadContext: %v", err)
	}
	if ctx.Root == nil {
		t.Fatalf("pdfcpu found no document catalog")
	}
}

func snapshot(t *testing.T, doc *document.Document) forms.Values {
	t.Helper()
	fields, err := forms.ExtractFields(doc)
	if err != nil {
		t.Fatalf("ExtractFields: %v", err)
	}
	return forms.Snapshot(fields)
}

func TestAppendObject(t *testing.T) {
	tests := []struct {
		obj  raw.Object
		want string
	}{
		{raw.NullObj{}, "null"},
		{raw.Bool(true), "true"},
		{raw.NumberInt(-12), "-12"},
		{raw.NumberFloat(0.25), "0.25"},
		{raw.NumberFloat(3), "3"},
		{raw.NameLiteral("Type"), "/Type"},
		{raw.NameLiteral("A B#(c)"), "/A#20B#23#28c#29"},
		{raw.Str([]byte("a(b)\\c\n\x01\xe9")), `(a\(b\)\\c\n\001\351)`},
		{raw.StringObj{Bytes: []byte{0xfe, 0xff}, Hex: true}, "<FEFF>"},
		{raw.Ref(4, 0), "4 0 R"},
		{raw.NewArray(raw.NumberInt(1), raw.NameLiteral("X")), "[1 /X]"},
		{func() raw.Object {
			d := raw.Dict()
			d.Set("b", raw.NumberInt(2))
			d.Set("a", raw.NumberInt(1))
			return d
		}(), "<</a 1 /b 2 >>"},
	}
	for _, tt := range tests {
		got, err := AppendObject(nil, tt.obj)
		if err != nil {
			t.Fatalf("AppendObject(%v): %v", tt.obj, err)
		}
		if string(got) != tt.want {
			t.Errorf("AppendObject(%v) = %s, want %s", tt.obj, got, tt.want)
		}
	}
}

func TestSerializeObjectRoundTrip(t *testing.T) {
	d := raw.Dict()
	d.Set("Name", raw.NameLiteral("with space"))
	d.Set("Text", raw.Str([]byte("(nested) \\ \r\t")))
	d.Set("List", raw.NewArray(raw.Ref(3, 0), raw.NumberFloat(-1.5), raw.Bool(false)))
	stm := raw.NewStream(d, []byte("BT ET"))
	stm.Dict.Set("Length", raw.NumberInt(5))

	b, err := SerializeObject(raw.ObjectRef{Num: 7}, stm)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b, []byte("7 0 obj\n")) || !bytes.HasSuffix(b, []byte("endstream\nendobj\n")) {
		t.Fatalf("unexpected framing:\n%s", b)
	}
	obj, err := raw.Parse(b[len("7 0 obj\n"):])
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !raw.Equal(obj, d) {
		t.Errorf("dictionary did not survive: %v", obj)
	}
}

func TestSaveFull(t *testing.T) {
	doc := load(t, testpdf.FormPDF())
	out := save(t, doc, Config{Mode: ModeFull})
	crossCheck(t, out)

	again := load(t, out)
	if !reflect.DeepEqual(snapshot(t, again), snapshot(t, doc)) {
		t.Errorf("field values changed across a full rewrite")
	}
	if again.NumPages() != 2 {
		t.Errorf("pages = %d", again.NumPages())
	}
	// Root first, objects numbered 1..n without gaps.
	if again.Root() != (raw.ObjectRef{Num: 1}) {
		t.Errorf("root = %v", again.Root())
	}
	if n := again.Len(); n != again.MaxObjectNumber() {
		t.Errorf("%d objects numbered up to %d", n, again.MaxObjectNumber())
	}
	if again.Info().Title != "Intake" {
		t.Errorf("info = %+v", again.Info())
	}
	if len(again.FileID()) != 2 {
		t.Errorf("missing /ID")
	}
	if !bytes.Equal(out, save(t, doc, Config{Mode: ModeFull})) {
		t.Errorf("full rewrite is not deterministic")
	}
}

func TestSaveFullDropsUnreachable(t *testing.T) {
	b := testpdf.New()
	b.Add(1, "<< /Type /Catalog /Pages 2 0 R /Extra 9 0 R >>")
	b.Add(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.Add(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 10 10] >>")
	b.Add(4, "<< /Orphan true >>")
	doc := load(t, b.Build(1, ""))

	out := save(t, doc, Config{Mode: ModeFull})
	again := load(t, out)
	if again.Len() != 3 {
		t.Errorf("objects = %d, want 3", again.Len())
	}
	if extra, _ := again.Catalog().Get("Extra"); extra != nil {
		if _, isNull := extra.(raw.NullObj); !isNull {
			t.Errorf("dangling reference written as %v", extra)
		}
	}
}

func TestSaveCompress(t *testing.T) {
	doc := load(t, testpdf.FormPDF())
	out := save(t, doc, Config{Mode: ModeFull, Compress: true})
	again := load(t, out)
	page, err := again.Page(0)
	if err != nil {
		t.Fatal(err)
	}
	contents := again.Contents(page)
	if len(contents) != 1 {
		t.Fatalf("contents = %d", len(contents))
	}
	if f, _ := contents[0].Dict.Name("Filter"); f != "FlateDecode" {
		t.Errorf("filter = %q", f)
	}
	data, err := again.DecodeStream(context.Background(), contents[0])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("(Patient Intake) Tj")) {
		t.Errorf("decoded content = %q", data)
	}
}

func TestSaveIncrementalUnmodified(t *testing.T) {
	in := testpdf.FormPDF()
	out := save(t, load(t, in), Config{Mode: ModeIncremental})
	if !bytes.Equal(out, in) {
		t.Errorf("unmodified incremental save changed the file")
	}
}

func TestSaveIncremental(t *testing.T) {
	sources := map[string][]byte{
		"classic":     testpdf.FormPDF(),
		"xref stream": testpdf.Form().BuildXRefStream(testpdf.FormCatalog, 30),
	}
	for name, in := range sources {
		t.Run(name, func(t *testing.T) {
			doc := load(t, in)
			filled, _, err := forms.Apply(context.Background(), doc, forms.Values{
				"patient_name": forms.Text("Jane Doe"),
				"is_insured":   forms.Checked(true),
				"plan_type":    forms.Choice("PPO"),
			}, forms.ApplyOptions{})
			if err != nil {
				t.Fatal(err)
			}

			out := save(t, filled, Config{Mode: ModeIncremental})
			if !bytes.HasPrefix(out, in) {
				t.Fatalf("incremental output does not start with the original bytes")
			}
			crossCheck(t, out)

			again := load(t, out)
			want := forms.Values{
				"patient_name":   forms.Text("Jane Doe"),
				"is_insured":     forms.Checked(true),
				"plan_type":      forms.Choice("PPO"),
				"address.street": forms.Text(""),
				"address.city":   forms.Text("Springfield"),
			}
			if got := snapshot(t, again); !reflect.DeepEqual(got, want) {
				t.Errorf("values = %v, want %v", got, want)
			}
			if again.StartXRef() <= doc.StartXRef() {
				t.Errorf("startxref %d does not follow %d", again.StartXRef(), doc.StartXRef())
			}
			if prev, _ := raw.AsInt(get(again.Trailer(), "Prev")); prev != doc.StartXRef() {
				t.Errorf("/Prev = %d, want %d", prev, doc.StartXRef())
			}

			// Saving the reloaded file in full mode keeps the values.
			full := load(t, save(t, again, Config{Mode: ModeFull}))
			if got := snapshot(t, full); !reflect.DeepEqual(got, want) {
				t.Errorf("full rewrite of update: values = %v", got)
			}
		})
	}
}

func TestSaveCanceled(t *testing.T) {
	doc := load(t, testpdf.FormPDF())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Save(ctx, doc, Config{Mode: ModeFull}); err == nil {
		t.Errorf("Save with a canceled context succeeded")
	}
}
