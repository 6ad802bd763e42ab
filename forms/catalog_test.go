package forms

import (
	"context"
	"errors"
	"reflect"
	"testing"

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

// singlePage builds a one-page document whose AcroForm lists fields.
func singlePage(fields string, objs map[int]string) []byte {
	b := testpdf.New()
	b.Add(1, "<< /Type /Catalog /Pages 2 0 R /AcroForm 3 0 R >>")
	b.Add(2, "<< /Type /Pages /Kids [4 0 R] /Count 1 >>")
	b.Add(3, "<< /Fields "+fields+" /DA (/Helv 0 Tf 0 g) >>")
	b.Add(4, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] >>")
	for n, body := range objs {
		b.Add(n, body)
	}
	return b.Build(1, "")
}

func TestExtractFields(t *testing.T) {
	doc := load(t, testpdf.FormPDF())
	fields, err := ExtractFields(doc)
	if err != nil {
		t.Fatalf("ExtractFields: %v", err)
	}
	want := []string{"patient_name", "is_insured", "plan_type", "address.street", "address.city", "submit"}
	if got := Names(fields); !reflect.DeepEqual(got, want) {
		t.Fatalf("names = %v, want %v", got, want)
	}

	tests := []struct {
		name  string
		kind  Kind
		state State
		page  int
		da    string
	}{
		{"patient_name", KindText, TextState{Value: "Old Name", MaxLen: 40}, 0, "/Helv 10 Tf 0 g"},
		{"is_insured", KindCheckbox, CheckboxState{Checked: false, OnState: "Yes"}, 0, "/Helv 0 Tf 0 g"},
		{"plan_type", KindChoice, ChoiceState{Selected: "HMO", Options: []string{"HMO", "PPO"}, Display: []string{"HMO", "PPO"}, Combo: true}, 1, "/Helv 10 Tf 0 g"},
		{"address.street", KindText, TextState{}, 0, "/Helv 9 Tf 0 g"},
		{"address.city", KindText, TextState{Value: "Springfield"}, 0, "/Helv 9 Tf 0 g"},
		{"submit", KindUnsupported, UnsupportedState{FieldType: "Btn"}, 1, "/Helv 0 Tf 0 g"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := Lookup(fields, tt.name)
			if !ok {
				t.Fatalf("field %s missing", tt.name)
			}
			if f.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", f.Kind, tt.kind)
			}
			if !reflect.DeepEqual(f.State, tt.state) {
				t.Errorf("state = %#v, want %#v", f.State, tt.state)
			}
			if f.DA != tt.da {
				t.Errorf("DA = %q, want %q", f.DA, tt.da)
			}
			if len(f.Widgets) != 1 {
				t.Fatalf("widgets = %d, want 1", len(f.Widgets))
			}
			w := f.Widgets[0]
			if w.Page != tt.page {
				t.Errorf("page = %d, want %d", w.Page, tt.page)
			}
			if w.Ref != f.Ref || w.Field != tt.name {
				t.Errorf("widget = %+v, want own widget of %v", w, f.Ref)
			}
			if w.Rect.Empty() {
				t.Errorf("widget rect is empty")
			}
		})
	}
}

func TestExtractFieldsWidgetKids(t *testing.T) {
	data := singlePage("[5 0 R]", map[int]string{
		5: "<< /FT /Btn /T (agree) /V /Ja /Kids [6 0 R 7 0 R] >>",
		6: "<< /Type /Annot /Subtype /Widget /Parent 5 0 R /Rect [0 0 10 10] /AS /Ja /AP << /N << /Ja 8 0 R /Off 8 0 R >> >> >>",
		7: "<< /Type /Annot /Subtype /Widget /Parent 5 0 R /Rect [20 0 30 10] /AS /Off /AP << /N << /Off 8 0 R /Si 8 0 R >> >> >>",
		8: "<< >>",
	})
	fields, err := ExtractFields(load(t, data))
	if err != nil {
		t.Fatalf("ExtractFields: %v", err)
	}
	if len(fields) != 1 {
		t.Fatalf("fields = %v", Names(fields))
	}
	f := fields[0]
	if got := f.State.(CheckboxState); !got.Checked || got.OnState != "Ja" {
		t.Errorf("state = %+v", got)
	}
	if len(f.Widgets) != 2 {
		t.Fatalf("widgets = %d", len(f.Widgets))
	}
	if f.Widgets[0].OnState != "Ja" || f.Widgets[1].OnState != "Si" {
		t.Errorf("on-states = %q, %q", f.Widgets[0].OnState, f.Widgets[1].OnState)
	}
	if f.Widgets[1].Page != -1 {
		t.Errorf("widget without /P or page annots has page %d", f.Widgets[1].Page)
	}
}

func TestExtractFieldsOptions(t *testing.T) {
	data := singlePage("[5 0 R 6 0 R 7 0 R]", map[int]string{
		5: "<< /FT /Ch /T (state) /Opt [[(CA) (California)] [(NV) (Nevada)]] /V (NV) >>",
		6: "<< /FT /Ch /T (tags) /Ff 2097152 /Opt [(a) (b)] >>",
		7: "<< /FT /Tx /T (notes) /RV (<p>Hello</p><p>world</p>) >>",
	})
	fields, err := ExtractFields(load(t, data))
	if err != nil {
		t.Fatalf("ExtractFields: %v", err)
	}
	state, _ := Lookup(fields, "state")
	want := ChoiceState{Selected: "NV", Options: []string{"CA", "NV"}, Display: []string{"California", "Nevada"}}
	if !reflect.DeepEqual(state.State, want) {
		t.Errorf("state = %#v, want %#v", state.State, want)
	}
	if tags, _ := Lookup(fields, "tags"); tags.Kind != KindUnsupported {
		t.Errorf("multi-select list kind = %v", tags.Kind)
	}
	notes, _ := Lookup(fields, "notes")
	if got := notes.State.(TextState).Value; got != "Hello\nworld" {
		t.Errorf("rich text value = %q", got)
	}
}

func TestExtractFieldsErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"duplicate name", singlePage("[5 0 R 6 0 R]", map[int]string{
			5: "<< /FT /Tx /T (a) >>",
			6: "<< /FT /Tx /T (a) >>",
		})},
		{"cycle", singlePage("[5 0 R]", map[int]string{
			5: "<< /T (a) /Kids [6 0 R] >>",
			6: "<< /T (b) /Kids [5 0 R] >>",
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractFields(load(t, tt.data))
			if !errors.Is(err, pdferr.ErrCorruptStructure) {
				t.Fatalf("err = %v, want CorruptStructure", err)
			}
		})
	}
}

func TestExtractFieldsNoForm(t *testing.T) {
	b := testpdf.New()
	b.Add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.Add(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.Add(3, "<< /Type /Page /Parent 2 0 R >>")
	fields, err := ExtractFields(load(t, b.Build(1, "")))
	if err != nil || len(fields) != 0 {
		t.Fatalf("fields = %v, err = %v", fields, err)
	}
}

func TestPrefix(t *testing.T) {
	fields, err := ExtractFields(load(t, testpdf.FormPDF()))
	if err != nil {
		t.Fatal(err)
	}
	got := Names(Prefix(fields, "address"))
	if want := []string{"address.street", "address.city"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Prefix = %v, want %v", got, want)
	}
}
