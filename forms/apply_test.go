package forms

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/wudi/formkit/document"
	"github.com/wudi/formkit/internal/testpdf"
	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/pdferr"
)

func apply(t *testing.T, doc *document.Document, vs Values, opts ApplyOptions) (*document.Document, Report) {
	t.Helper()
	out, report, err := Apply(context.Background(), doc, vs, opts)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return out, report
}

func fieldState(t *testing.T, doc *document.Document, name string) State {
	t.Helper()
	fields, err := ExtractFields(doc)
	if err != nil {
		t.Fatalf("ExtractFields: %v", err)
	}
	f, ok := Lookup(fields, name)
	if !ok {
		t.Fatalf("field %s missing", name)
	}
	return f.State
}

func dictOf(t *testing.T, doc *document.Document, num int) *raw.DictObj {
	t.Helper()
	d, ok := doc.Dict(raw.Ref(num, 0))
	if !ok {
		t.Fatalf("object %d is not a dictionary", num)
	}
	return d
}

func intakeValues() Values {
	return Values{
		"patient_name": Text("Jane Doe"),
		"is_insured":   Checked(true),
		"plan_type":    Choice("PPO"),
	}
}

func TestApplyScenario(t *testing.T) {
	doc := load(t, testpdf.FormPDF())
	out, report := apply(t, doc, intakeValues(), ApplyOptions{})

	if want := []string{"is_insured", "patient_name", "plan_type"}; !reflect.DeepEqual(report.Applied, want) {
		t.Errorf("applied = %v, want %v", report.Applied, want)
	}
	if len(report.Warnings) != 0 || len(report.Ignored) != 0 {
		t.Errorf("report = %+v", report)
	}

	if got := fieldState(t, out, "patient_name").(TextState).Value; got != "Jane Doe" {
		t.Errorf("patient_name = %q", got)
	}
	if got := fieldState(t, out, "is_insured").(CheckboxState); !got.Checked {
		t.Errorf("is_insured = %+v", got)
	}
	if got := fieldState(t, out, "plan_type").(ChoiceState).Selected; got != "PPO" {
		t.Errorf("plan_type = %q", got)
	}
	if as, _ := dictOf(t, out, testpdf.FormInsured).Name("AS"); as != "Yes" {
		t.Errorf("is_insured /AS = %q", as)
	}
	if i, _ := dictOf(t, out, testpdf.FormPlan).Get("I"); !raw.Equal(i, raw.NewArray(raw.NumberInt(1))) {
		t.Errorf("plan_type /I = %v", i)
	}

	// The input document is unchanged.
	if got := fieldState(t, doc, "patient_name").(TextState).Value; got != "Old Name" {
		t.Errorf("original patient_name = %q", got)
	}
	if doc.IsModified(raw.ObjectRef{Num: testpdf.FormPatient}) {
		t.Errorf("original document reports modifications")
	}
	for _, num := range []int{testpdf.FormPatient, testpdf.FormInsured, testpdf.FormPlan} {
		if !out.IsModified(raw.ObjectRef{Num: num}) {
			t.Errorf("object %d not marked modified", num)
		}
	}
	// Untouched objects are shared.
	a, _ := doc.Object(raw.ObjectRef{Num: testpdf.FormAddress})
	b, _ := out.Object(raw.ObjectRef{Num: testpdf.FormAddress})
	if a != b {
		t.Errorf("unmodified object was copied")
	}
}

func TestApplyTextAppearance(t *testing.T) {
	doc := load(t, testpdf.FormPDF())
	out, _ := apply(t, doc, Values{"patient_name": Text("Jane (Doe)")}, ApplyOptions{})

	ap, ok := out.LookupDict(dictOf(t, out, testpdf.FormPatient), "AP")
	if !ok {
		t.Fatalf("widget has no /AP")
	}
	n, _ := ap.Get("N")
	ref, ok := raw.AsRef(n)
	if !ok {
		t.Fatalf("/AP /N = %v, want a reference", n)
	}
	if ref.Num <= doc.MaxObjectNumber() {
		t.Errorf("appearance stored as %v, want a new object", ref)
	}
	obj, _ := out.Resolve(ref)
	stm, ok := obj.(*raw.StreamObj)
	if !ok {
		t.Fatalf("appearance is a %s", obj.Type())
	}
	for _, want := range []string{"/Tx BMC", "/Helv 10 Tf", `(Jane \(Doe\)) Tj`, "EMC"} {
		if !bytes.Contains(stm.Data, []byte(want)) {
			t.Errorf("appearance lacks %q:\n%s", want, stm.Data)
		}
	}
	if bbox, _ := stm.Dict.Get("BBox"); !raw.Equal(bbox, raw.NewArray(raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(200), raw.NumberInt(20))) {
		if fs, _ := raw.Floats(bbox); !reflect.DeepEqual(fs, []float64{0, 0, 200, 20}) {
			t.Errorf("BBox = %v", bbox)
		}
	}
	res, _ := stm.Dict.Get("Resources")
	fonts, _ := out.LookupDict(res.(*raw.DictObj), "Font")
	if f, _ := fonts.Get("Helv"); !raw.Equal(f, raw.Ref(testpdf.FormHelvetica, 0)) {
		t.Errorf("appearance font = %v, want the /DR entry", f)
	}
}

func TestApplyInheritedField(t *testing.T) {
	doc := load(t, testpdf.FormPDF())
	out, _ := apply(t, doc, Values{"address.city": Text("Shelbyville")}, ApplyOptions{})
	if got := fieldState(t, out, "address.city").(TextState).Value; got != "Shelbyville" {
		t.Errorf("address.city = %q", got)
	}
	if got := fieldState(t, out, "address.street").(TextState).Value; got != "" {
		t.Errorf("address.street = %q", got)
	}
	if out.IsModified(raw.ObjectRef{Num: testpdf.FormAddress}) {
		t.Errorf("parent field modified")
	}
	ap, _ := out.LookupDict(dictOf(t, out, testpdf.FormCity), "AP")
	n, _ := out.Lookup(ap, "N")
	if stm, ok := n.(*raw.StreamObj); !ok || !bytes.Contains(stm.Data, []byte("/Helv 9 Tf")) {
		t.Errorf("appearance does not use the inherited DA")
	}
}

func TestApplyMaxLen(t *testing.T) {
	long := strings.Repeat("x", 41)
	doc := load(t, testpdf.FormPDF())

	out, report := apply(t, doc, Values{"patient_name": Text(long)}, ApplyOptions{})
	if len(report.Warnings) != 1 || report.Warnings[0].Kind != pdferr.ValueTooLong {
		t.Fatalf("warnings = %v", report.Warnings)
	}
	if got := fieldState(t, out, "patient_name").(TextState).Value; got != long {
		t.Errorf("value not applied in lenient mode: %q", got)
	}

	_, _, err := Apply(context.Background(), doc, Values{"patient_name": Text(long)}, ApplyOptions{Strict: true})
	if !errors.Is(err, pdferr.ErrValueTooLong) {
		t.Errorf("strict err = %v, want ValueTooLong", err)
	}
}

func TestApplyChoiceValidation(t *testing.T) {
	doc := load(t, testpdf.FormPDF())
	vs := Values{"plan_type": Choice("EPO")}

	out, report := apply(t, doc, vs, ApplyOptions{})
	if len(report.Warnings) != 1 || report.Warnings[0].Kind != pdferr.InvalidOption || report.Warnings[0].Subject != "plan_type" {
		t.Fatalf("warnings = %v", report.Warnings)
	}
	if len(report.Applied) != 0 {
		t.Errorf("applied = %v", report.Applied)
	}
	if got := fieldState(t, out, "plan_type").(ChoiceState).Selected; got != "HMO" {
		t.Errorf("plan_type = %q, want the prior value", got)
	}
	if out != doc {
		t.Errorf("rejected value produced a new document")
	}

	if _, _, err := Apply(context.Background(), doc, vs, ApplyOptions{Strict: true}); !errors.Is(err, pdferr.ErrInvalidOption) {
		t.Errorf("strict err = %v, want InvalidOption", err)
	}
}

func TestApplyEditableCombo(t *testing.T) {
	data := singlePage("[5 0 R]", map[int]string{
		5: "<< /FT /Ch /Ff 393216 /T (color) /Opt [(red) (blue)] /V (red) /Type /Annot /Subtype /Widget /Rect [0 0 80 20] /I [0] >>",
	})
	out, report := apply(t, load(t, data), Values{"color": Choice("teal")}, ApplyOptions{Strict: true})
	if len(report.Applied) != 1 {
		t.Fatalf("report = %+v", report)
	}
	d := dictOf(t, out, 5)
	if _, ok := d.Get("I"); ok {
		t.Errorf("/I kept for a value outside the options")
	}
	if got := fieldState(t, out, "color").(ChoiceState).Selected; got != "teal" {
		t.Errorf("color = %q", got)
	}
}

func TestApplyIgnoredAndUnsupported(t *testing.T) {
	doc := load(t, testpdf.FormPDF())
	out, report := apply(t, doc, Values{
		"no_such_field": Text("x"),
		"submit":        Text("x"),
		"is_insured":    Text("yes"),
	}, ApplyOptions{})

	if !reflect.DeepEqual(report.Ignored, []string{"no_such_field"}) {
		t.Errorf("ignored = %v", report.Ignored)
	}
	if len(report.Applied) != 0 {
		t.Errorf("applied = %v", report.Applied)
	}
	if len(report.Warnings) != 2 {
		t.Fatalf("warnings = %v", report.Warnings)
	}
	for _, w := range report.Warnings {
		if w.Kind != pdferr.InvalidOption {
			t.Errorf("warning %v has kind %v", w, w.Kind)
		}
	}
	if out != doc {
		t.Errorf("document changed")
	}

	_, _, err := Apply(context.Background(), doc, Values{"is_insured": Text("yes")}, ApplyOptions{Strict: true})
	if !errors.Is(err, pdferr.ErrInvalidOption) {
		t.Errorf("strict wrong tag err = %v", err)
	}
}

func TestApplyIdempotent(t *testing.T) {
	doc := load(t, testpdf.FormPDF())
	vs := intakeValues()
	once, _ := apply(t, doc, vs, ApplyOptions{})
	twice, _ := apply(t, once, vs, ApplyOptions{})
	if twice != once {
		t.Errorf("second application produced a new document")
	}

	again, _ := apply(t, doc, vs, ApplyOptions{})
	if !reflect.DeepEqual(once.Refs(), again.Refs()) {
		t.Fatalf("refs differ: %v vs %v", once.Refs(), again.Refs())
	}
	for _, ref := range once.Refs() {
		a, _ := once.Object(ref)
		b, _ := again.Object(ref)
		if !raw.Equal(a, b) {
			t.Errorf("object %v differs between runs", ref)
		}
	}
}

func TestApplyUncheck(t *testing.T) {
	doc := load(t, testpdf.FormPDF())
	on, _ := apply(t, doc, Values{"is_insured": Checked(true)}, ApplyOptions{})
	off, _ := apply(t, on, Values{"is_insured": Checked(false)}, ApplyOptions{})
	d := dictOf(t, off, testpdf.FormInsured)
	if v, _ := d.Name("V"); v != "Off" {
		t.Errorf("/V = %q", v)
	}
	if as, _ := d.Name("AS"); as != "Off" {
		t.Errorf("/AS = %q", as)
	}
}

func TestApplyNeedAppearances(t *testing.T) {
	doc := load(t, testpdf.FormPDF())
	out, _ := apply(t, doc, intakeValues(), ApplyOptions{NeedAppearances: true})
	form := dictOf(t, out, testpdf.FormAcroForm)
	if v, _ := form.Get("NeedAppearances"); !raw.Equal(v, raw.Bool(true)) {
		t.Errorf("/NeedAppearances = %v", v)
	}
	if out.MaxObjectNumber() != doc.MaxObjectNumber() {
		t.Errorf("appearance objects added although viewers regenerate them")
	}
	if _, ok := dictOf(t, out, testpdf.FormPatient).Get("AP"); ok {
		t.Errorf("text widget received an appearance")
	}
}

func TestApplyCanceled(t *testing.T) {
	doc := load(t, testpdf.FormPDF())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := Apply(ctx, doc, intakeValues(), ApplyOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestApplySharedAppearance(t *testing.T) {
	const blank = "<< /Type /XObject /Subtype /Form /BBox [0 0 100 20] /Length 0 >>\nstream\n\nendstream"
	widget := func(name, ap string) string {
		return "<< /FT /Tx /T (" + name + ") /DA (/Helv 10 Tf 0 g) /Type /Annot /Subtype /Widget /Rect [0 0 100 20] /P 4 0 R /AP " + ap + " >>"
	}
	doc := load(t, singlePage("[10 0 R 11 0 R 12 0 R 13 0 R]", map[int]string{
		10: widget("a", "<< /N 30 0 R >>"),
		11: widget("b", "<< /N 30 0 R >>"),
		12: widget("c", "31 0 R"),
		13: widget("d", "31 0 R"),
		30: blank,
		31: "<< /N 32 0 R >>",
		32: blank,
	}))
	out, _ := apply(t, doc, Values{"a": Text("first"), "c": Text("second")}, ApplyOptions{})

	for _, n := range []int{30, 31, 32} {
		if out.IsModified(raw.ObjectRef{Num: n}) {
			t.Errorf("shared appearance object %d was rewritten", n)
		}
	}
	normal := func(num int) raw.ObjectRef {
		t.Helper()
		ap, ok := out.Dict(get(dictOf(t, out, num), "AP"))
		if !ok {
			t.Fatalf("widget %d has no /AP", num)
		}
		r, ok := raw.AsRef(get(ap, "N"))
		if !ok {
			t.Fatalf("widget %d /AP /N is not a reference", num)
		}
		return r
	}
	if r := normal(10); r.Num == 30 {
		t.Errorf("edited widget still shows the shared stream")
	}
	if r := normal(11); r.Num != 30 {
		t.Errorf("untouched widget b /N = %v", r)
	}
	if r := normal(12); r.Num == 32 {
		t.Errorf("edited widget c still shows the shared stream")
	}
	if v, _ := dictOf(t, out, 13).Get("AP"); !raw.Equal(v, raw.Ref(31, 0)) {
		t.Errorf("untouched widget d /AP = %v", v)
	}
	if r := normal(13); r.Num != 32 {
		t.Errorf("untouched widget d /N = %v", r)
	}
}
