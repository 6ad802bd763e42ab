package forms

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/wudi/formkit/document"
	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/observability"
	"github.com/wudi/formkit/pdferr"
)

type ApplyOptions struct {
	// Strict turns ValueTooLong and InvalidOption warnings into failures.
	Strict bool
	// NeedAppearances asks viewers to rebuild appearances instead of
	// generating them here.
	NeedAppearances bool
	// RunCalculations evaluates the /CO calculation scripts after the
	// values are written.
	RunCalculations bool
	Logger          observability.Logger
}

// Report describes what Apply did with each requested name.
type Report struct {
	Applied  []string // fields whose value was accepted
	Ignored  []string // names with no matching field
	Warnings []pdferr.Warning
}

type applier struct {
	doc     *document.Document
	e       *document.Editor
	opts    ApplyOptions
	log     observability.Logger
	gen     *appearanceGen
	fields  []Field
	byName  map[string]int
	current Values
	report  Report

	apUsers map[raw.ObjectRef][]raw.ObjectRef
}

// Apply writes values into the form and returns the edited document. The
// input document is left untouched. Names are processed in sorted order;
// names with no matching field are recorded in Report.Ignored.
func Apply(ctx context.Context, doc *document.Document, values Values, opts ApplyOptions) (out *document.Document, report Report, err error) {
	ctx, span := doc.Tracer().StartSpan(ctx, observability.SpanApply)
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()
	if opts.Logger == nil {
		opts.Logger = doc.Logger()
	}

	fields, err := ExtractFields(doc)
	if err != nil {
		return nil, Report{}, err
	}
	a := &applier{
		doc:     doc,
		e:       doc.Edit(),
		opts:    opts,
		log:     opts.Logger,
		gen:     newAppearanceGen(doc),
		fields:  fields,
		byName:  make(map[string]int, len(fields)),
		current: Snapshot(fields),
	}
	for i, f := range fields {
		a.byName[f.Name] = i
	}

	for _, name := range values.Names() {
		if err := ctx.Err(); err != nil {
			return nil, a.report, err
		}
		i, ok := a.byName[name]
		if !ok {
			a.report.Ignored = append(a.report.Ignored, name)
			a.log.Debug("no field for value", observability.String("field", name))
			continue
		}
		if err := a.apply(fields[i], values[name]); err != nil {
			return nil, a.report, err
		}
	}

	if opts.RunCalculations {
		if err := a.calculate(ctx); err != nil {
			return nil, a.report, err
		}
	}
	if opts.NeedAppearances {
		if err := a.needAppearances(); err != nil {
			return nil, a.report, err
		}
	}

	out, err = a.e.Commit()
	if err != nil {
		return nil, a.report, err
	}
	span.SetTag("applied", len(a.report.Applied))
	a.log.Debug("values applied",
		observability.Int("applied", len(a.report.Applied)),
		observability.Int("ignored", len(a.report.Ignored)),
		observability.Int("warnings", len(a.report.Warnings)),
		observability.Int("modified", len(out.Modified())))
	return out, a.report, nil
}

// problem records err as a warning, or returns it in strict mode.
func (a *applier) problem(field string, err error) error {
	if a.opts.Strict {
		return err
	}
	a.warn(field, err)
	return nil
}

func (a *applier) warn(field string, err error) {
	w := pdferr.WarningFrom(field, err)
	a.report.Warnings = append(a.report.Warnings, w)
	a.log.Warn("value not applied as given", observability.String("field", field), observability.Error("error", err))
}

func (a *applier) apply(f Field, v Value) error {
	if f.Kind == KindUnsupported {
		ft := f.State.(UnsupportedState).FieldType
		a.warn(f.Name, pdferr.Errorf(pdferr.InvalidOption, "apply", "field type %q is not editable", ft))
		return nil
	}
	if v.Kind() != f.Kind {
		return a.problem(f.Name, pdferr.Errorf(pdferr.InvalidOption, "apply", "%s value given for a %s field", v.Kind(), f.Kind))
	}
	if f.Ref.Num == 0 {
		a.warn(f.Name, pdferr.New(pdferr.CorruptStructure, "apply", "field is not an indirect object"))
		return nil
	}

	var err error
	accepted := true
	switch f.Kind {
	case KindText:
		s, _ := v.AsText()
		err = a.setText(f, s)
	case KindCheckbox:
		b, _ := v.AsChecked()
		err = a.setChecked(f, b)
	case KindChoice:
		s, _ := v.AsChoice()
		accepted, err = a.setChoice(f, s)
	}
	if err != nil {
		return err
	}
	if accepted {
		a.report.Applied = append(a.report.Applied, f.Name)
	}
	return nil
}

func (a *applier) setText(f Field, s string) error {
	st := f.State.(TextState)
	if st.MaxLen > 0 && utf8.RuneCountInString(s) > st.MaxLen {
		err := pdferr.Errorf(pdferr.ValueTooLong, "apply", "%d characters exceed MaxLen %d", utf8.RuneCountInString(s), st.MaxLen)
		if perr := a.problem(f.Name, err); perr != nil {
			return perr
		}
	}
	if cur, ok := a.current[f.Name].AsText(); ok && cur == s {
		return nil
	}
	fd, err := a.e.MutableDict(f.Ref)
	if err != nil {
		return err
	}
	fd.Set("V", raw.Str(raw.EncodeText(s)))
	a.current[f.Name] = Text(s)
	if a.opts.NeedAppearances {
		return nil
	}
	for _, w := range f.Widgets {
		err := a.setAppearance(w, func(wd *raw.DictObj) *raw.StreamObj {
			return a.gen.text(f, wd, s)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *applier) setChecked(f Field, checked bool) error {
	st := f.State.(CheckboxState)
	fd, err := a.e.MutableDict(f.Ref)
	if err != nil {
		return err
	}
	v := "Off"
	if checked {
		v = st.OnState
	}
	fd.Set("V", raw.NameLiteral(v))
	for _, w := range f.Widgets {
		if w.Ref.Num == 0 {
			continue
		}
		wd, err := a.e.MutableDict(w.Ref)
		if err != nil {
			return err
		}
		as := "Off"
		if checked {
			as = w.OnState
			if as == "" {
				as = st.OnState
			}
		}
		wd.Set("AS", raw.NameLiteral(as))
	}
	a.current[f.Name] = Checked(checked)
	return nil
}

// setChoice reports whether s was accepted; a lenient rejection keeps the
// old value.
func (a *applier) setChoice(f Field, s string) (bool, error) {
	st := f.State.(ChoiceState)
	idx := -1
	for i, o := range st.Options {
		if o == s {
			idx = i
			break
		}
	}
	editable := st.Combo && f.Flags&FlagEdit != 0
	if idx < 0 && !editable {
		err := pdferr.Errorf(pdferr.InvalidOption, "apply", "%q is not one of the field's options", s)
		return false, a.problem(f.Name, err)
	}
	if cur, ok := a.current[f.Name].AsChoice(); ok && cur == s {
		return true, nil
	}
	fd, err := a.e.MutableDict(f.Ref)
	if err != nil {
		return false, err
	}
	fd.Set("V", raw.Str(raw.EncodeText(s)))
	if idx >= 0 {
		fd.Set("I", raw.NewArray(raw.NumberInt(int64(idx))))
	} else {
		fd.Delete("I")
	}
	a.current[f.Name] = Choice(s)
	if a.opts.NeedAppearances {
		return true, nil
	}
	for _, w := range f.Widgets {
		err := a.setAppearance(w, func(wd *raw.DictObj) *raw.StreamObj {
			return a.gen.choice(f, st, wd, s)
		})
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

// setAppearance replaces the widget's normal appearance. An existing
// indirect stream keeps its object number unless another widget shows it
// too, in which case the widget gets a new stream.
func (a *applier) setAppearance(w Widget, build func(*raw.DictObj) *raw.StreamObj) error {
	if w.Ref.Num == 0 {
		a.log.Debug("widget is not an indirect object, appearance left as is", observability.String("field", w.Field))
		return nil
	}
	wd, err := a.e.MutableDict(w.Ref)
	if err != nil {
		return err
	}
	stm := build(wd)

	var ap *raw.DictObj
	switch v, _ := wd.Get("AP"); t := v.(type) {
	case raw.RefObj:
		if a.sharedAppearance(t.R, w.Ref) {
			// Give this widget its own copy instead of editing the
			// dictionary other widgets display.
			cur, _ := a.e.Deref(t)
			if d, ok := cur.(*raw.DictObj); ok {
				ap = raw.CloneDict(d)
			} else {
				ap = raw.Dict()
			}
			wd.Set("AP", ap)
		} else if ap, err = a.e.MutableDict(t.R); err != nil {
			return err
		}
	case *raw.DictObj:
		ap = t
	default:
		ap = raw.Dict()
		wd.Set("AP", ap)
	}
	if n, ok := ap.Get("N"); ok {
		if ref, ok := raw.AsRef(n); ok && !a.sharedAppearance(ref, w.Ref) {
			if cur, err := a.e.Get(ref); err == nil {
				if _, isStream := cur.(*raw.StreamObj); isStream {
					a.e.Set(ref, stm)
					return nil
				}
			}
		}
	}
	ap.Set("N", raw.RefObj{R: a.e.Add(stm)})
	return nil
}

// sharedAppearance reports whether a widget other than self uses ref as
// its /AP dictionary or its normal appearance in the loaded document.
func (a *applier) sharedAppearance(ref, self raw.ObjectRef) bool {
	if a.apUsers == nil {
		a.apUsers = make(map[raw.ObjectRef][]raw.ObjectRef)
		for _, f := range a.fields {
			for _, w := range f.Widgets {
				wd, ok := a.doc.Dict(raw.RefObj{R: w.Ref})
				if !ok {
					continue
				}
				v, _ := wd.Get("AP")
				if r, ok := raw.AsRef(v); ok {
					a.apUsers[r] = append(a.apUsers[r], w.Ref)
				}
				ap, ok := a.doc.Dict(v)
				if !ok {
					continue
				}
				if r, ok := raw.AsRef(get(ap, "N")); ok {
					a.apUsers[r] = append(a.apUsers[r], w.Ref)
				}
			}
		}
	}
	for _, u := range a.apUsers[ref] {
		if u != self {
			return true
		}
	}
	return false
}

func (a *applier) needAppearances() error {
	v, ok := a.doc.Catalog().Get("AcroForm")
	if !ok {
		return nil
	}
	if ref, ok := raw.AsRef(v); ok {
		form, err := a.e.MutableDict(ref)
		if err != nil {
			return err
		}
		form.Set("NeedAppearances", raw.Bool(true))
		return nil
	}
	root, err := a.e.MutableDict(a.doc.Root())
	if err != nil {
		return err
	}
	form, ok := raw.AsDict(get(root, "AcroForm"))
	if !ok {
		return pdferr.ForRef(pdferr.CorruptStructure, "apply", a.doc.Root(), fmt.Errorf("/AcroForm is not a dictionary"))
	}
	form.Set("NeedAppearances", raw.Bool(true))
	return nil
}
