package forms

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/observability"
	"github.com/wudi/formkit/scripting"
)

// calculate runs the /AA /C script of every field listed in /AcroForm /CO,
// in order, and writes each result as the field's new text.
func (a *applier) calculate(ctx context.Context) error {
	form, ok := a.doc.AcroForm()
	if !ok {
		return nil
	}
	co, ok := a.doc.Array(get(form, "CO"))
	if !ok {
		return nil
	}
	byRef := make(map[raw.ObjectRef]int, len(a.fields))
	for i, f := range a.fields {
		byRef[f.Ref] = i
		for _, w := range f.Widgets {
			if _, taken := byRef[w.Ref]; !taken {
				byRef[w.Ref] = i
			}
		}
	}

	engine := scripting.NewEngine()
	if err := engine.RegisterDOM(formDOM{a}); err != nil {
		return err
	}
	for _, item := range co.Items {
		ref, ok := raw.AsRef(item)
		if !ok {
			continue
		}
		i, ok := byRef[ref]
		if !ok {
			continue
		}
		f := a.fields[i]
		script, ok := a.calcScript(ref)
		if !ok || f.Kind != KindText {
			continue
		}
		cur, _ := a.current[f.Name].AsText()
		val, rc, err := engine.Calculate(ctx, script, scriptValue(cur))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.warn(f.Name, fmt.Errorf("calculation script: %w", err))
			continue
		}
		if !rc {
			continue
		}
		if err := a.setText(f, formatResult(val)); err != nil {
			return err
		}
		a.log.Debug("field calculated", observability.String("field", f.Name))
	}
	return nil
}

// calcScript returns the JavaScript of the calculate action on ref.
func (a *applier) calcScript(ref raw.ObjectRef) (string, bool) {
	obj, err := a.e.Get(ref)
	if err != nil {
		return "", false
	}
	d, ok := raw.AsDict(obj)
	if !ok {
		return "", false
	}
	aa, ok := a.doc.LookupDict(d, "AA")
	if !ok {
		return "", false
	}
	action, ok := a.doc.LookupDict(aa, "C")
	if !ok {
		return "", false
	}
	if s, _ := action.Name("S"); s != "" && s != "JavaScript" {
		return "", false
	}
	js, ok := a.doc.Lookup(action, "JS")
	if !ok {
		return "", false
	}
	switch t := js.(type) {
	case raw.StringObj:
		return raw.DecodeText(t.Bytes), true
	case *raw.StreamObj:
		b, err := a.doc.DecodeStream(context.Background(), t)
		if err != nil {
			a.log.Warn("undecodable calculation script", observability.String("ref", ref.String()), observability.Error("error", err))
			return "", false
		}
		return raw.DecodeText(b), true
	}
	return "", false
}

// scriptValue exposes numeric text as a number.
func scriptValue(s string) interface{} {
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return f
	}
	return s
}

func formatResult(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}

type formDOM struct{ a *applier }

func (d formDOM) GetField(name string) (scripting.FieldProxy, error) {
	i, ok := d.a.byName[name]
	if !ok {
		return nil, fmt.Errorf("no field %q", name)
	}
	return fieldProxy{a: d.a, f: d.a.fields[i]}, nil
}

func (d formDOM) Alert(message string) {
	d.a.log.Info("script alert", observability.String("message", message))
}

type fieldProxy struct {
	a *applier
	f Field
}

func (p fieldProxy) GetValue() interface{} {
	v := p.a.current[p.f.Name]
	switch p.f.Kind {
	case KindText:
		s, _ := v.AsText()
		return scriptValue(s)
	case KindCheckbox:
		if b, _ := v.AsChecked(); b {
			return p.f.State.(CheckboxState).OnState
		}
		return "Off"
	case KindChoice:
		s, _ := v.AsChoice()
		return s
	}
	return nil
}

// SetValue lets a script assign to other text fields.
func (p fieldProxy) SetValue(value interface{}) {
	if p.f.Kind != KindText || p.f.Ref.Num == 0 {
		p.a.log.Debug("script assignment ignored", observability.String("field", p.f.Name))
		return
	}
	if err := p.a.setText(p.f, formatResult(value)); err != nil {
		p.a.warn(p.f.Name, err)
	}
}
