package forms

import (
	"context"
	"fmt"
	"strings"

	"github.com/wudi/formkit/coords"
	"github.com/wudi/formkit/document"
	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/observability"
	"github.com/wudi/formkit/pdferr"
)

// attrs are the inheritable field attributes.
type attrs struct {
	ft     string
	ff     int
	v      raw.Object
	dv     raw.Object
	da     string
	q      int
	opt    raw.Object
	maxLen int
}

func (a attrs) with(doc *document.Document, d *raw.DictObj) attrs {
	if ft, ok := d.Name("FT"); ok {
		a.ft = ft
	}
	if v, ok := doc.Lookup(d, "Ff"); ok {
		if n, ok := raw.AsInt(v); ok {
			a.ff = int(n)
		}
	}
	if v, ok := doc.Lookup(d, "V"); ok {
		a.v = v
	}
	if v, ok := doc.Lookup(d, "DV"); ok {
		a.dv = v
	}
	if v, ok := doc.Lookup(d, "DA"); ok {
		if s, ok := raw.AsString(v); ok {
			a.da = string(s)
		}
	}
	if v, ok := doc.Lookup(d, "Q"); ok {
		if n, ok := raw.AsInt(v); ok {
			a.q = int(n)
		}
	}
	if v, ok := doc.Lookup(d, "Opt"); ok {
		a.opt = v
	}
	if v, ok := doc.Lookup(d, "MaxLen"); ok {
		if n, ok := raw.AsInt(v); ok && n > 0 {
			a.maxLen = int(n)
		}
	}
	return a
}

type catalog struct {
	doc       *document.Document
	log       observability.Logger
	visited   map[raw.ObjectRef]bool
	names     map[string]bool
	annotPage map[raw.ObjectRef]int
	fields    []Field
}

// ExtractFields walks /AcroForm /Fields depth-first and returns the terminal
// fields in document order. A document without a form has no fields.
func ExtractFields(doc *document.Document) ([]Field, error) {
	form, ok := doc.AcroForm()
	if !ok {
		return nil, nil
	}
	c := &catalog{
		doc:       doc,
		log:       doc.Logger(),
		visited:   make(map[raw.ObjectRef]bool),
		names:     make(map[string]bool),
		annotPage: make(map[raw.ObjectRef]int),
	}
	for _, p := range doc.Pages() {
		for _, a := range p.Annots {
			if _, seen := c.annotPage[a]; !seen {
				c.annotPage[a] = p.Index
			}
		}
	}
	// The form-wide /DA and /Q are defaults for every variable text field.
	all := attrs{}.with(doc, form)
	base := attrs{da: all.da, q: all.q}

	roots, ok := doc.Array(get(form, "Fields"))
	if !ok {
		return nil, nil
	}
	for _, item := range roots.Items {
		if err := c.walk(item, "", base, 0); err != nil {
			return nil, err
		}
	}
	return c.fields, nil
}

func get(d *raw.DictObj, key string) raw.Object {
	v, _ := d.Get(key)
	return v
}

func (c *catalog) walk(node raw.Object, parent string, inh attrs, depth int) error {
	ref, isRef := raw.AsRef(node)
	if isRef {
		if c.visited[ref] {
			return pdferr.ForRef(pdferr.CorruptStructure, "fields", ref, fmt.Errorf("field tree cycle"))
		}
		c.visited[ref] = true
	}
	if depth > c.doc.Limits().MaxIndirectDepth {
		return pdferr.ForRef(pdferr.CorruptStructure, "fields", ref, fmt.Errorf("field tree deeper than %d", c.doc.Limits().MaxIndirectDepth))
	}
	dict, ok := c.doc.Dict(node)
	if !ok {
		c.log.Debug("skipping unreadable field node", observability.String("ref", ref.String()))
		return nil
	}

	name := parent
	if t, ok := c.doc.Lookup(dict, "T"); ok {
		if b, ok := raw.AsString(t); ok {
			partial := raw.DecodeText(b)
			if name == "" {
				name = partial
			} else {
				name = name + "." + partial
			}
		}
	}
	a := inh.with(c.doc, dict)

	var fieldKids, widgetKids []raw.Object
	if kids, ok := c.doc.Array(get(dict, "Kids")); ok {
		for _, kid := range kids.Items {
			kd, ok := c.doc.Dict(kid)
			if !ok {
				continue
			}
			if _, hasT := kd.Get("T"); hasT {
				fieldKids = append(fieldKids, kid)
			} else {
				widgetKids = append(widgetKids, kid)
			}
		}
	}
	if len(fieldKids) > 0 {
		for _, kid := range fieldKids {
			if err := c.walk(kid, name, a, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if name == "" {
		c.log.Debug("skipping field without a name", observability.String("ref", ref.String()))
		return nil
	}
	if c.names[name] {
		return pdferr.ForRef(pdferr.CorruptStructure, "fields", ref, fmt.Errorf("duplicate field name %q", name))
	}
	c.names[name] = true

	f := Field{Name: name, Flags: a.ff, DA: a.da, Quadding: a.q, Ref: ref}
	if len(widgetKids) == 0 {
		if st, _ := dict.Name("Subtype"); st == "Widget" {
			widgetKids = []raw.Object{node}
		}
	}
	for _, w := range widgetKids {
		if wd, ok := c.doc.Dict(w); ok {
			wref, _ := raw.AsRef(w)
			f.Widgets = append(f.Widgets, c.widget(wref, wd, name))
		}
	}
	f.Kind, f.State = c.classify(a, dict, f.Widgets)
	c.fields = append(c.fields, f)
	return nil
}

func (c *catalog) widget(ref raw.ObjectRef, d *raw.DictObj, field string) Widget {
	w := Widget{Ref: ref, Page: -1, Field: field}
	if p, ok := raw.AsRef(get(d, "P")); ok {
		if i, ok := c.doc.PageIndex(p); ok {
			w.Page = i
		}
	}
	if w.Page < 0 {
		if i, ok := c.annotPage[ref]; ok {
			w.Page = i
		}
	}
	if v, ok := c.doc.Lookup(d, "Rect"); ok {
		w.Rect, _ = coords.RectFrom(v)
	}
	w.AppearanceState, _ = d.Name("AS")
	w.OnState = onState(c.doc, d)
	return w
}

// onState is the first appearance name other than Off in /AP /N.
func onState(doc *document.Document, widget *raw.DictObj) string {
	ap, ok := doc.LookupDict(widget, "AP")
	if !ok {
		return ""
	}
	n, ok := doc.Lookup(ap, "N")
	if !ok {
		return ""
	}
	states, ok := n.(*raw.DictObj)
	if !ok {
		return ""
	}
	for _, k := range states.Keys() {
		if k != "Off" {
			return k
		}
	}
	return ""
}

func (c *catalog) classify(a attrs, dict *raw.DictObj, widgets []Widget) (Kind, State) {
	switch {
	case a.ft == "Tx":
		return KindText, TextState{Value: c.textValue(a.v, dict), MaxLen: a.maxLen}
	case a.ft == "Btn" && a.ff&(FlagRadio|FlagPushbutton) == 0:
		st := CheckboxState{OnState: "Yes"}
		for _, w := range widgets {
			if w.OnState != "" {
				st.OnState = w.OnState
				break
			}
		}
		if v, ok := raw.AsName(a.v); ok {
			st.Checked = v != "Off" && v != ""
		} else if len(widgets) > 0 {
			as := widgets[0].AppearanceState
			st.Checked = as != "" && as != "Off"
		}
		return KindCheckbox, st
	case a.ft == "Ch" && a.ff&FlagMultiSelect == 0:
		st := ChoiceState{Combo: a.ff&FlagCombo != 0}
		st.Options, st.Display = c.options(a.opt)
		st.Selected = c.choiceValue(a.v)
		return KindChoice, st
	}
	return KindUnsupported, UnsupportedState{FieldType: a.ft}
}

func (c *catalog) textValue(v raw.Object, dict *raw.DictObj) string {
	switch t := v.(type) {
	case raw.StringObj:
		return raw.DecodeText(t.Bytes)
	case *raw.StreamObj:
		if b, err := c.doc.DecodeStream(context.Background(), t); err == nil {
			return raw.DecodeText(b)
		}
	}
	if rv, ok := c.doc.Lookup(dict, "RV"); ok {
		var markup []byte
		switch r := rv.(type) {
		case raw.StringObj:
			markup = []byte(raw.DecodeText(r.Bytes))
		case *raw.StreamObj:
			markup, _ = c.doc.DecodeStream(context.Background(), r)
		}
		if len(markup) > 0 {
			return RichTextPlain(markup)
		}
	}
	return ""
}

func (c *catalog) options(opt raw.Object) (exports, display []string) {
	arr, ok := raw.AsArray(opt)
	if !ok {
		return nil, nil
	}
	for _, it := range arr.Items {
		it, err := c.doc.Deref(it)
		if err != nil {
			continue
		}
		if s, ok := raw.AsString(it); ok {
			text := raw.DecodeText(s)
			exports = append(exports, text)
			display = append(display, text)
			continue
		}
		pair, ok := raw.AsArray(it)
		if !ok || pair.Len() != 2 {
			continue
		}
		e, ok1 := c.derefString(pair.Items[0])
		d, ok2 := c.derefString(pair.Items[1])
		if ok1 && ok2 {
			exports = append(exports, e)
			display = append(display, d)
		}
	}
	return exports, display
}

func (c *catalog) derefString(o raw.Object) (string, bool) {
	o, err := c.doc.Deref(o)
	if err != nil {
		return "", false
	}
	b, ok := raw.AsString(o)
	return raw.DecodeText(b), ok
}

func (c *catalog) choiceValue(v raw.Object) string {
	switch t := v.(type) {
	case raw.StringObj:
		return raw.DecodeText(t.Bytes)
	case raw.NameObj:
		return t.Val
	case *raw.ArrayObj:
		if t.Len() > 0 {
			s, _ := c.derefString(t.Items[0])
			return s
		}
	}
	return ""
}

// Lookup returns the field named name.
func Lookup(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names lists the fully-qualified names in order.
func Names(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

// Prefix filters fields whose name starts with the dotted prefix.
func Prefix(fields []Field, prefix string) []Field {
	var out []Field
	for _, f := range fields {
		if f.Name == prefix || strings.HasPrefix(f.Name, prefix+".") {
			out = append(out, f)
		}
	}
	return out
}
