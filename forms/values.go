package forms

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Value is a tagged field value: text, checked or choice.
type Value struct {
	kind    Kind
	text    string
	checked bool
}

func Text(s string) Value   { return Value{kind: KindText, text: s} }
func Checked(b bool) Value  { return Value{kind: KindCheckbox, checked: b} }
func Choice(s string) Value { return Value{kind: KindChoice, text: s} }
func (v Value) Kind() Kind  { return v.kind }
func (v Value) String() string {
	switch v.kind {
	case KindCheckbox:
		return fmt.Sprintf("checked=%v", v.checked)
	case KindChoice:
		return fmt.Sprintf("choice=%q", v.text)
	}
	return fmt.Sprintf("text=%q", v.text)
}

// AsText returns the string of a text value.
func (v Value) AsText() (string, bool) { return v.text, v.kind == KindText }

func (v Value) AsChecked() (bool, bool) { return v.checked, v.kind == KindCheckbox }

func (v Value) AsChoice() (string, bool) { return v.text, v.kind == KindChoice }

type valueJSON struct {
	Text    *string `json:"text,omitempty"`
	Checked *bool   `json:"checked,omitempty"`
	Choice  *string `json:"choice,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	var j valueJSON
	switch v.kind {
	case KindText:
		j.Text = &v.text
	case KindCheckbox:
		j.Checked = &v.checked
	case KindChoice:
		j.Choice = &v.text
	default:
		return nil, fmt.Errorf("marshal field value: %v has no value", v.kind)
	}
	return json.Marshal(j)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var j valueJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	n := 0
	if j.Text != nil {
		*v = Text(*j.Text)
		n++
	}
	if j.Checked != nil {
		*v = Checked(*j.Checked)
		n++
	}
	if j.Choice != nil {
		*v = Choice(*j.Choice)
		n++
	}
	if n != 1 {
		return fmt.Errorf("field value needs exactly one of text, checked or choice, got %s", data)
	}
	return nil
}

// Values maps fully-qualified field names to values.
type Values map[string]Value

// Names returns the keys in sorted order.
func (vs Values) Names() []string {
	out := make([]string, 0, len(vs))
	for k := range vs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ParseValues decodes the JSON snapshot form.
func ParseValues(data []byte) (Values, error) {
	var vs Values
	if err := json.Unmarshal(data, &vs); err != nil {
		return nil, fmt.Errorf("parse values: %w", err)
	}
	return vs, nil
}

// Snapshot captures the current value of every editable field.
func Snapshot(fields []Field) Values {
	vs := make(Values, len(fields))
	for _, f := range fields {
		if v, ok := CurrentValue(f); ok {
			vs[f.Name] = v
		}
	}
	return vs
}

// CurrentValue returns the value a field holds; unsupported fields have
// none.
func CurrentValue(f Field) (Value, bool) {
	switch st := f.State.(type) {
	case TextState:
		return Text(st.Value), true
	case CheckboxState:
		return Checked(st.Checked), true
	case ChoiceState:
		return Choice(st.Selected), true
	}
	return Value{}, false
}
