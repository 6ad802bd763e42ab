// Package forms reads AcroForm fields into a typed model and writes new
// values back through copy-on-mutate edits.
package forms

import (
	"github.com/wudi/formkit/coords"
	"github.com/wudi/formkit/ir/raw"
)

// Kind is the editable category of a field.
type Kind int

const (
	KindText Kind = iota
	KindCheckbox
	KindChoice
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindCheckbox:
		return "checkbox"
	case KindChoice:
		return "choice"
	}
	return "unsupported"
}

// Field flags (/Ff).
const (
	FlagReadOnly    = 1 << 0
	FlagRequired    = 1 << 1
	FlagNoExport    = 1 << 2
	FlagMultiline   = 1 << 12
	FlagPassword    = 1 << 13
	FlagRadio       = 1 << 15
	FlagPushbutton  = 1 << 16
	FlagCombo       = 1 << 17
	FlagEdit        = 1 << 18
	FlagMultiSelect = 1 << 21
	FlagComb        = 1 << 24
)

// State is the value payload of a field; its concrete type matches the
// field's Kind.
type State interface {
	kind() Kind
}

type TextState struct {
	Value  string
	MaxLen int // 0 when unlimited
}

type CheckboxState struct {
	Checked bool
	OnState string
}

type ChoiceState struct {
	Selected string
	Options  []string // export values
	Display  []string // display texts, aligned with Options
	Combo    bool
}

// UnsupportedState marks fields that are preserved but never written:
// radio groups, push buttons, signatures and multi-select lists.
type UnsupportedState struct {
	FieldType string
}

func (TextState) kind() Kind        { return KindText }
func (CheckboxState) kind() Kind    { return KindCheckbox }
func (ChoiceState) kind() Kind      { return KindChoice }
func (UnsupportedState) kind() Kind { return KindUnsupported }

// Field is one terminal field of the form.
type Field struct {
	Name     string // fully qualified, dot separated
	Kind     Kind
	State    State
	Flags    int
	DA       string
	Quadding int
	Ref      raw.ObjectRef
	Widgets  []Widget
}

func (f Field) ReadOnly() bool { return f.Flags&FlagReadOnly != 0 }

// Widget is one on-page appearance of a field.
type Widget struct {
	Ref             raw.ObjectRef
	Page            int // -1 when the widget is on no page
	Rect            coords.Rect
	AppearanceState string
	OnState         string // checkbox widgets only
	Field           string
}
