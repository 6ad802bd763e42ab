// Package scripting runs form calculation scripts.
package scripting

import (
	"context"
)

// Engine is a JavaScript engine bound to one form.
type Engine interface {
	// Execute runs a script and returns its completion value.
	Execute(ctx context.Context, script string) (interface{}, error)

	// Calculate runs a calculation script with event.value preset to
	// current and returns the resulting event.value. rc is false when the
	// script rejected the value.
	Calculate(ctx context.Context, script string, current interface{}) (value interface{}, rc bool, err error)

	// RegisterDOM exposes the form to scripts.
	RegisterDOM(dom FormDOM) error
}

// FormDOM is the document surface scripts see.
type FormDOM interface {
	// GetField returns a field by fully-qualified name.
	GetField(name string) (FieldProxy, error)

	// Alert receives app.alert messages.
	Alert(message string)
}

// FieldProxy represents a form field exposed to scripts.
type FieldProxy interface {
	GetValue() interface{}
	SetValue(value interface{})
}
