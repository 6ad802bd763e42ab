// Package recovery decides what happens when the tokenizer or the loader
// meets bytes it cannot make sense of.
package recovery

import (
	"context"
	"fmt"
)

// Strategy is consulted for every recoverable problem. ctx may be nil.
type Strategy interface {
	OnError(ctx context.Context, err error, loc Location) Action
}

// Location says where a problem was found. ObjectNum is 0 when the problem
// is not tied to one indirect object.
type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

func (l Location) String() string {
	if l.ObjectNum > 0 {
		return fmt.Sprintf("[%s] object %d %d offset %d", l.Component, l.ObjectNum, l.ObjectGen, l.ByteOffset)
	}
	return fmt.Sprintf("[%s] offset %d", l.Component, l.ByteOffset)
}

type Action int

const (
	// ActionFail aborts the operation with the error.
	ActionFail Action = iota
	// ActionWarn records the error and carries on with a best guess.
	ActionWarn
)

// Continue reports whether a caller should keep going after a.
func (a Action) Continue() bool { return a != ActionFail }
