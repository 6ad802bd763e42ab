// Package pdferr defines the error taxonomy shared by every formkit package.
//
// Errors carry a Kind so callers can branch with errors.Is against the
// exported sentinels:
//
//	if errors.Is(err, pdferr.ErrBrokenReference) { ... }
package pdferr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	MalformedSyntax
	BrokenReference
	DecodeError
	TrailerNotFound
	CorruptStructure
	ValueTooLong
	InvalidOption
	UnsupportedOperator
)

var kindNames = map[Kind]string{
	KindUnknown:         "Unknown",
	MalformedSyntax:     "MalformedSyntax",
	BrokenReference:     "BrokenReference",
	DecodeError:         "DecodeError",
	TrailerNotFound:     "TrailerNotFound",
	CorruptStructure:    "CorruptStructure",
	ValueTooLong:        "ValueTooLong",
	InvalidOption:       "InvalidOption",
	UnsupportedOperator: "UnsupportedOperator",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Structural reports whether the kind means the document itself could not
// be read. Value and rendering kinds are not structural.
func (k Kind) Structural() bool {
	switch k {
	case MalformedSyntax, BrokenReference, DecodeError, TrailerNotFound, CorruptStructure:
		return true
	}
	return false
}

// Error is the concrete error type produced by formkit.
type Error struct {
	Kind   Kind
	Op     string
	Offset int64 // byte offset into the source, -1 when unknown
	Ref    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Ref != "" {
		msg += " (" + e.Ref + ")"
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" at offset %d", e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, which lets the sentinels below
// stand in for a whole class of failures.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrMalformedSyntax     = &Error{Kind: MalformedSyntax, Offset: -1}
	ErrBrokenReference     = &Error{Kind: BrokenReference, Offset: -1}
	ErrDecode              = &Error{Kind: DecodeError, Offset: -1}
	ErrTrailerNotFound     = &Error{Kind: TrailerNotFound, Offset: -1}
	ErrCorruptStructure    = &Error{Kind: CorruptStructure, Offset: -1}
	ErrValueTooLong        = &Error{Kind: ValueTooLong, Offset: -1}
	ErrInvalidOption       = &Error{Kind: InvalidOption, Offset: -1}
	ErrUnsupportedOperator = &Error{Kind: UnsupportedOperator, Offset: -1}
)

// New returns an error of the given kind with a stack trace attached.
func New(kind Kind, op, msg string) error {
	return errors.WithStack(&Error{Kind: kind, Op: op, Offset: -1, Err: errors.New(msg)})
}

// Errorf is New with formatting.
func Errorf(kind Kind, op, format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: kind, Op: op, Offset: -1, Err: fmt.Errorf(format, args...)})
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&Error{Kind: kind, Op: op, Offset: -1, Err: err})
}

// AtOffset is Wrap with the byte offset where the failure was detected.
func AtOffset(kind Kind, op string, offset int64, err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&Error{Kind: kind, Op: op, Offset: offset, Err: err})
}

// ForRef is Wrap with the indirect object the failure concerns.
func ForRef(kind Kind, op string, ref fmt.Stringer, err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&Error{Kind: kind, Op: op, Offset: -1, Ref: ref.String(), Err: err})
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsFatal reports whether err means the document could not be opened, as
// opposed to an operation that only partly succeeded.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	k := KindOf(err)
	return k == KindUnknown || k.Structural()
}

// Warning is a recovered problem reported next to a successful result.
type Warning struct {
	Kind    Kind
	Subject string // field name, operator or object the warning is about
	Message string
}

func (w Warning) String() string {
	if w.Subject == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Subject, w.Message)
}

// WarningFrom converts an error into a Warning about subject.
func WarningFrom(subject string, err error) Warning {
	w := Warning{Kind: KindOf(err), Subject: subject, Message: err.Error()}
	var e *Error
	if errors.As(err, &e) && e.Err != nil {
		w.Message = e.Err.Error()
	}
	return w
}
