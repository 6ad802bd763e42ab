// Package raw is the PDF object model: the nine primitive object kinds and
// the grammar that builds them from scanner tokens.
package raw

import (
	"fmt"
	"sort"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is implemented by NullObj, BoolObj, NumberObj, NameObj, StringObj,
// *ArrayObj, *DictObj, RefObj and *StreamObj. No other implementations
// exist.
type Object interface {
	Type() string
}

// SortRefs orders refs by object number, then generation.
func SortRefs(refs []ObjectRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Num != refs[j].Num {
			return refs[i].Num < refs[j].Num
		}
		return refs[i].Gen < refs[j].Gen
	})
}

// AsName returns the value of a name object.
func AsName(o Object) (string, bool) {
	n, ok := o.(NameObj)
	return n.Val, ok
}

// AsInt returns a number as an integer. Reals are truncated.
func AsInt(o Object) (int64, bool) {
	n, ok := o.(NumberObj)
	if !ok {
		return 0, false
	}
	return n.Int(), true
}

// AsFloat returns any number as a float64.
func AsFloat(o Object) (float64, bool) {
	n, ok := o.(NumberObj)
	if !ok {
		return 0, false
	}
	return n.Float(), true
}

func AsBool(o Object) (bool, bool) {
	b, ok := o.(BoolObj)
	return b.V, ok
}

func AsString(o Object) ([]byte, bool) {
	s, ok := o.(StringObj)
	return s.Bytes, ok
}

func AsArray(o Object) (*ArrayObj, bool) {
	a, ok := o.(*ArrayObj)
	return a, ok && a != nil
}

// AsDict returns a dictionary, or the dictionary of a stream.
func AsDict(o Object) (*DictObj, bool) {
	switch v := o.(type) {
	case *DictObj:
		return v, v != nil
	case *StreamObj:
		if v != nil && v.Dict != nil {
			return v.Dict, true
		}
	}
	return nil, false
}

func AsStream(o Object) (*StreamObj, bool) {
	s, ok := o.(*StreamObj)
	return s, ok && s != nil
}

func AsRef(o Object) (ObjectRef, bool) {
	r, ok := o.(RefObj)
	return r.R, ok
}

// Floats converts an array of numbers. Non-numeric items fail the whole
// conversion.
func Floats(o Object) ([]float64, bool) {
	a, ok := AsArray(o)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(a.Items))
	for _, it := range a.Items {
		f, ok := AsFloat(it)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}
