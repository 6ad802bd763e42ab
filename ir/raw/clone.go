package raw

import "bytes"

// Clone deep-copies containers. Scalars are values and are returned as is;
// stream payloads are shared because they are never modified in place.
func Clone(o Object) Object {
	switch v := o.(type) {
	case *ArrayObj:
		if v == nil {
			return v
		}
		out := &ArrayObj{Items: make([]Object, len(v.Items))}
		for i, it := range v.Items {
			out.Items[i] = Clone(it)
		}
		return out
	case *DictObj:
		return CloneDict(v)
	case *StreamObj:
		if v == nil {
			return v
		}
		return &StreamObj{Dict: CloneDict(v.Dict), Data: v.Data}
	case StringObj:
		return StringObj{Bytes: append([]byte(nil), v.Bytes...), Hex: v.Hex}
	default:
		return o
	}
}

func CloneDict(d *DictObj) *DictObj {
	if d == nil {
		return nil
	}
	out := &DictObj{KV: make(map[string]Object, len(d.KV))}
	for k, v := range d.KV {
		out.KV[k] = Clone(v)
	}
	return out
}

// Equal reports structural equality. Integer and real numbers with the same
// value are equal; the hex flag of strings is ignored.
func Equal(a, b Object) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case NullObj:
		_, ok := b.(NullObj)
		return ok
	case BoolObj:
		y, ok := b.(BoolObj)
		return ok && x.V == y.V
	case NumberObj:
		y, ok := b.(NumberObj)
		return ok && x.Float() == y.Float()
	case NameObj:
		y, ok := b.(NameObj)
		return ok && x.Val == y.Val
	case StringObj:
		y, ok := b.(StringObj)
		return ok && bytes.Equal(x.Bytes, y.Bytes)
	case RefObj:
		y, ok := b.(RefObj)
		return ok && x.R == y.R
	case *ArrayObj:
		y, ok := b.(*ArrayObj)
		if !ok || len(x.Items) != len(y.Items) {
			return false
		}
		for i := range x.Items {
			if !Equal(x.Items[i], y.Items[i]) {
				return false
			}
		}
		return true
	case *DictObj:
		y, ok := b.(*DictObj)
		if !ok {
			return false
		}
		return dictEqual(x, y)
	case *StreamObj:
		y, ok := b.(*StreamObj)
		return ok && dictEqual(x.Dict, y.Dict) && bytes.Equal(x.Data, y.Data)
	}
	return false
}

func dictEqual(x, y *DictObj) bool {
	if x == nil || y == nil {
		return x.Len() == y.Len()
	}
	if x.Len() != y.Len() {
		return false
	}
	for k, v := range x.KV {
		w, ok := y.KV[k]
		if !ok || !Equal(v, w) {
			return false
		}
	}
	return true
}
