package writer

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/wudi/formkit/ir/raw"
)

// SerializeObject encodes obj as an indirect object definition.
func SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeIndirect(&buf, ref, obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeIndirect(buf *bytes.Buffer, ref raw.ObjectRef, obj raw.Object) error {
	fmt.Fprintf(buf, "%d %d obj\n", ref.Num, ref.Gen)
	b, err := AppendObject(buf.AvailableBuffer(), obj)
	if err != nil {
		return fmt.Errorf("object %v: %w", ref, err)
	}
	buf.Write(b)
	buf.WriteString("\nendobj\n")
	return nil
}

// AppendObject appends the PDF syntax of obj to dst. Dictionary keys are
// written in sorted order so output is deterministic.
func AppendObject(dst []byte, obj raw.Object) ([]byte, error) {
	switch v := obj.(type) {
	case nil, raw.NullObj:
		return append(dst, "null"...), nil
	case raw.BoolObj:
		return strconv.AppendBool(dst, v.V), nil
	case raw.NumberObj:
		if v.IsInt {
			return strconv.AppendInt(dst, v.I, 10), nil
		}
		return appendReal(dst, v.F), nil
	case raw.NameObj:
		return appendName(dst, v.Val), nil
	case raw.StringObj:
		if v.Hex {
			dst = append(dst, '<')
			dst = append(dst, bytes.ToUpper([]byte(hex.EncodeToString(v.Bytes)))...)
			return append(dst, '>'), nil
		}
		return appendLiteral(dst, v.Bytes), nil
	case raw.RefObj:
		return fmt.Appendf(dst, "%d %d R", v.R.Num, v.R.Gen), nil
	case *raw.ArrayObj:
		dst = append(dst, '[')
		for i, it := range v.Items {
			if i > 0 {
				dst = append(dst, ' ')
			}
			var err error
			if dst, err = AppendObject(dst, it); err != nil {
				return nil, err
			}
		}
		return append(dst, ']'), nil
	case *raw.DictObj:
		return appendDict(dst, v)
	case *raw.StreamObj:
		dst, err := appendDict(dst, v.Dict)
		if err != nil {
			return nil, err
		}
		dst = append(dst, "\nstream\n"...)
		dst = append(dst, v.Data...)
		return append(dst, "\nendstream"...), nil
	}
	return nil, fmt.Errorf("cannot serialize %T", obj)
}

func appendDict(dst []byte, d *raw.DictObj) ([]byte, error) {
	dst = append(dst, "<<"...)
	if d != nil {
		keys := make([]string, 0, len(d.KV))
		for k := range d.KV {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			dst = appendName(dst, k)
			dst = append(dst, ' ')
			var err error
			if dst, err = AppendObject(dst, d.KV[k]); err != nil {
				return nil, err
			}
			dst = append(dst, ' ')
		}
	}
	return append(dst, ">>"...), nil
}

func appendReal(dst []byte, f float64) []byte {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return append(dst, '0')
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.AppendInt(dst, int64(f), 10)
	}
	return strconv.AppendFloat(dst, f, 'f', -1, 64)
}

// appendName writes /name with delimiters, whitespace, '#' and bytes
// outside the printable range as #xx.
func appendName(dst []byte, name string) []byte {
	dst = append(dst, '/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x21 || c > 0x7e || c == '#' || isDelimiter(c) {
			dst = fmt.Appendf(dst, "#%02X", c)
			continue
		}
		dst = append(dst, c)
	}
	return dst
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func appendLiteral(dst []byte, s []byte) []byte {
	dst = append(dst, '(')
	for _, c := range s {
		switch c {
		case '\\', '(', ')':
			dst = append(dst, '\\', c)
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		default:
			if c < 0x20 || c >= 0x7f {
				dst = fmt.Appendf(dst, "\\%03o", c)
			} else {
				dst = append(dst, c)
			}
		}
	}
	return append(dst, ')')
}
