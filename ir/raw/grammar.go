package raw

import (
	"context"
	"fmt"
	"io"

	"github.com/wudi/formkit/pdferr"
	"github.com/wudi/formkit/recovery"
	"github.com/wudi/formkit/scanner"
)

// ReaderConfig bounds container sizes and decides how malformed containers
// are handled.
type ReaderConfig struct {
	MaxArraySize int
	MaxDictSize  int
	Recovery     recovery.Strategy

	// StreamLength resolves an indirect /Length before the payload is
	// scanned. Without it the scanner searches for endstream.
	StreamLength func(ref ObjectRef) (int64, bool)
}

// Reader builds objects from scanner tokens, with unlimited push-back.
type Reader struct {
	s   scanner.Scanner
	cfg ReaderConfig
	buf []scanner.Token
}

func NewReader(s scanner.Scanner, cfg ReaderConfig) *Reader {
	return &Reader{s: s, cfg: cfg}
}

func (r *Reader) Next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *Reader) Unread(tok scanner.Token) {
	r.buf = append(r.buf, tok)
}

// SeekTo repositions the underlying scanner and drops pushed-back tokens.
func (r *Reader) SeekTo(off int64) error {
	r.buf = r.buf[:0]
	return r.s.SeekTo(off)
}

func (r *Reader) Position() int64 {
	if len(r.buf) > 0 {
		return r.buf[len(r.buf)-1].Pos
	}
	return r.s.Position()
}

func (r *Reader) malformed(tok scanner.Token, format string, args ...interface{}) error {
	return pdferr.AtOffset(pdferr.MalformedSyntax, "parse", tok.Pos, fmt.Errorf(format, args...))
}

// tolerate asks the recovery strategy whether a container error may be
// patched over.
func (r *Reader) tolerate(err error, pos int64) bool {
	if r.cfg.Recovery == nil {
		return false
	}
	return r.cfg.Recovery.OnError(context.Background(), err, recovery.Location{ByteOffset: pos, Component: "parser"}).Continue()
}

// ReadObject parses the next direct object. Streams are not recognised here;
// see ReadIndirect.
func (r *Reader) ReadObject() (Object, error) {
	tok, err := r.Next()
	if err != nil {
		if err == io.EOF {
			return nil, pdferr.Wrap(pdferr.MalformedSyntax, "parse", io.ErrUnexpectedEOF)
		}
		return nil, err
	}
	return r.objectFrom(tok)
}

func (r *Reader) objectFrom(tok scanner.Token) (Object, error) {
	switch tok.Type {
	case scanner.TokenName:
		return NameObj{Val: tok.Str}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return NumberInt(tok.Int), nil
		}
		return NumberFloat(tok.Float), nil
	case scanner.TokenBoolean:
		return BoolObj{V: tok.Bool}, nil
	case scanner.TokenNull:
		return NullObj{}, nil
	case scanner.TokenString:
		return StringObj{Bytes: append([]byte(nil), tok.Bytes...), Hex: tok.Hex}, nil
	case scanner.TokenRef:
		return Ref(int(tok.Int), tok.Gen), nil
	case scanner.TokenArray:
		return r.readArray()
	case scanner.TokenDict:
		return r.readDict()
	}
	return nil, r.malformed(tok, "unexpected %s %q", tok.Type, tok.Str)
}

func (r *Reader) readArray() (Object, error) {
	arr := &ArrayObj{}
	for {
		tok, err := r.Next()
		if err != nil {
			if err == io.EOF {
				return nil, pdferr.Wrap(pdferr.MalformedSyntax, "parse", fmt.Errorf("unterminated array"))
			}
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			return arr, nil
		}
		if tok.Type == scanner.TokenKeyword && isObjectBoundary(tok.Str) {
			err := r.malformed(tok, "array not closed before %q", tok.Str)
			if !r.tolerate(err, tok.Pos) {
				return nil, err
			}
			r.Unread(tok)
			return arr, nil
		}
		item, err := r.objectFrom(tok)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
		if r.cfg.MaxArraySize > 0 && len(arr.Items) > r.cfg.MaxArraySize {
			return nil, pdferr.AtOffset(pdferr.CorruptStructure, "parse", tok.Pos, fmt.Errorf("array larger than %d items", r.cfg.MaxArraySize))
		}
	}
}

func (r *Reader) readDict() (Object, error) {
	d := Dict()
	for {
		tok, err := r.Next()
		if err != nil {
			if err == io.EOF {
				return nil, pdferr.Wrap(pdferr.MalformedSyntax, "parse", fmt.Errorf("unterminated dictionary"))
			}
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			err := r.malformed(tok, "expected name in dictionary, got %s", tok.Type)
			if tok.Type == scanner.TokenKeyword && isObjectBoundary(tok.Str) && r.tolerate(err, tok.Pos) {
				// Missing '>>': close the dictionary here.
				r.Unread(tok)
				return d, nil
			}
			return nil, err
		}
		key := tok.Str
		vt, err := r.Next()
		if err != nil {
			return nil, pdferr.Wrap(pdferr.MalformedSyntax, "parse", fmt.Errorf("dictionary key /%s without value", key))
		}
		if vt.Type == scanner.TokenKeyword && vt.Str == ">>" {
			err := r.malformed(vt, "dictionary key /%s without value", key)
			if !r.tolerate(err, vt.Pos) {
				return nil, err
			}
			return d, nil
		}
		val, err := r.objectFrom(vt)
		if err != nil {
			return nil, err
		}
		// A null value is equivalent to an absent key.
		if _, isNull := val.(NullObj); !isNull {
			d.Set(key, val)
		}
		if r.cfg.MaxDictSize > 0 && d.Len() > r.cfg.MaxDictSize {
			return nil, pdferr.AtOffset(pdferr.CorruptStructure, "parse", tok.Pos, fmt.Errorf("dictionary larger than %d entries", r.cfg.MaxDictSize))
		}
	}
}

func isObjectBoundary(kw string) bool {
	switch kw {
	case "endobj", "obj", "stream", "endstream", "xref", "trailer", "startxref":
		return true
	}
	return false
}

// ReadIndirect parses "N G obj <object> [stream ... endstream] endobj" at the
// current position.
func (r *Reader) ReadIndirect() (ObjectRef, Object, error) {
	numTok, err := r.Next()
	if err != nil {
		return ObjectRef{}, nil, pdferr.Wrap(pdferr.MalformedSyntax, "parse", fmt.Errorf("object header: %w", err))
	}
	genTok, err := r.Next()
	if err != nil {
		return ObjectRef{}, nil, pdferr.Wrap(pdferr.MalformedSyntax, "parse", fmt.Errorf("object header: %w", err))
	}
	objTok, err := r.Next()
	if err != nil {
		return ObjectRef{}, nil, pdferr.Wrap(pdferr.MalformedSyntax, "parse", fmt.Errorf("object header: %w", err))
	}
	if numTok.Type != scanner.TokenNumber || !numTok.IsInt || genTok.Type != scanner.TokenNumber || !genTok.IsInt ||
		objTok.Type != scanner.TokenKeyword || objTok.Str != "obj" {
		return ObjectRef{}, nil, r.malformed(numTok, "expected object header")
	}
	ref := ObjectRef{Num: int(numTok.Int), Gen: int(genTok.Int)}

	obj, err := r.ReadObject()
	if err != nil {
		return ref, nil, err
	}

	if dict, ok := obj.(*DictObj); ok {
		r.s.SetNextStreamLength(r.streamLength(dict))
		tok, err := r.Next()
		r.s.SetNextStreamLength(-1)
		if err == nil {
			if tok.Type == scanner.TokenStream {
				obj = NewStream(dict, tok.Bytes)
			} else {
				r.Unread(tok)
			}
		} else if err != io.EOF {
			return ref, nil, err
		}
	}

	tok, err := r.Next()
	switch {
	case err == io.EOF:
	case err != nil:
		return ref, nil, err
	case tok.Type == scanner.TokenKeyword && tok.Str == "endobj":
	default:
		perr := r.malformed(tok, "missing endobj after object %d %d", ref.Num, ref.Gen)
		if !r.tolerate(perr, tok.Pos) {
			return ref, nil, perr
		}
		r.Unread(tok)
	}
	return ref, obj, nil
}

func (r *Reader) streamLength(dict *DictObj) int64 {
	v, ok := dict.Get("Length")
	if !ok {
		return -1
	}
	switch l := v.(type) {
	case NumberObj:
		if n := l.Int(); n >= 0 {
			return n
		}
	case RefObj:
		if r.cfg.StreamLength != nil {
			if n, ok := r.cfg.StreamLength(l.R); ok && n >= 0 {
				return n
			}
		}
	}
	return -1
}

// Parse reads a single direct object from data.
func Parse(data []byte) (Object, error) {
	return NewReader(scanner.New(data, scanner.Config{}), ReaderConfig{}).ReadObject()
}
