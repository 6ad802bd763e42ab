// Package contentstream splits page and form content into operations.
package contentstream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/pdferr"
	"github.com/wudi/formkit/recovery"
	"github.com/wudi/formkit/scanner"
)

// Operation is one operator with the operands that preceded it.
type Operation struct {
	Operator string
	Operands []raw.Object
	Pos      int64
	// Image is set for the BI operator.
	Image *InlineImage
}

// InlineImage is the dictionary and payload of a BI ... ID ... EI block.
// Abbreviated keys and names are expanded to their full forms.
type InlineImage struct {
	Dict *raw.DictObj
	Data []byte
}

type Config struct {
	// Recovery decides whether malformed operands are skipped. Nil means
	// strict.
	Recovery     recovery.Strategy
	MaxOperands  int
	MaxArraySize int
}

// Parser reads operations one at a time.
type Parser struct {
	rd       *raw.Reader
	cfg      Config
	operands []raw.Object
}

func NewParser(data []byte, cfg Config) *Parser {
	if cfg.MaxOperands <= 0 {
		cfg.MaxOperands = 64
	}
	s := scanner.New(data, scanner.Config{ContentStream: true, Recovery: cfg.Recovery})
	return &Parser{
		rd:  raw.NewReader(s, raw.ReaderConfig{Recovery: cfg.Recovery, MaxArraySize: cfg.MaxArraySize}),
		cfg: cfg,
	}
}

// Parse returns every operation of data.
func Parse(data []byte, cfg Config) ([]Operation, error) {
	p := NewParser(data, cfg)
	var ops []Operation
	for {
		op, err := p.Next()
		if errors.Is(err, io.EOF) {
			return ops, nil
		}
		if err != nil {
			return ops, err
		}
		ops = append(ops, op)
	}
}

// Next returns the next operation, or io.EOF. Operands left over at the
// end of the stream are dropped.
func (p *Parser) Next() (Operation, error) {
	for {
		tok, err := p.rd.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Operation{}, io.EOF
			}
			if p.tolerate(err, p.rd.Position()) {
				p.operands = p.operands[:0]
				continue
			}
			return Operation{}, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str != "]" && tok.Str != ">>" {
			op := Operation{Operator: tok.Str, Pos: tok.Pos, Operands: append([]raw.Object(nil), p.operands...)}
			p.operands = p.operands[:0]
			if op.Operator == "BI" {
				img, err := p.inlineImage()
				if err != nil {
					return Operation{}, err
				}
				op.Image = img
			}
			return op, nil
		}
		p.rd.Unread(tok)
		obj, err := p.rd.ReadObject()
		if err != nil {
			if p.tolerate(err, tok.Pos) {
				p.operands = p.operands[:0]
				continue
			}
			return Operation{}, err
		}
		if len(p.operands) >= p.cfg.MaxOperands {
			err := pdferr.AtOffset(pdferr.MalformedSyntax, "content", tok.Pos, fmt.Errorf("more than %d operands", p.cfg.MaxOperands))
			if !p.tolerate(err, tok.Pos) {
				return Operation{}, err
			}
			p.operands = p.operands[:0]
		}
		p.operands = append(p.operands, obj)
	}
}

func (p *Parser) tolerate(err error, pos int64) bool {
	if p.cfg.Recovery == nil {
		return false
	}
	return p.cfg.Recovery.OnError(context.Background(), err, recovery.Location{ByteOffset: pos, Component: "content"}).Continue()
}

func (p *Parser) inlineImage() (*InlineImage, error) {
	d := raw.Dict()
	for {
		tok, err := p.rd.Next()
		if err != nil {
			return nil, pdferr.Wrap(pdferr.MalformedSyntax, "content", fmt.Errorf("inline image without data: %w", err))
		}
		switch tok.Type {
		case scanner.TokenInlineImage:
			return &InlineImage{Dict: d, Data: tok.Bytes}, nil
		case scanner.TokenName:
			v, err := p.rd.ReadObject()
			if err != nil {
				return nil, err
			}
			d.Set(expandKey(tok.Str), expandValue(v))
		default:
			return nil, pdferr.AtOffset(pdferr.MalformedSyntax, "content", tok.Pos, fmt.Errorf("unexpected %s in inline image dictionary", tok.Type))
		}
	}
}

var inlineKeys = map[string]string{
	"BPC": "BitsPerComponent",
	"CS":  "ColorSpace",
	"D":   "Decode",
	"DP":  "DecodeParms",
	"F":   "Filter",
	"H":   "Height",
	"IM":  "ImageMask",
	"I":   "Interpolate",
	"W":   "Width",
	"L":   "Length",
}

var inlineNames = map[string]string{
	"G":    "DeviceGray",
	"RGB":  "DeviceRGB",
	"CMYK": "DeviceCMYK",
	"I":    "Indexed",
	"AHx":  "ASCIIHexDecode",
	"A85":  "ASCII85Decode",
	"LZW":  "LZWDecode",
	"Fl":   "FlateDecode",
	"RL":   "RunLengthDecode",
	"CCF":  "CCITTFaxDecode",
	"DCT":  "DCTDecode",
}

func expandKey(k string) string {
	if full, ok := inlineKeys[k]; ok {
		return full
	}
	return k
}

func expandValue(v raw.Object) raw.Object {
	switch t := v.(type) {
	case raw.NameObj:
		if full, ok := inlineNames[t.Val]; ok {
			return raw.NameLiteral(full)
		}
	case *raw.ArrayObj:
		out := raw.NewArray()
		for _, it := range t.Items {
			out.Append(expandValue(it))
		}
		return out
	}
	return v
}

// Floats converts numeric operands; ok is false if any operand is not a
// number or the count differs from n.
func Floats(operands []raw.Object, n int) ([]float64, bool) {
	if len(operands) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, o := range operands {
		f, ok := raw.AsFloat(o)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
