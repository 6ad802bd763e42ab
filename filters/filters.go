// Package filters decodes PDF stream payloads.
package filters

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/pdferr"
)

type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte, params *raw.DictObj) ([]byte, error)
}

// UnsupportedError reports a filter the pipeline cannot decode.
type UnsupportedError struct {
	Filter string
}

func (e UnsupportedError) Error() string { return "unsupported filter: " + e.Filter }

type Limits struct {
	MaxDecompressedSize int64
	MaxDecodeTime       time.Duration
}

type Pipeline struct {
	decoders map[string]Decoder
	limits   Limits
}

// NewPipeline constructs a pipeline with provided decoders and limits.
func NewPipeline(decoders []Decoder, limits Limits) *Pipeline {
	p := &Pipeline{decoders: make(map[string]Decoder, len(decoders)), limits: limits}
	for _, d := range decoders {
		p.decoders[d.Name()] = d
	}
	return p
}

// Default returns a pipeline with every decoder this package provides.
func Default(limits Limits) *Pipeline {
	return NewPipeline([]Decoder{
		NewFlateDecoder(limits.MaxDecompressedSize),
		NewLZWDecoder(limits.MaxDecompressedSize),
		NewASCII85Decoder(),
		NewASCIIHexDecoder(),
		NewRunLengthDecoder(),
	}, limits)
}

// abbreviations used by inline images.
var abbreviations = map[string]string{
	"Fl":  "FlateDecode",
	"LZW": "LZWDecode",
	"A85": "ASCII85Decode",
	"AHx": "ASCIIHexDecode",
	"RL":  "RunLengthDecode",
	"DCT": "DCTDecode",
	"CCF": "CCITTFaxDecode",
}

// imageFilters produce image data rather than bytes; decoding stops there.
var imageFilters = map[string]bool{
	"DCTDecode":      true,
	"JPXDecode":      true,
	"CCITTFaxDecode": true,
	"JBIG2Decode":    true,
}

// IsImageFilter reports whether name is an image codec filter.
func IsImageFilter(name string) bool { return imageFilters[canonical(name)] }

func canonical(name string) string {
	if full, ok := abbreviations[name]; ok {
		return full
	}
	return name
}

// Decode applies every filter in order. Any unknown or image filter fails
// with an UnsupportedError classified as DecodeError.
func (p *Pipeline) Decode(ctx context.Context, input []byte, filterNames []string, params []*raw.DictObj) ([]byte, error) {
	out, rest, err := p.DecodePartial(ctx, input, filterNames, params)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, pdferr.Wrap(pdferr.DecodeError, "decode", UnsupportedError{Filter: rest[0]})
	}
	return out, nil
}

// DecodePartial applies filters up to the first image filter and returns
// the remaining filter names, so image data can be handed to an image codec.
func (p *Pipeline) DecodePartial(ctx context.Context, input []byte, filterNames []string, params []*raw.DictObj) ([]byte, []string, error) {
	if p.limits.MaxDecodeTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.limits.MaxDecodeTime)
		defer cancel()
	}
	data := input
	for i, name := range filterNames {
		name = canonical(name)
		if imageFilters[name] {
			rest := make([]string, 0, len(filterNames)-i)
			for _, n := range filterNames[i:] {
				rest = append(rest, canonical(n))
			}
			return data, rest, nil
		}
		dec, ok := p.decoders[name]
		if !ok {
			return nil, nil, pdferr.Wrap(pdferr.DecodeError, "decode", UnsupportedError{Filter: name})
		}
		var param *raw.DictObj
		if i < len(params) {
			param = params[i]
		}
		out, err := dec.Decode(ctx, data, param)
		if err != nil {
			return nil, nil, pdferr.Wrap(pdferr.DecodeError, "decode "+name, err)
		}
		if p.limits.MaxDecompressedSize > 0 && int64(len(out)) > p.limits.MaxDecompressedSize {
			return nil, nil, pdferr.Wrap(pdferr.DecodeError, "decode "+name, fmt.Errorf("decompressed size exceeds %d bytes", p.limits.MaxDecompressedSize))
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, pdferr.Wrap(pdferr.DecodeError, "decode "+name, err)
		}
		data = out
	}
	return data, nil, nil
}

// readAll drains r, honouring ctx and an optional size cap.
func readAll(ctx context.Context, r io.Reader, max int64) ([]byte, error) {
	var out []byte
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if max > 0 && int64(len(out)) > max {
			return nil, fmt.Errorf("decompressed size exceeds %d bytes", max)
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			// Truncated compressed data is common; keep what was produced.
			if (err == io.ErrUnexpectedEOF) && len(out) > 0 {
				return out, nil
			}
			return nil, err
		}
	}
}
