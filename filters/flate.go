package filters

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"context"

	"github.com/wudi/formkit/ir/raw"
)

type flateDecoder struct{ max int64 }

func (flateDecoder) Name() string { return "FlateDecode" }

// NewFlateDecoder returns a FlateDecode decoder. max caps the output size;
// zero means unlimited.
func NewFlateDecoder(max int64) Decoder { return flateDecoder{max: max} }

func (d flateDecoder) Decode(ctx context.Context, in []byte, params *raw.DictObj) ([]byte, error) {
	var out []byte
	zr, err := zlib.NewReader(bytes.NewReader(in))
	if err == nil {
		out, err = readAll(ctx, zr, d.max)
		zr.Close()
	}
	if err != nil {
		// Some producers omit the zlib header; retry as a raw deflate stream.
		fr := flate.NewReader(bytes.NewReader(in))
		plain, rerr := readAll(ctx, fr, d.max)
		fr.Close()
		if rerr != nil {
			return nil, err
		}
		out = plain
	}
	return applyPredictor(out, params)
}

// EncodeFlate compresses data with zlib framing as FlateDecode expects.
func EncodeFlate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
