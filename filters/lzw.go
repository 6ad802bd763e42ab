package filters

import (
	"bytes"
	"context"

	"github.com/hhrutter/lzw"

	"github.com/wudi/formkit/ir/raw"
)

type lzwDecoder struct{ max int64 }

func (lzwDecoder) Name() string { return "LZWDecode" }

// NewLZWDecoder returns an LZWDecode decoder honouring /EarlyChange.
func NewLZWDecoder(max int64) Decoder { return lzwDecoder{max: max} }

func (d lzwDecoder) Decode(ctx context.Context, in []byte, params *raw.DictObj) ([]byte, error) {
	earlyChange := paramInt(params, "EarlyChange", 1) == 1
	r := lzw.NewReader(bytes.NewReader(in), earlyChange)
	defer r.Close()
	out, err := readAll(ctx, r, d.max)
	if err != nil {
		return nil, err
	}
	return applyPredictor(out, params)
}
