package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/wudi/formkit/contentstream"
	"github.com/wudi/formkit/coords"
	"github.com/wudi/formkit/filters"
	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/pdferr"
)

func (it *interp) xobject(ctx context.Context, res *raw.DictObj, name string, depth int) error {
	v, ok := it.resourceObject(res, "XObject", name)
	if !ok {
		it.warn(pdferr.Warning{Kind: pdferr.BrokenReference, Subject: "Do", Message: "missing XObject " + name})
		return nil
	}
	stm, ok := raw.AsStream(v)
	if !ok {
		it.warn(pdferr.Warning{Kind: pdferr.CorruptStructure, Subject: "Do", Message: name + " is not a stream"})
		return nil
	}
	switch sub, _ := stm.Dict.Name("Subtype"); sub {
	case "Form":
		return it.form(ctx, stm, res, depth+1)
	case "Image":
		data, rest, err := it.doc.DecodeImage(ctx, stm)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			it.warn(pdferr.WarningFrom(name, err))
			return nil
		}
		img, err := it.decodeImage(ctx, stm.Dict, data, rest, res)
		if err != nil {
			it.warn(pdferr.WarningFrom(name, err))
			return nil
		}
		it.drawImage(img, it.interpolate(stm.Dict))
	default:
		it.unsupported("Do " + sub)
	}
	return nil
}

// form runs a form XObject inside its own q/Q pair, with the form matrix
// prepended to the CTM and the clip narrowed to the bounding box.
func (it *interp) form(ctx context.Context, stm *raw.StreamObj, parentRes *raw.DictObj, depth int) error {
	if max := it.doc.Limits().MaxXObjectDepth; max > 0 && depth > max {
		it.warn(pdferr.Warning{Kind: pdferr.CorruptStructure, Subject: "Do", Message: fmt.Sprintf("form XObjects nested deeper than %d", max)})
		return nil
	}
	if it.forms[stm] {
		it.warn(pdferr.Warning{Kind: pdferr.CorruptStructure, Subject: "Do", Message: "form XObject draws itself"})
		return nil
	}
	data, err := it.doc.DecodeStream(ctx, stm)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		it.warn(pdferr.WarningFrom("form", err))
		return nil
	}
	it.forms[stm] = true
	defer delete(it.forms, stm)

	saved, savedStack := it.gs.clone(), it.stack
	savedPath, savedClip := it.path, it.pendingClip
	savedTM, savedTLM := it.tm, it.tlm
	defer func() {
		it.gs, it.stack = saved, savedStack
		it.path, it.pendingClip = savedPath, savedClip
		it.tm, it.tlm = savedTM, savedTLM
	}()
	it.stack = nil
	it.path = contentstream.Path{}
	it.pendingClip = false

	if mv, ok := it.doc.Lookup(stm.Dict, "Matrix"); ok {
		if m, ok := coords.MatrixFrom(mv); ok {
			it.gs.ctm = m.Multiply(it.gs.ctm)
		}
	}
	if bv, ok := it.doc.Lookup(stm.Dict, "BBox"); ok {
		if bbox, ok := coords.RectFrom(bv); ok {
			dev := bbox.Transform(it.gs.ctm)
			it.gs.clip = it.gs.clip.Intersect(image.Rect(floorInt(dev.LLX), floorInt(dev.LLY), ceilInt(dev.URX), ceilInt(dev.URY)))
		}
	}
	res := parentRes
	if r, ok := it.doc.LookupDict(stm.Dict, "Resources"); ok {
		res = r
	}
	return it.run(ctx, data, res, it.gs.ctm, depth)
}

func (it *interp) inlineImage(ctx context.Context, res *raw.DictObj, ii *contentstream.InlineImage) {
	names, params := filters.ExtractFilters(ii.Dict)
	data, rest, err := it.doc.Pipeline().DecodePartial(ctx, ii.Data, names, params)
	if err != nil {
		it.warn(pdferr.WarningFrom("BI", err))
		return
	}
	img, err := it.decodeImage(ctx, ii.Dict, data, rest, res)
	if err != nil {
		it.warn(pdferr.WarningFrom("BI", err))
		return
	}
	it.drawImage(img, it.interpolate(ii.Dict))
}

// decodeImage turns sample data into an image. DCT data goes through
// image/jpeg; raw samples of 1 to 8 bits in gray, RGB, CMYK or indexed
// spaces are unpacked here.
func (it *interp) decodeImage(ctx context.Context, d *raw.DictObj, data []byte, rest []string, res *raw.DictObj) (image.Image, error) {
	w, _ := lookupInt(it.doc, d, "Width")
	h, _ := lookupInt(it.doc, d, "Height")
	if err := filters.ValidateImageBounds(int(w), int(h)); err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		if len(rest) == 1 && rest[0] == "DCTDecode" {
			img, err := jpeg.Decode(bytes.NewReader(data))
			if err != nil {
				return nil, pdferr.Wrap(pdferr.DecodeError, "image", err)
			}
			return img, nil
		}
		return nil, pdferr.Wrap(pdferr.DecodeError, "image", filters.UnsupportedError{Filter: rest[0]})
	}

	if mask, _ := it.doc.Lookup(d, "ImageMask"); isTrue(mask) {
		return it.stencil(d, data, int(w), int(h))
	}

	bpc := int64(8)
	if v, ok := lookupInt(it.doc, d, "BitsPerComponent"); ok {
		bpc = v
	}
	if bpc != 1 && bpc != 2 && bpc != 4 && bpc != 8 {
		return nil, pdferr.Errorf(pdferr.DecodeError, "image", "%d bits per component", bpc)
	}
	csObj, _ := it.doc.Lookup(d, "ColorSpace")
	n, lookup := it.imageSpace(res, csObj)
	if n <= 0 {
		return nil, pdferr.Errorf(pdferr.DecodeError, "image", "unsupported image colour space")
	}
	samples := n
	if lookup != nil {
		samples = 1
	}
	bits := newBitReader(data, int(w)*samples, int(bpc))
	if !bits.fits(int(h)) {
		return nil, pdferr.Errorf(pdferr.DecodeError, "image", "%d bytes of samples for %dx%d", len(data), w, h)
	}

	out := image.NewNRGBA(image.Rect(0, 0, int(w), int(h)))
	max := float64(int(1)<<uint(bpc) - 1)
	comps := make([]float64, n)
	for y := 0; y < int(h); y++ {
		if y%64 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		for x := 0; x < int(w); x++ {
			if lookup != nil {
				idx := int(bits.sample(y, x))
				for c := 0; c < n; c++ {
					if p := idx*n + c; p < len(lookup) {
						comps[c] = float64(lookup[p]) / 255
					}
				}
			} else {
				for c := 0; c < n; c++ {
					comps[c] = float64(bits.sample(y, x*n+c)) / max
				}
			}
			c, _ := colorFrom(comps)
			out.SetNRGBA(x, y, c)
		}
	}
	it.applySMask(ctx, d, out)
	return out, nil
}

// imageSpace returns the component count of an image colour space and,
// for Indexed spaces, the palette in base-space bytes.
func (it *interp) imageSpace(res *raw.DictObj, cs raw.Object) (int, []byte) {
	if cs == nil {
		return 1, nil
	}
	if name, ok := raw.AsName(cs); ok {
		if v, ok := it.resourceObject(res, "ColorSpace", name); ok {
			return it.imageSpace(res, v)
		}
	}
	arr, ok := it.doc.Array(cs)
	if !ok || arr.Len() != 4 {
		n := it.spaceComponents(res, cs)
		if n < 0 {
			return 1, nil
		}
		return n, nil
	}
	if family, _ := raw.AsName(arr.Items[0]); family != "Indexed" && family != "I" {
		return it.spaceComponents(res, cs), nil
	}
	base, _ := it.doc.Deref(arr.Items[1])
	n, _ := it.imageSpace(res, base)
	lo, err := it.doc.Deref(arr.Items[3])
	if err != nil {
		return 0, nil
	}
	if s, ok := raw.AsString(lo); ok {
		return n, s
	}
	if s, ok := raw.AsStream(lo); ok {
		if data, err := it.doc.DecodeStream(context.Background(), s); err == nil {
			return n, data
		}
	}
	return 0, nil
}

// stencil paints the fill colour where mask samples are 0, or 1 when
// /Decode is [1 0].
func (it *interp) stencil(d *raw.DictObj, data []byte, w, h int) (image.Image, error) {
	bits := newBitReader(data, w, 1)
	if !bits.fits(h) {
		return nil, pdferr.Errorf(pdferr.DecodeError, "image", "stencil mask shorter than %dx%d", w, h)
	}
	paint := uint32(0)
	if dv, ok := it.doc.Lookup(d, "Decode"); ok {
		if fs, ok := raw.Floats(dv); ok && len(fs) == 2 && fs[0] == 1 {
			paint = 1
		}
	}
	c := it.gs.fillColor()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if bits.sample(y, x) == paint {
				out.SetNRGBA(x, y, c)
			}
		}
	}
	return out, nil
}

// applySMask copies an 8-bit soft mask of the same size into the alpha
// channel.
func (it *interp) applySMask(ctx context.Context, d *raw.DictObj, img *image.NRGBA) {
	v, ok := it.doc.Lookup(d, "SMask")
	if !ok {
		return
	}
	s, ok := raw.AsStream(v)
	if !ok {
		return
	}
	w, _ := lookupInt(it.doc, s.Dict, "Width")
	h, _ := lookupInt(it.doc, s.Dict, "Height")
	b := img.Bounds()
	if int(w) != b.Dx() || int(h) != b.Dy() {
		it.warn(pdferr.Warning{Kind: pdferr.UnsupportedOperator, Subject: "SMask", Message: "soft mask size differs from image"})
		return
	}
	data, err := it.doc.DecodeStream(ctx, s)
	if err != nil || len(data) < int(w*h) {
		return
	}
	for i := 0; i < int(w*h); i++ {
		img.Pix[i*4+3] = data[i]
	}
}

func (it *interp) interpolate(d *raw.DictObj) bool {
	v, _ := it.doc.Lookup(d, "Interpolate")
	return isTrue(v)
}

// drawImage maps the unit square of image space through the CTM. Samples
// are picked by nearest neighbour unless the image asks for interpolation.
func (it *interp) drawImage(img image.Image, interpolate bool) {
	b := img.Bounds()
	if b.Empty() {
		return
	}
	m := coords.Matrix{1 / float64(b.Dx()), 0, 0, -1 / float64(b.Dy()), 0, 1}.Multiply(it.gs.ctm)
	s2d := f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
	clip := it.gs.clip.Intersect(it.img.Bounds())
	if clip.Empty() {
		return
	}
	dst, ok := it.img.SubImage(clip).(*image.RGBA)
	if !ok {
		return
	}
	var t draw.Transformer = draw.NearestNeighbor
	if interpolate {
		t = draw.BiLinear
	}
	t.Transform(dst, s2d, img, b, draw.Over, nil)
}

type bitReader struct {
	data   []byte
	stride int // bytes per row
	bpc    int
}

// newBitReader reads rows of perRow samples; rows start on byte
// boundaries.
func newBitReader(data []byte, perRow, bpc int) bitReader {
	return bitReader{data: data, stride: (perRow*bpc + 7) / 8, bpc: bpc}
}

func (b bitReader) fits(rows int) bool { return len(b.data) >= b.stride*rows }

func (b bitReader) sample(row, i int) uint32 {
	if b.bpc == 8 {
		return uint32(b.data[row*b.stride+i])
	}
	bit := i * b.bpc
	v := b.data[row*b.stride+bit/8]
	shift := 8 - b.bpc - bit%8
	return uint32(v>>uint(shift)) & (1<<uint(b.bpc) - 1)
}

func isTrue(o raw.Object) bool {
	v, ok := raw.AsBool(o)
	return ok && v
}
