// Package render rasterizes a page, including the current appearance of
// every visible annotation, into an RGBA image.
package render

import (
	"context"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/wudi/formkit/coords"
	"github.com/wudi/formkit/document"
	"github.com/wudi/formkit/observability"
	"github.com/wudi/formkit/pdferr"
)

// RenderedPage is a rasterized page. It is derived data and never written
// back to the document.
type RenderedPage struct {
	Image    *image.RGBA
	Width    int
	Height   int
	Scale    float64
	Warnings []pdferr.Warning
}

type Options struct {
	// SkipAnnotations renders the page content only.
	SkipAnnotations bool
	// Background defaults to white.
	Background color.Color
	Logger     observability.Logger
}

// Renderer draws pages of one document. It only reads the document and may
// be used from several goroutines.
type Renderer struct {
	doc  *document.Document
	opts Options
	log  observability.Logger
}

func New(doc *document.Document, opts Options) *Renderer {
	if opts.Background == nil {
		opts.Background = color.White
	}
	if opts.Logger == nil {
		opts.Logger = doc.Logger()
	}
	return &Renderer{doc: doc, opts: opts, log: observability.OrNop(opts.Logger)}
}

// Render draws page pageIndex (0-based) at scale pixels per point.
func (r *Renderer) Render(ctx context.Context, pageIndex int, scale float64) (out *RenderedPage, err error) {
	ctx, span := r.doc.Tracer().StartSpan(ctx, observability.SpanRender)
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()
	span.SetTag("page", pageIndex)

	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, pdferr.Errorf(pdferr.InvalidOption, "render", "scale %v must be positive", scale)
	}
	page, err := r.doc.Page(pageIndex)
	if err != nil {
		return nil, err
	}
	box := page.Box()
	w := int(math.Ceil(box.Width() * scale))
	h := int(math.Ceil(box.Height() * scale))
	if page.Rotate == 90 || page.Rotate == 270 {
		w, h = h, w
	}
	if w <= 0 || h <= 0 {
		return nil, pdferr.Errorf(pdferr.CorruptStructure, "render", "page %d has an empty box", pageIndex)
	}
	if max := r.doc.Limits().MaxRenderPixels; max > 0 && int64(w)*int64(h) > max {
		return nil, pdferr.Errorf(pdferr.InvalidOption, "render", "canvas %dx%d exceeds %d pixels", w, h, max)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(r.opts.Background), image.Point{}, draw.Src)

	it := newInterp(r, img)
	base := deviceMatrix(box, page.Rotate, scale)
	var prog []byte
	for _, stm := range r.doc.Contents(page) {
		data, err := r.doc.DecodeStream(ctx, stm)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			it.warn(pdferr.WarningFrom("contents", err))
			continue
		}
		// Each stream starts from the state the previous one left, as if
		// the streams were concatenated.
		prog = append(prog, data...)
		prog = append(prog, '\n')
	}
	if err := it.run(ctx, prog, page.Resources, base, 0); err != nil {
		return nil, err
	}
	if !r.opts.SkipAnnotations {
		if err := it.annotations(ctx, page, base); err != nil {
			return nil, err
		}
	}

	r.log.Debug("page rendered",
		observability.Int("page", pageIndex),
		observability.Int("width", w),
		observability.Int("height", h),
		observability.Int("warnings", len(it.warnings)))
	return &RenderedPage{Image: img, Width: w, Height: h, Scale: scale, Warnings: it.warnings}, nil
}

// deviceMatrix maps user space onto the canvas: the visible box starts at
// the top-left pixel, y grows downwards and /Rotate turns the page
// clockwise.
func deviceMatrix(box coords.Rect, rotate int, s float64) coords.Matrix {
	switch rotate {
	case 90:
		return coords.Matrix{0, s, s, 0, -box.LLY * s, -box.LLX * s}
	case 180:
		return coords.Matrix{-s, 0, 0, s, box.URX * s, -box.LLY * s}
	case 270:
		return coords.Matrix{0, -s, -s, 0, box.URY * s, box.URX * s}
	}
	return coords.Matrix{s, 0, 0, -s, -box.LLX * s, box.URY * s}
}
