package render

import (
	"context"

	"github.com/wudi/formkit/coords"
	"github.com/wudi/formkit/document"
	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/pdferr"
)

const (
	annotHidden = 1 << 1
	annotNoView = 1 << 5
)

// annotations paints the normal appearance of every visible annotation
// over the page content.
func (it *interp) annotations(ctx context.Context, page *document.Page, base coords.Matrix) error {
	for _, ref := range page.Annots {
		obj, err := it.doc.Resolve(ref)
		if err != nil {
			it.warn(pdferr.WarningFrom(ref.String(), err))
			continue
		}
		annot, ok := raw.AsDict(obj)
		if !ok {
			continue
		}
		if flags, _ := lookupInt(it.doc, annot, "F"); flags&(annotHidden|annotNoView) != 0 {
			continue
		}
		stm := it.normalAppearance(annot)
		if stm == nil {
			continue
		}
		rv, _ := it.doc.Lookup(annot, "Rect")
		rect, ok := coords.RectFrom(rv)
		if !ok || rect.Empty() {
			continue
		}
		m := coords.Identity()
		if mv, ok := it.doc.Lookup(stm.Dict, "Matrix"); ok {
			m, _ = coords.MatrixFrom(mv)
		}
		bv, _ := it.doc.Lookup(stm.Dict, "BBox")
		bbox, ok := coords.RectFrom(bv)
		if !ok {
			continue
		}
		tb := bbox.Transform(m)
		if tb.Empty() {
			continue
		}
		// Map the transformed bounding box onto the annotation rectangle.
		sx, sy := rect.Width()/tb.Width(), rect.Height()/tb.Height()
		fit := coords.Matrix{sx, 0, 0, sy, rect.LLX - tb.LLX*sx, rect.LLY - tb.LLY*sy}

		it.gs = newState(fit.Multiply(base), it.img.Bounds())
		it.stack = it.stack[:0]
		it.path.Reset()
		it.pendingClip = false
		if err := it.form(ctx, stm, page.Resources, 1); err != nil {
			return err
		}
	}
	return nil
}

// normalAppearance returns /AP /N, choosing the /AS state when /N is a
// dictionary of states.
func (it *interp) normalAppearance(annot *raw.DictObj) *raw.StreamObj {
	ap, ok := it.doc.LookupDict(annot, "AP")
	if !ok {
		return nil
	}
	n, ok := it.doc.Lookup(ap, "N")
	if !ok {
		return nil
	}
	if s, ok := raw.AsStream(n); ok {
		return s
	}
	states, ok := raw.AsDict(n)
	if !ok {
		return nil
	}
	as, _ := annot.Name("AS")
	if as == "" {
		return nil
	}
	v, ok := it.doc.Lookup(states, as)
	if !ok {
		return nil
	}
	s, _ := raw.AsStream(v)
	return s
}
