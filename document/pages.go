package document

import (
	"context"
	"fmt"

	"github.com/wudi/formkit/coords"
	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/pdferr"
	"github.com/wudi/formkit/recovery"
)

// Page is one leaf of the page tree with inherited attributes applied.
type Page struct {
	Index     int
	Ref       raw.ObjectRef
	Dict      *raw.DictObj
	MediaBox  coords.Rect
	CropBox   coords.Rect
	Rotate    int // 0, 90, 180 or 270
	Resources *raw.DictObj
	Annots    []raw.ObjectRef
}

// Box is the visible area: CropBox clipped to MediaBox.
func (p *Page) Box() coords.Rect {
	b := p.CropBox.Intersect(p.MediaBox)
	if b.Empty() {
		return p.MediaBox
	}
	return b
}

// Contents returns the content stream objects of the page, dereferenced.
func (d *Document) Contents(p *Page) []*raw.StreamObj {
	v, ok := d.Lookup(p.Dict, "Contents")
	if !ok {
		return nil
	}
	if s, ok := raw.AsStream(v); ok {
		return []*raw.StreamObj{s}
	}
	arr, ok := raw.AsArray(v)
	if !ok {
		return nil
	}
	var out []*raw.StreamObj
	for _, it := range arr.Items {
		if v, err := d.Deref(it); err == nil {
			if s, ok := raw.AsStream(v); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

type inherited struct {
	mediaBox  *coords.Rect
	cropBox   *coords.Rect
	rotate    *int
	resources *raw.DictObj
}

var letter = coords.Rect{URX: 612, URY: 792}

// flattenPages walks Root /Pages depth-first, carrying the inheritable
// attributes down to the leaves.
func (d *Document) flattenPages(ctx context.Context) error {
	d.pages = nil
	d.pageRefs = make(map[raw.ObjectRef]int)
	pagesRef, ok := raw.AsRef(get(d.Catalog(), "Pages"))
	if !ok {
		if _, direct := raw.AsDict(get(d.Catalog(), "Pages")); direct {
			return pdferr.New(pdferr.CorruptStructure, "pages", "page tree root must be an indirect object")
		}
		return pdferr.New(pdferr.CorruptStructure, "pages", "catalog has no /Pages")
	}
	visited := make(map[raw.ObjectRef]bool)
	return d.walkPages(ctx, pagesRef, inherited{}, visited, 0)
}

func (d *Document) walkPages(ctx context.Context, ref raw.ObjectRef, inh inherited, visited map[raw.ObjectRef]bool, depth int) error {
	if visited[ref] {
		return pdferr.ForRef(pdferr.CorruptStructure, "pages", ref, fmt.Errorf("page tree cycle"))
	}
	if depth > d.settings.limits.MaxIndirectDepth {
		return pdferr.ForRef(pdferr.CorruptStructure, "pages", ref, fmt.Errorf("page tree deeper than %d", d.settings.limits.MaxIndirectDepth))
	}
	visited[ref] = true

	obj, err := d.Resolve(ref)
	if err != nil {
		return d.skipPage(ctx, ref, err)
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return d.skipPage(ctx, ref, pdferr.ForRef(pdferr.CorruptStructure, "pages", ref, fmt.Errorf("page tree node is a %s", obj.Type())))
	}

	if r, ok := d.rect(dict, "MediaBox"); ok {
		inh.mediaBox = &r
	}
	if r, ok := d.rect(dict, "CropBox"); ok {
		inh.cropBox = &r
	}
	if v, ok := d.Lookup(dict, "Rotate"); ok {
		if n, ok := raw.AsInt(v); ok {
			rot := int(((n % 360) + 360) % 360 / 90 * 90)
			inh.rotate = &rot
		}
	}
	if res, ok := d.LookupDict(dict, "Resources"); ok {
		inh.resources = res
	}

	typ, _ := dict.Name("Type")
	_, hasKids := dict.Get("Kids")
	if typ == "Pages" || (typ != "Page" && hasKids) {
		kids, ok := d.Array(get(dict, "Kids"))
		if !ok {
			return d.skipPage(ctx, ref, pdferr.ForRef(pdferr.CorruptStructure, "pages", ref, fmt.Errorf("pages node without /Kids array")))
		}
		for _, kid := range kids.Items {
			kref, ok := raw.AsRef(kid)
			if !ok {
				if err := d.skipPage(ctx, ref, pdferr.ForRef(pdferr.CorruptStructure, "pages", ref, fmt.Errorf("direct object in /Kids"))); err != nil {
					return err
				}
				continue
			}
			if err := d.walkPages(ctx, kref, inh, visited, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	p := &Page{Index: len(d.pages), Ref: ref, Dict: dict, MediaBox: letter, Resources: inh.resources}
	if inh.mediaBox != nil {
		p.MediaBox = *inh.mediaBox
	}
	p.CropBox = p.MediaBox
	if inh.cropBox != nil {
		p.CropBox = *inh.cropBox
	}
	if inh.rotate != nil {
		p.Rotate = *inh.rotate
	}
	if p.Resources == nil {
		p.Resources = raw.Dict()
	}
	if annots, ok := d.Array(get(dict, "Annots")); ok {
		for _, a := range annots.Items {
			if r, ok := raw.AsRef(a); ok {
				p.Annots = append(p.Annots, r)
			}
		}
	}
	d.pageRefs[ref] = p.Index
	d.pages = append(d.pages, p)
	return nil
}

// skipPage drops a broken page tree node in lenient mode.
func (d *Document) skipPage(ctx context.Context, ref raw.ObjectRef, err error) error {
	if !d.settings.recovery.OnError(ctx, err, recovery.Location{ObjectNum: ref.Num, ObjectGen: ref.Gen, Component: "pages"}).Continue() {
		return err
	}
	d.warn(ref.String(), err)
	return nil
}

func (d *Document) rect(dict *raw.DictObj, key string) (coords.Rect, bool) {
	v, ok := d.Lookup(dict, key)
	if !ok {
		return coords.Rect{}, false
	}
	r, ok := coords.RectFrom(v)
	if !ok || r.Empty() {
		return coords.Rect{}, false
	}
	return r, true
}
