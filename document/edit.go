package document

import (
	"context"
	"fmt"

	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/pdferr"
)

// Editor stages changes against a Document. Objects are cloned the first
// time they are opened for writing; the base Document is never touched.
// An Editor is not safe for concurrent use.
type Editor struct {
	base    *Document
	changed map[raw.ObjectRef]raw.Object
	added   map[raw.ObjectRef]bool
	next    int
}

func (d *Document) Edit() *Editor {
	return &Editor{
		base:    d,
		changed: make(map[raw.ObjectRef]raw.Object),
		added:   make(map[raw.ObjectRef]bool),
		next:    d.maxNum + 1,
	}
}

// Base is the document the editor started from.
func (e *Editor) Base() *Document { return e.base }

// Get returns the current, staged or original, version of ref for reading.
func (e *Editor) Get(ref raw.ObjectRef) (raw.Object, error) {
	if obj, ok := e.changed[ref]; ok {
		return obj, nil
	}
	return e.base.Resolve(ref)
}

func (e *Editor) Deref(obj raw.Object) (raw.Object, error) {
	if r, ok := obj.(raw.RefObj); ok {
		return e.Get(r.R)
	}
	return obj, nil
}

// Mutable returns a private copy of ref that may be modified in place.
func (e *Editor) Mutable(ref raw.ObjectRef) (raw.Object, error) {
	if obj, ok := e.changed[ref]; ok {
		return obj, nil
	}
	obj, err := e.base.Resolve(ref)
	if err != nil {
		return nil, err
	}
	cp := raw.Clone(obj)
	e.changed[ref] = cp
	return cp, nil
}

// MutableDict is Mutable for dictionaries and stream dictionaries.
func (e *Editor) MutableDict(ref raw.ObjectRef) (*raw.DictObj, error) {
	obj, err := e.Mutable(ref)
	if err != nil {
		return nil, err
	}
	d, ok := raw.AsDict(obj)
	if !ok {
		return nil, pdferr.ForRef(pdferr.CorruptStructure, "edit", ref, fmt.Errorf("expected a dictionary, found %s", obj.Type()))
	}
	return d, nil
}

// Set replaces ref wholesale.
func (e *Editor) Set(ref raw.ObjectRef, obj raw.Object) {
	e.changed[ref] = obj
}

// Add stores obj under a fresh object number.
func (e *Editor) Add(obj raw.Object) raw.ObjectRef {
	ref := raw.ObjectRef{Num: e.next}
	e.next++
	e.changed[ref] = obj
	e.added[ref] = true
	return ref
}

// Commit builds the edited Document. Staged objects equal to their
// original are dropped, so committing a no-op edit returns the base.
func (e *Editor) Commit() (*Document, error) {
	changes := make(map[raw.ObjectRef]raw.Object)
	for ref, obj := range e.changed {
		if old, ok := e.base.objects[ref]; ok && !e.added[ref] && raw.Equal(old, obj) {
			continue
		}
		changes[ref] = obj
	}
	if len(changes) == 0 {
		return e.base, nil
	}

	b := e.base
	d := &Document{
		objects:   make(map[raw.ObjectRef]raw.Object, len(b.objects)+len(changes)),
		trailer:   b.trailer,
		root:      b.root,
		maxNum:    b.maxNum,
		modified:  make(map[raw.ObjectRef]bool, len(b.modified)+len(changes)),
		original:  b.original,
		startXRef: b.startXRef,
		version:   b.version,
		fileID:    b.fileID,
		warnings:  b.warnings[:len(b.warnings):len(b.warnings)],
		settings:  b.settings,
		pipeline:  b.pipeline,
		decoded:   b.decoded,
	}
	for ref, obj := range b.objects {
		d.objects[ref] = obj
	}
	for ref := range b.modified {
		d.modified[ref] = true
	}
	for ref, obj := range changes {
		d.objects[ref] = obj
		d.modified[ref] = true
		if ref.Num > d.maxNum {
			d.maxNum = ref.Num
		}
	}
	if _, ok := d.objects[d.root].(*raw.DictObj); !ok {
		return nil, pdferr.ForRef(pdferr.CorruptStructure, "commit", d.root, fmt.Errorf("document catalog is not a dictionary"))
	}
	if err := d.flattenPages(context.Background()); err != nil {
		return nil, err
	}
	// Page tree problems were reported by Load already.
	d.warnings = b.warnings
	d.info = d.readInfo()
	return d, nil
}
