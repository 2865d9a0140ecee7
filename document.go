// Copyright 2014 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdf

import (
	"fmt"
	"maps"
	"slices"

	"github.com/ScriptRock/pdfwriter/internal/types"
)

// A Document is the indirect object graph of a PDF file.
//
// A loaded Document parses objects of the original file on demand and
// keeps them in memory once asked for with GetOrParse. Objects added or
// replaced by the caller are always resident.
type Document struct {
	r          *Reader
	objects    map[uint32]types.Object
	modified   map[uint32]bool
	lastObjNum uint32
	root       types.Objptr
	info       types.Objptr
}

// NewDocument returns a document holding only an empty catalog.
func NewDocument() *Document {
	d := &Document{
		objects:  make(map[uint32]types.Object),
		modified: make(map[uint32]bool),
	}
	d.root = d.Add(types.Dict{"Type": types.Name("Catalog")})
	return d
}

// Load returns the document stored in r.
func Load(r *Reader) (*Document, error) {
	root, ok := r.trailer["Root"].(types.Objptr)
	if !ok {
		return nil, fmt.Errorf("malformed PDF: trailer has no /Root reference")
	}
	info, _ := r.trailer["Info"].(types.Objptr)
	return &Document{
		r:          r,
		objects:    make(map[uint32]types.Object),
		modified:   make(map[uint32]bool),
		lastObjNum: r.LastObjNum(),
		root:       root,
		info:       info,
	}, nil
}

// Reader returns the file the document was loaded from, or nil.
func (d *Document) Reader() *Reader { return d.r }

// Root returns the reference of the document catalog.
func (d *Document) Root() Reference { return d.root }

// Info returns the reference of the document information dictionary,
// or the zero Reference if there is none.
func (d *Document) Info() Reference { return d.info }

// LastObjNum returns the highest object number in use.
func (d *Document) LastObjNum() uint32 { return d.lastObjNum }

// Object returns object n if it is resident in memory.
func (d *Document) Object(n uint32) (Object, bool) {
	obj, ok := d.objects[n]
	return obj, ok
}

// GetOrParse returns object n, parsing it from the original file and
// keeping it in memory if it is not resident yet.
func (d *Document) GetOrParse(n uint32) (Object, bool) {
	if obj, ok := d.objects[n]; ok {
		return obj, true
	}
	obj, err := d.parse(n)
	if err != nil {
		return nil, false
	}
	d.objects[n] = obj
	return obj, true
}

// parse reads object n from the original file without caching it.
func (d *Document) parse(n uint32) (types.Object, error) {
	if d.r == nil {
		return nil, fmt.Errorf("object %d: %w", n, errFreeObject)
	}
	return d.r.ReadObject(n)
}

// Add stores obj under a fresh object number.
func (d *Document) Add(obj Object) Reference {
	d.lastObjNum++
	d.objects[d.lastObjNum] = obj
	return types.Objptr{ID: d.lastObjNum}
}

// Replace stores obj as object n and marks it modified, so that an
// incremental update writes it again.
func (d *Document) Replace(n uint32, obj Object) {
	if n == 0 {
		panic("pdf: object number 0 is reserved")
	}
	d.objects[n] = obj
	d.modified[n] = true
	if n > d.lastObjNum {
		d.lastObjNum = n
	}
}

// Delete drops object n from memory. An object of the original file is
// parsed again when it is next needed; an added object is gone.
func (d *Document) Delete(n uint32) {
	delete(d.objects, n)
	delete(d.modified, n)
}

// SetInfo replaces the document information dictionary, adding one if the
// document has none.
func (d *Document) SetInfo(info Dict) Reference {
	if d.info.ID != 0 {
		d.Replace(d.info.ID, info)
		return d.info
	}
	d.info = d.Add(info)
	return d.info
}

// ObjectNumbers returns the numbers of the resident objects in ascending order.
func (d *Document) ObjectNumbers() []uint32 {
	return slices.Sorted(maps.Keys(d.objects))
}

func (d *Document) isModified(n uint32) bool { return d.modified[n] }

// referencedObjects returns the numbers of all objects reachable from the
// catalog, the information dictionary and roots. Objects that are not
// resident are parsed but not kept.
func (d *Document) referencedObjects(roots ...types.Objptr) map[uint32]bool {
	seen := make(map[uint32]bool)
	var stack []uint32
	push := func(ptr types.Objptr) {
		if ptr.ID != 0 && !seen[ptr.ID] {
			seen[ptr.ID] = true
			stack = append(stack, ptr.ID)
		}
	}
	push(d.root)
	push(d.info)
	for _, ptr := range roots {
		push(ptr)
	}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		obj, ok := d.objects[n]
		if !ok {
			var err error
			if obj, err = d.parse(n); err != nil {
				continue
			}
		}
		types.References(obj, push)
	}
	return seen
}
