// Copyright 2014 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdf

import (
	"fmt"
	"maps"

	"github.com/ScriptRock/pdfwriter/internal/types"
)

// A Page represent a single page in a PDF file.
// The methods interpret a Page dictionary stored in V.
type Page struct {
	V Value
}

// Page returns the page for the given page number.
// Page numbers are indexed starting at 1, not 0.
// If the page is not found, Page returns a Page with p.V.IsNull().
func (r *Reader) Page(num int) Page {
	num-- // now 0-indexed
	page := r.Trailer().Key("Root").Key("Pages")
Search:
	for page.Key("Type").Name() == "Pages" {
		count := int(page.Key("Count").Int64())
		if count < num {
			return Page{}
		}
		kids := page.Key("Kids")
		for i := 0; i < kids.Len(); i++ {
			kid := kids.Index(i)
			if kid.Key("Type").Name() == "Pages" {
				c := int(kid.Key("Count").Int64())
				if num < c {
					page = kid
					continue Search
				}
				num -= c
				continue
			}
			if kid.Key("Type").Name() == "Page" {
				if num == 0 {
					return Page{kid}
				}
				num--
			}
		}
		break
	}
	return Page{}
}

// NumPage returns the number of pages in the PDF file.
func (r *Reader) NumPage() int {
	return int(r.Trailer().Key("Root").Key("Pages").Key("Count").Int64())
}

// findInherited walks up the page tree until a node defines key.
func (p Page) findInherited(key string) Value {
	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		if r := v.Key(key); !r.IsNull() {
			return r
		}
	}
	return Value{}
}

// MediaBox returns the page boundaries, which may be inherited from the page tree.
func (p Page) MediaBox() Value {
	return p.findInherited("MediaBox")
}

// AddPage appends a page of the given size to the end of the page tree,
// creating the tree if the catalog has none. contents, if not nil, becomes
// the page's content stream.
func (d *Document) AddPage(width, height float64, contents []byte) (Reference, error) {
	catalog, ok := d.dict(d.root.ID)
	if !ok {
		return Reference{}, fmt.Errorf("pdf: catalog %d is not a dictionary", d.root.ID)
	}

	treePtr, ok := catalog["Pages"].(types.Objptr)
	if !ok {
		treePtr = d.Add(types.Dict{"Type": types.Name("Pages"), "Kids": types.Array{}, "Count": int64(0)})
		catalog = maps.Clone(catalog)
		catalog["Pages"] = treePtr
		d.Replace(d.root.ID, catalog)
	}
	tree, ok := d.dict(treePtr.ID)
	if !ok {
		return Reference{}, fmt.Errorf("pdf: page tree %d is not a dictionary", treePtr.ID)
	}

	page := types.Dict{
		"Type":      types.Name("Page"),
		"Parent":    treePtr,
		"MediaBox":  types.Array{int64(0), int64(0), width, height},
		"Resources": types.Dict{},
	}
	if contents != nil {
		page["Contents"] = d.Add(types.Stream{Hdr: types.Dict{}, Data: contents})
	}
	ptr := d.Add(page)

	tree = maps.Clone(tree)
	kids, _ := tree["Kids"].(types.Array)
	tree["Kids"] = append(append(types.Array(nil), kids...), ptr)
	count, _ := tree["Count"].(int64)
	tree["Count"] = count + 1
	d.Replace(treePtr.ID, tree)
	return ptr, nil
}

// dict returns object n if it is a dictionary.
func (d *Document) dict(n uint32) (types.Dict, bool) {
	obj, ok := d.GetOrParse(n)
	if !ok {
		return nil, false
	}
	dict, ok := obj.(types.Dict)
	return dict, ok
}
