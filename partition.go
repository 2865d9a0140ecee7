// Copyright 2014 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdf

import (
	"maps"
	"slices"

	"github.com/ScriptRock/pdfwriter/internal/types"
)

// oldObjects returns, in ascending order, the objects of the original
// file that a full rewrite writes again: those still in use and reachable
// from the document's roots. Other objects are dropped.
func oldObjects(d *Document, roots ...types.Objptr) []uint32 {
	if d.r == nil {
		return nil
	}
	live := d.referencedObjects(roots...)
	var list []uint32
	for n := uint32(1); n <= d.r.LastObjNum(); n++ {
		if live[n] && !d.r.IsObjectFree(n) {
			list = append(list, n)
		}
	}
	return list
}

// newObjects returns, in ascending order, the resident objects that are
// not part of the original file, either because they are beyond it or
// because the original has them free. An incremental update also counts
// objects replaced since loading.
func newObjects(d *Document, incremental bool) []uint32 {
	var list []uint32
	for _, n := range d.ObjectNumbers() {
		if d.r == nil || d.r.IsObjectFree(n) || incremental && d.isModified(n) {
			list = append(list, n)
		}
	}
	for i := 1; i < len(list); i++ {
		if list[i-1] >= list[i] {
			panic("pdf: new object list is not strictly increasing")
		}
	}
	return list
}

// runs splits an ascending list of object numbers into maximal runs of
// consecutive numbers, returned as (first, count) pairs.
func runs(list []uint32) [][2]uint32 {
	var out [][2]uint32
	for i := 0; i < len(list); {
		j := i + 1
		for j < len(list) && list[j] == list[j-1]+1 {
			j++
		}
		out = append(out, [2]uint32{list[i], uint32(j - i)})
		i = j
	}
	return out
}

// sortedKeys returns the object numbers of offsets in ascending order.
func sortedKeys(offsets map[uint32]int64) []uint32 {
	return slices.Sorted(maps.Keys(offsets))
}
