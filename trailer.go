// Copyright 2014 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdf

import (
	"slices"

	"github.com/ScriptRock/pdfwriter/internal/sink"
	"github.com/ScriptRock/pdfwriter/internal/types"
)

// structuralKeys are recomputed for every trailer and never copied from
// the original one.
var structuralKeys = []types.Name{
	"Encrypt", "Size", "Filter", "Index", "Length", "Prev",
	"W", "XRefStm", "ID", "DecodeParms", "Type",
}

// passthrough returns the entries of the original trailer that a new
// trailer keeps unchanged.
func passthrough(r *Reader) types.Dict {
	t := types.Dict{}
	if r == nil {
		return t
	}
	for k, v := range r.trailerDict() {
		if !slices.Contains(structuralKeys, k) {
			t[k] = v
		}
	}
	return t
}

// trailerDict returns the trailer of the output. The xref stream of an
// incremental update takes the object number after the last one, so /Size
// counts it too.
func (c *Creator) trailerDict(xrefStream bool) types.Dict {
	t := passthrough(c.r)
	t["Root"] = c.doc.root
	if c.doc.info.ID != 0 {
		t["Info"] = c.doc.info
	}
	if c.encrypt != nil {
		t["Encrypt"] = types.Objptr{ID: c.encryptObjNum}
	}
	size := int64(c.lastObjNum) + 1
	if xrefStream {
		size++
	}
	t["Size"] = size
	if c.plan.incremental {
		if prev := c.r.LastXRefOffset(); prev != 0 {
			t["Prev"] = prev
		}
	}
	if len(c.ids) > 0 {
		t["ID"] = c.ids
	}
	return t
}

// writeTrailer writes the trailer dictionary, or the cross-reference
// stream that carries it, followed by startxref and the end-of-file marker.
func (c *Creator) writeTrailer() error {
	w := c.w
	if !c.plan.xrefStream {
		w.WriteString("trailer\r\n")
		if err := c.ow.writeDirect(c.trailerDict(false), nil); err != nil {
			return err
		}
	} else {
		list := c.newList
		if c.plan.synthesize {
			list = sortedKeys(c.offsets)
		}
		index, data, err := xrefStreamIndex(c.offsets, c.written(list))
		if err != nil {
			return err
		}
		hdr := c.trailerDict(true)
		hdr["Type"] = types.Name("XRef")
		hdr["W"] = types.Array{int64(0), int64(4), int64(1)}
		hdr["Index"] = index
		if err := c.ow.writeIndirect(c.lastObjNum+1, types.Stream{Hdr: hdr, Data: data}, true); err != nil {
			return err
		}
	}
	return finish(w, c.xrefStart)
}

func finish(w *sink.Writer, xrefStart int64) error {
	w.WriteString("\r\nstartxref\r\n")
	w.WriteFilesize(xrefStart)
	w.WriteString("\r\n%%EOF\r\n")
	return w.Flush()
}
