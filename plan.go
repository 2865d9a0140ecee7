// Copyright 2014 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdf

// A plan says how a Creator lays out its output.
type plan struct {
	incremental bool  // append to the original file instead of rewriting it
	original    bool  // copy the bytes of the original file before the update
	savedOffset int64 // size of the original file; the update starts here
	synthesize  bool  // the original has no usable xref; index every old object
	xrefStream  bool  // the update ends in a cross-reference stream
}

// newPlan decides between a full rewrite and an incremental update.
// A change of security forces a full rewrite of an update that includes
// the original bytes. Without them the caller owns the original file and
// only the delta is written.
func newPlan(flags Flag, r *Reader, securityChanged bool) plan {
	p := plan{
		original: flags&NoOriginal == 0,
	}
	p.incremental = flags&Incremental != 0 && r != nil && !(securityChanged && p.original)
	if p.incremental {
		p.savedOffset = r.Size()
		p.synthesize = r.LastXRefOffset() == 0
		p.xrefStream = r.IsXRefStream()
	}
	return p
}

// startOffset returns the logical offset of the first byte the Creator writes.
// An update without the original prefix is meant to be appended to the
// original file by the caller, so its offsets continue that file.
func (p plan) startOffset() int64 {
	if p.incremental && !p.original {
		return p.savedOffset
	}
	return 0
}

// oldOffsets returns the offsets of every object of r that an
// incremental update over a file without xref history must index again.
func (p plan) oldOffsets(r *Reader) map[uint32]int64 {
	offsets := make(map[uint32]int64)
	if !p.incremental || !p.original || !p.synthesize {
		return offsets
	}
	for n := uint32(1); n <= r.LastObjNum(); n++ {
		if r.ObjectType(n) == NormalObject {
			offsets[n] = r.ObjectOffset(n)
		}
	}
	return offsets
}
