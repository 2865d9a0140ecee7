// Copyright 2014 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/ScriptRock/pdfwriter/internal/sink"
	"github.com/ScriptRock/pdfwriter/internal/types"
)

// ErrOffsetTooLarge is returned when an object lies beyond the offsets a
// cross-reference section can express: ten decimal digits in a table,
// four bytes in a stream.
var ErrOffsetTooLarge = errors.New("pdf: object offset too large for cross-reference section")

const (
	maxTableOffset  = 9999999999
	freeEntry       = "0000000000 65535 f\r\n"
	indexRecordSize = 5
)

// writeXrefTable writes a classic cross-reference section for the objects
// in list, grouped into subsections of consecutive numbers. With withFree
// set the section also carries the entry of object 0, which starts every
// complete table.
func writeXrefTable(w *sink.Writer, offsets map[uint32]int64, list []uint32, withFree bool) error {
	w.WriteString("xref\r\n")
	rs := runs(list)
	if withFree && (len(rs) == 0 || rs[0][0] != 1) {
		w.WriteString("0 1\r\n" + freeEntry)
	}
	for _, run := range rs {
		if run[0] == 1 {
			fmt.Fprintf(w, "0 %d\r\n%s", run[1]+1, freeEntry)
		} else {
			fmt.Fprintf(w, "%d %d\r\n", run[0], run[1])
		}
		for n := run[0]; n < run[0]+run[1]; n++ {
			off := offsets[n]
			if off > maxTableOffset {
				return fmt.Errorf("object %d at %d: %w", n, off, ErrOffsetTooLarge)
			}
			fmt.Fprintf(w, "%010d 00000 n\r\n", off)
		}
	}
	return w.Err()
}

// indexRecord returns the cross-reference stream record of an object at
// offset off: four bytes of offset and a zero generation byte.
func indexRecord(off uint32) [indexRecordSize]byte {
	var rec [indexRecordSize]byte
	binary.BigEndian.PutUint32(rec[:4], off)
	return rec
}

// xrefStreamIndex returns the /Index array and the packed records of a
// cross-reference stream listing the objects in list, one entry per object.
func xrefStreamIndex(offsets map[uint32]int64, list []uint32) (types.Array, []byte, error) {
	index := make(types.Array, 0, 2*len(list))
	data := make([]byte, 0, indexRecordSize*len(list))
	for _, n := range list {
		off := offsets[n]
		if off > math.MaxUint32 {
			return nil, nil, fmt.Errorf("object %d at %d: %w", n, off, ErrOffsetTooLarge)
		}
		index = append(index, int64(n), int64(1))
		rec := indexRecord(uint32(off))
		data = append(data, rec[:]...)
	}

	var count int64
	for i := 1; i < len(index); i += 2 {
		count += index[i].(int64)
	}
	if count*indexRecordSize != int64(len(data)) {
		panic(fmt.Sprintf("pdf: xref stream declares %d entries but holds %d bytes", count, len(data)))
	}
	return index, data, nil
}
