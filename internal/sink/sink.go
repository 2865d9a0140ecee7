// Copyright 2014 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sink implements the buffered, append-only output used when
// serializing a PDF file.
package sink

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// BufferSize is the size of the scratch buffer; one underlying write is
// issued each time it fills up.
const BufferSize = 32 << 10

// ErrOffsetOverflow is returned when the running offset would no longer fit an int64.
var ErrOffsetOverflow = errors.New("sink: output offset overflow")

// A Writer batches writes to an underlying io.Writer and keeps track of the
// logical position in the final output.
//
// Errors are sticky: once a write fails, every later call returns the same error.
type Writer struct {
	w      io.Writer
	buf    []byte
	offset int64 // logical offset, including buffered bytes
	err    error
}

// New returns a Writer appending to w. The first byte written is reported
// at the given offset, which lets an incremental update continue the
// numbering of an existing file.
func New(w io.Writer, offset int64) *Writer {
	return &Writer{
		w:      w,
		buf:    make([]byte, 0, BufferSize),
		offset: offset,
	}
}

// Offset returns the logical position of the next byte written.
func (w *Writer) Offset() int64 { return w.offset }

// Err returns the first error encountered, if any.
func (w *Writer) Err() error { return w.err }

// WriteBlock appends p.
func (w *Writer) WriteBlock(p []byte) error {
	if w.err != nil {
		return w.err
	}
	if w.offset > math.MaxInt64-int64(len(p)) {
		w.err = ErrOffsetOverflow
		return w.err
	}
	w.offset += int64(len(p))
	for len(p) > 0 {
		n := copy(w.buf[len(w.buf):cap(w.buf)], p)
		w.buf = w.buf[:len(w.buf)+n]
		p = p[n:]
		if len(w.buf) == cap(w.buf) {
			if err := w.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	if err := w.WriteBlock(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteByte appends a single byte.
func (w *Writer) WriteByte(c byte) error {
	return w.WriteBlock([]byte{c})
}

// WriteString appends s.
func (w *Writer) WriteString(s string) error {
	return w.WriteBlock([]byte(s))
}

// WriteDWord appends the decimal representation of n.
func (w *Writer) WriteDWord(n uint32) error {
	var tmp [10]byte
	return w.WriteBlock(strconv.AppendUint(tmp[:0], uint64(n), 10))
}

// WriteFilesize appends the decimal representation of a file offset or size.
func (w *Writer) WriteFilesize(n int64) error {
	var tmp [20]byte
	return w.WriteBlock(strconv.AppendInt(tmp[:0], n, 10))
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.flush()
}

func (w *Writer) flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	n, err := w.w.Write(w.buf)
	if err == nil && n < len(w.buf) {
		err = io.ErrShortWrite
	}
	w.buf = w.buf[:0]
	if err != nil {
		w.err = fmt.Errorf("sink: %w", err)
	}
	return w.err
}
