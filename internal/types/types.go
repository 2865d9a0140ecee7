// Copyright 2014 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package types

import "golang.org/x/exp/maps"

// A name is a PDF name, without the leading slash.
type Name string

// An object is a PDF syntax object, one of the following Go types:
//
//	bool, a PDF boolean
//	int64, a PDF integer
//	float64, a PDF real
//	string, a PDF string literal
//	HexString, a PDF string written in hexadecimal form
//	name, a PDF name without the leading slash
//	dict, a PDF dictionary
//	array, a PDF array
//	stream, a PDF stream
//	objptr, a PDF object reference
//	objdef, a PDF object definition
//
// An object may also be nil, to represent the PDF null.
type Object any

type Dict map[Name]Object

type Array []Object

// HexString is a string that was read from, or is to be written as, <...> syntax.
type HexString string

// A Stream is a stream header plus its payload.
// Streams produced by the lexer only know where the payload starts (Offset);
// streams loaded by the reader or built by callers carry the still-encoded bytes in Data.
type Stream struct {
	Hdr    Dict
	Ptr    Objptr
	Offset int64
	Data   []byte
}

type Objptr struct {
	ID  uint32
	Gen uint16
}

type Objdef struct {
	Ptr Objptr
	Obj Object
}

type Xref struct {
	Ptr      Objptr
	InStream bool
	Stream   Objptr
	Offset   int64
}

// Clone returns a deep copy of x. References are copied, not followed.
func Clone(x Object) Object {
	switch x := x.(type) {
	case Dict:
		d := maps.Clone(x)
		for k, v := range d {
			d[k] = Clone(v)
		}
		return d
	case Array:
		a := make(Array, len(x))
		for i, v := range x {
			a[i] = Clone(v)
		}
		return a
	case Stream:
		s := x
		s.Hdr, _ = Clone(x.Hdr).(Dict)
		s.Data = append([]byte(nil), x.Data...)
		return s
	}
	return x
}

// References calls fn for every object reference contained in x.
func References(x Object, fn func(Objptr)) {
	switch x := x.(type) {
	case Objptr:
		fn(x)
	case Dict:
		for _, v := range x {
			References(v, fn)
		}
	case Array:
		for _, v := range x {
			References(v, fn)
		}
	case Stream:
		References(x.Hdr, fn)
	}
}
