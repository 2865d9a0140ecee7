// Copyright 2014 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdf

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/ScriptRock/pdfwriter/internal/encoding"
	"github.com/ScriptRock/pdfwriter/internal/sink"
	"github.com/ScriptRock/pdfwriter/internal/types"
)

// A Value is an object read from a Reader. References inside it are
// resolved on access. The zero Value is null.
type Value struct {
	r    *Reader
	ptr  types.Objptr
	data types.Object
}

// IsNull reports whether v is null.
func (v Value) IsNull() bool {
	return v.data == nil
}

// A ValueKind is the type of object held by a Value.
type ValueKind int

// The PDF value kinds.
const (
	NullKind ValueKind = iota
	BoolKind
	IntegerKind
	RealKind
	StringKind
	NameKind
	DictKind
	ArrayKind
	StreamKind
)

// Kind returns the type of object v holds.
func (v Value) Kind() ValueKind {
	switch v.data.(type) {
	default:
		return NullKind
	case bool:
		return BoolKind
	case int64:
		return IntegerKind
	case float64:
		return RealKind
	case string, types.HexString:
		return StringKind
	case types.Name:
		return NameKind
	case types.Dict:
		return DictKind
	case types.Array:
		return ArrayKind
	case types.Stream:
		return StreamKind
	}
}

// String returns v in PDF syntax. Strings are written as literal
// strings; use Text to read a string's contents.
func (v Value) String() string {
	return objfmt(v.data)
}

// objfmt formats x for error messages and String.
func objfmt(x any) string {
	switch x := x.(type) {
	case types.Objdef:
		return fmt.Sprintf("%d %d obj %s", x.Ptr.ID, x.Ptr.Gen, objfmt(x.Obj))
	case types.Stream:
		return objfmt(x.Hdr) + " stream"
	}
	var buf bytes.Buffer
	w := sink.New(&buf, 0)
	ow := objectWriter{w: w}
	if err := ow.writeDirect(x, nil); err != nil {
		return fmt.Sprint(x)
	}
	if err := w.Flush(); err != nil {
		return fmt.Sprint(x)
	}
	return buf.String()
}

// Bool returns a boolean, or false if v is not one.
func (v Value) Bool() bool {
	x, _ := v.data.(bool)
	return x
}

// Int64 returns an integer, or 0 if v is not one.
func (v Value) Int64() int64 {
	x, _ := v.data.(int64)
	return x
}

// Float64 returns a real or integer as float64, and 0 otherwise.
func (v Value) Float64() float64 {
	switch x := v.data.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	}
	return 0
}

// Text decodes a PDFDocEncoding or UTF-16BE text string to UTF-8.
// It returns "" for anything that is not a string.
func (v Value) Text() string {
	x, ok := stringOf(v.data)
	if !ok {
		return ""
	}
	if encoding.IsPDFDocEncoded(x) {
		return encoding.PDFDocDecode(x)
	}
	if encoding.IsUTF16(x) {
		return encoding.UTF16Decode(x[2:])
	}
	return x
}

// Name returns the name without its slash, or "" if v is not a name.
func (v Value) Name() string {
	x, ok := v.data.(types.Name)
	if !ok {
		return ""
	}
	return string(x)
}

// dict returns v's dictionary, or a stream's header.
func (v Value) dict() (types.Dict, bool) {
	switch x := v.data.(type) {
	case types.Dict:
		return x, true
	case types.Stream:
		return x.Hdr, true
	}
	return nil, false
}

// Key looks up key (without its slash) in a dictionary or stream header.
func (v Value) Key(key string) Value {
	x, ok := v.dict()
	if !ok {
		return Value{}
	}
	return v.r.resolve(v.ptr, x[types.Name(key)])
}

// Keys returns the sorted keys of a dictionary or stream header.
func (v Value) Keys() []string {
	x, ok := v.dict()
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(x))
	for k := range x {
		keys = append(keys, string(k))
	}
	slices.Sort(keys)
	return keys
}

// Index returns element i of an array, or null when out of range.
func (v Value) Index(i int) Value {
	x, ok := v.data.(types.Array)
	if !ok || i < 0 || i >= len(x) {
		return Value{}
	}
	return v.r.resolve(v.ptr, x[i])
}

// Len returns the length of an array.
func (v Value) Len() int {
	x, _ := v.data.(types.Array)
	return len(x)
}
