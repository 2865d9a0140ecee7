// Copyright 2014 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pdf implements reading and writing of PDF files.
//
// # Overview
//
// A PDF document is a complex data format built on a fairly simple structure:
// a sequence of numbered indirect objects, a cross-reference table mapping
// object numbers to byte offsets, and a trailer dictionary naming the
// document catalog.
//
// A Reader exposes that structure for an existing file. A Document is the
// in-memory object graph; it is either new or loaded from a Reader, in which
// case objects are parsed lazily. A Creator serializes a Document, either as
// a complete new file or as an incremental update appended to the original.
//
// Values read from a file have one of the following Kinds:
//
//	Null, for the null object.
//	Integer, for an integer.
//	Real, for a floating-point number.
//	Bool, for a boolean value.
//	Name, for a name constant (as in /Helvetica).
//	String, for a string constant.
//	Dict, for a dictionary of name-value pairs.
//	Array, for an array of values.
//	Stream, for an opaque data stream and associated header dictionary.
//
// The accessors on Value (Int64, Float64, Bool, Name, and so on) return
// a view of the data as the given type. When there is no appropriate view,
// the accessor returns a zero result.
package pdf

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"

	"github.com/ScriptRock/pdfwriter/internal/crypt"
	"github.com/ScriptRock/pdfwriter/internal/types"
)

// A Reader is a single PDF file open for reading.
type Reader struct {
	f          io.ReaderAt
	end        int64
	version    int
	xref       []types.Xref
	xrefStream bool
	startxref  int64 // 0 if the cross-reference table had to be rebuilt
	trailer    types.Dict
	trailerptr types.Objptr
	crypt      *crypt.Handler
	encrypt    types.Dict
	encryptptr types.Objptr
	password   string
}

// ObjectType classifies an object number of the original file.
type ObjectType int

const (
	FreeObject       ObjectType = iota // unused, deleted or out of range
	NormalObject                       // stored at a byte offset
	CompressedObject                   // stored inside an object stream
)

var errFreeObject = errors.New("object is free")

// maxObjectNumber bounds the object numbers read from cross-reference
// sections and from a rebuild scan.
const maxObjectNumber = 4 << 20

// Open opens a file for reading.
// Reader.Close should be called when done with the Reader.
func Open(file string) (*Reader, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	reader, err := NewReader(f, fi.Size())
	if err != nil {
		f.Close()
	}
	return reader, err
}

// NewReader opens a file for reading, using the data in f with the given total size.
func NewReader(f io.ReaderAt, size int64) (*Reader, error) {
	return NewReaderEncrypted(f, size, "")
}

// NewReaderEncrypted opens a file for reading, using the data in f with the given total size.
// If the PDF is encrypted and the empty user password does not open it,
// NewReaderEncrypted tries pw.
func NewReaderEncrypted(f io.ReaderAt, size int64, pw string) (*Reader, error) {
	buf := make([]byte, 10)
	f.ReadAt(buf, 0)
	if !bytes.HasPrefix(buf, []byte("%PDF-1.")) || buf[7] < '0' || buf[7] > '7' || buf[8] != '\r' && buf[8] != '\n' {
		return nil, fmt.Errorf("not a PDF file: invalid header")
	}

	r := &Reader{
		f:       f,
		end:     size,
		version: 10 + int(buf[7]-'0'),
	}
	if err := r.readXrefChain(); err != nil {
		slog.Debug("rebuilding cross-reference table", slog.Any("err", err))
		if err := r.rebuildXref(); err != nil {
			return nil, err
		}
	}

	if r.trailer["Encrypt"] == nil {
		return r, nil
	}
	err := r.initEncrypt("")
	if err == nil {
		return r, nil
	}
	if pw == "" || err != crypt.ErrInvalidPassword {
		return nil, err
	}
	if err := r.initEncrypt(pw); err != nil {
		return nil, err
	}
	return r, nil
}

// readXrefChain locates startxref and reads the cross-reference sections
// it leads to.
func (r *Reader) readXrefChain() (err error) {
	defer func() {
		if x := recover(); x != nil {
			err = fmt.Errorf("malformed PDF: %v", x)
		}
	}()

	const endChunk = 100
	start := r.end - endChunk
	if start < 0 {
		start = 0
	}
	buf := make([]byte, r.end-start)
	r.f.ReadAt(buf, start)
	buf = bytes.TrimRight(buf, "\r\n\t \x00")
	if !bytes.HasSuffix(buf, []byte("%%EOF")) {
		return fmt.Errorf("not a PDF file: missing %%%%EOF")
	}
	i := findLastLine(buf, "startxref")
	if i < 0 {
		return fmt.Errorf("malformed PDF file: missing final startxref")
	}

	pos := start + int64(i)
	b := newBuffer(io.NewSectionReader(r.f, pos, r.end-pos), pos)
	if b.readToken() != keyword("startxref") {
		return fmt.Errorf("malformed PDF file: missing startxref")
	}
	startxref, ok := b.readToken().(int64)
	if !ok || startxref <= 0 || startxref >= r.end {
		return fmt.Errorf("malformed PDF file: startxref not followed by a valid offset")
	}
	b = newBuffer(io.NewSectionReader(r.f, startxref, r.end-startxref), startxref)
	xref, trailerptr, trailer, err := readXref(r, b)
	if err != nil {
		return err
	}
	r.xref = xref
	r.trailer = trailer
	r.trailerptr = trailerptr
	r.startxref = startxref
	return nil
}

// Close closes the underlying Reader if it is an io.Closer.
func (r *Reader) Close() error {
	if c, ok := r.f.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

// Trailer returns the file's trailer dictionary.
func (r *Reader) Trailer() Value {
	return Value{r: r, ptr: r.trailerptr, data: r.trailer}
}

// FileVersion returns the header version as 10 times the PDF version, for example 17 for PDF 1.7.
func (r *Reader) FileVersion() int { return r.version }

// Size returns the size of the original file in bytes.
func (r *Reader) Size() int64 { return r.end }

// LastObjNum returns the highest object number in the cross-reference table.
func (r *Reader) LastObjNum() uint32 {
	if len(r.xref) == 0 {
		return 0
	}
	return uint32(len(r.xref) - 1)
}

// ObjectType reports how object n is stored.
func (r *Reader) ObjectType(n uint32) ObjectType {
	if n == 0 || int64(n) >= int64(len(r.xref)) {
		return FreeObject
	}
	e := r.xref[n]
	switch {
	case e.InStream && e.Ptr.ID == n:
		return CompressedObject
	case !e.InStream && e.Ptr.ID == n && e.Offset > 0:
		return NormalObject
	}
	return FreeObject
}

// IsObjectFree reports whether object n is absent from the original file.
func (r *Reader) IsObjectFree(n uint32) bool { return r.ObjectType(n) == FreeObject }

// ObjectOffset returns the byte offset of object n, or 0 if it is not a normal object.
func (r *Reader) ObjectOffset(n uint32) int64 {
	if r.ObjectType(n) != NormalObject {
		return 0
	}
	return r.xref[n].Offset
}

// IsXRefStream reports whether the last cross-reference section is a stream.
func (r *Reader) IsXRefStream() bool { return r.xrefStream }

// LastXRefOffset returns the offset of the last cross-reference section,
// or 0 if the table was rebuilt by scanning the file.
func (r *Reader) LastXRefOffset() int64 { return r.startxref }

// Password returns the password that opened the file.
func (r *Reader) Password() string { return r.password }

func (r *Reader) trailerDict() types.Dict { return r.trailer }

func (r *Reader) idArray() types.Array {
	ids, _ := r.trailer["ID"].(types.Array)
	return ids
}

func (r *Reader) encryptDict() (types.Dict, types.Objptr) { return r.encrypt, r.encryptptr }

func (r *Reader) cryptoHandler() *crypt.Handler { return r.crypt }

// ReadObject parses object n. Stream data is loaded and decrypted but not decoded.
func (r *Reader) ReadObject(n uint32) (obj types.Object, err error) {
	defer func() {
		if x := recover(); x != nil {
			obj, err = nil, fmt.Errorf("reading object %d: %v", n, x)
		}
	}()

	if r.ObjectType(n) == FreeObject {
		return nil, fmt.Errorf("reading object %d: %w", n, errFreeObject)
	}
	obj = r.resolve(types.Objptr{}, r.xref[n].Ptr).data
	if s, ok := obj.(types.Stream); ok {
		s.Data, err = r.streamData(s)
		if err != nil {
			return nil, fmt.Errorf("reading object %d: %w", n, err)
		}
		obj = s
	}
	return obj, nil
}

// IndirectBinary returns the bytes of object n exactly as stored in the
// file, from its "N G obj" header to its "endobj" keyword.
func (r *Reader) IndirectBinary(n uint32) (data []byte, err error) {
	defer func() {
		if x := recover(); x != nil {
			data, err = nil, fmt.Errorf("reading object %d: %v", n, x)
		}
	}()

	if r.ObjectType(n) != NormalObject {
		return nil, fmt.Errorf("reading object %d: not stored at an offset", n)
	}
	off := r.xref[n].Offset
	b := newBuffer(io.NewSectionReader(r.f, off, r.end-off), off)
	def, ok := b.readObject().(types.Objdef)
	if !ok || def.Ptr.ID != n {
		return nil, fmt.Errorf("reading object %d: no object definition at offset %d", n, off)
	}
	end := b.readOffset()
	if s, ok := def.Obj.(types.Stream); ok {
		pos := s.Offset + r.resolve(s.Ptr, s.Hdr["Length"]).Int64()
		b = newBuffer(io.NewSectionReader(r.f, pos, r.end-pos), pos)
		if b.readToken() != keyword("endstream") || b.readToken() != keyword("endobj") {
			return nil, fmt.Errorf("reading object %d: stream not terminated", n)
		}
		end = b.readOffset()
	}

	data = make([]byte, end-off)
	if _, err := r.f.ReadAt(data, off); err != nil && err != io.EOF {
		return nil, err
	}
	return data, nil
}

func readXref(r *Reader, b *buffer) ([]types.Xref, types.Objptr, types.Dict, error) {
	tok := b.readToken()
	if tok == keyword("xref") {
		return readXrefTable(r, b)
	}
	if _, ok := tok.(int64); ok {
		b.unreadToken(tok)
		r.xrefStream = true
		return readXrefStream(r, b)
	}
	return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: cross-reference table not found: %v", tok)
}

func readXrefStream(r *Reader, b *buffer) ([]types.Xref, types.Objptr, types.Dict, error) {
	obj1 := b.readObject()
	obj, ok := obj1.(types.Objdef)
	if !ok {
		return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: cross-reference table not found: %v", objfmt(obj1))
	}
	strmptr := obj.Ptr
	strm, ok := obj.Obj.(types.Stream)
	if !ok {
		return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: cross-reference table not found: %v", objfmt(obj))
	}
	if strm.Hdr["Type"] != types.Name("XRef") {
		return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: xref stream does not have type XRef")
	}
	size, ok := strm.Hdr["Size"].(int64)
	if !ok {
		return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: xref stream missing Size")
	}
	if size < 0 || size > maxObjectNumber {
		return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: xref stream Size %d out of range", size)
	}
	table := make([]types.Xref, size)

	table, err := readXrefStreamData(r, strm, table, size)
	if err != nil {
		return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: %v", err)
	}

	for prevoff := strm.Hdr["Prev"]; prevoff != nil; {
		off, ok := prevoff.(int64)
		if !ok {
			return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: xref Prev is not integer: %v", prevoff)
		}
		b := newBuffer(io.NewSectionReader(r.f, off, r.end-off), off)
		obj1 := b.readObject()
		obj, ok := obj1.(types.Objdef)
		if !ok {
			return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: xref prev stream not found: %v", objfmt(obj1))
		}
		prevstrm, ok := obj.Obj.(types.Stream)
		if !ok {
			return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: xref prev stream not found: %v", objfmt(obj))
		}
		prevoff = prevstrm.Hdr["Prev"]
		prev := Value{r: r, data: prevstrm}
		if prev.Key("Type").Name() != "XRef" {
			return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: xref prev stream does not have type XRef")
		}
		psize := prev.Key("Size").Int64()
		if psize > size {
			return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: xref prev stream larger than last stream")
		}
		if table, err = readXrefStreamData(r, prevstrm, table, psize); err != nil {
			return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: reading xref prev stream: %v", err)
		}
	}

	return table, strmptr, strm.Hdr, nil
}

func readXrefStreamData(r *Reader, strm types.Stream, table []types.Xref, size int64) ([]types.Xref, error) {
	index, _ := strm.Hdr["Index"].(types.Array)
	if index == nil {
		index = types.Array{int64(0), size}
	}
	if len(index)%2 != 0 {
		return nil, fmt.Errorf("invalid Index array %v", objfmt(index))
	}
	ww, ok := strm.Hdr["W"].(types.Array)
	if !ok {
		return nil, fmt.Errorf("xref stream missing W array")
	}

	var w []int
	for _, x := range ww {
		i, ok := x.(int64)
		if !ok || int64(int(i)) != i {
			return nil, fmt.Errorf("invalid W array %v", objfmt(ww))
		}
		w = append(w, int(i))
	}
	if len(w) < 3 {
		return nil, fmt.Errorf("invalid W array %v", objfmt(ww))
	}

	v := Value{r: r, data: strm}
	wtotal := 0
	for _, wid := range w {
		wtotal += wid
	}
	buf := make([]byte, wtotal)
	data := v.Reader()
	for len(index) > 0 {
		start, ok1 := index[0].(int64)
		n, ok2 := index[1].(int64)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("malformed Index pair %v %v %T %T", objfmt(index[0]), objfmt(index[1]), index[0], index[1])
		}
		index = index[2:]
		if start < 0 || n < 0 || start+n > maxObjectNumber {
			return nil, fmt.Errorf("xref stream section %d %d out of range", start, n)
		}
		for i := 0; i < int(n); i++ {
			_, err := io.ReadFull(data, buf)
			if err != nil {
				return nil, fmt.Errorf("error reading xref stream: %v", err)
			}
			v1 := decodeInt(buf[0:w[0]])
			if w[0] == 0 {
				v1 = 1
			}
			v2 := decodeInt(buf[w[0] : w[0]+w[1]])
			v3 := decodeInt(buf[w[0]+w[1] : w[0]+w[1]+w[2]])
			x := int(start) + i
			for cap(table) <= x {
				table = append(table[:cap(table)], types.Xref{})
			}
			if len(table) <= x {
				table = table[:x+1]
			}
			if table[x] != (types.Xref{}) {
				continue
			}
			switch v1 {
			case 0:
				table[x] = types.Xref{Ptr: types.Objptr{Gen: 65535}}
			case 1:
				table[x] = types.Xref{Ptr: types.Objptr{ID: uint32(x), Gen: uint16(v3)}, Offset: int64(v2)}
			case 2:
				table[x] = types.Xref{Ptr: types.Objptr{ID: uint32(x)}, InStream: true, Stream: types.Objptr{ID: uint32(v2)}, Offset: int64(v3)}
			default:
				slog.Debug("invalid xref stream type", slog.Int("v1", v1), slog.Any("buf", buf))
			}
		}
	}
	return table, nil
}

func decodeInt(b []byte) int {
	x := 0
	for _, c := range b {
		x = x<<8 | int(c)
	}
	return x
}

func readXrefTable(r *Reader, b *buffer) ([]types.Xref, types.Objptr, types.Dict, error) {
	var table []types.Xref

	table, err := readXrefTableData(b, table)
	if err != nil {
		return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: %v", err)
	}

	trailer, ok := b.readObject().(types.Dict)
	if !ok {
		return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: xref table not followed by trailer dictionary")
	}

	for prevoff := trailer["Prev"]; prevoff != nil; {
		off, ok := prevoff.(int64)
		if !ok {
			return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: xref Prev is not integer: %v", prevoff)
		}
		b := newBuffer(io.NewSectionReader(r.f, off, r.end-off), off)
		tok := b.readToken()
		if tok != keyword("xref") {
			return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: xref Prev does not point to xref")
		}
		table, err = readXrefTableData(b, table)
		if err != nil {
			return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: %v", err)
		}

		trailer, ok := b.readObject().(types.Dict)
		if !ok {
			return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: xref Prev table not followed by trailer dictionary")
		}
		prevoff = trailer["Prev"]
	}

	size, ok := trailer[types.Name("Size")].(int64)
	if !ok {
		return nil, types.Objptr{}, nil, fmt.Errorf("malformed PDF: trailer missing /Size entry")
	}

	if size < int64(len(table)) {
		table = table[:size]
	}

	return table, types.Objptr{}, trailer, nil
}

// readXrefTableData merges one classic section into table. Sections are
// read newest first, so entries already present win.
func readXrefTableData(b *buffer, table []types.Xref) ([]types.Xref, error) {
	for {
		tok := b.readToken()
		if tok == keyword("trailer") {
			break
		}
		start, ok1 := tok.(int64)
		n, ok2 := b.readToken().(int64)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("malformed xref table")
		}
		if start < 0 || n < 0 || start+n > maxObjectNumber {
			return nil, fmt.Errorf("xref subsection %d %d out of range", start, n)
		}
		for i := 0; i < int(n); i++ {
			off, ok1 := b.readToken().(int64)
			gen, ok2 := b.readToken().(int64)
			alloc, ok3 := b.readToken().(keyword)
			if !ok1 || !ok2 || !ok3 || alloc != keyword("f") && alloc != keyword("n") {
				return nil, fmt.Errorf("malformed xref table")
			}
			x := int(start) + i
			for cap(table) <= x {
				table = append(table[:cap(table)], types.Xref{})
			}
			if len(table) <= x {
				table = table[:x+1]
			}
			if table[x] != (types.Xref{}) {
				continue
			}
			if alloc == "n" {
				table[x] = types.Xref{Ptr: types.Objptr{ID: uint32(x), Gen: uint16(gen)}, Offset: int64(off)}
			} else {
				table[x] = types.Xref{Ptr: types.Objptr{Gen: 65535}}
			}
		}
	}
	return table, nil
}

func findLastLine(buf []byte, s string) int {
	bs := []byte(s)
	max := len(buf)
	for {
		i := bytes.LastIndex(buf[:max], bs)
		if i <= 0 || i+len(bs) >= len(buf) {
			return -1
		}
		if (buf[i-1] == '\n' || buf[i-1] == '\r') && (buf[i+len(bs)] == '\n' || buf[i+len(bs)] == '\r') {
			return i
		}
		max = i
	}
}

var objHeader = regexp.MustCompile(`(?m)^[ \t]*(\d+)[ \t\r\n]+(\d+)[ \t\r\n]+obj\b`)

// rebuildXref reconstructs the cross-reference table of a damaged file by
// scanning it for object headers. Later definitions of an object win.
func (r *Reader) rebuildXref() error {
	data := make([]byte, r.end)
	if _, err := r.f.ReadAt(data, 0); err != nil && err != io.EOF {
		return err
	}

	var table []types.Xref
	for _, m := range objHeader.FindAllSubmatchIndex(data, -1) {
		id, err1 := strconv.ParseUint(string(data[m[2]:m[3]]), 10, 32)
		gen, err2 := strconv.ParseUint(string(data[m[4]:m[5]]), 10, 16)
		if err1 != nil || err2 != nil || id == 0 || id >= maxObjectNumber {
			continue
		}
		for uint64(len(table)) <= id {
			table = append(table, types.Xref{})
		}
		table[id] = types.Xref{Ptr: types.Objptr{ID: uint32(id), Gen: uint16(gen)}, Offset: int64(m[2])}
	}
	if len(table) == 0 {
		return fmt.Errorf("malformed PDF: no objects found")
	}
	r.xref = table
	r.xrefStream = false
	r.startxref = 0

	if i := bytes.LastIndex(data, []byte("trailer")); i >= 0 {
		r.trailer = r.scanTrailer(int64(i + len("trailer")))
	}
	if r.trailer == nil {
		r.trailer = types.Dict{}
	}
	if r.trailer["Root"] == nil {
		if root, ok := r.findCatalog(); ok {
			r.trailer["Root"] = root
		}
	}
	if r.trailer["Root"] == nil {
		return fmt.Errorf("malformed PDF: no document catalog found")
	}
	return nil
}

func (r *Reader) scanTrailer(pos int64) (trailer types.Dict) {
	defer func() {
		if x := recover(); x != nil {
			trailer = nil
		}
	}()
	b := newBuffer(io.NewSectionReader(r.f, pos, r.end-pos), pos)
	b.allowStream = false
	trailer, _ = b.readObject().(types.Dict)
	return trailer
}

func (r *Reader) findCatalog() (types.Objptr, bool) {
	for n := range r.xref {
		obj, err := r.ReadObject(uint32(n))
		if err != nil {
			continue
		}
		if d, ok := obj.(types.Dict); ok && d["Type"] == types.Name("Catalog") {
			return r.xref[n].Ptr, true
		}
	}
	return types.Objptr{}, false
}

func (r *Reader) resolve(parent types.Objptr, x types.Object) Value {
	if ptr, ok := x.(types.Objptr); ok {
		if ptr.ID >= uint32(len(r.xref)) {
			return Value{}
		}
		xref := r.xref[ptr.ID]
		if xref.Ptr != ptr || !xref.InStream && xref.Offset == 0 {
			return Value{}
		}
		var obj types.Object
		if xref.InStream {
			strm := r.resolve(parent, xref.Stream)
		Search:
			for {
				if strm.Kind() != StreamKind {
					panic("not a stream")
				}
				if strm.Key("Type").Name() != "ObjStm" {
					panic("not an object stream")
				}
				n := int(strm.Key("N").Int64())
				first := strm.Key("First").Int64()
				if first == 0 {
					panic("missing First")
				}
				b := newBuffer(strm.Reader(), 0)
				b.allowEOF = true
				for i := 0; i < n; i++ {
					id, _ := b.readToken().(int64)
					off, _ := b.readToken().(int64)
					if uint32(id) == ptr.ID {
						b.seekForward(first + off)
						x = b.readObject()
						break Search
					}
				}
				ext := strm.Key("Extends")
				if ext.Kind() != StreamKind {
					panic("cannot find object in stream")
				}
				strm = ext
			}
		} else {
			b := newBuffer(io.NewSectionReader(r.f, xref.Offset, r.end-xref.Offset), xref.Offset)
			b.crypt = r.crypt
			b.plain = r.encryptptr
			obj = b.readObject()
			def, ok := obj.(types.Objdef)
			if !ok {
				panic(fmt.Errorf("loading %v: found %T instead of types.Objdef", ptr, obj))
			}
			if def.Ptr != ptr {
				panic(fmt.Errorf("loading %v: found %v", ptr, def.Ptr))
			}
			x = def.Obj
		}
		parent = ptr
	}

	switch x := x.(type) {
	case nil, bool, int64, float64, types.Name, types.Dict, types.Array, types.Stream, string, types.HexString:
		return Value{r: r, ptr: parent, data: x}
	default:
		panic(fmt.Errorf("unexpected value type %T in resolve", x))
	}
}

// decrypts reports whether the payload of s is stored encrypted.
func (r *Reader) decrypts(s types.Stream) bool {
	if r.crypt == nil || s.Ptr == r.encryptptr {
		return false
	}
	switch s.Hdr["Type"] {
	case types.Name("XRef"):
		return false
	case types.Name("Metadata"):
		return r.crypt.EncryptMetadata()
	}
	return true
}

func (r *Reader) streamData(s types.Stream) ([]byte, error) {
	length := r.resolve(s.Ptr, s.Hdr["Length"]).Int64()
	if length < 0 || s.Offset+length > r.end {
		return nil, fmt.Errorf("malformed PDF: stream length %d out of range", length)
	}
	data := make([]byte, length)
	if _, err := r.f.ReadAt(data, s.Offset); err != nil && err != io.EOF {
		return nil, err
	}
	if !r.decrypts(s) {
		return data, nil
	}
	return r.crypt.DecryptBytes(s.Ptr, data)
}

func (r *Reader) streamReader(s types.Stream, length int64) (io.Reader, error) {
	if s.Data != nil {
		return bytes.NewReader(s.Data), nil
	}
	rd := io.NewSectionReader(r.f, s.Offset, length)
	if !r.decrypts(s) {
		return rd, nil
	}
	return r.crypt.Decrypt(s.Ptr, rd)
}

type errorReadCloser struct {
	err error
}

func (e *errorReadCloser) Read([]byte) (int, error) {
	return 0, e.err
}

func (e *errorReadCloser) Close() error {
	return e.err
}

// Reader returns the data contained in the stream v.
// If v.Kind() != Stream, Reader returns a ReadCloser that
// responds to all reads with a “stream not present” error.
func (v Value) Reader() io.ReadCloser {
	x, ok := v.data.(types.Stream)
	if !ok {
		return &errorReadCloser{fmt.Errorf("stream not present")}
	}

	rd, err := v.r.streamReader(x, v.Key("Length").Int64())
	if err != nil {
		panic(fmt.Errorf("bad decryption: %w", err))
	}
	filter := v.Key("Filter")
	param := v.Key("DecodeParms")
	switch filter.Kind() {
	default:
		panic(fmt.Errorf("unsupported filter %v", filter))
	case NullKind:
		// ok
	case NameKind:
		rd = applyFilter(rd, filter.Name(), param)
	case ArrayKind:
		for i := 0; i < filter.Len(); i++ {
			rd = applyFilter(rd, filter.Index(i).Name(), param.Index(i))
		}
	}

	if rc, ok := rd.(io.ReadCloser); ok {
		return rc
	}

	return io.NopCloser(rd)
}

func applyFilter(rd io.Reader, name string, param Value) io.Reader {
	switch name {
	default:
		panic("unknown filter " + name)
	case "FlateDecode":
		zr, err := zlib.NewReader(rd)
		if err != nil {
			panic(err)
		}
		pred := param.Key("Predictor")
		if pred.Kind() == NullKind {
			return zr
		}
		columns := param.Key("Columns").Int64()
		switch pred.Int64() {
		default:
			slog.Debug("unknown predictor", slog.Any("pred", pred))
			panic("pred")
		case 12:
			return &pngUpReader{r: zr, hist: make([]byte, 1+columns), tmp: make([]byte, 1+columns)}
		}
	case "ASCII85Decode":
		cleanASCII85 := newAlphaReader(rd)
		decoder := ascii85.NewDecoder(cleanASCII85)

		switch param.Keys() {
		default:
			slog.Debug("unexpected ASCII85Decode param", slog.Any("param", param))
			panic("not expected DecodeParms for ascii85")
		case nil:
			return decoder
		}
	}
}

type alphaReader struct {
	reader io.Reader
}

func newAlphaReader(reader io.Reader) *alphaReader {
	return &alphaReader{reader: reader}
}

func checkASCII85(r byte) byte {
	if r >= '!' && r <= 'u' { // 33 <= ascii85 <=117
		return r
	}
	if r == '~' {
		return 1 // for end of stream
	}
	return 0
}

func (a *alphaReader) Read(p []byte) (int, error) {
	n, err := a.reader.Read(p)
	if err != nil {
		return n, err
	}
	buf := make([]byte, n)
	tilda := false
	for i := 0; i < n; i++ {
		char := checkASCII85(p[i])
		if char == '>' && tilda { // end of stream
			break
		}
		if char > 1 {
			buf[i] = char
		}
		if char == 1 {
			tilda = true // possible end of stream
		}
	}

	copy(p, buf)
	return n, nil
}

type pngUpReader struct {
	r    io.Reader
	hist []byte
	tmp  []byte
	pend []byte
}

func (r *pngUpReader) Read(b []byte) (int, error) {
	n := 0
	for len(b) > 0 {
		if len(r.pend) > 0 {
			m := copy(b, r.pend)
			n += m
			b = b[m:]
			r.pend = r.pend[m:]
			continue
		}
		_, err := io.ReadFull(r.r, r.tmp)
		if err != nil {
			return n, err
		}
		if r.tmp[0] != 2 {
			return n, fmt.Errorf("malformed PNG-Up encoding")
		}
		for i, b := range r.tmp {
			r.hist[i] += b
		}
		r.pend = r.hist[1:]
	}
	return n, nil
}

func (r *Reader) initEncrypt(password string) error {
	// See PDF 32000-1:2008, §7.6.
	if ptr, ok := r.trailer["Encrypt"].(types.Objptr); ok {
		r.encryptptr = ptr
	}
	encrypt, _ := r.resolve(types.Objptr{}, r.trailer["Encrypt"]).data.(types.Dict)
	if encrypt["Filter"] != types.Name("Standard") {
		return fmt.Errorf("unsupported PDF: encryption filter %v", objfmt(encrypt["Filter"]))
	}

	ids := r.idArray()
	if len(ids) < 1 {
		return fmt.Errorf("malformed PDF: missing ID in trailer")
	}
	id, ok := stringOf(ids[0])
	if !ok {
		return fmt.Errorf("malformed PDF: missing ID in trailer")
	}

	h, err := crypt.New(password, encrypt, id)
	if err != nil {
		return err
	}

	r.crypt = h
	r.encrypt = encrypt
	r.password = password
	return nil
}

// stringOf returns the bytes of a literal or hexadecimal string.
func stringOf(x types.Object) (string, bool) {
	switch x := x.(type) {
	case string:
		return x, true
	case types.HexString:
		return string(x), true
	}
	return "", false
}
