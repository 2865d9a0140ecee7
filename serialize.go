// Copyright 2014 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Writing of PDF objects to a byte sink.

package pdf

import (
	"encoding/hex"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/ScriptRock/pdfwriter/internal/sink"
	"github.com/ScriptRock/pdfwriter/internal/types"
)

// A cryptoHandler encrypts the string and stream payloads of one object.
// *crypt.Handler implements it.
type cryptoHandler interface {
	Encrypt(ptr types.Objptr, data []byte) ([]byte, error)
	EncryptMetadata() bool
}

// An encryptor is a cryptoHandler bound to the object being written.
type encryptor struct {
	h   cryptoHandler
	ptr types.Objptr
}

func (e *encryptor) encrypt(data []byte) ([]byte, error) {
	if e == nil {
		return data, nil
	}
	return e.h.Encrypt(e.ptr, data)
}

// An objectWriter serializes objects to w.
type objectWriter struct {
	w      *sink.Writer
	crypto cryptoHandler // nil if the output is not encrypted
}

// writeIndirect writes object n framed by "n 0 obj" and "endobj".
// Payloads are encrypted unless plain is set.
func (ow *objectWriter) writeIndirect(n uint32, obj types.Object, plain bool) error {
	w := ow.w
	w.WriteDWord(n)
	w.WriteString(" 0 obj\r\n")
	var enc *encryptor
	if ow.crypto != nil && !plain {
		enc = &encryptor{h: ow.crypto, ptr: types.Objptr{ID: n}}
	}
	if err := ow.writeDirect(obj, enc); err != nil {
		return fmt.Errorf("object %d: %w", n, err)
	}
	return w.WriteString("\r\nendobj\r\n")
}

func (ow *objectWriter) writeDirect(x types.Object, enc *encryptor) error {
	w := ow.w
	switch x := x.(type) {
	case nil:
		w.WriteString("null")
	case bool:
		w.WriteString(strconv.FormatBool(x))
	case int64:
		w.WriteString(strconv.FormatInt(x, 10))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("cannot serialize real %v", x)
		}
		w.WriteString(formatReal(x))
	case string:
		data, err := enc.encrypt([]byte(x))
		if err != nil {
			return err
		}
		w.WriteString(literalString(data))
	case types.HexString:
		data, err := enc.encrypt([]byte(x))
		if err != nil {
			return err
		}
		w.WriteByte('<')
		w.WriteString(hex.EncodeToString(data))
		w.WriteByte('>')
	case types.Name:
		w.WriteString(nameString(x))
	case types.Objptr:
		w.WriteDWord(x.ID)
		w.WriteByte(' ')
		w.WriteString(strconv.Itoa(int(x.Gen)))
		w.WriteString(" R")
	case types.Array:
		w.WriteByte('[')
		for i, elem := range x {
			if i > 0 {
				w.WriteByte(' ')
			}
			if err := ow.writeDirect(elem, enc); err != nil {
				return err
			}
		}
		w.WriteByte(']')
	case types.Dict:
		return ow.writeDict(x, enc)
	case types.Stream:
		return ow.writeStream(x, enc)
	default:
		return fmt.Errorf("cannot serialize %T", x)
	}
	return w.Err()
}

func (ow *objectWriter) writeDict(d types.Dict, enc *encryptor) error {
	w := ow.w
	sig := d["Type"] == types.Name("Sig")
	w.WriteString("<<")
	for _, k := range slices.Sorted(maps.Keys(d)) {
		w.WriteString(nameString(k))
		w.WriteByte(' ')
		e := enc
		if sig && k == "Contents" {
			e = nil
		}
		if err := ow.writeDirect(d[k], e); err != nil {
			return err
		}
	}
	return w.WriteString(">>")
}

func (ow *objectWriter) writeStream(s types.Stream, enc *encryptor) error {
	if s.Hdr["Type"] == types.Name("Metadata") && !enc.metadata() {
		enc = nil
	}
	data, err := enc.encrypt(s.Data)
	if err != nil {
		return err
	}
	hdr := maps.Clone(s.Hdr)
	if hdr == nil {
		hdr = types.Dict{}
	}
	hdr["Length"] = int64(len(data))
	if err := ow.writeDict(hdr, enc); err != nil {
		return err
	}
	w := ow.w
	w.WriteString("stream\r\n")
	w.WriteBlock(data)
	return w.WriteString("\r\nendstream")
}

func (e *encryptor) metadata() bool { return e == nil || e.h.EncryptMetadata() }

// realDigits is the number of decimal places kept when writing a real.
const realDigits = 6

// formatReal returns x in decimal notation, rounded to realDigits places
// and clamped to the range of reals PDF readers accept.
func formatReal(x float64) string {
	x = max(-math.MaxFloat32, min(x, math.MaxFloat32))
	s := strconv.FormatFloat(x, 'f', realDigits, 64)
	s = strings.TrimSuffix(strings.TrimRight(s, "0"), ".")
	if s == "-0" {
		return "0"
	}
	return s
}

// literalString returns s in (...) syntax.
func literalString(s []byte) string {
	buf := make([]byte, 0, len(s)+2)
	buf = append(buf, '(')
	for _, c := range s {
		switch c {
		case '(', ')', '\\':
			buf = append(buf, '\\', c)
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\n':
			buf = append(buf, '\\', 'n')
		default:
			buf = append(buf, c)
		}
	}
	return string(append(buf, ')'))
}

// nameString returns n with its leading slash, escaping bytes that may
// not appear literally in a name.
func nameString(n types.Name) string {
	buf := []byte{'/'}
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c < '!' || c > '~' || c == '#' || isDelim(c) {
			buf = append(buf, '#', "0123456789ABCDEF"[c>>4], "0123456789ABCDEF"[c&0xf])
			continue
		}
		buf = append(buf, c)
	}
	return string(buf)
}
