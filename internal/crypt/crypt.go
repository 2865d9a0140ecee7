// Copyright 2014 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package crypt implements the PDF standard security handler: checking a
// password against an encryption dictionary, and encrypting or decrypting
// the strings and streams of individual objects.
package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"

	"github.com/xdg-go/stringprep"
	"golang.org/x/text/encoding/charmap"

	"github.com/ScriptRock/pdfwriter/internal/types"
)

var ErrInvalidPassword = fmt.Errorf("encrypted PDF: invalid password")

var passwordPad = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41, 0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80, 0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// A Handler holds the file key of an encrypted document.
// A nil *Handler is valid and leaves all data unchanged.
type Handler struct {
	key             []byte
	v               int
	r               int
	encryptMetadata bool
}

type params struct {
	n, v, r int64
	o, u    string
	p       uint32
	meta    bool
}

func readParams(encrypt types.Dict) (params, error) {
	var p params
	p.n, _ = encrypt["Length"].(int64)
	if p.n == 0 {
		p.n = 40
	}
	p.v, _ = encrypt["V"].(int64)
	p.r, _ = encrypt["R"].(int64)
	p.o = str(encrypt["O"])
	p.u = str(encrypt["U"])
	P, _ := encrypt["P"].(int64)
	p.p = uint32(P)
	p.meta = true
	if b, ok := encrypt["EncryptMetadata"].(bool); ok {
		p.meta = b
	}

	if p.n%8 != 0 || p.n < 40 || (p.n > 128 && p.n != 256) {
		return p, fmt.Errorf("malformed PDF: %d-bit encryption key", p.n)
	}
	if !validateVersion(p.v, encrypt) {
		return p, fmt.Errorf("unsupported PDF: encryption version V=%d; %v", p.v, encrypt)
	}
	if p.r < 2 || p.r == 5 || p.r > 6 {
		return p, fmt.Errorf("malformed PDF: encryption revision R=%d", p.r)
	}
	return p, nil
}

func str(x types.Object) string {
	switch x := x.(type) {
	case string:
		return x
	case types.HexString:
		return string(x)
	}
	return ""
}

// New checks password against the encryption dictionary encrypt of a file
// whose first identifier is id, and returns the resulting handler.
func New(password string, encrypt types.Dict, id string) (*Handler, error) {
	p, err := readParams(encrypt)
	if err != nil {
		return nil, err
	}

	if p.r == 6 {
		ue := str(encrypt["UE"])
		perms := str(encrypt["Perms"])
		if len(ue) < 32 || len(perms) < 16 {
			return nil, fmt.Errorf("malformed PDF: missing UE= or Perms= encryption parameters")
		}
		return newR6(saslPassword(password), []byte(p.u), []byte(ue), []byte(perms))
	}

	if len(p.o) != 32 || len(p.u) != 32 {
		return nil, fmt.Errorf("malformed PDF: missing O= or U= encryption parameters")
	}

	key := fileKey(latin1Password(password), p, id)
	if !bytes.HasPrefix([]byte(p.u), userHash(key, p.r, id)) {
		return nil, ErrInvalidPassword
	}

	return &Handler{key: key, v: int(p.v), r: int(p.r), encryptMetadata: p.meta}, nil
}

// Regenerate returns a copy of encrypt whose /U entry, and therefore the
// file key, is bound to the file identifier id, together with the handler
// for the new key. The owner entry /O is kept.
// Only revisions 2 to 4 can be regenerated.
func Regenerate(password string, encrypt types.Dict, id string) (*Handler, types.Dict, error) {
	p, err := readParams(encrypt)
	if err != nil {
		return nil, nil, err
	}
	if p.r > 4 {
		return nil, nil, fmt.Errorf("unsupported PDF: cannot regenerate revision %d security", p.r)
	}
	if len(p.o) != 32 {
		return nil, nil, fmt.Errorf("malformed PDF: missing O= encryption parameter")
	}

	clone, _ := types.Clone(encrypt).(types.Dict)
	key := fileKey(latin1Password(password), p, id)
	u := userHash(key, p.r, id)
	if len(u) < 32 {
		// Revision 3 and later only define the first 16 bytes.
		sum := md5.Sum(u)
		u = append(u, sum[:]...)
	}
	clone["U"] = string(u)

	return &Handler{key: key, v: int(p.v), r: int(p.r), encryptMetadata: p.meta}, clone, nil
}

// fileKey implements algorithm 2 of ISO 32000-1, §7.6.3.3.
func fileKey(pw []byte, p params, id string) []byte {
	h := md5.New()
	if len(pw) >= 32 {
		h.Write(pw[:32])
	} else {
		h.Write(pw)
		h.Write(passwordPad[:32-len(pw)])
	}
	h.Write([]byte(p.o))
	h.Write([]byte{byte(p.p), byte(p.p >> 8), byte(p.p >> 16), byte(p.p >> 24)})
	h.Write([]byte(id))
	if p.r >= 4 && !p.meta {
		h.Write([]byte{0xff, 0xff, 0xff, 0xff})
	}
	key := h.Sum(nil)

	if p.r >= 3 {
		for i := 0; i < 50; i++ {
			h.Reset()
			h.Write(key[:p.n/8])
			key = h.Sum(key[:0])
		}
		return key[:p.n/8]
	}
	return key[:40/8]
}

// userHash computes the expected /U value (algorithms 4 and 5). For
// revision 3 and later only the 16 significant bytes are returned.
func userHash(key []byte, r int64, id string) []byte {
	c, _ := rc4.NewCipher(key)
	if r == 2 {
		w := make([]byte, 32)
		copy(w, passwordPad)
		c.XORKeyStream(w, w)
		return w
	}

	h := md5.New()
	h.Write(passwordPad)
	h.Write([]byte(id))
	w := h.Sum(nil)
	c.XORKeyStream(w, w)

	for i := 1; i <= 19; i++ {
		key1 := make([]byte, len(key))
		copy(key1, key)
		for j := range key1 {
			key1[j] ^= byte(i)
		}
		c, _ = rc4.NewCipher(key1)
		c.XORKeyStream(w, w)
	}
	return w
}

// latin1Password converts a password to PDFDocEncoding-compatible bytes.
// Passwords with characters outside Latin-1 are used as given.
func latin1Password(password string) []byte {
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(password))
	if err != nil {
		return []byte(password)
	}
	return b
}

// saslPassword prepares a revision 6 password, see ISO 32000-2, §7.6.4.3.3.
func saslPassword(password string) []byte {
	prepped, err := stringprep.SASLprep.Prepare(password)
	if err != nil {
		prepped = password
	}
	pw := []byte(prepped)
	if len(pw) > 127 {
		pw = pw[:127]
	}
	return pw
}

func newR6(password, u, ue, perms []byte) (*Handler, error) {
	if len(u) < 48 {
		return nil, fmt.Errorf("bad r6 U(%d)", len(u))
	}
	u = u[:48]

	if !bytes.Equal(hashR6(password, u[32:40]), u[:32]) {
		return nil, ErrInvalidPassword
	}

	intermediate := hashR6(password, u[40:48])
	b, err := aes.NewCipher(intermediate)
	if err != nil {
		return nil, err
	}
	var iv [16]byte
	cbc := cipher.NewCBCDecrypter(b, iv[:])
	key := make([]byte, 32)
	cbc.CryptBlocks(key, ue[:32])

	dec := make([]byte, 16)
	b, err = aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	b.Decrypt(dec, perms[:16])
	if string(dec[9:12]) != "adb" {
		return nil, errors.New("params didn't validate")
	}

	return &Handler{key: key, v: 5, r: 6, encryptMetadata: dec[8] != 'F'}, nil
}

// hashR6 implements Algorithm 2.B of ISO32000-2.
func hashR6(p, salt []byte) []byte {
	h := sha256.New()
	h.Write(p)
	h.Write(salt)
	k := h.Sum(nil)

	for i := 1; ; i++ {
		k1 := bytes.Repeat(append(p, k...), 64)
		b, err := aes.NewCipher(k[:16])
		if err != nil {
			panic(err)
		}
		enc := cipher.NewCBCEncrypter(b, k[16:32])
		e := make([]byte, len(k1))
		enc.CryptBlocks(e, k1)

		var mod int
		for i := 0; i < 16; i++ {
			mod += int(e[i])
		}
		switch mod % 3 {
		case 0:
			v := sha256.Sum256(e)
			k = v[:]
		case 1:
			v := sha512.Sum384(e)
			k = v[:]
		case 2:
			v := sha512.Sum512(e)
			k = v[:]
		}

		if i >= 64 && e[len(e)-1] <= byte(i-32) {
			break
		}
	}

	return k[:32]
}

func (h *Handler) aes() bool { return h.v == 4 || h.v == 5 }

// EncryptMetadata reports whether the document's metadata stream is encrypted.
func (h *Handler) EncryptMetadata() bool { return h == nil || h.encryptMetadata }

// Decrypt returns a reader for the plaintext of the object data in rd.
func (h *Handler) Decrypt(ptr types.Objptr, rd io.Reader) (io.Reader, error) {
	if h == nil {
		return rd, nil
	}
	if !h.aes() {
		c, _ := rc4.NewCipher(h.cryptKey(ptr))
		return &cipher.StreamReader{S: c, R: rd}, nil
	}
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}
	data, err = h.DecryptBytes(ptr, data)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// DecryptBytes decrypts a string or stream payload of the object ptr.
func (h *Handler) DecryptBytes(ptr types.Objptr, data []byte) ([]byte, error) {
	if h == nil {
		return data, nil
	}
	key := h.cryptKey(ptr)
	if !h.aes() {
		c, _ := rc4.NewCipher(key)
		out := make([]byte, len(data))
		c.XORKeyStream(out, data)
		return out, nil
	}

	if len(data) == 0 {
		return data, nil
	}
	if len(data) < 2*aes.BlockSize || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("malformed PDF: AES payload of %d bytes", len(data))
	}
	cb, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("bad AES key: %w", err)
	}
	out := make([]byte, len(data)-aes.BlockSize)
	cipher.NewCBCDecrypter(cb, data[:aes.BlockSize]).CryptBlocks(out, data[aes.BlockSize:])
	pad := int(out[len(out)-1])
	if pad == 0 || pad > aes.BlockSize {
		return nil, fmt.Errorf("malformed PDF: invalid AES padding")
	}
	return out[:len(out)-pad], nil
}

// Encrypt encrypts a string or stream payload of the object ptr.
// AES payloads are prefixed with a random initialization vector.
func (h *Handler) Encrypt(ptr types.Objptr, data []byte) ([]byte, error) {
	if h == nil {
		return data, nil
	}
	key := h.cryptKey(ptr)
	if !h.aes() {
		c, _ := rc4.NewCipher(key)
		out := make([]byte, len(data))
		c.XORKeyStream(out, data)
		return out, nil
	}

	cb, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("bad AES key: %w", err)
	}
	pad := aes.BlockSize - len(data)%aes.BlockSize
	out := make([]byte, aes.BlockSize+len(data)+pad)
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	body := out[aes.BlockSize:]
	copy(body, data)
	for i := len(data); i < len(body); i++ {
		body[i] = byte(pad)
	}
	cipher.NewCBCEncrypter(cb, iv).CryptBlocks(body, body)
	return out, nil
}

// cryptKey implements algorithm 1 of ISO 32000-1, §7.6.2.
func (h *Handler) cryptKey(ptr types.Objptr) []byte {
	if h.v == 5 {
		return h.key
	}

	m := md5.New()
	m.Write(h.key)
	m.Write([]byte{byte(ptr.ID), byte(ptr.ID >> 8), byte(ptr.ID >> 16), byte(ptr.Gen), byte(ptr.Gen >> 8)})
	if h.v == 4 {
		m.Write([]byte("sAlT"))
	}
	n := len(h.key) + 5
	if n > 16 {
		n = 16
	}
	return m.Sum(nil)[:n]
}

func validateVersion(v int64, encrypt types.Dict) bool {
	switch v {
	case 1, 2:
		return true
	case 4, 5: // validate params below.
	default:
		return false
	}

	cf, ok := encrypt["CF"].(types.Dict)
	if !ok {
		return false
	}
	stmf, ok := encrypt["StmF"].(types.Name)
	if !ok {
		return false
	}
	strf, ok := encrypt["StrF"].(types.Name)
	if !ok {
		return false
	}
	if stmf != strf {
		return false
	}
	cfparam, ok := cf[stmf].(types.Dict)
	if !ok {
		return false
	}
	if cfparam["AuthEvent"] != nil && cfparam["AuthEvent"] != types.Name("DocOpen") {
		return false
	}

	len := int64(16)
	cfm := types.Name("AESV2")
	if v == 5 {
		len = 32
		cfm = types.Name("AESV3")
	}
	if cfparam["Length"] != nil && cfparam["Length"] != len {
		return false
	}
	if cfparam["CFM"] != cfm {
		return false
	}
	return true
}
