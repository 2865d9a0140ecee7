// Copyright 2014 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdf

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/ScriptRock/pdfwriter/internal/crypt"
	"github.com/ScriptRock/pdfwriter/internal/sink"
	"github.com/ScriptRock/pdfwriter/internal/types"
)

// A Stage is a step of writing a document. A Creator passes the stages in
// order and never returns to an earlier one.
type Stage int

const (
	StageInvalid Stage = iota - 1
	StageInit
	StageWriteHeader
	StageWriteIncrementalPrefix
	StageInitWriteObjects
	StageWriteOldObjects
	StageInitWriteNewObjects
	StageWriteNewObjects
	StageWriteEncryptDict
	StageInitWriteXrefs
	StageWriteXrefsClassic
	StageWriteXrefsIncremental
	StageWriteTrailerAndFinish
	StageComplete
)

var stageNames = [...]string{
	"Invalid",
	"Init",
	"WriteHeader",
	"WriteIncrementalPrefix",
	"InitWriteObjects",
	"WriteOldObjects",
	"InitWriteNewObjects",
	"WriteNewObjects",
	"WriteEncryptDict",
	"InitWriteXrefs",
	"WriteXrefsClassic",
	"WriteXrefsIncremental",
	"WriteTrailerAndFinish",
	"Complete",
}

func (s Stage) String() string {
	if s < StageInvalid || s > StageComplete {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s+1]
}

// A Flag changes how Create writes a document.
type Flag uint

const (
	// Incremental appends the changes to the original file instead of
	// rewriting it, when the document and its security allow it.
	Incremental Flag = 1 << iota
	// NoOriginal leaves out the bytes of the original file from an
	// incremental update; the caller appends the output to that file.
	NoOriginal
	// Progressive makes Create return before writing anything and every
	// call to Continue run a single stage.
	Progressive
)

var errNotStarted = errors.New("pdf: Continue called before Create")

// An encryptDict is the encryption dictionary a Creator writes: either the
// original file's, borrowed, or a copy the Creator owns.
type encryptDict interface {
	dict() types.Dict
}

// borrowedEncrypt is the encryption dictionary of the original file. ptr is
// zero if the dictionary is stored directly in the trailer.
type borrowedEncrypt struct {
	d   types.Dict
	ptr types.Objptr
}

func (e borrowedEncrypt) dict() types.Dict { return e.d }

// ownedEncrypt is an encryption dictionary regenerated for a new file
// identifier. It is written as a new object.
type ownedEncrypt struct {
	d types.Dict
}

func (e ownedEncrypt) dict() types.Dict { return e.d }

// A Creator writes a Document to an io.Writer, either as a complete file or
// as an incremental update of the file the document was loaded from.
//
// A Creator is not safe for concurrent use.
type Creator struct {
	doc *Document
	r   *Reader
	out io.Writer

	version    int
	seed       uint32
	noSecurity bool
	flags      Flag
	stage      Stage
	err        error
	started    bool
	plan       plan
	w          *sink.Writer
	ow         objectWriter
	lastObjNum uint32
	offsets    map[uint32]int64
	oldList    []uint32
	newList    []uint32
	xrefStart  int64
	ids        types.Array

	encrypt         encryptDict
	encryptObjNum   uint32
	crypto          *crypt.Handler
	securityChanged bool
}

// NewCreator returns a Creator writing d to w.
func NewCreator(d *Document, w io.Writer) *Creator {
	return &Creator{
		doc:   d,
		r:     d.r,
		out:   w,
		seed:  rand.Uint32(),
		stage: StageInvalid,
	}
}

// SetFileVersion sets the version written in the header of a complete
// file, as 10 times the PDF version: 17 stands for PDF 1.7.
// It reports false, and changes nothing, for versions outside 1.0 to 1.7.
func (c *Creator) SetFileVersion(v int) bool {
	if v < 10 || v > 17 {
		return false
	}
	c.version = v
	return true
}

// SetIDSeed sets the seed used to generate file identifiers.
func (c *Creator) SetIDSeed(seed uint32) { c.seed = seed }

// RemoveSecurity makes the Creator write the document unencrypted.
// This always results in a complete rewrite.
func (c *Creator) RemoveSecurity() { c.noSecurity = true }

// Stage returns the stage the Creator reached.
func (c *Creator) Stage() Stage { return c.stage }

// Err returns the error that stopped the Creator, if any.
func (c *Creator) Err() error { return c.err }

// Create starts writing the document. Unless flags contains Progressive,
// it writes the whole output before returning and reports whether that
// succeeded.
func (c *Creator) Create(flags Flag) bool {
	c.flags = flags
	c.stage = StageInit
	c.err = nil
	c.started = true
	c.lastObjNum = c.doc.LastObjNum()
	c.offsets = nil
	c.oldList = nil
	c.newList = nil
	c.xrefStart = 0
	c.initSecurity()
	c.initID()
	if flags&Progressive != 0 {
		return true
	}
	return c.Continue()
}

// Continue resumes writing. It reports false once writing has failed; Err
// returns the cause. With the Progressive flag each call runs one stage,
// and the caller calls Continue until Stage returns StageComplete.
func (c *Creator) Continue() bool {
	if !c.started {
		c.err = errNotStarted
		return false
	}
	for c.stage != StageInvalid && c.stage < StageComplete {
		next, err := c.step()
		if err != nil {
			slog.Warn("writing PDF failed", slog.String("stage", c.stage.String()), slog.Any("err", err))
			c.stage = StageInvalid
			c.err = err
			break
		}
		c.stage = next
		if c.flags&Progressive != 0 {
			break
		}
	}
	return c.stage != StageInvalid
}

func (c *Creator) step() (Stage, error) {
	switch c.stage {
	case StageInit:
		flags := c.flags
		if c.noSecurity {
			// Unencrypted output needs every old object written again.
			flags &^= Incremental
		}
		c.plan = newPlan(flags, c.r, c.securityChanged)
		c.w = sink.New(c.out, c.plan.startOffset())
		c.ow = objectWriter{w: c.w}
		if c.crypto != nil {
			c.ow.crypto = c.crypto
		}
		c.offsets = make(map[uint32]int64)
		return StageWriteHeader, nil

	case StageWriteHeader:
		if c.plan.incremental {
			return StageWriteIncrementalPrefix, nil
		}
		version := 17
		if c.version != 0 {
			version = c.version
		} else if c.r != nil {
			version = c.r.FileVersion()
		}
		c.w.WriteString("%PDF-1.")
		c.w.WriteDWord(uint32(version % 10))
		return StageInitWriteObjects, c.w.WriteString("\r\n%\xA1\xB3\xC5\xD7\r\n")

	case StageWriteIncrementalPrefix:
		if c.plan.original && c.plan.savedOffset > 0 {
			src := io.NewSectionReader(c.r.f, 0, c.plan.savedOffset)
			if _, err := io.CopyBuffer(c.w, src, make([]byte, 4096)); err != nil {
				return StageInvalid, fmt.Errorf("copying original file: %w", err)
			}
		}
		c.offsets = c.plan.oldOffsets(c.r)
		return StageInitWriteObjects, nil

	case StageInitWriteObjects:
		if c.plan.incremental || c.r == nil {
			return StageInitWriteNewObjects, nil
		}
		c.oldList = oldObjects(c.doc, c.liveRoots()...)
		return StageWriteOldObjects, nil

	case StageWriteOldObjects:
		for _, n := range c.oldList {
			if err := c.writeOldObject(n); err != nil {
				return StageInvalid, err
			}
		}
		return StageInitWriteNewObjects, nil

	case StageInitWriteNewObjects:
		c.newList = newObjects(c.doc, c.plan.incremental)
		return StageWriteNewObjects, nil

	case StageWriteNewObjects:
		for _, n := range c.newList {
			obj, ok := c.doc.Object(n)
			if !ok {
				continue
			}
			c.offsets[n] = c.w.Offset()
			if err := c.ow.writeIndirect(n, obj, n == c.encryptObjNum); err != nil {
				return StageInvalid, err
			}
		}
		return StageWriteEncryptDict, nil

	case StageWriteEncryptDict:
		if c.encryptInline() {
			c.lastObjNum++
			c.encryptObjNum = c.lastObjNum
			c.offsets[c.lastObjNum] = c.w.Offset()
			if err := c.ow.writeIndirect(c.lastObjNum, c.encrypt.dict(), true); err != nil {
				return StageInvalid, err
			}
			if c.plan.incremental {
				c.newList = append(c.newList, c.lastObjNum)
			}
		}
		return StageInitWriteXrefs, nil

	case StageInitWriteXrefs:
		c.xrefStart = c.w.Offset()
		switch {
		case c.plan.xrefStream:
			return StageWriteTrailerAndFinish, nil
		case !c.plan.incremental || c.plan.synthesize:
			return StageWriteXrefsClassic, nil
		}
		return StageWriteXrefsIncremental, nil

	case StageWriteXrefsClassic:
		return StageWriteTrailerAndFinish, writeXrefTable(c.w, c.offsets, sortedKeys(c.offsets), true)

	case StageWriteXrefsIncremental:
		return StageWriteTrailerAndFinish, writeXrefTable(c.w, c.offsets, c.written(c.newList), false)

	case StageWriteTrailerAndFinish:
		return StageComplete, c.writeTrailer()
	}
	return StageInvalid, fmt.Errorf("pdf: cannot continue from stage %v", c.stage)
}

// written returns the members of list that were written.
func (c *Creator) written(list []uint32) []uint32 {
	var out []uint32
	for _, n := range list {
		if _, ok := c.offsets[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// writeOldObject writes object n of the original file during a complete
// rewrite. An object that is not in memory is copied byte for byte when
// its encoding stays valid; otherwise it is parsed and serialized again.
// Objects that cannot be read are left out.
func (c *Creator) writeOldObject(n uint32) error {
	_, resident := c.doc.Object(n)
	if !resident && !c.securityChanged && c.r.ObjectType(n) == NormalObject && c.r.xref[n].Ptr.Gen == 0 {
		data, err := c.r.IndirectBinary(n)
		if err == nil {
			c.offsets[n] = c.w.Offset()
			c.w.WriteBlock(data)
			return c.w.WriteString("\r\n")
		}
		slog.Debug("copying object failed, parsing it", slog.Int("obj", int(n)), slog.Any("err", err))
	}

	obj, ok := c.doc.GetOrParse(n)
	if !ok {
		slog.Warn("dropping unreadable object", slog.Int("obj", int(n)))
		return nil
	}
	c.offsets[n] = c.w.Offset()
	if err := c.ow.writeIndirect(n, obj, n == c.encryptObjNum); err != nil {
		return err
	}
	if !resident {
		c.doc.Delete(n)
	}
	return nil
}

// liveRoots returns the references, besides the catalog and the
// information dictionary, that keep old objects alive in a rewrite.
func (c *Creator) liveRoots() []types.Objptr {
	var roots []types.Objptr
	types.References(passthrough(c.r), func(ptr types.Objptr) {
		roots = append(roots, ptr)
	})
	if e, ok := c.encrypt.(borrowedEncrypt); ok && e.ptr.ID != 0 {
		roots = append(roots, e.ptr)
	}
	return roots
}

// encryptInline reports whether the encryption dictionary is written as a
// new object after the others.
func (c *Creator) encryptInline() bool {
	switch e := c.encrypt.(type) {
	case ownedEncrypt:
		return true
	case borrowedEncrypt:
		return e.ptr.ID == 0
	}
	return false
}

func (c *Creator) initSecurity() {
	c.encrypt = nil
	c.encryptObjNum = 0
	c.crypto = nil
	c.securityChanged = c.noSecurity
	if c.r == nil || c.noSecurity {
		return
	}
	d, ptr := c.r.encryptDict()
	if d == nil {
		return
	}
	c.encrypt = borrowedEncrypt{d: d, ptr: ptr}
	c.encryptObjNum = ptr.ID
	c.crypto = c.r.cryptoHandler()
}

// initID computes the /ID array. The first identifier of the original file
// is kept. Standard security of revision 2 or 3 is regenerated for the
// identifiers whenever the original ones cannot be carried over, which
// changes the security and rules out an incremental update.
func (c *Creator) initID() {
	var old types.Array
	if c.r != nil {
		old = c.r.idArray()
	}

	var first types.Object
	if len(old) > 0 {
		first = types.Clone(old[0])
	} else {
		first = types.HexString(GenerateFileID(c.seed, c.lastObjNum))
	}
	c.ids = types.Array{first}
	switch {
	case len(old) > 1 && c.flags&Incremental != 0 && c.encrypt != nil:
		c.ids = append(c.ids, types.Clone(old[1]))
	case len(old) > 0:
		c.ids = append(c.ids, types.HexString(GenerateFileID(c.seed, c.lastObjNum)))
	default:
		c.ids = append(c.ids, first)
	}

	e, ok := c.encrypt.(borrowedEncrypt)
	if !ok || e.d["Filter"] != types.Name("Standard") {
		return
	}
	if r, _ := e.d["R"].(int64); r != 2 && r != 3 {
		return
	}
	if c.flags&Incremental == 0 && len(old) > 0 {
		return
	}
	id, _ := stringOf(first)
	h, d, err := crypt.Regenerate(c.r.Password(), e.d, id)
	if err != nil {
		slog.Warn("keeping original security", slog.Any("err", err))
		return
	}
	c.encrypt = ownedEncrypt{d: d}
	c.encryptObjNum = 0
	c.crypto = h
	c.securityChanged = true
}

// Save writes d to w in one go.
func Save(d *Document, w io.Writer, flags Flag) error {
	c := NewCreator(d, w)
	if !c.Create(flags &^ Progressive) {
		return c.Err()
	}
	return nil
}
