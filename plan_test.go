package pdf

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ScriptRock/pdfwriter/internal/types"
)

func TestNewPlan(t *testing.T) {
	classic := &Reader{end: 1000, startxref: 900}
	stream := &Reader{end: 1000, startxref: 900, xrefStream: true}
	rebuilt := &Reader{end: 1000}

	testCases := map[string]struct {
		flags           Flag
		r               *Reader
		securityChanged bool
		want            plan
		wantStart       int64
	}{
		"rewrite": {
			r:    classic,
			want: plan{original: true},
		},
		"new document": {
			flags: Incremental,
			want:  plan{original: true},
		},
		"incremental": {
			flags: Incremental,
			r:     classic,
			want:  plan{incremental: true, original: true, savedOffset: 1000},
		},
		"incremental xref stream": {
			flags: Incremental,
			r:     stream,
			want:  plan{incremental: true, original: true, savedOffset: 1000, xrefStream: true},
		},
		"incremental rebuilt": {
			flags: Incremental,
			r:     rebuilt,
			want:  plan{incremental: true, original: true, savedOffset: 1000, synthesize: true},
		},
		"no original": {
			flags:     Incremental | NoOriginal,
			r:         classic,
			want:      plan{incremental: true, savedOffset: 1000},
			wantStart: 1000,
		},
		"no original without incremental": {
			flags: NoOriginal,
			r:     classic,
			want:  plan{},
		},
		"security changed": {
			flags:           Incremental,
			r:               stream,
			securityChanged: true,
			want:            plan{original: true},
		},
		"security changed without original": {
			flags:           Incremental | NoOriginal,
			r:               stream,
			securityChanged: true,
			want:            plan{incremental: true, savedOffset: 1000, xrefStream: true},
			wantStart:       1000,
		},
		"security changed full rewrite": {
			flags:           NoOriginal,
			r:               classic,
			securityChanged: true,
			want:            plan{},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got := newPlan(tc.flags, tc.r, tc.securityChanged)
			if diff := cmp.Diff(tc.want, got, cmp.AllowUnexported(plan{})); diff != "" {
				t.Errorf("plan mismatch (-want +got):\n%s", diff)
			}
			if start := got.startOffset(); start != tc.wantStart {
				t.Errorf("startOffset = %d, want %d", start, tc.wantStart)
			}
		})
	}
}

func TestPlan_oldOffsets(t *testing.T) {
	r := &Reader{
		end: 100,
		xref: []types.Xref{
			{},
			{Ptr: types.Objptr{ID: 1}, Offset: 10},
			{Ptr: types.Objptr{ID: 2}, InStream: true, Stream: types.Objptr{ID: 4}},
			{Ptr: types.Objptr{Gen: 65535}},
			{Ptr: types.Objptr{ID: 4}, Offset: 40},
		},
	}

	testCases := map[string]struct {
		flags Flag
		want  map[uint32]int64
	}{
		"incremental":  {flags: Incremental, want: map[uint32]int64{1: 10, 4: 40}},
		"no original":  {flags: Incremental | NoOriginal},
		"full rewrite": {},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			p := newPlan(tc.flags, r, false)
			if diff := cmp.Diff(tc.want, p.oldOffsets(r), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("offsets mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRuns(t *testing.T) {
	testCases := map[string]struct {
		list []uint32
		want [][2]uint32
	}{
		"empty":       {},
		"single":      {list: []uint32{7}, want: [][2]uint32{{7, 1}}},
		"consecutive": {list: []uint32{1, 2, 3}, want: [][2]uint32{{1, 3}}},
		"gaps":        {list: []uint32{1, 2, 4, 6, 7}, want: [][2]uint32{{1, 2}, {4, 1}, {6, 2}}},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, runs(tc.list)); diff != "" {
				t.Errorf("runs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewObjects(t *testing.T) {
	d := loadBytes(t, simpleFile(t, false))
	d.GetOrParse(1)
	d.Replace(2, Dict{"Type": Name("Pages"), "Kids": Array{}, "Count": int64(0)})
	d.Add("new")

	if diff := cmp.Diff([]uint32{2, 4}, newObjects(d, true)); diff != "" {
		t.Errorf("incremental mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint32{4}, newObjects(d, false)); diff != "" {
		t.Errorf("rewrite mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint32{1, 2}, oldObjects(d)); diff != "" {
		t.Errorf("old objects mismatch (-want +got):\n%s", diff)
	}

	fresh := NewDocument()
	fresh.Add("x")
	if diff := cmp.Diff([]uint32{1, 2}, newObjects(fresh, true)); diff != "" {
		t.Errorf("new document mismatch (-want +got):\n%s", diff)
	}
	if got := oldObjects(fresh); got != nil {
		t.Errorf("new document has old objects %v", got)
	}
}

func TestGenerateFileID(t *testing.T) {
	a := GenerateFileID(1, 2)
	if len(a) != 16 {
		t.Fatalf("len = %d, want 16", len(a))
	}
	if b := GenerateFileID(1, 2); !bytes.Equal(a, b) {
		t.Errorf("equal seeds gave % x and % x", a, b)
	}
	if c := GenerateFileID(2, 1); bytes.Equal(a, c) {
		t.Errorf("different seeds both gave % x", a)
	}
}
