package pdf

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ScriptRock/pdfwriter/internal/types"
)

func TestNewReader_header(t *testing.T) {
	testCases := map[string]struct {
		data    string
		wantErr bool
	}{
		"not a pdf":       {data: "hello, world\n", wantErr: true},
		"unknown version": {data: "%PDF-1.9\n1 0 obj\n<</Type/Catalog>>\nendobj\n", wantErr: true},
		"short":           {data: "%PDF", wantErr: true},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader([]byte(tc.data)), int64(len(tc.data)))
			if (err != nil) != tc.wantErr {
				t.Errorf("got error %v, want error %v", err, tc.wantErr)
			}
		})
	}
}

func TestReader_objectTypes(t *testing.T) {
	for name, xrefStream := range map[string]bool{"table": false, "stream": true} {
		t.Run(name, func(t *testing.T) {
			data := simpleFile(t, xrefStream)
			r := openBytes(t, data)

			if got := r.FileVersion(); got != 15 {
				t.Errorf("FileVersion = %d, want 15", got)
			}
			if got := r.Size(); got != int64(len(data)) {
				t.Errorf("Size = %d, want %d", got, len(data))
			}
			if got := r.IsXRefStream(); got != xrefStream {
				t.Errorf("IsXRefStream = %v, want %v", got, xrefStream)
			}
			start := int64(bytes.LastIndex(data, []byte("xref\r\n0 4")))
			if xrefStream {
				start = int64(bytes.LastIndex(data, []byte("4 0 obj")))
			}
			if got := r.LastXRefOffset(); got != start {
				t.Errorf("LastXRefOffset = %d, want %d", got, start)
			}

			for n := uint32(1); n <= 3; n++ {
				if got := r.ObjectType(n); got != NormalObject {
					t.Errorf("ObjectType(%d) = %v, want NormalObject", n, got)
				}
				off := r.ObjectOffset(n)
				if !bytes.HasPrefix(data[off:], []byte{byte('0' + n), ' ', '0', ' ', 'o', 'b', 'j'}) {
					t.Errorf("ObjectOffset(%d) = %d does not point at its header", n, off)
				}
			}
			for _, n := range []uint32{0, 99} {
				if !r.IsObjectFree(n) {
					t.Errorf("IsObjectFree(%d) = false", n)
				}
				if off := r.ObjectOffset(n); off != 0 {
					t.Errorf("ObjectOffset(%d) = %d, want 0", n, off)
				}
			}
		})
	}
}

func TestReader_ReadObject(t *testing.T) {
	r := openBytes(t, simpleFile(t, false))

	obj, err := r.ReadObject(2)
	if err != nil {
		t.Fatal(err)
	}
	want := types.Dict{"Type": types.Name("Pages"), "Kids": types.Array{}, "Count": int64(0)}
	if diff := cmp.Diff(types.Object(want), obj, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("object 2 mismatch (-want +got):\n%s", diff)
	}

	if _, err := r.ReadObject(42); !errors.Is(err, errFreeObject) {
		t.Errorf("ReadObject(42) error = %v, want %v", err, errFreeObject)
	}
}

func TestReader_IndirectBinary(t *testing.T) {
	data := buildFile(t, fixture{
		objs: map[uint32]types.Object{
			1: types.Dict{"Type": types.Name("Catalog")},
			2: types.Stream{Hdr: types.Dict{}, Data: []byte("endobj inside")},
		},
		trailer: types.Dict{"Root": types.Objptr{ID: 1}},
	})
	r := openBytes(t, data)

	testCases := map[uint32]string{
		1: "1 0 obj\r\n<</Type /Catalog>>\r\nendobj",
		2: "2 0 obj\r\n<</Length 13>>stream\r\nendobj inside\r\nendstream\r\nendobj",
	}
	for n, want := range testCases {
		got, err := r.IndirectBinary(n)
		if err != nil {
			t.Fatalf("IndirectBinary(%d): %v", n, err)
		}
		if diff := cmp.Diff(want, string(got)); diff != "" {
			t.Errorf("object %d mismatch (-want +got):\n%s", n, diff)
		}
	}

	if _, err := r.IndirectBinary(3); err == nil {
		t.Error("IndirectBinary of a free object succeeded")
	}
}

func TestReader_rebuildXref(t *testing.T) {
	testCases := map[string]struct {
		data     string
		wantRoot types.Objptr
		wantLast uint32
		wantErr  bool
	}{
		"bad startxref": {
			data: "%PDF-1.4\n1 0 obj\n<</Type/Catalog>>\nendobj\n2 0 obj\n(x)\nendobj\n" +
				"trailer\n<</Root 1 0 R/Size 3>>\nstartxref\n0\n%%EOF\n",
			wantRoot: types.Objptr{ID: 1},
			wantLast: 2,
		},
		"no trailer": {
			data:     "%PDF-1.4\n1 0 obj\n(x)\nendobj\n  3 0 obj\n<</Type /Catalog>>\nendobj\n",
			wantRoot: types.Objptr{ID: 3},
			wantLast: 3,
		},
		"later definition wins": {
			data:     "%PDF-1.4\n1 0 obj\n(old)\nendobj\n1 0 obj\n<</Type/Catalog>>\nendobj\n%%EOF\n",
			wantRoot: types.Objptr{ID: 1},
			wantLast: 1,
		},
		"huge object number": {
			data:     "%PDF-1.4\n1 0 obj\n<</Type/Catalog>>\nendobj\n4294967295 0 obj\n(x)\nendobj\n%%EOF\n",
			wantRoot: types.Objptr{ID: 1},
			wantLast: 1,
		},
		"huge xref subsection": {
			data: "%PDF-1.4\n1 0 obj\n<</Type/Catalog>>\nendobj\n" +
				"xref\n4000000000 1\n0000000009 00000 n \ntrailer\n<</Root 1 0 R/Size 2>>\nstartxref\n42\n%%EOF\n",
			wantRoot: types.Objptr{ID: 1},
			wantLast: 1,
		},
		"no catalog": {
			data:    "%PDF-1.4\n1 0 obj\n(x)\nendobj\n",
			wantErr: true,
		},
		"no objects": {
			data:    "%PDF-1.4\n%%EOF\n",
			wantErr: true,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			r, err := NewReader(bytes.NewReader([]byte(tc.data)), int64(len(tc.data)))
			if tc.wantErr {
				if err == nil {
					t.Fatal("NewReader succeeded")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := r.LastXRefOffset(); got != 0 {
				t.Errorf("LastXRefOffset = %d, want 0", got)
			}
			if got := r.LastObjNum(); got != tc.wantLast {
				t.Errorf("LastObjNum = %d, want %d", got, tc.wantLast)
			}
			if diff := cmp.Diff(types.Object(tc.wantRoot), r.trailerDict()["Root"]); diff != "" {
				t.Errorf("Root mismatch (-want +got):\n%s", diff)
			}
			obj, err := r.ReadObject(tc.wantRoot.ID)
			if err != nil {
				t.Fatal(err)
			}
			if d, ok := obj.(types.Dict); !ok || d["Type"] != types.Name("Catalog") {
				t.Errorf("root object = %v, want a catalog", obj)
			}
		})
	}
}

func TestValue_String(t *testing.T) {
	r := openBytes(t, simpleFile(t, false))
	testCases := map[string]struct {
		v    Value
		want string
	}{
		"dict":    {v: r.Trailer().Key("Root"), want: "<</Pages 2 0 R/Type /Catalog>>"},
		"integer": {v: r.Trailer().Key("Root").Key("Pages").Key("Count"), want: "0"},
		"null":    {v: r.Trailer().Key("Missing"), want: "null"},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			if got := tc.v.String(); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestObjfmt(t *testing.T) {
	testCases := map[string]struct {
		obj  any
		want string
	}{
		"definition": {obj: types.Objdef{Ptr: types.Objptr{ID: 3}, Obj: types.Array{int64(1)}}, want: "3 0 obj [1]"},
		"stream":     {obj: types.Stream{Hdr: types.Dict{"Length": int64(4)}, Offset: 99}, want: "<</Length 4>> stream"},
		"string":     {obj: "a)b", want: `(a\)b)`},
		"keyword":    {obj: keyword("endobj"), want: "endobj"},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			if got := objfmt(tc.obj); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
