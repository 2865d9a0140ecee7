package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClone(t *testing.T) {
	orig := Dict{
		"A": Array{int64(1), Dict{"B": "x"}},
		"S": Stream{Hdr: Dict{"Length": int64(3)}, Data: []byte("abc")},
		"R": Objptr{ID: 4},
	}
	clone := Clone(orig).(Dict)
	if diff := cmp.Diff(Object(orig), Object(clone)); diff != "" {
		t.Fatalf("clone mismatch (-orig +clone):\n%s", diff)
	}

	clone["A"].(Array)[1].(Dict)["B"] = "changed"
	clone["S"].(Stream).Data[0] = 'z'
	clone["S"].(Stream).Hdr["Length"] = int64(9)
	if got := orig["A"].(Array)[1].(Dict)["B"]; got != "x" {
		t.Errorf("nested dict shared: original now %v", got)
	}
	if got := string(orig["S"].(Stream).Data); got != "abc" {
		t.Errorf("stream data shared: original now %q", got)
	}
	if got := orig["S"].(Stream).Hdr["Length"]; got != int64(3) {
		t.Errorf("stream header shared: original now %v", got)
	}
}

func TestReferences(t *testing.T) {
	testCases := map[string]struct {
		obj  Object
		want []Objptr
	}{
		"scalar": {obj: int64(1)},
		"ref":    {obj: Objptr{ID: 2}, want: []Objptr{{ID: 2}}},
		"array":  {obj: Array{Objptr{ID: 2}, "s", Array{Objptr{ID: 3}}}, want: []Objptr{{ID: 2}, {ID: 3}}},
		"stream": {obj: Stream{Hdr: Dict{"Length": Objptr{ID: 5}}, Data: []byte("1 0 R")}, want: []Objptr{{ID: 5}}},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			var got []Objptr
			References(tc.obj, func(ptr Objptr) { got = append(got, ptr) })
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("references mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
