package pdf

import (
	"bytes"
	"math"
	"testing"

	"github.com/ScriptRock/pdfwriter/internal/sink"
	"github.com/ScriptRock/pdfwriter/internal/types"
)

// markCrypto "encrypts" by prefixing a marker and records the objects it saw.
type markCrypto struct {
	metadata bool
	seen     []uint32
}

func (m *markCrypto) Encrypt(ptr types.Objptr, data []byte) ([]byte, error) {
	m.seen = append(m.seen, ptr.ID)
	return append([]byte("#"), data...), nil
}

func (m *markCrypto) EncryptMetadata() bool { return m.metadata }

func serialize(t *testing.T, crypto cryptoHandler, n uint32, obj types.Object, plain bool) string {
	t.Helper()
	var buf bytes.Buffer
	w := sink.New(&buf, 0)
	ow := objectWriter{w: w, crypto: crypto}
	if err := ow.writeIndirect(n, obj, plain); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestWriteDirect(t *testing.T) {
	testCases := map[string]struct {
		obj  types.Object
		want string
	}{
		"null":          {obj: nil, want: "null"},
		"bool":          {obj: true, want: "true"},
		"integer":       {obj: int64(-42), want: "-42"},
		"real":          {obj: 1.5, want: "1.5"},
		"whole real":    {obj: float64(3), want: "3"},
		"small real":    {obj: 0.001, want: "0.001"},
		"rounded real":  {obj: 1.0 / 3, want: "0.333333"},
		"tiny real":     {obj: -1e-9, want: "0"},
		"huge real":     {obj: 1e300, want: "340282346638528859811704183484516925440"},
		"string":        {obj: "a(b)\\c\r\n", want: `(a\(b\)\\c\r\n)`},
		"hex string":    {obj: types.HexString("\x01\xab"), want: "<01ab>"},
		"name":          {obj: types.Name("Type"), want: "/Type"},
		"escaped name":  {obj: types.Name("A B#(x)"), want: "/A#20B#23#28x#29"},
		"reference":     {obj: types.Objptr{ID: 7}, want: "7 0 R"},
		"array":         {obj: types.Array{int64(1), types.Name("X"), types.Array{}}, want: "[1 /X []]"},
		"sorted dict":   {obj: types.Dict{"B": int64(2), "A": true}, want: "<</A true/B 2>>"},
		"nested dict":   {obj: types.Dict{"K": types.Dict{"V": types.Objptr{ID: 3}}}, want: "<</K <</V 3 0 R>>>>"},
		"empty stream":  {obj: types.Stream{}, want: "<</Length 0>>stream\r\n\r\nendstream"},
		"stream length": {obj: types.Stream{Hdr: types.Dict{"Filter": types.Name("FlateDecode"), "Length": int64(99)}, Data: []byte("xyz")}, want: "<</Filter /FlateDecode/Length 3>>stream\r\nxyz\r\nendstream"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got := serialize(t, nil, 12, tc.obj, false)
			want := "12 0 obj\r\n" + tc.want + "\r\nendobj\r\n"
			if got != want {
				t.Errorf("got %q, want %q", got, want)
			}
		})
	}
}

func TestWriteIndirect_unsupported(t *testing.T) {
	testCases := map[string]types.Object{
		"struct":   struct{}{},
		"NaN":      math.NaN(),
		"infinity": types.Array{math.Inf(-1)},
	}
	for name, obj := range testCases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			ow := objectWriter{w: sink.New(&buf, 0)}
			if err := ow.writeIndirect(1, obj, false); err == nil {
				t.Error("serialization succeeded")
			}
		})
	}
}

func TestWriteIndirect_encryption(t *testing.T) {
	testCases := map[string]struct {
		obj      types.Object
		plain    bool
		metadata bool
		want     string
		seen     int
	}{
		"string": {
			obj:  types.Dict{"S": "abc"},
			want: "<</S (#abc)>>",
			seen: 1,
		},
		"hex string": {
			obj:  types.Array{types.HexString("\x01")},
			want: "[<2301>]",
			seen: 1,
		},
		"encryption dictionary": {
			obj:   types.Dict{"U": "user", "O": "owner"},
			plain: true,
			want:  "<</O (owner)/U (user)>>",
		},
		"stream length follows payload": {
			obj:  types.Stream{Hdr: types.Dict{}, Data: []byte("data")},
			want: "<</Length 5>>stream\r\n#data\r\nendstream",
			seen: 1,
		},
		"signature contents": {
			obj:  types.Dict{"Type": types.Name("Sig"), "Contents": types.HexString("\xff"), "Name": "me"},
			want: "<</Contents <ff>/Name (#me)/Type /Sig>>",
			seen: 1,
		},
		"plain metadata": {
			obj:  types.Stream{Hdr: types.Dict{"Type": types.Name("Metadata")}, Data: []byte("<x/>")},
			want: "<</Length 4/Type /Metadata>>stream\r\n<x/>\r\nendstream",
		},
		"encrypted metadata": {
			obj:      types.Stream{Hdr: types.Dict{"Type": types.Name("Metadata")}, Data: []byte("<x/>")},
			metadata: true,
			want:     "<</Length 5/Type /Metadata>>stream\r\n#<x/>\r\nendstream",
			seen:     1,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			crypto := &markCrypto{metadata: tc.metadata}
			got := serialize(t, crypto, 9, tc.obj, tc.plain)
			want := "9 0 obj\r\n" + tc.want + "\r\nendobj\r\n"
			if got != want {
				t.Errorf("got %q, want %q", got, want)
			}
			if len(crypto.seen) != tc.seen {
				t.Errorf("encrypted %d payloads, want %d", len(crypto.seen), tc.seen)
			}
			for _, n := range crypto.seen {
				if n != 9 {
					t.Errorf("payload encrypted for object %d, want 9", n)
				}
			}
		})
	}
}
