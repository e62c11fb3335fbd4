package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"class-importer/internal/errs"
)

func TestParse_JSON(t *testing.T) {
	data := `{
  "md5": "0123456789ABCDEF0123456789abcdef",
  "filename": "sample.exe",
  "structures": [
    {
      "name": "A",
      "size": 8,
      "members": [ { "offset": 4, "size": 4, "type": "int" } ],
      "methods": [
        { "address": "0x401000", "kind": "ctor" },
        { "address": 4198432, "kind": "virtual", "vtableSlot": 1 }
      ],
      "vtables": [ { "base": "0x40a000", "slots": [ null, "0x401020", "thunk" ] } ]
    },
    {
      "name": "B",
      "demangledName": "ns::B",
      "size": 12,
      "bases": [ { "name": "A", "offset": 0 } ]
    }
  ]
}`

	doc, err := Parse([]byte(data))
	require.NoError(t, err)
	require.NotNil(t, doc)

	require.NotNil(t, doc.MD5)
	assert.Equal(t, "0123456789ABCDEF0123456789abcdef", *doc.MD5)
	require.NotNil(t, doc.Filename)
	assert.Equal(t, "sample.exe", *doc.Filename)
	require.Len(t, doc.Structures, 2)

	a := doc.Structures[0]
	assert.Equal(t, "A", a.DisplayName())
	assert.Equal(t, uint64(8), a.Size)
	require.Len(t, a.Members, 1)
	assert.Equal(t, "field_0x4", a.Members[0].FieldName())
	require.NotNil(t, a.Members[0].Type)
	assert.Equal(t, "int", *a.Members[0].Type)

	require.Len(t, a.Methods, 2)
	assert.Equal(t, Address{Value: 0x401000}, a.Methods[0].Address)
	assert.Equal(t, MethodKindConstructor, a.Methods[0].Kind)
	assert.False(t, a.Methods[0].IsBound())
	assert.Equal(t, Address{Value: 4198432}, a.Methods[1].Address)
	assert.Equal(t, MethodKindVirtual, a.Methods[1].Kind)
	require.True(t, a.Methods[1].IsBound())
	assert.Equal(t, 1, *a.Methods[1].VtableSlot)
	assert.Equal(t, 0, a.Methods[1].VtableIndex())

	require.Len(t, a.Vtables, 1)
	vt := a.Vtables[0]
	require.NotNil(t, vt.Base)
	assert.Equal(t, uint64(0x40a000), vt.Base.Value)
	require.Len(t, vt.Slots, 3)
	assert.True(t, vt.Slots[0].IsUnknown())
	require.NotNil(t, vt.Slots[1].Address)
	assert.Equal(t, uint64(0x401020), vt.Slots[1].Address.Value)
	assert.True(t, vt.Slots[2].Thunk)
	assert.Nil(t, vt.Slots[2].Address)

	b := doc.Structures[1]
	assert.Equal(t, "ns::B", b.DisplayName())
	require.Len(t, b.Bases, 1)
	assert.Equal(t, BaseRef{Name: "A", Offset: 0}, b.Bases[0])
}

func TestParse_YAML(t *testing.T) {
	data := `
filename: sample.exe
structures:
  cls_1:
    size: 4
    methods:
      - address: 401000h
        kind: dtor
      - address: "?get@Widget@@QAEHXZ"
  cls_2:
    name: Named
    size: 0
inheritance:
  - derived: " cls_1 "
    base: Named
`

	doc, err := Parse([]byte(data))
	require.NoError(t, err)

	assert.Nil(t, doc.MD5)
	require.Len(t, doc.Structures, 2)
	assert.Equal(t, "cls_1", doc.Structures[0].Name)
	assert.Equal(t, "Named", doc.Structures[1].Name)

	m := doc.Structures[0].Methods
	require.Len(t, m, 2)
	assert.Equal(t, Address{Value: 0x401000}, m[0].Address)
	assert.Equal(t, MethodKindDestructor, m[0].Kind)
	assert.True(t, m[1].Address.IsSymbolic())
	assert.Equal(t, "?get@Widget@@QAEHXZ", m[1].Address.String())
	assert.Equal(t, MethodKindNonVirtual, m[1].Kind)

	require.Len(t, doc.Inheritance, 1)
	assert.Equal(t, "cls_1", doc.Inheritance[0].Derived)

	c, ok := doc.Find("Named")
	require.True(t, ok)
	assert.Equal(t, uint64(0), c.Size)
}

func TestParse_EmptyStructures(t *testing.T) {
	doc, err := Parse([]byte(`{"md5": "abc", "structures": []}`))
	require.NoError(t, err)
	assert.Empty(t, doc.Structures)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not yaml", data: "structures: [\n"},
		{name: "unknown method kind", data: `{"structures":[{"name":"A","methods":[{"address":1,"kind":"weird"}]}]}`},
		{name: "negative address", data: `{"structures":[{"name":"A","methods":[{"address":-4}]}]}`},
		{name: "address with spaces", data: `{"structures":[{"name":"A","methods":[{"address":"not an address"}]}]}`},
		{name: "bad hex", data: `{"structures":[{"name":"A","methods":[{"address":"0xzz"}]}]}`},
		{name: "float size", data: `{"structures":[{"name":"A","size":1.5}]}`},
		{name: "slots not a list", data: `{"structures":[{"name":"A","vtables":[{"slots":"0x1"}]}]}`},
		{name: "structures scalar", data: `{"structures": 3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errs.IsKind(err, errs.KindInput), "got %v", err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"structures":[{"name":"A","size":4}]}`), 0o644))

	doc, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, doc.Structures, 1)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindInput))
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    Address
		wantErr bool
	}{
		{in: "0x10", want: Address{Value: 16}},
		{in: "0XfF", want: Address{Value: 255}},
		{in: "10h", want: Address{Value: 16}},
		{in: "42", want: Address{Value: 42}},
		{in: " sub_401000 ", want: Address{Symbol: "sub_401000"}},
		{in: "", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "a b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAddress(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMethodKind(t *testing.T) {
	for in, want := range map[string]MethodKind{
		"ctor":        MethodKindConstructor,
		"Constructor": MethodKindConstructor,
		"dtor":        MethodKindDestructor,
		"virt":        MethodKindVirtual,
		"virtual":     MethodKindVirtual,
		"meth":        MethodKindNonVirtual,
		"":            MethodKindNonVirtual,
		"static":      MethodKindStatic,
	} {
		got, err := ParseMethodKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMethodKind("friend")
	assert.Error(t, err)
	assert.Equal(t, "Virtual", MethodKindVirtual.String())
}

func TestMarshal_RoundTripsSlots(t *testing.T) {
	doc, err := Parse([]byte(`{"structures":[{"name":"A","size":4,"vtables":[{"slots":[null,"0x10","thunk"]}]}]}`))
	require.NoError(t, err)

	out, err := Marshal(doc)
	require.NoError(t, err)

	again, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, doc.Structures[0].Vtables, again.Structures[0].Vtables)
}
