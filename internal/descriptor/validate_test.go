package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantCode string
	}{
		{
			name:     "empty class name",
			data:     `{"structures":[{"name":"","size":4}]}`,
			wantCode: "class_name_empty",
		},
		{
			name:     "duplicate class",
			data:     `{"structures":[{"name":"A","size":4},{"name":"A","size":8}]}`,
			wantCode: "class_duplicate",
		},
		{
			name:     "member past end",
			data:     `{"structures":[{"name":"A","size":4,"members":[{"offset":2,"size":4}]}]}`,
			wantCode: "member_out_of_range",
		},
		{
			name:     "zero size member",
			data:     `{"structures":[{"name":"A","size":4,"members":[{"offset":0,"size":0}]}]}`,
			wantCode: "member_zero_size",
		},
		{
			name:     "overlapping members",
			data:     `{"structures":[{"name":"A","size":8,"members":[{"offset":0,"size":4},{"offset":2,"size":4}]}]}`,
			wantCode: "member_overlap",
		},
		{
			name:     "method without address",
			data:     `{"structures":[{"name":"A","size":4,"methods":[{"kind":"ctor"}]}]}`,
			wantCode: "method_address_missing",
		},
		{
			name:     "slot without vtable",
			data:     `{"structures":[{"name":"A","size":4,"methods":[{"address":1,"kind":"virtual","vtableSlot":0}]}]}`,
			wantCode: "method_vtable_out_of_range",
		},
		{
			name: "slot past end",
			data: `{"structures":[{"name":"A","size":4,
				"vtables":[{"slots":["0x1"]}],
				"methods":[{"address":1,"kind":"virtual","vtableSlot":1}]}]}`,
			wantCode: "method_slot_out_of_range",
		},
		{
			name: "two bases at zero",
			data: `{"structures":[{"name":"A","size":4},{"name":"B","size":4},
				{"name":"C","size":8,"bases":[{"name":"A","offset":0},{"name":"B","offset":0}]}]}`,
			wantCode: "base_offset_conflict",
		},
		{
			name: "second base at zero after an offset base",
			data: `{"structures":[{"name":"A","size":4},{"name":"B","size":4},
				{"name":"C","size":8,"bases":[{"name":"A","offset":4},{"name":"B","offset":0}]}]}`,
			wantCode: "base_offset_conflict",
		},
		{
			name: "top-level edge at zero",
			data: `{"structures":[{"name":"A","size":4},{"name":"B","size":4},
				{"name":"C","size":8,"bases":[{"name":"A","offset":0}]}],
				"inheritance":[{"derived":"C","base":"B","offset":0}]}`,
			wantCode: "base_offset_conflict",
		},
		{
			name:     "incomplete edge",
			data:     `{"structures":[{"name":"A","size":4}],"inheritance":[{"derived":"A"}]}`,
			wantCode: "inheritance_incomplete",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.data))
			require.NoError(t, err)

			res := Validate(doc)
			require.True(t, res.HasErrors(), "expected %s", tt.wantCode)
			assert.NotEmpty(t, res.ByCode(tt.wantCode), "diagnostics: %v", res.Errors)
			assert.Error(t, res.Error())
		})
	}
}

func TestValidate_Clean(t *testing.T) {
	data := `{"structures":[
		{"name":"A","size":8,
		 "members":[{"offset":0,"size":4},{"offset":0,"size":2,"union":true},{"offset":4,"size":4}],
		 "vtables":[{"slots":["0x1","0x2"]},{"slots":[null]}],
		 "methods":[
			{"address":"0x1","kind":"virtual","vtableSlot":1},
			{"address":"0x3","kind":"virtual","vtable":1,"vtableSlot":0}]},
		{"name":"B","size":8,"bases":[{"name":"A","offset":0},{"name":"A","offset":0,"virtual":true}]}
	]}`

	doc, err := Parse([]byte(data))
	require.NoError(t, err)

	res := Validate(doc)
	assert.False(t, res.HasErrors(), "unexpected: %v", res.Errors)
	assert.NoError(t, res.Error())
}

func TestValidate_BaseEdges(t *testing.T) {
	data := `{"structures":[{"name":"A","size":4},{"name":"B","size":4},{"name":"V","size":4},
		{"name":"C","size":12,"bases":[{"name":"V","offset":8,"virtual":true},{"name":"A","offset":0}]}],
		"inheritance":[
			{"derived":"C","base":"A","offset":0},
			{"derived":"C","base":"B","offset":4}
		]}`

	doc, err := Parse([]byte(data))
	require.NoError(t, err)

	res := Validate(doc)
	assert.False(t, res.HasErrors(), "unexpected: %v", res.Errors)
}

func TestValidate_Warnings(t *testing.T) {
	data := `{"structures":[{"name":"A","size":4,
		"vtables":[{"slots":[]},{"slots":["0x5"]}],
		"methods":[{"address":"0x5","kind":"ctor","vtable":1,"vtableSlot":0}]}]}`

	doc, err := Parse([]byte(data))
	require.NoError(t, err)

	res := Validate(doc)
	assert.False(t, res.HasErrors())
	assert.Len(t, res.ByCode("vtable_empty"), 1)
	assert.Len(t, res.ByCode("method_slot_not_virtual"), 1)
}

func TestValidate_Nil(t *testing.T) {
	res := Validate(nil)
	assert.Len(t, res.ByCode("document_is_nil"), 1)
}
