package materialize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"class-importer/internal/progdb"
)

func data(offset, size uint64, name string) progdb.Field {
	return progdb.Field{Offset: offset, Size: size, Name: name, Kind: progdb.FieldData, Primitive: "int32_t"}
}

func TestLayout(t *testing.T) {
	tests := []struct {
		name       string
		size       uint64
		placements []Placement
		want       []progdb.Field
		rejected   int
	}{
		{
			name: "opaque class",
			size: 8,
			want: []progdb.Field{filler(0, 8)},
		},
		{
			name: "empty class",
			size: 0,
			want: []progdb.Field{},
		},
		{
			name:       "gaps filled",
			size:       16,
			placements: []Placement{{Field: data(4, 4, "a")}, {Field: data(12, 2, "b")}},
			want: []progdb.Field{
				filler(0, 4),
				data(4, 4, "a"),
				filler(8, 4),
				data(12, 2, "b"),
				filler(14, 2),
			},
		},
		{
			name:       "out of order input",
			size:       8,
			placements: []Placement{{Field: data(4, 4, "b")}, {Field: data(0, 4, "a")}},
			want:       []progdb.Field{data(0, 4, "a"), data(4, 4, "b")},
		},
		{
			name:       "does not fit",
			size:       8,
			placements: []Placement{{Field: data(6, 4, "a")}},
			want:       []progdb.Field{filler(0, 8)},
			rejected:   1,
		},
		{
			name:       "zero size rejected",
			size:       4,
			placements: []Placement{{Field: data(0, 0, "a")}},
			want:       []progdb.Field{filler(0, 4)},
			rejected:   1,
		},
		{
			name:       "overlap rejected",
			size:       8,
			placements: []Placement{{Field: data(0, 8, "base")}, {Field: data(4, 4, "a")}},
			want:       []progdb.Field{data(0, 8, "base")},
			rejected:   1,
		},
		{
			name:       "duplicate names",
			size:       8,
			placements: []Placement{{Field: data(0, 4, "x")}, {Field: data(4, 4, "x")}},
			want:       []progdb.Field{data(0, 4, "x"), data(4, 4, "x_0x4")},
		},
		{
			name: "kept field yields",
			size: 12,
			placements: []Placement{
				{Field: data(0, 4, "old"), Keep: true},
				{Field: data(8, 4, "user"), Keep: true},
				{Field: data(0, 4, "new")},
			},
			want: []progdb.Field{data(0, 4, "new"), filler(4, 4), data(8, 4, "user")},
		},
		{
			name:       "kept field outside is dropped silently",
			size:       4,
			placements: []Placement{{Field: data(4, 4, "old"), Keep: true}},
			want:       []progdb.Field{filler(0, 4)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rejected := Layout(tt.size, tt.placements)

			assert.Equal(t, tt.want, got)
			assert.Len(t, rejected, tt.rejected)
			assert.True(t, Coverage(tt.size, got))
		})
	}
}

func TestLayout_Union(t *testing.T) {
	alt := data(0, 4, "asFloat")
	alt.Primitive = "float"

	got, rejected := Layout(4, []Placement{
		{Field: data(0, 4, "asInt"), Union: true},
		{Field: alt, Union: true},
	})

	assert.Empty(t, rejected)
	require.Len(t, got, 1)
	assert.Equal(t, "asInt", got[0].Name)
	assert.Equal(t, "union alternative asFloat: float at 0x0, 4 bytes", got[0].Comment)
}

func TestLayout_UnionListedFirst(t *testing.T) {
	main := data(0, 8, "main")
	main.Primitive = "double"

	got, rejected := Layout(8, []Placement{
		{Field: data(0, 4, "alt"), Union: true},
		{Field: main},
	})

	assert.Empty(t, rejected)
	require.Len(t, got, 1)
	assert.Equal(t, "main", got[0].Name)
	assert.Equal(t, uint64(8), got[0].Size)
	assert.Equal(t, "union alternative alt: int32_t at 0x0, 4 bytes", got[0].Comment)
}

func TestLayout_KeptFieldsYield(t *testing.T) {
	got, rejected := Layout(8, []Placement{
		{Field: data(0, 8, "old"), Keep: true},
		{Field: data(4, 4, "alt"), Union: true},
		{Field: data(0, 4, "a")},
	})

	assert.Empty(t, rejected)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "alt", got[1].Name)
}

func TestCoverage(t *testing.T) {
	assert.True(t, Coverage(0, nil))
	assert.True(t, Coverage(8, []progdb.Field{filler(0, 4), data(4, 4, "a")}))
	assert.False(t, Coverage(8, []progdb.Field{data(4, 4, "a")}))
	assert.False(t, Coverage(8, []progdb.Field{filler(0, 4)}))
	assert.False(t, Coverage(8, []progdb.Field{filler(0, 6), data(4, 4, "a")}))
}
