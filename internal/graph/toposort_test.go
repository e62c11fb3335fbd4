package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterializationOrder(t *testing.T) {
	tests := []struct {
		name          string
		bases         map[int][]int
		n             int
		wantOrder     []int
		wantUnordered []int
		wantCycle     bool
	}{
		{
			name:      "derived listed before its base",
			n:         3,
			bases:     map[int][]int{0: {2}},
			wantOrder: []int{1, 2, 0},
		},
		{
			name:      "diamond keeps input order among ready classes",
			n:         4,
			bases:     map[int][]int{0: {1, 2}, 1: {3}, 2: {3}},
			wantOrder: []int{3, 1, 2, 0},
		},
		{
			name:      "same base at two offsets",
			n:         2,
			bases:     map[int][]int{1: {0, 0}},
			wantOrder: []int{0, 1},
		},
		{
			name:          "inheritance loop",
			n:             3,
			bases:         map[int][]int{0: {1}, 1: {0}},
			wantOrder:     []int{2},
			wantUnordered: []int{0, 1},
			wantCycle:     true,
		},
		{
			name:          "class derives from itself",
			n:             2,
			bases:         map[int][]int{1: {1}},
			wantOrder:     []int{0},
			wantUnordered: []int{1},
			wantCycle:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, unordered, err := materializationOrder(tt.n, func(i int) []int { return tt.bases[i] })

			if tt.wantCycle {
				require.ErrorIs(t, err, ErrCycle)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantOrder, order)
			assert.Equal(t, tt.wantUnordered, unordered)
		})
	}
}

func TestMaterializationOrder_BaseOutOfRange(t *testing.T) {
	_, _, err := materializationOrder(1, func(int) []int { return []int{5} })
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCycle)
}

func TestMaterializationOrder_NoClasses(t *testing.T) {
	order, unordered, err := materializationOrder(0, nil)
	require.NoError(t, err)
	assert.Nil(t, order)
	assert.Nil(t, unordered)
}
