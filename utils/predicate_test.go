package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsInRange(t *testing.T) {
	assert.True(t, IsInRange(0, 0, 10))
	assert.True(t, IsInRange(0, 10, 10))
	assert.False(t, IsInRange(0, 11, 10))
	assert.False(t, IsInRange(uint64(4), 3, 8))
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd uint64
		expected                   bool
	}{
		{"disjoint", 0, 4, 4, 8, false},
		{"nested", 0, 8, 2, 4, true},
		{"partial", 0, 6, 4, 8, true},
		{"empty a", 4, 4, 0, 8, false},
		{"empty b", 0, 8, 3, 3, false},
		{"identical", 2, 6, 2, 6, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd))
		})
	}
}

func TestFits(t *testing.T) {
	assert.True(t, Fits(8, 4, 12))
	assert.False(t, Fits(8, 8, 12))
	assert.True(t, Fits(0, 0, 0))
	assert.False(t, Fits(math.MaxUint64, 2, math.MaxUint64))
}
