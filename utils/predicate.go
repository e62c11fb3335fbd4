package utils

type number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// IsInRange checks if a value is within the specified range, both inclusive.
func IsInRange[T number](min T, value T, max T) bool {
	return min <= value && value <= max
}

// Overlaps reports whether the half-open ranges [aStart, aEnd) and [bStart, bEnd) intersect.
// Empty ranges never overlap anything.
func Overlaps[T number](aStart, aEnd, bStart, bEnd T) bool {
	if aStart >= aEnd || bStart >= bEnd {
		return false
	}

	return aStart < bEnd && bStart < aEnd
}

// Fits reports whether [start, start+size) lies within [0, limit) without overflowing.
func Fits(start, size, limit uint64) bool {
	end := start + size
	if end < start {
		return false
	}

	return end <= limit
}
