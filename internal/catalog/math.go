package catalog

import "math"

// Saturating and checked arithmetic are kept as separate helpers on purpose.
// Administrative stock adjustments clamp at the numeric bounds, while
// settlement uses the checked variants and rejects out-of-range values.

func satAdd(a, b uint32) uint32 {
	if a > math.MaxUint32-b {
		return math.MaxUint32
	}
	return a + b
}

func satSub(a, b uint32) uint32 {
	if b > a {
		return 0
	}
	return a - b
}

// CheckedSub reports ok=false when b exceeds a instead of wrapping.
func CheckedSub(a, b uint32) (uint32, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}

// CheckedMul reports ok=false when the product overflows uint64.
func CheckedMul(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxUint64/b {
		return 0, false
	}
	return a * b, true
}
