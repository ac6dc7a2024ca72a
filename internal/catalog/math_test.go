package catalog

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSatAdd(t *testing.T) {
	assert.Equal(t, uint32(5), satAdd(2, 3))
	assert.Equal(t, uint32(math.MaxUint32), satAdd(math.MaxUint32, 1))
	assert.Equal(t, uint32(math.MaxUint32), satAdd(math.MaxUint32-1, 5))
	assert.Equal(t, uint32(0), satAdd(0, 0))
}

func TestSatSub(t *testing.T) {
	assert.Equal(t, uint32(2), satSub(5, 3))
	assert.Equal(t, uint32(0), satSub(3, 5))
	assert.Equal(t, uint32(0), satSub(0, 1))
}

func TestCheckedSub(t *testing.T) {
	got, ok := CheckedSub(5, 3)
	assert.True(t, ok)
	assert.Equal(t, uint32(2), got)

	_, ok = CheckedSub(3, 5)
	assert.False(t, ok)

	got, ok = CheckedSub(4, 4)
	assert.True(t, ok)
	assert.Equal(t, uint32(0), got)
}

func TestCheckedMul(t *testing.T) {
	got, ok := CheckedMul(6, 7)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), got)

	got, ok = CheckedMul(0, math.MaxUint64)
	assert.True(t, ok)
	assert.Equal(t, uint64(0), got)

	_, ok = CheckedMul(math.MaxUint64, 2)
	assert.False(t, ok)

	got, ok = CheckedMul(math.MaxUint64, 1)
	assert.True(t, ok)
	assert.Equal(t, uint64(math.MaxUint64), got)
}
