package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocateProportionalSplit(t *testing.T) {
	t.Parallel()

	spends := map[string]float64{"a": 30, "b": 70}
	got := Allocate(spends, 10, 1000, 50)

	assert.Equal(t, 3.0, got["a"].Count)
	assert.Equal(t, 7.0, got["b"].Count)
	assert.InDelta(t, 300, got["a"].Value, 1e-9)
	assert.InDelta(t, 700, got["b"].Value, 1e-9)
}

func TestAllocateZeroSpendEntityGetsNothing(t *testing.T) {
	t.Parallel()

	spends := map[string]float64{"a": 100, "b": 0}
	got := Allocate(spends, 4, 400, 50)

	assert.Equal(t, 4.0, got["a"].Count)
	assert.Equal(t, Allocation{}, got["b"])
}

func TestAllocateAllZeroSpend(t *testing.T) {
	t.Parallel()

	got := Allocate(map[string]float64{"a": 0, "b": 0}, 10, 1000, 50)
	assert.Equal(t, Allocation{}, got["a"])
	assert.Equal(t, Allocation{}, got["b"])
}

func TestAllocateDefaultValueWhenUnreported(t *testing.T) {
	t.Parallel()

	// Conversions counted but no value reported: each unit is worth the
	// default so estimated ROAS is non-zero.
	got := Allocate(map[string]float64{"a": 50, "b": 50}, 4, 0, 50)
	assert.InDelta(t, 100, got["a"].Value, 1e-9)
	assert.InDelta(t, 100, got["b"].Value, 1e-9)
	assert.Equal(t, 2.0, got["a"].Count)
}

func TestAllocateCountsAreRounded(t *testing.T) {
	t.Parallel()

	// One third of 10 rounds to 3, two thirds to 7.
	got := Allocate(map[string]float64{"a": 1, "b": 2}, 10, 0, 0)
	assert.Equal(t, 3.0, got["a"].Count)
	assert.Equal(t, 7.0, got["b"].Count)
}
