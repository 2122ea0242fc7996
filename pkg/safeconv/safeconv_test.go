package safeconv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/treechurn/pkg/safeconv"
)

func TestMustUintToInt(t *testing.T) {
	t.Parallel()

	for _, v := range []uint{0, 1, 42, uint(safeconv.MaxInt)} {
		assert.Equal(t, v, uint(safeconv.MustUintToInt(v)))
	}

	assert.PanicsWithValue(t, "safeconv: uint to int overflow", func() {
		safeconv.MustUintToInt(uint(safeconv.MaxInt) + 1)
	})
}

func TestMustIntToUint(t *testing.T) {
	t.Parallel()

	for _, v := range []int{0, 1, 42, safeconv.MaxInt} {
		assert.Equal(t, v, int(safeconv.MustIntToUint(v)))
	}

	assert.PanicsWithValue(t, "safeconv: negative int to uint conversion", func() {
		safeconv.MustIntToUint(-1)
	})
}
