package tensor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDropoutMask_Rate(t *testing.T) {
	keep := DropoutMask(1000, 0.3, rand.New(rand.NewSource(42)))

	dropped := 0
	for _, k := range keep {
		if !k {
			dropped++
		}
	}
	rate := float64(dropped) / float64(len(keep))
	assert.InDelta(t, 0.3, rate, 0.1)
}

func TestDropoutMask_ZeroProbabilityKeepsAll(t *testing.T) {
	for _, k := range DropoutMask(100, 0, rand.New(rand.NewSource(1))) {
		assert.True(t, k)
	}
}

func TestDropoutMask_Reproducible(t *testing.T) {
	a := DropoutMask(64, 0.5, rand.New(rand.NewSource(7)))
	b := DropoutMask(64, 0.5, rand.New(rand.NewSource(7)))
	assert.Equal(t, a, b)
}

func TestApplyDropoutMask(t *testing.T) {
	src := []float32{1, 2, 3, 4}
	dst := make([]float32, 4)
	ApplyDropoutMask(dst, src, []bool{true, false, true, false}, 0.5)
	assert.Equal(t, []float32{2, 0, 6, 0}, dst)

	// In place.
	ApplyDropoutMask(src, src, []bool{false, true, true, true}, 0.5)
	assert.Equal(t, []float32{0, 4, 6, 8}, src)
}

func TestApplyDropoutMask_KeptValuesScaled(t *testing.T) {
	p := float32(0.3)
	src := make([]float32, 1000)
	for i := range src {
		src[i] = 1
	}
	keep := DropoutMask(len(src), p, rand.New(rand.NewSource(42)))

	dst := make([]float32, len(src))
	ApplyDropoutMask(dst, src, keep, p)

	kept := float32(1) / (1 - p)
	for i, v := range dst {
		if keep[i] {
			assert.Equal(t, kept, v)
		} else {
			assert.Zero(t, v)
		}
	}
}
