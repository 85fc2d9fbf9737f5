package tensor

import "math/rand"

// Dropout is split into drawing the keep decisions and applying them, so a
// caller can draw every decision for a forward pass up front from one
// generator and apply them later from several goroutines.
//
// Inverted dropout: kept values are scaled by 1/(1-p) so the expected value
// is unchanged, and inference needs no rescaling.

// DropoutMask draws n keep/drop decisions with drop probability p; true means
// keep. rng must not be shared with other goroutines without external locking.
func DropoutMask(n int, p float32, rng *rand.Rand) []bool {
	keep := make([]bool, n)
	for i := range keep {
		keep[i] = rng.Float32() >= p
	}
	return keep
}

// ApplyDropoutMask writes src into dst, zeroing dropped entries and scaling
// kept ones by 1/(1-p). dst and src may alias. p must be in [0, 1).
func ApplyDropoutMask(dst, src []float32, keep []bool, p float32) {
	scale := 1 / (1 - p)
	for i, v := range src {
		if keep[i] {
			dst[i] = v * scale
		} else {
			dst[i] = 0
		}
	}
}
