package volume

import (
	"fmt"
	"math/rand"
)

// Stratified partitions [near, far) into n equal bins and returns one depth
// per bin in increasing order. Depths sit at the start of each bin when rng is
// nil; otherwise each depth is jittered uniformly inside its bin.
//
// The renderer shares the returned slice across every ray of a batch.
func Stratified(near, far float32, n int, rng *rand.Rand) ([]float32, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: sample count must be positive; got %d", ErrConfiguration, n)
	}
	if !(far > near) {
		return nil, fmt.Errorf("%w: far bound %f must exceed near bound %f", ErrConfiguration, far, near)
	}

	width := (far - near) / float32(n)
	depths := make([]float32, n)
	for i := range depths {
		var jitter float32
		if rng != nil {
			jitter = rng.Float32()
		}
		depths[i] = near + (float32(i)+jitter)*width

		// Guard against float rounding pushing the last depth onto far.
		if depths[i] >= far {
			depths[i] = near + float32(i)*width
		}
	}
	return depths, nil
}
