package volume

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/achilleasa/go-volrender/types"
	"gonum.org/v1/gonum/floats"
)

// Resample draws n importance-biased depths per ray from the piecewise
// constant density implied by the coarse compositing weights and returns the
// matching sample points.
//
// Bin i of a ray spans the midpoints between its neighbouring coarse depths
// (the outermost bins extend to near and far) and carries weight i. Rows whose
// weights are all zero fall back to a uniform density over [near, far]. The
// returned depths are sorted and lie inside [near, far]. Inverse CDF inputs are
// stratified; they sit at bin centers when rng is nil and are jittered
// otherwise.
func Resample(origins, dirs []types.Vec3, depths, weights [][]float32, n int, near, far float32, rng *rand.Rand) ([][]types.Vec3, [][]float32, error) {
	if n <= 0 {
		return nil, nil, fmt.Errorf("%w: sample count must be positive; got %d", ErrConfiguration, n)
	}
	if !(far > near) {
		return nil, nil, fmt.Errorf("%w: far bound %f must exceed near bound %f", ErrConfiguration, far, near)
	}
	numRays := len(origins)
	if len(dirs) != numRays || len(depths) != numRays || len(weights) != numRays {
		return nil, nil, fmt.Errorf(
			"%w: resampler got %d origins, %d directions, %d depth rows and %d weight rows",
			ErrShapeMismatch, numRays, len(dirs), len(depths), len(weights),
		)
	}

	u := make([]float64, n)
	points := make([][]types.Vec3, numRays)
	fine := make([][]float32, numRays)
	for ray := 0; ray < numRays; ray++ {
		if len(depths[ray]) != len(weights[ray]) {
			return nil, nil, fmt.Errorf("%w: ray %d has %d depths and %d weights", ErrShapeMismatch, ray, len(depths[ray]), len(weights[ray]))
		}

		for k := range u {
			xi := 0.5
			if rng != nil {
				xi = rng.Float64()
			}
			u[k] = (float64(k) + xi) / float64(n)
		}

		edges, pdf := binDensity(depths[ray], weights[ray], near, far)
		fine[ray] = invertCDF(edges, pdf, u, near, far)

		points[ray] = make([]types.Vec3, n)
		for k, t := range fine[ray] {
			points[ray][k] = origins[ray].Add(dirs[ray].Mul(t))
		}
	}
	return points, fine, nil
}

// Build bin edges and normalized bin probabilities for one ray.
func binDensity(depths, weights []float32, near, far float32) ([]float64, []float64) {
	m := len(depths)
	pdf := make([]float64, m)
	for i, w := range weights {
		if w > 0 {
			pdf[i] = float64(w)
		}
	}

	total := floats.Sum(pdf)
	if m == 0 || !(total > 0) {
		return []float64{float64(near), float64(far)}, []float64{1}
	}
	floats.Scale(1/total, pdf)

	edges := make([]float64, m+1)
	edges[0] = float64(near)
	for i := 1; i < m; i++ {
		edges[i] = 0.5 * float64(depths[i-1]+depths[i])
	}
	edges[m] = float64(far)

	// Keep edges monotone and inside the bounds even for unsorted or
	// out-of-range coarse depths.
	for i := 1; i <= m; i++ {
		if edges[i] < edges[i-1] {
			edges[i] = edges[i-1]
		}
		if edges[i] > float64(far) {
			edges[i] = float64(far)
		}
	}
	return edges, pdf
}

// Draw one depth per CDF input u via inverse transform sampling.
func invertCDF(edges, pdf, u []float64, near, far float32) []float32 {
	cdf := make([]float64, len(pdf)+1)
	floats.CumSum(cdf[1:], pdf)
	cdf[len(cdf)-1] = 1

	out := make([]float32, len(u))
	for k, uk := range u {
		// First cdf entry strictly greater than uk marks the end of the bin.
		above := sort.SearchFloat64s(cdf, uk)
		for above < len(cdf) && cdf[above] <= uk {
			above++
		}
		if above >= len(cdf) {
			above = len(cdf) - 1
		}
		if above < 1 {
			above = 1
		}
		bin := above - 1

		t := edges[bin]
		if span := cdf[above] - cdf[bin]; span > 0 {
			t += (uk - cdf[bin]) / span * (edges[bin+1] - edges[bin])
		}
		out[k] = clamp32(float32(t), near, far)
	}

	// Monotone CDF and sorted u already give sorted depths; float32 rounding
	// can still introduce ties out of order.
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
