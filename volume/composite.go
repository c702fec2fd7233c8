package volume

import (
	"fmt"

	"github.com/achilleasa/go-volrender/field"
	"github.com/achilleasa/go-volrender/types"
	"github.com/chewxy/math32"
)

// Width assigned to the last sample interval so the final sample can fully
// terminate the ray.
const farInterval float32 = 1e10

// Guards the signed-distance alpha ratio against division by zero.
const sdfEpsilon float32 = 1e-5

// DensityMode selects how the compositor turns the predictor's sigma channel
// into per-sample opacity.
type DensityMode uint8

const (
	// Sigma is a volumetric density; alpha = 1 - exp(-sigma * delta * dirNorm).
	StandardDensity DensityMode = iota

	// Sigma is a signed distance; alpha is derived from the drop of a logistic
	// CDF whose sharpness is supplied by a variance model.
	SignedDistanceDensity
)

func (m DensityMode) String() string {
	switch m {
	case StandardDensity:
		return "standard"
	case SignedDistanceDensity:
		return "sdf"
	}
	return fmt.Sprintf("DensityMode(%d)", uint8(m))
}

// Parse a density mode name as returned by DensityMode.String.
func ParseDensityMode(name string) (DensityMode, error) {
	switch name {
	case "standard":
		return StandardDensity, nil
	case "sdf":
		return SignedDistanceDensity, nil
	}
	return StandardDensity, fmt.Errorf("%w: unknown density mode %q", ErrConfiguration, name)
}

// Compositor evaluates the discretized volume rendering equation for a
// single ray.
type Compositor struct {
	mode     DensityMode
	variance field.VarianceModel
}

// Create a compositor for the given density mode. Signed-distance mode
// requires a variance model.
func NewCompositor(mode DensityMode, variance field.VarianceModel) (*Compositor, error) {
	switch mode {
	case StandardDensity:
	case SignedDistanceDensity:
		if variance == nil {
			return nil, fmt.Errorf("%w: signed-distance density requires a variance model", ErrConfiguration)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported density mode %s", ErrConfiguration, mode)
	}
	return &Compositor{mode: mode, variance: variance}, nil
}

// Density mode used by this compositor.
func (c *Compositor) Mode() DensityMode {
	return c.mode
}

// Composite the samples of one ray. It returns the pixel color, the weight
// of each sample and the sum of weights (the accumulated opacity).
func (c *Compositor) Composite(depths []float32, rgb []types.Vec3, sigma []float32, dirNorm float32) (types.Vec3, []float32, float32, error) {
	return c.CompositeMasked(depths, rgb, sigma, nil, dirNorm)
}

// CompositeMasked works like Composite but only the samples flagged in
// evaluated contribute opacity; skipped samples get a zero alpha in both
// density modes. A nil mask treats every sample as evaluated.
func (c *Compositor) CompositeMasked(depths []float32, rgb []types.Vec3, sigma []float32, evaluated []bool, dirNorm float32) (types.Vec3, []float32, float32, error) {
	if len(rgb) != len(depths) || len(sigma) != len(depths) {
		return types.Vec3{}, nil, 0, fmt.Errorf(
			"%w: compositor got %d depths, %d colors and %d densities",
			ErrShapeMismatch, len(depths), len(rgb), len(sigma),
		)
	}
	if evaluated != nil && len(evaluated) != len(depths) {
		return types.Vec3{}, nil, 0, fmt.Errorf("%w: compositor got %d mask entries for %d depths", ErrShapeMismatch, len(evaluated), len(depths))
	}

	weights := make([]float32, len(depths))
	switch c.mode {
	case SignedDistanceDensity:
		sdfAlpha(depths, sigma, evaluated, c.variance.InvStd(), weights)
	default:
		densityAlpha(depths, sigma, evaluated, dirNorm, weights)
	}

	// weights holds alpha values at this point; fold in transmittance.
	var (
		color         types.Vec3
		norm          float32
		transmittance float32 = 1
	)
	for i, alpha := range weights {
		w := transmittance * alpha
		weights[i] = w
		color = color.Add(rgb[i].Mul(w))
		norm += w
		transmittance *= 1 - alpha
	}
	return color, weights, norm, nil
}

// Evidence converts a predicted density channel into occupancy evidence. In
// signed-distance mode the distance maps to the logistic density
// s*sigmoid(s*d)*(1-sigmoid(s*d)), which peaks on the surface and vanishes
// away from it in both directions.
func (c *Compositor) Evidence(sigma float32) float32 {
	if c.mode != SignedDistanceDensity {
		return sigma
	}
	s := c.variance.InvStd()
	cdf := sigmoid(sigma * s)
	return s * cdf * (1 - cdf)
}

func isEvaluated(evaluated []bool, i int) bool {
	return evaluated == nil || evaluated[i]
}

func densityAlpha(depths, sigma []float32, evaluated []bool, dirNorm float32, alpha []float32) {
	for i := range depths {
		s := sigma[i]
		if s < 0 || !isEvaluated(evaluated, i) {
			s = 0
		}
		delta := farInterval
		if i+1 < len(depths) {
			delta = depths[i+1] - depths[i]
		}
		alpha[i] = 1 - math32.Exp(-s*delta*dirNorm)
	}
}

// A zero distance means "on the surface", so skipped samples must never be
// read as a neighbour distance.
func sdfAlpha(depths, dist []float32, evaluated []bool, invStd float32, alpha []float32) {
	n := len(depths)
	for i := 0; i < n; i++ {
		if !isEvaluated(evaluated, i) {
			alpha[i] = 0
			continue
		}

		var next float32
		switch {
		case i+1 < n && isEvaluated(evaluated, i+1):
			next = dist[i+1]
		case i > 0 && isEvaluated(evaluated, i-1):
			// Extrapolate past the last evaluated sample using the previous slope.
			next = dist[i] + (dist[i] - dist[i-1])
		default:
			next = dist[i]
		}

		prevCDF := sigmoid(dist[i] * invStd)
		nextCDF := sigmoid(next * invStd)
		alpha[i] = clamp32((prevCDF-nextCDF)/(prevCDF+sdfEpsilon), 0, 1)
	}
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}
