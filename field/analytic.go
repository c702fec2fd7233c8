package field

import (
	"fmt"

	"github.com/achilleasa/go-volrender/types"
	"github.com/chewxy/math32"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Step used for estimating surface normals with central differences.
const (
	normalEps     = 1e-3
	laplaceCutoff = 16
)

// Options for the analytic radiance field.
type AnalyticOptions struct {
	// Surface color.
	Albedo types.Vec3

	// Density deep inside the surface.
	Density float32

	// Scale of the Laplace CDF that maps signed distances to densities. Smaller
	// values produce harder surfaces.
	Beta float32

	// Emit raw signed distances in the Sigma channel instead of densities.
	OutputSDF bool

	// Accept encoded view directions and use them for diffuse shading.
	ViewDirs bool
}

// AnalyticField is a Predictor backed by a signed distance function. It
// expects encoders that place the raw input coordinates in the first three
// features of every row.
type AnalyticField struct {
	sdf  sdf.SDF3
	opts AnalyticOptions
}

// Create an analytic field for the given signed distance function.
func NewAnalyticField(s sdf.SDF3, opts AnalyticOptions) *AnalyticField {
	if opts.Beta <= 0 {
		opts.Beta = 0.01
	}
	return &AnalyticField{sdf: s, opts: opts}
}

// Build one of the named demo shapes.
func NewShape(name string) (sdf.SDF3, error) {
	switch name {
	case "sphere":
		return sdf.Sphere3D(0.5)
	case "box":
		return sdf.Box3D(v3.Vec{X: 0.8, Y: 0.8, Z: 0.8}, 0.05)
	case "spheres":
		s1, err := sdf.Sphere3D(0.35)
		if err != nil {
			return nil, err
		}
		s2, err := sdf.Sphere3D(0.25)
		if err != nil {
			return nil, err
		}
		left := sdf.Transform3D(s1, sdf.Translate3d(v3.Vec{X: -0.3}))
		right := sdf.Transform3D(s2, sdf.Translate3d(v3.Vec{X: 0.35, Y: 0.2}))
		return sdf.Union3D(left, right), nil
	}
	return nil, fmt.Errorf("field: unknown shape %q", name)
}

// Evaluate the field.
func (f *AnalyticField) Predict(positions, dirs [][]float32) ([]Prediction, error) {
	if dirs != nil && !f.opts.ViewDirs {
		return nil, ErrDirectionUnsupported
	}
	if dirs != nil && len(dirs) != len(positions) {
		return nil, fmt.Errorf("field: got %d direction rows for %d positions", len(dirs), len(positions))
	}

	out := make([]Prediction, len(positions))
	for index, row := range positions {
		if len(row) < 3 {
			return nil, ErrFeatureLayout
		}
		p := v3.Vec{X: float64(row[0]), Y: float64(row[1]), Z: float64(row[2])}
		dist := float32(f.sdf.Evaluate(p))

		if f.opts.OutputSDF {
			out[index].Sigma = dist
		} else {
			out[index].Sigma = f.opts.Density * laplaceCDF(-dist, f.opts.Beta)
		}

		out[index].RGB = f.opts.Albedo
		if dirs != nil {
			if len(dirs[index]) < 3 {
				return nil, ErrFeatureLayout
			}
			viewDir := types.XYZ(dirs[index][0], dirs[index][1], dirs[index][2]).Normalize()
			lambert := math32.Max(0, f.normal(p).Dot(viewDir.Mul(-1)))
			out[index].RGB = f.opts.Albedo.Mul(0.3 + 0.7*lambert)
		}
	}
	return out, nil
}

func (f *AnalyticField) normal(p v3.Vec) types.Vec3 {
	eval := func(dx, dy, dz float64) float32 {
		return float32(f.sdf.Evaluate(v3.Vec{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}))
	}
	return types.XYZ(
		eval(normalEps, 0, 0)-eval(-normalEps, 0, 0),
		eval(0, normalEps, 0)-eval(0, -normalEps, 0),
		eval(0, 0, normalEps)-eval(0, 0, -normalEps),
	).Normalize()
}

// CDF of a zero-mean Laplace distribution with scale beta. The tail is cut
// off laplaceCutoff scale lengths outside the surface so empty space has
// exactly zero density.
func laplaceCDF(s, beta float32) float32 {
	if s < -laplaceCutoff*beta {
		return 0
	}
	if s <= 0 {
		return 0.5 * math32.Exp(s/beta)
	}
	return 1 - 0.5*math32.Exp(-s/beta)
}
