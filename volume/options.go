package volume

import (
	"fmt"

	"github.com/achilleasa/go-volrender/field"
	"github.com/achilleasa/go-volrender/types"
)

// EncodingMode selects which inputs are encoded and passed to the predictor.
type EncodingMode uint8

const (
	PositionOnly EncodingMode = iota
	PositionAndDirection
)

func (m EncodingMode) String() string {
	switch m {
	case PositionOnly:
		return "position"
	case PositionAndDirection:
		return "position+direction"
	}
	return fmt.Sprintf("EncodingMode(%d)", uint8(m))
}

// Encoding describes the encoders used by a renderer. It is validated once
// when the renderer is created.
type Encoding struct {
	Mode      EncodingMode
	Position  field.Encoder
	Direction field.Encoder
}

func (enc Encoding) validate() error {
	if enc.Position == nil {
		return fmt.Errorf("%w: a position encoder is required", ErrConfiguration)
	}
	switch enc.Mode {
	case PositionOnly:
	case PositionAndDirection:
		if enc.Direction == nil {
			return fmt.Errorf("%w: encoding mode %s requires a direction encoder", ErrConfiguration, enc.Mode)
		}
	default:
		return fmt.Errorf("%w: unsupported encoding mode %s", ErrConfiguration, enc.Mode)
	}
	return nil
}

// Options holds the construction-time renderer configuration.
type Options struct {
	// Depth bounds for sampling.
	Near float32
	Far  float32

	// The occupancy grid resolution is MaxDim / 4.
	MaxDim int

	// Scene normalization used to map world points to voxels.
	Center types.Vec3
	Scale  types.Vec3

	// Density transform applied while compositing.
	Density DensityMode

	// Required by SignedDistanceDensity.
	Variance field.VarianceModel

	// Scale opacity by the length of each ray direction so unnormalized
	// directions composite like unit ones.
	ScaleByDirNorm bool
}

// Default renderer options: unit depth range over a unit scene volume.
func DefaultOptions() Options {
	return Options{
		Near:   0,
		Far:    1,
		MaxDim: 1024,
		Center: types.Vec3{},
		Scale:  types.Splat(1),
	}
}

// Occupancy grid resolution derived from MaxDim.
func (opts Options) GridSize() int {
	return opts.MaxDim / 4
}

func (opts Options) validate() error {
	if !(opts.Far > opts.Near) {
		return fmt.Errorf("%w: far bound %f must exceed near bound %f", ErrConfiguration, opts.Far, opts.Near)
	}
	if opts.GridSize() <= 0 {
		return fmt.Errorf("%w: max dimension %d yields an empty occupancy grid", ErrConfiguration, opts.MaxDim)
	}
	return nil
}
