package volume

import (
	"errors"

	"github.com/achilleasa/go-volrender/field"
)

var (
	// Missing encoders, invalid grid or scale parameters and similar
	// construction problems. Predictors report direction misuse with the
	// same error.
	ErrConfiguration = field.ErrConfiguration

	// A point could not be mapped to a voxel even after clamping.
	ErrIndexRange = errors.New("volume: voxel index out of range")

	// Ray, sample or weight arrays disagree in length.
	ErrShapeMismatch = errors.New("volume: shape mismatch")
)
