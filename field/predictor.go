package field

import (
	"errors"
	"fmt"

	"github.com/achilleasa/go-volrender/types"
)

var (
	// Shared by every construction or wiring problem between encoders,
	// predictors and renderers.
	ErrConfiguration = errors.New("configuration error")

	// Returned by predictors that were configured without a view direction
	// input but were handed encoded directions.
	ErrDirectionUnsupported = fmt.Errorf("%w: predictor configured without view directions cannot accept them", ErrConfiguration)

	// Returned when an encoded row is too short to recover the raw coordinates
	// a predictor needs.
	ErrFeatureLayout = errors.New("field: encoded features do not include raw input coordinates")
)

// The output of a predictor for a single sample.
type Prediction struct {
	RGB types.Vec3

	// Volumetric density, or the signed distance to the nearest surface when
	// the renderer composites in signed-distance mode.
	Sigma float32
}

// The Predictor interface is implemented by radiance fields. Implementations
// must return exactly one prediction per positions row. dirs is nil when the
// renderer is configured for positional encoding only.
type Predictor interface {
	Predict(positions, dirs [][]float32) ([]Prediction, error)
}

// PredictorFunc adapts a plain function to the Predictor interface.
type PredictorFunc func(positions, dirs [][]float32) ([]Prediction, error)

func (fn PredictorFunc) Predict(positions, dirs [][]float32) ([]Prediction, error) {
	return fn(positions, dirs)
}
