package field

import (
	"github.com/achilleasa/go-volrender/types"
	"github.com/chewxy/math32"
)

// The Encoder interface is implemented by deterministic, stateless feature
// expansion functions applied to sample positions and view directions before
// they are passed to a Predictor.
type Encoder interface {
	// Encode a batch of points. The returned slice has one feature row per point.
	Encode(points []types.Vec3) [][]float32

	// Number of features produced per point.
	Dims() int
}

// FrequencyEncoder expands each coordinate into sin/cos pairs over a bank of
// frequencies. When IncludeInput is set the raw coordinates occupy the first
// three features of every row.
type FrequencyEncoder struct {
	NumFreqs     int
	IncludeInput bool

	// Use frequencies 2^0 .. 2^(n-1) when set; otherwise frequencies are
	// spaced linearly between 1 and 2^(n-1).
	LogSampling bool

	freqs []float32
}

// Create a new frequency encoder.
func NewFrequencyEncoder(numFreqs int, includeInput, logSampling bool) *FrequencyEncoder {
	enc := &FrequencyEncoder{
		NumFreqs:     numFreqs,
		IncludeInput: includeInput,
		LogSampling:  logSampling,
		freqs:        make([]float32, numFreqs),
	}

	maxFreq := math32.Pow(2, float32(numFreqs-1))
	for i := 0; i < numFreqs; i++ {
		switch {
		case logSampling:
			enc.freqs[i] = math32.Pow(2, float32(i))
		case numFreqs == 1:
			enc.freqs[i] = 1
		default:
			enc.freqs[i] = 1 + (maxFreq-1)*float32(i)/float32(numFreqs-1)
		}
	}
	return enc
}

// Number of features produced per point.
func (enc *FrequencyEncoder) Dims() int {
	dims := 3 * 2 * enc.NumFreqs
	if enc.IncludeInput {
		dims += 3
	}
	return dims
}

// Encode a batch of points.
func (enc *FrequencyEncoder) Encode(points []types.Vec3) [][]float32 {
	dims := enc.Dims()
	backing := make([]float32, dims*len(points))
	out := make([][]float32, len(points))
	for pIndex, p := range points {
		row := backing[pIndex*dims : (pIndex+1)*dims : (pIndex+1)*dims]
		offset := 0
		if enc.IncludeInput {
			copy(row, p[:])
			offset = 3
		}
		for _, freq := range enc.freqs {
			for axis := 0; axis < 3; axis++ {
				row[offset+axis] = math32.Sin(p[axis] * freq)
				row[offset+3+axis] = math32.Cos(p[axis] * freq)
			}
			offset += 6
		}
		out[pIndex] = row
	}
	return out
}
