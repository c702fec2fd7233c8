package field

import "github.com/chewxy/math32"

// The VarianceModel interface supplies the inverse standard deviation used by
// the signed-distance density transform to sharpen the logistic CDF around
// the zero level set.
type VarianceModel interface {
	InvStd() float32
}

// A learned log-variance parameter v mapped to exp(10 v).
type LogVariance float32

func (v LogVariance) InvStd() float32 {
	return math32.Exp(float32(v) * 10)
}

// A fixed inverse standard deviation.
type FixedInvStd float32

func (s FixedInvStd) InvStd() float32 {
	return float32(s)
}
