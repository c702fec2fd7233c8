package tracer

import "github.com/achilleasa/go-volrender/types"

// Occupancy evidence gathered while rendering a single frame row.
type Evidence struct {
	Points    []types.Vec3
	Densities []float32
}

// FrameBuffer holds the composited output of a frame in row-major pixel
// order. Tracers write to disjoint row ranges so no locking is needed.
type FrameBuffer struct {
	W, H uint32

	Coarse []types.Vec3
	Fine   []types.Vec3

	// Accumulated opacity of the authoritative pass for each pixel.
	Opacity []float32

	// Per-row evidence recorded by refresh blocks.
	evidence []Evidence
}

// Create a new frame buffer.
func NewFrameBuffer(w, h uint32) *FrameBuffer {
	pixels := int(w * h)
	return &FrameBuffer{
		W:        w,
		H:        h,
		Coarse:   make([]types.Vec3, pixels),
		Fine:     make([]types.Vec3, pixels),
		Opacity:  make([]float32, pixels),
		evidence: make([]Evidence, h),
	}
}

// TakeEvidence concatenates and clears the evidence recorded since the last
// call.
func (fb *FrameBuffer) TakeEvidence() ([]types.Vec3, []float32) {
	total := 0
	for _, ev := range fb.evidence {
		total += len(ev.Points)
	}

	points := make([]types.Vec3, 0, total)
	densities := make([]float32, 0, total)
	for row := range fb.evidence {
		points = append(points, fb.evidence[row].Points...)
		densities = append(densities, fb.evidence[row].Densities...)
		fb.evidence[row] = Evidence{}
	}
	return points, densities
}

func (fb *FrameBuffer) recordEvidence(row uint32, points []types.Vec3, densities []float32) {
	fb.evidence[row] = Evidence{Points: points, Densities: densities}
}
