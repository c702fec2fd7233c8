package renderer

import "time"

type TracerStat struct {
	// The tracer id.
	Id string

	// The block height and the percentage of total frame area it represents.
	BlockH       uint32
	FramePercent float32

	// Render time for assigned block
	RenderTime time.Duration

	// Samples placed along the block rays and the subset sent to the field.
	Samples   int
	Evaluated int
}

type FrameStats struct {
	// Individual tracer stats.
	Tracers []TracerStat

	// Total render time for entire frame.
	RenderTime time.Duration

	// True if the frame was a mask refresh pass.
	Refresh bool

	// Fraction of occupied voxels after the frame completed.
	Occupancy float32
}

// Fraction of samples skipped by the occupancy grid.
func (fs FrameStats) SkipRatio() float32 {
	var samples, evaluated int
	for _, st := range fs.Tracers {
		samples += st.Samples
		evaluated += st.Evaluated
	}
	if samples == 0 {
		return 0
	}
	return 1 - float32(evaluated)/float32(samples)
}
