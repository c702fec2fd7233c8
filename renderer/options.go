package renderer

type Options struct {
	// Frame dims.
	FrameW uint32
	FrameH uint32

	// Samples per ray for the coarse and the fine pass.
	NumSamples int

	// Run the importance-resampled fine pass.
	Hierarchical bool

	// Jitter sample depths. Every frame and tracer block gets its own seed.
	Jitter bool

	// Number of cpu tracers; defaults to the number of available cores.
	NumTracers int
}
