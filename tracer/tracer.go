package tracer

import (
	"errors"
	"time"

	"github.com/achilleasa/go-volrender/types"
)

var (
	ErrTracerBusy      = errors.New("tracer: a block request is already queued")
	ErrTracerClosed    = errors.New("tracer: tracer has been closed")
	ErrTracerNotSetup  = errors.New("tracer: Setup must be called before enqueueing blocks")
	ErrFrameMismatch   = errors.New("tracer: frame buffer does not match the ray generator")
	ErrBlockOutOfFrame = errors.New("tracer: block exceeds the frame height")
)

// A unit of work that is processed by a tracer.
type BlockRequest struct {
	// Block start row and height.
	BlockY uint32
	BlockH uint32

	// Samples per ray for the coarse and the fine pass.
	NumSamples int

	// Run the importance-resampled fine pass.
	Hierarchical bool

	// Evaluate every sample and record the occupancy evidence for the block
	// in the frame buffer instead of skipping empty space.
	RefreshMask bool

	// Jitter sample depths using a generator seeded with Seed.
	Jitter bool
	Seed   int64

	// A channel to signal on block completion with the number of completed rows.
	DoneChan chan<- uint32

	// A channel to signal if an error occurs.
	ErrChan chan<- error
}

// Tracer statistics for the last processed block.
type Stats struct {
	// The rendered block height
	BlockH uint32

	// The time for rendering this block
	BlockTime time.Duration

	// Rays traced, samples placed along them and samples sent to the field.
	Rays      int
	Samples   int
	Evaluated int
}

// RayGenerator produces the world-space rays for a range of frame rows.
type RayGenerator interface {
	Rays(rowStart, rowCount uint32) ([]types.Vec3, []types.Vec3, error)
}

type Tracer interface {
	// Get tracer id.
	Id() string

	// Shutdown and cleanup tracer.
	Close()

	// Get the tracers computation speed estimate compared to a
	// baseline (single cpu core) implementation.
	SpeedEstimate() float32

	// Bind the tracer to the ray generator and frame buffer used by
	// subsequent block requests.
	Setup(rays RayGenerator, fb *FrameBuffer) error

	// Enqueue block request.
	Enqueue(BlockRequest)

	// Retrieve last block statistics.
	Stats() *Stats
}
