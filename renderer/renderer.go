package renderer

import "github.com/achilleasa/go-volrender/camera"

type Renderer interface {
	// Render frame. The frame index seeds depth jitter.
	Render(frameIndex uint32) (*Frame, error)

	// Run a mask refresh pass from the current camera and fold its
	// densities into the occupancy grid.
	RefreshOccupancy(frameIndex uint32) error

	// Replace the camera used by subsequent frames.
	SetCamera(cam *camera.Camera) error

	// Shutdown renderer and any attached tracer.
	Close()

	// Get render statistics.
	Stats() FrameStats
}
