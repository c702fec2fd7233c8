package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/achilleasa/go-volrender/camera"
	"github.com/achilleasa/go-volrender/field"
	"github.com/achilleasa/go-volrender/log"
	"github.com/achilleasa/go-volrender/tracer"
	"github.com/achilleasa/go-volrender/volume"
)

// The default renderer splits each frame into row blocks and renders them
// on a pool of cpu tracers that share one volume renderer.
type defaultRenderer struct {
	logger log.Logger

	// Renderer options
	options Options

	// The active camera.
	camera *camera.Camera

	// The shared volume renderer.
	volume *volume.Renderer

	// Frame output shared by all tracers.
	frameBuffer *tracer.FrameBuffer

	// The block scheduler used to distribute rows to tracers.
	scheduler tracer.BlockScheduler

	// The list of attached tracers.
	tracers []tracer.Tracer

	// Block assignments for the last frame.
	blockAssignments []uint32

	// Channels for receiving tracer block completion and errors.
	doneChan chan uint32
	errChan  chan error

	// Render statistics
	stats FrameStats
}

// Create a new default renderer using the specified block scheduler.
func NewDefault(cam *camera.Camera, pred field.Predictor, vr *volume.Renderer, scheduler tracer.BlockScheduler, opts Options) (Renderer, error) {
	switch {
	case cam == nil:
		return nil, ErrCameraNotDefined
	case pred == nil:
		return nil, ErrFieldNotDefined
	case vr == nil:
		return nil, ErrVolumeNotDefined
	}
	if opts.FrameW == 0 {
		opts.FrameW = cam.FrameW
	}
	if opts.FrameH == 0 {
		opts.FrameH = cam.FrameH
	}
	if opts.NumTracers == 0 {
		opts.NumTracers = runtime.NumCPU()
	}
	if opts.NumTracers < 0 {
		return nil, ErrNoTracers
	}

	r := &defaultRenderer{
		logger:      log.New("renderer"),
		options:     opts,
		volume:      vr,
		scheduler:   scheduler,
		frameBuffer: tracer.NewFrameBuffer(opts.FrameW, opts.FrameH),
		doneChan:    make(chan uint32, opts.NumTracers),
		errChan:     make(chan error, opts.NumTracers),
	}

	for idx := 0; idx < opts.NumTracers; idx++ {
		r.tracers = append(r.tracers, tracer.NewCPUTracer(fmt.Sprintf("cpu-%d", idx), vr, pred))
	}

	if err := r.SetCamera(cam); err != nil {
		r.Close()
		return nil, err
	}

	r.logger.Infof("attached %d tracers", len(r.tracers))
	return r, nil
}

// Shutdown renderer and any attached tracer.
func (r *defaultRenderer) Close() {
	for _, tr := range r.tracers {
		tr.Close()
	}
	r.tracers = nil
}

// Get last frame stats.
func (r *defaultRenderer) Stats() FrameStats {
	return r.stats
}

// Replace the camera used by subsequent frames.
func (r *defaultRenderer) SetCamera(cam *camera.Camera) error {
	if cam == nil {
		return ErrCameraNotDefined
	}
	if cam.FrameW != r.options.FrameW || cam.FrameH != r.options.FrameH {
		return fmt.Errorf("%w: camera is %dx%d; frame is %dx%d", ErrFrameMismatch, cam.FrameW, cam.FrameH, r.options.FrameW, r.options.FrameH)
	}

	r.camera = cam
	for _, tr := range r.tracers {
		if err := tr.Setup(cam, r.frameBuffer); err != nil {
			return err
		}
	}
	return nil
}

// Render frame.
func (r *defaultRenderer) Render(frameIndex uint32) (*Frame, error) {
	if err := r.renderFrame(frameIndex, false); err != nil {
		return nil, err
	}
	return newFrame(r.frameBuffer), nil
}

// Run a mask refresh pass and update the occupancy grid with the densities
// gathered by every tracer.
func (r *defaultRenderer) RefreshOccupancy(frameIndex uint32) error {
	if err := r.renderFrame(frameIndex, true); err != nil {
		r.frameBuffer.TakeEvidence()
		return err
	}

	points, densities := r.frameBuffer.TakeEvidence()
	if err := r.volume.UpdateOccupancy(points, densities); err != nil {
		return err
	}

	r.stats.Occupancy = r.volume.Grid().Occupancy()
	r.logger.Infof("occupancy grid refreshed from %d samples; %.2f%% of voxels occupied", len(points), 100*r.stats.Occupancy)
	return nil
}

// Render a frame by splitting it into blocks and distributing them to the
// attached tracers.
func (r *defaultRenderer) renderFrame(frameIndex uint32, refresh bool) error {
	if len(r.tracers) == 0 {
		return ErrNoTracers
	}

	start := time.Now()
	r.blockAssignments = r.scheduler.Schedule(r.tracers, r.options.FrameH)

	var blockY uint32
	pending := 0
	for idx, tr := range r.tracers {
		blockH := r.blockAssignments[idx]
		if blockH == 0 {
			continue
		}
		tr.Enqueue(tracer.BlockRequest{
			BlockY:       blockY,
			BlockH:       blockH,
			NumSamples:   r.options.NumSamples,
			Hierarchical: r.options.Hierarchical,
			RefreshMask:  refresh,
			Jitter:       r.options.Jitter,
			Seed:         int64(frameIndex)*int64(len(r.tracers)) + int64(idx),
			DoneChan:     r.doneChan,
			ErrChan:      r.errChan,
		})
		blockY += blockH
		pending++
	}

	// Wait for all tracers to finish so the frame buffer is no longer
	// being written when we return.
	var errs []error
	for ; pending > 0; pending-- {
		select {
		case <-r.doneChan:
		case err := <-r.errChan:
			errs = append(errs, err)
		}
	}
	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	r.updateStats(time.Since(start), refresh)
	return nil
}

func (r *defaultRenderer) updateStats(renderTime time.Duration, refresh bool) {
	r.stats = FrameStats{
		Tracers:    make([]TracerStat, len(r.tracers)),
		RenderTime: renderTime,
		Refresh:    refresh,
		Occupancy:  r.volume.Grid().Occupancy(),
	}
	for idx, tr := range r.tracers {
		trStats := tr.Stats()
		blockH := r.blockAssignments[idx]
		r.stats.Tracers[idx] = TracerStat{
			Id:           tr.Id(),
			BlockH:       blockH,
			FramePercent: 100.0 * float32(blockH) / float32(r.options.FrameH),
		}
		if blockH != 0 {
			r.stats.Tracers[idx].RenderTime = trStats.BlockTime
			r.stats.Tracers[idx].Samples = trStats.Samples
			r.stats.Tracers[idx].Evaluated = trStats.Evaluated
		}
	}
}
