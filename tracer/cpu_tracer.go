package tracer

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/achilleasa/go-volrender/field"
	"github.com/achilleasa/go-volrender/log"
	"github.com/achilleasa/go-volrender/volume"
)

type cpuTracer struct {
	logger log.Logger

	sync.Mutex
	wg sync.WaitGroup

	// The tracer id.
	id string

	// The shared volume renderer and the field it samples.
	volume    *volume.Renderer
	predictor field.Predictor

	// The ray source and output buffer bound by Setup.
	rays RayGenerator
	fb   *FrameBuffer

	// A channel for receiving block requests from the renderer.
	blockReqChan chan blockJob

	// A channel for signaling the worker to exit.
	closeChan chan struct{}
	closed    bool

	// Statistics for last rendered block.
	stats *Stats
}

// A block request bound to the frame it was enqueued for.
type blockJob struct {
	req  BlockRequest
	rays RayGenerator
	fb   *FrameBuffer
}

// Create a new tracer that renders blocks on a dedicated goroutine. Multiple
// tracers may share the same volume renderer and predictor.
func NewCPUTracer(id string, vr *volume.Renderer, pred field.Predictor) Tracer {
	return &cpuTracer{
		logger:       log.New(fmt.Sprintf("cpu tracer (%s)", id)),
		id:           id,
		volume:       vr,
		predictor:    pred,
		blockReqChan: make(chan blockJob, 1),
		stats:        &Stats{},
	}
}

// Get tracer id.
func (tr *cpuTracer) Id() string {
	return tr.id
}

// Every cpu tracer runs on a single core.
func (tr *cpuTracer) SpeedEstimate() float32 {
	return 1.0
}

// Bind the tracer to a ray generator and frame buffer and start the worker
// if it is not already running.
func (tr *cpuTracer) Setup(rays RayGenerator, fb *FrameBuffer) error {
	tr.Lock()
	defer tr.Unlock()

	if tr.closed {
		return ErrTracerClosed
	}
	tr.rays = rays
	tr.fb = fb
	tr.startWorker()
	return nil
}

// Shutdown the worker. Close may be called more than once.
func (tr *cpuTracer) Close() {
	tr.Lock()
	defer tr.Unlock()

	if tr.closeChan != nil {
		tr.closeChan <- struct{}{}

		// wait for worker to ack close
		<-tr.closeChan
		close(tr.closeChan)
		tr.closeChan = nil
		tr.wg.Wait()
	}
	tr.closed = true
}

// Enqueue block request.
func (tr *cpuTracer) Enqueue(blockReq BlockRequest) {
	tr.Lock()
	defer tr.Unlock()

	switch {
	case tr.closed:
		blockReq.ErrChan <- ErrTracerClosed
		return
	case tr.closeChan == nil:
		blockReq.ErrChan <- ErrTracerNotSetup
		return
	}

	select {
	case tr.blockReqChan <- blockJob{req: blockReq, rays: tr.rays, fb: tr.fb}:
	default:
		tr.logger.Error("dropping block request; worker is still busy")
		blockReq.ErrChan <- ErrTracerBusy
	}
}

// Retrieve last block statistics.
func (tr *cpuTracer) Stats() *Stats {
	return tr.stats
}

// Spawn a go-routine to process block render requests. This method is meant
// to be called while holding tr.Lock().
func (tr *cpuTracer) startWorker() {
	if tr.closeChan != nil {
		return
	}

	tr.closeChan = make(chan struct{})
	closeChan := tr.closeChan
	readyChan := make(chan struct{})
	tr.wg.Add(1)
	go func() {
		defer tr.wg.Done()
		close(readyChan)
		for {
			select {
			case job := <-tr.blockReqChan:
				blockReq := job.req
				startTime := time.Now()
				stats, err := tr.renderBlock(&blockReq, job.rays, job.fb)
				if err != nil {
					blockReq.ErrChan <- fmt.Errorf("tracer %s: %w", tr.id, err)
					continue
				}

				stats.BlockH = blockReq.BlockH
				stats.BlockTime = time.Since(startTime)
				*tr.stats = stats

				blockReq.DoneChan <- blockReq.BlockH
			case <-closeChan:
				// Ack close
				closeChan <- struct{}{}
				return
			}
		}
	}()

	// Wait for go-routine to start
	<-readyChan
}

// Render a block one frame row at a time.
func (tr *cpuTracer) renderBlock(blockReq *BlockRequest, rays RayGenerator, fb *FrameBuffer) (Stats, error) {
	var stats Stats

	if rays == nil || fb == nil {
		return stats, ErrTracerNotSetup
	}
	if blockReq.BlockY+blockReq.BlockH > fb.H {
		return stats, fmt.Errorf("%w: rows [%d, %d) of %d", ErrBlockOutOfFrame, blockReq.BlockY, blockReq.BlockY+blockReq.BlockH, fb.H)
	}

	var rng *rand.Rand
	if blockReq.Jitter {
		rng = rand.New(rand.NewSource(blockReq.Seed))
	}

	for row := blockReq.BlockY; row < blockReq.BlockY+blockReq.BlockH; row++ {
		origins, dirs, err := rays.Rays(row, 1)
		if err != nil {
			return stats, err
		}
		if len(origins) != int(fb.W) {
			return stats, fmt.Errorf("%w: row %d has %d rays; frame width is %d", ErrFrameMismatch, row, len(origins), fb.W)
		}

		req := volume.Request{
			Origins:      origins,
			Directions:   dirs,
			NumSamples:   blockReq.NumSamples,
			RefreshMask:  blockReq.RefreshMask,
			Hierarchical: blockReq.Hierarchical,
			Rand:         rng,
		}
		res, err := tr.volume.Render(tr.predictor, req)
		if err != nil {
			return stats, err
		}

		offset := int(row * fb.W)
		copy(fb.Coarse[offset:], res.Coarse)
		copy(fb.Fine[offset:], res.Fine)
		copy(fb.Opacity[offset:], res.Normalization)

		if blockReq.RefreshMask {
			fb.recordEvidence(row, res.Points, res.Densities)
		}

		stats.Rays += len(origins)
		stats.Samples += res.Samples
		stats.Evaluated += res.Evaluated
	}

	return stats, nil
}
