package volume

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/achilleasa/go-volrender/field"
	"github.com/achilleasa/go-volrender/log"
	"github.com/achilleasa/go-volrender/types"
)

// A batch of rays to render.
type Request struct {
	Origins    []types.Vec3
	Directions []types.Vec3

	// Samples per ray for the coarse and the fine pass. May be left at zero
	// when Depths is supplied.
	NumSamples int

	// Coarse depths shared by every ray. Drawn with Stratified when nil.
	Depths []float32

	// Evaluate every coarse sample, ignoring the occupancy grid, and return
	// the sample points and densities so the caller can update the grid.
	RefreshMask bool

	// Run the importance-resampled fine pass.
	Hierarchical bool

	// Source for depth jitter. Sampling is deterministic when nil.
	Rand *rand.Rand
}

// The outcome of a render call. All per-ray slices are indexed like the
// request rays.
type Result struct {
	Coarse []types.Vec3
	Fine   []types.Vec3

	// Accumulated opacity of the authoritative pass: fine when hierarchical,
	// coarse otherwise.
	Normalization []float32

	// Coarse sample points and predicted densities; only populated for mask
	// refresh passes.
	Points    []types.Vec3
	Densities []float32

	// Total coarse and fine samples and how many of them were sent to the
	// predictor.
	Samples   int
	Evaluated int
}

// Renderer composites radiance field predictions along rays. It owns a
// persistent occupancy grid used to skip empty space.
//
// Render may be called from multiple goroutines. The grid is only modified by
// UpdateOccupancy, RefreshOccupancy and by mask refresh passes that consume a
// pending reset; those writes are serialized by the grid.
type Renderer struct {
	logger log.Logger

	opts       Options
	encoding   Encoding
	grid       *OccupancyGrid
	compositor *Compositor

	resetMu   sync.Mutex
	resetMask bool
}

// Create a new renderer.
func NewRenderer(encoding Encoding, opts Options) (*Renderer, error) {
	if err := encoding.validate(); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	compositor, err := NewCompositor(opts.Density, opts.Variance)
	if err != nil {
		return nil, err
	}

	grid, err := NewOccupancyGrid(opts.GridSize(), opts.Center, opts.Scale)
	if err != nil {
		return nil, err
	}

	return &Renderer{
		logger:     log.New("volume renderer"),
		opts:       opts,
		encoding:   encoding,
		grid:       grid,
		compositor: compositor,
	}, nil
}

// Renderer options.
func (r *Renderer) Options() Options {
	return r.opts
}

// The occupancy grid owned by this renderer.
func (r *Renderer) Grid() *OccupancyGrid {
	return r.grid
}

// Request the occupancy grid to be cleared by the next mask refresh pass.
func (r *Renderer) RequestReset() {
	r.resetMu.Lock()
	r.resetMask = true
	r.resetMu.Unlock()
}

// Returns true if a grid reset is pending.
func (r *Renderer) ResetPending() bool {
	r.resetMu.Lock()
	defer r.resetMu.Unlock()
	return r.resetMask
}

func (r *Renderer) consumeReset() bool {
	r.resetMu.Lock()
	defer r.resetMu.Unlock()
	pending := r.resetMask
	r.resetMask = false
	return pending
}

// Feed the densities of a mask refresh pass into the occupancy grid. In
// signed-distance mode the distances are converted to surface densities
// first.
func (r *Renderer) UpdateOccupancy(points []types.Vec3, densities []float32) error {
	if r.compositor.Mode() == SignedDistanceDensity {
		converted := make([]float32, len(densities))
		for i, d := range densities {
			converted[i] = r.compositor.Evidence(d)
		}
		densities = converted
	}
	return r.grid.Update(points, densities)
}

// Run a mask refresh pass and update the occupancy grid with its densities.
func (r *Renderer) RefreshOccupancy(pred field.Predictor, req Request) (*Result, error) {
	req.RefreshMask = true
	res, err := r.Render(pred, req)
	if err != nil {
		return nil, err
	}
	if err = r.UpdateOccupancy(res.Points, res.Densities); err != nil {
		return nil, err
	}
	return res, nil
}

// Render a batch of rays.
func (r *Renderer) Render(pred field.Predictor, req Request) (*Result, error) {
	numRays := len(req.Origins)
	if len(req.Directions) != numRays {
		return nil, fmt.Errorf("%w: got %d ray origins and %d directions", ErrShapeMismatch, numRays, len(req.Directions))
	}

	numSamples := req.NumSamples
	if req.Depths != nil {
		if numSamples == 0 {
			numSamples = len(req.Depths)
		}
		if len(req.Depths) != numSamples {
			return nil, fmt.Errorf("%w: got %d depths for %d samples per ray", ErrShapeMismatch, len(req.Depths), numSamples)
		}
	}

	depths := req.Depths
	if depths == nil {
		var err error
		if depths, err = Stratified(r.opts.Near, r.opts.Far, numSamples, req.Rand); err != nil {
			return nil, err
		}
	}

	// Every ray shares the same coarse depth row.
	depthRows := make([][]float32, numRays)
	points := make([]types.Vec3, 0, numRays*numSamples)
	for ray := 0; ray < numRays; ray++ {
		depthRows[ray] = depths
		for _, t := range depths {
			points = append(points, req.Origins[ray].Add(req.Directions[ray].Mul(t)))
		}
	}

	res := &Result{Samples: len(points)}
	var (
		preds []field.Prediction
		mask  []bool
		err   error
	)
	if req.RefreshMask {
		if r.consumeReset() {
			r.logger.Notice("clearing occupancy grid")
			r.grid.Clear()
		}
		if preds, err = r.evaluate(pred, points, req.Directions, numSamples, nil); err != nil {
			return nil, err
		}
		res.Evaluated += len(points)

		res.Points = points
		res.Densities = make([]float32, len(preds))
		for i, p := range preds {
			res.Densities[i] = p.Sigma
		}
	} else {
		if mask, err = r.grid.Query(points); err != nil {
			return nil, err
		}
		if preds, err = r.evaluate(pred, points, req.Directions, numSamples, mask); err != nil {
			return nil, err
		}
		for _, occ := range mask {
			if occ {
				res.Evaluated++
			}
		}
	}

	var weights [][]float32
	if res.Coarse, weights, res.Normalization, err = r.compositeAll(depthRows, preds, mask, req.Directions); err != nil {
		return nil, err
	}

	if !req.Hierarchical {
		res.Fine = res.Coarse
		return res, nil
	}

	finePoints, fineDepths, err := Resample(req.Origins, req.Directions, depthRows, weights, numSamples, r.opts.Near, r.opts.Far, req.Rand)
	if err != nil {
		return nil, err
	}

	flat := make([]types.Vec3, 0, numRays*numSamples)
	for _, row := range finePoints {
		flat = append(flat, row...)
	}
	if preds, err = r.evaluate(pred, flat, req.Directions, numSamples, nil); err != nil {
		return nil, err
	}
	res.Samples += len(flat)
	res.Evaluated += len(flat)

	if res.Fine, _, res.Normalization, err = r.compositeAll(fineDepths, preds, nil, req.Directions); err != nil {
		return nil, err
	}
	return res, nil
}

// Run the predictor on the samples selected by mask (all samples when mask is
// nil). Samples are laid out ray-major with samplesPerRay entries per ray.
// Skipped samples get zero color and density.
func (r *Renderer) evaluate(pred field.Predictor, points, rayDirs []types.Vec3, samplesPerRay int, mask []bool) ([]field.Prediction, error) {
	selected := points
	var dirs []types.Vec3
	if r.encoding.Mode == PositionAndDirection {
		dirs = make([]types.Vec3, 0, len(points))
	}

	if mask != nil {
		selected = make([]types.Vec3, 0, len(points))
		for i, occ := range mask {
			if occ {
				selected = append(selected, points[i])
			}
		}
	}
	if dirs != nil {
		for i := range points {
			if mask == nil || mask[i] {
				dirs = append(dirs, rayDirs[i/samplesPerRay])
			}
		}
	}

	var out []field.Prediction
	if len(selected) != 0 {
		encPos := r.encoding.Position.Encode(selected)
		var encDirs [][]float32
		if dirs != nil {
			encDirs = r.encoding.Direction.Encode(dirs)
		}

		var err error
		if out, err = pred.Predict(encPos, encDirs); err != nil {
			return nil, err
		}
		if len(out) != len(selected) {
			return nil, fmt.Errorf("%w: predictor returned %d outputs for %d samples", ErrShapeMismatch, len(out), len(selected))
		}
	}

	if mask == nil {
		return out, nil
	}

	// Scatter predictions back to their sample slots.
	full := make([]field.Prediction, len(points))
	next := 0
	for i, occ := range mask {
		if occ {
			full[i] = out[next]
			next++
		}
	}
	return full, nil
}

// Composite every ray. mask flags the evaluated samples in the same ray-major
// layout as preds; nil means every sample was evaluated.
func (r *Renderer) compositeAll(depthRows [][]float32, preds []field.Prediction, mask []bool, rayDirs []types.Vec3) ([]types.Vec3, [][]float32, []float32, error) {
	numRays := len(depthRows)
	colors := make([]types.Vec3, numRays)
	weights := make([][]float32, numRays)
	norms := make([]float32, numRays)

	offset := 0
	for ray, depths := range depthRows {
		n := len(depths)
		if offset+n > len(preds) {
			return nil, nil, nil, fmt.Errorf("%w: missing predictions for ray %d", ErrShapeMismatch, ray)
		}

		rgb := make([]types.Vec3, n)
		sigma := make([]float32, n)
		for i, p := range preds[offset : offset+n] {
			rgb[i] = p.RGB
			sigma[i] = p.Sigma
		}
		var evaluated []bool
		if mask != nil {
			evaluated = mask[offset : offset+n]
		}
		offset += n

		dirNorm := float32(1)
		if r.opts.ScaleByDirNorm {
			dirNorm = rayDirs[ray].Len()
		}

		var err error
		if colors[ray], weights[ray], norms[ray], err = r.compositor.CompositeMasked(depths, rgb, sigma, evaluated, dirNorm); err != nil {
			return nil, nil, nil, err
		}
	}
	return colors, weights, norms, nil
}
