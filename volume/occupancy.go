package volume

import (
	"fmt"
	"math"
	"sync"

	"github.com/achilleasa/go-volrender/log"
	"github.com/achilleasa/go-volrender/types"
	"github.com/chewxy/math32"
)

// OccupancyGrid is a cubic voxel grid marking the regions of the normalized
// scene volume that may contain visible content. World points map to voxels
// via floor(((p - center) / scale) * size), clamped to [0, size) per axis.
//
// Queries may run concurrently with each other. Update, Clear and SetVoxels
// acquire an exclusive lock so evidence from concurrent writers is never lost.
type OccupancyGrid struct {
	logger log.Logger

	sync.RWMutex

	size   int
	center types.Vec3
	scale  types.Vec3

	occupied []bool

	// Evidence tallies; only non-zero while an Update is in progress.
	accum []int32
}

// Create a new, fully occupied, grid.
func NewOccupancyGrid(size int, center, scale types.Vec3) (*OccupancyGrid, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: grid size must be positive; got %d", ErrConfiguration, size)
	}
	if scale[0] <= 0 || scale[1] <= 0 || scale[2] <= 0 {
		return nil, fmt.Errorf("%w: grid scale components must be positive; got %v", ErrConfiguration, scale)
	}
	if center.IsNaNOrInf() || scale.IsNaNOrInf() {
		return nil, fmt.Errorf("%w: grid center and scale must be finite", ErrConfiguration)
	}

	cells := size * size * size
	g := &OccupancyGrid{
		logger:   log.New("occupancy grid"),
		size:     size,
		center:   center,
		scale:    scale,
		occupied: make([]bool, cells),
		accum:    make([]int32, cells),
	}
	for i := range g.occupied {
		g.occupied[i] = true
	}
	return g, nil
}

// Grid side length in voxels.
func (g *OccupancyGrid) Size() int {
	return g.size
}

// Normalization center.
func (g *OccupancyGrid) Center() types.Vec3 {
	return g.center
}

// Normalization scale.
func (g *OccupancyGrid) Scale() types.Vec3 {
	return g.scale
}

// Map a world point to the flat index of the voxel containing it.
func (g *OccupancyGrid) Index(p types.Vec3) (int, error) {
	if p.IsNaNOrInf() {
		return 0, fmt.Errorf("%w: cannot map point %v to a voxel", ErrIndexRange, p)
	}

	n := p.Sub(g.center).DivVec(g.scale).Mul(float32(g.size))
	var idx [3]int
	for axis := 0; axis < 3; axis++ {
		idx[axis] = g.clampAxis(math32.Floor(n[axis]))
	}
	return (idx[0]*g.size+idx[1])*g.size + idx[2], nil
}

func (g *OccupancyGrid) clampAxis(v float32) int {
	// Compare as floats first; converting huge values to int is undefined.
	if v <= 0 {
		return 0
	}
	if v >= float32(g.size-1) {
		return g.size - 1
	}
	return int(v)
}

// Report for each point whether its voxel is occupied.
func (g *OccupancyGrid) Query(points []types.Vec3) ([]bool, error) {
	g.RLock()
	defer g.RUnlock()

	out := make([]bool, len(points))
	for pIndex, p := range points {
		cell, err := g.Index(p)
		if err != nil {
			return nil, err
		}
		out[pIndex] = g.occupied[cell]
	}
	return out, nil
}

// Accumulate density evidence for a set of points and mark every voxel that
// received positive evidence as occupied. Occupancy is never removed by this
// call. If no voxel receives evidence the whole grid is marked as occupied.
func (g *OccupancyGrid) Update(points []types.Vec3, densities []float32) error {
	if len(points) != len(densities) {
		return fmt.Errorf("%w: got %d densities for %d points", ErrShapeMismatch, len(densities), len(points))
	}

	// Resolve indices before touching any state so a bad point leaves the
	// grid untouched.
	cells := make([]int, len(points))
	for pIndex, p := range points {
		cell, err := g.Index(p)
		if err != nil {
			return err
		}
		cells[pIndex] = cell
	}

	g.Lock()
	defer g.Unlock()

	for pIndex, cell := range cells {
		g.accum[cell] = saturatingAdd(g.accum[cell], evidence(densities[pIndex]))
	}

	marked := 0
	for cell, count := range g.accum {
		if count > 0 {
			g.occupied[cell] = true
			g.accum[cell] = 0
			marked++
		}
	}

	if marked == 0 {
		g.logger.Warning("update produced no evidence; marking entire grid as occupied")
		for i := range g.occupied {
			g.occupied[i] = true
		}
	}
	return nil
}

// Mark every voxel as empty.
func (g *OccupancyGrid) Clear() {
	g.Lock()
	defer g.Unlock()

	for i := range g.occupied {
		g.occupied[i] = false
	}
}

// Number of occupied voxels.
func (g *OccupancyGrid) OccupiedCount() int {
	g.RLock()
	defer g.RUnlock()

	count := 0
	for _, occ := range g.occupied {
		if occ {
			count++
		}
	}
	return count
}

// Fraction of occupied voxels.
func (g *OccupancyGrid) Occupancy() float32 {
	return float32(g.OccupiedCount()) / float32(len(g.occupied))
}

// Get a copy of the voxel occupancy values in x-major order.
func (g *OccupancyGrid) Voxels() []bool {
	g.RLock()
	defer g.RUnlock()

	out := make([]bool, len(g.occupied))
	copy(out, g.occupied)
	return out
}

// Overwrite the voxel occupancy values.
func (g *OccupancyGrid) SetVoxels(voxels []bool) error {
	if len(voxels) != len(g.occupied) {
		return fmt.Errorf("%w: expected %d voxels; got %d", ErrShapeMismatch, len(g.occupied), len(voxels))
	}

	g.Lock()
	defer g.Unlock()
	copy(g.occupied, voxels)
	return nil
}

// Convert a density sample into an integer evidence count: ceil(density) with
// non-positive and NaN densities contributing nothing.
func evidence(density float32) int32 {
	if !(density > 0) {
		return 0
	}
	c := math32.Ceil(density)
	if c >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(c)
}

func saturatingAdd(a, b int32) int32 {
	if a > math.MaxInt32-b {
		return math.MaxInt32
	}
	return a + b
}
