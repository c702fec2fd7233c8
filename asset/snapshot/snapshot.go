package snapshot

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/achilleasa/go-volrender/asset"
	"github.com/achilleasa/go-volrender/log"
	"github.com/achilleasa/go-volrender/types"
	"github.com/achilleasa/go-volrender/volume"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

const (
	dataFile = "grid.bin"
	version  = 1

	// Largest grid side accepted when decoding. Renderers use MaxDim/4 voxels
	// per side so this covers any practical volume.
	maxGridSize = 512
)

var (
	ErrMissingGrid = errors.New("snapshot: archive does not contain a grid")
	ErrVersion     = errors.New("snapshot: unsupported snapshot version")
	ErrGridSize    = errors.New("snapshot: grid size out of range")
)

// Serialized grid layout. Voxels are packed 8 per byte in flat index order.
type gridData struct {
	Version int
	Size    int
	Center  [3]float32
	Scale   [3]float32
	Voxels  []byte
}

// WriteGrid stores a snapshot of the grid occupancy in a zstd-compressed zip
// archive.
func WriteGrid(g *volume.OccupancyGrid, file string) error {
	if g.Size() > maxGridSize {
		return fmt.Errorf("%w: %d (max %d)", ErrGridSize, g.Size(), maxGridSize)
	}

	logger := log.New("grid writer")
	logger.Noticef(`writing occupancy grid snapshot to "%s"`, file)
	start := time.Now()

	data := gridData{
		Version: version,
		Size:    g.Size(),
		Center:  g.Center(),
		Scale:   g.Scale(),
		Voxels:  pack(g.Voxels()),
	}

	zipFile, err := os.Create(file)
	if err != nil {
		return err
	}
	defer zipFile.Close()

	zw := zip.NewWriter(zipFile)
	zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())

	cw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     dataFile,
		Method:   zstd.ZipMethodWinZip,
		Modified: time.Now(),
	})
	if err != nil {
		return err
	}
	if err = gob.NewEncoder(cw).Encode(&data); err != nil {
		return fmt.Errorf("snapshot: could not encode grid: %w", err)
	}
	if err = zw.Close(); err != nil {
		return err
	}

	logger.Noticef("wrote %d^3 grid in %d ms", data.Size, time.Since(start).Milliseconds())
	return nil
}

// ReadGrid loads a grid snapshot from a local path or an http(s) URL.
func ReadGrid(pathToFile string) (*volume.OccupancyGrid, error) {
	res, err := asset.NewResource(pathToFile, nil)
	if err != nil {
		return nil, err
	}
	return DecodeGrid(res)
}

// DecodeGrid reads a grid snapshot from a resource. The resource is closed
// once its contents have been read.
func DecodeGrid(res *asset.Resource) (*volume.OccupancyGrid, error) {
	logger := log.New("grid reader")
	logger.Noticef(`loading occupancy grid snapshot from "%s"`, res.Path())
	start := time.Now()

	// zip needs random access
	r, err := res.Bytes()
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(r, r.Size())
	if err != nil {
		return nil, fmt.Errorf("snapshot: '%s' is not a valid archive: %w", res.Path(), err)
	}
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	var data *gridData
	for _, f := range zr.File {
		if f.Name != dataFile {
			logger.Warningf("unknown file %s in grid snapshot; skipping", f.Name)
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		data = &gridData{}
		err = gob.NewDecoder(rc).Decode(data)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("snapshot: failed to load %s: %w", f.Name, err)
		}
	}

	if data == nil {
		return nil, ErrMissingGrid
	}
	if data.Version != version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, data.Version)
	}

	// Validate the payload before allocating the grid.
	if data.Size <= 0 || data.Size > maxGridSize {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrGridSize, data.Size, maxGridSize)
	}
	cells := data.Size * data.Size * data.Size
	if len(data.Voxels) != (cells+7)/8 {
		return nil, fmt.Errorf("%w: snapshot holds %d voxel bytes for a %d^3 grid", volume.ErrShapeMismatch, len(data.Voxels), data.Size)
	}

	g, err := volume.NewOccupancyGrid(data.Size, types.Vec3(data.Center), types.Vec3(data.Scale))
	if err != nil {
		return nil, err
	}
	if err = g.SetVoxels(unpack(data.Voxels, cells)); err != nil {
		return nil, err
	}

	logger.Noticef("loaded %d^3 grid (%.1f%% occupied) in %d ms", data.Size, 100*g.Occupancy(), time.Since(start).Milliseconds())
	return g, nil
}

func pack(voxels []bool) []byte {
	out := make([]byte, (len(voxels)+7)/8)
	for i, v := range voxels {
		if v {
			out[i>>3] |= 1 << uint(i&7)
		}
	}
	return out
}

func unpack(data []byte, cells int) []bool {
	out := make([]bool, cells)
	for i := range out {
		out[i] = data[i>>3]&(1<<uint(i&7)) != 0
	}
	return out
}
