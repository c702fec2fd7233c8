package snapshot

import (
	"bytes"
	"encoding/gob"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/achilleasa/go-volrender/asset"
	"github.com/achilleasa/go-volrender/types"
	"github.com/achilleasa/go-volrender/volume"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

func TestGridRoundTrip(t *testing.T) {
	g, err := volume.NewOccupancyGrid(5, types.XYZ(-1, -1, -1), types.Splat(2))
	if err != nil {
		t.Fatal(err)
	}

	points := []types.Vec3{
		types.XYZ(0, 0, 0),
		types.XYZ(-0.9, 0.5, 0.1),
		types.XYZ(0.9, 0.9, 0.9),
	}
	g.Clear()
	if err = g.Update(points, []float32{1, 2, 3}); err != nil {
		t.Fatal(err)
	}

	file := filepath.Join(t.TempDir(), "grid.zip")
	if err = WriteGrid(g, file); err != nil {
		t.Fatal(err)
	}

	loaded, err := ReadGrid(file)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 5 || loaded.Center() != g.Center() || loaded.Scale() != g.Scale() {
		t.Fatalf("grid geometry mismatch: size %d center %v scale %v", loaded.Size(), loaded.Center(), loaded.Scale())
	}

	exp, got := g.Voxels(), loaded.Voxels()
	for i := range exp {
		if exp[i] != got[i] {
			t.Fatalf("voxel %d: expected %t; got %t", i, exp[i], got[i])
		}
	}
	if loaded.OccupiedCount() != 3 {
		t.Fatalf("expected 3 occupied voxels; got %d", loaded.OccupiedCount())
	}
}

func TestPackUnpack(t *testing.T) {
	voxels := []bool{true, false, false, true, true, false, true, false, true, true}
	packed := pack(voxels)
	if len(packed) != 2 {
		t.Fatalf("expected 2 packed bytes; got %d", len(packed))
	}
	unpacked := unpack(packed, len(voxels))
	for i := range voxels {
		if voxels[i] != unpacked[i] {
			t.Fatalf("bit %d: expected %t; got %t", i, voxels[i], unpacked[i])
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := DecodeGrid(asset.NewResourceFromStream("junk.zip", bytes.NewReader([]byte("not a zip"))))
	if err == nil {
		t.Fatal("expected an archive error")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("readme.txt")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("hello"))
	if err = zw.Close(); err != nil {
		t.Fatal(err)
	}

	_, err = DecodeGrid(asset.NewResourceFromStream("empty.zip", &buf))
	if !errors.Is(err, ErrMissingGrid) {
		t.Fatalf("expected ErrMissingGrid; got %v", err)
	}

	_, err = ReadGrid(filepath.Join(t.TempDir(), "missing.zip"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error; got %v", err)
	}
}

func encodeArchive(t *testing.T, data gridData) *bytes.Buffer {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())
	w, err := zw.CreateHeader(&zip.FileHeader{Name: dataFile, Method: zstd.ZipMethodWinZip})
	if err != nil {
		t.Fatal(err)
	}
	if err = gob.NewEncoder(w).Encode(&data); err != nil {
		t.Fatal(err)
	}
	if err = zw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func TestDecodeRejectsBadGeometry(t *testing.T) {
	specs := []struct {
		data gridData
		exp  error
	}{
		// A huge size must be rejected without allocating the grid.
		{gridData{Version: version, Size: 1 << 20, Scale: [3]float32{1, 1, 1}, Voxels: []byte{0xff}}, ErrGridSize},
		{gridData{Version: version, Size: -2, Scale: [3]float32{1, 1, 1}}, ErrGridSize},
		{gridData{Version: version, Size: 4, Scale: [3]float32{1, 1, 1}, Voxels: make([]byte, 3)}, volume.ErrShapeMismatch},
		{gridData{Version: version + 1, Size: 4, Scale: [3]float32{1, 1, 1}, Voxels: make([]byte, 8)}, ErrVersion},
		{gridData{Version: version, Size: 4, Voxels: make([]byte, 8)}, volume.ErrConfiguration},
	}

	for index, s := range specs {
		_, err := DecodeGrid(asset.NewResourceFromStream("grid.zip", encodeArchive(t, s.data)))
		if !errors.Is(err, s.exp) {
			t.Fatalf("[spec %d] expected error %v; got %v", index, s.exp, err)
		}
	}

	g, err := DecodeGrid(asset.NewResourceFromStream("grid.zip", encodeArchive(t, gridData{
		Version: version, Size: 4, Scale: [3]float32{1, 1, 1}, Voxels: []byte{1, 0, 0, 0, 0, 0, 0, 0},
	})))
	if err != nil {
		t.Fatal(err)
	}
	if g.OccupiedCount() != 1 {
		t.Fatalf("expected a single occupied voxel; got %d", g.OccupiedCount())
	}
}
