package renderer

import (
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/achilleasa/go-volrender/camera"
	"github.com/achilleasa/go-volrender/field"
	"github.com/achilleasa/go-volrender/tracer"
	"github.com/achilleasa/go-volrender/types"
	"github.com/achilleasa/go-volrender/volume"
	"github.com/mrjoshuak/go-openexr/exr"
)

const frameSize = 16

func hardSphere() field.Predictor {
	return field.PredictorFunc(func(positions, _ [][]float32) ([]field.Prediction, error) {
		out := make([]field.Prediction, len(positions))
		for i, row := range positions {
			if types.XYZ(row[0], row[1], row[2]).Len() < 0.5 {
				out[i] = field.Prediction{RGB: types.XYZ(0.25, 0.5, 1), Sigma: 50}
			}
		}
		return out, nil
	})
}

func newTestCamera(t *testing.T, yaw float32) *camera.Camera {
	k, err := camera.IntrinsicsFromFOV(frameSize, frameSize, 0.6)
	if err != nil {
		t.Fatal(err)
	}
	cam, err := camera.New(frameSize, frameSize, k, camera.Orbit(types.Vec3{}, 2.5, yaw, 0))
	if err != nil {
		t.Fatal(err)
	}
	return cam
}

func newTestVolume(t *testing.T) *volume.Renderer {
	opts := volume.DefaultOptions()
	opts.Near, opts.Far = 1, 4
	opts.MaxDim = 64
	opts.Center = types.Splat(-1)
	opts.Scale = types.Splat(2)

	vr, err := volume.NewRenderer(volume.Encoding{
		Mode:     volume.PositionOnly,
		Position: field.NewFrequencyEncoder(0, true, true),
	}, opts)
	if err != nil {
		t.Fatal(err)
	}
	return vr
}

func newTestRenderer(t *testing.T, vr *volume.Renderer, opts Options) Renderer {
	r, err := NewDefault(newTestCamera(t, 0), hardSphere(), vr, tracer.PerfectScheduler(), opts)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRefreshThenRender(t *testing.T) {
	vr := newTestVolume(t)
	r := newTestRenderer(t, vr, Options{NumSamples: 48, Hierarchical: true, NumTracers: 3})
	defer r.Close()

	vr.RequestReset()
	if err := r.RefreshOccupancy(0); err != nil {
		t.Fatal(err)
	}
	if vr.ResetPending() {
		t.Fatal("expected the refresh pass to consume the pending reset")
	}

	stats := r.Stats()
	if !stats.Refresh || stats.SkipRatio() != 0 {
		t.Fatalf("expected a dense refresh pass; got refresh=%t skip=%f", stats.Refresh, stats.SkipRatio())
	}
	if stats.Occupancy <= 0 || stats.Occupancy >= 0.1 {
		t.Fatalf("expected a sparse occupancy grid; got %f", stats.Occupancy)
	}

	frame, err := r.Render(1)
	if err != nil {
		t.Fatal(err)
	}

	stats = r.Stats()
	if stats.Refresh || stats.SkipRatio() <= 0 {
		t.Fatalf("expected masked rendering to skip samples; got refresh=%t skip=%f", stats.Refresh, stats.SkipRatio())
	}
	var totalRows uint32
	for _, st := range stats.Tracers {
		totalRows += st.BlockH
	}
	if totalRows != frameSize {
		t.Fatalf("expected tracer blocks to cover %d rows; got %d", frameSize, totalRows)
	}

	r0, g0, b0, a0 := frame.Fine.RGBA(frameSize/2, frameSize/2)
	if a0 < 0.99 {
		t.Fatalf("expected opaque center pixel; got alpha %f", a0)
	}
	if !types.XYZ(r0, g0, b0).ApproxEqual(types.XYZ(0.25, 0.5, 1), 2e-2) {
		t.Fatalf("unexpected center color (%f, %f, %f)", r0, g0, b0)
	}
	if _, _, _, a := frame.Coarse.RGBA(0, 0); a != 0 {
		t.Fatalf("expected transparent corner pixel; got alpha %f", a)
	}
}

func TestSetCamera(t *testing.T) {
	vr := newTestVolume(t)
	r := newTestRenderer(t, vr, Options{NumSamples: 16, NumTracers: 1})
	defer r.Close()

	if err := r.SetCamera(nil); !errors.Is(err, ErrCameraNotDefined) {
		t.Fatalf("expected ErrCameraNotDefined; got %v", err)
	}

	k, _ := camera.IntrinsicsFromFOV(8, 8, 0.6)
	small, err := camera.New(8, 8, k, camera.Orbit(types.Vec3{}, 2.5, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if err = r.SetCamera(small); !errors.Is(err, ErrFrameMismatch) {
		t.Fatalf("expected ErrFrameMismatch; got %v", err)
	}

	// The sphere looks the same from every side.
	if err = r.SetCamera(newTestCamera(t, 1.2)); err != nil {
		t.Fatal(err)
	}
	frame, err := r.Render(0)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, a := frame.Fine.RGBA(frameSize/2, frameSize/2); a < 0.99 {
		t.Fatalf("expected opaque center pixel; got alpha %f", a)
	}
}

func TestNewDefaultErrors(t *testing.T) {
	vr := newTestVolume(t)
	cam := newTestCamera(t, 0)
	sch := tracer.NaiveScheduler()

	specs := []struct {
		cam  *camera.Camera
		pred field.Predictor
		vr   *volume.Renderer
		opts Options
		exp  error
	}{
		{nil, hardSphere(), vr, Options{}, ErrCameraNotDefined},
		{cam, nil, vr, Options{}, ErrFieldNotDefined},
		{cam, hardSphere(), nil, Options{}, ErrVolumeNotDefined},
		{cam, hardSphere(), vr, Options{NumTracers: -1}, ErrNoTracers},
		{cam, hardSphere(), vr, Options{FrameW: 4, FrameH: 4}, ErrFrameMismatch},
	}

	for specIndex, spec := range specs {
		_, err := NewDefault(spec.cam, spec.pred, spec.vr, sch, spec.opts)
		if !errors.Is(err, spec.exp) {
			t.Fatalf("[spec %d] expected error %v; got %v", specIndex, spec.exp, err)
		}
	}
}

func TestRenderPropagatesFieldErrors(t *testing.T) {
	errBoom := errors.New("boom")
	pred := field.PredictorFunc(func(positions, _ [][]float32) ([]field.Prediction, error) {
		return nil, errBoom
	})

	r, err := NewDefault(newTestCamera(t, 0), pred, newTestVolume(t), tracer.NaiveScheduler(), Options{NumSamples: 8, NumTracers: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if _, err = r.Render(0); !errors.Is(err, errBoom) {
		t.Fatalf("expected field error; got %v", err)
	}
	if err = r.RefreshOccupancy(0); !errors.Is(err, errBoom) {
		t.Fatalf("expected field error; got %v", err)
	}
}

func TestSaveFrame(t *testing.T) {
	vr := newTestVolume(t)
	r := newTestRenderer(t, vr, Options{NumSamples: 16, NumTracers: 2})
	defer r.Close()

	frame, err := r.Render(0)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	exrFile := filepath.Join(dir, "frame.exr")
	if err = SaveFrame(exrFile, frame.Fine); err != nil {
		t.Fatal(err)
	}
	decoded, err := exr.DecodeFile(exrFile)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Bounds() != frame.Fine.Bounds() {
		t.Fatalf("expected bounds %v; got %v", frame.Fine.Bounds(), decoded.Bounds())
	}
	_, _, _, a := decoded.RGBA(frameSize/2, frameSize/2)
	if a < 0.99 {
		t.Fatalf("expected opaque center pixel after exr round-trip; got %f", a)
	}

	pngFile := filepath.Join(dir, "frame.png")
	if err = SaveFrame(pngFile, frame.Coarse); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(pngFile)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != frameSize {
		t.Fatalf("expected png width %d; got %d", frameSize, img.Bounds().Dx())
	}

	if err = SaveFrame(filepath.Join(dir, "frame.tiff"), frame.Fine); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage; got %v", err)
	}
}
