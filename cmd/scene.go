package cmd

import (
	"fmt"

	"github.com/achilleasa/go-volrender/asset/snapshot"
	"github.com/achilleasa/go-volrender/camera"
	"github.com/achilleasa/go-volrender/field"
	"github.com/achilleasa/go-volrender/types"
	"github.com/achilleasa/go-volrender/volume"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/urfave/cli"
)

// Flags describing the analytic radiance field.
var SceneFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "shape",
		Value: "sphere",
		Usage: "analytic shape to render (sphere, box, spheres)",
	},
	cli.Float64Flag{
		Name:  "density",
		Value: 50,
		Usage: "peak density inside the shape",
	},
	cli.Float64Flag{
		Name:  "beta",
		Value: 0.01,
		Usage: "width of the density falloff at the shape boundary",
	},
	cli.BoolFlag{
		Name:  "view-dirs",
		Usage: "encode view directions and shade the field with them",
	},
	cli.IntFlag{
		Name:  "freqs",
		Value: 10,
		Usage: "number of positional encoding frequencies",
	},
	cli.IntFlag{
		Name:  "dir-freqs",
		Value: 4,
		Usage: "number of view direction encoding frequencies",
	},
}

// Flags for the volume renderer.
var VolumeFlags = []cli.Flag{
	cli.Float64Flag{
		Name:  "near",
		Value: 2,
		Usage: "near sampling bound",
	},
	cli.Float64Flag{
		Name:  "far",
		Value: 6,
		Usage: "far sampling bound",
	},
	cli.IntFlag{
		Name:  "max-dim",
		Value: 256,
		Usage: "max scene dimension; the occupancy grid resolution is max-dim / 4",
	},
	cli.Float64Flag{
		Name:  "center",
		Value: -1.5,
		Usage: "scene normalization offset applied to every axis",
	},
	cli.Float64Flag{
		Name:  "scale",
		Value: 3,
		Usage: "scene normalization extent applied to every axis",
	},
	cli.StringFlag{
		Name:  "density-mode",
		Value: "standard",
		Usage: "density transform used while compositing (standard, sdf)",
	},
	cli.Float64Flag{
		Name:  "inv-std",
		Value: 64,
		Usage: "inverse standard deviation of the sdf density mode",
	},
	cli.Float64Flag{
		Name:  "log-variance",
		Usage: "log-variance v of the sdf density mode (inverse std = exp(10 v)); overrides --inv-std",
	},
}

// Flags for the camera pose and intrinsics.
var CameraFlags = []cli.Flag{
	cli.IntFlag{
		Name:  "width",
		Value: 256,
		Usage: "frame width",
	},
	cli.IntFlag{
		Name:  "height",
		Value: 256,
		Usage: "frame height",
	},
	cli.Float64Flag{
		Name:  "fov",
		Value: 40,
		Usage: "horizontal field of view in degrees",
	},
	cli.Float64Flag{
		Name:  "radius",
		Value: 4,
		Usage: "orbit camera distance from the origin",
	},
	cli.Float64Flag{
		Name:  "yaw",
		Value: 30,
		Usage: "orbit camera yaw in degrees",
	},
	cli.Float64Flag{
		Name:  "pitch",
		Value: 20,
		Usage: "orbit camera pitch in degrees",
	},
	cli.StringFlag{
		Name:  "transforms",
		Usage: "load camera poses from a transforms json file or URL",
	},
	cli.IntFlag{
		Name:  "frame",
		Usage: "index of the transforms frame to render",
	},
}

// Build the analytic field and the matching encoders.
func setupField(ctx *cli.Context) (field.Predictor, volume.Encoding, error) {
	densityMode, err := volume.ParseDensityMode(ctx.String("density-mode"))
	if err != nil {
		return nil, volume.Encoding{}, err
	}

	shape, err := field.NewShape(ctx.String("shape"))
	if err != nil {
		return nil, volume.Encoding{}, err
	}

	viewDirs := ctx.Bool("view-dirs")
	pred := field.NewAnalyticField(shape, field.AnalyticOptions{
		Albedo:    types.XYZ(0.8, 0.55, 0.3),
		Density:   float32(ctx.Float64("density")),
		Beta:      float32(ctx.Float64("beta")),
		OutputSDF: densityMode == volume.SignedDistanceDensity,
		ViewDirs:  viewDirs,
	})

	// The analytic field reads raw coordinates from the leading features.
	enc := volume.Encoding{
		Mode:     volume.PositionOnly,
		Position: field.NewFrequencyEncoder(ctx.Int("freqs"), true, true),
	}
	if viewDirs {
		enc.Mode = volume.PositionAndDirection
		enc.Direction = field.NewFrequencyEncoder(ctx.Int("dir-freqs"), true, true)
	}
	return pred, enc, nil
}

// Build the volume renderer and optionally seed its grid from a snapshot.
func setupVolume(ctx *cli.Context, enc volume.Encoding) (*volume.Renderer, error) {
	densityMode, err := volume.ParseDensityMode(ctx.String("density-mode"))
	if err != nil {
		return nil, err
	}

	opts := volume.DefaultOptions()
	opts.Near = float32(ctx.Float64("near"))
	opts.Far = float32(ctx.Float64("far"))
	opts.MaxDim = ctx.Int("max-dim")
	opts.Center = types.Splat(float32(ctx.Float64("center")))
	opts.Scale = types.Splat(float32(ctx.Float64("scale")))
	opts.Density = densityMode
	opts.ScaleByDirNorm = true
	if densityMode == volume.SignedDistanceDensity {
		opts.Variance = field.FixedInvStd(ctx.Float64("inv-std"))
		if ctx.IsSet("log-variance") {
			opts.Variance = field.LogVariance(ctx.Float64("log-variance"))
		}
	}

	vr, err := volume.NewRenderer(enc, opts)
	if err != nil {
		return nil, err
	}

	if gridFile := ctx.String("grid"); gridFile != "" {
		if err = loadGrid(vr, gridFile); err != nil {
			return nil, err
		}
	}
	return vr, nil
}

// Seed the renderer grid with a snapshot of the same geometry.
func loadGrid(vr *volume.Renderer, gridFile string) error {
	snap, err := snapshot.ReadGrid(gridFile)
	if err != nil {
		return err
	}

	g := vr.Grid()
	if snap.Size() != g.Size() || snap.Center() != g.Center() || snap.Scale() != g.Scale() {
		return fmt.Errorf("%w: snapshot grid %d^3 (center %v, scale %v) does not match renderer grid %d^3 (center %v, scale %v)",
			volume.ErrShapeMismatch, snap.Size(), snap.Center(), snap.Scale(), g.Size(), g.Center(), g.Scale())
	}
	return g.SetVoxels(snap.Voxels())
}

// Build the cameras selected by the camera flags. When a transforms file is
// given and all is true, a camera is returned for every frame in it;
// otherwise views orbit poses evenly spaced in yaw are generated.
func setupCameras(ctx *cli.Context, all bool, views int) ([]*camera.Camera, error) {
	frameW, frameH := uint32(ctx.Int("width")), uint32(ctx.Int("height"))

	if tfFile := ctx.String("transforms"); tfFile != "" {
		tf, err := camera.ReadTransforms(tfFile)
		if err != nil {
			return nil, err
		}
		if !all {
			cam, err := tf.Camera(ctx.Int("frame"), frameW, frameH)
			if err != nil {
				return nil, err
			}
			return []*camera.Camera{cam}, nil
		}

		cams := make([]*camera.Camera, 0, len(tf.Frames))
		for idx := range tf.Frames {
			cam, err := tf.Camera(idx, frameW, frameH)
			if err != nil {
				return nil, err
			}
			cams = append(cams, cam)
		}
		return cams, nil
	}

	k, err := camera.IntrinsicsFromFOV(frameW, frameH, mgl32.DegToRad(float32(ctx.Float64("fov"))))
	if err != nil {
		return nil, err
	}
	if views < 1 {
		views = 1
	}

	radius := float32(ctx.Float64("radius"))
	yaw := mgl32.DegToRad(float32(ctx.Float64("yaw")))
	pitch := mgl32.DegToRad(float32(ctx.Float64("pitch")))
	step := 2 * math32.Pi / float32(views)

	cams := make([]*camera.Camera, 0, views)
	for view := 0; view < views; view++ {
		pose := camera.Orbit(types.Vec3{}, radius, yaw+float32(view)*step, pitch)
		cam, err := camera.New(frameW, frameH, k, pose)
		if err != nil {
			return nil, err
		}
		cams = append(cams, cam)
	}
	return cams, nil
}
