package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/achilleasa/go-volrender/asset/snapshot"
	"github.com/achilleasa/go-volrender/renderer"
	"github.com/achilleasa/go-volrender/tracer"
	"github.com/achilleasa/go-volrender/volume"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Flags for the grid refresh command.
var RefreshFlags = []cli.Flag{
	cli.IntFlag{
		Name:  "views",
		Value: 8,
		Usage: "number of orbit views used to refresh the grid (ignored with --transforms)",
	},
	cli.IntFlag{
		Name:  "samples",
		Value: 128,
		Usage: "samples per ray",
	},
	cli.IntFlag{
		Name:  "tracers",
		Usage: "number of cpu tracers (defaults to the number of cores)",
	},
	cli.StringFlag{
		Name:  "out, o",
		Value: "grid.zip",
		Usage: "snapshot filename",
	},
}

// Build an occupancy grid by running refresh passes from a set of views and
// write it to a snapshot.
func RefreshGrid(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	pred, enc, err := setupField(ctx)
	if err != nil {
		return err
	}
	vr, err := setupVolume(ctx, enc)
	if err != nil {
		return err
	}
	cams, err := setupCameras(ctx, true, ctx.Int("views"))
	if err != nil {
		return err
	}
	if len(cams) == 0 {
		return errors.New("no camera views to refresh the grid from")
	}

	opts := renderer.Options{
		NumSamples: ctx.Int("samples"),
		NumTracers: ctx.Int("tracers"),
	}
	r, err := renderer.NewDefault(cams[0], pred, vr, tracer.PerfectScheduler(), opts)
	if err != nil {
		return err
	}
	defer r.Close()

	// Evidence from every view accumulates into a freshly cleared grid.
	start := time.Now()
	vr.RequestReset()
	for view, cam := range cams {
		if err = r.SetCamera(cam); err != nil {
			return err
		}
		if err = r.RefreshOccupancy(uint32(view)); err != nil {
			return err
		}
		logger.Infof("view %d/%d: %.2f%% of voxels occupied", view+1, len(cams), 100*r.Stats().Occupancy)
	}
	logger.Noticef("refreshed grid from %d views in %d ms", len(cams), time.Since(start).Milliseconds())

	if err = snapshot.WriteGrid(vr.Grid(), ctx.String("out")); err != nil {
		return err
	}
	displayGridInfo(vr.Grid())
	return nil
}

// Display information about a grid snapshot.
func GridInfo(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return errors.New("missing grid snapshot argument")
	}

	g, err := snapshot.ReadGrid(ctx.Args().First())
	if err != nil {
		return err
	}
	displayGridInfo(g)
	return nil
}

func displayGridInfo(g *volume.OccupancyGrid) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Property", "Value"})
	center, scale := g.Center(), g.Scale()
	table.AppendBulk([][]string{
		{"Resolution", fmt.Sprintf("%d^3", g.Size())},
		{"Center", fmt.Sprintf("(%.3f, %.3f, %.3f)", center[0], center[1], center[2])},
		{"Scale", fmt.Sprintf("(%.3f, %.3f, %.3f)", scale[0], scale[1], scale[2])},
		{"Occupied voxels", fmt.Sprintf("%d", g.OccupiedCount())},
		{"Occupancy", fmt.Sprintf("%02.2f %%", 100*g.Occupancy())},
	})

	table.Render()
	logger.Noticef("occupancy grid\n%s", buf.String())
}
