package cmd

import (
	"bytes"
	"fmt"
	"time"

	"github.com/achilleasa/go-volrender/renderer"
	"github.com/achilleasa/go-volrender/tracer"
	"github.com/mrjoshuak/go-openexr/exr"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Flags for the render frame command.
var RenderFlags = []cli.Flag{
	cli.IntFlag{
		Name:  "samples",
		Value: 64,
		Usage: "samples per ray for the coarse and the fine pass",
	},
	cli.BoolTFlag{
		Name:  "hierarchical",
		Usage: "run the importance-resampled fine pass",
	},
	cli.BoolFlag{
		Name:  "jitter",
		Usage: "jitter sample depths inside their bins",
	},
	cli.IntFlag{
		Name:  "tracers",
		Usage: "number of cpu tracers (defaults to the number of cores)",
	},
	cli.StringFlag{
		Name:  "grid",
		Usage: "seed the occupancy grid from a snapshot file or URL",
	},
	cli.BoolFlag{
		Name:  "refresh",
		Usage: "run an occupancy refresh pass from the render pose first",
	},
	cli.StringFlag{
		Name:  "out, o",
		Value: "frame.exr",
		Usage: "image filename for the rendered frame (.exr or .png)",
	},
	cli.StringFlag{
		Name:  "out-coarse",
		Usage: "optional image filename for the coarse pass",
	},
}

// Render a still frame.
func RenderFrame(ctx *cli.Context) error {
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
	cams, err := setupCameras(ctx, false, 1)
	if err != nil {
		return err
	}

	opts := renderer.Options{
		FrameW:       uint32(ctx.Int("width")),
		FrameH:       uint32(ctx.Int("height")),
		NumSamples:   ctx.Int("samples"),
		Hierarchical: ctx.BoolT("hierarchical"),
		Jitter:       ctx.Bool("jitter"),
		NumTracers:   ctx.Int("tracers"),
	}

	r, err := renderer.NewDefault(cams[0], pred, vr, tracer.NaiveScheduler(), opts)
	if err != nil {
		return err
	}
	defer r.Close()

	if ctx.Bool("refresh") {
		vr.RequestReset()
		if err = r.RefreshOccupancy(0); err != nil {
			return err
		}
		displayFrameStats(r.Stats())
	}

	frame, err := r.Render(0)
	if err != nil {
		return err
	}
	displayFrameStats(r.Stats())

	if err = saveFrame(ctx.String("out"), frame.Fine); err != nil {
		return err
	}
	if coarseFile := ctx.String("out-coarse"); coarseFile != "" {
		return saveFrame(coarseFile, frame.Coarse)
	}
	return nil
}

func saveFrame(imgFile string, img *exr.RGBAImage) error {
	start := time.Now()
	if err := renderer.SaveFrame(imgFile, img); err != nil {
		return err
	}
	logger.Noticef("wrote frame to %s in %d ms", imgFile, time.Since(start).Milliseconds())
	return nil
}

func displayFrameStats(stats renderer.FrameStats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Tracer", "Block height", "% of frame", "Samples", "Evaluated", "Render time"})
	for _, stat := range stats.Tracers {
		table.Append([]string{
			stat.Id,
			fmt.Sprintf("%d", stat.BlockH),
			fmt.Sprintf("%02.1f %%", stat.FramePercent),
			fmt.Sprintf("%d", stat.Samples),
			fmt.Sprintf("%d", stat.Evaluated),
			stat.RenderTime.String(),
		})
	}
	table.SetFooter([]string{
		"", "", "",
		fmt.Sprintf("skipped %02.1f %%", 100*stats.SkipRatio()),
		fmt.Sprintf("occupied %02.1f %%", 100*stats.Occupancy),
		stats.RenderTime.String(),
	})

	table.Render()

	pass := "frame"
	if stats.Refresh {
		pass = "occupancy refresh"
	}
	logger.Noticef("%s statistics\n%s", pass, buf.String())
}
