package main

import (
	"fmt"
	"os"

	"github.com/achilleasa/go-volrender/cmd"
	"github.com/urfave/cli"
)

func flags(sets ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, set := range sets {
		out = append(out, set...)
	}
	return out
}

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "go-volrender"
	app.Usage = "render radiance fields with occupancy-accelerated volume rendering"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "set log level (debug, info, notice, warning, error)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render radiance field",
			Subcommands: []cli.Command{
				{
					Name:  "frame",
					Usage: "render single frame",
					Description: `
Render a single frame of an analytic radiance field. The camera either orbits
the origin or is loaded from a transforms json file. Empty space is skipped
using the occupancy grid, which can be seeded from a snapshot (--grid) or
refreshed from the render pose (--refresh).`,
					Flags:  flags(cmd.SceneFlags, cmd.VolumeFlags, cmd.CameraFlags, cmd.RenderFlags),
					Action: cmd.RenderFrame,
				},
			},
		},
		{
			Name:  "grid",
			Usage: "manage occupancy grid snapshots",
			Subcommands: []cli.Command{
				{
					Name:  "refresh",
					Usage: "build an occupancy grid from a set of views",
					Description: `
Run occupancy refresh passes from a ring of orbit views (or every frame of a
transforms file) and write the resulting grid to a zip snapshot that can be
supplied to the render command.`,
					Flags:  flags(cmd.SceneFlags, cmd.VolumeFlags, cmd.CameraFlags, cmd.RefreshFlags),
					Action: cmd.RefreshGrid,
				},
				{
					Name:      "info",
					Usage:     "display occupancy grid snapshot information",
					ArgsUsage: "grid.zip",
					Action:    cmd.GridInfo,
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
