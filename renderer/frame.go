package renderer

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/achilleasa/go-volrender/tracer"
	"github.com/mrjoshuak/go-openexr/exr"
)

// A rendered frame. The alpha channel of both images stores the accumulated
// opacity of the authoritative pass.
type Frame struct {
	Coarse *exr.RGBAImage
	Fine   *exr.RGBAImage
}

func newFrame(fb *tracer.FrameBuffer) *Frame {
	bounds := image.Rect(0, 0, int(fb.W), int(fb.H))
	frame := &Frame{
		Coarse: exr.NewRGBAImage(bounds),
		Fine:   exr.NewRGBAImage(bounds),
	}

	for y := 0; y < int(fb.H); y++ {
		for x := 0; x < int(fb.W); x++ {
			idx := y*int(fb.W) + x
			a := fb.Opacity[idx]
			c, f := fb.Coarse[idx], fb.Fine[idx]
			frame.Coarse.SetRGBA(x, y, c[0], c[1], c[2], a)
			frame.Fine.SetRGBA(x, y, f[0], f[1], f[2], a)
		}
	}
	return frame
}

// SaveFrame writes an image to disk. The format is selected by the file
// extension: .exr keeps the linear float values while .png clamps to 8 bits.
func SaveFrame(imgFile string, img *exr.RGBAImage) error {
	switch strings.ToLower(filepath.Ext(imgFile)) {
	case ".exr":
		return exr.EncodeFile(imgFile, img)
	case ".png":
		f, err := os.Create(imgFile)
		if err != nil {
			return err
		}
		defer f.Close()
		return png.Encode(f, img)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedImage, filepath.Ext(imgFile))
	}
}
