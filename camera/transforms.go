package camera

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/achilleasa/go-volrender/asset"
	"github.com/achilleasa/go-volrender/log"
	"github.com/go-gl/mathgl/mgl32"
)

var ErrFrameIndex = errors.New("camera: frame index out of range")

// A single posed view of a transforms file.
type Frame struct {
	FilePath        string        `json:"file_path"`
	Rotation        float32       `json:"rotation"`
	TransformMatrix [4][4]float32 `json:"transform_matrix"`
}

// CameraToWorld converts the row-major transform matrix of the frame.
func (f Frame) CameraToWorld() mgl32.Mat4 {
	m := f.TransformMatrix
	return mgl32.Mat4FromRows(
		mgl32.Vec4(m[0]),
		mgl32.Vec4(m[1]),
		mgl32.Vec4(m[2]),
		mgl32.Vec4(m[3]),
	)
}

// Transforms describes a set of posed views sharing one horizontal field of
// view, in the layout used by common synthetic radiance field datasets.
type Transforms struct {
	CameraAngleX float32 `json:"camera_angle_x"`
	Frames       []Frame `json:"frames"`
}

// ReadTransforms loads a transforms document from a local path or an
// http(s) URL.
func ReadTransforms(pathToFile string) (*Transforms, error) {
	res, err := asset.NewResource(pathToFile, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	return DecodeTransforms(res)
}

// DecodeTransforms parses a transforms document from a resource stream.
func DecodeTransforms(res *asset.Resource) (*Transforms, error) {
	logger := log.New("transforms")

	var tf Transforms
	if err := json.NewDecoder(res).Decode(&tf); err != nil {
		return nil, fmt.Errorf("camera: could not parse transforms from '%s': %w", res.Path(), err)
	}
	if !(tf.CameraAngleX > 0) {
		return nil, fmt.Errorf("%w; transforms '%s' declare camera_angle_x %f", ErrInvalidFOV, res.Path(), tf.CameraAngleX)
	}

	logger.Infof(`loaded %d frames from "%s"`, len(tf.Frames), res.Path())
	return &tf, nil
}

// Camera builds a camera for the frame at the given index.
func (tf *Transforms) Camera(index int, frameW, frameH uint32) (*Camera, error) {
	if index < 0 || index >= len(tf.Frames) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrFrameIndex, index, len(tf.Frames))
	}

	k, err := IntrinsicsFromFOV(frameW, frameH, tf.CameraAngleX)
	if err != nil {
		return nil, err
	}
	return New(frameW, frameH, k, tf.Frames[index].CameraToWorld())
}
