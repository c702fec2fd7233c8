package renderer

import "errors"

var (
	ErrNoTracers        = errors.New("renderer: no tracers attached")
	ErrCameraNotDefined = errors.New("renderer: no camera defined")
	ErrFieldNotDefined  = errors.New("renderer: no radiance field defined")
	ErrVolumeNotDefined = errors.New("renderer: no volume renderer defined")
	ErrFrameMismatch    = errors.New("renderer: camera frame size does not match the renderer options")
	ErrUnsupportedImage = errors.New("renderer: unsupported image format")
)
