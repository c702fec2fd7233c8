package camera

import (
	"errors"
	"fmt"

	"github.com/achilleasa/go-volrender/types"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrInvalidFrame = errors.New("camera: frame dimensions must be positive")
	ErrInvalidFOV   = errors.New("camera: field of view must be in (0, pi)")
	ErrRowRange     = errors.New("camera: requested rows are outside the frame")
)

// Pinhole intrinsics in pixels.
type Intrinsics struct {
	Fx, Fy float32
	Cx, Cy float32
}

// IntrinsicsFromFOV derives square-pixel intrinsics from a horizontal field
// of view (radians). The principal point sits at the frame center.
func IntrinsicsFromFOV(frameW, frameH uint32, fovX float32) (Intrinsics, error) {
	if frameW == 0 || frameH == 0 {
		return Intrinsics{}, ErrInvalidFrame
	}
	if !(fovX > 0 && fovX < math32.Pi) {
		return Intrinsics{}, fmt.Errorf("%w; got %f", ErrInvalidFOV, fovX)
	}

	focal := 0.5 * float32(frameW) / math32.Tan(0.5*fovX)
	return Intrinsics{
		Fx: focal,
		Fy: focal,
		Cx: 0.5 * float32(frameW),
		Cy: 0.5 * float32(frameH),
	}, nil
}

// Camera generates one world-space ray per pixel. The camera looks down its
// local -Z axis with +Y up; CameraToWorld maps camera space to world space.
type Camera struct {
	FrameW, FrameH uint32
	K              Intrinsics
	CameraToWorld  mgl32.Mat4
}

// Create a new camera.
func New(frameW, frameH uint32, k Intrinsics, cameraToWorld mgl32.Mat4) (*Camera, error) {
	if frameW == 0 || frameH == 0 {
		return nil, ErrInvalidFrame
	}
	return &Camera{
		FrameW:        frameW,
		FrameH:        frameH,
		K:             k,
		CameraToWorld: cameraToWorld,
	}, nil
}

// Origin returns the camera position in world space.
func (c *Camera) Origin() types.Vec3 {
	return types.Vec3(c.CameraToWorld.Col(3).Vec3())
}

// Rays returns the origins and (unnormalized) directions for rowCount frame
// rows starting at rowStart, in row-major pixel order.
func (c *Camera) Rays(rowStart, rowCount uint32) ([]types.Vec3, []types.Vec3, error) {
	if rowCount == 0 || rowStart+rowCount > c.FrameH {
		return nil, nil, fmt.Errorf("%w: rows [%d, %d) of %d", ErrRowRange, rowStart, rowStart+rowCount, c.FrameH)
	}

	rot := c.CameraToWorld.Mat3()
	origin := c.Origin()

	total := int(rowCount * c.FrameW)
	origins := make([]types.Vec3, total)
	dirs := make([]types.Vec3, total)

	idx := 0
	for j := rowStart; j < rowStart+rowCount; j++ {
		for i := uint32(0); i < c.FrameW; i++ {
			local := mgl32.Vec3{
				(float32(i) - c.K.Cx) / c.K.Fx,
				-(float32(j) - c.K.Cy) / c.K.Fy,
				-1,
			}
			origins[idx] = origin
			dirs[idx] = types.Vec3(rot.Mul3x1(local))
			idx++
		}
	}
	return origins, dirs, nil
}

// Orbit returns a camera-to-world transform for a camera placed on a sphere
// of the given radius around target, looking at it. Yaw rotates about the
// world Y axis and pitch raises the camera above the XZ plane (radians).
func Orbit(target types.Vec3, radius, yaw, pitch float32) mgl32.Mat4 {
	yawQuat := types.QuatFromAxisAngle(types.XYZ(0, 1, 0), yaw)
	pitchQuat := types.QuatFromAxisAngle(types.XYZ(-1, 0, 0), pitch)
	orient := yawQuat.Mul(pitchQuat).Normalize()

	eye := target.Add(orient.Rotate(types.XYZ(0, 0, radius)))
	view := mgl32.LookAtV(mgl32.Vec3(eye), mgl32.Vec3(target), mgl32.Vec3{0, 1, 0})
	return view.Inv()
}
