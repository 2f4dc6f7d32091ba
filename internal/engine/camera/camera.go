// Package camera provides the orbit camera used by the viewers.
package camera

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/decalview/pkg/math"
)

// settleEpsilon is the pending motion below which damping stops.
const settleEpsilon = 1e-5

// OrbitCamera orbits around a target point. Input is accumulated and applied
// by Update, which eases it in over several frames when Damping is set.
type OrbitCamera struct {
	Target math.Vec3

	// Spherical coordinates
	Distance float32 // Distance from target
	Pitch    float32 // Elevation above the XZ plane (radians)
	Yaw      float32 // Rotation around Y, 0 looks down -Z (radians)

	// Projection
	FOV  float32 // Vertical field of view (radians)
	Near float32
	Far  float32

	// Constraints
	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	// Sensitivity
	DragSensitivity float32
	ZoomSensitivity float32

	// Damping is the fraction of pending motion applied per Update, in
	// (0, 1]. Zero applies input immediately.
	Damping float32

	pendingYaw   float32
	pendingPitch float32
	pendingZoom  float32
}

// NewOrbitCamera creates a camera at eye looking at target.
func NewOrbitCamera(eye, target math.Vec3, fov, near, far float32) *OrbitCamera {
	c := &OrbitCamera{
		Target:          target,
		FOV:             fov,
		Near:            near,
		Far:             far,
		MinDistance:     1,
		MaxDistance:     far * 0.9,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
	}
	c.LookFrom(eye)
	return c
}

// LookFrom places the camera at eye, keeping the target.
func (c *OrbitCamera) LookFrom(eye math.Vec3) {
	offset := eye.Sub(c.Target)
	c.Distance = offset.Length()
	if c.Distance == 0 {
		c.Distance = c.MinDistance
		return
	}
	c.Pitch = math32.Asin(offset.Y / c.Distance)
	c.Yaw = math32.Atan2(offset.X, offset.Z)
	c.pendingYaw, c.pendingPitch, c.pendingZoom = 0, 0, 0
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() math.Vec3 {
	horiz := c.Distance * math32.Cos(c.Pitch)
	return math.Vec3{
		X: c.Target.X + horiz*math32.Sin(c.Yaw),
		Y: c.Target.Y + c.Distance*math32.Sin(c.Pitch),
		Z: c.Target.Z + horiz*math32.Cos(c.Yaw),
	}
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() math.Mat4 {
	up := math.Vec3{X: 0, Y: 1, Z: 0}
	return math.LookAt(c.Position(), c.Target, up)
}

// ProjectionMatrix returns the perspective projection for a viewport of the
// given aspect ratio.
func (c *OrbitCamera) ProjectionMatrix(aspect float32) math.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	return math.Perspective(c.FOV, aspect, c.Near, c.Far)
}

// HandleDrag queues a rotation from a mouse drag delta in pixels.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32) {
	c.pendingYaw -= deltaX * c.DragSensitivity
	c.pendingPitch += deltaY * c.DragSensitivity
}

// HandleZoom queues a zoom from a scroll wheel delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	c.pendingZoom += delta
}

// Update applies queued input and reports whether motion is still pending.
func (c *OrbitCamera) Update() bool {
	f := c.Damping
	if f <= 0 || f > 1 {
		f = 1
	}

	c.Yaw += c.pendingYaw * f
	c.Pitch = clamp(c.Pitch+c.pendingPitch*f, c.MinPitch, c.MaxPitch)
	c.Distance = clamp(c.Distance-c.pendingZoom*f*c.Distance*c.ZoomSensitivity, c.MinDistance, c.MaxDistance)

	c.pendingYaw *= 1 - f
	c.pendingPitch *= 1 - f
	c.pendingZoom *= 1 - f

	moving := math32.Abs(c.pendingYaw) > settleEpsilon ||
		math32.Abs(c.pendingPitch) > settleEpsilon ||
		math32.Abs(c.pendingZoom) > settleEpsilon
	if !moving {
		c.pendingYaw, c.pendingPitch, c.pendingZoom = 0, 0, 0
	}
	return moving
}

// FitToBounds centers the camera on a bounding box and backs off until the
// box fits the vertical field of view.
func (c *OrbitCamera) FitToBounds(b math.Box3) {
	if b.IsEmpty() {
		return
	}
	c.Target = b.Center()
	radius := b.Size().Length() / 2
	c.Distance = clamp(radius/math32.Sin(c.FOV/2), c.MinDistance, c.MaxDistance)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
