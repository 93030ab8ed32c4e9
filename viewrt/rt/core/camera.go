package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Wheel steps per unit of dolly travel.
const (
	DollyStep       = 5 * 12
	DollyCoarseStep = 5 * 120
)

// Camera is a look-at camera. Up is expected to stay orthogonal to the view
// direction; the mouse controls keep it that way.
type Camera struct {
	Eye    mgl32.Vec3
	Center mgl32.Vec3
	Up     mgl32.Vec3
	VFov   float32 // degrees
	Near   float32
	Far    float32

	// PerspectiveOverride replaces the computed projection when set.
	PerspectiveOverride *mgl32.Mat4
}

func NewCamera() *Camera {
	return &Camera{
		Eye:    mgl32.Vec3{0, -10, 0},
		Center: mgl32.Vec3{0, 0, 0},
		Up:     mgl32.Vec3{0, 0, 1},
		VFov:   45,
		Near:   0.1,
		Far:    10000,
	}
}

// Forward is the normalized view direction.
func (c *Camera) Forward() mgl32.Vec3 {
	return c.Center.Sub(c.Eye).Normalize()
}

// Right is normalize(forward x up).
func (c *Camera) Right() mgl32.Vec3 {
	return c.Forward().Cross(c.Up).Normalize()
}

func (c *Camera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye, c.Center, c.Up)
}

func (c *Camera) PerspectiveMatrix(aspect float32) mgl32.Mat4 {
	if c.PerspectiveOverride != nil {
		return *c.PerspectiveOverride
	}
	return mgl32.Perspective(mgl32.DegToRad(c.VFov), aspect, c.Near, c.Far)
}

// OrthographicMatrix maps pixel coordinates of a width x height viewport.
func (c *Camera) OrthographicMatrix(width, height float32) mgl32.Mat4 {
	return mgl32.Ortho(0, width, 0, height, c.Near, c.Far)
}

// PanTilt orbits the eye around the center, starting from the given eye and
// up. dx turns around up, dy around the right axis, both in degrees.
func (c *Camera) PanTilt(startEye, startUp mgl32.Vec3, dx, dy float32) {
	front := c.Center.Sub(startEye)
	right := front.Cross(startUp).Normalize()
	q := mgl32.QuatRotate(mgl32.DegToRad(dx), startUp.Normalize()).
		Mul(mgl32.QuatRotate(mgl32.DegToRad(dy), right))
	c.Eye = c.Center.Sub(q.Rotate(front))
	c.Up = q.Rotate(startUp)
}

// Roll rotates up around the view direction by delta degrees.
func (c *Camera) Roll(startEye, startUp mgl32.Vec3, delta float32) {
	axis := c.Center.Sub(startEye).Normalize()
	c.Up = mgl32.QuatRotate(mgl32.DegToRad(delta), axis).Rotate(startUp)
}

// Translate moves eye and center together in the view plane. dx and dy are
// fractions of the eye to center distance.
func (c *Camera) Translate(startEye, startCenter mgl32.Vec3, dx, dy float32) {
	left := startCenter.Sub(startEye).Cross(c.Up).Normalize()
	d := left.Mul(dx).Add(c.Up.Mul(dy)).Mul(startEye.Sub(startCenter).Len())
	c.Eye = startEye.Add(d)
	c.Center = startCenter.Add(d)
}

// Dolly moves eye and center along the view direction by a wheel delta.
// Positive deltas move backwards.
func (c *Camera) Dolly(delta float32, coarse bool) {
	factor := float32(DollyStep)
	if coarse {
		factor = DollyCoarseStep
	}
	d := c.Forward().Mul(delta / factor)
	c.Eye = c.Eye.Sub(d)
	c.Center = c.Center.Sub(d)
}

// SetRotationCenter places the eye and the point the camera orbits around.
func (c *Camera) SetRotationCenter(eye, center mgl32.Vec3) {
	c.Eye = eye
	c.Center = center
}
