package picking

import (
	"errors"

	"github.com/gekko3d/viewport/viewrt/rt/core"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

var ErrEmptyViewport = errors.New("picking: viewport has no area")

// Ray is a world space picking ray. Right and Down span the near plane in
// screen orientation.
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
	Right     mgl32.Vec3
	Down      mgl32.Vec3
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float32) mgl32.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// PickRay builds the ray through pixel (x, y) of a width x height viewport,
// origin top left. The ray starts on the near plane so nothing in front of
// it is picked.
func PickRay(cam *core.Camera, width, height int, x, y float32) (Ray, error) {
	if width <= 0 || height <= 0 {
		return Ray{}, ErrEmptyViewport
	}
	w, h := float32(width), float32(height)
	aspect := w / h

	eye := cam.Eye
	forward := cam.Forward()
	down := cam.Up.Mul(-1)
	right := forward.Cross(cam.Up).Normalize()

	vScale := math32.Tan(mgl32.DegToRad(cam.VFov)/2) * cam.Near
	hScale := vScale * aspect

	// [-1, 1] across the viewport
	nx := (x - w/2) / (w / 2)
	ny := (y - h/2) / (h / 2)

	origin := eye.
		Add(forward.Mul(cam.Near)).
		Add(right.Mul(hScale * nx)).
		Add(down.Mul(vScale * ny))

	return Ray{
		Origin:    origin,
		Direction: origin.Sub(eye).Normalize(),
		Right:     right,
		Down:      down,
	}, nil
}
