package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func assertVec(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	for k := 0; k < 3; k++ {
		assert.InDelta(t, want[k], got[k], 1e-4, "component %d of %v", k, got)
	}
}

func TestCameraDefaults(t *testing.T) {
	cam := NewCamera()
	assertVec(t, mgl32.Vec3{0, -10, 0}, cam.Eye)
	assertVec(t, mgl32.Vec3{0, 0, 1}, cam.Up)
	assert.Equal(t, float32(45), cam.VFov)
	assertVec(t, mgl32.Vec3{0, 1, 0}, cam.Forward())
	assertVec(t, mgl32.Vec3{1, 0, 0}, cam.Right())

	// the eye maps to the view space origin
	assertVec(t, mgl32.Vec3{}, mgl32.TransformCoordinate(cam.Eye, cam.ViewMatrix()))

	override := mgl32.Ident4()
	cam.PerspectiveOverride = &override
	assert.Equal(t, override, cam.PerspectiveMatrix(2))
}

func TestCameraPanTilt(t *testing.T) {
	cam := NewCamera()
	cam.PanTilt(cam.Eye, cam.Up, 90, 0)
	assertVec(t, mgl32.Vec3{10, 0, 0}, cam.Eye)
	assertVec(t, mgl32.Vec3{0, 0, 1}, cam.Up)

	cam = NewCamera()
	cam.PanTilt(cam.Eye, cam.Up, 0, 90)
	assert.InDelta(t, 10, cam.Eye.Len(), 1e-4, "orbit keeps the distance")
	assert.InDelta(t, 0, cam.Up.Dot(cam.Forward()), 1e-4)
}

func TestCameraRollTranslateDolly(t *testing.T) {
	cam := NewCamera()
	cam.Roll(cam.Eye, cam.Up, 90)
	assertVec(t, mgl32.Vec3{1, 0, 0}, cam.Up)

	cam = NewCamera()
	cam.Translate(cam.Eye, cam.Center, 0.1, 0)
	assertVec(t, mgl32.Vec3{1, -10, 0}, cam.Eye)
	assertVec(t, mgl32.Vec3{1, 0, 0}, cam.Center)

	cam = NewCamera()
	cam.Dolly(DollyStep, false)
	assertVec(t, mgl32.Vec3{0, -11, 0}, cam.Eye)
	cam.Dolly(-DollyCoarseStep, true)
	assertVec(t, mgl32.Vec3{0, -10, 0}, cam.Eye)
	assertVec(t, mgl32.Vec3{0, 0, 0}, cam.Center)

	cam.SetRotationCenter(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{4, 5, 6})
	assertVec(t, mgl32.Vec3{1, 2, 3}, cam.Eye)
	assertVec(t, mgl32.Vec3{4, 5, 6}, cam.Center)
}
