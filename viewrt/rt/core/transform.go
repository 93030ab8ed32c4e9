package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform is a local TRS transform. Parent is an optional, non-owning link
// used when several hosts share a transform chain by hand; the scene graph
// composes group transforms on its own.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
	Parent   *Transform `copier:"-"`
	Dirty    bool

	generation uint64
}

func NewTransform() *Transform {
	return &Transform{
		Position: mgl32.Vec3{0, 0, 0},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
		Dirty:    true,
	}
}

// NewTranslation is a shorthand for a transform that only translates.
func NewTranslation(x, y, z float32) *Transform {
	t := NewTransform()
	t.Position = mgl32.Vec3{x, y, z}
	return t
}

// Touch marks the transform as modified.
func (t *Transform) Touch() {
	t.Dirty = true
	t.generation++
}

// Generation advances on every mutation made through the setters or Touch.
func (t *Transform) Generation() uint64 {
	if t == nil {
		return 0
	}
	return t.generation
}

func (t *Transform) SetPosition(p mgl32.Vec3) {
	t.Position = p
	t.Touch()
}

func (t *Transform) SetRotation(q mgl32.Quat) {
	t.Rotation = q
	t.Touch()
}

func (t *Transform) SetScale(s mgl32.Vec3) {
	t.Scale = s
	t.Touch()
}

// Update clears the dirty flag. The matrices are computed on demand.
func (t *Transform) Update() {
	if t != nil {
		t.Dirty = false
	}
}

func (t *Transform) ObjectToWorld() mgl32.Mat4 {
	// M = T * R * S
	translate := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := t.Rotation.Mat4()
	scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())

	return translate.Mul4(rotate).Mul4(scale)
}

func (t *Transform) WorldToObject() mgl32.Mat4 {
	// inv(M) = inv(S) * inv(R) * inv(T)
	invScale := mgl32.Scale3D(1.0/t.Scale.X(), 1.0/t.Scale.Y(), 1.0/t.Scale.Z())
	invRotate := t.Rotation.Conjugate().Mat4()
	invTranslate := mgl32.Translate3D(-t.Position.X(), -t.Position.Y(), -t.Position.Z())

	return invScale.Mul4(invRotate).Mul4(invTranslate)
}

// Local is the transform's own matrix; identity for a nil transform.
func (t *Transform) Local() mgl32.Mat4 {
	if t == nil {
		return mgl32.Ident4()
	}
	return t.ObjectToWorld()
}

// WorldTransform composes the Parent chain, top-down. With includeLocal
// false the transform's own matrix is left out.
func (t *Transform) WorldTransform(includeLocal bool) mgl32.Mat4 {
	if t == nil {
		return mgl32.Ident4()
	}
	m := mgl32.Ident4()
	if t.Parent != nil {
		m = t.Parent.WorldTransform(true)
	}
	if includeLocal {
		m = m.Mul4(t.ObjectToWorld())
	}
	return m
}
