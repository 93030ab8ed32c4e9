package core

import (
	"slices"

	"github.com/gekko3d/viewport/viewrt/rt/bvh"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

type boundsStamp struct {
	valid   bool
	geomGen uint64
	world   mgl32.Mat4
	hasBBox bool
}

// UpdateWorldAABB recomputes the world bounds when the geometry or the world
// matrix changed since the last call. It reports whether anything changed.
func (a *Actor) UpdateWorldAABB(world mgl32.Mat4) bool {
	stamp := boundsStamp{valid: true, geomGen: a.Geometry.Generation(), world: world, hasBBox: a.BBox != nil}
	if a.bounds == stamp && a.BBox == nil {
		return false
	}
	a.bounds = stamp

	local, ok := a.LocalBounds()
	if !ok {
		a.WorldAABB = nil
		return true
	}
	box := TransformAABB(local, world)
	a.WorldAABB = &box
	return true
}

// TransformAABB returns the conservative world box of the eight transformed
// corners.
func TransformAABB(b AABB, m mgl32.Mat4) AABB {
	lo, hi := b.Min, b.Max
	corners := [8]mgl32.Vec3{
		{lo.X(), lo.Y(), lo.Z()},
		{hi.X(), lo.Y(), lo.Z()},
		{lo.X(), hi.Y(), lo.Z()},
		{hi.X(), hi.Y(), lo.Z()},
		{lo.X(), lo.Y(), hi.Z()},
		{hi.X(), lo.Y(), hi.Z()},
		{lo.X(), hi.Y(), hi.Z()},
		{hi.X(), hi.Y(), hi.Z()},
	}

	inf := math32.Inf(1)
	wMin := mgl32.Vec3{inf, inf, inf}
	wMax := mgl32.Vec3{-inf, -inf, -inf}
	for _, c := range corners {
		wc := m.Mul4x1(c.Vec4(1.0)).Vec3()
		wMin = mgl32.Vec3{min(wMin.X(), wc.X()), min(wMin.Y(), wc.Y()), min(wMin.Z(), wc.Z())}
		wMax = mgl32.Vec3{max(wMax.X(), wc.X()), max(wMax.Y(), wc.Y()), max(wMax.Z(), wc.Z())}
	}
	return AABB{Min: wMin, Max: wMax}
}

type mergeStamp struct {
	actor     *Actor
	name      string
	geomGen   uint64
	geomOpts  bvh.Options
	effect    *Effect
	effectGen uint64
	world     mgl32.Mat4
}

func stampOf(va VisibleActor) mergeStamp {
	a := va.Actor
	st := mergeStamp{
		actor:     a,
		name:      a.DisplayName(),
		geomGen:   a.Geometry.Generation(),
		effect:    a.Effect,
		effectGen: a.Effect.Generation(),
		world:     va.WorldTransform(),
	}
	if a.Geometry != nil {
		st.geomOpts = a.Geometry.BVHOptions
	}
	return st
}

type mergedEntry struct {
	opts   bvh.Options
	stamp  []mergeStamp
	merged *bvh.Merged
	info   MergeInfo
}

// Scene wraps a root group with the per-frame state a renderer needs:
// visible actors, world bounds, a top level BVH over those bounds and the
// merged per-primitive-type BVHs.
type Scene struct {
	Root       *Actors
	BVHOptions bvh.Options

	Visible        []VisibleActor
	VisibleInFrust []VisibleActor
	// TLAS indexes the world bounds of VisibleInFrust.
	TLAS      []bvh.BVHNode
	TLASOrder []int32

	merged map[bvh.PrimitiveType]*mergedEntry
}

func NewScene(root *Actors) *Scene {
	if root == nil {
		root = NewActors("root")
	}
	return &Scene{
		Root:       root,
		BVHOptions: bvh.DefaultOptions(),
		merged:     map[bvh.PrimitiveType]*mergedEntry{},
	}
}

// Commit refreshes world bounds and frustum culling. With a nil planes
// pointer nothing is culled.
func (s *Scene) Commit(planes *[6]mgl32.Vec4) {
	s.Visible = s.Root.VisibleActors(mgl32.Ident4())

	anyChanged := false
	for _, va := range s.Visible {
		if va.Actor.UpdateWorldAABB(va.WorldTransform()) {
			anyChanged = true
		}
	}

	// actors without bounds have nothing to cull against and are kept
	prev := s.VisibleInFrust
	s.VisibleInFrust = nil
	for _, va := range s.Visible {
		box := va.Actor.WorldAABB
		if planes == nil || box == nil || AABBInFrustum(*box, *planes) {
			s.VisibleInFrust = append(s.VisibleInFrust, va)
		}
	}

	if !anyChanged && s.TLAS != nil && sameActors(prev, s.VisibleInFrust) {
		return
	}

	items := make([]bvh.AABBItem, 0, len(s.VisibleInFrust))
	for i, va := range s.VisibleInFrust {
		box := AABB{}
		if va.Actor.WorldAABB != nil {
			box = *va.Actor.WorldAABB
		}
		items = append(items, bvh.AABBItem{
			Min:      box.Min,
			Max:      box.Max,
			Centroid: box.Min.Add(box.Max).Mul(0.5),
			Index:    i,
		})
	}
	builder := &bvh.Builder{MaxLeafSize: 1}
	s.TLAS, s.TLASOrder = builder.Build(items)
}

func sameActors(a, b []VisibleActor) bool {
	return slices.EqualFunc(a, b, func(x, y VisibleActor) bool { return x.Actor == y.Actor })
}

// Merged returns the merged BVH for one primitive type, rebuilding it only
// when the visible set or any actor's geometry, effect, name or world matrix
// changed.
func (s *Scene) Merged(primType bvh.PrimitiveType) (*bvh.Merged, MergeInfo, error) {
	visible := s.Root.VisibleActors(mgl32.Ident4())
	stamp := make([]mergeStamp, len(visible))
	for i, va := range visible {
		stamp[i] = stampOf(va)
	}

	if e, ok := s.merged[primType]; ok && e.opts == s.BVHOptions && slices.Equal(e.stamp, stamp) {
		return e.merged, e.info, nil
	}

	merged, info, err := s.Root.MergedBVHs(primType, s.BVHOptions)
	if err != nil {
		return nil, MergeInfo{}, err
	}
	s.merged[primType] = &mergedEntry{opts: s.BVHOptions, stamp: stamp, merged: merged, info: info}
	return merged, info, nil
}

// FrustumPlanes extracts the Left, Right, Bottom, Top, Near and Far planes of
// a view-projection matrix. Normals point inside.
func FrustumPlanes(vp mgl32.Mat4) [6]mgl32.Vec4 {
	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)
	planes := [6]mgl32.Vec4{
		r3.Add(r0),
		r3.Sub(r0),
		r3.Add(r1),
		r3.Sub(r1),
		r3.Add(r2), // OpenGL-style -1..1
		r3.Sub(r2),
	}
	for i, p := range planes {
		length := p.Vec3().Len()
		if length > 0 {
			planes[i] = p.Mul(1.0 / length)
		}
	}
	return planes
}

// Frustum returns the camera planes for the given aspect ratio.
func (c *Camera) Frustum(aspect float32) [6]mgl32.Vec4 {
	return FrustumPlanes(c.PerspectiveMatrix(aspect).Mul4(c.ViewMatrix()))
}

// AABBInFrustum reports whether the box is at least partly inside the
// planes.
func AABBInFrustum(box AABB, planes [6]mgl32.Vec4) bool {
	for _, plane := range planes {
		// the corner furthest along the normal
		var p mgl32.Vec3
		for k := 0; k < 3; k++ {
			if plane[k] > 0 {
				p[k] = box.Max[k]
			} else {
				p[k] = box.Min[k]
			}
		}
		if plane.Vec3().Dot(p)+plane[3] < 0 {
			return false
		}
	}
	return true
}
