package bvh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quad in the z=depth plane, two triangles covering [-1,1]^2
func quad(depth float32) ([]mgl32.Vec3, []uint32) {
	return []mgl32.Vec3{
			{-1, -1, depth}, {1, -1, depth}, {1, 1, depth}, {-1, 1, depth},
		}, []uint32{
			0, 1, 2,
			0, 2, 3,
		}
}

func TestIntersectTriangleBarycentric(t *testing.T) {
	a, b, c := mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}
	tt, u, v, ok := IntersectTriangle(mgl32.Vec3{0.25, 0.25, 5}, mgl32.Vec3{0, 0, -1}, a, b, c)
	require.True(t, ok)
	assert.InDelta(t, 5, tt, 1e-5)
	assert.InDelta(t, 0.25, u, 1e-5)
	assert.InDelta(t, 0.25, v, 1e-5)
	assert.InDelta(t, 1, (1-u-v)+u+v, 1e-6)

	_, _, _, ok = IntersectTriangle(mgl32.Vec3{0.25, 0.25, 5}, mgl32.Vec3{0, 0, 1}, a, b, c)
	assert.False(t, ok, "triangle behind the origin")

	_, _, _, ok = IntersectTriangle(mgl32.Vec3{2, 2, 5}, mgl32.Vec3{0, 0, -1}, a, b, c)
	assert.False(t, ok)
}

func TestIntersectTinyTriangle(t *testing.T) {
	const e = 1e-4
	a, b, c := mgl32.Vec3{0, 0, 0}, mgl32.Vec3{e, 0, 0}, mgl32.Vec3{0, e, 0}
	tt, u, v, ok := IntersectTriangle(mgl32.Vec3{e / 4, e / 4, 1}, mgl32.Vec3{0, 0, -1}, a, b, c)
	require.True(t, ok)
	assert.InDelta(t, 1, tt, 1e-5)
	assert.InDelta(t, 0.25, u, 1e-3)
	assert.InDelta(t, 0.25, v, 1e-3)

	bv, err := Build(Triangles, []mgl32.Vec3{a, b, c}, []uint32{0, 1, 2}, DefaultOptions())
	require.NoError(t, err)
	hits := bv.IntersectRay(mgl32.Vec3{e / 4, e / 4, 1}, mgl32.Vec3{0, 0, -1})
	require.Len(t, hits, 1)

	// grazing rays are still rejected
	_, _, _, ok = IntersectTriangle(mgl32.Vec3{-1, e / 4, 0}, mgl32.Vec3{1, 0, 0}, a, b, c)
	assert.False(t, ok)
}

func TestIntersectRaySortedByT(t *testing.T) {
	v1, i1 := quad(0)
	v2, i2 := quad(-3)
	verts := append(v1, v2...)
	idx := append(i1, i2...)
	for k := len(i1); k < len(idx); k++ {
		idx[k] += uint32(len(v1))
	}

	b, err := Build(Triangles, verts, idx, Options{MaxLeafSize: 1})
	require.NoError(t, err)

	hits := b.IntersectRay(mgl32.Vec3{0.5, -0.2, 10}, mgl32.Vec3{0, 0, -1})
	require.Len(t, hits, 2)
	assert.InDelta(t, 10, hits[0].T, 1e-5)
	assert.InDelta(t, 13, hits[1].T, 1e-5)
	assert.Less(t, hits[0].ID, 2)
	assert.GreaterOrEqual(t, hits[1].ID, 2)
}

func TestIntersectRayUnnormalizedDirection(t *testing.T) {
	verts, idx := quad(0)
	b, err := Build(Triangles, verts, idx, DefaultOptions())
	require.NoError(t, err)

	hits := b.IntersectRay(mgl32.Vec3{0.1, 0.1, 10}, mgl32.Vec3{0, 0, -2})
	require.NotEmpty(t, hits)
	assert.InDelta(t, 5, hits[0].T, 1e-5)
}

func TestIntersectRayMiss(t *testing.T) {
	verts, idx := quad(0)
	b, err := Build(Triangles, verts, idx, DefaultOptions())
	require.NoError(t, err)

	assert.Empty(t, b.IntersectRay(mgl32.Vec3{5, 5, 10}, mgl32.Vec3{0, 0, -1}))
	assert.Empty(t, b.IntersectRay(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{1, 0, 0}))
}

func TestIntersectLines(t *testing.T) {
	verts := []mgl32.Vec3{{-1, 0, 0}, {1, 0, 0}, {-1, 5, 0}, {1, 5, 0}}
	b, err := Build(Lines, verts, []uint32{0, 1, 2, 3}, Options{LineTolerance: 0.05})
	require.NoError(t, err)

	hits := b.IntersectRay(mgl32.Vec3{0.5, 0.01, 4}, mgl32.Vec3{0, 0, -1})
	require.Len(t, hits, 1)
	assert.Equal(t, 0, hits[0].ID)
	assert.InDelta(t, 4, hits[0].T, 1e-4)
	assert.InDelta(t, 0.75, hits[0].U, 1e-4)
	assert.InDelta(t, 0.01, hits[0].V, 1e-4)

	assert.Empty(t, b.IntersectRay(mgl32.Vec3{0.5, 1, 4}, mgl32.Vec3{0, 0, -1}))
}

func TestClosestRaySegmentParallel(t *testing.T) {
	tt, s, d := ClosestRaySegment(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{2, 0, 0}, mgl32.Vec3{4, 0, 0})
	assert.InDelta(t, 1, d, 1e-5)
	assert.InDelta(t, 2, tt, 1e-5)
	assert.InDelta(t, 0, s, 1e-5)
}

func TestNearestToRay(t *testing.T) {
	verts := []mgl32.Vec3{
		{3, 0, -5},
		{0.5, 0, -8},
		{-0.5, 0, -2},
		{0, 0, 4}, // behind the origin
	}
	b, err := Build(Points, verts, []uint32{0, 1, 2, 3}, Options{MaxLeafSize: 1})
	require.NoError(t, err)

	id, dist, tt, ok := b.NearestToRay(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1})
	require.True(t, ok)
	// 1 and 2 tie at distance 0.5, the lower id wins
	assert.Equal(t, 1, id)
	assert.InDelta(t, 0.5, dist, 1e-5)
	assert.InDelta(t, 8, tt, 1e-5)
}

func TestNearestToRayBehindOriginClamps(t *testing.T) {
	b, err := Build(Points, []mgl32.Vec3{{0, 0, 3}}, []uint32{0}, DefaultOptions())
	require.NoError(t, err)

	id, dist, tt, ok := b.NearestToRay(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1})
	require.True(t, ok)
	assert.Equal(t, 0, id)
	assert.InDelta(t, 3, dist, 1e-5)
	assert.Equal(t, float32(0), tt)
}

func TestNearestToRayEmpty(t *testing.T) {
	b, err := Build(Points, nil, nil, DefaultOptions())
	require.NoError(t, err)
	_, _, _, ok := b.NearestToRay(mgl32.Vec3{}, mgl32.Vec3{0, 0, 1})
	assert.False(t, ok)
}

func TestSlabTestParallelAxis(t *testing.T) {
	_, _, ok := intersectAABB(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}, 0)
	assert.True(t, ok)
	_, _, ok = intersectAABB(mgl32.Vec3{2, 0, 5}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}, 0)
	assert.False(t, ok)
	_, _, ok = intersectAABB(mgl32.Vec3{2, 0, 5}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}, 1.5)
	assert.True(t, ok)
}
