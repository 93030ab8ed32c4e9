package bvh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildQuad(t *testing.T, depth float32) *BVH {
	t.Helper()
	verts, idx := quad(depth)
	b, err := Build(Triangles, verts, idx, DefaultOptions())
	require.NoError(t, err)
	return b
}

func TestMergeEmpty(t *testing.T) {
	m, err := Merge(nil, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, m.PrimitiveOffsets)
	assert.Empty(t, m.VertexOffsets)
	assert.Empty(t, m.Mapping)
	assert.Equal(t, 0, m.BVH.PrimitiveCount())
	assert.Empty(t, m.BVH.IntersectRay(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, -1}))
}

func TestMergeOffsetsPartition(t *testing.T) {
	inputs := []*BVH{buildQuad(t, 0), nil, buildQuad(t, 0), buildQuad(t, 0)}
	mats := []mgl32.Mat4{
		mgl32.Ident4(),
		mgl32.Ident4(),
		mgl32.Translate3D(10, 0, 0),
		mgl32.Translate3D(0, 0, -4),
	}

	m, err := Merge(inputs, mats, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, m.VertexOffsets, len(inputs))
	require.Len(t, m.PrimitiveOffsets, len(inputs))

	vCursor, pCursor := 0, 0
	for i := range inputs {
		assert.Equal(t, vCursor, m.VertexOffsets[i].Start, "vertex range %d", i)
		assert.Equal(t, pCursor, m.PrimitiveOffsets[i].Start, "primitive range %d", i)
		vCursor = m.VertexOffsets[i].End
		pCursor = m.PrimitiveOffsets[i].End
	}
	assert.Equal(t, len(m.BVH.Vertices), vCursor)
	assert.Equal(t, m.BVH.PrimitiveCount(), pCursor)
	assert.Equal(t, 0, m.VertexOffsets[1].Len(), "nil input keeps an empty slot")
	assert.Equal(t, 6, pCursor)

	for id := 0; id < pCursor; id++ {
		ref, ok := m.Resolve(id)
		require.True(t, ok)
		assert.True(t, m.PrimitiveOffsets[ref.Source].Contains(id))
		assert.Equal(t, id-m.PrimitiveOffsets[ref.Source].Start, ref.Local)
	}
	_, ok := m.Resolve(pCursor)
	assert.False(t, ok)
}

func TestMergeTransformsIntoWorldSpace(t *testing.T) {
	m, err := Merge([]*BVH{buildQuad(t, 0), buildQuad(t, 0)},
		[]mgl32.Mat4{mgl32.Ident4(), mgl32.Translate3D(10, 0, 0)}, DefaultOptions())
	require.NoError(t, err)

	hits := m.BVH.IntersectRay(mgl32.Vec3{10.5, -0.5, 3}, mgl32.Vec3{0, 0, -1})
	require.NotEmpty(t, hits)
	ref, ok := m.Resolve(hits[0].ID)
	require.True(t, ok)
	assert.Equal(t, 1, ref.Source)
	assert.InDelta(t, 3, hits[0].T, 1e-5)
}

func TestMergeRejectsMismatches(t *testing.T) {
	_, err := Merge([]*BVH{buildQuad(t, 0)}, nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrLengthMismatch)

	pts, err := Build(Points, []mgl32.Vec3{{0, 0, 0}}, []uint32{0}, DefaultOptions())
	require.NoError(t, err)
	_, err = Merge([]*BVH{buildQuad(t, 0), pts}, []mgl32.Mat4{mgl32.Ident4(), mgl32.Ident4()}, DefaultOptions())
	assert.ErrorIs(t, err, ErrPrimitiveTypeMismatch)
}
