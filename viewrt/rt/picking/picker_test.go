package picking

import (
	"testing"

	"github.com/gekko3d/viewport/viewrt/rt/bvh"
	"github.com/gekko3d/viewport/viewrt/rt/core"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const near = 0.1

// wall is a triangle in the y=depth plane facing the default camera.
func wall(name string, depth float32) *core.Actor {
	g := core.NewGeometry(bvh.Triangles,
		[]mgl32.Vec3{{-1, depth, -1}, {1, depth, -1}, {0, depth, 1}},
		[]uint32{0, 1, 2})
	return core.NewActor(name, g, nil, nil)
}

func visible(actors ...core.Node) []core.VisibleActor {
	root := core.NewActors("root")
	for _, a := range actors {
		root.AddActor(a)
	}
	return root.VisibleActors(mgl32.Ident4())
}

func TestPickCenterPixel(t *testing.T) {
	cam := core.NewCamera()
	a := wall("a", 0)

	res, err := Pick(cam, 100, 100, visible(a), 50, 50, DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, res.Hit)
	assert.Same(t, a, res.Hit.Actor)
	assert.Equal(t, []int{0}, res.Hit.IDs)
	// the ray starts on the near plane
	assert.InDelta(t, 10-near, res.Hit.Distance, 1e-4)
	assert.InDelta(t, 10-near, res.Hit.TUVs[0].X(), 1e-4)
	assert.InDelta(t, 0, res.Hit.Point.Len(), 1e-4)
	assert.InDelta(t, 1, res.Ray.Direction.Len(), 1e-6)

	// barycentric coordinates of the wall center
	u, v := res.Hit.TUVs[0].Y(), res.Hit.TUVs[0].Z()
	assert.GreaterOrEqual(t, u, float32(0))
	assert.LessOrEqual(t, u, float32(1))
	assert.GreaterOrEqual(t, v, float32(0))
	assert.LessOrEqual(t, v, float32(1))
	assert.InDelta(t, 1, (1-u-v)+u+v, 1e-6)
	assert.InDelta(t, 0.25, u, 1e-4)
	assert.InDelta(t, 0.5, v, 1e-4)
}

func TestPickMissCarriesRay(t *testing.T) {
	cam := core.NewCamera()
	res, err := Pick(cam, 100, 100, visible(wall("a", 0)), 0, 0, DefaultOptions())
	require.NoError(t, err)
	assert.Nil(t, res.Hit)

	// top left pixel points left and up
	assert.Less(t, res.Ray.Direction.X(), float32(0))
	assert.Greater(t, res.Ray.Direction.Z(), float32(0))
	assert.InDelta(t, -10+near, res.Ray.Origin.Y(), 1e-5)

	res, err = Pick(cam, 100, 100, nil, 50, 50, DefaultOptions())
	require.NoError(t, err)
	assert.Nil(t, res.Hit)
	assert.InDelta(t, 1, res.Ray.Direction.Y(), 1e-6)
}

func TestPickNearestWinsRegardlessOfOrder(t *testing.T) {
	cam := core.NewCamera()
	far := wall("far", 3)
	nearer := wall("near", -2)

	res, err := Pick(cam, 100, 100, visible(far, nearer), 50, 50, DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, res.Hit)
	assert.Same(t, nearer, res.Hit.Actor)
	assert.InDelta(t, 8-near, res.Hit.Distance, 1e-4)
}

func TestPickTieKeepsTraversalOrder(t *testing.T) {
	cam := core.NewCamera()
	first, second := wall("first", 0), wall("second", 0)

	res, err := Pick(cam, 100, 100, visible(first, second), 50, 50, DefaultOptions())
	require.NoError(t, err)
	assert.Same(t, first, res.Hit.Actor)
}

func TestPickSkipsUnpickable(t *testing.T) {
	cam := core.NewCamera()
	front, back := wall("front", -2), wall("back", 0)
	front.Pickable = false

	res, err := Pick(cam, 100, 100, visible(front, back, core.NewActor("empty", nil, nil, nil)), 50, 50, DefaultOptions())
	require.NoError(t, err)
	assert.Same(t, back, res.Hit.Actor)
}

func TestPickTransformedActorReportsWorldDistance(t *testing.T) {
	cam := core.NewCamera()
	a := wall("a", 0)
	a.Transform = core.NewTranslation(0, 5, 0)
	a.Transform.Scale = mgl32.Vec3{2, 2, 2}

	res, err := Pick(cam, 100, 100, visible(a), 50, 50, DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, res.Hit)
	assert.InDelta(t, 15-near, res.Hit.Distance, 1e-4)
	assert.InDelta(t, -7.45, res.Hit.LocalOrigin.Y(), 1e-4, "local origin is scaled down")
	assert.InDelta(t, 0.5, res.Hit.LocalDirection.Y(), 1e-5)
}

func TestPickPointsUseDistanceToOrigin(t *testing.T) {
	cam := core.NewCamera()
	pts := core.NewGeometry(bvh.Points, []mgl32.Vec3{{5, 0, 5}, {0, 0, 0.5}}, []uint32{0, 1})
	p := core.NewActor("points", pts, nil, nil)
	behind := wall("wall", 5)

	res, err := Pick(cam, 100, 100, visible(behind, p), 50, 50, DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, res.Hit)
	require.Same(t, p, res.Hit.Actor)
	assert.Equal(t, []int{1}, res.Hit.IDs)

	tuv := res.Hit.TUVs[0]
	assert.InDelta(t, 10-near, tuv.X(), 1e-4)
	assert.InDelta(t, 0.5, tuv.Y(), 1e-4)
	assert.InDelta(t, math32.Sqrt(tuv.X()*tuv.X()+0.25), tuv.Z(), 1e-4)
	assert.Equal(t, tuv.Z(), res.Hit.Distance)

	// a wall in front of the point beats it
	front := wall("front", -1)
	res, err = Pick(cam, 100, 100, visible(p, front), 50, 50, DefaultOptions())
	require.NoError(t, err)
	assert.Same(t, front, res.Hit.Actor)

	res, err = Pick(cam, 100, 100, visible(p), 50, 50, Options{PointTolerance: 0.1})
	require.NoError(t, err)
	assert.Nil(t, res.Hit)
}

func TestPickLines(t *testing.T) {
	cam := core.NewCamera()
	g := core.NewGeometry(bvh.Lines, []mgl32.Vec3{{-1, 0, 0.005}, {1, 0, 0.005}}, []uint32{0, 1})
	l := core.NewActor("line", g, nil, nil)

	res, err := Pick(cam, 100, 100, visible(l), 50, 50, DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, res.Hit)
	assert.InDelta(t, 10-near, res.Hit.Distance, 1e-3)
	assert.InDelta(t, 0.5, res.Hit.TUVs[0].Y(), 1e-3)

	res, err = Pick(cam, 100, 100, visible(l), 50, 50, Options{LineTolerance: 0.001})
	require.NoError(t, err)
	assert.Nil(t, res.Hit)
}

func TestPickPreconditions(t *testing.T) {
	cam := core.NewCamera()
	_, err := Pick(cam, 0, 100, nil, 0, 0, DefaultOptions())
	assert.ErrorIs(t, err, ErrEmptyViewport)

	bad := core.NewActor("bad", core.NewGeometry(bvh.Triangles, []mgl32.Vec3{{0, 0, 0}}, []uint32{0, 0}), nil, nil)
	res, err := Pick(cam, 100, 100, visible(bad), 50, 50, DefaultOptions())
	assert.ErrorIs(t, err, bvh.ErrIndexCount)
	assert.Nil(t, res.Hit)
}
