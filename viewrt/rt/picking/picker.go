package picking

import (
	"fmt"

	"github.com/gekko3d/viewport/viewrt/rt/bvh"
	"github.com/gekko3d/viewport/viewrt/rt/core"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

type Options struct {
	// LineTolerance caps the ray/segment distance of line hits. The BVH's
	// own tolerance applies first, so the smaller of the two wins. Zero
	// disables the cap.
	LineTolerance float32
	// PointTolerance caps the ray/point distance of point hits. Zero means
	// the nearest point always hits.
	PointTolerance float32
}

func DefaultOptions() Options {
	return Options{LineTolerance: 0.01}
}

// Hit is the winning actor of a pick. For triangles and lines IDs and TUVs
// list every primitive the ray crossed, nearest first. For points they hold
// a single entry: the vertex index and (t, distance to ray, distance to
// origin).
type Hit struct {
	Actor          *core.Actor
	IDs            []int
	TUVs           []mgl32.Vec3
	Distance       float32
	Point          mgl32.Vec3
	LocalOrigin    mgl32.Vec3
	LocalDirection mgl32.Vec3
}

// Result carries the ray even when nothing was hit.
type Result struct {
	Ray Ray
	Hit *Hit
}

// Pick casts the ray through pixel (x, y) against actors, in order, and
// returns the nearest hit. Equal distances keep the earlier actor. An error
// is only returned for invalid input such as malformed index data.
func Pick(cam *core.Camera, width, height int, actors []core.VisibleActor, x, y float32, opts Options) (Result, error) {
	ray, err := PickRay(cam, width, height, x, y)
	if err != nil {
		return Result{}, err
	}
	hit, err := PickWithRay(ray, actors, opts)
	if err != nil {
		return Result{Ray: ray}, err
	}
	return Result{Ray: ray, Hit: hit}, nil
}

// PickWithRay resolves the nearest hit for an arbitrary world ray.
func PickWithRay(ray Ray, actors []core.VisibleActor, opts Options) (*Hit, error) {
	best := math32.Inf(1)
	var winner *Hit

	for _, va := range actors {
		a := va.Actor
		if !a.CanPick() {
			continue
		}
		b, err := a.Geometry.GetOrCreateBVH(false)
		if err != nil {
			return nil, fmt.Errorf("picking %q: %w", a.DisplayName(), err)
		}
		if b == nil {
			continue
		}

		world := va.WorldTransform()
		if world.Det() == 0 {
			continue
		}
		inv := world.Inv()
		// the direction is not renormalized so local t stays a world distance
		localOrigin := mgl32.TransformCoordinate(ray.Origin, inv)
		localDir := inv.Mul4x1(ray.Direction.Vec4(0)).Vec3()

		var candidate *Hit
		switch b.Type {
		case bvh.Triangles, bvh.Lines:
			candidate = surfaceHit(b, localOrigin, localDir, opts)
		case bvh.Points:
			candidate = pointHit(b, world, ray, localOrigin, localDir, opts)
		}
		if candidate == nil || !(candidate.Distance < best) {
			continue
		}
		candidate.Actor = a
		candidate.LocalOrigin = localOrigin
		candidate.LocalDirection = localDir
		if b.Type != bvh.Points {
			candidate.Point = ray.At(candidate.Distance)
		}
		best = candidate.Distance
		winner = candidate
	}
	return winner, nil
}

func surfaceHit(b *bvh.BVH, origin, dir mgl32.Vec3, opts Options) *Hit {
	hits := b.IntersectRay(origin, dir)
	h := &Hit{}
	for _, bh := range hits {
		if b.Type == bvh.Lines && opts.LineTolerance > 0 && bh.V > opts.LineTolerance {
			continue
		}
		h.IDs = append(h.IDs, bh.ID)
		h.TUVs = append(h.TUVs, bh.TUV())
	}
	if len(h.IDs) == 0 {
		return nil
	}
	h.Distance = h.TUVs[0].X()
	return h
}

func pointHit(b *bvh.BVH, world mgl32.Mat4, ray Ray, origin, dir mgl32.Vec3, opts Options) *Hit {
	id, _, t, ok := b.NearestToRay(origin, dir)
	if !ok {
		return nil
	}
	vi := b.Indices[id]
	p := mgl32.TransformCoordinate(b.Vertices[vi], world)
	toRay := p.Sub(ray.At(t)).Len()
	if opts.PointTolerance > 0 && toRay > opts.PointTolerance {
		return nil
	}
	// sqrt(t² + d²)
	dist := p.Sub(ray.Origin).Len()
	return &Hit{
		IDs:      []int{int(vi)},
		TUVs:     []mgl32.Vec3{{t, toRay, dist}},
		Distance: dist,
		Point:    p,
	}
}
