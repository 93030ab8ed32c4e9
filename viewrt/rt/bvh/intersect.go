package bvh

import (
	"sort"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	rayEpsilon = 1e-7
	// parallelEpsilon bounds the sine of the angle between the ray and the
	// triangle plane, so the test does not depend on the triangle size.
	parallelEpsilon = 1e-6
)

// Hit is one ray/primitive intersection. For TRIANGLES (U, V) are the
// barycentric coordinates of vertices 1 and 2; for LINES U is the parameter
// along the segment and V the ray/segment distance.
type Hit struct {
	ID int
	T  float32
	U  float32
	V  float32
}

// TUV packs the hit coordinates the way event payloads carry them.
func (h Hit) TUV() mgl32.Vec3 {
	return mgl32.Vec3{h.T, h.U, h.V}
}

// IntersectRay returns every primitive hit by the ray, sorted by T then ID.
// Only hits in front of the origin (T > 0) are reported. dir need not be
// normalized; T is expressed in units of dir.
func (b *BVH) IntersectRay(origin, dir mgl32.Vec3) []Hit {
	if b == nil || len(b.Nodes) == 0 || b.Type == Points {
		return nil
	}

	pad := float32(0)
	if b.Type == Lines {
		pad = b.lineTolerance
	}

	var hits []Hit
	stack := []int32{0}
	for len(stack) > 0 {
		ni := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &b.Nodes[ni]

		if _, _, ok := intersectAABB(origin, dir, n.Min, n.Max, pad); !ok {
			continue
		}
		if !n.IsLeaf() {
			stack = append(stack, n.Right, n.Left)
			continue
		}
		for _, p := range b.Order[n.LeafFirst : n.LeafFirst+n.LeafCount] {
			if h, ok := b.intersectPrimitive(int(p), origin, dir); ok {
				hits = append(hits, h)
			}
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].T != hits[j].T {
			return hits[i].T < hits[j].T
		}
		return hits[i].ID < hits[j].ID
	})
	return hits
}

func (b *BVH) intersectPrimitive(p int, origin, dir mgl32.Vec3) (Hit, bool) {
	prim := b.Primitive(p)
	switch b.Type {
	case Triangles:
		t, u, v, ok := IntersectTriangle(origin, dir, b.Vertices[prim[0]], b.Vertices[prim[1]], b.Vertices[prim[2]])
		return Hit{ID: p, T: t, U: u, V: v}, ok
	case Lines:
		t, s, d := ClosestRaySegment(origin, dir, b.Vertices[prim[0]], b.Vertices[prim[1]])
		if t <= 0 || d > b.lineTolerance {
			return Hit{}, false
		}
		return Hit{ID: p, T: t, U: s, V: d}, true
	}
	return Hit{}, false
}

// NearestToRay finds the point primitive with the smallest perpendicular
// distance to the ray. t is the ray parameter of the closest approach,
// clamped to 0 for points behind the origin. Equal distances resolve to the
// lower primitive id. ok is false for an empty BVH.
func (b *BVH) NearestToRay(origin, dir mgl32.Vec3) (id int, distance, t float32, ok bool) {
	if b == nil || len(b.Nodes) == 0 {
		return 0, 0, 0, false
	}

	best := math32.Inf(1)
	bestID, bestT := -1, float32(0)

	var visit func(ni int32)
	visit = func(ni int32) {
		n := &b.Nodes[ni]
		if boxRayLowerBound(origin, dir, n.Min, n.Max) > best {
			return
		}
		if n.IsLeaf() {
			for _, p := range b.Order[n.LeafFirst : n.LeafFirst+n.LeafCount] {
				v := b.Vertices[b.Indices[int(p)*b.Type.Arity()]]
				d, pt := PointRayDistance(origin, dir, v)
				if d < best || (d == best && int(p) < bestID) {
					best, bestID, bestT = d, int(p), pt
				}
			}
			return
		}
		l, r := n.Left, n.Right
		ln, rn := &b.Nodes[l], &b.Nodes[r]
		if boxRayLowerBound(origin, dir, rn.Min, rn.Max) < boxRayLowerBound(origin, dir, ln.Min, ln.Max) {
			l, r = r, l
		}
		visit(l)
		visit(r)
	}
	visit(0)

	if bestID < 0 {
		return 0, 0, 0, false
	}
	return bestID, best, bestT, true
}

// IntersectTriangle is the Möller-Trumbore test. u and v weight vertices
// b and c; a gets 1-u-v.
func IntersectTriangle(origin, dir, a, b, c mgl32.Vec3) (t, u, v float32, ok bool) {
	edge1 := b.Sub(a)
	edge2 := c.Sub(a)
	h := dir.Cross(edge2)
	det := edge1.Dot(h)
	if math32.Abs(det) <= parallelEpsilon*edge1.Len()*edge2.Len()*dir.Len() {
		return 0, 0, 0, false // parallel or degenerate
	}

	f := 1 / det
	s := origin.Sub(a)
	u = f * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}

	q := s.Cross(edge1)
	v = f * dir.Dot(q)
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}

	t = f * edge2.Dot(q)
	if t <= rayEpsilon {
		return 0, 0, 0, false
	}
	return t, u, v, true
}

// ClosestRaySegment returns the ray parameter t >= 0 and segment parameter
// s in [0,1] of the closest approach, and the distance between the points.
func ClosestRaySegment(origin, dir, a, b mgl32.Vec3) (t, s, distance float32) {
	e := b.Sub(a)
	w0 := origin.Sub(a)
	A := dir.Dot(dir)
	B := dir.Dot(e)
	C := e.Dot(e)
	D := dir.Dot(w0)
	E := e.Dot(w0)

	segParam := func(t float32) float32 {
		if C <= rayEpsilon {
			return 0
		}
		return mgl32.Clamp((E+t*B)/C, 0, 1)
	}

	denom := A*C - B*B
	if denom <= rayEpsilon*A*C || A <= rayEpsilon {
		s = segParam(0)
	} else {
		s = mgl32.Clamp((A*E-B*D)/denom, 0, 1)
	}
	if A > rayEpsilon {
		t = (B*s - D) / A
	}
	if t < 0 {
		t = 0
		s = segParam(0)
	}

	pr := origin.Add(dir.Mul(t))
	ps := a.Add(e.Mul(s))
	return t, s, pr.Sub(ps).Len()
}

// PointRayDistance returns the distance from p to the ray and the ray
// parameter of the closest point.
func PointRayDistance(origin, dir, p mgl32.Vec3) (distance, t float32) {
	dd := dir.Dot(dir)
	if dd > 0 {
		t = p.Sub(origin).Dot(dir) / dd
	}
	if t < 0 {
		t = 0
	}
	return p.Sub(origin.Add(dir.Mul(t))).Len(), t
}

// intersectAABB is the slab test. The box is padded by pad on every side.
func intersectAABB(origin, dir, minB, maxB mgl32.Vec3, pad float32) (tMin, tMax float32, ok bool) {
	tMin = math32.Inf(-1)
	tMax = math32.Inf(1)
	for axis := 0; axis < 3; axis++ {
		lo, hi := minB[axis]-pad, maxB[axis]+pad
		if dir[axis] == 0 {
			if origin[axis] < lo || origin[axis] > hi {
				return 0, 0, false
			}
			continue
		}
		inv := 1 / dir[axis]
		t1 := (lo - origin[axis]) * inv
		t2 := (hi - origin[axis]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = max(tMin, t1)
		tMax = min(tMax, t2)
	}
	if tMax < tMin || tMax < 0 {
		return 0, 0, false
	}
	return tMin, tMax, true
}

// boxRayLowerBound bounds from below the distance between the ray and any
// point of the box, using the box's bounding sphere.
func boxRayLowerBound(origin, dir, minB, maxB mgl32.Vec3) float32 {
	center := minB.Add(maxB).Mul(0.5)
	radius := maxB.Sub(minB).Len() * 0.5
	d, _ := PointRayDistance(origin, dir, center)
	return max(0, d-radius)
}
