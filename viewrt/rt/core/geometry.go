package core

import (
	"fmt"
	"sort"

	"github.com/gekko3d/viewport/viewrt/rt/bvh"

	"github.com/go-gl/mathgl/mgl32"
)

// Well known attribute names.
const (
	AttribAmplitude  = "amplitude"
	AttribColors     = "colors"
	AttribLabels     = "labels"
	AttribTexcoords0 = "texcoords0"
)

// Attrib is one named per-vertex array of a geometry.
type Attrib interface {
	// Len is the number of elements (not components).
	Len() int
	// Components per element.
	Components() int
	// Values returns a flat copy for export.
	Values() any
}

type Float32Attrib struct {
	Size int
	Data []float32
}

func (a *Float32Attrib) Len() int {
	if a.Size <= 0 {
		return len(a.Data)
	}
	return len(a.Data) / a.Size
}

func (a *Float32Attrib) Components() int { return max(a.Size, 1) }
func (a *Float32Attrib) Values() any     { return append([]float32(nil), a.Data...) }

type Int32Attrib struct {
	Data []int32
}

func (a *Int32Attrib) Len() int        { return len(a.Data) }
func (a *Int32Attrib) Components() int { return 1 }
func (a *Int32Attrib) Values() any     { return append([]int32(nil), a.Data...) }

type Vec4Attrib struct {
	Data []mgl32.Vec4
}

func (a *Vec4Attrib) Len() int        { return len(a.Data) }
func (a *Vec4Attrib) Components() int { return 4 }
func (a *Vec4Attrib) Values() any     { return append([]mgl32.Vec4(nil), a.Data...) }

type Vec2Attrib struct {
	Data []mgl32.Vec2
}

func (a *Vec2Attrib) Len() int        { return len(a.Data) }
func (a *Vec2Attrib) Components() int { return 2 }
func (a *Vec2Attrib) Values() any     { return append([]mgl32.Vec2(nil), a.Data...) }

// Geometry owns vertex data and the BVH built from it. The BVH is cached
// against the geometry generation, which advances on every write made
// through the setters.
type Geometry struct {
	Name          string
	PrimitiveType bvh.PrimitiveType
	Vertices      []mgl32.Vec3
	Normals       []mgl32.Vec3
	Indices       []uint32
	Attribs       map[string]Attrib `copier:"-"`
	Dirty         bool
	BVHOptions    bvh.Options

	generation uint64
	bvhGen     uint64
	bvhOpts    bvh.Options
	bvh        *bvh.BVH
}

func NewGeometry(primType bvh.PrimitiveType, vertices []mgl32.Vec3, indices []uint32) *Geometry {
	return &Geometry{
		PrimitiveType: primType,
		Vertices:      vertices,
		Indices:       indices,
		Attribs:       map[string]Attrib{},
		Dirty:         true,
		BVHOptions:    bvh.DefaultOptions(),
		generation:    1,
	}
}

// Touch marks the geometry as modified and invalidates its BVH.
func (g *Geometry) Touch() {
	g.Dirty = true
	g.generation++
}

func (g *Geometry) Generation() uint64 {
	if g == nil {
		return 0
	}
	return g.generation
}

func (g *Geometry) SetVertices(v []mgl32.Vec3) {
	g.Vertices = v
	g.Touch()
}

func (g *Geometry) SetIndices(i []uint32) {
	g.Indices = i
	g.Touch()
}

func (g *Geometry) SetNormals(n []mgl32.Vec3) {
	g.Normals = n
	g.Touch()
}

func (g *Geometry) SetPrimitiveType(p bvh.PrimitiveType) {
	g.PrimitiveType = p
	g.Touch()
}

// SetAttrib stores or, with a nil value, removes a named attribute.
func (g *Geometry) SetAttrib(name string, a Attrib) {
	if g.Attribs == nil {
		g.Attribs = map[string]Attrib{}
	}
	if a == nil {
		delete(g.Attribs, name)
	} else {
		g.Attribs[name] = a
	}
	g.Touch()
}

func (g *Geometry) Attrib(name string) Attrib {
	if g == nil {
		return nil
	}
	return g.Attribs[name]
}

// AttribNames returns the attribute names in sorted order.
func (g *Geometry) AttribNames() []string {
	names := make([]string, 0, len(g.Attribs))
	for n := range g.Attribs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Update clears the dirty flag.
func (g *Geometry) Update() {
	if g != nil {
		g.Dirty = false
	}
}

// HasPrimitives reports whether the geometry carries anything to index.
func (g *Geometry) HasPrimitives() bool {
	return g != nil && len(g.Vertices) > 0 && len(g.Indices) > 0
}

// GetOrCreateBVH returns the cached BVH while the geometry is unchanged.
// It returns nil without error when there is nothing to index.
func (g *Geometry) GetOrCreateBVH(forceRebuild bool) (*bvh.BVH, error) {
	if g == nil {
		return nil, nil
	}
	if !g.HasPrimitives() {
		g.bvh = nil
		return nil, nil
	}
	opts := g.BVHOptions
	if opts == (bvh.Options{}) {
		opts = bvh.DefaultOptions()
	}
	if !forceRebuild && g.bvh != nil && g.bvhGen == g.generation && g.bvhOpts == opts {
		return g.bvh, nil
	}

	b, err := bvh.Build(g.PrimitiveType, g.Vertices, g.Indices, opts)
	if err != nil {
		return nil, fmt.Errorf("geometry %q: %w", g.Name, err)
	}
	g.bvh = b
	g.bvhGen = g.generation
	g.bvhOpts = opts
	return b, nil
}

// Bounds returns the local AABB of the indexed vertices.
func (g *Geometry) Bounds() (mgl32.Vec3, mgl32.Vec3, bool) {
	if !g.HasPrimitives() {
		return mgl32.Vec3{}, mgl32.Vec3{}, false
	}
	inf := float32(1e20)
	minB := mgl32.Vec3{inf, inf, inf}
	maxB := mgl32.Vec3{-inf, -inf, -inf}
	for _, i := range g.Indices {
		if int(i) >= len(g.Vertices) {
			continue
		}
		v := g.Vertices[i]
		minB = mgl32.Vec3{min(minB.X(), v.X()), min(minB.Y(), v.Y()), min(minB.Z(), v.Z())}
		maxB = mgl32.Vec3{max(maxB.X(), v.X()), max(maxB.Y(), v.Y()), max(maxB.Z(), v.Z())}
	}
	return minB, maxB, minB.X() <= maxB.X()
}
