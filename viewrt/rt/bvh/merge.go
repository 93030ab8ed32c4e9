package bvh

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrLengthMismatch        = errors.New("bvh: bvh and matrix lists differ in length")
	ErrPrimitiveTypeMismatch = errors.New("bvh: cannot merge different primitive types")
)

// Range is a half-open [Start, End) span of merged indices.
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int { return r.End - r.Start }

func (r Range) Contains(i int) bool { return i >= r.Start && i < r.End }

// PrimitiveRef locates a merged primitive in its source BVH.
type PrimitiveRef struct {
	Source int
	Local  int
}

// Merged is the result of combining per-actor BVHs in world space.
// PrimitiveOffsets and VertexOffsets have one entry per input, in input
// order; nil inputs get an empty range.
type Merged struct {
	BVH              *BVH
	Mapping          []PrimitiveRef
	PrimitiveOffsets []Range
	VertexOffsets    []Range
}

// Resolve maps a merged primitive id back to its source slot and local id.
func (m *Merged) Resolve(id int) (PrimitiveRef, bool) {
	if m == nil || id < 0 || id >= len(m.Mapping) {
		return PrimitiveRef{}, false
	}
	return m.Mapping[id], true
}

// Merge transforms every BVH's vertices by its paired matrix and builds a
// single BVH over the union of their primitives.
func Merge(bvhs []*BVH, matrices []mgl32.Mat4, opts Options) (*Merged, error) {
	if len(bvhs) != len(matrices) {
		return nil, fmt.Errorf("%w: %d bvhs, %d matrices", ErrLengthMismatch, len(bvhs), len(matrices))
	}

	m := &Merged{
		PrimitiveOffsets: make([]Range, 0, len(bvhs)),
		VertexOffsets:    make([]Range, 0, len(bvhs)),
	}

	primType, typed := Triangles, false
	totalVerts, totalIdx := 0, 0
	for i, b := range bvhs {
		if b == nil {
			continue
		}
		if typed && b.Type != primType {
			return nil, fmt.Errorf("%w: input %d is %s, expected %s", ErrPrimitiveTypeMismatch, i, b.Type, primType)
		}
		primType, typed = b.Type, true
		totalVerts += len(b.Vertices)
		totalIdx += len(b.Indices)
	}

	vertices := make([]mgl32.Vec3, 0, totalVerts)
	indices := make([]uint32, 0, totalIdx)
	for i, b := range bvhs {
		vStart, pStart := len(vertices), len(m.Mapping)
		if b != nil {
			mat := matrices[i]
			for _, v := range b.Vertices {
				vertices = append(vertices, mgl32.TransformCoordinate(v, mat))
			}
			for _, vi := range b.Indices {
				indices = append(indices, vi+uint32(vStart))
			}
			for p := 0; p < b.PrimitiveCount(); p++ {
				m.Mapping = append(m.Mapping, PrimitiveRef{Source: i, Local: p})
			}
		}
		m.VertexOffsets = append(m.VertexOffsets, Range{Start: vStart, End: len(vertices)})
		m.PrimitiveOffsets = append(m.PrimitiveOffsets, Range{Start: pStart, End: len(m.Mapping)})
	}

	if !typed {
		m.BVH = &BVH{Type: Triangles, lineTolerance: opts.LineTolerance}
		return m, nil
	}

	merged, err := Build(primType, vertices, indices, opts)
	if err != nil {
		return nil, fmt.Errorf("bvh: rebuilding merged structure: %w", err)
	}
	m.BVH = merged
	return m, nil
}
