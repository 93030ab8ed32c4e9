package bvh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrIndexCount      = errors.New("bvh: index count is not a multiple of the primitive arity")
	ErrIndexOutOfRange = errors.New("bvh: index out of vertex range")
)

// DefaultMaxLeafSize is the primitive count below which a node stops splitting.
const DefaultMaxLeafSize = 4

type PrimitiveType int

const (
	Triangles PrimitiveType = iota
	Lines
	Points
)

func (p PrimitiveType) String() string {
	switch p {
	case Triangles:
		return "triangles"
	case Lines:
		return "lines"
	case Points:
		return "points"
	}
	return fmt.Sprintf("PrimitiveType(%d)", int(p))
}

// Arity is the number of indices per primitive.
func (p PrimitiveType) Arity() int {
	switch p {
	case Triangles:
		return 3
	case Lines:
		return 2
	}
	return 1
}

// ParsePrimitiveType accepts the names produced by String.
func ParsePrimitiveType(s string) (PrimitiveType, error) {
	switch s {
	case "triangles", "":
		return Triangles, nil
	case "lines":
		return Lines, nil
	case "points":
		return Points, nil
	}
	return 0, fmt.Errorf("bvh: unknown primitive type %q", s)
}

// Node record layout used by Encode:
//
//	aabb_min   : vec4<f32> (16)
//	aabb_max   : vec4<f32> (16)
//	left       : i32       (4)
//	right      : i32       (4)
//	leaf_first : i32       (4)
//	leaf_count : i32       (4)
//	padding    : i32[4]    (16) -> 64 bytes
type BVHNode struct {
	Min       mgl32.Vec3
	Max       mgl32.Vec3
	Left      int32
	Right     int32
	LeafFirst int32
	LeafCount int32
}

func (n *BVHNode) IsLeaf() bool {
	return n.Left < 0 && n.Right < 0
}

func (n *BVHNode) ToBytes() []byte {
	buf := make([]byte, 64)

	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(n.Min.X()))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(n.Min.Y()))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(n.Min.Z()))

	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(n.Max.X()))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(n.Max.Y()))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(n.Max.Z()))

	binary.LittleEndian.PutUint32(buf[32:36], uint32(n.Left))
	binary.LittleEndian.PutUint32(buf[36:40], uint32(n.Right))
	binary.LittleEndian.PutUint32(buf[40:44], uint32(n.LeafFirst))
	binary.LittleEndian.PutUint32(buf[44:48], uint32(n.LeafCount))

	return buf
}

type AABBItem struct {
	Min      mgl32.Vec3
	Max      mgl32.Vec3
	Centroid mgl32.Vec3
	Index    int
}

type Builder struct {
	MaxLeafSize int
}

// Build returns the flat node array and the primitive order referenced by
// leaf ranges. Node 0 is the root.
func (b *Builder) Build(items []AABBItem) ([]BVHNode, []int32) {
	if len(items) == 0 {
		return nil, nil
	}
	leafSize := b.MaxLeafSize
	if leafSize <= 0 {
		leafSize = DefaultMaxLeafSize
	}

	nodes := make([]BVHNode, 0, 2*len(items)/leafSize+1)
	order := make([]int32, 0, len(items))
	b.recursiveBuild(items, leafSize, &nodes, &order)
	return nodes, order
}

func (b *Builder) recursiveBuild(items []AABBItem, leafSize int, nodes *[]BVHNode, order *[]int32) int32 {
	idx := int32(len(*nodes))
	*nodes = append(*nodes, BVHNode{Left: -1, Right: -1, LeafFirst: -1, LeafCount: 0})

	minB, maxB := emptyBounds()
	cMin, cMax := emptyBounds()
	for _, it := range items {
		minB, maxB = grow(minB, maxB, it.Min, it.Max)
		cMin, cMax = grow(cMin, cMax, it.Centroid, it.Centroid)
	}

	(*nodes)[idx].Min = minB
	(*nodes)[idx].Max = maxB

	// Coincident centroids cannot be separated; keep them in one leaf.
	extent := cMax.Sub(cMin)
	if len(items) <= leafSize || (extent.X() <= 0 && extent.Y() <= 0 && extent.Z() <= 0) {
		(*nodes)[idx].LeafFirst = int32(len(*order))
		(*nodes)[idx].LeafCount = int32(len(items))
		for _, it := range items {
			*order = append(*order, int32(it.Index))
		}
		return idx
	}

	axis := 0
	if extent.Y() > extent.X() {
		axis = 1
	}
	if extent.Z() > extent[axis] {
		axis = 2
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Centroid[axis] < items[j].Centroid[axis]
	})

	mid := len(items) / 2
	left := b.recursiveBuild(items[:mid], leafSize, nodes, order)
	right := b.recursiveBuild(items[mid:], leafSize, nodes, order)
	(*nodes)[idx].Left = left
	(*nodes)[idx].Right = right

	return idx
}

// Options tune BVH construction and queries.
type Options struct {
	MaxLeafSize int
	// LineTolerance is the largest ray/segment distance that still counts
	// as a hit on a LINES primitive.
	LineTolerance float32
}

func DefaultOptions() Options {
	return Options{MaxLeafSize: DefaultMaxLeafSize, LineTolerance: 0.01}
}

// BVH is an immutable spatial index over the primitives of one geometry.
type BVH struct {
	Type     PrimitiveType
	Vertices []mgl32.Vec3
	Indices  []uint32
	Nodes    []BVHNode
	Order    []int32

	lineTolerance float32
}

// Build validates the index buffer and builds a BVH over its primitives.
func Build(primType PrimitiveType, vertices []mgl32.Vec3, indices []uint32, opts Options) (*BVH, error) {
	arity := primType.Arity()
	if len(indices)%arity != 0 {
		return nil, fmt.Errorf("%w: %d indices for %s", ErrIndexCount, len(indices), primType)
	}
	for i, vi := range indices {
		if int(vi) >= len(vertices) {
			return nil, fmt.Errorf("%w: indices[%d]=%d, %d vertices", ErrIndexOutOfRange, i, vi, len(vertices))
		}
	}

	b := &BVH{
		Type:          primType,
		Vertices:      vertices,
		Indices:       indices,
		lineTolerance: opts.LineTolerance,
	}

	count := len(indices) / arity
	items := make([]AABBItem, count)
	for p := 0; p < count; p++ {
		minB, maxB := b.primitiveBounds(p)
		items[p] = AABBItem{
			Min:      minB,
			Max:      maxB,
			Centroid: minB.Add(maxB).Mul(0.5),
			Index:    p,
		}
	}

	builder := &Builder{MaxLeafSize: opts.MaxLeafSize}
	b.Nodes, b.Order = builder.Build(items)
	return b, nil
}

// PrimitiveCount is the number of primitives indexed by the BVH.
func (b *BVH) PrimitiveCount() int {
	if b == nil {
		return 0
	}
	return len(b.Indices) / b.Type.Arity()
}

// Primitive returns the vertex indices of primitive p.
func (b *BVH) Primitive(p int) []uint32 {
	arity := b.Type.Arity()
	return b.Indices[p*arity : (p+1)*arity]
}

// Bounds returns the root AABB. ok is false for an empty BVH.
func (b *BVH) Bounds() (minB, maxB mgl32.Vec3, ok bool) {
	if b == nil || len(b.Nodes) == 0 {
		return mgl32.Vec3{}, mgl32.Vec3{}, false
	}
	return b.Nodes[0].Min, b.Nodes[0].Max, true
}

// Encode serializes the node array. An empty BVH encodes as one empty node.
func (b *BVH) Encode() []byte {
	if b == nil || len(b.Nodes) == 0 {
		empty := BVHNode{Left: -1, Right: -1, LeafFirst: -1}
		return empty.ToBytes()
	}
	out := make([]byte, 0, 64*len(b.Nodes))
	for i := range b.Nodes {
		out = append(out, b.Nodes[i].ToBytes()...)
	}
	return out
}

func (b *BVH) primitiveBounds(p int) (mgl32.Vec3, mgl32.Vec3) {
	minB, maxB := emptyBounds()
	for _, vi := range b.Primitive(p) {
		v := b.Vertices[vi]
		minB, maxB = grow(minB, maxB, v, v)
	}
	return minB, maxB
}

func emptyBounds() (mgl32.Vec3, mgl32.Vec3) {
	inf := float32(math.Inf(1))
	return mgl32.Vec3{inf, inf, inf}, mgl32.Vec3{-inf, -inf, -inf}
}

func grow(minB, maxB, lo, hi mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	return mgl32.Vec3{min(minB.X(), lo.X()), min(minB.Y(), lo.Y()), min(minB.Z(), lo.Z())},
		mgl32.Vec3{max(maxB.X(), hi.X()), max(maxB.Y(), hi.Y()), max(maxB.Z(), hi.Z())}
}
