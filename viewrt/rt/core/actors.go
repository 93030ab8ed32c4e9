package core

import (
	"fmt"

	"github.com/gekko3d/viewport/viewrt/rt/bvh"

	"github.com/go-gl/mathgl/mgl32"
)

// Provenance records which list a child of a group belongs to.
type Provenance int

const (
	// Manual children are added through AddActor.
	Manual Provenance = iota
	// Declared children come from a scene description.
	Declared
	// Instantiated children are produced by the bound Instantiator.
	Instantiated
)

func (p Provenance) String() string {
	switch p {
	case Manual:
		return "manual"
	case Declared:
		return "declared"
	case Instantiated:
		return "instantiated"
	}
	return fmt.Sprintf("Provenance(%d)", int(p))
}

type childEntry struct {
	node Node
	prov Provenance
}

// Actors is a group node. Children live in one ordered list, partitioned by
// provenance: manual first, then declared, then instantiated.
type Actors struct {
	NodeBase

	// SharedTransform is not part of the hierarchy. It is a handle callers
	// can use to reach a transform they share among actors by hand.
	SharedTransform *Transform `copier:"-"`

	children     []childEntry
	structureGen uint64
	changed      listeners[*Actors]

	instantiator Instantiator
	instSubs     []*Subscription
}

func NewActors(name string) *Actors {
	return &Actors{NodeBase: newNodeBase(name), structureGen: 1}
}

func (g *Actors) node() {}

// VisibleActor pairs an actor with the accumulated transform of its
// enclosing groups.
type VisibleActor struct {
	Actor           *Actor
	ParentTransform mgl32.Mat4
}

// WorldTransform is the parent transform times the actor's own transform.
func (v VisibleActor) WorldTransform() mgl32.Mat4 {
	return v.ParentTransform.Mul4(v.Actor.Transform.WorldTransform(true))
}

// StructureGeneration advances whenever the group or any descendant group
// changes its children, visibility or transform binding.
func (g *Actors) StructureGeneration() uint64 { return g.structureGen }

// OnActorsChanged fires after every mutation of this group's children.
func (g *Actors) OnActorsChanged(fn func(*Actors)) *Subscription {
	return g.changed.add(fn)
}

func (g *Actors) structureChanged() {
	for cur := g; cur != nil; cur = cur.parent {
		cur.structureGen++
	}
}

func (g *Actors) mutated() {
	g.structureChanged()
	g.changed.emit(g)
}

// AddActor appends n to the manual children and returns it.
func (g *Actors) AddActor(n Node) Node {
	return g.add(n, Manual)
}

// RemoveActor removes n from the manual children. It reports whether n was
// found there.
func (g *Actors) RemoveActor(n Node, destroy bool) bool {
	return g.remove(n, Manual, destroy)
}

func (g *Actors) ClearActors(destroy bool) {
	g.clear(Manual, destroy)
}

// AddDeclared appends n to the declared children.
func (g *Actors) AddDeclared(n Node) Node {
	return g.add(n, Declared)
}

func (g *Actors) RemoveDeclared(n Node, destroy bool) bool {
	return g.remove(n, Declared, destroy)
}

func (g *Actors) ClearDeclared(destroy bool) {
	g.clear(Declared, destroy)
}

func (g *Actors) add(n Node, prov Provenance) Node {
	b := n.Base()
	if b.destroyed {
		panic(fmt.Sprintf("core: adding destroyed node %q", b.DisplayName()))
	}
	if sub, ok := n.(*Actors); ok {
		for cur := g; cur != nil; cur = cur.parent {
			if cur == sub {
				panic(fmt.Sprintf("core: adding group %q into its own subtree", sub.DisplayName()))
			}
		}
	}
	if b.parent != nil {
		b.parent.detach(n)
	}

	at := len(g.children)
	for i, e := range g.children {
		if e.prov > prov {
			at = i
			break
		}
	}
	g.children = append(g.children, childEntry{})
	copy(g.children[at+1:], g.children[at:])
	g.children[at] = childEntry{node: n, prov: prov}
	b.parent = g

	g.mutated()
	return n
}

func (g *Actors) indexOf(n Node, prov Provenance) int {
	for i, e := range g.children {
		if e.node == n && e.prov == prov {
			return i
		}
	}
	return -1
}

func (g *Actors) remove(n Node, prov Provenance, destroyNode bool) bool {
	i := g.indexOf(n, prov)
	if i < 0 {
		return false
	}
	g.children = append(g.children[:i], g.children[i+1:]...)
	n.Base().parent = nil
	if destroyNode {
		destroy(n)
	}
	g.mutated()
	return true
}

func (g *Actors) clear(prov Provenance, destroyNodes bool) {
	kept := g.children[:0]
	var removed []Node
	for _, e := range g.children {
		if e.prov == prov {
			removed = append(removed, e.node)
		} else {
			kept = append(kept, e)
		}
	}
	clear(g.children[len(kept):])
	g.children = kept
	for _, n := range removed {
		n.Base().parent = nil
		if destroyNodes {
			destroy(n)
		}
	}
	g.mutated()
}

// detach removes n from whichever list holds it.
func (g *Actors) detach(n Node) {
	for _, e := range g.children {
		if e.node == n {
			g.remove(n, e.prov, false)
			return
		}
	}
}

// ProvenanceOf returns the list n belongs to.
func (g *Actors) ProvenanceOf(n Node) (Provenance, bool) {
	for _, e := range g.children {
		if e.node == n {
			return e.prov, true
		}
	}
	return 0, false
}

// Children returns the children of one provenance, in order.
func (g *Actors) Children(prov Provenance) []Node {
	var out []Node
	for _, e := range g.children {
		if e.prov == prov {
			out = append(out, e.node)
		}
	}
	return out
}

// ChildrenActors returns every direct child: manual, declared, instantiated.
func (g *Actors) ChildrenActors() []Node {
	out := make([]Node, len(g.children))
	for i, e := range g.children {
		out[i] = e.node
	}
	return out
}

func (g *Actors) Count() int { return len(g.children) }

// At returns the i-th direct child in ChildrenActors order.
func (g *Actors) At(i int) Node {
	if i < 0 || i >= len(g.children) {
		return nil
	}
	return g.children[i].node
}

// IndexOf returns the position of a direct child or -1.
func (g *Actors) IndexOf(n Node) int {
	for i, e := range g.children {
		if e.node == n {
			return i
		}
	}
	return -1
}

// VisibleActors flattens the visible subtree depth first. parent is the
// transform accumulated above this group.
func (g *Actors) VisibleActors(parent mgl32.Mat4) []VisibleActor {
	var out []VisibleActor
	g.collectVisible(parent, &out)
	return out
}

func (g *Actors) collectVisible(parent mgl32.Mat4, out *[]VisibleActor) {
	if !g.Visible {
		return
	}
	tf := parent.Mul4(g.Transform.WorldTransform(true))
	for _, e := range g.children {
		switch n := e.node.(type) {
		case *Actor:
			if n.Visible {
				*out = append(*out, VisibleActor{Actor: n, ParentTransform: tf})
			}
		case *Actors:
			n.collectVisible(tf, out)
		default:
			panic(fmt.Sprintf("core: unknown node kind %T", e.node))
		}
	}
}

// IsAnyVisibleActorDirty reports whether a visible actor below this group has
// a dirty geometry or transform. It never caches or clears anything.
func (g *Actors) IsAnyVisibleActorDirty() bool {
	if !g.Visible {
		return false
	}
	for _, e := range g.children {
		switch n := e.node.(type) {
		case *Actor:
			if n.Visible && n.IsDirty() {
				return true
			}
		case *Actors:
			if n.IsAnyVisibleActorDirty() {
				return true
			}
		default:
			panic(fmt.Sprintf("core: unknown node kind %T", e.node))
		}
	}
	return false
}

// ActorToID maps display names to positions in list. A nil list uses the
// group's own visible actors.
func (g *Actors) ActorToID(list []VisibleActor) map[string][]int {
	if list == nil {
		list = g.VisibleActors(mgl32.Ident4())
	}
	return ActorToID(list)
}

func ActorToID(list []VisibleActor) map[string][]int {
	ids := make(map[string][]int)
	for i, va := range list {
		name := va.Actor.DisplayName()
		ids[name] = append(ids[name], i)
	}
	return ids
}

// MergeInfo describes how merged primitive ids map back to actors.
type MergeInfo struct {
	IDToActors []VisibleActor
	Effects    []EffectExport
}

// MergedBVHs merges the BVHs of all visible actors of the given primitive
// type into world space. It updates the actors it visits, clearing their
// dirty flags.
func (g *Actors) MergedBVHs(primType bvh.PrimitiveType, opts bvh.Options) (*bvh.Merged, MergeInfo, error) {
	visible := g.VisibleActors(mgl32.Ident4())
	info := MergeInfo{IDToActors: visible}

	bvhs := make([]*bvh.BVH, len(visible))
	mats := make([]mgl32.Mat4, len(visible))
	for i, va := range visible {
		a := va.Actor
		a.Update()
		mats[i] = va.WorldTransform()
		info.Effects = append(info.Effects, exportEffect(a.Effect, a.Geometry))

		b, err := a.Geometry.GetOrCreateBVH(false)
		if err != nil {
			return nil, MergeInfo{}, fmt.Errorf("actor %q: %w", a.DisplayName(), err)
		}
		if b != nil && b.Type == primType {
			bvhs[i] = b
		}
	}

	merged, err := bvh.Merge(bvhs, mats, opts)
	if err != nil {
		return nil, MergeInfo{}, err
	}
	if merged.BVH.PrimitiveCount() == 0 && merged.BVH.Type != primType {
		empty, _ := bvh.Build(primType, nil, nil, opts)
		merged.BVH = empty
	}
	return merged, info, nil
}
