package core

import (
	"fmt"
	"maps"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

// InstanceEvent reports an object entering or leaving an Instantiator.
type InstanceEvent struct {
	Index int
	Node  Node
}

// Instantiator is a source of nodes a group hosts in its instantiated list.
type Instantiator interface {
	OnObjectAdded(fn func(InstanceEvent)) *Subscription
	OnObjectRemoved(fn func(InstanceEvent)) *Subscription
}

// SetInstantiator binds the group to inst, disconnecting the previous
// source. Nodes the previous source already added stay in place.
func (g *Actors) SetInstantiator(inst Instantiator) {
	for _, s := range g.instSubs {
		s.Cancel()
	}
	g.instSubs = nil
	g.instantiator = inst
	if inst == nil {
		return
	}
	g.instSubs = append(g.instSubs,
		inst.OnObjectAdded(func(ev InstanceEvent) { g.add(ev.Node, Instantiated) }),
		inst.OnObjectRemoved(func(ev InstanceEvent) { g.remove(ev.Node, Instantiated, true) }),
	)
}

func (g *Actors) Instantiator() Instantiator { return g.instantiator }

// PrototypeInstantiator produces deep copies of a prototype node.
type PrototypeInstantiator struct {
	Prototype Node

	objects []Node
	added   listeners[InstanceEvent]
	removed listeners[InstanceEvent]
}

func NewPrototypeInstantiator(prototype Node) *PrototypeInstantiator {
	return &PrototypeInstantiator{Prototype: prototype}
}

func (p *PrototypeInstantiator) OnObjectAdded(fn func(InstanceEvent)) *Subscription {
	return p.added.add(fn)
}

func (p *PrototypeInstantiator) OnObjectRemoved(fn func(InstanceEvent)) *Subscription {
	return p.removed.add(fn)
}

func (p *PrototypeInstantiator) Count() int { return len(p.objects) }

func (p *PrototypeInstantiator) ObjectAt(i int) Node {
	if i < 0 || i >= len(p.objects) {
		return nil
	}
	return p.objects[i]
}

// SetCount grows the object list by cloning the prototype, or shrinks it
// from the end. Each new clone has InstanceID set to its index.
func (p *PrototypeInstantiator) SetCount(n int) error {
	if n < 0 {
		return fmt.Errorf("instantiator: negative count %d", n)
	}
	for len(p.objects) > n {
		i := len(p.objects) - 1
		obj := p.objects[i]
		p.objects = p.objects[:i]
		p.removed.emit(InstanceEvent{Index: i, Node: obj})
	}
	for len(p.objects) < n {
		clone, err := CloneNode(p.Prototype)
		if err != nil {
			return err
		}
		i := len(p.objects)
		clone.Base().InstanceID = i
		p.objects = append(p.objects, clone)
		p.added.emit(InstanceEvent{Index: i, Node: clone})
	}
	return nil
}

var deepCopy = copier.Option{DeepCopy: true}

// CloneNode deep copies a node and its manual and declared subtree. The
// clone has fresh ids, no parent, no subscriptions and no instantiator.
func CloneNode(n Node) (Node, error) {
	switch v := n.(type) {
	case *Actor:
		return cloneActor(v)
	case *Actors:
		return cloneActors(v)
	case nil:
		return nil, fmt.Errorf("instantiator: no prototype")
	}
	panic(fmt.Sprintf("core: unknown node kind %T", n))
}

// copyNode copies exported state with copier and resets the bookkeeping it
// drags along, since copier also copies unexported fields shallowly.
func copyNode(dst, src any, dstBase, srcBase *NodeBase) error {
	if err := copier.CopyWithOption(dst, src, deepCopy); err != nil {
		return fmt.Errorf("cloning %q: %w", srcBase.DisplayName(), err)
	}
	dstBase.ID = uuid.New()
	dstBase.Transform = CloneTransform(srcBase.Transform)
	dstBase.parent = nil
	dstBase.destroyed = false
	dstBase.onDestroy = listeners[Node]{}
	return nil
}

func cloneActor(src *Actor) (*Actor, error) {
	a := &Actor{}
	if err := copyNode(a, src, &a.NodeBase, &src.NodeBase); err != nil {
		return nil, err
	}
	a.events = eventTable{}
	a.Geometry = CloneGeometry(src.Geometry)
	a.Effect = CloneEffect(src.Effect)
	a.WorldAABB = nil
	a.bounds = boundsStamp{}
	if src.BBox != nil {
		box := *src.BBox
		a.BBox = &box
	}
	a.Selected = false
	a.MouseOver = false
	return a, nil
}

func cloneActors(src *Actors) (*Actors, error) {
	g := NewActors(src.Name)
	if err := copyNode(&g.NodeBase, &src.NodeBase, &g.NodeBase, &src.NodeBase); err != nil {
		return nil, err
	}
	g.SharedTransform = src.SharedTransform
	for _, e := range src.children {
		if e.prov == Instantiated {
			continue
		}
		child, err := CloneNode(e.node)
		if err != nil {
			return nil, err
		}
		g.add(child, e.prov)
	}
	return g, nil
}

// CloneTransform copies t. The Parent link is shared, not copied.
func CloneTransform(t *Transform) *Transform {
	if t == nil {
		return nil
	}
	out := NewTransform()
	_ = copier.CopyWithOption(out, t, deepCopy)
	out.Parent = t.Parent
	out.Dirty = true
	return out
}

// CloneGeometry copies vertex data and attributes. The BVH is rebuilt on
// demand.
func CloneGeometry(g *Geometry) *Geometry {
	if g == nil {
		return nil
	}
	out := NewGeometry(g.PrimitiveType, nil, nil)
	_ = copier.CopyWithOption(out, g, deepCopy)
	out.Dirty = true
	out.generation = 1
	out.bvh = nil
	out.bvhGen = 0
	out.Attribs = make(map[string]Attrib, len(g.Attribs))
	for name, a := range g.Attribs {
		out.Attribs[name] = cloneAttrib(a)
	}
	return out
}

func cloneAttrib(a Attrib) Attrib {
	switch v := a.(type) {
	case *Float32Attrib:
		return &Float32Attrib{Size: v.Size, Data: append([]float32(nil), v.Data...)}
	case *Int32Attrib:
		return &Int32Attrib{Data: append([]int32(nil), v.Data...)}
	case *Vec4Attrib:
		return &Vec4Attrib{Data: append(v.Data[:0:0], v.Data...)}
	case *Vec2Attrib:
		return &Vec2Attrib{Data: append(v.Data[:0:0], v.Data...)}
	}
	// unknown implementations are shared
	return a
}

func CloneEffect(e *Effect) *Effect {
	if e == nil {
		return nil
	}
	return &Effect{
		Name:       e.Name,
		Uniforms:   maps.Clone(e.Uniforms),
		Textures:   maps.Clone(e.Textures),
		generation: 1,
	}
}
