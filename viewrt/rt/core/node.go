package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

const AnonymousName = "anonymous"

// Node is either an *Actor or an *Actors group. The set is closed.
type Node interface {
	Base() *NodeBase
	node()
}

// NodeBase holds the state shared by actors and groups.
type NodeBase struct {
	ID         uuid.UUID `copier:"-"`
	Name       string
	Visible    bool
	Transform  *Transform `copier:"-"`
	TypeID     int
	InstanceID int

	parent    *Actors
	destroyed bool
	onDestroy listeners[Node]
}

func newNodeBase(name string) NodeBase {
	return NodeBase{
		ID:         uuid.New(),
		Name:       name,
		Visible:    true,
		TypeID:     -1,
		InstanceID: -1,
	}
}

func (n *NodeBase) Base() *NodeBase { return n }

// DisplayName is the name used for id tables and the tree model.
func (n *NodeBase) DisplayName() string {
	if n.Name == "" {
		return AnonymousName
	}
	return n.Name
}

func (n *NodeBase) Parent() *Actors { return n.parent }

func (n *NodeBase) IsDestroyed() bool { return n.destroyed }

// SetVisible changes visibility and advances the owning group's structure
// generation.
func (n *NodeBase) SetVisible(v bool) {
	if n.Visible == v {
		return
	}
	n.Visible = v
	if n.parent != nil {
		n.parent.structureChanged()
	}
}

// SetTransform replaces the node transform. A nil transform is identity.
func (n *NodeBase) SetTransform(t *Transform) {
	n.Transform = t
	if n.parent != nil {
		n.parent.structureChanged()
	}
}

// EffectivelyVisible is the conjunction of the visibility flags from the
// node up to the root.
func (n *NodeBase) EffectivelyVisible() bool {
	for cur := n; cur != nil; {
		if !cur.Visible {
			return false
		}
		if cur.parent == nil {
			break
		}
		cur = &cur.parent.NodeBase
	}
	return true
}

// ParentWorldTransform composes the transforms of every enclosing group.
func (n *NodeBase) ParentWorldTransform() mgl32.Mat4 {
	if n.parent == nil {
		return mgl32.Ident4()
	}
	return n.parent.WorldTransform()
}

// WorldTransform is the parent world transform times the node transform.
func (n *NodeBase) WorldTransform() mgl32.Mat4 {
	return n.ParentWorldTransform().Mul4(n.Transform.WorldTransform(true))
}

// OnDestroyed registers a callback fired once when the node is destroyed.
func (n *NodeBase) OnDestroyed(fn func(Node)) *Subscription {
	return n.onDestroy.add(fn)
}

// Destroy detaches the node from its parent and destroys it. Groups destroy
// their whole subtree.
func Destroy(n Node) {
	if n == nil {
		return
	}
	if p := n.Base().parent; p != nil {
		p.detach(n)
	}
	destroy(n)
}

func destroy(n Node) {
	b := n.Base()
	if b.destroyed {
		return
	}
	switch v := n.(type) {
	case *Actor:
		v.events.clear()
	case *Actors:
		v.SetInstantiator(nil)
		children := v.children
		v.children = nil
		for _, e := range children {
			e.node.Base().parent = nil
			destroy(e.node)
		}
		v.changed.clear()
	default:
		panic(fmt.Sprintf("core: unknown node kind %T", n))
	}
	b.destroyed = true
	b.onDestroy.emit(n)
	b.onDestroy.clear()
}
