package viewport

import (
	"fmt"
	"strings"

	"github.com/gekko3d/viewport/viewrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// ActorsModel exposes a scene graph as a tree of rows for item views.
// Groups have one row per child; actors are leaves.
type ActorsModel struct {
	Root *core.Actors
}

func NewActorsModel(root *core.Actors) *ActorsModel {
	return &ActorsModel{Root: root}
}

func (m *ActorsModel) group(parent core.Node) *core.Actors {
	if parent == nil {
		return m.Root
	}
	g, _ := parent.(*core.Actors)
	return g
}

// RowCount is the number of children of parent; nil means the root.
func (m *ActorsModel) RowCount(parent core.Node) int {
	g := m.group(parent)
	if g == nil {
		return 0
	}
	return g.Count()
}

// Child returns the node at row under parent, or nil when out of range.
func (m *ActorsModel) Child(parent core.Node, row int) core.Node {
	g := m.group(parent)
	if g == nil {
		return nil
	}
	return g.At(row)
}

// ParentOf returns the group holding n. Children of the root and nodes
// outside the model report nil.
func (m *ActorsModel) ParentOf(n core.Node) core.Node {
	p := n.Base().Parent()
	if p == nil || p == m.Root {
		return nil
	}
	return p
}

// Row is the position of n under its parent, or -1.
func (m *ActorsModel) Row(n core.Node) int {
	p := n.Base().Parent()
	if p == nil {
		return -1
	}
	return p.IndexOf(n)
}

func (m *ActorsModel) ActorToID() map[string][]int {
	return m.Root.ActorToID(nil)
}

var (
	nodeProperties  = []string{"name", "visible", "type_id", "instance_id", "position", "scale", "rotation"}
	actorProperties = []string{"pickable", "clickable", "hoverable", "selectable", "selected", "render_rank"}
	// derived from the ancestors; SetProperty rejects them
	derivedProperties = []string{"effectively_visible", "world_position"}
)

// PropertyNames lists the properties Property and SetProperty accept for n.
func (m *ActorsModel) PropertyNames(n core.Node) []string {
	names := append([]string(nil), nodeProperties...)
	if _, ok := n.(*core.Actor); ok {
		names = append(names, actorProperties...)
	}
	return append(names, derivedProperties...)
}

// Property reads a property by name.
func (m *ActorsModel) Property(n core.Node, name string) (any, bool) {
	b := n.Base()
	switch name {
	case "name":
		return b.Name, true
	case "visible":
		return b.Visible, true
	case "type_id":
		return b.TypeID, true
	case "instance_id":
		return b.InstanceID, true
	case "position":
		if b.Transform == nil {
			return mgl32.Vec3{}, true
		}
		return b.Transform.Position, true
	case "scale":
		if b.Transform == nil {
			return mgl32.Vec3{1, 1, 1}, true
		}
		return b.Transform.Scale, true
	case "rotation":
		if b.Transform == nil {
			return mgl32.QuatIdent(), true
		}
		return b.Transform.Rotation, true
	case "effectively_visible":
		return b.EffectivelyVisible(), true
	case "world_position":
		return mgl32.TransformCoordinate(mgl32.Vec3{}, b.WorldTransform()), true
	}
	a, ok := n.(*core.Actor)
	if !ok {
		return nil, false
	}
	switch name {
	case "pickable":
		return a.Pickable, true
	case "clickable":
		return a.Clickable, true
	case "hoverable":
		return a.Hoverable, true
	case "selectable":
		return a.Selectable, true
	case "selected":
		return a.Selected, true
	case "render_rank":
		return a.RenderRank, true
	}
	return nil, false
}

// PropertyString formats a property for display.
func (m *ActorsModel) PropertyString(n core.Node, name string) (string, bool) {
	v, ok := m.Property(n, name)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case mgl32.Vec3:
		return fmt.Sprintf("[%g, %g, %g]", t[0], t[1], t[2]), true
	case mgl32.Quat:
		return fmt.Sprintf("[%g, %g, %g, %g]", t.W, t.V[0], t.V[1], t.V[2]), true
	}
	return fmt.Sprint(v), true
}

// SetProperty parses value and writes it. Vectors are written as flow
// sequences ("[1, 2, 3]"), rotations as quaternions "[w, x, y, z]". It
// returns false and leaves n untouched when the name is unknown or the value
// does not parse.
func (m *ActorsModel) SetProperty(n core.Node, name, value string) bool {
	b := n.Base()
	switch name {
	case "name":
		b.Name = value
		return true
	case "visible":
		var v bool
		if !parseValue(value, &v) {
			return false
		}
		b.SetVisible(v)
		return true
	case "type_id":
		return parseValue(value, &b.TypeID)
	case "instance_id":
		return parseValue(value, &b.InstanceID)
	case "position", "scale":
		var v [3]float32
		if !parseValue(value, &v) {
			return false
		}
		t := ensureTransform(b)
		if name == "position" {
			t.SetPosition(v)
		} else {
			t.SetScale(v)
		}
		return true
	case "rotation":
		var q [4]float32
		if !parseValue(value, &q) {
			return false
		}
		rot := mgl32.Quat{W: q[0], V: mgl32.Vec3{q[1], q[2], q[3]}}
		if rot.Len() == 0 {
			return false
		}
		ensureTransform(b).SetRotation(rot.Normalize())
		return true
	}

	a, ok := n.(*core.Actor)
	if !ok {
		return false
	}
	switch name {
	case "pickable":
		return parseValue(value, &a.Pickable)
	case "clickable":
		return parseValue(value, &a.Clickable)
	case "hoverable":
		return parseValue(value, &a.Hoverable)
	case "selectable":
		return parseValue(value, &a.Selectable)
	case "selected":
		return parseValue(value, &a.Selected)
	case "render_rank":
		return parseValue(value, &a.RenderRank)
	}
	return false
}

func ensureTransform(b *core.NodeBase) *core.Transform {
	if b.Transform == nil {
		b.SetTransform(core.NewTransform())
	}
	return b.Transform
}

// parseValue decodes a YAML scalar or flow sequence into dst. dst is only
// written on success.
func parseValue[T any](value string, dst *T) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	var v T
	if err := yaml.Unmarshal([]byte(value), &v); err != nil {
		return false
	}
	*dst = v
	return true
}
