package viewport

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/gekko3d/viewport/viewrt/rt/bvh"
	"github.com/gekko3d/viewport/viewrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

var ErrInvalidScene = errors.New("viewport: invalid scene")

// SceneNode is one entry of a scene description: exactly one of Actor or
// Group is set.
type SceneNode struct {
	Actor *ActorDesc `yaml:"actor,omitempty"`
	Group *GroupDesc `yaml:"group,omitempty"`
}

type TransformDesc struct {
	Position [3]float32 `yaml:"position"`
	// Rotation is XYZ euler angles in degrees.
	Rotation [3]float32 `yaml:"rotation,omitempty"`
	// Quaternion is (w, x, y, z) and takes precedence over Rotation.
	Quaternion *[4]float32 `yaml:"quaternion,omitempty"`
	Scale      *[3]float32 `yaml:"scale,omitempty"`
}

type GroupDesc struct {
	Name        string           `yaml:"name,omitempty"`
	Visible     *bool            `yaml:"visible,omitempty"`
	Transform   *TransformDesc   `yaml:"transform,omitempty"`
	TypeID      *int             `yaml:"type_id,omitempty"`
	InstanceID  *int             `yaml:"instance_id,omitempty"`
	Children    []SceneNode      `yaml:"children,omitempty"`
	Instantiate *InstantiateDesc `yaml:"instantiate,omitempty"`
}

type InstantiateDesc struct {
	Count     int       `yaml:"count"`
	Prototype SceneNode `yaml:"prototype"`
}

type ActorDesc struct {
	Name       string         `yaml:"name,omitempty"`
	Visible    *bool          `yaml:"visible,omitempty"`
	Transform  *TransformDesc `yaml:"transform,omitempty"`
	Geometry   *GeometryDesc  `yaml:"geometry,omitempty"`
	Effect     *EffectDesc    `yaml:"effect,omitempty"`
	Pickable   *bool          `yaml:"pickable,omitempty"`
	Clickable  *bool          `yaml:"clickable,omitempty"`
	Hoverable  *bool          `yaml:"hoverable,omitempty"`
	Selectable *bool          `yaml:"selectable,omitempty"`
	RenderRank int            `yaml:"render_rank,omitempty"`
	TypeID     *int           `yaml:"type_id,omitempty"`
	InstanceID *int           `yaml:"instance_id,omitempty"`
	BBox       *BoxDesc       `yaml:"bbox,omitempty"`
}

type BoxDesc struct {
	Min [3]float32 `yaml:"min"`
	Max [3]float32 `yaml:"max"`
}

type GeometryDesc struct {
	Primitive string       `yaml:"primitive,omitempty"`
	Vertices  [][3]float32 `yaml:"vertices"`
	Normals   [][3]float32 `yaml:"normals,omitempty"`
	Indices   []uint32     `yaml:"indices"`
	Attribs   AttribsDesc  `yaml:"attribs,omitempty"`
}

type AttribsDesc struct {
	Amplitude  []float32    `yaml:"amplitude,omitempty"`
	Colors     [][4]float32 `yaml:"colors,omitempty"`
	Labels     []int32      `yaml:"labels,omitempty"`
	Texcoords0 [][2]float32 `yaml:"texcoords0,omitempty"`
}

type EffectDesc struct {
	Name     string         `yaml:"name"`
	Uniforms map[string]any `yaml:"uniforms,omitempty"`
	Textures map[string]any `yaml:"textures,omitempty"`
}

// LoadScene reads a scene description. Children listed in the file become
// declared children of their group.
func LoadScene(path string, opts bvh.Options) (*core.Actors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene: %w", err)
	}
	root, err := ParseScene(data, opts)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	return root, nil
}

// ParseScene decodes a root group description.
func ParseScene(data []byte, opts bvh.Options) (*core.Actors, error) {
	var desc GroupDesc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&desc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	if desc.Name == "" {
		desc.Name = "root"
	}
	return buildGroup(&desc, desc.Name, opts)
}

func buildNode(n *SceneNode, path string, opts bvh.Options) (core.Node, error) {
	switch {
	case n.Actor != nil && n.Group != nil:
		return nil, fmt.Errorf("%w: %s: entry has both actor and group", ErrInvalidScene, path)
	case n.Actor != nil:
		return buildActor(n.Actor, path+"/"+displayName(n.Actor.Name), opts)
	case n.Group != nil:
		return buildGroup(n.Group, path+"/"+displayName(n.Group.Name), opts)
	}
	return nil, fmt.Errorf("%w: %s: empty entry", ErrInvalidScene, path)
}

func displayName(name string) string {
	if name == "" {
		return core.AnonymousName
	}
	return name
}

func buildGroup(d *GroupDesc, path string, opts bvh.Options) (*core.Actors, error) {
	g := core.NewActors(d.Name)
	if d.Visible != nil {
		g.Visible = *d.Visible
	}
	if d.TypeID != nil {
		g.TypeID = *d.TypeID
	}
	if d.InstanceID != nil {
		g.InstanceID = *d.InstanceID
	}
	g.Transform = buildTransform(d.Transform)

	for i := range d.Children {
		child, err := buildNode(&d.Children[i], path, opts)
		if err != nil {
			return nil, err
		}
		g.AddDeclared(child)
	}

	if d.Instantiate != nil {
		if d.Instantiate.Count < 0 {
			return nil, fmt.Errorf("%w: %s: negative instance count", ErrInvalidScene, path)
		}
		proto, err := buildNode(&d.Instantiate.Prototype, path+"/prototype", opts)
		if err != nil {
			return nil, err
		}
		inst := core.NewPrototypeInstantiator(proto)
		g.SetInstantiator(inst)
		if err := inst.SetCount(d.Instantiate.Count); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return g, nil
}

func buildActor(d *ActorDesc, path string, opts bvh.Options) (*core.Actor, error) {
	a := core.NewActor(d.Name, nil, nil, buildTransform(d.Transform))
	if d.Visible != nil {
		a.Visible = *d.Visible
	}
	setBool(&a.Pickable, d.Pickable)
	setBool(&a.Clickable, d.Clickable)
	setBool(&a.Hoverable, d.Hoverable)
	setBool(&a.Selectable, d.Selectable)
	a.RenderRank = d.RenderRank
	if d.TypeID != nil {
		a.TypeID = *d.TypeID
	}
	if d.InstanceID != nil {
		a.InstanceID = *d.InstanceID
	}
	if d.BBox != nil {
		a.BBox = &core.AABB{Min: d.BBox.Min, Max: d.BBox.Max}
	}
	if d.Effect != nil {
		e := core.NewEffect(d.Effect.Name)
		for k, v := range d.Effect.Uniforms {
			e.Uniforms[k] = v
		}
		for k, v := range d.Effect.Textures {
			e.Textures[k] = v
		}
		a.Effect = e
	}
	if d.Geometry != nil {
		g, err := buildGeometry(d.Geometry, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidScene, path, err)
		}
		g.Name = d.Name
		// validate index data while the file context is known
		if _, err := g.GetOrCreateBVH(false); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		a.Geometry = g
	}
	return a, nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func buildTransform(d *TransformDesc) *core.Transform {
	if d == nil {
		return nil
	}
	t := core.NewTransform()
	t.Position = d.Position
	if q := d.Quaternion; q != nil {
		t.Rotation = mgl32.Quat{W: q[0], V: mgl32.Vec3{q[1], q[2], q[3]}}.Normalize()
	} else {
		r := d.Rotation
		t.Rotation = mgl32.AnglesToQuat(mgl32.DegToRad(r[0]), mgl32.DegToRad(r[1]), mgl32.DegToRad(r[2]), mgl32.XYZ)
	}
	if d.Scale != nil {
		t.Scale = *d.Scale
	}
	return t
}

func buildGeometry(d *GeometryDesc, opts bvh.Options) (*core.Geometry, error) {
	primType, err := bvh.ParsePrimitiveType(d.Primitive)
	if err != nil {
		return nil, err
	}
	verts := make([]mgl32.Vec3, len(d.Vertices))
	for i, v := range d.Vertices {
		verts[i] = v
	}
	g := core.NewGeometry(primType, verts, d.Indices)
	g.BVHOptions = opts
	if len(d.Normals) > 0 {
		if len(d.Normals) != len(verts) {
			return nil, fmt.Errorf("%d normals for %d vertices", len(d.Normals), len(verts))
		}
		g.Normals = make([]mgl32.Vec3, len(d.Normals))
		for i, n := range d.Normals {
			g.Normals[i] = n
		}
	}

	at := d.Attribs
	if len(at.Amplitude) > 0 {
		g.Attribs[core.AttribAmplitude] = &core.Float32Attrib{Size: 1, Data: at.Amplitude}
	}
	if len(at.Colors) > 0 {
		c := make([]mgl32.Vec4, len(at.Colors))
		for i, v := range at.Colors {
			c[i] = v
		}
		g.Attribs[core.AttribColors] = &core.Vec4Attrib{Data: c}
	}
	if len(at.Labels) > 0 {
		g.Attribs[core.AttribLabels] = &core.Int32Attrib{Data: at.Labels}
	}
	if len(at.Texcoords0) > 0 {
		tc := make([]mgl32.Vec2, len(at.Texcoords0))
		for i, v := range at.Texcoords0 {
			tc[i] = v
		}
		g.Attribs[core.AttribTexcoords0] = &core.Vec2Attrib{Data: tc}
	}
	for name, a := range g.Attribs {
		if a.Len() != len(verts) {
			return nil, fmt.Errorf("attribute %s has %d elements for %d vertices", name, a.Len(), len(verts))
		}
	}
	return g, nil
}

// MarshalScene writes the manual and declared children of root as a scene
// description. Instantiated children are left to the instantiator and are
// not written.
func MarshalScene(root *core.Actors) ([]byte, error) {
	desc := describeGroup(root)
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(desc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func describeNode(n core.Node) SceneNode {
	switch v := n.(type) {
	case *core.Actor:
		return SceneNode{Actor: describeActor(v)}
	case *core.Actors:
		return SceneNode{Group: describeGroup(v)}
	}
	panic(fmt.Sprintf("viewport: unknown node kind %T", n))
}

func describeGroup(g *core.Actors) *GroupDesc {
	d := &GroupDesc{Name: g.Name, Transform: describeTransform(g.Transform)}
	if !g.Visible {
		d.Visible = ptr(false)
	}
	for _, prov := range []core.Provenance{core.Manual, core.Declared} {
		for _, c := range g.Children(prov) {
			d.Children = append(d.Children, describeNode(c))
		}
	}
	return d
}

func describeActor(a *core.Actor) *ActorDesc {
	d := &ActorDesc{
		Name:       a.Name,
		Transform:  describeTransform(a.Transform),
		RenderRank: a.RenderRank,
	}
	if !a.Visible {
		d.Visible = ptr(false)
	}
	if !a.Pickable {
		d.Pickable = ptr(false)
	}
	if !a.Clickable {
		d.Clickable = ptr(false)
	}
	if !a.Hoverable {
		d.Hoverable = ptr(false)
	}
	if a.Selectable {
		d.Selectable = ptr(true)
	}
	if a.Effect != nil {
		d.Effect = &EffectDesc{Name: a.Effect.Name, Uniforms: a.Effect.Uniforms, Textures: a.Effect.Textures}
	}
	if g := a.Geometry; g != nil {
		gd := &GeometryDesc{Primitive: g.PrimitiveType.String(), Indices: g.Indices}
		for _, v := range g.Vertices {
			gd.Vertices = append(gd.Vertices, v)
		}
		for _, n := range g.Normals {
			gd.Normals = append(gd.Normals, n)
		}
		if at, ok := g.Attrib(core.AttribAmplitude).(*core.Float32Attrib); ok {
			gd.Attribs.Amplitude = at.Data
		}
		if at, ok := g.Attrib(core.AttribLabels).(*core.Int32Attrib); ok {
			gd.Attribs.Labels = at.Data
		}
		if at, ok := g.Attrib(core.AttribColors).(*core.Vec4Attrib); ok {
			for _, c := range at.Data {
				gd.Attribs.Colors = append(gd.Attribs.Colors, c)
			}
		}
		if at, ok := g.Attrib(core.AttribTexcoords0).(*core.Vec2Attrib); ok {
			for _, c := range at.Data {
				gd.Attribs.Texcoords0 = append(gd.Attribs.Texcoords0, c)
			}
		}
		d.Geometry = gd
	}
	return d
}

func describeTransform(t *core.Transform) *TransformDesc {
	if t == nil {
		return nil
	}
	d := &TransformDesc{Position: t.Position}
	if q := t.Rotation; !q.ApproxEqual(mgl32.QuatIdent()) {
		d.Quaternion = &[4]float32{q.W, q.V[0], q.V[1], q.V[2]}
	}
	if t.Scale != (mgl32.Vec3{1, 1, 1}) {
		s := [3]float32(t.Scale)
		d.Scale = &s
	}
	return d
}

func ptr[T any](v T) *T { return &v }
