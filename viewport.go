package viewport

import (
	"sort"

	"github.com/gekko3d/viewport/viewrt/rt/bvh"
	"github.com/gekko3d/viewport/viewrt/rt/core"
	"github.com/gekko3d/viewport/viewrt/rt/picking"

	"github.com/go-gl/mathgl/mgl32"
)

type Buttons uint8

const (
	ButtonLeft Buttons = 1 << iota
	ButtonMiddle
	ButtonRight
)

type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModControl
	ModAlt
)

// PointerEvent is a mouse event in viewport pixels, origin top left.
// Delta is the wheel angle delta in eighths of a degree.
type PointerEvent struct {
	X, Y      float32
	Buttons   Buttons
	Modifiers Modifiers
	Delta     float32
}

// Renderer is the part of the rendering backend the viewport talks to.
type Renderer interface {
	// SortedActors lists what is drawn, in draw order. Picking walks the
	// same list.
	SortedActors() []core.VisibleActor
	// Update requests a redraw.
	Update()
}

// RankRenderer draws the visible actors of its groups ordered by render
// rank. Actors of equal rank keep their traversal order.
type RankRenderer struct {
	scenes []*core.Scene
	// Frustum, when set, culls actors whose world bounds lie outside the
	// returned planes.
	Frustum func() [6]mgl32.Vec4
	frames  int
}

func NewRankRenderer(groups ...*core.Actors) *RankRenderer {
	r := &RankRenderer{}
	for _, g := range groups {
		r.scenes = append(r.scenes, core.NewScene(g))
	}
	return r
}

func (r *RankRenderer) SortedActors() []core.VisibleActor {
	var planes *[6]mgl32.Vec4
	if r.Frustum != nil {
		p := r.Frustum()
		planes = &p
	}
	var out []core.VisibleActor
	for _, s := range r.scenes {
		s.Commit(planes)
		out = append(out, s.VisibleInFrust...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Actor.RenderRank < out[j].Actor.RenderRank
	})
	return out
}

func (r *RankRenderer) Update() { r.frames++ }

// Redraws counts Update calls.
func (r *RankRenderer) Redraws() int { return r.frames }

// slot remembers an actor until it is replaced, cleared or destroyed.
type slot struct {
	actor *core.Actor
	sub   *core.Subscription
}

func (s *slot) set(a *core.Actor) {
	s.clear()
	s.actor = a
	s.sub = a.OnDestroyed(func(core.Node) {
		s.actor = nil
		s.sub = nil
	})
}

func (s *slot) clear() {
	s.sub.Cancel()
	s.actor = nil
	s.sub = nil
}

// Viewport turns pointer input into camera motion and actor events.
type Viewport struct {
	Camera      *core.Camera
	Root        *core.Actors
	Renderer    Renderer
	Logger      Logger
	Debug       bool
	PickOptions picking.Options
	// Background is the RGBA clear color.
	Background [4]float32

	width, height int
	debugActors   *core.Actors

	hovered  slot
	clicked  slot
	selected slot

	mouseStart  mgl32.Vec2
	startEye    mgl32.Vec3
	startUp     mgl32.Vec3
	startCenter mgl32.Vec3
}

// NewViewport builds a viewport over root using the camera, size, debug
// flag and picking tolerances of cfg. A nil logger discards output.
func NewViewport(cfg Config, root *core.Actors, logger Logger) *Viewport {
	if logger == nil {
		logger = NewNopLogger()
	}
	if root == nil {
		root = core.NewActors("root")
	}
	v := &Viewport{
		Camera:      cfg.NewCamera(),
		Root:        root,
		Logger:      logger,
		Debug:       cfg.Viewport.Debug,
		PickOptions: cfg.PickOptions(),
		Background:  cfg.Viewport.BackgroundColor,
		width:       cfg.Viewport.Width,
		height:      cfg.Viewport.Height,
		debugActors: core.NewActors("debug"),
	}
	r := NewRankRenderer(root, v.debugActors)
	r.Frustum = func() [6]mgl32.Vec4 { return v.Camera.Frustum(v.AspectRatio()) }
	v.Renderer = r
	return v
}

// Tick requests a redraw when a visible actor has pending geometry or
// transform changes, then clears them. It reports whether a redraw was
// requested.
func (v *Viewport) Tick() bool {
	if !v.Root.IsAnyVisibleActorDirty() {
		return false
	}
	for _, va := range v.Root.VisibleActors(mgl32.Ident4()) {
		va.Actor.Update()
	}
	v.Renderer.Update()
	return true
}

func (v *Viewport) Size() (int, int) { return v.width, v.height }

func (v *Viewport) Resize(width, height int) {
	v.width, v.height = width, height
	v.Renderer.Update()
}

func (v *Viewport) AspectRatio() float32 {
	if v.height == 0 {
		return 1
	}
	return float32(v.width) / float32(v.height)
}

func (v *Viewport) ViewMatrix() mgl32.Mat4 { return v.Camera.ViewMatrix() }

func (v *Viewport) PerspectiveMatrix() mgl32.Mat4 {
	return v.Camera.PerspectiveMatrix(v.AspectRatio())
}

func (v *Viewport) OrthographicMatrix() mgl32.Mat4 {
	return v.Camera.OrthographicMatrix(float32(v.width), float32(v.height))
}

// DebugActors is the group holding the debug arrows.
func (v *Viewport) DebugActors() *core.Actors { return v.debugActors }

func (v *Viewport) Hovered() *core.Actor  { return v.hovered.actor }
func (v *Viewport) Clicked() *core.Actor  { return v.clicked.actor }
func (v *Viewport) Selected() *core.Actor { return v.selected.actor }

// Pick resolves the actor under (x, y) among the renderer's actors.
func (v *Viewport) Pick(x, y float32, mods Modifiers) (picking.Result, error) {
	res, err := picking.Pick(v.Camera, v.width, v.height, v.Renderer.SortedActors(), x, y, v.PickOptions)
	if err != nil {
		return res, err
	}
	if v.Debug && mods&ModShift != 0 {
		v.showDebugRay(res)
	}
	return res, nil
}

// Press handles a button press. A left press on a clickable actor sends it
// a click and selects it when selectable. A left press on nothing clears
// the selection.
func (v *Viewport) Press(ev PointerEvent) {
	v.mouseStart = mgl32.Vec2{ev.X, ev.Y}
	v.startEye = v.Camera.Eye
	v.startUp = v.Camera.Up
	v.startCenter = v.Camera.Center

	if ev.Buttons&ButtonLeft == 0 {
		return
	}
	res, err := v.Pick(ev.X, ev.Y, ev.Modifiers)
	if err != nil {
		v.Logger.Errorf("pick at (%g, %g): %v", ev.X, ev.Y, err)
		return
	}
	if res.Hit == nil {
		v.deselect()
		return
	}
	a := res.Hit.Actor
	if !a.Clickable {
		return
	}
	a.Emit(v.hitEvent(core.EventClick, res, ev))
	v.clicked.set(a)
	v.Logger.Debugf("clicked %s", a.DisplayName())
	if a.Selectable {
		if prev := v.selected.actor; prev != nil && prev != a {
			prev.Selected = false
		}
		v.selected.set(a)
		a.Selected = true
	}
}

func (v *Viewport) deselect() {
	if s := v.selected.actor; s != nil {
		s.Selected = false
		v.Logger.Debugf("deselected %s", s.DisplayName())
	}
	v.selected.clear()
}

// Move handles pointer motion. Without buttons it is a hover.
func (v *Viewport) Move(ev PointerEvent) {
	if ev.Buttons == 0 {
		v.Hover(ev)
		return
	}
	dx, dy := ev.X-v.mouseStart.X(), ev.Y-v.mouseStart.Y()
	hw, hh := float32(v.width)/2, float32(v.height)/2

	switch {
	case ev.Buttons&ButtonLeft != 0:
		if a := v.clicked.actor; a != nil {
			ray, err := picking.PickRay(v.Camera, v.width, v.height, ev.X, ev.Y)
			if err != nil {
				v.Logger.Errorf("move ray: %v", err)
				return
			}
			a.Emit(v.rayEvent(core.EventMove, ray, ev))
		} else {
			// half a screen turns the camera by 90 degrees
			v.Camera.PanTilt(v.startEye, v.startUp, 90*dx/hw, 90*dy/hh)
		}
	case ev.Buttons&ButtonMiddle != 0:
		v.Camera.Translate(v.startEye, v.startCenter, -dx/hw, dy/hh)
	case ev.Buttons&ButtonRight != 0:
		v.Camera.Roll(v.startEye, v.startUp, -90*dy/hw)
	}
	v.Renderer.Update()
}

// Release ends a click: the clicked actor gets a release event.
func (v *Viewport) Release(ev PointerEvent) {
	a := v.clicked.actor
	if a == nil {
		return
	}
	ray, err := picking.PickRay(v.Camera, v.width, v.height, ev.X, ev.Y)
	if err != nil {
		v.Logger.Errorf("release ray: %v", err)
	} else {
		a.Emit(v.rayEvent(core.EventRelease, ray, ev))
	}
	v.clicked.clear()
}

// Hover tracks the actor under the pointer and sends enter, move and leave
// events.
func (v *Viewport) Hover(ev PointerEvent) {
	res, err := v.Pick(ev.X, ev.Y, ev.Modifiers)
	if err != nil {
		v.Logger.Errorf("hover at (%g, %g): %v", ev.X, ev.Y, err)
		return
	}
	old := v.hovered.actor
	if res.Hit != nil && res.Hit.Actor == old {
		old.Emit(v.hitEvent(core.EventHoverMove, res, ev))
		return
	}
	if old != nil {
		old.Emit(v.rayEvent(core.EventHoverLeave, res.Ray, ev))
		old.MouseOver = false
		v.hovered.clear()
		v.Logger.Debugf("hover left %s", old.DisplayName())
	}
	if res.Hit == nil {
		return
	}
	if a := res.Hit.Actor; a.Hoverable {
		v.hovered.set(a)
		a.Emit(v.hitEvent(core.EventHoverEnter, res, ev))
		a.MouseOver = true
		v.Logger.Debugf("hover entered %s", a.DisplayName())
	}
}

// Wheel dollies the camera. Shift selects the coarse step.
func (v *Viewport) Wheel(ev PointerEvent) {
	v.Camera.Dolly(ev.Delta, ev.Modifiers&ModShift != 0)
	v.Renderer.Update()
}

// DoubleClick with the middle button, or left with control, moves the
// camera rotation center to the picked point.
func (v *Viewport) DoubleClick(ev PointerEvent) {
	if ev.Buttons&ButtonMiddle == 0 && (ev.Buttons&ButtonLeft == 0 || ev.Modifiers&ModControl == 0) {
		return
	}
	res, err := v.Pick(ev.X, ev.Y, 0)
	if err != nil {
		v.Logger.Errorf("double click at (%g, %g): %v", ev.X, ev.Y, err)
		return
	}
	if res.Hit == nil {
		return
	}
	p := res.Ray.At(res.Hit.TUVs[0].X())
	v.Camera.SetRotationCenter(res.Ray.Origin, p)
	v.Renderer.Update()
}

func (v *Viewport) hitEvent(kind core.EventKind, res picking.Result, ev PointerEvent) core.Event {
	h := res.Hit
	return core.Event{
		Kind:           kind,
		ID:             h.IDs[0],
		TUV:            h.TUVs[0],
		WorldOrigin:    res.Ray.Origin,
		WorldDirection: res.Ray.Direction,
		LocalOrigin:    h.LocalOrigin,
		LocalDirection: h.LocalDirection,
		Input:          ev,
		Viewport:       v,
	}
}

func (v *Viewport) rayEvent(kind core.EventKind, ray picking.Ray, ev PointerEvent) core.Event {
	return core.Event{
		Kind:           kind,
		ID:             -1,
		WorldOrigin:    ray.Origin,
		WorldDirection: ray.Direction,
		Input:          ev,
		Viewport:       v,
	}
}

const debugMissLength = 500

var (
	debugRight = mgl32.Vec4{1, 0, 0, 1}
	debugDown  = mgl32.Vec4{0, 1, 0, 1}
	debugRay   = mgl32.Vec4{1, 0, 1, 1}
)

func (v *Viewport) showDebugRay(res picking.Result) {
	length := float32(debugMissLength)
	if res.Hit != nil {
		length = res.Hit.Distance
	}
	o := res.Ray.Origin
	v.debugActors.ClearActors(true)
	v.debugActors.AddActor(arrowActor("right", o, o.Add(res.Ray.Right), debugRight))
	v.debugActors.AddActor(arrowActor("down", o, o.Add(res.Ray.Down), debugDown))
	v.debugActors.AddActor(arrowActor("ray", o, res.Ray.At(length), debugRay))
}

// arrowActor is a line arrow from -> to with a head of fixed size.
func arrowActor(name string, from, to mgl32.Vec3, color mgl32.Vec4) *core.Actor {
	const head = 0.1
	dir := to.Sub(from)
	verts := []mgl32.Vec3{from, to}
	idx := []uint32{0, 1}
	if dir.Len() > 0 {
		d := dir.Normalize()
		side := mgl32.Vec3{0, 0, 1}
		if d.Cross(side).Len() < 1e-3 {
			side = mgl32.Vec3{1, 0, 0}
		}
		n := d.Cross(side).Normalize().Mul(head)
		back := to.Sub(d.Mul(head))
		verts = append(verts, back.Add(n), back.Sub(n))
		idx = append(idx, 1, 2, 1, 3)
	}
	e := core.NewEffect("color")
	e.SetUniform("color", color)
	a := core.NewActor(name, core.NewGeometry(bvh.Lines, verts, idx), e, nil)
	a.Pickable = false
	a.Clickable = false
	a.Hoverable = false
	return a
}
