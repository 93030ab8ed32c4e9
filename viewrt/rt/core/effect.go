package core

import "maps"

// Effect carries opaque rendering parameters. The core only reads them when
// exporting merged scene data.
// Writes made directly to the maps must be followed by Touch for cached
// merged data to notice them.
type Effect struct {
	Name     string
	Uniforms map[string]any
	Textures map[string]any

	generation uint64
}

func NewEffect(name string) *Effect {
	return &Effect{
		Name:       name,
		Uniforms:   map[string]any{},
		Textures:   map[string]any{},
		generation: 1,
	}
}

// Touch marks the effect as modified.
func (e *Effect) Touch() { e.generation++ }

// Generation advances on every Touch. A nil effect reports 0.
func (e *Effect) Generation() uint64 {
	if e == nil {
		return 0
	}
	return e.generation
}

func (e *Effect) SetUniform(name string, value any) {
	e.Uniforms[name] = value
	e.Touch()
}

func (e *Effect) SetTexture(name string, value any) {
	e.Textures[name] = value
	e.Touch()
}

// EffectExport is the per-actor record produced by MergedBVHs.
type EffectExport struct {
	Type     string
	Uniforms map[string]any
	Textures map[string]any
	Attribs  map[string]any
}

func exportEffect(e *Effect, g *Geometry) EffectExport {
	out := EffectExport{
		Uniforms: map[string]any{},
		Textures: map[string]any{},
		Attribs:  map[string]any{},
	}
	if e != nil {
		out.Type = e.Name
		maps.Copy(out.Uniforms, e.Uniforms)
		maps.Copy(out.Textures, e.Textures)
	}
	if g != nil {
		for name, a := range g.Attribs {
			if a != nil {
				out.Attribs[name] = a.Values()
			}
		}
	}
	return out
}
