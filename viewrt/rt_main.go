package main

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gekko3d/viewport"
	"github.com/gekko3d/viewport/viewrt/rt/bvh"
	"github.com/gekko3d/viewport/viewrt/rt/core"

	"github.com/spf13/cobra"
	"golang.org/x/image/bmp"
)

type options struct {
	scene  string
	config string
}

func (o *options) load() (viewport.Config, *core.Actors, error) {
	cfg := viewport.DefaultConfig()
	if o.config != "" {
		var err error
		if cfg, err = viewport.LoadConfig(o.config); err != nil {
			return cfg, nil, err
		}
	}
	root, err := viewport.LoadScene(o.scene, cfg.BVHOptions())
	if err != nil {
		return cfg, nil, err
	}
	return cfg, root, nil
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "viewrt",
		Short:         "Inspect, pick and merge viewport scenes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.scene, "scene", "", "scene description (YAML)")
	root.PersistentFlags().StringVar(&opts.config, "config", "", "viewport config (TOML)")
	_ = root.MarkPersistentFlagRequired("scene")

	root.AddCommand(newPickCmd(opts), newMergeCmd(opts), newPickMapCmd(opts), newTreeCmd(opts))
	return root
}

func newPickCmd(opts *options) *cobra.Command {
	var x, y float32
	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Report the actor under a pixel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, root, err := opts.load()
			if err != nil {
				return err
			}
			vp := viewport.NewViewport(cfg, root, viewport.NewLogger(cfg.Log))
			res, err := vp.Pick(x, y, 0)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Hit == nil {
				fmt.Fprintf(out, "nothing to pick at (%g, %g)\n", x, y)
				return nil
			}
			h := res.Hit
			fmt.Fprintf(out, "actor: %s\n", h.Actor.DisplayName())
			fmt.Fprintf(out, "ids: %v\n", h.IDs)
			fmt.Fprintf(out, "tuv: %v\n", h.TUVs[0])
			fmt.Fprintf(out, "distance: %g\n", h.Distance)
			fmt.Fprintf(out, "point: %v\n", h.Point)
			return nil
		},
	}
	cmd.Flags().Float32Var(&x, "x", 0, "pixel column")
	cmd.Flags().Float32Var(&y, "y", 0, "pixel row")
	return cmd
}

func newMergeCmd(opts *options) *cobra.Command {
	var out, primitive string
	var id int
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge the visible actors of one primitive type into a single BVH",
		RunE: func(cmd *cobra.Command, args []string) error {
			primType, err := bvh.ParsePrimitiveType(primitive)
			if err != nil {
				return err
			}
			cfg, root, err := opts.load()
			if err != nil {
				return err
			}
			scene := core.NewScene(root)
			scene.BVHOptions = cfg.BVHOptions()
			merged, info, err := scene.Merged(primType)
			if err != nil {
				return err
			}
			if out != "" {
				if err := os.WriteFile(out, merged.BVH.Encode(), 0o644); err != nil {
					return fmt.Errorf("writing nodes: %w", err)
				}
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s: %d primitives, %d nodes\n", primType, merged.BVH.PrimitiveCount(), len(merged.BVH.Nodes))
			for i, r := range merged.PrimitiveOffsets {
				if r.Len() == 0 {
					continue
				}
				fmt.Fprintf(w, "  %s [%d, %d) effect=%s\n", info.IDToActors[i].Actor.DisplayName(), r.Start, r.End, info.Effects[i].Type)
			}
			if id >= 0 {
				ref, ok := merged.Resolve(id)
				if !ok {
					return fmt.Errorf("primitive %d out of range [0, %d)", id, merged.BVH.PrimitiveCount())
				}
				fmt.Fprintf(w, "primitive %d: %s local %d\n", id, info.IDToActors[ref.Source].Actor.DisplayName(), ref.Local)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write encoded BVH nodes to this file")
	cmd.Flags().StringVar(&primitive, "primitive", "triangles", "triangles, lines or points")
	cmd.Flags().IntVar(&id, "id", -1, "resolve this merged primitive id to its actor")
	return cmd
}

func newPickMapCmd(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "pickmap",
		Short: "Render the picked actor of every pixel as an image",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, root, err := opts.load()
			if err != nil {
				return err
			}
			vp := viewport.NewViewport(cfg, root, viewport.NewLogger(cfg.Log))
			img, err := pickMap(vp)
			if err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := encodeImage(f, out, img); err != nil {
				return fmt.Errorf("encoding %s: %w", out, err)
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVar(&out, "out", "pickmap.png", "output image (.png or .bmp)")
	return cmd
}

// pickMap colors each pixel by the actor picked through it. Misses use the
// background color.
func pickMap(vp *viewport.Viewport) (*image.RGBA, error) {
	w, h := vp.Size()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bg := toRGBA(vp.Background)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			res, err := vp.Pick(float32(x)+0.5, float32(y)+0.5, 0)
			if err != nil {
				return nil, err
			}
			c := bg
			if res.Hit != nil {
				c = actorColor(res.Hit.Actor)
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

func toRGBA(c [4]float32) color.RGBA {
	b := func(v float32) uint8 { return uint8(min(max(v, 0), 1) * 255) }
	return color.RGBA{b(c[0]), b(c[1]), b(c[2]), b(c[3])}
}

// actorColor is stable per actor id.
func actorColor(a *core.Actor) color.RGBA {
	h := fnv.New32a()
	h.Write(a.ID[:])
	s := h.Sum32()
	return color.RGBA{uint8(s), uint8(s >> 8), uint8(s >> 16), 255}
}

func encodeImage(w io.Writer, name string, img image.Image) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".bmp":
		return bmp.Encode(w, img)
	case ".png", "":
		return png.Encode(w, img)
	}
	return fmt.Errorf("unsupported image format %q", filepath.Ext(name))
}

func newTreeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the scene graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, root, err := opts.load()
			if err != nil {
				return err
			}
			m := viewport.NewActorsModel(root)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", root.DisplayName())
			printTree(cmd.OutOrStdout(), m, nil, 1)
			return nil
		},
	}
}

func printTree(w io.Writer, m *viewport.ActorsModel, parent core.Node, depth int) {
	g := m.Root
	if parent != nil {
		g = parent.(*core.Actors)
	}
	for row := 0; row < m.RowCount(parent); row++ {
		n := m.Child(parent, row)
		prov, _ := g.ProvenanceOf(n)
		b := n.Base()
		kind := "actor"
		if _, ok := n.(*core.Actors); ok {
			kind = "group"
		}
		hidden := ""
		if !b.Visible {
			hidden = " hidden"
		}
		fmt.Fprintf(w, "%s%s %s (%s%s)\n", strings.Repeat("  ", depth), kind, b.DisplayName(), prov, hidden)
		if kind == "group" {
			printTree(w, m, n, depth+1)
		}
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "viewrt:", err)
		os.Exit(1)
	}
}
