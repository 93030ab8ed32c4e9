package viewport

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/gekko3d/viewport/viewrt/rt/bvh"
	"github.com/gekko3d/viewport/viewrt/rt/core"
	"github.com/gekko3d/viewport/viewrt/rt/picking"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
)

var ErrInvalidConfig = errors.New("viewport: invalid config")

type Config struct {
	Viewport ViewportConfig `toml:"viewport"`
	Camera   CameraConfig   `toml:"camera"`
	Picking  PickingConfig  `toml:"picking"`
	BVH      BVHConfig      `toml:"bvh"`
	Log      LogConfig      `toml:"log"`
}

type ViewportConfig struct {
	Width  int  `toml:"width"`
	Height int  `toml:"height"`
	Debug  bool `toml:"debug"`
	// BackgroundColor is RGBA in [0, 1].
	BackgroundColor [4]float32 `toml:"background_color"`
}

type CameraConfig struct {
	Eye    [3]float32 `toml:"eye"`
	Center [3]float32 `toml:"center"`
	Up     [3]float32 `toml:"up"`
	VFov   float32    `toml:"vfov"`
	Near   float32    `toml:"near"`
	Far    float32    `toml:"far"`
}

type PickingConfig struct {
	LineTolerance  float32 `toml:"line_tolerance"`
	PointTolerance float32 `toml:"point_tolerance"`
}

type BVHConfig struct {
	MaxLeafSize   int     `toml:"max_leaf_size"`
	LineTolerance float32 `toml:"line_tolerance"`
}

type LogConfig struct {
	Prefix string `toml:"prefix"`
	Debug  bool   `toml:"debug"`
	Quiet  bool   `toml:"quiet"`
}

func DefaultConfig() Config {
	cam := core.NewCamera()
	pick := picking.DefaultOptions()
	opts := bvh.DefaultOptions()
	return Config{
		Viewport: ViewportConfig{
			Width:           800,
			Height:          600,
			BackgroundColor: [4]float32{1, 1, 1, 1},
		},
		Camera: CameraConfig{
			Eye:    cam.Eye,
			Center: cam.Center,
			Up:     cam.Up,
			VFov:   cam.VFov,
			Near:   cam.Near,
			Far:    cam.Far,
		},
		Picking: PickingConfig{
			LineTolerance:  pick.LineTolerance,
			PointTolerance: pick.PointTolerance,
		},
		BVH: BVHConfig{
			MaxLeafSize:   opts.MaxLeafSize,
			LineTolerance: opts.LineTolerance,
		},
		Log: LogConfig{Prefix: "viewport"},
	}
}

// ParseConfig decodes TOML on top of the defaults. Unknown keys are
// rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, strict.String())
		}
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Marshal encodes the config as TOML.
func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

func (c Config) Validate() error {
	switch {
	case c.Viewport.Width <= 0 || c.Viewport.Height <= 0:
		return fmt.Errorf("%w: viewport size %dx%d", ErrInvalidConfig, c.Viewport.Width, c.Viewport.Height)
	case c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near:
		return fmt.Errorf("%w: clip range [%g, %g]", ErrInvalidConfig, c.Camera.Near, c.Camera.Far)
	case c.Camera.VFov <= 0 || c.Camera.VFov >= 180:
		return fmt.Errorf("%w: vfov %g", ErrInvalidConfig, c.Camera.VFov)
	case mgl32.Vec3(c.Camera.Up).Len() == 0 || mgl32.Vec3(c.Camera.Eye) == mgl32.Vec3(c.Camera.Center):
		return fmt.Errorf("%w: degenerate camera basis", ErrInvalidConfig)
	case c.Picking.LineTolerance < 0 || c.Picking.PointTolerance < 0 || c.BVH.LineTolerance < 0:
		return fmt.Errorf("%w: negative tolerance", ErrInvalidConfig)
	case c.BVH.MaxLeafSize < 0:
		return fmt.Errorf("%w: max_leaf_size %d", ErrInvalidConfig, c.BVH.MaxLeafSize)
	}
	return nil
}

func (c Config) NewCamera() *core.Camera {
	cam := core.NewCamera()
	cam.Eye = c.Camera.Eye
	cam.Center = c.Camera.Center
	cam.Up = c.Camera.Up
	cam.VFov = c.Camera.VFov
	cam.Near = c.Camera.Near
	cam.Far = c.Camera.Far
	return cam
}

func (c Config) PickOptions() picking.Options {
	return picking.Options{
		LineTolerance:  c.Picking.LineTolerance,
		PointTolerance: c.Picking.PointTolerance,
	}
}

func (c Config) BVHOptions() bvh.Options {
	return bvh.Options{
		MaxLeafSize:   c.BVH.MaxLeafSize,
		LineTolerance: c.BVH.LineTolerance,
	}
}
