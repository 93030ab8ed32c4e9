package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

const cliScene = `
name: root
children:
  - actor:
      name: wall
      geometry:
        vertices: [[-2, 0, -2], [2, 0, -2], [0, 0, 3]]
        indices: [0, 1, 2]
      effect: {name: color}
  - group:
      name: lines
      visible: false
      children:
        - actor:
            name: seg
            geometry: {primitive: lines, vertices: [[0, 0, 0], [1, 0, 0]], indices: [0, 1]}
`

const cliConfig = `
[viewport]
width = 40
height = 30
`

func writeFixtures(t *testing.T) (scene, config string) {
	dir := t.TempDir()
	scene = filepath.Join(dir, "scene.yaml")
	config = filepath.Join(dir, "viewport.toml")
	require.NoError(t, os.WriteFile(scene, []byte(cliScene), 0o644))
	require.NoError(t, os.WriteFile(config, []byte(cliConfig), 0o644))
	return scene, config
}

func run(t *testing.T, args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPickCommand(t *testing.T) {
	scene, config := writeFixtures(t)

	out, err := run(t, "pick", "--scene", scene, "--config", config, "--x", "20", "--y", "15")
	require.NoError(t, err)
	assert.Contains(t, out, "actor: wall")
	assert.Contains(t, out, "ids: [0]")

	out, err = run(t, "pick", "--scene", scene, "--config", config, "--x", "0", "--y", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to pick")

	_, err = run(t, "pick", "--config", config)
	assert.Error(t, err, "scene is required")
}

func TestMergeCommand(t *testing.T) {
	scene, _ := writeFixtures(t)
	nodes := filepath.Join(t.TempDir(), "nodes.bin")

	out, err := run(t, "merge", "--scene", scene, "--out", nodes)
	require.NoError(t, err)
	assert.Contains(t, out, "triangles: 1 primitives, 1 nodes")
	assert.Contains(t, out, "wall [0, 1) effect=color")

	out, err = run(t, "merge", "--scene", scene, "--id", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "primitive 0: wall local 0")
	_, err = run(t, "merge", "--scene", scene, "--id", "1")
	assert.Error(t, err)

	data, err := os.ReadFile(nodes)
	require.NoError(t, err)
	assert.Len(t, data, 64)

	// hidden groups are not merged
	out, err = run(t, "merge", "--scene", scene, "--primitive", "lines")
	require.NoError(t, err)
	assert.Contains(t, out, "lines: 0 primitives")

	_, err = run(t, "merge", "--scene", scene, "--primitive", "quads")
	assert.Error(t, err)
}

func TestPickMapCommand(t *testing.T) {
	scene, config := writeFixtures(t)
	dir := t.TempDir()

	pngPath := filepath.Join(dir, "map.png")
	_, err := run(t, "pickmap", "--scene", scene, "--config", config, "--out", pngPath)
	require.NoError(t, err)
	f, err := os.Open(pngPath)
	require.NoError(t, err)
	img, err := png.Decode(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())

	// the wall covers the center, the corner shows the white background
	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff}, []uint32{r, g, b})
	assert.NotEqual(t, img.At(0, 0), img.At(20, 15))

	bmpPath := filepath.Join(dir, "map.bmp")
	_, err = run(t, "pickmap", "--scene", scene, "--config", config, "--out", bmpPath)
	require.NoError(t, err)
	f, err = os.Open(bmpPath)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := bmp.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Height)

	_, err = run(t, "pickmap", "--scene", scene, "--config", config, "--out", filepath.Join(dir, "map.gif"))
	assert.Error(t, err)
}

func TestTreeCommand(t *testing.T) {
	scene, _ := writeFixtures(t)
	out, err := run(t, "tree", "--scene", scene)
	require.NoError(t, err)
	assert.Equal(t, "root\n  actor wall (declared)\n  group lines (declared hidden)\n    actor seg (declared)\n", out)
}
