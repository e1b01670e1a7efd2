package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volray/internal/raycast"
	"volray/internal/transfer"
)

const scene = `
[Render]
Width = 64
Height = 48
Blend = MIP
SampleDistance = 0.5
DesiredTime = 150ms
Frames = 8
Threads = 2

[Volume]
Source = sphere
Dims = 20 20 10
Spacing = 1, 1, 2
Value = 180

[Camera]
Azimuth = 15
Zoom = 1.5

[Light]
Direction = 0 0 1
Intensity = 0.8

[Component "0"]
OpacityPoint = 20 0
OpacityPoint = 180 0.7
ColorPoint = 0 0 0 1
ColorPoint = 180 1 1 0
GradientPoint = 0 0.5
Shade = true
Specular = 0.4

[Crop]
Enabled = true
Bounds = 0 10 0 10 0 18
Flags = 0x2000

[Plane "front"]
Origin = 0 0 5
Normal = 0 0 -1
`

func TestParse(t *testing.T) {
	f, err := Parse(scene)
	require.NoError(t, err)

	assert.Equal(t, 64, f.Render.Width)
	assert.Equal(t, "mip", f.Render.Blend)
	assert.Equal(t, "linear", f.Render.Interpolation)
	assert.Equal(t, 150*time.Millisecond, f.Render.Desired())
	assert.Equal(t, [3]int{20, 20, 10}, f.Volume.gridDims)
	assert.Equal(t, [3]float64{1, 1, 2}, f.Volume.gridSpacing)
	assert.Equal(t, [3]float64{0, 0, 1}, f.Light.dir)
	assert.False(t, f.Light.headlight)

	require.Contains(t, f.Component, "0")
	c := f.Component["0"]
	assert.Equal(t, [][2]float64{{20, 0}, {180, 0.7}}, c.opacityPts)
	assert.Len(t, c.colorPts, 2)
	assert.True(t, c.Specular.Set)
	assert.False(t, c.Weight.Set)

	assert.Equal(t, uint32(raycast.SubVolume), f.Crop.mask)
	require.Contains(t, f.Plane, "front")
	assert.Equal(t, [3]float64{0, 0, -1}, f.Plane["front"].dir)
}

func TestParseRejects(t *testing.T) {
	for name, text := range map[string]string{
		"size":      "[Render]\nWidth = 0",
		"blend":     "[Render]\nBlend = additive",
		"duration":  "[Render]\nDesiredTime = soon",
		"source":    "[Volume]\nSource = teapot",
		"dims":      "[Volume]\nDims = 4 4",
		"spacing":   "[Volume]\nSpacing = 1 0 1",
		"slices":    "[Volume]\nSource = slices",
		"component": "[Component \"7\"]\nShade = true",
		"point":     "[Component \"0\"]\nColorPoint = 1 2",
		"crop":      "[Crop]\nEnabled = true\nBounds = 0 1 0 1 0 1\nFlags = 0x8000000",
		"plane":     "[Plane \"p\"]\nOrigin = 0 0 0\nNormal = 0 0 0",
		"light":     "[Light]\nDirection = 0 0 0",
		"zoom":      "[Camera]\nZoom = -1",
	} {
		_, err := Parse(text)
		assert.ErrorIs(t, err, ErrInvalid, name)
	}

	_, err := Parse("[Render]\nNoSuchSetting = 1")
	assert.Error(t, err)
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.ini")
	require.NoError(t, os.WriteFile(path, []byte("[Volume]\nSource = slices\nDir = stack\n"), 0o644))

	f, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "stack"), f.Volume.Dir)

	_, err = Read(filepath.Join(dir, "missing.ini"))
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	f := Default()
	require.NoError(t, f.CheckInit())
	f.Render.Workers = 0
	f.Resolve(Flags{OutputDir: "out", Frames: 12, Size: 128})

	assert.Equal(t, "out", f.Render.Output)
	assert.Equal(t, 12, f.Render.Frames)
	assert.Equal(t, 128, f.Render.Width)
	assert.Equal(t, 128, f.Render.Height)
	assert.Positive(t, f.Render.Workers)
	assert.Contains(t, f.Component, "0")

	f.Resolve(Flags{VolumeDir: "slices"})
	assert.Equal(t, "slices", f.Volume.Source)
	assert.Equal(t, "slices", f.Volume.Dir)
}

func TestBuildScene(t *testing.T) {
	f, err := Parse(scene)
	require.NoError(t, err)
	f.Resolve(Flags{})

	g, err := f.Grid()
	require.NoError(t, err)
	assert.Equal(t, [3]int{20, 20, 10}, g.Dims)
	assert.Equal(t, [3]float64{1, 1, 2}, g.Spacing)

	p := f.Property(g)
	pc := p.Components[0]
	assert.True(t, pc.Shade)
	assert.Equal(t, 0.4, pc.Specular)
	assert.Equal(t, 1.0, pc.Weight)
	assert.Equal(t, 0.7, pc.ScalarOpacity.Value(180))
	assert.NotNil(t, pc.GradientOpacity)

	c0 := f.OrbitCamera(g, 0)
	require.NoError(t, c0.Validate())
	c4 := f.OrbitCamera(g, 4)
	assert.InDelta(t, c0.Position.Sub(c0.FocalPoint).Len(), c4.Position.Sub(c4.FocalPoint).Len(), 1e-9)
	// Half an orbit apart.
	assert.InDelta(t, -1, c0.Direction().Dot(c4.Direction()), 1e-9)

	r := raycast.New()
	f.Apply(r)
	assert.Equal(t, transfer.MaximumIntensity, r.Blend)
	assert.Equal(t, 2, r.Threads)
	assert.Equal(t, 0.5, r.SampleDistance)
	assert.True(t, r.Cropping.Enabled)
	assert.Len(t, r.Planes, 1)
	require.Len(t, r.Lights, 1)
	assert.Equal(t, 0.8, r.Lights[0].Intensity)
}

func TestDefaultSceneRamp(t *testing.T) {
	f := Default()
	f.Volume.Dims = "8 8 8"
	require.NoError(t, f.CheckInit())
	f.Resolve(Flags{})

	g, err := f.Grid()
	require.NoError(t, err)
	p := f.Property(g)
	rng := g.Range(0)
	assert.Equal(t, 0.0, p.Components[0].ScalarOpacity.Value(rng[0]))
	assert.Equal(t, 1.0, p.Components[0].ScalarOpacity.Value(rng[1]))
	assert.Equal(t, transfer.Linear, p.Interpolation)
}
