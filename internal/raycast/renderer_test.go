package raycast

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volray/internal/adaptive"
	"volray/internal/camera"
	"volray/internal/mathutil"
	"volray/internal/transfer"
	"volray/internal/volume"
)

// parallelCamera looks down -z at the center of an n³ unit grid and maps
// pixel x of an n-wide viewport onto voxel column x.
func parallelCamera(n int) camera.Camera {
	c := camera.New()
	h := float64(n-1) / 2
	c.Parallel = true
	c.Position = mathutil.Vec3{h, h, 20}
	c.FocalPoint = mathutil.Vec3{h, h, h}
	c.ParallelScale = float64(n) / 2
	return c
}

func uniformScene(t *testing.T) Input {
	t.Helper()
	g, err := volume.Constant([3]int{8, 8, 8}, volume.Uint8, 100)
	require.NoError(t, err)
	p := transfer.NewProperty()
	p.SetColor(0, transfer.NewColorFunction(transfer.ColorPoint{X: 0, R: 0.2, G: 0.4, B: 0.6}))
	p.SetScalarOpacity(0, transfer.NewPiecewiseFunction(
		transfer.Point{X: 0, Y: 0}, transfer.Point{X: 49.9, Y: 0},
		transfer.Point{X: 50, Y: 1}, transfer.Point{X: 255, Y: 1}))
	return Input{
		Grid:     g,
		Property: p,
		Camera:   parallelCamera(8),
		Viewport: camera.Viewport{Width: 8, Height: 8},
	}
}

func sphereScene(t *testing.T) Input {
	t.Helper()
	g, err := volume.Sphere([3]int{16, 16, 16}, volume.Uint8, 7, 200)
	require.NoError(t, err)
	p := transfer.NewProperty()
	p.SetColor(0, transfer.NewColorFunction(
		transfer.ColorPoint{X: 0, R: 0, G: 0, B: 1},
		transfer.ColorPoint{X: 200, R: 1, G: 0.8, B: 0}))
	p.SetScalarOpacity(0, transfer.NewPiecewiseFunction(
		transfer.Point{X: 60, Y: 0}, transfer.Point{X: 120, Y: 0.3}, transfer.Point{X: 200, Y: 0.8}))

	c := camera.New()
	lo, hi := g.Bounds()
	c.ResetToBounds(lo, hi)
	c.Azimuth(30)
	c.Elevation(20)
	return Input{
		Grid:     g,
		Property: p,
		Camera:   c,
		Viewport: camera.Viewport{Width: 24, Height: 20},
	}
}

func alphaAt(img *image.NRGBA, x, y int) uint8 {
	return img.NRGBAAt(x, y).A
}

func TestUniformVolumeSaturates(t *testing.T) {
	r := New()
	r.Threads = 3
	out, err := r.Render(uniformScene(t))
	require.NoError(t, err)

	require.Equal(t, image.Rect(0, 0, 8, 8), out.Image.Bounds())
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			c := out.Image.NRGBAAt(x, y)
			require.Equal(t, uint8(255), c.A, "pixel %d,%d", x, y)
			assert.InDelta(t, 51, int(c.R), 1)
			assert.InDelta(t, 102, int(c.G), 1)
			assert.InDelta(t, 153, int(c.B), 1)
		}
	}

	// The step opacity maps every voxel to alpha 1, so each ray is saturated
	// by its first sample and ends through the opacity test rather than by
	// leaving the volume. Only the depth and miss paths must stay unused.
	s := out.Stats
	assert.Equal(t, 64, s.Rays)
	assert.Zero(t, s.Missed)
	assert.Zero(t, s.DepthLimited)
	assert.Equal(t, s.Rays, s.Opaque+s.Exited)
	assert.Equal(t, 64, s.Samples)
	assert.InDelta(t, (13-0.01)/(1000-0.01), out.MinDepth, 1e-6)
}

func TestTransparentVolumeSkipsEverything(t *testing.T) {
	in := uniformScene(t)
	in.Property.SetScalarOpacity(0, transfer.NewPiecewiseFunction(transfer.Point{X: 0, Y: 0}))

	r := New()
	out, err := r.Render(in)
	require.NoError(t, err)

	empty, total := r.Index().Counts()
	assert.Equal(t, total, empty)
	assert.Zero(t, out.Stats.Samples)
	assert.Positive(t, out.Stats.Skipped)
	for i := 3; i < len(out.Image.Pix); i += 4 {
		require.Zero(t, out.Image.Pix[i])
	}
}

func TestMaximumIntensitySingleVoxel(t *testing.T) {
	for _, sd := range []float64{0.5, 1, 2} {
		g, err := volume.SingleVoxel([3]int{9, 9, 9}, volume.Uint8, [3]int{4, 4, 4}, 200, 0)
		require.NoError(t, err)
		p := transfer.NewProperty()
		p.SetColor(0, transfer.NewColorFunction(transfer.ColorPoint{X: 0, R: 1, G: 0.5, B: 0.25}))
		p.SetScalarOpacity(0, transfer.NewPiecewiseFunction(
			transfer.Point{X: 100, Y: 0}, transfer.Point{X: 101, Y: 1}))

		r := New()
		r.Blend = transfer.MaximumIntensity
		r.SampleDistance = sd
		out, err := r.Render(Input{
			Grid:     g,
			Property: p,
			Camera:   parallelCamera(9),
			Viewport: camera.Viewport{Width: 9, Height: 9},
		})
		require.NoError(t, err, "step %g", sd)

		c := out.Image.NRGBAAt(4, 4)
		assert.Equal(t, uint8(255), c.A, "step %g", sd)
		assert.InDelta(t, 255, int(c.R), 1)
		assert.InDelta(t, 128, int(c.G), 1)
		assert.InDelta(t, 64, int(c.B), 1)
		assert.Zero(t, alphaAt(out.Image, 3, 4), "step %g", sd)
		assert.Zero(t, alphaAt(out.Image, 4, 0), "step %g", sd)
	}
}

func TestSpaceLeapingMatchesFullSampling(t *testing.T) {
	for _, blend := range []transfer.BlendMode{transfer.Composite, transfer.MaximumIntensity} {
		leap := New()
		leap.Blend = blend
		a, err := leap.Render(sphereScene(t))
		require.NoError(t, err)

		full := New()
		full.Blend = blend
		full.NoSpaceLeaping = true
		b, err := full.Render(sphereScene(t))
		require.NoError(t, err)

		assert.Equal(t, b.Image.Pix, a.Image.Pix, "blend %v", blend)
		assert.Zero(t, b.Stats.Skipped)
		assert.Positive(t, a.Stats.Skipped, "blend %v", blend)
		assert.Less(t, a.Stats.Samples, b.Stats.Samples, "blend %v", blend)
	}
}

func TestShadingAndGradientOpacity(t *testing.T) {
	in := sphereScene(t)
	in.Property.SetShade(0, true)
	in.Property.SetGradientOpacity(0, transfer.NewPiecewiseFunction(
		transfer.Point{X: 0, Y: 0.2}, transfer.Point{X: 40, Y: 1}))

	leap := New()
	a, err := leap.Render(in)
	require.NoError(t, err)

	full := New()
	full.NoSpaceLeaping = true
	b, err := full.Render(in)
	require.NoError(t, err)

	assert.Equal(t, b.Image.Pix, a.Image.Pix)
	assert.Positive(t, alphaAt(a.Image, 12, 10))
	assert.Zero(t, alphaAt(a.Image, 0, 0))
}

func TestRenderReusesCaches(t *testing.T) {
	in := sphereScene(t)
	r := New()
	_, err := r.Render(in)
	require.NoError(t, err)
	ix := r.Index()

	_, err = r.Render(in)
	require.NoError(t, err)
	assert.Same(t, ix, r.Index())

	in.Grid.Set(8, 8, 8, 0, 0)
	in.Grid.Modified()
	_, err = r.Render(in)
	require.NoError(t, err)
	assert.NotSame(t, ix, r.Index())
}

func TestRenderRejectsBadInput(t *testing.T) {
	in := uniformScene(t)
	r := New()

	_, err := r.Render(Input{Property: in.Property, Camera: in.Camera, Viewport: in.Viewport})
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = r.Render(Input{Grid: in.Grid, Camera: in.Camera, Viewport: in.Viewport})
	assert.ErrorIs(t, err, ErrNoProperty)

	bad := in
	bad.Viewport = camera.Viewport{}
	_, err = r.Render(bad)
	assert.ErrorIs(t, err, ErrBadViewport)

	short := in
	short.ZBuffer = &camera.ZBuffer{Width: 4, Height: 4, Depth: []float32{0.5}}
	_, err = r.Render(short)
	assert.ErrorIs(t, err, ErrBadViewport)
	assert.ErrorIs(t, err, camera.ErrBadZBuffer)

	r.Threads = MaxThreads + 1
	_, err = r.Render(in)
	assert.ErrorIs(t, err, ErrBadThreads)
	assert.Nil(t, r.Last())
}

func TestAbortReturnsLastFrame(t *testing.T) {
	in := uniformScene(t)
	r := New()
	first, err := r.Render(in)
	require.NoError(t, err)

	r.Abort()
	out, err := r.Render(in)
	assert.ErrorIs(t, err, ErrAborted)
	assert.Same(t, first, out)

	again, err := r.Render(in)
	require.NoError(t, err)
	assert.Equal(t, first.Image.Pix, again.Image.Pix)
}

func TestAdaptiveReducesImage(t *testing.T) {
	in := uniformScene(t)
	in.DesiredTime = 100 * time.Millisecond
	r := New()
	out, err := r.Render(in)
	require.NoError(t, err)

	assert.Equal(t, 2.0, out.ImageSampleDistance)
	assert.Equal(t, 3.0, out.SampleDistance)
	assert.True(t, out.ShortCut)
	assert.Equal(t, 16, out.Stats.Rays)
	assert.Equal(t, image.Rect(0, 0, 8, 8), out.Image.Bounds())

	_, d, ok := r.Controller.Last(adaptiveKey(r, in))
	require.True(t, ok)
	assert.Equal(t, 2.0, d)
}

func TestCroppingAndClipPlanesMatch(t *testing.T) {
	in := uniformScene(t)

	crop := New()
	crop.Cropping = Cropping{Enabled: true, Planes: [6]float64{0, 3.5, 0, 7, 0, 7}, Flags: SubVolume}
	a, err := crop.Render(in)
	require.NoError(t, err)

	plane := New()
	plane.Planes = []Plane{{Origin: mathutil.Vec3{3.5, 0, 0}, Normal: mathutil.Vec3{-1, 0, 0}}}
	b, err := plane.Render(in)
	require.NoError(t, err)

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			want := uint8(0)
			if x <= 3 {
				want = 255
			}
			assert.Equal(t, want, alphaAt(a.Image, x, y), "crop %d,%d", x, y)
			assert.Equal(t, want, alphaAt(b.Image, x, y), "plane %d,%d", x, y)
		}
	}
	assert.Equal(t, 32, a.Stats.Rays)
}

func TestCroppingRegions(t *testing.T) {
	in := uniformScene(t)
	r := New()
	r.Cropping = Cropping{Enabled: true, Planes: [6]float64{2, 5, 2, 5, 0, 7}, Flags: 0x7ffffff &^ SubVolume}
	out, err := r.Render(in)
	require.NoError(t, err)

	// Columns through the crop box's x-y square hit only the dropped
	// central regions.
	assert.Zero(t, alphaAt(out.Image, 3, 3))
	assert.Equal(t, uint8(255), alphaAt(out.Image, 0, 0))
	assert.Equal(t, uint8(255), alphaAt(out.Image, 7, 3))
}

func TestZBufferEndsRays(t *testing.T) {
	in := uniformScene(t)
	in.Property.SetScalarOpacity(0, transfer.NewPiecewiseFunction(transfer.Point{X: 0, Y: 0.1}))

	r := New()
	deep, err := r.Render(in)
	require.NoError(t, err)

	// Geometry at world z = 3.5, seen from z = 20.
	depth := float32((16.5 - 0.01) / (1000 - 0.01))
	in.ZBuffer = &camera.ZBuffer{Width: 1, Height: 1, Depth: []float32{depth}}
	shallow, err := r.Render(in)
	require.NoError(t, err)
	assert.Equal(t, 64, shallow.Stats.DepthLimited)
	assert.Less(t, alphaAt(shallow.Image, 4, 4), alphaAt(deep.Image, 4, 4))
	assert.Positive(t, alphaAt(shallow.Image, 4, 4))

	// In front of the volume.
	in.ZBuffer.Depth[0] = 0.001
	hidden, err := r.Render(in)
	require.NoError(t, err)
	assert.Zero(t, hidden.Stats.Rays)
	assert.Zero(t, alphaAt(hidden.Image, 4, 4))
}

func TestSelectHelper(t *testing.T) {
	assert.IsType(t, mip{}, selectHelper(transfer.MaximumIntensity, true, true))
	assert.IsType(t, composite{}, selectHelper(transfer.Composite, false, false))
	assert.IsType(t, compositeShade{}, selectHelper(transfer.Composite, true, false))
	assert.IsType(t, compositeGO{}, selectHelper(transfer.Composite, false, true))
	assert.IsType(t, compositeGOShade{}, selectHelper(transfer.Composite, true, true))
}

func adaptiveKey(r *Renderer, in Input) adaptive.Key {
	return adaptive.Key{View: r, Volume: in.Grid}
}
