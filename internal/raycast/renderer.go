// Package raycast renders a volume by casting one ray per pixel through it
// in fixed-point voxel coordinates, compositing colors and opacities looked
// up in precomputed transfer tables.
package raycast

import (
	"errors"
	"fmt"
	"image"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"volray/internal/adaptive"
	"volray/internal/camera"
	"volray/internal/fixedpt"
	"volray/internal/framebuf"
	"volray/internal/gradient"
	"volray/internal/mathutil"
	"volray/internal/mtime"
	"volray/internal/postprocess"
	"volray/internal/shading"
	"volray/internal/spaceleap"
	"volray/internal/transfer"
	"volray/internal/volume"
)

// MaxThreads bounds Renderer.Threads.
const MaxThreads = 256

var (
	ErrNoInput     = errors.New("raycast: no input volume")
	ErrNoProperty  = errors.New("raycast: no volume property")
	ErrBadThreads  = errors.New("raycast: thread count out of range")
	ErrBadViewport = errors.New("raycast: invalid viewport")
	ErrAborted     = errors.New("raycast: render aborted")
)

// Input is everything one frame is rendered from.
type Input struct {
	Grid     *volume.Grid
	Property *transfer.Property
	Camera   camera.Camera
	Viewport camera.Viewport

	// ZBuffer, if set, ends rays at the depth of opaque geometry.
	ZBuffer *camera.ZBuffer

	// DesiredTime enables adaptive sampling with this budget. Zero renders
	// at ImageSampleDistance and the full-quality step.
	DesiredTime time.Duration

	// View keys the adaptive timing together with Grid. Nil uses the
	// renderer.
	View any
}

// Stats counts the work of one frame.
type Stats struct {
	// Rays is the number of rays that intersected the volume; Missed the
	// pixels whose ray did not.
	Rays   int
	Missed int

	Samples int
	Skipped int

	// Terminations by reason.
	Opaque       int
	Exited       int
	DepthLimited int

	Cleared int
	Elapsed time.Duration
}

func (s *Stats) add(o Stats) {
	s.Rays += o.Rays
	s.Missed += o.Missed
	s.Samples += o.Samples
	s.Skipped += o.Skipped
	s.Opaque += o.Opaque
	s.Exited += o.Exited
	s.DepthLimited += o.DepthLimited
}

// Output is a finished frame.
type Output struct {
	// Image has the viewport size, top row first.
	Image *image.NRGBA

	// MinDepth is the smallest depth of the volume bounds, in [0, 1].
	MinDepth float64

	ImageSampleDistance float64
	SampleDistance      float64
	ShortCut            bool

	Stats Stats
}

// Renderer caches tables, gradients and the space-leaping index between
// frames. Render must not be called concurrently; Abort may be.
type Renderer struct {
	// Threads is the worker count; 0 uses every CPU.
	Threads int

	// SampleDistance is the full-quality ray step in world units.
	SampleDistance float64

	// ImageSampleDistance is used when Input.DesiredTime is zero.
	ImageSampleDistance float64

	Blend    transfer.BlendMode
	Cropping Cropping
	Planes   []Plane

	// Lights default to a headlight.
	Lights []shading.Light

	// Budget limits gradient field memory.
	Budget gradient.Budget

	// NoSpaceLeaping samples every step.
	NoSpaceLeaping bool

	Controller *adaptive.Controller

	enc     *gradient.SphericalEncoder
	shades  *shading.Cache
	builder transfer.Builder

	field       *gradient.Field
	fieldGrid   *volume.Grid
	fieldFailed mtime.Stamp

	leap       *spaceleap.Index
	index      []uint16
	flagsStamp mtime.Stamp
	flagsGO    bool

	frame *framebuf.Frame
	abort atomic.Bool
	last  *Output
}

// New returns a renderer with unit steps and a fresh adaptive controller.
func New() *Renderer {
	enc := gradient.NewSphericalEncoder()
	return &Renderer{
		SampleDistance:      1,
		ImageSampleDistance: 1,
		Controller:          adaptive.NewController(),
		enc:                 enc,
		shades:              shading.NewCache(enc),
		frame:               framebuf.New(),
	}
}

// Abort stops the running pass at the next row, or the next pass if none is
// running. The aborted Render returns ErrAborted.
func (r *Renderer) Abort() {
	r.abort.Store(true)
}

// Last returns the last completed frame, or nil.
func (r *Renderer) Last() *Output {
	return r.last
}

// Index returns the current space-leaping index, or nil before the first
// frame.
func (r *Renderer) Index() *spaceleap.Index {
	return r.leap
}

func (r *Renderer) check(in *Input) error {
	switch {
	case in.Grid == nil:
		return ErrNoInput
	case in.Property == nil:
		return ErrNoProperty
	case r.Threads < 0 || r.Threads > MaxThreads:
		return fmt.Errorf("%w: %d", ErrBadThreads, r.Threads)
	case in.Viewport.Width <= 0 || in.Viewport.Height <= 0:
		return fmt.Errorf("%w: %dx%d", ErrBadViewport, in.Viewport.Width, in.Viewport.Height)
	}
	if err := in.Grid.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrNoInput, err)
	}
	if err := in.Camera.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrBadViewport, err)
	}
	if err := in.ZBuffer.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrBadViewport, err)
	}
	return nil
}

// frameState is shared read-only by the workers of one pass.
type frameState struct {
	tables   *transfer.Tables
	sampler  sampler
	clip     clipper
	leap     *spaceleap.Index
	shade    [volume.MaxComponents]*shading.Table
	shortCut bool
	nc       int
	helper   helper

	inv             mathutil.Mat4
	size            [2]int
	zbuf            *camera.ZBuffer
	origin, spacing [3]float64
	sampleDistance  float64

	spans []framebuf.Span
	frame *framebuf.Frame
	abort *atomic.Bool
}

// Render draws one frame. On a configuration error nothing is drawn. When
// aborted it returns the last completed output with ErrAborted.
func (r *Renderer) Render(in Input) (*Output, error) {
	start := time.Now()
	defer r.abort.Store(false)

	if err := r.check(&in); err != nil {
		Logger().Warn("frame rejected", "err", err)
		return nil, err
	}
	g, p := in.Grid, in.Property
	nc := g.Components

	view := in.View
	if view == nil {
		view = r
	}
	key := adaptive.Key{View: view, Volume: g}
	dec := adaptive.Decision{ImageSampleDistance: r.ImageSampleDistance, SampleDistance: r.SampleDistance}
	if in.DesiredTime > 0 {
		dec = r.Controller.Decide(key, in.DesiredTime, r.SampleDistance)
	}
	if !(dec.ImageSampleDistance > 0) {
		dec.ImageSampleDistance = 1
	}

	tables, rebuilt, err := r.builder.Build(g, p, dec.SampleDistance, r.Blend)
	if err != nil {
		Logger().Warn("frame rejected", "err", err)
		return nil, fmt.Errorf("raycast: build tables: %w", err)
	}
	if rebuilt {
		Logger().Debug("transfer tables rebuilt", "components", nc, "size", tables.Components[0].Mapping.Size,
			"sampleDistance", dec.SampleDistance, "blend", r.Blend)
	}

	compositing := r.Blend == transfer.Composite
	shade := compositing && p.Shading(nc)
	gradOp := compositing && p.GradientOpacity(nc)
	var field *gradient.Field
	if shade || gradOp {
		r.updateField(g)
		field = r.usableField(g)
		if field == nil {
			shade, gradOp = false, false
		}
	}
	r.updateIndex(g, tables, field, gradOp)

	fs := &frameState{
		tables:         tables,
		clip:           newClipper(g, r.Cropping, r.Planes),
		shortCut:       dec.ShortCut,
		nc:             nc,
		helper:         selectHelper(r.Blend, shade, gradOp),
		zbuf:           in.ZBuffer,
		origin:         g.Origin,
		spacing:        g.Spacing,
		sampleDistance: dec.SampleDistance,
		frame:          r.frame,
		abort:          &r.abort,
	}
	fs.sampler = newSampler(g.Dims, nc, r.index, p.Interpolation == transfer.Nearest)
	fs.sampler.field = field
	if !r.NoSpaceLeaping {
		fs.leap = r.leap
	}
	if shade {
		r.shadeTables(fs, &in)
	}

	vp := in.Viewport
	w := max(1, int(math.Ceil(float64(vp.Width)/dec.ImageSampleDistance)))
	h := max(1, int(math.Ceil(float64(vp.Height)/dec.ImageSampleDistance)))
	fs.size = [2]int{w, h}
	aspect := vp.Aspect()
	m := in.Camera.WorldToDisplay(aspect)
	inv, ok := m.Inverse()
	if !ok {
		err := fmt.Errorf("%w: singular projection", ErrBadViewport)
		Logger().Warn("frame rejected", "err", err)
		return nil, err
	}
	fs.inv = inv

	var corners [8]mathutil.Vec3
	for i := range corners {
		var v [3]float64
		for a := 0; a < 3; a++ {
			v[a] = fs.clip.box[i>>a&1][a]
		}
		corners[i] = g.VoxelToWorld(v)
	}
	fs.spans = rowSpans(m, corners, w, h)

	if r.frame.Resize(fs.size) {
		Logger().Debug("frame buffer reallocated", "size", r.frame.Size)
	}
	cleared := r.frame.SetSpans(fs.spans)

	stats := r.pass(fs)
	if r.abort.Load() {
		r.frame.Invalidate()
		Logger().Debug("frame aborted")
		return r.last, ErrAborted
	}

	stats.Cleared = cleared
	stats.Elapsed = time.Since(start)
	if in.DesiredTime > 0 {
		r.Controller.Record(key, stats.Elapsed, dec.ImageSampleDistance)
	}

	lo, hi := g.Bounds()
	minDepth, _ := in.Camera.DepthRange(aspect, lo, hi)
	out := &Output{
		Image:               postprocess.Finish(r.frame.Image(), vp.Width, vp.Height),
		MinDepth:            minDepth,
		ImageSampleDistance: dec.ImageSampleDistance,
		SampleDistance:      dec.SampleDistance,
		ShortCut:            dec.ShortCut,
		Stats:               stats,
	}
	r.last = out
	Logger().Debug("frame rendered", "size", fs.size, "rays", stats.Rays, "samples", stats.Samples,
		"skipped", stats.Skipped, "elapsed", stats.Elapsed)
	return out, nil
}

func (r *Renderer) updateField(g *volume.Grid) {
	if r.field != nil && r.fieldGrid == g && !g.MTime().Newer(r.field.Stamp) {
		return
	}
	if r.fieldFailed != 0 && r.fieldGrid == g && r.fieldFailed == g.MTime() {
		return
	}
	f, err := gradient.Estimate(g, r.enc, r.Budget)
	if err != nil {
		Logger().Warn("gradient field not rebuilt", "err", err)
		r.fieldGrid = g
		r.fieldFailed = g.MTime()
		return
	}
	r.field, r.fieldGrid, r.fieldFailed = f, g, 0
	Logger().Debug("gradient field rebuilt", "bytes", f.Bytes(), "contiguous", f.Contiguous)
}

// usableField returns the current field if its shape matches g, stale or
// not.
func (r *Renderer) usableField(g *volume.Grid) *gradient.Field {
	if r.field == nil || r.field.Dims != g.Dims || r.field.Components != g.Components {
		return nil
	}
	return r.field
}

// updateIndex keeps the scalar index volume and the space-leaping index in
// step with the grid, tables and gradient field. Flags are refreshed
// whenever anything they depend on changed.
func (r *Renderer) updateIndex(g *volume.Grid, t *transfer.Tables, field *gradient.Field, gradOp bool) {
	rebuilt := r.leap == nil || !r.leap.Current(g, t)
	if rebuilt {
		r.index = indexVolume(g, t)
		r.leap = spaceleap.Build(g, t)
		Logger().Debug("space leaping index rebuilt", "blocks", r.leap.Dims)
	}
	refilled := false
	if gradOp && field != nil && r.leap.GradientStamp() != field.Stamp {
		r.leap.FillGradient(field)
		refilled = true
	}
	if rebuilt || refilled || r.flagsStamp != t.Stamp || r.flagsGO != gradOp {
		r.leap.RefreshFlags(t, gradOp)
		r.flagsStamp, r.flagsGO = t.Stamp, gradOp
		empty, total := r.leap.Counts()
		Logger().Debug("space leaping flags refreshed", "empty", empty, "total", total)
	}
}

func indexVolume(g *volume.Grid, t *transfer.Tables) []uint16 {
	nc := g.Components
	out := make([]uint16, len(g.Data))
	for i, v := range g.Data {
		out[i] = t.Components[i%nc].Mapping.Index(v)
	}
	return out
}

func (r *Renderer) shadeTables(fs *frameState, in *Input) {
	view := in.Camera.Direction().Scale(-1)
	lights := r.Lights
	if len(lights) == 0 {
		lights = []shading.Light{{Direction: view, Intensity: 1}}
	}
	for _, c := range in.Property.ActiveComponents(fs.nc) {
		pc := &in.Property.Components[c]
		if !pc.Shade {
			continue
		}
		m := shading.Material{
			Ambient:       pc.Ambient,
			Diffuse:       pc.Diffuse,
			Specular:      pc.Specular,
			SpecularPower: pc.SpecularPower,
		}
		t, built := r.shades.Get(view, lights, m)
		if built {
			Logger().Debug("shading table built", "component", c)
		}
		fs.shade[c] = t
	}
}

func (r *Renderer) pass(fs *frameState) Stats {
	threads := r.Threads
	if threads == 0 {
		threads = runtime.NumCPU()
	}
	threads = min(threads, fs.size[1])

	workers := make([]worker, threads)
	var wg sync.WaitGroup
	for i := range workers {
		workers[i].fs = fs
		wg.Add(1)
		go func() {
			defer wg.Done()
			workers[i].run(i, threads)
		}()
	}
	wg.Wait()

	var s Stats
	for i := range workers {
		s.add(workers[i].stats)
	}
	return s
}

// worker casts the rays of rows id, id+count, id+2*count, ...
type worker struct {
	fs    *frameState
	stats Stats
	cs    cellSample
}

func (w *worker) run(id, count int) {
	fs := w.fs
	for y := id; y < fs.size[1]; y += count {
		if fs.abort.Load() {
			return
		}
		span := fs.spans[y]
		for x := span.Min; x <= span.Max; x++ {
			var px [4]uint32
			if rr, ok := w.setup(x, y); ok {
				w.stats.Rays++
				px = fs.helper.cast(w, &rr)
			} else {
				w.stats.Missed++
			}
			fs.frame.Set(x, y, [4]uint16{uint16(px[0]), uint16(px[1]), uint16(px[2]), uint16(px[3])})
		}
	}
}

// setup computes the clipped ray of pixel (x, y).
func (w *worker) setup(x, y int) (ray, bool) {
	fs := w.fs
	nx := (float64(x)+0.5)/float64(fs.size[0])*2 - 1
	ny := (float64(y)+0.5)/float64(fs.size[1])*2 - 1
	zfar := math.Min(fs.zbuf.At(nx, ny), 1)

	near, _ := fs.inv.Project(mathutil.Vec3{nx, ny, 0})
	far, _ := fs.inv.Project(mathutil.Vec3{nx, ny, zfar})
	d := far.Sub(near)
	length := d.Len()
	if !(length > 0) {
		return ray{}, false
	}
	dir := d.Scale(1 / length)

	var v0, dv [3]float64
	for a := 0; a < 3; a++ {
		v0[a] = (near[a] - fs.origin[a]) / fs.spacing[a]
		dv[a] = dir[a] / fs.spacing[a]
	}
	t0, t1, depthLimited, ok := fs.clip.interval(v0, dv, length)
	if !ok {
		return ray{}, false
	}

	sd := fs.sampleDistance
	var start, inc [3]float64
	for a := 0; a < 3; a++ {
		start[a] = v0[a] + t0*dv[a]
		inc[a] = dv[a] * sd
	}
	return ray{
		pos:          fixedpt.VecFromFloat(start),
		inc:          fixedpt.VecFromFloat(inc),
		left:         int(math.Floor((t1-t0)/sd+1e-6)) + 1,
		depthLimited: depthLimited,
	}, true
}
