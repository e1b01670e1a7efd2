// Package config reads the INI scene files of the renderer: the volume to
// load, its transfer functions, the camera orbit and the output settings.
//
// A minimal scene:
//
//	[Render]
//	Width = 256
//	Height = 256
//
//	[Volume]
//	Source = sphere
//	Dims = 64 64 64
//
//	[Component "0"]
//	OpacityPoint = 40 0
//	OpacityPoint = 255 0.6
//	ColorPoint = 0 0 0 1
//	ColorPoint = 255 1 0.8 0
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/gcfg.v1"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid scene")

// File is a parsed scene file. Section and variable names are matched case
// insensitively.
type File struct {
	Render    RenderSection
	Volume    VolumeSection
	Camera    CameraSection
	Light     LightSection
	Component map[string]*ComponentSection
	Crop      CropSection
	Plane     map[string]*PlaneSection
}

// RenderSection holds the image, sampling and output settings.
type RenderSection struct {
	Width, Height int

	// Blend is "composite" or "mip".
	Blend string
	// Interpolation is "linear" or "nearest".
	Interpolation string

	SampleDistance      float64
	ImageSampleDistance float64
	OpacityUnitDistance float64

	// DesiredTime is the budget of interactive orbit frames, as a Go
	// duration ("150ms"). Empty renders every frame at full quality.
	DesiredTime string

	// Frames is the number of orbit frames; OrbitDegrees their total sweep.
	Frames       int
	OrbitDegrees float64

	Threads        int
	Workers        int
	Output         string
	PNG            bool
	Dependent      bool
	NoSpaceLeaping bool

	// GradientMemory caps gradient storage in MiB; 0 is unlimited.
	GradientMemory int

	budget time.Duration
}

// VolumeSection picks the grid to render.
type VolumeSection struct {
	// Source is one of sphere, ramp, constant, voxel or slices.
	Source string
	// Dir holds the slice images when Source is slices.
	Dir string

	Dims    string
	Spacing string
	Type    string

	Radius float64
	Value  float64

	gridDims    [3]int
	gridSpacing [3]float64
}

// CameraSection places the camera relative to the volume bounds.
type CameraSection struct {
	Azimuth   float64
	Elevation float64
	ViewAngle float64
	Zoom      float64
	Parallel  bool
}

// LightSection sets one directional light. Without a Direction the light
// follows the camera.
type LightSection struct {
	Direction string
	Intensity float64

	dir       [3]float64
	headlight bool
}

// ComponentSection holds the transfer functions and material of one data
// component. Points are "x y" for opacity and gradient opacity and
// "x r g b" for color.
type ComponentSection struct {
	OpacityPoint  []string
	ColorPoint    []string
	GradientPoint []string

	// Unset material values keep the property defaults.
	Weight        Optional
	Shade         bool
	Ambient       Optional
	Diffuse       Optional
	Specular      Optional
	SpecularPower Optional

	index       int
	opacityPts  [][2]float64
	colorPts    [][4]float64
	gradientPts [][2]float64
}

// CropSection enables cropping. Bounds are xmin xmax ymin ymax zmin zmax in
// world units; Flags keeps regions (0x2000 is the central sub-volume).
type CropSection struct {
	Enabled bool
	Bounds  string
	Flags   string

	box  [6]float64
	mask uint32
}

// PlaneSection is a clip plane; the side Normal points to is kept.
type PlaneSection struct {
	Origin string
	Normal string

	point, dir [3]float64
}

// Default returns a file with every default applied.
func Default() *File {
	return &File{
		Render: RenderSection{
			Width:               256,
			Height:              256,
			Blend:               "composite",
			Interpolation:       "linear",
			SampleDistance:      1,
			ImageSampleDistance: 1,
			OpacityUnitDistance: 1,
			Frames:              1,
			OrbitDegrees:        360,
			Output:              "renders",
		},
		Volume: VolumeSection{
			Source: "sphere",
			Dims:   "64 64 64",
			Type:   "uint8",
			Value:  200,
		},
		Camera: CameraSection{ViewAngle: 30, Zoom: 1},
		Light:  LightSection{Intensity: 1},
		Crop:   CropSection{Flags: "0x2000"},
	}
}

// Read parses the scene file at path over the defaults and validates it.
func Read(path string) (*File, error) {
	f := Default()
	if err := gcfg.ReadFileInto(f, path); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if f.Volume.Source == "slices" && f.Volume.Dir != "" && !filepath.IsAbs(f.Volume.Dir) {
		f.Volume.Dir = filepath.Join(filepath.Dir(path), f.Volume.Dir)
	}
	if err := f.CheckInit(); err != nil {
		return nil, err
	}
	return f, nil
}

// Parse is Read for an in-memory scene.
func Parse(text string) (*File, error) {
	f := Default()
	if err := gcfg.ReadStringInto(f, text); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := f.CheckInit(); err != nil {
		return nil, err
	}
	return f, nil
}

// CheckInit validates every section and fills derived values.
func (f *File) CheckInit() error {
	if err := f.Render.CheckInit(); err != nil {
		return err
	}
	if err := f.Volume.CheckInit(); err != nil {
		return err
	}
	if err := f.Camera.CheckInit(); err != nil {
		return err
	}
	if err := f.Light.CheckInit(); err != nil {
		return err
	}
	for name, c := range f.Component {
		if err := c.CheckInit(name); err != nil {
			return err
		}
	}
	if err := f.Crop.CheckInit(); err != nil {
		return err
	}
	for name, p := range f.Plane {
		if err := p.CheckInit(name); err != nil {
			return err
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

// CheckInit validates the render section.
func (r *RenderSection) CheckInit() error {
	switch {
	case r.Width <= 0 || r.Height <= 0:
		return invalid("Render size must be positive, is %dx%d", r.Width, r.Height)
	case !(r.SampleDistance > 0):
		return invalid("Render SampleDistance must be positive, is %g", r.SampleDistance)
	case r.ImageSampleDistance < 1:
		return invalid("Render ImageSampleDistance must be at least 1, is %g", r.ImageSampleDistance)
	case !(r.OpacityUnitDistance > 0):
		return invalid("Render OpacityUnitDistance must be positive, is %g", r.OpacityUnitDistance)
	case r.Frames <= 0:
		return invalid("Render Frames must be positive, is %d", r.Frames)
	case r.Threads < 0 || r.Workers < 0:
		return invalid("Render Threads and Workers must not be negative")
	case r.GradientMemory < 0:
		return invalid("Render GradientMemory must not be negative")
	}
	r.Blend = strings.ToLower(r.Blend)
	r.Interpolation = strings.ToLower(r.Interpolation)
	switch r.Blend {
	case "composite", "mip":
	default:
		return invalid("Render Blend must be composite or mip, is %q", r.Blend)
	}
	switch r.Interpolation {
	case "linear", "nearest":
	default:
		return invalid("Render Interpolation must be linear or nearest, is %q", r.Interpolation)
	}
	r.budget = 0
	if r.DesiredTime != "" {
		d, err := time.ParseDuration(r.DesiredTime)
		if err != nil || d <= 0 {
			return invalid("Render DesiredTime %q is not a positive duration", r.DesiredTime)
		}
		r.budget = d
	}
	return nil
}

// Desired returns the parsed DesiredTime, zero when unset.
func (r *RenderSection) Desired() time.Duration {
	return r.budget
}

// CheckInit validates the volume section.
func (v *VolumeSection) CheckInit() error {
	switch v.Source {
	case "sphere", "ramp", "constant", "voxel":
	case "slices":
		if v.Dir == "" {
			return invalid("Volume Source slices needs a Dir")
		}
	default:
		return invalid("Volume Source %q is not one of sphere, ramp, constant, voxel, slices", v.Source)
	}

	if v.Source != "slices" {
		d, err := parseFloats(v.Dims, 3)
		if err != nil {
			return invalid("Volume Dims: %v", err)
		}
		for i, x := range d {
			if x < 1 || x != float64(int(x)) {
				return invalid("Volume Dims must be positive integers, is %q", v.Dims)
			}
			v.gridDims[i] = int(x)
		}
	}

	v.gridSpacing = [3]float64{1, 1, 1}
	if v.Spacing != "" {
		s, err := parseFloats(v.Spacing, 3)
		if err != nil {
			return invalid("Volume Spacing: %v", err)
		}
		for i, x := range s {
			if !(x > 0) {
				return invalid("Volume Spacing must be positive, is %q", v.Spacing)
			}
			v.gridSpacing[i] = x
		}
	}
	return nil
}

// CheckInit validates the camera section.
func (c *CameraSection) CheckInit() error {
	if !(c.ViewAngle > 0 && c.ViewAngle < 180) {
		return invalid("Camera ViewAngle must be in (0, 180), is %g", c.ViewAngle)
	}
	if !(c.Zoom > 0) {
		return invalid("Camera Zoom must be positive, is %g", c.Zoom)
	}
	return nil
}

// CheckInit validates the light section.
func (l *LightSection) CheckInit() error {
	if l.Intensity < 0 {
		return invalid("Light Intensity must not be negative, is %g", l.Intensity)
	}
	l.headlight = l.Direction == ""
	if l.headlight {
		return nil
	}
	d, err := parseFloats(l.Direction, 3)
	if err != nil {
		return invalid("Light Direction: %v", err)
	}
	if d[0] == 0 && d[1] == 0 && d[2] == 0 {
		return invalid("Light Direction must not be zero")
	}
	copy(l.dir[:], d)
	return nil
}

// CheckInit validates component name, which must be its index.
func (c *ComponentSection) CheckInit(name string) error {
	i, err := strconv.Atoi(name)
	if err != nil || i < 0 || i > 3 {
		return invalid("Component %q must be named 0 to 3", name)
	}
	c.index = i
	if c.Weight.Value < 0 {
		return invalid("Component %q Weight must not be negative", name)
	}

	c.opacityPts, c.gradientPts, c.colorPts = nil, nil, nil
	for _, s := range c.OpacityPoint {
		p, err := parseFloats(s, 2)
		if err != nil {
			return invalid("Component %q OpacityPoint: %v", name, err)
		}
		c.opacityPts = append(c.opacityPts, [2]float64{p[0], p[1]})
	}
	for _, s := range c.GradientPoint {
		p, err := parseFloats(s, 2)
		if err != nil {
			return invalid("Component %q GradientPoint: %v", name, err)
		}
		c.gradientPts = append(c.gradientPts, [2]float64{p[0], p[1]})
	}
	for _, s := range c.ColorPoint {
		p, err := parseFloats(s, 4)
		if err != nil {
			return invalid("Component %q ColorPoint: %v", name, err)
		}
		c.colorPts = append(c.colorPts, [4]float64{p[0], p[1], p[2], p[3]})
	}
	return nil
}

// CheckInit validates the crop section.
func (c *CropSection) CheckInit() error {
	if !c.Enabled {
		return nil
	}
	b, err := parseFloats(c.Bounds, 6)
	if err != nil {
		return invalid("Crop Bounds: %v", err)
	}
	copy(c.box[:], b)
	flags, err := strconv.ParseUint(c.Flags, 0, 32)
	if err != nil || flags >= 1<<27 {
		return invalid("Crop Flags %q must be a 27-bit region mask", c.Flags)
	}
	c.mask = uint32(flags)
	return nil
}

// CheckInit validates clip plane name.
func (p *PlaneSection) CheckInit(name string) error {
	o, err := parseFloats(p.Origin, 3)
	if err != nil {
		return invalid("Plane %q Origin: %v", name, err)
	}
	n, err := parseFloats(p.Normal, 3)
	if err != nil {
		return invalid("Plane %q Normal: %v", name, err)
	}
	if n[0] == 0 && n[1] == 0 && n[2] == 0 {
		return invalid("Plane %q Normal must not be zero", name)
	}
	copy(p.point[:], o)
	copy(p.dir[:], n)
	return nil
}

// Optional is a number that remembers whether the file set it.
type Optional struct {
	Value float64
	Set   bool
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Optional) UnmarshalText(text []byte) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(text)), 64)
	if err != nil {
		return err
	}
	o.Value, o.Set = v, true
	return nil
}

// Or returns the value, or def when unset.
func (o Optional) Or(def float64) float64 {
	if o.Set {
		return o.Value
	}
	return def
}

// parseFloats reads exactly n space- or comma-separated numbers.
func parseFloats(s string, n int) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
	if len(fields) != n {
		return nil, fmt.Errorf("want %d numbers, have %q", n, s)
	}
	out := make([]float64, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", f)
		}
		out[i] = v
	}
	return out, nil
}

// Flags holds CLI flag values that override scene file settings.
type Flags struct {
	VolumeDir string
	OutputDir string
	Workers   int
	Threads   int
	Frames    int
	Size      int
}

// Resolve applies flags over the file and fills the remaining defaults.
// CLI flags take priority when non-zero/non-empty.
func (f *File) Resolve(flags Flags) {
	if flags.VolumeDir != "" {
		f.Volume.Source = "slices"
		f.Volume.Dir = flags.VolumeDir
	}
	if flags.OutputDir != "" {
		f.Render.Output = flags.OutputDir
	}
	if flags.Workers > 0 {
		f.Render.Workers = flags.Workers
	}
	if flags.Threads > 0 {
		f.Render.Threads = flags.Threads
	}
	if flags.Frames > 0 {
		f.Render.Frames = flags.Frames
	}
	if flags.Size > 0 {
		f.Render.Width, f.Render.Height = flags.Size, flags.Size
	}

	if f.Render.Workers <= 0 {
		f.Render.Workers = runtime.NumCPU()
	}
	if f.Render.Output == "" {
		f.Render.Output = "renders"
	}
	if len(f.Component) == 0 {
		f.Component = map[string]*ComponentSection{"0": {}}
	}
}
