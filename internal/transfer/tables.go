package transfer

import (
	"errors"
	"fmt"
	"math"

	"volray/internal/gradient"
	"volray/internal/mtime"
	"volray/internal/volume"
)

const (
	// MaxTableSize is the largest scalar table.
	MaxTableSize = 32768

	// GradientTableSize is the number of gradient-opacity entries, one per
	// magnitude byte.
	GradientTableSize = 256

	// FixedShift and FixedOne describe the 15-bit fixed-point scale used for
	// table entries: FixedOne is 1.0.
	FixedShift = 15
	FixedOne   = 1<<FixedShift - 1
)

// ErrTableParams is returned for out-of-range table parameters.
var ErrTableParams = errors.New("transfer: invalid table parameters")

// CorrectOpacity adjusts an opacity defined per unitDistance to a step of
// sampleDistance: 1 - (1-raw)^(sampleDistance/unitDistance).
func CorrectOpacity(raw, sampleDistance, unitDistance float64) float64 {
	if raw <= 0 {
		return 0
	}
	if raw >= 1 {
		return 1
	}
	return 1 - math.Pow(1-raw, sampleDistance/unitDistance)
}

// Mapping converts native scalar values to table indices:
// index = (value + Shift) * Scale, clamped to [0, Size-1].
type Mapping struct {
	Shift float64
	Scale float64
	Size  int
}

// NewMapping picks the table mapping for data of type typ spanning rng. An
// integer range that fits in the table is mapped directly; everything else
// is scaled onto the full table.
func NewMapping(typ volume.ScalarType, rng [2]float64) Mapping {
	width := rng[1] - rng[0]
	if !typ.IsReal() {
		size := int(math.Ceil(width)) + 1
		if size <= MaxTableSize {
			return Mapping{Shift: -rng[0], Scale: 1, Size: size}
		}
	}
	scale := 1.0
	if width > 0 {
		scale = float64(MaxTableSize-1) / width
	}
	return Mapping{Shift: -rng[0], Scale: scale, Size: MaxTableSize}
}

// Index returns the table index of v.
func (m Mapping) Index(v float64) uint16 {
	f := (v + m.Shift) * m.Scale
	if !(f > 0) {
		return 0
	}
	if f >= float64(m.Size-1) {
		return uint16(m.Size - 1)
	}
	return uint16(f)
}

// Value returns the scalar value at table index i.
func (m Mapping) Value(i int) float64 {
	return float64(i)/m.Scale - m.Shift
}

// ComponentTables holds the lookup tables of one data component. Entries are
// fixed point with FixedOne == 1.0.
type ComponentTables struct {
	Mapping         Mapping
	Color           [][3]uint16
	ScalarOpacity   []uint16
	GradientOpacity [GradientTableSize]uint16

	// GradientOpacityOn is false when the component has no gradient-opacity
	// function; GradientOpacity is then all FixedOne.
	GradientOpacityOn bool

	// FirstOpaque is the first index with non-zero scalar opacity, or
	// Mapping.Size when there is none.
	FirstOpaque int

	// FirstGradient is the first magnitude byte with non-zero gradient
	// opacity, GradientTableSize when there is none and 0 when gradient
	// opacity is off.
	FirstGradient int
}

// Tables is an immutable snapshot of every table the ray caster reads.
type Tables struct {
	Components     []ComponentTables
	Blend          BlendMode
	SampleDistance float64
	Independent    bool

	// DirectRGB means dependent four-component data: component c's table
	// carries the ramp for color channel c.
	DirectRGB bool

	// Weights are the independent component weights, in fixed point.
	Weights [4]uint16

	Stamp mtime.Stamp
}

// OpacityComponent returns the component whose opacity tables drive the
// rendering when components are dependent.
func (t *Tables) OpacityComponent() int {
	return len(t.Components) - 1
}

func toFixed(v float64) uint16 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return FixedOne
	}
	return uint16(v*FixedOne + 0.5)
}

func buildComponent(typ volume.ScalarType, rng [2]float64, c *Component, opts buildOptions) ComponentTables {
	m := NewMapping(typ, rng)
	ct := ComponentTables{
		Mapping:       m,
		Color:         make([][3]uint16, m.Size),
		ScalarOpacity: make([]uint16, m.Size),
		FirstOpaque:   m.Size,
	}

	for i := 0; i < m.Size; i++ {
		x := m.Value(i)

		var rgb [3]float64
		switch {
		case opts.directRGB:
			g := x / 255
			rgb = [3]float64{g, g, g}
		case c.Color != nil:
			rgb = c.Color.Color(x)
		case c.Gray != nil:
			g := c.Gray.Value(x)
			rgb = [3]float64{g, g, g}
		default:
			rgb = [3]float64{1, 1, 1}
		}
		ct.Color[i] = [3]uint16{toFixed(rgb[0]), toFixed(rgb[1]), toFixed(rgb[2])}

		o := 1.0
		if c.ScalarOpacity != nil {
			o = c.ScalarOpacity.Value(x)
		}
		if opts.blend == Composite {
			o = CorrectOpacity(o, opts.sampleDistance, opts.unitDistance)
		}
		ct.ScalarOpacity[i] = toFixed(o)
		if ct.ScalarOpacity[i] > 0 && ct.FirstOpaque == m.Size {
			ct.FirstOpaque = i
		}
	}

	if c.GradientOpacity == nil {
		for i := range ct.GradientOpacity {
			ct.GradientOpacity[i] = FixedOne
		}
		return ct
	}

	ct.GradientOpacityOn = true
	ct.FirstGradient = GradientTableSize
	gscale := gradient.MagnitudeScale(rng)
	for i := range ct.GradientOpacity {
		ct.GradientOpacity[i] = toFixed(c.GradientOpacity.Value(float64(i) / gscale))
		if ct.GradientOpacity[i] > 0 && ct.FirstGradient == GradientTableSize {
			ct.FirstGradient = i
		}
	}
	return ct
}

type buildOptions struct {
	blend          BlendMode
	sampleDistance float64
	unitDistance   float64
	directRGB      bool
}

type funcKey struct {
	color         *ColorFunction
	colorStamp    mtime.Stamp
	gray          *PiecewiseFunction
	grayStamp     mtime.Stamp
	opacity       *PiecewiseFunction
	opacityStamp  mtime.Stamp
	gradient      *PiecewiseFunction
	gradientStamp mtime.Stamp
}

type buildKey struct {
	prop           *Property
	propStamp      mtime.Stamp
	funcs          [4]funcKey
	ranges         [4][2]float64
	typ            volume.ScalarType
	components     int
	sampleDistance float64
	blend          BlendMode
}

func colorStamp(f *ColorFunction) mtime.Stamp {
	if f == nil {
		return 0
	}
	return f.MTime()
}

func pieceStamp(f *PiecewiseFunction) mtime.Stamp {
	if f == nil {
		return 0
	}
	return f.MTime()
}

func keyFor(g *volume.Grid, p *Property, sampleDistance float64, blend BlendMode) buildKey {
	k := buildKey{
		prop:           p,
		propStamp:      p.MTime(),
		typ:            g.Type,
		components:     g.Components,
		sampleDistance: sampleDistance,
		blend:          blend,
	}
	for c := 0; c < g.Components; c++ {
		pc := &p.Components[c]
		k.funcs[c] = funcKey{
			color:         pc.Color,
			colorStamp:    colorStamp(pc.Color),
			gray:          pc.Gray,
			grayStamp:     pieceStamp(pc.Gray),
			opacity:       pc.ScalarOpacity,
			opacityStamp:  pieceStamp(pc.ScalarOpacity),
			gradient:      pc.GradientOpacity,
			gradientStamp: pieceStamp(pc.GradientOpacity),
		}
		k.ranges[c] = g.Range(c)
	}
	return k
}

// Builder rebuilds Tables only when one of their inputs changed: a function
// object was swapped or modified, the property changed, the sample distance
// or blend mode changed, or the data range moved.
type Builder struct {
	key    buildKey
	tables *Tables
}

// Tables returns the last built tables, or nil.
func (b *Builder) Tables() *Tables {
	return b.tables
}

// Build returns up-to-date tables for g and p. rebuilt reports whether new
// tables were produced; on error the previous tables stay in place.
func (b *Builder) Build(g *volume.Grid, p *Property, sampleDistance float64, blend BlendMode) (t *Tables, rebuilt bool, err error) {
	if g == nil || p == nil {
		return b.tables, false, fmt.Errorf("%w: nil grid or property", ErrTableParams)
	}
	if !(sampleDistance > 0) || math.IsInf(sampleDistance, 0) {
		return b.tables, false, fmt.Errorf("%w: sample distance %g", ErrTableParams, sampleDistance)
	}
	if !(p.ScalarOpacityUnitDistance > 0) {
		return b.tables, false, fmt.Errorf("%w: opacity unit distance %g", ErrTableParams, p.ScalarOpacityUnitDistance)
	}
	if g.Components < 1 || g.Components > volume.MaxComponents {
		return b.tables, false, fmt.Errorf("%w: %d components", ErrTableParams, g.Components)
	}

	key := keyFor(g, p, sampleDistance, blend)
	if b.tables != nil && key == b.key {
		return b.tables, false, nil
	}

	directRGB := !p.IndependentComponents && g.Components == 4
	t = &Tables{
		Components:     make([]ComponentTables, g.Components),
		Blend:          blend,
		SampleDistance: sampleDistance,
		Independent:    p.IndependentComponents,
		DirectRGB:      directRGB,
		Stamp:          mtime.Next(),
	}
	for c := 0; c < g.Components; c++ {
		opts := buildOptions{
			blend:          blend,
			sampleDistance: sampleDistance,
			unitDistance:   p.ScalarOpacityUnitDistance,
			directRGB:      directRGB && c < 3,
		}
		t.Components[c] = buildComponent(g.Type, key.ranges[c], &p.Components[c], opts)
		t.Weights[c] = toFixed(p.Components[c].Weight)
	}

	b.key = key
	b.tables = t
	return t, true, nil
}
