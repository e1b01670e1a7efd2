package transfer

import (
	"fmt"

	"volray/internal/mtime"
)

// Interpolation selects how samples between voxels are reconstructed.
type Interpolation int

const (
	Nearest Interpolation = iota
	Linear
)

func (i Interpolation) String() string {
	if i == Nearest {
		return "nearest"
	}
	return "linear"
}

// BlendMode selects how samples along a ray are combined.
type BlendMode int

const (
	// Composite accumulates color and opacity front to back.
	Composite BlendMode = iota
	// MaximumIntensity keeps the largest scalar seen along the ray.
	MaximumIntensity
)

func (b BlendMode) String() string {
	if b == MaximumIntensity {
		return "mip"
	}
	return "composite"
}

// Component carries the transfer functions and lighting of one data
// component. A nil Color falls back to Gray, and a nil Gray to white. A nil
// ScalarOpacity is fully opaque. A nil GradientOpacity disables gradient
// opacity modulation for the component.
type Component struct {
	Color           *ColorFunction
	Gray            *PiecewiseFunction
	ScalarOpacity   *PiecewiseFunction
	GradientOpacity *PiecewiseFunction

	// Weight scales the component's contribution when components are
	// independent.
	Weight float64

	Shade         bool
	Ambient       float64
	Diffuse       float64
	Specular      float64
	SpecularPower float64
}

// Property describes how a volume is rendered. Call Modified after changing
// fields directly; the setters do it for you. Function objects carry their own
// stamps, so editing a function's points does not require touching the
// property.
type Property struct {
	mtime.Tracker

	Components    [4]Component
	Interpolation Interpolation

	// IndependentComponents evaluates each component's functions on its own
	// data. When false, color comes from component 0 (or directly from
	// components 0..2 for four-component data) and opacity, gradient opacity
	// and shading come from the last component.
	IndependentComponents bool

	// ScalarOpacityUnitDistance is the world distance over which the
	// scalar-opacity function values apply unchanged.
	ScalarOpacityUnitDistance float64
}

// NewProperty returns a property with linear interpolation, independent
// components, unit weights and a dull default lighting model.
func NewProperty() *Property {
	p := &Property{
		Interpolation:             Linear,
		IndependentComponents:     true,
		ScalarOpacityUnitDistance: 1,
	}
	for i := range p.Components {
		p.Components[i] = Component{
			Weight:        1,
			Ambient:       0.1,
			Diffuse:       0.7,
			Specular:      0.2,
			SpecularPower: 10,
		}
	}
	p.Modified()
	return p
}

func (p *Property) check(c int) {
	if c < 0 || c >= len(p.Components) {
		panic(fmt.Sprintf("transfer: component %d out of range", c))
	}
}

// SetColor attaches an RGB color function to component c.
func (p *Property) SetColor(c int, f *ColorFunction) {
	p.check(c)
	p.Components[c].Color = f
	p.Modified()
}

// SetGray attaches a gray color function to component c.
func (p *Property) SetGray(c int, f *PiecewiseFunction) {
	p.check(c)
	p.Components[c].Gray = f
	p.Modified()
}

// SetScalarOpacity attaches a scalar opacity function to component c.
func (p *Property) SetScalarOpacity(c int, f *PiecewiseFunction) {
	p.check(c)
	p.Components[c].ScalarOpacity = f
	p.Modified()
}

// SetGradientOpacity attaches a gradient opacity function to component c.
// Pass nil to disable gradient opacity.
func (p *Property) SetGradientOpacity(c int, f *PiecewiseFunction) {
	p.check(c)
	p.Components[c].GradientOpacity = f
	p.Modified()
}

// SetShade turns shading on or off for component c.
func (p *Property) SetShade(c int, on bool) {
	p.check(c)
	p.Components[c].Shade = on
	p.Modified()
}

// OpacityComponent returns the data component whose opacity drives the
// rendering when components are dependent.
func (p *Property) OpacityComponent(numComponents int) int {
	return numComponents - 1
}

// ActiveComponents lists the property slots whose opacity settings apply for
// data with numComponents components.
func (p *Property) ActiveComponents(numComponents int) []int {
	if !p.IndependentComponents {
		return []int{p.OpacityComponent(numComponents)}
	}
	out := make([]int, numComponents)
	for i := range out {
		out[i] = i
	}
	return out
}

// Shading reports whether any active component is shaded.
func (p *Property) Shading(numComponents int) bool {
	for _, c := range p.ActiveComponents(numComponents) {
		if p.Components[c].Shade {
			return true
		}
	}
	return false
}

// GradientOpacity reports whether any active component uses gradient opacity.
func (p *Property) GradientOpacity(numComponents int) bool {
	for _, c := range p.ActiveComponents(numComponents) {
		if p.Components[c].GradientOpacity != nil {
			return true
		}
	}
	return false
}
