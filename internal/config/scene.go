package config

import (
	"fmt"

	"volray/internal/camera"
	"volray/internal/gradient"
	"volray/internal/mathutil"
	"volray/internal/raycast"
	"volray/internal/shading"
	"volray/internal/transfer"
	"volray/internal/volume"
)

// Grid builds the configured volume.
func (f *File) Grid() (*volume.Grid, error) {
	v := &f.Volume
	var (
		g   *volume.Grid
		err error
	)
	if v.Source == "slices" {
		g, err = volume.LoadSlices(v.Dir)
	} else {
		typ, perr := volume.ParseScalarType(v.Type)
		if perr != nil {
			return nil, fmt.Errorf("config: %w", perr)
		}
		d := v.gridDims
		switch v.Source {
		case "sphere":
			radius := v.Radius
			if radius <= 0 {
				radius = float64(min(d[0], d[1], d[2])-1) / 2
			}
			g, err = volume.Sphere(d, typ, radius, v.Value)
		case "ramp":
			g, err = volume.Ramp(d, typ, 0, v.Value)
		case "constant":
			g, err = volume.Constant(d, typ, v.Value)
		case "voxel":
			g, err = volume.SingleVoxel(d, typ, [3]int{d[0] / 2, d[1] / 2, d[2] / 2}, v.Value, 0)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("config: volume: %w", err)
	}
	g.Spacing = v.gridSpacing
	g.Modified()
	return g, nil
}

// Property builds the transfer functions for g. A component without
// opacity points gets a linear ramp over its data range.
func (f *File) Property(g *volume.Grid) *transfer.Property {
	p := transfer.NewProperty()
	if f.Render.Interpolation == "nearest" {
		p.Interpolation = transfer.Nearest
	}
	p.IndependentComponents = !f.Render.Dependent
	p.ScalarOpacityUnitDistance = f.Render.OpacityUnitDistance

	for _, cs := range f.Component {
		c := cs.index
		if c >= g.Components {
			continue
		}
		if len(cs.opacityPts) > 0 {
			pf := transfer.NewPiecewiseFunction()
			for _, pt := range cs.opacityPts {
				pf.AddPoint(pt[0], pt[1])
			}
			p.SetScalarOpacity(c, pf)
		} else {
			rng := g.Range(c)
			p.SetScalarOpacity(c, transfer.NewPiecewiseFunction(
				transfer.Point{X: rng[0], Y: 0}, transfer.Point{X: rng[1], Y: 1}))
		}
		if len(cs.colorPts) > 0 {
			cf := transfer.NewColorFunction()
			for _, pt := range cs.colorPts {
				cf.AddRGBPoint(pt[0], pt[1], pt[2], pt[3])
			}
			p.SetColor(c, cf)
		}
		if len(cs.gradientPts) > 0 {
			gf := transfer.NewPiecewiseFunction()
			for _, pt := range cs.gradientPts {
				gf.AddPoint(pt[0], pt[1])
			}
			p.SetGradientOpacity(c, gf)
		}
		p.SetShade(c, cs.Shade)

		pc := &p.Components[c]
		pc.Weight = cs.Weight.Or(pc.Weight)
		pc.Ambient = cs.Ambient.Or(pc.Ambient)
		pc.Diffuse = cs.Diffuse.Or(pc.Diffuse)
		pc.Specular = cs.Specular.Or(pc.Specular)
		pc.SpecularPower = cs.SpecularPower.Or(pc.SpecularPower)
	}
	p.Modified()
	return p
}

// Viewport returns the output image size.
func (f *File) Viewport() camera.Viewport {
	return camera.Viewport{Width: f.Render.Width, Height: f.Render.Height}
}

// OrbitCamera frames g and turns it to orbit frame i.
func (f *File) OrbitCamera(g *volume.Grid, i int) camera.Camera {
	cs := &f.Camera
	c := camera.New()
	c.ViewAngle = cs.ViewAngle
	c.Parallel = cs.Parallel
	lo, hi := g.Bounds()
	c.ResetToBounds(lo, hi)

	az := cs.Azimuth
	if f.Render.Frames > 1 {
		az += f.Render.OrbitDegrees * float64(i) / float64(f.Render.Frames)
	}
	c.Azimuth(az)
	c.Elevation(cs.Elevation)
	c.Zoom(cs.Zoom)
	return c
}

// Apply copies the sampling, clipping and lighting settings into r.
func (f *File) Apply(r *raycast.Renderer) {
	rs := &f.Render
	r.Threads = rs.Threads
	r.SampleDistance = rs.SampleDistance
	r.ImageSampleDistance = rs.ImageSampleDistance
	r.NoSpaceLeaping = rs.NoSpaceLeaping
	r.Blend = transfer.Composite
	if rs.Blend == "mip" {
		r.Blend = transfer.MaximumIntensity
	}
	r.Budget = gradient.Budget{MaxTotal: int64(rs.GradientMemory) << 20}

	r.Cropping = raycast.Cropping{}
	if f.Crop.Enabled {
		r.Cropping = raycast.Cropping{Enabled: true, Planes: f.Crop.box, Flags: f.Crop.mask}
	}

	r.Planes = r.Planes[:0]
	for _, p := range f.Plane {
		r.Planes = append(r.Planes, raycast.Plane{Origin: mathutil.Vec3(p.point), Normal: mathutil.Vec3(p.dir)})
	}

	r.Lights = nil
	if !f.Light.headlight {
		r.Lights = []shading.Light{{Direction: f.Light.dir, Intensity: f.Light.Intensity}}
	}
}
