// Package shading precomputes Blinn-Phong lighting for every encoded normal
// direction, so shading a sample costs two table lookups.
package shading

import (
	"github.com/chewxy/math32"

	"volray/internal/gradient"
)

// FixedOne is 1.0 in the tables' 15-bit fixed point.
const FixedOne = 1<<15 - 1

// Light is a directional light. Direction points from the scene toward the
// light.
type Light struct {
	Direction [3]float64
	Intensity float64
}

// Material holds the lighting coefficients of one component.
type Material struct {
	Ambient       float64
	Diffuse       float64
	Specular      float64
	SpecularPower float64
}

// Table is the lighting of one material, indexed by encoded direction.
// Diffuse includes the ambient term and multiplies the sample color;
// Specular is added on top, scaled by opacity.
type Table struct {
	Diffuse  []uint16
	Specular []uint16
}

// Key identifies the inputs of a set of tables.
type Key struct {
	View     [3]float64
	Lights   [2]Light
	NLights  int
	Material Material
}

func vec32(v [3]float64) [3]float32 {
	l := math32.Sqrt(float32(v[0]*v[0] + v[1]*v[1] + v[2]*v[2]))
	if l == 0 {
		return [3]float32{}
	}
	return [3]float32{float32(v[0]) / l, float32(v[1]) / l, float32(v[2]) / l}
}

func dot(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func toFixed(v float32) uint16 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return FixedOne
	}
	return uint16(v*FixedOne + 0.5)
}

// Build computes the table for material m lit by lights and seen along view,
// which points from the scene toward the eye. Lighting is two-sided: a
// normal facing away from a light is flipped before evaluating that light.
func Build(enc *gradient.SphericalEncoder, view [3]float64, lights []Light, m Material) *Table {
	t := &Table{
		Diffuse:  make([]uint16, gradient.NumDirections),
		Specular: make([]uint16, gradient.NumDirections),
	}

	v := vec32(view)
	type lit struct {
		dir, half [3]float32
		intensity float32
	}
	ls := make([]lit, 0, len(lights))
	for _, l := range lights {
		d := vec32(l.Direction)
		h := vec32([3]float64{
			float64(d[0] + v[0]),
			float64(d[1] + v[1]),
			float64(d[2] + v[2]),
		})
		ls = append(ls, lit{dir: d, half: h, intensity: float32(l.Intensity)})
	}

	ambient := float32(m.Ambient)
	kd := float32(m.Diffuse)
	ks := float32(m.Specular)
	power := float32(m.SpecularPower)

	for code := 0; code < gradient.NumDirections; code++ {
		n := enc.Decode(uint16(code))
		diffuse := ambient
		var spec float32
		for _, l := range ls {
			ndl := dot(n, l.dir)
			sign := float32(1)
			if ndl < 0 {
				ndl, sign = -ndl, -1
			}
			diffuse += kd * l.intensity * ndl

			ndh := sign * dot(n, l.half)
			if ndh > 0 && ks > 0 {
				spec += ks * l.intensity * math32.Pow(ndh, power)
			}
		}
		t.Diffuse[code] = toFixed(diffuse)
		t.Specular[code] = toFixed(spec)
	}
	return t
}

// Cache rebuilds tables only when the view, lights or material change.
type Cache struct {
	enc    *gradient.SphericalEncoder
	tables map[Key]*Table
}

// NewCache returns an empty cache for encoder enc.
func NewCache(enc *gradient.SphericalEncoder) *Cache {
	return &Cache{enc: enc, tables: make(map[Key]*Table)}
}

// Get returns the table for the given inputs, building it if needed. Only
// the first two lights are honored. Entries from other views are dropped.
func (c *Cache) Get(view [3]float64, lights []Light, m Material) (*Table, bool) {
	k := Key{View: view, Material: m}
	k.NLights = copy(k.Lights[:], lights)
	if t, ok := c.tables[k]; ok {
		return t, false
	}
	for old := range c.tables {
		if old.View != view || old.Lights != k.Lights || old.NLights != k.NLights {
			delete(c.tables, old)
		}
	}
	t := Build(c.enc, view, k.Lights[:k.NLights], m)
	c.tables[k] = t
	return t, true
}
