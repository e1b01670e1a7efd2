package shading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volray/internal/gradient"
)

var headlight = []Light{{Direction: [3]float64{0, 0, 1}, Intensity: 1}}

func TestBuildHeadlight(t *testing.T) {
	enc := gradient.NewSphericalEncoder()
	m := Material{Ambient: 0.1, Diffuse: 0.7, Specular: 0.2, SpecularPower: 10}
	tab := Build(enc, [3]float64{0, 0, 1}, headlight, m)
	require.Len(t, tab.Diffuse, gradient.NumDirections)

	facing := enc.Encode([3]float64{0, 0, 1})
	away := enc.Encode([3]float64{0, 0, -1})
	side := enc.Encode([3]float64{1, 0, 0})

	assert.InDelta(t, 0.8*FixedOne, float64(tab.Diffuse[facing]), 20)
	assert.InDelta(t, 0.2*FixedOne, float64(tab.Specular[facing]), 20)

	// Two-sided: the back face is lit like the front.
	assert.Equal(t, tab.Diffuse[facing], tab.Diffuse[away])
	assert.Equal(t, tab.Specular[facing], tab.Specular[away])

	assert.InDelta(t, 0.1*FixedOne, float64(tab.Diffuse[side]), 50)
	assert.Less(t, tab.Specular[side], uint16(10))

	assert.InDelta(t, 0.1*FixedOne, float64(tab.Diffuse[gradient.ZeroNormal]), 1)
	assert.Zero(t, tab.Specular[gradient.ZeroNormal])
}

func TestBuildClamps(t *testing.T) {
	enc := gradient.NewSphericalEncoder()
	m := Material{Ambient: 0.5, Diffuse: 1, Specular: 2, SpecularPower: 1}
	tab := Build(enc, [3]float64{0, 0, 1}, headlight, m)
	facing := enc.Encode([3]float64{0, 0, 1})
	assert.Equal(t, uint16(FixedOne), tab.Diffuse[facing])
	assert.Equal(t, uint16(FixedOne), tab.Specular[facing])
}

func TestCache(t *testing.T) {
	c := NewCache(gradient.NewSphericalEncoder())
	m := Material{Ambient: 0.1, Diffuse: 0.7}
	a, built := c.Get([3]float64{0, 0, 1}, headlight, m)
	assert.True(t, built)
	b, built := c.Get([3]float64{0, 0, 1}, headlight, m)
	assert.False(t, built)
	assert.Same(t, a, b)

	_, built = c.Get([3]float64{1, 0, 0}, headlight, m)
	assert.True(t, built)
	assert.Len(t, c.tables, 1)
}
