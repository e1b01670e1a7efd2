// Package gradient estimates per-voxel surface normals and gradient
// magnitudes. Normals are quantized into a fixed spherical codebook so the
// ray caster can shade with table lookups instead of per-sample lighting math.
package gradient

import (
	"math"

	"github.com/chewxy/math32"
)

const (
	azimuthBins   = 256
	elevationBins = 255

	// ZeroNormal is the code of the zero vector (no usable direction).
	ZeroNormal = azimuthBins * elevationBins

	// NumDirections is the size of the codebook including ZeroNormal.
	NumDirections = ZeroNormal + 1
)

// SphericalEncoder quantizes unit vectors by azimuth (256 bins) and
// elevation from +z (255 bins).
type SphericalEncoder struct {
	table [NumDirections][3]float32
}

// NewSphericalEncoder builds the decode table.
func NewSphericalEncoder() *SphericalEncoder {
	e := &SphericalEncoder{}
	for el := 0; el < elevationBins; el++ {
		phi := float32(el) / float32(elevationBins-1) * math32.Pi
		sp, cp := math32.Sin(phi), math32.Cos(phi)
		for az := 0; az < azimuthBins; az++ {
			theta := float32(az)/float32(azimuthBins)*2*math32.Pi - math32.Pi
			e.table[el*azimuthBins+az] = [3]float32{
				sp * math32.Cos(theta),
				sp * math32.Sin(theta),
				cp,
			}
		}
	}
	return e
}

// Encode returns the code of the direction of n. n need not be normalized.
func (e *SphericalEncoder) Encode(n [3]float64) uint16 {
	l := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if l == 0 || math.IsNaN(l) {
		return ZeroNormal
	}
	theta := math.Atan2(n[1], n[0])
	az := int(math.Floor((theta+math.Pi)/(2*math.Pi)*azimuthBins+0.5)) % azimuthBins

	z := n[2] / l
	if z > 1 {
		z = 1
	} else if z < -1 {
		z = -1
	}
	el := int(math.Floor(math.Acos(z)/math.Pi*(elevationBins-1) + 0.5))
	return uint16(el*azimuthBins + az)
}

// Decode returns the unit direction for code, or the zero vector for
// ZeroNormal.
func (e *SphericalEncoder) Decode(code uint16) [3]float32 {
	return e.table[code]
}

// NumDirections returns the codebook size.
func (e *SphericalEncoder) NumDirections() int {
	return NumDirections
}
