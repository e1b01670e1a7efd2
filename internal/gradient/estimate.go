package gradient

import (
	"errors"
	"fmt"
	"math"

	"volray/internal/mtime"
	"volray/internal/volume"
)

// ErrAllocation is returned when a field does not fit the memory budget.
var ErrAllocation = errors.New("gradient: allocation budget exceeded")

// Budget bounds the memory of a gradient field, in bytes. Fields larger than
// MaxContiguous are allocated slice by slice; fields larger than MaxTotal are
// refused. Zero means unlimited.
type Budget struct {
	MaxContiguous int64
	MaxTotal      int64
}

// MagnitudeScale maps gradient magnitudes of data spanning rng onto the
// 0..255 magnitude byte: a gradient of a quarter of the range per unit
// length saturates the byte.
func MagnitudeScale(rng [2]float64) float64 {
	d := rng[1] - rng[0]
	if !(d > 0) {
		return 1
	}
	return 255 / (0.25 * d)
}

// Field holds an encoded normal and a magnitude byte per voxel and
// component. Storage is one slice per z plane, components interleaved.
type Field struct {
	Dims       [3]int
	Components int
	Directions [][]uint16
	Magnitudes [][]uint8

	// Contiguous reports whether all planes share one backing array.
	Contiguous bool

	// Stamp is taken when the field is built.
	Stamp mtime.Stamp
}

func (f *Field) offset(x, y, c int) int {
	return (x+y*f.Dims[0])*f.Components + c
}

// Direction returns the encoded normal of component c at (x, y, z).
func (f *Field) Direction(x, y, z, c int) uint16 {
	return f.Directions[z][f.offset(x, y, c)]
}

// Magnitude returns the magnitude byte of component c at (x, y, z).
func (f *Field) Magnitude(x, y, z, c int) uint8 {
	return f.Magnitudes[z][f.offset(x, y, c)]
}

// Bytes returns the memory held by the field.
func (f *Field) Bytes() int64 {
	return fieldBytes(f.Dims, f.Components)
}

func fieldBytes(dims [3]int, components int) int64 {
	return int64(dims[0]) * int64(dims[1]) * int64(dims[2]) * int64(components) * 3
}

func allocate(dims [3]int, components int, budget Budget) (*Field, error) {
	total := fieldBytes(dims, components)
	if budget.MaxTotal > 0 && total > budget.MaxTotal {
		return nil, fmt.Errorf("%w: need %d bytes, limit %d", ErrAllocation, total, budget.MaxTotal)
	}

	f := &Field{
		Dims:       dims,
		Components: components,
		Directions: make([][]uint16, dims[2]),
		Magnitudes: make([][]uint8, dims[2]),
	}
	plane := dims[0] * dims[1] * components

	if budget.MaxContiguous <= 0 || total <= budget.MaxContiguous {
		dirs := make([]uint16, plane*dims[2])
		mags := make([]uint8, plane*dims[2])
		for z := 0; z < dims[2]; z++ {
			f.Directions[z] = dirs[z*plane : (z+1)*plane : (z+1)*plane]
			f.Magnitudes[z] = mags[z*plane : (z+1)*plane : (z+1)*plane]
		}
		f.Contiguous = true
		return f, nil
	}

	for z := 0; z < dims[2]; z++ {
		f.Directions[z] = make([]uint16, plane)
		f.Magnitudes[z] = make([]uint8, plane)
	}
	return f, nil
}

// Estimate computes the gradient field of g.
//
// Each gradient is a central difference scaled by the axis spacing, one-sided
// at the volume boundary. When the immediate neighbors give a vector below a
// small tolerance the difference is retried 2 and 3 voxels out; a direction
// found that way is kept but its magnitude is zeroed so that flat regions get
// a normal without gaining gradient opacity. Normals point down the gradient,
// out of dense material.
func Estimate(g *volume.Grid, enc *SphericalEncoder, budget Budget) (*Field, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	f, err := allocate(g.Dims, g.Components, budget)
	if err != nil {
		return nil, err
	}

	nc := g.Components
	for c := 0; c < nc; c++ {
		rng := g.Range(c)
		tol := 1e-5 * (rng[1] - rng[0])
		if tol <= 0 {
			tol = 1e-12
		}
		scale := MagnitudeScale(rng)

		for z := 0; z < g.Dims[2]; z++ {
			dirs := f.Directions[z]
			mags := f.Magnitudes[z]
			for y := 0; y < g.Dims[1]; y++ {
				for x := 0; x < g.Dims[0]; x++ {
					var n [3]float64
					var l float64
					d := 1
					for ; d <= 3; d++ {
						n = centralDifference(g, x, y, z, c, d)
						l = math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
						if l >= tol {
							break
						}
					}

					o := f.offset(x, y, c)
					if l < tol {
						dirs[o] = ZeroNormal
						mags[o] = 0
						continue
					}
					dirs[o] = enc.Encode([3]float64{-n[0], -n[1], -n[2]})
					if d > 1 {
						mags[o] = 0
						continue
					}
					m := l * scale
					if m > 255 {
						m = 255
					}
					mags[o] = uint8(m + 0.5)
				}
			}
		}
	}

	f.Stamp = mtime.Next()
	return f, nil
}

func centralDifference(g *volume.Grid, x, y, z, c, d int) [3]float64 {
	p := [3]int{x, y, z}
	var n [3]float64
	for a := 0; a < 3; a++ {
		lo, hi := p, p
		lo[a] = max(p[a]-d, 0)
		hi[a] = min(p[a]+d, g.Dims[a]-1)
		if hi[a] == lo[a] {
			continue
		}
		dv := g.Value(hi[0], hi[1], hi[2], c) - g.Value(lo[0], lo[1], lo[2], c)
		n[a] = dv / (float64(hi[a]-lo[a]) * g.Spacing[a])
	}
	return n
}
