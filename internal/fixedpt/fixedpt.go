// Package fixedpt holds the fixed-point position and direction types used to
// step rays through voxel space. Values are 52.12 fixed-point numbers from
// golang.org/x/image/math/fixed: Floor gives the voxel cell and the low 12 bits
// are the interpolation weight inside that cell.
package fixedpt

import (
	"fmt"
	"math"

	"golang.org/x/image/math/fixed"
)

const (
	// Shift is the number of fractional bits.
	Shift = 12

	// One is 1.0 in fixed point.
	One fixed.Int52_12 = 1 << Shift

	// FracMask selects the fractional bits.
	FracMask = 1<<Shift - 1
)

// FromFloat converts f to fixed point, rounding to the nearest representable value.
func FromFloat(f float64) fixed.Int52_12 {
	return fixed.Int52_12(math.Round(f * float64(One)))
}

// ToFloat converts x back to float64.
func ToFloat(x fixed.Int52_12) float64 {
	return float64(x) / float64(One)
}

// FromInt converts an integer to fixed point.
func FromInt(i int) fixed.Int52_12 {
	return fixed.Int52_12(int64(i) << Shift)
}

// Vec is a fixed-point 3-vector in voxel coordinates.
type Vec [3]fixed.Int52_12

// VecFromFloat converts a float vector to fixed point.
func VecFromFloat(v [3]float64) Vec {
	return Vec{FromFloat(v[0]), FromFloat(v[1]), FromFloat(v[2])}
}

// Float returns the vector as float64 components.
func (v Vec) Float() [3]float64 {
	return [3]float64{ToFloat(v[0]), ToFloat(v[1]), ToFloat(v[2])}
}

// Add returns v + w.
func (v Vec) Add(w Vec) Vec {
	return Vec{add(v[0], w[0]), add(v[1], w[1]), add(v[2], w[2])}
}

// AddScaled returns v + w*n, used to jump a ray forward by n steps at once.
func (v Vec) AddScaled(w Vec, n int) Vec {
	k := int64(n)
	return Vec{
		add(v[0], mulInt(w[0], k)),
		add(v[1], mulInt(w[1], k)),
		add(v[2], mulInt(w[2], k)),
	}
}

// Clamp limits each component of v to [0, hi].
func (v Vec) Clamp(hi Vec) Vec {
	for a := range v {
		v[a] = min(max(v[a], 0), hi[a])
	}
	return v
}

// Cell returns the voxel cell containing v (component-wise floor).
func (v Vec) Cell() (x, y, z int) {
	return v[0].Floor(), v[1].Floor(), v[2].Floor()
}

// Nearest returns the voxel nearest to v.
func (v Vec) Nearest() (x, y, z int) {
	return v[0].Round(), v[1].Round(), v[2].Round()
}

// Frac returns the fractional parts of v in [0, One).
func (v Vec) Frac() (fx, fy, fz uint32) {
	return uint32(v[0] & FracMask), uint32(v[1] & FracMask), uint32(v[2] & FracMask)
}

func add(a, b fixed.Int52_12) fixed.Int52_12 {
	s := a + b
	if checkOverflow && ((a > 0 && b > 0 && s < 0) || (a < 0 && b < 0 && s >= 0)) {
		panic(fmt.Sprintf("fixedpt: overflow adding %v and %v", a, b))
	}
	return s
}

func mulInt(a fixed.Int52_12, k int64) fixed.Int52_12 {
	p := a * fixed.Int52_12(k)
	if checkOverflow && k != 0 && p/fixed.Int52_12(k) != a {
		panic(fmt.Sprintf("fixedpt: overflow multiplying %v by %d", a, k))
	}
	return p
}
