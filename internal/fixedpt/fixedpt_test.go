package fixedpt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	for _, f := range []float64{0, 1, -1, 0.5, 3.25, -7.75, 123.0625} {
		assert.Equal(t, f, ToFloat(FromFloat(f)), "value %g", f)
	}
	assert.Equal(t, FromFloat(5), FromInt(5))
}

func TestCellAndFrac(t *testing.T) {
	v := VecFromFloat([3]float64{2.5, 0.25, 7.75})
	x, y, z := v.Cell()
	assert.Equal(t, [3]int{2, 0, 7}, [3]int{x, y, z})

	fx, fy, fz := v.Frac()
	assert.Equal(t, uint32(One/2), fx)
	assert.Equal(t, uint32(One/4), fy)
	assert.Equal(t, uint32(One*3/4), fz)

	nx, ny, nz := v.Nearest()
	assert.Equal(t, [3]int{3, 0, 8}, [3]int{nx, ny, nz})
}

func TestClamp(t *testing.T) {
	hi := VecFromFloat([3]float64{7, 7, 0})
	v := VecFromFloat([3]float64{-0.5, 7.25, 3}).Clamp(hi)
	assert.Equal(t, VecFromFloat([3]float64{0, 7, 0}), v)

	x, _, _ := v.Cell()
	nx, ny, nz := v.Nearest()
	assert.Equal(t, 0, x)
	assert.Equal(t, [3]int{0, 7, 0}, [3]int{nx, ny, nz})
}

func TestNegativeFloors(t *testing.T) {
	v := VecFromFloat([3]float64{-0.5, -1, -1.25})
	x, y, z := v.Cell()
	assert.Equal(t, [3]int{-1, -1, -2}, [3]int{x, y, z})
}

func TestAddScaledMatchesRepeatedAdd(t *testing.T) {
	p := VecFromFloat([3]float64{1, 2, 3})
	d := VecFromFloat([3]float64{0.3, -0.7, 0.125})

	q := p
	for i := 0; i < 17; i++ {
		q = q.Add(d)
	}
	assert.Equal(t, q, p.AddScaled(d, 17))
}
