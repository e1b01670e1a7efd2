package volume

import "math"

// Constant returns a single-component grid filled with value.
func Constant(dims [3]int, typ ScalarType, value float64) (*Grid, error) {
	g, err := New(dims, 1, typ)
	if err != nil {
		return nil, err
	}
	for i := range g.Data {
		g.Data[i] = value
	}
	g.Modified()
	return g, nil
}

// SingleVoxel returns a grid filled with background except for one voxel.
func SingleVoxel(dims [3]int, typ ScalarType, at [3]int, value, background float64) (*Grid, error) {
	g, err := Constant(dims, typ, background)
	if err != nil {
		return nil, err
	}
	if g.BoundsCheck(at[0], at[1], at[2]) {
		g.Set(at[0], at[1], at[2], 0, value)
	}
	g.Modified()
	return g, nil
}

// Sphere returns a grid whose value falls off linearly from peak at the
// center to zero at radius (in voxels) and stays zero outside.
func Sphere(dims [3]int, typ ScalarType, radius, peak float64) (*Grid, error) {
	g, err := New(dims, 1, typ)
	if err != nil {
		return nil, err
	}
	c := [3]float64{
		float64(dims[0]-1) / 2,
		float64(dims[1]-1) / 2,
		float64(dims[2]-1) / 2,
	}
	for z := 0; z < dims[2]; z++ {
		for y := 0; y < dims[1]; y++ {
			for x := 0; x < dims[0]; x++ {
				dx, dy, dz := float64(x)-c[0], float64(y)-c[1], float64(z)-c[2]
				r := math.Sqrt(dx*dx + dy*dy + dz*dz)
				v := 0.0
				if r < radius {
					v = peak * (1 - r/radius)
				}
				if !typ.IsReal() {
					v = math.Round(v)
				}
				g.Set(x, y, z, 0, v)
			}
		}
	}
	g.Modified()
	return g, nil
}

// Ramp returns a grid increasing linearly along x from lo to hi.
func Ramp(dims [3]int, typ ScalarType, lo, hi float64) (*Grid, error) {
	g, err := New(dims, 1, typ)
	if err != nil {
		return nil, err
	}
	den := float64(dims[0] - 1)
	if den == 0 {
		den = 1
	}
	for z := 0; z < dims[2]; z++ {
		for y := 0; y < dims[1]; y++ {
			for x := 0; x < dims[0]; x++ {
				v := lo + (hi-lo)*float64(x)/den
				if !typ.IsReal() {
					v = math.Round(v)
				}
				g.Set(x, y, z, 0, v)
			}
		}
	}
	g.Modified()
	return g, nil
}
