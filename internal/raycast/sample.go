package raycast

import (
	"volray/internal/fixedpt"
	"volray/internal/gradient"
	"volray/internal/shading"
)

const fracOne = uint32(fixedpt.One)

// cellSample locates a ray position in the grid: the cell whose eight
// corners surround it, the 12-bit weights inside that cell and the nearest
// voxel.
type cellSample struct {
	cell [3]int
	frac [3]uint32
	near [3]int
	base int
}

// sampler reads table indices and gradient data around a position.
// Positions are clamped into the grid, and cells into [0, dim-2], so that a
// sample on the far face interpolates with full weight on the last voxel.
type sampler struct {
	dims    [3]int
	nc      int
	maxPos  fixedpt.Vec
	maxCell [3]int
	edge    [3]int
	corner  [8]int
	nearest bool

	index []uint16
	field *gradient.Field
}

func newSampler(dims [3]int, nc int, index []uint16, nearest bool) sampler {
	s := sampler{dims: dims, nc: nc, index: index, nearest: nearest}
	stride := [3]int{1, dims[0], dims[0] * dims[1]}
	for a := 0; a < 3; a++ {
		s.maxPos[a] = fixedpt.FromInt(dims[a] - 1)
		s.maxCell[a] = max(dims[a]-2, 0)
		if dims[a] > 1 {
			s.edge[a] = 1
		}
	}
	for k := 0; k < 8; k++ {
		s.corner[k] = (k&1)*s.edge[0]*stride[0] + (k>>1&1)*s.edge[1]*stride[1] + (k>>2&1)*s.edge[2]*stride[2]
	}
	return s
}

func (s *sampler) voxel(x, y, z int) int {
	return x + s.dims[0]*(y+s.dims[1]*z)
}

func (s *sampler) locate(p fixedpt.Vec, out *cellSample) {
	q := p.Clamp(s.maxPos)
	out.cell[0], out.cell[1], out.cell[2] = q.Cell()
	out.frac[0], out.frac[1], out.frac[2] = q.Frac()
	out.near[0], out.near[1], out.near[2] = q.Nearest()
	// on the far face the last cell is used with full weight on its upper corner
	for a := 0; a < 3; a++ {
		if out.cell[a] > s.maxCell[a] {
			out.cell[a] = s.maxCell[a]
			if s.edge[a] != 0 {
				out.frac[a] = fracOne
			}
		}
	}
	out.base = s.voxel(out.cell[0], out.cell[1], out.cell[2])
}

// trilerp interpolates eight corner values, x fastest.
func trilerp(v *[8]uint32, f [3]uint32) uint32 {
	gx := fracOne - f[0]
	x0 := (v[0]*gx + v[1]*f[0]) >> fixedpt.Shift
	x1 := (v[2]*gx + v[3]*f[0]) >> fixedpt.Shift
	x2 := (v[4]*gx + v[5]*f[0]) >> fixedpt.Shift
	x3 := (v[6]*gx + v[7]*f[0]) >> fixedpt.Shift
	gy := fracOne - f[1]
	y0 := (x0*gy + x1*f[1]) >> fixedpt.Shift
	y1 := (x2*gy + x3*f[1]) >> fixedpt.Shift
	return (y0*(fracOne-f[2]) + y1*f[2]) >> fixedpt.Shift
}

// scalar returns the table index of component c at the sample.
func (s *sampler) scalar(cs *cellSample, c int) uint16 {
	if s.nearest {
		return s.index[s.voxel(cs.near[0], cs.near[1], cs.near[2])*s.nc+c]
	}
	var v [8]uint32
	for k := 0; k < 8; k++ {
		v[k] = uint32(s.index[(cs.base+s.corner[k])*s.nc+c])
	}
	return uint16(trilerp(&v, cs.frac))
}

func (s *sampler) cornerCoords(cs *cellSample, k int) (x, y, z int) {
	return cs.cell[0] + (k&1)*s.edge[0], cs.cell[1] + (k>>1&1)*s.edge[1], cs.cell[2] + (k>>2&1)*s.edge[2]
}

// magnitude returns the gradient magnitude byte of component c, from the
// nearest voxel when shortCut is set.
func (s *sampler) magnitude(cs *cellSample, c int, shortCut bool) uint8 {
	if shortCut || s.nearest {
		return s.field.Magnitude(cs.near[0], cs.near[1], cs.near[2], c)
	}
	var v [8]uint32
	for k := 0; k < 8; k++ {
		x, y, z := s.cornerCoords(cs, k)
		v[k] = uint32(s.field.Magnitude(x, y, z, c))
	}
	return uint8(trilerp(&v, cs.frac))
}

// lighting returns the diffuse and specular terms of component c.
func (s *sampler) lighting(cs *cellSample, c int, t *shading.Table, shortCut bool) (d, sp uint32) {
	if shortCut || s.nearest {
		dir := s.field.Direction(cs.near[0], cs.near[1], cs.near[2], c)
		return uint32(t.Diffuse[dir]), uint32(t.Specular[dir])
	}
	var dv, sv [8]uint32
	for k := 0; k < 8; k++ {
		x, y, z := s.cornerCoords(cs, k)
		dir := s.field.Direction(x, y, z, c)
		dv[k] = uint32(t.Diffuse[dir])
		sv[k] = uint32(t.Specular[dir])
	}
	return trilerp(&dv, cs.frac), trilerp(&sv, cs.frac)
}
