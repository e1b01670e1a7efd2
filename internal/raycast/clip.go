package raycast

import (
	"math"

	"volray/internal/mathutil"
	"volray/internal/volume"
)

// SubVolume is the cropping flag of the central region alone: render only
// what lies inside the crop box.
const SubVolume = 0x2000

// Cropping splits the volume into 27 regions with two planes per axis
// (world coordinates xmin, xmax, ymin, ymax, zmin, zmax). Bit
// x + 3*y + 9*z of Flags keeps region (x, y, z), where 0 is below the lower
// plane, 1 between the planes and 2 above the upper plane.
type Cropping struct {
	Enabled bool
	Planes  [6]float64
	Flags   uint32
}

// Plane is a world-space half-space; points p with Normal·(p-Origin) >= 0
// are kept.
type Plane struct {
	Origin mathutil.Vec3
	Normal mathutil.Vec3
}

type voxelPlane struct {
	n [3]float64
	d float64
}

// clipper holds the per-frame clipping state in voxel coordinates.
type clipper struct {
	box [2][3]float64

	perSample bool
	crop      [2][3]float64
	cropFlags uint32

	planes []voxelPlane
}

func newClipper(g *volume.Grid, crop Cropping, planes []Plane) clipper {
	var c clipper
	for a := 0; a < 3; a++ {
		c.box[1][a] = float64(g.Dims[a] - 1)
	}

	if crop.Enabled {
		lo := g.WorldToVoxel([3]float64{crop.Planes[0], crop.Planes[2], crop.Planes[4]})
		hi := g.WorldToVoxel([3]float64{crop.Planes[1], crop.Planes[3], crop.Planes[5]})
		for a := 0; a < 3; a++ {
			c.crop[0][a] = math.Min(lo[a], hi[a])
			c.crop[1][a] = math.Max(lo[a], hi[a])
		}
		if crop.Flags == SubVolume {
			for a := 0; a < 3; a++ {
				c.box[0][a] = math.Max(c.box[0][a], c.crop[0][a])
				c.box[1][a] = math.Min(c.box[1][a], c.crop[1][a])
			}
		} else {
			c.perSample = true
			c.cropFlags = crop.Flags
		}
	}

	for _, p := range planes {
		n := p.Normal.Normalize()
		c.planes = append(c.planes, voxelPlane{
			n: n.Mul(g.Spacing),
			d: n.Dot(mathutil.Vec3(g.Origin).Sub(p.Origin)),
		})
	}
	return c
}

// interval intersects the ray v0 + t*dv, t in [0, tmax], with the volume
// box, the crop box in sub-volume mode and the clip planes. depthLimited
// reports that tmax, not the volume, ends the interval.
func (c *clipper) interval(v0, dv [3]float64, tmax float64) (t0, t1 float64, depthLimited, ok bool) {
	t0, t1 = 0, math.Inf(1)
	for a := 0; a < 3; a++ {
		lo, hi := c.box[0][a], c.box[1][a]
		if math.Abs(dv[a]) < 1e-12 {
			if v0[a] < lo-1e-9 || v0[a] > hi+1e-9 {
				return 0, 0, false, false
			}
			continue
		}
		ta := (lo - v0[a]) / dv[a]
		tb := (hi - v0[a]) / dv[a]
		if ta > tb {
			ta, tb = tb, ta
		}
		t0 = math.Max(t0, ta)
		t1 = math.Min(t1, tb)
	}

	for _, p := range c.planes {
		f0 := p.n[0]*v0[0] + p.n[1]*v0[1] + p.n[2]*v0[2] + p.d
		df := p.n[0]*dv[0] + p.n[1]*dv[1] + p.n[2]*dv[2]
		if df == 0 {
			if f0 < 0 {
				return 0, 0, false, false
			}
			continue
		}
		root := -f0 / df
		if df > 0 {
			t0 = math.Max(t0, root)
		} else {
			t1 = math.Min(t1, root)
		}
	}

	if tmax < t1 {
		t1 = tmax
		depthLimited = true
	}
	if t0 > t1 || math.IsInf(t1, 1) {
		return 0, 0, false, false
	}
	return t0, t1, depthLimited, true
}

// keep reports whether a voxel-space point lies in a kept cropping region.
// It is only consulted when cropping is not a plain sub-volume.
func (c *clipper) keep(p [3]float64) bool {
	bit := 0
	mul := 1
	for a := 0; a < 3; a++ {
		r := 1
		if p[a] < c.crop[0][a] {
			r = 0
		} else if p[a] > c.crop[1][a] {
			r = 2
		}
		bit += r * mul
		mul *= 3
	}
	return c.cropFlags&(1<<bit) != 0
}
