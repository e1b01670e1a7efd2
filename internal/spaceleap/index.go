// Package spaceleap maintains a coarse index over 4x4x4 blocks of grid cells
// recording the scalar and gradient extremes of each block and whether any
// sample inside it can be visible under the current transfer functions.
package spaceleap

import (
	"volray/internal/gradient"
	"volray/internal/mtime"
	"volray/internal/transfer"
	"volray/internal/volume"
)

// BlockShift is log2 of the block edge in cells.
const BlockShift = 2

// BlockDims returns the number of blocks along each axis for a grid of dims
// voxels.
func BlockDims(dims [3]int) [3]int {
	return [3]int{(dims[0]-1)>>BlockShift + 1, (dims[1]-1)>>BlockShift + 1, (dims[2]-1)>>BlockShift + 1}
}

// Index is the space-leaping index of one grid. Cell (x, y, z) spanning
// voxels x..x+1 belongs to block (x>>2, y>>2, z>>2); the block extremes
// cover every corner voxel of every cell in the block, so interpolated
// samples never fall outside them.
type Index struct {
	Dims       [3]int
	Components int

	min, max []uint16
	maxGrad  []uint8
	nonEmpty []bool
	empty    int

	mappings    [volume.MaxComponents]transfer.Mapping
	gridStamp   mtime.Stamp
	grid        *volume.Grid
	fieldStamp  mtime.Stamp
	hasGradient bool
}

// Build scans g and records per-block scalar index extremes using the
// mappings of t. Every block starts out non-empty until RefreshFlags runs.
func Build(g *volume.Grid, t *transfer.Tables) *Index {
	nc := g.Components
	ix := &Index{
		Dims:       BlockDims(g.Dims),
		Components: nc,
		grid:       g,
		gridStamp:  g.MTime(),
	}
	nb := ix.Dims[0] * ix.Dims[1] * ix.Dims[2]
	ix.min = make([]uint16, nb*nc)
	ix.max = make([]uint16, nb*nc)
	ix.maxGrad = make([]uint8, nb*nc)
	ix.nonEmpty = make([]bool, nb)
	for i := range ix.min {
		ix.min[i] = 0xffff
	}
	for i := range ix.nonEmpty {
		ix.nonEmpty[i] = true
	}
	for c := 0; c < nc; c++ {
		ix.mappings[c] = t.Components[c].Mapping
	}

	idx := make([]uint16, nc)
	for z := 0; z < g.Dims[2]; z++ {
		z0, z1 := blockSpan(z, g.Dims[2])
		for y := 0; y < g.Dims[1]; y++ {
			y0, y1 := blockSpan(y, g.Dims[1])
			for x := 0; x < g.Dims[0]; x++ {
				x0, x1 := blockSpan(x, g.Dims[0])
				for c := 0; c < nc; c++ {
					idx[c] = ix.mappings[c].Index(g.Value(x, y, z, c))
				}
				ix.scatter(x0, x1, y0, y1, z0, z1, func(b int) {
					for c := 0; c < nc; c++ {
						o := b*nc + c
						ix.min[o] = min(ix.min[o], idx[c])
						ix.max[o] = max(ix.max[o], idx[c])
					}
				})
			}
		}
	}
	return ix
}

// blockSpan returns the blocks whose cells have voxel k as a corner: cells
// k-1 and k, except that the last voxel starts no cell.
func blockSpan(k, dim int) (lo, hi int) {
	lo = max(k-1, 0) >> BlockShift
	hi = k >> BlockShift
	if k == dim-1 && dim > 1 {
		hi = (k - 1) >> BlockShift
	}
	return lo, hi
}

func (ix *Index) scatter(x0, x1, y0, y1, z0, z1 int, fn func(b int)) {
	for bz := z0; bz <= z1; bz++ {
		for by := y0; by <= y1; by++ {
			for bx := x0; bx <= x1; bx++ {
				fn(ix.Block(bx, by, bz))
			}
		}
	}
}

// Current reports whether the index was built from the present state of g
// with the mappings of t. A false result calls for a full Build.
func (ix *Index) Current(g *volume.Grid, t *transfer.Tables) bool {
	if ix.grid != g || ix.gridStamp != g.MTime() || ix.Components != g.Components {
		return false
	}
	for c := 0; c < ix.Components; c++ {
		if ix.mappings[c] != t.Components[c].Mapping {
			return false
		}
	}
	return true
}

// FillGradient records the per-block maximum gradient magnitude from f.
func (ix *Index) FillGradient(f *gradient.Field) {
	nc := ix.Components
	for i := range ix.maxGrad {
		ix.maxGrad[i] = 0
	}
	for z := 0; z < f.Dims[2]; z++ {
		z0, z1 := blockSpan(z, f.Dims[2])
		for y := 0; y < f.Dims[1]; y++ {
			y0, y1 := blockSpan(y, f.Dims[1])
			for x := 0; x < f.Dims[0]; x++ {
				x0, x1 := blockSpan(x, f.Dims[0])
				ix.scatter(x0, x1, y0, y1, z0, z1, func(b int) {
					for c := 0; c < nc; c++ {
						o := b*nc + c
						ix.maxGrad[o] = max(ix.maxGrad[o], f.Magnitude(x, y, z, c))
					}
				})
			}
		}
	}
	ix.fieldStamp = f.Stamp
	ix.hasGradient = true
}

// GradientStamp returns the stamp of the field last passed to FillGradient.
func (ix *Index) GradientStamp() mtime.Stamp {
	return ix.fieldStamp
}

// RefreshFlags recomputes the non-empty flag of every block from t.
// gradientOpacity says whether the ray caster modulates opacity by gradient
// magnitude; the gradient test is only applied once FillGradient has run.
//
// For each component that carries opacity, the tests run in order:
// (a) the block maximum is below the first opaque index: empty;
// (b) gradient opacity is on and the block's maximum magnitude is below the
// first non-zero gradient entry: empty; (c) the block minimum is at or above
// the first opaque index: visible; (d) otherwise scan the opacity table over
// the block's index range.
func (ix *Index) RefreshFlags(t *transfer.Tables, gradientOpacity bool) {
	comps := make([]int, 0, ix.Components)
	if t.Independent {
		for c := 0; c < ix.Components; c++ {
			comps = append(comps, c)
		}
	} else {
		comps = append(comps, t.OpacityComponent())
	}
	useGrad := gradientOpacity && ix.hasGradient

	ix.empty = 0
	for b := range ix.nonEmpty {
		visible := false
		for _, c := range comps {
			if ix.componentVisible(b, c, &t.Components[c], useGrad) {
				visible = true
				break
			}
		}
		ix.nonEmpty[b] = visible
		if !visible {
			ix.empty++
		}
	}
}

func (ix *Index) componentVisible(b, c int, ct *transfer.ComponentTables, useGrad bool) bool {
	o := b*ix.Components + c
	lo, hi := int(ix.min[o]), int(ix.max[o])
	if lo > hi {
		return false
	}
	if hi < ct.FirstOpaque {
		return false
	}
	if useGrad && ct.GradientOpacityOn && int(ix.maxGrad[o]) < ct.FirstGradient {
		return false
	}
	if lo >= ct.FirstOpaque {
		return true
	}
	for i := lo; i <= hi; i++ {
		if ct.ScalarOpacity[i] > 0 {
			return true
		}
	}
	return false
}

// Block returns the linear index of block (bx, by, bz).
func (ix *Index) Block(bx, by, bz int) int {
	return bx + ix.Dims[0]*(by+ix.Dims[1]*bz)
}

// Empty reports whether block (bx, by, bz) contributes no opacity.
func (ix *Index) Empty(bx, by, bz int) bool {
	return !ix.nonEmpty[ix.Block(bx, by, bz)]
}

// MaxIndex returns the largest scalar table index of component c in block b.
func (ix *Index) MaxIndex(b, c int) uint16 {
	return ix.max[b*ix.Components+c]
}

// Counts returns the number of empty blocks and the total.
func (ix *Index) Counts() (empty, total int) {
	return ix.empty, len(ix.nonEmpty)
}
