// Package volume holds the regular 3D grid the renderer consumes. The grid is
// produced upstream (a reader, a generator, a simulation); the renderer only
// reads it and compares its modification stamp against its own caches.
package volume

import (
	"errors"
	"fmt"
	"math"

	"volray/internal/mtime"
)

// ScalarType is the native numeric type of the samples.
type ScalarType int

const (
	Uint8 ScalarType = iota
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Float32
	Float64
)

var scalarNames = [...]string{"uint8", "int8", "uint16", "int16", "uint32", "int32", "float32", "float64"}

func (t ScalarType) String() string {
	if t < 0 || int(t) >= len(scalarNames) {
		return fmt.Sprintf("ScalarType(%d)", int(t))
	}
	return scalarNames[t]
}

// IsReal reports whether the type is a floating-point type.
func (t ScalarType) IsReal() bool {
	return t == Float32 || t == Float64
}

// ParseScalarType maps a name like "uint16" to its ScalarType.
func ParseScalarType(s string) (ScalarType, error) {
	for i, n := range scalarNames {
		if n == s {
			return ScalarType(i), nil
		}
	}
	return 0, fmt.Errorf("volume: unknown scalar type %q", s)
}

// MaxComponents is the largest number of components per sample.
const MaxComponents = 4

var (
	ErrBadDims       = errors.New("volume: dimensions must be positive")
	ErrBadComponents = errors.New("volume: component count must be 1..4")
	ErrBadSpacing    = errors.New("volume: spacing must be positive")
	ErrDataSize      = errors.New("volume: data length does not match dimensions")
)

// Grid is a regular 3D array of samples with Components values per voxel,
// stored x fastest, then y, then z, components interleaved.
//
// After changing Data in place, call Modified so renderers rebuild their caches.
type Grid struct {
	mtime.Tracker

	Dims       [3]int
	Spacing    [3]float64
	Origin     [3]float64
	Type       ScalarType
	Components int
	Data       []float64

	rangeStamp mtime.Stamp
	ranges     [MaxComponents][2]float64
}

// New allocates a zeroed grid with unit spacing at the origin.
func New(dims [3]int, components int, typ ScalarType) (*Grid, error) {
	g := &Grid{
		Dims:       dims,
		Spacing:    [3]float64{1, 1, 1},
		Type:       typ,
		Components: components,
	}
	if err := g.checkShape(); err != nil {
		return nil, err
	}
	g.Data = make([]float64, g.NumVoxels()*components)
	g.Modified()
	return g, nil
}

func (g *Grid) checkShape() error {
	if g.Dims[0] <= 0 || g.Dims[1] <= 0 || g.Dims[2] <= 0 {
		return fmt.Errorf("%w: %v", ErrBadDims, g.Dims)
	}
	if g.Components < 1 || g.Components > MaxComponents {
		return fmt.Errorf("%w: %d", ErrBadComponents, g.Components)
	}
	return nil
}

// Validate checks dimensions, spacing and data length.
func (g *Grid) Validate() error {
	if err := g.checkShape(); err != nil {
		return err
	}
	for i, s := range g.Spacing {
		if !(s > 0) {
			return fmt.Errorf("%w: axis %d is %g", ErrBadSpacing, i, s)
		}
	}
	if len(g.Data) != g.NumVoxels()*g.Components {
		return fmt.Errorf("%w: have %d, want %d", ErrDataSize, len(g.Data), g.NumVoxels()*g.Components)
	}
	return nil
}

// NumVoxels returns the number of sample locations.
func (g *Grid) NumVoxels() int {
	return g.Dims[0] * g.Dims[1] * g.Dims[2]
}

// Idx returns the voxel index of (x, y, z). Multiply by Components for the
// offset of the first component in Data.
func (g *Grid) Idx(x, y, z int) int {
	return x + y*g.Dims[0] + z*g.Dims[0]*g.Dims[1]
}

// BoundsCheck reports whether (x, y, z) is inside the grid.
func (g *Grid) BoundsCheck(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 &&
		x < g.Dims[0] && y < g.Dims[1] && z < g.Dims[2]
}

// Value returns component c of voxel (x, y, z).
func (g *Grid) Value(x, y, z, c int) float64 {
	return g.Data[g.Idx(x, y, z)*g.Components+c]
}

// Set stores component c of voxel (x, y, z). It does not bump the stamp.
func (g *Grid) Set(x, y, z, c int, v float64) {
	g.Data[g.Idx(x, y, z)*g.Components+c] = v
}

// Range returns the [min, max] of component c. The result is cached until
// the next Modified call.
func (g *Grid) Range(c int) [2]float64 {
	if c < 0 || c >= g.Components {
		panic(fmt.Sprintf("volume: component %d out of range [0,%d)", c, g.Components))
	}
	if g.rangeStamp != g.MTime() || g.rangeStamp == 0 {
		g.computeRanges()
	}
	return g.ranges[c]
}

func (g *Grid) computeRanges() {
	for c := 0; c < g.Components; c++ {
		g.ranges[c] = [2]float64{math.Inf(1), math.Inf(-1)}
	}
	nc := g.Components
	for i := 0; i < len(g.Data); i += nc {
		for c := 0; c < nc; c++ {
			v := g.Data[i+c]
			if v < g.ranges[c][0] {
				g.ranges[c][0] = v
			}
			if v > g.ranges[c][1] {
				g.ranges[c][1] = v
			}
		}
	}
	for c := 0; c < nc; c++ {
		if g.ranges[c][0] > g.ranges[c][1] {
			g.ranges[c] = [2]float64{0, 0}
		}
	}
	g.rangeStamp = g.MTime()
}

// Bounds returns the world-space corners of the grid.
func (g *Grid) Bounds() (lo, hi [3]float64) {
	for i := 0; i < 3; i++ {
		lo[i] = g.Origin[i]
		hi[i] = g.Origin[i] + float64(g.Dims[i]-1)*g.Spacing[i]
	}
	return lo, hi
}

// WorldToVoxel converts a world-space point to continuous voxel coordinates.
func (g *Grid) WorldToVoxel(p [3]float64) [3]float64 {
	return [3]float64{
		(p[0] - g.Origin[0]) / g.Spacing[0],
		(p[1] - g.Origin[1]) / g.Spacing[1],
		(p[2] - g.Origin[2]) / g.Spacing[2],
	}
}

// VoxelToWorld converts continuous voxel coordinates to world space.
func (g *Grid) VoxelToWorld(v [3]float64) [3]float64 {
	return [3]float64{
		g.Origin[0] + v[0]*g.Spacing[0],
		g.Origin[1] + v[1]*g.Spacing[1],
		g.Origin[2] + v[2]*g.Spacing[2],
	}
}
