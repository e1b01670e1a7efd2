// Package transfer maps scalar values to color and opacity. It holds the
// user-facing continuous functions and the fixed-size lookup tables sampled
// from them for the ray caster.
package transfer

import (
	"sort"

	"volray/internal/mtime"
)

// Point is one control point of a PiecewiseFunction.
type Point struct {
	X, Y float64
}

// PiecewiseFunction is a piecewise-linear scalar function used for scalar
// opacity, gradient opacity and gray color. Outside its first and last points
// the function is clamped to their values. An empty function is zero.
type PiecewiseFunction struct {
	mtime.Tracker
	points []Point
}

// NewPiecewiseFunction returns a function through the given points.
func NewPiecewiseFunction(points ...Point) *PiecewiseFunction {
	f := &PiecewiseFunction{}
	for _, p := range points {
		f.insert(p)
	}
	f.Modified()
	return f
}

func (f *PiecewiseFunction) insert(p Point) {
	i := sort.Search(len(f.points), func(i int) bool { return f.points[i].X >= p.X })
	if i < len(f.points) && f.points[i].X == p.X {
		f.points[i] = p
		return
	}
	f.points = append(f.points, Point{})
	copy(f.points[i+1:], f.points[i:])
	f.points[i] = p
}

// AddPoint adds a control point, replacing any point at the same x.
func (f *PiecewiseFunction) AddPoint(x, y float64) {
	f.insert(Point{x, y})
	f.Modified()
}

// RemoveAllPoints clears the function.
func (f *PiecewiseFunction) RemoveAllPoints() {
	f.points = f.points[:0]
	f.Modified()
}

// Points returns a copy of the control points in ascending x.
func (f *PiecewiseFunction) Points() []Point {
	return append([]Point(nil), f.points...)
}

// Value evaluates the function at x.
func (f *PiecewiseFunction) Value(x float64) float64 {
	n := len(f.points)
	if n == 0 {
		return 0
	}
	if x <= f.points[0].X {
		return f.points[0].Y
	}
	if x >= f.points[n-1].X {
		return f.points[n-1].Y
	}
	i := sort.Search(n, func(i int) bool { return f.points[i].X > x })
	a, b := f.points[i-1], f.points[i]
	t := (x - a.X) / (b.X - a.X)
	return a.Y + t*(b.Y-a.Y)
}

// FirstNonZero returns where the function first becomes positive within
// [x0, x1]: x0 itself, or the start of the first rising segment. ok is false
// when the function is zero on the whole interval.
func (f *PiecewiseFunction) FirstNonZero(x0, x1 float64) (x float64, ok bool) {
	if f == nil || len(f.points) == 0 || x1 < x0 {
		return 0, false
	}
	if f.Value(x0) > 0 {
		return x0, true
	}
	for i, p := range f.points {
		if p.X <= x0 || p.Y <= 0 {
			continue
		}
		start := max(f.points[i-1].X, x0)
		if start < x1 {
			return start, true
		}
		break
	}
	return 0, false
}

// ColorPoint is one control point of a ColorFunction.
type ColorPoint struct {
	X       float64
	R, G, B float64
}

// ColorFunction is a piecewise-linear RGB function, clamped at its ends.
type ColorFunction struct {
	mtime.Tracker
	points []ColorPoint
}

// NewColorFunction returns a color function through the given points.
func NewColorFunction(points ...ColorPoint) *ColorFunction {
	f := &ColorFunction{}
	for _, p := range points {
		f.insert(p)
	}
	f.Modified()
	return f
}

func (f *ColorFunction) insert(p ColorPoint) {
	i := sort.Search(len(f.points), func(i int) bool { return f.points[i].X >= p.X })
	if i < len(f.points) && f.points[i].X == p.X {
		f.points[i] = p
		return
	}
	f.points = append(f.points, ColorPoint{})
	copy(f.points[i+1:], f.points[i:])
	f.points[i] = p
}

// AddRGBPoint adds a control point, replacing any point at the same x.
func (f *ColorFunction) AddRGBPoint(x, r, g, b float64) {
	f.insert(ColorPoint{x, r, g, b})
	f.Modified()
}

// RemoveAllPoints clears the function.
func (f *ColorFunction) RemoveAllPoints() {
	f.points = f.points[:0]
	f.Modified()
}

// Color evaluates the function at x.
func (f *ColorFunction) Color(x float64) [3]float64 {
	n := len(f.points)
	if n == 0 {
		return [3]float64{}
	}
	if x <= f.points[0].X {
		p := f.points[0]
		return [3]float64{p.R, p.G, p.B}
	}
	if x >= f.points[n-1].X {
		p := f.points[n-1]
		return [3]float64{p.R, p.G, p.B}
	}
	i := sort.Search(n, func(i int) bool { return f.points[i].X > x })
	a, b := f.points[i-1], f.points[i]
	t := (x - a.X) / (b.X - a.X)
	return [3]float64{
		a.R + t*(b.R-a.R),
		a.G + t*(b.G-a.G),
		a.B + t*(b.B-a.B),
	}
}
