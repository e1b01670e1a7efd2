// Package camera holds the view description the ray caster projects with:
// a look-at camera, the viewport and an optional depth buffer from other
// geometry.
package camera

import (
	"errors"
	"fmt"
	"math"

	"volray/internal/mathutil"
)

// ErrBadCamera is returned by Validate.
var ErrBadCamera = errors.New("camera: invalid camera")

// ErrBadZBuffer reports a depth buffer whose size and contents disagree.
var ErrBadZBuffer = errors.New("camera: invalid z-buffer")

// Camera is a look-at camera. Depth runs from 0 at the near plane to 1 at the
// far plane.
type Camera struct {
	Position   mathutil.Vec3
	FocalPoint mathutil.Vec3
	ViewUp     mathutil.Vec3

	// ViewAngle is the vertical field of view in degrees.
	ViewAngle float64

	// Parallel selects orthographic projection with ParallelScale as half
	// of the visible height in world units.
	Parallel      bool
	ParallelScale float64

	// ClippingRange holds the near and far distances from Position.
	ClippingRange [2]float64
}

// New returns a camera at (0, 0, 1) looking at the origin.
func New() Camera {
	return Camera{
		Position:      mathutil.Vec3{0, 0, 1},
		ViewUp:        mathutil.Vec3{0, 1, 0},
		ViewAngle:     30,
		ParallelScale: 1,
		ClippingRange: [2]float64{0.01, 1000},
	}
}

// Validate reports a camera that cannot produce a projection.
func (c Camera) Validate() error {
	d := c.FocalPoint.Sub(c.Position)
	switch {
	case d.Len() < 1e-12:
		return fmt.Errorf("%w: position equals focal point", ErrBadCamera)
	case d.Normalize().Cross(c.ViewUp).Len() < 1e-9:
		return fmt.Errorf("%w: view up parallel to view direction", ErrBadCamera)
	case !(c.ClippingRange[0] > 0) || !(c.ClippingRange[1] > c.ClippingRange[0]):
		return fmt.Errorf("%w: clipping range %v", ErrBadCamera, c.ClippingRange)
	case c.Parallel && !(c.ParallelScale > 0):
		return fmt.Errorf("%w: parallel scale %g", ErrBadCamera, c.ParallelScale)
	case !c.Parallel && !(c.ViewAngle > 0 && c.ViewAngle < 180):
		return fmt.Errorf("%w: view angle %g", ErrBadCamera, c.ViewAngle)
	}
	return nil
}

// Direction returns the unit view direction.
func (c Camera) Direction() mathutil.Vec3 {
	return c.FocalPoint.Sub(c.Position).Normalize()
}

// ViewMatrix maps world coordinates to eye coordinates.
func (c Camera) ViewMatrix() mathutil.Mat4 {
	return mathutil.LookAt(c.Position, c.FocalPoint, c.ViewUp)
}

// ProjectionMatrix maps eye coordinates to normalized device coordinates
// for a viewport of the given aspect ratio (width / height).
func (c Camera) ProjectionMatrix(aspect float64) mathutil.Mat4 {
	near, far := c.ClippingRange[0], c.ClippingRange[1]
	if c.Parallel {
		return mathutil.Orthographic(c.ParallelScale, aspect, near, far)
	}
	return mathutil.Perspective(mathutil.Deg2Rad(c.ViewAngle), aspect, near, far)
}

// WorldToDisplay returns the combined world to normalized device matrix.
func (c Camera) WorldToDisplay(aspect float64) mathutil.Mat4 {
	return mathutil.Mat4Mul(c.ProjectionMatrix(aspect), c.ViewMatrix())
}

// Azimuth rotates the camera about the view-up vector centered at the focal
// point.
func (c *Camera) Azimuth(deg float64) {
	r := mathutil.RotAxis(c.ViewUp, mathutil.Deg2Rad(deg))
	c.Position = c.FocalPoint.Add(r.MulVec3(c.Position.Sub(c.FocalPoint)))
}

// Elevation rotates the camera about the axis through the focal point
// perpendicular to the view direction and view up, then re-orthogonalizes
// view up.
func (c *Camera) Elevation(deg float64) {
	axis := c.Direction().Cross(c.ViewUp)
	r := mathutil.RotAxis(axis, -mathutil.Deg2Rad(deg))
	c.Position = c.FocalPoint.Add(r.MulVec3(c.Position.Sub(c.FocalPoint)))
	c.OrthogonalizeViewUp()
}

// Zoom narrows the view by factor: the view angle of a perspective camera,
// the parallel scale otherwise.
func (c *Camera) Zoom(factor float64) {
	if !(factor > 0) {
		return
	}
	if c.Parallel {
		c.ParallelScale /= factor
		return
	}
	half := math.Atan(math.Tan(mathutil.Deg2Rad(c.ViewAngle)/2) / factor)
	c.ViewAngle = 2 * half * 180 / math.Pi
}

// OrthogonalizeViewUp makes ViewUp perpendicular to the view direction.
func (c *Camera) OrthogonalizeViewUp() {
	d := c.Direction()
	side := d.Cross(c.ViewUp)
	if side.Len() < 1e-12 {
		return
	}
	c.ViewUp = side.Cross(d).Normalize()
}

// ResetToBounds keeps the view direction and moves the camera so that the
// box lo..hi fills the view, adjusting the clipping range around it.
func (c *Camera) ResetToBounds(lo, hi mathutil.Vec3) {
	center := mathutil.Lerp(lo, hi, 0.5)
	radius := hi.Sub(lo).Len() / 2
	if radius == 0 {
		radius = 0.5
	}
	d := c.Direction()
	if d == (mathutil.Vec3{}) {
		d = mathutil.Vec3{0, 0, -1}
	}
	dist := radius / math.Sin(mathutil.Deg2Rad(c.ViewAngle)/2)
	c.FocalPoint = center
	c.Position = center.Sub(d.Scale(dist))
	c.ParallelScale = radius
	near := dist - radius*1.01
	far := dist + radius*1.01
	if near < far*1e-3 {
		near = far * 1e-3
	}
	c.ClippingRange = [2]float64{near, far}
	c.OrthogonalizeViewUp()
}

// Viewport is the output image size in pixels.
type Viewport struct {
	Width, Height int
}

// Aspect returns width / height.
func (v Viewport) Aspect() float64 {
	return float64(v.Width) / float64(v.Height)
}

// ZBuffer is a depth snapshot of opaque geometry, row-major bottom-up, with
// depths in [0, 1].
type ZBuffer struct {
	Width, Height int
	Depth         []float32
}

// Validate checks that Depth holds exactly Width*Height values. A nil
// buffer is valid.
func (z *ZBuffer) Validate() error {
	if z == nil {
		return nil
	}
	if z.Width < 0 || z.Height < 0 || len(z.Depth) != z.Width*z.Height {
		return fmt.Errorf("%w: %dx%d with %d depths", ErrBadZBuffer, z.Width, z.Height, len(z.Depth))
	}
	return nil
}

// At returns the depth at normalized device coordinates (x, y) in [-1, 1],
// or 1 when outside the buffer.
func (z *ZBuffer) At(x, y float64) float64 {
	if z == nil || z.Width == 0 || z.Height == 0 {
		return 1
	}
	px := int(math.Floor((x + 1) / 2 * float64(z.Width)))
	py := int(math.Floor((y + 1) / 2 * float64(z.Height)))
	if px < 0 || py < 0 || px >= z.Width || py >= z.Height {
		return 1
	}
	return float64(z.Depth[py*z.Width+px])
}

// DepthRange returns the smallest and largest depth of the eight corners
// of the box lo..hi, clamped to [0, 1].
func (c Camera) DepthRange(aspect float64, lo, hi mathutil.Vec3) (minDepth, maxDepth float64) {
	m := c.WorldToDisplay(aspect)
	minDepth, maxDepth = 1, 0
	for i := 0; i < 8; i++ {
		p := mathutil.Vec3{lo[0], lo[1], lo[2]}
		if i&1 != 0 {
			p[0] = hi[0]
		}
		if i&2 != 0 {
			p[1] = hi[1]
		}
		if i&4 != 0 {
			p[2] = hi[2]
		}
		q, w := m.Project(p)
		z := q[2]
		if w <= 0 {
			z = 0
		}
		minDepth = math.Min(minDepth, z)
		maxDepth = math.Max(maxDepth, z)
	}
	return math.Max(minDepth, 0), math.Min(maxDepth, 1)
}
