// Package adaptive picks the image and ray sampling distances of the next
// frame from the measured cost of the previous one, so that frames stay
// within a time budget.
package adaptive

import (
	"math"
	"time"
)

const (
	// SeedInteractive is the first image sample distance under a budget
	// shorter than Interactive.
	SeedInteractive = 2.0

	// SeedFull is the first image sample distance otherwise.
	SeedFull = 1.0

	// DefaultMin and DefaultMax bound the image sample distance.
	DefaultMin = 1.0
	DefaultMax = 10.0

	// Interactive is the budget below which frames trade quality for speed.
	Interactive = time.Second

	// InteractiveStepFactor multiplies the ray step of interactive frames.
	InteractiveStepFactor = 3.0
)

// Key identifies a (view, volume) pair. Any comparable values work; the
// renderer uses pointers.
type Key struct {
	View   any
	Volume any
}

type entry struct {
	seconds  float64
	distance float64
}

// Decision is the sampling configuration of one frame.
type Decision struct {
	// ImageSampleDistance divides the viewport: 2 renders a quarter of the
	// pixels.
	ImageSampleDistance float64

	// SampleDistance is the ray step for this frame only.
	SampleDistance float64

	// ShortCut lets the ray caster skip refinements such as interpolated
	// normals.
	ShortCut bool
}

// ChooseImageSampleDistance returns the next image sample distance. With no
// previous timing (previous <= 0) it seeds from the budget; otherwise render
// cost is taken as quadratic in 1/distance and the previous distance is
// scaled by sqrt(previous/desired). The result is clamped to [lo, hi].
func ChooseImageSampleDistance(desired, previous time.Duration, previousDistance, lo, hi float64) float64 {
	var d float64
	switch {
	case previous <= 0 || previousDistance <= 0:
		d = SeedFull
		if desired < Interactive {
			d = SeedInteractive
		}
	case desired <= 0:
		d = hi
	default:
		d = previousDistance * math.Sqrt(previous.Seconds()/desired.Seconds())
	}
	return math.Min(math.Max(d, lo), hi)
}

// Controller holds the last timing of every key. It is not safe for
// concurrent use; the renderer touches it only between passes.
type Controller struct {
	Min, Max float64

	last map[Key]entry
}

// NewController returns a controller with the default bounds.
func NewController() *Controller {
	return &Controller{Min: DefaultMin, Max: DefaultMax, last: make(map[Key]entry)}
}

// Decide returns the sampling for the next frame of key. base is the
// full-quality ray step; it is never modified, only scaled in the result.
func (c *Controller) Decide(key Key, desired time.Duration, base float64) Decision {
	e := c.last[key]
	prev := time.Duration(e.seconds * float64(time.Second))
	d := Decision{
		ImageSampleDistance: ChooseImageSampleDistance(desired, prev, e.distance, c.Min, c.Max),
		SampleDistance:      base,
	}
	if desired < Interactive {
		d.SampleDistance = base * InteractiveStepFactor
		d.ShortCut = true
	}
	return d
}

// Record stores the measured cost of a completed frame. Aborted frames must
// not be recorded.
func (c *Controller) Record(key Key, elapsed time.Duration, distance float64) {
	c.last[key] = entry{seconds: elapsed.Seconds(), distance: distance}
}

// Last returns the recorded timing of key.
func (c *Controller) Last(key Key) (elapsed time.Duration, distance float64, ok bool) {
	e, ok := c.last[key]
	return time.Duration(e.seconds * float64(time.Second)), e.distance, ok
}

// Reset forgets the timing of key, so that the next frame seeds again.
func (c *Controller) Reset(key Key) {
	delete(c.last, key)
}
