package raycast

import (
	"math"

	"volray/internal/framebuf"
	"volray/internal/mathutil"
)

// rowSpans projects the box with the given world corners into an image of
// w×h pixels (rows bottom-up) and returns, per row, the pixels whose rays
// may hit it, padded by one pixel. If a corner is behind the eye every row
// is fully spanned.
func rowSpans(m mathutil.Mat4, corners [8]mathutil.Vec3, w, h int) []framebuf.Span {
	spans := make([]framebuf.Span, h)
	var pts [8][2]float64
	for i, c := range corners {
		q, cw := m.Project(c)
		if cw <= 0 {
			for j := range spans {
				spans[j] = framebuf.Span{Min: 0, Max: w - 1}
			}
			return spans
		}
		pts[i] = [2]float64{(q[0] + 1) / 2 * float64(w), (q[1] + 1) / 2 * float64(h)}
	}

	for j := range spans {
		y0, y1 := float64(j)-0.5, float64(j)+1.5
		xmin, xmax := math.Inf(1), math.Inf(-1)
		for i := 0; i < 8; i++ {
			for a := 0; a < 3; a++ {
				k := i | 1<<a
				if k == i {
					continue
				}
				if lo, hi, ok := bandExtent(pts[i], pts[k], y0, y1); ok {
					xmin = math.Min(xmin, lo)
					xmax = math.Max(xmax, hi)
				}
			}
		}
		if xmin > xmax {
			spans[j] = framebuf.EmptySpan
			continue
		}
		s := framebuf.Span{
			Min: max(int(math.Floor(xmin))-1, 0),
			Max: min(int(math.Ceil(xmax)), w-1),
		}
		if s.Empty() {
			s = framebuf.EmptySpan
		}
		spans[j] = s
	}
	return spans
}

// bandExtent returns the x extent of segment ab within y0 <= y <= y1.
func bandExtent(a, b [2]float64, y0, y1 float64) (lo, hi float64, ok bool) {
	if a[1] > b[1] {
		a, b = b, a
	}
	if b[1] < y0 || a[1] > y1 {
		return 0, 0, false
	}
	dy := b[1] - a[1]
	if dy == 0 {
		return math.Min(a[0], b[0]), math.Max(a[0], b[0]), true
	}
	ta := math.Max(0, (y0-a[1])/dy)
	tb := math.Min(1, (y1-a[1])/dy)
	xa := a[0] + (b[0]-a[0])*ta
	xb := a[0] + (b[0]-a[0])*tb
	return math.Min(xa, xb), math.Max(xa, xb), true
}
