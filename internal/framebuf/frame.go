// Package framebuf owns the persistent pixel buffer the ray caster draws
// into. The buffer is reused across frames: it is sized to powers of two
// with hysteresis, and between frames only the parts of each row that the
// new frame does not cover are cleared.
package framebuf

import (
	"image"
	"math/bits"
)

// One is full intensity of a channel, matching the transfer tables.
const One = 1<<15 - 1

// Span is the inclusive range of columns drawn in one row. Max < Min means
// the row is empty.
type Span struct {
	Min, Max int
}

// EmptySpan is a row with nothing drawn.
var EmptySpan = Span{0, -1}

// Empty reports whether s covers no pixels.
func (s Span) Empty() bool {
	return s.Max < s.Min
}

// Len returns the number of pixels in s.
func (s Span) Len() int {
	if s.Empty() {
		return 0
	}
	return s.Max - s.Min + 1
}

// Frame is a premultiplied RGBA buffer of 15-bit channels, four uint16 per
// pixel, rows bottom-up.
type Frame struct {
	// Size is the allocated size, a power of two per axis.
	Size [2]int

	// InUse is the region the last Resize asked for.
	InUse [2]int

	Pix []uint16

	spans []Span
}

// New returns an empty frame; the first Resize allocates.
func New() *Frame {
	return &Frame{}
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// Resize makes the buffer able to hold need pixels. It grows whenever need
// exceeds the allocation on either axis and shrinks only when need drops
// below a quarter of it. It reports whether the buffer was reallocated, in
// which case the pixels are zero and every span is empty.
func (f *Frame) Resize(need [2]int) bool {
	f.InUse = need
	realloc := f.Pix == nil
	for a := 0; a < 2; a++ {
		if need[a] > f.Size[a] || need[a] < f.Size[a]/4 {
			realloc = true
		}
	}
	if !realloc {
		return false
	}
	f.Size = [2]int{nextPow2(need[0]), nextPow2(need[1])}
	f.Pix = make([]uint16, f.Size[0]*f.Size[1]*4)
	f.spans = make([]Span, f.Size[1])
	for i := range f.spans {
		f.spans[i] = EmptySpan
	}
	return true
}

// Invalidate marks every row as fully drawn, so the next SetSpans clears
// everything outside the new spans. Used after an aborted pass left rows in
// an unknown state.
func (f *Frame) Invalidate() {
	for i := range f.spans {
		f.spans[i] = Span{0, f.Size[0] - 1}
	}
}

// Spans returns the spans of the last frame. The slice is owned by f.
func (f *Frame) Spans() []Span {
	return f.spans
}

// SetSpans records the spans of the frame about to be drawn and clears what
// the previous frame left outside them. Rows past the end of spans are
// empty. It returns the number of pixels cleared.
func (f *Frame) SetSpans(spans []Span) int {
	cleared := 0
	for y := range f.spans {
		next := EmptySpan
		if y < len(spans) {
			next = clampSpan(spans[y], f.Size[0])
		}
		prev := f.spans[y]
		cleared += f.clearDiff(y, prev, next)
		f.spans[y] = next
	}
	return cleared
}

func clampSpan(s Span, width int) Span {
	if s.Empty() {
		return EmptySpan
	}
	s.Min = max(s.Min, 0)
	s.Max = min(s.Max, width-1)
	if s.Empty() {
		return EmptySpan
	}
	return s
}

func (f *Frame) clearDiff(y int, prev, next Span) int {
	switch {
	case prev == next:
		return 0
	case prev.Empty() || next.Empty() || prev.Max < next.Min || next.Max < prev.Min:
		return f.clearRow(y, prev) + f.clearRow(y, next)
	}
	n := f.clearRow(y, Span{min(prev.Min, next.Min), max(prev.Min, next.Min) - 1})
	n += f.clearRow(y, Span{min(prev.Max, next.Max) + 1, max(prev.Max, next.Max)})
	return n
}

func (f *Frame) clearRow(y int, s Span) int {
	if s.Empty() {
		return 0
	}
	row := f.Row(y)
	clear(row[s.Min*4 : (s.Max+1)*4])
	return s.Len()
}

// Row returns the pixels of row y.
func (f *Frame) Row(y int) []uint16 {
	stride := f.Size[0] * 4
	return f.Pix[y*stride : (y+1)*stride]
}

// Set stores a premultiplied pixel.
func (f *Frame) Set(x, y int, rgba [4]uint16) {
	i := (y*f.Size[0] + x) * 4
	copy(f.Pix[i:i+4], rgba[:])
}

// At returns the premultiplied pixel at (x, y).
func (f *Frame) At(x, y int) [4]uint16 {
	i := (y*f.Size[0] + x) * 4
	return [4]uint16{f.Pix[i], f.Pix[i+1], f.Pix[i+2], f.Pix[i+3]}
}

// Image converts the in-use region to 8-bit non-premultiplied RGBA. Row 0 of
// the image is row 0 of the frame, the bottom.
func (f *Frame) Image() *image.NRGBA {
	w, h := f.InUse[0], f.InUse[1]
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := f.Row(y)
		dst := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			p := src[x*4 : x*4+4]
			a := uint32(p[3])
			if a == 0 {
				continue
			}
			dst[x*4+0] = unpremul(p[0], a)
			dst[x*4+1] = unpremul(p[1], a)
			dst[x*4+2] = unpremul(p[2], a)
			dst[x*4+3] = uint8((a*255 + One/2) / One)
		}
	}
	return img
}

func unpremul(c uint16, a uint32) uint8 {
	v := (uint32(c)*255 + a/2) / a
	if v > 255 {
		v = 255
	}
	return uint8(v)
}
