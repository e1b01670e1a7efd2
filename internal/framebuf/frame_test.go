package framebuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(f *Frame) {
	for i := range f.Pix {
		f.Pix[i] = 1
	}
}

func rows(n int, s Span) []Span {
	out := make([]Span, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func TestResizeHysteresis(t *testing.T) {
	f := New()
	require.True(t, f.Resize([2]int{100, 60}))
	assert.Equal(t, [2]int{128, 64}, f.Size)
	assert.Len(t, f.Pix, 128*64*4)

	assert.False(t, f.Resize([2]int{128, 64}))
	assert.False(t, f.Resize([2]int{40, 17}), "above a quarter: keep")
	assert.Equal(t, [2]int{40, 17}, f.InUse)

	assert.True(t, f.Resize([2]int{129, 17}), "grow")
	assert.Equal(t, [2]int{256, 32}, f.Size)

	assert.True(t, f.Resize([2]int{63, 15}), "shrink")
	assert.Equal(t, [2]int{64, 16}, f.Size)
}

func TestSetSpansIdentical(t *testing.T) {
	f := New()
	f.Resize([2]int{16, 4})
	f.SetSpans(rows(4, Span{2, 9}))
	fill(f)
	assert.Zero(t, f.SetSpans(rows(4, Span{2, 9})))
	assert.Equal(t, [4]uint16{1, 1, 1, 1}, f.At(0, 0))
}

func TestSetSpansDisjoint(t *testing.T) {
	f := New()
	f.Resize([2]int{16, 4})
	f.SetSpans(rows(4, Span{0, 3}))
	fill(f)
	// Union of both spans: 4 + 5 per row.
	assert.Equal(t, 4*9, f.SetSpans(rows(4, Span{10, 14})))
	assert.Equal(t, [4]uint16{}, f.At(0, 0))
	assert.Equal(t, [4]uint16{}, f.At(14, 3))
	assert.Equal(t, [4]uint16{1, 1, 1, 1}, f.At(5, 0))
}

func TestSetSpansOverlap(t *testing.T) {
	f := New()
	f.Resize([2]int{16, 2})
	f.SetSpans(rows(2, Span{2, 9}))
	fill(f)
	// Non-overlapping edges: 2..3 and 10..12.
	assert.Equal(t, 2*5, f.SetSpans(rows(2, Span{4, 12})))
	assert.Equal(t, [4]uint16{}, f.At(2, 1))
	assert.Equal(t, [4]uint16{}, f.At(12, 1))
	assert.Equal(t, [4]uint16{1, 1, 1, 1}, f.At(4, 1))
	assert.Equal(t, [4]uint16{1, 1, 1, 1}, f.At(1, 1))
}

func TestSetSpansEmptyRows(t *testing.T) {
	f := New()
	f.Resize([2]int{8, 4})
	assert.Equal(t, 2*8, f.SetSpans([]Span{{0, 7}, {0, 7}}))
	assert.Equal(t, 2*8, f.SetSpans(nil))
	assert.Zero(t, f.SetSpans(nil))
}

func TestInvalidate(t *testing.T) {
	f := New()
	f.Resize([2]int{8, 2})
	f.SetSpans(rows(2, Span{2, 5}))
	fill(f)
	f.Invalidate()
	// Full row overlaps 2..5: clears 0..1 and 6..7.
	assert.Equal(t, 2*4, f.SetSpans(rows(2, Span{2, 5})))
	assert.Equal(t, [4]uint16{}, f.At(7, 0))
}

func TestImageUnpremultiplies(t *testing.T) {
	f := New()
	f.Resize([2]int{2, 2})
	f.Set(1, 0, [4]uint16{One / 2, 0, One / 4, One / 2})
	f.Set(0, 1, [4]uint16{One, One, One, One})

	img := f.Image()
	assert.Equal(t, 2, img.Bounds().Dx())
	for i, want := range []uint8{255, 0, 128, 128} {
		assert.InDelta(t, want, img.Pix[4+i], 1, "channel %d", i)
	}
	assert.Equal(t, []uint8{255, 255, 255, 255}, img.Pix[img.Stride:img.Stride+4])
	assert.Equal(t, []uint8{0, 0, 0, 0}, img.Pix[0:4])
}
