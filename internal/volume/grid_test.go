package volume

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ftrvxmtrx/tga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadShape(t *testing.T) {
	_, err := New([3]int{0, 4, 4}, 1, Uint8)
	assert.ErrorIs(t, err, ErrBadDims)

	_, err = New([3]int{4, 4, 4}, 5, Uint8)
	assert.ErrorIs(t, err, ErrBadComponents)
}

func TestIdxAndValue(t *testing.T) {
	g, err := New([3]int{3, 4, 5}, 2, Int16)
	require.NoError(t, err)

	assert.Equal(t, 0, g.Idx(0, 0, 0))
	assert.Equal(t, 1+2*3+3*12, g.Idx(1, 2, 3))

	g.Set(1, 2, 3, 1, -42)
	assert.Equal(t, -42.0, g.Value(1, 2, 3, 1))
	assert.Equal(t, 0.0, g.Value(1, 2, 3, 0))

	assert.True(t, g.BoundsCheck(2, 3, 4))
	assert.False(t, g.BoundsCheck(3, 0, 0))
	assert.False(t, g.BoundsCheck(0, -1, 0))
}

func TestRangeFollowsModified(t *testing.T) {
	g, err := Ramp([3]int{5, 2, 2}, Uint8, 10, 50)
	require.NoError(t, err)
	assert.Equal(t, [2]float64{10, 50}, g.Range(0))

	g.Set(0, 0, 0, 0, 200)
	// stale until Modified
	assert.Equal(t, [2]float64{10, 50}, g.Range(0))
	g.Modified()
	assert.Equal(t, [2]float64{10, 200}, g.Range(0))
}

func TestValidate(t *testing.T) {
	g, err := Constant([3]int{2, 2, 2}, Float32, 1)
	require.NoError(t, err)
	assert.NoError(t, g.Validate())

	g.Spacing[1] = 0
	assert.ErrorIs(t, g.Validate(), ErrBadSpacing)

	g.Spacing[1] = 1
	g.Data = g.Data[:3]
	assert.ErrorIs(t, g.Validate(), ErrDataSize)
}

func TestWorldVoxelRoundTrip(t *testing.T) {
	g, err := New([3]int{4, 4, 4}, 1, Uint8)
	require.NoError(t, err)
	g.Origin = [3]float64{-1, 2, 5}
	g.Spacing = [3]float64{0.5, 2, 1}

	p := [3]float64{0.25, 3, 7.5}
	assert.InDeltaSlice(t, p[:], sliceOf(g.VoxelToWorld(g.WorldToVoxel(p))), 1e-12)

	lo, hi := g.Bounds()
	assert.Equal(t, [3]float64{-1, 2, 5}, lo)
	assert.Equal(t, [3]float64{0.5, 8, 8}, hi)
}

func sliceOf(v [3]float64) []float64 { return v[:] }

func TestSphereIsPeakedAtCenter(t *testing.T) {
	g, err := Sphere([3]int{9, 9, 9}, Uint8, 4, 200)
	require.NoError(t, err)
	assert.Equal(t, 200.0, g.Value(4, 4, 4, 0))
	assert.Equal(t, 0.0, g.Value(0, 0, 0, 0))
	assert.Equal(t, [2]float64{0, 200}, g.Range(0))
}

func TestLoadSlices(t *testing.T) {
	dir := t.TempDir()
	for z := 0; z < 3; z++ {
		img := image.NewGray(image.Rect(0, 0, 4, 2))
		img.SetGray(1, 0, color.Gray{Y: uint8(10 * (z + 1))})
		f, err := os.Create(filepath.Join(dir, "slice_"+string(rune('a'+z))+".png"))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))

	g, err := LoadSlices(dir)
	require.NoError(t, err)
	assert.Equal(t, [3]int{4, 2, 3}, g.Dims)
	assert.Equal(t, Uint8, g.Type)
	// image row 0 maps to y = 1
	assert.Equal(t, 10.0, g.Value(1, 1, 0, 0))
	assert.Equal(t, 30.0, g.Value(1, 1, 2, 0))
	assert.Equal(t, 0.0, g.Value(1, 0, 2, 0))
}

func TestLoadSlicesEachFormat(t *testing.T) {
	encoders := map[string]func(f *os.File, img image.Image) error{
		".png": func(f *os.File, img image.Image) error { return png.Encode(f, img) },
		".jpg": func(f *os.File, img image.Image) error { return jpeg.Encode(f, img, &jpeg.Options{Quality: 100}) },
		".tga": func(f *os.File, img image.Image) error { return tga.Encode(f, img) },
	}
	for ext, encode := range encoders {
		t.Run(ext, func(t *testing.T) {
			dir := t.TempDir()
			for z := 0; z < 2; z++ {
				img := image.NewGray(image.Rect(0, 0, 8, 8))
				for i := range img.Pix {
					img.Pix[i] = uint8(100 + 50*z)
				}
				f, err := os.Create(filepath.Join(dir, fmt.Sprintf("s%d%s", z, ext)))
				require.NoError(t, err)
				require.NoError(t, encode(f, img))
				require.NoError(t, f.Close())
			}

			g, err := LoadSlices(dir)
			require.NoError(t, err)
			assert.Equal(t, [3]int{8, 8, 2}, g.Dims)
			assert.InDelta(t, 100.0, g.Value(3, 3, 0, 0), 2)
			assert.InDelta(t, 150.0, g.Value(3, 3, 1, 0), 2)
		})
	}
}

func TestLoadSlicesEmptyDir(t *testing.T) {
	_, err := LoadSlices(t.TempDir())
	assert.Error(t, err)
}

func TestParseScalarType(t *testing.T) {
	typ, err := ParseScalarType("float32")
	require.NoError(t, err)
	assert.True(t, typ.IsReal())
	assert.Equal(t, "float32", typ.String())

	_, err = ParseScalarType("complex")
	assert.Error(t, err)
}
