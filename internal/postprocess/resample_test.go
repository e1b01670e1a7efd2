package postprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlipRows(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 3))
	img.SetNRGBA(1, 0, color.NRGBA{255, 0, 0, 255})

	out := FlipRows(img)
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, out.RGBAAt(1, 2))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(1, 0))
}

func TestResampleUpscale(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	out := Resample(img, 8, 6)
	assert.Equal(t, image.Rect(0, 0, 8, 6), out.Bounds())
	assert.Equal(t, color.RGBA{200, 200, 200, 200}, out.RGBAAt(4, 3))

	assert.Same(t, img, Resample(img, 2, 2))
}

func TestFinish(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{0, 255, 0, 255})
	img.SetNRGBA(1, 0, color.NRGBA{0, 255, 0, 255})

	out := Finish(img, 4, 4)
	assert.Equal(t, image.Rect(0, 0, 4, 4), out.Bounds())
	assert.Equal(t, color.NRGBA{0, 255, 0, 255}, out.NRGBAAt(0, 3))
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).A)
}
