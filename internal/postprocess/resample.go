// Package postprocess turns the ray caster's bottom-up, possibly reduced
// resolution buffer into the final viewport image.
package postprocess

import (
	"image"

	"github.com/anthonynsimon/bild/transform"
	"golang.org/x/image/draw"
)

// FlipRows returns img upside down as premultiplied RGBA.
func FlipRows(img image.Image) *image.RGBA {
	return transform.FlipV(img)
}

// Resample scales a premultiplied image to w×h. Enlarging uses bilinear
// filtering, shrinking Catmull-Rom; an image already at size is returned as
// is.
func Resample(img *image.RGBA, w, h int) *image.RGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	var s draw.Scaler = draw.ApproxBiLinear
	if w < b.Dx() && h < b.Dy() {
		s = draw.CatmullRom
	}
	s.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// ToNRGBA converts a premultiplied image to non-premultiplied RGBA.
func ToNRGBA(img *image.RGBA) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Finish flips a bottom-up image and scales it to the viewport.
func Finish(img image.Image, w, h int) *image.NRGBA {
	return ToNRGBA(Resample(FlipRows(img), w, h))
}
