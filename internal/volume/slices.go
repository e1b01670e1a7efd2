package volume

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ftrvxmtrx/tga"
)

var sliceExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tga":  true,
}

// SliceFiles lists the image files in dir that form a z-stack, sorted by name.
func SliceFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("volume: read %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if sliceExts[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadSlices reads a directory of equally sized images (PNG, JPEG or TGA)
// as consecutive z slices of a uint8 grid. Color images are converted to
// luminance. Image row 0 becomes the highest y so the stack is not mirrored
// when viewed with y up.
func LoadSlices(dir string) (*Grid, error) {
	files, err := SliceFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("volume: no slice images in %s", dir)
	}

	var g *Grid
	for z, path := range files {
		img, err := loadSlice(path)
		if err != nil {
			return nil, err
		}
		b := img.Bounds()
		if g == nil {
			g, err = New([3]int{b.Dx(), b.Dy(), len(files)}, 1, Uint8)
			if err != nil {
				return nil, err
			}
		} else if b.Dx() != g.Dims[0] || b.Dy() != g.Dims[1] {
			return nil, fmt.Errorf("volume: slice %s is %dx%d, want %dx%d",
				path, b.Dx(), b.Dy(), g.Dims[0], g.Dims[1])
		}
		h := b.Dy()
		for y := 0; y < h; y++ {
			for x := 0; x < b.Dx(); x++ {
				c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
				g.Set(x, h-1-y, z, 0, float64(c.Y))
			}
		}
	}
	g.Modified()
	return g, nil
}

// loadSlice picks the decoder by extension. tga registers with an empty
// magic string, so image.Decode would hand every file to it.
func loadSlice(path string) (image.Image, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("volume: read %s: %w", path, err)
	}

	var img image.Image
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		img, err = png.Decode(bytes.NewReader(raw))
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(bytes.NewReader(raw))
	case ".tga":
		img, err = tga.Decode(bytes.NewReader(raw))
	default:
		return nil, fmt.Errorf("volume: unknown slice extension: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("volume: decode %s: %w", path, err)
	}
	return img, nil
}
