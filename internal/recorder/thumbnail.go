package recorder

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ThumbnailWidth is the width of event preview images.
const ThumbnailWidth = 320

const labelBarHeight = 18

// WriteThumbnail scales src to width, stamps label in a bar along the bottom
// edge and writes the result to path as JPEG.
func WriteThumbnail(path string, src image.Image, label string, width int) error {
	b := src.Bounds()
	if width <= 0 || width > b.Dx() {
		width = b.Dx()
	}
	height := max(1, b.Dy()*width/b.Dx())

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	bar := image.Rect(0, max(0, height-labelBarHeight), width, height)
	draw.Draw(dst, bar, image.NewUniform(color.RGBA{A: 160}), image.Point{}, draw.Over)
	d := font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, height-5),
	}
	d.DrawString(label)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".thumb-*.jpg")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := jpeg.Encode(tmp, dst, &jpeg.Options{Quality: 85}); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
