package testsupport

import (
	"image"
	"image/color"
	"time"

	"blackbox/internal/camera"
)

// GrayFrame returns a frame filled with a single grey level.
func GrayFrame(cameraID int, seq uint64, at time.Time, width, height int, level uint8) camera.Frame {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = level
	}
	return camera.Frame{CameraID: cameraID, Seq: seq, Captured: at, Image: img}
}

// BlobFrame returns a grey frame with a white rectangle painted over blob.
func BlobFrame(cameraID int, seq uint64, at time.Time, width, height int, level uint8, blob image.Rectangle) camera.Frame {
	frame := GrayFrame(cameraID, seq, at, width, height, level)
	img := frame.Image.(*image.Gray)
	blob = blob.Intersect(img.Rect)
	for y := blob.Min.Y; y < blob.Max.Y; y++ {
		for x := blob.Min.X; x < blob.Max.X; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return frame
}
