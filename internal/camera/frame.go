package camera

import (
	"context"
	"image"
	"time"
)

// Frame is one decoded image. Image is never mutated after decode, so frames
// may be shared between the buffer and the detector without copying pixels.
type Frame struct {
	CameraID int
	Seq      uint64
	Captured time.Time
	Image    image.Image
}

// Bounds returns the image size, or zero when the frame carries no image.
func (f Frame) Bounds() image.Rectangle {
	if f.Image == nil {
		return image.Rectangle{}
	}
	return f.Image.Bounds()
}

// Health summarizes the decode loop of a source.
type Health struct {
	Running           bool      `json:"running"`
	FramesDecoded     uint64    `json:"frames_decoded"`
	DecodeErrors      uint64    `json:"decode_errors"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	Dropped           uint64    `json:"dropped"`
	Unhealthy         bool      `json:"unhealthy"`
	LastFrame         time.Time `json:"last_frame,omitempty"`
}

// Source produces frames for one camera.
type Source interface {
	// Start launches the camera and blocks until the first frame arrives or
	// the start timeout elapses.
	Start(ctx context.Context) error
	// Latest returns the newest decoded frame without blocking.
	Latest() (Frame, bool)
	// Stop releases the camera. Safe to call repeatedly.
	Stop() error
	Health() Health
}

// Factory builds a fresh, unstarted source for a camera id.
type Factory func(cameraID int) (Source, error)

// Observer receives per-frame counters, typically metrics.
type Observer interface {
	FrameDecoded(cameraID int)
	FrameDropped(cameraID int)
	DecodeFailed(cameraID int)
}

type nopObserver struct{}

func (nopObserver) FrameDecoded(int) {}
func (nopObserver) FrameDropped(int) {}
func (nopObserver) DecodeFailed(int) {}
