package rpicam

import (
	"fmt"
	"strconv"
	"time"
)

// Backend names accepted by PreviewArgs.
const (
	BackendRpicam = "rpicam"
	BackendFFmpeg = "ffmpeg"
)

// StreamRequest describes a live preview stream written as MJPEG to stdout.
type StreamRequest struct {
	Backend string
	Camera  int
	Device  string
	Width   int
	Height  int
	FPS     int
	Quality int
}

// PreviewArgs returns the argument list for a never-ending MJPEG stream on
// stdout.
func PreviewArgs(req StreamRequest) ([]string, error) {
	switch req.Backend {
	case "", BackendRpicam:
		quality := req.Quality
		if quality <= 0 {
			quality = 80
		}
		return []string{
			"--camera", strconv.Itoa(req.Camera),
			"--width", strconv.Itoa(req.Width),
			"--height", strconv.Itoa(req.Height),
			"--framerate", strconv.Itoa(req.FPS),
			"--timeout", "0",
			"--nopreview",
			"--codec", "mjpeg",
			"--quality", strconv.Itoa(quality),
			"--flush", "1",
			"--output", "-",
		}, nil
	case BackendFFmpeg:
		device := req.Device
		if device == "" {
			device = fmt.Sprintf("/dev/video%d", req.Camera)
		}
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "v4l2",
			"-video_size", fmt.Sprintf("%dx%d", req.Width, req.Height),
			"-framerate", strconv.Itoa(req.FPS),
			"-i", device,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-q:v", "5",
			"-",
		}, nil
	default:
		return nil, fmt.Errorf("unsupported camera backend %q", req.Backend)
	}
}

func captureArgs(req CaptureRequest) []string {
	codec := req.Codec
	if codec == "" {
		codec = "h264"
	}
	args := []string{
		"--camera", strconv.Itoa(req.Camera),
		"--width", strconv.Itoa(req.Width),
		"--height", strconv.Itoa(req.Height),
		"--framerate", strconv.Itoa(req.FPS),
		"--timeout", strconv.FormatInt(req.Duration.Milliseconds(), 10),
		"--nopreview",
		"--codec", codec,
	}
	if codec == "mjpeg" && req.Quality > 0 {
		args = append(args, "--quality", strconv.Itoa(req.Quality))
	}
	return append(args, "--output", req.Output)
}

func durationOrDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
