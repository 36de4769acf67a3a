package camera

import (
	"log/slog"
	"time"

	"blackbox/internal/config"
	"blackbox/internal/services/rpicam"
)

// NewForCamera builds the configured preview source for camera id.
func NewForCamera(cfg *config.Config, id int, logger *slog.Logger, opts ...StreamOption) (*StreamSource, error) {
	args, err := rpicam.PreviewArgs(rpicam.StreamRequest{
		Backend: cfg.Cameras.Backend,
		Camera:  id,
		Device:  cfg.DevicePath(id),
		Width:   cfg.Cameras.Width,
		Height:  cfg.Cameras.Height,
		FPS:     cfg.Cameras.FPS,
		Quality: cfg.Cameras.Quality,
	})
	if err != nil {
		return nil, err
	}
	binary := cfg.Cameras.Binary
	if cfg.Cameras.Backend == rpicam.BackendFFmpeg {
		binary = cfg.Cameras.FFmpegBinary
	}
	grace := time.Duration(cfg.Cameras.StopGraceSeconds) * time.Second
	opts = append([]StreamOption{WithLauncher(ExecLauncher{Grace: grace})}, opts...)
	return NewStreamSource(StreamConfig{
		CameraID:           id,
		Binary:             binary,
		Args:               args,
		StartTimeout:       time.Duration(cfg.Cameras.StartTimeoutSeconds) * time.Second,
		UnhealthyThreshold: cfg.Cameras.UnhealthyThreshold,
	}, logger, opts...), nil
}

// ConfigFactory returns a Factory that builds configured sources.
func ConfigFactory(cfg *config.Config, logger *slog.Logger, opts ...StreamOption) Factory {
	return func(id int) (Source, error) {
		src, err := NewForCamera(cfg, id, logger, opts...)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}
