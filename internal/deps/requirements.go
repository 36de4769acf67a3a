package deps

import (
	"blackbox/internal/config"
	"blackbox/internal/services/rpicam"
)

// Requirements lists the binaries the configured camera backend needs. The
// capture binary is always required; ffmpeg is only required when it feeds
// the live preview.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	reqs := []Requirement{
		{
			Name:        "rpicam-vid",
			Command:     cfg.Recording.Binary,
			Description: "Records motion event clips",
		},
	}
	switch cfg.Cameras.Backend {
	case rpicam.BackendFFmpeg:
		reqs = append(reqs, Requirement{
			Name:        "FFmpeg",
			Command:     cfg.Cameras.FFmpegBinary,
			Description: "Streams the live MJPEG preview",
		})
	default:
		if cfg.Cameras.Binary != cfg.Recording.Binary {
			reqs = append(reqs, Requirement{
				Name:        "rpicam-vid (preview)",
				Command:     cfg.Cameras.Binary,
				Description: "Streams the live MJPEG preview",
			})
		}
		reqs = append(reqs, Requirement{
			Name:        "FFmpeg",
			Command:     cfg.Cameras.FFmpegBinary,
			Description: "Optional alternate preview backend",
			Optional:    true,
		})
	}
	return reqs
}

// Check resolves the requirements of cfg.
func Check(cfg *config.Config) []Status {
	return CheckBinaries(Requirements(cfg))
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
