package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCameras(); err != nil {
		return err
	}
	if err := c.validateMotion(); err != nil {
		return err
	}
	if err := c.validateRecording(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.EventsDir) == "" {
		return errors.New("paths.events_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateCameras() error {
	if len(c.Cameras.IDs) == 0 {
		return errors.New("cameras.ids must list at least one camera")
	}
	for _, id := range c.Cameras.IDs {
		if id < 0 {
			return fmt.Errorf("cameras.ids: camera id %d must not be negative", id)
		}
	}
	switch c.Cameras.Backend {
	case "rpicam", "ffmpeg":
	default:
		return fmt.Errorf("cameras.backend: unsupported value %q (expected rpicam or ffmpeg)", c.Cameras.Backend)
	}
	if c.Cameras.Quality < 1 || c.Cameras.Quality > 100 {
		return errors.New("cameras.quality must be between 1 and 100")
	}
	return ensurePositiveMap(map[string]int{
		"cameras.width":                 c.Cameras.Width,
		"cameras.height":                c.Cameras.Height,
		"cameras.fps":                   c.Cameras.FPS,
		"cameras.start_timeout_seconds": c.Cameras.StartTimeoutSeconds,
		"cameras.stop_grace_seconds":    c.Cameras.StopGraceSeconds,
		"cameras.unhealthy_threshold":   c.Cameras.UnhealthyThreshold,
		"cameras.retry_initial_seconds": c.Cameras.RetryInitialSeconds,
		"cameras.retry_max_seconds":     c.Cameras.RetryMaxSeconds,
	})
}

func (c *Config) validateMotion() error {
	switch c.Motion.Sensitivity {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("motion.sensitivity: unsupported value %q (expected low, medium, or high)", c.Motion.Sensitivity)
	}
	if c.Motion.CooldownSeconds < 0 {
		return errors.New("motion.cooldown_seconds must be zero or positive")
	}
	if c.Motion.AnalysisWidth < 16 {
		return errors.New("motion.analysis_width must be at least 16")
	}
	return nil
}

func (c *Config) validateRecording() error {
	if c.Recording.PreRollSeconds < 0 {
		return errors.New("recording.pre_roll_seconds must be zero or positive")
	}
	switch c.Recording.Codec {
	case "h264", "mjpeg":
	default:
		return fmt.Errorf("recording.codec: unsupported value %q (expected h264 or mjpeg)", c.Recording.Codec)
	}
	if c.Recording.SettleMillis < 0 {
		return errors.New("recording.settle_ms must be zero or positive")
	}
	if c.Recording.ResumeDelayMillis < 0 {
		return errors.New("recording.resume_delay_ms must be zero or positive")
	}
	return ensurePositiveMap(map[string]int{
		"recording.post_roll_seconds":     c.Recording.PostRollSeconds,
		"recording.fps":                   c.Recording.FPS,
		"recording.timeout_slack_seconds": c.Recording.TimeoutSlackSeconds,
	})
}

func (c *Config) validateStorage() error {
	if c.Storage.MaxGiB <= 0 {
		return errors.New("storage.max_gib must be positive")
	}
	if c.Storage.UsageRatio <= 0 || c.Storage.UsageRatio > 1 {
		return errors.New("storage.usage_ratio must be within (0, 1]")
	}
	if c.Storage.FreeFloorMiB < 0 {
		return errors.New("storage.free_floor_mib must be zero or positive")
	}
	if len(c.Storage.Extensions) == 0 {
		return errors.New("storage.extensions must list at least one extension")
	}
	return ensurePositiveMap(map[string]int{
		"storage.retention_days":             c.Storage.RetentionDays,
		"storage.important_retention_days":   c.Storage.ImportantRetentionDays,
		"storage.emergency_fraction_divisor": c.Storage.EmergencyDivisor,
		"storage.audit_interval_seconds":     c.Storage.AuditIntervalSeconds,
		"storage.error_backoff_seconds":      c.Storage.ErrorBackoffSeconds,
	})
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.loop_interval_ms":        c.Workflow.LoopIntervalMillis,
		"workflow.status_interval_seconds": c.Workflow.StatusIntervalSeconds,
		"workflow.shutdown_grace_seconds":  c.Workflow.ShutdownGraceSeconds,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
