package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCameras()
	c.normalizeMotion()
	c.normalizeRecording()
	c.normalizeStorage()
	c.normalizeLogging()
	c.normalizeMetrics()
	c.normalizeAPI()
	return nil
}

func (c *Config) normalizePaths() error {
	if v, ok := os.LookupEnv("BLACKBOX_EVENTS_DIR"); ok && strings.TrimSpace(v) != "" {
		c.Paths.EventsDir = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("BLACKBOX_LOG_DIR"); ok && strings.TrimSpace(v) != "" {
		c.Paths.LogDir = strings.TrimSpace(v)
	}

	var err error
	if c.Paths.EventsDir, err = expandPath(c.Paths.EventsDir); err != nil {
		return fmt.Errorf("paths.events_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.InflightDir) != "" {
		if c.Paths.InflightDir, err = expandPath(c.Paths.InflightDir); err != nil {
			return fmt.Errorf("paths.inflight_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeCameras() {
	c.Cameras.Backend = strings.ToLower(strings.TrimSpace(c.Cameras.Backend))
	if c.Cameras.Backend == "" {
		c.Cameras.Backend = defaultCameraBackend
	}
	c.Cameras.Binary = strings.TrimSpace(c.Cameras.Binary)
	if c.Cameras.Binary == "" {
		c.Cameras.Binary = defaultCameraBinary
	}
	c.Cameras.FFmpegBinary = strings.TrimSpace(c.Cameras.FFmpegBinary)
	if c.Cameras.FFmpegBinary == "" {
		c.Cameras.FFmpegBinary = defaultFFmpegBinary
	}

	seen := make(map[int]struct{}, len(c.Cameras.IDs))
	ids := make([]int, 0, len(c.Cameras.IDs))
	for _, id := range c.Cameras.IDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	c.Cameras.IDs = ids

	if len(c.Cameras.Devices) > 0 {
		devices := make(map[string]string, len(c.Cameras.Devices))
		for key, dev := range c.Cameras.Devices {
			devices[strings.TrimSpace(key)] = strings.TrimSpace(dev)
		}
		c.Cameras.Devices = devices
	}
}

func (c *Config) normalizeMotion() {
	if v, ok := os.LookupEnv("BLACKBOX_SENSITIVITY"); ok && strings.TrimSpace(v) != "" {
		c.Motion.Sensitivity = v
	}
	c.Motion.Sensitivity = strings.ToLower(strings.TrimSpace(c.Motion.Sensitivity))
	if c.Motion.Sensitivity == "" {
		c.Motion.Sensitivity = defaultMotionSensitivity
	}
	if c.Motion.SampleEvery <= 0 {
		c.Motion.SampleEvery = 1
	}
}

func (c *Config) normalizeRecording() {
	c.Recording.Codec = strings.ToLower(strings.TrimSpace(c.Recording.Codec))
	if c.Recording.Codec == "" {
		c.Recording.Codec = defaultRecordingCodec
	}
	c.Recording.Extension = normalizeExtension(c.Recording.Extension)
	if c.Recording.Extension == "" {
		c.Recording.Extension = defaultRecordingExtension
	}
	c.Recording.Binary = strings.TrimSpace(c.Recording.Binary)
	if c.Recording.Binary == "" {
		c.Recording.Binary = c.Cameras.Binary
	}
	if c.Recording.FPS <= 0 {
		c.Recording.FPS = c.Cameras.FPS
	}
}

func (c *Config) normalizeStorage() {
	exts := make([]string, 0, len(c.Storage.Extensions))
	seen := make(map[string]struct{}, len(c.Storage.Extensions))
	for _, ext := range c.Storage.Extensions {
		ext = normalizeExtension(ext)
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	if _, ok := seen[c.Recording.Extension]; !ok && c.Recording.Extension != "" {
		exts = append(exts, c.Recording.Extension)
	}
	c.Storage.Extensions = exts
	if c.Storage.ImportantRetentionDays < c.Storage.RetentionDays {
		c.Storage.ImportantRetentionDays = c.Storage.RetentionDays
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	if v, ok := os.LookupEnv("BLACKBOX_LOG_LEVEL"); ok && strings.TrimSpace(v) != "" {
		c.Logging.Level = v
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeMetrics() {
	if v, ok := os.LookupEnv("BLACKBOX_METRICS_BIND"); ok {
		c.Metrics.Bind = v
	}
	c.Metrics.Bind = normalizeBind(c.Metrics.Bind)
}

func (c *Config) normalizeAPI() {
	if v, ok := os.LookupEnv("BLACKBOX_API_BIND"); ok {
		c.API.Bind = v
	}
	if v, ok := os.LookupEnv("BLACKBOX_API_TOKEN"); ok {
		c.API.Token = v
	}
	c.API.Bind = normalizeBind(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
}

func normalizeBind(bind string) string {
	bind = strings.TrimSpace(bind)
	if bind != "" && !strings.Contains(bind, ":") {
		if _, err := strconv.Atoi(bind); err == nil {
			return ":" + bind
		}
	}
	return bind
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
