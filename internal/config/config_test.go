package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"blackbox/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("BLACKBOX_EVENTS_DIR", "")
	t.Setenv("BLACKBOX_LOG_DIR", "")
	t.Setenv("BLACKBOX_SENSITIVITY", "")
	t.Setenv("BLACKBOX_METRICS_BIND", "")
	t.Setenv("BLACKBOX_LOG_LEVEL", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantEvents := filepath.Join(tempHome, ".local", "share", "blackbox", "events")
	if cfg.Paths.EventsDir != wantEvents {
		t.Fatalf("unexpected events dir: got %q want %q", cfg.Paths.EventsDir, wantEvents)
	}
	if got := cfg.InflightDir(); got != filepath.Join(wantEvents, ".inflight") {
		t.Fatalf("unexpected inflight dir: %q", got)
	}
	if len(cfg.Cameras.IDs) != 2 || cfg.Cameras.IDs[0] != 0 || cfg.Cameras.IDs[1] != 1 {
		t.Fatalf("unexpected camera ids: %v", cfg.Cameras.IDs)
	}
	if cfg.Motion.Sensitivity != "medium" {
		t.Fatalf("unexpected sensitivity: %q", cfg.Motion.Sensitivity)
	}
	if cfg.MaxBytes() != 25<<30 {
		t.Fatalf("unexpected max bytes: %d", cfg.MaxBytes())
	}
	if cfg.PreRoll().Seconds() != 90 || cfg.PostRoll().Seconds() != 90 {
		t.Fatalf("unexpected roll durations: %s / %s", cfg.PreRoll(), cfg.PostRoll())
	}
	if cfg.DevicePath(1) != "/dev/video1" {
		t.Fatalf("unexpected device path: %q", cfg.DevicePath(1))
	}
	if cfg.Metrics.Bind != "" {
		t.Fatalf("expected metrics disabled by default, got %q", cfg.Metrics.Bind)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.EventsDir, cfg.Paths.LogDir, cfg.Paths.StateDir, cfg.InflightDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be a directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "blackbox.toml")
	t.Setenv("BLACKBOX_SENSITIVITY", "")
	t.Setenv("BLACKBOX_EVENTS_DIR", "")

	type payload struct {
		Paths struct {
			EventsDir string `toml:"events_dir"`
		} `toml:"paths"`
		Cameras struct {
			IDs     []int             `toml:"ids"`
			Devices map[string]string `toml:"devices"`
		} `toml:"cameras"`
		Motion struct {
			Sensitivity     string `toml:"sensitivity"`
			CooldownSeconds int    `toml:"cooldown_seconds"`
		} `toml:"motion"`
		Storage struct {
			Extensions []string `toml:"extensions"`
		} `toml:"storage"`
	}
	custom := payload{}
	custom.Paths.EventsDir = filepath.Join(tempDir, "clips")
	custom.Cameras.IDs = []int{1, 0, 1}
	custom.Cameras.Devices = map[string]string{"1": " /dev/video4 "}
	custom.Motion.Sensitivity = " HIGH "
	custom.Motion.CooldownSeconds = 12
	custom.Storage.Extensions = []string{"MP4", ".mp4", "h264"}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.EventsDir != filepath.Join(tempDir, "clips") {
		t.Fatalf("unexpected events dir: %q", cfg.Paths.EventsDir)
	}
	if len(cfg.Cameras.IDs) != 2 || cfg.Cameras.IDs[0] != 0 || cfg.Cameras.IDs[1] != 1 {
		t.Fatalf("expected deduplicated sorted ids, got %v", cfg.Cameras.IDs)
	}
	if cfg.DevicePath(1) != "/dev/video4" {
		t.Fatalf("unexpected device override: %q", cfg.DevicePath(1))
	}
	if cfg.DevicePath(0) != "/dev/video0" {
		t.Fatalf("unexpected default device: %q", cfg.DevicePath(0))
	}
	if cfg.Motion.Sensitivity != "high" {
		t.Fatalf("expected normalized sensitivity, got %q", cfg.Motion.Sensitivity)
	}
	if cfg.Motion.CooldownSeconds != 12 {
		t.Fatalf("unexpected cooldown: %d", cfg.Motion.CooldownSeconds)
	}
	if strings.Join(cfg.Storage.Extensions, ",") != ".mp4,.h264" {
		t.Fatalf("unexpected extensions: %v", cfg.Storage.Extensions)
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "blackbox.toml")
	if err := os.WriteFile(configPath, []byte("[motion]\nsensitivity = \"low\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BLACKBOX_SENSITIVITY", "high")
	t.Setenv("BLACKBOX_METRICS_BIND", "9108")
	t.Setenv("BLACKBOX_API_BIND", "7490")
	t.Setenv("BLACKBOX_API_TOKEN", " secret ")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Motion.Sensitivity != "high" {
		t.Fatalf("expected env sensitivity, got %q", cfg.Motion.Sensitivity)
	}
	if cfg.Metrics.Bind != ":9108" {
		t.Fatalf("expected port-only bind to gain a colon, got %q", cfg.Metrics.Bind)
	}
	if cfg.API.Bind != ":7490" || cfg.API.Token != "secret" {
		t.Fatalf("unexpected api config %+v", cfg.API)
	}
}

func TestDotEnvFileIsLoadedWithoutOverriding(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "blackbox.toml")
	if err := os.WriteFile(configPath, []byte("[logging]\nlevel = \"info\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envBody := "BLACKBOX_SENSITIVITY=low\nBLACKBOX_LOG_LEVEL=debug\n"
	if err := os.WriteFile(filepath.Join(tempDir, ".env"), []byte(envBody), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	// t.Setenv restores the original values once the dotenv loader has set them.
	t.Setenv("BLACKBOX_SENSITIVITY", "")
	os.Unsetenv("BLACKBOX_SENSITIVITY")
	t.Setenv("BLACKBOX_LOG_LEVEL", "error")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Motion.Sensitivity != "low" {
		t.Fatalf("expected sensitivity from .env, got %q", cfg.Motion.Sensitivity)
	}
	if cfg.Logging.Level != "error" {
		t.Fatalf("expected existing environment to win, got %q", cfg.Logging.Level)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[cameras]") {
		t.Fatalf("sample config missing cameras section: %s", contents)
	}

	cfg := config.Default()
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config does not validate: %v", err)
	}
	if !strings.Contains(cfg.Paths.EventsDir, "blackbox") {
		t.Fatalf("expected events dir to contain blackbox, got %q", cfg.Paths.EventsDir)
	}
	if cfg.Recording.SettleMillis != 2000 || cfg.Recording.ResumeDelayMillis != 0 {
		t.Fatalf("sample settle/resume = %d/%d, want 2000/0", cfg.Recording.SettleMillis, cfg.Recording.ResumeDelayMillis)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"no cameras", func(c *config.Config) { c.Cameras.IDs = nil }},
		{"negative camera", func(c *config.Config) { c.Cameras.IDs = []int{-1} }},
		{"backend", func(c *config.Config) { c.Cameras.Backend = "gstreamer" }},
		{"fps", func(c *config.Config) { c.Cameras.FPS = 0 }},
		{"quality", func(c *config.Config) { c.Cameras.Quality = 101 }},
		{"sensitivity", func(c *config.Config) { c.Motion.Sensitivity = "extreme" }},
		{"post roll", func(c *config.Config) { c.Recording.PostRollSeconds = 0 }},
		{"codec", func(c *config.Config) { c.Recording.Codec = "vp9" }},
		{"settle", func(c *config.Config) { c.Recording.SettleMillis = -1 }},
		{"max size", func(c *config.Config) { c.Storage.MaxGiB = 0 }},
		{"usage ratio", func(c *config.Config) { c.Storage.UsageRatio = 1.5 }},
		{"divisor", func(c *config.Config) { c.Storage.EmergencyDivisor = 0 }},
		{"retention", func(c *config.Config) { c.Storage.RetentionDays = 0 }},
		{"loop interval", func(c *config.Config) { c.Workflow.LoopIntervalMillis = 0 }},
		{"log level", func(c *config.Config) { c.Logging.Level = "verbose" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
