package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"blackbox/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Timings are shortened so orchestrator tests run quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.EventsDir = filepath.Join(base, "events")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Cameras.InitSettleMillis = 0
	cfgVal.Recording.SettleMillis = 0
	cfgVal.Recording.ResumeDelayMillis = 0
	cfgVal.Workflow.LoopIntervalMillis = 5
	cfgVal.Storage.FreeFloorMiB = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCameras overrides the configured camera ids.
func WithCameras(ids ...int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cameras.IDs = append([]int(nil), ids...)
	}
}

// WithSensitivity overrides the motion sensitivity.
func WithSensitivity(level string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Motion.Sensitivity = level
	}
}

// WithRoll overrides the pre- and post-roll durations in seconds.
func WithRoll(pre, post int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Recording.PreRollSeconds = pre
		b.cfg.Recording.PostRollSeconds = post
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default camera binaries are
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"rpicam-vid", "ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.EventsDir)
}
