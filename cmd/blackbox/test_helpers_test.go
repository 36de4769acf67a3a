package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"blackbox/internal/blackbox"
	"blackbox/internal/camera"
	"blackbox/internal/config"
	"blackbox/internal/daemon"
	"blackbox/internal/events"
	"blackbox/internal/ipc"
	"blackbox/internal/logging"
	"blackbox/internal/services/rpicam"
	"blackbox/internal/storage"
	"blackbox/internal/testsupport"
)

type idleSource struct{}

func (idleSource) Start(context.Context) error   { return nil }
func (idleSource) Latest() (camera.Frame, bool) { return camera.Frame{}, false }
func (idleSource) Stop() error                  { return nil }
func (idleSource) Health() camera.Health        { return camera.Health{Running: true} }

type noopCapturer struct{}

func (noopCapturer) Capture(_ context.Context, req rpicam.CaptureRequest) (rpicam.CaptureResult, error) {
	return rpicam.CaptureResult{Path: req.Output}, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	ledger     *events.Store
	daemon     *daemon.Daemon
	socketPath string
	configPath string
	clipPath   string
}

// newConfigEnv writes a config file for a fresh temp tree without starting a
// daemon.
func newConfigEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithCameras(0, 1))
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	configPath := filepath.Join(homeDir, ".config", "blackbox", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		socketPath: filepath.Join(cfg.Paths.StateDir, "cli.sock"),
		configPath: configPath,
	}
}

// setupCLITestEnv starts an in-process daemon with idle cameras and a ledger
// seeded with one recorded clip.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	env := newConfigEnv(t)
	cfg := env.cfg
	logger := logging.NewNop()

	env.ledger = testsupport.MustOpenLedger(t, cfg)
	env.clipPath = seedClip(t, env.ledger, cfg, 0)

	manager := storage.NewManager(storage.PolicyFromConfig(cfg), cfg.Paths.EventsDir, cfg.Storage.Extensions, logger, storage.WithImportant(env.ledger))
	orch, err := blackbox.New(cfg, blackbox.Deps{
		Sources:  func(int) (camera.Source, error) { return idleSource{}, nil },
		Capturer: noopCapturer{},
		Storage:  manager,
		Ledger:   env.ledger,
	}, logger)
	if err != nil {
		t.Fatalf("blackbox.New: %v", err)
	}
	d, err := daemon.New(cfg, orch, env.ledger, nil, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	env.daemon = d

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := ipc.NewServer(ctx, env.socketPath, d, logger)
	if err != nil {
		cancel()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon start: %v", err)
	}

	t.Cleanup(func() {
		d.Stop()
		cancel()
		srv.Close()
	})

	waitForActiveCameras(t, d, len(cfg.Cameras.IDs))
	return env
}

func seedClip(t *testing.T, ledger *events.Store, cfg *config.Config, cameraID int) string {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	clip := filepath.Join(cfg.Paths.EventsDir, now.Format("2006-01"), fmt.Sprintf("motion_event_cam%d_%s.mp4", cameraID, now.Format("20060102_150405")))
	testsupport.WriteClip(t, clip, 2048, now)

	ev, err := ledger.RecordMotionEvent(ctx, events.MotionEvent{
		CameraID:       cameraID,
		TriggeredAt:    now,
		Status:         events.EventAccepted,
		ComponentCount: 1,
		LargestArea:    900,
		ThresholdArea:  400,
	})
	if err != nil {
		t.Fatalf("RecordMotionEvent: %v", err)
	}
	job, err := ledger.CreateJob(ctx, ev.ID, cameraID, clip, now, 10*time.Second)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := ledger.CompleteJob(ctx, job.ID, clip, "", 2048, now); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	return clip
}

func waitForActiveCameras(t *testing.T, d *daemon.Daemon, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if d.Status(context.Background()).Blackbox.ActiveCameras == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d active cameras", want)
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
events_dir = %q
log_dir = %q
state_dir = %q

[cameras]
ids = [0, 1]
init_settle_ms = 0

[storage]
free_floor_mib = 0
`,
		cfg.Paths.EventsDir,
		cfg.Paths.LogDir,
		cfg.Paths.StateDir,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n%s", needle, haystack)
	}
}
