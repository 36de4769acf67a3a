package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"blackbox/internal/logging"
	"blackbox/internal/services"
)

func TestNewWritesDuplicateOutputOnce(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "blackbox.log")
	logger, err := logging.New(logging.Options{Outputs: []string{logPath, " " + logPath, ""}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("daemon online")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if n := strings.Count(string(content), "daemon online"); n != 1 {
		t.Fatalf("expected one copy of the message, got %d in %q", n, content)
	}
}

func readLog(t *testing.T, opts logging.Options, emit func(*slog.Logger)) string {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "out.log")
	opts.Outputs = []string{logPath}
	logger, err := logging.New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	emit(logger)
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	out := readLog(t, logging.Options{Format: "console", Level: "info"}, func(l *slog.Logger) {
		l.Info("message without caller")
	})
	if strings.Contains(out, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", out)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	out := readLog(t, logging.Options{Format: "console", Level: "debug"}, func(l *slog.Logger) {
		l.Info("message with caller")
	})
	if !strings.Contains(out, ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", out)
	}
}

func TestConsoleLoggerRendersCameraSubject(t *testing.T) {
	out := readLog(t, logging.Options{Format: "console", Level: "info"}, func(l *slog.Logger) {
		logging.NewComponentLogger(l, "recorder").Info("recording finalized",
			logging.CameraID(1),
			logging.EventID("8d1f5b2a-4c1e-4a7b-9f00-2b6c1d7e9a10"),
			logging.String("path", "/tmp/clip one.mp4"),
		)
	})
	if !strings.Contains(out, "INFO [recorder] Camera 1 (event 8d1f5b2a) – recording finalized") {
		t.Fatalf("unexpected header: %q", out)
	}
	if !strings.Contains(out, `- path: "/tmp/clip one.mp4"`) {
		t.Fatalf("expected quoted path bullet, got %q", out)
	}
	if strings.Contains(out, "- camera_id") {
		t.Fatalf("subject fields should not repeat as bullets: %q", out)
	}
}

func TestJSONLoggerShape(t *testing.T) {
	out := readLog(t, logging.Options{Format: "json", Level: "info"}, func(l *slog.Logger) {
		l.Warn("camera unhealthy", logging.CameraID(0))
	})
	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &record); err != nil {
		t.Fatalf("decode json line %q: %v", out, err)
	}
	if record["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", record["level"])
	}
	ts, ok := record["ts"].(string)
	if !ok {
		t.Fatalf("expected ts string, got %v", record["ts"])
	}
	if _, err := time.Parse(time.RFC3339Nano, ts); err != nil {
		t.Fatalf("ts not RFC3339: %v", err)
	}
	if record["camera_id"] != float64(0) {
		t.Fatalf("expected camera_id 0, got %v", record["camera_id"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	out := readLog(t, logging.Options{Format: "console", Level: "invalid"}, func(l *slog.Logger) {
		l.Debug("hidden")
		l.Info("visible")
	})
	if strings.Contains(out, "hidden") || !strings.Contains(out, "visible") {
		t.Fatalf("expected info level filtering, got %q", out)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithCameraID(ctx, 1)
	ctx = services.WithEventID(ctx, "evt-42")
	ctx = services.WithRequestID(ctx, "req-xyz")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WithContext(ctx, logger).Info("contextual log")

	out := buf.String()
	for _, want := range []string{`"camera_id":1`, `"event_id":"evt-42"`, `"correlation_id":"req-xyz"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WarnWithContext(logger, "frame decode failed", "frame_decode_failed",
		logging.String(logging.FieldErrorHint, "check camera cable"))

	out := buf.String()
	for _, want := range []string{`"event_type":"frame_decode_failed"`, `"error_hint":"check camera cable"`, `"impact":"recording continues with reduced coverage"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "blackbox-old.log")
	fresh := filepath.Join(dir, "blackbox-new.log")
	keep := filepath.Join(dir, "blackbox-current.log")
	for _, path := range []string{old, fresh, keep} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	stale := time.Now().AddDate(0, 0, -10)
	for _, path := range []string{old, keep} {
		if err := os.Chtimes(path, stale, stale); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 7, logging.RetentionTarget{
		Dir:     dir,
		Pattern: "blackbox-*.log",
		Exclude: []string{keep},
	})
	if len(removed) != 1 || filepath.Base(removed[0]) != "blackbox-old.log" {
		t.Fatalf("unexpected removals: %v", removed)
	}
	for _, path := range []string{fresh, keep} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain: %v", path, err)
		}
	}
	if got := logging.CleanupOldLogs(nil, 0, logging.RetentionTarget{Dir: dir}); got != nil {
		t.Fatalf("expected zero retention to disable pruning, got %v", got)
	}
}

func TestConsoleLoggerHumanizesByteFields(t *testing.T) {
	out := readLog(t, logging.Options{Format: "console", Level: "info"}, func(l *slog.Logger) {
		l.Info("clip stored",
			logging.Int64("size_bytes", 3*1024*1024/2),
			logging.Int("frames", 2700),
			logging.Duration("elapsed", 1234567*time.Microsecond),
		)
	})
	for _, want := range []string{"- size_bytes: 1.5 MiB (1572864)", "- frames: 2700", "- elapsed: 1.235s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}
