package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"blackbox/internal/camera"
	"blackbox/internal/logging"
	"blackbox/internal/storage"
)

var _ camera.Observer = (*Metrics)(nil)

func TestCounters(t *testing.T) {
	m := New()
	m.FrameDecoded(0)
	m.FrameDecoded(0)
	m.FrameDropped(1)
	m.DecodeFailed(1)
	m.MotionEvent(0, "accepted")
	m.MotionEvent(0, "suppressed")
	m.MotionEvent(0, "suppressed")
	m.Recording(0, "succeeded", 180*time.Second)
	m.CamerasActive(2)

	if got := testutil.ToFloat64(m.frames.WithLabelValues("0")); got != 2 {
		t.Fatalf("frames = %v", got)
	}
	if got := testutil.ToFloat64(m.dropped.WithLabelValues("1")); got != 1 {
		t.Fatalf("dropped = %v", got)
	}
	if got := testutil.ToFloat64(m.motionEvents.WithLabelValues("0", "suppressed")); got != 2 {
		t.Fatalf("suppressed = %v", got)
	}
	if got := testutil.ToFloat64(m.recordings.WithLabelValues("0", "succeeded")); got != 1 {
		t.Fatalf("recordings = %v", got)
	}
	if got := testutil.ToFloat64(m.camerasActive); got != 2 {
		t.Fatalf("cameras active = %v", got)
	}
}

func TestAudit(t *testing.T) {
	m := New()
	m.Audit(storage.AuditResult{
		Mode:    storage.ModeEmergency,
		Deleted: make([]storage.DeletedFile, 33),
		After:   storage.Stats{Files: 67, UsedBytes: 1000, FreeBytes: 5000},
	})
	if got := testutil.ToFloat64(m.storageDeleted.WithLabelValues(storage.ModeEmergency)); got != 33 {
		t.Fatalf("deleted = %v", got)
	}
	if got := testutil.ToFloat64(m.storageFiles); got != 67 {
		t.Fatalf("files = %v", got)
	}
	if got := testutil.ToFloat64(m.storageFree); got != 5000 {
		t.Fatalf("free = %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.FrameDecoded(0)
	m.MotionEvent(0, "accepted")
	m.Audit(storage.AuditResult{})
	if err := m.Serve(context.Background(), ":0", nil); err != nil {
		t.Fatalf("nil Serve: %v", err)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.FrameDecoded(3)
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `blackbox_frames_total{camera="3"} 1`) {
		t.Fatalf("exposition missing frame counter:\n%s", body)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	m := New()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.serve(ctx, ln, logging.NewNop()) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServeDisabled(t *testing.T) {
	if err := New().Serve(context.Background(), "", nil); err != nil {
		t.Fatal(err)
	}
}
