package blackbox_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"blackbox/internal/blackbox"
	"blackbox/internal/camera"
	"blackbox/internal/config"
	"blackbox/internal/events"
	"blackbox/internal/logging"
	"blackbox/internal/services/rpicam"
	"blackbox/internal/storage"
	"blackbox/internal/testsupport"
)

const (
	frameWidth  = 320
	frameHeight = 240
)

var epoch = time.Date(2026, 5, 4, 22, 0, 0, 0, time.UTC)

// feed is a scripted frame sequence shared by every source built for one
// camera, so a restarted source continues where the last one stopped.
type feed struct {
	mu     sync.Mutex
	frames []camera.Frame
	next   int
}

func newFeed(cameraID, count int, blobs map[int]bool) *feed {
	f := &feed{}
	blob := image.Rect(100, 60, 200, 160)
	for i := range count {
		at := epoch.Add(time.Duration(i) * 100 * time.Millisecond)
		seq := uint64(i + 1)
		if blobs[i] {
			f.frames = append(f.frames, testsupport.BlobFrame(cameraID, seq, at, frameWidth, frameHeight, 100, blob))
			continue
		}
		f.frames = append(f.frames, testsupport.GrayFrame(cameraID, seq, at, frameWidth, frameHeight, 100))
	}
	return f
}

func (f *feed) pop() (camera.Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return camera.Frame{}, false
	}
	if f.next >= len(f.frames) {
		return f.frames[len(f.frames)-1], true
	}
	frame := f.frames[f.next]
	f.next++
	return frame, true
}

func (f *feed) drained() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next >= len(f.frames)
}

type fakeSource struct {
	feed     *feed
	startErr error

	mu      sync.Mutex
	running bool
}

func (s *fakeSource) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSource) Latest() (camera.Frame, bool) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return camera.Frame{}, false
	}
	return s.feed.pop()
}

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

func (s *fakeSource) Health() camera.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	return camera.Health{Running: s.running}
}

type fileCapturer struct {
	mu    sync.Mutex
	calls int
	block bool
	err   error
}

func (c *fileCapturer) Capture(ctx context.Context, req rpicam.CaptureRequest) (rpicam.CaptureResult, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.block {
		<-ctx.Done()
		return rpicam.CaptureResult{}, ctx.Err()
	}
	if c.err != nil {
		return rpicam.CaptureResult{}, c.err
	}
	if err := os.WriteFile(req.Output, []byte("clip"), 0o644); err != nil {
		return rpicam.CaptureResult{}, err
	}
	return rpicam.CaptureResult{Path: req.Output, Size: 4, Elapsed: req.Duration}, nil
}

func (c *fileCapturer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func baseConfig(t *testing.T, ids ...int) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithCameras(ids...), testsupport.WithRoll(1, 1))
	cfg.Motion.SampleEvery = 1
	cfg.Motion.CooldownSeconds = 5
	cfg.Cameras.Width = frameWidth
	cfg.Cameras.Height = frameHeight
	cfg.Cameras.FPS = 10
	cfg.Recording.Thumbnails = false
	cfg.Workflow.ShutdownGraceSeconds = 2
	return cfg
}

func factoryFor(feeds map[int]*feed, failing map[int]error) camera.Factory {
	return func(id int) (camera.Source, error) {
		if err, ok := failing[id]; ok {
			return &fakeSource{startErr: err}, nil
		}
		f, ok := feeds[id]
		if !ok {
			return nil, errors.New("unknown camera")
		}
		return &fakeSource{feed: f}, nil
	}
}

func startOrchestrator(t *testing.T, o *blackbox.Orchestrator) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- o.Run(context.Background()) }()
	t.Cleanup(o.Stop)
	return errCh
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestMotionOnOneCameraRecordsOneClip(t *testing.T) {
	cfg := baseConfig(t, 0, 1)
	ledger := testsupport.MustOpenLedger(t, cfg)
	manager := storage.NewManager(storage.PolicyFromConfig(cfg), cfg.Paths.EventsDir, cfg.Storage.Extensions, logging.NewNop())

	blob := map[int]bool{100: true, 101: true, 102: true, 103: true, 104: true}
	feeds := map[int]*feed{0: newFeed(0, 150, blob), 1: newFeed(1, 150, nil)}
	capturer := &fileCapturer{}
	o, err := blackbox.New(cfg, blackbox.Deps{
		Sources:  factoryFor(feeds, nil),
		Capturer: capturer,
		Storage:  manager,
		Ledger:   ledger,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	errCh := startOrchestrator(t, o)

	waitFor(t, 5*time.Second, func() bool {
		st := o.Status()
		return feeds[0].drained() && feeds[1].drained() && st.Recordings.Succeeded == 1 && st.Recordings.Active == 0
	})

	st := o.Status()
	cam0, _ := st.Camera(0)
	cam1, _ := st.Camera(1)
	if cam0.MotionEvents != 1 {
		t.Fatalf("camera 0 motion events = %d, want 1", cam0.MotionEvents)
	}
	if cam1.MotionEvents != 0 || cam1.Suppressed != 0 {
		t.Fatalf("camera 1 recorded motion: %+v", cam1)
	}
	if st.ActiveCameras != 2 {
		t.Fatalf("active cameras = %d, want 2", st.ActiveCameras)
	}
	if capturer.Calls() != 1 {
		t.Fatalf("capture calls = %d, want 1", capturer.Calls())
	}

	want := filepath.Join(cfg.Paths.EventsDir, epoch.Format("2006-01"), "motion_event_cam0_"+epoch.Add(10*time.Second).Format("20060102_150405")+".mp4")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected clip at %s: %v", want, err)
	}

	jobs, err := ledger.ListJobs(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].State != events.JobSucceeded || jobs[0].CameraID != 0 {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
	evs, err := ledger.ListMotionEvents(context.Background(), -1, 10)
	if err != nil {
		t.Fatalf("ListMotionEvents: %v", err)
	}
	if len(evs) != 1 || evs[0].Status != events.EventAccepted {
		t.Fatalf("unexpected motion events: %+v", evs)
	}

	o.Stop()
	if err := <-errCh; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if o.Running() {
		t.Fatal("orchestrator still running after Stop")
	}
	if final := o.Status(); final.LastAudit == nil {
		t.Fatal("expected a storage audit to have run")
	}
}

func TestCooldownSuppressesSecondTrigger(t *testing.T) {
	cfg := baseConfig(t, 0)
	blob := map[int]bool{100: true, 120: true}
	feeds := map[int]*feed{0: newFeed(0, 150, blob)}
	capturer := &fileCapturer{}
	o, err := blackbox.New(cfg, blackbox.Deps{Sources: factoryFor(feeds, nil), Capturer: capturer}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	startOrchestrator(t, o)

	waitFor(t, 5*time.Second, func() bool {
		st := o.Status()
		return feeds[0].drained() && st.Recordings.Succeeded == 1 && st.Recordings.Active == 0
	})
	cam0, _ := o.Status().Camera(0)
	if cam0.MotionEvents != 1 {
		t.Fatalf("motion events = %d, want 1", cam0.MotionEvents)
	}
	if cam0.CooldownSkips < 1 {
		t.Fatalf("cooldown skips = %d, want at least 1", cam0.CooldownSkips)
	}
}

func TestFailedCameraLeavesOthersRunning(t *testing.T) {
	cfg := baseConfig(t, 0, 1)
	feeds := map[int]*feed{0: newFeed(0, 20, nil)}
	failing := map[int]error{1: &camera.StartError{CameraID: 1, Err: errors.New("no frame within timeout")}}
	o, err := blackbox.New(cfg, blackbox.Deps{Sources: factoryFor(feeds, failing), Capturer: &fileCapturer{}}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	errCh := startOrchestrator(t, o)

	waitFor(t, 5*time.Second, func() bool { return feeds[0].drained() })
	st := o.Status()
	cam0, _ := st.Camera(0)
	cam1, _ := st.Camera(1)
	if !cam0.Active || cam0.State != "live" {
		t.Fatalf("camera 0 = %+v, want live", cam0)
	}
	if cam1.Active || cam1.State != "inactive" || cam1.LastError == "" {
		t.Fatalf("camera 1 = %+v, want inactive with error", cam1)
	}
	if st.ActiveCameras != 1 {
		t.Fatalf("active cameras = %d, want 1", st.ActiveCameras)
	}
	o.Stop()
	if err := <-errCh; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestRunWithoutCamerasFails(t *testing.T) {
	cfg := baseConfig(t, 0, 1)
	boom := errors.New("device busy")
	o, err := blackbox.New(cfg, blackbox.Deps{
		Sources:  factoryFor(nil, map[int]error{0: boom, 1: boom}),
		Capturer: &fileCapturer{},
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = o.Run(context.Background())
	if !errors.Is(err, blackbox.ErrNoCameras) {
		t.Fatalf("Run error = %v, want ErrNoCameras", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("Run error should carry the camera failure: %v", err)
	}
}

func TestShutdownCancelsRecordingAfterGrace(t *testing.T) {
	cfg := baseConfig(t, 0)
	cfg.Workflow.ShutdownGraceSeconds = 0
	feeds := map[int]*feed{0: newFeed(0, 60, map[int]bool{30: true})}
	capturer := &fileCapturer{block: true}
	o, err := blackbox.New(cfg, blackbox.Deps{Sources: factoryFor(feeds, nil), Capturer: capturer}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	errCh := startOrchestrator(t, o)

	waitFor(t, 5*time.Second, func() bool { return capturer.Calls() == 1 })
	if st := o.Status(); st.Recordings.Active != 1 {
		t.Fatalf("active recordings = %d, want 1", st.Recordings.Active)
	}

	stopped := make(chan struct{})
	go func() {
		o.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	st := o.Status()
	if st.Recordings.Failed != 1 || st.Recordings.Active != 0 {
		t.Fatalf("recordings = %+v, want one failed", st.Recordings)
	}
	cam0, _ := st.Camera(0)
	if cam0.Active {
		t.Fatal("camera should be stopped after shutdown")
	}
	entries, _ := os.ReadDir(cfg.InflightDir())
	if len(entries) != 0 {
		t.Fatalf("inflight dir not cleaned: %d entries", len(entries))
	}
}

func TestFailedRecordingReturnsCameraToLive(t *testing.T) {
	cfg := baseConfig(t, 0)
	feeds := map[int]*feed{0: newFeed(0, 60, map[int]bool{30: true})}
	capturer := &fileCapturer{err: errors.New("rpicam-vid exited with status 255")}
	o, err := blackbox.New(cfg, blackbox.Deps{Sources: factoryFor(feeds, nil), Capturer: capturer}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	errCh := startOrchestrator(t, o)

	waitFor(t, 5*time.Second, func() bool {
		st := o.Status()
		return st.Recordings.Failed == 1 && st.Recordings.Active == 0
	})
	waitFor(t, 5*time.Second, func() bool {
		cam0, _ := o.Status().Camera(0)
		return cam0.Active && cam0.State == "live"
	})
	if st := o.Status(); st.Recordings.Succeeded != 0 {
		t.Fatalf("recordings = %+v, want only the failure", st.Recordings)
	}
	if capturer.Calls() != 1 {
		t.Fatalf("capture calls = %d, want 1", capturer.Calls())
	}

	o.Stop()
	if err := <-errCh; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

// lockedBuffer is written by the status loop while the test reads it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) records(eventType string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(b.buf.String()))
	for scanner.Scan() {
		var rec map[string]any
		if json.Unmarshal(scanner.Bytes(), &rec) != nil {
			continue
		}
		if rec[logging.FieldEventType] == eventType {
			out = append(out, rec)
		}
	}
	return out
}

func TestStatusLogCarriesPerCameraCounters(t *testing.T) {
	cfg := baseConfig(t, 0, 1)
	cfg.Workflow.StatusIntervalSeconds = 1
	feeds := map[int]*feed{0: newFeed(0, 40, nil), 1: newFeed(1, 40, nil)}
	out := &lockedBuffer{}
	logger := slog.New(slog.NewJSONHandler(out, nil))
	o, err := blackbox.New(cfg, blackbox.Deps{Sources: factoryFor(feeds, nil), Capturer: &fileCapturer{}}, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	errCh := startOrchestrator(t, o)

	waitFor(t, 5*time.Second, func() bool { return len(out.records("blackbox_status")) > 0 })
	o.Stop()
	if err := <-errCh; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	seen := map[float64]bool{}
	for _, rec := range out.records("camera_status") {
		id, _ := rec[logging.FieldCameraID].(float64)
		seen[id] = true
		for _, key := range []string{"state", "frames", "motion_events", "suppressed", "buffer_len", "buffer_full"} {
			if _, ok := rec[key]; !ok {
				t.Fatalf("camera %v status missing %q: %v", id, key, rec)
			}
		}
		if capacity, _ := rec["buffer_capacity"].(float64); capacity != 10 {
			t.Fatalf("camera %v buffer_capacity = %v, want 10", id, rec["buffer_capacity"])
		}
	}
	if !seen[0] || !seen[1] {
		t.Fatalf("per-camera status records = %v, want cameras 0 and 1", seen)
	}
	agg := out.records("blackbox_status")[0]
	if agg["active_cameras"] != float64(2) {
		t.Fatalf("aggregate status = %v", agg)
	}
	if len(out.records("blackbox_stopped")) != 1 {
		t.Fatal("expected a final status record on shutdown")
	}
}

func TestNewValidatesDeps(t *testing.T) {
	cfg := baseConfig(t, 0)
	if _, err := blackbox.New(cfg, blackbox.Deps{Capturer: &fileCapturer{}}, nil); err == nil {
		t.Fatal("expected error without camera factory")
	}
	if _, err := blackbox.New(cfg, blackbox.Deps{Sources: factoryFor(nil, nil)}, nil); err == nil {
		t.Fatal("expected error without capturer")
	}
	empty := baseConfig(t)
	empty.Cameras.IDs = nil
	if _, err := blackbox.New(empty, blackbox.Deps{Sources: factoryFor(nil, nil), Capturer: &fileCapturer{}}, nil); !errors.Is(err, blackbox.ErrNoCameras) {
		t.Fatalf("expected ErrNoCameras, got %v", err)
	}
	dup := baseConfig(t, 0, 0)
	if _, err := blackbox.New(dup, blackbox.Deps{Sources: factoryFor(nil, nil), Capturer: &fileCapturer{}}, nil); err == nil {
		t.Fatal("expected duplicate camera id error")
	}
}
