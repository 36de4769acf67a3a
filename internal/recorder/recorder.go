package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"blackbox/internal/config"
	"blackbox/internal/fileutil"
	"blackbox/internal/framebuffer"
	"blackbox/internal/logging"
	"blackbox/internal/motion"
	"blackbox/internal/services"
	"blackbox/internal/services/rpicam"
)

// MotionEvent is a single accepted trigger handed to a recording task.
type MotionEvent struct {
	ID          string
	CameraID    int
	TriggeredAt time.Time
	PreRoll     framebuffer.Snapshot
	Decision    motion.Decision
}

// Controller owns the live frame source for a camera.
type Controller interface {
	Suspend(cameraID int) error
	Resume(ctx context.Context, cameraID int) error
}

// Capturer runs a capture-to-file session. *rpicam.Client satisfies it.
type Capturer interface {
	Capture(ctx context.Context, req rpicam.CaptureRequest) (rpicam.CaptureResult, error)
}

// Settings are the recording parameters shared by every camera.
type Settings struct {
	EventsDir   string
	InflightDir string
	Width       int
	Height      int
	FPS         int
	Codec       string
	Quality     int
	Extension   string
	PreRoll     time.Duration
	PostRoll    time.Duration
	Settle      time.Duration
	ResumeDelay time.Duration
	Thumbnails  bool
}

// SettingsFromConfig derives Settings from the loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		EventsDir:   cfg.Paths.EventsDir,
		InflightDir: cfg.InflightDir(),
		Width:       cfg.Cameras.Width,
		Height:      cfg.Cameras.Height,
		FPS:         cfg.Recording.FPS,
		Codec:       cfg.Recording.Codec,
		Quality:     cfg.Cameras.Quality,
		Extension:   cfg.Recording.Extension,
		PreRoll:     cfg.PreRoll(),
		PostRoll:    cfg.PostRoll(),
		Settle:      time.Duration(cfg.Recording.SettleMillis) * time.Millisecond,
		ResumeDelay: time.Duration(cfg.Recording.ResumeDelayMillis) * time.Millisecond,
		Thumbnails:  cfg.Recording.Thumbnails,
	}
}

// Result describes a finalized clip.
type Result struct {
	Path      string        `json:"path"`
	Thumbnail string        `json:"thumbnail,omitempty"`
	Size      int64         `json:"size_bytes"`
	Started   time.Time     `json:"started_at"`
	Finished  time.Time     `json:"finished_at"`
	Elapsed   time.Duration `json:"elapsed"`
	TimedOut  bool          `json:"timed_out,omitempty"`
	Cancelled bool          `json:"cancelled,omitempty"`
}

// Option customises a Recorder.
type Option func(*Recorder)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSleep overrides the settle and resume-delay waits.
func WithSleep(sleep func(context.Context, time.Duration)) Option {
	return func(r *Recorder) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// Recorder runs motion-event recordings for one camera.
type Recorder struct {
	cameraID   int
	settings   Settings
	capturer   Capturer
	controller Controller
	logger     *slog.Logger
	now        func() time.Time
	sleep      func(context.Context, time.Duration)

	mu    sync.Mutex
	state State
}

// New constructs a Recorder for cameraID.
func New(cameraID int, settings Settings, capturer Capturer, controller Controller, logger *slog.Logger, opts ...Option) (*Recorder, error) {
	if capturer == nil {
		return nil, errors.New("recorder: capturer required")
	}
	if controller == nil {
		return nil, errors.New("recorder: controller required")
	}
	if strings.TrimSpace(settings.EventsDir) == "" {
		return nil, errors.New("recorder: events dir required")
	}
	if settings.InflightDir == "" {
		settings.InflightDir = filepath.Join(settings.EventsDir, ".inflight")
	}
	if settings.Extension == "" {
		settings.Extension = ".mp4"
	}
	r := &Recorder{
		cameraID:   cameraID,
		settings:   settings,
		capturer:   capturer,
		controller: controller,
		logger:     logging.NewComponentLogger(logger, "recorder").With(logging.CameraID(cameraID)),
		now:        time.Now,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// CameraID returns the camera this recorder serves.
func (r *Recorder) CameraID() int { return r.cameraID }

// State returns the current recording state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Busy reports whether a recording is in flight.
func (r *Recorder) Busy() bool { return r.State() != StateIdle }

// Duration is the total clip length: pre-roll plus post-roll.
func (r *Recorder) Duration() time.Duration {
	return r.settings.PreRoll + r.settings.PostRoll
}

// PlannedPath returns the final clip path for a trigger time before
// collision handling.
func (r *Recorder) PlannedPath(triggeredAt time.Time) string {
	return filepath.Join(r.settings.EventsDir, triggeredAt.Format("2006-01"), r.clipName(triggeredAt)+r.settings.Extension)
}

func (r *Recorder) clipName(triggeredAt time.Time) string {
	return fmt.Sprintf("motion_event_cam%d_%s", r.cameraID, triggeredAt.Format("20060102_150405"))
}

func (r *Recorder) tryBegin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateIdle {
		return false
	}
	r.state = StateSuspending
	return true
}

func (r *Recorder) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Record suspends the live source, waits for the device to settle, captures
// the clip, finalizes it into the events tree and resumes the live source.
// A capture cut short by ctx still finalizes whatever was flushed to disk. The live source is resumed
// whether or not the recording succeeded.
func (r *Recorder) Record(ctx context.Context, event MotionEvent) (res Result, err error) {
	if !r.tryBegin() {
		return Result{}, ErrBusy
	}
	defer r.setState(StateIdle)
	ctx = services.WithEventID(services.WithCameraID(ctx, r.cameraID), event.ID)
	logger := r.logger.With(logging.EventID(event.ID))

	if suspendErr := r.controller.Suspend(r.cameraID); suspendErr != nil {
		logging.WarnWithContext(logger, "live source did not stop cleanly", "camera_suspend_failed",
			logging.Error(suspendErr),
			logging.String(logging.FieldErrorHint, "capture may fail if the device is still held"),
		)
	}
	defer r.resume(ctx, logger)

	r.sleep(ctx, r.settings.Settle)
	r.setState(StateRecording)
	res, err = r.capture(ctx, event, logger)
	if err != nil {
		logging.WarnWithContext(logger, "recording failed", "recording_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check camera binary output and disk space"),
			logging.String(logging.FieldImpact, "motion event discarded"),
		)
		return Result{}, err
	}
	logger.InfoContext(ctx, "recording finalized",
		logging.String("path", res.Path),
		logging.Int64("size_bytes", res.Size),
		logging.Duration("elapsed", res.Elapsed.Round(time.Millisecond)),
		logging.Bool("timed_out", res.TimedOut),
		logging.Bool("cancelled", res.Cancelled),
		logging.String(logging.FieldEventType, "recording_finalized"),
	)
	return res, nil
}

func (r *Recorder) capture(ctx context.Context, event MotionEvent, logger *slog.Logger) (Result, error) {
	triggered := event.TriggeredAt
	if triggered.IsZero() {
		triggered = r.now()
	}
	if err := os.MkdirAll(r.settings.InflightDir, 0o755); err != nil {
		return Result{}, &Error{CameraID: r.cameraID, Path: r.settings.InflightDir, Reason: ReasonCapture, Err: err}
	}
	partial := filepath.Join(r.settings.InflightDir, r.clipName(triggered)+r.settings.Extension+".part")
	defer os.Remove(partial)

	req := rpicam.CaptureRequest{
		Camera:   r.cameraID,
		Width:    r.settings.Width,
		Height:   r.settings.Height,
		FPS:      r.settings.FPS,
		Duration: r.Duration(),
		Codec:    r.settings.Codec,
		Quality:  r.settings.Quality,
		Output:   partial,
	}
	started := r.now()
	logger.InfoContext(ctx, "recording started",
		logging.String("output", partial),
		logging.Duration("duration", req.Duration),
		logging.Int("pre_roll_frames", event.PreRoll.Len()),
		logging.String(logging.FieldEventType, "recording_started"),
	)

	captured, err := r.capturer.Capture(ctx, req)
	if err != nil {
		return Result{}, &Error{CameraID: r.cameraID, Path: partial, Reason: ReasonCapture, Err: err}
	}
	if captured.Size <= 0 {
		return Result{}, &Error{CameraID: r.cameraID, Path: partial, Reason: ReasonEmpty}
	}

	final, err := fileutil.UniquePath(r.PlannedPath(triggered))
	if err != nil {
		return Result{}, &Error{CameraID: r.cameraID, Path: partial, Reason: ReasonFinalize, Err: err}
	}
	if err := fileutil.MoveFile(partial, final); err != nil {
		return Result{}, &Error{CameraID: r.cameraID, Path: final, Reason: ReasonFinalize, Err: err}
	}

	res := Result{
		Path:      final,
		Size:      captured.Size,
		Started:   started,
		Finished:  r.now(),
		Elapsed:   captured.Elapsed,
		TimedOut:  captured.TimedOut,
		Cancelled: captured.Cancelled,
	}
	if r.settings.Thumbnails {
		res.Thumbnail = r.writeThumbnail(event, final, triggered, logger)
	}
	return res, nil
}

func (r *Recorder) writeThumbnail(event MotionEvent, clip string, triggered time.Time, logger *slog.Logger) string {
	entry, ok := event.PreRoll.Newest()
	if !ok || entry.Frame.Image == nil {
		return ""
	}
	path := strings.TrimSuffix(clip, filepath.Ext(clip)) + ".jpg"
	label := fmt.Sprintf("cam%d %s", r.cameraID, triggered.Format("2006-01-02 15:04:05"))
	if err := WriteThumbnail(path, entry.Frame.Image, label, ThumbnailWidth); err != nil {
		logging.WarnWithContext(logger, "thumbnail not written", "thumbnail_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "clip saved without preview image"),
		)
		return ""
	}
	return path
}

func (r *Recorder) resume(ctx context.Context, logger *slog.Logger) {
	r.setState(StateResuming)
	r.sleep(ctx, r.settings.ResumeDelay)
	if err := r.controller.Resume(ctx, r.cameraID); err != nil {
		logging.WarnWithContext(logger, "live source did not resume", "camera_resume_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the orchestrator will retry the camera with backoff"),
		)
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
