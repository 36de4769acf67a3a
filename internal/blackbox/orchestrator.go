package blackbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"blackbox/internal/camera"
	"blackbox/internal/config"
	"blackbox/internal/events"
	"blackbox/internal/framebuffer"
	"blackbox/internal/logging"
	"blackbox/internal/metrics"
	"blackbox/internal/motion"
	"blackbox/internal/recorder"
	"blackbox/internal/services"
	"blackbox/internal/storage"
)

// ErrNoCameras is returned by Run when no camera could be started.
var ErrNoCameras = errors.New("no cameras available")

// ErrAlreadyRunning is returned when Run is called twice.
var ErrAlreadyRunning = errors.New("orchestrator already running")

// Auditor is the storage surface the orchestrator drives. *storage.Manager
// satisfies it.
type Auditor interface {
	Stats(ctx context.Context) (storage.Stats, error)
	AuditAndClean(ctx context.Context) (storage.AuditResult, error)
}

// Ledger persists motion events and recording jobs. *events.Store satisfies
// it.
type Ledger interface {
	RecordMotionEvent(ctx context.Context, event events.MotionEvent) (events.MotionEvent, error)
	CreateJob(ctx context.Context, eventID string, cameraID int, path string, startedAt time.Time, expected time.Duration) (events.Job, error)
	CompleteJob(ctx context.Context, id, path, thumbnail string, size int64, finishedAt time.Time) error
	FailJob(ctx context.Context, id string, cause error, finishedAt time.Time) error
}

// Deps are the collaborators of an Orchestrator. Sources and Capturer are
// required; the rest are optional.
type Deps struct {
	Sources         camera.Factory
	Capturer        recorder.Capturer
	Storage         Auditor
	Ledger          Ledger
	Metrics         *metrics.Metrics
	Now             func() time.Time
	RecorderOptions []recorder.Option
}

type timing struct {
	loop         time.Duration
	status       time.Duration
	grace        time.Duration
	settle       time.Duration
	retryInitial time.Duration
	retryMax     time.Duration
	audit        time.Duration
	auditBackoff time.Duration
	sampleEvery  int
}

// pushRate is the number of frames per second the pull loop can push: the
// camera rate, capped by one frame per loop tick.
func (t timing) pushRate(fps int) int {
	if t.loop <= 0 {
		return fps
	}
	return min(fps, max(1, int(time.Second/t.loop)))
}

func timingFromConfig(cfg *config.Config) timing {
	t := timing{
		loop:         time.Duration(cfg.Workflow.LoopIntervalMillis) * time.Millisecond,
		status:       time.Duration(cfg.Workflow.StatusIntervalSeconds) * time.Second,
		grace:        time.Duration(cfg.Workflow.ShutdownGraceSeconds) * time.Second,
		settle:       time.Duration(cfg.Cameras.InitSettleMillis) * time.Millisecond,
		retryInitial: time.Duration(cfg.Cameras.RetryInitialSeconds) * time.Second,
		retryMax:     time.Duration(cfg.Cameras.RetryMaxSeconds) * time.Second,
		audit:        time.Duration(cfg.Storage.AuditIntervalSeconds) * time.Second,
		auditBackoff: time.Duration(cfg.Storage.ErrorBackoffSeconds) * time.Second,
		sampleEvery:  cfg.Motion.SampleEvery,
	}
	if t.loop <= 0 {
		t.loop = 100 * time.Millisecond
	}
	if t.status <= 0 {
		t.status = 30 * time.Second
	}
	if t.retryInitial <= 0 {
		t.retryInitial = time.Second
	}
	if t.retryMax < t.retryInitial {
		t.retryMax = t.retryInitial
	}
	if t.audit <= 0 {
		t.audit = time.Hour
	}
	if t.auditBackoff <= 0 {
		t.auditBackoff = time.Minute
	}
	if t.sampleEvery <= 0 {
		t.sampleEvery = 1
	}
	return t
}

// Orchestrator owns the cameras, their buffers, detectors and recorders, the
// recording tasks and the periodic storage audit.
type Orchestrator struct {
	cfg     *config.Config
	deps    Deps
	logger  *slog.Logger
	timing  timing
	now     func() time.Time
	cameras []*cameraState
	byID    map[int]*cameraState

	running   atomic.Bool
	stopping  atomic.Bool
	startedAt atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	tasks  *taskSet
	done   chan struct{}

	succeeded atomic.Uint64
	failed    atomic.Uint64

	auditMu   sync.Mutex
	stateMu   sync.RWMutex
	storage   *storage.Stats
	lastAudit *AuditSummary
}

// New builds an orchestrator for every camera in cfg.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Orchestrator, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "blackbox", "new", "config required", nil)
	}
	if deps.Sources == nil {
		return nil, services.Wrap(services.ErrConfiguration, "blackbox", "new", "camera factory required", nil)
	}
	if deps.Capturer == nil {
		return nil, services.Wrap(services.ErrConfiguration, "blackbox", "new", "capturer required", nil)
	}
	if len(cfg.Cameras.IDs) == 0 {
		return nil, ErrNoCameras
	}
	sensitivity, err := motion.ParseSensitivity(cfg.Motion.Sensitivity)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "blackbox", "new", "motion sensitivity", err)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	o := &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		logger: logging.NewComponentLogger(logger, "blackbox"),
		timing: timingFromConfig(cfg),
		now:    now,
		byID:   make(map[int]*cameraState, len(cfg.Cameras.IDs)),
	}

	settings := recorder.SettingsFromConfig(cfg)
	capacity := framebuffer.CapacityFor(cfg.PreRoll(), o.timing.pushRate(cfg.Cameras.FPS))
	for _, id := range cfg.Cameras.IDs {
		if _, dup := o.byID[id]; dup {
			return nil, services.Wrap(services.ErrConfiguration, "blackbox", "new", fmt.Sprintf("duplicate camera id %d", id), nil)
		}
		detector := motion.New(motion.Config{
			Sensitivity:   sensitivity,
			Cooldown:      time.Duration(cfg.Motion.CooldownSeconds) * time.Second,
			AnalysisWidth: cfg.Motion.AnalysisWidth,
		}, motion.WithClock(now))
		state := newCameraState(id, framebuffer.New(capacity), detector)
		opts := append([]recorder.Option{recorder.WithClock(now)}, deps.RecorderOptions...)
		rec, err := recorder.New(id, settings, deps.Capturer, controller{o: o}, logger, opts...)
		if err != nil {
			return nil, err
		}
		state.recorder = rec
		o.cameras = append(o.cameras, state)
		o.byID[id] = state
	}
	return o, nil
}

// Run starts every camera and blocks until ctx is cancelled or Stop is
// called. It returns ErrNoCameras when no camera could be started.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	o.stopping.Store(false)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	tasks := newTaskSet(runCtx)
	done := make(chan struct{})
	o.mu.Lock()
	o.cancel = cancel
	o.tasks = tasks
	o.done = done
	o.mu.Unlock()
	defer func() {
		o.running.Store(false)
		close(done)
	}()

	o.startedAt.Store(o.now().UnixNano())
	o.logger.Info("blackbox starting",
		logging.Int("cameras", len(o.cameras)),
		logging.String("sensitivity", o.cfg.Motion.Sensitivity),
		logging.Duration("pre_roll", o.cfg.PreRoll()),
		logging.Duration("post_roll", o.cfg.PostRoll()),
		logging.String(logging.FieldEventType, "blackbox_starting"),
	)

	var startErrs []error
	for i, state := range o.cameras {
		if i > 0 && o.timing.settle > 0 {
			if !sleepCtx(runCtx, o.timing.settle) {
				break
			}
		}
		if err := o.startCamera(runCtx, state, "initial"); err != nil {
			startErrs = append(startErrs, err)
		}
	}
	active := o.activeCameras()
	o.deps.Metrics.CamerasActive(active)
	if active == 0 {
		tasks.Close()
		logging.ErrorWithContext(o.logger, "no cameras started", "blackbox_no_cameras",
			logging.Int("configured", len(o.cameras)),
			logging.String(logging.FieldErrorHint, "check camera connections and rpicam-vid"),
			logging.String(logging.FieldImpact, "nothing is being recorded"),
		)
		return errors.Join(append([]error{ErrNoCameras}, startErrs...)...)
	}

	var loops sync.WaitGroup
	for _, state := range o.cameras {
		loops.Add(1)
		go func() {
			defer loops.Done()
			o.cameraLoop(runCtx, state, tasks)
		}()
	}
	loops.Add(3)
	go func() {
		defer loops.Done()
		o.storageLoop(runCtx)
	}()
	go func() {
		defer loops.Done()
		o.statusLoop(runCtx)
	}()
	go func() {
		defer loops.Done()
		o.collectResults(tasks)
	}()

	o.logger.Info("blackbox running",
		logging.Int("active_cameras", active),
		logging.String(logging.FieldEventType, "blackbox_running"),
	)
	<-runCtx.Done()
	o.shutdown(tasks)
	tasks.Close()
	loops.Wait()
	return nil
}

func (o *Orchestrator) shutdown(tasks *taskSet) {
	o.stopping.Store(true)
	o.logger.Info("blackbox stopping",
		logging.Int("active_recordings", tasks.Len()),
		logging.String(logging.FieldEventType, "blackbox_stopping"),
	)
	if !tasks.Wait(o.timing.grace) {
		logging.WarnWithContext(o.logger, "recordings still running after grace period", "shutdown_grace_exceeded",
			logging.Int("active_recordings", tasks.Len()),
			logging.Duration("grace", o.timing.grace),
			logging.String(logging.FieldImpact, "in-flight clips are cancelled"),
		)
		tasks.Cancel()
		tasks.Wait(2 * time.Second)
	}
	for _, state := range o.cameras {
		if src := state.detach(false); src != nil {
			if err := src.Stop(); err != nil {
				o.logger.Debug("camera stop failed", logging.CameraID(state.id), logging.Error(err))
			}
		}
	}
	o.deps.Metrics.CamerasActive(0)
	o.refreshStorage(context.Background())
	o.logStatus("blackbox stopped", "blackbox_stopped", o.Status())
}

// Stop cancels a running Run and waits for it to return.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether Run is active.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// Kick asks an inactive camera to retry immediately. Unknown ids are
// ignored.
func (o *Orchestrator) Kick(cameraID int) bool {
	state, ok := o.byID[cameraID]
	if !ok {
		return false
	}
	state.retryNow()
	return true
}

// KickAll kicks every camera.
func (o *Orchestrator) KickAll() {
	for _, state := range o.cameras {
		state.retryNow()
	}
}

func (o *Orchestrator) activeCameras() int {
	n := 0
	for _, state := range o.cameras {
		if state.view().source != nil {
			n++
		}
	}
	return n
}

// startCamera builds and starts a source, publishing it on success. Failures
// schedule a retry.
func (o *Orchestrator) startCamera(ctx context.Context, state *cameraState, reason string) error {
	logger := o.logger.With(logging.CameraID(state.id))
	src, err := o.deps.Sources(state.id)
	if err == nil {
		err = src.Start(ctx)
		if err != nil {
			_ = src.Stop()
		}
	}
	if err != nil {
		var startErr *camera.StartError
		if !errors.As(err, &startErr) {
			err = &camera.StartError{CameraID: state.id, Err: err}
		}
		wait := state.fail(err, o.now(), o.timing.retryInitial, o.timing.retryMax)
		logging.WarnWithContext(logger, "camera start failed", "camera_start_failed",
			logging.String("reason", reason),
			logging.Error(err),
			logging.Duration("retry_in", wait),
			logging.String(logging.FieldErrorHint, "check the camera ribbon cable and that no other process holds it"),
			logging.String(logging.FieldImpact, "camera is not monitored until it restarts"),
		)
		return err
	}
	state.publish(src)
	if reason != "initial" && reason != "resume" {
		state.restarts.Add(1)
		o.deps.Metrics.CameraRestarted(state.id, reason)
	}
	logger.Info("camera live",
		logging.String("reason", reason),
		logging.String(logging.FieldEventType, "camera_live"),
	)
	return nil
}

func (o *Orchestrator) cameraLoop(ctx context.Context, state *cameraState, tasks *taskSet) {
	ticker := time.NewTicker(o.timing.loop)
	defer ticker.Stop()

	var (
		lastGen uint64
		lastSeq uint64
		seen    int
	)
	for {
		kicked := false
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-state.kick:
			kicked = true
		}

		view := state.view()
		if view.suspended {
			continue
		}
		if view.source == nil {
			if kicked || !o.now().Before(view.nextRetry) {
				_ = o.startCamera(ctx, state, "retry")
				o.deps.Metrics.CamerasActive(o.activeCameras())
			}
			continue
		}
		if view.source.Health().Unhealthy {
			if detached := state.detachIfCurrent(view.generation); detached != nil {
				logging.WarnWithContext(o.logger, "camera unhealthy, restarting", "camera_unhealthy",
					logging.CameraID(state.id),
					logging.Any("health", detached.Health()),
				)
				_ = detached.Stop()
				_ = o.startCamera(ctx, state, "unhealthy")
				o.deps.Metrics.CamerasActive(o.activeCameras())
			}
			continue
		}
		if view.generation != lastGen {
			lastGen = view.generation
			lastSeq = 0
		}
		frame, ok := view.source.Latest()
		if !ok || frame.Seq == lastSeq {
			continue
		}
		lastSeq = frame.Seq
		state.frames.Add(1)
		ts := frame.Captured
		if ts.IsZero() {
			ts = o.now()
		}
		state.buffer.Push(frame, ts)
		seen++
		if seen%o.timing.sampleEvery != 0 {
			continue
		}
		decision, err := state.detector.Detect(frame)
		if err != nil {
			o.logger.Debug("frame skipped", logging.CameraID(state.id), logging.Error(err))
			continue
		}
		if decision.Motion {
			o.handleMotion(ctx, state, tasks, decision)
		}
	}
}

// handleMotion starts a recording task unless the camera already has one.
func (o *Orchestrator) handleMotion(ctx context.Context, state *cameraState, tasks *taskSet, decision motion.Decision) {
	event := recorder.MotionEvent{
		ID:          uuid.NewString(),
		CameraID:    state.id,
		TriggeredAt: decision.At,
		PreRoll:     state.buffer.Snapshot(),
		Decision:    decision,
	}
	logger := o.logger.With(logging.CameraID(state.id), logging.EventID(event.ID))
	state.lastMotion.Store(decision.At.UnixNano())

	accepted := tasks.Go(state.id, event.ID, func(taskCtx context.Context) error {
		return o.record(taskCtx, state, event)
	})
	if !accepted {
		state.suppressed.Add(1)
		o.deps.Metrics.MotionEvent(state.id, string(events.EventSuppressed))
		o.persistEvent(ctx, event, events.EventSuppressed)
		logger.Info("motion suppressed, recording in progress",
			logging.Int("largest_area", decision.LargestArea),
			logging.String(logging.FieldEventType, "motion_suppressed"),
		)
		return
	}
	state.motionEvents.Add(1)
	o.deps.Metrics.MotionEvent(state.id, string(events.EventAccepted))
	logger.Info("motion detected",
		logging.Int("components", decision.ComponentCount),
		logging.Int("total_area", decision.TotalArea),
		logging.Int("largest_area", decision.LargestArea),
		logging.Int("threshold_area", decision.ThresholdArea),
		logging.Int("pre_roll_frames", event.PreRoll.Len()),
		logging.String(logging.FieldEventType, "motion_detected"),
	)
}

func (o *Orchestrator) persistEvent(ctx context.Context, event recorder.MotionEvent, status events.EventStatus) {
	if o.deps.Ledger == nil {
		return
	}
	_, err := o.deps.Ledger.RecordMotionEvent(ctx, events.MotionEvent{
		ID:             event.ID,
		CameraID:       event.CameraID,
		TriggeredAt:    event.TriggeredAt,
		Status:         status,
		ComponentCount: event.Decision.ComponentCount,
		TotalArea:      event.Decision.TotalArea,
		LargestArea:    event.Decision.LargestArea,
		ThresholdArea:  event.Decision.ThresholdArea,
		PreRollFrames:  event.PreRoll.Len(),
	})
	if err != nil {
		logging.WarnWithContext(o.logger, "motion event not persisted", "ledger_write_failed",
			logging.CameraID(event.CameraID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "event missing from history"),
		)
	}
}

// record is the body of one recording task.
func (o *Orchestrator) record(ctx context.Context, state *cameraState, event recorder.MotionEvent) error {
	ctx = services.WithEventID(services.WithCameraID(ctx, state.id), event.ID)
	o.persistEvent(ctx, event, events.EventAccepted)

	var jobID string
	if o.deps.Ledger != nil {
		job, err := o.deps.Ledger.CreateJob(ctx, event.ID, state.id, state.recorder.PlannedPath(event.TriggeredAt), o.now(), state.recorder.Duration())
		if err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, o.logger), "recording job not persisted", "ledger_write_failed",
				logging.Error(err),
			)
		} else {
			jobID = job.ID
		}
	}

	started := o.now()
	result, err := state.recorder.Record(ctx, event)
	finished := o.now()
	if err != nil {
		o.failed.Add(1)
		o.deps.Metrics.Recording(state.id, string(events.JobFailed), finished.Sub(started))
		if jobID != "" {
			if ferr := o.deps.Ledger.FailJob(context.WithoutCancel(ctx), jobID, err, finished); ferr != nil {
				o.logger.Debug("fail job not persisted", logging.Error(ferr))
			}
		}
		return err
	}
	o.succeeded.Add(1)
	o.deps.Metrics.Recording(state.id, string(events.JobSucceeded), result.Elapsed)
	if jobID != "" {
		if cerr := o.deps.Ledger.CompleteJob(context.WithoutCancel(ctx), jobID, result.Path, result.Thumbnail, result.Size, result.Finished); cerr != nil {
			o.logger.Debug("complete job not persisted", logging.Error(cerr))
		}
	}
	return nil
}

func (o *Orchestrator) collectResults(tasks *taskSet) {
	for {
		select {
		case <-tasks.closed:
			return
		case res := <-tasks.Results():
			if res.Err != nil {
				o.logger.Debug("recording task failed",
					logging.CameraID(res.CameraID),
					logging.EventID(res.EventID),
					logging.String("error_kind", services.Kind(res.Err)),
					logging.Duration("elapsed", res.Elapsed),
				)
				continue
			}
			o.logger.Debug("recording task finished",
				logging.CameraID(res.CameraID),
				logging.EventID(res.EventID),
				logging.Duration("elapsed", res.Elapsed),
			)
		}
	}
}

func (o *Orchestrator) storageLoop(ctx context.Context) {
	if o.deps.Storage == nil {
		return
	}
	wait := time.Duration(0)
	for {
		if !sleepCtx(ctx, wait) {
			return
		}
		if _, err := o.AuditNow(ctx); err != nil && ctx.Err() == nil {
			wait = o.timing.auditBackoff
			continue
		}
		wait = o.timing.audit
	}
}

// AuditNow runs a storage audit immediately. Concurrent calls are
// serialized.
func (o *Orchestrator) AuditNow(ctx context.Context) (storage.AuditResult, error) {
	if o.deps.Storage == nil {
		return storage.AuditResult{}, services.Wrap(services.ErrConfiguration, "blackbox", "audit", "storage manager not configured", nil)
	}
	o.auditMu.Lock()
	defer o.auditMu.Unlock()

	result, err := o.deps.Storage.AuditAndClean(ctx)
	summary := &AuditSummary{At: o.now()}
	if err != nil {
		summary.Err = err.Error()
		logging.WarnWithContext(o.logger, "storage audit failed", "storage_audit_failed",
			logging.Error(err),
			logging.Duration("retry_in", o.timing.auditBackoff),
			logging.String(logging.FieldImpact, "old clips are not removed until the next audit"),
		)
	} else {
		summary.Mode = result.Mode
		summary.Deleted = len(result.Deleted)
		summary.FreedBytes = result.FreedBytes
		summary.Errors = len(result.Errors)
		o.deps.Metrics.Audit(result)
		o.deps.Metrics.Storage(result.After)
	}
	o.stateMu.Lock()
	o.lastAudit = summary
	if err == nil {
		after := result.After
		o.storage = &after
	}
	o.stateMu.Unlock()
	return result, err
}

func (o *Orchestrator) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(o.timing.status)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		o.refreshStorage(ctx)
		st := o.Status()
		o.deps.Metrics.CamerasActive(st.ActiveCameras)
		o.logStatus("blackbox status", "blackbox_status", st)
	}
}

// logStatus writes one record per camera followed by the aggregate record,
// so each stays within the console field limit.
func (o *Orchestrator) logStatus(msg, eventType string, st Status) {
	for _, cam := range st.Cameras {
		o.logger.Info("camera status",
			logging.CameraID(cam.ID),
			logging.String("state", cam.State),
			logging.Uint64("frames", cam.Frames),
			logging.Uint64("motion_events", cam.MotionEvents),
			logging.Uint64("suppressed", cam.Suppressed),
			logging.Int("buffer_len", cam.Buffer.Len),
			logging.Int("buffer_capacity", cam.Buffer.Capacity),
			logging.Bool("buffer_full", cam.Buffer.Full),
			logging.String(logging.FieldEventType, "camera_status"),
		)
	}
	attrs := []logging.Attr{
		logging.Int("active_cameras", st.ActiveCameras),
		logging.Int("active_recordings", st.Recordings.Active),
		logging.Uint64("recordings_succeeded", st.Recordings.Succeeded),
		logging.Uint64("recordings_failed", st.Recordings.Failed),
		logging.String(logging.FieldEventType, eventType),
	}
	if st.Storage != nil {
		attrs = append(attrs,
			logging.Int("clips", st.Storage.Files),
			logging.Int64("used_bytes", st.Storage.UsedBytes),
			logging.Float64("usage_percent", st.Storage.UsagePercent),
		)
	}
	o.logger.Info(msg, logging.Args(attrs...)...)
}

func (o *Orchestrator) refreshStorage(ctx context.Context) {
	if o.deps.Storage == nil {
		return
	}
	stats, err := o.deps.Storage.Stats(ctx)
	if err != nil {
		o.logger.Debug("storage stats failed", logging.Error(err))
		return
	}
	o.deps.Metrics.Storage(stats)
	o.stateMu.Lock()
	o.storage = &stats
	o.stateMu.Unlock()
}

// Status returns a snapshot of every camera, the recording counters and the
// last storage audit.
func (o *Orchestrator) Status() Status {
	now := o.now()
	st := Status{
		Running: o.running.Load(),
		Recordings: RecordingStatus{
			Succeeded: o.succeeded.Load(),
			Failed:    o.failed.Load(),
		},
	}
	if ns := o.startedAt.Load(); ns > 0 {
		st.StartedAt = time.Unix(0, ns)
		if st.Running {
			st.Uptime = now.Sub(st.StartedAt)
		}
	}
	o.mu.Lock()
	tasks := o.tasks
	o.mu.Unlock()
	if tasks != nil {
		st.Recordings.Active = tasks.Len()
	}
	for _, state := range o.cameras {
		cs := state.status()
		if cs.Active {
			st.ActiveCameras++
		}
		st.Cameras = append(st.Cameras, cs)
	}
	o.stateMu.RLock()
	if o.storage != nil {
		stats := *o.storage
		st.Storage = &stats
	}
	if o.lastAudit != nil {
		audit := *o.lastAudit
		st.LastAudit = &audit
	}
	o.stateMu.RUnlock()
	return st
}

// controller hands a camera to its recorder and back.
type controller struct {
	o *Orchestrator
}

func (c controller) Suspend(cameraID int) error {
	state, ok := c.o.byID[cameraID]
	if !ok {
		return services.Wrap(services.ErrNotFound, "blackbox", "suspend", fmt.Sprintf("camera %d", cameraID), nil)
	}
	src := state.detach(true)
	c.o.deps.Metrics.CamerasActive(c.o.activeCameras())
	if src == nil {
		return nil
	}
	return src.Stop()
}

func (c controller) Resume(ctx context.Context, cameraID int) error {
	state, ok := c.o.byID[cameraID]
	if !ok {
		return services.Wrap(services.ErrNotFound, "blackbox", "resume", fmt.Sprintf("camera %d", cameraID), nil)
	}
	if c.o.stopping.Load() {
		state.release()
		return nil
	}
	err := c.o.startCamera(ctx, state, "resume")
	state.release()
	c.o.deps.Metrics.CamerasActive(c.o.activeCameras())
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
