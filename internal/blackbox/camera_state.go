package blackbox

import (
	"sync"
	"sync/atomic"
	"time"

	"blackbox/internal/camera"
	"blackbox/internal/framebuffer"
	"blackbox/internal/motion"
	"blackbox/internal/recorder"
)

// cameraState is everything the orchestrator owns for one camera. The source
// pointer is only replaced under mu, with a fully started source or nil.
type cameraState struct {
	id       int
	buffer   *framebuffer.Ring
	detector *motion.Detector
	recorder *recorder.Recorder
	kick     chan struct{}

	mu         sync.RWMutex
	source     camera.Source
	generation uint64
	suspended  bool
	lastErr    string
	backoff    time.Duration
	nextRetry  time.Time
	lastHealth camera.Health

	frames       atomic.Uint64
	motionEvents atomic.Uint64
	suppressed   atomic.Uint64
	restarts     atomic.Uint64
	lastMotion   atomic.Int64
}

func newCameraState(id int, buffer *framebuffer.Ring, detector *motion.Detector) *cameraState {
	return &cameraState{
		id:       id,
		buffer:   buffer,
		detector: detector,
		kick:     make(chan struct{}, 1),
	}
}

type sourceView struct {
	source     camera.Source
	generation uint64
	suspended  bool
	nextRetry  time.Time
}

func (c *cameraState) view() sourceView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sourceView{source: c.source, generation: c.generation, suspended: c.suspended, nextRetry: c.nextRetry}
}

// publish installs a started source and clears the failure state.
func (c *cameraState) publish(src camera.Source) {
	c.mu.Lock()
	c.source = src
	c.generation++
	c.suspended = false
	c.lastErr = ""
	c.backoff = 0
	c.nextRetry = time.Time{}
	c.mu.Unlock()
}

// detach removes the current source and returns it for stopping. suspend
// marks the camera as handed to the recorder.
func (c *cameraState) detach(suspend bool) camera.Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	src := c.source
	if src != nil {
		c.lastHealth = src.Health()
	}
	c.source = nil
	c.generation++
	c.suspended = suspend
	return src
}

// detachIfCurrent detaches the source only if it is still the one published
// at generation.
func (c *cameraState) detachIfCurrent(generation uint64) camera.Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation || c.source == nil {
		return nil
	}
	src := c.source
	c.lastHealth = src.Health()
	c.source = nil
	c.generation++
	return src
}

// release ends a suspension.
func (c *cameraState) release() {
	c.mu.Lock()
	c.suspended = false
	c.mu.Unlock()
}

// fail records a start failure and schedules the next retry with doubling
// backoff bounded by [initial, maxBackoff].
func (c *cameraState) fail(err error, now time.Time, initial, maxBackoff time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backoff <= 0 {
		c.backoff = initial
	} else {
		c.backoff = min(c.backoff*2, maxBackoff)
	}
	c.suspended = false
	c.lastErr = err.Error()
	c.nextRetry = now.Add(c.backoff)
	return c.backoff
}

func (c *cameraState) retryNow() {
	c.mu.Lock()
	c.nextRetry = time.Time{}
	c.mu.Unlock()
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func (c *cameraState) status() CameraStatus {
	c.mu.RLock()
	src := c.source
	st := CameraStatus{
		ID:        c.id,
		Active:    src != nil,
		LastError: c.lastErr,
		NextRetry: c.nextRetry,
		Health:    c.lastHealth,
	}
	suspended := c.suspended
	c.mu.RUnlock()

	if src != nil {
		st.Health = src.Health()
	}
	switch {
	case c.recorder != nil && c.recorder.Busy():
		st.State = c.recorder.State().String()
	case suspended:
		st.State = "suspended"
	case src != nil:
		st.State = "live"
	default:
		st.State = "inactive"
	}
	st.Frames = c.frames.Load()
	st.MotionEvents = c.motionEvents.Load()
	st.Suppressed = c.suppressed.Load()
	st.Restarts = c.restarts.Load()
	st.CooldownSkips = c.detector.Stats().Suppressed
	if ns := c.lastMotion.Load(); ns > 0 {
		st.LastMotion = time.Unix(0, ns)
	}
	st.Buffer = c.buffer.Status()
	return st
}
