package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"blackbox/internal/logging"
)

const readChunkSize = 4096

// StreamConfig describes how a StreamSource spawns and supervises its camera.
type StreamConfig struct {
	CameraID           int
	Binary             string
	Args               []string
	StartTimeout       time.Duration
	UnhealthyThreshold int
	MaxFrameBytes      int
}

// StreamOption customizes a StreamSource.
type StreamOption func(*StreamSource)

// WithLauncher replaces the process launcher (tests use in-memory pipes).
func WithLauncher(l Launcher) StreamOption {
	return func(s *StreamSource) {
		if l != nil {
			s.launcher = l
		}
	}
}

// WithObserver reports frame counters to o.
func WithObserver(o Observer) StreamOption {
	return func(s *StreamSource) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithClock overrides the capture timestamp source.
func WithClock(now func() time.Time) StreamOption {
	return func(s *StreamSource) {
		if now != nil {
			s.now = now
		}
	}
}

// StreamSource reads an MJPEG stream from an external process.
type StreamSource struct {
	cfg      StreamConfig
	launcher Launcher
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
	decode   func([]byte) (image.Image, error)
	sampler  *logging.RepeatSampler

	mu         sync.Mutex
	proc       Handle
	readerDone chan struct{}
	stopping   atomic.Bool

	latest      latestCell
	running     atomic.Bool
	unhealthy   atomic.Bool
	seq         atomic.Uint64
	decoded     atomic.Uint64
	decodeErrs  atomic.Uint64
	dropped     atomic.Uint64
	consecutive atomic.Int64
	lastFrame   atomic.Int64
}

// NewStreamSource constructs an unstarted source.
func NewStreamSource(cfg StreamConfig, logger *slog.Logger, opts ...StreamOption) *StreamSource {
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 10 * time.Second
	}
	if cfg.UnhealthyThreshold <= 0 {
		cfg.UnhealthyThreshold = 30
	}
	s := &StreamSource{
		cfg:      cfg,
		launcher: ExecLauncher{},
		observer: nopObserver{},
		logger:   logging.NewComponentLogger(logger, "camera").With(logging.CameraID(cfg.CameraID)),
		now:      time.Now,
		decode:   func(b []byte) (image.Image, error) { return jpeg.Decode(bytes.NewReader(b)) },
		sampler:  logging.NewRepeatSampler(10 * time.Second),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CameraID returns the camera this source reads.
func (s *StreamSource) CameraID() int { return s.cfg.CameraID }

// Start launches the camera process and waits for the first decoded frame.
func (s *StreamSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc != nil {
		return nil
	}

	s.resetCounters()
	proc, err := s.launcher.Launch(ctx, s.cfg.Binary, s.cfg.Args)
	if err != nil {
		return &StartError{CameraID: s.cfg.CameraID, Err: err}
	}

	first := make(chan struct{})
	done := make(chan struct{})
	s.stopping.Store(false)
	s.running.Store(true)
	go s.readLoop(proc, first, done)

	timer := time.NewTimer(s.cfg.StartTimeout)
	defer timer.Stop()

	var startErr error
	select {
	case <-first:
		s.proc = proc
		s.readerDone = done
		s.logger.Info("camera stream started",
			logging.String("binary", s.cfg.Binary),
			logging.String(logging.FieldEventType, "camera_started"),
		)
		return nil
	case <-done:
		startErr = errors.New("camera process exited before the first frame")
	case <-timer.C:
		startErr = fmt.Errorf("no frame within %s", s.cfg.StartTimeout)
	case <-ctx.Done():
		startErr = ctx.Err()
	}

	s.stopping.Store(true)
	_ = proc.Stop()
	<-done
	s.running.Store(false)
	if diag := proc.Diagnostics(); diag != "" {
		startErr = fmt.Errorf("%w (stderr: %s)", startErr, diag)
	}
	return &StartError{CameraID: s.cfg.CameraID, Err: startErr}
}

func (s *StreamSource) readLoop(proc Handle, first, done chan struct{}) {
	defer close(done)
	parser := NewParser(s.cfg.MaxFrameBytes)
	chunk := make([]byte, readChunkSize)
	var firstOnce sync.Once
	stdout := proc.Stdout()

	for {
		n, err := stdout.Read(chunk)
		if n > 0 {
			parser.Feed(chunk[:n], func(data []byte) {
				if s.handleJPEG(data) {
					firstOnce.Do(func() { close(first) })
				}
			})
		}
		if err != nil {
			s.running.Store(false)
			if !s.stopping.Load() {
				s.unhealthy.Store(true)
				attrs := []logging.Attr{
					logging.String(logging.FieldErrorHint, "check the camera cable and that no other process holds the device"),
					logging.String(logging.FieldImpact, "camera is not producing frames until restarted"),
				}
				if !errors.Is(err, io.EOF) {
					attrs = append(attrs, logging.Error(err))
				}
				if diag := proc.Diagnostics(); diag != "" {
					attrs = append(attrs, logging.String("stderr", diag))
				}
				logging.WarnWithContext(s.logger, "camera stream ended", "camera_stream_ended", attrs...)
			}
			return
		}
	}
}

func (s *StreamSource) handleJPEG(data []byte) bool {
	img, err := s.decode(data)
	if err != nil {
		s.decodeErrs.Add(1)
		s.observer.DecodeFailed(s.cfg.CameraID)
		consecutive := s.consecutive.Add(1)
		if consecutive >= int64(s.cfg.UnhealthyThreshold) && !s.unhealthy.Swap(true) {
			logging.WarnWithContext(s.logger, "camera marked unhealthy after repeated decode failures", "camera_unhealthy",
				logging.Int64("consecutive_errors", consecutive),
				logging.String(logging.FieldErrorHint, "inspect the camera stream; the source will be restarted"),
				logging.String(logging.FieldImpact, "motion detection paused for this camera"),
			)
		}
		if ok, dropped := s.sampler.Allow(); ok {
			logging.WarnWithContext(s.logger, "frame decode failed; frame skipped", "frame_decode_failed",
				logging.Error(err),
				logging.Int("suppressed", dropped),
				logging.Int("bytes", len(data)),
				logging.String(logging.FieldImpact, "one frame lost"),
			)
		}
		return false
	}

	captured := s.now()
	frame := &Frame{
		CameraID: s.cfg.CameraID,
		Seq:      s.seq.Add(1),
		Captured: captured,
		Image:    img,
	}
	if s.latest.store(frame) {
		s.dropped.Add(1)
		s.observer.FrameDropped(s.cfg.CameraID)
	}
	s.decoded.Add(1)
	s.consecutive.Store(0)
	s.lastFrame.Store(captured.UnixNano())
	s.observer.FrameDecoded(s.cfg.CameraID)
	return true
}

// Latest returns the newest frame without blocking.
func (s *StreamSource) Latest() (Frame, bool) {
	return s.latest.load()
}

// Stop terminates the camera process and waits for the reader to exit.
func (s *StreamSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil {
		return nil
	}
	s.stopping.Store(true)
	err := s.proc.Stop()
	<-s.readerDone
	s.proc = nil
	s.readerDone = nil
	s.running.Store(false)
	s.logger.Info("camera stream stopped", logging.String(logging.FieldEventType, "camera_stopped"))
	return err
}

// Err returns ErrUnhealthy once the decode loop has given up.
func (s *StreamSource) Err() error {
	if s.unhealthy.Load() {
		return ErrUnhealthy
	}
	return nil
}

// Health returns a snapshot of the decode counters.
func (s *StreamSource) Health() Health {
	h := Health{
		Running:           s.running.Load(),
		FramesDecoded:     s.decoded.Load(),
		DecodeErrors:      s.decodeErrs.Load(),
		ConsecutiveErrors: int(s.consecutive.Load()),
		Dropped:           s.dropped.Load(),
		Unhealthy:         s.unhealthy.Load(),
	}
	if ns := s.lastFrame.Load(); ns > 0 {
		h.LastFrame = time.Unix(0, ns)
	}
	return h
}

func (s *StreamSource) resetCounters() {
	s.latest.reset()
	s.unhealthy.Store(false)
	s.consecutive.Store(0)
	s.decoded.Store(0)
	s.decodeErrs.Store(0)
	s.dropped.Store(0)
	s.lastFrame.Store(0)
	s.sampler.Reset()
}
