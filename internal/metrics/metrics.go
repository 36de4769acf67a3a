// Package metrics exposes blackbox counters and gauges to Prometheus.
//
// A Metrics value owns its own registry so tests and multiple daemons in
// one process never collide on the default registerer. All methods are
// safe on a nil receiver.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"blackbox/internal/logging"
	"blackbox/internal/storage"
)

// Metrics holds every blackbox collector.
type Metrics struct {
	registry *prometheus.Registry

	frames            *prometheus.CounterVec
	dropped           *prometheus.CounterVec
	decodeErrors      *prometheus.CounterVec
	cameraRestarts    *prometheus.CounterVec
	motionEvents      *prometheus.CounterVec
	recordings        *prometheus.CounterVec
	recordingDuration prometheus.Histogram
	camerasActive     prometheus.Gauge
	storageUsed       prometheus.Gauge
	storageFree       prometheus.Gauge
	storageFiles      prometheus.Gauge
	storageDeleted    *prometheus.CounterVec
	storageAuditErrs  prometheus.Counter
	auditDuration     prometheus.Histogram
}

// New builds a Metrics value with a fresh registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		frames: f.NewCounterVec(prometheus.CounterOpts{
			Name: "blackbox_frames_total",
			Help: "Frames decoded from the live camera stream.",
		}, []string{"camera"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "blackbox_frames_dropped_total",
			Help: "Decoded frames overwritten before the pipeline read them.",
		}, []string{"camera"}),
		decodeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "blackbox_decode_errors_total",
			Help: "JPEG frames that failed to decode.",
		}, []string{"camera"}),
		cameraRestarts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "blackbox_camera_restarts_total",
			Help: "Live source restarts by reason.",
		}, []string{"camera", "reason"}),
		motionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "blackbox_motion_events_total",
			Help: "Motion triggers by outcome (accepted, suppressed).",
		}, []string{"camera", "outcome"}),
		recordings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "blackbox_recordings_total",
			Help: "Recording jobs by result.",
		}, []string{"camera", "result"}),
		recordingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "blackbox_recording_duration_seconds",
			Help:    "Wall time of recording jobs including suspend and resume.",
			Buckets: []float64{10, 30, 60, 120, 180, 200, 240, 300},
		}),
		camerasActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "blackbox_cameras_active",
			Help: "Cameras with a running live source.",
		}),
		storageUsed: f.NewGauge(prometheus.GaugeOpts{
			Name: "blackbox_storage_used_bytes",
			Help: "Bytes used by event clips.",
		}),
		storageFree: f.NewGauge(prometheus.GaugeOpts{
			Name: "blackbox_storage_free_bytes",
			Help: "Free bytes on the events filesystem.",
		}),
		storageFiles: f.NewGauge(prometheus.GaugeOpts{
			Name: "blackbox_storage_files",
			Help: "Event clips on disk.",
		}),
		storageDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "blackbox_storage_deleted_files_total",
			Help: "Clips removed by storage audits by mode.",
		}, []string{"mode"}),
		storageAuditErrs: f.NewCounter(prometheus.CounterOpts{
			Name: "blackbox_storage_audit_errors_total",
			Help: "Filesystem errors hit during storage audits.",
		}),
		auditDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "blackbox_storage_audit_duration_seconds",
			Help:    "Duration of storage audits.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
}

func label(cameraID int) string { return strconv.Itoa(cameraID) }

// FrameDecoded implements camera.Observer.
func (m *Metrics) FrameDecoded(cameraID int) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(label(cameraID)).Inc()
}

// FrameDropped implements camera.Observer.
func (m *Metrics) FrameDropped(cameraID int) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(label(cameraID)).Inc()
}

// DecodeFailed implements camera.Observer.
func (m *Metrics) DecodeFailed(cameraID int) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(label(cameraID)).Inc()
}

// CameraRestarted counts a live source restart.
func (m *Metrics) CameraRestarted(cameraID int, reason string) {
	if m == nil {
		return
	}
	m.cameraRestarts.WithLabelValues(label(cameraID), reason).Inc()
}

// MotionEvent counts a trigger with its outcome.
func (m *Metrics) MotionEvent(cameraID int, outcome string) {
	if m == nil {
		return
	}
	m.motionEvents.WithLabelValues(label(cameraID), outcome).Inc()
}

// Recording counts a finished job.
func (m *Metrics) Recording(cameraID int, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.recordings.WithLabelValues(label(cameraID), result).Inc()
	m.recordingDuration.Observe(elapsed.Seconds())
}

// CamerasActive sets the active camera gauge.
func (m *Metrics) CamerasActive(n int) {
	if m == nil {
		return
	}
	m.camerasActive.Set(float64(n))
}

// Storage publishes a stats snapshot.
func (m *Metrics) Storage(stats storage.Stats) {
	if m == nil {
		return
	}
	m.storageUsed.Set(float64(stats.UsedBytes))
	m.storageFree.Set(float64(stats.FreeBytes))
	m.storageFiles.Set(float64(stats.Files))
}

// Audit publishes the outcome of a storage audit.
func (m *Metrics) Audit(result storage.AuditResult) {
	if m == nil {
		return
	}
	if n := len(result.Deleted); n > 0 {
		m.storageDeleted.WithLabelValues(result.Mode).Add(float64(n))
	}
	m.storageAuditErrs.Add(float64(len(result.Errors)))
	m.auditDuration.Observe(result.Duration.Seconds())
	m.Storage(result.After)
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve listens on bind and serves /metrics until ctx is cancelled. An empty
// bind disables the listener and returns immediately.
func (m *Metrics) Serve(ctx context.Context, bind string, logger *slog.Logger) error {
	if m == nil || bind == "" {
		return nil
	}
	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	return m.serve(ctx, ln, logging.NewComponentLogger(logger, "metrics"))
}

func (m *Metrics) serve(ctx context.Context, ln net.Listener, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info("metrics listener started",
		logging.String("addr", ln.Addr().String()),
		logging.String(logging.FieldEventType, "metrics_listening"),
	)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
