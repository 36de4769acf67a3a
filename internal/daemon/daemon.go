package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"blackbox/internal/blackbox"
	"blackbox/internal/config"
	"blackbox/internal/events"
	"blackbox/internal/logging"
	"blackbox/internal/metrics"
	"blackbox/internal/services"
	"blackbox/internal/storage"
)

// Daemon owns the orchestrator lifecycle, the single-instance lock and the
// optional system integrations.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	orch    *blackbox.Orchestrator
	ledger  *events.Store
	metrics *metrics.Metrics
	logPath string

	lockPath string
	lock     *flock.Flock
	netlink  *netlinkMonitor
	api      *apiServer

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool            `json:"running"`
	PID          int             `json:"pid"`
	Blackbox     blackbox.Status `json:"blackbox"`
	Ledger       *events.Stats   `json:"ledger,omitempty"`
	EventsDir    string          `json:"events_dir"`
	LedgerPath   string          `json:"ledger_path"`
	LockFilePath string          `json:"lock_path"`
	LogPath      string          `json:"log_path"`
	Netlink      bool            `json:"netlink"`
}

// New constructs a daemon with initialized dependencies. ledger and m may be
// nil.
func New(cfg *config.Config, orch *blackbox.Orchestrator, ledger *events.Store, m *metrics.Metrics, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || orch == nil {
		return nil, errors.New("daemon requires config and orchestrator")
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		orch:     orch,
		ledger:   ledger,
		metrics:  m,
		logPath:  filepath.Join(cfg.Paths.LogDir, "blackbox.log"),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.netlink = newNetlinkMonitor(cfg, logger, orch.Kick, orch.KickAll)
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and launches the orchestrator in the
// background. Run errors, such as no camera starting, surface through Done
// and Err.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another blackbox daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.mu.Lock()
	d.cancel = cancel
	d.done = done
	d.runErr = nil
	d.mu.Unlock()

	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	go func() {
		defer close(done)
		err := d.orch.Run(runCtx)
		d.mu.Lock()
		d.runErr = err
		d.mu.Unlock()
		if err != nil {
			logging.ErrorWithContext(d.logger, "blackbox orchestrator exited", "orchestrator_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check camera wiring and the log above for the first start failure"),
			)
		}
	}()

	if err := d.netlink.Start(runCtx); err != nil {
		d.logger.Warn("netlink monitor unavailable", logging.Error(err))
	}

	if bind := strings.TrimSpace(d.cfg.Metrics.Bind); bind != "" {
		go func() {
			if err := d.metrics.Serve(runCtx, bind, d.logger); err != nil {
				logging.WarnWithContext(d.logger, "metrics listener failed", "metrics_listen_failed",
					logging.String("bind", bind),
					logging.Error(err),
					logging.String(logging.FieldImpact, "prometheus scrapes fail; recording is unaffected"),
				)
			}
		}()
	}

	d.running.Store(true)
	d.logger.Info("blackbox daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("cameras", len(d.cfg.Cameras.IDs)),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops the orchestrator and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	d.netlink.Stop()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("blackbox daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
	)
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.ledger != nil {
		return d.ledger.Close()
	}
	return nil
}

// Done is closed when the orchestrator of the current run returns. It is nil
// before the first Start.
func (d *Daemon) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Err returns the error the orchestrator exited with, if any.
func (d *Daemon) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runErr
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	st := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Blackbox:     d.orch.Status(),
		EventsDir:    d.cfg.Paths.EventsDir,
		LedgerPath:   d.cfg.LedgerPath(),
		LockFilePath: d.lockPath,
		LogPath:      d.logPath,
		Netlink:      d.netlink.Running(),
	}
	if d.ledger != nil {
		stats, err := d.ledger.JobStats(ctx)
		if err != nil {
			d.logger.Debug("ledger stats unavailable", logging.Error(err))
		} else {
			st.Ledger = &stats
		}
	}
	return st
}

// Audit runs a storage audit now.
func (d *Daemon) Audit(ctx context.Context) (storage.AuditResult, error) {
	return d.orch.AuditNow(ctx)
}

// Events lists recent motion events. cameraID < 0 selects every camera.
func (d *Daemon) Events(ctx context.Context, cameraID, limit int) ([]events.MotionEvent, error) {
	if d.ledger == nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "events", "events ledger unavailable", nil)
	}
	return d.ledger.ListMotionEvents(ctx, cameraID, limit)
}

// Jobs lists recent recording jobs, optionally filtered by state.
func (d *Daemon) Jobs(ctx context.Context, limit int, states ...events.JobState) ([]events.Job, error) {
	if d.ledger == nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "jobs", "events ledger unavailable", nil)
	}
	return d.ledger.ListJobs(ctx, limit, states...)
}

// MarkImportant flags a clip so retention keeps it for the longer period.
func (d *Daemon) MarkImportant(ctx context.Context, path string, important bool) error {
	if d.ledger == nil {
		return services.Wrap(services.ErrConfiguration, "daemon", "mark important", "events ledger unavailable", nil)
	}
	abs, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil {
		return fmt.Errorf("resolve clip path: %w", err)
	}
	return d.ledger.MarkImportant(ctx, abs, important)
}

// Kick asks a camera to retry its start immediately.
func (d *Daemon) Kick(cameraID int) bool {
	return d.orch.Kick(cameraID)
}
