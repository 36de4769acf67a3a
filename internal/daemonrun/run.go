package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"blackbox/internal/blackbox"
	"blackbox/internal/camera"
	"blackbox/internal/config"
	"blackbox/internal/daemon"
	"blackbox/internal/deps"
	"blackbox/internal/events"
	"blackbox/internal/ipc"
	"blackbox/internal/logging"
	"blackbox/internal/metrics"
	"blackbox/internal/preflight"
	"blackbox/internal/services/rpicam"
	"blackbox/internal/storage"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Diagnostic  bool
}

// Run starts the blackbox daemon and blocks until a signal arrives or the
// orchestrator exits on its own.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("blackbox-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		Outputs:     []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if opts.Diagnostic {
		logger = withDiagnostics(logger, cfg, runID)
	}

	logDependencySnapshot(logger, cfg)
	for _, result := range preflight.RunAll(signalCtx, cfg) {
		if result.Passed {
			logger.Debug("preflight passed", logging.String("check", result.Name), logging.String("detail", result.Detail))
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "affected cameras or clips may not work"),
		)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update blackbox.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "blackbox-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: filepath.Join(cfg.Paths.LogDir, "debug"), Pattern: "blackbox-*.log"},
	)
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ledger, err := events.Open(cfg)
	if err != nil {
		logger.Error("open events ledger", logging.Error(err))
		return err
	}
	if n, err := ledger.ReconcileInFlight(signalCtx, time.Now()); err != nil {
		logger.Warn("reconcile in-flight jobs failed", logging.Error(err))
	} else if n > 0 {
		logging.WarnWithContext(logger, "marked interrupted recordings failed", "jobs_reconciled",
			logging.Int64("jobs", n),
			logging.String(logging.FieldImpact, "clips from the previous run were discarded"),
		)
	}

	orch, m, err := buildOrchestrator(cfg, ledger, logger)
	if err != nil {
		_ = ledger.Close()
		return err
	}

	d, err := daemon.New(cfg, orch, ledger, m, logger)
	if err != nil {
		_ = ledger.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running daemon and the state directory permissions"),
		)
		return err
	}

	select {
	case <-signalCtx.Done():
		logger.Info("blackbox daemon shutting down",
			logging.String(logging.FieldEventType, "daemon_shutdown"),
		)
		d.Stop()
		return nil
	case <-d.Done():
		return d.Err()
	}
}

// buildOrchestrator wires camera sources, the capture client, storage and the
// ledger into an orchestrator.
func buildOrchestrator(cfg *config.Config, ledger *events.Store, logger *slog.Logger) (*blackbox.Orchestrator, *metrics.Metrics, error) {
	m := metrics.New()
	capturer, err := rpicam.New(cfg.Recording.Binary, cfg.Recording.TimeoutSlackSeconds)
	if err != nil {
		return nil, nil, fmt.Errorf("create capture client: %w", err)
	}
	manager := storage.NewManager(
		storage.PolicyFromConfig(cfg),
		cfg.Paths.EventsDir,
		cfg.Storage.Extensions,
		logger,
		storage.WithImportant(ledger),
	)
	orch, err := blackbox.New(cfg, blackbox.Deps{
		Sources:  camera.ConfigFactory(cfg, logger, camera.WithObserver(m)),
		Capturer: capturer,
		Storage:  manager,
		Ledger:   ledger,
		Metrics:  m,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create orchestrator: %w", err)
	}
	return orch, m, nil
}

// withDiagnostics tees every record into a debug-level JSON log stamped with
// a session id.
func withDiagnostics(logger *slog.Logger, cfg *config.Config, runID string) *slog.Logger {
	sessionID := uuid.NewString()
	debugDir := filepath.Join(cfg.Paths.LogDir, "debug")
	if err := os.MkdirAll(debugDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to create debug log directory: %v\n", err)
		return logger
	}
	debugLogPath := filepath.Join(debugDir, fmt.Sprintf("blackbox-%s.log", runID))
	debugLogger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "json",
		Outputs:     []string{debugLogPath},
		Development: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", err)
		return logger
	}
	logger = logging.TeeLogger(logger, logging.WithSession(debugLogger.Handler(), sessionID))
	if err := ensureCurrentLogPointer(debugDir, debugLogPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update debug/blackbox.log link: %v\n", err)
	}
	logger.Info("diagnostic mode enabled",
		logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
		logging.String(logging.FieldSessionID, sessionID),
		logging.String("debug_log_path", debugLogPath),
	)
	return logger
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "blackbox.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("backend", cfg.Cameras.Backend),
		logging.Any("cameras", cfg.Cameras.IDs),
	}
	for _, status := range deps.Check(cfg) {
		attrs = append(attrs,
			logging.Bool(status.Command+"_available", status.Available),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
