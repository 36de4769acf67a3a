package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"blackbox/internal/config"
	"blackbox/internal/deps"
	"blackbox/internal/events"
	"blackbox/internal/ipc"
	"blackbox/internal/preflight"
	"blackbox/internal/storage"
)

// StatusLine is one labelled row of the status report.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// DependencyStatus is a dependency check annotated with a severity.
type DependencyStatus struct {
	deps.Status
	Severity string `json:"severity"`
}

// DependencySummary aggregates dependency readiness.
type DependencySummary struct {
	Total           int    `json:"total"`
	Available       int    `json:"available"`
	MissingRequired int    `json:"missing_required"`
	MissingOptional int    `json:"missing_optional"`
	Severity        string `json:"severity"`
	Detail          string `json:"detail"`
}

// Snapshot combines live daemon status with offline fallbacks.
type Snapshot struct {
	Daemon            ipc.StatusResponse `json:"daemon"`
	Ledger            *events.Stats      `json:"ledger,omitempty"`
	Storage           *storage.Stats     `json:"storage,omitempty"`
	Dependencies      []DependencyStatus `json:"dependencies"`
	DependencySummary DependencySummary  `json:"dependency_summary"`
	SystemChecks      []StatusLine       `json:"system_checks"`
	Cameras           []StatusLine       `json:"cameras"`
	Paths             []StatusLine       `json:"paths"`
}

// BuildStatusSnapshot collects daemon status and applies offline fallbacks for
// ledger stats, storage usage and camera detection.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snap := &Snapshot{}

	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			snap.Daemon = *resp
		}
	}

	running := snap.Daemon.Running
	if running {
		snap.Ledger = snap.Daemon.Ledger
		snap.Storage = snap.Daemon.Blackbox.Storage
		snap.Cameras = BuildCameraLines(snap.Daemon.Blackbox.Cameras)
	} else {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if ledger, openErr := events.Open(cfg); openErr == nil {
			if stats, statsErr := ledger.JobStats(queryCtx); statsErr == nil {
				snap.Ledger = &stats
			}
			_ = ledger.Close()
		}
		manager := storage.NewManager(storage.PolicyFromConfig(cfg), cfg.Paths.EventsDir, cfg.Storage.Extensions, nil)
		if stats, statsErr := manager.Stats(queryCtx); statsErr == nil {
			snap.Storage = &stats
		}
		snap.Cameras = statusLines(preflight.CheckCameras(ctx, cfg), "error")
	}

	snap.Dependencies = ResolveDependencies(cfg)
	snap.DependencySummary = BuildDependencySummary(snap.Dependencies)
	snap.SystemChecks = BuildSystemChecks(running, snap.Daemon.Netlink, snap.Daemon.Blackbox.ActiveCameras, len(cfg.Cameras.IDs))
	snap.Paths = BuildPathChecks(cfg)
	return snap, nil
}

// ResolveDependencies returns current dependency availability for status output.
func ResolveDependencies(cfg *config.Config) []DependencyStatus {
	if cfg == nil {
		return nil
	}
	checks := preflight.CheckSystemDeps(cfg)
	statuses := make([]DependencyStatus, 0, len(checks))
	for _, check := range checks {
		severity := "ok"
		if !check.Available {
			severity = "error"
			if check.Optional {
				severity = "warn"
			}
		}
		statuses = append(statuses, DependencyStatus{Status: check, Severity: severity})
	}
	return statuses
}

// BuildSystemChecks resolves status lines describing the daemon runtime.
func BuildSystemChecks(daemonRunning, netlinkActive bool, activeCameras, configuredCameras int) []StatusLine {
	lines := make([]StatusLine, 0, 3)
	if !daemonRunning {
		lines = append(lines,
			StatusLine{Label: "Blackbox", Severity: "warn", Detail: "Not running (run `blackbox start`)"},
			StatusLine{Label: "Reconnect Detection", Severity: "info", Detail: "Inactive (daemon not running)"},
		)
		return lines
	}

	lines = append(lines, StatusLine{Label: "Blackbox", Severity: "ok", Detail: "Running"})
	recording := StatusLine{Label: "Recording", Severity: "ok", Detail: fmt.Sprintf("%d/%d cameras active", activeCameras, configuredCameras)}
	switch {
	case activeCameras == 0:
		recording.Severity = "error"
	case activeCameras < configuredCameras:
		recording.Severity = "warn"
	}
	lines = append(lines, recording)

	if netlinkActive {
		lines = append(lines, StatusLine{Label: "Reconnect Detection", Severity: "ok", Detail: "Netlink monitoring active"})
	} else {
		lines = append(lines, StatusLine{Label: "Reconnect Detection", Severity: "warn", Detail: "Netlink unavailable (cameras retry on backoff)"})
	}
	return lines
}

// BuildCameraLines renders live camera status as status lines.
func BuildCameraLines(cameras []ipc.CameraStatus) []StatusLine {
	lines := make([]StatusLine, 0, len(cameras))
	for _, cam := range cameras {
		line := StatusLine{Label: fmt.Sprintf("Camera %d", cam.ID), Severity: "ok", Detail: cam.State}
		switch {
		case !cam.Active && cam.State != "suspended":
			line.Severity = "error"
			if cam.LastError != "" {
				line.Detail = fmt.Sprintf("%s (%s)", cam.State, cam.LastError)
			}
		case cam.Frames > 0:
			line.Detail = fmt.Sprintf("%s, %d frames, %d motion events", cam.State, cam.Frames, cam.MotionEvents)
		}
		lines = append(lines, line)
	}
	return lines
}

// BuildPathChecks resolves configured directory readiness.
func BuildPathChecks(cfg *config.Config) []StatusLine {
	results := []preflight.Result{
		preflight.CheckDirectoryAccess("Events", cfg.Paths.EventsDir),
		preflight.CheckDirectoryAccess("State", cfg.Paths.StateDir),
		preflight.CheckDirectoryAccess("Logs", cfg.Paths.LogDir),
	}
	lines := statusLines(results, "error")
	free := preflight.CheckFreeSpace("Free Space", cfg.Paths.EventsDir, uint64(cfg.Storage.FreeFloorMiB)*1024*1024)
	return append(lines, statusLines([]preflight.Result{free}, "warn")...)
}

func statusLines(results []preflight.Result, failSeverity string) []StatusLine {
	lines := make([]StatusLine, 0, len(results))
	for _, result := range results {
		severity := failSeverity
		if result.Passed {
			severity = "ok"
		}
		lines = append(lines, StatusLine{Label: result.Name, Severity: severity, Detail: result.Detail})
	}
	return lines
}

// BuildDependencySummary computes aggregate dependency readiness.
func BuildDependencySummary(statuses []DependencyStatus) DependencySummary {
	if len(statuses) == 0 {
		return DependencySummary{
			Severity: "info",
			Detail:   "No dependency checks configured",
		}
	}

	missingRequired := 0
	missingOptional := 0
	for _, dep := range statuses {
		if dep.Available {
			continue
		}
		if dep.Optional {
			missingOptional++
		} else {
			missingRequired++
		}
	}

	missingCount := missingRequired + missingOptional
	available := len(statuses) - missingCount
	severity := "ok"
	if missingRequired > 0 {
		severity = "error"
	} else if missingOptional > 0 {
		severity = "warn"
	}
	detail := fmt.Sprintf("%d/%d available (missing: %d required, %d optional)", available, len(statuses), missingRequired, missingOptional)
	if missingCount == 0 {
		detail = fmt.Sprintf("%d/%d available", available, len(statuses))
	}

	return DependencySummary{
		Total:           len(statuses),
		Available:       available,
		MissingRequired: missingRequired,
		MissingOptional: missingOptional,
		Severity:        severity,
		Detail:          strings.TrimSpace(detail),
	}
}
