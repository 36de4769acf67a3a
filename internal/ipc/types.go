package ipc

import (
	"blackbox/internal/blackbox"
	"blackbox/internal/events"
	"blackbox/internal/storage"
)

// StartRequest triggers orchestrator startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the orchestrator.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// CameraStatus mirrors blackbox.CameraStatus for IPC callers.
type CameraStatus = blackbox.CameraStatus

// StatusResponse represents combined daemon and orchestrator status.
type StatusResponse struct {
	Running    bool            `json:"running"`
	PID        int             `json:"pid"`
	Blackbox   blackbox.Status `json:"blackbox"`
	Ledger     *events.Stats   `json:"ledger,omitempty"`
	EventsDir  string          `json:"events_dir"`
	LedgerPath string          `json:"ledger_path"`
	LockPath   string          `json:"lock_path"`
	LogPath    string          `json:"log_path"`
	Netlink    bool            `json:"netlink"`
}

// AuditRequest runs a storage audit immediately.
type AuditRequest struct{}

// AuditResponse summarizes the audit.
type AuditResponse struct {
	Result storage.AuditResult `json:"result"`
	Errors []string            `json:"errors,omitempty"`
}

// EventsRequest lists motion events. CameraID < 0 selects all cameras.
type EventsRequest struct {
	CameraID int `json:"camera_id"`
	Limit    int `json:"limit"`
}

// EventsResponse contains motion events, newest first.
type EventsResponse struct {
	Events []events.MotionEvent `json:"events"`
}

// JobsRequest lists recording jobs, optionally filtered by state.
type JobsRequest struct {
	Limit  int      `json:"limit"`
	States []string `json:"states"`
}

// JobsResponse contains recording jobs, newest first.
type JobsResponse struct {
	Jobs []events.Job `json:"jobs"`
}

// MarkImportantRequest flags or unflags a clip.
type MarkImportantRequest struct {
	Path      string `json:"path"`
	Important bool   `json:"important"`
}

// MarkImportantResponse confirms the update.
type MarkImportantResponse struct {
	Updated bool `json:"updated"`
}

// KickRequest asks a camera to retry immediately.
type KickRequest struct {
	CameraID int `json:"camera_id"`
}

// KickResponse reports whether the camera exists.
type KickResponse struct {
	Kicked bool `json:"kicked"`
}
