package blackbox

import (
	"time"

	"blackbox/internal/camera"
	"blackbox/internal/framebuffer"
	"blackbox/internal/storage"
)

// CameraStatus is the read-only view of one camera.
type CameraStatus struct {
	ID            int                `json:"id"`
	Active        bool               `json:"active"`
	State         string             `json:"state"`
	Frames        uint64             `json:"frames"`
	MotionEvents  uint64             `json:"motion_events"`
	Suppressed    uint64             `json:"suppressed"`
	CooldownSkips uint64             `json:"cooldown_skips"`
	Restarts      uint64             `json:"restarts"`
	LastMotion    time.Time          `json:"last_motion,omitzero"`
	LastError     string             `json:"last_error,omitempty"`
	NextRetry     time.Time          `json:"next_retry,omitzero"`
	Buffer        framebuffer.Status `json:"buffer"`
	Health        camera.Health      `json:"health"`
}

// RecordingStatus counts recording jobs since start.
type RecordingStatus struct {
	Active    int    `json:"active"`
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
}

// AuditSummary condenses the last storage audit.
type AuditSummary struct {
	At         time.Time `json:"at"`
	Mode       string    `json:"mode,omitempty"`
	Deleted    int       `json:"deleted"`
	FreedBytes int64     `json:"freed_bytes"`
	Errors     int       `json:"errors"`
	Err        string    `json:"error,omitempty"`
}

// Status is a point-in-time snapshot of the orchestrator.
type Status struct {
	Running       bool            `json:"running"`
	StartedAt     time.Time       `json:"started_at,omitzero"`
	Uptime        time.Duration   `json:"uptime"`
	ActiveCameras int             `json:"active_cameras"`
	Cameras       []CameraStatus  `json:"cameras"`
	Recordings    RecordingStatus `json:"recordings"`
	Storage       *storage.Stats  `json:"storage,omitempty"`
	LastAudit     *AuditSummary   `json:"last_audit,omitempty"`
}

// Camera returns the status entry for id.
func (s Status) Camera(id int) (CameraStatus, bool) {
	for _, c := range s.Cameras {
		if c.ID == id {
			return c, true
		}
	}
	return CameraStatus{}, false
}
