package events

import "time"

// EventStatus records whether a trigger produced a recording.
type EventStatus string

const (
	EventAccepted   EventStatus = "accepted"
	EventSuppressed EventStatus = "suppressed"
)

// JobState is the completion state of a recording job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// ReasonInterrupted is stored on jobs found pending at startup.
const ReasonInterrupted = "interrupted"

// MotionEvent is a persisted trigger.
type MotionEvent struct {
	ID             string      `json:"id"`
	CameraID       int         `json:"camera_id"`
	TriggeredAt    time.Time   `json:"triggered_at"`
	Status         EventStatus `json:"status"`
	ComponentCount int         `json:"component_count"`
	TotalArea      int         `json:"total_area"`
	LargestArea    int         `json:"largest_area"`
	ThresholdArea  int         `json:"threshold_area"`
	PreRollFrames  int         `json:"pre_roll_frames"`
}

// Job is a persisted recording job.
type Job struct {
	ID              string    `json:"id"`
	EventID         string    `json:"event_id"`
	CameraID        int       `json:"camera_id"`
	Path            string    `json:"path,omitempty"`
	Thumbnail       string    `json:"thumbnail,omitempty"`
	State           JobState  `json:"state"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at,omitzero"`
	ExpectedSeconds int       `json:"expected_seconds"`
	SizeBytes       int64     `json:"size_bytes"`
	ErrorKind       string    `json:"error_kind,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	Important       bool      `json:"important,omitempty"`
}

// Stats counts jobs by state and events by status.
type Stats struct {
	Events     map[EventStatus]int `json:"events"`
	Jobs       map[JobState]int    `json:"jobs"`
	TotalBytes int64               `json:"total_bytes"`
}
