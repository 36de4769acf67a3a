package recorder

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordingFailed marks every failed capture.
	ErrRecordingFailed = errors.New("recording failed")
	// ErrBusy is returned when the camera already has a recording in flight.
	ErrBusy = errors.New("recording already in progress")
)

// Failure reasons recorded in Error.Reason.
const (
	ReasonCapture  = "capture_failed"
	ReasonEmpty    = "empty_output"
	ReasonFinalize = "finalize_failed"
)

// Error describes a failed recording.
type Error struct {
	CameraID int
	Path     string
	Reason   string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("camera %d: recording failed (%s)", e.CameraID, e.Reason)
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrRecordingFailed }

// ErrorKind classifies the failure for metrics and the event ledger.
func (e *Error) ErrorKind() string { return "recording_" + e.Reason }
