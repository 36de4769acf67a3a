package camera

import (
	"errors"
	"fmt"

	"blackbox/internal/services"
)

// ErrUnhealthy reports a source whose decode loop has failed repeatedly or
// whose process exited.
var ErrUnhealthy = errors.New("camera unhealthy")

// StartError means the camera could not be opened or produced no frame in
// time. It is recoverable by retrying later.
type StartError struct {
	CameraID int
	Err      error
}

func (e *StartError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("camera %d failed to start", e.CameraID)
	}
	return fmt.Sprintf("camera %d failed to start: %v", e.CameraID, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// Is reports StartError as an external tool failure.
func (e *StartError) Is(target error) bool {
	return target == services.ErrExternalTool
}

// ErrorKind classifies the error for metrics and ledger rows.
func (e *StartError) ErrorKind() string { return "camera_start" }
