// Package logging builds the slog loggers used by the daemon and CLI.
//
// Console output renders one line per record with the component and camera
// subject up front; JSON output keeps slog's structure with short source
// locations. Helpers here standardize field names (camera_id, job_id,
// event_type, error_hint) so warnings always carry a cause and a next step.
package logging
