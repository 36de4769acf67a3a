// Package services defines shared utilities consumed by the camera, recorder,
// and storage components.
//
// Key responsibilities:
//   - Context helpers that stamp camera ids, recording job ids, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (external tool, timeout, validation) without string matching.
//
// The rpicam subpackage wraps the external camera binary.
package services
