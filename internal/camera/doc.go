// Package camera turns an external camera process into a stream of decoded
// frames.
//
// A StreamSource launches rpicam-vid (or ffmpeg on a V4L2 device) writing
// MJPEG to stdout, splits the byte stream into JPEG images with a small
// state machine, and keeps only the newest decoded frame in a single-slot
// cell. Readers never block on device I/O. Process lifetime is owned by a
// scoped handle whose Stop is idempotent and escalates from SIGTERM to
// SIGKILL after a grace period.
package camera
