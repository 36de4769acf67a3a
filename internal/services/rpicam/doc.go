// Package rpicam mediates access to the external camera binaries.
//
// It builds the argument lists for the live MJPEG preview stream (rpicam-vid
// or ffmpeg reading a V4L2 device) and runs bounded capture-to-file sessions
// for event recordings. Command execution sits behind the Executor interface
// so recorder tests never touch a real camera.
package rpicam
