// Package recorder turns a motion trigger into a finished clip on disk.
//
// A Recorder serialises one camera's event pipeline through the states
// Idle, Suspending, Recording and Resuming. While recording, the live frame
// source is stopped so the capture binary owns the device; the clip is
// written into a hidden in-flight directory and only renamed into the
// month-partitioned events tree once the capture session has finished, so
// the storage manager never sees a partial file. The live source is resumed
// on every exit path.
package recorder
