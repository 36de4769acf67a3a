// Package blackbox wires cameras, buffers, detectors, recorders and the
// storage manager into one running pipeline.
//
// An Orchestrator owns one cameraState per configured camera. Each camera
// runs its own acquisition goroutine that pulls the newest frame, pushes it
// into the pre-roll ring and samples the motion detector. Accepted triggers
// are handed to a per-camera recording task tracked by a taskSet; the loop
// never waits on a recording. A storage goroutine audits the events tree on
// its own cadence and a status goroutine logs a summary periodically.
package blackbox
