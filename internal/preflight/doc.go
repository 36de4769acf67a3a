// Package preflight provides readiness checks for the cameras, binaries and
// filesystem paths blackbox depends on.
//
// The daemon logs RunAll at startup so a misconfigured deployment is obvious
// in the first lines of the log, and the CLI "blackbox status" command renders
// the same results. Failures are reported, never fatal: the orchestrator
// decides on its own whether enough cameras came up.
package preflight
