// Package daemon coordinates the long-running blackbox process and its system
// integration points.
//
// It wires configuration, the events ledger, metrics and the orchestrator into
// a single lifecycle with flock-based locking to prevent multiple instances.
// A udev netlink monitor kicks cameras whose video device reappears, and an
// optional read-only HTTP API serves status and event history.
//
// Keep recording logic in the blackbox package; the daemon focuses on
// startup, shutdown and high level coordination.
package daemon
