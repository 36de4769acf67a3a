// Package daemonctl launches, stops and inspects the blackbox daemon process
// on behalf of the CLI. It talks to the daemon over the IPC socket and falls
// back to reading the ledger and events directory directly when the daemon is
// down.
package daemonctl
