// Command blackbox is the CLI for the blackbox recorder.
//
// "blackbox start" launches the daemon in the background; the hidden
// "blackbox daemon" command runs it in the foreground. The remaining
// commands talk to a running daemon over its Unix socket and, where it
// makes sense, fall back to reading the events ledger directly.
package main
