// Package logs tails the daemon log for "blackbox logs".
//
// Tail emits the last N lines with bounded memory and, in follow mode, keeps
// polling for appended lines. It survives the daemon repointing blackbox.log
// at a new run file. Filter narrows output to one camera or a substring.
package logs
