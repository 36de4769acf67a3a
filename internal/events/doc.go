// Package events persists motion events and recording jobs in SQLite.
//
// The ledger is the durable record of what the blackbox saw and saved: every
// accepted or suppressed trigger, every recording job with its final state,
// and the important flag the storage manager consults for extended
// retention. Jobs left pending by a crash are reconciled to failed at
// startup.
package events
