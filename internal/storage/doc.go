// Package storage enforces the retention budget on the events directory.
//
// The Manager walks the events tree on demand; nothing is cached between
// calls. AuditAndClean picks one of two modes: emergency eviction of the
// oldest fraction of clips when the budget or the free-space floor is
// breached, otherwise age-based retention with a longer window for clips the
// ledger flags as important. Hidden directories such as the in-flight
// capture directory are never scanned.
package storage
