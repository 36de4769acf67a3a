package storage

import "fmt"

// AuditError reports a filesystem failure during an audit. Per-file errors
// are collected in AuditResult.Errors; the audit carries on.
type AuditError struct {
	Path string
	Op   string
	Err  error
}

func (e *AuditError) Error() string {
	return fmt.Sprintf("storage audit: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *AuditError) Unwrap() error { return e.Err }

// ErrorKind classifies the failure for metrics labels.
func (e *AuditError) ErrorKind() string { return "storage_audit" }
