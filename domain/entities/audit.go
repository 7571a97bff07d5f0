package entities

import "time"

// AuditKind identifies which sandbox check produced an audit entry.
type AuditKind string

const (
	AuditCapability AuditKind = "capability"
	AuditFile       AuditKind = "file"
	AuditNetwork    AuditKind = "network"
)

// AuditEntry records one permission decision made by a sandbox. Entries are
// append-only; their order is the order of the checks that produced them.
type AuditEntry struct {
	// Kind is the check that produced this entry.
	Kind AuditKind

	// Resource describes what was requested: the capability name, the file
	// path plus mode, or host:port.
	Resource string

	// Allowed is the decision that was returned to the caller.
	Allowed bool

	// Timestamp is when the decision was made.
	Timestamp time.Time
}
