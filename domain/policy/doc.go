// Package policy implements the sandbox: a deny-by-default decision engine
// over capabilities, filesystem roots and network endpoints. Every check
// records exactly one audit entry, allowed or not, so the audit trail is a
// complete record of what a plugin attempted.
package policy
