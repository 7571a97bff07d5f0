// Package errors provides the error taxonomy of the plugin subsystem.
// Every kind is a distinct type so callers can tell "not permitted" apart
// from "misbehaving" with errors.As; all types support unwrapping where
// they carry a cause.
package errors

import (
	"fmt"
	"time"

	"github.com/plughost-dev/plughost/domain/entities"
)

// CapabilityDeniedError reports a capability check that failed because the
// sandbox policy does not grant the capability.
type CapabilityDeniedError struct {
	PluginID   string
	Capability entities.Capability
}

func (e *CapabilityDeniedError) Error() string {
	if e.PluginID != "" {
		return fmt.Sprintf("plugin %q denied capability %s", e.PluginID, e.Capability)
	}
	return fmt.Sprintf("capability %s denied", e.Capability)
}

// PathNotAllowedError reports a file access outside the granted roots.
type PathNotAllowedError struct {
	Path  string
	Write bool
}

func (e *PathNotAllowedError) Error() string {
	mode := "read"
	if e.Write {
		mode = "write"
	}
	return fmt.Sprintf("path %q not allowed for %s", e.Path, mode)
}

// NetworkDeniedError reports a connection attempt outside the network policy.
type NetworkDeniedError struct {
	Host string
	Port int
}

func (e *NetworkDeniedError) Error() string {
	return fmt.Sprintf("network access to %s:%d denied", e.Host, e.Port)
}

// ResourceKind names the budget a ResourceLimitError violated.
type ResourceKind string

const (
	ResourceMemory ResourceKind = "memory"
	ResourceFuel   ResourceKind = "fuel"
)

// ResourceLimitError reports a budget violation. Killed distinguishes the
// violating call (false) from calls rejected because the tracker was
// already killed by an earlier violation (true).
type ResourceLimitError struct {
	Kind   ResourceKind
	Used   uint64
	Limit  uint64
	Killed bool
}

func (e *ResourceLimitError) Error() string {
	if e.Killed {
		return fmt.Sprintf("plugin killed: %s budget exhausted (%d/%d)", e.Kind, e.Used, e.Limit)
	}
	return fmt.Sprintf("%s limit exceeded: %d of %d", e.Kind, e.Used, e.Limit)
}

// PluginKilledError reports an operation against a plugin whose kill
// switch has tripped. Killed plugins reject everything until unloaded.
type PluginKilledError struct {
	PluginID string
}

func (e *PluginKilledError) Error() string {
	return fmt.Sprintf("plugin %q is killed", e.PluginID)
}

// TimeoutError reports that a plugin exceeded its wall-clock budget.
type TimeoutError struct {
	Elapsed time.Duration
	Limit   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("execution timeout: %v elapsed, limit %v", e.Elapsed, e.Limit)
}

// Timeout marks the error as a timeout for net-style checks.
func (e *TimeoutError) Timeout() bool { return true }

// InvalidKeyError reports a public key that failed import validation.
type InvalidKeyError struct {
	Author string
	Reason string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key for %q: %s", e.Author, e.Reason)
}

// SignatureError reports a malformed or unverifiable signature input.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return "invalid signature: " + e.Reason
}

// UntrustedKeyError reports an artifact whose signature matched no trusted key.
type UntrustedKeyError struct {
	Path string
}

func (e *UntrustedKeyError) Error() string {
	return fmt.Sprintf("artifact %q is not signed by any trusted key", e.Path)
}

// AuthorRevokedError reports an artifact whose signature verified against
// a revoked author's key.
type AuthorRevokedError struct {
	Path   string
	Author string
}

func (e *AuthorRevokedError) Error() string {
	return fmt.Sprintf("artifact %q is signed by revoked author %q", e.Path, e.Author)
}

// PluginNotFoundError reports a lookup for a plugin id the registry does
// not hold.
type PluginNotFoundError struct {
	Name string
}

func (e *PluginNotFoundError) Error() string {
	return fmt.Sprintf("plugin %q not found", e.Name)
}

// AlreadyRegisteredError reports a duplicate plugin id.
type AlreadyRegisteredError struct {
	Name string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("plugin %q already registered", e.Name)
}

// InitError reports a failure while bringing the manager up.
type InitError struct {
	Stage string
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init failed at %s: %v", e.Stage, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// ShutdownError reports one plugin's teardown failure. Registry teardown is
// best-effort-all; individual failures are collected with errors.Join.
type ShutdownError struct {
	PluginID string
	Err      error
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("shutdown of plugin %q failed: %v", e.PluginID, e.Err)
}

func (e *ShutdownError) Unwrap() error { return e.Err }

// NotSupportedError reports an operation the current platform or build
// cannot perform (e.g. native plugins on an unsupported OS).
type NotSupportedError struct {
	Reason string
}

func (e *NotSupportedError) Error() string {
	return "not supported: " + e.Reason
}
