package ports

// DenialHandler is called when a sandbox check denies a request.
// Implementations can log, collect metrics, or take other actions.
// Handlers must be safe for concurrent use.
type DenialHandler interface {
	// OnDenial is called when a request is denied.
	// kind: "capability", "file", "network"
	// resource: the denied resource (capability name, path, or host:port)
	// reason: human-readable denial reason
	OnDenial(kind string, resource string, reason string)
}
