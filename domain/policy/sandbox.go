package policy

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/plughost-dev/plughost/domain/entities"
	"github.com/plughost-dev/plughost/domain/ports"
)

// Config is the grant set a Sandbox enforces. It is built additively from
// the restrictive base; there is no way to remove a denial except by
// starting over.
type Config struct {
	capabilities map[entities.Capability]struct{}
	fsRead       []string
	fsWrite      []string
	network      NetworkPolicy
}

// RestrictiveConfig returns the deny-everything base: no capabilities, no
// filesystem roots, no network.
func RestrictiveConfig() Config {
	return Config{
		capabilities: make(map[entities.Capability]struct{}),
		network:      DenyAllNetwork(),
	}
}

// WithCapability returns the config with one capability granted.
func (c Config) WithCapability(cap entities.Capability) Config {
	caps := make(map[entities.Capability]struct{}, len(c.capabilities)+1)
	for k := range c.capabilities {
		caps[k] = struct{}{}
	}
	caps[cap] = struct{}{}
	c.capabilities = caps
	return c
}

// WithFSRead returns the config with a readable root or glob pattern added.
// Invalid patterns are dropped.
func (c Config) WithFSRead(root string) Config {
	if doublestar.ValidatePattern(root) {
		c.fsRead = append(append([]string(nil), c.fsRead...), root)
	}
	return c
}

// WithFSWrite returns the config with a writable root or glob pattern added.
// Invalid patterns are dropped.
func (c Config) WithFSWrite(root string) Config {
	if doublestar.ValidatePattern(root) {
		c.fsWrite = append(append([]string(nil), c.fsWrite...), root)
	}
	return c
}

// WithNetworkPolicy returns the config with the network policy replaced.
func (c Config) WithNetworkPolicy(p NetworkPolicy) Config {
	c.network = p
	return c
}

// Capabilities returns the granted capability set, sorted by value.
func (c Config) Capabilities() []entities.Capability {
	out := make([]entities.Capability, 0, len(c.capabilities))
	for cap := range c.capabilities {
		out = append(out, cap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// sandboxConfig holds construction options for the Sandbox.
type sandboxConfig struct {
	cwd             string              // Working directory for relative path resolution
	resolveSymlinks bool                // Whether to resolve symlinks (security feature)
	denialHandler   ports.DenialHandler // Handler invoked on denials
	now             func() time.Time    // Clock seam for audit timestamps
}

func defaultSandboxConfig() sandboxConfig {
	return sandboxConfig{
		cwd:             "",
		resolveSymlinks: true,               // Secure default
		denialHandler:   NopDenialHandler{}, // audit trail is the record of truth
		now:             time.Now,
	}
}

// Option configures the Sandbox.
type Option func(*sandboxConfig)

// WithWorkingDirectory sets the working directory for relative path resolution.
func WithWorkingDirectory(cwd string) Option {
	return func(c *sandboxConfig) {
		c.cwd = cwd
	}
}

// WithSymlinkResolution enables/disables symlink resolution.
// Default is true (secure). Disable only for testing.
func WithSymlinkResolution(enabled bool) Option {
	return func(c *sandboxConfig) {
		c.resolveSymlinks = enabled
	}
}

// WithDenialHandler sets the denial handler.
func WithDenialHandler(h ports.DenialHandler) Option {
	return func(c *sandboxConfig) {
		c.denialHandler = h
	}
}

// WithClock overrides the audit timestamp source. Testing only.
func WithClock(now func() time.Time) Option {
	return func(c *sandboxConfig) {
		c.now = now
	}
}

// Sandbox enforces one plugin's grant set and records every decision.
// Checks are safe for concurrent use.
type Sandbox struct {
	grants Config
	config sandboxConfig

	mu    sync.Mutex
	audit []entities.AuditEntry
}

// NewSandbox creates a Sandbox enforcing the given grants.
func NewSandbox(grants Config, opts ...Option) *Sandbox {
	cfg := defaultSandboxConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if grants.capabilities == nil {
		grants.capabilities = make(map[entities.Capability]struct{})
	}
	if cfg.resolveSymlinks {
		grants.fsRead = canonicalRoots(grants.fsRead)
		grants.fsWrite = canonicalRoots(grants.fsWrite)
	}
	return &Sandbox{grants: grants, config: cfg}
}

// canonicalRoots resolves literal roots through symlinks so a granted root
// that is itself a symlink still covers the paths beneath its target. Glob
// roots and roots that do not exist are kept as written.
func canonicalRoots(roots []string) []string {
	if len(roots) == 0 {
		return roots
	}
	out := make([]string, len(roots))
	for i, root := range roots {
		out[i] = root
		if strings.ContainsAny(root, "*?[{") {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(root); err == nil {
			out[i] = resolved
		}
	}
	return out
}

// NewRestrictiveSandbox creates a Sandbox that denies everything.
func NewRestrictiveSandbox(opts ...Option) *Sandbox {
	return NewSandbox(RestrictiveConfig(), opts...)
}

// CheckCapability reports whether the capability is granted and records
// the decision.
func (s *Sandbox) CheckCapability(cap entities.Capability) bool {
	_, allowed := s.grants.capabilities[cap]
	s.record(entities.AuditCapability, cap.String(), allowed)
	if !allowed {
		s.config.denialHandler.OnDenial(string(entities.AuditCapability), cap.String(), "capability not granted")
	}
	return allowed
}

// CheckFileRead reports whether the path may be read and records the decision.
func (s *Sandbox) CheckFileRead(path string) bool {
	return s.checkFile(path, false)
}

// CheckFileWrite reports whether the path may be written and records the
// decision.
func (s *Sandbox) CheckFileWrite(path string) bool {
	return s.checkFile(path, true)
}

func (s *Sandbox) checkFile(path string, write bool) bool {
	roots := s.grants.fsRead
	mode := "read"
	if write {
		roots = s.grants.fsWrite
		mode = "write"
	}

	resolved, ok := s.resolvePath(path)
	if !ok {
		s.record(entities.AuditFile, mode+":"+path, false)
		s.config.denialHandler.OnDenial(string(entities.AuditFile), path, "relative path without working directory")
		return false
	}

	allowed := false
	for _, root := range roots {
		if pathMatchesRoot(root, resolved) {
			allowed = true
			break
		}
	}

	s.record(entities.AuditFile, mode+":"+path, allowed)
	if !allowed {
		s.config.denialHandler.OnDenial(string(entities.AuditFile), path, mode+" outside granted roots")
	}
	return allowed
}

// resolvePath normalizes a path for matching. Relative paths are joined to
// the working directory when one is configured, denied otherwise.
func (s *Sandbox) resolvePath(path string) (string, bool) {
	p := filepath.Clean(path)
	if !filepath.IsAbs(p) {
		if s.config.cwd == "" {
			return "", false
		}
		p = filepath.Join(s.config.cwd, p)
	}
	// Resolve symlinks to prevent traversal attacks. Paths that do not
	// exist yet are matched as given.
	if s.config.resolveSymlinks {
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			p = resolved
		}
	}
	return p, true
}

// pathMatchesRoot reports whether path falls under root. Roots containing
// glob metacharacters match with doublestar; literal roots match the root
// itself and everything below it.
func pathMatchesRoot(root, path string) bool {
	if strings.ContainsAny(root, "*?[{") {
		matched, _ := doublestar.Match(root, path)
		return matched
	}
	root = filepath.Clean(root)
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// CheckNetwork reports whether host:port may be dialed and records the
// decision.
func (s *Sandbox) CheckNetwork(host string, port int) bool {
	allowed := s.grants.network.Allows(host, port)
	resource := host + ":" + strconv.Itoa(port)
	s.record(entities.AuditNetwork, resource, allowed)
	if !allowed {
		s.config.denialHandler.OnDenial(string(entities.AuditNetwork), resource, "host/port not allowed")
	}
	return allowed
}

func (s *Sandbox) record(kind entities.AuditKind, resource string, allowed bool) {
	entry := entities.AuditEntry{
		Kind:      kind,
		Resource:  resource,
		Allowed:   allowed,
		Timestamp: s.config.now(),
	}
	s.mu.Lock()
	s.audit = append(s.audit, entry)
	s.mu.Unlock()
}

// AuditLog returns a copy of the audit trail in check order.
func (s *Sandbox) AuditLog() []entities.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entities.AuditEntry(nil), s.audit...)
}

// ClearAudit discards the audit trail. Grants are unaffected.
func (s *Sandbox) ClearAudit() {
	s.mu.Lock()
	s.audit = nil
	s.mu.Unlock()
}

// Grants returns the config this sandbox enforces.
func (s *Sandbox) Grants() Config {
	return s.grants
}
