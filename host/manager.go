package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/plughost-dev/plughost/domain/entities"
	dErrors "github.com/plughost-dev/plughost/domain/errors"
	"github.com/plughost-dev/plughost/domain/policy"
	"github.com/plughost-dev/plughost/domain/resource"
	"github.com/plughost-dev/plughost/hooks"
	"github.com/plughost-dev/plughost/hostfuncs"
)

// SignatureSuffix is appended to an artifact path to find its detached
// signature.
const SignatureSuffix = ".sig"

// ManifestSuffix is appended to an artifact's base path (extension
// stripped) to find its manifest sidecar.
const ManifestSuffix = ".manifest.yaml"

// ManagerStats is a point-in-time view of manager activity.
type ManagerStats struct {
	Plugins           int
	Executions        uint64
	ExecutionFailures uint64
	HooksDispatched   uint64
}

// Manager is the top-level plugin supervisor: discovery, verification,
// loading, execution, hooks and teardown. Safe for concurrent use.
type Manager struct {
	config   managerConfig
	registry *Registry
	executor *Executor
	hooks    *hooks.HookSystem

	executions atomic.Uint64
	failures   atomic.Uint64
	dispatched atomic.Uint64
	shutdown   atomic.Bool
}

// NewManager creates a manager. The executor and hook system are built
// here; nothing is loaded until Init or LoadArtifact.
func NewManager(ctx context.Context, opts ...ManagerOption) (*Manager, error) {
	cfg := defaultManagerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.hostFuncs == nil {
		reg, err := hostfuncs.DefaultRegistry(cfg.logger, cfg.fuelPerCall)
		if err != nil {
			return nil, &dErrors.InitError{Stage: "host functions", Err: err}
		}
		cfg.hostFuncs = reg
	}

	executor, err := NewExecutor(ctx,
		WithHandlerRegistry(cfg.hostFuncs),
		WithExecutorLogger(cfg.logger),
	)
	if err != nil {
		return nil, &dErrors.InitError{Stage: "executor", Err: err}
	}

	m := &Manager{
		config:   cfg,
		registry: NewRegistry(),
		executor: executor,
	}
	m.hooks = hooks.NewHookSystem(m, hooks.WithLogger(cfg.logger))
	return m, nil
}

// Init discovers and loads plugins from the configured directory. With
// auto-load disabled it is a no-op. Returns the number of plugins loaded;
// individual artifacts that fail verification or loading are logged and
// skipped, they never abort discovery.
func (m *Manager) Init(ctx context.Context) (int, error) {
	if !m.config.autoLoad || m.config.pluginDir == "" {
		return 0, nil
	}
	if m.config.verifier == nil {
		return 0, &dErrors.InitError{Stage: "discovery", Err: errors.New("no verifier configured")}
	}
	if m.config.parser == nil {
		return 0, &dErrors.InitError{Stage: "discovery", Err: errors.New("no manifest parser configured")}
	}

	loaded := 0
	walkErr := filepath.WalkDir(m.config.pluginDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := entities.PluginTypeFromPath(path); !ok {
			return nil
		}
		if err := m.LoadArtifact(ctx, path); err != nil {
			m.config.logger.Warn("skipping plugin artifact",
				slog.String("path", path),
				slog.Any("error", err),
			)
			return nil
		}
		loaded++
		return nil
	})
	if walkErr != nil {
		return loaded, &dErrors.InitError{Stage: "discovery", Err: walkErr}
	}
	return loaded, nil
}

// LoadArtifact runs the full trust-and-load pipeline for one artifact:
// signature verification against the trusted key set, manifest parsing,
// sandbox and budget construction, instantiation, hook registration.
func (m *Manager) LoadArtifact(ctx context.Context, path string) error {
	kind, ok := entities.PluginTypeFromPath(path)
	if !ok {
		return &dErrors.NotSupportedError{Reason: "unknown artifact extension: " + filepath.Ext(path)}
	}
	if m.config.verifier == nil {
		return &dErrors.InitError{Stage: "verify", Err: errors.New("no verifier configured")}
	}
	if m.config.parser == nil {
		return &dErrors.InitError{Stage: "manifest", Err: errors.New("no manifest parser configured")}
	}

	artifact, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading artifact: %w", err)
	}
	sig, err := os.ReadFile(path + SignatureSuffix)
	if err != nil {
		return &dErrors.SignatureError{Reason: "missing detached signature for " + path}
	}

	result := m.config.verifier.Verify(artifact, sig)
	if !result.Verified {
		return &dErrors.UntrustedKeyError{Path: path}
	}
	if !result.Loadable {
		return &dErrors.AuthorRevokedError{Path: path, Author: result.Author}
	}

	manifestPath := strings.TrimSuffix(path, filepath.Ext(path)) + ManifestSuffix
	manifest, err := m.config.parser.ParseFile(manifestPath)
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}
	if manifest.Author != "" && manifest.Author != result.Author {
		return &dErrors.SignatureError{
			Reason: fmt.Sprintf("manifest author %q does not match signing author %q", manifest.Author, result.Author),
		}
	}

	var plugin LoadedPlugin
	switch kind {
	case entities.PluginTypeWasm:
		plugin, err = m.executor.Load(ctx, artifact)
	case entities.PluginTypeNative:
		plugin, err = LoadNative(path)
	default:
		err = &dErrors.NotSupportedError{Reason: "unhandled plugin type"}
	}
	if err != nil {
		return fmt.Errorf("loading %s plugin: %w", kind, err)
	}

	if err := m.Register(manifest.Name, plugin, manifest, kind); err != nil {
		_ = plugin.Unload(ctx)
		return err
	}

	m.config.logger.Info("plugin loaded",
		slog.String("plugin", manifest.Name),
		slog.String("version", manifest.Version),
		slog.String("type", kind.String()),
		slog.String("author", result.Author),
		slog.String("risk", entities.AssessRisk(mustCapabilities(manifest)).String()),
	)
	return nil
}

func mustCapabilities(manifest *entities.PluginManifest) []entities.Capability {
	caps, _ := manifest.RequestedCapabilities()
	return caps
}

// Register binds an already instantiated plugin under the manifest's
// grants: sandbox, tracker, bridge state and hook subscriptions. Embedders
// use it to register plugins loaded outside the discovery pipeline.
func (m *Manager) Register(id string, plugin LoadedPlugin, manifest *entities.PluginManifest, kind entities.PluginType) error {
	if id == "" {
		return &dErrors.InitError{Stage: "register", Err: errors.New("empty plugin id")}
	}

	caps, err := manifest.RequestedCapabilities()
	if err != nil {
		return err
	}

	grants := policy.RestrictiveConfig()
	for _, c := range caps {
		grants = grants.WithCapability(c)
	}
	for _, root := range manifest.FSRead {
		grants = grants.WithFSRead(root)
	}
	for _, root := range manifest.FSWrite {
		grants = grants.WithFSWrite(root)
	}
	if manifest.Network != nil {
		grants = grants.WithNetworkPolicy(
			policy.AllowedHosts(manifest.Network.Hosts, manifest.Network.Ports...))
	}

	rec := &record{
		plugin:   plugin,
		manifest: manifest,
		kind:     kind,
		sandbox: policy.NewSandbox(grants,
			policy.WithDenialHandler(policy.NewSlogDenialHandler(m.config.logger))),
		tracker: resource.NewTracker(manifest.ResourceLimits(m.config.defaultLimits)),
		state:   hostfuncs.NewHostState(),
	}

	if err := m.registry.add(id, rec); err != nil {
		return err
	}

	for _, h := range manifest.Hooks {
		m.hooks.Register(entities.HookRegistration{
			Event:    h.Event,
			PluginID: id,
			Handler:  h.Handler,
			Priority: h.Priority,
		})
	}
	return nil
}

// Lifecycle events fired around every plugin execution. Handlers receive
// the target plugin id in the payload; the after event also reports
// whether the execution failed.
const (
	HookBeforeExecute = "plugin.before_execute"
	HookAfterExecute  = "plugin.after_execute"
)

// Execute runs a plugin's entry point. Executions against the same plugin
// are serialized; different plugins run concurrently. The duration budget
// is enforced per call through the context. Before and after lifecycle
// events fire outside the plugin's lock, so handlers may touch the plugin
// being executed.
func (m *Manager) Execute(ctx context.Context, id string, input []byte) (entities.ExecutionOutput, error) {
	rec, err := m.registry.get(id)
	if err != nil {
		m.failures.Add(1)
		return entities.ExecutionOutput{}, err
	}

	m.fireLifecycle(ctx, entities.NewHookData(HookBeforeExecute).WithPayload("plugin", id))

	output, execErr := m.executeLocked(ctx, id, rec, input)

	m.fireLifecycle(ctx, entities.NewHookData(HookAfterExecute).
		WithPayload("plugin", id).
		WithPayload("failed", execErr != nil))

	if execErr != nil {
		m.failures.Add(1)
		return output, execErr
	}
	m.executions.Add(1)
	return output, nil
}

// fireLifecycle dispatches a lifecycle event. Handler failures are logged,
// never surfaced: a broken listener must not fail the execution it observes.
func (m *Manager) fireLifecycle(ctx context.Context, data entities.HookData) {
	if _, err := m.DispatchHook(ctx, data); err != nil {
		m.config.logger.Warn("lifecycle hook dispatch failed",
			slog.String("event", data.Event),
			slog.Any("error", err),
		)
	}
}

func (m *Manager) executeLocked(ctx context.Context, id string, rec *record, input []byte) (entities.ExecutionOutput, error) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.unloaded {
		return entities.ExecutionOutput{}, &dErrors.PluginNotFoundError{Name: id}
	}
	if rec.tracker.Killed() {
		return entities.ExecutionOutput{}, &dErrors.PluginKilledError{PluginID: id}
	}

	rec.tracker.ResetClock()
	limits := rec.tracker.Limits()

	callCtx := hostfuncs.WithScope(ctx, rec.scope(id))
	if limits.MaxDuration > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, limits.MaxDuration)
		defer cancel()
	}

	start := time.Now()
	out, execErr := rec.plugin.Execute(callCtx, input)
	duration := time.Since(start)

	output := entities.ExecutionOutput{
		PluginID:  id,
		Output:    out,
		Logs:      rec.state.DrainLogs(),
		Resources: rec.tracker.Snapshot(),
		Duration:  duration,
	}

	if execErr != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			execErr = &dErrors.TimeoutError{Elapsed: duration, Limit: limits.MaxDuration}
		}
		return output, execErr
	}
	return output, nil
}

// DispatchHook delivers a lifecycle event to every subscribed plugin.
func (m *Manager) DispatchHook(ctx context.Context, data entities.HookData) (entities.HookExecutionResult, error) {
	m.dispatched.Add(1)
	return m.hooks.Dispatch(ctx, data)
}

// InvokeHook implements hooks.Invoker: it delivers one hook invocation to
// one plugin handler under the plugin's scope and lock.
func (m *Manager) InvokeHook(ctx context.Context, pluginID, handler string, data entities.HookData) error {
	rec, err := m.registry.get(pluginID)
	if err != nil {
		return hooks.ErrPluginAbsent
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling hook data: %w", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.unloaded {
		return hooks.ErrPluginAbsent
	}
	if rec.tracker.Killed() {
		return &dErrors.PluginKilledError{PluginID: pluginID}
	}

	_, err = rec.plugin.Invoke(hostfuncs.WithScope(ctx, rec.scope(pluginID)), handler, payload)
	return err
}

// PluginInfo describes one loaded plugin.
type PluginInfo struct {
	ID           string
	Version      string
	Author       string
	Type         entities.PluginType
	Capabilities []entities.Capability
	Risk         entities.RiskLevel
	Health       entities.HealthStatus
}

// Describe returns a plugin's manifest identity, granted capabilities,
// assessed risk and current health.
func (m *Manager) Describe(id string) (PluginInfo, error) {
	rec, err := m.registry.get(id)
	if err != nil {
		return PluginInfo{}, err
	}
	caps := rec.sandbox.Grants().Capabilities()
	return PluginInfo{
		ID:           id,
		Version:      rec.manifest.Version,
		Author:       rec.manifest.Author,
		Type:         rec.kind,
		Capabilities: caps,
		Risk:         entities.AssessRisk(caps),
		Health:       rec.health(),
	}, nil
}

// Health returns one plugin's health derived from its tracker.
func (m *Manager) Health(id string) (entities.PluginHealth, error) {
	return m.registry.Health(id)
}

// HealthAll returns the health of every loaded plugin.
func (m *Manager) HealthAll() []entities.PluginHealth {
	return m.registry.HealthAll()
}

// Plugins returns the loaded plugin ids, sorted.
func (m *Manager) Plugins() []string {
	return m.registry.Names()
}

// Exists reports whether a plugin is loaded under the id.
func (m *Manager) Exists(id string) bool {
	return m.registry.Exists(id)
}

// PluginCount returns the number of loaded plugins.
func (m *Manager) PluginCount() int {
	return m.registry.Len()
}

// CheckCapability runs an audited sandbox check for a loaded plugin and
// reports a denial as a CapabilityDeniedError. The check helpers let
// embedders gate work done on a plugin's behalf outside an execution.
func (m *Manager) CheckCapability(id string, cap entities.Capability) error {
	rec, err := m.registry.get(id)
	if err != nil {
		return err
	}
	if !rec.sandbox.CheckCapability(cap) {
		return &dErrors.CapabilityDeniedError{PluginID: id, Capability: cap}
	}
	return nil
}

// CheckFileAccess runs an audited file check for a loaded plugin and
// reports a denial as a PathNotAllowedError.
func (m *Manager) CheckFileAccess(id, path string, write bool) error {
	rec, err := m.registry.get(id)
	if err != nil {
		return err
	}
	var allowed bool
	if write {
		allowed = rec.sandbox.CheckFileWrite(path)
	} else {
		allowed = rec.sandbox.CheckFileRead(path)
	}
	if !allowed {
		return &dErrors.PathNotAllowedError{Path: path, Write: write}
	}
	return nil
}

// CheckNetworkAccess runs an audited network check for a loaded plugin and
// reports a denial as a NetworkDeniedError.
func (m *Manager) CheckNetworkAccess(id, host string, port int) error {
	rec, err := m.registry.get(id)
	if err != nil {
		return err
	}
	if !rec.sandbox.CheckNetwork(host, port) {
		return &dErrors.NetworkDeniedError{Host: host, Port: port}
	}
	return nil
}

// AuditLog returns a plugin's sandbox audit trail.
func (m *Manager) AuditLog(id string) ([]entities.AuditEntry, error) {
	rec, err := m.registry.get(id)
	if err != nil {
		return nil, err
	}
	return rec.sandbox.AuditLog(), nil
}

// Unload removes one plugin: its hook subscriptions go first so no event
// dispatch races the teardown.
func (m *Manager) Unload(ctx context.Context, id string) error {
	m.hooks.UnregisterPlugin(id)
	return m.registry.remove(ctx, id)
}

// Stats returns a point-in-time activity snapshot.
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{
		Plugins:           m.registry.Len(),
		Executions:        m.executions.Load(),
		ExecutionFailures: m.failures.Load(),
		HooksDispatched:   m.dispatched.Load(),
	}
}

// Shutdown unloads every plugin and closes the runtime. Best-effort-all:
// every plugin gets an unload attempt and all failures are joined.
// Idempotent.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.shutdown.Swap(true) {
		return nil
	}

	for _, id := range m.registry.Names() {
		m.hooks.UnregisterPlugin(id)
	}

	var errs []error
	if err := m.registry.shutdownAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := m.executor.Close(ctx); err != nil {
		errs = append(errs, &dErrors.ShutdownError{PluginID: "<runtime>", Err: err})
	}
	return errors.Join(errs...)
}
