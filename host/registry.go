package host

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/plughost-dev/plughost/domain/entities"
	dErrors "github.com/plughost-dev/plughost/domain/errors"
	"github.com/plughost-dev/plughost/domain/policy"
	"github.com/plughost-dev/plughost/domain/resource"
	"github.com/plughost-dev/plughost/hostfuncs"
)

// degradedThreshold is the budget fraction past which a healthy plugin is
// reported degraded.
const degradedThreshold = 0.9

// record is one registered plugin with everything bound to it. The mutex
// serializes executions against this plugin.
type record struct {
	mu sync.Mutex

	plugin   LoadedPlugin
	manifest *entities.PluginManifest
	kind     entities.PluginType
	sandbox  *policy.Sandbox
	tracker  *resource.Tracker
	state    *hostfuncs.HostState
	unloaded bool
}

func (r *record) scope(id string) *hostfuncs.PluginScope {
	limits := r.tracker.Limits()
	pctx := entities.NewPluginContext().
		WithMemoryLimit(limits.MaxMemoryBytes).
		WithFuelLimit(limits.MaxFuel)
	for _, c := range r.sandbox.Grants().Capabilities() {
		pctx = pctx.WithCapability(c)
	}
	return &hostfuncs.PluginScope{
		PluginID: id,
		Context:  pctx,
		Sandbox:  r.sandbox,
		Tracker:  r.tracker,
		State:    r.state,
	}
}

func (r *record) health() entities.HealthStatus {
	if r.unloaded {
		return entities.HealthFailed
	}
	snap := r.tracker.Snapshot()
	if snap.Killed {
		return entities.HealthKilled
	}
	mem, fuel := r.tracker.Utilization()
	if mem >= degradedThreshold || fuel >= degradedThreshold {
		return entities.HealthDegraded
	}
	return entities.HealthHealthy
}

// Registry holds the loaded plugins. The registry map has its own lock;
// each record carries a per-plugin lock so one plugin's execution never
// blocks another's.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*record
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*record)}
}

// add registers a plugin under its id.
func (r *Registry) add(id string, rec *record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[id]; exists {
		return &dErrors.AlreadyRegisteredError{Name: id}
	}
	r.records[id] = rec
	return nil
}

func (r *Registry) get(id string) (*record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, &dErrors.PluginNotFoundError{Name: id}
	}
	return rec, nil
}

// remove unregisters and unloads one plugin.
func (r *Registry) remove(ctx context.Context, id string) error {
	r.mu.Lock()
	rec, ok := r.records[id]
	delete(r.records, id)
	r.mu.Unlock()

	if !ok {
		return &dErrors.PluginNotFoundError{Name: id}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.unloaded {
		return nil
	}
	rec.unloaded = true
	if err := rec.plugin.Unload(ctx); err != nil {
		return &dErrors.ShutdownError{PluginID: id, Err: err}
	}
	return nil
}

// Names returns the registered plugin ids, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.records))
	for id := range r.records {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

// Exists reports whether a plugin is registered under the id.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[id]
	return ok
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Health returns the health of one plugin.
func (r *Registry) Health(id string) (entities.PluginHealth, error) {
	rec, err := r.get(id)
	if err != nil {
		return entities.PluginHealth{}, err
	}
	return entities.PluginHealth{PluginID: id, Status: rec.health()}, nil
}

// HealthAll returns the health of every registered plugin, sorted by id.
func (r *Registry) HealthAll() []entities.PluginHealth {
	names := r.Names()
	out := make([]entities.PluginHealth, 0, len(names))
	for _, id := range names {
		if h, err := r.Health(id); err == nil {
			out = append(out, h)
		}
	}
	return out
}

// shutdownAll unloads every plugin, best-effort. All failures are joined;
// every plugin gets an unload attempt regardless of earlier failures.
func (r *Registry) shutdownAll(ctx context.Context) error {
	r.mu.Lock()
	records := make(map[string]*record, len(r.records))
	for id, rec := range r.records {
		records[id] = rec
	}
	r.records = make(map[string]*record)
	r.mu.Unlock()

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		rec := records[id]
		rec.mu.Lock()
		if !rec.unloaded {
			rec.unloaded = true
			if err := rec.plugin.Unload(ctx); err != nil {
				errs = append(errs, &dErrors.ShutdownError{PluginID: id, Err: err})
			}
		}
		rec.mu.Unlock()
	}
	return errors.Join(errs...)
}
