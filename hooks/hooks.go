// Package hooks dispatches lifecycle events to plugin handlers. Handlers
// run ordered by priority, then by registration order; a handler whose
// plugin has been unloaded is skipped, never aborts the event.
package hooks

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/plughost-dev/plughost/domain/entities"
)

// ErrPluginAbsent is returned by an Invoker when the target plugin is not
// loaded. The dispatcher skips the handler and continues.
var ErrPluginAbsent = errors.New("plugin not loaded")

// Invoker delivers one hook invocation to a plugin handler.
type Invoker interface {
	InvokeHook(ctx context.Context, pluginID, handler string, data entities.HookData) error
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, pluginID, handler string, data entities.HookData) error

func (f InvokerFunc) InvokeHook(ctx context.Context, pluginID, handler string, data entities.HookData) error {
	return f(ctx, pluginID, handler, data)
}

type registration struct {
	entities.HookRegistration
	seq uint64 // registration order, breaks priority ties
}

// systemConfig holds construction options for the HookSystem.
type systemConfig struct {
	logger *slog.Logger
	now    func() time.Time
}

func defaultSystemConfig() systemConfig {
	return systemConfig{
		logger: slog.Default(),
		now:    time.Now,
	}
}

// SystemOption configures a HookSystem.
type SystemOption func(*systemConfig)

// WithLogger sets the structured logger for dispatch diagnostics.
func WithLogger(logger *slog.Logger) SystemOption {
	return func(c *systemConfig) {
		c.logger = logger
	}
}

// WithClock overrides the duration clock. Testing only.
func WithClock(now func() time.Time) SystemOption {
	return func(c *systemConfig) {
		c.now = now
	}
}

// HookSystem routes events to registered plugin handlers. Safe for
// concurrent use; registrations may change while a dispatch is in flight.
type HookSystem struct {
	invoker Invoker
	config  systemConfig

	mu      sync.RWMutex
	byEvent map[string][]registration
	nextSeq uint64
}

// NewHookSystem creates a dispatcher delivering through the given invoker.
func NewHookSystem(invoker Invoker, opts ...SystemOption) *HookSystem {
	cfg := defaultSystemConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &HookSystem{
		invoker: invoker,
		config:  cfg,
		byEvent: make(map[string][]registration),
	}
}

// Register adds one handler for an event. Lower priority values run first;
// equal priorities run in registration order.
func (s *HookSystem) Register(reg entities.HookRegistration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	regs := append(s.byEvent[reg.Event], registration{HookRegistration: reg, seq: s.nextSeq})
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].Priority != regs[j].Priority {
			return regs[i].Priority < regs[j].Priority
		}
		return regs[i].seq < regs[j].seq
	})
	s.byEvent[reg.Event] = regs
}

// UnregisterPlugin removes every handler belonging to the plugin, across
// all events.
func (s *HookSystem) UnregisterPlugin(pluginID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for event, regs := range s.byEvent {
		kept := regs[:0]
		for _, r := range regs {
			if r.PluginID != pluginID {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(s.byEvent, event)
		} else {
			s.byEvent[event] = append([]registration(nil), kept...)
		}
	}
}

// Handlers returns the handler count for an event.
func (s *HookSystem) Handlers(event string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byEvent[event])
}

// Dispatch delivers the event to every registered handler in order. Absent
// plugins are skipped; handler errors are collected and joined, but never
// stop later handlers.
func (s *HookSystem) Dispatch(ctx context.Context, data entities.HookData) (entities.HookExecutionResult, error) {
	s.mu.RLock()
	regs := append([]registration(nil), s.byEvent[data.Event]...)
	s.mu.RUnlock()

	start := s.config.now()
	executed := 0
	var errs []error

	for _, reg := range regs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		err := s.invoker.InvokeHook(ctx, reg.PluginID, reg.Handler, data)
		switch {
		case err == nil:
			executed++
		case errors.Is(err, ErrPluginAbsent):
			s.config.logger.Debug("hook handler skipped, plugin not loaded",
				slog.String("event", data.Event),
				slog.String("plugin", reg.PluginID),
			)
		default:
			s.config.logger.Warn("hook handler failed",
				slog.String("event", data.Event),
				slog.String("plugin", reg.PluginID),
				slog.String("handler", reg.Handler),
				slog.Any("error", err),
			)
			errs = append(errs, err)
		}
	}

	result := entities.HookExecutionResult{
		Duration:         s.config.now().Sub(start),
		HandlersExecuted: executed,
	}
	return result, errors.Join(errs...)
}
