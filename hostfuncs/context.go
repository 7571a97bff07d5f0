package hostfuncs

import (
	"context"

	"github.com/plughost-dev/plughost/domain/entities"
	"github.com/plughost-dev/plughost/domain/policy"
	"github.com/plughost-dev/plughost/domain/resource"
)

// PluginScope is the per-call identity a handler runs under: which plugin
// is calling, its granted context, its sandbox, its resource tracker and
// its bridge state. Middleware reads the scope to enforce policy before
// the handler runs; plugins read Context for pure capability queries that
// should not land in the audit trail.
type PluginScope struct {
	PluginID string
	Context  entities.PluginContext
	Sandbox  *policy.Sandbox
	Tracker  *resource.Tracker
	State    *HostState
}

type scopeContextKey struct{}

// WithScope binds a plugin scope to the context for the duration of a call.
func WithScope(ctx context.Context, scope *PluginScope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFrom extracts the plugin scope bound by WithScope.
func ScopeFrom(ctx context.Context) (*PluginScope, bool) {
	scope, ok := ctx.Value(scopeContextKey{}).(*PluginScope)
	return scope, ok
}

// HostContext wraps a standard context.Context with host function-specific
// helpers: the invoked function name and request-scoped values middleware
// can share without allocating new contexts per link in the chain.
type HostContext interface {
	context.Context

	// FunctionName returns the name of the host function being invoked.
	FunctionName() string

	// SetValue stores a request-scoped value. Unlike context.WithValue,
	// this mutates the existing HostContext.
	SetValue(key, value any)

	// GetValue retrieves a request-scoped value set by SetValue.
	GetValue(key any) (value any, ok bool)
}

type hostContext struct {
	context.Context
	values   map[any]any
	funcName string
}

// NewHostContext creates a new HostContext wrapping the given context.
func NewHostContext(ctx context.Context, funcName string) HostContext {
	return &hostContext{
		Context:  ctx,
		funcName: funcName,
		values:   make(map[any]any),
	}
}

func (c *hostContext) FunctionName() string {
	return c.funcName
}

func (c *hostContext) SetValue(key, value any) {
	c.values[key] = value
}

func (c *hostContext) GetValue(key any) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// HostContextFrom returns ctx when it already is a HostContext, otherwise
// wraps it with the given function name.
func HostContextFrom(ctx context.Context, funcName string) HostContext {
	if hc, ok := ctx.(HostContext); ok {
		return hc
	}
	return NewHostContext(ctx, funcName)
}
