package hostfuncs

import (
	"context"
	"log/slog"

	"github.com/plughost-dev/plughost/domain/entities"
	dErrors "github.com/plughost-dev/plughost/domain/errors"
)

// Middleware wraps a ByteHandler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
type Middleware func(next ByteHandler) ByteHandler

// RegistryOption is a functional option for configuring a HandlerRegistry.
type RegistryOption func(*registryBuilder)

// PanicRecoveryMiddleware returns a middleware that catches panics and
// converts them to structured ErrorResponse JSON instead of crashing the
// host.
func PanicRecoveryMiddleware() Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp = NewPanicError(r).ToJSON()
					err = nil // Return JSON error, not Go error
				}
			}()
			return next(ctx, payload)
		}
	}
}

// CapabilityTable maps host function names to the capability a caller must
// hold. Functions absent from the table require no capability.
type CapabilityTable map[string]entities.Capability

// DefaultCapabilityTable returns the gate for the core bundle: the
// key-value store is environment access, logging is a notification
// channel.
func DefaultCapabilityTable() CapabilityTable {
	return CapabilityTable{
		FuncKVGet: entities.CapabilityEnvironment,
		FuncKVSet: entities.CapabilityEnvironment,
		FuncLog:   entities.CapabilityNotifications,
	}
}

// CapabilityMiddleware returns a middleware that checks the caller's
// sandbox before the handler runs. Calls without a bound PluginScope are
// denied outright; the sandbox records every decision in its audit trail.
func CapabilityMiddleware(table CapabilityTable) Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			funcName := ""
			if hc, ok := ctx.(HostContext); ok {
				funcName = hc.FunctionName()
			}

			required, gated := table[funcName]
			if !gated {
				return next(ctx, payload)
			}

			scope, ok := ScopeFrom(ctx)
			if !ok || scope.Sandbox == nil {
				return NewDeniedError("no plugin scope bound").ToJSON(), nil
			}
			if !scope.Sandbox.CheckCapability(required) {
				denied := &dErrors.CapabilityDeniedError{PluginID: scope.PluginID, Capability: required}
				return NewDeniedError(denied.Error()).ToJSON(), nil
			}
			return next(ctx, payload)
		}
	}
}

// FuelMeteringMiddleware returns a middleware that charges a flat fuel cost
// per host function call and rejects calls from killed or timed-out
// plugins.
func FuelMeteringMiddleware(costPerCall uint64) Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			scope, ok := ScopeFrom(ctx)
			if !ok || scope.Tracker == nil {
				return next(ctx, payload)
			}
			if err := scope.Tracker.CheckTimeout(); err != nil {
				return NewResourceError(err.Error()).ToJSON(), nil
			}
			if err := scope.Tracker.ConsumeFuel(costPerCall); err != nil {
				return NewResourceError(err.Error()).ToJSON(), nil
			}
			return next(ctx, payload)
		}
	}
}

// SlogMiddleware returns a middleware that logs host function invocations
// through a structured logger.
func SlogMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			funcName := "unknown"
			if hc, ok := ctx.(HostContext); ok {
				funcName = hc.FunctionName()
			}
			pluginID := ""
			if scope, ok := ScopeFrom(ctx); ok {
				pluginID = scope.PluginID
			}

			resp, err := next(ctx, payload)
			if err != nil {
				logger.Error("host function failed",
					slog.String("func", funcName),
					slog.String("plugin", pluginID),
					slog.Any("error", err),
				)
			} else {
				logger.Debug("host function completed",
					slog.String("func", funcName),
					slog.String("plugin", pluginID),
				)
			}
			return resp, err
		}
	}
}
