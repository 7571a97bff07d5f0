package hostfuncs

import (
	"context"
	"log/slog"
)

// Core bundle function names. These are the names plugins import.
const (
	FuncKVGet = "kv_get"
	FuncKVSet = "kv_set"
	FuncLog   = "log"
)

// KVGetRequest asks for one key from the plugin's key-value store.
type KVGetRequest struct {
	Key string `json:"key"`
}

// KVGetResponse carries the value, or Found=false for a missing key.
type KVGetResponse struct {
	Value string `json:"value"`
	Found bool   `json:"found"`
}

// KVSetRequest stores one key-value pair.
type KVSetRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// KVSetResponse reports whether the value was stored.
type KVSetResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// LogRequest emits one log line from the plugin.
type LogRequest struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// LogResponse acknowledges the log call.
type LogResponse struct {
	OK bool `json:"ok"`
}

// CoreBundle returns the kv_get, kv_set and log handlers. Handlers operate
// on the calling plugin's scope; calls without a bound scope fail with a
// validation error rather than touching shared state.
func CoreBundle(logger *slog.Logger) map[string]ByteHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return map[string]ByteHandler{
		FuncKVGet: NewJSONHandler(func(ctx context.Context, req KVGetRequest) KVGetResponse {
			scope, ok := ScopeFrom(ctx)
			if !ok || scope.State == nil {
				return KVGetResponse{}
			}
			value, found := scope.State.Get(req.Key)
			return KVGetResponse{Value: value, Found: found}
		}),

		FuncKVSet: NewJSONHandler(func(ctx context.Context, req KVSetRequest) KVSetResponse {
			scope, ok := ScopeFrom(ctx)
			if !ok || scope.State == nil {
				return KVSetResponse{Error: "no plugin scope bound"}
			}
			if req.Key == "" {
				return KVSetResponse{Error: "empty key"}
			}
			if !scope.State.Set(req.Key, req.Value) {
				return KVSetResponse{Error: "value too large"}
			}
			return KVSetResponse{OK: true}
		}),

		FuncLog: NewJSONHandler(func(ctx context.Context, req LogRequest) LogResponse {
			scope, ok := ScopeFrom(ctx)
			if !ok || scope.State == nil {
				return LogResponse{}
			}
			level := req.Level
			if level == "" {
				level = "info"
			}
			scope.State.AppendLog(level, req.Message)
			logger.Debug("plugin log",
				slog.String("plugin", scope.PluginID),
				slog.String("level", level),
				slog.String("message", req.Message),
			)
			return LogResponse{OK: true}
		}),
	}
}

// DefaultRegistry builds the registry most hosts want: panic recovery,
// capability gating over the default table, flat fuel metering, call
// logging, and the core bundle.
func DefaultRegistry(logger *slog.Logger, fuelPerCall uint64) (*HandlerRegistry, error) {
	return NewRegistry(
		WithMiddleware(
			PanicRecoveryMiddleware(),
			CapabilityMiddleware(DefaultCapabilityTable()),
			FuelMeteringMiddleware(fuelPerCall),
			SlogMiddleware(logger),
		),
		WithBundle(CoreBundle(logger)),
	)
}
