// Package hostfuncs implements the host function bridge: the named,
// capability-gated functions a plugin may call back into. Handlers exchange
// JSON payloads so WASM and native plugins share one calling convention.
package hostfuncs

import (
	"context"
	"encoding/json"
	"fmt"
)

// HostFunc is a typed host function: a context and a typed request in, a
// typed response out.
type HostFunc[Req any, Resp any] func(context.Context, Req) Resp

// ByteHandler accepts raw JSON bytes and returns raw JSON bytes. This is
// the calling convention plugin runtimes use.
type ByteHandler func(context.Context, []byte) ([]byte, error)

// NewJSONHandler wraps a typed HostFunc into a ByteHandler. Malformed
// request JSON produces a structured ErrorResponse rather than a trap, so
// a buggy plugin gets a parseable error back.
func NewJSONHandler[Req any, Resp any](fn HostFunc[Req, Resp]) ByteHandler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		var req Req
		if err := json.Unmarshal(payload, &req); err != nil {
			return NewValidationError("malformed request: " + err.Error()).ToJSON(), nil
		}

		resp := fn(ctx, req)

		respBytes, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("marshaling response: %w", err)
		}
		return respBytes, nil
	}
}
