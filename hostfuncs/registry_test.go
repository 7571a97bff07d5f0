package hostfuncs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plughost-dev/plughost/internal/testutil"
)

func echoHandler(ctx context.Context, payload []byte) ([]byte, error) {
	return payload, nil
}

func TestRegistryInvoke(t *testing.T) {
	registry, err := NewRegistry(WithByteHandler("echo", echoHandler))
	require.NoError(t, err)

	resp, err := registry.Invoke(context.Background(), "echo", []byte(`{"x":1}`))
	require.NoError(t, err)
	testutil.AssertJSONEqual(t, `{"x":1}`, string(resp))
}

func TestRegistryUnknownHandlerReturnsNotFound(t *testing.T) {
	registry, err := NewRegistry(WithByteHandler("echo", echoHandler))
	require.NoError(t, err)

	resp, err := registry.Invoke(context.Background(), "missing", nil)
	require.NoError(t, err)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(resp, &errResp))
	assert.Equal(t, "NOT_FOUND", errResp.Error)
	assert.Equal(t, 404, errResp.Code)
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry(
		WithByteHandler("echo", echoHandler),
		WithByteHandler("echo", echoHandler),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate handler name")
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	_, err := NewRegistry(WithByteHandler("", echoHandler))
	require.Error(t, err)
}

func TestRegistryNames(t *testing.T) {
	registry, err := NewRegistry(
		WithByteHandler("zeta", echoHandler),
		WithByteHandler("alpha", echoHandler),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha", "zeta"}, registry.Names())
	assert.True(t, registry.Has("alpha"))
	assert.False(t, registry.Has("beta"))
}

func TestMiddlewareFIFOOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next ByteHandler) ByteHandler {
			return func(ctx context.Context, payload []byte) ([]byte, error) {
				order = append(order, name)
				return next(ctx, payload)
			}
		}
	}

	registry, err := NewRegistry(
		WithMiddleware(mark("first"), mark("second")),
		WithByteHandler("echo", echoHandler),
	)
	require.NoError(t, err)

	_, err = registry.Invoke(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestPanicRecoveryMiddleware(t *testing.T) {
	panicking := func(ctx context.Context, payload []byte) ([]byte, error) {
		panic("handler exploded")
	}

	registry, err := NewRegistry(
		WithMiddleware(PanicRecoveryMiddleware()),
		WithByteHandler("boom", panicking),
	)
	require.NoError(t, err)

	resp, err := registry.Invoke(context.Background(), "boom", nil)
	require.NoError(t, err, "panics become JSON errors, not Go errors")

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(resp, &errResp))
	assert.Equal(t, "INTERNAL_ERROR", errResp.Error)
	assert.Contains(t, errResp.Message, "handler exploded")
}

func TestNewJSONHandlerRejectsMalformedRequest(t *testing.T) {
	handler := NewJSONHandler(func(ctx context.Context, req KVGetRequest) KVGetResponse {
		return KVGetResponse{Found: true}
	})

	resp, err := handler(context.Background(), []byte(`{not json`))
	require.NoError(t, err)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(resp, &errResp))
	assert.Equal(t, "VALIDATION_ERROR", errResp.Error)
}

func TestHostContextValues(t *testing.T) {
	hctx := NewHostContext(context.Background(), "kv_get")
	assert.Equal(t, "kv_get", hctx.FunctionName())

	hctx.SetValue("k", 42)
	v, ok := hctx.GetValue("k")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = hctx.GetValue("absent")
	assert.False(t, ok)

	// Re-wrapping an existing HostContext is a no-op.
	same := HostContextFrom(hctx, "other")
	assert.Equal(t, "kv_get", same.FunctionName())
}
