package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plughost-dev/plughost/domain/entities"
	dErrors "github.com/plughost-dev/plughost/domain/errors"
	"github.com/plughost-dev/plughost/hostfuncs"
	"github.com/plughost-dev/plughost/internal/testutil"
	"github.com/plughost-dev/plughost/trust"
)

// fakePlugin is an in-process LoadedPlugin for manager tests.
type fakePlugin struct {
	executeFn func(ctx context.Context, input []byte) ([]byte, error)
	invokeFn  func(ctx context.Context, export string, input []byte) ([]byte, error)
	unloads   atomic.Int32
	unloadErr error
}

func (f *fakePlugin) Execute(ctx context.Context, input []byte) ([]byte, error) {
	if f.executeFn == nil {
		return input, nil
	}
	return f.executeFn(ctx, input)
}

func (f *fakePlugin) Invoke(ctx context.Context, export string, input []byte) ([]byte, error) {
	if f.invokeFn == nil {
		return nil, nil
	}
	return f.invokeFn(ctx, export, input)
}

func (f *fakePlugin) Unload(ctx context.Context) error {
	f.unloads.Add(1)
	return f.unloadErr
}

func quietManager(t *testing.T, opts ...ManagerOption) *Manager {
	t.Helper()
	opts = append(opts, WithManagerLogger(testutil.DiscardLogger()))
	m, err := NewManager(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func minimalManifest(name string) *entities.PluginManifest {
	return &entities.PluginManifest{Name: name, Version: "1.0.0"}
}

func TestExecuteUnknownPlugin(t *testing.T) {
	m := quietManager(t)

	_, err := m.Execute(context.Background(), "nope", nil)
	var notFound *dErrors.PluginNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nope", notFound.Name)
	assert.Equal(t, uint64(1), m.Stats().ExecutionFailures)
}

func TestInitWithoutAutoLoad(t *testing.T) {
	m := quietManager(t)

	n, err := m.Init(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRegisterDuplicate(t *testing.T) {
	m := quietManager(t)

	require.NoError(t, m.Register("dup", &fakePlugin{}, minimalManifest("dup"), entities.PluginTypeWasm))

	err := m.Register("dup", &fakePlugin{}, minimalManifest("dup"), entities.PluginTypeWasm)
	var already *dErrors.AlreadyRegisteredError
	require.ErrorAs(t, err, &already)
}

func TestExecuteReturnsOutputLogsAndSnapshot(t *testing.T) {
	m := quietManager(t)

	plugin := &fakePlugin{
		executeFn: func(ctx context.Context, input []byte) ([]byte, error) {
			scope, ok := hostfuncs.ScopeFrom(ctx)
			require.True(t, ok)
			scope.State.AppendLog("info", "working")
			require.NoError(t, scope.Tracker.ConsumeFuel(5))
			return append([]byte("out:"), input...), nil
		},
	}
	require.NoError(t, m.Register("echo", plugin, minimalManifest("echo"), entities.PluginTypeWasm))

	output, err := m.Execute(context.Background(), "echo", []byte("hi"))
	require.NoError(t, err)

	assert.Equal(t, "echo", output.PluginID)
	assert.Equal(t, []byte("out:hi"), output.Output)
	require.Len(t, output.Logs, 1)
	assert.Equal(t, "working", output.Logs[0].Message)
	assert.Equal(t, uint64(5), output.Resources.FuelConsumed)
	assert.Equal(t, uint64(1), m.Stats().Executions)

	// Logs were drained into the output.
	second, err := m.Execute(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.Len(t, second.Logs, 1)
}

func TestKilledPluginRejectsExecution(t *testing.T) {
	m := quietManager(t)

	manifest := minimalManifest("greedy")
	manifest.Limits = &entities.LimitsManifest{MaxFuel: 10}

	plugin := &fakePlugin{
		executeFn: func(ctx context.Context, input []byte) ([]byte, error) {
			scope, _ := hostfuncs.ScopeFrom(ctx)
			return nil, scope.Tracker.ConsumeFuel(100)
		},
	}
	require.NoError(t, m.Register("greedy", plugin, manifest, entities.PluginTypeWasm))

	_, err := m.Execute(context.Background(), "greedy", nil)
	var limitErr *dErrors.ResourceLimitError
	require.ErrorAs(t, err, &limitErr)

	health, err := m.Health("greedy")
	require.NoError(t, err)
	assert.Equal(t, entities.HealthKilled, health.Status)

	_, err = m.Execute(context.Background(), "greedy", nil)
	var killed *dErrors.PluginKilledError
	require.ErrorAs(t, err, &killed)
}

func TestHealthDegradedNearBudget(t *testing.T) {
	m := quietManager(t)

	manifest := minimalManifest("heavy")
	manifest.Limits = &entities.LimitsManifest{MaxFuel: 100}

	plugin := &fakePlugin{
		executeFn: func(ctx context.Context, input []byte) ([]byte, error) {
			scope, _ := hostfuncs.ScopeFrom(ctx)
			return nil, scope.Tracker.ConsumeFuel(95)
		},
	}
	require.NoError(t, m.Register("heavy", plugin, manifest, entities.PluginTypeWasm))

	_, err := m.Execute(context.Background(), "heavy", nil)
	require.NoError(t, err)

	health, err := m.Health("heavy")
	require.NoError(t, err)
	assert.Equal(t, entities.HealthDegraded, health.Status)
}

func TestManifestGrantsFlowIntoSandbox(t *testing.T) {
	m := quietManager(t)

	manifest := minimalManifest("scoped")
	manifest.Capabilities = []string{"env", "notifications"}
	manifest.FSRead = []string{"/data"}

	var sawEnv, sawShell, sawRead, sawEtc bool
	var ctxEnv, ctxShell bool
	plugin := &fakePlugin{
		executeFn: func(ctx context.Context, input []byte) ([]byte, error) {
			scope, _ := hostfuncs.ScopeFrom(ctx)
			sawEnv = scope.Sandbox.CheckCapability(entities.CapabilityEnvironment)
			sawShell = scope.Sandbox.CheckCapability(entities.CapabilityShell)
			sawRead = scope.Sandbox.CheckFileRead("/data/input.csv")
			sawEtc = scope.Sandbox.CheckFileRead("/etc/passwd")
			ctxEnv = scope.Context.HasCapability(entities.CapabilityEnvironment)
			ctxShell = scope.Context.HasCapability(entities.CapabilityShell)
			return nil, nil
		},
	}
	require.NoError(t, m.Register("scoped", plugin, manifest, entities.PluginTypeWasm))

	_, err := m.Execute(context.Background(), "scoped", nil)
	require.NoError(t, err)

	assert.True(t, sawEnv)
	assert.False(t, sawShell)
	assert.True(t, sawRead)
	assert.False(t, sawEtc)
	assert.True(t, ctxEnv)
	assert.False(t, ctxShell)

	// Every sandbox check landed in the audit trail; the pure context
	// queries did not.
	audit, err := m.AuditLog("scoped")
	require.NoError(t, err)
	assert.Len(t, audit, 4)
}

func TestExecuteFiresLifecycleHooks(t *testing.T) {
	m := quietManager(t)

	manifest := minimalManifest("observer")
	manifest.Hooks = []entities.HookManifest{
		{Event: HookBeforeExecute, Handler: "on_before"},
		{Event: HookAfterExecute, Handler: "on_after"},
	}

	var events []string
	var payloads []string
	observer := &fakePlugin{
		invokeFn: func(ctx context.Context, export string, input []byte) ([]byte, error) {
			events = append(events, export)
			payloads = append(payloads, string(input))
			return nil, nil
		},
	}
	require.NoError(t, m.Register("observer", observer, manifest, entities.PluginTypeWasm))
	require.NoError(t, m.Register("worker", &fakePlugin{}, minimalManifest("worker"), entities.PluginTypeWasm))

	_, err := m.Execute(context.Background(), "worker", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"on_before", "on_after"}, events)
	require.Len(t, payloads, 2)
	assert.Contains(t, payloads[0], "worker")
	assert.Contains(t, payloads[1], "worker")
}

func TestHooksDispatchThroughManager(t *testing.T) {
	m := quietManager(t)

	manifest := minimalManifest("listener")
	manifest.Hooks = []entities.HookManifest{
		{Event: "file.saved", Handler: "on_save", Priority: 1},
	}

	var invoked []string
	plugin := &fakePlugin{
		invokeFn: func(ctx context.Context, export string, input []byte) ([]byte, error) {
			invoked = append(invoked, export)
			return nil, nil
		},
	}
	require.NoError(t, m.Register("listener", plugin, manifest, entities.PluginTypeWasm))

	result, err := m.DispatchHook(context.Background(), entities.NewHookData("file.saved"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.HandlersExecuted)
	assert.Equal(t, []string{"on_save"}, invoked)

	// Unload removes the subscription; the event now reaches nobody.
	require.NoError(t, m.Unload(context.Background(), "listener"))

	result, err = m.DispatchHook(context.Background(), entities.NewHookData("file.saved"))
	require.NoError(t, err)
	assert.Equal(t, 0, result.HandlersExecuted)
	assert.Equal(t, uint64(2), m.Stats().HooksDispatched)
}

func TestUnloadedPluginSkippedByHooks(t *testing.T) {
	m := quietManager(t)

	manifest := minimalManifest("gone")
	manifest.Hooks = []entities.HookManifest{{Event: "tick", Handler: "on_tick"}}
	require.NoError(t, m.Register("gone", &fakePlugin{}, manifest, entities.PluginTypeWasm))

	// Remove from the registry but leave the hook registered, simulating a
	// dispatch racing an unload.
	require.NoError(t, m.registry.remove(context.Background(), "gone"))

	result, err := m.DispatchHook(context.Background(), entities.NewHookData("tick"))
	require.NoError(t, err, "absent plugin is skipped, not an error")
	assert.Equal(t, 0, result.HandlersExecuted)
}

func TestShutdown(t *testing.T) {
	m := quietManager(t)

	good := &fakePlugin{}
	bad := &fakePlugin{unloadErr: errors.New("stuck")}
	require.NoError(t, m.Register("good", good, minimalManifest("good"), entities.PluginTypeWasm))
	require.NoError(t, m.Register("bad", bad, minimalManifest("bad"), entities.PluginTypeWasm))

	err := m.Shutdown(context.Background())
	require.Error(t, err)

	var shutdownErr *dErrors.ShutdownError
	require.ErrorAs(t, err, &shutdownErr)
	assert.Equal(t, "bad", shutdownErr.PluginID)

	// Both plugins got an unload attempt despite the failure.
	assert.Equal(t, int32(1), good.unloads.Load())
	assert.Equal(t, int32(1), bad.unloads.Load())
	assert.Equal(t, 0, m.Stats().Plugins)

	// Idempotent.
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestRegisterRejectsUnknownCapability(t *testing.T) {
	m := quietManager(t)

	manifest := minimalManifest("bogus")
	manifest.Capabilities = []string{"teleport"}

	err := m.Register("bogus", &fakePlugin{}, manifest, entities.PluginTypeWasm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teleport")
}

func TestDescribe(t *testing.T) {
	m := quietManager(t)

	manifest := minimalManifest("inspector")
	manifest.Author = "alice"
	manifest.Capabilities = []string{"fs.write", "env"}
	require.NoError(t, m.Register("inspector", &fakePlugin{}, manifest, entities.PluginTypeNative))

	info, err := m.Describe("inspector")
	require.NoError(t, err)

	assert.Equal(t, "inspector", info.ID)
	assert.Equal(t, "1.0.0", info.Version)
	assert.Equal(t, "alice", info.Author)
	assert.Equal(t, entities.PluginTypeNative, info.Type)
	assert.ElementsMatch(t,
		[]entities.Capability{entities.CapabilityFileWrite, entities.CapabilityEnvironment},
		info.Capabilities)
	assert.Equal(t, entities.RiskLevelHigh, info.Risk, "fs.write is a dangerous capability")
	assert.Equal(t, entities.HealthHealthy, info.Health)

	_, err = m.Describe("missing")
	var notFound *dErrors.PluginNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestExistsAndPluginCount(t *testing.T) {
	m := quietManager(t)

	assert.False(t, m.Exists("solo"))
	assert.Equal(t, 0, m.PluginCount())

	require.NoError(t, m.Register("solo", &fakePlugin{}, minimalManifest("solo"), entities.PluginTypeWasm))

	assert.True(t, m.Exists("solo"))
	assert.Equal(t, 1, m.PluginCount())

	require.NoError(t, m.Unload(context.Background(), "solo"))
	assert.False(t, m.Exists("solo"))
	assert.Equal(t, 0, m.PluginCount())
}

func TestCheckHelpersReturnTypedDenials(t *testing.T) {
	m := quietManager(t)

	manifest := minimalManifest("guarded")
	manifest.Capabilities = []string{"env"}
	manifest.FSRead = []string{"/data"}
	require.NoError(t, m.Register("guarded", &fakePlugin{}, manifest, entities.PluginTypeWasm))

	assert.NoError(t, m.CheckCapability("guarded", entities.CapabilityEnvironment))

	var capErr *dErrors.CapabilityDeniedError
	require.ErrorAs(t, m.CheckCapability("guarded", entities.CapabilityShell), &capErr)
	assert.Equal(t, "guarded", capErr.PluginID)
	assert.Equal(t, entities.CapabilityShell, capErr.Capability)

	assert.NoError(t, m.CheckFileAccess("guarded", "/data/in.csv", false))

	var pathErr *dErrors.PathNotAllowedError
	require.ErrorAs(t, m.CheckFileAccess("guarded", "/data/in.csv", true), &pathErr)
	assert.True(t, pathErr.Write)

	var netErr *dErrors.NetworkDeniedError
	require.ErrorAs(t, m.CheckNetworkAccess("guarded", "example.com", 443), &netErr)
	assert.Equal(t, 443, netErr.Port)

	// Every helper check landed in the audit trail.
	audit, err := m.AuditLog("guarded")
	require.NoError(t, err)
	assert.Len(t, audit, 5)

	var notFound *dErrors.PluginNotFoundError
	require.ErrorAs(t, m.CheckCapability("missing", entities.CapabilityShell), &notFound)
}

// stubParser returns a fixed manifest for any path.
type stubParser struct {
	manifest *entities.PluginManifest
	err      error
}

func (s *stubParser) Parse(data []byte) (*entities.PluginManifest, error) {
	return s.manifest, s.err
}

func (s *stubParser) ParseFile(path string) (*entities.PluginManifest, error) {
	return s.manifest, s.err
}

func writeArtifact(t *testing.T, dir, name string, content, sig []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	if sig != nil {
		require.NoError(t, os.WriteFile(path+SignatureSuffix, sig, 0o600))
	}
	return path
}

func TestLoadArtifactTrustPipeline(t *testing.T) {
	kp, err := trust.GenerateKeypair()
	require.NoError(t, err)

	artifact := []byte("not really wasm")
	sig, err := trust.Sign(kp.Private, artifact)
	require.NoError(t, err)

	newManager := func(t *testing.T, manifest *entities.PluginManifest) (*Manager, *trust.Verifier) {
		verifier := trust.NewVerifier()
		require.NoError(t, verifier.AddTrustedKey("alice", kp.Public))
		m := quietManager(t,
			WithVerifier(verifier),
			WithManifestParser(&stubParser{manifest: manifest}),
		)
		return m, verifier
	}

	t.Run("unknown extension", func(t *testing.T) {
		m, _ := newManager(t, minimalManifest("p"))
		err := m.LoadArtifact(context.Background(), "/tmp/plugin.txt")
		var notSupported *dErrors.NotSupportedError
		require.ErrorAs(t, err, &notSupported)
	})

	t.Run("missing signature", func(t *testing.T) {
		m, _ := newManager(t, minimalManifest("p"))
		path := writeArtifact(t, t.TempDir(), "p.wasm", artifact, nil)

		err := m.LoadArtifact(context.Background(), path)
		var sigErr *dErrors.SignatureError
		require.ErrorAs(t, err, &sigErr)
	})

	t.Run("untrusted signature", func(t *testing.T) {
		m, _ := newManager(t, minimalManifest("p"))
		other, err := trust.GenerateKeypair()
		require.NoError(t, err)
		otherSig, err := trust.Sign(other.Private, artifact)
		require.NoError(t, err)
		path := writeArtifact(t, t.TempDir(), "p.wasm", artifact, otherSig)

		err = m.LoadArtifact(context.Background(), path)
		var untrusted *dErrors.UntrustedKeyError
		require.ErrorAs(t, err, &untrusted)
	})

	t.Run("revoked author", func(t *testing.T) {
		m, verifier := newManager(t, minimalManifest("p"))
		verifier.RevokeAuthor("alice")
		path := writeArtifact(t, t.TempDir(), "p.wasm", artifact, sig)

		err := m.LoadArtifact(context.Background(), path)
		var revoked *dErrors.AuthorRevokedError
		require.ErrorAs(t, err, &revoked)
		assert.Equal(t, "alice", revoked.Author)
	})

	t.Run("manifest author mismatch", func(t *testing.T) {
		manifest := minimalManifest("p")
		manifest.Author = "bob"
		m, _ := newManager(t, manifest)
		path := writeArtifact(t, t.TempDir(), "p.wasm", artifact, sig)

		err := m.LoadArtifact(context.Background(), path)
		var sigErr *dErrors.SignatureError
		require.ErrorAs(t, err, &sigErr)
		assert.Contains(t, err.Error(), "bob")
	})

	t.Run("verified artifact that is not wasm fails instantiation", func(t *testing.T) {
		m, _ := newManager(t, minimalManifest("p"))
		path := writeArtifact(t, t.TempDir(), "p.wasm", artifact, sig)

		err := m.LoadArtifact(context.Background(), path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "loading wasm plugin")
	})
}

func TestInitRequiresVerifierAndParser(t *testing.T) {
	t.Run("no verifier", func(t *testing.T) {
		m := quietManager(t, WithAutoLoad(true), WithPluginDir(t.TempDir()))
		_, err := m.Init(context.Background())
		var initErr *dErrors.InitError
		require.ErrorAs(t, err, &initErr)
	})

	t.Run("no parser", func(t *testing.T) {
		m := quietManager(t,
			WithAutoLoad(true),
			WithPluginDir(t.TempDir()),
			WithVerifier(trust.NewVerifier()),
		)
		_, err := m.Init(context.Background())
		var initErr *dErrors.InitError
		require.ErrorAs(t, err, &initErr)
	})
}

func TestInitSkipsBadArtifacts(t *testing.T) {
	dir := t.TempDir()
	// Unsigned artifact: discovery logs and skips it.
	writeArtifact(t, dir, "bad.wasm", []byte("junk"), nil)
	// Non-artifact files are ignored outright.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs"), 0o600))

	m := quietManager(t,
		WithAutoLoad(true),
		WithPluginDir(dir),
		WithVerifier(trust.NewVerifier()),
		WithManifestParser(&stubParser{manifest: minimalManifest("p")}),
	)

	n, err := m.Init(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
