package host

import (
	"log/slog"

	"github.com/plughost-dev/plughost/domain/entities"
	"github.com/plughost-dev/plughost/domain/ports"
	"github.com/plughost-dev/plughost/hostfuncs"
	"github.com/plughost-dev/plughost/trust"
)

// managerConfig holds construction options for the Manager.
type managerConfig struct {
	pluginDir     string
	autoLoad      bool
	defaultLimits entities.ResourceLimits
	fuelPerCall   uint64
	logger        *slog.Logger
	verifier      *trust.Verifier
	parser        ports.ManifestParser
	hostFuncs     *hostfuncs.HandlerRegistry
}

func defaultManagerConfig() managerConfig {
	return managerConfig{
		defaultLimits: entities.DefaultResourceLimits(),
		fuelPerCall:   1,
		logger:        slog.Default(),
	}
}

// ManagerOption configures the Manager.
type ManagerOption func(*managerConfig)

// WithPluginDir sets the directory Init scans for plugin artifacts.
func WithPluginDir(dir string) ManagerOption {
	return func(c *managerConfig) {
		c.pluginDir = dir
	}
}

// WithAutoLoad enables artifact discovery during Init.
func WithAutoLoad(enabled bool) ManagerOption {
	return func(c *managerConfig) {
		c.autoLoad = enabled
	}
}

// WithDefaultLimits sets the budget plugins get when their manifest does
// not override it.
func WithDefaultLimits(limits entities.ResourceLimits) ManagerOption {
	return func(c *managerConfig) {
		c.defaultLimits = limits
	}
}

// WithFuelPerHostCall sets the flat fuel cost charged per host function
// call.
func WithFuelPerHostCall(cost uint64) ManagerOption {
	return func(c *managerConfig) {
		c.fuelPerCall = cost
	}
}

// WithManagerLogger sets the structured logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(c *managerConfig) {
		c.logger = logger
	}
}

// WithVerifier sets the trust verifier artifacts are checked against.
// Discovery refuses to run without one.
func WithVerifier(v *trust.Verifier) ManagerOption {
	return func(c *managerConfig) {
		c.verifier = v
	}
}

// WithManifestParser sets the manifest parser used during discovery.
func WithManifestParser(p ports.ManifestParser) ManagerOption {
	return func(c *managerConfig) {
		c.parser = p
	}
}

// WithHostFunctions replaces the default host function registry.
func WithHostFunctions(r *hostfuncs.HandlerRegistry) ManagerOption {
	return func(c *managerConfig) {
		c.hostFuncs = r
	}
}
