package entities

// HealthStatus is the coarse health of one loaded plugin.
type HealthStatus int

const (
	// HealthHealthy means the plugin is loaded and within budget.
	HealthHealthy HealthStatus = iota

	// HealthDegraded means the plugin is close to a resource budget.
	HealthDegraded

	// HealthKilled means a budget violation permanently disabled the plugin.
	HealthKilled

	// HealthFailed means the plugin instance is no longer usable.
	HealthFailed
)

// String returns the human-readable name of the health status.
func (h HealthStatus) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthDegraded:
		return "degraded"
	case HealthKilled:
		return "killed"
	case HealthFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PluginHealth pairs a plugin id with its health status.
type PluginHealth struct {
	PluginID string
	Status   HealthStatus
}
