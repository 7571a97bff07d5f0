package entities

import "time"

// LogEntry is one structured log line emitted by a plugin through the host
// function bridge.
type LogEntry struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionOutput is the result of one plugin execution.
type ExecutionOutput struct {
	// PluginID is the plugin that produced this output.
	PluginID string

	// Output is the raw bytes returned by the plugin's entry point.
	Output []byte

	// Logs are the bridge log entries captured during this call.
	Logs []LogEntry

	// Resources is the plugin's consumption after the call.
	Resources ResourceSnapshot

	// Duration is the wall-clock time of the call.
	Duration time.Duration
}
