package entities

import "time"

// HookData identifies one lifecycle event being dispatched, plus any
// event-scoped payload the host wants handlers to see.
type HookData struct {
	Event   string
	Payload map[string]any
}

// NewHookData creates hook data for the named event.
func NewHookData(event string) HookData {
	return HookData{Event: event}
}

// WithPayload returns a copy of the hook data with a payload value set.
func (d HookData) WithPayload(key string, value any) HookData {
	payload := make(map[string]any, len(d.Payload)+1)
	for k, v := range d.Payload {
		payload[k] = v
	}
	payload[key] = value
	d.Payload = payload
	return d
}

// HookRegistration is one subscriber: a named handler owned by a plugin,
// attached to one event. Lower priority fires first.
type HookRegistration struct {
	Event    string
	PluginID string
	Handler  string
	Priority int
	Metadata map[string]string
}

// HookExecutionResult reports one dispatch fan-out.
type HookExecutionResult struct {
	// Duration is the wall-clock time for the full fan-out.
	Duration time.Duration

	// HandlersExecuted counts only handlers that actually ran; handlers
	// skipped because their plugin disappeared are not counted.
	HandlersExecuted int
}
