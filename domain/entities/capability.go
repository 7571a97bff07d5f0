package entities

import "fmt"

// Capability is a single permission a plugin may hold. The set is closed:
// risk assessment and manifest validation enumerate it exhaustively, so a
// new capability must be added here and in capabilityRegistry together.
type Capability int

const (
	CapabilityNetwork Capability = iota
	CapabilityFileRead
	CapabilityFileWrite
	CapabilityShell
	CapabilityEnvironment
	CapabilityClipboard
	CapabilityNotifications
	CapabilityMedia
	CapabilityLocation
	CapabilityBrowser
	CapabilityLLMAccess
	CapabilitySystem
)

// CapabilityInfo provides metadata about a capability.
type CapabilityInfo struct {
	// Name is the stable identifier used in manifests and audit entries.
	Name string

	// DisplayName is a human-readable name.
	DisplayName string

	// Description explains what the capability allows.
	Description string

	// Dangerous marks capabilities that can alter or take over the host.
	Dangerous bool

	// Risk indicates how dangerous this capability is.
	Risk RiskLevel
}

// capabilityRegistry holds metadata about all known capabilities.
var capabilityRegistry = map[Capability]CapabilityInfo{
	CapabilityNetwork: {
		Name:        "network",
		DisplayName: "Network Access",
		Description: "Make outbound network requests",
		Risk:        RiskLevelMedium,
	},
	CapabilityFileRead: {
		Name:        "fs.read",
		DisplayName: "File Read",
		Description: "Read files under granted roots",
		Risk:        RiskLevelMedium,
	},
	CapabilityFileWrite: {
		Name:        "fs.write",
		DisplayName: "File Write",
		Description: "Write files under granted roots",
		Dangerous:   true,
		Risk:        RiskLevelHigh,
	},
	CapabilityShell: {
		Name:        "shell",
		DisplayName: "Shell Access",
		Description: "Execute shell commands",
		Dangerous:   true,
		Risk:        RiskLevelCritical,
	},
	CapabilityEnvironment: {
		Name:        "env",
		DisplayName: "Environment Access",
		Description: "Read host environment and key/value state",
		Risk:        RiskLevelMedium,
	},
	CapabilityClipboard: {
		Name:        "clipboard",
		DisplayName: "Clipboard Access",
		Description: "Read and write the host clipboard",
		Risk:        RiskLevelMedium,
	},
	CapabilityNotifications: {
		Name:        "notifications",
		DisplayName: "Notifications",
		Description: "Emit notifications and log lines to the host",
		Risk:        RiskLevelLow,
	},
	CapabilityMedia: {
		Name:        "media",
		DisplayName: "Media Access",
		Description: "Access camera, microphone or screen capture",
		Risk:        RiskLevelHigh,
	},
	CapabilityLocation: {
		Name:        "location",
		DisplayName: "Location Access",
		Description: "Read host location information",
		Risk:        RiskLevelMedium,
	},
	CapabilityBrowser: {
		Name:        "browser",
		DisplayName: "Browser Access",
		Description: "Open URLs or drive the host browser",
		Risk:        RiskLevelMedium,
	},
	CapabilityLLMAccess: {
		Name:        "llm",
		DisplayName: "LLM Access",
		Description: "Invoke the host's language model providers",
		Risk:        RiskLevelMedium,
	},
	CapabilitySystem: {
		Name:        "system",
		DisplayName: "System Access",
		Description: "Query and control host process internals",
		Dangerous:   true,
		Risk:        RiskLevelCritical,
	},
}

// String returns the stable manifest identifier of the capability.
func (c Capability) String() string {
	if info, ok := capabilityRegistry[c]; ok {
		return info.Name
	}
	return fmt.Sprintf("capability(%d)", int(c))
}

// Info returns the metadata for the capability.
func (c Capability) Info() (CapabilityInfo, bool) {
	info, ok := capabilityRegistry[c]
	return info, ok
}

// IsDangerous reports whether the capability can alter or take over the host.
// Capabilities without registry metadata default to not dangerous.
func (c Capability) IsDangerous() bool {
	info, ok := capabilityRegistry[c]
	return ok && info.Dangerous
}

// IsValid reports whether the capability is a member of the closed set.
func (c Capability) IsValid() bool {
	_, ok := capabilityRegistry[c]
	return ok
}

// ParseCapability resolves a manifest identifier to a Capability.
func ParseCapability(name string) (Capability, error) {
	for cap, info := range capabilityRegistry {
		if info.Name == name {
			return cap, nil
		}
	}
	return 0, fmt.Errorf("unknown capability %q", name)
}

// AllCapabilities returns every member of the closed capability set.
func AllCapabilities() []Capability {
	caps := make([]Capability, 0, len(capabilityRegistry))
	for cap := range capabilityRegistry {
		caps = append(caps, cap)
	}
	return caps
}

// DangerousCapabilities returns the capabilities marked dangerous.
func DangerousCapabilities() []Capability {
	var caps []Capability
	for cap, info := range capabilityRegistry {
		if info.Dangerous {
			caps = append(caps, cap)
		}
	}
	return caps
}
