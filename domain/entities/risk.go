package entities

// RiskLevel represents the security risk of a capability or a requested
// capability set.
type RiskLevel int

const (
	RiskLevelLow      RiskLevel = iota // Narrow, observe-only permissions
	RiskLevelMedium                    // Network access, sensitive reads
	RiskLevelHigh                      // Host mutation, broad surfaces
	RiskLevelCritical                  // Arbitrary execution or host takeover
)

// String returns the human-readable name of the risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskLevelLow:
		return "low"
	case RiskLevelMedium:
		return "medium"
	case RiskLevelHigh:
		return "high"
	case RiskLevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// AssessRisk returns the highest risk level among the requested capabilities.
// An empty request is low risk.
func AssessRisk(caps []Capability) RiskLevel {
	highest := RiskLevelLow
	for _, c := range caps {
		info, ok := capabilityRegistry[c]
		if !ok {
			continue
		}
		if info.Risk > highest {
			highest = info.Risk
		}
	}
	return highest
}

// DescribeRisks returns human-readable descriptions for every dangerous
// capability in the request, for surfacing in approval prompts.
func DescribeRisks(caps []Capability) []string {
	var risks []string
	for _, c := range caps {
		info, ok := capabilityRegistry[c]
		if !ok || !info.Dangerous {
			continue
		}
		risks = append(risks, info.DisplayName+": "+info.Description+" ("+info.Risk.String()+" risk)")
	}
	return risks
}
