package policy

import (
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// NetworkPolicy decides whether an outbound connection is permitted.
// The zero value denies everything.
type NetworkPolicy struct {
	allowAll bool
	hosts    []string
	ports    []portRange
	anyPort  bool
}

type portRange struct {
	min, max int
}

// DenyAllNetwork returns the policy that rejects every connection. This is
// the sandbox default.
func DenyAllNetwork() NetworkPolicy {
	return NetworkPolicy{}
}

// AllowAllNetwork returns the policy that permits every connection. Only
// appropriate for fully trusted plugins.
func AllowAllNetwork() NetworkPolicy {
	return NetworkPolicy{allowAll: true}
}

// AllowedHosts returns a policy permitting the given host patterns on the
// given port specs. Host patterns use doublestar glob syntax
// ("*.example.com"). Port specs are single ports ("443"), inclusive ranges
// ("8000-8010"), or "*" for any port. No port specs means any port.
// Invalid patterns and malformed specs are dropped, never widened.
func AllowedHosts(hosts []string, ports ...string) NetworkPolicy {
	p := NetworkPolicy{anyPort: len(ports) == 0}
	for _, h := range hosts {
		if doublestar.ValidatePattern(h) {
			p.hosts = append(p.hosts, h)
		}
	}
	for _, spec := range ports {
		if pr, ok := parsePortSpec(spec); ok {
			p.ports = append(p.ports, pr)
		}
	}
	return p
}

func parsePortSpec(spec string) (portRange, bool) {
	spec = strings.TrimSpace(spec)
	if spec == "*" {
		return portRange{0, 65535}, true
	}
	if minStr, maxStr, ok := strings.Cut(spec, "-"); ok {
		minPort, err1 := strconv.Atoi(strings.TrimSpace(minStr))
		maxPort, err2 := strconv.Atoi(strings.TrimSpace(maxStr))
		if err1 != nil || err2 != nil || minPort > maxPort {
			return portRange{}, false
		}
		return portRange{minPort, maxPort}, true
	}
	val, err := strconv.Atoi(spec)
	if err != nil {
		return portRange{}, false
	}
	return portRange{val, val}, true
}

// Allows reports whether host:port matches the policy.
func (p NetworkPolicy) Allows(host string, port int) bool {
	if p.allowAll {
		return true
	}
	hostMatch := false
	for _, pattern := range p.hosts {
		if matched, _ := doublestar.Match(pattern, host); matched {
			hostMatch = true
			break
		}
	}
	if !hostMatch {
		return false
	}
	// A policy built without port specs allows any port; one whose specs
	// were all dropped as malformed allows none.
	if p.anyPort {
		return true
	}
	for _, pr := range p.ports {
		if port >= pr.min && port <= pr.max {
			return true
		}
	}
	return false
}
