// Package model provides capability-based model selection for agent tasks.
// Instead of hardcoding model names, agents specify capabilities (planning,
// writing, coding) and the registry resolves them to available endpoints
// with fallback chains and health tracking.
package model

// Capability represents a semantic capability for model selection.
// Instead of specifying "claude-sonnet", agents specify "writing" or "planning".
type Capability string

const (
	// CapabilityPlanning is for high-level reasoning, architecture decisions.
	CapabilityPlanning Capability = "planning"

	// CapabilityWriting is for documentation, requirements, specifications.
	CapabilityWriting Capability = "writing"

	// CapabilityCoding is for code generation, implementation.
	CapabilityCoding Capability = "coding"

	// CapabilityReviewing is for code review, quality analysis.
	CapabilityReviewing Capability = "reviewing"

	// CapabilityFast is for quick responses, simple tasks.
	CapabilityFast Capability = "fast"
)

// RoleCapabilities maps agent roles to their default capability.
// Used when no explicit capability is specified for a task.
var RoleCapabilities = map[string]Capability{
	"project-manager":      CapabilityPlanning,
	"requirements-analyst": CapabilityWriting,
	"architect":            CapabilityPlanning,
	"ux-designer":          CapabilityWriting,
	"developer":            CapabilityCoding,
	"test-engineer":        CapabilityCoding,
	"quality-expert":       CapabilityReviewing,
	"devops-specialist":    CapabilityCoding,
	"security-specialist":  CapabilityReviewing,
	"performance-expert":   CapabilityReviewing,
}

// CapabilityForRole returns the default capability for a given role.
// Returns CapabilityWriting as fallback for unknown roles.
func CapabilityForRole(role string) Capability {
	if cap, ok := RoleCapabilities[role]; ok {
		return cap
	}
	return CapabilityWriting
}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityPlanning, CapabilityWriting, CapabilityCoding, CapabilityReviewing, CapabilityFast:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	cap := Capability(s)
	if cap.IsValid() {
		return cap
	}
	return ""
}
