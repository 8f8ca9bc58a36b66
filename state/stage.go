// Package state holds the shared, mutable record of one project run:
// the current workflow stage, the task ledger, generated artifacts,
// recorded decisions, and the per-domain scratch sections agents write
// their intermediate results into.
package state

// Stage is one ordered step in the fixed development lifecycle.
type Stage string

const (
	// StageInitial is the pre-start stage of every project.
	StageInitial Stage = "initial"
	// StageRequirementsGathering collects raw requirements from the user input.
	StageRequirementsGathering Stage = "requirements_gathering"
	// StageRequirementsAnalysis structures and prioritizes requirements.
	StageRequirementsAnalysis Stage = "requirements_analysis"
	// StageRequirementsRefinement resolves gaps found during analysis.
	StageRequirementsRefinement Stage = "requirements_refinement"
	// StageArchitectureDesign produces the system architecture.
	StageArchitectureDesign Stage = "architecture_design"
	// StageUIUXDesign produces interface and interaction design.
	StageUIUXDesign Stage = "ui_ux_design"
	// StagePrototypeDevelopment builds a throwaway proof of concept.
	StagePrototypeDevelopment Stage = "prototype_development"
	// StageImplementation builds the production code plan.
	StageImplementation Stage = "implementation"
	// StageTesting produces test plans and test code.
	StageTesting Stage = "testing"
	// StageQualityAssurance performs the final quality review.
	StageQualityAssurance Stage = "quality_assurance"
	// StageCompleted is the terminal stage; no transitions leave it.
	StageCompleted Stage = "completed"
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// IsValid returns true if the stage is a member of the lifecycle.
func (s Stage) IsValid() bool {
	switch s {
	case StageInitial, StageRequirementsGathering, StageRequirementsAnalysis,
		StageRequirementsRefinement, StageArchitectureDesign, StageUIUXDesign,
		StagePrototypeDevelopment, StageImplementation, StageTesting,
		StageQualityAssurance, StageCompleted:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for the completed stage.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted
}

// DefaultSequence returns the full lifecycle in order. The sequence is
// fixed and total; a workflow may be configured with a subset as long as
// it starts at StageInitial and ends at StageCompleted.
func DefaultSequence() []Stage {
	return []Stage{
		StageInitial,
		StageRequirementsGathering,
		StageRequirementsAnalysis,
		StageRequirementsRefinement,
		StageArchitectureDesign,
		StageUIUXDesign,
		StagePrototypeDevelopment,
		StageImplementation,
		StageTesting,
		StageQualityAssurance,
		StageCompleted,
	}
}

// ParseStage converts a string to a Stage, returning empty for unknown values.
func ParseStage(s string) Stage {
	stage := Stage(s)
	if stage.IsValid() {
		return stage
	}
	return ""
}
