package agent

import (
	"context"
	"fmt"

	"github.com/c360studio/devteam/state"
)

// QualityExpert performs the final quality review across every produced
// document. Owns the "quality_review" key of the metadata section.
type QualityExpert struct {
	*BaseAgent
}

// NewQualityExpert creates the quality expert agent.
func NewQualityExpert(deps Deps) *QualityExpert {
	qe := &QualityExpert{}
	qe.BaseAgent = newBase(deps, baseConfig{
		name: "quality-expert-agent",
		role: RoleQualityExpert,
		systemPrompt: "You are a quality assurance expert. You review requirements, " +
			"architecture, design, and plans for consistency, completeness, and " +
			"traceability, and produce a final verdict with findings. Output " +
			"structured markdown.",
		capabilities: []Capability{
			{
				Name:        "quality-review",
				Description: "Produce the final cross-document quality review",
				Input:       "all project documents",
				Output:      "quality review with verdict (markdown)",
			},
		},
		stages:  []state.Stage{state.StageQualityAssurance},
		section: state.SectionMetadata,
		perform: qe.perform,
	})
	return qe
}

func (qe *QualityExpert) perform(ctx context.Context, task state.Task) (map[string]any, error) {
	switch task.Kind {
	case state.KindAssureQuality:
		content, producedBy, err := qe.generate(ctx, qe.taskPrompt(task,
			state.SectionRequirements,
			state.SectionArchitecture,
			state.SectionDesign,
			state.SectionImplementationPlan,
		))
		if err != nil {
			return nil, err
		}
		result, err := qe.saveResult("quality_review", content, producedBy)
		if err != nil {
			return nil, err
		}
		if err := qe.writeDocument("quality-review", "quality_review.md", []byte(content)); err != nil {
			return nil, err
		}
		return result, nil
	default:
		return nil, fmt.Errorf("quality expert: unsupported task kind %q", task.Kind)
	}
}

// SecuritySpecialist reviews the produced plans for security concerns
// during quality assurance. Owns the "security_review" key of the metadata
// section.
type SecuritySpecialist struct {
	*BaseAgent
}

// NewSecuritySpecialist creates the security specialist agent.
func NewSecuritySpecialist(deps Deps) *SecuritySpecialist {
	ss := &SecuritySpecialist{}
	ss.BaseAgent = newBase(deps, baseConfig{
		name: "security-specialist-agent",
		role: RoleSecuritySpecialist,
		systemPrompt: "You are a security specialist. You review architecture and " +
			"implementation plans for threat surfaces, data handling risks, and " +
			"missing controls. Output structured markdown.",
		capabilities: []Capability{
			{
				Name:        "security-review",
				Description: "Review plans for security risks and missing controls",
				Input:       "architecture and implementation plan",
				Output:      "security review (markdown)",
			},
		},
		stages:  []state.Stage{state.StageQualityAssurance},
		section: state.SectionMetadata,
		perform: ss.perform,
	})
	return ss
}

func (ss *SecuritySpecialist) perform(ctx context.Context, task state.Task) (map[string]any, error) {
	switch task.Kind {
	case state.KindAssureQuality:
		content, producedBy, err := ss.generate(ctx,
			ss.taskPrompt(task, state.SectionArchitecture, state.SectionImplementationPlan))
		if err != nil {
			return nil, err
		}
		return ss.saveResult("security_review", content, producedBy)
	default:
		return nil, fmt.Errorf("security specialist: unsupported task kind %q", task.Kind)
	}
}

// DefaultTeam builds the full ten-agent roster wired to the shared
// collaborators.
func DefaultTeam(deps Deps) []Agent {
	return []Agent{
		NewProjectManager(deps),
		NewRequirementsAnalyst(deps),
		NewArchitect(deps),
		NewUXDesigner(deps),
		NewDeveloper(deps),
		NewDevOpsSpecialist(deps),
		NewTestEngineer(deps),
		NewPerformanceExpert(deps),
		NewQualityExpert(deps),
		NewSecuritySpecialist(deps),
	}
}
