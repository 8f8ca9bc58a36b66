package agent

import (
	"context"
	"fmt"

	"github.com/c360studio/devteam/state"
)

// Developer builds the prototype outline and the implementation plan.
// Owns the "prototype" and "implementation" keys of the implementation_plan
// section.
type Developer struct {
	*BaseAgent
}

// NewDeveloper creates the developer agent.
func NewDeveloper(deps Deps) *Developer {
	dev := &Developer{}
	dev.BaseAgent = newBase(deps, baseConfig{
		name: "developer-agent",
		role: RoleDeveloper,
		systemPrompt: "You are a senior software developer. You turn architecture and " +
			"design documents into concrete implementation plans: module layout, " +
			"key types, and build order. Output structured markdown with code " +
			"sketches where useful.",
		capabilities: []Capability{
			{
				Name:        "build-prototype",
				Description: "Outline a throwaway proof-of-concept build",
				Input:       "architecture and design documents",
				Output:      "prototype plan (markdown)",
			},
			{
				Name:        "implement",
				Description: "Produce the production implementation plan",
				Input:       "architecture, design, and prototype findings",
				Output:      "implementation plan (markdown)",
			},
		},
		stages: []state.Stage{
			state.StagePrototypeDevelopment,
			state.StageImplementation,
		},
		section: state.SectionImplementationPlan,
		perform: dev.perform,
	})
	return dev
}

func (dev *Developer) perform(ctx context.Context, task state.Task) (map[string]any, error) {
	switch task.Kind {
	case state.KindBuildPrototype:
		content, producedBy, err := dev.generate(ctx,
			dev.taskPrompt(task, state.SectionArchitecture, state.SectionDesign))
		if err != nil {
			return nil, err
		}
		return dev.saveResult("prototype", content, producedBy)

	case state.KindImplement:
		content, producedBy, err := dev.generate(ctx,
			dev.taskPrompt(task, state.SectionArchitecture, state.SectionDesign, state.SectionImplementationPlan))
		if err != nil {
			return nil, err
		}
		result, err := dev.saveResult("implementation", content, producedBy)
		if err != nil {
			return nil, err
		}
		if err := dev.writeDocument("implementation-plan", "implementation_plan.md", []byte(content)); err != nil {
			return nil, err
		}
		return result, nil

	default:
		return nil, fmt.Errorf("developer: unsupported task kind %q", task.Kind)
	}
}

// DevOpsSpecialist plans deployment and operations alongside the developer
// during implementation. Owns the "deployment" key of the
// implementation_plan section.
type DevOpsSpecialist struct {
	*BaseAgent
}

// NewDevOpsSpecialist creates the devops specialist agent.
func NewDevOpsSpecialist(deps Deps) *DevOpsSpecialist {
	do := &DevOpsSpecialist{}
	do.BaseAgent = newBase(deps, baseConfig{
		name: "devops-specialist-agent",
		role: RoleDevOpsSpecialist,
		systemPrompt: "You are a devops specialist. You plan build pipelines, " +
			"deployment topology, and runtime operations for the system being " +
			"implemented. Output structured markdown.",
		capabilities: []Capability{
			{
				Name:        "plan-deployment",
				Description: "Produce the deployment and operations plan",
				Input:       "architecture and implementation plan",
				Output:      "deployment plan (markdown)",
			},
		},
		stages:  []state.Stage{state.StageImplementation},
		section: state.SectionImplementationPlan,
		perform: do.perform,
	})
	return do
}

func (do *DevOpsSpecialist) perform(ctx context.Context, task state.Task) (map[string]any, error) {
	switch task.Kind {
	case state.KindImplement:
		content, producedBy, err := do.generate(ctx,
			do.taskPrompt(task, state.SectionArchitecture))
		if err != nil {
			return nil, err
		}
		return do.saveResult("deployment", content, producedBy)
	default:
		return nil, fmt.Errorf("devops specialist: unsupported task kind %q", task.Kind)
	}
}

// TestEngineer produces the test plan. Owns the "test_plan" key of the
// implementation_plan section.
type TestEngineer struct {
	*BaseAgent
}

// NewTestEngineer creates the test engineer agent.
func NewTestEngineer(deps Deps) *TestEngineer {
	te := &TestEngineer{}
	te.BaseAgent = newBase(deps, baseConfig{
		name: "test-engineer-agent",
		role: RoleTestEngineer,
		systemPrompt: "You are a test engineer. You derive test plans from requirements " +
			"and implementation plans: unit, integration, and acceptance coverage " +
			"with concrete cases. Output structured markdown.",
		capabilities: []Capability{
			{
				Name:        "write-tests",
				Description: "Produce the test plan and test case outlines",
				Input:       "requirements and implementation plan",
				Output:      "test plan (markdown)",
			},
		},
		stages:  []state.Stage{state.StageTesting},
		section: state.SectionImplementationPlan,
		perform: te.perform,
	})
	return te
}

func (te *TestEngineer) perform(ctx context.Context, task state.Task) (map[string]any, error) {
	switch task.Kind {
	case state.KindWriteTests:
		content, producedBy, err := te.generate(ctx,
			te.taskPrompt(task, state.SectionRequirements, state.SectionImplementationPlan))
		if err != nil {
			return nil, err
		}
		result, err := te.saveResult("test_plan", content, producedBy)
		if err != nil {
			return nil, err
		}
		if err := te.writeDocument("test-plan", "test_plan.md", []byte(content)); err != nil {
			return nil, err
		}
		return result, nil
	default:
		return nil, fmt.Errorf("test engineer: unsupported task kind %q", task.Kind)
	}
}

// PerformanceExpert covers the performance angle of the testing stage.
// Owns the "performance_tests" key of the implementation_plan section.
type PerformanceExpert struct {
	*BaseAgent
}

// NewPerformanceExpert creates the performance expert agent.
func NewPerformanceExpert(deps Deps) *PerformanceExpert {
	pe := &PerformanceExpert{}
	pe.BaseAgent = newBase(deps, baseConfig{
		name: "performance-expert-agent",
		role: RolePerformanceExpert,
		systemPrompt: "You are a performance engineer. You identify performance-critical " +
			"paths and define load and latency test scenarios with target numbers. " +
			"Output structured markdown.",
		capabilities: []Capability{
			{
				Name:        "performance-tests",
				Description: "Define performance test scenarios and targets",
				Input:       "architecture and implementation plan",
				Output:      "performance test plan (markdown)",
			},
		},
		stages:  []state.Stage{state.StageTesting},
		section: state.SectionImplementationPlan,
		perform: pe.perform,
	})
	return pe
}

func (pe *PerformanceExpert) perform(ctx context.Context, task state.Task) (map[string]any, error) {
	switch task.Kind {
	case state.KindWriteTests:
		content, producedBy, err := pe.generate(ctx,
			pe.taskPrompt(task, state.SectionArchitecture, state.SectionImplementationPlan))
		if err != nil {
			return nil, err
		}
		return pe.saveResult("performance_tests", content, producedBy)
	default:
		return nil, fmt.Errorf("performance expert: unsupported task kind %q", task.Kind)
	}
}
