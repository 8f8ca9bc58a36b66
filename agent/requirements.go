package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/c360studio/devteam/llm"
	"github.com/c360studio/devteam/state"
)

// ProjectManager gathers raw requirements from the user input and turns
// them into a structured requirements statement. Owns the "gathered" key of
// the requirements section.
type ProjectManager struct {
	*BaseAgent
}

// NewProjectManager creates the project manager agent.
func NewProjectManager(deps Deps) *ProjectManager {
	pm := &ProjectManager{}
	pm.BaseAgent = newBase(deps, baseConfig{
		name: "project-manager-agent",
		role: RoleProjectManager,
		systemPrompt: "You are an experienced software project manager. " +
			"You turn informal product ideas into clear, numbered requirements. " +
			"State functional requirements first, then constraints. Be specific and testable.",
		capabilities: []Capability{
			{
				Name:        "gather-requirements",
				Description: "Produce a structured requirements statement from raw user input",
				Input:       "free-form project description",
				Output:      "numbered requirements list (markdown)",
			},
		},
		stages:  []state.Stage{state.StageRequirementsGathering},
		section: state.SectionRequirements,
		perform: pm.perform,
	})
	return pm
}

func (pm *ProjectManager) perform(ctx context.Context, task state.Task) (map[string]any, error) {
	switch task.Kind {
	case state.KindGatherRequirements:
		content, producedBy, err := pm.generate(ctx, pm.taskPrompt(task))
		if err != nil {
			return nil, err
		}
		result, err := pm.saveResult("gathered", content, producedBy)
		if err != nil {
			return nil, err
		}
		if err := pm.writeDocument("requirements", "requirements.md", []byte(content)); err != nil {
			return nil, err
		}
		return result, nil
	default:
		return nil, fmt.Errorf("project manager: unsupported task kind %q", task.Kind)
	}
}

// RequirementsAnalyst structures and refines requirements. Owns the
// "analysis" and "refinement" keys of the requirements section. When
// refinement leaves ambiguities unresolved it flags its result with
// needs_reanalysis, parsed from the model's verdict block, so the workflow
// loops back to analysis.
type RequirementsAnalyst struct {
	*BaseAgent
}

// NewRequirementsAnalyst creates the requirements analyst agent.
func NewRequirementsAnalyst(deps Deps) *RequirementsAnalyst {
	ra := &RequirementsAnalyst{}
	ra.BaseAgent = newBase(deps, baseConfig{
		name: "requirements-analyst-agent",
		role: RoleRequirementsAnalyst,
		systemPrompt: "You are a requirements analyst. You classify requirements by " +
			"priority, find gaps and contradictions, and resolve ambiguities. " +
			"Output structured markdown.",
		capabilities: []Capability{
			{
				Name:        "analyze-requirements",
				Description: "Classify and prioritize gathered requirements",
				Input:       "requirements statement",
				Output:      "prioritized analysis (markdown)",
			},
			{
				Name:        "refine-requirements",
				Description: "Resolve gaps and ambiguities found during analysis",
				Input:       "requirements analysis",
				Output:      "refined requirements (markdown)",
			},
		},
		stages: []state.Stage{
			state.StageRequirementsAnalysis,
			state.StageRequirementsRefinement,
		},
		section: state.SectionRequirements,
		perform: ra.perform,
	})
	return ra
}

func (ra *RequirementsAnalyst) perform(ctx context.Context, task state.Task) (map[string]any, error) {
	switch task.Kind {
	case state.KindAnalyzeRequirements:
		content, producedBy, err := ra.generate(ctx, ra.taskPrompt(task, state.SectionRequirements))
		if err != nil {
			return nil, err
		}
		return ra.saveResult("analysis", content, producedBy)

	case state.KindRefineRequirements:
		prompt := ra.taskPrompt(task, state.SectionRequirements) + verdictInstruction
		content, producedBy, err := ra.generate(ctx, prompt)
		if err != nil {
			return nil, err
		}
		result, err := ra.saveResult("refinement", content, producedBy)
		if err != nil {
			return nil, err
		}
		if verdict, ok := parseVerdict(content); ok {
			result["needs_reanalysis"] = verdict.NeedsReanalysis
			if verdict.Reason != "" {
				result["reanalysis_reason"] = verdict.Reason
			}
		}
		return result, nil

	default:
		return nil, fmt.Errorf("requirements analyst: unsupported task kind %q", task.Kind)
	}
}

// verdictInstruction asks the model to end its refinement output with a
// machine-readable verdict the workflow can act on.
const verdictInstruction = "\n## Verdict\n" +
	"End your answer with a fenced json block of the form " +
	"{\"needs_reanalysis\": <bool>, \"reason\": \"<short reason>\"} stating " +
	"whether unresolved ambiguities require another analysis pass.\n"

// refinementVerdict is the structured flag parsed from the refinement output.
type refinementVerdict struct {
	NeedsReanalysis bool   `json:"needs_reanalysis"`
	Reason          string `json:"reason"`
}

// parseVerdict extracts the verdict block from the generation output. A
// missing or malformed block means no reanalysis is requested.
func parseVerdict(content string) (refinementVerdict, bool) {
	raw := llm.ExtractJSON(content)
	if raw == "" {
		return refinementVerdict{}, false
	}
	var v refinementVerdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return refinementVerdict{}, false
	}
	return v, true
}
