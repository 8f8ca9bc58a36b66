package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/c360studio/devteam/llm"
	"github.com/c360studio/devteam/state"
)

// Architect produces the system architecture from the refined requirements.
// Owns the "system_design" key of the architecture section and records its
// major choices as project decisions.
type Architect struct {
	*BaseAgent
}

// NewArchitect creates the architect agent.
func NewArchitect(deps Deps) *Architect {
	ar := &Architect{}
	ar.BaseAgent = newBase(deps, baseConfig{
		name: "architect-agent",
		role: RoleArchitect,
		systemPrompt: "You are a software architect. You design pragmatic system " +
			"architectures: components, interfaces, data flow, and technology " +
			"choices with short rationales. Output structured markdown.",
		capabilities: []Capability{
			{
				Name:        "design-architecture",
				Description: "Produce the system architecture document",
				Input:       "refined requirements",
				Output:      "architecture document (markdown)",
			},
		},
		stages:  []state.Stage{state.StageArchitectureDesign},
		section: state.SectionArchitecture,
		perform: ar.perform,
	})
	return ar
}

func (ar *Architect) perform(ctx context.Context, task state.Task) (map[string]any, error) {
	switch task.Kind {
	case state.KindDesignArchitecture:
		prompt := ar.taskPrompt(task, state.SectionRequirements) + decisionsInstruction
		content, producedBy, err := ar.generate(ctx, prompt)
		if err != nil {
			return nil, err
		}
		result, err := ar.saveResult("system_design", content, producedBy)
		if err != nil {
			return nil, err
		}
		decisions := parseDecisions(content)
		if len(decisions) == 0 {
			// The model skipped the structured block; keep at least a
			// pointer to the document.
			ar.deps.Project.AddDecision("System architecture defined", ar.Role(),
				"recorded in the architecture document")
		}
		for _, d := range decisions {
			ar.deps.Project.AddDecision(d.Decision, ar.Role(), d.Rationale)
		}
		if err := ar.writeDocument("architecture", "architecture.md", []byte(content)); err != nil {
			return nil, err
		}
		return result, nil
	default:
		return nil, fmt.Errorf("architect: unsupported task kind %q", task.Kind)
	}
}

// decisionsInstruction asks the model to end the architecture document with
// a machine-readable list of its key choices.
const decisionsInstruction = "\n## Decisions\n" +
	"End your answer with a fenced json array of your key decisions, each " +
	"of the form {\"decision\": \"<choice>\", \"rationale\": \"<why>\"}.\n"

// architectureDecision is one structured choice parsed from the output.
type architectureDecision struct {
	Decision  string `json:"decision"`
	Rationale string `json:"rationale"`
}

// parseDecisions extracts the decision list from the generation output,
// dropping entries with empty decision text.
func parseDecisions(content string) []architectureDecision {
	raw := llm.ExtractJSONArray(content)
	if raw == "" {
		return nil
	}
	var all []architectureDecision
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		return nil
	}
	decisions := all[:0]
	for _, d := range all {
		if d.Decision != "" {
			decisions = append(decisions, d)
		}
	}
	return decisions
}

// UXDesigner produces the interface and interaction design. Owns the
// "interface" key of the design section.
type UXDesigner struct {
	*BaseAgent
}

// NewUXDesigner creates the UX designer agent.
func NewUXDesigner(deps Deps) *UXDesigner {
	ux := &UXDesigner{}
	ux.BaseAgent = newBase(deps, baseConfig{
		name: "ux-designer-agent",
		role: RoleUXDesigner,
		systemPrompt: "You are a UX designer. You describe screens, navigation flows, " +
			"and interaction patterns in text form, grounded in the requirements " +
			"and the architecture. Output structured markdown.",
		capabilities: []Capability{
			{
				Name:        "design-interface",
				Description: "Produce the UI/UX design document",
				Input:       "requirements and architecture",
				Output:      "interface design (markdown)",
			},
		},
		stages:  []state.Stage{state.StageUIUXDesign},
		section: state.SectionDesign,
		perform: ux.perform,
	})
	return ux
}

func (ux *UXDesigner) perform(ctx context.Context, task state.Task) (map[string]any, error) {
	switch task.Kind {
	case state.KindDesignInterface:
		content, producedBy, err := ux.generate(ctx,
			ux.taskPrompt(task, state.SectionRequirements, state.SectionArchitecture))
		if err != nil {
			return nil, err
		}
		result, err := ux.saveResult("interface", content, producedBy)
		if err != nil {
			return nil, err
		}
		if err := ux.writeDocument("design", "design.md", []byte(content)); err != nil {
			return nil, err
		}
		return result, nil
	default:
		return nil, fmt.Errorf("ux designer: unsupported task kind %q", task.Kind)
	}
}
