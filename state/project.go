package state

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Section names one of the closed set of scratch areas agents write
// intermediate results into. Each agent documents the keys it owns;
// agents sharing a stage must write disjoint keys.
type Section string

const (
	// SectionRequirements holds requirements-gathering and analysis output.
	SectionRequirements Section = "requirements"
	// SectionArchitecture holds architecture design output.
	SectionArchitecture Section = "architecture"
	// SectionDesign holds UI/UX design output.
	SectionDesign Section = "design"
	// SectionImplementationPlan holds implementation and test planning output.
	SectionImplementationPlan Section = "implementation_plan"
	// SectionMetadata holds run-level annotations.
	SectionMetadata Section = "metadata"
)

// IsValid returns true if the section is a member of the closed set.
func (s Section) IsValid() bool {
	switch s {
	case SectionRequirements, SectionArchitecture, SectionDesign,
		SectionImplementationPlan, SectionMetadata:
		return true
	default:
		return false
	}
}

// Artifact references a generated document by name and path.
type Artifact struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// Decision records a design decision with its author and rationale.
type Decision struct {
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	Rationale string    `json:"rationale,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Project is the aggregate root for one project run. The workflow owns
// its lifecycle; agents share it by reference for the duration of the run
// and mutate it only through these methods.
type Project struct {
	mu sync.Mutex

	name         string
	description  string
	requirements string
	currentStage Stage

	taskOrder []string
	tasks     map[string]*Task

	artifacts []Artifact
	decisions []Decision
	sections  map[Section]map[string]any
}

// NewProject creates project state positioned at the initial stage.
func NewProject(name, description string) *Project {
	return &Project{
		name:         name,
		description:  description,
		currentStage: StageInitial,
		tasks:        make(map[string]*Task),
		sections: map[Section]map[string]any{
			SectionRequirements:       {},
			SectionArchitecture:       {},
			SectionDesign:             {},
			SectionImplementationPlan: {},
			SectionMetadata:           {},
		},
	}
}

// Name returns the project name.
func (p *Project) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// Description returns the project description.
func (p *Project) Description() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.description
}

// SetRequirements records the raw requirements text.
func (p *Project) SetRequirements(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requirements = text
}

// Requirements returns the raw requirements text.
func (p *Project) Requirements() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requirements
}

// CurrentStage returns the stage the project is in.
func (p *Project) CurrentStage() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentStage
}

// SetStage records the current stage. Sequence validation (forward-only,
// adjacency, refinement loop-backs) is the workflow's responsibility.
func (p *Project) SetStage(stage Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentStage = stage
}

// AddTask registers a task in the ledger.
func (p *Project) AddTask(task *Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.tasks[task.ID]; !exists {
		p.taskOrder = append(p.taskOrder, task.ID)
	}
	p.tasks[task.ID] = task
}

// Task returns a copy of the task with the given id.
func (p *Project) Task(id string) (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	task, ok := p.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// Tasks returns copies of all tasks in creation order.
func (p *Project) Tasks() []Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Task, 0, len(p.taskOrder))
	for _, id := range p.taskOrder {
		out = append(out, *p.tasks[id])
	}
	return out
}

// SetTaskStatus transitions a task, enforcing the status state machine.
// Terminal statuses record the completion time; failed tasks may carry an
// error description.
func (p *Project) SetTaskStatus(id string, status TaskStatus, result map[string]any, errText string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	task, ok := p.tasks[id]
	if !ok {
		return fmt.Errorf("unknown task %s", id)
	}
	if !task.Status.CanTransitionTo(status) {
		return fmt.Errorf("task %s: invalid transition %s -> %s", id, task.Status, status)
	}

	task.Status = status
	if result != nil {
		task.Result = result
	}
	task.Error = errText
	if status.IsTerminal() {
		now := time.Now()
		task.CompletedAt = &now
	} else {
		task.CompletedAt = nil
	}
	return nil
}

// AddArtifact records a generated artifact reference.
func (p *Project) AddArtifact(name, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.artifacts = append(p.artifacts, Artifact{Name: name, Path: path, CreatedAt: time.Now()})
}

// Artifacts returns the recorded artifact references.
func (p *Project) Artifacts() []Artifact {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Artifact, len(p.artifacts))
	copy(out, p.artifacts)
	return out
}

// AddDecision records a design decision.
func (p *Project) AddDecision(text, author, rationale string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decisions = append(p.decisions, Decision{
		Text:      text,
		Author:    author,
		Rationale: rationale,
		Timestamp: time.Now(),
	})
}

// Decisions returns the recorded decisions.
func (p *Project) Decisions() []Decision {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Decision, len(p.decisions))
	copy(out, p.decisions)
	return out
}

// SetSectionValue writes one key into a scratch section.
func (p *Project) SetSectionValue(section Section, key string, value any) error {
	if !section.IsValid() {
		return fmt.Errorf("unknown section %q", section)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sections[section][key] = value
	return nil
}

// MergeSection writes several keys into a scratch section at once.
func (p *Project) MergeSection(section Section, values map[string]any) error {
	if !section.IsValid() {
		return fmt.Errorf("unknown section %q", section)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range values {
		p.sections[section][k] = v
	}
	return nil
}

// SectionValues returns a copy of a scratch section.
func (p *Project) SectionValues(section Section) map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	src, ok := p.sections[section]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// SectionKeys returns the sorted keys present in a scratch section.
func (p *Project) SectionKeys(section Section) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	src := p.sections[section]
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TasksForStage returns copies of the tasks owned by a stage, in creation order.
func (p *Project) TasksForStage(stage Stage) []Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Task
	for _, id := range p.taskOrder {
		if p.tasks[id].Stage == stage {
			out = append(out, *p.tasks[id])
		}
	}
	return out
}
