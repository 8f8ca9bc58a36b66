package state

import (
	"strings"
	"testing"
)

func TestProjectTaskLifecycle(t *testing.T) {
	p := NewProject("demo", "a demo project")
	task := NewTask("Analyze requirements", "", KindAnalyzeRequirements, StageRequirementsAnalysis, "requirements-analyst")
	p.AddTask(task)

	if err := p.SetTaskStatus(task.ID, TaskInProgress, nil, ""); err != nil {
		t.Fatalf("mark in progress: %v", err)
	}
	if err := p.SetTaskStatus(task.ID, TaskCompleted, map[string]any{"summary": "done"}, ""); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	got, ok := p.Task(task.ID)
	if !ok {
		t.Fatal("task not found after completion")
	}
	if got.Status != TaskCompleted {
		t.Errorf("status = %s, want %s", got.Status, TaskCompleted)
	}
	if got.CompletedAt == nil {
		t.Error("completed task must have a completion time")
	}
}

func TestProjectTaskInvalidTransition(t *testing.T) {
	p := NewProject("demo", "")
	task := NewTask("Implement", "", KindImplement, StageImplementation, "developer")
	p.AddTask(task)

	err := p.SetTaskStatus(task.ID, TaskCompleted, nil, "")
	if err == nil {
		t.Fatal("expected error for pending -> completed")
	}
	if !strings.Contains(err.Error(), "invalid transition") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestProjectTasksOrdered(t *testing.T) {
	p := NewProject("demo", "")
	first := NewTask("first", "", KindImplement, StageImplementation, "developer")
	second := NewTask("second", "", KindWriteTests, StageTesting, "test-engineer")
	p.AddTask(first)
	p.AddTask(second)

	tasks := p.Tasks()
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != first.ID || tasks[1].ID != second.ID {
		t.Error("tasks must be returned in creation order")
	}

	stageTasks := p.TasksForStage(StageTesting)
	if len(stageTasks) != 1 || stageTasks[0].ID != second.ID {
		t.Error("TasksForStage must filter by owning stage")
	}
}

func TestProjectSections(t *testing.T) {
	p := NewProject("demo", "")

	if err := p.SetSectionValue(SectionArchitecture, "overview", "layered"); err != nil {
		t.Fatalf("set section value: %v", err)
	}
	if err := p.MergeSection(SectionArchitecture, map[string]any{"components": 3}); err != nil {
		t.Fatalf("merge section: %v", err)
	}
	if err := p.SetSectionValue(Section("bogus"), "k", "v"); err == nil {
		t.Error("expected error for unknown section")
	}

	values := p.SectionValues(SectionArchitecture)
	if values["overview"] != "layered" || values["components"] != 3 {
		t.Errorf("unexpected section values: %v", values)
	}

	// Returned map is a copy, mutations must not leak back.
	values["overview"] = "mutated"
	if p.SectionValues(SectionArchitecture)["overview"] != "layered" {
		t.Error("SectionValues must return a copy")
	}

	keys := p.SectionKeys(SectionArchitecture)
	if len(keys) != 2 || keys[0] != "components" || keys[1] != "overview" {
		t.Errorf("unexpected section keys: %v", keys)
	}
}

func TestProjectArtifactsAndDecisions(t *testing.T) {
	p := NewProject("demo", "")
	p.AddArtifact("requirements.md", "/tmp/demo/requirements.md")
	p.AddDecision("use layered architecture", "architect", "simplest fit")

	if len(p.Artifacts()) != 1 {
		t.Fatal("expected one artifact")
	}
	if len(p.Decisions()) != 1 {
		t.Fatal("expected one decision")
	}
	if p.Decisions()[0].Author != "architect" {
		t.Errorf("decision author = %q", p.Decisions()[0].Author)
	}
}

func TestStageSequence(t *testing.T) {
	seq := DefaultSequence()
	if seq[0] != StageInitial {
		t.Errorf("sequence must start at %s", StageInitial)
	}
	if seq[len(seq)-1] != StageCompleted {
		t.Errorf("sequence must end at %s", StageCompleted)
	}
	for _, s := range seq {
		if !s.IsValid() {
			t.Errorf("invalid stage in sequence: %s", s)
		}
	}
	if !StageCompleted.IsTerminal() {
		t.Error("completed must be terminal")
	}
	if ParseStage("architecture_design") != StageArchitectureDesign {
		t.Error("ParseStage round-trip failed")
	}
	if ParseStage("nope") != "" {
		t.Error("ParseStage must reject unknown stages")
	}
}
