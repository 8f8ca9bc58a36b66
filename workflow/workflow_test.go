package workflow

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c360studio/devteam/bus"
	"github.com/c360studio/devteam/state"
)

// fakeWorker serves a role on the bus: it accepts every assignment and
// reports the scripted terminal status, like a real agent would.
func fakeWorker(b *bus.Bus, project *state.Project, role string, status state.TaskStatus, result map[string]any) *atomic.Int32 {
	var handled atomic.Int32
	b.Subscribe(bus.ReceiverTopic(role), func(msg *bus.Message) {
		if msg.Type != bus.TypeTaskAssigned {
			return
		}
		handled.Add(1)
		taskID, _ := msg.Content[bus.KeyTaskID].(string)

		_ = project.SetTaskStatus(taskID, state.TaskInProgress, nil, "")
		errText := ""
		if status == state.TaskFailed {
			errText = "scripted failure"
		}
		_ = project.SetTaskStatus(taskID, status, result, errText)

		b.Publish(bus.NewMessage(bus.TypeTaskComplete, role, map[string]any{
			bus.KeyTaskID:     taskID,
			bus.KeyTaskStatus: string(status),
			bus.KeyError:      errText,
		}).WithReceiver("workflow"))
	})
	return &handled
}

func shortSequence() []state.Stage {
	return []state.Stage{
		state.StageInitial,
		state.StageRequirementsGathering,
		state.StageImplementation,
		state.StageCompleted,
	}
}

func TestRunCompletesLifecycle(t *testing.T) {
	b := bus.New()
	project := state.NewProject("demo", "")
	fakeWorker(b, project, "project-manager", state.TaskCompleted, nil)
	fakeWorker(b, project, "developer", state.TaskCompleted, nil)

	w := New(project, b,
		WithSequence(shortSequence()),
		WithAssignments(map[state.Stage][]string{
			state.StageRequirementsGathering: {"project-manager"},
			state.StageImplementation:        {"developer"},
		}),
	)

	if err := w.Run(context.Background(), "build a task tracker"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if w.Status() != StatusCompleted {
		t.Errorf("status = %s, want completed", w.Status())
	}
	if got := project.CurrentStage(); got != state.StageCompleted {
		t.Errorf("stage = %s, want completed", got)
	}
	if project.Requirements() != "build a task tracker" {
		t.Errorf("requirements not recorded")
	}
	if w.Progress() != 100 {
		t.Errorf("progress = %f, want 100", w.Progress())
	}
}

func TestRunPublishesOrderedTrace(t *testing.T) {
	b := bus.New()
	project := state.NewProject("demo", "")
	fakeWorker(b, project, "project-manager", state.TaskCompleted, nil)
	fakeWorker(b, project, "developer", state.TaskCompleted, nil)

	w := New(project, b,
		WithSequence(shortSequence()),
		WithAssignments(map[state.Stage][]string{
			state.StageRequirementsGathering: {"project-manager"},
			state.StageImplementation:        {"developer"},
		}),
	)
	if err := w.Run(context.Background(), "req"); err != nil {
		t.Fatal(err)
	}

	var trace []string
	for _, msg := range b.History(bus.HistoryFilter{Sender: "workflow"}) {
		switch msg.Type {
		case bus.TypeWorkflowStart, bus.TypeWorkflowComplete:
			trace = append(trace, string(msg.Type))
		case bus.TypeStageStart, bus.TypeStageComplete:
			stage, _ := msg.Content[bus.KeyStage].(string)
			trace = append(trace, string(msg.Type)+":"+stage)
		}
	}

	want := []string{
		"workflow_start",
		"stage_start:requirements_gathering",
		"stage_complete:requirements_gathering",
		"stage_start:implementation",
		"stage_complete:implementation",
		"workflow_complete",
	}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Errorf("trace[%d] = %s, want %s", i, trace[i], want[i])
		}
	}
}

func TestStageBarrierWaitsForAllRoles(t *testing.T) {
	b := bus.New()
	project := state.NewProject("demo", "")

	// The slow worker completes on its own goroutine after a delay: the
	// stage must not complete until both completions arrive.
	fakeWorker(b, project, "developer", state.TaskCompleted, nil)
	b.Subscribe(bus.ReceiverTopic("devops-specialist"), func(msg *bus.Message) {
		if msg.Type != bus.TypeTaskAssigned {
			return
		}
		taskID, _ := msg.Content[bus.KeyTaskID].(string)
		go func() {
			_ = project.SetTaskStatus(taskID, state.TaskInProgress, nil, "")
			time.Sleep(50 * time.Millisecond)
			_ = project.SetTaskStatus(taskID, state.TaskCompleted, nil, "")
			b.Publish(bus.NewMessage(bus.TypeTaskComplete, "devops-specialist", map[string]any{
				bus.KeyTaskID:     taskID,
				bus.KeyTaskStatus: string(state.TaskCompleted),
			}).WithReceiver("workflow"))
		}()
	})

	w := New(project, b,
		WithSequence([]state.Stage{state.StageInitial, state.StageImplementation, state.StageCompleted}),
		WithAssignments(map[state.Stage][]string{
			state.StageImplementation: {"developer", "devops-specialist"},
		}),
	)

	if err := w.Run(context.Background(), "req"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	tasks := project.TasksForStage(state.StageImplementation)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		if task.Status != state.TaskCompleted {
			t.Errorf("task %s status = %s", task.AssignedRole, task.Status)
		}
	}
}

func TestFailedTaskBlocksAdvancement(t *testing.T) {
	b := bus.New()
	project := state.NewProject("demo", "")
	fakeWorker(b, project, "project-manager", state.TaskFailed, nil)
	dev := fakeWorker(b, project, "developer", state.TaskCompleted, nil)

	w := New(project, b,
		WithSequence(shortSequence()),
		WithAssignments(map[state.Stage][]string{
			state.StageRequirementsGathering: {"project-manager"},
			state.StageImplementation:        {"developer"},
		}),
	)

	err := w.Run(context.Background(), "req")
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(err.Error(), "scripted failure") {
		t.Errorf("error should carry the task failure: %v", err)
	}
	if w.Status() != StatusFailed {
		t.Errorf("status = %s, want failed", w.Status())
	}
	if dev.Load() != 0 {
		t.Error("later stages must not run after a failed stage")
	}
	if len(w.Errors()) == 0 {
		t.Error("failure should be surfaced in Errors()")
	}
}

func TestZeroAgentStageAutoCompletes(t *testing.T) {
	b := bus.New()
	project := state.NewProject("demo", "")

	w := New(project, b, WithSequence(shortSequence()))

	if err := w.Run(context.Background(), "req"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if w.Status() != StatusCompleted {
		t.Errorf("status = %s, want completed", w.Status())
	}
	if got := len(project.Tasks()); got != 0 {
		t.Errorf("auto-completed stages must not create tasks, got %d", got)
	}
}

func TestValidateTransitionRejectsJumps(t *testing.T) {
	w := New(state.NewProject("demo", ""), bus.New())

	if err := w.ValidateTransition(state.StageInitial, state.StageImplementation); err == nil {
		t.Error("non-adjacent jump must be rejected")
	}
	if err := w.ValidateTransition(state.StageInitial, state.StageRequirementsGathering); err != nil {
		t.Errorf("adjacent transition rejected: %v", err)
	}
	if err := w.ValidateTransition(state.StageRequirementsRefinement, state.StageRequirementsAnalysis); err != nil {
		t.Errorf("refinement loop-back rejected: %v", err)
	}
	if err := w.ValidateTransition(state.StageImplementation, state.StageRequirementsGathering); err == nil {
		t.Error("backward jump must be rejected")
	}
}

func TestRefinementLoopBack(t *testing.T) {
	b := bus.New()
	project := state.NewProject("demo", "")
	analyses := fakeWorker(b, project, "requirements-analyst", state.TaskCompleted, nil)

	// The refinement worker always asks for another analysis pass; the
	// loop budget has to stop it.
	b.Subscribe(bus.ReceiverTopic("refiner"), func(msg *bus.Message) {
		if msg.Type != bus.TypeTaskAssigned {
			return
		}
		taskID, _ := msg.Content[bus.KeyTaskID].(string)
		_ = project.SetTaskStatus(taskID, state.TaskInProgress, nil, "")
		_ = project.SetTaskStatus(taskID, state.TaskCompleted, map[string]any{"needs_reanalysis": true}, "")
		b.Publish(bus.NewMessage(bus.TypeTaskComplete, "refiner", map[string]any{
			bus.KeyTaskID:     taskID,
			bus.KeyTaskStatus: string(state.TaskCompleted),
		}).WithReceiver("workflow"))
	})

	w := New(project, b,
		WithSequence([]state.Stage{
			state.StageInitial,
			state.StageRequirementsAnalysis,
			state.StageRequirementsRefinement,
			state.StageCompleted,
		}),
		WithAssignments(map[state.Stage][]string{
			state.StageRequirementsAnalysis:   {"requirements-analyst"},
			state.StageRequirementsRefinement: {"refiner"},
		}),
		WithMaxRefinementLoops(2),
	)

	if err := w.Run(context.Background(), "req"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if w.Status() != StatusCompleted {
		t.Errorf("status = %s, want completed", w.Status())
	}
	// Initial pass + two loop-backs.
	if got := analyses.Load(); got != 3 {
		t.Errorf("analysis ran %d times, want 3", got)
	}
}

func TestStageTimeoutFailsWorkflow(t *testing.T) {
	b := bus.New()
	project := state.NewProject("demo", "")
	// Nobody serves the role: the barrier can only time out.

	w := New(project, b,
		WithSequence([]state.Stage{state.StageInitial, state.StageImplementation, state.StageCompleted}),
		WithAssignments(map[state.Stage][]string{
			state.StageImplementation: {"developer"},
		}),
		WithStageTimeout(50*time.Millisecond),
	)

	err := w.Run(context.Background(), "req")
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if w.Status() != StatusFailed {
		t.Errorf("status = %s, want failed", w.Status())
	}
}

func TestCancellationStopsWorkflow(t *testing.T) {
	b := bus.New()
	project := state.NewProject("demo", "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	w := New(project, b,
		WithSequence([]state.Stage{state.StageInitial, state.StageImplementation, state.StageCompleted}),
		WithAssignments(map[state.Stage][]string{
			state.StageImplementation: {"developer"},
		}),
	)

	err := w.Run(ctx, "req")
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if w.Status() != StatusStopped {
		t.Errorf("status = %s, want stopped", w.Status())
	}

	// No stage-advancing publishes after the stop.
	if got := project.CurrentStage(); got == state.StageCompleted {
		t.Error("stopped workflow must not reach completed")
	}
}

func TestRunTwiceRejected(t *testing.T) {
	b := bus.New()
	project := state.NewProject("demo", "")

	w := New(project, b, WithSequence(shortSequence()))
	if err := w.Run(context.Background(), "req"); err != nil {
		t.Fatal(err)
	}
	if err := w.Run(context.Background(), "req"); err != ErrAlreadyStarted {
		t.Errorf("second Run() = %v, want ErrAlreadyStarted", err)
	}
}
