package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/c360studio/devteam/bus"
	"github.com/c360studio/devteam/events"
	"github.com/c360studio/devteam/metrics"
	"github.com/c360studio/devteam/state"
)

// ErrAlreadyStarted is returned when Run is called twice.
var ErrAlreadyStarted = errors.New("workflow already started")

// Workflow advances one project through the staged lifecycle. One Run call
// drives the whole lifecycle on the calling goroutine; agents work their
// assignments concurrently and the workflow joins on their completions at
// each stage barrier.
type Workflow struct {
	project *state.Project
	bus     *bus.Bus
	logger  *slog.Logger
	sink    events.Sink

	sequence           []state.Stage
	assignments        map[state.Stage][]string
	stageTimeout       time.Duration
	maxRefinementLoops int

	mu              sync.Mutex
	status          Status
	errs            []string
	refinementLoops int
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithSequence overrides the stage sequence. It must start at StageInitial
// and end at StageCompleted; the default is the full lifecycle.
func WithSequence(seq []state.Stage) Option {
	return func(w *Workflow) {
		w.sequence = seq
	}
}

// WithAssignments sets which agent roles work each stage. A stage with no
// roles auto-completes.
func WithAssignments(assignments map[state.Stage][]string) Option {
	return func(w *Workflow) {
		w.assignments = assignments
	}
}

// WithStageTimeout bounds how long one stage barrier may wait. Zero
// disables the timeout.
func WithStageTimeout(d time.Duration) Option {
	return func(w *Workflow) {
		w.stageTimeout = d
	}
}

// WithMaxRefinementLoops caps how many times the requirements refinement
// stage may loop back to analysis.
func WithMaxRefinementLoops(n int) Option {
	return func(w *Workflow) {
		w.maxRefinementLoops = n
	}
}

// WithSink sets the event sink progress is reported through.
func WithSink(sink events.Sink) Option {
	return func(w *Workflow) {
		w.sink = sink
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

// New creates a workflow for a project.
func New(project *state.Project, b *bus.Bus, opts ...Option) *Workflow {
	w := &Workflow{
		project:            project,
		bus:                b,
		logger:             slog.Default(),
		sink:               events.NopSink{},
		sequence:           state.DefaultSequence(),
		assignments:        map[state.Stage][]string{},
		maxRefinementLoops: 2,
		status:             StatusPending,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Status returns the run-level status.
func (w *Workflow) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Errors returns the failures accumulated so far.
func (w *Workflow) Errors() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.errs))
	copy(out, w.errs)
	return out
}

// Progress reports the completed share of the lifecycle, 0..100.
func (w *Workflow) Progress() float64 {
	current := w.project.CurrentStage()
	idx := slices.Index(w.sequence, current)
	if idx <= 0 {
		return 0
	}
	return float64(idx) / float64(len(w.sequence)-1) * 100
}

// ValidateTransition checks that moving from one stage to another is legal:
// the immediate successor in the sequence, or the refinement loop-back pair
// (requirements_refinement back to requirements_analysis).
func (w *Workflow) ValidateTransition(from, to state.Stage) error {
	fromIdx := slices.Index(w.sequence, from)
	toIdx := slices.Index(w.sequence, to)
	if fromIdx < 0 || toIdx < 0 {
		return fmt.Errorf("stage not in sequence: %s -> %s", from, to)
	}
	if toIdx == fromIdx+1 {
		return nil
	}
	if from == state.StageRequirementsRefinement && to == state.StageRequirementsAnalysis {
		return nil
	}
	return fmt.Errorf("illegal stage transition %s -> %s: stages advance one at a time", from, to)
}

// Run drives the project from the initial stage to completion. It blocks
// until the lifecycle finishes, a stage fails, or the context is cancelled.
func (w *Workflow) Run(ctx context.Context, requirements string) error {
	w.mu.Lock()
	if w.status != StatusPending {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.status = StatusRunning
	w.mu.Unlock()

	w.project.SetRequirements(requirements)
	w.logger.Info("Workflow started", "project", w.project.Name())

	w.bus.Publish(bus.NewMessage(bus.TypeWorkflowStart, "workflow", map[string]any{
		bus.KeyProject: w.project.Name(),
	}))
	w.sink.PublishProjectStatus(ctx, events.ProjectStatus{
		ProjectName: w.project.Name(),
		Status:      string(StatusRunning),
		Timestamp:   time.Now(),
	})

	idx := 1 // Skip the initial stage
	for idx < len(w.sequence) && !w.sequence[idx].IsTerminal() {
		stage := w.sequence[idx]

		if err := w.advanceTo(stage); err != nil {
			return w.fail(ctx, err)
		}

		start := time.Now()
		err := w.runStage(ctx, stage)
		metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())

		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return w.stop(err)
		case err != nil:
			return w.fail(ctx, err)
		}

		if next, looped := w.nextIndex(idx, stage); looped {
			w.logger.Info("Refinement loop-back to analysis",
				"project", w.project.Name(), "loop", w.refinementLoops)
			idx = next
		} else {
			idx = next
		}
	}

	if err := w.advanceTo(state.StageCompleted); err != nil {
		return w.fail(ctx, err)
	}

	w.mu.Lock()
	w.status = StatusCompleted
	w.mu.Unlock()

	w.bus.Publish(bus.NewMessage(bus.TypeWorkflowComplete, "workflow", map[string]any{
		bus.KeyProject: w.project.Name(),
	}))
	w.sink.PublishProjectStatus(ctx, events.ProjectStatus{
		ProjectName: w.project.Name(),
		Status:      string(StatusCompleted),
		Timestamp:   time.Now(),
	})
	w.logger.Info("Workflow completed", "project", w.project.Name())
	return nil
}

// nextIndex decides where the run loop goes after a stage, handling the
// refinement loop-back. Returns the next index and whether a loop-back
// happened.
func (w *Workflow) nextIndex(idx int, stage state.Stage) (int, bool) {
	if stage != state.StageRequirementsRefinement || !w.reanalysisRequested() {
		return idx + 1, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.refinementLoops >= w.maxRefinementLoops {
		w.logger.Warn("Refinement loop budget exhausted, proceeding",
			"project", w.project.Name(), "loops", w.refinementLoops)
		return idx + 1, false
	}
	w.refinementLoops++

	analysisIdx := slices.Index(w.sequence, state.StageRequirementsAnalysis)
	if analysisIdx < 0 {
		return idx + 1, false
	}
	return analysisIdx, true
}

// reanalysisRequested reports whether any completed refinement task asked
// for another analysis pass via its result payload.
func (w *Workflow) reanalysisRequested() bool {
	for _, task := range w.project.TasksForStage(state.StageRequirementsRefinement) {
		if task.Status != state.TaskCompleted {
			continue
		}
		if flag, ok := task.Result["needs_reanalysis"].(bool); ok && flag {
			return true
		}
	}
	return false
}

// advanceTo validates and records a stage transition, publishing
// STAGE_START for substantive stages.
func (w *Workflow) advanceTo(stage state.Stage) error {
	current := w.project.CurrentStage()
	if err := w.ValidateTransition(current, stage); err != nil {
		// Loud failure: an invariant violation, not a degraded mode.
		w.logger.Error("Stage transition rejected", "from", current, "to", stage, "error", err)
		return err
	}

	w.project.SetStage(stage)
	return nil
}

// runStage assigns one task per responsible role and joins on the explicit
// set of task ids. A stage with no responsible roles auto-completes.
func (w *Workflow) runStage(ctx context.Context, stage state.Stage) error {
	w.bus.Publish(bus.NewMessage(bus.TypeStageStart, "workflow", map[string]any{
		bus.KeyProject: w.project.Name(),
		bus.KeyStage:   string(stage),
	}))

	roles := w.assignments[stage]
	if len(roles) == 0 {
		w.logger.Info("Stage has no responsible roles, auto-completing",
			"project", w.project.Name(), "stage", stage)
		w.completeStage(ctx, stage)
		return nil
	}

	kind := state.KindForStage(stage)
	tasks := make([]*state.Task, 0, len(roles))
	for _, role := range roles {
		task := state.NewTask(titleForKind(kind), descriptionForKind(kind), kind, stage, role)
		w.project.AddTask(task)
		tasks = append(tasks, task)
	}

	barrier := newStageBarrier(tasks)
	sub := w.bus.Subscribe(bus.TypeTopic(bus.TypeTaskComplete), barrier.observe)
	defer w.bus.Unsubscribe(sub)

	for _, task := range tasks {
		w.logger.Info("Task assigned",
			"project", w.project.Name(),
			"stage", stage,
			"task_id", task.ID,
			"role", task.AssignedRole)
		w.bus.Publish(bus.NewMessage(bus.TypeTaskAssigned, "workflow", map[string]any{
			bus.KeyTaskID:    task.ID,
			bus.KeyTaskTitle: task.Title,
			bus.KeyTaskKind:  string(task.Kind),
			bus.KeyStage:     string(stage),
		}).WithReceiver(task.AssignedRole))
	}

	var timeoutC <-chan time.Time
	if w.stageTimeout > 0 {
		timer := time.NewTimer(w.stageTimeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case <-barrier.done:
	case <-ctx.Done():
		return ctx.Err()
	case <-timeoutC:
		return fmt.Errorf("stage %s timed out after %s", stage, w.stageTimeout)
	}

	for _, outcome := range barrier.outcomes() {
		metrics.TasksFinished.WithLabelValues(string(stage), outcome.status).Inc()
		w.sink.PublishTaskOutcome(ctx, events.TaskOutcome{
			ProjectName: w.project.Name(),
			TaskID:      outcome.taskID,
			Title:       outcome.title,
			Stage:       string(stage),
			Status:      outcome.status,
			Error:       outcome.errText,
			Timestamp:   time.Now(),
		})
	}

	if failed := barrier.failures(); len(failed) > 0 {
		return fmt.Errorf("stage %s: %d task(s) failed: %s",
			stage, len(failed), strings.Join(failed, "; "))
	}

	w.completeStage(ctx, stage)
	return nil
}

func (w *Workflow) completeStage(ctx context.Context, stage state.Stage) {
	w.bus.Publish(bus.NewMessage(bus.TypeStageComplete, "workflow", map[string]any{
		bus.KeyProject: w.project.Name(),
		bus.KeyStage:   string(stage),
	}))
	w.sink.PublishProgress(ctx, events.ProjectProgress{
		ProjectName: w.project.Name(),
		Stage:       string(stage),
		Percent:     w.Progress(),
		Timestamp:   time.Now(),
	})
}

// fail records a terminal failure. A failed task blocks advancement; retry
// is external.
func (w *Workflow) fail(ctx context.Context, err error) error {
	w.mu.Lock()
	w.status = StatusFailed
	w.errs = append(w.errs, err.Error())
	w.mu.Unlock()

	w.sink.PublishProjectStatus(ctx, events.ProjectStatus{
		ProjectName: w.project.Name(),
		Status:      string(StatusFailed),
		Detail:      err.Error(),
		Timestamp:   time.Now(),
	})
	w.logger.Error("Workflow failed", "project", w.project.Name(), "error", err)
	return err
}

// stop records cooperative cancellation as a distinct terminal status.
func (w *Workflow) stop(err error) error {
	w.mu.Lock()
	w.status = StatusStopped
	w.mu.Unlock()

	// The run context is gone; report shutdown with a fresh one.
	w.sink.PublishProjectStatus(context.Background(), events.ProjectStatus{
		ProjectName: w.project.Name(),
		Status:      string(StatusStopped),
		Detail:      err.Error(),
		Timestamp:   time.Now(),
	})
	w.logger.Info("Workflow stopped", "project", w.project.Name(), "reason", err)
	return err
}

// titleForKind returns the human-readable task title for a kind.
func titleForKind(kind state.TaskKind) string {
	switch kind {
	case state.KindGatherRequirements:
		return "Gather requirements"
	case state.KindAnalyzeRequirements:
		return "Analyze requirements"
	case state.KindRefineRequirements:
		return "Refine requirements"
	case state.KindDesignArchitecture:
		return "Design system architecture"
	case state.KindDesignInterface:
		return "Design user interface"
	case state.KindBuildPrototype:
		return "Build prototype"
	case state.KindImplement:
		return "Implement solution"
	case state.KindWriteTests:
		return "Write tests"
	case state.KindAssureQuality:
		return "Assure quality"
	default:
		return string(kind)
	}
}

func descriptionForKind(kind state.TaskKind) string {
	switch kind {
	case state.KindGatherRequirements:
		return "Turn the raw project input into a structured requirements statement."
	case state.KindAnalyzeRequirements:
		return "Classify and prioritize the gathered requirements, flagging gaps."
	case state.KindRefineRequirements:
		return "Resolve the gaps and ambiguities found during analysis."
	case state.KindDesignArchitecture:
		return "Produce the system architecture from the refined requirements."
	case state.KindDesignInterface:
		return "Describe screens, flows, and interaction patterns."
	case state.KindBuildPrototype:
		return "Outline a throwaway proof-of-concept build."
	case state.KindImplement:
		return "Produce the production implementation plan."
	case state.KindWriteTests:
		return "Derive the test plan from requirements and implementation plan."
	case state.KindAssureQuality:
		return "Review all produced documents for consistency and completeness."
	default:
		return ""
	}
}
