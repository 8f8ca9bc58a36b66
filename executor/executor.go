// Package executor owns concurrently running project executions. A Registry
// starts one execution per project name, wires the team, bus, workflow, and
// persistence together, and exposes control and progress handles while the
// run proceeds in the background.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/c360studio/devteam/agent"
	"github.com/c360studio/devteam/bus"
	"github.com/c360studio/devteam/document"
	"github.com/c360studio/devteam/events"
	"github.com/c360studio/devteam/llm"
	"github.com/c360studio/devteam/persist"
	"github.com/c360studio/devteam/state"
	"github.com/c360studio/devteam/workflow"
)

// ErrAlreadyRunning is returned when a project with the same name is
// already executing.
var ErrAlreadyRunning = errors.New("project execution already running")

// Deps carries the shared services every execution is built from. Generator
// is required; the rest default to safe no-ops.
type Deps struct {
	Generator llm.Generator
	Docs      *document.Store
	Store     persist.Store
	Sink      events.Sink
	Logger    *slog.Logger

	// Assignments overrides the team-derived stage-to-roles table.
	Assignments map[state.Stage][]string

	// StageTimeout bounds each stage barrier. Zero disables it.
	StageTimeout time.Duration

	// MaxRefinementLoops caps refinement-to-analysis loop-backs.
	// Zero keeps the workflow default.
	MaxRefinementLoops int

	// CallTimeout bounds one agent generation call.
	CallTimeout time.Duration
}

// Registry tracks running executions by project name. It has no global
// instance; callers construct one and pass it where it is needed.
type Registry struct {
	deps Deps

	mu         sync.Mutex
	executions map[string]*Execution
}

// NewRegistry creates an execution registry over the shared services.
func NewRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Sink == nil {
		deps.Sink = events.NopSink{}
	}
	if deps.Store == nil {
		deps.Store = persist.NopStore{}
	}
	return &Registry{
		deps:       deps,
		executions: make(map[string]*Execution),
	}
}

// StartExecution builds a fresh bus, project, and team for the named project
// and runs its workflow in the background. A second start for the same name
// is rejected until the first run reaches a terminal status.
func (r *Registry) StartExecution(ctx context.Context, name, description, requirements string) (*Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.executions[name]; ok && !existing.Status().IsTerminal() {
		return nil, ErrAlreadyRunning
	}

	b := bus.New()
	project := state.NewProject(name, description)
	runCtx, cancel := context.WithCancel(ctx)

	exec := &Execution{
		name:    name,
		bus:     b,
		project: project,
		cancel:  cancel,
		started: time.Now(),
		done:    make(chan struct{}),
	}

	gen := &meteredGenerator{
		inner:   r.deps.Generator,
		exec:    exec,
		store:   r.deps.Store,
		project: name,
		logger:  r.deps.Logger,
	}

	team := agent.DefaultTeam(agent.Deps{
		Bus:         b,
		Project:     project,
		Generator:   gen,
		Docs:        r.deps.Docs,
		Logger:      r.deps.Logger,
		CallTimeout: r.deps.CallTimeout,
	})
	for _, member := range team {
		member.Attach(runCtx)
	}

	assignments := r.deps.Assignments
	if assignments == nil {
		assignments = agent.StageAssignments(team)
	}

	opts := []workflow.Option{
		workflow.WithAssignments(assignments),
		workflow.WithSink(r.deps.Sink),
		workflow.WithLogger(r.deps.Logger),
	}
	if r.deps.StageTimeout > 0 {
		opts = append(opts, workflow.WithStageTimeout(r.deps.StageTimeout))
	}
	if r.deps.MaxRefinementLoops > 0 {
		opts = append(opts, workflow.WithMaxRefinementLoops(r.deps.MaxRefinementLoops))
	}
	exec.workflow = workflow.New(project, b, opts...)

	r.recordHistory(exec)
	r.executions[name] = exec

	go func() {
		defer close(exec.done)
		defer cancel()

		if err := exec.workflow.Run(runCtx, requirements); err != nil {
			r.deps.Logger.Warn("Execution finished with error",
				"project", name, "status", exec.workflow.Status(), "error", err)
		}
		exec.markFinished()
		r.writeFinalReport(exec)
		r.saveDecisions(exec)
		r.saveSnapshot(exec)
	}()

	return exec, nil
}

// StopExecution cancels a running execution. It reports whether a running
// execution was actually found and stopped; a finished run returns false.
func (r *Registry) StopExecution(name string) bool {
	r.mu.Lock()
	exec, ok := r.executions[name]
	r.mu.Unlock()
	if !ok || exec.Status().IsTerminal() {
		return false
	}
	exec.cancel()
	return true
}

// Execution returns the handle for a project, running or finished.
func (r *Registry) Execution(name string) (*Execution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exec, ok := r.executions[name]
	return exec, ok
}

// Names returns the tracked project names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.executions))
	for name := range r.executions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// recordHistory subscribes durable writers to the execution's bus so task
// transitions and generated documents survive the process, and mirrors
// agent activity to the event sink.
func (r *Registry) recordHistory(exec *Execution) {
	store := r.deps.Store
	sink := r.deps.Sink
	logger := r.deps.Logger

	exec.bus.Subscribe(bus.TypeTopic(bus.TypeStageComplete), func(msg *bus.Message) {
		stage, _ := msg.Content[bus.KeyStage].(string)
		exec.recordStage(state.Stage(stage))
	})

	exec.bus.Subscribe(bus.TypeTopic(bus.TypeTaskAssigned), func(msg *bus.Message) {
		title, _ := msg.Content[bus.KeyTaskTitle].(string)
		sink.PublishAgentStatus(context.Background(), events.AgentStatus{
			ProjectName: exec.name,
			Role:        msg.Receiver,
			Status:      "working",
			Detail:      title,
			Timestamp:   time.Now(),
		})
	})

	exec.bus.Subscribe(bus.TypeTopic(bus.TypeTaskComplete), func(msg *bus.Message) {
		taskID, _ := msg.Content[bus.KeyTaskID].(string)
		title, _ := msg.Content[bus.KeyTaskTitle].(string)
		stage, _ := msg.Content[bus.KeyStage].(string)
		status, _ := msg.Content[bus.KeyTaskStatus].(string)
		errText, _ := msg.Content[bus.KeyError].(string)

		agentName, _ := msg.Content[bus.KeyAgent].(string)
		tokens, _ := msg.Content[bus.KeyTokens].(int)

		agentStatus := "idle"
		if status == string(state.TaskFailed) {
			agentStatus = "failed"
		}
		sink.PublishAgentStatus(context.Background(), events.AgentStatus{
			ProjectName: exec.name,
			AgentName:   agentName,
			Role:        msg.Sender,
			Status:      agentStatus,
			Detail:      errText,
			TokensUsed:  tokens,
			Timestamp:   time.Now(),
		})

		if err := store.RecordTaskEvent(context.Background(), persist.TaskEvent{
			Project:   exec.name,
			TaskID:    taskID,
			Title:     title,
			Stage:     stage,
			Status:    status,
			Error:     errText,
			CreatedAt: time.Now(),
		}); err != nil {
			logger.Warn("Cannot persist task event", "project", exec.name, "error", err)
		}
	})

	exec.bus.Subscribe(bus.TypeTopic(bus.TypeDocumentGenerated), func(msg *bus.Message) {
		name, _ := msg.Content["name"].(string)
		path, _ := msg.Content["path"].(string)

		sink.PublishDocument(context.Background(), events.DocumentGenerated{
			ProjectName: exec.name,
			Name:        name,
			Path:        path,
			Timestamp:   time.Now(),
		})

		if err := store.RecordArtifact(context.Background(), persist.ArtifactRecord{
			Project:   exec.name,
			Name:      name,
			Path:      path,
			CreatedAt: time.Now(),
		}); err != nil {
			logger.Warn("Cannot persist artifact", "project", exec.name, "error", err)
		}
	})
}

// writeFinalReport renders everything the team produced into one combined
// markdown report at the end of the run.
func (r *Registry) writeFinalReport(exec *Execution) {
	if r.deps.Docs == nil {
		return
	}

	sections := make(map[string]any)
	for _, section := range []state.Section{
		state.SectionRequirements,
		state.SectionArchitecture,
		state.SectionDesign,
		state.SectionImplementationPlan,
		state.SectionMetadata,
	} {
		if values := exec.project.SectionValues(section); len(values) > 0 {
			sections[string(section)] = values
		}
	}
	if decisions := exec.project.Decisions(); len(decisions) > 0 {
		ds := make(map[string]any, len(decisions))
		for _, d := range decisions {
			ds[d.Text] = d.Rationale
		}
		sections["decisions"] = ds
	}

	markdown := document.NewTransformer().Transform(document.Content{
		Title:    exec.project.Name() + " Development Report",
		Sections: sections,
		Status:   exec.workflow.Status().String(),
	})

	path, err := r.deps.Docs.Write("project-report.md", []byte(markdown))
	if err != nil {
		r.deps.Logger.Warn("Cannot write final report", "project", exec.name, "error", err)
		return
	}
	exec.project.AddArtifact("project-report", path)

	if err := r.deps.Store.RecordArtifact(context.Background(), persist.ArtifactRecord{
		Project:   exec.name,
		Name:      "project-report",
		Path:      path,
		CreatedAt: time.Now(),
	}); err != nil {
		r.deps.Logger.Warn("Cannot persist final report record", "project", exec.name, "error", err)
	}
}

// saveDecisions writes the decisions the team recorded during the run to
// the durable store.
func (r *Registry) saveDecisions(exec *Execution) {
	for _, d := range exec.project.Decisions() {
		if err := r.deps.Store.RecordDecision(context.Background(), persist.DecisionRecord{
			Project:   exec.name,
			Text:      d.Text,
			Author:    d.Author,
			Rationale: d.Rationale,
			CreatedAt: d.Timestamp,
		}); err != nil {
			r.deps.Logger.Warn("Cannot persist decision", "project", exec.name, "error", err)
		}
	}
}

// snapshotPayload is the serialized project state saved at run end.
type snapshotPayload struct {
	Name         string           `json:"name"`
	Stage        string           `json:"stage"`
	Requirements string           `json:"requirements"`
	Tasks        []state.Task     `json:"tasks"`
	Artifacts    []state.Artifact `json:"artifacts"`
	Decisions    []state.Decision `json:"decisions"`
	StageHistory []StageRecord    `json:"stage_history"`
}

func (r *Registry) saveSnapshot(exec *Execution) {
	payload := snapshotPayload{
		Name:         exec.project.Name(),
		Stage:        string(exec.project.CurrentStage()),
		Requirements: exec.project.Requirements(),
		Tasks:        exec.project.Tasks(),
		Artifacts:    exec.project.Artifacts(),
		Decisions:    exec.project.Decisions(),
		StageHistory: exec.StageHistory(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		r.deps.Logger.Warn("Cannot serialize snapshot", "project", exec.name, "error", err)
		return
	}
	if err := r.deps.Store.SaveSnapshot(context.Background(), persist.Snapshot{
		Project:   exec.name,
		Stage:     payload.Stage,
		Data:      data,
		CreatedAt: time.Now(),
	}); err != nil {
		r.deps.Logger.Warn("Cannot persist snapshot", "project", exec.name, "error", err)
	}
}
