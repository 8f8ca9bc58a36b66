package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/c360studio/devteam/bus"
	"github.com/c360studio/devteam/document"
	"github.com/c360studio/devteam/llm"
	"github.com/c360studio/devteam/model"
	"github.com/c360studio/devteam/state"
)

// Deps carries the shared collaborators every agent needs.
type Deps struct {
	Bus       *bus.Bus
	Project   *state.Project
	Generator llm.Generator
	Docs      *document.Store
	Logger    *slog.Logger

	// CallTimeout bounds one generation call. Zero uses a 5 minute default.
	CallTimeout time.Duration
}

// performFunc executes one task and returns its result payload. Concrete
// agents supply it and dispatch on task.Kind inside.
type performFunc func(ctx context.Context, task state.Task) (map[string]any, error)

// baseConfig is the static identity of a concrete agent.
type baseConfig struct {
	name         string
	role         string
	systemPrompt string
	capabilities []Capability
	stages       []state.Stage
	section      state.Section
	perform      performFunc
}

// BaseAgent implements the shared task lifecycle: accept the assignment,
// run the role-specific work, and always publish TASK_COMPLETE back to the
// workflow, whether the task succeeded or failed.
type BaseAgent struct {
	cfg  baseConfig
	deps Deps

	// tokens counts every prompt and completion token this agent's
	// generation calls consumed, across tasks.
	tokens atomic.Int64
}

func newBase(deps Deps, cfg baseConfig) *BaseAgent {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.CallTimeout <= 0 {
		deps.CallTimeout = 5 * time.Minute
	}
	return &BaseAgent{cfg: cfg, deps: deps}
}

// Name returns the agent instance name.
func (a *BaseAgent) Name() string { return a.cfg.name }

// Role returns the agent role.
func (a *BaseAgent) Role() string { return a.cfg.role }

// SystemPrompt returns the persona prompt.
func (a *BaseAgent) SystemPrompt() string { return a.cfg.systemPrompt }

// Capabilities advertises the agent's capabilities.
func (a *BaseAgent) Capabilities() []Capability { return a.cfg.capabilities }

// ResponsibleStages lists the stages this agent works.
func (a *BaseAgent) ResponsibleStages() []state.Stage { return a.cfg.stages }

// Attach subscribes the agent to its receiver topic. Assignments and
// requests are handled on their own goroutines so agents sharing a stage
// work concurrently. The returned subscription detaches the agent.
func (a *BaseAgent) Attach(ctx context.Context) bus.Subscription {
	return a.deps.Bus.Subscribe(bus.ReceiverTopic(a.cfg.role), func(msg *bus.Message) {
		switch msg.Type {
		case bus.TypeTaskAssigned:
			go a.HandleTaskAssignment(ctx, msg)
		case bus.TypeAgentRequest:
			go func() {
				resp, err := a.ProcessRequest(ctx, msg)
				if err != nil {
					a.deps.Logger.Warn("Agent request failed",
						"agent", a.cfg.name, "error", err)
					return
				}
				a.deps.Bus.Publish(resp)
			}()
		}
	})
}

// HandleTaskAssignment runs one task to a terminal status. The terminal
// TASK_COMPLETE publish is unconditional: a missing completion would hang
// the stage barrier.
func (a *BaseAgent) HandleTaskAssignment(ctx context.Context, msg *bus.Message) {
	taskID, _ := msg.Content[bus.KeyTaskID].(string)
	task, ok := a.deps.Project.Task(taskID)
	if !ok {
		a.deps.Logger.Error("Assignment references unknown task",
			"agent", a.cfg.name, "task_id", taskID)
		return
	}

	logger := a.deps.Logger.With("agent", a.cfg.name, "task_id", task.ID, "kind", task.Kind)

	if err := a.deps.Project.SetTaskStatus(task.ID, state.TaskInProgress, nil, ""); err != nil {
		logger.Error("Cannot accept task", "error", err)
		return
	}
	logger.Info("Task accepted", "stage", task.Stage)

	tokensBefore := a.tokens.Load()
	result, err := a.cfg.perform(ctx, task)
	tokensUsed := int(a.tokens.Load() - tokensBefore)

	status := state.TaskCompleted
	errText := ""
	if err != nil {
		status = state.TaskFailed
		errText = err.Error()
		logger.Warn("Task failed", "error", err)
	} else {
		logger.Info("Task completed")
	}

	if serr := a.deps.Project.SetTaskStatus(task.ID, status, result, errText); serr != nil {
		logger.Error("Cannot record task outcome", "error", serr)
	}

	completion := bus.NewMessage(bus.TypeTaskComplete, a.cfg.role, map[string]any{
		bus.KeyTaskID:     task.ID,
		bus.KeyTaskTitle:  task.Title,
		bus.KeyStage:      string(task.Stage),
		bus.KeyTaskStatus: string(status),
		bus.KeyAgent:      a.cfg.name,
		bus.KeyTokens:     tokensUsed,
		bus.KeyError:      errText,
	}).WithReceiver("workflow").WithCorrelation(msg.ID)
	a.deps.Bus.Publish(completion)
}

// ProcessRequest answers an ad-hoc request with a single generation call.
func (a *BaseAgent) ProcessRequest(ctx context.Context, msg *bus.Message) (*bus.Message, error) {
	text, _ := msg.Content[bus.KeyText].(string)
	if text == "" {
		return nil, fmt.Errorf("%s: request has no text", a.cfg.name)
	}

	content, _, err := a.generate(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%s: process request: %w", a.cfg.name, err)
	}

	return bus.NewMessage(bus.TypeAgentResponse, a.cfg.role, map[string]any{
		bus.KeyText: content,
	}).WithReceiver(msg.Sender).WithCorrelation(msg.ID), nil
}

// generate runs one generation call under the per-call timeout, using the
// capability mapped to this agent's role. Returns the content and the model
// that produced it.
func (a *BaseAgent) generate(ctx context.Context, prompt string) (string, string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.deps.CallTimeout)
	defer cancel()

	resp, err := a.deps.Generator.Complete(callCtx, llm.Request{
		Capability: string(model.CapabilityForRole(a.cfg.role)),
		Messages: []llm.Message{
			{Role: "system", Content: a.cfg.systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", "", err
	}
	a.tokens.Add(int64(resp.Usage.PromptTokens + resp.Usage.CompletionTokens))
	return resp.Content, resp.Model, nil
}

// taskPrompt assembles the generation prompt for a task from the project
// state: the task description, the raw requirements, and the scratch
// sections earlier stages produced.
func (a *BaseAgent) taskPrompt(task state.Task, contextSections ...state.Section) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Project: %s\n", a.deps.Project.Name())
	if desc := a.deps.Project.Description(); desc != "" {
		fmt.Fprintf(&sb, "Description: %s\n", desc)
	}
	sb.WriteString("\n## Task\n")
	sb.WriteString(task.Title)
	sb.WriteString("\n")
	if task.Description != "" {
		sb.WriteString(task.Description)
		sb.WriteString("\n")
	}

	if req := a.deps.Project.Requirements(); req != "" {
		sb.WriteString("\n## Requirements\n")
		sb.WriteString(req)
		sb.WriteString("\n")
	}

	for _, section := range contextSections {
		values := a.deps.Project.SectionValues(section)
		if len(values) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n## Context: %s\n", section)
		for _, key := range a.deps.Project.SectionKeys(section) {
			fmt.Fprintf(&sb, "### %s\n%v\n", key, values[key])
		}
	}

	return sb.String()
}

// saveResult writes the generated content into the agent's own section
// under the given key and returns the standard result payload.
func (a *BaseAgent) saveResult(key, content, producedBy string) (map[string]any, error) {
	if err := a.deps.Project.SetSectionValue(a.cfg.section, key, content); err != nil {
		return nil, err
	}
	return map[string]any{
		"section": string(a.cfg.section),
		"key":     key,
		"model":   producedBy,
	}, nil
}

// writeDocument renders content to a markdown artifact, registers it in
// project state, and announces it on the bus.
func (a *BaseAgent) writeDocument(name, relPath string, content []byte) error {
	if a.deps.Docs == nil {
		return nil
	}

	path, err := a.deps.Docs.Write(relPath, content)
	if err != nil {
		return fmt.Errorf("write document %s: %w", name, err)
	}

	a.deps.Project.AddArtifact(name, path)
	a.deps.Bus.Publish(bus.NewMessage(bus.TypeDocumentGenerated, a.cfg.role, map[string]any{
		"name": name,
		"path": path,
	}))
	return nil
}
