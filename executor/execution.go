package executor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360studio/devteam/bus"
	"github.com/c360studio/devteam/llm"
	"github.com/c360studio/devteam/persist"
	"github.com/c360studio/devteam/state"
	"github.com/c360studio/devteam/workflow"
)

// Execution is the control handle for one running or finished project.
type Execution struct {
	name     string
	bus      *bus.Bus
	project  *state.Project
	workflow *workflow.Workflow
	cancel   context.CancelFunc
	started  time.Time
	done     chan struct{}

	mu               sync.Mutex
	finished         time.Time
	requests         int
	promptTokens     int
	completionTokens int
	stages           []StageRecord
}

// StageRecord is one completed stage with its completion time.
type StageRecord struct {
	Stage       state.Stage `json:"stage"`
	CompletedAt time.Time   `json:"completed_at"`
}

// Name returns the project name.
func (e *Execution) Name() string { return e.name }

// Project returns the project state aggregate.
func (e *Execution) Project() *state.Project { return e.project }

// Bus returns the execution's message bus, for observers.
func (e *Execution) Bus() *bus.Bus { return e.bus }

// Status returns the workflow run status.
func (e *Execution) Status() workflow.Status { return e.workflow.Status() }

// Errors returns the workflow's accumulated failures.
func (e *Execution) Errors() []string { return e.workflow.Errors() }

// Progress reports the completed share of the lifecycle, 0..100.
func (e *Execution) Progress() float64 { return e.workflow.Progress() }

// Artifacts returns the documents generated so far.
func (e *Execution) Artifacts() []state.Artifact { return e.project.Artifacts() }

// Done is closed when the run reaches a terminal status.
func (e *Execution) Done() <-chan struct{} { return e.done }

// ExecutionTime returns how long the run has been going, or its total
// duration once finished.
func (e *Execution) ExecutionTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.finished.IsZero() {
		return e.finished.Sub(e.started)
	}
	return time.Since(e.started)
}

// Usage returns the accumulated generation counters: calls made, prompt
// tokens, and completion tokens.
func (e *Execution) Usage() (requests, promptTokens, completionTokens int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requests, e.promptTokens, e.completionTokens
}

// StageHistory returns the stages completed so far, in completion order.
func (e *Execution) StageHistory() []StageRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]StageRecord, len(e.stages))
	copy(out, e.stages)
	return out
}

func (e *Execution) recordStage(stage state.Stage) {
	e.mu.Lock()
	e.stages = append(e.stages, StageRecord{Stage: stage, CompletedAt: time.Now()})
	e.mu.Unlock()
}

func (e *Execution) markFinished() {
	e.mu.Lock()
	e.finished = time.Now()
	e.mu.Unlock()
}

func (e *Execution) addUsage(usage llm.TokenUsage) {
	e.mu.Lock()
	e.requests++
	e.promptTokens += usage.PromptTokens
	e.completionTokens += usage.CompletionTokens
	e.mu.Unlock()
}

// meteredGenerator wraps the shared generator with per-execution token
// accounting and a durable record per call.
type meteredGenerator struct {
	inner   llm.Generator
	exec    *Execution
	store   persist.Store
	project string
	logger  *slog.Logger
}

func (g *meteredGenerator) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	resp, err := g.inner.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	g.exec.addUsage(resp.Usage)
	if rerr := g.store.RecordLLMCall(ctx, persist.LLMCallRecord{
		Project:          g.project,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		CreatedAt:        time.Now(),
	}); rerr != nil {
		g.logger.Warn("Cannot persist generation record", "project", g.project, "error", rerr)
	}
	return resp, nil
}

// Stream passes through without accounting; streamed calls report usage via
// the client's usage hook instead.
func (g *meteredGenerator) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	return g.inner.Stream(ctx, req)
}
