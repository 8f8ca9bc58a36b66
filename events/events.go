// Package events defines the outbound notification seam. The executor and
// workflow report progress through a Sink; implementations fan the events
// out to logs, NATS subjects, or test recorders.
package events

import (
	"context"
	"time"
)

// ProjectProgress reports workflow advancement through stages.
type ProjectProgress struct {
	ProjectName string    `json:"project_name"`
	Stage       string    `json:"stage"`
	Percent     float64   `json:"percent"`
	Timestamp   time.Time `json:"timestamp"`
}

// AgentStatus reports an agent starting or finishing work. AgentName and
// TokensUsed are known only when the work finished.
type AgentStatus struct {
	ProjectName string    `json:"project_name"`
	AgentName   string    `json:"agent_name,omitempty"`
	Role        string    `json:"role"`
	Status      string    `json:"status"` // "working", "idle", "failed"
	Detail      string    `json:"detail,omitempty"`
	TokensUsed  int       `json:"tokens_used,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// TaskOutcome reports a task reaching a terminal status.
type TaskOutcome struct {
	ProjectName string    `json:"project_name"`
	TaskID      string    `json:"task_id"`
	Title       string    `json:"title"`
	Stage       string    `json:"stage"`
	Status      string    `json:"status"` // "completed" or "failed"
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ProjectStatus reports a run-level state change.
type ProjectStatus struct {
	ProjectName string    `json:"project_name"`
	Status      string    `json:"status"` // "running", "completed", "failed", "stopped"
	Detail      string    `json:"detail,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// DocumentGenerated reports an artifact written to disk.
type DocumentGenerated struct {
	ProjectName string    `json:"project_name"`
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Timestamp   time.Time `json:"timestamp"`
}

// Sink receives workflow events. Implementations must be safe for
// concurrent use; delivery is fire-and-forget and must not block the
// workflow on failure.
type Sink interface {
	PublishProgress(ctx context.Context, ev ProjectProgress)
	PublishAgentStatus(ctx context.Context, ev AgentStatus)
	PublishTaskOutcome(ctx context.Context, ev TaskOutcome)
	PublishProjectStatus(ctx context.Context, ev ProjectStatus)
	PublishDocument(ctx context.Context, ev DocumentGenerated)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) PublishProgress(context.Context, ProjectProgress)    {}
func (NopSink) PublishAgentStatus(context.Context, AgentStatus)     {}
func (NopSink) PublishTaskOutcome(context.Context, TaskOutcome)     {}
func (NopSink) PublishProjectStatus(context.Context, ProjectStatus) {}
func (NopSink) PublishDocument(context.Context, DocumentGenerated)  {}

// MultiSink fans events out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) PublishProgress(ctx context.Context, ev ProjectProgress) {
	for _, s := range m {
		s.PublishProgress(ctx, ev)
	}
}

func (m MultiSink) PublishAgentStatus(ctx context.Context, ev AgentStatus) {
	for _, s := range m {
		s.PublishAgentStatus(ctx, ev)
	}
}

func (m MultiSink) PublishTaskOutcome(ctx context.Context, ev TaskOutcome) {
	for _, s := range m {
		s.PublishTaskOutcome(ctx, ev)
	}
}

func (m MultiSink) PublishProjectStatus(ctx context.Context, ev ProjectStatus) {
	for _, s := range m {
		s.PublishProjectStatus(ctx, ev)
	}
}

func (m MultiSink) PublishDocument(ctx context.Context, ev DocumentGenerated) {
	for _, s := range m {
		s.PublishDocument(ctx, ev)
	}
}
