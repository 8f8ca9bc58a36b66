// Package persist records workflow history durably so runs can be audited
// after the process exits. The executor writes through the Store seam; the
// SQLite implementation is the production path and NopStore serves tests
// and ephemeral runs.
package persist

import (
	"context"
	"time"
)

// ArtifactRecord is a generated document registered by an agent.
type ArtifactRecord struct {
	Project   string
	Name      string
	Path      string
	CreatedAt time.Time
}

// DecisionRecord is a design decision captured during a run.
type DecisionRecord struct {
	Project   string
	Text      string
	Author    string
	Rationale string
	CreatedAt time.Time
}

// TaskEvent is one task status transition.
type TaskEvent struct {
	Project   string
	TaskID    string
	Title     string
	Stage     string
	Status    string
	Error     string
	CreatedAt time.Time
}

// LLMCallRecord is the token accounting of one generation call.
type LLMCallRecord struct {
	Project          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	CreatedAt        time.Time
}

// Snapshot is a point-in-time serialization of project state.
type Snapshot struct {
	Project   string
	Stage     string
	Data      []byte
	CreatedAt time.Time
}

// Store persists workflow history. Implementations must be safe for
// concurrent use.
type Store interface {
	RecordArtifact(ctx context.Context, rec ArtifactRecord) error
	RecordDecision(ctx context.Context, rec DecisionRecord) error
	RecordTaskEvent(ctx context.Context, ev TaskEvent) error
	RecordLLMCall(ctx context.Context, rec LLMCallRecord) error
	SaveSnapshot(ctx context.Context, snap Snapshot) error

	// LatestSnapshot returns the most recent snapshot for a project, or
	// nil when none exists.
	LatestSnapshot(ctx context.Context, project string) (*Snapshot, error)

	// TaskEvents returns all recorded transitions for a project in
	// insertion order.
	TaskEvents(ctx context.Context, project string) ([]TaskEvent, error)

	// Decisions returns all recorded decisions for a project in
	// insertion order.
	Decisions(ctx context.Context, project string) ([]DecisionRecord, error)

	Close() error
}

// NopStore discards all records.
type NopStore struct{}

func (NopStore) RecordArtifact(context.Context, ArtifactRecord) error { return nil }
func (NopStore) RecordDecision(context.Context, DecisionRecord) error { return nil }
func (NopStore) RecordTaskEvent(context.Context, TaskEvent) error     { return nil }
func (NopStore) RecordLLMCall(context.Context, LLMCallRecord) error   { return nil }
func (NopStore) SaveSnapshot(context.Context, Snapshot) error         { return nil }
func (NopStore) LatestSnapshot(context.Context, string) (*Snapshot, error) {
	return nil, nil
}
func (NopStore) TaskEvents(context.Context, string) ([]TaskEvent, error) {
	return nil, nil
}
func (NopStore) Decisions(context.Context, string) ([]DecisionRecord, error) {
	return nil, nil
}
func (NopStore) Close() error { return nil }
