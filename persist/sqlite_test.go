package persist

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "devteam.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTaskEventsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	events := []TaskEvent{
		{Project: "demo", TaskID: "t-1", Title: "Gather requirements", Stage: "requirements_gathering", Status: "in_progress"},
		{Project: "demo", TaskID: "t-1", Title: "Gather requirements", Stage: "requirements_gathering", Status: "completed"},
		{Project: "demo", TaskID: "t-2", Title: "Implement solution", Stage: "implementation", Status: "failed", Error: "generation failed"},
		{Project: "other", TaskID: "x-1", Title: "Unrelated", Stage: "testing", Status: "pending"},
	}
	for _, ev := range events {
		if err := s.RecordTaskEvent(ctx, ev); err != nil {
			t.Fatalf("RecordTaskEvent() error = %v", err)
		}
	}

	got, err := s.TaskEvents(ctx, "demo")
	if err != nil {
		t.Fatalf("TaskEvents() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events for demo, got %d", len(got))
	}
	if got[0].Status != "in_progress" || got[1].Status != "completed" {
		t.Errorf("events out of insertion order: %+v", got)
	}
	if got[2].Error != "generation failed" {
		t.Errorf("error text lost: %+v", got[2])
	}
}

func TestSnapshotLatestWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, stage := range []string{"initial", "implementation", "testing"} {
		snap := Snapshot{
			Project:   "demo",
			Stage:     stage,
			Data:      []byte{byte(i)},
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := s.SaveSnapshot(ctx, snap); err != nil {
			t.Fatalf("SaveSnapshot() error = %v", err)
		}
	}

	got, err := s.LatestSnapshot(ctx, "demo")
	if err != nil {
		t.Fatalf("LatestSnapshot() error = %v", err)
	}
	if got == nil || got.Stage != "testing" {
		t.Errorf("expected latest snapshot at testing, got %+v", got)
	}
}

func TestLatestSnapshotMissing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.LatestSnapshot(context.Background(), "nope")
	if err != nil {
		t.Fatalf("LatestSnapshot() error = %v", err)
	}
	if got != nil {
		t.Errorf("expected nil snapshot, got %+v", got)
	}
}

func TestRecordArtifactAndDecision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordArtifact(ctx, ArtifactRecord{Project: "demo", Name: "requirements.md", Path: "docs/requirements.md"}); err != nil {
		t.Fatalf("RecordArtifact() error = %v", err)
	}
	if err := s.RecordDecision(ctx, DecisionRecord{Project: "demo", Text: "Use PostgreSQL", Author: "architect", Rationale: "relational fit"}); err != nil {
		t.Fatalf("RecordDecision() error = %v", err)
	}
	if err := s.RecordLLMCall(ctx, LLMCallRecord{Project: "demo", Model: "claude-sonnet", PromptTokens: 120, CompletionTokens: 80}); err != nil {
		t.Fatalf("RecordLLMCall() error = %v", err)
	}

	decisions, err := s.Decisions(ctx, "demo")
	if err != nil {
		t.Fatalf("Decisions() error = %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("expected one decision, got %d", len(decisions))
	}
	if decisions[0].Text != "Use PostgreSQL" || decisions[0].Author != "architect" {
		t.Errorf("decision round trip mismatch: %+v", decisions[0])
	}
	if other, _ := s.Decisions(ctx, "other"); len(other) != 0 {
		t.Errorf("decisions must be scoped by project, got %v", other)
	}
}
