package events

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordingSink collects events for assertions.
type recordingSink struct {
	mu       sync.Mutex
	progress []ProjectProgress
	statuses []ProjectStatus
	outcomes []TaskOutcome
}

func (r *recordingSink) PublishProgress(_ context.Context, ev ProjectProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, ev)
}

func (r *recordingSink) PublishAgentStatus(context.Context, AgentStatus) {}

func (r *recordingSink) PublishTaskOutcome(_ context.Context, ev TaskOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, ev)
}

func (r *recordingSink) PublishProjectStatus(_ context.Context, ev ProjectStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, ev)
}

func (r *recordingSink) PublishDocument(context.Context, DocumentGenerated) {}

func TestMultiSinkFansOut(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	multi := MultiSink{a, b}

	ev := ProjectProgress{ProjectName: "demo", Stage: "implementation", Percent: 70, Timestamp: time.Now()}
	multi.PublishProgress(context.Background(), ev)

	for i, sink := range []*recordingSink{a, b} {
		if len(sink.progress) != 1 || sink.progress[0].Stage != "implementation" {
			t.Errorf("sink %d did not receive the event: %+v", i, sink.progress)
		}
	}
}

func TestLogSinkWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sink := NewLogSink(logger)

	sink.PublishTaskOutcome(context.Background(), TaskOutcome{
		ProjectName: "demo",
		TaskID:      "t-1",
		Title:       "Implement solution",
		Stage:       "implementation",
		Status:      "failed",
		Error:       "generation failed",
	})

	out := buf.String()
	for _, want := range []string{"task_id=t-1", "status=failed", "generation failed", "level=WARN"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestNopSinkIsSafe(t *testing.T) {
	var sink Sink = NopSink{}
	sink.PublishProgress(context.Background(), ProjectProgress{})
	sink.PublishProjectStatus(context.Background(), ProjectStatus{})
}
