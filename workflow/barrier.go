package workflow

import (
	"sync"

	"github.com/c360studio/devteam/bus"
	"github.com/c360studio/devteam/state"
)

// taskOutcome is the terminal report of one stage task.
type taskOutcome struct {
	taskID  string
	title   string
	status  string
	errText string
}

// stageBarrier joins on the explicit set of task ids assigned for one
// stage. Completions for unknown task ids (earlier stages, retries of old
// tasks) are ignored; the barrier can never leak an open-ended wait.
type stageBarrier struct {
	mu        sync.Mutex
	pending   map[string]string // task id -> title
	collected []taskOutcome
	done      chan struct{}
}

func newStageBarrier(tasks []*state.Task) *stageBarrier {
	b := &stageBarrier{
		pending: make(map[string]string, len(tasks)),
		done:    make(chan struct{}),
	}
	for _, task := range tasks {
		b.pending[task.ID] = task.Title
	}
	if len(b.pending) == 0 {
		close(b.done)
	}
	return b
}

// observe is the bus callback for TASK_COMPLETE messages.
func (b *stageBarrier) observe(msg *bus.Message) {
	taskID, _ := msg.Content[bus.KeyTaskID].(string)
	status, _ := msg.Content[bus.KeyTaskStatus].(string)
	errText, _ := msg.Content[bus.KeyError].(string)

	b.mu.Lock()
	defer b.mu.Unlock()

	title, ok := b.pending[taskID]
	if !ok {
		return
	}
	delete(b.pending, taskID)
	b.collected = append(b.collected, taskOutcome{
		taskID:  taskID,
		title:   title,
		status:  status,
		errText: errText,
	})

	if len(b.pending) == 0 {
		close(b.done)
	}
}

// outcomes returns the collected terminal reports.
func (b *stageBarrier) outcomes() []taskOutcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]taskOutcome, len(b.collected))
	copy(out, b.collected)
	return out
}

// failures returns a description per failed task.
func (b *stageBarrier) failures() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var failed []string
	for _, o := range b.collected {
		if o.status == string(state.TaskFailed) {
			desc := o.title
			if o.errText != "" {
				desc += ": " + o.errText
			}
			failed = append(failed, desc)
		}
	}
	return failed
}
