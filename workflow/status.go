// Package workflow drives one project through the fixed development
// lifecycle: it advances stages in order, fans tasks out to the responsible
// agent roles over the bus, joins on their completions, and reports
// progress through the event sink.
package workflow

// Status is the run-level state of a workflow.
type Status string

const (
	// StatusPending means Run has not been called yet.
	StatusPending Status = "pending"
	// StatusRunning means the workflow is advancing through stages.
	StatusRunning Status = "running"
	// StatusCompleted means the final stage finished.
	StatusCompleted Status = "completed"
	// StatusFailed means a task failure or timeout blocked advancement.
	StatusFailed Status = "failed"
	// StatusStopped means cancellation was observed before completion.
	StatusStopped Status = "stopped"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true once the workflow can no longer advance.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusStopped
}
