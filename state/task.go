package state

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a task. Transitions are monotonic
// except for an externally triggered retry of a failed task.
type TaskStatus string

const (
	// TaskPending is the status of a freshly created task.
	TaskPending TaskStatus = "pending"
	// TaskInProgress means the assigned agent has accepted the task.
	TaskInProgress TaskStatus = "in_progress"
	// TaskCompleted means the agent finished the task successfully.
	TaskCompleted TaskStatus = "completed"
	// TaskFailed means the agent could not finish the task.
	TaskFailed TaskStatus = "failed"
)

// String returns the string representation of the status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal returns true for completed and failed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// CanTransitionTo returns true if the status may move to the target.
// failed → in_progress is permitted for externally triggered retries
// (re-publishing the assignment for the same task id).
func (s TaskStatus) CanTransitionTo(target TaskStatus) bool {
	switch s {
	case TaskPending:
		return target == TaskInProgress
	case TaskInProgress:
		return target == TaskCompleted || target == TaskFailed
	case TaskFailed:
		return target == TaskInProgress
	case TaskCompleted:
		return false
	default:
		return false
	}
}

// TaskKind is the structured variant an agent dispatches on. Agents switch
// on the kind, never on free text in the task title.
type TaskKind string

const (
	// KindGatherRequirements collects raw requirements.
	KindGatherRequirements TaskKind = "gather_requirements"
	// KindAnalyzeRequirements structures requirements into analysis output.
	KindAnalyzeRequirements TaskKind = "analyze_requirements"
	// KindRefineRequirements resolves requirement gaps and ambiguities.
	KindRefineRequirements TaskKind = "refine_requirements"
	// KindDesignArchitecture produces the architecture document.
	KindDesignArchitecture TaskKind = "design_architecture"
	// KindDesignInterface produces UI/UX design output.
	KindDesignInterface TaskKind = "design_interface"
	// KindBuildPrototype outlines a proof-of-concept build.
	KindBuildPrototype TaskKind = "build_prototype"
	// KindImplement produces the implementation plan and code outline.
	KindImplement TaskKind = "implement"
	// KindWriteTests produces the test plan and test code outline.
	KindWriteTests TaskKind = "write_tests"
	// KindAssureQuality performs the final quality review.
	KindAssureQuality TaskKind = "assure_quality"
)

// KindForStage returns the default task kind for a stage.
// Returns empty for stages without a default kind (initial, completed).
func KindForStage(stage Stage) TaskKind {
	switch stage {
	case StageRequirementsGathering:
		return KindGatherRequirements
	case StageRequirementsAnalysis:
		return KindAnalyzeRequirements
	case StageRequirementsRefinement:
		return KindRefineRequirements
	case StageArchitectureDesign:
		return KindDesignArchitecture
	case StageUIUXDesign:
		return KindDesignInterface
	case StagePrototypeDevelopment:
		return KindBuildPrototype
	case StageImplementation:
		return KindImplement
	case StageTesting:
		return KindWriteTests
	case StageQualityAssurance:
		return KindAssureQuality
	default:
		return ""
	}
}

// Task is one unit of work for one agent role within one stage.
// Tasks form an append-only ledger per project; they are never deleted.
type Task struct {
	// ID uniquely identifies the task.
	ID string `json:"id"`

	// Title is the human-readable summary.
	Title string `json:"title"`

	// Description explains what the agent should produce.
	Description string `json:"description"`

	// Kind is the structured variant the agent dispatches on.
	Kind TaskKind `json:"kind"`

	// Status is the lifecycle state.
	Status TaskStatus `json:"status"`

	// Stage is the workflow stage that owns this task.
	Stage Stage `json:"stage"`

	// AssignedRole is the agent role responsible for the task.
	AssignedRole string `json:"assigned_role,omitempty"`

	// Result holds the agent's output payload once terminal.
	Result map[string]any `json:"result,omitempty"`

	// Error describes the failure when Status is failed.
	Error string `json:"error,omitempty"`

	// CreatedAt is when the workflow created the task.
	CreatedAt time.Time `json:"created_at"`

	// CompletedAt is when the task reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTask creates a pending task for a stage and role.
func NewTask(title, description string, kind TaskKind, stage Stage, role string) *Task {
	return &Task{
		ID:           uuid.New().String(),
		Title:        title,
		Description:  description,
		Kind:         kind,
		Status:       TaskPending,
		Stage:        stage,
		AssignedRole: role,
		CreatedAt:    time.Now(),
	}
}
