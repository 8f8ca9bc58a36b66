// Package agent defines the role-agent contract and the concrete agents
// that make up the development team. Agents receive task assignments over
// the bus, produce their output with the generation client, write results
// into their own project-state sections, and always report completion back
// to the workflow.
package agent

import (
	"context"

	"github.com/c360studio/devteam/bus"
	"github.com/c360studio/devteam/state"
)

// Agent role names. Stage assignment maps stages to these roles.
const (
	RoleProjectManager      = "project-manager"
	RoleRequirementsAnalyst = "requirements-analyst"
	RoleArchitect           = "architect"
	RoleUXDesigner          = "ux-designer"
	RoleDeveloper           = "developer"
	RoleTestEngineer        = "test-engineer"
	RoleQualityExpert       = "quality-expert"
	RoleDevOpsSpecialist    = "devops-specialist"
	RoleSecuritySpecialist  = "security-specialist"
	RolePerformanceExpert   = "performance-expert"
)

// Capability advertises one thing an agent can do. The shapes are
// documentation for humans and coordinating agents, not enforced schemas.
type Capability struct {
	// Name identifies the capability.
	Name string `json:"name"`

	// Description explains what the capability produces.
	Description string `json:"description"`

	// Input describes the expected input shape.
	Input string `json:"input,omitempty"`

	// Output describes the produced output shape.
	Output string `json:"output,omitempty"`
}

// Agent is the contract every team member implements. HandleTaskAssignment
// must always terminate with a TASK_COMPLETE publish, success or failure;
// the workflow barrier depends on it.
type Agent interface {
	// Name returns the unique agent instance name.
	Name() string

	// Role returns the agent's role, used for receiver-topic routing.
	Role() string

	// SystemPrompt returns the persona prompt sent with every generation.
	SystemPrompt() string

	// Capabilities advertises what the agent can do.
	Capabilities() []Capability

	// ResponsibleStages lists the workflow stages this agent works.
	ResponsibleStages() []state.Stage

	// HandleTaskAssignment executes one assigned task to a terminal status.
	HandleTaskAssignment(ctx context.Context, msg *bus.Message)

	// ProcessRequest answers an ad-hoc agent request with a response message.
	ProcessRequest(ctx context.Context, msg *bus.Message) (*bus.Message, error)

	// Attach subscribes the agent to its receiver topic on the bus.
	Attach(ctx context.Context) bus.Subscription
}

// StageAssignments derives the stage-to-roles table from the agents'
// declared responsibilities, preserving team order within each stage.
func StageAssignments(team []Agent) map[state.Stage][]string {
	assignments := make(map[state.Stage][]string)
	for _, ag := range team {
		for _, stage := range ag.ResponsibleStages() {
			assignments[stage] = append(assignments[stage], ag.Role())
		}
	}
	return assignments
}
