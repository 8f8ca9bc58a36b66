// Package bus provides the in-process message bus that connects the
// workflow driver and the role agents. Components never call each other
// directly; every interaction is a published Message routed by topic.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// MessageType classifies a message on the bus.
type MessageType string

const (
	// TypeSystem is for infrastructure-level notices.
	TypeSystem MessageType = "system"
	// TypeAgentRequest is an ad-hoc request addressed to an agent.
	TypeAgentRequest MessageType = "agent_request"
	// TypeAgentResponse is an agent's reply to an ad-hoc request.
	TypeAgentResponse MessageType = "agent_response"
	// TypeAgentNotification is an unsolicited agent broadcast.
	TypeAgentNotification MessageType = "agent_notification"
	// TypeWorkflowStart announces that a project run has begun.
	TypeWorkflowStart MessageType = "workflow_start"
	// TypeWorkflowComplete announces that the final stage finished.
	TypeWorkflowComplete MessageType = "workflow_complete"
	// TypeStageStart announces that a stage's tasks are being assigned.
	TypeStageStart MessageType = "stage_start"
	// TypeStageComplete announces that all of a stage's tasks finished.
	TypeStageComplete MessageType = "stage_complete"
	// TypeTaskAssigned carries a task to the responsible agent role.
	TypeTaskAssigned MessageType = "task_assigned"
	// TypeTaskComplete reports a task's terminal status back to the workflow.
	TypeTaskComplete MessageType = "task_complete"
	// TypeUserInput carries text supplied by the user.
	TypeUserInput MessageType = "user_input"
	// TypeUserFeedback carries user feedback on generated output.
	TypeUserFeedback MessageType = "user_feedback"
	// TypeDocumentGenerated announces a new artifact document.
	TypeDocumentGenerated MessageType = "document_generated"
)

// String returns the string representation of the message type.
func (t MessageType) String() string {
	return string(t)
}

// IsValid returns true if the type is a known message type.
func (t MessageType) IsValid() bool {
	switch t {
	case TypeSystem, TypeAgentRequest, TypeAgentResponse, TypeAgentNotification,
		TypeWorkflowStart, TypeWorkflowComplete, TypeStageStart, TypeStageComplete,
		TypeTaskAssigned, TypeTaskComplete, TypeUserInput, TypeUserFeedback,
		TypeDocumentGenerated:
		return true
	default:
		return false
	}
}

// Message is the immutable envelope exchanged over the bus.
// Publishers create it once; it is never mutated after Publish.
type Message struct {
	// ID uniquely identifies this message.
	ID string `json:"id"`

	// Type classifies the message for topic routing.
	Type MessageType `json:"type"`

	// Sender is the role name of the publisher, or "system"/"workflow".
	Sender string `json:"sender"`

	// Receiver is the addressed role, empty for broadcasts.
	Receiver string `json:"receiver,omitempty"`

	// Content is the free-form payload.
	Content map[string]any `json:"content,omitempty"`

	// Timestamp is when the message was created.
	Timestamp time.Time `json:"timestamp"`

	// CorrelationID links request/response pairs.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Metadata carries optional routing hints and annotations.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewMessage creates a message envelope with a fresh ID and timestamp.
func NewMessage(msgType MessageType, sender string, content map[string]any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// WithReceiver returns a copy of the message addressed to the given role.
func (m *Message) WithReceiver(receiver string) *Message {
	clone := *m
	clone.Receiver = receiver
	return &clone
}

// WithCorrelation returns a copy of the message correlated to another message.
func (m *Message) WithCorrelation(correlationID string) *Message {
	clone := *m
	clone.CorrelationID = correlationID
	return &clone
}

// topics computes the topic set a message is delivered to.
// Every message matches its type topic, its sender topic, the wildcard
// topic, and — when addressed — its receiver topic.
func (m *Message) topics() []string {
	topics := make([]string, 0, 4)
	topics = append(topics, TypeTopic(m.Type), SenderTopic(m.Sender))
	if m.Receiver != "" {
		topics = append(topics, ReceiverTopic(m.Receiver))
	}
	topics = append(topics, TopicWildcard)
	return topics
}

// Content keys shared by the task lifecycle messages. Publishers and
// subscribers agree on these instead of inventing per-site payload shapes.
const (
	KeyProject    = "project"
	KeyStage      = "stage"
	KeyTaskID     = "task_id"
	KeyTaskTitle  = "title"
	KeyTaskKind   = "kind"
	KeyTaskStatus = "status"
	KeyRole       = "role"
	KeyAgent      = "agent"
	KeyTokens     = "tokens"
	KeyError      = "error"
	KeyText       = "text"
)

// TopicWildcard matches every published message.
const TopicWildcard = "*"

// TypeTopic returns the topic string for a message type.
func TypeTopic(t MessageType) string {
	return "type:" + string(t)
}

// SenderTopic returns the topic string for a sender.
func SenderTopic(sender string) string {
	return "sender:" + sender
}

// ReceiverTopic returns the topic string for a receiver role.
func ReceiverTopic(receiver string) string {
	return "receiver:" + receiver
}
