package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes events as JSON to NATS subjects so external dashboards
// can observe running projects. Publishing is best-effort: failures are
// logged, never propagated to the workflow.
type NATSSink struct {
	nc     *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewNATSSink connects to the given NATS URL. Subjects take the form
// <prefix>.project.progress, <prefix>.agent.status, <prefix>.task.outcome,
// <prefix>.project.status, <prefix>.document.generated.
func NewNATSSink(url, prefix string, logger *slog.Logger) (*NATSSink, error) {
	if prefix == "" {
		prefix = "devteam"
	}
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(url,
		nats.Name("devteam-events"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &NATSSink{nc: nc, prefix: prefix, logger: logger}, nil
}

// Close drains the connection.
func (n *NATSSink) Close() {
	if n.nc != nil {
		n.nc.Close()
	}
}

func (n *NATSSink) publish(ctx context.Context, subject string, v any) {
	if err := ctx.Err(); err != nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		n.logger.Warn("Failed to marshal event", "subject", subject, "error", err)
		return
	}

	if err := n.nc.Publish(subject, data); err != nil {
		n.logger.Warn("Failed to publish event", "subject", subject, "error", err)
	}
}

func (n *NATSSink) PublishProgress(ctx context.Context, ev ProjectProgress) {
	n.publish(ctx, n.prefix+".project.progress", ev)
}

func (n *NATSSink) PublishAgentStatus(ctx context.Context, ev AgentStatus) {
	n.publish(ctx, n.prefix+".agent.status", ev)
}

func (n *NATSSink) PublishTaskOutcome(ctx context.Context, ev TaskOutcome) {
	n.publish(ctx, n.prefix+".task.outcome", ev)
}

func (n *NATSSink) PublishProjectStatus(ctx context.Context, ev ProjectStatus) {
	n.publish(ctx, n.prefix+".project.status", ev)
}

func (n *NATSSink) PublishDocument(ctx context.Context, ev DocumentGenerated) {
	n.publish(ctx, n.prefix+".document.generated", ev)
}
