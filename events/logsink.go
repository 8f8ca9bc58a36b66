package events

import (
	"context"
	"log/slog"
)

// LogSink writes events to structured logs. It is the default sink when no
// NATS URL is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs events at INFO level.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (l *LogSink) PublishProgress(_ context.Context, ev ProjectProgress) {
	l.logger.Info("Project progress",
		"project", ev.ProjectName,
		"stage", ev.Stage,
		"percent", ev.Percent)
}

func (l *LogSink) PublishAgentStatus(_ context.Context, ev AgentStatus) {
	l.logger.Info("Agent status",
		"project", ev.ProjectName,
		"agent", ev.AgentName,
		"role", ev.Role,
		"status", ev.Status,
		"tokens", ev.TokensUsed)
}

func (l *LogSink) PublishTaskOutcome(_ context.Context, ev TaskOutcome) {
	if ev.Error != "" {
		l.logger.Warn("Task finished",
			"project", ev.ProjectName,
			"task_id", ev.TaskID,
			"title", ev.Title,
			"status", ev.Status,
			"error", ev.Error)
		return
	}
	l.logger.Info("Task finished",
		"project", ev.ProjectName,
		"task_id", ev.TaskID,
		"title", ev.Title,
		"status", ev.Status)
}

func (l *LogSink) PublishProjectStatus(_ context.Context, ev ProjectStatus) {
	l.logger.Info("Project status",
		"project", ev.ProjectName,
		"status", ev.Status,
		"detail", ev.Detail)
}

func (l *LogSink) PublishDocument(_ context.Context, ev DocumentGenerated) {
	l.logger.Info("Document generated",
		"project", ev.ProjectName,
		"name", ev.Name,
		"path", ev.Path)
}
