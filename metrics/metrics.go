// Package metrics exposes Prometheus instrumentation for the orchestration
// core. Collectors are registered on the default registry so callers only
// need to mount promhttp if they want scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesPublished counts bus publishes by message type.
	MessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devteam",
		Subsystem: "bus",
		Name:      "messages_published_total",
		Help:      "Messages published to the in-process bus, by type.",
	}, []string{"type"})

	// TasksFinished counts tasks reaching a terminal status.
	TasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devteam",
		Subsystem: "workflow",
		Name:      "tasks_finished_total",
		Help:      "Tasks reaching a terminal status, by stage and status.",
	}, []string{"stage", "status"})

	// StageDuration observes wall-clock seconds per completed stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "devteam",
		Subsystem: "workflow",
		Name:      "stage_duration_seconds",
		Help:      "Wall-clock duration of completed workflow stages.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"stage"})

	// LLMTokens counts tokens consumed by generation calls.
	LLMTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devteam",
		Subsystem: "llm",
		Name:      "tokens_total",
		Help:      "Tokens consumed by generation calls, by model and kind.",
	}, []string{"model", "kind"})

	// LLMRequests counts generation requests by model and outcome.
	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devteam",
		Subsystem: "llm",
		Name:      "requests_total",
		Help:      "Generation requests, by model and outcome.",
	}, []string{"model", "outcome"})
)
