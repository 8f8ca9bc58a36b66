package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/devteam/config"
	"github.com/c360studio/devteam/document"
	"github.com/c360studio/devteam/events"
	"github.com/c360studio/devteam/executor"
	"github.com/c360studio/devteam/llm"
	"github.com/c360studio/devteam/persist"
	"github.com/c360studio/devteam/state"
)

// app wires the shared services behind the CLI commands: configuration,
// the generation client, event publishing, persistence, and documents.
type app struct {
	logger *slog.Logger
	store  persist.Store
	sink   events.Sink

	natsSink    *events.NATSSink
	metricsAddr string

	mu  sync.Mutex
	cfg *config.Config
}

func newApp(configPath, logLevel, metricsAddr string) (*app, error) {
	logger := newLogger(logLevel)
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
		if err == nil {
			err = cfg.Validate()
		}
	} else {
		cfg, err = config.NewLoader(logger).Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{
		logger:      logger,
		cfg:         cfg,
		metricsAddr: metricsAddr,
	}

	if cfg.Persist.Path != "" {
		store, err := persist.NewSQLiteStore(cfg.Persist.Path)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		a.store = store
	} else {
		a.store = persist.NopStore{}
	}

	if cfg.NATS.URL != "" {
		sink, err := events.NewNATSSink(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			return nil, fmt.Errorf("connect event sink: %w", err)
		}
		a.natsSink = sink
		a.sink = events.MultiSink{sink, events.NewLogSink(logger)}
	} else {
		a.sink = events.NewLogSink(logger)
	}

	return a, nil
}

func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Run executes the full workflow for one project and blocks until it
// reaches a terminal status or a shutdown signal arrives.
func (a *app) Run(ctx context.Context, name, description, requirements string) error {
	cfg := a.currentConfig()

	docs, err := document.NewStore(cfg.Docs.Dir)
	if err != nil {
		return fmt.Errorf("create document store: %w", err)
	}

	client := llm.NewClient(cfg.Registry(), llm.WithLogger(a.logger))

	registry := executor.NewRegistry(executor.Deps{
		Generator:          client,
		Docs:               docs,
		Store:              a.store,
		Sink:               a.sink,
		Logger:             a.logger,
		Assignments:        stageAssignments(cfg),
		StageTimeout:       cfg.Workflow.StageTimeout,
		MaxRefinementLoops: cfg.Workflow.MaxRefinementLoops,
		CallTimeout:        cfg.Model.Timeout,
	})

	signalCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a.watchConfig(signalCtx)
	a.serveMetrics(signalCtx)

	exec, err := registry.StartExecution(signalCtx, name, description, requirements)
	if err != nil {
		return err
	}
	a.logger.Info("Project execution started", "project", name)

	<-exec.Done()

	requests, promptTokens, completionTokens := exec.Usage()
	a.logger.Info("Project execution finished",
		"project", name,
		"status", exec.Status(),
		"duration", exec.ExecutionTime().Round(time.Second),
		"llm_requests", requests,
		"prompt_tokens", promptTokens,
		"completion_tokens", completionTokens)

	for _, artifact := range exec.Artifacts() {
		fmt.Printf("  %s -> %s\n", artifact.Name, artifact.Path)
	}

	if errs := exec.Errors(); len(errs) > 0 {
		return fmt.Errorf("execution %s: %s", exec.Status(), strings.Join(errs, "; "))
	}
	return nil
}

// Status prints the recorded history of a project from the durable store.
func (a *app) Status(ctx context.Context, name string) error {
	snap, err := a.store.LatestSnapshot(ctx, name)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if snap == nil {
		fmt.Printf("No recorded runs for project %q.\n", name)
		return nil
	}

	fmt.Printf("Project: %s\n", name)
	fmt.Printf("Stage:   %s\n", snap.Stage)
	fmt.Printf("Saved:   %s\n", snap.CreatedAt.Format(time.RFC3339))

	taskEvents, err := a.store.TaskEvents(ctx, name)
	if err != nil {
		return fmt.Errorf("read task events: %w", err)
	}
	if len(taskEvents) > 0 {
		fmt.Println("\nTasks:")
		for _, ev := range taskEvents {
			line := fmt.Sprintf("  [%s] %s: %s", ev.Stage, ev.Title, ev.Status)
			if ev.Status == string(state.TaskFailed) && ev.Error != "" {
				line += " (" + ev.Error + ")"
			}
			fmt.Println(line)
		}
	}

	decisions, err := a.store.Decisions(ctx, name)
	if err != nil {
		return fmt.Errorf("read decisions: %w", err)
	}
	if len(decisions) > 0 {
		fmt.Println("\nDecisions:")
		for _, d := range decisions {
			line := fmt.Sprintf("  %s (%s)", d.Text, d.Author)
			if d.Rationale != "" {
				line += ": " + d.Rationale
			}
			fmt.Println(line)
		}
	}
	return nil
}

// Close releases the app's long-lived resources.
func (a *app) Close() {
	if a.natsSink != nil {
		a.natsSink.Close()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Cannot close history store", "error", err)
	}
}

func (a *app) currentConfig() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// watchConfig hot-reloads the project config file so the next run picks up
// changed settings without a restart. Missing config files are fine.
func (a *app) watchConfig(ctx context.Context) {
	path := config.NewLoader(a.logger).FindProjectConfig()
	if path == "" {
		return
	}

	watcher, err := config.NewWatcher(path, func(cfg *config.Config) {
		a.mu.Lock()
		a.cfg = cfg
		a.mu.Unlock()
		a.logger.Info("Configuration reloaded", "path", path)
	}, a.logger)
	if err != nil {
		a.logger.Warn("Cannot watch config file", "path", path, "error", err)
		return
	}

	go watcher.Run(ctx)
}

// serveMetrics exposes the Prometheus collectors when an address is set.
func (a *app) serveMetrics(ctx context.Context) {
	if a.metricsAddr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: a.metricsAddr, Handler: mux}

	go func() {
		a.logger.Info("Serving metrics", "addr", a.metricsAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Warn("Metrics server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// stageAssignments converts the configured stage-name keys into typed
// stages. Config validation already rejected unknown names.
func stageAssignments(cfg *config.Config) map[state.Stage][]string {
	if len(cfg.Workflow.Assignments) == 0 {
		return nil
	}
	assignments := make(map[state.Stage][]string, len(cfg.Workflow.Assignments))
	for name, roles := range cfg.Workflow.Assignments {
		assignments[state.Stage(name)] = roles
	}
	return assignments
}
