// Package config provides configuration loading and management for devteam.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/devteam/model"
	"github.com/c360studio/devteam/state"
)

// Config represents the complete devteam configuration.
type Config struct {
	Model    ModelConfig    `yaml:"model"`
	Workflow WorkflowConfig `yaml:"workflow"`
	NATS     NATSConfig     `yaml:"nats"`
	Persist  PersistConfig  `yaml:"persist"`
	Docs     DocsConfig     `yaml:"docs"`
}

// ModelConfig configures the generation model registry.
type ModelConfig struct {
	// Default is the model used when no capability mapping applies.
	Default string `yaml:"default"`
	// Capabilities maps semantic capabilities to model chains.
	// Empty = use the built-in registry defaults.
	Capabilities map[model.Capability]*model.CapabilityConfig `yaml:"capabilities"`
	// Endpoints maps model names to provider endpoints.
	Endpoints map[string]*model.EndpointConfig `yaml:"endpoints"`
	// Temperature controls randomness (0.0-1.0, default: 0.2)
	Temperature float64 `yaml:"temperature"`
	// Timeout is the maximum time to wait for one generation call.
	Timeout time.Duration `yaml:"timeout"`
}

// WorkflowConfig tunes the staged development workflow.
type WorkflowConfig struct {
	// StageTimeout bounds how long one stage may run before the
	// workflow marks it failed. Zero = no timeout.
	StageTimeout time.Duration `yaml:"stage_timeout"`
	// MaxRefinementLoops caps requirements_analysis → requirements_refinement
	// round trips before the workflow proceeds regardless.
	MaxRefinementLoops int `yaml:"max_refinement_loops"`
	// Assignments overrides which agent roles work each stage.
	// Keys are stage names, values are role lists. Empty = agents'
	// declared responsibilities decide.
	Assignments map[string][]string `yaml:"assignments"`
}

// NATSConfig configures the optional NATS event sink.
type NATSConfig struct {
	// URL is the NATS server URL (empty = event publishing disabled).
	URL string `yaml:"url"`
	// SubjectPrefix is prepended to event subjects (default: "devteam").
	SubjectPrefix string `yaml:"subject_prefix"`
}

// PersistConfig configures execution-record persistence.
type PersistConfig struct {
	// Path is the SQLite database file (empty = in-memory records only).
	Path string `yaml:"path"`
}

// DocsConfig configures generated document output.
type DocsConfig struct {
	// Dir is the directory artifacts are written to.
	Dir string `yaml:"dir"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Default:     "qwen",
			Temperature: 0.2,
			Timeout:     5 * time.Minute,
		},
		Workflow: WorkflowConfig{
			StageTimeout:       30 * time.Minute,
			MaxRefinementLoops: 2,
		},
		NATS: NATSConfig{
			URL:           "",
			SubjectPrefix: "devteam",
		},
		Persist: PersistConfig{
			Path: "",
		},
		Docs: DocsConfig{
			Dir: "docs/generated",
		},
	}
}

// Validate checks that the configuration is usable. Configuration errors
// are fatal at startup rather than degraded at runtime.
func (c *Config) Validate() error {
	if c.Model.Default == "" {
		return fmt.Errorf("model.default is required")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return fmt.Errorf("model.temperature must be between 0 and 1")
	}
	if c.Model.Timeout <= 0 {
		return fmt.Errorf("model.timeout must be positive")
	}
	if c.Workflow.MaxRefinementLoops < 0 {
		return fmt.Errorf("workflow.max_refinement_loops cannot be negative")
	}
	for stage, roles := range c.Workflow.Assignments {
		if !state.Stage(stage).IsValid() {
			return fmt.Errorf("workflow.assignments: unknown stage %q", stage)
		}
		if len(roles) == 0 {
			return fmt.Errorf("workflow.assignments: stage %q has no roles", stage)
		}
	}
	if c.Docs.Dir == "" {
		return fmt.Errorf("docs.dir is required")
	}
	return nil
}

// Registry builds a model registry from the configured capabilities and
// endpoints, falling back to built-in defaults when neither is set.
func (c *Config) Registry() *model.Registry {
	if len(c.Model.Capabilities) == 0 && len(c.Model.Endpoints) == 0 {
		r := model.NewDefaultRegistry()
		if c.Model.Default != "" {
			r.SetDefault(c.Model.Default)
		}
		return r
	}
	return model.NewRegistry(c.Model.Capabilities, c.Model.Endpoints, c.Model.Default)
}

// LoadFromFile reads one YAML config file, layered over defaults so unset
// keys keep their default values. Environment references in the file are
// expanded before parsing.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	expanded := ExpandEnvWithDefaults(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ExpandEnvWithDefaults expands ${VAR} and $VAR references against the
// environment, and supports the shell-style ${VAR:-default} form where the
// default is used when VAR is unset or empty.
func ExpandEnvWithDefaults(s string) string {
	return os.Expand(s, func(ref string) string {
		name, fallback, hasDefault := strings.Cut(ref, ":-")
		value := os.Getenv(name)
		if value == "" && hasDefault {
			return fallback
		}
		return value
	})
}

// loadOverlay parses one config layer into a zero-valued Config, so keys the
// file leaves unset stay zero and cannot clobber an earlier layer during
// Merge. Defaults are applied exactly once, by the caller.
func loadOverlay(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	overlay := &Config{}
	expanded := ExpandEnvWithDefaults(string(data))
	if err := yaml.Unmarshal([]byte(expanded), overlay); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return overlay, nil
}

// SaveToFile writes the configuration as YAML, creating parent directories.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Merge overlays another config onto this one. Only set (non-zero) fields
// of the overlay win; everything else keeps its current value.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Model.Default != "" {
		c.Model.Default = other.Model.Default
	}
	if len(other.Model.Capabilities) > 0 {
		c.Model.Capabilities = other.Model.Capabilities
	}
	if len(other.Model.Endpoints) > 0 {
		c.Model.Endpoints = other.Model.Endpoints
	}
	if other.Model.Temperature != 0 {
		c.Model.Temperature = other.Model.Temperature
	}
	if other.Model.Timeout != 0 {
		c.Model.Timeout = other.Model.Timeout
	}

	if other.Workflow.StageTimeout != 0 {
		c.Workflow.StageTimeout = other.Workflow.StageTimeout
	}
	if other.Workflow.MaxRefinementLoops != 0 {
		c.Workflow.MaxRefinementLoops = other.Workflow.MaxRefinementLoops
	}
	if len(other.Workflow.Assignments) > 0 {
		c.Workflow.Assignments = other.Workflow.Assignments
	}

	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.SubjectPrefix != "" {
		c.NATS.SubjectPrefix = other.NATS.SubjectPrefix
	}

	if other.Persist.Path != "" {
		c.Persist.Path = other.Persist.Path
	}

	if other.Docs.Dir != "" {
		c.Docs.Dir = other.Docs.Dir
	}
}
