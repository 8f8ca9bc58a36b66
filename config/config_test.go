package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model.Default != "qwen" {
		t.Errorf("expected default model qwen, got %s", cfg.Model.Default)
	}
	if cfg.Model.Temperature != 0.2 {
		t.Errorf("expected default temperature 0.2, got %f", cfg.Model.Temperature)
	}
	if cfg.Workflow.MaxRefinementLoops != 2 {
		t.Errorf("expected 2 refinement loops, got %d", cfg.Workflow.MaxRefinementLoops)
	}
	if cfg.NATS.SubjectPrefix != "devteam" {
		t.Errorf("expected devteam subject prefix, got %s", cfg.NATS.SubjectPrefix)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing model default",
			modify:  func(c *Config) { c.Model.Default = "" },
			wantErr: true,
		},
		{
			name:    "temperature too low",
			modify:  func(c *Config) { c.Model.Temperature = -0.1 },
			wantErr: true,
		},
		{
			name:    "temperature too high",
			modify:  func(c *Config) { c.Model.Temperature = 1.5 },
			wantErr: true,
		},
		{
			name:    "zero timeout",
			modify:  func(c *Config) { c.Model.Timeout = 0 },
			wantErr: true,
		},
		{
			name:    "negative refinement loops",
			modify:  func(c *Config) { c.Workflow.MaxRefinementLoops = -1 },
			wantErr: true,
		},
		{
			name: "unknown stage in assignments",
			modify: func(c *Config) {
				c.Workflow.Assignments = map[string][]string{"deployment": {"devops-specialist"}}
			},
			wantErr: true,
		},
		{
			name: "empty roles for a stage",
			modify: func(c *Config) {
				c.Workflow.Assignments = map[string][]string{"implementation": {}}
			},
			wantErr: true,
		},
		{
			name: "valid assignments",
			modify: func(c *Config) {
				c.Workflow.Assignments = map[string][]string{
					"implementation": {"developer", "devops-specialist"},
				}
			},
			wantErr: false,
		},
		{
			name:    "missing docs dir",
			modify:  func(c *Config) { c.Docs.Dir = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	other := &Config{
		Model: ModelConfig{
			Default: "claude-sonnet",
			Timeout: 10 * time.Minute,
		},
		Workflow: WorkflowConfig{
			StageTimeout: time.Hour,
			Assignments: map[string][]string{
				"testing": {"test-engineer", "quality-expert"},
			},
		},
		NATS: NATSConfig{URL: "nats://localhost:4222"},
	}

	base.Merge(other)

	if base.Model.Default != "claude-sonnet" {
		t.Errorf("merge should override model default, got %s", base.Model.Default)
	}
	if base.Model.Temperature != 0.2 {
		t.Errorf("merge should keep unset values, got %f", base.Model.Temperature)
	}
	if base.Workflow.StageTimeout != time.Hour {
		t.Errorf("merge should override stage timeout, got %v", base.Workflow.StageTimeout)
	}
	if base.Workflow.MaxRefinementLoops != 2 {
		t.Errorf("merge should keep default refinement loops, got %d", base.Workflow.MaxRefinementLoops)
	}
	if base.NATS.URL != "nats://localhost:4222" {
		t.Errorf("merge should override NATS URL, got %s", base.NATS.URL)
	}
	if got := base.Workflow.Assignments["testing"]; len(got) != 2 {
		t.Errorf("merge should take assignments, got %v", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devteam.yaml")

	content := `
model:
  default: claude-opus
  temperature: 0.5
workflow:
  stage_timeout: 15m
  max_refinement_loops: 3
docs:
  dir: out/docs
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Model.Default != "claude-opus" {
		t.Errorf("expected claude-opus, got %s", cfg.Model.Default)
	}
	if cfg.Model.Temperature != 0.5 {
		t.Errorf("expected temperature 0.5, got %f", cfg.Model.Temperature)
	}
	if cfg.Workflow.StageTimeout != 15*time.Minute {
		t.Errorf("expected 15m stage timeout, got %v", cfg.Workflow.StageTimeout)
	}
	if cfg.Docs.Dir != "out/docs" {
		t.Errorf("expected out/docs, got %s", cfg.Docs.Dir)
	}
	// Unspecified fields keep defaults
	if cfg.Model.Timeout != 5*time.Minute {
		t.Errorf("expected default model timeout, got %v", cfg.Model.Timeout)
	}
}

func TestLayeredMergeKeepsEarlierLayers(t *testing.T) {
	dir := t.TempDir()
	userPath := filepath.Join(dir, "user.yaml")
	projectPath := filepath.Join(dir, "project.yaml")

	user := "model:\n  temperature: 0.9\ndocs:\n  dir: custom-docs\n"
	if err := os.WriteFile(userPath, []byte(user), 0644); err != nil {
		t.Fatal(err)
	}
	// The project layer sets only the NATS URL; everything else is unset.
	project := "nats:\n  url: nats://localhost:4222\n"
	if err := os.WriteFile(projectPath, []byte(project), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(nil)
	cfg := DefaultConfig()
	l.mergeLayer(cfg, userPath, "user")
	l.mergeLayer(cfg, projectPath, "project")

	if cfg.Docs.Dir != "custom-docs" {
		t.Errorf("project layer must not reset user docs dir, got %s", cfg.Docs.Dir)
	}
	if cfg.Model.Temperature != 0.9 {
		t.Errorf("project layer must not reset user temperature, got %f", cfg.Model.Temperature)
	}
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("project layer value missing, got %s", cfg.NATS.URL)
	}
	if cfg.Model.Default != "qwen" {
		t.Errorf("defaults must survive under both layers, got %s", cfg.Model.Default)
	}
}

func TestExpandEnvWithDefaults(t *testing.T) {
	t.Setenv("DEVTEAM_TEST_MODEL", "claude-haiku")
	t.Setenv("DEVTEAM_TEST_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"braced var", "default: ${DEVTEAM_TEST_MODEL}", "default: claude-haiku"},
		{"bare var", "default: $DEVTEAM_TEST_MODEL", "default: claude-haiku"},
		{"unset var with default", "url: ${DEVTEAM_TEST_UNSET:-nats://localhost:4222}", "url: nats://localhost:4222"},
		{"empty var with default", "dir: ${DEVTEAM_TEST_EMPTY:-docs/generated}", "dir: docs/generated"},
		{"set var ignores default", "default: ${DEVTEAM_TEST_MODEL:-qwen}", "default: claude-haiku"},
		{"unset var without default", "url: ${DEVTEAM_TEST_UNSET}", "url: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnvWithDefaults(tt.input); got != tt.want {
				t.Errorf("ExpandEnvWithDefaults(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadFromFileExpandsEnv(t *testing.T) {
	t.Setenv("DEVTEAM_TEST_DOCS_DIR", "out/generated")

	path := filepath.Join(t.TempDir(), "devteam.yaml")
	content := "docs:\n  dir: ${DEVTEAM_TEST_DOCS_DIR:-docs/generated}\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Docs.Dir != "out/generated" {
		t.Errorf("expected env-expanded docs dir, got %s", cfg.Docs.Dir)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Model.Default = "codellama"
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Model.Default != "codellama" {
		t.Errorf("round trip lost model default: %s", loaded.Model.Default)
	}
}

func TestRegistryFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	r := cfg.Registry()
	if r == nil {
		t.Fatal("expected default registry")
	}
	if r.GetEndpoint("qwen") == nil {
		t.Error("default registry should know qwen")
	}
}
