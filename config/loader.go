package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// ProjectConfigFile is the project-level config file name, discovered
	// by walking up from the working directory.
	ProjectConfigFile = "devteam.yaml"
	// UserConfigDir holds the user-level config, relative to $HOME.
	UserConfigDir = ".config/devteam"
	// UserConfigFile is the file name inside UserConfigDir.
	UserConfigFile = "config.yaml"
)

// Loader assembles the effective configuration from three layers: built-in
// defaults, the user config, and the project config, later layers winning.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load returns the merged, validated configuration. A missing layer is
// skipped silently; an unreadable or unparsable one is logged and skipped.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	l.mergeLayer(cfg, l.userConfigPath(), "user")
	if projectPath := l.FindProjectConfig(); projectPath != "" {
		l.mergeLayer(cfg, projectPath, "project")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) mergeLayer(cfg *Config, path, layer string) {
	if path == "" {
		return
	}
	overlay, err := loadOverlay(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("Skipping unreadable config layer",
				"layer", layer, "path", path, "error", err)
		}
		return
	}
	l.logger.Debug("Loaded config layer", "layer", layer, "path", path)
	cfg.Merge(overlay)
}

// EnsureUserConfig writes a default user config file if none exists yet.
func (l *Loader) EnsureUserConfig() error {
	path := l.userConfigPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := DefaultConfig().SaveToFile(path); err != nil {
		return err
	}
	l.logger.Info("Created default user config", "path", path)
	return nil
}

func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// FindProjectConfig walks from the working directory toward the filesystem
// root looking for devteam.yaml. Returns "" when no project config exists.
func (l *Loader) FindProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
