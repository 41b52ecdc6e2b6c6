// Package config handles devherd configuration and the project policy file.
// Configuration lives in .devherd/config.yaml under the workspace root and
// holds the command allow-list, custom tool templates, execution settings,
// and logging controls.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all devherd configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Security policy for command execution
	Policy ProjectPolicy `yaml:"policy"`

	// Execution settings
	Execution ExecutionConfig `yaml:"execution"`

	// Auto-commit settings
	Checkpoint CheckpointConfig `yaml:"checkpoint"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ProjectPolicy is the parsed security policy: which command names an agent
// may execute, and the pre-approved custom tool templates.
type ProjectPolicy struct {
	// AllowedCommands lists permitted executable names. A free-text command
	// is approved only if its first whitespace-delimited token exactly
	// matches an entry.
	AllowedCommands []string `yaml:"allowed_commands"`

	// CustomTools maps tool name to a command template with {{placeholder}}
	// tokens. Custom tools bypass the allow-list: defining one is a
	// higher-privilege action than invoking one.
	CustomTools map[string]CustomTool `yaml:"custom_tools"`
}

// CustomTool is a named, pre-approved command template.
type CustomTool struct {
	Command     string `yaml:"command"`
	Description string `yaml:"description"`
}

// ExecutionConfig configures command execution.
type ExecutionConfig struct {
	// DefaultTimeout bounds each one-shot command (e.g., "60s").
	DefaultTimeout string `yaml:"default_timeout"`

	// StartupGrace is how long Start waits for a dev server to survive
	// before reporting it as started (e.g., "2s").
	StartupGrace string `yaml:"startup_grace"`

	// StopWait bounds the graceful-stop window before escalating to SIGKILL.
	StopWait string `yaml:"stop_wait"`

	// MaxOutputBytes caps captured stdout/stderr per command.
	MaxOutputBytes int `yaml:"max_output_bytes"`
}

// CheckpointConfig configures the auto-commit behavior.
type CheckpointConfig struct {
	// MessagePrefix tags automated commits (default "[devherd]").
	MessagePrefix string `yaml:"message_prefix"`
}

// LoggingConfig controls the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "devherd",
		Version: "0.1.0",
		Policy: ProjectPolicy{
			AllowedCommands: []string{"npm", "node", "git", "ls", "echo", "go"},
			CustomTools:     map[string]CustomTool{},
		},
		Execution: ExecutionConfig{
			DefaultTimeout: "60s",
			StartupGrace:   "2s",
			StopWait:       "5s",
			MaxOutputBytes: 50000,
		},
		Checkpoint: CheckpointConfig{
			MessagePrefix: "[devherd]",
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// ConfigPath returns the config file path for a workspace.
func ConfigPath(workspace string) string {
	return filepath.Join(workspace, ".devherd", "config.yaml")
}

// Load reads configuration from the given path, falling back to defaults
// if the file doesn't exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Policy.CustomTools == nil {
		cfg.Policy.CustomTools = map[string]CustomTool{}
	}

	return cfg, nil
}

// Save writes configuration to the given path, creating the parent
// directory if needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetDefaultTimeout parses the execution timeout with a 60s fallback.
func (c *Config) GetDefaultTimeout() time.Duration {
	return parseDuration(c.Execution.DefaultTimeout, 60*time.Second)
}

// GetStartupGrace parses the startup grace window with a 2s fallback.
func (c *Config) GetStartupGrace() time.Duration {
	return parseDuration(c.Execution.StartupGrace, 2*time.Second)
}

// GetStopWait parses the graceful-stop bound with a 5s fallback.
func (c *Config) GetStopWait() time.Duration {
	return parseDuration(c.Execution.StopWait, 5*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
