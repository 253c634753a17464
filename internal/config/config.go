// Package config loads and watches pipeboard configuration.
//
// Configuration lives in .pipeboard/config.yaml under the workspace root.
// Environment variables override file values for secrets so API keys never
// need to be written to disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all pipeboard configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Remote CRM API
	CRM CRMConfig `yaml:"crm"`

	// Pipeline cache and stage defaults
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// CRMConfig configures the remote lead gateway.
type CRMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

// PipelineConfig configures the snapshot cache and default stages.
type PipelineConfig struct {
	// CacheTTL is the staleness window for pipeline snapshots.
	CacheTTL string `yaml:"cache_ttl"`

	// DefaultStages are the static kanban columns, in board order.
	// Tag-derived columns discovered from the CRM are appended after these.
	DefaultStages []string `yaml:"default_stages"`
}

// LoggingConfig configures categorized debug logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Name:    "pipeboard",
		Version: "1.0.0",

		CRM: CRMConfig{
			BaseURL: "http://localhost:3001/api",
			Timeout: "30s",
		},

		Pipeline: PipelineConfig{
			CacheTTL: "120s",
			DefaultStages: []string{
				"New Lead",
				"Contacted",
				"Application Started",
				"Pre-Approved",
				"In Underwriting",
				"Closed",
			},
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, ".pipeboard", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
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

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("PIPEBOARD_API_KEY"); key != "" {
		c.CRM.APIKey = key
	}
	if url := os.Getenv("PIPEBOARD_CRM_URL"); url != "" {
		c.CRM.BaseURL = url
	}
}

// GetCRMTimeout parses the CRM request timeout with a safe fallback.
func (c *Config) GetCRMTimeout() time.Duration {
	d, err := time.ParseDuration(c.CRM.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetCacheTTL parses the snapshot staleness window with a safe fallback.
func (c *Config) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Pipeline.CacheTTL)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.CRM.BaseURL == "" {
		return fmt.Errorf("crm.base_url is required")
	}
	if len(c.Pipeline.DefaultStages) == 0 {
		return fmt.Errorf("pipeline.default_stages must name at least one stage")
	}
	seen := make(map[string]bool, len(c.Pipeline.DefaultStages))
	for _, s := range c.Pipeline.DefaultStages {
		if s == "" {
			return fmt.Errorf("pipeline.default_stages contains an empty name")
		}
		if seen[s] {
			return fmt.Errorf("pipeline.default_stages contains duplicate stage %q", s)
		}
		seen[s] = true
	}
	return nil
}
