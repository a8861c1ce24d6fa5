// Package config holds all vigil configuration. A YAML file may override
// any field; absent file or absent fields fall back to built-in defaults
// so the engine always starts with a complete configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all engine configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Inference backend
	Inference InferenceConfig `yaml:"inference"`

	// Longitudinal state persistence
	Storage StorageConfig `yaml:"storage"`

	// Prompt templates
	Templates TemplateConfig `yaml:"templates"`

	// Crisis lifecycle
	Crisis CrisisConfig `yaml:"crisis"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// InferenceConfig configures the local model backend and call budgets.
type InferenceConfig struct {
	// ModelPath locates the on-device model weights.
	ModelPath string `yaml:"model_path"`

	// MaxTokens is the generation ceiling for non-streaming calls.
	MaxTokens int `yaml:"max_tokens"`

	// ReportCharCeiling hard-stops streamed report generation.
	ReportCharCeiling int `yaml:"report_char_ceiling"`

	// ReportStopDelimiter terminates streamed report generation.
	ReportStopDelimiter string `yaml:"report_stop_delimiter"`

	// Timeouts is the per-task budget table.
	Timeouts Timeouts `yaml:"timeouts"`
}

// StorageConfig configures the SQLite-backed stores.
type StorageConfig struct {
	// DatabasePath is the on-device SQLite file for longitudinal state,
	// crisis episodes, and the audit log.
	DatabasePath string `yaml:"database_path"`

	// StalenessWindow is the inactivity span after which persisted
	// longitudinal state is treated as absent rather than stale.
	StalenessWindow time.Duration `yaml:"staleness_window"`
}

// TemplateConfig configures the prompt template pack.
type TemplateConfig struct {
	// Path to the YAML template pack. Empty means embedded defaults only.
	Path string `yaml:"path"`

	// WatchForChanges reloads the pack when the file changes on disk.
	WatchForChanges bool `yaml:"watch_for_changes"`
}

// CrisisConfig configures the escalation lifecycle.
type CrisisConfig struct {
	// RecheckCountdown drives the Active/Stabilizing -> Recheck transition.
	RecheckCountdown time.Duration `yaml:"recheck_countdown"`

	// FrequencyWindow is the rolling window for the crisis-frequency counter.
	FrequencyWindow time.Duration `yaml:"frequency_window"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	JSONFormat bool   `yaml:"json_format"` // structured JSON vs console
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Name:    "vigil",
		Version: "0.4.0",

		Inference: InferenceConfig{
			ModelPath:           "models/clinical-3b.gguf",
			MaxTokens:           512,
			ReportCharCeiling:   3000,
			ReportStopDelimiter: "<<END_REPORT>>",
			Timeouts:            DefaultTimeouts(),
		},

		Storage: StorageConfig{
			DatabasePath:    "data/vigil.db",
			StalenessWindow: 30 * 24 * time.Hour,
		},

		Templates: TemplateConfig{
			Path:            "",
			WatchForChanges: false,
		},

		Crisis: CrisisConfig{
			RecheckCountdown: 10 * time.Minute,
			FrequencyWindow:  30 * 24 * time.Hour,
		},

		Logging: LoggingConfig{
			Level:      "info",
			JSONFormat: false,
		},
	}
}

// Load reads configuration from a YAML file layered over defaults.
// A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
