// Label engine configuration and logger setup
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Config holds the engine configuration
type Config struct {
	Labels      LabelsConfig      `json:"labels"`
	Persistence PersistenceConfig `json:"persistence"`
	Logging     LoggingConfig     `json:"logging"`
}

// LabelsConfig bounds the class layer set and its history
type LabelsConfig struct {
	MaxClasses         int `json:"max_classes"`
	DefaultClassCount  int `json:"default_class_count"`
	HistoryCapacity    int `json:"history_capacity"`
	MaxSeparateClasses int `json:"max_separate_classes"`
}

// PersistenceConfig describes where label sets live relative to an image
type PersistenceConfig struct {
	MaskDir       string `json:"mask_dir"`
	MaskPostfix   string `json:"mask_postfix"`
	SeparateMasks bool   `json:"separate_masks"`
}

// LoggingConfig controls logger verbosity
type LoggingConfig struct {
	Debug bool `json:"debug"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Labels: LabelsConfig{
			MaxClasses:         20,
			DefaultClassCount:  3,
			HistoryCapacity:    2,
			MaxSeparateClasses: 30,
		},
		Persistence: PersistenceConfig{
			MaskDir:       "mask",
			MaskPostfix:   "",
			SeparateMasks: false,
		},
		Logging: LoggingConfig{
			Debug: false,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Missing fields keep their defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Labels.MaxClasses < 2 || c.Labels.MaxClasses > 256 {
		return fmt.Errorf("labels.max_classes must be between 2 and 256")
	}
	if c.Labels.DefaultClassCount < 1 || c.Labels.DefaultClassCount > c.Labels.MaxClasses {
		return fmt.Errorf("labels.default_class_count must be between 1 and labels.max_classes")
	}
	if c.Labels.HistoryCapacity < 1 {
		return fmt.Errorf("labels.history_capacity must be at least 1")
	}
	if c.Labels.MaxSeparateClasses < 1 || c.Labels.MaxSeparateClasses > 256 {
		return fmt.Errorf("labels.max_separate_classes must be between 1 and 256")
	}
	if c.Persistence.MaskDir == "" {
		return fmt.Errorf("persistence.mask_dir must not be empty")
	}
	return nil
}

// NewLogger initializes the logger with appropriate level
func NewLogger(debugMode bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logger.Debug("Debug logging enabled")
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger
}
