package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Labels.HistoryCapacity != 2 {
		t.Errorf("expected history capacity 2, got %d", cfg.Labels.HistoryCapacity)
	}
	if cfg.Labels.MaxClasses != 20 {
		t.Errorf("expected max classes 20, got %d", cfg.Labels.MaxClasses)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"max classes too small", func(c *Config) { c.Labels.MaxClasses = 1 }},
		{"default count above max", func(c *Config) { c.Labels.DefaultClassCount = 50 }},
		{"zero history", func(c *Config) { c.Labels.HistoryCapacity = 0 }},
		{"empty mask dir", func(c *Config) { c.Persistence.MaskDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "labels.json")

	cfg := Default()
	cfg.Labels.HistoryCapacity = 5
	cfg.Persistence.MaskPostfix = "_gt"
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Labels.HistoryCapacity != 5 {
		t.Errorf("expected capacity 5, got %d", loaded.Labels.HistoryCapacity)
	}
	if loaded.Persistence.MaskPostfix != "_gt" {
		t.Errorf("expected postfix _gt, got %q", loaded.Persistence.MaskPostfix)
	}
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.json")
	if err := os.WriteFile(path, []byte(`{"labels":{"history_capacity":4}}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Labels.HistoryCapacity != 4 {
		t.Errorf("expected capacity 4, got %d", cfg.Labels.HistoryCapacity)
	}
	if cfg.Labels.MaxClasses != 20 || cfg.Persistence.MaskDir != "mask" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	if lvl := NewLogger(true).GetLevel(); lvl != logrus.DebugLevel {
		t.Errorf("expected debug level, got %v", lvl)
	}
	if lvl := NewLogger(false).GetLevel(); lvl != logrus.InfoLevel {
		t.Errorf("expected info level, got %v", lvl)
	}
}
