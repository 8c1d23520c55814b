package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsWhenConfigMissing(t *testing.T) {
	tempDir := t.TempDir()

	cfg, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Analysis.SimilarityThreshold != 0.7 {
		t.Errorf("expected default threshold 0.7, got %v", cfg.Analysis.SimilarityThreshold)
	}
	if cfg.Scoring.HybridConfidenceFloor != 40 {
		t.Errorf("expected default hybrid floor 40, got %v", cfg.Scoring.HybridConfidenceFloor)
	}
	if cfg.Cache.MaxEntries != 100 {
		t.Errorf("expected default cache bound 100, got %v", cfg.Cache.MaxEntries)
	}
	if cfg.Cache.TtlMs != 24*60*60*1000 {
		t.Errorf("expected default ttl 24h, got %v", cfg.Cache.TtlMs)
	}
	if !cfg.Cache.Enable {
		t.Error("cache should be enabled by default")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	tempDir := t.TempDir()
	dir := filepath.Join(tempDir, ".finsight")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	raw := `{"analysis": {"similarityThreshold": 0.8, "maxExamples": 5}, "cache": {"maxEntries": 10}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(raw), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	cfg, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Analysis.SimilarityThreshold != 0.8 {
		t.Errorf("expected overridden threshold 0.8, got %v", cfg.Analysis.SimilarityThreshold)
	}
	if cfg.Analysis.MaxExamples != 5 {
		t.Errorf("expected overridden maxExamples 5, got %v", cfg.Analysis.MaxExamples)
	}
	if cfg.Cache.MaxEntries != 10 {
		t.Errorf("expected overridden cache bound 10, got %v", cfg.Cache.MaxEntries)
	}
	// Untouched keys keep defaults
	if cfg.Scoring.PatternBonus != 3 {
		t.Errorf("expected default pattern bonus 3, got %v", cfg.Scoring.PatternBonus)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}

	cfg.Analysis.SimilarityThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation failure for threshold > 1")
	}

	cfg = DefaultConfig()
	cfg.Cache.MaxEntries = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation failure for zero cache bound")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tempDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Analysis.MaxExamples = 7
	if err := cfg.Save(tempDir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Analysis.MaxExamples != 7 {
		t.Errorf("expected saved maxExamples 7, got %v", loaded.Analysis.MaxExamples)
	}
}
