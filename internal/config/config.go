package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete finsight configuration
type Config struct {
	Version int    `json:"version" mapstructure:"version"`
	DataDir string `json:"dataDir" mapstructure:"dataDir"`

	Analysis AnalysisConfig `json:"analysis" mapstructure:"analysis"`
	Scoring  ScoringConfig  `json:"scoring" mapstructure:"scoring"`
	Cache    CacheConfig    `json:"cache" mapstructure:"cache"`
	History  HistoryConfig  `json:"history" mapstructure:"history"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
}

// AnalysisConfig controls which report sections are produced
type AnalysisConfig struct {
	IncludeCalculations bool    `json:"includeCalculations" mapstructure:"includeCalculations"`
	IncludeExamples     bool    `json:"includeExamples" mapstructure:"includeExamples"`
	IncludeDeviations   bool    `json:"includeDeviations" mapstructure:"includeDeviations"`
	MaxExamples         int     `json:"maxExamples" mapstructure:"maxExamples"`
	SimilarityThreshold float64 `json:"similarityThreshold" mapstructure:"similarityThreshold"`
}

// ScoringConfig holds the detection tuning constants. The defaults are
// tuned to the shipped corpus; changing them changes every confidence
// score against that corpus.
type ScoringConfig struct {
	HybridConfidenceFloor float64 `json:"hybridConfidenceFloor" mapstructure:"hybridConfidenceFloor"`
	PatternBonus          float64 `json:"patternBonus" mapstructure:"patternBonus"`
	CorrelationBoost      float64 `json:"correlationBoost" mapstructure:"correlationBoost"`
	AdmissionThreshold    float64 `json:"admissionThreshold" mapstructure:"admissionThreshold"`
	HighBucketCut         float64 `json:"highBucketCut" mapstructure:"highBucketCut"`
	MediumBucketCut       float64 `json:"mediumBucketCut" mapstructure:"mediumBucketCut"`
	CriticalScoreCut      float64 `json:"criticalScoreCut" mapstructure:"criticalScoreCut"`
	TriggerWeight         float64 `json:"triggerWeight" mapstructure:"triggerWeight"`
}

// CacheConfig contains cache configuration
type CacheConfig struct {
	Enable     bool `json:"enable" mapstructure:"enable"`
	MaxEntries int  `json:"maxEntries" mapstructure:"maxEntries"`
	TtlMs      int  `json:"ttlMs" mapstructure:"ttlMs"`
}

// HistoryConfig contains history store configuration
type HistoryConfig struct {
	Enable bool `json:"enable" mapstructure:"enable"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		DataDir: ".finsight/kb",
		Analysis: AnalysisConfig{
			IncludeCalculations: true,
			IncludeExamples:     true,
			IncludeDeviations:   true,
			MaxExamples:         3,
			SimilarityThreshold: 0.7,
		},
		Scoring: ScoringConfig{
			HybridConfidenceFloor: 40,
			PatternBonus:          3,
			CorrelationBoost:      1.5,
			AdmissionThreshold:    2,
			HighBucketCut:         5,
			MediumBucketCut:       3,
			CriticalScoreCut:      8,
			TriggerWeight:         2,
		},
		Cache: CacheConfig{
			Enable:     true,
			MaxEntries: 100,
			TtlMs:      24 * 60 * 60 * 1000,
		},
		History: HistoryConfig{
			Enable: true,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .finsight/config.json under root.
// A missing config file is not an error; defaults are returned.
func LoadConfig(root string) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("version", def.Version)
	v.SetDefault("dataDir", def.DataDir)
	v.SetDefault("analysis.includeCalculations", def.Analysis.IncludeCalculations)
	v.SetDefault("analysis.includeExamples", def.Analysis.IncludeExamples)
	v.SetDefault("analysis.includeDeviations", def.Analysis.IncludeDeviations)
	v.SetDefault("analysis.maxExamples", def.Analysis.MaxExamples)
	v.SetDefault("analysis.similarityThreshold", def.Analysis.SimilarityThreshold)
	v.SetDefault("scoring.hybridConfidenceFloor", def.Scoring.HybridConfidenceFloor)
	v.SetDefault("scoring.patternBonus", def.Scoring.PatternBonus)
	v.SetDefault("scoring.correlationBoost", def.Scoring.CorrelationBoost)
	v.SetDefault("scoring.admissionThreshold", def.Scoring.AdmissionThreshold)
	v.SetDefault("scoring.highBucketCut", def.Scoring.HighBucketCut)
	v.SetDefault("scoring.mediumBucketCut", def.Scoring.MediumBucketCut)
	v.SetDefault("scoring.criticalScoreCut", def.Scoring.CriticalScoreCut)
	v.SetDefault("scoring.triggerWeight", def.Scoring.TriggerWeight)
	v.SetDefault("cache.enable", def.Cache.Enable)
	v.SetDefault("cache.maxEntries", def.Cache.MaxEntries)
	v.SetDefault("cache.ttlMs", def.Cache.TtlMs)
	v.SetDefault("history.enable", def.History.Enable)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.level", def.Logging.Level)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(root, ".finsight"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return def, nil
		}
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to .finsight/config.json
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, ".finsight")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Analysis.SimilarityThreshold < 0 || c.Analysis.SimilarityThreshold > 1 {
		return &ConfigError{Field: "analysis.similarityThreshold", Message: "must be in [0, 1]"}
	}
	if c.Scoring.HybridConfidenceFloor < 0 || c.Scoring.HybridConfidenceFloor > 100 {
		return &ConfigError{Field: "scoring.hybridConfidenceFloor", Message: "must be in [0, 100]"}
	}
	if c.Cache.MaxEntries <= 0 {
		return &ConfigError{Field: "cache.maxEntries", Message: "must be positive"}
	}
	if c.Scoring.HighBucketCut < c.Scoring.MediumBucketCut {
		return &ConfigError{Field: "scoring.highBucketCut", Message: "must be >= mediumBucketCut"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
