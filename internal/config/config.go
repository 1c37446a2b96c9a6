// Package config provides configuration loading and structs for the CropSage server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Synthesis  SynthesisConfig  `yaml:"synthesis"`
	Compliance ComplianceConfig `yaml:"compliance"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Worker     WorkerConfig     `yaml:"worker"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and indices.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	BleveIndexPath  string `yaml:"bleve_index_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
}

// EmbeddingConfig holds ONNX embedder settings.
type EmbeddingConfig struct {
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// RetrievalConfig holds candidate retrieval and diversification settings.
type RetrievalConfig struct {
	DefaultLimit int     `yaml:"default_limit"`
	MaxLimit     int     `yaml:"max_limit"`
	ContextTopK  int     `yaml:"context_top_k"`
	MMRLambda    float64 `yaml:"mmr_lambda"`
}

// SynthesisConfig holds generative model settings.
type SynthesisConfig struct {
	Enabled     bool    `yaml:"enabled"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// ComplianceConfig holds the policy thresholds for the rule battery.
// MaxSingleRate and MaxSeasonalDose are policy constants in label-rate units;
// values come from the regulatory review, not derived in code.
type ComplianceConfig struct {
	MaxSingleRate   float64 `yaml:"max_single_rate"`
	MaxSeasonalDose float64 `yaml:"max_seasonal_dose"`
	RuleVersion     string  `yaml:"rule_version"`
}

// IngestConfig holds chunking and reference-material watch settings.
type IngestConfig struct {
	MinChunkTokens int      `yaml:"min_chunk_tokens"`
	MaxChunkTokens int      `yaml:"max_chunk_tokens"`
	OverlapTokens  int      `yaml:"overlap_tokens"`
	WatchDirs      []string `yaml:"watch_dirs"`
	Extensions     []string `yaml:"extensions"`
}

// WorkerConfig holds queue worker settings.
type WorkerConfig struct {
	BatchSize    int    `yaml:"batch_size"`
	PollInterval string `yaml:"poll_interval"`
	MaxAttempts  int    `yaml:"max_attempts"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Ingest.WatchDirs {
		cfg.Ingest.WatchDirs[i] = expandPath(cfg.Ingest.WatchDirs[i], configDir)
	}

	// The API key may come from the environment instead of the file.
	if cfg.Synthesis.APIKey == "" {
		cfg.Synthesis.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
