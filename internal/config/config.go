// Package config provides configuration loading and structs for the manabi server.
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
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Engine  EngineConfig  `yaml:"engine"`
	Search  SearchConfig  `yaml:"search"`
	Inbox   InboxConfig   `yaml:"inbox"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and the keyword index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// EngineConfig holds clustering and concept-extraction tunables.
type EngineConfig struct {
	// SimilarityThreshold is the minimum combined concept-overlap score
	// for a document to join an existing cluster.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	// ClusterNameBonus is added when a document's suggested name occurs
	// in a cluster's name. The combined score is not capped at 1.0.
	ClusterNameBonus float64 `yaml:"cluster_name_bonus"`
	// MaxPrimaryConcepts bounds how many concept names a cluster keeps.
	MaxPrimaryConcepts int `yaml:"max_primary_concepts"`
	// ConceptCount is how many concepts the extractor emits per document.
	ConceptCount int `yaml:"concept_count"`
}

// SearchConfig holds hybrid search settings.
type SearchConfig struct {
	DefaultLimit      int     `yaml:"default_limit"`
	MaxLimit          int     `yaml:"max_limit"`
	TopKCandidates    int     `yaml:"top_k_candidates"`
	KeywordTitleBoost float64 `yaml:"keyword_title_boost"`
	KeywordWeight     float64 `yaml:"keyword_weight"`
	SemanticWeight    float64 `yaml:"semantic_weight"`
}

// InboxConfig holds directory watch settings for file ingestion.
type InboxConfig struct {
	Directory  string   `yaml:"directory"`
	Extensions []string `yaml:"extensions"`
	DebounceMS int      `yaml:"debounce_ms"`
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
	if cfg.Inbox.Directory != "" {
		cfg.Inbox.Directory = expandPath(cfg.Inbox.Directory, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
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
