// Package config loads runtime configuration for the engram engine from
// environment variables. All variables share the ENGRAM_ prefix; every field
// has a sensible default so a zero-config start works out of the box.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config is the top level configuration for the engine and CLI.
type Config struct {
	Embedding EmbeddingConfig
	Index     IndexConfig
	Recall    RecallConfig
	Storage   StorageConfig
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
}

// EmbeddingConfig controls embedding generation.
type EmbeddingConfig struct {
	Dimensions int    `envconfig:"DIMENSIONS" default:"384"`
	Method     string `envconfig:"METHOD" default:"tfidf"`

	// External provider settings, used only when Method is "external".
	ProviderURL   string `envconfig:"PROVIDER_URL"`
	ProviderModel string `envconfig:"PROVIDER_MODEL" default:"text-embedding-3-small"`
	ProviderKey   string `envconfig:"PROVIDER_KEY"`
}

// IndexConfig controls approximate index construction.
type IndexConfig struct {
	M              int   `envconfig:"M" default:"16"`
	MMax           int   `envconfig:"M_MAX" default:"32"`
	EfConstruction int   `envconfig:"EF_CONSTRUCTION" default:"200"`
	EfSearch       int   `envconfig:"EF_SEARCH" default:"50"`
	Seed           int64 `envconfig:"SEED" default:"1"`
}

// RecallConfig controls synthesized recall defaults.
type RecallConfig struct {
	Threshold  float64 `envconfig:"THRESHOLD" default:"0.3"`
	MaxResults int     `envconfig:"MAX_RESULTS" default:"20"`
	Algorithm  string  `envconfig:"ALGORITHM" default:"weighted"`
}

// StorageConfig locates the SQLite collaborators.
type StorageConfig struct {
	GraphPath   string `envconfig:"GRAPH_PATH" default:"engram_graph.db"`
	KeywordPath string `envconfig:"KEYWORD_PATH" default:"engram_keyword.db"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("ENGRAM", &cfg); err != nil {
		return nil, fmt.Errorf("config: process environment: %w", err)
	}
	envconfig.Process("ENGRAM_EMBEDDING", &cfg.Embedding)
	envconfig.Process("ENGRAM_INDEX", &cfg.Index)
	envconfig.Process("ENGRAM_RECALL", &cfg.Recall)
	envconfig.Process("ENGRAM_STORAGE", &cfg.Storage)

	if cfg.Embedding.Dimensions <= 0 {
		return nil, fmt.Errorf("config: embedding dimensions must be positive, got %d", cfg.Embedding.Dimensions)
	}
	return &cfg, nil
}
