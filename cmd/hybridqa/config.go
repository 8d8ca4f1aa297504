package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// config is the YAML file format for the batch command.
type config struct {
	// CorpusDir holds the policy documents (.md/.txt).
	CorpusDir string `yaml:"corpus_dir"`

	// Database is the SQLite database path.
	Database string `yaml:"database"`

	// Provider selects the model backend: openai, anthropic, or google.
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model name.
	Model string `yaml:"model"`

	// MaxTokens bounds model output length.
	MaxTokens int `yaml:"max_tokens"`

	// TimeoutSeconds bounds each workflow node, model calls included.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// Concurrency bounds in-flight questions during a batch.
	Concurrency int `yaml:"concurrency"`

	// Store selects step persistence: memory, sqlite, or mysql.
	Store string `yaml:"store"`

	// StorePath is the SQLite store path when Store is sqlite.
	StorePath string `yaml:"store_path"`

	// MySQLDSN is the connection string when Store is mysql.
	MySQLDSN string `yaml:"mysql_dsn"`

	// Emitter selects event output: text, json, otel, or none.
	Emitter string `yaml:"emitter"`

	// MetricsAddr, when set, serves Prometheus metrics on this address.
	MetricsAddr string `yaml:"metrics_addr"`

	// Fallbacks is a JSON file of pre-defined degraded-mode records.
	Fallbacks string `yaml:"fallbacks"`
}

func defaultConfig() config {
	return config{
		CorpusDir:      "docs",
		Database:       "northwind.db",
		Provider:       "openai",
		MaxTokens:      1024,
		TimeoutSeconds: 90,
		Concurrency:    4,
		Store:          "memory",
		Emitter:        "text",
	}
}

// loadConfig reads the YAML config at path over the defaults. An empty
// path returns the defaults unchanged.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c config) nodeTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
