// Package config provides configuration loading and structs for the prodsearch engine and server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Catalog   CatalogConfig   `yaml:"catalog"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// RateLimit is the sustained requests per second allowed across all clients; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// StorageConfig holds the on-disk location of collections.
// A collection named N is stored at DataDir/N.db.
type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	Collection  string `yaml:"collection"`
	DropOnClose bool   `yaml:"drop_on_close"`
}

// CollectionPath returns the database file for the configured collection.
func (s *StorageConfig) CollectionPath() string {
	return filepath.Join(s.DataDir, s.Collection+".db")
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	// Provider is "onnx" (falls back to "hash" when the model cannot be loaded) or "hash".
	Provider   string `yaml:"provider"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	// Workers bounds concurrent embedding calls during bulk load.
	Workers int `yaml:"workers"`
	// BatchSize is the number of products handed to each embedding call during bulk load.
	BatchSize int `yaml:"batch_size"`
}

// IndexConfig holds vector index construction and search parameters.
type IndexConfig struct {
	Type           string `yaml:"type"`
	M              int    `yaml:"m"`
	EfConstruction int    `yaml:"ef_construction"`
	EfSearch       int    `yaml:"ef_search"`
	Seed           int64  `yaml:"seed"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	DefaultTopK      int           `yaml:"default_top_k"`
	MaxTopK          int           `yaml:"max_top_k"`
	DefaultThreshold *float64      `yaml:"default_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// SearchThreshold returns search.default_threshold, or the provider default when it is unset.
func (c *Config) SearchThreshold() float64 {
	if c.Search.DefaultThreshold != nil {
		return *c.Search.DefaultThreshold
	}
	return DefaultThreshold(c.Embedding.Provider)
}

// CatalogConfig points at the product catalog loaded at startup.
// An empty path loads the built-in sample products.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the config file at path, expands paths, applies defaults and validates.
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
	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	if cfg.Catalog.Path != "" {
		cfg.Catalog.Path = expandPath(cfg.Catalog.Path, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings that defaults cannot repair.
func (c *Config) Validate() error {
	if strings.ContainsAny(c.Storage.Collection, `/\`) {
		return fmt.Errorf("invalid collection name %q: must not contain path separators", c.Storage.Collection)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	switch c.Embedding.Provider {
	case ProviderONNX, ProviderHash:
	default:
		return fmt.Errorf("unknown embedding provider %q (supported: onnx, hash)", c.Embedding.Provider)
	}
	if c.Embedding.BatchSize < 0 {
		return fmt.Errorf("embedding.batch_size must not be negative, got %d", c.Embedding.BatchSize)
	}
	if c.Index.M < 2 {
		return fmt.Errorf("index.m must be at least 2, got %d", c.Index.M)
	}
	if t := c.SearchThreshold(); t < -1 || t > 1 {
		return fmt.Errorf("search.default_threshold must be within [-1, 1], got %g", t)
	}
	if c.Search.DefaultTopK > c.Search.MaxTopK {
		return fmt.Errorf("search.default_top_k (%d) exceeds search.max_top_k (%d)", c.Search.DefaultTopK, c.Search.MaxTopK)
	}
	return nil
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
