package config

import "time"

// Embedding providers.
const (
	ProviderONNX = "onnx"
	ProviderHash = "hash"
)

// Search thresholds used when search.default_threshold is unset. Hashed bag-of-words
// vectors of related texts seldom reach a cosine similarity of 0.5.
const (
	defaultThreshold     = 0.5
	defaultHashThreshold = 0.2
)

// DefaultThreshold returns the default search threshold for an embedding provider.
func DefaultThreshold(provider string) float64 {
	if provider == ProviderHash {
		return defaultHashThreshold
	}
	return defaultThreshold
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimit > 0 && cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = int(cfg.Server.RateLimit) + 1
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "/usr/local/var/prodsearch/data"
	}
	if cfg.Storage.Collection == "" {
		cfg.Storage.Collection = "product_search"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderONNX
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/prodsearch/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Workers == 0 {
		cfg.Embedding.Workers = 4
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 16
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "hnsw"
	}
	// M and efConstruction follow the values the product demo shipped with.
	if cfg.Index.M == 0 {
		cfg.Index.M = 16
	}
	if cfg.Index.EfConstruction == 0 {
		cfg.Index.EfConstruction = 200
	}
	if cfg.Index.EfSearch == 0 {
		cfg.Index.EfSearch = 32
	}
	if cfg.Index.Seed == 0 {
		cfg.Index.Seed = 42
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 3
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 100
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = 5 * time.Second
	}
}
