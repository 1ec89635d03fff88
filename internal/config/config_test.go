package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  data_dir: "test-data"
  collection: "products"
index:
  m: 8
  ef_search: 64
search:
  timeout: 2s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DataDir == "" || !filepath.IsAbs(cfg.Storage.DataDir) {
		t.Errorf("data_dir should be absolute, got %q", cfg.Storage.DataDir)
	}
	if cfg.Index.M != 8 || cfg.Index.EfSearch != 64 || cfg.Index.EfConstruction != 200 {
		t.Errorf("unexpected index config: %+v", cfg.Index)
	}
	if cfg.Search.Timeout != 2*time.Second {
		t.Errorf("timeout = %v, want 2s", cfg.Search.Timeout)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	path := writeConfig(t, `
debug: true
storage:
  data_dir: "./data"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: "./data/collections"
  collection: "catalog"
catalog:
  path: "./catalog/products.yaml"
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantData := filepath.Join(dir, "data", "collections")
	if cfg.Storage.DataDir != wantData {
		t.Errorf("data_dir = %s, want %s", cfg.Storage.DataDir, wantData)
	}
	if got, want := cfg.Storage.CollectionPath(), filepath.Join(wantData, "catalog.db"); got != want {
		t.Errorf("CollectionPath() = %s, want %s", got, want)
	}
	wantCatalog := filepath.Join(dir, "catalog", "products.yaml")
	if cfg.Catalog.Path != wantCatalog {
		t.Errorf("catalog path = %s, want %s", cfg.Catalog.Path, wantCatalog)
	}
}

func TestLoad_zeroThresholdIsKept(t *testing.T) {
	path := writeConfig(t, `
search:
  default_threshold: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.SearchThreshold(); got != 0 {
		t.Errorf("threshold = %g, want 0", got)
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"threshold out of range", "search:\n  default_threshold: 1.5\n"},
		{"unknown provider", "embedding:\n  provider: word2vec\n"},
		{"m too small", "index:\n  m: 1\n"},
		{"collection with separator", "storage:\n  collection: ../escape\n"},
		{"default top_k above max", "search:\n  default_top_k: 20\n  max_top_k: 10\n"},
		{"negative dimensions", "embedding:\n  dimensions: -3\n"},
		{"negative batch size", "embedding:\n  batch_size: -1\n"},
		{"malformed yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Storage.Collection != "product_search" {
		t.Errorf("default collection: got %s", cfg.Storage.Collection)
	}
	if cfg.Embedding.Provider != ProviderONNX || cfg.Embedding.Dimensions != 384 {
		t.Errorf("default embedding: got %+v", cfg.Embedding)
	}
	if cfg.Index.Type != "hnsw" || cfg.Index.M != 16 || cfg.Index.EfConstruction != 200 || cfg.Index.EfSearch != 32 {
		t.Errorf("default index: got %+v", cfg.Index)
	}
	if cfg.Search.DefaultTopK != 3 || cfg.SearchThreshold() != 0.5 {
		t.Errorf("default search: top_k=%d threshold=%g", cfg.Search.DefaultTopK, cfg.SearchThreshold())
	}
	if cfg.Search.DefaultThreshold != nil {
		t.Errorf("default threshold should stay unset so it follows the provider, got %g", *cfg.Search.DefaultThreshold)
	}
	if cfg.Embedding.BatchSize != 16 {
		t.Errorf("default batch size: got %d", cfg.Embedding.BatchSize)
	}
	if cfg.Server.RateBurst != 0 {
		t.Errorf("burst should stay unset when rate limiting is disabled, got %d", cfg.Server.RateBurst)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyDefaults_RateBurstWhenLimited(t *testing.T) {
	cfg := &Config{Server: ServerConfig{RateLimit: 10}}
	ApplyDefaults(cfg)
	if cfg.Server.RateBurst != 11 {
		t.Errorf("rate burst = %d, want 11", cfg.Server.RateBurst)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DataDir: "/tmp/prodsearch", Collection: "saved"},
	}
	ApplyDefaults(cfg)
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Storage.Collection != "saved" {
		t.Errorf("loaded collection: got %s", loaded.Storage.Collection)
	}
	if loaded.Search.Timeout != cfg.Search.Timeout {
		t.Errorf("loaded timeout: got %v, want %v", loaded.Search.Timeout, cfg.Search.Timeout)
	}
}

func TestSearchThreshold_followsProvider(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected float64
	}{
		{"onnx default", "embedding:\n  provider: onnx\n", 0.5},
		{"hash default", "embedding:\n  provider: hash\n", 0.2},
		{"explicit wins over hash default", "embedding:\n  provider: hash\nsearch:\n  default_threshold: 0.35\n", 0.35},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.content))
			if err != nil {
				t.Fatal(err)
			}
			if got := cfg.SearchThreshold(); got != tt.expected {
				t.Errorf("SearchThreshold() = %g, want %g", got, tt.expected)
			}
		})
	}
}

func TestSearchThreshold_switchesWithEffectiveProvider(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if got := cfg.SearchThreshold(); got != 0.5 {
		t.Fatalf("onnx threshold = %g, want 0.5", got)
	}
	cfg.Embedding.Provider = ProviderHash
	if got := cfg.SearchThreshold(); got != DefaultThreshold(ProviderHash) {
		t.Errorf("after fallback threshold = %g, want %g", got, DefaultThreshold(ProviderHash))
	}
}
