package embedding

import (
	"fmt"

	"github.com/hyperjump/prodsearch/internal/config"
	"github.com/hyperjump/prodsearch/pkg/utils"
	"go.uber.org/zap"
)

// New builds the configured embedder wrapped in an LRU cache.
// When the onnx provider cannot load its model, it logs a warning and falls back to hashing
// with the same dimensions so the rest of the pipeline keeps working.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (*CachedEmbedder, error) {
	logger = utils.LoggerOrNop(logger)
	var inner Embedder
	switch cfg.Provider {
	case config.ProviderHash:
		inner = NewHashEmbedder(cfg.Dimensions)
	case config.ProviderONNX, "":
		onnxEmbedder, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			logger.Warn("onnx embedder unavailable, falling back to hash embedder",
				zap.String("model_path", cfg.ModelPath),
				zap.Error(err))
			inner = NewHashEmbedder(cfg.Dimensions)
		} else {
			inner = onnxEmbedder
		}
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
	logger.Debug("embedder initialized",
		zap.String("provider", ProviderName(inner)),
		zap.Int("dimensions", inner.Dimensions()),
		zap.Int("cache_size", cfg.CacheSize))
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

// ProviderName returns the provider constant for e, or "" for embedders built outside New.
func ProviderName(e Embedder) string {
	switch v := e.(type) {
	case *HashEmbedder:
		return config.ProviderHash
	case *ONNXEmbedder:
		return config.ProviderONNX
	case *CachedEmbedder:
		return v.Provider()
	default:
		return ""
	}
}
