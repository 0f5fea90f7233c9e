package parser

import (
	"context"
	"fmt"
	"strings"

	"ats-scorer-go/internal/config"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/rs/zerolog"
)

// ModelEmbedder is an embedder that can name its model, used to key cached
// vectors.
type ModelEmbedder interface {
	embedding.Embedder
	Model() string
}

// NewEmbedder returns the embedder selected by cfg.Provider. Supported
// providers are dashscope (default) and gemini.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingConfig, logger zerolog.Logger) (ModelEmbedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "dashscope", "aliyun":
		return NewAliyunEmbedder(cfg, WithAliyunLogger(logger))
	case "gemini":
		return NewGeminiEmbedder(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
