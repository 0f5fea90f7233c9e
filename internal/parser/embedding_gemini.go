package parser

import (
	"context"
	"fmt"
	"time"

	"ats-scorer-go/internal/config"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-embedding-001"

// GeminiEmbedder implements embedding.Embedder with the Gemini API.
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// NewGeminiEmbedder creates a Gemini API client from cfg.
func NewGeminiEmbedder(ctx context.Context, cfg config.EmbeddingConfig, logger zerolog.Logger) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini embedder: api key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiEmbedder{
		client:     client,
		model:      model,
		dimensions: cfg.Dimensions,
		limiter:    newMinuteLimiter(cfg.QPM),
		logger:     logger,
	}, nil
}

// Model returns the embedding model name.
func (g *GeminiEmbedder) Model() string {
	return g.model
}

// EmbedStrings embeds texts in one batch call.
func (g *GeminiEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	options := embedding.GetCommonOptions(&embedding.Options{}, opts...)
	model := g.model
	if options.Model != nil && *options.Model != "" {
		model = *options.Model
	}
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.Text(t)...)
	}
	cfg := &genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"}
	if g.dimensions > 0 {
		dim := int32(g.dimensions)
		cfg.OutputDimensionality = &dim
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limiter: %w", err)
	}
	start := time.Now()
	resp, err := g.client.Models.EmbedContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embed content: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	out := make([][]float64, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vec := make([]float64, len(e.Values))
		for j, v := range e.Values {
			vec[j] = float64(v)
		}
		out[i] = vec
	}

	g.logger.Debug().
		Str("model", model).
		Int("texts", len(texts)).
		Int("dimensions", firstEmbeddingDim(out)).
		Dur("took", time.Since(start)).
		Msg("texts embedded")
	return out, nil
}
