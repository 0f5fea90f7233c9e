package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ats-scorer-go/internal/config"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultAliyunModel   = "text-embedding-v3"
	defaultAliyunBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/embeddings"
)

// AliyunEmbedder implements embedding.Embedder against the OpenAI compatible
// DashScope endpoint.
type AliyunEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// AliyunOption configures an AliyunEmbedder.
type AliyunOption func(*AliyunEmbedder)

func WithAliyunLogger(logger zerolog.Logger) AliyunOption {
	return func(a *AliyunEmbedder) {
		a.logger = logger
	}
}

func WithAliyunHTTPClient(c *http.Client) AliyunOption {
	return func(a *AliyunEmbedder) {
		a.httpClient = c
	}
}

// NewAliyunEmbedder creates an embedder from the embedding config. Requests
// are paced to cfg.QPM per minute when it is positive.
func NewAliyunEmbedder(cfg config.EmbeddingConfig, opts ...AliyunOption) (*AliyunEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("aliyun embedder: api key is empty")
	}
	a := &AliyunEmbedder{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: config.GetDuration(cfg.Timeout, 30*time.Second)},
		limiter:    newMinuteLimiter(cfg.QPM),
		logger:     zerolog.Nop(),
	}
	if a.model == "" {
		a.model = defaultAliyunModel
	}
	if a.baseURL == "" {
		a.baseURL = defaultAliyunBaseURL
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// newMinuteLimiter allows qpm requests per minute with a burst of one. A
// non-positive qpm means no limit.
func newMinuteLimiter(qpm int) *rate.Limiter {
	if qpm <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(qpm)), 1)
}

// Model returns the default model name.
func (a *AliyunEmbedder) Model() string {
	return a.model
}

// GetDimensions returns the configured vector size.
func (a *AliyunEmbedder) GetDimensions() int {
	return a.dimensions
}

type aliyunEmbeddingRequest struct {
	Input          any    `json:"input"`
	Model          string `json:"model"`
	Dimensions     int    `json:"dimensions,omitempty"`
	EncodingFormat string `json:"encoding_format,omitempty"`
}

type aliyunEmbeddingResponse struct {
	Object string            `json:"object"`
	Data   []aliyunDataEntry `json:"data"`
	Model  string            `json:"model"`
	Usage  aliyunUsage       `json:"usage"`
	ID     string            `json:"id,omitempty"`
	Error  *aliyunAPIError   `json:"error,omitempty"`
}

type aliyunDataEntry struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type aliyunUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type aliyunAPIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param"`
	Code    string `json:"code"`
}

// EmbedStrings converts texts to vectors in input order.
func (a *AliyunEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	options := embedding.GetCommonOptions(&embedding.Options{}, opts...)
	model := a.model
	if options.Model != nil && *options.Model != "" {
		model = *options.Model
	}
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}
	body, err := json.Marshal(aliyunEmbeddingRequest{
		Input:          input,
		Model:          model,
		Dimensions:     a.dimensions,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send embedding request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var wrapped struct {
			Error aliyunAPIError `json:"error"`
		}
		if json.Unmarshal(raw, &wrapped) == nil && wrapped.Error.Message != "" {
			return nil, fmt.Errorf("embedding api status %d: %s (%s)", resp.StatusCode, wrapped.Error.Message, wrapped.Error.Code)
		}
		return nil, fmt.Errorf("embedding api status %d: %s", resp.StatusCode, truncateBody(raw))
	}

	var parsed aliyunEmbeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, fmt.Errorf("embedding api error: %s (%s)", parsed.Error.Message, parsed.Error.Code)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedding api returned %d vectors for %d texts", len(parsed.Data), len(texts))
	}

	out := make([][]float64, len(texts))
	for _, entry := range parsed.Data {
		if entry.Index < 0 || entry.Index >= len(out) {
			return nil, fmt.Errorf("embedding api returned index %d out of range", entry.Index)
		}
		out[entry.Index] = entry.Embedding
	}

	a.logger.Debug().
		Str("model", model).
		Int("texts", len(texts)).
		Int("dimensions", firstEmbeddingDim(out)).
		Int("total_tokens", parsed.Usage.TotalTokens).
		Dur("took", time.Since(start)).
		Msg("texts embedded")
	return out, nil
}

func firstEmbeddingDim(embeddings [][]float64) int {
	if len(embeddings) > 0 {
		return len(embeddings[0])
	}
	return 0
}

func truncateBody(b []byte) string {
	const max = 256
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
