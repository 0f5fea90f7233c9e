package processor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"ats-scorer-go/internal/ats"
	"ats-scorer-go/internal/constants"
	"ats-scorer-go/internal/parser"
	"ats-scorer-go/internal/storage"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const jdEmbedTimeout = time.Minute

// Embedder turns texts into vectors and names the model it uses.
type Embedder interface {
	EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error)
	Model() string
}

// VectorCache keeps JD embeddings between requests.
type VectorCache interface {
	GetJDVector(ctx context.Context, key string) ([]float32, string, error)
	SetJDVector(ctx context.Context, key string, vector []float32, model string, ttl time.Duration) error
}

// SimilarityOption configures a SimilarityService.
type SimilarityOption func(*SimilarityService)

// WithVectorCache caches JD vectors for ttl.
func WithVectorCache(cache VectorCache, ttl time.Duration) SimilarityOption {
	return func(s *SimilarityService) {
		s.cache = cache
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithSimilarityLogger(logger zerolog.Logger) SimilarityOption {
	return func(s *SimilarityService) {
		s.logger = logger
	}
}

// SimilarityService scores the semantic similarity of a résumé and a JD as
// the cosine of their embeddings. Both texts are cleaned first; the JD
// vector is cached by model and content hash.
type SimilarityService struct {
	embedder Embedder
	cache    VectorCache
	ttl      time.Duration
	group    singleflight.Group
	logger   zerolog.Logger
}

var _ ats.SimilarityScorer = (*SimilarityService)(nil)

func NewSimilarityService(embedder Embedder, opts ...SimilarityOption) *SimilarityService {
	s := &SimilarityService{
		embedder: embedder,
		ttl:      constants.JDVectorCacheDuration,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Similarity returns the cosine similarity of resume and jd clamped to
// 0..1. Either text being blank yields 0.
func (s *SimilarityService) Similarity(ctx context.Context, resume, jd string) (float64, error) {
	resume, jd = parser.CleanText(resume), parser.CleanText(jd)
	if resume == "" || jd == "" {
		return 0, nil
	}

	jdVec, err := s.jdVector(ctx, jd)
	if err != nil {
		return 0, err
	}
	vecs, err := s.embedder.EmbedStrings(ctx, []string{resume})
	if err != nil {
		return 0, fmt.Errorf("embed resume: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return 0, fmt.Errorf("embed resume: empty vector")
	}
	return Cosine(vecs[0], jdVec), nil
}

func (s *SimilarityService) jdVector(ctx context.Context, jd string) ([]float64, error) {
	sum := sha256.Sum256([]byte(jd))
	model := s.embedder.Model()
	key := storage.JDVectorKey(model, hex.EncodeToString(sum[:]))

	if s.cache != nil {
		cached, cachedModel, err := s.cache.GetJDVector(ctx, key)
		switch {
		case err == nil && cachedModel == model && len(cached) > 0:
			return toFloat64(cached), nil
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			s.logger.Warn().Err(err).Str("key", key).Msg("jd vector cache read failed, embedding again")
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// Shared by every waiter on key, so one caller going away must not
		// fail the rest.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), jdEmbedTimeout)
		defer cancel()
		vecs, err := s.embedder.EmbedStrings(ctx, []string{jd})
		if err != nil {
			return nil, fmt.Errorf("embed job description: %w", err)
		}
		if len(vecs) != 1 || len(vecs[0]) == 0 {
			return nil, fmt.Errorf("embed job description: empty vector")
		}
		// Stored at float32 precision, so use that precision on a miss too.
		vec := toFloat32(vecs[0])
		if s.cache != nil {
			if err := s.cache.SetJDVector(ctx, key, vec, model, s.ttl); err != nil {
				s.logger.Warn().Err(err).Str("key", key).Msg("jd vector cache write failed")
			}
		}
		return toFloat64(vec), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float64), nil
}

// Cosine returns the cosine similarity of a and b clamped to 0..1. Vectors
// of different length or zero norm score 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	c := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(0, math.Min(1, c))
}

// SimilarityPercent converts a 0..1 similarity to a percentage with two
// decimals.
func SimilarityPercent(sim float64) float64 {
	return math.Round(math.Max(0, math.Min(1, sim))*100*100) / 100
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
