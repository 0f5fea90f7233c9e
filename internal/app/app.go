// Package app assembles the scoring pipeline from configuration for the
// server, worker and command line binaries.
package app

import (
	"context"
	"fmt"

	"ats-scorer-go/internal/ats"
	"ats-scorer-go/internal/config"
	"ats-scorer-go/internal/constants"
	"ats-scorer-go/internal/corpus"
	"ats-scorer-go/internal/jobdesc"
	"ats-scorer-go/internal/parser"
	"ats-scorer-go/internal/processor"
	"ats-scorer-go/internal/storage"

	"github.com/rs/zerolog"
)

// App holds the wired components. Storage is nil for offline use.
type App struct {
	Config     *config.Config
	Storage    *storage.Storage
	Analyzer   *ats.Analyzer
	Extractor  *parser.Extractor
	Lexicon    ats.LexiconSource
	JDs        *jobdesc.Store
	Similarity *processor.SimilarityService
	Service    *processor.AnalysisService

	closers []func()
}

// Build wires the pipeline. st may be nil, in which case the service runs
// without object storage, persistence or the JD vector cache.
func Build(ctx context.Context, cfg *config.Config, st *storage.Storage, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Storage: st, JDs: jobdesc.NewStore(cfg.Scoring.JDFolder)}

	weights, err := cfg.Scoring.WeightTable()
	if err != nil {
		return nil, fmt.Errorf("scoring weights: %w", err)
	}
	tables := ats.DefaultTables()
	loader := ats.NewLexiconLoader(tables,
		ats.WithLexiconCacheTTL(config.GetDuration(cfg.Scoring.LexiconCacheTTL, 0)),
		ats.WithLexiconLogger(logger.With().Str("component", "lexicon").Logger()),
	)

	analyzerOpts := []ats.Option{
		ats.WithTables(tables),
		ats.WithWeights(weights),
		ats.WithLexiconLoader(loader),
		ats.WithLogger(logger.With().Str("component", "analyzer").Logger()),
	}
	if cfg.Scoring.Similarity {
		a.Similarity, err = newSimilarity(ctx, cfg, st, logger)
		if err != nil {
			return nil, err
		}
		analyzerOpts = append(analyzerOpts, ats.WithSimilarity(a.Similarity))
	}
	if a.Analyzer, err = ats.NewAnalyzer(analyzerOpts...); err != nil {
		return nil, fmt.Errorf("create analyzer: %w", err)
	}

	a.Extractor, err = parser.NewDefaultExtractor(ctx, cfg.Extraction, logger.With().Str("component", "extractor").Logger())
	if err != nil {
		return nil, err
	}

	deps := corpus.Deps{S3: cfg.S3, Postgres: cfg.Postgres}
	if st != nil && st.MinIO != nil {
		deps.Objects = st.MinIO
	}
	lexicon, closeLexicon, err := corpus.ResolveSource(ctx, cfg.Scoring.LexiconSource, deps)
	if err != nil {
		return nil, fmt.Errorf("lexicon source: %w", err)
	}
	a.Lexicon = lexicon
	a.closers = append(a.closers, closeLexicon)

	opts := []processor.Option{
		processor.WithJDResolver(a.JDs),
		processor.WithPreviewLen(cfg.Extraction.PreviewLen),
		processor.WithOutboxTarget(cfg.RabbitMQ.AnalysisExchange, cfg.RabbitMQ.AnalysisRoutingKey),
		processor.WithMaxAttempts(cfg.RabbitMQ.MaxRetries),
		processor.WithLogger(logger.With().Str("component", "processor").Logger()),
	}
	if a.Similarity != nil {
		opts = append(opts, processor.WithSimilarity(a.Similarity))
	}
	if st != nil {
		if st.MinIO != nil {
			opts = append(opts, processor.WithObjectStorage(st.MinIO))
		}
		if st.MySQL != nil {
			opts = append(opts, processor.WithRepository(st.MySQL))
		}
		if st.Redis != nil {
			opts = append(opts, processor.WithDedup(st.Redis), processor.WithLocker(st.Redis))
		}
	}
	a.Service = processor.NewAnalysisService(a.Analyzer, a.Extractor, a.Lexicon, opts...)
	return a, nil
}

func newSimilarity(ctx context.Context, cfg *config.Config, st *storage.Storage, logger zerolog.Logger) (*processor.SimilarityService, error) {
	embedder, err := parser.NewEmbedder(ctx, cfg.Embedding, logger.With().Str("component", "embedder").Logger())
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	opts := []processor.SimilarityOption{
		processor.WithSimilarityLogger(logger.With().Str("component", "similarity").Logger()),
	}
	if st != nil && st.Redis != nil {
		ttl := config.GetDuration(cfg.Embedding.CacheTTL, constants.JDVectorCacheDuration)
		opts = append(opts, processor.WithVectorCache(st.Redis, ttl))
	}
	return processor.NewSimilarityService(embedder, opts...), nil
}

// Close releases lexicon connections. Storage is closed by its owner.
func (a *App) Close() {
	for _, c := range a.closers {
		c()
	}
}
