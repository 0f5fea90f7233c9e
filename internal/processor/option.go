package processor

import (
	"ats-scorer-go/internal/ats"
	"ats-scorer-go/internal/storage"

	"github.com/rs/zerolog"
)

// Option configures an AnalysisService.
type Option func(*AnalysisService)

// WithObjectStorage stores uploads, text and artifacts.
func WithObjectStorage(objects storage.ObjectStorage) Option {
	return func(s *AnalysisService) {
		s.objects = objects
	}
}

// WithRepository enables queued analyses.
func WithRepository(repo storage.AnalysisRepository) Option {
	return func(s *AnalysisService) {
		s.repo = repo
	}
}

// WithDedup maps identical submissions to their first analysis.
func WithDedup(d SubmissionDedup) Option {
	return func(s *AnalysisService) {
		s.dedup = d
	}
}

// WithLocker serializes workers on one analysis.
func WithLocker(l Locker) Option {
	return func(s *AnalysisService) {
		s.locker = l
	}
}

// WithJDResolver resolves JD file names.
func WithJDResolver(r JDResolver) Option {
	return func(s *AnalysisService) {
		s.jds = r
	}
}

// WithSimilarity enables the standalone similarity operation.
func WithSimilarity(sim ats.SimilarityScorer) Option {
	return func(s *AnalysisService) {
		s.similarity = sim
	}
}

// WithOutboxTarget sets where analysis events are published.
func WithOutboxTarget(exchange, routingKey string) Option {
	return func(s *AnalysisService) {
		s.exchange = exchange
		s.routingKey = routingKey
	}
}

// WithPreviewLen sets the length of ingest text previews.
func WithPreviewLen(n int) Option {
	return func(s *AnalysisService) {
		if n > 0 {
			s.previewLen = n
		}
	}
}

// WithMaxAttempts bounds how often the worker retries one analysis.
func WithMaxAttempts(n int) Option {
	return func(s *AnalysisService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *AnalysisService) {
		s.logger = logger
	}
}
