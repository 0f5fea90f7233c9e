// Package processor runs résumé documents through extraction, storage and
// scoring, synchronously for API calls and asynchronously for queued
// analyses.
package processor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"ats-scorer-go/internal/ats"
	"ats-scorer-go/internal/constants"
	"ats-scorer-go/internal/parser"
	"ats-scorer-go/internal/storage"
	"ats-scorer-go/internal/storage/models"
	"ats-scorer-go/internal/tracing"

	"github.com/gofrs/uuid/v5"
	googleuuid "github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("ats-scorer-go/processor")

const (
	defaultMaxAttempts = 3
	jdSourceInline     = "inline"
)

// TextExtractor turns an uploaded document into text.
type TextExtractor interface {
	Extract(ctx context.Context, doc ats.RawDocument) (string, error)
}

// JDResolver loads a job description by file name.
type JDResolver interface {
	Load(ctx context.Context, name string) (string, error)
}

// SubmissionDedup remembers which analysis a content hash produced.
type SubmissionDedup interface {
	CheckAndSetSubmission(ctx context.Context, contentHash, analysisID string, ttl time.Duration) (bool, string, error)
	ForgetSubmission(ctx context.Context, contentHash string) error
}

// Locker is a distributed mutex keyed by string.
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error)
	ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error)
}

// AnalyzeInput is a résumé plus a JD given either by file name or inline.
// Inline text wins when both are set.
type AnalyzeInput struct {
	Document ats.RawDocument
	JDName   string
	JDText   string
	Fresher  *bool
}

// IngestResult describes a stored upload.
type IngestResult struct {
	ID              string `json:"id"`
	Filename        string `json:"filename"`
	Format          string `json:"format"`
	ResumeObjectKey string `json:"resume_object_key,omitempty"`
	RawTextKey      string `json:"raw_text_key,omitempty"`
	CleanedTextKey  string `json:"cleaned_text_key,omitempty"`
	ContentHash     string `json:"content_hash,omitempty"`
	Characters      int    `json:"characters"`
	TextPreview     string `json:"text_preview"`
}

// ResumePreview is the short summary returned by preprocessing.
type ResumePreview struct {
	Name      *string  `json:"name"`
	Email     *string  `json:"email"`
	SkillsTop []string `json:"skills_top"`
}

// PreprocessResult is the preprocessing output and where it was stored.
type PreprocessResult struct {
	ID          string            `json:"id"`
	Preview     ResumePreview     `json:"preview"`
	ArtifactKey string            `json:"artifact_key,omitempty"`
	Result      *ats.Preprocessed `json:"-"`
}

// SubmitResult identifies a queued analysis.
type SubmitResult struct {
	AnalysisID string `json:"analysis_id"`
	Status     string `json:"status"`
	Duplicate  bool   `json:"duplicate"`
}

// AnalysisService wires extraction, storage and the analyzer together.
type AnalysisService struct {
	analyzer   *ats.Analyzer
	extractor  TextExtractor
	lexicon    ats.LexiconSource
	jds        JDResolver
	objects    storage.ObjectStorage
	repo       storage.AnalysisRepository
	dedup      SubmissionDedup
	locker     Locker
	similarity ats.SimilarityScorer

	exchange    string
	routingKey  string
	previewLen  int
	maxAttempts int
	logger      zerolog.Logger

	now   func() time.Time
	newID func() (string, error)
}

// NewAnalysisService builds a service scoring against lexicon.
func NewAnalysisService(analyzer *ats.Analyzer, extractor TextExtractor, lexicon ats.LexiconSource, opts ...Option) *AnalysisService {
	s := &AnalysisService{
		analyzer:    analyzer,
		extractor:   extractor,
		lexicon:     lexicon,
		previewLen:  parser.DefaultPreviewLen,
		maxAttempts: defaultMaxAttempts,
		logger:      zerolog.Nop(),
		now:         time.Now,
		newID:       newAnalysisID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newAnalysisID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *AnalysisService) extract(ctx context.Context, doc ats.RawDocument) (string, error) {
	text, err := s.extractor.Extract(ctx, doc)
	if err == nil {
		return text, nil
	}
	if errors.Is(err, ats.ErrUnsupportedFormat) || ctx.Err() != nil {
		return "", err
	}
	return "", &ProcessingError{Op: "extract", BaseErr: ErrExtractFailed, Detail: err.Error()}
}

// ResolveJD returns the JD text and a label for where it came from.
func (s *AnalysisService) ResolveJD(ctx context.Context, name, text string) (string, string, error) {
	if !ats.Blank(text) {
		return text, jdSourceInline, nil
	}
	if strings.TrimSpace(name) == "" {
		return "", "", NewInputError("jd_file or jd_text is required")
	}
	if s.jds == nil {
		return "", "", ErrJDStoreNotInit
	}
	jd, err := s.jds.Load(ctx, name)
	if err != nil {
		return "", "", err
	}
	return jd, name, nil
}

// Ingest extracts the text of doc and, when object storage is configured,
// stores the upload with its raw and cleaned text.
func (s *AnalysisService) Ingest(ctx context.Context, doc ats.RawDocument) (*IngestResult, error) {
	ctx, span := tracer.Start(ctx, "processor.Ingest")
	defer span.End()

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}
	span.SetAttributes(attribute.String("analysis.id", id))

	text, err := s.extract(ctx, doc)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		return nil, err
	}
	cleaned := parser.CleanText(text)
	res := &IngestResult{
		ID:          id,
		Filename:    doc.Name,
		Format:      string(doc.Format),
		Characters:  len(cleaned),
		TextPreview: parser.Preview(cleaned, s.previewLen),
	}
	if s.objects == nil {
		return res, nil
	}

	res.ResumeObjectKey, res.ContentHash, err = s.objects.UploadResumeFile(ctx, id, filepath.Ext(doc.Name), bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeStorage)
		return nil, NewStoreError(id, err.Error())
	}
	if res.RawTextKey, err = s.objects.UploadText(ctx, id, "raw", strings.TrimSpace(text)); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeStorage)
		return nil, NewStoreError(id, err.Error())
	}
	if res.CleanedTextKey, err = s.objects.UploadText(ctx, id, "cleaned", cleaned); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeStorage)
		return nil, NewStoreError(id, err.Error())
	}
	s.logger.Info().Str("analysis_id", id).Str("file", doc.Name).Int("chars", len(cleaned)).Msg("resume ingested")
	return res, nil
}

// Preprocess derives the structured résumé and stores it as a JSON artifact
// when object storage is configured.
func (s *AnalysisService) Preprocess(ctx context.Context, doc ats.RawDocument) (*PreprocessResult, error) {
	ctx, span := tracer.Start(ctx, "processor.Preprocess")
	defer span.End()

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}
	text, err := s.extract(ctx, doc)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		return nil, err
	}
	prep, err := s.analyzer.Preprocess(ctx, text, s.lexicon)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLexicon)
		return nil, err
	}

	res := &PreprocessResult{
		ID: id,
		Preview: ResumePreview{
			Name:      prep.Contact.Name,
			Email:     prep.Contact.Email,
			SkillsTop: prep.Skills.Top(10),
		},
		Result: prep,
	}
	if s.objects == nil {
		return res, nil
	}
	data, err := json.MarshalIndent(prep, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal preprocessing result: %w", err)
	}
	if res.ArtifactKey, err = s.objects.UploadArtifact(ctx, id, "preprocess", data); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeStorage)
		return nil, NewStoreError(id, err.Error())
	}
	return res, nil
}

// Analyze scores the document against the JD synchronously.
func (s *AnalysisService) Analyze(ctx context.Context, in AnalyzeInput) (*ats.AtsResult, error) {
	ctx, span := tracer.Start(ctx, "processor.Analyze")
	defer span.End()

	jd, source, err := s.ResolveJD(ctx, in.JDName, in.JDText)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	span.SetAttributes(attribute.String("jd.source", source))

	text, err := s.extract(ctx, in.Document)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		return nil, err
	}
	return s.analyzer.Analyze(ctx, ats.AnalyzeRequest{
		ResumeText: text,
		JDText:     jd,
		Lexicon:    s.lexicon,
		Fresher:    in.Fresher,
	})
}

// Similarity returns the semantic similarity of the document and the JD as
// a percentage with two decimals.
func (s *AnalysisService) Similarity(ctx context.Context, in AnalyzeInput) (float64, error) {
	if s.similarity == nil {
		return 0, ErrSimilarityNotInit
	}
	jd, _, err := s.ResolveJD(ctx, in.JDName, in.JDText)
	if err != nil {
		return 0, err
	}
	text, err := s.extract(ctx, in.Document)
	if err != nil {
		return 0, err
	}
	sim, err := s.similarity.Similarity(ctx, text, jd)
	if err != nil {
		return 0, err
	}
	return SimilarityPercent(sim), nil
}

// submissionHash identifies a submission by document bytes, JD text and
// fresher override.
func submissionHash(data []byte, jd string, fresher *bool) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(jd))
	switch {
	case fresher == nil:
		h.Write([]byte{0})
	case *fresher:
		h.Write([]byte{1})
	default:
		h.Write([]byte{2})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Submit stores the document and queues an analysis. The analysis row and
// its outbox event are written in one transaction; the relay publishes the
// event. An identical earlier submission is returned instead of queuing a
// new one.
func (s *AnalysisService) Submit(ctx context.Context, in AnalyzeInput) (*SubmitResult, error) {
	ctx, span := tracer.Start(ctx, "processor.Submit")
	defer span.End()

	if s.repo == nil {
		return nil, ErrRepositoryNotInit
	}
	if s.objects == nil {
		return nil, ErrStorageNotInit
	}
	jd, source, err := s.ResolveJD(ctx, in.JDName, in.JDText)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	text, err := s.extract(ctx, in.Document)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		return nil, err
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}
	span.SetAttributes(attribute.String("analysis.id", id))
	log := s.logger.With().Str("analysis_id", id).Logger()

	hash := submissionHash(in.Document.Data, jd, in.Fresher)
	if s.dedup != nil {
		dup, existing, err := s.dedup.CheckAndSetSubmission(ctx, hash, id, constants.SubmissionDedupDuration)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("submission dedup check failed, continuing without it")
		case dup && existing != "":
			if prev, err := s.repo.GetAnalysis(ctx, existing); err == nil {
				span.SetAttributes(attribute.Bool("analysis.duplicate", true))
				log.Info().Str("existing_id", existing).Msg("duplicate submission")
				return &SubmitResult{AnalysisID: prev.AnalysisID, Status: prev.Status, Duplicate: true}, nil
			}
			// The earlier analysis is gone; claim the hash for this one.
			if err := s.dedup.ForgetSubmission(ctx, hash); err == nil {
				_, _, _ = s.dedup.CheckAndSetSubmission(ctx, hash, id, constants.SubmissionDedupDuration)
			}
		}
	}

	resumeKey, _, err := s.objects.UploadResumeFile(ctx, id, filepath.Ext(in.Document.Name), bytes.NewReader(in.Document.Data), int64(len(in.Document.Data)))
	if err != nil {
		s.forget(ctx, hash)
		tracing.RecordError(span, err, tracing.ErrorTypeStorage)
		return nil, NewStoreError(id, err.Error())
	}
	textKey, err := s.objects.UploadText(ctx, id, "raw", text)
	if err != nil {
		s.forget(ctx, hash)
		tracing.RecordError(span, err, tracing.ErrorTypeStorage)
		return nil, NewStoreError(id, err.Error())
	}

	event, err := s.analysisEvent(id, textKey, source)
	if err != nil {
		s.forget(ctx, hash)
		return nil, err
	}

	analysis := &models.Analysis{
		AnalysisID:       id,
		Status:           constants.StatusPending,
		OriginalFilename: in.Document.Name,
		ResumeObjectKey:  resumeKey,
		TextObjectKey:    textKey,
		ContentHash:      hash,
		JDSource:         source,
		JDText:           jd,
		FresherOverride:  in.Fresher,
		ScorerVersion:    constants.ScorerVersion,
	}
	if err := s.repo.CreateAnalysisWithOutbox(ctx, analysis, event); err != nil {
		s.forget(ctx, hash)
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, NewDatabaseError(id, err.Error())
	}

	log.Info().Str("file", in.Document.Name).Str("jd_source", source).Msg("analysis queued")
	return &SubmitResult{AnalysisID: id, Status: constants.StatusPending}, nil
}

// analysisEvent builds the outbox row that queues analysis id.
func (s *AnalysisService) analysisEvent(id, textKey, source string) (*models.OutboxMessage, error) {
	payload, err := json.Marshal(storage.AnalysisRequestedMessage{
		AnalysisID:    id,
		MessageID:     googleuuid.NewString(),
		TextObjectKey: textKey,
		JDSource:      source,
		RequestedAt:   s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal analysis event: %w", err)
	}
	return &models.OutboxMessage{
		AggregateID:      id,
		EventType:        constants.EventAnalysisRequested,
		Payload:          string(payload),
		TargetExchange:   s.exchange,
		TargetRoutingKey: s.routingKey,
		Status:           constants.OutboxPending,
	}, nil
}

func (s *AnalysisService) forget(ctx context.Context, hash string) {
	if s.dedup == nil {
		return
	}
	if err := s.dedup.ForgetSubmission(ctx, hash); err != nil {
		s.logger.Warn().Err(err).Msg("forget submission hash failed")
	}
}

// GetAnalysis returns a stored analysis.
func (s *AnalysisService) GetAnalysis(ctx context.Context, id string) (*models.Analysis, error) {
	if s.repo == nil {
		return nil, ErrRepositoryNotInit
	}
	return s.repo.GetAnalysis(ctx, id)
}
