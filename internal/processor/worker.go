package processor

import (
	"context"
	"encoding/json"
	"errors"

	"ats-scorer-go/internal/ats"
	"ats-scorer-go/internal/constants"
	"ats-scorer-go/internal/storage"
	"ats-scorer-go/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HandleAnalysisMessage processes one analysis.requested delivery. It
// returns true when the delivery should be acked and false to requeue it.
// Analyses that keep failing are marked FAILED and acked once they reach
// the attempt limit.
func (s *AnalysisService) HandleAnalysisMessage(ctx context.Context, body []byte) bool {
	ctx, span := tracer.Start(ctx, "processor.HandleAnalysisMessage", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	var msg storage.AnalysisRequestedMessage
	if err := json.Unmarshal(body, &msg); err != nil || msg.AnalysisID == "" {
		if err == nil {
			err = errors.New("missing analysis_id")
		}
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		s.logger.Error().Err(err).Msg("dropping malformed analysis message")
		return true
	}
	span.SetAttributes(
		attribute.String("analysis.id", msg.AnalysisID),
		attribute.String("message.id", msg.MessageID),
	)
	log := s.logger.With().Str("analysis_id", msg.AnalysisID).Str("message_id", msg.MessageID).Logger()

	if s.repo == nil || s.objects == nil {
		log.Error().Msg("worker is missing repository or object storage")
		return false
	}

	if s.locker != nil {
		lockKey := storage.AnalysisLockKey(msg.AnalysisID)
		span.SetAttributes(attribute.String("redis.lock_key", tracing.SafeRedisKey(lockKey)))
		token, err := s.locker.AcquireLock(ctx, lockKey, constants.AnalysisLockDuration)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeRedis)
			log.Warn().Err(err).Msg("acquire analysis lock failed, requeueing")
			return false
		}
		if token == "" {
			log.Debug().Msg("analysis locked by another worker")
			return true
		}
		defer func() {
			if _, err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
				log.Warn().Err(err).Msg("release analysis lock failed")
			}
		}()
	}

	claimed, err := s.repo.MarkAnalysisProcessing(ctx, msg.AnalysisID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		log.Error().Err(err).Msg("claim analysis failed, requeueing")
		return false
	}
	if !claimed {
		log.Debug().Msg("analysis already processing or done")
		return true
	}

	analysis, err := s.repo.GetAnalysis(ctx, msg.AnalysisID)
	if errors.Is(err, storage.ErrAnalysisNotFound) {
		log.Warn().Msg("analysis record vanished")
		return true
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return s.fail(ctx, msg.AnalysisID, 0, err)
	}

	textKey := analysis.TextObjectKey
	if textKey == "" {
		textKey = msg.TextObjectKey
	}
	text, err := s.objects.GetText(ctx, textKey)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeStorage)
		return s.fail(ctx, msg.AnalysisID, analysis.Attempts, NewStoreError(msg.AnalysisID, err.Error()))
	}

	result, err := s.analyzer.Analyze(ctx, ats.AnalyzeRequest{
		ResumeText: text,
		JDText:     analysis.JDText,
		Lexicon:    s.lexicon,
		Fresher:    analysis.FresherOverride,
	})
	if err != nil {
		errType := tracing.ErrorTypeLexicon
		if errors.Is(err, context.DeadlineExceeded) {
			errType = tracing.ErrorTypeTimeout
		}
		tracing.RecordError(span, err, errType)
		return s.fail(ctx, msg.AnalysisID, analysis.Attempts, err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return s.fail(ctx, msg.AnalysisID, s.maxAttempts, err)
	}
	if _, err := s.objects.UploadArtifact(ctx, msg.AnalysisID, "result", data); err != nil {
		log.Warn().Err(err).Msg("store result artifact failed")
	}
	if err := s.repo.CompleteAnalysis(ctx, msg.AnalysisID, storage.AnalysisOutcome{
		Label:      string(result.Label),
		TotalScore: result.TotalScore,
		Similarity: result.Similarity,
		ResultJSON: data,
	}); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return s.fail(ctx, msg.AnalysisID, analysis.Attempts, NewDatabaseError(msg.AnalysisID, err.Error()))
	}

	span.SetAttributes(attribute.Float64("ats.total_score", result.TotalScore))
	log.Info().
		Str("label", string(result.Label)).
		Float64("total_score", result.TotalScore).
		Msg("analysis completed")
	return true
}

// fail records the failure and decides whether the delivery is retried.
func (s *AnalysisService) fail(ctx context.Context, analysisID string, attempts int, cause error) bool {
	log := s.logger.With().Str("analysis_id", analysisID).Int("attempts", attempts).Logger()
	if err := s.repo.FailAnalysis(ctx, analysisID, cause.Error()); err != nil {
		log.Error().Err(err).Msg("mark analysis failed")
	}
	if attempts < s.maxAttempts {
		log.Warn().Err(cause).Msg("analysis failed, requeueing")
		return false
	}
	log.Error().Err(cause).Msg("analysis failed permanently")
	return true
}
