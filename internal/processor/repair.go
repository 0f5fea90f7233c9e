package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ats-scorer-go/internal/constants"
	"ats-scorer-go/internal/storage"
	"ats-scorer-go/internal/storage/models"
)

// ErrRepairUnsupported is returned when the repository cannot list and
// requeue analyses.
var ErrRepairUnsupported = errors.New("analysis repository does not support requeueing")

// RequeueOptions selects which analyses RequeueStale picks up.
type RequeueOptions struct {
	// StuckFor is how long an analysis may stay PROCESSING before it counts
	// as abandoned by its worker.
	StuckFor      time.Duration
	IncludeFailed bool
	Limit         int
	Concurrency   int
	DryRun        bool
}

// RequeueReport summarizes one repair run.
type RequeueReport struct {
	Found    int               `json:"found"`
	Requeued []string          `json:"requeued"`
	Skipped  []string          `json:"skipped,omitempty"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// RequeueStale finds analyses whose worker died or gave up and queues them
// again through the outbox with a fresh attempt budget.
func (s *AnalysisService) RequeueStale(ctx context.Context, opts RequeueOptions) (*RequeueReport, error) {
	ctx, span := tracer.Start(ctx, "processor.RequeueStale")
	defer span.End()

	if s.repo == nil {
		return nil, ErrRepositoryNotInit
	}
	repo, ok := s.repo.(storage.AnalysisMaintainer)
	if !ok {
		return nil, ErrRepairUnsupported
	}
	if opts.StuckFor <= 0 {
		opts.StuckFor = 5 * constants.AnalysisLockDuration
	}
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}

	stale, err := repo.StaleAnalyses(ctx, s.now().Add(-opts.StuckFor), opts.IncludeFailed, opts.Limit)
	if err != nil {
		return nil, err
	}
	report := &RequeueReport{Found: len(stale), Requeued: []string{}, Errors: map[string]string{}}
	if opts.DryRun {
		for _, a := range stale {
			report.Skipped = append(report.Skipped, a.AnalysisID)
		}
		return report, nil
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, opts.Concurrency)
	)
	for _, a := range stale {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(a models.Analysis) {
			defer func() {
				<-semaphore
				wg.Done()
			}()
			requeued, err := s.requeue(ctx, repo, a)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Errors[a.AnalysisID] = err.Error()
			case requeued:
				report.Requeued = append(report.Requeued, a.AnalysisID)
			default:
				report.Skipped = append(report.Skipped, a.AnalysisID)
			}
		}(a)
	}
	wg.Wait()

	s.logger.Info().
		Int("found", report.Found).
		Int("requeued", len(report.Requeued)).
		Int("errors", len(report.Errors)).
		Msg("stale analyses requeued")
	return report, nil
}

func (s *AnalysisService) requeue(ctx context.Context, repo storage.AnalysisMaintainer, a models.Analysis) (bool, error) {
	if a.TextObjectKey == "" {
		return false, fmt.Errorf("analysis %s has no stored text", a.AnalysisID)
	}
	event, err := s.analysisEvent(a.AnalysisID, a.TextObjectKey, a.JDSource)
	if err != nil {
		return false, err
	}
	return repo.RequeueAnalysis(ctx, a.AnalysisID, event)
}
