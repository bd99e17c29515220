package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DanielPopoola/job-scraper/internal/domain"
	"github.com/DanielPopoola/job-scraper/internal/logger"
)

// RawJobStore is the runner's view of raw posting persistence. Claiming
// is atomic: a row claimed by one runner is invisible to a concurrent
// claim for the same status.
type RawJobStore interface {
	ClaimBatch(ctx context.Context, from domain.RawStatus, limit int) ([]domain.RawJobPosting, error)
	MarkProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	ReleaseStuck(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CanonicalStore persists deduplicated jobs.
type CanonicalStore interface {
	FindCandidates(ctx context.Context, bucketKey string) ([]domain.CanonicalJob, error)
	Upsert(ctx context.Context, job *domain.CanonicalJob) error
}

// ProcessingStats summarizes one pipeline batch.
type ProcessingStats struct {
	Claimed   int `json:"claimed"`
	Processed int `json:"processed"`
	Merged    int `json:"merged"`
	Created   int `json:"created"`
	Failed    int `json:"failed"`
}

// Runner drives raw postings through Clean -> Normalize -> Resolve.
// Failures are isolated per record: a bad row is marked failed with its
// error and the batch moves on.
type Runner struct {
	rawStore  RawJobStore
	canonical CanonicalStore
	cleaner   *Cleaner
	norm      *Normalizer
	detector  *DuplicateDetector
	batchSize int
}

// NewRunner creates a pipeline runner. batchSize caps how many rows one
// call claims; values below 1 fall back to 100.
func NewRunner(rawStore RawJobStore, canonical CanonicalStore, detector *DuplicateDetector, batchSize int) *Runner {
	if batchSize < 1 {
		batchSize = 100
	}
	return &Runner{
		rawStore:  rawStore,
		canonical: canonical,
		cleaner:   NewCleaner(),
		norm:      NewNormalizer(),
		detector:  detector,
		batchSize: batchSize,
	}
}

// ProcessPending claims up to batchSize pending rows and runs each
// through the pipeline. An empty backlog returns zero stats without
// touching anything.
func (r *Runner) ProcessPending(ctx context.Context) (*ProcessingStats, error) {
	return r.processFrom(ctx, domain.RawStatusPending)
}

// ReprocessFailed re-runs rows that previously failed, for after a
// pipeline fix. Rows that fail again keep their new error message.
func (r *Runner) ReprocessFailed(ctx context.Context) (*ProcessingStats, error) {
	return r.processFrom(ctx, domain.RawStatusFailed)
}

// stuckClaimAge bounds how long a row may sit in processing. A claim
// whose runner died before marking its rows leaves them stranded there
// with no state-machine exit of their own.
const stuckClaimAge = 30 * time.Minute

func (r *Runner) processFrom(ctx context.Context, from domain.RawStatus) (*ProcessingStats, error) {
	ctx = logger.SetComponent(ctx, "pipeline")
	start := time.Now()

	released, err := r.rawStore.ReleaseStuck(ctx, stuckClaimAge)
	if err != nil {
		return nil, fmt.Errorf("failed to release stuck rows: %w", err)
	}
	if released > 0 {
		logger.CtxWarn(ctx, "Released %d postings stuck in processing to failed", released)
	}

	batch, err := r.rawStore.ClaimBatch(ctx, from, r.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to claim batch: %w", err)
	}

	stats := &ProcessingStats{Claimed: len(batch)}
	if len(batch) == 0 {
		return stats, nil
	}

	logger.CtxInfo(ctx, "Processing %d raw postings claimed from %s", len(batch), from)

	for i := range batch {
		raw := &batch[i]
		if err := r.processOne(ctx, raw, stats); err != nil {
			stats.Failed++
			if markErr := r.rawStore.MarkFailed(ctx, raw.ID, err.Error()); markErr != nil {
				logger.CtxError(ctx, "Failed to mark posting %s failed: %v", raw.ID, markErr)
			}
			continue
		}
		stats.Processed++
		if err := r.rawStore.MarkProcessed(ctx, raw.ID); err != nil {
			logger.CtxError(ctx, "Failed to mark posting %s processed: %v", raw.ID, err)
		}
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldCount:      stats.Processed,
	}).Info(ctx, "Pipeline batch finished: merged=%d, created=%d, failed=%d",
		stats.Merged, stats.Created, stats.Failed)

	return stats, nil
}

// processOne runs a single raw posting through the pipeline stages.
func (r *Runner) processOne(ctx context.Context, raw *domain.RawJobPosting, stats *ProcessingStats) error {
	cleaned := r.cleaner.Clean(
		raw.RawTitle, raw.RawCompany, raw.RawLocation,
		raw.RawDescriptionHTML, raw.SourceURL, raw.Site,
	)

	normalized, err := r.norm.Normalize(cleaned)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("normalization rejected record: %w", verr)
		}
		return fmt.Errorf("normalization failed: %w", err)
	}

	return r.resolve(ctx, raw, normalized, stats)
}

// resolve merges the normalized job into an existing canonical job when
// one scores past the threshold, otherwise creates a new one.
func (r *Runner) resolve(ctx context.Context, raw *domain.RawJobPosting, job *NormalizedJob, stats *ProcessingStats) error {
	bucketKey := BucketKey(job.Company, job.Location)

	candidates, err := r.canonical.FindCandidates(ctx, bucketKey)
	if err != nil {
		return fmt.Errorf("failed to load candidates: %w", err)
	}

	candidateRefs := make([]*domain.CanonicalJob, len(candidates))
	for i := range candidates {
		candidateRefs[i] = &candidates[i]
	}

	if match := r.detector.FindBestMatch(job, candidateRefs); match != nil {
		r.merge(match, raw)
		if err := r.canonical.Upsert(ctx, match); err != nil {
			return fmt.Errorf("failed to update canonical job: %w", err)
		}
		stats.Merged++
		logger.CtxDebug(ctx, "Merged posting %s into canonical job %s", raw.ID, match.ID)
		return nil
	}

	created := &domain.CanonicalJob{
		ID:           uuid.New().String(),
		Title:        job.Title,
		Company:      job.Company,
		Location:     job.Location,
		Description:  job.Description,
		CanonicalURL: job.SourceURL,
		BucketKey:    bucketKey,
		FirstSeen:    raw.ScrapedAt,
		LastSeen:     raw.ScrapedAt,
		MergeCount:   1,
		SourceRawIDs: domain.StringArray{raw.ID},
	}
	if err := r.canonical.Upsert(ctx, created); err != nil {
		return fmt.Errorf("failed to create canonical job: %w", err)
	}
	stats.Created++
	logger.CtxDebug(ctx, "Created canonical job %s for posting %s", created.ID, raw.ID)
	return nil
}

// merge folds a raw posting into an existing canonical job. FirstSeen
// only moves backward and LastSeen only forward, so reprocessing in any
// order converges to the same window.
func (r *Runner) merge(job *domain.CanonicalJob, raw *domain.RawJobPosting) {
	if raw.ScrapedAt.Before(job.FirstSeen) {
		job.FirstSeen = raw.ScrapedAt
	}
	if raw.ScrapedAt.After(job.LastSeen) {
		job.LastSeen = raw.ScrapedAt
	}
	if !job.SourceRawIDs.Contains(raw.ID) {
		job.SourceRawIDs = append(job.SourceRawIDs, raw.ID)
	}
	job.MergeCount++
}
